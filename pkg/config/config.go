package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingSheetID    = errors.New("SHEET_ID is required outside demo mode")
	ErrInvalidLogBackend = errors.New("IMPORT_LOG_BACKEND must be sheets, postgres or none")
)

// Import log backends.
const (
	LogBackendSheets   = "sheets"
	LogBackendPostgres = "postgres"
	LogBackendNone     = "none"
)

// Config holds all application configuration
type Config struct {
	DemoMode      bool
	LogLevel      string
	Sheets        SheetsConfig
	Parser        ParserConfig
	Insertion     InsertionConfig
	RateLimit     RateLimitConfig
	Retry         RetryConfig
	ImportLog     ImportLogConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Inbox         InboxConfig
	Notify        NotifyConfig
}

type SheetsConfig struct {
	SpreadsheetID   string
	Tab             string
	SnapshotTab     string
	CredentialsJSON string
	CredentialsFile string
	AutoCreateTabs  bool
}

type ParserConfig struct {
	MaxFileSizeMB int
	MinYear       int
	MaxYear       int
	SortByDate    bool
}

// MaxFileSize returns the limit in bytes.
func (c ParserConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

type InsertionConfig struct {
	BatchSize     int
	BatchDelay    time.Duration
	QuotaCooldown time.Duration
	MonthFormula  string
}

type RateLimitConfig struct {
	PerMinute   int
	MinInterval time.Duration
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type ImportLogConfig struct {
	Backend string
	Tab     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type InboxConfig struct {
	Dir        string
	ArchiveDir string
	Schedule   string
}

type NotifyConfig struct {
	ResendAPIKey string
	FromEmail    string
	To           []string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	tab := getEnv("SHEET_TAB", "Acumulado")
	cfg := &Config{
		DemoMode: getEnvAsBool("DEMO_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sheets: SheetsConfig{
			SpreadsheetID:   getEnv("SHEET_ID", ""),
			Tab:             tab,
			SnapshotTab:     getEnv("SNAPSHOT_TAB", tab),
			CredentialsJSON: getEnv("GOOGLE_SA_JSON", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			AutoCreateTabs:  getEnvAsBool("AUTO_CREATE_TABS", true),
		},
		Parser: ParserConfig{
			MaxFileSizeMB: getEnvAsInt("MAX_FILE_SIZE_MB", 200),
			MinYear:       getEnvAsInt("MIN_YEAR", 0),
			MaxYear:       getEnvAsInt("MAX_YEAR", 0),
			SortByDate:    getEnvAsBool("SORT_BY_DATE", false),
		},
		Insertion: InsertionConfig{
			BatchSize:     getEnvAsInt("BATCH_SIZE", 20),
			BatchDelay:    getEnvAsDuration("BATCH_DELAY", 3*time.Second),
			QuotaCooldown: getEnvAsDuration("QUOTA_COOLDOWN", 60*time.Second),
			MonthFormula:  getEnv("MONTH_FORMULA", ""),
		},
		RateLimit: RateLimitConfig{
			PerMinute:   getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
			MinInterval: getEnvAsDuration("RATE_LIMIT_MIN_INTERVAL", 2*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 5),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 2*time.Second),
		},
		ImportLog: ImportLogConfig{
			Backend: strings.ToLower(getEnv("IMPORT_LOG_BACKEND", LogBackendSheets)),
			Tab:     getEnv("LOG_TAB", "Imports_Log"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "reconciler"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 4),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Inbox: InboxConfig{
			Dir:        getEnv("INBOX_DIR", ""),
			ArchiveDir: getEnv("INBOX_ARCHIVE_DIR", ""),
			Schedule:   getEnv("INBOX_SCHEDULE", ""),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("REPORT_FROM_EMAIL", "reconciler@localhost"),
			To:           getEnvAsList("REPORT_TO_EMAILS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if !c.DemoMode && c.Sheets.SpreadsheetID == "" {
		return ErrMissingSheetID
	}
	switch c.ImportLog.Backend {
	case LogBackendSheets, LogBackendPostgres, LogBackendNone:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogBackend, c.ImportLog.Backend)
	}
	if c.Insertion.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.Insertion.BatchSize)
	}
	if c.Parser.MinYear != 0 && c.Parser.MaxYear != 0 && c.Parser.MinYear > c.Parser.MaxYear {
		return fmt.Errorf("MIN_YEAR %d is after MAX_YEAR %d", c.Parser.MinYear, c.Parser.MaxYear)
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("3s") and plain seconds ("3").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
