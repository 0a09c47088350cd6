package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/importlog"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/insertion"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/normalizer"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/bajio-reconciler/internal/domain/import/service"
	"github.com/FACorreiaa/bajio-reconciler/pkg/config"
	"github.com/FACorreiaa/bajio-reconciler/pkg/db"
	"github.com/FACorreiaa/bajio-reconciler/pkg/metrics"
	"github.com/FACorreiaa/bajio-reconciler/pkg/notify"
	"github.com/FACorreiaa/bajio-reconciler/pkg/ratelimit"
	"github.com/FACorreiaa/bajio-reconciler/pkg/retry"
	"github.com/FACorreiaa/bajio-reconciler/pkg/sheets"
	"github.com/FACorreiaa/bajio-reconciler/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Remote spreadsheet, nil in demo mode
	Store    sheets.Store
	Inserter *insertion.Inserter

	ImportLog     importlog.Store
	Notifier      *notify.EmailNotifier
	Inbox         *storage.LocalStorage
	ImportService *importservice.ImportService
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, opts importservice.Options, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics()

	if err := deps.initRemote(ctx); err != nil {
		return nil, fmt.Errorf("failed to init spreadsheet: %w", err)
	}

	if err := deps.initImportLog(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init import log: %w", err)
	}

	if err := deps.initServices(opts); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully", slog.Bool("demo", deps.Store == nil))
	return deps, nil
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = metrics.New(d.Registry)
}

func googleConfig(cfg config.SheetsConfig) sheets.GoogleConfig {
	return sheets.GoogleConfig{
		SpreadsheetID:   cfg.SpreadsheetID,
		CredentialsJSON: cfg.CredentialsJSON,
		CredentialsFile: cfg.CredentialsFile,
		AutoCreateTabs:  cfg.AutoCreateTabs,
	}
}

// initRemote opens the spreadsheet behind the shared limiter and retry policy.
func (d *Dependencies) initRemote(ctx context.Context) error {
	if d.Config.DemoMode {
		d.Logger.Warn("demo mode: the remote spreadsheet is neither read nor written")
		return nil
	}

	google, err := sheets.NewGoogleStore(ctx, googleConfig(d.Config.Sheets), d.Logger)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(d.Config.RateLimit.MinInterval, d.Config.RateLimit.PerMinute)
	policy := retry.DefaultPolicy(sheets.RetryClass)
	if d.Config.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = d.Config.Retry.MaxAttempts
	}
	if d.Config.Retry.BaseDelay > 0 {
		policy.BaseDelay = d.Config.Retry.BaseDelay
	}

	d.Store = sheets.NewClient(google, limiter, policy, d.Logger).WithMetrics(d.Metrics)
	d.Inserter = insertion.New(d.Store, insertion.Config{
		Tab:           d.Config.Sheets.Tab,
		BatchSize:     d.Config.Insertion.BatchSize,
		BatchDelay:    d.Config.Insertion.BatchDelay,
		QuotaCooldown: d.Config.Insertion.QuotaCooldown,
		MonthFormula:  d.Config.Insertion.MonthFormula,
	}, d.Logger).WithMetrics(d.Metrics)
	return nil
}

func (d *Dependencies) initImportLog(ctx context.Context) error {
	backend := d.Config.ImportLog.Backend
	switch {
	case backend == config.LogBackendNone:
		d.ImportLog = importlog.Nop{}
	case backend == config.LogBackendPostgres:
		database, err := db.New(ctx, db.Config{
			DSN:             d.Config.Database.DSN(),
			MaxConns:        int32(d.Config.Database.MaxConns),
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.DB = database
		if err := d.DB.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		d.ImportLog = importlog.NewPostgresLog(d.DB.Pool)
	case d.Store == nil:
		d.ImportLog = importlog.Nop{}
	default:
		d.ImportLog = importlog.NewSheetsLog(d.Store, d.Config.ImportLog.Tab, d.Logger)
	}

	d.Logger.Info("import log ready", slog.String("backend", backend))
	return nil
}

func (d *Dependencies) initServices(opts importservice.Options) error {
	dates := parser.NewDateParser(d.Config.Parser.MinYear, d.Config.Parser.MaxYear, d.Logger)
	norm := normalizer.New(dates, nil, d.Logger)

	d.ImportService = importservice.NewImportService(norm, d.Logger).
		WithImportLog(d.ImportLog).
		WithMetrics(d.Metrics).
		WithOptions(opts)
	if d.Store != nil {
		d.ImportService.WithRemote(d.Store, d.Config.Sheets.SnapshotTab, d.Inserter)
	}

	notifier, err := notify.NewEmailNotifier(notify.Config{
		APIKey:    d.Config.Notify.ResendAPIKey,
		FromEmail: d.Config.Notify.FromEmail,
		To:        d.Config.Notify.To,
	}, d.Logger)
	if err != nil {
		return err
	}
	if notifier != nil {
		d.Notifier = notifier
		d.ImportService.WithNotifier(notifier)
	}

	if d.Config.Inbox.Dir != "" {
		inbox, err := storage.NewLocalStorage(storage.Config{
			Dir:        d.Config.Inbox.Dir,
			ArchiveDir: d.Config.Inbox.ArchiveDir,
		})
		if err != nil {
			return fmt.Errorf("failed to init inbox: %w", err)
		}
		d.Inbox = inbox
	}

	d.Logger.Info("services initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
