package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHEET_ID", "sheet-123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Acumulado", cfg.Sheets.Tab)
	assert.Equal(t, "Acumulado", cfg.Sheets.SnapshotTab)
	assert.True(t, cfg.Sheets.AutoCreateTabs)
	assert.Equal(t, "Imports_Log", cfg.ImportLog.Tab)
	assert.Equal(t, LogBackendSheets, cfg.ImportLog.Backend)
	assert.Equal(t, 20, cfg.Insertion.BatchSize)
	assert.Equal(t, 3*time.Second, cfg.Insertion.BatchDelay)
	assert.Equal(t, 60*time.Second, cfg.Insertion.QuotaCooldown)
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.MinInterval)
	assert.Equal(t, int64(200<<20), cfg.Parser.MaxFileSize())
	assert.Empty(t, cfg.Notify.To)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SHEET_ID", "sheet-123")
	t.Setenv("SHEET_TAB", "Movimientos")
	t.Setenv("BATCH_DELAY", "1.5")
	t.Setenv("QUOTA_COOLDOWN", "90s")
	t.Setenv("IMPORT_LOG_BACKEND", "Postgres")
	t.Setenv("REPORT_TO_EMAILS", " a@b.mx, ,c@d.mx ")
	t.Setenv("AUTO_CREATE_TABS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Movimientos", cfg.Sheets.SnapshotTab)
	assert.False(t, cfg.Sheets.AutoCreateTabs)
	assert.Equal(t, 1500*time.Millisecond, cfg.Insertion.BatchDelay)
	assert.Equal(t, 90*time.Second, cfg.Insertion.QuotaCooldown)
	assert.Equal(t, LogBackendPostgres, cfg.ImportLog.Backend)
	assert.Equal(t, []string{"a@b.mx", "c@d.mx"}, cfg.Notify.To)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Sheets:    SheetsConfig{SpreadsheetID: "x"},
			ImportLog: ImportLogConfig{Backend: LogBackendNone},
			Insertion: InsertionConfig{BatchSize: 20},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
		errText string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing sheet", mutate: func(c *Config) { c.Sheets.SpreadsheetID = "" }, wantErr: ErrMissingSheetID},
		{name: "demo without sheet", mutate: func(c *Config) { c.Sheets.SpreadsheetID = ""; c.DemoMode = true }},
		{name: "bad backend", mutate: func(c *Config) { c.ImportLog.Backend = "mongo" }, wantErr: ErrInvalidLogBackend},
		{name: "zero batch", mutate: func(c *Config) { c.Insertion.BatchSize = 0 }, errText: "BATCH_SIZE"},
		{name: "inverted years", mutate: func(c *Config) { c.Parser.MinYear, c.Parser.MaxYear = 2030, 2020 }, errText: "MIN_YEAR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
