package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/importlog"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/sniffer"
	importservice "github.com/FACorreiaa/bajio-reconciler/internal/domain/import/service"
	"github.com/FACorreiaa/bajio-reconciler/pkg/config"
	"github.com/FACorreiaa/bajio-reconciler/pkg/sheets"
)

func TestWriteSample(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, writeSample(&a, 12, 99))
	require.NoError(t, writeSample(&b, 12, 99))
	assert.Equal(t, a.String(), b.String())

	table, cfg, err := sniffer.Read(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, sniffer.FormatBajio, cfg.Format)
	assert.Len(t, table.Rows, 12)
}

func TestExportImportLog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := importlog.NewSheetsLog(sheets.NewMemoryStore(true), "", logger)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, importlog.Entry{
		RunID:      uuid.New(),
		FileName:   "junio.csv",
		FileHash:   "abc",
		RowsRead:   3,
		Inserted:   3,
		ImportedAt: time.Date(2025, time.June, 12, 10, 0, 0, 0, time.Local),
	}))

	path := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, exportImportLog(ctx, store, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "junio.csv,abc,3,3,0,0,2025-06-12 10:00:00")
}

func TestInitDependencies_Demo(t *testing.T) {
	cfg := &config.Config{
		DemoMode:  true,
		Sheets:    config.SheetsConfig{Tab: "Acumulado", SnapshotTab: "Acumulado"},
		ImportLog: config.ImportLogConfig{Backend: config.LogBackendSheets},
		Insertion: config.InsertionConfig{BatchSize: 20},
		Inbox:     config.InboxConfig{Dir: t.TempDir()},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := InitDependencies(context.Background(), cfg, importservice.Options{}, logger)
	require.NoError(t, err)
	defer deps.Cleanup()

	assert.Nil(t, deps.Store)
	assert.Nil(t, deps.Notifier)
	assert.IsType(t, importlog.Nop{}, deps.ImportLog)
	assert.True(t, deps.ImportService.Demo())
	require.NotNil(t, deps.Inbox)

	sample := filepath.Join(cfg.Inbox.Dir, "muestra.csv")
	f, err := os.Create(sample)
	require.NoError(t, err)
	require.NoError(t, writeSample(f, 5, 1))
	require.NoError(t, f.Close())

	res, err := deps.ImportService.ProcessInbox(context.Background(), deps.Inbox)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, importservice.StatusDryRun, res.Files[0].Status)
}

func TestGoogleConfig(t *testing.T) {
	t.Setenv("SHEET_ID", "sheet-123")
	t.Setenv("GOOGLE_SA_JSON", `{"type":"service_account"}`)

	cfg, err := config.Load()
	require.NoError(t, err)

	gc := googleConfig(cfg.Sheets)
	assert.Equal(t, "sheet-123", gc.SpreadsheetID)
	assert.Equal(t, `{"type":"service_account"}`, gc.CredentialsJSON)
	assert.True(t, gc.AutoCreateTabs, "log tab is created on first import by default")

	t.Setenv("AUTO_CREATE_TABS", "false")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.False(t, googleConfig(cfg.Sheets).AutoCreateTabs)
}
