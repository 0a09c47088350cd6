package importlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/bajio-reconciler/pkg/sheets"
)

// DefaultTab is the log tab of the remote spreadsheet.
const DefaultTab = "Imports_Log"

// SheetsLog keeps the log in a tab of the remote spreadsheet.
type SheetsLog struct {
	store  sheets.Store
	tab    string
	logger *slog.Logger
}

// NewSheetsLog creates a log over store. An empty tab uses DefaultTab.
func NewSheetsLog(store sheets.Store, tab string, logger *slog.Logger) *SheetsLog {
	if tab == "" {
		tab = DefaultTab
	}
	return &SheetsLog{store: store, tab: tab, logger: logger}
}

func (l *SheetsLog) Append(ctx context.Context, e Entry) error {
	if err := l.store.EnsureTab(ctx, l.tab, Headers); err != nil {
		return fmt.Errorf("failed to prepare import log: %w", err)
	}
	row := []any{
		e.FileName,
		e.FileHash,
		e.RowsRead,
		e.Inserted,
		e.Duplicates,
		e.Conflicts,
		e.ImportedAt.Format(timestampLayout),
	}
	if err := l.store.AppendRows(ctx, l.tab, [][]any{row}); err != nil {
		return fmt.Errorf("failed to append import log entry: %w", err)
	}
	l.logger.Info("import logged", slog.String("file", e.FileName), slog.String("tab", l.tab))
	return nil
}

func (l *SheetsLog) HasHash(ctx context.Context, hash string) (bool, error) {
	rows, err := l.read(ctx)
	if err != nil || len(rows) == 0 {
		return false, err
	}
	col := indexOf(rows[0], "HashArchivo")
	if col < 0 {
		return false, nil
	}
	for _, row := range rows[1:] {
		if col < len(row) && strings.TrimSpace(row[col]) == hash {
			return true, nil
		}
	}
	return false, nil
}

// List returns the newest limit entries, oldest first. A non-positive
// limit returns every entry.
func (l *SheetsLog) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.read(ctx)
	if err != nil || len(rows) < 2 {
		return nil, err
	}

	cols := make([]int, len(Headers))
	for i, h := range Headers {
		cols[i] = indexOf(rows[0], h)
	}

	data := rows[1:]
	if limit > 0 && len(data) > limit {
		data = data[len(data)-limit:]
	}
	entries := make([]Entry, 0, len(data))
	for _, row := range data {
		get := func(i int) string {
			if cols[i] < 0 || cols[i] >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[cols[i]])
		}
		e := Entry{
			FileName:   get(0),
			FileHash:   get(1),
			RowsRead:   atoi(get(2)),
			Inserted:   atoi(get(3)),
			Duplicates: atoi(get(4)),
			Conflicts:  atoi(get(5)),
		}
		if ts, err := time.ParseInLocation(timestampLayout, get(6), time.Local); err == nil {
			e.ImportedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *SheetsLog) read(ctx context.Context) ([][]string, error) {
	rows, err := l.store.ReadAll(ctx, l.tab)
	if errors.Is(err, sheets.ErrTabNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read import log: %w", err)
	}
	return rows, nil
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
