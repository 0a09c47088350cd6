// Package insertion writes new movements into the report tab of the remote
// spreadsheet. The tab is edited by people too, so every call locates the
// insertion row again, re-checks UIDs at write time, narrows writes that
// hit protected cells and reads back what it claimed to have written.
package insertion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
	"github.com/FACorreiaa/bajio-reconciler/pkg/metrics"
	"github.com/FACorreiaa/bajio-reconciler/pkg/sheets"
)

// Config tunes the insertion protocol.
type Config struct {
	Tab           string
	BatchSize     int
	BatchDelay    time.Duration
	QuotaCooldown time.Duration
	GrowBuffer    int
	MonthFormula  string
}

// DefaultConfig returns batches of 20 rows, 3s apart, with a 60s cooldown
// after a quota error.
func DefaultConfig() Config {
	return Config{
		Tab:           "Acumulado",
		BatchSize:     20,
		BatchDelay:    3 * time.Second,
		QuotaCooldown: 60 * time.Second,
		GrowBuffer:    100,
		MonthFormula:  DefaultMonthFormula,
	}
}

// Outcome reports what an insertion call did.
type Outcome struct {
	Inserted           int
	Duplicates         int
	Errors             int
	LastRowUsed        int
	NextAvailableRow   int
	VerificationPassed bool
	Messages           []string
}

func (o *Outcome) addMessage(format string, args ...any) {
	o.Messages = append(o.Messages, fmt.Sprintf(format, args...))
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Inserter runs the insertion protocol against a Store. The store is
// expected to carry the shared limiter and retry policy.
type Inserter struct {
	store   sheets.Store
	cfg     Config
	sleep   SleepFunc
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an inserter. Zero config fields take their defaults.
func New(store sheets.Store, cfg Config, logger *slog.Logger) *Inserter {
	def := DefaultConfig()
	if cfg.Tab == "" {
		cfg.Tab = def.Tab
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.GrowBuffer <= 0 {
		cfg.GrowBuffer = def.GrowBuffer
	}
	if cfg.MonthFormula == "" {
		cfg.MonthFormula = def.MonthFormula
	}
	return &Inserter{
		store:  store,
		cfg:    cfg,
		sleep:  sleepCtx,
		logger: logger,
	}
}

// WithSleep replaces the function used for batch delays and cooldowns.
func (i *Inserter) WithSleep(fn SleepFunc) *Inserter {
	i.sleep = fn
	return i
}

// WithMetrics records inserted, duplicate and failed rows.
func (i *Inserter) WithMetrics(m *metrics.Metrics) *Inserter {
	i.metrics = m
	return i
}

// Tab returns the report tab name.
func (i *Inserter) Tab() string {
	return i.cfg.Tab
}

// Insert writes txs after the last populated row of the report tab. An
// error is returned only when the tab cannot be prepared or read; write
// failures are counted in the outcome.
func (i *Inserter) Insert(ctx context.Context, txs []model.Transaction) (*Outcome, error) {
	tab := i.cfg.Tab
	out := &Outcome{VerificationPassed: true}
	if len(txs) == 0 {
		return out, nil
	}

	if err := i.store.EnsureTab(ctx, tab, Headers); err != nil {
		return nil, fmt.Errorf("failed to prepare tab %s: %w", tab, err)
	}
	rows, err := i.store.ReadAll(ctx, tab)
	if err != nil {
		return nil, fmt.Errorf("failed to read tab %s: %w", tab, err)
	}

	// FIND_INSERTION_ROW
	nextRow := FindInsertionRow(rows)
	out.LastRowUsed = nextRow - 1
	out.NextAvailableRow = nextRow

	// CHECK_DUPLICATES
	pending, dupes := i.filterKnown(rows, txs)
	out.Duplicates = dupes
	i.metrics.AddRows("duplicate", dupes)
	if len(pending) == 0 {
		i.logger.Info("no new rows after write-time duplicate check",
			slog.String("tab", tab),
			slog.Int("duplicates", dupes),
		)
		return out, nil
	}

	i.warnOccupied(rows, nextRow, len(pending))

	// VALIDATE_CAPACITY
	i.ensureCapacity(ctx, out, nextRow+len(pending)+i.cfg.GrowBuffer)

	// FORMAT_ROWS
	last := LastConsecutive(rows)
	formatted := make([][]any, len(pending))
	for n, tx := range pending {
		formatted[n] = FormatRow(tx, last+1+n, nextRow+n, i.cfg.MonthFormula)
	}

	// WRITE_BATCHES
	claimed := i.writeBatches(ctx, out, nextRow, formatted)

	// VERIFY
	i.verify(ctx, out, nextRow, claimed)

	i.metrics.AddRows("inserted", out.Inserted)
	i.metrics.AddRows("error", out.Errors)
	i.logger.Info("insertion completed",
		slog.String("tab", tab),
		slog.Int("inserted", out.Inserted),
		slog.Int("duplicates", out.Duplicates),
		slog.Int("errors", out.Errors),
		slog.Int("next_available_row", out.NextAvailableRow),
		slog.Bool("verification_passed", out.VerificationPassed),
	)
	return out, nil
}

// filterKnown drops movements whose UID is already in the UID column or
// earlier in txs.
func (i *Inserter) filterKnown(rows [][]string, txs []model.Transaction) ([]model.Transaction, int) {
	uidCol := -1
	if len(rows) > 0 {
		for c, h := range rows[0] {
			if strings.TrimSpace(h) == "UID" {
				uidCol = c
				break
			}
		}
	}
	if uidCol < 0 {
		i.logger.Warn("report tab has no UID column, skipping write-time duplicate check",
			slog.String("tab", i.cfg.Tab))
		return txs, 0
	}

	known := make(map[string]struct{}, len(rows))
	for _, row := range rows[1:] {
		if uidCol < len(row) {
			if uid := strings.TrimSpace(row[uidCol]); uid != "" {
				known[uid] = struct{}{}
			}
		}
	}

	pending := make([]model.Transaction, 0, len(txs))
	dupes := 0
	for _, tx := range txs {
		if tx.UID == "" {
			pending = append(pending, tx)
			continue
		}
		if _, ok := known[tx.UID]; ok {
			dupes++
			i.logger.Debug("skipping UID already in report tab", slog.String("uid", tx.UID))
			continue
		}
		known[tx.UID] = struct{}{}
		pending = append(pending, tx)
	}
	return pending, dupes
}

func (i *Inserter) warnOccupied(rows [][]string, start, n int) {
	occupied := 0
	for r := start; r < start+n && r <= len(rows); r++ {
		if columnA(rows[r-1]) != "" {
			occupied++
		}
	}
	if occupied > 0 {
		i.logger.Warn("target range overlaps populated rows",
			slog.String("tab", i.cfg.Tab),
			slog.Int("start_row", start),
			slog.Int("occupied", occupied),
		)
	}
}

func (i *Inserter) ensureCapacity(ctx context.Context, out *Outcome, required int) {
	current, err := i.store.RowCount(ctx, i.cfg.Tab)
	if err != nil {
		i.logger.Warn("failed to read tab size", slog.String("tab", i.cfg.Tab), "error", err)
		return
	}
	if required <= current {
		return
	}
	if err := i.store.Grow(ctx, i.cfg.Tab, required-current); err != nil {
		i.logger.Warn("failed to grow tab, continuing with available rows",
			slog.String("tab", i.cfg.Tab),
			slog.Int("rows", current),
			slog.Int("required", required),
			"error", err,
		)
		out.addMessage("could not grow tab from %d to %d rows", current, required)
		return
	}
	i.logger.Info("grew tab", slog.String("tab", i.cfg.Tab), slog.Int("from", current), slog.Int("to", required))
}

// span is a block of sheet rows a batch claims to have written.
type span struct {
	start, end int
}

func (i *Inserter) writeBatches(ctx context.Context, out *Outcome, nextRow int, formatted [][]any) []span {
	var claimed []span
	size := i.cfg.BatchSize

	for start := 0; start < len(formatted); start += size {
		end := min(start+size, len(formatted))
		batch := formatted[start:end]
		rng := sheets.RowsRange(nextRow+start, len(batch), NumColumns)
		log := i.logger.With(slog.Int("batch", start/size+1), slog.String("range", rng.A1(i.cfg.Tab)))

		if start > 0 && i.cfg.BatchDelay > 0 {
			if err := i.sleep(ctx, i.cfg.BatchDelay); err != nil {
				out.Errors += len(formatted) - start
				out.addMessage("cancelled before row %d: %v", rng.StartRow, err)
				break
			}
		}

		if i.writeBatch(ctx, out, log, rng, batch) {
			claimed = append(claimed, span{rng.StartRow, rng.EndRow})
		} else {
			out.Errors += len(batch)
		}
	}
	return claimed
}

func (i *Inserter) writeBatch(ctx context.Context, out *Outcome, log *slog.Logger, rng sheets.Range, batch [][]any) bool {
	err := i.store.WriteRange(ctx, i.cfg.Tab, rng, batch)
	if err == nil {
		log.Info("batch written", slog.Int("rows", len(batch)))
		return true
	}

	switch sheets.KindOf(err) {
	case sheets.KindQuota:
		log.Warn("quota exceeded, cooling down", slog.Duration("cooldown", i.cfg.QuotaCooldown), "error", err)
		if err := i.sleep(ctx, i.cfg.QuotaCooldown); err != nil {
			out.addMessage("rows %d-%d: %v", rng.StartRow, rng.EndRow, err)
			return false
		}
		if err := i.store.WriteRange(ctx, i.cfg.Tab, rng, batch); err != nil {
			log.Error("batch failed after cooldown", "error", err)
			out.addMessage("rows %d-%d: %v", rng.StartRow, rng.EndRow, err)
			return false
		}
		log.Info("batch written after cooldown", slog.Int("rows", len(batch)))
		return true

	case sheets.KindProtected:
		log.Warn("protected cells, writing leading columns only", "error", err)
		safe := make([][]any, len(batch))
		for n, row := range batch {
			safe[n] = row[:SafeColumns]
		}
		safeRng := sheets.Range{StartRow: rng.StartRow, EndRow: rng.EndRow, StartCol: 1, EndCol: SafeColumns}
		if err := i.store.WriteRange(ctx, i.cfg.Tab, safeRng, safe); err != nil {
			log.Error("narrowed write failed", "error", err)
			out.addMessage("rows %d-%d: %v", rng.StartRow, rng.EndRow, err)
			return false
		}
		out.addMessage("rows %d-%d written to columns A-%s only", rng.StartRow, rng.EndRow, sheets.ColumnLetter(SafeColumns))
		return true

	default:
		log.Error("batch failed", "error", err)
		out.addMessage("rows %d-%d: %v", rng.StartRow, rng.EndRow, err)
		return false
	}
}

// verify reads column A over the claimed rows and counts what is populated.
func (i *Inserter) verify(ctx context.Context, out *Outcome, nextRow int, claimed []span) {
	total := 0
	for _, s := range claimed {
		total += s.end - s.start + 1
	}
	if total == 0 {
		return
	}

	first, last := claimed[0].start, claimed[len(claimed)-1].end
	values, err := i.store.ReadRange(ctx, i.cfg.Tab, sheets.Range{StartRow: first, EndRow: last, StartCol: 1, EndCol: 1})
	if err != nil {
		i.logger.Warn("failed to verify insertion, assuming claimed rows", "error", err)
		out.addMessage("verification read failed: %v", err)
		out.Inserted = total
		out.LastRowUsed = last
		out.NextAvailableRow = last + 1
		return
	}

	verified, lastVerified := 0, 0
	for _, s := range claimed {
		for r := s.start; r <= s.end; r++ {
			idx := r - first
			if idx < len(values) && columnA(values[idx]) != "" {
				verified++
				lastVerified = r
			} else {
				i.logger.Warn("row not populated after write", slog.Int("row", r))
			}
		}
	}

	out.Inserted = verified
	if verified < total {
		out.Errors += total - verified
		out.VerificationPassed = false
		out.addMessage("verified %d of %d written rows", verified, total)
		i.logger.Warn("verification shortfall",
			slog.Int("claimed", total),
			slog.Int("verified", verified),
		)
	}
	if lastVerified > 0 {
		out.LastRowUsed = lastVerified
		out.NextAvailableRow = lastVerified + 1
	} else {
		out.LastRowUsed = nextRow - 1
		out.NextAvailableRow = nextRow
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
