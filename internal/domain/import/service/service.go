// Package service provides the import orchestration logic: read, normalize,
// fingerprint, reconcile against the remote snapshot, insert and log, one
// file at a time.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/fingerprint"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/importlog"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/insertion"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/normalizer"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/parser"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/reconcile"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/sniffer"
	"github.com/FACorreiaa/bajio-reconciler/pkg/metrics"
	"github.com/FACorreiaa/bajio-reconciler/pkg/sheets"
	"github.com/FACorreiaa/bajio-reconciler/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/bajio-reconciler/internal/domain/import/service"

var (
	ErrFileTooLarge   = errors.New("file exceeds size limit")
	ErrEmptyFile      = errors.New("file has no movements")
	ErrInvalidColumns = errors.New("file is missing required columns")
)

// File status values reported per processed file.
const (
	StatusImported    = "imported"
	StatusNothingNew  = "nothing_new"
	StatusDryRun      = "dry_run"
	StatusFailed      = "failed"
	StatusInsertError = "insert_failed"
)

// FileInput is a statement to import.
type FileInput struct {
	Name string
	Data []byte
}

// Options tunes a run.
type Options struct {
	// DryRun reconciles and reports without writing anything remotely.
	DryRun bool
	// Sort orders movements by date and time, newest first, before insertion.
	Sort bool
	// MaxFileSize in bytes; zero disables the check.
	MaxFileSize int64
}

// Inserter writes reconciled movements to the report tab.
type Inserter interface {
	Insert(ctx context.Context, txs []model.Transaction) (*insertion.Outcome, error)
}

// Notifier delivers the run report when conflicts need manual review.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// Prepared is a statement read, normalized and fingerprinted.
type Prepared struct {
	FileName     string
	FileHash     string
	Format       sniffer.Format
	RowsRead     int
	Columns      parser.ColumnValidation
	Transactions []model.Transaction
	Dropped      []normalizer.DroppedRow
	UIDs         fingerprint.Report
}

// FileResult is the outcome of one file.
type FileResult struct {
	FileName        string
	FileHash        string
	Status          string
	AlreadyImported bool
	Prepared        *Prepared
	Reconciliation  reconcile.Result
	Validation      reconcile.Validation
	Report          string
	Outcome         *insertion.Outcome
	Err             error
}

// RunResult aggregates a run over several files.
type RunResult struct {
	RunID      uuid.UUID
	Files      []FileResult
	Inserted   int
	Duplicates int
	Conflicts  int
	Failed     int
}

// ImportService orchestrates statement imports.
type ImportService struct {
	normalizer  *normalizer.Normalizer
	store       sheets.Store // nil in demo mode
	snapshotTab string
	inserter    Inserter
	importLog   importlog.Store
	notifier    Notifier
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	opts        Options
	now         func() time.Time
	logger      *slog.Logger
}

// NewImportService creates a service without remote access. Without
// WithRemote every run reconciles against an empty snapshot and writes
// nothing.
func NewImportService(norm *normalizer.Normalizer, logger *slog.Logger) *ImportService {
	return &ImportService{
		normalizer: norm,
		importLog:  importlog.Nop{},
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		logger:     logger,
	}
}

// WithRemote enables snapshot reads from snapshotTab and insertion.
func (s *ImportService) WithRemote(store sheets.Store, snapshotTab string, ins Inserter) *ImportService {
	s.store = store
	s.snapshotTab = snapshotTab
	s.inserter = ins
	return s
}

// WithImportLog records each processed file.
func (s *ImportService) WithImportLog(l importlog.Store) *ImportService {
	s.importLog = l
	return s
}

// WithNotifier sends the run report when conflicts are found.
func (s *ImportService) WithNotifier(n Notifier) *ImportService {
	s.notifier = n
	return s
}

// WithMetrics records per-file and per-row counters.
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// WithOptions sets the run options.
func (s *ImportService) WithOptions(o Options) *ImportService {
	s.opts = o
	return s
}

// Demo reports whether the service runs without remote writes.
func (s *ImportService) Demo() bool {
	return s.store == nil || s.inserter == nil || s.opts.DryRun
}

// ============================================================================
// Prepare
// ============================================================================

// Prepare reads, validates, normalizes and fingerprints one statement.
func (s *ImportService) Prepare(ctx context.Context, f FileInput) (*Prepared, error) {
	_, span := s.tracer.Start(ctx, "import.Prepare", trace.WithAttributes(attribute.String("file", f.Name)))
	defer span.End()

	if s.opts.MaxFileSize > 0 && int64(len(f.Data)) > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, len(f.Data), s.opts.MaxFileSize)
	}

	table, cfg, err := sniffer.Read(f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}
	if table.Empty() {
		return nil, ErrEmptyFile
	}

	columns := parser.ValidateColumns(table.Headers)
	if !columns.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidColumns, strings.Join(columns.Missing, ", "))
	}
	for _, w := range columns.Warnings {
		s.logger.Warn("statement column warning", slog.String("file", f.Name), slog.String("warning", w))
	}

	res := s.normalizer.Normalize(table, f.Name)
	fingerprint.Assign(res.Transactions)
	if s.opts.Sort {
		SortByDateTime(res.Transactions)
	}

	p := &Prepared{
		FileName:     f.Name,
		FileHash:     importlog.Hash(f.Data),
		Format:       cfg.Format,
		RowsRead:     len(table.Rows),
		Columns:      columns,
		Transactions: res.Transactions,
		Dropped:      res.Dropped,
		UIDs:         fingerprint.BuildReport(res.Transactions),
	}
	s.metrics.AddRows("dropped", len(res.Dropped))

	s.logger.Info("statement prepared",
		slog.String("file", f.Name),
		slog.String("format", string(cfg.Format)),
		slog.Int("rows", p.RowsRead),
		slog.Int("movements", len(p.Transactions)),
		slog.Int("dropped", len(p.Dropped)),
		slog.Int("unique_uids", p.UIDs.Unique),
		slog.Int("spei_uids", p.UIDs.ByPrefix[fingerprint.PrefixSPEI]),
	)
	return p, nil
}

// SortByDateTime orders movements newest first. Ties keep file order.
func SortByDateTime(txs []model.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		return a.Time > b.Time
	})
}

// ============================================================================
// Run
// ============================================================================

// ProcessFiles imports files sequentially. The remote snapshot is fetched
// once, when the first file needs it, and the working set of accepted UIDs
// spans the whole run. A failing file is reported and the rest continue;
// an error is returned only when ctx is done.
func (s *ImportService) ProcessFiles(ctx context.Context, files []FileInput) (*RunResult, error) {
	run := &RunResult{RunID: uuid.New()}
	ctx, span := s.tracer.Start(ctx, "import.ProcessFiles", trace.WithAttributes(
		attribute.String("run_id", run.RunID.String()),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	logger := s.logger.With(slog.String("run_id", run.RunID.String()))
	logger.Info("import run started", slog.Int("files", len(files)), slog.Bool("demo", s.Demo()))

	var snapshot *reconcile.Snapshot
	ws := reconcile.NewWorkingSet()

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return run, err
		}

		res := s.processFile(ctx, logger, run.RunID, f, &snapshot, ws)
		run.Files = append(run.Files, res)
		run.Duplicates += res.Reconciliation.Summary.Duplicates
		run.Conflicts += res.Reconciliation.Summary.Conflicts
		if res.Outcome != nil {
			run.Inserted += res.Outcome.Inserted
			run.Duplicates += res.Outcome.Duplicates
		}
		if res.Err != nil {
			run.Failed++
		}
		s.metrics.FileDone(res.Status)
	}

	logger.Info("import run finished",
		slog.Int("files", len(run.Files)),
		slog.Int("inserted", run.Inserted),
		slog.Int("duplicates", run.Duplicates),
		slog.Int("conflicts", run.Conflicts),
		slog.Int("failed", run.Failed),
	)

	if run.Conflicts > 0 && s.notifier != nil {
		if err := s.notifier.Send(ctx, conflictSubject(run), RunReport(run)); err != nil {
			logger.Warn("failed to send conflict report", "error", err)
		}
	}
	return run, nil
}

func (s *ImportService) processFile(
	ctx context.Context,
	logger *slog.Logger,
	runID uuid.UUID,
	f FileInput,
	snapshot **reconcile.Snapshot,
	ws *reconcile.WorkingSet,
) FileResult {
	ctx, span := s.tracer.Start(ctx, "import.File", trace.WithAttributes(attribute.String("file", f.Name)))
	defer span.End()

	logger = logger.With(slog.String("file", f.Name))
	res := FileResult{FileName: f.Name, FileHash: importlog.Hash(f.Data)}
	fail := func(status string, err error) FileResult {
		res.Status = status
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		logger.Error("file import failed", slog.String("status", status), "error", err)
		return res
	}

	prep, err := s.Prepare(ctx, f)
	if err != nil {
		return fail(StatusFailed, err)
	}
	res.Prepared = prep
	for _, d := range prep.Dropped {
		logger.Info("row dropped", slog.String("row", d.String()))
	}

	if seen, err := s.importLog.HasHash(ctx, prep.FileHash); err != nil {
		logger.Warn("failed to check import log", "error", err)
	} else if seen {
		res.AlreadyImported = true
		logger.Warn("file with the same content was imported before", slog.String("hash", prep.FileHash))
	}

	if *snapshot == nil {
		snap, err := s.fetchSnapshot(ctx)
		if err != nil {
			return fail(StatusFailed, err)
		}
		*snapshot = snap
	}

	// UIDs join the run working set only once their rows are written.
	staged := ws.Clone()
	res.Reconciliation = reconcile.Reconcile(prep.Transactions, *snapshot, staged)
	res.Validation = reconcile.ValidateInsertionSafety(res.Reconciliation)
	res.Report = reconcile.Report(res.Reconciliation, res.Validation)
	sum := res.Reconciliation.Summary
	s.metrics.AddRows("new", sum.NewUnique)
	s.metrics.AddRows("conflict", sum.Conflicts)
	logger.Info("reconciled",
		slog.Int("new", sum.NewUnique),
		slog.Int("duplicates", sum.Duplicates),
		slog.Int("conflicts", sum.Conflicts),
		slog.Bool("safe_to_proceed", res.Validation.SafeToProceed),
	)

	switch {
	case s.Demo():
		ws.Merge(staged)
		res.Status = StatusDryRun
		return res
	case !res.Validation.SafeToProceed:
		res.Status = StatusNothingNew
	default:
		out, err := s.inserter.Insert(ctx, res.Reconciliation.Transactions())
		if err != nil {
			return fail(StatusInsertError, fmt.Errorf("failed to insert movements: %w", err))
		}
		ws.Merge(staged)
		res.Outcome = out
		res.Status = StatusImported
		if !out.VerificationPassed {
			logger.Warn("insertion verification failed", slog.Int("errors", out.Errors))
		}
	}

	entry := importlog.Entry{
		RunID:      runID,
		FileName:   f.Name,
		FileHash:   prep.FileHash,
		RowsRead:   prep.RowsRead,
		Duplicates: sum.Duplicates,
		Conflicts:  sum.Conflicts,
		ImportedAt: s.now(),
	}
	if res.Outcome != nil {
		entry.Inserted = res.Outcome.Inserted
		entry.Duplicates += res.Outcome.Duplicates
	}
	if err := s.importLog.Append(ctx, entry); err != nil {
		logger.Warn("failed to record import", "error", err)
	}
	return res
}

func (s *ImportService) fetchSnapshot(ctx context.Context) (*reconcile.Snapshot, error) {
	if s.store == nil {
		return reconcile.EmptySnapshot(), nil
	}
	ctx, span := s.tracer.Start(ctx, "import.Snapshot", trace.WithAttributes(attribute.String("sheets.tab", s.snapshotTab)))
	defer span.End()

	rows, err := s.store.ReadAll(ctx, s.snapshotTab)
	if errors.Is(err, sheets.ErrTabNotFound) {
		s.logger.Warn("snapshot tab does not exist yet, reconciling against empty data", slog.String("tab", s.snapshotTab))
		return reconcile.EmptySnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read remote snapshot: %w", err)
	}

	snap, err := reconcile.SnapshotFromRows(rows)
	if errors.Is(err, reconcile.ErrNoUIDColumn) {
		s.logger.Warn("snapshot tab has no UID column, every movement will look new", slog.String("tab", s.snapshotTab))
	} else if err != nil {
		return nil, err
	}
	s.logger.Info("remote snapshot loaded", slog.String("tab", s.snapshotTab), slog.Int("uids", snap.Len()))
	return snap, nil
}

func conflictSubject(run *RunResult) string {
	return fmt.Sprintf("Bank import %s: %d conflicts need review", run.RunID.String()[:8], run.Conflicts)
}

// RunReport renders every file report of a run.
func RunReport(run *RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d files, %d inserted, %d duplicates, %d conflicts, %d failed\n",
		run.RunID, len(run.Files), run.Inserted, run.Duplicates, run.Conflicts, run.Failed)
	for _, f := range run.Files {
		fmt.Fprintf(&b, "\n### %s (%s)\n", f.FileName, f.Status)
		if f.AlreadyImported {
			b.WriteString("warning: a file with the same content was imported before\n")
		}
		if f.Err != nil {
			fmt.Fprintf(&b, "error: %v\n", f.Err)
			continue
		}
		if f.Prepared != nil {
			for _, d := range f.Prepared.Dropped {
				fmt.Fprintf(&b, "dropped: %s\n", d)
			}
		}
		b.WriteString(f.Report)
		if f.Outcome != nil {
			fmt.Fprintf(&b, "inserted %d, skipped %d at write time, %d errors, next row %d\n",
				f.Outcome.Inserted, f.Outcome.Duplicates, f.Outcome.Errors, f.Outcome.NextAvailableRow)
			for _, m := range f.Outcome.Messages {
				fmt.Fprintf(&b, "  - %s\n", m)
			}
		}
	}
	return b.String()
}

// ============================================================================
// Inbox
// ============================================================================

// ProcessInbox imports every pending inbox file in one run. Files that were
// processed without error are archived; failed files stay for the next
// sweep. Dry and demo runs archive nothing.
func (s *ImportService) ProcessInbox(ctx context.Context, inbox storage.Inbox) (*RunResult, error) {
	pending, err := inbox.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	if len(pending) == 0 {
		s.logger.Debug("inbox is empty")
		return &RunResult{RunID: uuid.New()}, nil
	}

	files := make([]FileInput, 0, len(pending))
	for _, p := range pending {
		data, err := inbox.Read(ctx, p.Name)
		if err != nil {
			s.logger.Error("failed to read inbox file", slog.String("file", p.Name), "error", err)
			continue
		}
		files = append(files, FileInput{Name: p.Name, Data: data})
	}

	run, err := s.ProcessFiles(ctx, files)
	if err != nil {
		return run, err
	}
	if s.Demo() {
		return run, nil
	}

	for _, f := range run.Files {
		if f.Err != nil {
			continue
		}
		if err := inbox.Archive(ctx, f.FileName); err != nil {
			s.logger.Warn("failed to archive inbox file", slog.String("file", f.FileName), "error", err)
		}
	}
	return run, nil
}
