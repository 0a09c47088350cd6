// Command reconciler imports BanBajío statement exports into the shared
// spreadsheet, skipping movements that are already there.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/fixture"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/importlog"
	importservice "github.com/FACorreiaa/bajio-reconciler/internal/domain/import/service"
	"github.com/FACorreiaa/bajio-reconciler/pkg/config"
	"github.com/FACorreiaa/bajio-reconciler/pkg/cron"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	schedule := flag.String("schedule", "", "cron spec for inbox mode (overrides INBOX_SCHEDULE)")
	dryRun := flag.Bool("dry-run", false, "reconcile and report without writing to the spreadsheet")
	demo := flag.Bool("demo", false, "run without any spreadsheet access")
	sortRows := flag.Bool("sort", false, "insert movements newest first")
	exportLog := flag.String("export-log", "", "write the import log as CSV to this path (- for stdout) and exit")
	sample := flag.Int("sample", 0, "print a synthetic statement with this many movements and exit")
	seed := flag.Int64("seed", 0, "seed for -sample, 0 for random")
	flag.Parse()

	if *sample > 0 {
		return writeSample(os.Stdout, *sample, *seed)
	}

	if *demo {
		os.Setenv("DEMO_MODE", "true")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := importservice.Options{
		DryRun:      *dryRun,
		Sort:        *sortRows || cfg.Parser.SortByDate,
		MaxFileSize: cfg.Parser.MaxFileSize(),
	}
	deps, err := InitDependencies(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if cfg.Observability.MetricsEnabled {
		srv := serveMetrics(deps, cfg.Observability.MetricsPort)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if *exportLog != "" {
		return exportImportLog(ctx, deps.ImportLog, *exportLog)
	}

	spec := *schedule
	if spec == "" {
		spec = cfg.Inbox.Schedule
	}

	switch {
	case flag.NArg() > 0:
		return importFiles(ctx, deps, flag.Args())
	case deps.Inbox != nil && spec != "":
		return runScheduled(ctx, deps, spec)
	case deps.Inbox != nil:
		res, err := deps.ImportService.ProcessInbox(ctx, deps.Inbox)
		if err != nil {
			return err
		}
		fmt.Println(importservice.RunReport(res))
		return nil
	default:
		flag.Usage()
		return errors.New("no statement files given and INBOX_DIR is not set")
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func importFiles(ctx context.Context, deps *Dependencies, paths []string) error {
	files := make([]importservice.FileInput, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, importservice.FileInput{Name: filepath.Base(p), Data: data})
	}

	res, err := deps.ImportService.ProcessFiles(ctx, files)
	if err != nil {
		return err
	}
	fmt.Println(importservice.RunReport(res))
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", res.Failed, len(res.Files))
	}
	return nil
}

func runScheduled(ctx context.Context, deps *Dependencies, spec string) error {
	scheduler := cron.NewScheduler(spec, func(ctx context.Context) error {
		_, err := deps.ImportService.ProcessInbox(ctx, deps.Inbox)
		return err
	}, deps.Logger)

	if err := scheduler.Start(); err != nil {
		return err
	}
	scheduler.RunNow()

	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func serveMetrics(deps *Dependencies, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		deps.Logger.Info("metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func exportImportLog(ctx context.Context, log importlog.Store, path string) error {
	entries, err := log.List(ctx, 0)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	if err := importlog.WriteCSV(w, entries); err != nil {
		return fmt.Errorf("failed to export import log: %w", err)
	}
	return nil
}

func writeSample(w io.Writer, n int, seed int64) error {
	gen := fixture.NewGenerator()
	if seed != 0 {
		gen = fixture.NewGeneratorWithSeed(seed)
	}
	_, err := w.Write(fixture.BajioExport("0000000000", gen.Transactions(n)))
	return err
}
