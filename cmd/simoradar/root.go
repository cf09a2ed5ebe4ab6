package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/amishk599/simoradar/internal/config"
	"github.com/amishk599/simoradar/internal/driver"
	"github.com/amishk599/simoradar/internal/export"
	"github.com/amishk599/simoradar/internal/extract"
	"github.com/amishk599/simoradar/internal/filter"
	"github.com/amishk599/simoradar/internal/model"
	"github.com/amishk599/simoradar/internal/notifier"
	"github.com/amishk599/simoradar/internal/pipeline"
	"github.com/amishk599/simoradar/internal/ratelimit"
	"github.com/amishk599/simoradar/internal/reconcile"
	"github.com/amishk599/simoradar/internal/retry"
	"github.com/amishk599/simoradar/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "simoradar",
	Short: "SIMO vacancy acquisition pipeline",
	Long:  "simoradar pages through the SIMO public vacancy offer, normalizes every listing and reconciles it into a local store.",
	// Default to `run` so that `simoradar` with no args performs one pass.
	// An external cron entry can invoke the binary directly.
	RunE:          runRun,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: SIMORADAR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	addRunFlags(rootCmd)
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > SIMORADAR_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("SIMORADAR_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	return newLogger(os.Stdout, dbg, false)
}

// newLogger builds the text logger. quiet keeps only warnings and errors,
// used while the progress display owns the terminal.
func newLogger(w io.Writer, dbg, quiet bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch {
	case dbg:
		logLevel = slog.LevelDebug
	case quiet:
		logLevel = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// newHTTPClient returns the client used toward the source: bounded by the
// configured timeout and paced per host.
func newHTTPClient(cfg *config.Config) *http.Client {
	limiter := ratelimit.NewHostLimiter(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst)
	return &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: ratelimit.NewTransport(http.DefaultTransport, limiter),
	}
}

func buildDriver(cfg *config.Config, client *http.Client, logger *slog.Logger) model.PaginationDriver {
	switch cfg.Source.Driver {
	case "interactive":
		return driver.NewInteractiveDriver(newPageOpener(cfg, client, logger), driver.InteractiveConfig{
			PollAttempts:  cfg.Source.Interactive.PollAttempts,
			PollInterval:  cfg.Source.Interactive.PollInterval,
			ActionTimeout: cfg.Source.PageTimeout,
			MaxPages:      cfg.Source.MaxPages,
		}, logger)
	default:
		policy := retry.NewPolicy(cfg.HTTP.MaxRetries, cfg.HTTP.BaseDelay, logger)
		return driver.NewResourceDriver(driver.ResourceConfig{
			URL:         cfg.Source.Resource.URL,
			PageSize:    cfg.Source.Resource.PageSize,
			MaxPages:    cfg.Source.MaxPages,
			TotalHeader: cfg.Source.Resource.TotalHeader,
			PageTimeout: cfg.Source.PageTimeout,
			Concurrency: cfg.Source.Resource.Concurrency,
		}, client, policy, logger)
	}
}

func newPageOpener(cfg *config.Config, client *http.Client, logger *slog.Logger) *driver.HTMLPageOpener {
	return driver.NewHTMLPageOpener(cfg.Source.Interactive.URL, client, logger)
}

func setupReporters(cfg *config.Config, client *http.Client, logger *slog.Logger) []model.Reporter {
	reporters := []model.Reporter{notifier.NewLogReporter(logger)}
	if cfg.Notification.Type == "slack" {
		logger.Info("using slack run reporter", "only_errors", cfg.Notification.OnlyErrors)
		reporters = append(reporters, notifier.NewSlackReporter(cfg.Notification.WebhookURL, client, cfg.Notification.OnlyErrors, logger))
	}
	return reporters
}

func openStore(ctx context.Context, cfg *config.Config) (*store.DB, error) {
	return store.Open(ctx, store.Config{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DSN:    cfg.Store.DSN,
	})
}

// app is everything a pass needs, wired from the config.
type app struct {
	orch   *pipeline.Orchestrator
	runner *pipeline.Runner
	db     *store.DB // nil in dry-run mode
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// buildApp wires driver → orchestrator → sink → runner. In dry-run mode the
// no-op store stands in for the database and nothing is exported.
func buildApp(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (*app, error) {
	client := newHTTPClient(cfg)
	orch := pipeline.NewOrchestrator(
		buildDriver(cfg, client, logger),
		extract.New(),
		filter.NewPredicate(cfg.ExactLevel),
		logger,
	)
	orch.SetMaxPages(cfg.Source.MaxPages)

	a := &app{orch: orch}
	var (
		sink     model.RecordSink
		runs     model.RunLogStore
		exporter pipeline.Exporter
	)
	if dryRun {
		nop := store.NewNopStore()
		sink, runs = nop, nop
	} else {
		db, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
		sink = reconcile.NewSink(db, cfg.Store.BatchSize, logger)
		runs = db
		if cfg.ExportPath != "" {
			exporter = export.NewFileExporter(cfg.ExportPath)
		}
	}

	a.runner = pipeline.NewRunner(orch, sink, runs, exporter, setupReporters(cfg, client, logger), logger)
	return a, nil
}

var errPassInProgress = errors.New("another pass holds the lock")

// lockedRunner refuses to start a pass while another process runs one.
type lockedRunner struct {
	runner *pipeline.Runner
	lock   *flock.Flock
	logger *slog.Logger
}

func newLockedRunner(runner *pipeline.Runner, lockFile string, logger *slog.Logger) *lockedRunner {
	return &lockedRunner{runner: runner, lock: flock.New(lockFile), logger: logger}
}

func (l *lockedRunner) RunPass(ctx context.Context, filters model.Filters) (model.RunLog, *pipeline.Result, error) {
	ok, err := l.lock.TryLock()
	if err != nil {
		return model.RunLog{}, &pipeline.Result{State: pipeline.StateFailed}, fmt.Errorf("acquire pass lock %s: %w", l.lock.Path(), err)
	}
	if !ok {
		l.logger.Warn("pass skipped", "lock", l.lock.Path(), "reason", errPassInProgress)
		return model.RunLog{}, &pipeline.Result{State: pipeline.StateFailed}, errPassInProgress
	}
	defer l.lock.Unlock()
	return l.runner.RunPass(ctx, filters)
}
