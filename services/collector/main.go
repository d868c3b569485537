package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/02loveslollipop/printer-page-counter/internal/counter"
	"github.com/02loveslollipop/printer-page-counter/internal/logging"
	"github.com/02loveslollipop/printer-page-counter/internal/series"
	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/config"
	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/cycle"
	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/fleet"
	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/metrics"
	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/models"
	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/snmp"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	fleetFile string
	sources   string
	dataDir   string
	workers   int
	dryRun    bool
	simulate  bool
	logLevel  string
}

func newRootCommand() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:          "collector",
		Short:        "Collect printer page counters into per-printer series",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.fleetFile, "fleet", "", "fleet YAML file (overrides FLEET_FILE)")
	pf.StringVar(&f.sources, "sources", "", "comma-separated source ids (overrides COLLECTOR_SOURCES)")
	pf.StringVar(&f.dataDir, "data-dir", "", "CSV store directory (overrides DATA_DIR)")
	pf.IntVar(&f.workers, "workers", 0, "concurrent sources per cycle (overrides COLLECTOR_WORKERS)")
	pf.BoolVar(&f.dryRun, "dry-run", false, "reconcile without appending")
	pf.BoolVar(&f.simulate, "simulate", false, "use the simulated SNMP reader")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		&cobra.Command{
			Use:   "once",
			Short: "Run a single collection cycle and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOnce(cmd, f)
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run collection cycles on COLLECTOR_SCHEDULE",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runScheduled(cmd, f)
			},
		},
	)
	return root
}

// loadConfig applies command-line overrides on top of the environment.
func loadConfig(pf *pflag.FlagSet, f flags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if pf.Changed("fleet") {
		cfg.FleetFile = f.fleetFile
	}
	if pf.Changed("sources") {
		cfg.Sources = f.sources
	}
	if pf.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if pf.Changed("workers") {
		if f.workers <= 0 {
			return cfg, fmt.Errorf("invalid --workers: %d", f.workers)
		}
		cfg.Workers = f.workers
	}
	if pf.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if pf.Changed("simulate") {
		cfg.SNMPSimulate = f.simulate
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

type app struct {
	cfg     config.Config
	logger  *logrus.Logger
	close   func() error
	cycle   *cycle.Cycle
	entries []models.FleetEntry
}

func setup(ctx context.Context, cmd *cobra.Command, f flags) (*app, error) {
	cfg, err := loadConfig(cmd.Flags(), f)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	entries, err := loadFleet(cfg)
	if err != nil {
		return nil, err
	}

	bucketer, err := counter.ParseBucketer(cfg.PeriodGranularity, cfg.PeriodTimezone)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := series.Open(ctx, series.Options{
		Driver:      cfg.StoreDriver,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}

	var reader cycle.Reader = snmp.NewClient(cfg.SNMPCommunity, cfg.SNMPPort, cfg.SNMPTimeout, cfg.SNMPRetries)
	if cfg.SNMPSimulate {
		logger.Warn("using simulated SNMP reader")
		reader = snmp.NewSimulator()
	}

	c, err := cycle.New(cycle.Config{
		Store:       store,
		Reader:      reader,
		Reconciler:  counter.New(bucketer),
		Workers:     cfg.Workers,
		ReadTimeout: cfg.ReadTimeout,
		Logger:      logger,
		Recorder:    metrics.New(prometheus.DefaultRegisterer),
		DryRun:      cfg.DryRun,
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"store":   cfg.StoreDriver,
		"sources": len(entries),
		"workers": cfg.Workers,
	}).Info("collector configured")

	return &app{cfg: cfg, logger: logger, close: closeStore, cycle: c, entries: entries}, nil
}

func loadFleet(cfg config.Config) ([]models.FleetEntry, error) {
	switch {
	case cfg.FleetFile != "":
		return fleet.LoadFile(cfg.FleetFile)
	case cfg.Sources != "":
		return fleet.FromList(cfg.Sources)
	default:
		return nil, errors.New("no fleet configured: set FLEET_FILE or COLLECTOR_SOURCES")
	}
}

// collect resolves addresses afresh and runs one cycle.
func (a *app) collect(ctx context.Context) cycle.Summary {
	sources := fleet.Resolve(ctx, net.DefaultResolver, a.entries, a.logger)
	return a.cycle.Run(ctx, sources)
}

func runOnce(cmd *cobra.Command, f flags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, f)
	if err != nil {
		return err
	}
	defer a.close()

	return a.collect(ctx).Err()
}

func runScheduled(cmd *cobra.Command, f flags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, f)
	if err != nil {
		return err
	}
	defer a.close()

	srv := a.serveMetrics()

	var (
		mu      sync.Mutex
		stopped bool
		running sync.WaitGroup
	)
	job := func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		running.Add(1)
		mu.Unlock()
		defer running.Done()
		if err := a.collect(ctx).Err(); err != nil {
			a.logger.WithError(err).Error("collection cycle had store failures")
		}
	}

	sched := cron.New()
	if err := sched.AddFunc(a.cfg.Schedule, job); err != nil {
		return fmt.Errorf("invalid COLLECTOR_SCHEDULE: %w", err)
	}
	sched.Start()
	a.logger.WithField("schedule", a.cfg.Schedule).Info("scheduler started")

	job()
	<-ctx.Done()

	a.logger.Info("shutting down")
	sched.Stop()
	mu.Lock()
	stopped = true
	mu.Unlock()
	running.Wait()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}

func (a *app) serveMetrics() *http.Server {
	if a.cfg.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.WithField("addr", a.cfg.MetricsAddr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("metrics server failed")
		}
	}()
	return srv
}
