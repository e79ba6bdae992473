package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rpgo/loan-simulator/internal/cache"
	"github.com/rpgo/loan-simulator/internal/calculation"
	"github.com/rpgo/loan-simulator/internal/config"
	"github.com/rpgo/loan-simulator/internal/dashboard"
	"github.com/rpgo/loan-simulator/internal/portfolio"
	"github.com/rpgo/loan-simulator/internal/simulation"
	"github.com/rpgo/loan-simulator/internal/store"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	flagUser     string
	flagDB       string
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "loansim",
	Short:         "Loan overpayment simulator",
	Long:          "Track a loan portfolio, simulate overpayment strategies and follow the monthly execution ledger.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "default", "User the portfolio belongs to")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Application config YAML")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// app is the wired service graph shared by the stateful commands.
type app struct {
	cfg       *config.AppConfig
	logger    *slog.Logger
	store     *store.Store
	cache     cache.DashboardCache
	pool      *simulation.WorkerPool
	sims      *simulation.Service
	portfolio *portfolio.Service
	dashboard *dashboard.Service
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.NewInputParser().LoadAppConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Store.Path = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

func newEngine(cfg *config.AppConfig, logger *slog.Logger) *calculation.ProjectionEngine {
	engine := calculation.NewProjectionEngine()
	engine.MaxMonths = cfg.Projection.MaxMonths
	engine.SetLogger(calculation.NewSlogLogger(logger))
	return engine
}

// openApp opens the store, starts the worker pool and requeues simulations a
// previous process left running.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger()

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	dc, err := cache.New(cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if rc, ok := dc.(*cache.RedisCache); ok {
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis cache unavailable, dashboard will not be cached", "error", err)
			_ = rc.Close()
			dc = cache.NopCache{}
		}
	}

	engine := newEngine(cfg, logger)
	pool := simulation.NewWorkerPool(cfg.Workers.Count, cfg.Workers.QueueSize, logger)
	sims := simulation.NewService(st, pool, engine, logger)
	pool.Start(sims.HandleTask)
	if _, err := sims.RecoverRunning(ctx); err != nil {
		logger.Warn("recovering running simulations", "error", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		cache:     dc,
		pool:      pool,
		sims:      sims,
		portfolio: portfolio.NewService(st, sims, dc, logger),
		dashboard: dashboard.NewService(st, sims, engine, dc, logger),
	}, nil
}

// Close drains the worker pool before closing the store so queued
// simulations finish writing.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.pool.Stop(ctx); err != nil {
		a.logger.Warn("worker pool did not drain", "error", err)
	}
	if rc, ok := a.cache.(*cache.RedisCache); ok {
		_ = rc.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// withApp runs fn against a freshly wired app, cancelling on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseMonth(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q (want YYYY-MM)", s)
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, s)
	}
	return d, nil
}

// optionalDecimal returns nil when the flag was not set on the command line.
func optionalDecimal(cmd *cobra.Command, name, value string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	d, err := parseDecimal(name, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
