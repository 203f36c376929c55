package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitos/crypto_intel/internal/app"
	"github.com/vitos/crypto_intel/internal/config"
	"github.com/vitos/crypto_intel/internal/infrastructure/logger"
	"github.com/vitos/crypto_intel/internal/usecase"
)

var (
	configPath string
	logLevel   string

	snapshotSort   string
	snapshotFilter string
	snapshotJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Crypto market intelligence dashboard",
	Long: `Scores a simulated market for breakout, inflow and fundamental strength
and serves the results as a live web dashboard.

Without a subcommand the dashboard server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard server",
	Long: `Start the web dashboard: the refresh countdown, the health monitor,
the websocket feed and the HTTP API.

Examples:
  dashboard serve
  dashboard serve --config config.yaml
  dashboard serve --log-level debug`,
	RunE: runServe,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one pass and print the views",
	Long: `Initialize the models, fetch and score one batch, and print the
prediction, performance and counter views to the terminal.

Examples:
  dashboard snapshot
  dashboard snapshot --sort inflowScore --filter gainers
  dashboard snapshot --json`,
	RunE: runSnapshot,
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run one pass and a health diagnostic",
	RunE:  runDiagnose,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override logging.level (debug, info, warn, error)")

	snapshotCmd.Flags().StringVar(&snapshotSort, "sort", "", "sort field, e.g. breakoutScore, price, change24h")
	snapshotCmd.Flags().StringVar(&snapshotFilter, "filter", "all", "filter mode: all, gainers, losers")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the views as JSON")

	rootCmd.AddCommand(serveCmd, snapshotCmd, diagnoseCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup loads the config and builds the logger and the wired app.
func setup() (*app.App, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	a, err := app.New(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting dashboard")
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("dashboard stopped: %w", err)
	}
	log.Info("Dashboard stopped")
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	mode, err := usecase.ParseFilterMode(snapshotFilter)
	if err != nil {
		return err
	}

	a, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Dashboard.Initialize(ctx); err != nil {
		return err
	}
	if snapshotSort != "" {
		if _, err := a.Dashboard.SelectSort(snapshotSort); err != nil {
			return err
		}
	}
	views, err := a.Dashboard.SetFilter(mode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if snapshotJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	fmt.Fprintln(out, renderViews(views, a.Dashboard.Status()))
	return nil
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	a, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Dashboard.Initialize(ctx); err != nil {
		log.Warn("Initialization failed, diagnosing anyway", zap.Error(err))
	}
	report := a.Dashboard.RunDiagnostics(ctx)
	entries, err := a.Health.ErrorLog(ctx, a.Config().Journal.RecentLimit)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderHealth(healthView{
		Report:   report,
		DownAPIs: usecase.DownAPIs(report),
		Attempts: a.Health.RecoveryAttempts(),
		Tripped:  a.Health.Exhausted(),
		Status:   a.Dashboard.Status(),
		Entries:  entries,
	}))
	return nil
}
