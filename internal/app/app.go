package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitos/crypto_intel/internal/config"
	"github.com/vitos/crypto_intel/internal/domain"
	"github.com/vitos/crypto_intel/internal/infrastructure/marketdata"
	"github.com/vitos/crypto_intel/internal/infrastructure/storage"
	"github.com/vitos/crypto_intel/internal/usecase"
	"github.com/vitos/crypto_intel/internal/web"
)

const shutdownTimeout = 5 * time.Second

// App holds the wired dashboard components.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Source    *marketdata.MockSource
	Journal   *storage.JournalStore
	Scorer    *usecase.ScoringEngine
	Health    *usecase.HealthMonitor
	Dashboard *usecase.DashboardService
	Scheduler *usecase.RefreshScheduler
	Hub       *web.Hub
	Server    *web.Server

	unsubscribe func()
}

// New builds every component from cfg. Nothing runs until Run.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	journal, err := storage.NewJournalStore(cfg.Journal.DSN, cfg.Journal.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	source := marketdata.NewMockSource(marketdata.Options{
		FetchLatency: cfg.MarketData.FetchLatency,
		FailureRate:  cfg.MarketData.FailureRate,
		Seed:         cfg.MarketData.Seed,
		MaxHistory:   cfg.MarketData.MaxHistory,
	}, logger)

	apis := make([]marketdata.API, 0, len(cfg.APIs))
	for _, a := range cfg.APIs {
		apis = append(apis, marketdata.API{Name: a.Name, Availability: a.Availability})
	}
	var prober domain.APIProber
	if len(apis) > 0 {
		prober = marketdata.NewSimulatedProber(apis, cfg.MarketData.Seed)
	}

	scorer := usecase.NewScoringEngine(usecase.HeuristicModel{}, usecase.ScoringOptions{
		InitDelay:          cfg.Scoring.InitDelay,
		RetrainDelay:       cfg.Scoring.RetrainDelay,
		BreakoutLatency:    cfg.Scoring.BreakoutLatency,
		InflowLatency:      cfg.Scoring.InflowLatency,
		FundamentalLatency: cfg.Scoring.FundamentalLatency,
		Workers:            cfg.Scoring.Workers,
	}, logger)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		Source:  source,
		Journal: journal,
		Scorer:  scorer,
	}
	a.Health = usecase.NewHealthMonitor(source, scorer, prober, journal, cfg.Health.MaxRecoveryAttempts, logger)

	a.Dashboard = usecase.NewDashboardService(source, scorer, a.Health, usecase.DisplayOptions{
		TopN:              cfg.Display.TopN,
		BreakoutThreshold: cfg.Display.BreakoutThreshold,
		InflowThreshold:   cfg.Display.InflowThreshold,
	}, logger)
	a.Scheduler = usecase.NewRefreshScheduler(cfg.Refresh.PeriodTicks, a.Dashboard.RunPass, logger)

	a.Hub = web.NewHub(a.Dashboard.Snapshot, logger)
	a.unsubscribe = a.Dashboard.Subscribe(a.Hub.Publish)

	a.Server = web.NewServer(web.Options{
		Port:        cfg.Server.Port,
		RecentLimit: cfg.Journal.RecentLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, a.Dashboard, a.Health, a.Scheduler, source, a.Hub, logger)

	return a, nil
}

// Run initializes the dashboard and serves until ctx is done. A failed
// initialization is logged and left to the health monitor to recover.
func (a *App) Run(ctx context.Context) error {
	if err := a.Dashboard.Initialize(ctx); err != nil {
		a.logger.Error("Initialization failed", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Refresh.Tick)
		defer ticker.Stop()
		a.Scheduler.Run(gctx, ticker.C)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Health.Interval)
		defer ticker.Stop()
		a.Health.Run(gctx, ticker.C)
		return nil
	})

	g.Go(a.Server.Start)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown failed", zap.Error(err))
		}
		a.Scheduler.Wait()
		return nil
	})

	return g.Wait()
}

func (a *App) Config() *config.Config {
	return a.cfg
}

// Close releases the journal and detaches the hub.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	return a.Journal.Close()
}
