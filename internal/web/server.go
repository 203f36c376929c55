package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/vitos/crypto_intel/internal/domain"
	"github.com/vitos/crypto_intel/internal/usecase"
)

type Server struct {
	router      *http.ServeMux
	server      *http.Server
	dashboard   *usecase.DashboardService
	health      *usecase.HealthMonitor
	scheduler   *usecase.RefreshScheduler
	influencers domain.InfluencerFeed
	hub         *Hub
	recentLimit int
	corsOrigins []string
	logger      *zap.Logger
}

type Options struct {
	Port        int
	RecentLimit int
	CORSOrigins []string
}

func NewServer(
	opts Options,
	dashboard *usecase.DashboardService,
	health *usecase.HealthMonitor,
	scheduler *usecase.RefreshScheduler,
	influencers domain.InfluencerFeed,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	if opts.RecentLimit < 1 {
		opts.RecentLimit = 20
	}
	s := &Server{
		router:      http.NewServeMux(),
		dashboard:   dashboard,
		health:      health,
		scheduler:   scheduler,
		influencers: influencers,
		hub:         hub,
		recentLimit: opts.RecentLimit,
		corsOrigins: opts.CORSOrigins,
		logger:      logger.Named("web"),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Dashboard page
	s.router.HandleFunc("GET /{$}", s.handleIndex)

	// Views and UI events
	s.router.HandleFunc("GET /api/views", s.handleViews)
	s.router.HandleFunc("GET /api/coins", s.handleCoins)
	s.router.HandleFunc("GET /api/history", s.handleHistory)
	s.router.HandleFunc("GET /api/influencers", s.handleInfluencers)
	s.router.HandleFunc("POST /api/sort", s.handleSort)
	s.router.HandleFunc("POST /api/filter", s.handleFilter)
	s.router.HandleFunc("POST /api/retrain", s.handleRetrain)
	s.router.HandleFunc("POST /api/refresh", s.handleRefresh)

	// Status and health
	s.router.HandleFunc("GET /api/status", s.handleStatus)
	s.router.HandleFunc("GET /api/health", s.handleHealth)
	s.router.HandleFunc("POST /api/health/diagnostics", s.handleDiagnostics)
	s.router.HandleFunc("POST /api/health/reset", s.handleResetRecovery)
	s.router.HandleFunc("GET /api/errors", s.handleErrors)

	// Live feed
	s.router.HandleFunc("GET /ws", s.hub.ServeWS)
}

// Handler returns the router wrapped with panic recovery and CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.corsOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.corsOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(false),
	)(h)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
