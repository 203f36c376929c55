package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitos/crypto_intel/internal/domain"
)

// BatchScorer is the scoring surface the dashboard drives.
type BatchScorer interface {
	Initialize(ctx context.Context) error
	ScoreBatch(ctx context.Context, coins []domain.Coin) ([]domain.Coin, []ScoreFailure)
	ModelInfo() ModelInfo
	Retrain(ctx context.Context) error
}

// HealthController is the health monitor surface the dashboard drives.
type HealthController interface {
	LogError(ctx context.Context, entryType string, severity domain.Severity, message string, details map[string]any) error
	RunDiagnostics(ctx context.Context) domain.HealthReport
}

type UpdateType string

const (
	UpdateViews  UpdateType = "views"
	UpdateStatus UpdateType = "status"
)

// Update is pushed to subscribers whenever the views or the status line change.
type Update struct {
	Type   UpdateType         `json:"type"`
	Views  *Views             `json:"views,omitempty"`
	Status *domain.StatusLine `json:"status,omitempty"`
}

type DisplayOptions struct {
	TopN              int
	BreakoutThreshold float64
	InflowThreshold   float64
}

// DashboardService ties fetching, scoring and aggregation together and owns
// the current batch, the view selection and the status line.
type DashboardService struct {
	source domain.MarketDataSource
	scorer BatchScorer
	health HealthController
	opts   DisplayOptions
	logger *zap.Logger

	mu          sync.RWMutex
	batch       []domain.Coin
	state       ViewState
	views       Views
	status      domain.StatusLine
	lastUpdated time.Time

	subMu       sync.Mutex
	subscribers map[string]func(Update)

	timeNow func() time.Time
}

func NewDashboardService(
	source domain.MarketDataSource,
	scorer BatchScorer,
	health HealthController,
	opts DisplayOptions,
	logger *zap.Logger,
) *DashboardService {
	s := &DashboardService{
		source:      source,
		scorer:      scorer,
		health:      health,
		opts:        opts,
		logger:      logger.Named("dashboard"),
		state:       DefaultViewState(),
		subscribers: make(map[string]func(Update)),
		timeNow:     time.Now,
	}
	s.status = domain.NewStatusLine("Initializing system...", domain.StatusInfo, s.timeNow())
	s.views = s.buildLocked()
	return s
}

// Initialize loads the models and runs the first pass.
func (s *DashboardService) Initialize(ctx context.Context) error {
	if err := s.scorer.Initialize(ctx); err != nil {
		s.setStatus(fmt.Sprintf("Initialization failed: %v", err), domain.StatusError)
		return fmt.Errorf("failed to initialize models: %w", err)
	}
	if err := s.RunPass(ctx); err != nil {
		s.setStatus(fmt.Sprintf("Initialization failed: %v", err), domain.StatusError)
		return err
	}
	s.setStatus("System operational. Monitoring markets...", domain.StatusSuccess)
	return nil
}

// RunPass fetches a fresh batch, scores it and rebuilds the views. A fetch
// failure leaves the previous batch in place.
func (s *DashboardService) RunPass(ctx context.Context) error {
	log := s.logger.With(zap.String("pass_id", uuid.NewString()))

	s.setStatus("Fetching market data...", domain.StatusInfo)
	coins, err := s.source.FetchBatch(ctx)
	if err != nil {
		log.Error("market data fetch failed", zap.Error(err))
		s.setStatus(fmt.Sprintf("Data fetch failed: %v", err), domain.StatusError)
		if lerr := s.health.LogError(ctx, domain.EntryDataFetch, domain.SeverityError,
			"Failed to fetch market data", map[string]any{"error": err.Error()}); lerr != nil {
			log.Error("failed to journal fetch error", zap.Error(lerr))
		}
		if errors.Is(err, domain.ErrDataUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}

	s.setStatus("Running AI analysis...", domain.StatusInfo)
	scored, failures := s.scorer.ScoreBatch(ctx, coins)
	for _, f := range failures {
		log.Warn("coin scoring failed", zap.String("symbol", f.Symbol), zap.Error(f.Err))
		if lerr := s.health.LogError(ctx, domain.EntryScoring, domain.SeverityError,
			fmt.Sprintf("Failed to process coin %s", f.Symbol),
			map[string]any{"symbol": f.Symbol, "error": f.Err.Error()}); lerr != nil {
			log.Error("failed to journal scoring error", zap.Error(lerr))
		}
	}

	s.mu.Lock()
	s.batch = scored
	s.lastUpdated = s.timeNow()
	s.views = s.buildLocked()
	views := s.views
	s.mu.Unlock()
	s.publish(Update{Type: UpdateViews, Views: &views})

	log.Info("refresh pass complete", zap.Int("coins", len(scored)), zap.Int("scoring_failures", len(failures)))
	s.setStatus("Data updated successfully", domain.StatusSuccess)
	return nil
}

// SelectSort applies a column selection and re-aggregates the current batch.
func (s *DashboardService) SelectSort(field string) (Views, error) {
	if !domain.IsSortableField(field) {
		return Views{}, fmt.Errorf("unknown sort field %q", field)
	}
	return s.updateState(func(st ViewState) ViewState { return st.WithSort(field) }), nil
}

func (s *DashboardService) SetFilter(mode FilterMode) (Views, error) {
	if _, err := ParseFilterMode(string(mode)); err != nil {
		return Views{}, err
	}
	return s.updateState(func(st ViewState) ViewState {
		st.Filter = mode
		return st
	}), nil
}

func (s *DashboardService) updateState(fn func(ViewState) ViewState) Views {
	s.mu.Lock()
	s.state = fn(s.state)
	s.views = s.buildLocked()
	views := s.views
	s.mu.Unlock()
	s.publish(Update{Type: UpdateViews, Views: &views})
	return views
}

// Retrain retrains the models and refreshes the system info.
func (s *DashboardService) Retrain(ctx context.Context) error {
	s.setStatus("Retraining AI models...", domain.StatusInfo)
	if err := s.scorer.Retrain(ctx); err != nil {
		s.setStatus(fmt.Sprintf("Model retraining failed: %v", err), domain.StatusError)
		return fmt.Errorf("failed to retrain models: %w", err)
	}
	s.updateState(func(st ViewState) ViewState { return st })
	s.setStatus("Models retrained successfully", domain.StatusSuccess)
	return nil
}

func (s *DashboardService) RunDiagnostics(ctx context.Context) domain.HealthReport {
	s.setStatus("Running system diagnostics...", domain.StatusInfo)
	report := s.health.RunDiagnostics(ctx)
	if report.Overall == domain.OverallHealthy {
		s.setStatus("System diagnostics passed", domain.StatusSuccess)
	} else {
		s.setStatus("System issues detected", domain.StatusWarning)
	}
	return report
}

func (s *DashboardService) buildLocked() Views {
	return BuildViews(ViewInput{
		Coins:             s.batch,
		History:           s.source.History(),
		State:             s.state,
		Model:             s.scorer.ModelInfo(),
		Now:               s.timeNow(),
		TopN:              s.opts.TopN,
		BreakoutThreshold: s.opts.BreakoutThreshold,
		InflowThreshold:   s.opts.InflowThreshold,
	})
}

func (s *DashboardService) Views() Views {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views
}

// Coins returns a copy of the current scored batch.
func (s *DashboardService) Coins() []domain.Coin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Coin(nil), s.batch...)
}

func (s *DashboardService) Status() domain.StatusLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *DashboardService) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

func (s *DashboardService) History() []domain.HistoricalSnapshot {
	return s.source.History()
}

func (s *DashboardService) setStatus(message string, level domain.StatusLevel) {
	line := domain.NewStatusLine(message, level, s.timeNow())
	s.mu.Lock()
	s.status = line
	s.mu.Unlock()
	s.publish(Update{Type: UpdateStatus, Status: &line})
}

// Subscribe registers fn for every update and returns a func that removes it.
// fn runs synchronously and must not block.
func (s *DashboardService) Subscribe(fn func(Update)) func() {
	id := uuid.NewString()
	s.subMu.Lock()
	s.subscribers[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *DashboardService) publish(u Update) {
	s.subMu.Lock()
	subs := make([]func(Update), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(u)
	}
}

// Snapshot returns the updates a new subscriber needs to catch up.
func (s *DashboardService) Snapshot() []Update {
	s.mu.RLock()
	views, status := s.views, s.status
	s.mu.RUnlock()
	return []Update{
		{Type: UpdateViews, Views: &views},
		{Type: UpdateStatus, Status: &status},
	}
}
