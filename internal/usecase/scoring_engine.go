package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitos/crypto_intel/internal/domain"
)

const (
	scoreBaseline = 0.5
	scoreMin      = 0.01
	scoreMax      = 0.99
)

// HeuristicModel is the rule-table implementation of domain.ScoreModel.
// Each score starts at the baseline and each matching rule adds its weight.
type HeuristicModel struct{}

func (HeuristicModel) Breakout(f domain.Features) float64 {
	score := scoreBaseline
	if f.VolumeChange24h > 2 {
		score += 0.20
	}
	if f.PriceChange24h > 0.1 {
		score += 0.15
	}
	if f.PriceChange7d > 0.3 {
		score += 0.10
	}
	if f.SocialVolume > 500 {
		score += 0.05
	}
	return clampScore(score)
}

func (HeuristicModel) Inflow(f domain.Features) float64 {
	score := scoreBaseline
	if f.VolumeChange24h > 1.5 {
		score += 0.20
	}
	if f.PriceChange1h > 0.05 {
		score += 0.15
	}
	if f.MarketCapRank < 50 {
		score += 0.10
	}
	return clampScore(score)
}

func (HeuristicModel) Fundamental(f domain.Features) float64 {
	score := scoreBaseline
	if f.Age > 365 {
		score += 0.20
	}
	if f.DevelopmentActivity > 50 {
		score += 0.15
	}
	if f.CommunityScore > 70 {
		score += 0.10
	}
	return clampScore(score)
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return scoreBaseline
	}
	return math.Max(scoreMin, math.Min(scoreMax, v))
}

// ExtractFeatures normalizes a coin into model inputs. Percent changes are
// scaled to fractions; the remaining fields are used as reported.
func ExtractFeatures(c domain.Coin) domain.Features {
	return domain.Features{
		VolumeChange24h:     c.VolumeChange24h,
		PriceChange24h:      c.Change24h / 100,
		PriceChange1h:       c.PriceChange1h / 100,
		PriceChange7d:       c.PriceChange7d / 100,
		SocialVolume:        float64(c.SocialVolume),
		MarketCapRank:       float64(c.MarketCapRank),
		Age:                 float64(c.Age),
		DevelopmentActivity: c.DevelopmentActivity,
		CommunityScore:      c.CommunityScore,
	}
}

// ModelInfo describes the loaded models.
type ModelInfo struct {
	Initialized bool              `json:"initialized"`
	Versions    map[string]string `json:"versions"`
	LastTrained time.Time         `json:"last_trained"`
}

// ScoreFailure records a coin that could not be scored.
type ScoreFailure struct {
	Index  int
	Symbol string
	Err    error
}

type ScoringOptions struct {
	InitDelay          time.Duration
	RetrainDelay       time.Duration
	BreakoutLatency    time.Duration
	InflowLatency      time.Duration
	FundamentalLatency time.Duration
	Workers            int
}

// ScoringEngine annotates coins with breakout, inflow and fundamental scores.
type ScoringEngine struct {
	model  domain.ScoreModel
	opts   ScoringOptions
	logger *zap.Logger

	mu          sync.RWMutex
	initialized bool
	versions    map[string]string
	lastTrained time.Time
	timeNow     func() time.Time
}

func NewScoringEngine(model domain.ScoreModel, opts ScoringOptions, logger *zap.Logger) *ScoringEngine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &ScoringEngine{
		model:    model,
		opts:     opts,
		logger:   logger.Named("scoring"),
		versions: make(map[string]string),
		timeNow:  time.Now,
	}
}

// Initialize loads the models. It is also the recovery entry point.
func (e *ScoringEngine) Initialize(ctx context.Context) error {
	if err := sleepCtx(ctx, e.opts.InitDelay); err != nil {
		return fmt.Errorf("model initialization interrupted: %w", err)
	}

	e.mu.Lock()
	e.initialized = true
	e.versions = map[string]string{
		"breakout":     "1.2",
		"inflow":       "1.1",
		"fundamentals": "1.0",
	}
	e.lastTrained = e.timeNow()
	e.mu.Unlock()

	e.logger.Info("models initialized")
	return nil
}

func (e *ScoringEngine) IsInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// Retrain simulates a training run and bumps the breakout model's minor version.
func (e *ScoringEngine) Retrain(ctx context.Context) error {
	if !e.IsInitialized() {
		return domain.ErrModelNotInitialized
	}
	if err := sleepCtx(ctx, e.opts.RetrainDelay); err != nil {
		return fmt.Errorf("retrain interrupted: %w", err)
	}

	e.mu.Lock()
	e.versions["breakout"] = bumpMinor(e.versions["breakout"])
	e.lastTrained = e.timeNow()
	version := e.versions["breakout"]
	e.mu.Unlock()

	e.logger.Info("models retrained", zap.String("breakout_version", version))
	return nil
}

func (e *ScoringEngine) ModelInfo() ModelInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	versions := make(map[string]string, len(e.versions))
	for k, v := range e.versions {
		versions[k] = v
	}
	return ModelInfo{
		Initialized: e.initialized,
		Versions:    versions,
		LastTrained: e.lastTrained,
	}
}

// Score computes the three scores for one coin. It reads nothing but the coin.
func (e *ScoringEngine) Score(ctx context.Context, coin domain.Coin) (domain.ScoreSet, error) {
	if !e.IsInitialized() {
		return domain.ScoreSet{}, domain.ErrModelNotInitialized
	}
	if err := coin.Validate(); err != nil {
		return domain.ScoreSet{}, fmt.Errorf("%w: %v", domain.ErrScoringFailure, err)
	}

	f := ExtractFeatures(coin)
	var scores domain.ScoreSet
	steps := []struct {
		latency time.Duration
		run     func()
	}{
		{e.opts.BreakoutLatency, func() { scores.Breakout = clampScore(e.model.Breakout(f)) }},
		{e.opts.InflowLatency, func() { scores.Inflow = clampScore(e.model.Inflow(f)) }},
		{e.opts.FundamentalLatency, func() { scores.Fundamental = clampScore(e.model.Fundamental(f)) }},
	}
	for _, step := range steps {
		if err := sleepCtx(ctx, step.latency); err != nil {
			return domain.ScoreSet{}, fmt.Errorf("%w: %v", domain.ErrScoringFailure, err)
		}
		step.run()
	}
	return scores, nil
}

// ScoreBatch scores copies of coins in parallel. The output keeps the input
// order; a coin that fails to score gets domain.DefaultScores.
func (e *ScoringEngine) ScoreBatch(ctx context.Context, coins []domain.Coin) ([]domain.Coin, []ScoreFailure) {
	out := make([]domain.Coin, len(coins))
	errs := make([]error, len(coins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range coins {
		out[i] = coins[i]
		g.Go(func() error {
			scores, err := e.Score(gctx, coins[i])
			if err != nil {
				errs[i] = err
				scores = domain.DefaultScores
			}
			out[i].Scores = &scores
			return nil
		})
	}
	_ = g.Wait()

	var failures []ScoreFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, ScoreFailure{Index: i, Symbol: coins[i].Symbol, Err: err})
		}
	}
	if len(failures) > 0 {
		e.logger.Warn("batch scored with failures",
			zap.Int("coins", len(coins)), zap.Int("failures", len(failures)))
	}
	return out, failures
}

func bumpMinor(version string) string {
	major, minor, ok := strings.Cut(version, ".")
	if !ok {
		return version + ".1"
	}
	n, err := strconv.Atoi(minor)
	if err != nil {
		return version
	}
	return major + "." + strconv.Itoa(n+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
