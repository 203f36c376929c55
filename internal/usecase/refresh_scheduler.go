package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PassFunc runs one fetch, score and aggregate pass.
type PassFunc func(ctx context.Context) error

// TriggerResult tells a caller what happened to a pass request.
type TriggerResult string

const (
	TriggerStarted   TriggerResult = "started"
	TriggerQueued    TriggerResult = "queued"
	TriggerCoalesced TriggerResult = "coalesced"
)

// RefreshScheduler is a countdown that runs at most one pass at a time. A
// request that arrives while a pass runs is queued; further requests collapse
// into that single pending run.
type RefreshScheduler struct {
	period int
	pass   PassFunc
	logger *zap.Logger

	mu        sync.Mutex
	remaining int
	running   bool
	pending   bool
	passes    int
	wg        sync.WaitGroup
}

func NewRefreshScheduler(periodTicks int, pass PassFunc, logger *zap.Logger) *RefreshScheduler {
	if periodTicks < 1 {
		periodTicks = 1
	}
	return &RefreshScheduler{
		period:    periodTicks,
		pass:      pass,
		logger:    logger.Named("scheduler"),
		remaining: periodTicks,
	}
}

// Tick advances the countdown by one unit. When it reaches zero the countdown
// resets and a pass is requested.
func (s *RefreshScheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remaining--
	if s.remaining > 0 {
		return
	}
	s.remaining = s.period
	s.requestLocked(ctx)
}

// Trigger requests an immediate pass without touching the countdown.
func (s *RefreshScheduler) Trigger(ctx context.Context) TriggerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestLocked(ctx)
}

func (s *RefreshScheduler) requestLocked(ctx context.Context) TriggerResult {
	if s.running {
		if s.pending {
			return TriggerCoalesced
		}
		s.pending = true
		s.logger.Debug("pass already running, queued one more")
		return TriggerQueued
	}
	s.running = true
	s.wg.Add(1)
	go s.loop(ctx)
	return TriggerStarted
}

func (s *RefreshScheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		start := time.Now()
		err := s.pass(ctx)
		if err != nil {
			// the next scheduled tick retries
			s.logger.Warn("refresh pass failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		} else {
			s.logger.Debug("refresh pass completed", zap.Duration("took", time.Since(start)))
		}

		s.mu.Lock()
		s.passes++
		if s.pending && ctx.Err() == nil {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.pending = false
		s.running = false
		s.mu.Unlock()
		return
	}
}

// Remaining returns the ticks left before the next scheduled pass.
func (s *RefreshScheduler) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *RefreshScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Passes returns how many passes have finished.
func (s *RefreshScheduler) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

// Wait blocks until no pass is running.
func (s *RefreshScheduler) Wait() {
	s.wg.Wait()
}

// Run ticks the countdown on every value from ticks until ctx is done.
func (s *RefreshScheduler) Run(ctx context.Context, ticks <-chan time.Time) {
	s.logger.Info("refresh scheduler started", zap.Int("period_ticks", s.period))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopped")
			return
		case <-ticks:
			s.Tick(ctx)
		}
	}
}
