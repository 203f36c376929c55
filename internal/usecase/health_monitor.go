package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_intel/internal/domain"
)

// ModelRuntime is the part of the scoring engine the health monitor probes and recovers.
type ModelRuntime interface {
	IsInitialized() bool
	Initialize(ctx context.Context) error
}

// HealthMonitor evaluates subsystem health and drives bounded self-recovery.
type HealthMonitor struct {
	source  domain.MarketDataSource
	models  ModelRuntime
	prober  domain.APIProber
	journal domain.ErrorJournal
	logger  *zap.Logger

	maxAttempts int32
	attempts    atomic.Int32

	// recoveryMu serialises recovery bodies; the counter itself is lock-free.
	recoveryMu sync.Mutex

	mu         sync.RWMutex
	lastReport domain.HealthReport
	hasReport  bool

	timeNow func() time.Time
}

func NewHealthMonitor(
	source domain.MarketDataSource,
	models ModelRuntime,
	prober domain.APIProber,
	journal domain.ErrorJournal,
	maxAttempts int,
	logger *zap.Logger,
) *HealthMonitor {
	return &HealthMonitor{
		source:      source,
		models:      models,
		prober:      prober,
		journal:     journal,
		logger:      logger.Named("health"),
		maxAttempts: int32(maxAttempts),
		timeNow:     time.Now,
	}
}

// Evaluate probes every subsystem and combines the results. It has no side effects.
func (m *HealthMonitor) Evaluate(ctx context.Context) domain.HealthReport {
	r := domain.HealthReport{
		Timestamp:   m.timeNow(),
		DataService: m.probeDataService(),
		Scoring:     m.probeModels(),
		APIs:        m.probeAPIs(ctx),
	}
	r.Overall = domain.CombineHealth(r.Subsystems()...)
	return r
}

func (m *HealthMonitor) probeDataService() domain.SubsystemReport {
	rep := domain.SubsystemReport{Name: domain.SubsystemDataService, Required: true}
	connected := m.source.IsConnected()
	count := len(m.source.Coins())
	rep.Details = map[string]string{
		"connected": fmt.Sprint(connected),
		"coins":     fmt.Sprint(count),
	}
	switch {
	case !connected:
		rep.Status = domain.StatusUnhealthy
		rep.Message = "Data service is not connected"
	case count == 0:
		rep.Status = domain.StatusCritical
		rep.Message = "Data service has no data"
	default:
		rep.Status = domain.StatusHealthy
		rep.Message = "Data service is operational"
	}
	return rep
}

func (m *HealthMonitor) probeModels() domain.SubsystemReport {
	rep := domain.SubsystemReport{Name: domain.SubsystemScoring, Required: true}
	if m.models.IsInitialized() {
		rep.Status = domain.StatusHealthy
		rep.Message = "ML models are operational"
	} else {
		rep.Status = domain.StatusCritical
		rep.Message = "ML models are not initialized"
	}
	return rep
}

func (m *HealthMonitor) probeAPIs(ctx context.Context) domain.SubsystemReport {
	rep := domain.SubsystemReport{Name: domain.SubsystemAPIs, Status: domain.StatusHealthy}
	if m.prober == nil {
		rep.Message = "No auxiliary APIs configured"
		return rep
	}

	statuses := m.prober.Probe(ctx)
	rep.Details = make(map[string]string, len(statuses))
	down := 0
	for name, status := range statuses {
		rep.Details[name] = string(status)
		if status != domain.StatusHealthy {
			down++
		}
	}
	switch {
	case down == 0:
		rep.Message = "All APIs are operational"
	case down == 1:
		rep.Status = domain.StatusUnhealthy
		rep.Message = "Some APIs are degraded"
	default:
		rep.Status = domain.StatusCritical
		rep.Message = "Multiple APIs are unavailable"
	}
	return rep
}

// Check evaluates health, records it, and attempts recovery when the system is
// not healthy. The returned report is the pre-recovery evaluation.
func (m *HealthMonitor) Check(ctx context.Context) domain.HealthReport {
	report := m.Evaluate(ctx)
	m.setLastReport(report)

	severity := domain.SeverityInfo
	if report.Overall != domain.OverallHealthy {
		severity = domain.SeverityWarning
	}
	m.appendEntry(ctx, domain.EntryHealthCheck, severity,
		fmt.Sprintf("System health check: %s", report.Overall),
		map[string]any{"report": report})

	m.logger.Debug("health check", zap.String("overall", string(report.Overall)))

	if report.Overall != domain.OverallHealthy {
		if _, err := m.AttemptRecovery(ctx, report); err != nil {
			m.logger.Warn("recovery did not restore health", zap.Error(err))
		}
	}
	return report
}

// AttemptRecovery re-initialises every non-healthy recoverable subsystem in
// report and evaluates once more. The attempt counter saturates at max+1;
// once past max it returns domain.ErrRecoveryExhausted until reset. A system
// still critical after the attempt yields domain.ErrSubsystemCritical.
func (m *HealthMonitor) AttemptRecovery(ctx context.Context, report domain.HealthReport) (bool, error) {
	attempt, tripped, first := m.nextAttempt()
	if tripped {
		// only the transition journals; later calls return without writing
		if first {
			m.logger.Error("max recovery attempts reached, manual intervention required",
				zap.Int32("attempts", attempt))
			m.appendEntry(ctx, domain.EntryRecoveryFailed, domain.SeverityCritical,
				"Maximum recovery attempts reached",
				map[string]any{"recoveryAttempts": attempt})
		}
		return false, domain.ErrRecoveryExhausted
	}

	m.recoveryMu.Lock()
	defer m.recoveryMu.Unlock()

	m.logger.Info("attempting system recovery", zap.Int32("attempt", attempt))

	var recovered []string
	if report.DataService.Status != domain.StatusHealthy {
		recovered = append(recovered, domain.SubsystemDataService)
		if err := m.source.Initialize(ctx); err != nil {
			m.recoveryError(ctx, domain.SubsystemDataService, err)
		}
	}
	if report.Scoring.Status != domain.StatusHealthy {
		recovered = append(recovered, domain.SubsystemScoring)
		if err := m.models.Initialize(ctx); err != nil {
			m.recoveryError(ctx, domain.SubsystemScoring, err)
		}
	}

	m.appendEntry(ctx, domain.EntryRecoveryAttempt, domain.SeverityWarning,
		fmt.Sprintf("Recovery attempt %d", attempt),
		map[string]any{"subsystems": recovered, "overall": report.Overall})

	after := m.Evaluate(ctx)
	m.setLastReport(after)
	if after.Overall == domain.OverallHealthy {
		m.attempts.Store(0)
		m.logger.Info("system recovery successful")
		return true, nil
	}

	if after.Overall == domain.OverallCritical {
		return false, fmt.Errorf("%w: %s", domain.ErrSubsystemCritical, strings.Join(criticalRequired(after), ", "))
	}
	m.logger.Warn("system recovery partially successful", zap.String("overall", string(after.Overall)))
	return false, nil
}

func criticalRequired(r domain.HealthReport) []string {
	var names []string
	for _, s := range r.Subsystems() {
		if s.Required && s.Status == domain.StatusCritical {
			names = append(names, s.Name)
		}
	}
	return names
}

// nextAttempt increments the counter without exceeding max+1. tripped reports
// that the new value is past max; first is true only for the transition.
func (m *HealthMonitor) nextAttempt() (attempt int32, tripped, first bool) {
	for {
		cur := m.attempts.Load()
		if cur > m.maxAttempts {
			return cur, true, false
		}
		next := cur + 1
		if m.attempts.CompareAndSwap(cur, next) {
			return next, next > m.maxAttempts, next > m.maxAttempts
		}
	}
}

func (m *HealthMonitor) recoveryError(ctx context.Context, subsystem string, err error) {
	m.logger.Error("recovery failed", zap.String("subsystem", subsystem), zap.Error(err))
	m.appendEntry(ctx, domain.EntryRecoveryError, domain.SeverityError,
		fmt.Sprintf("Failed to recover %s", subsystem),
		map[string]any{"subsystem": subsystem, "error": err.Error()})
}

// LogError journals an entry. A critical entry triggers a recovery attempt
// against a fresh evaluation.
func (m *HealthMonitor) LogError(ctx context.Context, entryType string, severity domain.Severity, message string, details map[string]any) error {
	entry := &domain.ErrorLogEntry{
		Type:      entryType,
		Severity:  severity,
		Message:   message,
		Timestamp: m.timeNow(),
		Details:   details,
	}
	if err := m.journal.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to journal error: %w", err)
	}

	if severity == domain.SeverityCritical {
		if _, err := m.AttemptRecovery(ctx, m.Evaluate(ctx)); err != nil {
			m.logger.Warn("critical error recovery failed", zap.String("type", entryType), zap.Error(err))
		}
	}
	return nil
}

// appendEntry journals without the critical recovery hook.
func (m *HealthMonitor) appendEntry(ctx context.Context, entryType string, severity domain.Severity, message string, details map[string]any) {
	entry := &domain.ErrorLogEntry{
		Type:      entryType,
		Severity:  severity,
		Message:   message,
		Timestamp: m.timeNow(),
		Details:   details,
	}
	if err := m.journal.Append(ctx, entry); err != nil {
		m.logger.Error("failed to journal entry", zap.String("type", entryType), zap.Error(err))
	}
}

// RunDiagnostics performs a full check. A healthy result re-arms the recovery fuse.
func (m *HealthMonitor) RunDiagnostics(ctx context.Context) domain.HealthReport {
	report := m.Check(ctx)
	if report.Overall == domain.OverallHealthy {
		m.ResetRecovery()
	}
	return report
}

func (m *HealthMonitor) ResetRecovery() {
	m.attempts.Store(0)
	m.logger.Info("recovery attempts reset")
}

func (m *HealthMonitor) RecoveryAttempts() int {
	return int(m.attempts.Load())
}

// Exhausted reports whether the recovery fuse has tripped.
func (m *HealthMonitor) Exhausted() bool {
	return m.attempts.Load() > m.maxAttempts
}

func (m *HealthMonitor) LastReport() (domain.HealthReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport, m.hasReport
}

func (m *HealthMonitor) setLastReport(r domain.HealthReport) {
	m.mu.Lock()
	m.lastReport = r
	m.hasReport = true
	m.mu.Unlock()
}

// ErrorLog returns at most limit journal entries, oldest first.
func (m *HealthMonitor) ErrorLog(ctx context.Context, limit int) ([]*domain.ErrorLogEntry, error) {
	entries, err := m.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read error log: %w", err)
	}
	return entries, nil
}

// DownAPIs lists the auxiliary APIs that were not healthy in report, sorted.
func DownAPIs(report domain.HealthReport) []string {
	var down []string
	for name, status := range report.APIs.Details {
		if status != string(domain.StatusHealthy) {
			down = append(down, name)
		}
	}
	sort.Strings(down)
	return down
}

// Run performs a Check on every tick until ctx is done.
func (m *HealthMonitor) Run(ctx context.Context, ticks <-chan time.Time) {
	m.logger.Info("health monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticks:
			m.Check(ctx)
		}
	}
}
