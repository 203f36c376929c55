package usecase

import (
	"context"
	"sync"

	"github.com/vitos/crypto_intel/internal/domain"
)

// MockSource implements domain.MarketDataSource.
type MockSource struct {
	mu        sync.Mutex
	batch     []domain.Coin
	coins     []domain.Coin
	history   []domain.HistoricalSnapshot
	connected bool
	fetchErr  error
	initErr   error
	fetches   int
	inits     int
	// fetchHook runs inside FetchBatch before it returns.
	fetchHook func()
}

func (m *MockSource) FetchBatch(ctx context.Context) ([]domain.Coin, error) {
	m.mu.Lock()
	hook := m.fetchHook
	m.fetches++
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	m.coins = append([]domain.Coin(nil), m.batch...)
	m.connected = true
	total, dom := domain.ComputeDominance(m.coins)
	m.history = append(m.history, domain.HistoricalSnapshot{TotalMarketCap: total, BTCDominance: dom})
	return append([]domain.Coin(nil), m.batch...), nil
}

func (m *MockSource) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockSource) Coins() []domain.Coin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Coin(nil), m.coins...)
}

func (m *MockSource) History() []domain.HistoricalSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoricalSnapshot(nil), m.history...)
}

func (m *MockSource) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.inits++
	err := m.initErr
	m.mu.Unlock()
	if err != nil {
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
		return err
	}
	_, ferr := m.FetchBatch(ctx)
	if ferr != nil {
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
	}
	return ferr
}

func (m *MockSource) Inits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits
}

// MockModels implements ModelRuntime.
type MockModels struct {
	mu          sync.Mutex
	initialized bool
	initErr     error
	inits       int
}

func (m *MockModels) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

func (m *MockModels) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	if m.initErr != nil {
		return m.initErr
	}
	m.initialized = true
	return nil
}

// MockProber returns a fixed status set.
type MockProber struct {
	mu       sync.Mutex
	statuses map[string]domain.HealthStatus
}

func (m *MockProber) Probe(ctx context.Context) map[string]domain.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.HealthStatus, len(m.statuses))
	for k, v := range m.statuses {
		out[k] = v
	}
	return out
}

func (m *MockProber) Set(statuses map[string]domain.HealthStatus) {
	m.mu.Lock()
	m.statuses = statuses
	m.mu.Unlock()
}

// MemJournal is an in-memory domain.ErrorJournal.
type MemJournal struct {
	mu      sync.Mutex
	entries []*domain.ErrorLogEntry
	err     error
}

func (j *MemJournal) Append(ctx context.Context, e *domain.ErrorLogEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	e.ID = int64(len(j.entries) + 1)
	j.entries = append(j.entries, e)
	return nil
}

func (j *MemJournal) Recent(ctx context.Context, limit int) ([]*domain.ErrorLogEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit > len(j.entries) {
		limit = len(j.entries)
	}
	return append([]*domain.ErrorLogEntry(nil), j.entries[len(j.entries)-limit:]...), nil
}

func (j *MemJournal) ByType(entryType string) []*domain.ErrorLogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*domain.ErrorLogEntry
	for _, e := range j.entries {
		if e.Type == entryType {
			out = append(out, e)
		}
	}
	return out
}

func allHealthyAPIs() map[string]domain.HealthStatus {
	return map[string]domain.HealthStatus{
		"coinmarketcap": domain.StatusHealthy,
		"twitter":       domain.StatusHealthy,
		"news":          domain.StatusHealthy,
	}
}
