package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vitos/crypto_intel/internal/domain"
)

func newTestSource(t *testing.T, opts Options) *MockSource {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return NewMockSource(opts, zaptest.NewLogger(t))
}

func TestMockSource_FetchBatch(t *testing.T) {
	s := newTestSource(t, Options{})
	assert.False(t, s.IsConnected())

	batch, err := s.FetchBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, len(DefaultUniverse))
	assert.True(t, s.IsConnected())

	seen := map[string]bool{}
	for i, c := range batch {
		require.NoError(t, c.Validate())
		assert.False(t, seen[c.Symbol], "symbols are unique")
		seen[c.Symbol] = true
		assert.Equal(t, i+1, c.MarketCapRank)
		assert.Greater(t, c.Price, 0.0)
		assert.GreaterOrEqual(t, c.DevelopmentActivity, 0.0)
		assert.Less(t, c.DevelopmentActivity, 100.0)
		assert.Nil(t, c.Scores)
	}

	byName := map[string]domain.Coin{}
	for _, c := range batch {
		byName[c.Symbol] = c
	}
	assert.Equal(t, 0.8, byName["DOGE"].InfluencerImpact)
	assert.Equal(t, 0.6, byName["ETH"].InfluencerImpact)
	assert.Zero(t, byName["BTC"].InfluencerImpact)

	history := s.History()
	require.Len(t, history, 1)
	_, dom := domain.ComputeDominance(batch)
	assert.InDelta(t, dom, history[0].BTCDominance, 1e-9)
	assert.Equal(t, batch, s.Coins())
}

func TestMockSource_SameSeedSameShape(t *testing.T) {
	a, err := newTestSource(t, Options{Seed: 7}).FetchBatch(context.Background())
	require.NoError(t, err)
	b, err := newTestSource(t, Options{Seed: 7}).FetchBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMockSource_HistoryIsCapped(t *testing.T) {
	s := newTestSource(t, Options{MaxHistory: 3})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.timeNow = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}

	for i := 0; i < 5; i++ {
		_, err := s.FetchBatch(context.Background())
		require.NoError(t, err)
	}
	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, base.Add(3*time.Minute), history[0].Timestamp, "oldest evicted first")
	assert.Equal(t, base.Add(5*time.Minute), history[2].Timestamp)
}

func TestMockSource_FailureKeepsConnectedFlag(t *testing.T) {
	s := newTestSource(t, Options{})
	_, err := s.FetchBatch(context.Background())
	require.NoError(t, err)

	s.opts.FailureRate = 1
	_, err = s.FetchBatch(context.Background())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.True(t, s.IsConnected(), "fetch failure leaves the flag alone")
	assert.Len(t, s.History(), 1)
	assert.Len(t, s.Coins(), len(DefaultUniverse), "previous batch kept")

	require.Error(t, s.Initialize(context.Background()))
	assert.False(t, s.IsConnected(), "failed initialize disconnects")

	s.opts.FailureRate = 0
	require.NoError(t, s.Initialize(context.Background()))
	assert.True(t, s.IsConnected())
}

func TestMockSource_FetchHonoursContext(t *testing.T) {
	s := newTestSource(t, Options{FetchLatency: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.FetchBatch(ctx)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockSource_Influencers(t *testing.T) {
	s := newTestSource(t, Options{})
	list, err := s.Influencers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 5)
	for _, inf := range list {
		require.Len(t, inf.RecentActivity, 1)
		a := inf.RecentActivity[0]
		assert.GreaterOrEqual(t, a.Impact, 0.1)
		assert.Less(t, a.Impact, 0.4)
		assert.Contains(t, a.Content, "Just mentioned")
	}
	assert.Empty(t, roster[0].RecentActivity, "roster template untouched")
}

func TestSimulatedProber(t *testing.T) {
	p := NewSimulatedProber([]API{{"always", 1}, {"never", 0}}, 1)
	for i := 0; i < 20; i++ {
		got := p.Probe(context.Background())
		assert.Equal(t, domain.StatusHealthy, got["always"])
		assert.Equal(t, domain.StatusUnhealthy, got["never"])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, domain.StatusUnhealthy, p.Probe(ctx)["always"])
}
