package marketdata

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_intel/internal/domain"
)

// Asset is one entry of the simulated universe.
type Asset struct {
	Symbol string
	Name   string
}

// DefaultUniverse is the top thirty coins by market cap, in rank order.
var DefaultUniverse = []Asset{
	{"BTC", "Bitcoin"}, {"ETH", "Ethereum"}, {"BNB", "Binance Coin"}, {"ADA", "Cardano"},
	{"XRP", "XRP"}, {"SOL", "Solana"}, {"DOT", "Polkadot"}, {"DOGE", "Dogecoin"},
	{"AVAX", "Avalanche"}, {"MATIC", "Polygon"}, {"LTC", "Litecoin"}, {"LINK", "Chainlink"},
	{"UNI", "Uniswap"}, {"ALGO", "Algorand"}, {"BCH", "Bitcoin Cash"}, {"XLM", "Stellar"},
	{"VET", "VeChain"}, {"ATOM", "Cosmos"}, {"ETC", "Ethereum Classic"}, {"THETA", "Theta Network"},
	{"FIL", "Filecoin"}, {"TRX", "TRON"}, {"XMR", "Monero"}, {"XTZ", "Tezos"},
	{"EOS", "EOS"}, {"AAVE", "Aave"}, {"COMP", "Compound"}, {"CRO", "Crypto.com Coin"},
	{"SHIB", "Shiba Inu"}, {"MKR", "Maker"},
}

// influencerImpact marks coins with known social influence.
var influencerImpact = map[string]float64{
	"DOGE": 0.8,
	"ETH":  0.6,
}

type Options struct {
	Universe     []Asset
	FetchLatency time.Duration
	FailureRate  float64
	Seed         uint64
	MaxHistory   int
}

// MockSource generates synthetic market batches. It implements
// domain.MarketDataSource and domain.InfluencerFeed.
type MockSource struct {
	opts   Options
	logger *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.RWMutex
	coins     []domain.Coin
	history   []domain.HistoricalSnapshot
	connected bool
	timeNow   func() time.Time
}

func NewMockSource(opts Options, logger *zap.Logger) *MockSource {
	if len(opts.Universe) == 0 {
		opts.Universe = DefaultUniverse
	}
	if opts.MaxHistory < 1 {
		opts.MaxHistory = 50
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &MockSource{
		opts:    opts,
		logger:  logger.Named("marketdata"),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		timeNow: time.Now,
	}
}

// FetchBatch generates a batch, records one snapshot and marks the source
// connected. A failed fetch leaves the connected flag as it was.
func (s *MockSource) FetchBatch(ctx context.Context) ([]domain.Coin, error) {
	s.logger.Debug("fetching market data")

	t := time.NewTimer(s.opts.FetchLatency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, ctx.Err())
	case <-t.C:
	}

	if s.opts.FailureRate > 0 && s.float() < s.opts.FailureRate {
		s.logger.Warn("simulated market data outage")
		return nil, fmt.Errorf("%w: simulated upstream outage", domain.ErrDataUnavailable)
	}

	batch := s.generate()
	snapshot := s.snapshot(batch)

	s.mu.Lock()
	s.coins = batch
	s.history = append(s.history, snapshot)
	if len(s.history) > s.opts.MaxHistory {
		s.history = append([]domain.HistoricalSnapshot(nil), s.history[len(s.history)-s.opts.MaxHistory:]...)
	}
	s.connected = true
	s.mu.Unlock()

	s.logger.Debug("market data fetched", zap.Int("coins", len(batch)),
		zap.Float64("btc_dominance", snapshot.BTCDominance))
	return cloneCoins(batch), nil
}

func (s *MockSource) generate() []domain.Coin {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	r := s.rng

	batch := make([]domain.Coin, 0, len(s.opts.Universe))
	for i, a := range s.opts.Universe {
		batch = append(batch, domain.Coin{
			Symbol:              a.Symbol,
			Name:                a.Name,
			Price:               r.Float64()*1000 + 10,
			Change24h:           (r.Float64() - 0.5) * 20,
			Volume:              r.Float64()*1e9 + 1e6,
			MarketCap:           r.Float64()*1e11 + 1e9,
			MarketCapRank:       i + 1,
			VolumeChange24h:     r.Float64() * 5,
			PriceChange1h:       (r.Float64() - 0.5) * 5,
			PriceChange7d:       (r.Float64() - 0.5) * 30,
			SocialVolume:        r.IntN(1000),
			DevelopmentActivity: float64(r.IntN(100)),
			CommunityScore:      float64(r.IntN(100)),
			Age:                 r.IntN(2000) + 100,
			InfluencerImpact:    influencerImpact[a.Symbol],
		})
	}
	return batch
}

func (s *MockSource) snapshot(batch []domain.Coin) domain.HistoricalSnapshot {
	total, dominance := domain.ComputeDominance(batch)
	return domain.HistoricalSnapshot{
		Timestamp:      s.timeNow(),
		TotalMarketCap: total,
		BTCDominance:   dominance,
		FearGreed:      s.intN(100),
	}
}

// Initialize (re)connects by fetching a batch. On failure the source is
// marked disconnected.
func (s *MockSource) Initialize(ctx context.Context) error {
	s.logger.Info("initializing data service")
	if _, err := s.FetchBatch(ctx); err != nil {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		s.logger.Error("failed to initialize data service", zap.Error(err))
		return err
	}
	s.logger.Info("data service initialized")
	return nil
}

func (s *MockSource) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MockSource) Coins() []domain.Coin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCoins(s.coins)
}

func (s *MockSource) History() []domain.HistoricalSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.HistoricalSnapshot(nil), s.history...)
}

func (s *MockSource) float() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

func (s *MockSource) intN(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

func cloneCoins(coins []domain.Coin) []domain.Coin {
	if coins == nil {
		return nil
	}
	out := make([]domain.Coin, len(coins))
	copy(out, coins)
	return out
}
