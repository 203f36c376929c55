package domain

import "context"

// MarketDataSource produces batches of coin snapshots.
type MarketDataSource interface {
	// FetchBatch returns a fresh batch. The connected flag is set only on success.
	FetchBatch(ctx context.Context) ([]Coin, error)
	IsConnected() bool
	// Coins returns a copy of the latest successfully fetched batch.
	Coins() []Coin
	// History returns the recorded snapshots, newest last.
	History() []HistoricalSnapshot
	// Initialize (re)connects the source; it is the recovery entry point.
	Initialize(ctx context.Context) error
}

// InfluencerFeed lists the social accounts tracked for sentiment.
type InfluencerFeed interface {
	Influencers(ctx context.Context) ([]Influencer, error)
}

// Features are the normalized model inputs derived from one coin.
type Features struct {
	VolumeChange24h     float64
	PriceChange24h      float64
	PriceChange1h       float64
	PriceChange7d       float64
	SocialVolume        float64
	MarketCapRank       float64
	Age                 float64
	DevelopmentActivity float64
	CommunityScore      float64
}

// ScoreModel computes one score per kind. Implementations must be pure.
type ScoreModel interface {
	Breakout(f Features) float64
	Inflow(f Features) float64
	Fundamental(f Features) float64
}

// APIProber reports reachability of auxiliary APIs by name.
type APIProber interface {
	Probe(ctx context.Context) map[string]HealthStatus
}

// ErrorJournal is the bounded, append-only error log.
type ErrorJournal interface {
	Append(ctx context.Context, entry *ErrorLogEntry) error
	// Recent returns at most limit entries, oldest first.
	Recent(ctx context.Context, limit int) ([]*ErrorLogEntry, error)
}
