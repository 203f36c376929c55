package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/crypto_intel/internal/domain"
)

var roster = []domain.Influencer{
	{Name: "Elon Musk", Username: "elonmusk", Followers: 78_000_000, ImpactScore: 0.95},
	{Name: "Donald Trump", Username: "realDonaldTrump", Followers: 87_000_000, ImpactScore: 0.85},
	{Name: "Vitalik Buterin", Username: "VitalikButerin", Followers: 4_300_000, ImpactScore: 0.75},
	{Name: "Roger Ver", Username: "rogerkver", Followers: 710_000, ImpactScore: 0.65},
	{Name: "Pomp", Username: "APompliano", Followers: 1_100_000, ImpactScore: 0.70},
}

var mentionable = []string{"BTC", "ETH", "DOGE", "SHIB", "ADA", "XRP", "SOL", "DOT"}

// Influencers returns the tracked accounts, each with one simulated recent mention.
func (s *MockSource) Influencers(ctx context.Context) ([]domain.Influencer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.timeNow()

	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	out := make([]domain.Influencer, len(roster))
	for i, inf := range roster {
		inf.RecentActivity = []domain.InfluencerActivity{{
			Type:      "tweet",
			Content:   fmt.Sprintf("Just mentioned %s in a tweet", mentionable[s.rng.IntN(len(mentionable))]),
			Timestamp: now.Add(-time.Duration(s.rng.Int64N(int64(24 * time.Hour)))),
			Impact:    s.rng.Float64()*0.3 + 0.1,
		}}
		out[i] = inf
	}
	return out, nil
}
