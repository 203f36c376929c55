package domain

import (
	"strings"
	"time"
)

// HistoricalSnapshot is one market-wide aggregate recorded per successful fetch.
type HistoricalSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalMarketCap float64   `json:"total_market_cap"`
	BTCDominance   float64   `json:"btc_dominance"` // percent
	FearGreed      int       `json:"fear_greed"`    // 0-100
}

// ComputeDominance returns BTC's share of the batch's total market cap in percent.
// It is 0 when BTC is absent or the total is zero.
func ComputeDominance(coins []Coin) (total, dominance float64) {
	var btc float64
	for _, c := range coins {
		total += c.MarketCap
		if strings.EqualFold(c.Symbol, "BTC") {
			btc = c.MarketCap
		}
	}
	if total == 0 {
		return total, 0
	}
	return total, btc / total * 100
}

// Influencer is a tracked social account whose posts move coin sentiment.
type Influencer struct {
	Name           string               `json:"name"`
	Username       string               `json:"username"`
	Followers      int                  `json:"followers"`
	ImpactScore    float64              `json:"impact_score"`
	RecentActivity []InfluencerActivity `json:"recent_activity"`
}

type InfluencerActivity struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Impact    float64   `json:"impact"`
}
