package domain

import (
	"fmt"
	"math"
)

// Coin is one asset snapshot as produced by a market data source.
// A raw numeric field holding NaN is treated as missing.
type Coin struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`

	Price           float64 `json:"price"`
	Change24h       float64 `json:"change24h"`
	PriceChange1h   float64 `json:"priceChange1h"`
	PriceChange7d   float64 `json:"priceChange7d"`
	Volume          float64 `json:"volume"`
	MarketCap       float64 `json:"marketCap"`
	MarketCapRank   int     `json:"marketCapRank"`
	VolumeChange24h float64 `json:"volumeChange24h"`

	SocialVolume        int     `json:"socialVolume"`
	DevelopmentActivity float64 `json:"developmentActivity"`
	CommunityScore      float64 `json:"communityScore"`
	Age                 int     `json:"age"`
	InfluencerImpact    float64 `json:"influencerImpact"`

	// Scores is written only by the scoring engine and is nil until then.
	Scores *ScoreSet `json:"scores,omitempty"`
}

// ScoreSet holds the three derived scores, each in [0,1].
type ScoreSet struct {
	Breakout    float64 `json:"breakoutScore"`
	Inflow      float64 `json:"inflowScore"`
	Fundamental float64 `json:"fundamentalScore"`
}

// DefaultScores is substituted when a coin cannot be scored.
var DefaultScores = ScoreSet{Breakout: 0.5, Inflow: 0.5, Fundamental: 0.5}

// Sortable field names, matching the Coin wire shape.
const (
	FieldPrice            = "price"
	FieldChange24h        = "change24h"
	FieldPriceChange1h    = "priceChange1h"
	FieldPriceChange7d    = "priceChange7d"
	FieldVolume           = "volume"
	FieldMarketCap        = "marketCap"
	FieldMarketCapRank    = "marketCapRank"
	FieldVolumeChange24h  = "volumeChange24h"
	FieldSocialVolume     = "socialVolume"
	FieldBreakoutScore    = "breakoutScore"
	FieldInflowScore      = "inflowScore"
	FieldFundamentalScore = "fundamentalScore"
)

var sortableFields = map[string]bool{
	FieldPrice: true, FieldChange24h: true, FieldPriceChange1h: true, FieldPriceChange7d: true,
	FieldVolume: true, FieldMarketCap: true, FieldMarketCapRank: true, FieldVolumeChange24h: true,
	FieldSocialVolume: true, FieldBreakoutScore: true, FieldInflowScore: true, FieldFundamentalScore: true,
}

// IsSortableField reports whether name can be passed to Coin.Field.
func IsSortableField(name string) bool {
	return sortableFields[name]
}

// Field returns the value of a numeric field by its wire name.
// ok is false when the field is unknown, unscored or NaN.
func (c Coin) Field(name string) (float64, bool) {
	var v float64
	switch name {
	case FieldPrice:
		v = c.Price
	case FieldChange24h:
		v = c.Change24h
	case FieldPriceChange1h:
		v = c.PriceChange1h
	case FieldPriceChange7d:
		v = c.PriceChange7d
	case FieldVolume:
		v = c.Volume
	case FieldMarketCap:
		v = c.MarketCap
	case FieldMarketCapRank:
		v = float64(c.MarketCapRank)
	case FieldVolumeChange24h:
		v = c.VolumeChange24h
	case FieldSocialVolume:
		v = float64(c.SocialVolume)
	case FieldBreakoutScore, FieldInflowScore, FieldFundamentalScore:
		if c.Scores == nil {
			return 0, false
		}
		switch name {
		case FieldBreakoutScore:
			v = c.Scores.Breakout
		case FieldInflowScore:
			v = c.Scores.Inflow
		default:
			v = c.Scores.Fundamental
		}
	default:
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// EffectiveScores returns the coin's scores, or DefaultScores when unscored.
func (c Coin) EffectiveScores() ScoreSet {
	if c.Scores == nil {
		return DefaultScores
	}
	return *c.Scores
}

// Validate checks the raw inputs the scoring models read.
func (c Coin) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("coin symbol must not be empty")
	}
	inputs := []struct {
		name string
		v    float64
	}{
		{FieldChange24h, c.Change24h},
		{FieldPriceChange1h, c.PriceChange1h},
		{FieldPriceChange7d, c.PriceChange7d},
		{FieldVolumeChange24h, c.VolumeChange24h},
		{"developmentActivity", c.DevelopmentActivity},
		{"communityScore", c.CommunityScore},
	}
	for _, in := range inputs {
		if math.IsNaN(in.v) || math.IsInf(in.v, 0) {
			return fmt.Errorf("%s: %s is not a finite number", c.Symbol, in.name)
		}
	}
	if c.SocialVolume < 0 {
		return fmt.Errorf("%s: socialVolume must not be negative", c.Symbol)
	}
	if c.Age < 0 {
		return fmt.Errorf("%s: age must not be negative", c.Symbol)
	}
	return nil
}
