package usecase

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/vitos/crypto_intel/internal/domain"
)

type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterGainers FilterMode = "gainers"
	FilterLosers  FilterMode = "losers"
)

func ParseFilterMode(s string) (FilterMode, error) {
	switch m := FilterMode(strings.ToLower(s)); m {
	case FilterAll, FilterGainers, FilterLosers:
		return m, nil
	}
	return "", fmt.Errorf("unknown filter mode %q", s)
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ViewState is the user's current table selection.
type ViewState struct {
	SortField string        `json:"sort_field"`
	SortDir   SortDirection `json:"sort_dir"`
	Filter    FilterMode    `json:"filter"`
}

func DefaultViewState() ViewState {
	return ViewState{SortField: domain.FieldBreakoutScore, SortDir: SortDesc, Filter: FilterAll}
}

// WithSort applies a column selection: the active column toggles direction,
// a new column starts descending.
func (s ViewState) WithSort(field string) ViewState {
	if s.SortField == field {
		if s.SortDir == SortAsc {
			s.SortDir = SortDesc
		} else {
			s.SortDir = SortAsc
		}
		return s
	}
	s.SortField = field
	s.SortDir = SortDesc
	return s
}

// FilterCoins returns the coins matching mode. Coins with a zero or missing
// change24h are neither gainers nor losers.
func FilterCoins(coins []domain.Coin, mode FilterMode) []domain.Coin {
	out := make([]domain.Coin, 0, len(coins))
	for _, c := range coins {
		switch mode {
		case FilterGainers:
			if c.Change24h > 0 {
				out = append(out, c)
			}
		case FilterLosers:
			if c.Change24h < 0 {
				out = append(out, c)
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// SortCoins returns a stably sorted copy. A coin missing the field sorts last
// in either direction.
func SortCoins(coins []domain.Coin, field string, dir SortDirection) []domain.Coin {
	out := slices.Clone(coins)
	key := func(c domain.Coin) float64 {
		v, ok := c.Field(field)
		if !ok {
			if dir == SortAsc {
				return math.Inf(1)
			}
			return math.Inf(-1)
		}
		return v
	}
	slices.SortStableFunc(out, func(a, b domain.Coin) int {
		ka, kb := key(a), key(b)
		switch {
		case ka < kb:
			if dir == SortAsc {
				return -1
			}
			return 1
		case ka > kb:
			if dir == SortAsc {
				return 1
			}
			return -1
		}
		return 0
	})
	return out
}

// PredictionLabel maps scores to the categorical call shown to users.
func PredictionLabel(s domain.ScoreSet) string {
	switch {
	case s.Breakout > 0.7 && s.Inflow > 0.6:
		return "Strong Buy"
	case s.Breakout > 0.6:
		return "Buy"
	case s.Breakout < 0.4:
		return "Sell"
	}
	return "Neutral"
}

func labelClass(label string) string {
	switch label {
	case "Strong Buy", "Buy":
		return "positive"
	case "Sell":
		return "negative"
	}
	return "neutral"
}

func breakoutBarColor(breakout float64) string {
	switch {
	case breakout > 0.7:
		return "#4cc9f0"
	case breakout > 0.5:
		return "#fca311"
	}
	return "#f72585"
}

type PerformanceRow struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     string  `json:"price"`
	Change24h string  `json:"change24h"`
	Volume    string  `json:"volume"`
	Change    float64 `json:"change_value"`
	Positive  bool    `json:"positive"`
}

type PredictionRow struct {
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Price           string  `json:"price"`
	Breakout        float64 `json:"breakout_score"`
	BreakoutDisplay string  `json:"breakout_display"`
	BarColor        string  `json:"bar_color"`
	Inflow          float64 `json:"inflow_score"`
	InflowDisplay   string  `json:"inflow_display"`
	InflowPositive  bool    `json:"inflow_positive"`
	Fundamental     float64 `json:"fundamental_score"`
	Label           string  `json:"label"`
	LabelClass      string  `json:"label_class"`
}

// FlowSeries pairs inflow and outflow magnitudes per symbol, in percent.
type FlowSeries struct {
	Labels  []string  `json:"labels"`
	Inflow  []float64 `json:"inflow"`
	Outflow []float64 `json:"outflow"`
}

type DominanceSeries struct {
	Labels   []string  `json:"labels"`
	BTC      []float64 `json:"btc"`
	Altcoins []float64 `json:"altcoins"`
}

type Counters struct {
	Breakout int `json:"breakout"`
	Gainers  int `json:"gainers"`
	Inflow   int `json:"inflow"`
	Total    int `json:"total"`
}

type SystemInfo struct {
	ModelVersion      string    `json:"model_version"`
	LastTrained       time.Time `json:"last_trained"`
	HoursSinceRetrain int       `json:"hours_since_retrain"`
}

// Views is the read-only projection of one scored batch.
type Views struct {
	GeneratedAt time.Time        `json:"generated_at"`
	State       ViewState        `json:"state"`
	Performance []PerformanceRow `json:"performance"`
	Predictions []PredictionRow  `json:"predictions"`
	MoneyFlow   FlowSeries       `json:"money_flow"`
	Dominance   DominanceSeries  `json:"dominance"`
	Counters    Counters         `json:"counters"`
	System      SystemInfo       `json:"system"`
}

type ViewInput struct {
	Coins             []domain.Coin
	History           []domain.HistoricalSnapshot
	State             ViewState
	Model             ModelInfo
	Now               time.Time
	TopN              int
	BreakoutThreshold float64
	InflowThreshold   float64
}

// BuildViews derives every view from a scored batch without modifying it.
func BuildViews(in ViewInput) Views {
	topN := in.TopN
	if topN < 1 {
		topN = 10
	}
	filtered := FilterCoins(in.Coins, in.State.Filter)

	v := Views{
		GeneratedAt: in.Now,
		State:       in.State,
		Performance: performanceRows(in.Coins, topN),
		Predictions: predictionRows(SortCoins(filtered, in.State.SortField, in.State.SortDir), topN),
		MoneyFlow:   moneyFlow(filtered, topN),
		Dominance:   dominanceSeries(in.History),
		System:      systemInfo(in.Model, in.Now),
	}

	v.Counters.Total = len(filtered)
	for _, c := range filtered {
		s := c.EffectiveScores()
		if s.Breakout > in.BreakoutThreshold {
			v.Counters.Breakout++
		}
		if s.Inflow > in.InflowThreshold {
			v.Counters.Inflow++
		}
	}
	for _, c := range in.Coins {
		if c.Change24h > 0 {
			v.Counters.Gainers++
		}
	}
	return v
}

// performanceRows lists the top gainers followed by the worst losers, most
// negative first. A batch shorter than 2n is shown once without repeats.
func performanceRows(coins []domain.Coin, n int) []PerformanceRow {
	sorted := SortCoins(coins, domain.FieldChange24h, SortDesc)

	var display []domain.Coin
	if len(sorted) <= 2*n {
		display = sorted[:min(n, len(sorted))]
		rest := slices.Clone(sorted[len(display):])
		slices.Reverse(rest)
		display = append(display, rest...)
	} else {
		bottom := slices.Clone(sorted[len(sorted)-n:])
		slices.Reverse(bottom)
		display = append(slices.Clone(sorted[:n]), bottom...)
	}

	rows := make([]PerformanceRow, 0, len(display))
	for _, c := range display {
		rows = append(rows, PerformanceRow{
			Symbol:    c.Symbol,
			Name:      c.Name,
			Price:     FormatCurrency(c.Price),
			Change24h: FormatPercentage(c.Change24h / 100),
			Volume:    "$" + FormatLargeNumber(c.Volume),
			Change:    c.Change24h,
			Positive:  c.Change24h >= 0,
		})
	}
	return rows
}

func predictionRows(sorted []domain.Coin, n int) []PredictionRow {
	sorted = sorted[:min(n, len(sorted))]
	rows := make([]PredictionRow, 0, len(sorted))
	for _, c := range sorted {
		s := c.EffectiveScores()
		label := PredictionLabel(s)
		rows = append(rows, PredictionRow{
			Symbol:          c.Symbol,
			Name:            c.Name,
			Price:           FormatCurrency(c.Price),
			Breakout:        s.Breakout,
			BreakoutDisplay: FormatPercentage(s.Breakout),
			BarColor:        breakoutBarColor(s.Breakout),
			Inflow:          s.Inflow,
			InflowDisplay:   FormatPercentage(s.Inflow - 0.5),
			InflowPositive:  s.Inflow > 0.5,
			Fundamental:     s.Fundamental,
			Label:           label,
			LabelClass:      labelClass(label),
		})
	}
	return rows
}

func moneyFlow(filtered []domain.Coin, n int) FlowSeries {
	sorted := SortCoins(filtered, domain.FieldInflowScore, SortDesc)
	sorted = sorted[:min(n, len(sorted))]

	fs := FlowSeries{
		Labels:  make([]string, 0, len(sorted)),
		Inflow:  make([]float64, 0, len(sorted)),
		Outflow: make([]float64, 0, len(sorted)),
	}
	for _, c := range sorted {
		inflow := c.EffectiveScores().Inflow
		fs.Labels = append(fs.Labels, c.Symbol)
		fs.Inflow = append(fs.Inflow, inflow*100)
		fs.Outflow = append(fs.Outflow, (1-inflow)*100)
	}
	return fs
}

func dominanceSeries(history []domain.HistoricalSnapshot) DominanceSeries {
	ds := DominanceSeries{
		Labels:   make([]string, 0, len(history)),
		BTC:      make([]float64, 0, len(history)),
		Altcoins: make([]float64, 0, len(history)),
	}
	for _, h := range history {
		ds.Labels = append(ds.Labels, h.Timestamp.Format("15:04:05"))
		ds.BTC = append(ds.BTC, h.BTCDominance)
		ds.Altcoins = append(ds.Altcoins, 100-h.BTCDominance)
	}
	return ds
}

func systemInfo(m ModelInfo, now time.Time) SystemInfo {
	info := SystemInfo{ModelVersion: m.Versions["breakout"], LastTrained: m.LastTrained}
	if info.ModelVersion == "" {
		info.ModelVersion = notAvailable
	}
	if !m.LastTrained.IsZero() && now.After(m.LastTrained) {
		info.HoursSinceRetrain = int(now.Sub(m.LastTrained).Hours())
	}
	return info
}
