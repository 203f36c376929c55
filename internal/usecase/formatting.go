package usecase

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const notAvailable = "n/a"

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FormatCurrency renders a USD amount with thousands grouping. Amounts below
// one dollar keep up to six decimals, everything else exactly two.
func FormatCurrency(v float64) string {
	if !finite(v) {
		return notAvailable
	}
	d := decimal.NewFromFloat(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	places := int32(2)
	if d.LessThan(decimal.NewFromInt(1)) {
		places = 6
	}
	rounded := d.Round(places)
	_, frac, _ := strings.Cut(rounded.StringFixed(places), ".")
	if places > 2 {
		frac = strings.TrimRight(frac, "0")
		for len(frac) < 2 {
			frac += "0"
		}
	}
	return sign + "$" + humanize.Comma(rounded.IntPart()) + "." + frac
}

// FormatPercentage renders a fraction as a percentage with one decimal.
func FormatPercentage(fraction float64) string {
	if !finite(fraction) {
		return notAvailable
	}
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

// FormatLargeNumber abbreviates with K, M or B suffixes and two decimals.
func FormatLargeNumber(v float64) string {
	if !finite(v) {
		return notAvailable
	}
	d := decimal.NewFromFloat(v)
	switch {
	case v >= 1e9:
		return d.Div(decimal.NewFromInt(1e9)).StringFixed(2) + "B"
	case v >= 1e6:
		return d.Div(decimal.NewFromInt(1e6)).StringFixed(2) + "M"
	case v >= 1e3:
		return d.Div(decimal.NewFromInt(1e3)).StringFixed(2) + "K"
	}
	return d.StringFixed(2)
}
