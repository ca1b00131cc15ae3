// Package income classifies an income value against an area benchmark into
// the four regulatory income tiers.
package income

import (
	"github.com/shopspring/decimal"
)

// Tier is an ordered income tier. Unclassified sorts below Low.
type Tier uint8

const (
	TierUnclassified Tier = iota
	TierLow
	TierModerate
	TierMiddle
	TierUpper
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierModerate:
		return "moderate"
	case TierMiddle:
		return "middle"
	case TierUpper:
		return "upper"
	default:
		return "unclassified"
	}
}

// IsLMI reports whether the tier is low or moderate income.
func (t Tier) IsLMI() bool {
	return t == TierLow || t == TierModerate
}

// ParseTier is the inverse of Tier.String. Unknown names parse as
// TierUnclassified.
func ParseTier(s string) Tier {
	switch s {
	case "low":
		return TierLow
	case "moderate":
		return TierModerate
	case "middle":
		return TierMiddle
	case "upper":
		return TierUpper
	default:
		return TierUnclassified
	}
}

// Cut points as a percentage of the benchmark. Each bound is inclusive on the
// lower tier: exactly 80% is moderate.
var (
	lowMax      = decimal.NewFromInt(50)
	moderateMax = decimal.NewFromInt(80)
	middleMax   = decimal.NewFromInt(120)
	hundred     = decimal.NewFromInt(100)
)

// Result is the outcome of one classification.
type Result struct {
	Tier Tier
	// Ratio is value / benchmark x 100. Zero when unclassified.
	Ratio decimal.Decimal
}

// LMI reports whether the result falls in the low or moderate tier.
func (r Result) LMI() bool {
	return r.Tier.IsLMI()
}

// Classify places value relative to benchmark. Either input being nil, zero
// or negative yields TierUnclassified; a non-positive benchmark is treated as
// missing rather than a division error.
//
// Borrower income and tract income share this function; only the inputs
// differ.
func Classify(value, benchmark *float64) Result {
	if value == nil || benchmark == nil || *value <= 0 || *benchmark <= 0 {
		return Result{Tier: TierUnclassified}
	}
	ratio := decimal.NewFromFloat(*value).Mul(hundred).Div(decimal.NewFromFloat(*benchmark))
	return Result{Tier: tierFor(ratio), Ratio: ratio}
}

// ClassifyPercent classifies a value already expressed as a percentage of its
// benchmark, such as a tract-to-area income percentage.
func ClassifyPercent(pct *float64) Result {
	b := 100.0
	return Classify(pct, &b)
}

func tierFor(ratio decimal.Decimal) Tier {
	switch {
	case ratio.LessThanOrEqual(lowMax):
		return TierLow
	case ratio.LessThanOrEqual(moderateMax):
		return TierModerate
	case ratio.LessThanOrEqual(middleMax):
		return TierMiddle
	default:
		return TierUpper
	}
}
