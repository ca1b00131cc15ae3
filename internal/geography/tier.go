// Package geography tiers census tracts by minority-population percentage.
//
// Two strategies share the same tier names. Fixed applies constant cut points
// and is used whenever results are compared across regions. Quartile derives
// its cut points from the tracts of one bounded region, so the same
// percentage can land in different tiers in different regions. The
// majority-minority flag is independent of both.
package geography

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInsufficientData is returned when a region has too few distinct tracts
// to compute stable quartiles. Callers must surface it rather than default a
// tier.
var ErrInsufficientData = errors.New("insufficient data to compute quartiles")

// MajorityMinorityThreshold is the fixed MMCT cut point, in percent.
const MajorityMinorityThreshold = 50.0

// MinorityTier is the tier of a tract's minority-population share.
type MinorityTier uint8

const (
	TierUnknown MinorityTier = iota
	TierLow
	TierModerate
	TierMiddle
	TierHigh
)

func (t MinorityTier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierModerate:
		return "moderate"
	case TierMiddle:
		return "middle"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Strategy turns a minority percentage into a tier.
type Strategy interface {
	Tier(pct float64) MinorityTier
	Mode() Mode
}

// Mode names a tiering strategy.
type Mode string

const (
	ModeQuartile Mode = "quartile"
	ModeFixed    Mode = "fixed"
)

// ParseMode accepts "quartile" or "fixed", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeQuartile:
		return ModeQuartile, nil
	case ModeFixed:
		return ModeFixed, nil
	default:
		return "", fmt.Errorf("unknown tiering mode %q", s)
	}
}

// IsMajorityMinority reports whether a tract is a majority-minority census
// tract. A nil percentage is never MMCT.
func IsMajorityMinority(pct *float64) bool {
	return pct != nil && *pct >= MajorityMinorityThreshold
}

// Fixed cut points, in percent.
const (
	FixedModerateMin = 20.0
	FixedMiddleMin   = 50.0
	FixedHighMin     = 80.0
)

// Fixed is the region-independent strategy. The zero value is ready to use.
type Fixed struct{}

func (Fixed) Mode() Mode { return ModeFixed }

// Tier places pct against constant thresholds: high >= 80, middle 50 to
// under 80, moderate 20 to under 50, low under 20.
func (Fixed) Tier(pct float64) MinorityTier {
	switch {
	case pct >= FixedHighMin:
		return TierHigh
	case pct >= FixedMiddleMin:
		return TierMiddle
	case pct >= FixedModerateMin:
		return TierModerate
	default:
		return TierLow
	}
}
