package geography

import (
	"fmt"
	"math"
	"slices"
)

// MinQuartileTracts is the smallest number of distinct tracts a region needs
// before quartile cut points are considered meaningful.
const MinQuartileTracts = 4

// TractPct is one tract's minority-population share.
type TractPct struct {
	Tract string
	Pct   float64
}

// Quartiles holds the three cut points for one region.
type Quartiles struct {
	Q1 float64
	Q2 float64
	Q3 float64
}

// Quartile is the region-relative strategy. Build one per bounded region;
// its cut points are never reused for another region.
type Quartile struct {
	cuts   Quartiles
	tracts int
}

// NewQuartile computes cut points over the distinct tracts of one region.
// Repeated tract keys count once (first value wins) since the input is
// usually derived from loan rows, where a tract appears once per loan.
// NaN percentages are skipped.
func NewQuartile(tracts []TractPct) (*Quartile, error) {
	seen := make(map[string]struct{}, len(tracts))
	values := make([]float64, 0, len(tracts))
	for _, t := range tracts {
		if math.IsNaN(t.Pct) {
			continue
		}
		if _, ok := seen[t.Tract]; ok {
			continue
		}
		seen[t.Tract] = struct{}{}
		values = append(values, t.Pct)
	}
	if len(values) < MinQuartileTracts {
		return nil, fmt.Errorf("%w: %d distinct tracts, need %d", ErrInsufficientData, len(values), MinQuartileTracts)
	}

	slices.Sort(values)
	return &Quartile{
		cuts: Quartiles{
			Q1: percentileSorted(values, 25),
			Q2: percentileSorted(values, 50),
			Q3: percentileSorted(values, 75),
		},
		tracts: len(values),
	}, nil
}

func (q *Quartile) Mode() Mode { return ModeQuartile }

// Cuts returns the computed cut points.
func (q *Quartile) Cuts() Quartiles { return q.cuts }

// Tracts returns how many distinct tracts the cut points were computed over.
func (q *Quartile) Tracts() int { return q.tracts }

// Tier places pct in its quartile. Values equal to a cut point fall in the
// lower quartile.
func (q *Quartile) Tier(pct float64) MinorityTier {
	switch {
	case pct <= q.cuts.Q1:
		return TierLow
	case pct <= q.cuts.Q2:
		return TierModerate
	case pct <= q.cuts.Q3:
		return TierMiddle
	default:
		return TierHigh
	}
}
