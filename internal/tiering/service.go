// Package tiering answers region-level minority tier lookups over the
// derived store for the reporting layer.
package tiering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"hmdamart/internal/geography"
)

// ErrInvalidRequest marks lookups with missing or malformed parameters.
var ErrInvalidRequest = errors.New("invalid tier request")

// TractReader lists the distinct tracts of one region and year with their
// minority percentage.
type TractReader interface {
	TractMinority(ctx context.Context, msa string, year int) ([]geography.TractPct, error)
}

// TractTier is one tract's placement.
type TractTier struct {
	Tract            string
	MinorityPct      float64
	Tier             geography.MinorityTier
	MajorityMinority bool
}

// RegionTiers is the tiering of every tract of a region. Cuts is set only
// for the quartile strategy.
type RegionTiers struct {
	MSA    string
	Year   int
	Mode   geography.Mode
	Cuts   *geography.Quartiles
	Tracts []TractTier
}

// Counts returns how many tracts fall in each tier.
func (r *RegionTiers) Counts() map[string]int {
	out := map[string]int{
		geography.TierLow.String():      0,
		geography.TierModerate.String(): 0,
		geography.TierMiddle.String():   0,
		geography.TierHigh.String():     0,
	}
	for _, t := range r.Tracts {
		out[t.Tier.String()]++
	}
	return out
}

type Service struct {
	reader TractReader
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(reader TractReader, opts ...Option) (*Service, error) {
	if reader == nil {
		return nil, errors.New("tract reader is required")
	}
	s := &Service{reader: reader, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TierRegion tiers every tract of one MSA/MD and year. Quartile cut points
// are computed from this region only; a region with fewer than
// geography.MinQuartileTracts tracts fails with geography.ErrInsufficientData.
func (s *Service) TierRegion(ctx context.Context, msa string, year int, mode geography.Mode) (*RegionTiers, error) {
	msa = strings.TrimSpace(msa)
	if msa == "" {
		return nil, fmt.Errorf("msa is required: %w", ErrInvalidRequest)
	}
	if year <= 0 {
		return nil, fmt.Errorf("year %d: %w", year, ErrInvalidRequest)
	}

	tracts, err := s.reader.TractMinority(ctx, msa, year)
	if err != nil {
		return nil, fmt.Errorf("load tracts for %s/%d: %w", msa, year, err)
	}

	res := &RegionTiers{MSA: msa, Year: year, Mode: mode}
	var strategy geography.Strategy
	switch mode {
	case geography.ModeFixed:
		strategy = geography.Fixed{}
	case geography.ModeQuartile:
		q, err := geography.NewQuartile(tracts)
		if err != nil {
			s.logger.InfoContext(ctx, "region too small for quartiles",
				"msa", msa,
				"year", year,
				"tracts", len(tracts),
			)
			return nil, fmt.Errorf("tier %s/%d: %w", msa, year, err)
		}
		cuts := q.Cuts()
		res.Cuts = &cuts
		strategy = q
	default:
		return nil, fmt.Errorf("unknown mode %q: %w", mode, ErrInvalidRequest)
	}

	res.Tracts = make([]TractTier, len(tracts))
	for i, t := range tracts {
		pct := t.Pct
		res.Tracts[i] = TractTier{
			Tract:            t.Tract,
			MinorityPct:      pct,
			Tier:             strategy.Tier(pct),
			MajorityMinority: geography.IsMajorityMinority(&pct),
		}
	}
	return res, nil
}

// TierTract places a single percentage under the fixed strategy, the only
// one that is meaningful without a region.
func TierTract(pct float64) TractTier {
	return TractTier{
		MinorityPct:      pct,
		Tier:             geography.Fixed{}.Tier(pct),
		MajorityMinority: geography.IsMajorityMinority(&pct),
	}
}
