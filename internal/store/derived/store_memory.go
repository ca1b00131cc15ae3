package derived

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"hmdamart/internal/geography"
	"hmdamart/internal/incremental/ports"
	"hmdamart/internal/loan/models"
	"hmdamart/pkg/platform/sentinel"
)

// InMemoryStore keeps derived partitions in memory. Appends are staged and
// swapped in only after fill succeeds, matching the all-or-nothing contract
// of the Postgres store.
type InMemoryStore struct {
	writeMu    sync.Mutex
	mu         sync.RWMutex
	partitions map[int][]models.ClassifiedLoanRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{partitions: make(map[int][]models.ClassifiedLoanRecord)}
}

func (s *InMemoryStore) MaxYear(ctx context.Context) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := false
	maxYear := 0
	for y := range s.partitions {
		if !found || y > maxYear {
			maxYear, found = y, true
		}
	}
	return maxYear, found, nil
}

func (s *InMemoryStore) Partition(ctx context.Context, year int) (ports.PartitionInfo, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.partitions[year]
	if !ok {
		return ports.PartitionInfo{}, false, nil
	}
	info := ports.PartitionInfo{Year: year, Records: len(rows)}
	if len(rows) > 0 {
		info.RunID = rows[0].RunID
	}
	return info, true, nil
}

// Partitions lists the stored years, ascending.
func (s *InMemoryStore) Partitions(ctx context.Context) ([]ports.PartitionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.PartitionInfo, 0, len(s.partitions))
	for year, rows := range s.partitions {
		info := ports.PartitionInfo{Year: year, Records: len(rows)}
		if len(rows) > 0 {
			info.RunID = rows[0].RunID
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b ports.PartitionInfo) int { return a.Year - b.Year })
	return out, nil
}

func (s *InMemoryStore) AppendPartition(ctx context.Context, year int, mode ports.AppendMode, fill func(emit ports.Emit) error) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	_, exists := s.partitions[year]
	s.mu.RUnlock()
	switch {
	case mode == ports.AppendNew && exists:
		return 0, fmt.Errorf("partition %d already materialized: %w", year, sentinel.ErrConflict)
	case mode == ports.ReplaceYear && !exists:
		return 0, fmt.Errorf("partition %d not materialized: %w", year, sentinel.ErrNotFound)
	}

	var staged []models.ClassifiedLoanRecord
	err := fill(func(batch []models.ClassifiedLoanRecord) error {
		for _, r := range batch {
			if r.Year != year {
				return fmt.Errorf("record %s has year %d, partition is %d: %w", r.ID, r.Year, year, sentinel.ErrInvalidState)
			}
		}
		staged = append(staged, batch...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(staged) == 0 {
		// An empty year leaves no trace, same as a table with no rows for it.
		delete(s.partitions, year)
		return 0, nil
	}
	s.partitions[year] = staged
	return len(staged), nil
}

// Records returns a copy of one year's rows.
func (s *InMemoryStore) Records(ctx context.Context, year int) ([]models.ClassifiedLoanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.partitions[year]), nil
}

// Count returns the total number of derived rows.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rows := range s.partitions {
		n += len(rows)
	}
	return n, nil
}

// TractMinority returns one entry per distinct tract of the region and year
// with a known minority percentage.
func (s *InMemoryStore) TractMinority(ctx context.Context, msa string, year int) ([]geography.TractPct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []geography.TractPct
	for _, r := range s.partitions[year] {
		if r.MSAMD != msa || r.TractMinorityPct == nil || r.CensusTract == "" {
			continue
		}
		if _, ok := seen[r.CensusTract]; ok {
			continue
		}
		seen[r.CensusTract] = struct{}{}
		out = append(out, geography.TractPct{Tract: r.CensusTract, Pct: *r.TractMinorityPct})
	}
	slices.SortFunc(out, func(a, b geography.TractPct) int { return cmp.Compare(a.Tract, b.Tract) })
	return out, nil
}
