package source

import (
	"context"
	"slices"
	"sync"

	"hmdamart/internal/loan/models"
)

// InMemoryFeed is a source feed backed by a map of year to rows. Used in
// tests and for local runs over fixture files.
type InMemoryFeed struct {
	mu   sync.RWMutex
	rows map[int][]models.RawLoanRecord
}

func NewInMemoryFeed(records ...models.RawLoanRecord) *InMemoryFeed {
	f := &InMemoryFeed{rows: make(map[int][]models.RawLoanRecord)}
	f.Add(records...)
	return f
}

// Add appends records to their years.
func (f *InMemoryFeed) Add(records ...models.RawLoanRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.rows[r.Year] = append(f.rows[r.Year], r)
	}
}

func (f *InMemoryFeed) Years(ctx context.Context, after int) ([]int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	years := make([]int, 0, len(f.rows))
	for y, rows := range f.rows {
		if y > after && len(rows) > 0 {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return years, nil
}

func (f *InMemoryFeed) Scan(ctx context.Context, year int, batchSize int, fn func([]models.RawLoanRecord) error) error {
	if batchSize <= 0 {
		batchSize = 1
	}
	f.mu.RLock()
	rows := slices.Clone(f.rows[year])
	f.mu.RUnlock()

	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(rows))
		if err := fn(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}
