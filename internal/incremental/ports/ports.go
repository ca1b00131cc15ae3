package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hmdamart/internal/loan/models"
	"hmdamart/internal/materialize"
)

// SourceFeed is the read-only view of raw loan rows.
type SourceFeed interface {
	// Years lists reporting years with at least one row strictly after the
	// given year, ascending.
	Years(ctx context.Context, after int) ([]int, error)
	// Scan streams every row of one year to fn in batches of at most
	// batchSize. A non-nil error from fn stops the scan and is returned.
	Scan(ctx context.Context, year int, batchSize int, fn func([]models.RawLoanRecord) error) error
}

// AppendMode selects how a partition is written.
type AppendMode int

const (
	// AppendNew writes a year that must not already be present. Stores
	// return sentinel.ErrConflict otherwise.
	AppendNew AppendMode = iota
	// ReplaceYear deletes the year and writes it again in the same
	// transaction. Only used by explicit rematerialization.
	ReplaceYear
)

func (m AppendMode) String() string {
	if m == ReplaceYear {
		return "replace"
	}
	return "append"
}

// Emit hands one batch of derived rows to the store.
type Emit func([]models.ClassifiedLoanRecord) error

// PartitionInfo describes a year already present in the derived store.
type PartitionInfo struct {
	Year    int
	RunID   uuid.UUID
	Records int
}

// DerivedStore is the append-only materialized dataset. AppendPartition is
// all-or-nothing: if fill or the final write fails, nothing of the year is
// visible afterwards.
type DerivedStore interface {
	// MaxYear returns the highest year present; ok is false when empty.
	MaxYear(ctx context.Context) (year int, ok bool, err error)
	Partition(ctx context.Context, year int) (info PartitionInfo, ok bool, err error)
	AppendPartition(ctx context.Context, year int, mode AppendMode, fill func(emit Emit) error) (written int, err error)
}

// Locker serializes runs across processes. Acquire returns
// sentinel.ErrConflict when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// PartitionEvent announces a year that was materialized.
type PartitionEvent struct {
	RunID       uuid.UUID
	Year        int
	Mode        AppendMode
	Records     int
	Summary     materialize.Summary
	CompletedAt time.Time
}

// Publisher notifies downstream consumers about materialized partitions.
type Publisher interface {
	PublishPartition(ctx context.Context, event PartitionEvent) error
}
