package incremental

import (
	"time"

	"github.com/google/uuid"

	"hmdamart/internal/materialize"
)

// State is the controller's run state.
type State int32

const (
	StateIdle State = iota
	StateMaterializing
)

func (s State) String() string {
	if s == StateMaterializing {
		return "materializing"
	}
	return "idle"
}

// PartitionResult describes one committed year.
type PartitionResult struct {
	Year     int
	Records  int
	Attempts int
	Summary  materialize.Summary
}

// RunResult describes one run, successful or not.
type RunResult struct {
	RunID       uuid.UUID
	StartedAt   time.Time
	FinishedAt  time.Time
	Watermark   int
	Partitions  []PartitionResult
	FailedYears []int
}

// Records is the number of derived rows committed by the run.
func (r *RunResult) Records() int {
	n := 0
	for _, p := range r.Partitions {
		n += p.Records
	}
	return n
}

// Years lists the committed years in processing order.
func (r *RunResult) Years() []int {
	years := make([]int, len(r.Partitions))
	for i, p := range r.Partitions {
		years[i] = p.Year
	}
	return years
}
