package incremental

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hmdamart/pkg/platform/sentinel"
)

// ErrRunInProgress is returned when another run holds the controller or the
// distributed lock.
var ErrRunInProgress = fmt.Errorf("materialization run in progress: %w", sentinel.ErrConflict)

// RunError reports a run that stopped on a structural failure. FailedYears
// lists the year that failed and every later year left unprocessed; none of
// them is present in the derived store, so the next run starts with them.
type RunError struct {
	RunID       uuid.UUID
	FailedYears []int
	Err         error
}

func (e *RunError) Error() string {
	if len(e.FailedYears) == 0 {
		return fmt.Sprintf("run %s: %v", e.RunID, e.Err)
	}
	years := make([]string, len(e.FailedYears))
	for i, y := range e.FailedYears {
		years[i] = fmt.Sprint(y)
	}
	return fmt.Sprintf("run %s: years %s not materialized: %v", e.RunID, strings.Join(years, ","), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: the store or feed was
// unavailable and the attempt was rolled back.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, sentinel.ErrUnavailable)
}
