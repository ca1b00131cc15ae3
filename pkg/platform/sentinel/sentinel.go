package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks and publishers return
// these (optionally wrapped) so the controller can decide between retrying,
// skipping and failing a run.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: partition already present, or another run holds the lock
//   - ErrInvalidState: operation not allowed in the current state
//   - ErrUnavailable: store or broker temporarily unavailable (retryable)
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
