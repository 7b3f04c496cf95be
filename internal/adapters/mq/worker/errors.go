package worker

import "errors"

// Sentinel errors for workers.
var (
	// ErrProcessing wraps a failure or panic while processing one update.
	ErrProcessing = errors.New("update processing failed")
	// ErrStopped is returned when dispatching to a stopped pool.
	ErrStopped = errors.New("worker pool stopped")
)
