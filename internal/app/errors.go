package service

import "errors"

// Sentinel errors returned by the engine.
var (
	// ErrNotStarted is returned when the engine has not been started.
	ErrNotStarted = errors.New("engine not started")
	// ErrPaused is returned for ingestion while the engine is paused.
	ErrPaused = errors.New("engine paused")
	// ErrQueueFull is returned when the dispatch queue rejects an update.
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrUnsupportedPayload marks an update whose payload the pipeline
	// cannot apply.
	ErrUnsupportedPayload = errors.New("unsupported payload")
	// ErrInvalidPatch is returned by UpdateConfig for out-of-range values.
	ErrInvalidPatch = errors.New("invalid config patch")
	// ErrInvalidLineup is returned for a lineup without an id or starters.
	ErrInvalidLineup = errors.New("invalid lineup")
)
