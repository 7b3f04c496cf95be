package feed

import "errors"

// Sentinel errors for feed listeners.
var (
	// ErrStale means no message arrived within the stale window.
	ErrStale = errors.New("feed stale")
	// ErrClosed is returned by a listener that was closed for good.
	ErrClosed = errors.New("feed closed")
)
