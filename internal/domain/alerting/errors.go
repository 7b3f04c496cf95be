package alerting

import "errors"

// ErrLineupNotFound is returned for an untracked lineup id.
var ErrLineupNotFound = errors.New("lineup not found")
