package repository

import "errors"

// Sentinel kinds for state store errors.
var (
	ErrDuplicate  = errors.New("update already applied")
	ErrNotFound   = errors.New("state not found")
	ErrInvalidKey = errors.New("update has no player or game id")
)
