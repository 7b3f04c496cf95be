package classify

import "errors"

// ErrMalformedUpdate marks a raw update that could not be classified.
var ErrMalformedUpdate = errors.New("malformed update")
