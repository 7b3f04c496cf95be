package scoring

import "errors"

// ErrStateCorruption marks a computed projection that breaks an invariant.
// The projection must be discarded and the previous one kept.
var ErrStateCorruption = errors.New("projection invariant violated")
