package repository

import "github.com/okian/fantasylive/internal/domain/dedupe"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShards sets the number of lock stripes per key family.
func WithShards(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithDeduper replaces the seen-id set used for idempotency.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *MemoryStore) {
		if d != nil {
			s.seen = d
		}
	}
}
