package feed

import (
	"context"
	"errors"

	"github.com/okian/fantasylive/internal/domain/types"
)

// Manager runs a set of listeners together.
type Manager struct {
	listeners []*Listener
}

// NewManager creates one listener per url sharing sink and options.
func NewManager(urls []string, sink Sink, opts ...Option) *Manager {
	m := &Manager{}
	for _, u := range urls {
		m.listeners = append(m.listeners, NewListener(u, sink, opts...))
	}
	return m
}

// Start starts every listener.
func (m *Manager) Start(ctx context.Context) error {
	var errs []error
	for _, l := range m.listeners {
		errs = append(errs, l.Start(ctx))
	}
	return errors.Join(errs...)
}

// Stop stops every listener.
func (m *Manager) Stop(ctx context.Context) error {
	var errs []error
	for _, l := range m.listeners {
		errs = append(errs, l.Stop(ctx))
	}
	return errors.Join(errs...)
}

// Statuses reports every listener.
func (m *Manager) Statuses() []types.FeedStatus {
	out := make([]types.FeedStatus, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l.Status())
	}
	return out
}
