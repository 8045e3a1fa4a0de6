// Package wake provides the binary, coalescing signal that connects an edge
// handler to the worker that serves it.
//
// Raise never blocks, never allocates and takes no lock, so it is safe to
// call from the goroutine that delivers hardware edges. Wait blocks until
// the signal is set and clears it in the same step. Any number of Raise
// calls between two Waits wake the worker exactly once.
package wake

import (
	"context"
	"sync/atomic"
)

// Signal is a binary semaphore with "at least one event happened"
// semantics. The zero value is not usable; call New.
type Signal struct {
	name   string
	ch     chan struct{}
	raised atomic.Uint64
}

// New creates a cleared signal.
func New(name string) *Signal {
	return &Signal{
		name: name,
		ch:   make(chan struct{}, 1),
	}
}

// Name returns the source name the signal belongs to
func (s *Signal) Name() string {
	return s.name
}

// Raise sets the signal. If it is already set the call is a no-op.
func (s *Signal) Raise() {
	s.raised.Add(1)
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is set, then clears it. It returns the
// context error if ctx ends first.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports whether the signal is currently set.
func (s *Signal) Pending() bool {
	return len(s.ch) > 0
}

// Raised returns how many times Raise was called, coalesced or not.
func (s *Signal) Raised() uint64 {
	return s.raised.Load()
}
