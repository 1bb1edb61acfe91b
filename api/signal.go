// File: api/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Signal is a waitable, auto-reset notification primitive with kernel-event
// semantics: Set marks the signal fired, receiving from C consumes exactly
// one firing, and setting an already-fired signal is a no-op until the
// firing has been observed. Safe for concurrent Set from any goroutine.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an unfired signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Set fires the signal. Coalesces with an unobserved prior firing.
func (s *Signal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the wait channel. A receive consumes one firing.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Reset discards an unobserved firing, if any.
func (s *Signal) Reset() {
	select {
	case <-s.ch:
	default:
	}
}

// Fired reports whether the signal has an unobserved firing. It is a
// snapshot; the state may change immediately after the call returns.
func (s *Signal) Fired() bool {
	return len(s.ch) > 0
}

// SignalAllocator creates and releases the per-listen wait signals owned by
// the acceptor loop. Implementations may track outstanding signals;
// releasing a nil or already-released signal must be a no-op.
type SignalAllocator interface {
	NewSignal() (*Signal, error)
	Release(s *Signal)
}

// DefaultSignalAllocator is the trivial allocator used when none is
// injected.
type DefaultSignalAllocator struct{}

func (DefaultSignalAllocator) NewSignal() (*Signal, error) { return NewSignal(), nil }
func (DefaultSignalAllocator) Release(*Signal)             {}
