// Package fake
// Author: momentics <momentics@gmail.com>
//
// Counting signal allocator with failure injection, used to verify the
// acceptor's no-leak-on-fault guarantee and teardown ordering.

package fake

import (
	"sync"

	"github.com/momentics/hioload-ipc/api"
)

// SignalAllocator is a fake api.SignalAllocator that counts allocations
// and releases, optionally failing the Nth allocation, and recording the
// instant at which all outstanding signals were released.
type SignalAllocator struct {
	mu         sync.Mutex
	allocated  int
	released   int
	failAt     int // 1-based allocation index to fail at; 0 = never
	failErr    error
	onAllFreed func()
}

// NewSignalAllocator creates an allocator that never fails.
func NewSignalAllocator() *SignalAllocator {
	return &SignalAllocator{}
}

// FailAt makes the n-th NewSignal call (1-based) return err.
func (s *SignalAllocator) FailAt(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = n
	s.failErr = err
}

// OnAllReleased registers a hook invoked whenever the outstanding count
// drops to zero. Tests use it to observe release-before-fault ordering.
func (s *SignalAllocator) OnAllReleased(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAllFreed = fn
}

// NewSignal implements api.SignalAllocator.NewSignal.
func (s *SignalAllocator) NewSignal() (*api.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && s.allocated+1 == s.failAt {
		return nil, s.failErr
	}
	s.allocated++
	return api.NewSignal(), nil
}

// Release implements api.SignalAllocator.Release.
func (s *SignalAllocator) Release(sig *api.Signal) {
	if sig == nil {
		return
	}
	s.mu.Lock()
	s.released++
	fire := s.released == s.allocated && s.onAllFreed != nil
	fn := s.onAllFreed
	s.mu.Unlock()
	if fire {
		fn()
	}
}

// Outstanding returns allocated minus released.
func (s *SignalAllocator) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated - s.released
}

// Allocated returns the number of successful allocations.
func (s *SignalAllocator) Allocated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated
}
