// File: internal/concurrency/completion.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// CompletionRoutine is a queued unit of work executed on the draining
// goroutine. Routines must not block.
type CompletionRoutine func()

// CompletionQueue is a multi-producer, single-consumer mailbox of
// completion routines with a coalescing wake channel. It is the explicit
// replacement for relying on an alertable thread state: a wait loop adds
// Wake() to its select set and calls Drain when it fires.
type CompletionQueue struct {
	mu   sync.Mutex
	q    *queue.Queue
	wake chan struct{}
}

// NewCompletionQueue creates an empty queue.
func NewCompletionQueue() *CompletionQueue {
	return &CompletionQueue{
		q:    queue.New(),
		wake: make(chan struct{}, 1),
	}
}

// Post enqueues a routine and wakes the consumer. Wakes coalesce: many
// posts between drains produce at most one pending wake, and Drain runs
// everything queued so far.
func (c *CompletionQueue) Post(fn CompletionRoutine) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.q.Add(fn)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Wake returns the channel the consumer waits on. A receive consumes the
// pending wake; the consumer must follow it with Drain.
func (c *CompletionQueue) Wake() <-chan struct{} {
	return c.wake
}

// Drain runs all queued routines in FIFO order on the calling goroutine
// and returns the number executed. Routines posted while draining are
// picked up in the same pass.
func (c *CompletionQueue) Drain() int {
	n := 0
	for {
		c.mu.Lock()
		if c.q.Length() == 0 {
			c.mu.Unlock()
			return n
		}
		fn := c.q.Remove().(CompletionRoutine)
		c.mu.Unlock()

		fn()
		n++
	}
}

// Pending returns the number of queued routines not yet drained.
func (c *CompletionQueue) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Length()
}
