// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"

	"github.com/momentics/hioload-ipc/api"
)

// Conn is an in-memory api.Conn for tests: writes are recorded, reads are
// served from a queue fed by AddReadData, and Close unblocks readers.
type Conn struct {
	mu     sync.Mutex
	cond   *sync.Cond
	inbox  [][]byte
	sent   [][]byte
	closed bool
}

// NewConn creates an open fake connection.
func NewConn() *Conn {
	c := &Conn{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// ReadMessage implements api.Conn.ReadMessage.
func (c *Conn) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.inbox) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.inbox) == 0 {
		return nil, api.ErrConnClosed
	}
	msg := c.inbox[0]
	c.inbox = c.inbox[1:]
	return msg, nil
}

// WriteMessage implements api.Conn.WriteMessage.
func (c *Conn) WriteMessage(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return api.ErrConnClosed
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	c.sent = append(c.sent, cp)
	return nil
}

// Close implements api.Conn.Close.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
	return nil
}

// AddReadData queues one message for the next ReadMessage.
func (c *Conn) AddReadData(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	c.inbox = append(c.inbox, cp)
	c.cond.Broadcast()
}

// Sent returns everything written so far.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
