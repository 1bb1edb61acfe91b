// File: server/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync"

	"github.com/momentics/hioload-ipc/api"
)

// Connection is one accepted client. Sends are queued and flushed on the
// acceptor loop goroutine, so any goroutine may call Send without racing
// the writer.
type Connection struct {
	srv        *Server
	conn       api.Conn
	writeReady *api.Signal

	mu     sync.Mutex
	outbox [][]byte
	closed bool

	closeOnce sync.Once
}

// Send queues one message for delivery and wakes the acceptor loop. The
// payload is copied; the caller may reuse p.
func (c *Connection) Send(p []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return api.ErrConnClosed
	}
	msg := make([]byte, len(p))
	copy(msg, p)
	c.outbox = append(c.outbox, msg)
	c.mu.Unlock()

	c.writeReady.Set()
	c.srv.acc.SignalAsyncIO()
	return nil
}

// flush writes all queued messages. Runs on the acceptor loop goroutine.
func (c *Connection) flush() {
	c.mu.Lock()
	pending := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, msg := range pending {
		if err := c.conn.WriteMessage(msg); err != nil {
			c.srv.log.WithError(err).Debug("write failed, dropping connection")
			c.Close()
			return
		}
		c.srv.ctrl.IncMetric("messages.sent")
	}
}

// readLoop pumps inbound messages into the server callback until the
// client disconnects.
func (c *Connection) readLoop(cb MessageFunc) {
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			c.Close()
			return
		}
		c.srv.ctrl.IncMetric("messages.received")
		if cb != nil {
			cb(c, msg)
		}
	}
}

// Close tears the connection down and unregisters it. Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.outbox = nil
		c.mu.Unlock()

		c.conn.Close()
		c.srv.remove(c)
		c.srv.log.Debug("client disconnected")
	})
	return nil
}
