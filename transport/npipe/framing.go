// File: transport/npipe/framing.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package npipe

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-ipc/api"
)

// framedConn layers message boundaries over a byte-stream connection with
// a 4-byte big-endian length prefix. It restores the message-mode contract
// on transports that lack kernel framing.
type framedConn struct {
	conn net.Conn

	rmu sync.Mutex
	wmu sync.Mutex

	cmu    sync.Mutex
	closed bool
}

func newFramedConn(conn net.Conn) *framedConn {
	return &framedConn{conn: conn}
}

// ReadMessage implements api.Conn.ReadMessage.
func (c *framedConn) ReadMessage() ([]byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	if c.isClosed() {
		return nil, api.ErrConnClosed
	}

	var hdr [4]byte
	if _, err := io.ReadFull(c.conn, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "read frame header")
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxMessageSize {
		return nil, errors.Errorf("frame of %d bytes exceeds limit", n)
	}

	msg := make([]byte, n)
	if _, err := io.ReadFull(c.conn, msg); err != nil {
		return nil, errors.Wrap(err, "read frame body")
	}
	return msg, nil
}

// WriteMessage implements api.Conn.WriteMessage. Header and body go out in
// one Write so concurrent writers cannot interleave frames.
func (c *framedConn) WriteMessage(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.isClosed() {
		return api.ErrConnClosed
	}
	if len(p) > maxMessageSize {
		return errors.Errorf("frame of %d bytes exceeds limit", len(p))
	}

	frame := make([]byte, 4+len(p))
	binary.BigEndian.PutUint32(frame, uint32(len(p)))
	copy(frame[4:], p)
	if _, err := c.conn.Write(frame); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// Close implements api.Conn.Close.
func (c *framedConn) Close() error {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *framedConn) isClosed() bool {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.closed
}
