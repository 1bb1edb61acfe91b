//go:build windows
// +build windows

// File: transport/npipe/conn_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package npipe

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-ipc/api"
)

// pipeConn is a connected message-mode pipe instance. The handle was
// created with FILE_FLAG_OVERLAPPED, so every read and write goes through
// its own event-backed OVERLAPPED and blocks the calling goroutine only.
type pipeConn struct {
	handle  windows.Handle
	bufSize int

	rmu      sync.Mutex
	readEvt  windows.Handle
	wmu      sync.Mutex
	writeEvt windows.Handle

	cmu    sync.Mutex
	closed bool
}

func newPipeConn(h windows.Handle, bufSize int) *pipeConn {
	readEvt, _ := windows.CreateEvent(nil, 0, 0, nil)
	writeEvt, _ := windows.CreateEvent(nil, 0, 0, nil)
	return &pipeConn{
		handle:   h,
		bufSize:  bufSize,
		readEvt:  readEvt,
		writeEvt: writeEvt,
	}
}

// ReadMessage implements api.Conn.ReadMessage. A message larger than the
// instance buffer is reassembled across ERROR_MORE_DATA continuations.
func (c *pipeConn) ReadMessage() ([]byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	if c.isClosed() {
		return nil, api.ErrConnClosed
	}

	buf := make([]byte, c.bufSize)
	var msg []byte
	for {
		ovl := windows.Overlapped{HEvent: c.readEvt}
		var done uint32
		err := windows.ReadFile(c.handle, buf, &done, &ovl)
		if err == windows.ERROR_IO_PENDING {
			err = windows.GetOverlappedResult(c.handle, &ovl, &done, true)
		}
		msg = append(msg, buf[:done]...)

		switch err {
		case nil:
			return msg, nil
		case windows.ERROR_MORE_DATA:
			continue
		default:
			return nil, errors.Wrap(err, "read pipe message")
		}
	}
}

// WriteMessage implements api.Conn.WriteMessage. Message mode maps one
// WriteFile to one message on the wire.
func (c *pipeConn) WriteMessage(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.isClosed() {
		return api.ErrConnClosed
	}

	ovl := windows.Overlapped{HEvent: c.writeEvt}
	var done uint32
	err := windows.WriteFile(c.handle, p, &done, &ovl)
	if err == windows.ERROR_IO_PENDING {
		err = windows.GetOverlappedResult(c.handle, &ovl, &done, true)
	}
	if err != nil {
		return errors.Wrap(err, "write pipe message")
	}
	return nil
}

// Close implements api.Conn.Close. Closing twice is a no-op; release of an
// already-invalid handle never escalates.
func (c *pipeConn) Close() error {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	windows.FlushFileBuffers(c.handle)
	windows.DisconnectNamedPipe(c.handle)
	windows.CloseHandle(c.handle)
	windows.CloseHandle(c.readEvt)
	windows.CloseHandle(c.writeEvt)
	return nil
}

func (c *pipeConn) isClosed() bool {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.closed
}
