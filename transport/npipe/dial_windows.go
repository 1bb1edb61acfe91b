//go:build windows
// +build windows

// File: transport/npipe/dial_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package npipe

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-ipc/api"
)

// Dial connects to the named endpoint as a client. The handle is switched
// to message read mode so the connection observes the same one-write,
// one-read framing as the server side, including ERROR_MORE_DATA
// reassembly for messages larger than the read buffer.
func Dial(ctx context.Context, name string) (api.Conn, error) {
	path, err := windows.UTF16PtrFromString(PipePath(name))
	if err != nil {
		return nil, errors.Wrapf(err, "npipe: dial %s", name)
	}

	for {
		h, err := windows.CreateFile(
			path,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			windows.FILE_FLAG_OVERLAPPED,
			0,
		)
		if err == nil {
			mode := uint32(windows.PIPE_READMODE_MESSAGE)
			if err := windows.SetNamedPipeHandleState(h, &mode, nil, nil); err != nil {
				windows.CloseHandle(h)
				return nil, errors.Wrap(err, "npipe: set message read mode")
			}
			return newPipeConn(h, DefaultBufferSize), nil
		}

		// Busy means every instance is taken; not-found covers the gap
		// between an accept and the server's re-arm. Both are retryable
		// until the context gives up.
		if err != windows.ERROR_PIPE_BUSY && err != windows.ERROR_FILE_NOT_FOUND {
			return nil, errors.Wrapf(err, "npipe: dial %s", name)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
