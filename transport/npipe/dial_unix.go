//go:build !windows
// +build !windows

// File: transport/npipe/dial_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package npipe

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-ipc/api"
)

// Dial connects to the named endpoint as a client.
func Dial(ctx context.Context, name string) (api.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", PipePath(name))
	if err != nil {
		return nil, errors.Wrapf(err, "npipe: dial %s", name)
	}
	return newFramedConn(conn), nil
}
