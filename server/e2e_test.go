//go:build !windows
// +build !windows

// File: server/e2e_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end echo over the real transport: server facade on one side,
// npipe.Dial on the other.

package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/momentics/hioload-ipc/transport/npipe"
)

func TestServer_EndToEndEcho(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "test-channel.sock")

	srv, err := New(DefaultConfig(endpoint))
	assert.NilError(t, err)
	srv.OnMessage(func(c *Connection, msg []byte) {
		assert.NilError(t, c.Send(msg))
	})
	assert.NilError(t, srv.Listen())
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		client, err := npipe.Dial(ctx, endpoint)
		assert.NilError(t, err)

		assert.NilError(t, client.WriteMessage([]byte("42")))
		reply, err := client.ReadMessage()
		assert.NilError(t, err)
		assert.Equal(t, string(reply), "42")

		assert.NilError(t, client.Close())
	}
}

func TestServer_EndToEndStopUnblocks(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "stalled.sock")

	srv, err := New(DefaultConfig(endpoint))
	assert.NilError(t, err)
	srv.OnMessage(func(c *Connection, msg []byte) {})
	assert.NilError(t, srv.Listen())

	// No client ever connects; Stop must still return promptly.
	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not unblock the stalled accept")
	}
}
