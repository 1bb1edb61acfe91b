//go:build !windows
// +build !windows

// File: transport/npipe/factory_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallback instance factory over Unix domain sockets. One listener stands
// in for the named endpoint; each arm issues an asynchronous accept whose
// completion fires the loop's connect signal, preserving the acceptor's
// arm/resolve/hand-off contract.

package npipe

import (
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-ipc/api"
)

// Factory creates pending instances for one endpoint socket path.
type Factory struct {
	path string
	cfg  Config

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// NewFactory builds a factory for the endpoint name, binding its socket.
func NewFactory(name string, cfg Config) (*Factory, error) {
	path := PipePath(name)
	os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "npipe: listen %s", path)
	}
	return &Factory{path: path, cfg: cfg.withDefaults(), ln: ln}, nil
}

// Arm implements api.InstanceFactory.Arm. The accept itself always
// completes asynchronously here, so every successful arm is pending.
func (f *Factory) Arm(connect *api.Signal) (api.PendingInstance, bool, error) {
	f.mu.Lock()
	ln := f.ln
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, false, api.NewFault(api.FaultCreateEndpointFailed, api.ErrFactoryClosed)
	}

	inst := &instance{factory: f}
	go func() {
		conn, err := ln.Accept()
		inst.mu.Lock()
		inst.conn = conn
		inst.err = err
		inst.mu.Unlock()
		connect.Set()
	}()
	return inst, true, nil
}

// Close implements api.InstanceFactory.Close: the socket is unlinked and
// any in-flight accept unblocks with an error.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	err := f.ln.Close()
	os.Remove(f.path)
	return err
}

// instance is one pending accept.
type instance struct {
	factory *Factory

	mu    sync.Mutex
	conn  net.Conn
	err   error
	taken bool
}

// Resolve implements api.PendingInstance.Resolve.
func (i *instance) Resolve() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return errors.Wrap(i.err, "accept")
	}
	return nil
}

// Conn implements api.PendingInstance.Conn.
func (i *instance) Conn() api.Conn {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.taken = true
	return newFramedConn(i.conn)
}

// Disconnect implements api.PendingInstance.Disconnect. Stop is terminal
// for the acceptor, so breaking the pending accept by closing the
// endpoint listener is safe: no further instance will ever be armed.
func (i *instance) Disconnect() error {
	return i.factory.Close()
}

// Close implements api.PendingInstance.Close.
func (i *instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.taken || i.conn == nil {
		return nil
	}
	err := i.conn.Close()
	i.conn = nil
	return err
}
