//go:build windows
// +build windows

// File: transport/npipe/factory_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows instance factory over overlapped named pipes. One kernel event
// and one OVERLAPPED form the connect-completion context; both are reused
// across arms and fully re-zeroed and rebound before each arm.

package npipe

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-ipc/api"
)

// Factory creates overlapped named-pipe instances for one endpoint path.
// Arm is only ever called from the acceptor loop goroutine.
type Factory struct {
	path string
	cfg  Config

	// Connect-completion context, rebound on every arm.
	evt windows.Handle
	ovl windows.Overlapped

	mu     sync.Mutex
	closed bool
}

// NewFactory builds a factory for the endpoint name.
func NewFactory(name string, cfg Config) (*Factory, error) {
	evt, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, errors.Wrap(err, "npipe: create connect event")
	}
	return &Factory{
		path: PipePath(name),
		cfg:  cfg.withDefaults(),
		evt:  evt,
	}, nil
}

// Arm implements api.InstanceFactory.Arm.
func (f *Factory) Arm(connect *api.Signal) (api.PendingInstance, bool, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, false, api.NewFault(api.FaultCreateEndpointFailed, api.ErrFactoryClosed)
	}
	f.mu.Unlock()

	path, err := windows.UTF16PtrFromString(f.path)
	if err != nil {
		return nil, false, api.NewFault(api.FaultCreateEndpointFailed, err)
	}

	h, err := windows.CreateNamedPipe(
		path,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_MESSAGE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		uint32(f.cfg.BufferSize),
		uint32(f.cfg.BufferSize),
		uint32(f.cfg.ClientTimeout.Milliseconds()),
		nil,
	)
	if err != nil {
		return nil, false, api.NewFault(api.FaultCreateEndpointFailed,
			errors.Wrap(err, "CreateNamedPipe"))
	}

	// Rebind the completion context: stale state from a previous arm must
	// never be observable through the fresh wait.
	windows.ResetEvent(f.evt)
	f.ovl = windows.Overlapped{HEvent: f.evt}

	err = windows.ConnectNamedPipe(h, &f.ovl)
	if err == nil {
		// The overlapped variant must never complete synchronously.
		windows.CloseHandle(h)
		return nil, false, api.NewFault(api.FaultUnexpectedSynchronousConnect, nil)
	}

	inst := &instance{factory: f, handle: h}
	switch err {
	case windows.ERROR_IO_PENDING:
		go f.bridge(connect)
		return inst, true, nil

	case windows.ERROR_PIPE_CONNECTED:
		// The client connected between create and arm; wake the loop as
		// if the completion had fired.
		connect.Set()
		return inst, false, nil

	default:
		windows.CloseHandle(h)
		return nil, false, api.NewFault(api.FaultArmFailed,
			errors.Wrap(err, "ConnectNamedPipe"))
	}
}

// bridge relays the kernel connect event onto the loop's connect signal.
func (f *Factory) bridge(connect *api.Signal) {
	windows.WaitForSingleObject(f.evt, windows.INFINITE)
	connect.Set()
}

// Close implements api.InstanceFactory.Close. Safe to call twice; a
// blocked bridge goroutine is released before the event is destroyed.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	windows.SetEvent(f.evt)
	windows.CloseHandle(f.evt)
	f.evt = windows.InvalidHandle
	return nil
}

// instance is one armed pipe instance.
type instance struct {
	factory *Factory
	mu      sync.Mutex
	handle  windows.Handle
	taken   bool
}

// Resolve implements api.PendingInstance.Resolve.
func (i *instance) Resolve() error {
	i.mu.Lock()
	h := i.handle
	i.mu.Unlock()
	if h == windows.InvalidHandle {
		return api.ErrConnClosed
	}
	var done uint32
	if err := windows.GetOverlappedResult(h, &i.factory.ovl, &done, false); err != nil {
		return errors.Wrap(err, "GetOverlappedResult(connect)")
	}
	return nil
}

// Conn implements api.PendingInstance.Conn. Ownership of the handle moves
// to the returned Conn.
func (i *instance) Conn() api.Conn {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.taken = true
	return newPipeConn(i.handle, i.factory.cfg.BufferSize)
}

// Disconnect implements api.PendingInstance.Disconnect: it breaks a
// never-completed connect so the pending wait unblocks, and releases the
// factory's bridge goroutine.
func (i *instance) Disconnect() error {
	i.mu.Lock()
	h := i.handle
	i.mu.Unlock()
	if h == windows.InvalidHandle {
		return nil
	}
	windows.DisconnectNamedPipe(h)
	windows.SetEvent(i.factory.evt)
	return nil
}

// Close implements api.PendingInstance.Close. A handed-off or already
// closed instance is left alone.
func (i *instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.taken || i.handle == windows.InvalidHandle {
		return nil
	}
	windows.CloseHandle(i.handle)
	i.handle = windows.InvalidHandle
	return nil
}
