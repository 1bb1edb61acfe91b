// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the core interfaces.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-ipc/api"
)

// Instance is a fake api.PendingInstance. Tests drive it through the
// owning Factory.
type Instance struct {
	mu           sync.Mutex
	conn         api.Conn
	resolveErr   error
	resolved     bool
	completed    bool
	disconnected bool
	closed       bool
}

// Resolve implements api.PendingInstance.Resolve.
func (i *Instance) Resolve() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resolved = true
	return i.resolveErr
}

// Conn implements api.PendingInstance.Conn.
func (i *Instance) Conn() api.Conn {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.conn
}

// Disconnect implements api.PendingInstance.Disconnect.
func (i *Instance) Disconnect() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.disconnected = true
	return nil
}

// Close implements api.PendingInstance.Close.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

// Disconnected reports whether Disconnect was called.
func (i *Instance) Disconnected() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.disconnected
}

// Closed reports whether Close was called.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// armOutcome scripts the result of one Arm call.
type armOutcome struct {
	err        error
	pending    bool
	signalNow  bool // non-pending arm: factory sets the connect signal itself
	resolveErr error
	conn       api.Conn
}

// Factory is a fake api.InstanceFactory with scripted Arm outcomes. By
// default every Arm succeeds as pending; tests connect clients through
// CompleteConnect.
type Factory struct {
	mu        sync.Mutex
	arms      int
	script    []armOutcome
	instances []*Instance
	connect   *api.Signal
	current   *Instance
	closed    bool
}

// NewFactory creates a fake factory with no scripted outcomes.
func NewFactory() *Factory {
	return &Factory{}
}

// QueueArmError scripts the next unscripted Arm call to fail with err.
func (f *Factory) QueueArmError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, armOutcome{err: err})
}

// QueuePending scripts a normal pending arm whose later Resolve returns
// resolveErr (nil for success).
func (f *Factory) QueuePending(resolveErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, armOutcome{pending: true, resolveErr: resolveErr})
}

// QueueConnectedRace scripts the race path: the client connected while
// arming, the factory sets the connect signal itself and reports the
// instance as not pending.
func (f *Factory) QueueConnectedRace(conn api.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, armOutcome{pending: false, signalNow: true, conn: conn})
}

// Arm implements api.InstanceFactory.Arm.
func (f *Factory) Arm(connect *api.Signal) (api.PendingInstance, bool, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, false, api.ErrFactoryClosed
	}

	out := armOutcome{pending: true}
	if len(f.script) > 0 {
		out = f.script[0]
		f.script = f.script[1:]
	}
	if out.err != nil {
		f.mu.Unlock()
		return nil, false, out.err
	}

	f.arms++
	inst := &Instance{conn: out.conn, resolveErr: out.resolveErr, completed: !out.pending}
	f.instances = append(f.instances, inst)
	f.connect = connect
	f.current = inst
	f.mu.Unlock()

	if out.signalNow {
		connect.Set()
	}
	return inst, out.pending, nil
}

// Close implements api.InstanceFactory.Close.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// CompleteConnect simulates a client connecting to the pending instance:
// it attaches conn to the instance and fires the connect signal the
// instance was armed with. It waits briefly for a fresh pending instance,
// so callers may race the loop's arm.
func (f *Factory) CompleteConnect(conn api.Conn) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		inst := f.current
		sig := f.connect
		f.mu.Unlock()

		if inst != nil && sig != nil {
			inst.mu.Lock()
			fresh := !inst.completed
			if fresh {
				inst.completed = true
				inst.conn = conn
			}
			inst.mu.Unlock()
			if fresh {
				sig.Set()
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
}

// Arms returns the number of successful Arm calls.
func (f *Factory) Arms() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.arms
}

// Instances returns all instances created so far.
func (f *Factory) Instances() []*Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Instance, len(f.instances))
	copy(out, f.instances)
	return out
}
