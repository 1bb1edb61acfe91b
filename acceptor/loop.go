// File: acceptor/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package acceptor

import (
	"fmt"

	"github.com/momentics/hioload-ipc/api"
)

// WaitResult identifies which wait source ended one multi-wait.
type WaitResult int

const (
	// WaitConnect: the asynchronous connect completed.
	WaitConnect WaitResult = iota
	// WaitAsyncIO: a collaborator signalled asynchronous I/O readiness.
	WaitAsyncIO
	// WaitStop: stop was requested; terminal.
	WaitStop
	// WaitCompletion: the wait was interrupted only to run queued
	// completion routines.
	WaitCompletion
)

// WaitFunc blocks until one of the wait sources fires. The default select
// over the signal channels never fails; the error return and the
// injectability exist so tests can drive the loop through outcomes the
// real sources cannot produce.
type WaitFunc func(connect, asyncIO, stop *api.Signal, completion <-chan struct{}) (WaitResult, error)

func defaultWait(connect, asyncIO, stop *api.Signal, completion <-chan struct{}) (WaitResult, error) {
	select {
	case <-connect.C():
		return WaitConnect, nil
	case <-asyncIO.C():
		return WaitAsyncIO, nil
	case <-stop.C():
		return WaitStop, nil
	case <-completion:
		return WaitCompletion, nil
	}
}

// run is the body of the loop goroutine: it executes the loop, records the
// terminal state, delivers a captured fault after all loop-owned resources
// have been released, and only then signals the joiner.
func (a *Acceptor) run() {
	fault := a.loop()

	a.mu.Lock()
	if fault != nil {
		a.state = stateFaulted
	} else {
		a.state = stateStopped
	}
	a.asyncIO = nil
	done := a.done
	a.mu.Unlock()

	if fault != nil {
		a.deliver(fault)
	}
	close(done)
}

// loop runs the acceptance state machine until stop or fault. Both
// per-listen signals are released on every exit path.
func (a *Acceptor) loop() *api.Fault {
	connect, err := a.signals.NewSignal()
	if err != nil {
		return api.NewFault(api.FaultSignalCreateFailed, err)
	}
	defer a.signals.Release(connect)

	ioReady, err := a.signals.NewSignal()
	if err != nil {
		return api.NewFault(api.FaultSignalCreateFailed, err)
	}
	defer a.signals.Release(ioReady)

	a.mu.Lock()
	a.asyncIO = ioReady
	a.mu.Unlock()

	inst, pending, err := a.arm(connect)
	if err != nil {
		return api.AsFault(err, api.FaultArmFailed)
	}

	for {
		res, err := a.wait(connect, ioReady, a.stop, a.completions.Wake())
		if err != nil {
			return api.NewFault(api.FaultUnexpectedWaitError, err)
		}

		switch res {
		case WaitConnect:
			// A stop racing the connect completion wins: stop is terminal
			// and the half-accepted instance is torn down by Close.
			select {
			case <-a.stop.C():
				return nil
			default:
			}

			if pending {
				if err := inst.Resolve(); err != nil {
					return api.AsFault(err, api.FaultConnectResolutionFailed)
				}
			}
			a.accepted.Add(1)

			a.mu.Lock()
			a.pending = nil
			cb := a.onNewConnection
			a.mu.Unlock()

			if cb != nil {
				cb(inst.Conn(), api.NewSignal())
			} else {
				_ = inst.Close()
			}

			inst, pending, err = a.arm(connect)
			if err != nil {
				return api.AsFault(err, api.FaultArmFailed)
			}

		case WaitAsyncIO:
			a.ioWakes.Add(1)
			a.mu.Lock()
			cb := a.onAsyncIO
			a.mu.Unlock()
			if cb != nil {
				cb()
			}

		case WaitStop:
			return nil

		case WaitCompletion:
			n := a.completions.Drain()
			a.completionsRun.Add(uint64(n))

		default:
			return api.NewFault(api.FaultUnexpectedWaitError,
				fmt.Errorf("wait returned unknown result %d", int(res)))
		}
	}
}

// arm creates and arms a fresh instance through the factory and records it
// as the one pending instance, keeping the endpoint open to the next
// client with no gap.
func (a *Acceptor) arm(connect *api.Signal) (api.PendingInstance, bool, error) {
	inst, pending, err := a.factory.Arm(connect)
	if err != nil {
		return nil, false, err
	}
	a.armed.Add(1)

	a.mu.Lock()
	a.pending = inst
	a.mu.Unlock()
	return inst, pending, nil
}
