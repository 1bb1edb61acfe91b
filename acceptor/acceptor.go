// File: acceptor/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package acceptor

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/internal/concurrency"
)

type state int

const (
	stateIdle state = iota
	stateListening
	stateStopped
	stateFaulted
)

// Acceptor drives the acceptance loop for one named endpoint. It is
// single-shot: after Stop (or a fault) it stays terminal and Listen
// returns ErrAcceptorClosed; build a new Acceptor to accept again.
type Acceptor struct {
	name    string
	factory api.InstanceFactory
	signals api.SignalAllocator
	wait    WaitFunc
	log     *logrus.Entry

	completions  *concurrency.CompletionQueue
	ignoreFaults bool

	onNewConnection api.NewConnectionFunc
	onFault         api.FaultFunc
	onAsyncIO       api.AsyncIOFunc

	// stop lives for the acceptor's whole lifetime; the per-listen connect
	// and async-I/O signals are allocated by the loop itself.
	stop *api.Signal

	stopOnce sync.Once

	mu      sync.Mutex
	state   state
	done    chan struct{}
	pending api.PendingInstance
	asyncIO *api.Signal

	armed          atomic.Uint64
	accepted       atomic.Uint64
	ioWakes        atomic.Uint64
	completionsRun atomic.Uint64
}

// Option configures an Acceptor at construction time.
type Option func(*Acceptor)

// WithSignalAllocator injects the allocator for the per-listen wait
// signals. Tests use it to count allocations and inject failures.
func WithSignalAllocator(sa api.SignalAllocator) Option {
	return func(a *Acceptor) { a.signals = sa }
}

// WithWaiter injects the multi-wait used by the loop.
func WithWaiter(w WaitFunc) Option {
	return func(a *Acceptor) { a.wait = w }
}

// WithLogger sets the logger for loop diagnostics and unhandled faults.
func WithLogger(log *logrus.Logger) Option {
	return func(a *Acceptor) { a.log = log.WithField("endpoint", a.name) }
}

// WithIgnoreFaults suppresses the error log emitted when a fault occurs
// and no fault callback is registered. Opt-in only: the default behavior
// is to make an unhandled fault loud rather than let the acceptor die
// silently.
func WithIgnoreFaults() Option {
	return func(a *Acceptor) { a.ignoreFaults = true }
}

// New builds an Acceptor for the endpoint name, accepting through the
// given factory. The endpoint identity is fixed for the acceptor's
// lifetime.
func New(name string, factory api.InstanceFactory, opts ...Option) *Acceptor {
	a := &Acceptor{
		name:        name,
		factory:     factory,
		signals:     api.DefaultSignalAllocator{},
		wait:        defaultWait,
		log:         logrus.WithField("endpoint", name),
		completions: concurrency.NewCompletionQueue(),
		stop:        api.NewSignal(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// OnNewConnection registers the new-connection callback. Must be called
// before Listen; the callback takes ownership of the delivered Conn.
func (a *Acceptor) OnNewConnection(fn api.NewConnectionFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onNewConnection = fn
}

// OnFault registers the fault callback. Must be called before Listen.
func (a *Acceptor) OnFault(fn api.FaultFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFault = fn
}

// OnAsyncIOReady registers the async-I/O-ready callback. Must be called
// before Listen. The callback runs on the loop goroutine and must not
// block or re-enter Listen/Stop.
func (a *Acceptor) OnAsyncIOReady(fn api.AsyncIOFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onAsyncIO = fn
}

// Listen spawns the loop goroutine and returns immediately; it does not
// wait for the first instance to be armed. Faults occurring afterwards,
// including a failing first arm, surface through the fault callback.
func (a *Acceptor) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateListening:
		return api.ErrAlreadyListening
	case stateStopped, stateFaulted:
		return api.ErrAcceptorClosed
	}
	a.state = stateListening
	a.done = make(chan struct{})
	go a.run()
	return nil
}

// Stop signals the loop to exit, force-disconnects the pending instance so
// a wait on a client that never arrives unblocks, and joins the loop
// goroutine. Idempotent and safe under concurrent calls. Must not be
// called from a callback running on the loop goroutine.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.state == stateIdle {
		a.state = stateStopped
		a.mu.Unlock()
		return
	}
	done := a.done
	pending := a.pending
	a.mu.Unlock()

	a.stopOnce.Do(func() {
		a.stop.Set()
		if pending != nil {
			_ = pending.Disconnect()
		}
	})
	if done != nil {
		<-done
	}
}

// Close stops the acceptor and releases the pending instance it still
// owns. Releasing an instance that was never armed, or was already handed
// off, is a no-op.
func (a *Acceptor) Close() error {
	a.Stop()
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()
	if pending != nil {
		_ = pending.Close()
	}
	return nil
}

// SignalAsyncIO fires the loop's asynchronous-I/O signal. Connections call
// it after queueing a write so their completion gets processed on the loop
// goroutine. A no-op while the loop is not running.
func (a *Acceptor) SignalAsyncIO() {
	a.mu.Lock()
	s := a.asyncIO
	a.mu.Unlock()
	if s != nil {
		s.Set()
	}
}

// PostCompletion queues a completion routine to run on the loop goroutine
// the next time it wakes, mirroring an alertable wait: the routine runs
// opportunistically while the loop is blocked, without consuming any of
// the three wait signals.
func (a *Acceptor) PostCompletion(fn func()) {
	a.completions.Post(fn)
}

// Stats is a snapshot of the loop's counters.
type Stats struct {
	Armed          uint64
	Accepted       uint64
	AsyncIOWakes   uint64
	CompletionsRun uint64
}

// Stats returns the current counter snapshot.
func (a *Acceptor) Stats() Stats {
	return Stats{
		Armed:          a.armed.Load(),
		Accepted:       a.accepted.Load(),
		AsyncIOWakes:   a.ioWakes.Load(),
		CompletionsRun: a.completionsRun.Load(),
	}
}

// deliver hands the captured fault to the registered callback, or logs it
// when none is registered and fault logging has not been opted out.
func (a *Acceptor) deliver(f *api.Fault) {
	a.mu.Lock()
	cb := a.onFault
	a.mu.Unlock()
	if cb != nil {
		cb(f)
		return
	}
	if !a.ignoreFaults {
		a.log.WithError(f).Error("acceptor terminated by unhandled fault")
	}
}
