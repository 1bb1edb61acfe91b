// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// acceptor_test.go — State-machine tests for the acceptance loop, driven
// through the fake factory, signal allocator and waiter.
package acceptor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/fake"
)

const waitTimeout = 2 * time.Second

// collector records callback invocations for assertions.
type collector struct {
	mu     sync.Mutex
	conns  []api.Conn
	faults []*api.Fault
	gotOne chan struct{} // receives one token per accepted connection
	fault  chan struct{} // receives one token per delivered fault
}

func newCollector() *collector {
	return &collector{
		gotOne: make(chan struct{}, 64),
		fault:  make(chan struct{}, 64),
	}
}

func (c *collector) onNewConnection(conn api.Conn, writeReady *api.Signal) {
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	c.gotOne <- struct{}{}
}

func (c *collector) onFault(f *api.Fault) {
	c.mu.Lock()
	c.faults = append(c.faults, f)
	c.mu.Unlock()
	c.fault <- struct{}{}
}

func (c *collector) accepted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

func (c *collector) faultCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.faults)
}

func (c *collector) lastFault() *api.Fault {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.faults) == 0 {
		return nil
	}
	return c.faults[len(c.faults)-1]
}

func waitOn(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting until %s", what)
}

func TestAcceptor_ReArmAfterEachAccept(t *testing.T) {
	factory := fake.NewFactory()
	col := newCollector()

	a := New("test-channel", factory)
	a.OnNewConnection(col.onNewConnection)
	a.OnFault(col.onFault)
	assert.NilError(t, a.Listen())
	defer a.Close()

	const n = 5
	for i := 0; i < n; i++ {
		factory.CompleteConnect(fake.NewConn())
		waitOn(t, col.gotOne, "accepted connection")

		// Single-pending invariant: one instance armed per accepted
		// connection, plus at most the one currently pending.
		arms := factory.Arms()
		accepted := col.accepted()
		if arms != accepted && arms != accepted+1 {
			t.Fatalf("pending invariant violated: %d arms for %d accepts", arms, accepted)
		}
	}

	assert.Equal(t, col.accepted(), n)
	assert.Equal(t, col.faultCount(), 0)
	assert.Equal(t, a.Stats().Accepted, uint64(n))
}

func TestAcceptor_DistinctConnsPerAccept(t *testing.T) {
	factory := fake.NewFactory()
	col := newCollector()

	a := New("test-channel", factory)
	a.OnNewConnection(col.onNewConnection)
	a.OnFault(col.onFault)
	assert.NilError(t, a.Listen())
	defer a.Close()

	first := fake.NewConn()
	second := fake.NewConn()
	factory.CompleteConnect(first)
	waitOn(t, col.gotOne, "first connection")
	factory.CompleteConnect(second)
	waitOn(t, col.gotOne, "second connection")

	col.mu.Lock()
	defer col.mu.Unlock()
	assert.Equal(t, len(col.conns), 2)
	if col.conns[0] == col.conns[1] {
		t.Fatal("expected distinct conns for sequential accepts")
	}
}

func TestAcceptor_StopUnblocksStalledWait(t *testing.T) {
	factory := fake.NewFactory()
	col := newCollector()

	a := New("idle-endpoint", factory)
	a.OnNewConnection(col.onNewConnection)
	a.OnFault(col.onFault)
	assert.NilError(t, a.Listen())
	waitUntil(t, func() bool { return factory.Arms() == 1 }, "first instance armed")

	// The pending instance never sees a client; Stop must still return
	// within bounded time and force-disconnect it.
	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()
	waitOn(t, stopped, "Stop to join the loop")

	assert.Equal(t, col.accepted(), 0)
	insts := factory.Instances()
	assert.Equal(t, len(insts), 1)
	assert.Assert(t, insts[0].Disconnected())

	// No connection callback may fire after Stop.
	factory.CompleteConnect(fake.NewConn())
	select {
	case <-col.gotOne:
		t.Fatal("connection delivered after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAcceptor_StopIdempotentAndConcurrent(t *testing.T) {
	factory := fake.NewFactory()
	a := New("test-channel", factory)
	a.OnFault(func(*api.Fault) {})
	assert.NilError(t, a.Listen())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Stop()
		}()
	}
	wg.Wait()
	a.Stop() // once more after the fact

	assert.ErrorIs(t, a.Listen(), api.ErrAcceptorClosed)
}

func TestAcceptor_ListenTwice(t *testing.T) {
	factory := fake.NewFactory()
	a := New("test-channel", factory)
	a.OnFault(func(*api.Fault) {})
	assert.NilError(t, a.Listen())
	defer a.Stop()

	assert.ErrorIs(t, a.Listen(), api.ErrAlreadyListening)
}

func TestAcceptor_StopBeforeListen(t *testing.T) {
	a := New("test-channel", fake.NewFactory())
	a.Stop()
	assert.ErrorIs(t, a.Listen(), api.ErrAcceptorClosed)
}

func TestAcceptor_ConnectedRaceSkipsResolve(t *testing.T) {
	factory := fake.NewFactory()
	col := newCollector()

	conn := fake.NewConn()
	factory.QueueConnectedRace(conn)

	a := New("test-channel", factory)
	a.OnNewConnection(col.onNewConnection)
	a.OnFault(col.onFault)
	assert.NilError(t, a.Listen())
	defer a.Close()

	// The factory signalled the connect itself; no client action needed.
	waitOn(t, col.gotOne, "raced connection")
	col.mu.Lock()
	got := col.conns[0]
	col.mu.Unlock()
	assert.Equal(t, got, api.Conn(conn))
	assert.Equal(t, col.faultCount(), 0)
}

func TestAcceptor_AsyncIOCallback(t *testing.T) {
	factory := fake.NewFactory()
	col := newCollector()

	var wakes atomic.Int32
	woke := make(chan struct{}, 8)

	a := New("test-channel", factory)
	a.OnNewConnection(col.onNewConnection)
	a.OnFault(col.onFault)
	a.OnAsyncIOReady(func() {
		wakes.Add(1)
		woke <- struct{}{}
	})
	assert.NilError(t, a.Listen())
	defer a.Close()

	// The per-listen async-I/O signal exists once the loop has armed.
	waitUntil(t, func() bool { return factory.Arms() == 1 }, "first instance armed")
	a.SignalAsyncIO()
	waitOn(t, woke, "async-I/O wake")
	assert.Equal(t, wakes.Load(), int32(1))

	// The async-I/O path must not disturb acceptance.
	factory.CompleteConnect(fake.NewConn())
	waitOn(t, col.gotOne, "connection after async-I/O wake")
}

func TestAcceptor_CompletionRoutinesRunOnLoop(t *testing.T) {
	factory := fake.NewFactory()
	col := newCollector()

	a := New("test-channel", factory)
	a.OnNewConnection(col.onNewConnection)
	a.OnFault(col.onFault)
	assert.NilError(t, a.Listen())
	defer a.Close()

	ran := make(chan struct{}, 4)
	a.PostCompletion(func() { ran <- struct{}{} })
	a.PostCompletion(func() { ran <- struct{}{} })
	waitOn(t, ran, "first completion routine")
	waitOn(t, ran, "second completion routine")

	// Completions are alertable-wait interruptions: they consume no wait
	// signal, so acceptance still proceeds.
	factory.CompleteConnect(fake.NewConn())
	waitOn(t, col.gotOne, "connection after completions")
	assert.Assert(t, a.Stats().CompletionsRun >= 2)
}

// faultCase drives the loop into each fatal-error injection point and
// checks the shared guarantees: exactly one fault, correct kind, no signal
// leak, and release-before-delivery ordering.
type faultCase struct {
	name   string
	kind   api.FaultKind
	setup  func(f *fake.Factory, sa *fake.SignalAllocator, a *Acceptor)
	opts   func(f *fake.Factory, sa *fake.SignalAllocator) []Option
	poke   func(f *fake.Factory)
	signal int // expected successful signal allocations
}

func TestAcceptor_FaultInjection(t *testing.T) {
	osErr := errors.New("os failure 1167")

	cases := []faultCase{
		{
			name: "signal create fails first",
			kind: api.FaultSignalCreateFailed,
			opts: func(f *fake.Factory, sa *fake.SignalAllocator) []Option {
				sa.FailAt(1, osErr)
				return nil
			},
			signal: 0,
		},
		{
			name: "signal create fails second",
			kind: api.FaultSignalCreateFailed,
			opts: func(f *fake.Factory, sa *fake.SignalAllocator) []Option {
				sa.FailAt(2, osErr)
				return nil
			},
			signal: 1,
		},
		{
			name: "create endpoint fails on first arm",
			kind: api.FaultCreateEndpointFailed,
			opts: func(f *fake.Factory, sa *fake.SignalAllocator) []Option {
				f.QueueArmError(api.NewFault(api.FaultCreateEndpointFailed, osErr))
				return nil
			},
			signal: 2,
		},
		{
			name: "arm fails on re-arm",
			kind: api.FaultArmFailed,
			opts: func(f *fake.Factory, sa *fake.SignalAllocator) []Option {
				f.QueuePending(nil)
				f.QueueArmError(api.NewFault(api.FaultArmFailed, osErr))
				return nil
			},
			poke:   func(f *fake.Factory) { f.CompleteConnect(fake.NewConn()) },
			signal: 2,
		},
		{
			name: "synchronous connect on arm",
			kind: api.FaultUnexpectedSynchronousConnect,
			opts: func(f *fake.Factory, sa *fake.SignalAllocator) []Option {
				f.QueueArmError(api.NewFault(api.FaultUnexpectedSynchronousConnect, nil))
				return nil
			},
			signal: 2,
		},
		{
			name: "connect resolution fails",
			kind: api.FaultConnectResolutionFailed,
			opts: func(f *fake.Factory, sa *fake.SignalAllocator) []Option {
				f.QueuePending(osErr)
				return nil
			},
			poke:   func(f *fake.Factory) { f.CompleteConnect(nil) },
			signal: 2,
		},
		{
			name: "unexpected wait outcome",
			kind: api.FaultUnexpectedWaitError,
			opts: func(f *fake.Factory, sa *fake.SignalAllocator) []Option {
				return []Option{WithWaiter(func(_, _, _ *api.Signal, _ <-chan struct{}) (WaitResult, error) {
					return 0, osErr
				})}
			},
			signal: 2,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			factory := fake.NewFactory()
			sa := fake.NewSignalAllocator()
			col := newCollector()

			releasedBeforeFault := make(chan struct{}, 1)
			sa.OnAllReleased(func() {
				select {
				case releasedBeforeFault <- struct{}{}:
				default:
				}
			})

			opts := []Option{WithSignalAllocator(sa)}
			if tc.opts != nil {
				opts = append(opts, tc.opts(factory, sa)...)
			}
			a := New("fault-endpoint", factory, opts...)
			a.OnNewConnection(col.onNewConnection)
			a.OnFault(col.onFault)
			assert.NilError(t, a.Listen())

			if tc.poke != nil {
				tc.poke(factory)
			}

			waitOn(t, col.fault, "fault delivery")
			a.Stop()

			// Exactly one fault, of the expected kind.
			assert.Equal(t, col.faultCount(), 1)
			assert.Equal(t, col.lastFault().Kind, tc.kind)

			// No per-listen signal leaked on the fault path.
			assert.Equal(t, sa.Allocated(), tc.signal)
			assert.Equal(t, sa.Outstanding(), 0)

			// Teardown completed before the fault was delivered.
			if tc.signal > 0 {
				select {
				case <-releasedBeforeFault:
				default:
					t.Fatal("fault delivered before signals were released")
				}
			}

			// The fault is terminal: no connection may follow it.
			factory.CompleteConnect(fake.NewConn())
			select {
			case <-col.gotOne:
				t.Fatal("connection accepted after fault")
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}

func TestAcceptor_FaultWithoutHandlerIsLogged(t *testing.T) {
	// Without a fault callback the acceptor logs and stops; with
	// WithIgnoreFaults it stops silently. Either way it must not panic
	// and must end in the terminal state.
	for _, ignore := range []bool{false, true} {
		factory := fake.NewFactory()
		factory.QueueArmError(api.NewFault(api.FaultCreateEndpointFailed, errors.New("boom")))

		opts := []Option{}
		if ignore {
			opts = append(opts, WithIgnoreFaults())
		}
		a := New("quiet-endpoint", factory, opts...)
		assert.NilError(t, a.Listen())
		a.Stop()
		assert.ErrorIs(t, a.Listen(), api.ErrAcceptorClosed)
	}
}
