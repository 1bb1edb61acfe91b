// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server orchestrates the acceptor, the pipe transport and the control
// plane into a message-callback IPC server. One Server owns one endpoint
// and accepts any number of concurrent clients on it.

package server

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-ipc/acceptor"
	"github.com/momentics/hioload-ipc/adapters"
	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/transport/npipe"
)

// MessageFunc receives every inbound message together with the connection
// it arrived on. It runs on the connection's reader goroutine; replies go
// through Connection.Send.
type MessageFunc func(c *Connection, msg []byte)

// Server is a single-use IPC server facade. Listen starts accepting,
// Stop shuts down; a stopped Server cannot be restarted.
type Server struct {
	cfg     Config
	log     *logrus.Entry
	factory api.InstanceFactory
	acc     *acceptor.Acceptor
	ctrl    *adapters.ControlAdapter

	mu        sync.Mutex
	conns     map[*Connection]struct{}
	onMessage MessageFunc
	onFault   api.FaultFunc

	stopOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the server and its acceptor.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) { s.log = log.WithField("endpoint", s.cfg.Endpoint) }
}

// WithFactory injects the instance factory instead of binding the
// platform pipe transport. The server takes ownership and closes it.
func WithFactory(f api.InstanceFactory) Option {
	return func(s *Server) { s.factory = f }
}

// WithFaultHandler registers a handler for the acceptor's terminal fault.
// Without one the fault is logged and surfaced through Stats.
func WithFaultHandler(fn api.FaultFunc) Option {
	return func(s *Server) { s.onFault = fn }
}

// New builds a Server for cfg. Unless WithFactory overrides it, the
// endpoint is bound immediately, so New fails fast on an unusable name.
func New(cfg Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:   cfg,
		log:   logrus.WithField("endpoint", cfg.Endpoint),
		ctrl:  adapters.NewControlAdapter(),
		conns: make(map[*Connection]struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	if s.factory == nil {
		f, err := npipe.NewFactory(cfg.Endpoint, cfg.transport())
		if err != nil {
			return nil, err
		}
		s.factory = f
	}

	s.acc = acceptor.New(cfg.Endpoint, s.factory)
	s.acc.OnNewConnection(s.handleConnect)
	s.acc.OnAsyncIOReady(s.flushReady)
	s.acc.OnFault(s.handleFault)

	s.ctrl.SetMetric("endpoint", cfg.Endpoint)
	s.ctrl.RegisterDebugProbe("acceptor", func() any {
		st := s.acc.Stats()
		return map[string]any{
			"armed":           st.Armed,
			"accepted":        st.Accepted,
			"io_wakes":        st.AsyncIOWakes,
			"completions_run": st.CompletionsRun,
		}
	})
	s.ctrl.RegisterDebugProbe("connections", func() any {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns)
	})
	return s, nil
}

// OnMessage registers the inbound message callback. Must be called before
// Listen.
func (s *Server) OnMessage(fn MessageFunc) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// Listen starts accepting clients. It returns once the acceptor loop is
// running.
func (s *Server) Listen() error {
	return s.acc.Listen()
}

// Stop shuts down the acceptor and closes every live connection. Safe to
// call more than once and from any goroutine; all callers return after
// teardown completes.
func (s *Server) Stop() {
	s.acc.Stop()
	s.stopOnce.Do(func() {
		// Close, not just Stop: the acceptor still owns the armed
		// instance that never saw a client, and only Close releases it.
		s.acc.Close()

		s.mu.Lock()
		conns := make([]*Connection, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
		s.factory.Close()
	})
}

// Control exposes the server's control plane.
func (s *Server) Control() api.Control {
	return s.ctrl
}

// handleConnect runs on the acceptor loop goroutine for each accepted
// client.
func (s *Server) handleConnect(conn api.Conn, writeReady *api.Signal) {
	c := &Connection{srv: s, conn: conn, writeReady: writeReady}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	cb := s.onMessage
	s.mu.Unlock()

	s.ctrl.IncMetric("connections.accepted")
	s.log.Debug("client connected")
	go c.readLoop(cb)
}

// flushReady runs on the acceptor loop goroutine when the async I/O
// signal fires. It flushes every connection whose write-ready signal has
// an unobserved firing.
func (s *Server) flushReady() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		select {
		case <-c.writeReady.C():
			c.flush()
		default:
		}
	}
}

func (s *Server) handleFault(fault *api.Fault) {
	s.ctrl.IncMetric("faults")
	s.ctrl.SetMetric("last_fault", fault.Kind.String())
	s.log.WithError(fault.Err).WithField("kind", fault.Kind).Error("acceptor fault")

	s.mu.Lock()
	fn := s.onFault
	s.mu.Unlock()
	if fn != nil {
		fn(fault)
	}
}

func (s *Server) remove(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
