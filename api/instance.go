// File: api/instance.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Conn is a connected, duplex, message-framed IPC endpoint. Message
// boundaries are preserved: one WriteMessage on one side is observed as
// exactly one ReadMessage on the other.
type Conn interface {
	// ReadMessage blocks until the next complete message arrives and
	// returns it. Returns an error once the peer disconnects or the
	// connection is closed.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one complete message.
	WriteMessage(p []byte) error

	// Close releases the endpoint. Closing twice is a no-op.
	Close() error
}

// PendingInstance is one created endpoint instance armed for an
// asynchronous incoming connection. It is exclusively owned by the
// acceptor loop until the connect completes, at which point ownership of
// the Conn transfers to the new-connection callback.
type PendingInstance interface {
	// Resolve reports the outcome of the asynchronous wait-for-client
	// request after the connect signal has fired. Must be called only for
	// instances armed as pending.
	Resolve() error

	// Conn returns the connected endpoint. Valid only after a successful
	// Resolve, or immediately for instances armed as not pending.
	Conn() Conn

	// Disconnect force-breaks a never-completed connect so a wait that
	// would otherwise block forever unblocks. Used on the stop path.
	// Disconnecting an already-connected or closed instance is a no-op.
	Disconnect() error

	// Close releases the instance without handing off its Conn.
	Close() error
}

// InstanceFactory creates endpoint instances bound to one configured
// endpoint name and arms them for asynchronous connection.
//
// Arm binds the fresh instance's connect completion to the given signal:
// no stale completion from a previous arm may fire it. The boolean result
// is true when the connect is pending (the common case) and false when the
// underlying transport reports that a client connected during arming, in
// which case the factory has already set the signal itself.
//
// Arm failures carry a *Fault classifying the condition
// (CreateEndpointFailed, ArmFailed or UnexpectedSynchronousConnect); all
// of them are fatal to the caller's loop.
type InstanceFactory interface {
	Arm(connect *Signal) (inst PendingInstance, pending bool, err error)

	// Close releases factory-owned resources. Safe to call twice.
	Close() error
}

// NewConnectionFunc receives each accepted connection together with its
// dedicated write-ready signal. The receiver takes ownership of conn.
type NewConnectionFunc func(conn Conn, writeReady *Signal)

// FaultFunc receives the terminal fault of an acceptor loop, exactly once,
// after the loop has fully torn down.
type FaultFunc func(fault *Fault)

// AsyncIOFunc is invoked on the loop goroutine whenever the asynchronous
// I/O signal fires. It must not block and must not re-enter Listen or
// Stop; the registrant determines which in-flight operations completed.
type AsyncIOFunc func()
