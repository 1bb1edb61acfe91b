// File: api/errors.go
// Package api defines the fault taxonomy shared by the acceptor and the
// transport factories.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrAlreadyListening = errors.New("acceptor is already listening")
	ErrAcceptorClosed   = errors.New("acceptor is closed")
	ErrConnClosed       = errors.New("connection is closed")
	ErrFactoryClosed    = errors.New("instance factory is closed")
)

// FaultKind classifies the terminal failures of the acceptor loop.
// Every fault is fatal: the loop exits, resources are released, and the
// captured fault is delivered once through the fault callback.
type FaultKind int

const (
	FaultNone FaultKind = iota

	// FaultCreateEndpointFailed: creating a fresh endpoint instance failed.
	FaultCreateEndpointFailed

	// FaultArmFailed: issuing the asynchronous wait-for-client request
	// failed with an unclassified error.
	FaultArmFailed

	// FaultSignalCreateFailed: allocating a per-listen wait signal failed;
	// the loop never starts iterating.
	FaultSignalCreateFailed

	// FaultConnectResolutionFailed: resolving a completed asynchronous
	// connect reported failure.
	FaultConnectResolutionFailed

	// FaultUnexpectedWaitError: the multi-wait returned an outcome outside
	// its contract.
	FaultUnexpectedWaitError

	// FaultUnexpectedSynchronousConnect: the asynchronous wait-for-client
	// request completed synchronously, which the overlapped arm must never
	// do. Indicates a logic or timing defect, not a transient condition.
	FaultUnexpectedSynchronousConnect
)

// String returns the canonical name of the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "None"
	case FaultCreateEndpointFailed:
		return "CreateEndpointFailed"
	case FaultArmFailed:
		return "ArmFailed"
	case FaultSignalCreateFailed:
		return "SignalCreateFailed"
	case FaultConnectResolutionFailed:
		return "ConnectResolutionFailed"
	case FaultUnexpectedWaitError:
		return "UnexpectedWaitError"
	case FaultUnexpectedSynchronousConnect:
		return "UnexpectedSynchronousConnect"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// Fault is the terminal error captured by the acceptor loop. It wraps the
// underlying OS or transport error, when one exists.
type Fault struct {
	Kind FaultKind
	Err  error
}

// NewFault builds a fault of the given kind around err. err may be nil.
func NewFault(kind FaultKind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (f *Fault) Unwrap() error { return f.Err }

// AsFault extracts a *Fault from err, or wraps err into a fault of the
// given fallback kind.
func AsFault(err error, fallback FaultKind) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return NewFault(fallback, err)
}
