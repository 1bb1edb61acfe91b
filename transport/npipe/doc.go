// File: transport/npipe/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package npipe implements the endpoint instance factory over named pipes.
//
// On Windows each armed instance is a fresh duplex, message-mode,
// overlapped named-pipe instance created with CreateNamedPipe and armed
// with an asynchronous ConnectNamedPipe; the factory classifies the
// immediate outcome (pending, already-connected race, error) exactly as
// the acceptor contract requires.
//
// On other platforms the factory falls back to a Unix domain socket with a
// length-prefixed frame codec, preserving the message-boundary contract so
// the acceptor and server layers behave identically everywhere.
package npipe
