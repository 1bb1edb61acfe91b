// File: acceptor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package acceptor implements the connection-acceptance state machine at
// the heart of hioload-ipc.
//
// One Acceptor owns one endpoint name and one dedicated loop goroutine.
// The loop keeps exactly one pending endpoint instance armed for an
// asynchronous incoming connection at all times, multiplexes over three
// wait signals (connect completion, asynchronous I/O readiness, stop) plus
// a completion-routine queue, hands each accepted connection to the
// new-connection callback, and immediately re-arms a fresh instance.
//
// The loop is fail-fast: any factory, signal or wait failure is a terminal
// fault that tears the loop down, releases the per-listen signals on every
// exit path, and delivers the captured fault to the fault callback exactly
// once after teardown. There is no retry.
package acceptor
