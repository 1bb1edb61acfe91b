// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package concurrency provides the completion-routine queue backing the
// acceptor's alertable wait: collaborators on any goroutine post small
// completion routines, and the loop goroutine drains and runs them while
// it is otherwise blocked on its wait signals.
package concurrency
