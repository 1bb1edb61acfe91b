// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the public contracts of hioload-ipc: the waitable
// Signal primitive, the connect-instance factory abstraction, the acceptor
// callback surface, the fault taxonomy, and the runtime Control interface.
//
// The api package has no dependencies on concrete transports or the
// acceptor loop, so alternative transports and test fakes can be built
// against it without pulling in platform code.
package api
