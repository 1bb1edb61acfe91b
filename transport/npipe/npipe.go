// File: transport/npipe/npipe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package npipe

import "time"

const (
	// DefaultBufferSize is the per-instance input and output buffer size.
	DefaultBufferSize = 4096

	// DefaultClientTimeout is the default client wait timeout applied to
	// each pipe instance.
	DefaultClientTimeout = 5 * time.Second

	// maxMessageSize bounds a single framed message on the fallback
	// transport, guarding against corrupt length prefixes.
	maxMessageSize = 16 << 20
)

// Config carries the transport parameters of one endpoint. The zero value
// selects the defaults.
type Config struct {
	// BufferSize is the input and output buffer size of each instance.
	BufferSize int

	// ClientTimeout is the client wait timeout of each instance.
	ClientTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = DefaultClientTimeout
	}
	return c
}
