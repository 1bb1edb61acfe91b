// File: server/types.go
// Package server exposes the high-level IPC server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-ipc/transport/npipe"
)

// Config carries the server parameters. The zero value selects the
// transport defaults for everything except the endpoint name, which is
// required.
type Config struct {
	// Endpoint is the short endpoint name. The transport expands it into
	// a platform pipe path.
	Endpoint string `toml:"endpoint"`

	// BufferSize is the per-instance input and output buffer size.
	BufferSize int `toml:"buffer_size"`

	// ClientTimeoutMillis is the per-instance client wait timeout.
	ClientTimeoutMillis int `toml:"client_timeout_ms"`
}

// DefaultConfig returns a Config for the endpoint with transport defaults.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:            endpoint,
		BufferSize:          npipe.DefaultBufferSize,
		ClientTimeoutMillis: int(npipe.DefaultClientTimeout / time.Millisecond),
	}
}

// LoadConfig reads a TOML server config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "server: load config %s", path)
	}
	if cfg.Endpoint == "" {
		return Config{}, errors.Errorf("server: config %s: endpoint is required", path)
	}
	return cfg, nil
}

func (c Config) transport() npipe.Config {
	return npipe.Config{
		BufferSize:    c.BufferSize,
		ClientTimeout: time.Duration(c.ClientTimeoutMillis) * time.Millisecond,
	}
}
