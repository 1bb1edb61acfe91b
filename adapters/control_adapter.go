// File: adapters/control_adapter.go
// Package adapters binds control primitives to the api.Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package adapters

import (
	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
)

// ControlAdapter implements api.Control on top of the control package
// primitives. It also exposes the metrics registry directly so server
// components can publish counters without going through Stats.
type ControlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

// NewControlAdapter creates a ControlAdapter with platform probes
// pre-registered.
func NewControlAdapter() *ControlAdapter {
	adapter := &ControlAdapter{
		config:  control.NewConfigStore(),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	c.config.SetConfig(cfg)
	return nil
}

// Stats merges runtime metrics with debug probe dumps, the latter
// prefixed with "debug.".
func (c *ControlAdapter) Stats() map[string]any {
	combined := c.metrics.GetSnapshot()
	for k, v := range c.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(fn)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// SetMetric publishes a gauge value.
func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

// IncMetric increments a counter.
func (c *ControlAdapter) IncMetric(key string) {
	c.metrics.Inc(key)
}

// Config returns the underlying store for file loading and hot reload.
func (c *ControlAdapter) Config() *control.ConfigStore {
	return c.config
}
