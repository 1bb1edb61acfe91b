// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector. Exposes counters and gauges in a thread-safe
// map with dynamic registration.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry holds mutable counters and gauges.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]uint64
	gauges   map[string]any
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]uint64),
		gauges:   make(map[string]any),
	}
}

// Inc adds one to a counter, creating it on first use.
func (mr *MetricsRegistry) Inc(key string) {
	mr.Add(key, 1)
}

// Add adds delta to a counter, creating it on first use.
func (mr *MetricsRegistry) Add(key string, delta uint64) {
	mr.mu.Lock()
	mr.counters[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Counter returns the current value of a counter.
func (mr *MetricsRegistry) Counter(key string) uint64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.counters[key]
}

// Set sets or updates a gauge.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.gauges[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns the latest metrics, counters and gauges merged.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.counters)+len(mr.gauges))
	for k, v := range mr.counters {
		out[k] = v
	}
	for k, v := range mr.gauges {
		out[k] = v
	}
	return out
}
