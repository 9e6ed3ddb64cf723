package adapter

import (
	"context"
	"sync"

	"github.com/pulsar-beacon/beacon/pkg/model"
)

// MemoryAdapter is a reference Adapter implementation backed by a
// guarded map, suitable for the cmd/ composition roots' default
// configuration and for tests (spec §4.I contract: read/write/health
// only, no persistence guarantees implied). Grounded on the teacher's
// RealFileSystem: the "real" implementation of a narrow interface,
// here backed by process memory instead of the OS filesystem.
type MemoryAdapter struct {
	mu      sync.RWMutex
	values  map[string]Reading
	healthy bool
}

// NewMemoryAdapter returns an empty, healthy adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		values:  make(map[string]Reading),
		healthy: true,
	}
}

// Seed directly installs sensor readings, bypassing Write. Tests and
// the orchestrator's external feed (not modeled here) use this to
// inject sensor input; production adapters would instead be backed by
// whatever upstream system publishes sensor values.
func (m *MemoryAdapter) Seed(sensor string, value model.ScalarValue, timestampMS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[sensor] = Reading{Value: value, TimestampMS: timestampMS, HasTimestamp: true}
}

// SeedNumber is a convenience wrapper around Seed for the common case
// of a plain numeric sensor reading.
func (m *MemoryAdapter) SeedNumber(sensor string, value float64, timestampMS int64) {
	m.Seed(sensor, model.ScalarValue{Kind: model.ScalarNumber, Number: value}, timestampMS)
}

func (m *MemoryAdapter) Read(ctx context.Context, sensors []string) (map[string]Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Reading, len(sensors))
	for _, s := range sensors {
		if r, ok := m.values[s]; ok {
			out[s] = r
		}
	}
	return out, nil
}

func (m *MemoryAdapter) Write(ctx context.Context, outputs map[string]model.ScalarValue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range outputs {
		m.values[k] = Reading{Value: v}
	}
	return nil
}

func (m *MemoryAdapter) Healthy(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// SetHealthy lets tests and operational tooling flip the health bit
// without touching stored values.
func (m *MemoryAdapter) SetHealthy(h bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = h
}

// Snapshot returns a copy of every stored reading, for assertions in
// tests that drive a full orchestrator cycle.
func (m *MemoryAdapter) Snapshot() map[string]Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Reading, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
