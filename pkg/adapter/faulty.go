package adapter

import (
	"context"
	"errors"
	"sync"

	"github.com/pulsar-beacon/beacon/pkg/model"
)

// ErrInjectedFault is returned by FaultyAdapter when a scheduled
// failure fires (spec §7 AdapterError: "I/O failure or timeout").
var ErrInjectedFault = errors.New("adapter: injected fault")

// FaultyAdapter wraps another Adapter and lets a test schedule a fixed
// number of upcoming failures, for exercising the orchestrator's
// retry-with-backoff and skip-on-exhaustion fault policy (spec §5
// Fault policy) deterministically.
//
// Grounded on the teacher's internal/simulation/faults.go
// FaultInjector/FaultyFileSystem pair, adapted from
// probability-driven fault injection (suited to long fuzz/chaos runs)
// to a fixed failure countdown: orchestrator fault-policy tests need
// an exact, reproducible number of failures before recovery, not a
// statistical rate.
type FaultyAdapter struct {
	inner Adapter

	mu             sync.Mutex
	failNextReads  int
	failNextWrites int
	unhealthy      bool
}

// NewFaultyAdapter wraps inner with fault-injection controls.
func NewFaultyAdapter(inner Adapter) *FaultyAdapter {
	return &FaultyAdapter{inner: inner}
}

// FailNextReads schedules the next n Read calls to return
// ErrInjectedFault instead of delegating to inner.
func (f *FaultyAdapter) FailNextReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNextReads = n
}

// FailNextWrites schedules the next n Write calls to fail.
func (f *FaultyAdapter) FailNextWrites(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNextWrites = n
}

// SetUnhealthy forces Healthy to report false regardless of inner.
func (f *FaultyAdapter) SetUnhealthy(u bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhealthy = u
}

func (f *FaultyAdapter) Read(ctx context.Context, sensors []string) (map[string]Reading, error) {
	if f.consumeFailure(&f.failNextReads) {
		return nil, ErrInjectedFault
	}
	return f.inner.Read(ctx, sensors)
}

func (f *FaultyAdapter) Write(ctx context.Context, outputs map[string]model.ScalarValue) error {
	if f.consumeFailure(&f.failNextWrites) {
		return ErrInjectedFault
	}
	return f.inner.Write(ctx, outputs)
}

func (f *FaultyAdapter) Healthy(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unhealthy {
		return false
	}
	return f.inner.Healthy(ctx)
}

func (f *FaultyAdapter) consumeFailure(counter *int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *counter <= 0 {
		return false
	}
	*counter--
	return true
}
