package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulsar-beacon/beacon/internal/clock"
	"github.com/pulsar-beacon/beacon/internal/config"
	"github.com/pulsar-beacon/beacon/internal/layer"
	"github.com/pulsar-beacon/beacon/internal/plan"
	"github.com/pulsar-beacon/beacon/internal/ring"
	"github.com/pulsar-beacon/beacon/pkg/adapter"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

func testPlan(t *testing.T) *plan.Plan {
	t.Helper()
	rule := model.Rule{
		Name: "double_x",
		Actions: []model.Action{&model.SetValue{
			Key:             "y",
			ValueExpression: "x * 2",
		}},
	}
	cs, err := layer.Build([]model.Rule{rule})
	if err != nil {
		t.Fatalf("layer.Build: %v", err)
	}
	p, err := plan.Build(cs)
	if err != nil {
		t.Fatalf("plan.Build: %v", err)
	}
	return p
}

func testConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		BackoffBaseMS:      5,
		MaxFaultRetries:    2,
		ShutdownGraceMS:    1000,
		OverrunWarnEveryMS: 60000,
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOrchestrator_StartStopLifecycle(t *testing.T) {
	mem := adapter.NewMemoryAdapter()
	mem.SeedNumber("x", 1, 0)
	p := testPlan(t)
	buf := ring.NewManager(10)
	vc := clock.NewVirtual(time.Unix(0, 0))

	o := New([]string{"x"}, 50*time.Millisecond, testConfig(), mem, p, buf, vc, nil)
	ctx := context.Background()

	if o.State() != Stopped {
		t.Fatalf("expected initial state Stopped, got %s", o.State())
	}
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.State() != Running {
		t.Fatalf("expected Running after Start, got %s", o.State())
	}

	// Re-entrant start is an idempotent no-op, not an error.
	if err := o.Start(ctx); err != nil {
		t.Fatalf("re-entrant Start returned error: %v", err)
	}

	if err := o.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if o.State() != Stopped {
		t.Fatalf("expected Stopped after Stop, got %s", o.State())
	}

	// Re-entrant stop is an idempotent no-op.
	if err := o.Stop(ctx); err != nil {
		t.Fatalf("re-entrant Stop returned error: %v", err)
	}
}

func TestOrchestrator_RunsCycleAndWritesOutput(t *testing.T) {
	mem := adapter.NewMemoryAdapter()
	mem.SeedNumber("x", 21, 0)
	p := testPlan(t)
	buf := ring.NewManager(10)
	vc := clock.NewVirtual(time.Unix(0, 0))

	o := New([]string{"x"}, 50*time.Millisecond, testConfig(), mem, p, buf, vc, nil)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(ctx)

	vc.Advance(50 * time.Millisecond)

	waitUntil(t, time.Second, func() bool {
		snap := mem.Snapshot()
		out, ok := snap["y"]
		return ok && out.Value.Number == 42
	})
}

// TestOrchestrator_S4_CycleDroppedOnOverrun mirrors spec §8 S4: a read
// that blocks across several tick periods still runs as exactly one
// cycle, and that cycle is counted as an overrun.
func TestOrchestrator_S4_CycleDroppedOnOverrun(t *testing.T) {
	mem := adapter.NewMemoryAdapter()
	mem.SeedNumber("x", 1, 0)
	blocking := &blockingReadAdapter{inner: mem, gate: make(chan struct{})}

	p := testPlan(t)
	buf := ring.NewManager(10)
	vc := clock.NewVirtual(time.Unix(0, 0))

	o := New([]string{"x"}, 100*time.Millisecond, testConfig(), blocking, p, buf, vc, nil)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(ctx)

	vc.Advance(100 * time.Millisecond) // first tick: cycle starts, Read blocks
	waitUntil(t, time.Second, func() bool { return atomic.LoadInt32(&blocking.reads) >= 1 })

	// Two more periods elapse while the read is still in flight; since
	// the loop is busy inside the blocked Read call it never separately
	// services these ticks (spec §5: cycles are not queued).
	vc.Advance(100 * time.Millisecond)
	vc.Advance(100 * time.Millisecond)

	close(blocking.gate) // the blocked read now returns with now=300ms

	waitUntil(t, time.Second, func() bool { return o.Status().OverrunCycles >= 1 })

	status := o.Status()
	if status.OverrunCycles != 1 {
		t.Fatalf("expected exactly 1 overrun cycle, got %d", status.OverrunCycles)
	}
	if reads := atomic.LoadInt32(&blocking.reads); reads > 2 {
		t.Fatalf("expected at most 2 reads across the overrun window, got %d", reads)
	}
}

func TestOrchestrator_FaultRetryThenRecovery(t *testing.T) {
	mem := adapter.NewMemoryAdapter()
	mem.SeedNumber("x", 5, 0)
	faulty := adapter.NewFaultyAdapter(mem)
	faulty.FailNextReads(2) // within MaxFaultRetries=2, so the cycle should still complete

	p := testPlan(t)
	buf := ring.NewManager(10)
	vc := clock.NewVirtual(time.Unix(0, 0))

	o := New([]string{"x"}, 50*time.Millisecond, testConfig(), faulty, p, buf, vc, nil)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(ctx)

	vc.Advance(50 * time.Millisecond)
	// Let the retry backoff waits (which use the same virtual ticker
	// mechanism) clear; advance a little further so any pending
	// backoff ticker has something to fire against.
	for i := 0; i < 5; i++ {
		vc.Advance(10 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}

	waitUntil(t, time.Second, func() bool {
		snap := mem.Snapshot()
		out, ok := snap["y"]
		return ok && out.Value.Number == 10
	})

	if status := o.Status(); status.SkippedCycles != 0 {
		t.Fatalf("expected the cycle to recover within retry budget, got SkippedCycles=%d", status.SkippedCycles)
	}
}

func TestOrchestrator_FaultExhaustionSkipsCycle(t *testing.T) {
	mem := adapter.NewMemoryAdapter()
	mem.SeedNumber("x", 5, 0)
	faulty := adapter.NewFaultyAdapter(mem)
	faulty.FailNextReads(10) // exceeds MaxFaultRetries=2

	p := testPlan(t)
	buf := ring.NewManager(10)
	vc := clock.NewVirtual(time.Unix(0, 0))

	o := New([]string{"x"}, 50*time.Millisecond, testConfig(), faulty, p, buf, vc, nil)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer o.Stop(ctx)

	vc.Advance(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		vc.Advance(10 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}

	waitUntil(t, time.Second, func() bool { return o.Status().SkippedCycles >= 1 })

	if o.State() != Running {
		t.Fatalf("expected orchestrator to stay Running after a skipped (non-fatal) cycle, got %s", o.State())
	}
}

// TestOrchestrator_FatalFaultReachesStopped mirrors spec §4.H/§7: an
// unrecoverable error (here, a panic during the cycle) drives the
// orchestrator all the way from Running to Stopped with a fault
// reason recorded, and a subsequent Stop call is a harmless no-op
// rather than hanging on an orchestrator stuck in Stopping forever.
func TestOrchestrator_FatalFaultReachesStopped(t *testing.T) {
	mem := adapter.NewMemoryAdapter()
	mem.SeedNumber("x", 1, 0)
	panicking := &panicReadAdapter{inner: mem}

	p := testPlan(t)
	buf := ring.NewManager(10)
	vc := clock.NewVirtual(time.Unix(0, 0))

	o := New([]string{"x"}, 50*time.Millisecond, testConfig(), panicking, p, buf, vc, nil)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	vc.Advance(50 * time.Millisecond)

	waitUntil(t, time.Second, func() bool { return o.State() == Stopped })

	status := o.Status()
	if status.FaultReason == "" {
		t.Fatalf("expected a fault reason to be recorded, got %+v", status)
	}

	// Stop must not hang or error once the orchestrator has already
	// reached Stopped on its own via the fatal-fault path.
	done := make(chan error, 1)
	go func() { done <- o.Stop(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop after fatal fault returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop hung after a fatal fault left the orchestrator in Stopping")
	}
}

// panicReadAdapter panics on Read to exercise runCycle's panic
// recovery / FatalFault path.
type panicReadAdapter struct {
	inner adapter.Adapter
}

func (a *panicReadAdapter) Read(ctx context.Context, sensors []string) (map[string]adapter.Reading, error) {
	panic("simulated unrecoverable adapter failure")
}

func (a *panicReadAdapter) Write(ctx context.Context, outputs map[string]model.ScalarValue) error {
	return a.inner.Write(ctx, outputs)
}

func (a *panicReadAdapter) Healthy(ctx context.Context) bool {
	return a.inner.Healthy(ctx)
}

// blockingReadAdapter wraps an Adapter and blocks Read until gate is
// closed or sent to, for deterministically simulating a slow store.
type blockingReadAdapter struct {
	inner adapter.Adapter
	gate  chan struct{}
	reads int32
}

func (a *blockingReadAdapter) Read(ctx context.Context, sensors []string) (map[string]adapter.Reading, error) {
	atomic.AddInt32(&a.reads, 1)
	<-a.gate
	return a.inner.Read(ctx, sensors)
}

func (a *blockingReadAdapter) Write(ctx context.Context, outputs map[string]model.ScalarValue) error {
	return a.inner.Write(ctx, outputs)
}

func (a *blockingReadAdapter) Healthy(ctx context.Context) bool {
	return a.inner.Healthy(ctx)
}
