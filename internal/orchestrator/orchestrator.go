// Package orchestrator drives the fixed-period read→evaluate→write
// loop against a compiled plan.Plan (spec §4.H). It owns the
// lifecycle state machine, the ring buffers, and the fault/deadline
// policies; the plan and the adapter are the only collaborators it
// depends on.
//
// Grounded on pkg/fsm/rule_lifecycle.go for the lifecycle state
// machine (state.go) and internal/services/trace_buffer.go's
// ticker-driven background-loop shape for the cycle loop itself.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulsar-beacon/beacon/internal/clock"
	"github.com/pulsar-beacon/beacon/internal/config"
	"github.com/pulsar-beacon/beacon/internal/observability"
	"github.com/pulsar-beacon/beacon/internal/plan"
	"github.com/pulsar-beacon/beacon/internal/ring"
	"github.com/pulsar-beacon/beacon/pkg/adapter"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

// Status is the orchestrator control surface's read model (spec §6:
// "status() → {state, last_cycle_ms, skipped_cycles,
// overrun_cycles}").
type Status struct {
	State         State
	LastCycleMS   int64
	SkippedCycles int64
	OverrunCycles int64
	FaultReason   string
}

// Orchestrator runs one compiled plan against one adapter on a fixed
// period. It is not safe for concurrent Start/Stop calls from
// multiple goroutines without external synchronization beyond what
// is documented on each method.
type Orchestrator struct {
	sensors []string
	period  time.Duration
	cfg     config.OrchestratorConfig

	adapter adapter.Adapter
	plan    *plan.Plan
	buf     *ring.Manager
	clock   clock.Clock
	sink    *observability.MessageSink
	warnLog *observability.RateLimitedLogger

	mu     sync.Mutex
	fsm    *fsm
	status Status

	lastMonotonicityViolations int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs an Orchestrator. sink may be nil if SendMessage
// actions should simply be dropped (e.g. in tests that only assert on
// Outputs).
func New(
	sensors []string,
	period time.Duration,
	cfg config.OrchestratorConfig,
	ad adapter.Adapter,
	p *plan.Plan,
	buf *ring.Manager,
	clk clock.Clock,
	sink *observability.MessageSink,
) *Orchestrator {
	return &Orchestrator{
		sensors: sensors,
		period:  period,
		cfg:     cfg,
		adapter: ad,
		plan:    p,
		buf:     buf,
		clock:   clk,
		sink:    sink,
		warnLog: observability.NewRateLimitedLogger(cfg.OverrunWarnPeriod()),
		fsm:     newFSM(),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fsm.State()
}

// Status returns a snapshot of the control surface (spec §6).
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.status
	s.State = o.fsm.State()
	return s
}

// Start transitions Stopped→Starting→Running and begins the cycle
// loop. Re-entrant calls while already Starting or Running are
// idempotent no-ops (spec §4.H).
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.fsm.State() != Stopped {
		o.mu.Unlock()
		return nil
	}
	if err := o.fsm.transition(EventStart); err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	for _, h := range o.plan.Horizons() {
		o.buf.RegisterHorizon(h.Sensor, h.DurationMS)
	}

	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})

	o.mu.Lock()
	if err := o.fsm.transition(EventStarted); err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	if o.sink != nil {
		o.sink.Start()
	}

	// The ticker is created here, synchronously, so that a caller who
	// immediately drives a clock.Virtual forward after Start returns is
	// guaranteed the ticker is already registered to receive it.
	ticker := o.clock.NewTicker(o.period)
	go o.loop(ctx, ticker)
	return nil
}

// Stop signals the loop to finish its in-flight cycle (best-effort,
// up to the configured grace period) and transition to Stopped. It
// blocks until the loop has exited or the grace period has elapsed,
// whichever comes first. Re-entrant calls while already
// Stopping or Stopped are idempotent no-ops (spec §4.H).
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	state := o.fsm.State()
	if state == Stopped || state == Stopping {
		o.mu.Unlock()
		return nil
	}
	if err := o.fsm.transition(EventStop); err != nil {
		o.mu.Unlock()
		return err
	}
	stopCh := o.stopCh
	doneCh := o.doneCh
	o.mu.Unlock()

	close(stopCh)

	grace := o.cfg.ShutdownGrace()
	select {
	case <-doneCh:
	case <-time.After(grace):
	}

	if o.sink != nil {
		o.sink.Stop()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fsm.State() == Stopping {
		return o.fsm.transition(EventStopped)
	}
	return nil
}

// loop runs the fixed-period cycle protocol until stopCh closes or a
// fatal fault drives the state machine out of Running. Exactly one
// cycle executes at a time (spec §5, §8 property 6): the loop body
// runs the cycle synchronously, so a slow adapter call simply leaves
// the ticker's buffered channel to drop the ticks that land while
// busy, matching spec §8 S4 exactly (one cycle runs across a 300 ms
// read against a 100 ms period; the ticks in between are never
// separately serviced).
func (o *Orchestrator) loop(ctx context.Context, ticker clock.Ticker) {
	defer close(o.doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C():
			o.tick(ctx)
			if o.State() != Running {
				return
			}
		}
	}
}

// tick runs one cycle and folds its outcome into status/metrics.
func (o *Orchestrator) tick(ctx context.Context) {
	observability.CycleStarted(ctx)
	defer observability.CycleFinished(ctx)

	start := o.clock.Now()
	outcome, result, err := o.runCycle(ctx)
	duration := o.clock.Now().Sub(start)

	observability.CycleDuration.Observe(duration.Seconds())

	o.mu.Lock()
	o.status.LastCycleMS = duration.Milliseconds()
	overran := duration > o.period
	if overran {
		o.status.OverrunCycles++
	}
	o.mu.Unlock()

	if overran {
		o.warnLog.Warn(ctx, o.clock.Now(), "cycle exceeded period: took %v, period %v", duration, o.period)
	}

	switch outcome {
	case outcomeCompleted:
		observability.CyclesTotal.WithLabelValues("completed").Inc()
		if overran {
			observability.CyclesTotal.WithLabelValues("overrun").Inc()
		}
		o.recordResult(result)
	case outcomeSkipped:
		observability.CyclesTotal.WithLabelValues("skipped").Inc()
		o.mu.Lock()
		o.status.SkippedCycles++
		o.mu.Unlock()
		observability.LogError(ctx, "cycle", err)
	case outcomeFatal:
		observability.CyclesTotal.WithLabelValues("fault").Inc()
		o.mu.Lock()
		o.status.FaultReason = err.Error()
		// A fatal fault drives Running all the way to Stopped (spec
		// §4.H: Running⇒Stopping→Stopped with a fault code) in one
		// shot: the loop is about to exit on its own and nothing else
		// will ever complete the Stopping→Stopped half of the
		// transition.
		_ = o.fsm.transition(EventFatalFault)
		_ = o.fsm.transition(EventStopped)
		o.mu.Unlock()
		observability.LogError(ctx, "cycle fatal", err)
	}
}

func (o *Orchestrator) recordResult(result *plan.Result) {
	for _, name := range result.FiredRules {
		observability.RuleFiredTotal.WithLabelValues(name).Inc()
	}
	for sensor, n := range result.SensorSkipCounts {
		observability.EvaluationSkipsTotal.WithLabelValues(sensor).Add(float64(n))
	}
	for _, sensor := range o.sensors {
		observability.BufferOccupancy.WithLabelValues(sensor).Set(float64(o.buf.Size(sensor)))
	}
	violations := o.buf.MonotonicityViolations()
	if delta := violations - o.lastMonotonicityViolations; delta > 0 {
		observability.MonotonicityViolationsTotal.Add(float64(delta))
	}
	o.lastMonotonicityViolations = violations

	if o.sink != nil {
		for _, m := range result.Messages {
			o.sink.Emit(m)
		}
	}
}

type cycleOutcome int

const (
	outcomeCompleted cycleOutcome = iota
	outcomeSkipped
	outcomeFatal
)

// runCycle executes the seven-step cycle protocol of spec §4.H.
// Recovers from panics in evaluation and reports them as FatalFault,
// since an unexpected panic there is exactly the "unexpected error in
// evaluation... orchestrator logic" case spec §7 calls FatalFault.
func (o *Orchestrator) runCycle(ctx context.Context) (outcome cycleOutcome, result *plan.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = outcomeFatal
			result = nil
			err = &FatalFault{Reason: "panic during cycle", Err: fmt.Errorf("%v", r)}
		}
	}()

	nowMS := o.clock.Now().UnixMilli()

	readings, rerr := o.readWithRetry(ctx)
	if rerr != nil {
		return outcomeSkipped, nil, rerr
	}

	numeric := make(map[string]float64, len(readings))
	samples := make(map[string]ring.Sample, len(readings))
	for sensor, r := range readings {
		if r.Value.Kind != model.ScalarNumber {
			continue
		}
		ts := nowMS
		if r.HasTimestamp {
			ts = r.TimestampMS
		}
		numeric[sensor] = r.Value.Number
		samples[sensor] = ring.Sample{TimestampMS: ts, Value: r.Value.Number}
	}
	o.buf.UpdateTimestamped(samples, nowMS)

	result = o.plan.Run(numeric, o.buf, nowMS)

	if werr := o.writeWithRetry(ctx, result.Outputs); werr != nil {
		return outcomeSkipped, nil, werr
	}

	return outcomeCompleted, result, nil
}

// readWithRetry retries a failing Read with exponential backoff,
// base delay and max attempts from cfg (spec §7 AdapterError).
func (o *Orchestrator) readWithRetry(ctx context.Context) (map[string]adapter.Reading, error) {
	var lastErr error
	delay := o.cfg.BackoffBase()
	for attempt := 0; attempt <= o.cfg.MaxFaultRetries; attempt++ {
		readings, err := o.adapter.Read(ctx, o.sensors)
		if err == nil {
			return readings, nil
		}
		lastErr = err
		observability.AdapterFaultsTotal.WithLabelValues("read").Inc()
		if attempt == o.cfg.MaxFaultRetries {
			break
		}
		o.waitFor(ctx, delay)
		delay *= 2
	}
	return nil, &AdapterError{Op: "read", Err: lastErr}
}

// writeWithRetry mirrors readWithRetry for the write step.
func (o *Orchestrator) writeWithRetry(ctx context.Context, outputs map[string]model.ScalarValue) error {
	var lastErr error
	delay := o.cfg.BackoffBase()
	for attempt := 0; attempt <= o.cfg.MaxFaultRetries; attempt++ {
		err := o.adapter.Write(ctx, outputs)
		if err == nil {
			return nil
		}
		lastErr = err
		observability.AdapterFaultsTotal.WithLabelValues("write").Inc()
		if attempt == o.cfg.MaxFaultRetries {
			break
		}
		o.waitFor(ctx, delay)
		delay *= 2
	}
	return &AdapterError{Op: "write", Err: lastErr}
}

// waitFor blocks for d using the orchestrator's clock, so backoff
// delays are as controllable under a clock.Virtual as the cycle
// period itself. A one-shot ticker is the only wait primitive
// clock.Clock exposes; that is enough for a single delay.
func (o *Orchestrator) waitFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := o.clock.NewTicker(d)
	defer t.Stop()
	select {
	case <-t.C():
	case <-ctx.Done():
	}
}
