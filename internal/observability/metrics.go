package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Prometheus metrics for the cycle orchestrator (spec §6: orchestrator
// control surface reports last_cycle_ms/skipped_cycles/overrun_cycles;
// this is the finer-grained per-cycle/per-rule/per-sensor telemetry
// backing that surface). Grounded on the teacher's metrics.go
// promauto-registered var block, narrowed from its
// compliance-framework metric set to the cycle/rule/buffer concerns
// this domain has.
var (
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "beacon_cycle_duration_seconds",
		Help:    "Wall-clock duration of one evaluation cycle",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_cycles_total",
		Help: "Total number of cycles by outcome",
	}, []string{"outcome"}) // outcome: completed|overrun|skipped|fault

	RuleFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_rule_fired_total",
		Help: "Total number of times a rule's condition evaluated true",
	}, []string{"rule"})

	EvaluationSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_evaluation_skips_total",
		Help: "Total number of rule evaluation skips due to a missing or non-numeric sensor value",
	}, []string{"sensor"})

	MonotonicityViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_monotonicity_violations_total",
		Help: "Total number of out-of-order samples dropped by the ring buffer manager",
	})

	AdapterFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_adapter_faults_total",
		Help: "Total number of adapter read/write faults",
	}, []string{"operation"}) // operation: read|write

	BufferOccupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "beacon_buffer_occupancy",
		Help: "Current number of samples held per sensor ring buffer",
	}, []string{"sensor"})
)

// meter is the OpenTelemetry instrument source, used for the one
// metric whose natural shape is a running total independent of any
// single cycle's outcome: how many cycles are currently in flight.
// Grounded on the teacher's metrics_otel.go lazily-initialized
// otel.Meter pattern, narrowed to a single instrument since the bulk
// of this package's metrics are better served by the Prometheus
// client the rest of the corpus favors.
var meter = otel.Meter("pulsar-beacon.orchestrator")

var cyclesInFlight metric.Int64UpDownCounter

func init() {
	var err error
	cyclesInFlight, err = meter.Int64UpDownCounter(
		"beacon.cycles_in_flight",
		metric.WithDescription("Number of evaluation cycles currently executing (0 or 1 under the single-flight policy)"),
	)
	if err != nil {
		panic(err)
	}
}

// CycleStarted/CycleFinished bracket one cycle's in-flight otel
// counter (spec §5: "at most one cycle in flight" — this metric makes
// that invariant externally observable).
func CycleStarted(ctx context.Context) {
	cyclesInFlight.Add(ctx, 1)
}

func CycleFinished(ctx context.Context) {
	cyclesInFlight.Add(ctx, -1)
}
