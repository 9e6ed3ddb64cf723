// Package temporal implements ThresholdOverTime, the
// threshold-over-duration predicate evaluated against a sensor's
// ring-buffer window (spec §4.G).
package temporal

import (
	"math"

	"github.com/pulsar-beacon/beacon/internal/ring"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

// historyEpsilonMS tolerates cycle-period discretization: a sample
// landing up to one millisecond past the exact window boundary (due to
// cycle timing jitter) still counts as "spans the full duration"
// (spec §4.G: "timestamp ≤ (now_ms − duration_ms + ε)").
const historyEpsilonMS = 1

// Evaluate implements spec §4.G:
//  1. W = window(sensor, duration_ms, now_ms).
//  2. If W is empty, false.
//  3. m = |{s in W : op(s.value, threshold)}|, n = |W|.
//  4. Return (m/n) >= requiredFraction, but only if W contains at
//     least one sample old enough to prove the window has enough
//     history (otherwise a single fresh sample could falsely fire).
func Evaluate(buf *ring.Manager, sensor string, threshold float64, durationMS int64, op model.Operator, requiredFraction float64, nowMS int64) bool {
	window := buf.Window(sensor, durationMS, nowMS)
	if len(window) == 0 {
		return false
	}

	lowerBound := nowMS - durationMS
	hasSufficientHistory := false
	for _, s := range window {
		if s.TimestampMS <= lowerBound+historyEpsilonMS {
			hasSufficientHistory = true
			break
		}
	}
	if !hasSufficientHistory {
		return false
	}

	matched := 0
	for _, s := range window {
		if compare(op, s.Value, threshold) {
			matched++
		}
	}

	frac := float64(matched) / float64(len(window))
	return frac >= requiredFraction
}

// compare applies op with NaN safety: any comparison involving NaN is
// false (spec §4.E/§8 property 8).
func compare(op model.Operator, value, threshold float64) bool {
	if math.IsNaN(value) || math.IsNaN(threshold) {
		return false
	}
	switch op {
	case model.OpGT:
		return value > threshold
	case model.OpGE:
		return value >= threshold
	case model.OpLT:
		return value < threshold
	case model.OpLE:
		return value <= threshold
	case model.OpEQ:
		return value == threshold
	case model.OpNE:
		return value != threshold
	default:
		return false
	}
}
