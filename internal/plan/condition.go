package plan

import (
	"math"

	"github.com/pulsar-beacon/beacon/internal/expr"
	"github.com/pulsar-beacon/beacon/internal/ring"
	"github.com/pulsar-beacon/beacon/internal/temporal"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

// conditionEvaluator is a compiled condition tree: a closure over the
// already-parsed expr.Node for every Expression leaf, so the cycle hot
// path never reparses a string (spec §4.E: "Interpreted" strategy —
// built once, run every cycle).
type conditionEvaluator func(e *env, buf *ring.Manager, nowMS int64) bool

// buildCondition compiles a model.Condition into a conditionEvaluator,
// generalizing the teacher's internal/rules/evaluator.go switch-driven
// eval into a closure builder: dispatch on node type happens once here
// at compile time instead of once per cycle.
func buildCondition(c model.Condition) (conditionEvaluator, error) {
	switch v := c.(type) {
	case nil:
		// An absent top-level condition is vacuously true (spec §4.E).
		return func(*env, *ring.Manager, int64) bool { return true }, nil

	case *model.Group:
		children := make([]conditionEvaluator, len(v.Children))
		for i, child := range v.Children {
			ce, err := buildCondition(child)
			if err != nil {
				return nil, err
			}
			children[i] = ce
		}
		if v.Combinator == model.CombinatorAny {
			return func(e *env, buf *ring.Manager, nowMS int64) bool {
				for _, ce := range children {
					if ce(e, buf, nowMS) {
						return true
					}
				}
				return false // empty ANY is vacuously false
			}, nil
		}
		return func(e *env, buf *ring.Manager, nowMS int64) bool {
			for _, ce := range children {
				if !ce(e, buf, nowMS) {
					return false
				}
			}
			return true // empty ALL is vacuously true
		}, nil

	case *model.Comparison:
		sensor, op, threshold := v.Sensor, v.Operator, v.Value
		return func(e *env, buf *ring.Manager, nowMS int64) bool {
			val, ok := e.lookup(sensor)
			if !ok {
				return false
			}
			return compareOp(op, val, threshold)
		}, nil

	case *model.Expression:
		node, err := expr.Parse(v.Source)
		if err != nil {
			return nil, err
		}
		return func(e *env, buf *ring.Manager, nowMS int64) bool {
			val, ok := evalExprNode(node, e)
			if !ok {
				return false
			}
			return !math.IsNaN(val) && val != 0
		}, nil

	case *model.ThresholdOverTime:
		sensor, threshold, durationMS, op, frac := v.Sensor, v.Threshold, v.DurationMS, v.Operator, v.RequiredFraction
		return func(e *env, buf *ring.Manager, nowMS int64) bool {
			return temporal.Evaluate(buf, sensor, threshold, durationMS, op, frac, nowMS)
		}, nil

	default:
		panic("plan: unknown condition node reached buildCondition")
	}
}

// compareOp mirrors internal/temporal's NaN-safe comparison dispatch
// (spec §8 property 8: any NaN comparison is false).
func compareOp(op model.Operator, value, threshold float64) bool {
	if value != value || threshold != threshold { // NaN != NaN
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
