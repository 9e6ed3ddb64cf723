package plan

import (
	"fmt"
	"math"

	"github.com/pulsar-beacon/beacon/internal/expr"
)

// env is the cycle-local value source a closure reads from while
// evaluating one layer: base sensor readings merged with the outputs
// of every layer that has already completed (spec §5: "Later actions
// see earlier actions' outputs as inputs only across layers, never
// within the same layer").
type env struct {
	available map[string]float64
	skips     *skipCounter
}

func (e *env) lookup(name string) (float64, bool) {
	v, ok := e.available[name]
	if !ok {
		e.skips.record(name)
	}
	return v, ok
}

type skipCounter struct {
	total     int
	perSensor map[string]int
}

func newSkipCounter() *skipCounter {
	return &skipCounter{perSensor: map[string]int{}}
}

func (s *skipCounter) record(sensor string) {
	s.total++
	s.perSensor[sensor]++
}

// evalExprNode interprets an already-parsed expression.Node against
// env, generalizing the teacher's internal/rules/evaluator.go
// switch-on-node-type interpreter to floating-point arithmetic instead
// of span field access. The second return value is false whenever any
// referenced identifier is missing, matching the "missing or
// non-numeric value" coercion rule (spec §4.E): the caller treats a
// false ok as "this leaf/value is unavailable this cycle", never as an
// error.
func evalExprNode(n expr.Node, e *env) (float64, bool) {
	switch v := n.(type) {
	case *expr.NumberLit:
		return v.Value, true
	case *expr.BoolLit:
		if v.Value {
			return 1, true
		}
		return 0, true
	case *expr.NullLit:
		return 0, false
	case *expr.Ident:
		return e.lookup(v.Name)
	case *expr.UnaryExpr:
		val, ok := evalExprNode(v.Operand, e)
		if !ok {
			return 0, false
		}
		return -val, true
	case *expr.BinaryExpr:
		return evalBinary(v, e)
	case *expr.CallExpr:
		return evalCall(v, e)
	default:
		return 0, false
	}
}

func evalBinary(v *expr.BinaryExpr, e *env) (float64, bool) {
	l, lok := evalExprNode(v.Left, e)
	r, rok := evalExprNode(v.Right, e)
	if !lok || !rok {
		return 0, false
	}
	switch v.Op {
	case expr.TokenPlus:
		return l + r, true
	case expr.TokenMinus:
		return l - r, true
	case expr.TokenStar:
		return l * r, true
	case expr.TokenSlash:
		return l / r, true
	case expr.TokenGreater:
		return boolF(numericCompare(l, r) > 0), true
	case expr.TokenGreaterEqual:
		return boolF(numericCompare(l, r) >= 0), true
	case expr.TokenLess:
		return boolF(numericCompare(l, r) < 0), true
	case expr.TokenLessEqual:
		return boolF(numericCompare(l, r) <= 0), true
	case expr.TokenEqual:
		return boolF(!math.IsNaN(l) && !math.IsNaN(r) && l == r), true
	case expr.TokenNotEqual:
		return boolF(math.IsNaN(l) || math.IsNaN(r) || l != r), true
	default:
		return 0, false
	}
}

// numericCompare returns 0 whenever either operand is NaN so that
// ordering operators never fire on a NaN operand (spec §8 property 8).
func numericCompare(l, r float64) int {
	if math.IsNaN(l) || math.IsNaN(r) {
		return 0
	}
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func evalCall(v *expr.CallExpr, e *env) (float64, bool) {
	args := make([]float64, len(v.Args))
	for i, a := range v.Args {
		val, ok := evalExprNode(a, e)
		if !ok {
			return 0, false
		}
		args[i] = val
	}
	return callMath(v.Func, args)
}

// callMath dispatches the closed math-function whitelist (spec §3).
// Build already validated the function name via expr.Analyze, so an
// unknown name here would be a programmer error, not user input.
func callMath(name string, args []float64) (float64, bool) {
	unary := func(f func(float64) float64) (float64, bool) {
		if len(args) != 1 {
			return 0, false
		}
		return f(args[0]), true
	}
	switch name {
	case "abs":
		return unary(math.Abs)
	case "sqrt":
		return unary(math.Sqrt)
	case "sin":
		return unary(math.Sin)
	case "cos":
		return unary(math.Cos)
	case "tan":
		return unary(math.Tan)
	case "log":
		return unary(math.Log)
	case "exp":
		return unary(math.Exp)
	case "floor":
		return unary(math.Floor)
	case "ceil":
		return unary(math.Ceil)
	case "round":
		return unary(math.Round)
	case "pow":
		if len(args) != 2 {
			return 0, false
		}
		return math.Pow(args[0], args[1]), true
	case "min":
		return reduce(args, math.Min)
	case "max":
		return reduce(args, math.Max)
	default:
		panic(fmt.Sprintf("plan: unvalidated math function %q reached callMath", name))
	}
}

func reduce(args []float64, f func(a, b float64) float64) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	acc := args[0]
	for _, a := range args[1:] {
		acc = f(acc, a)
	}
	return acc, true
}
