package expr

import (
	"fmt"
	"sort"
)

// Analysis is the result of walking an expression AST: the set of
// sensor identifiers referenced and the set of math functions called
// (spec §4.C: "For any expression, returns (referenced_sensors,
// referenced_funcs)").
type Analysis struct {
	Sensors []string
	Funcs   []string
}

// Analyze walks expr and returns its referenced sensors and functions,
// or an error if it calls an unknown function (spec §4.C: "Unknown
// functions ... are rejected"). Reserved constants and the names of
// called functions are never reported as sensor references; a bare
// identifier (one not followed by an argument list) is always reported
// as a sensor, even when it is spelled like a whitelisted function.
func Analyze(node Node) (Analysis, error) {
	sensors := map[string]bool{}
	funcs := map[string]bool{}

	var walk func(Node) error
	walk = func(n Node) error {
		switch v := n.(type) {
		case *NumberLit, *BoolLit, *NullLit:
			return nil
		case *Ident:
			sensors[v.Name] = true
			return nil
		case *UnaryExpr:
			return walk(v.Operand)
		case *BinaryExpr:
			if err := walk(v.Left); err != nil {
				return err
			}
			return walk(v.Right)
		case *CallExpr:
			if !MathFunctions[v.Func] {
				return fmt.Errorf("expression: unknown function %q (not in whitelist)", v.Func)
			}
			funcs[v.Func] = true
			for _, arg := range v.Args {
				if err := walk(arg); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("expression: unsupported AST node %T", n)
		}
	}

	if err := walk(node); err != nil {
		return Analysis{}, err
	}

	return Analysis{
		Sensors: sortedKeys(sensors),
		Funcs:   sortedKeys(funcs),
	}, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
