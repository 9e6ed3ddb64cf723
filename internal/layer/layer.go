// Package layer builds the rule dependency graph and assigns each
// rule an evaluation layer (spec §4.D): edge r->s exists iff any
// input sensor of s is an output sensor of r, cycles are rejected
// with a deterministic diagnostic, and layers are assigned by
// longest-path-from-source via Kahn's algorithm with depth tracking.
//
// Grounded on C360Studio-semspec's
// processor/task-dispatcher/phase_graph.go: an in-degree map plus a
// dependents map, processed with Kahn's algorithm, generalized here
// from phase scheduling to rule layering with per-node depth
// tracking for layer numbers instead of a flat ready/not-ready split.
package layer

import (
	"fmt"
	"sort"

	"github.com/pulsar-beacon/beacon/internal/expr"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

// CompiledRule adds dependency-analysis results to a model.Rule
// (spec §3: "Compiled rule").
type CompiledRule struct {
	Rule          model.Rule
	Layer         int
	Dependencies  []string // sorted rule names
	InputSensors  []string // sorted
	OutputSensors []string // sorted
}

// CompiledRuleSet is the ordered, layered output of Build (spec §3).
type CompiledRuleSet struct {
	Rules         []CompiledRule // ordered by (layer, name)
	InputSensors  []string
	OutputSensors []string
}

// CycleError reports a dependency cycle (spec §4.D, §8 S6): the rule
// names involved, identified deterministically by always walking from
// the lowest-named unresolved rule.
type CycleError struct {
	Rules []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among rules: %v", e.Rules)
}

// Build analyzes a rule list's data-flow dependencies and assigns
// layers. Rules are expected to have already passed validation
// (pkg/ruleset.Parse) — Build does not re-check grammar.
func Build(rules []model.Rule) (*CompiledRuleSet, error) {
	byName := make(map[string]model.Rule, len(rules))
	for _, r := range rules {
		byName[r.Name] = r
	}

	inputs := make(map[string][]string, len(rules))
	outputs := make(map[string][]string, len(rules))
	for _, r := range rules {
		in, out, err := sensorsOf(r)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		inputs[r.Name] = in
		outputs[r.Name] = out
	}

	// producers[sensor] = names of rules that write it
	producers := map[string][]string{}
	for name, outs := range outputs {
		for _, s := range outs {
			producers[s] = append(producers[s], name)
		}
	}

	// dependents[r] = rules that depend on r's output; deps[s] = rules s depends on
	dependents := map[string]map[string]bool{}
	deps := map[string]map[string]bool{}
	for _, r := range rules {
		dependents[r.Name] = map[string]bool{}
		deps[r.Name] = map[string]bool{}
	}
	for _, consumer := range rules {
		for _, in := range inputs[consumer.Name] {
			for _, producer := range producers[in] {
				if producer == consumer.Name {
					continue // a rule reading a sensor it also writes is not a self-dependency
				}
				deps[consumer.Name][producer] = true
				dependents[producer][consumer.Name] = true
			}
		}
	}

	inDegree := make(map[string]int, len(rules))
	for name, d := range deps {
		inDegree[name] = len(d)
	}

	layerOf := make(map[string]int, len(rules))
	processed := make(map[string]bool, len(rules))

	for len(processed) < len(rules) {
		ready := readyNames(rules, processed, inDegree)
		if len(ready) == 0 {
			return nil, &CycleError{Rules: findCycle(rules, processed, deps)}
		}
		for _, name := range ready {
			maxDepLayer := -1
			for d := range deps[name] {
				if layerOf[d] > maxDepLayer {
					maxDepLayer = layerOf[d]
				}
			}
			layerOf[name] = maxDepLayer + 1
			processed[name] = true
		}
		for _, name := range ready {
			for dependent := range dependents[name] {
				inDegree[dependent]--
			}
		}
	}

	compiled := make([]CompiledRule, 0, len(rules))
	allInputs := map[string]bool{}
	allOutputs := map[string]bool{}
	for _, r := range rules {
		depNames := sortedKeys(deps[r.Name])
		compiled = append(compiled, CompiledRule{
			Rule:          byName[r.Name],
			Layer:         layerOf[r.Name],
			Dependencies:  depNames,
			InputSensors:  append([]string(nil), inputs[r.Name]...),
			OutputSensors: append([]string(nil), outputs[r.Name]...),
		})
		for _, s := range inputs[r.Name] {
			allInputs[s] = true
		}
		for _, s := range outputs[r.Name] {
			allOutputs[s] = true
		}
	}

	sort.Slice(compiled, func(i, j int) bool {
		if compiled[i].Layer != compiled[j].Layer {
			return compiled[i].Layer < compiled[j].Layer
		}
		return compiled[i].Rule.Name < compiled[j].Rule.Name
	})

	return &CompiledRuleSet{
		Rules:         compiled,
		InputSensors:  sortedKeys(allInputs),
		OutputSensors: sortedKeys(allOutputs),
	}, nil
}

// readyNames returns the unprocessed rules with zero remaining
// in-degree, sorted by name for deterministic processing order
// (spec §4.D: "Ties broken by rule name (ascending)").
func readyNames(rules []model.Rule, processed map[string]bool, inDegree map[string]int) []string {
	var ready []string
	for _, r := range rules {
		if processed[r.Name] {
			continue
		}
		if inDegree[r.Name] == 0 {
			ready = append(ready, r.Name)
		}
	}
	sort.Strings(ready)
	return ready
}

// findCycle identifies one cycle among the unprocessed rules,
// deterministically starting from the lowest-named unresolved rule
// (spec §4.D: "deterministic: lowest-name ordering").
func findCycle(rules []model.Rule, processed map[string]bool, deps map[string]map[string]bool) []string {
	var remaining []string
	for _, r := range rules {
		if !processed[r.Name] {
			remaining = append(remaining, r.Name)
		}
	}
	sort.Strings(remaining)

	visited := map[string]bool{}
	var path []string
	var walk func(name string) []string
	walk = func(name string) []string {
		if idx := indexOf(path, name); idx >= 0 {
			return append([]string(nil), path[idx:]...)
		}
		if visited[name] {
			return nil
		}
		visited[name] = true
		path = append(path, name)
		depNames := sortedKeys(deps[name])
		for _, d := range depNames {
			if processed[d] {
				continue
			}
			if cyc := walk(d); cyc != nil {
				return cyc
			}
		}
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range remaining {
		path = nil
		visited = map[string]bool{}
		if cyc := walk(name); cyc != nil {
			sort.Strings(cyc)
			return cyc
		}
	}
	return remaining
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sensorsOf computes the input and output sensor sets for a rule:
// inputs are every identifier referenced by its condition tree (and
// by any SetValue.ValueExpression, since that expression is evaluated
// using this cycle's inputs/earlier-layer outputs); outputs are every
// SetValue.Key the rule writes (SendMessage has no output sensor).
func sensorsOf(r model.Rule) (inputs []string, outputs []string, err error) {
	in := map[string]bool{}
	out := map[string]bool{}

	var walkCondition func(c model.Condition) error
	walkCondition = func(c model.Condition) error {
		switch v := c.(type) {
		case nil:
			return nil
		case *model.Group:
			for _, child := range v.Children {
				if err := walkCondition(child); err != nil {
					return err
				}
			}
			return nil
		case *model.Comparison:
			in[v.Sensor] = true
			return nil
		case *model.ThresholdOverTime:
			in[v.Sensor] = true
			return nil
		case *model.Expression:
			node, err := expr.Parse(v.Source)
			if err != nil {
				return err
			}
			analysis, err := expr.Analyze(node)
			if err != nil {
				return err
			}
			for _, s := range analysis.Sensors {
				in[s] = true
			}
			return nil
		default:
			return fmt.Errorf("unknown condition node %T", c)
		}
	}

	if err := walkCondition(r.Condition); err != nil {
		return nil, nil, err
	}

	for _, a := range r.Actions {
		switch v := a.(type) {
		case *model.SetValue:
			out[v.Key] = true
			if v.ValueExpression != "" {
				node, err := expr.Parse(v.ValueExpression)
				if err != nil {
					return nil, nil, err
				}
				analysis, err := expr.Analyze(node)
				if err != nil {
					return nil, nil, err
				}
				for _, s := range analysis.Sensors {
					in[s] = true
				}
			}
		case *model.SendMessage:
			// no sensor I/O
		default:
			return nil, nil, fmt.Errorf("unknown action %T", a)
		}
	}

	return sortedKeys(in), sortedKeys(out), nil
}
