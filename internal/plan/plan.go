// Package plan compiles a layer.CompiledRuleSet into an immutable,
// per-cycle-callable Plan (spec §4.E, Code/Plan Emitter): condition
// trees and action lists are interpreted once at build time into
// closures, so a running cycle never re-walks a model.Rule or
// re-parses an expression string.
//
// Grounded on the teacher's internal/rules/evaluator.go
// switch-on-node-type interpreter (internal/rules/evaluator.go),
// generalized from a one-shot AST walk into a closure builder that
// runs the dispatch once at Build time instead of on every
// Evaluate call.
package plan

import (
	"fmt"
	"sort"

	"github.com/pulsar-beacon/beacon/internal/layer"
	"github.com/pulsar-beacon/beacon/internal/ring"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

// Message is a SendMessage action's emitted output (spec §3).
type Message struct {
	Channel string
	Text    string
}

// SensorHorizon names a sensor and the longest ThresholdOverTime
// duration referenced against it anywhere in the plan. The caller
// (the cycle orchestrator) registers these with its ring.Manager
// before running any cycle, since buffers are owned by the
// orchestrator, not the plan (spec §5).
type SensorHorizon struct {
	Sensor     string
	DurationMS int64
}

// Result is the outcome of one Plan.Run call: every output written
// this cycle, every message emitted, and the skip accounting spec §7
// calls EvaluationSkip.
type Result struct {
	Outputs          map[string]model.ScalarValue
	Messages         []Message
	EvaluationSkips  int
	SensorSkipCounts map[string]int
	FiredRules       []string // rule names whose condition evaluated true this cycle
}

// ruleEvaluator is one compiled rule: its condition closure and
// compiled actions, plus its name for diagnostics.
type ruleEvaluator struct {
	name      string
	condition conditionEvaluator
	actions   []actionEvaluator
}

// layerPlan is every rule compiled for one dependency layer, already
// ordered by ascending rule name (spec §4.D tie-break).
type layerPlan struct {
	rules []ruleEvaluator
}

// Plan is the immutable compiled form of a rule set (spec §3:
// "Plans are immutable once built; mutation requires a new compile").
type Plan struct {
	layers   []layerPlan
	horizons []SensorHorizon
}

// Horizons returns the (sensor, duration_ms) pairs every
// ThresholdOverTime condition in this plan references, largest
// duration per sensor. The orchestrator registers these with its
// ring.Manager once, at load time.
func (p *Plan) Horizons() []SensorHorizon {
	return append([]SensorHorizon(nil), p.horizons...)
}

// Build compiles a layered rule set into a Plan.
func Build(cs *layer.CompiledRuleSet) (*Plan, error) {
	if len(cs.Rules) == 0 {
		return &Plan{}, nil
	}

	maxLayer := 0
	for _, cr := range cs.Rules {
		if cr.Layer > maxLayer {
			maxLayer = cr.Layer
		}
	}

	layers := make([]layerPlan, maxLayer+1)
	horizons := map[string]int64{}

	for _, cr := range cs.Rules {
		re, err := buildRule(cr.Rule, horizons)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", cr.Rule.Name, err)
		}
		layers[cr.Layer].rules = append(layers[cr.Layer].rules, re)
	}

	horizonList := make([]SensorHorizon, 0, len(horizons))
	for sensor, dur := range horizons {
		horizonList = append(horizonList, SensorHorizon{Sensor: sensor, DurationMS: dur})
	}
	sort.Slice(horizonList, func(i, j int) bool { return horizonList[i].Sensor < horizonList[j].Sensor })

	return &Plan{layers: layers, horizons: horizonList}, nil
}

func buildRule(r model.Rule, horizons map[string]int64) (ruleEvaluator, error) {
	recordHorizons(r.Condition, horizons)

	cond, err := buildCondition(r.Condition)
	if err != nil {
		return ruleEvaluator{}, err
	}

	actions := make([]actionEvaluator, len(r.Actions))
	for i, a := range r.Actions {
		ae, err := buildAction(a)
		if err != nil {
			return ruleEvaluator{}, err
		}
		actions[i] = ae
	}

	return ruleEvaluator{name: r.Name, condition: cond, actions: actions}, nil
}

func recordHorizons(c model.Condition, horizons map[string]int64) {
	switch v := c.(type) {
	case *model.Group:
		for _, child := range v.Children {
			recordHorizons(child, horizons)
		}
	case *model.ThresholdOverTime:
		if cur, ok := horizons[v.Sensor]; !ok || v.DurationMS > cur {
			horizons[v.Sensor] = v.DurationMS
		}
	}
}

// Run executes one evaluation cycle: inputs are this cycle's
// coerced sensor readings, buf is the orchestrator's ring buffer
// manager (already updated with this cycle's samples), and nowMS is
// the cycle timestamp. Layers run strictly in order; a layer's
// outputs become visible to every later layer but never to rules in
// its own layer (spec §5).
func (p *Plan) Run(inputs map[string]float64, buf *ring.Manager, nowMS int64) *Result {
	available := make(map[string]float64, len(inputs))
	for k, v := range inputs {
		available[k] = v
	}

	result := &Result{
		Outputs:          map[string]model.ScalarValue{},
		SensorSkipCounts: map[string]int{},
	}
	skips := newSkipCounter()

	for _, lp := range p.layers {
		pending := map[string]model.ScalarValue{}
		e := &env{available: available, skips: skips}

		for _, re := range lp.rules {
			if !re.condition(e, buf, nowMS) {
				continue
			}
			result.FiredRules = append(result.FiredRules, re.name)
			for _, ae := range re.actions {
				ae(e, result, pending)
			}
		}

		for k, v := range pending {
			result.Outputs[k] = v
			if v.Kind == model.ScalarNumber {
				available[k] = v.Number
			}
		}
	}

	result.EvaluationSkips = skips.total
	result.SensorSkipCounts = skips.perSensor
	return result
}
