// Command pulsarc is a thin composition root demonstrating the
// authoring pipeline: decode a rule-set document's node tree through
// pkg/ruleset's parser/validator, layer it with internal/layer, and
// emit a runnable internal/plan.Plan. It is not the rule-authoring
// CLI named as out of scope in spec.md §1 — there is no flag parsing
// and no YAML file I/O here; the example document below stands in
// for what a real CLI would read from disk and hand to Compile.
package main

import (
	"fmt"
	"log"

	"gopkg.in/yaml.v3"

	"github.com/pulsar-beacon/beacon/internal/layer"
	"github.com/pulsar-beacon/beacon/internal/plan"
	"github.com/pulsar-beacon/beacon/pkg/ruleset"
)

func main() {
	doc := exampleDocument()
	ns := ruleset.NewNamespace([]string{"temperature_f"})

	p, diags := Compile(doc, ns)
	if len(diags) > 0 {
		for _, d := range diags {
			log.Printf("diagnostic: %s", d)
		}
		log.Fatalf("compilation failed with %d diagnostic(s)", len(diags))
	}

	fmt.Printf("compiled plan with %d sensor horizon(s)\n", len(p.Horizons()))
}

// Compile runs the full authoring pipeline (spec.md §2: B→C→D→E) over
// an already-parsed document node tree. A non-empty diagnostic list
// is a ValidationError (spec.md §7): authoring aborts before
// producing a plan, so the returned *plan.Plan is nil in that case.
func Compile(doc *yaml.Node, ns ruleset.Namespace) (*plan.Plan, []ruleset.Diagnostic) {
	rs, diags := ruleset.Parse(doc, ns)
	if len(diags) > 0 {
		return nil, diags
	}

	cs, err := layer.Build(rs.Rules)
	if err != nil {
		if cycleErr, ok := err.(*layer.CycleError); ok {
			return nil, []ruleset.Diagnostic{{
				Kind:    ruleset.DiagDependencyCycle,
				Message: cycleErr.Error(),
			}}
		}
		return nil, []ruleset.Diagnostic{{Kind: ruleset.DiagMalformedDocument, Message: err.Error()}}
	}

	p, err := plan.Build(cs)
	if err != nil {
		return nil, []ruleset.Diagnostic{{Kind: ruleset.DiagMalformedDocument, Message: err.Error()}}
	}

	return p, nil
}

func exampleDocument() *yaml.Node {
	const doc = `
version: 1
rules:
  - name: f_to_c
    conditions:
      all:
        - type: comparison
          sensor: temperature_f
          operator: ">"
          value: 100
    actions:
      - set_value:
          key: temperature_c
          value_expression: "(temperature_f - 32) * 5 / 9"
`
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		log.Fatalf("example document: %v", err)
	}
	return &root
}
