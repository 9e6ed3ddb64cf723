// Package model holds the in-memory representation of rules, condition
// trees, and actions. It is pure data: no parsing, no evaluation, no
// I/O. Structural equality and deterministic serialization live here so
// that every other package can treat a Rule as a value type.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Operator is a comparison operator usable in Comparison leaves,
// ThresholdOverTime predicates, and the expression grammar.
type Operator string

const (
	OpGT Operator = ">"
	OpLT Operator = "<"
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

// ValidOperators is the closed whitelist from spec §3.
var ValidOperators = map[Operator]bool{
	OpGT: true, OpLT: true, OpGE: true, OpLE: true, OpEQ: true, OpNE: true,
}

// Rule is a single named rule: a condition tree plus an ordered list
// of actions. Name is the declared identity; ID is a synthetic,
// process-local identifier assigned at parse time for diagnostics
// cross-referencing and does not participate in equality.
type Rule struct {
	ID          string
	Name        string
	Description string
	Condition   Condition // nil means vacuously true (empty top-level group)
	Actions     []Action
}

// NewRuleID returns a fresh synthetic rule identifier.
func NewRuleID() string {
	return uuid.NewString()
}

// Equal reports structural equality, ignoring ID (a synthetic,
// run-to-run-unstable field) and Description (documentation only).
func (r Rule) Equal(other Rule) bool {
	if r.Name != other.Name {
		return false
	}
	if !conditionEqual(r.Condition, other.Condition) {
		return false
	}
	if len(r.Actions) != len(other.Actions) {
		return false
	}
	for i := range r.Actions {
		if !actionEqual(r.Actions[i], other.Actions[i]) {
			return false
		}
	}
	return true
}

// Canonical renders a deterministic textual form of the rule, suitable
// for snapshot tests (spec §8 property 3: idempotent validation).
// Numeric literals are formatted with Go's shortest round-trippable
// representation and condition/action ordering is preserved exactly
// as declared (order is semantically significant: §4.E, "actions
// execute in declaration order").
func (r Rule) Canonical() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rule %s {\n", r.Name)
	if r.Condition != nil {
		fmt.Fprintf(&b, "  when %s\n", canonicalCondition(r.Condition))
	}
	for _, a := range r.Actions {
		fmt.Fprintf(&b, "  do %s\n", canonicalAction(a))
	}
	b.WriteString("}")
	return b.String()
}

// RuleSet is the top-level parsed & validated document (spec §6):
// a version plus the ordered list of rules. Ordering here is
// declaration order; see layer.CompiledRuleSet for the
// layer-then-name order used at runtime.
type RuleSet struct {
	Version int
	Rules   []Rule
}

// NamesSorted returns the rule names in ascending order, used by
// diagnostics that must name a deterministic rule ordering (spec §4.D,
// "Ties broken by rule name").
func (rs RuleSet) NamesSorted() []string {
	names := make([]string, len(rs.Rules))
	for i, r := range rs.Rules {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}
