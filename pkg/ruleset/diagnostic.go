// Package ruleset decodes a rule-set document's abstract node tree
// (spec.md §6: "the core accepts an abstract node tree") into a
// model.RuleSet, validating it against the ten rules of spec.md §4.B
// plus one more this package adds (a SetValue must carry exactly one
// of value/value_expression) as it goes. Validation is total: every
// rule in the document is walked and every failure is reported, not
// just the first.
package ruleset

import "fmt"

// DiagnosticKind names one of the distinct failure categories
// spec.md §4.B requires (numbered 1-10 there), plus rule 11 (a
// SetValue action must declare exactly one of value/value_expression,
// spec.md §3); a handful of additional kinds cover document shapes the
// grammar in spec.md §6 doesn't anticipate (e.g. a rule entry that
// isn't a mapping at all).
type DiagnosticKind string

const (
	DiagMalformedDocument       DiagnosticKind = "malformed_document"
	DiagDependencyCycle         DiagnosticKind = "dependency_cycle" // internal/layer.CycleError, surfaced as a diagnostic
	DiagInvalidName             DiagnosticKind = "invalid_name"              // rule 1
	DiagEmptyActions            DiagnosticKind = "empty_actions"             // rule 2
	DiagUnknownConditionType    DiagnosticKind = "unknown_condition_type"    // rule 3
	DiagUnknownOperator         DiagnosticKind = "unknown_operator"          // rule 4
	DiagInvalidDuration         DiagnosticKind = "invalid_duration"          // rule 5
	DiagUnknownSensor           DiagnosticKind = "unknown_sensor"            // rule 6
	DiagUnknownFunction         DiagnosticKind = "unknown_function"          // rule 7
	DiagExpressionParse         DiagnosticKind = "expression_parse_error"    // rule 8
	DiagEmptySetValueTarget     DiagnosticKind = "empty_set_value_target"    // rule 9
	DiagInvalidRequiredFraction DiagnosticKind = "invalid_required_fraction" // rule 10
	DiagSetValueMissingSource   DiagnosticKind = "set_value_missing_source"  // rule 11
)

// Diagnostic reports one validation failure with its source location
// (spec.md §4.B: "a list of diagnostics with source location").
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
	Line    int
	Column  int
	Rule    string // the enclosing rule's name, if known; "" otherwise
}

func (d Diagnostic) String() string {
	if d.Rule != "" {
		return fmt.Sprintf("%d:%d: [%s] rule %q: %s", d.Line, d.Column, d.Kind, d.Rule, d.Message)
	}
	return fmt.Sprintf("%d:%d: [%s] %s", d.Line, d.Column, d.Kind, d.Message)
}
