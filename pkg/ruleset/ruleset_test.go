package ruleset

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pulsar-beacon/beacon/internal/layer"
)

func parseYAML(t *testing.T, doc string) *yaml.Node {
	t.Helper()
	var root yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &root), "document should be valid YAML")
	return &root
}

func kinds(diags []Diagnostic) map[DiagnosticKind]bool {
	out := make(map[DiagnosticKind]bool, len(diags))
	for _, d := range diags {
		out[d.Kind] = true
	}
	return out
}

func TestParse_ValidDocument_NoDiagnostics(t *testing.T) {
	doc := `
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
	ns := NewNamespace([]string{"temperature_f"})
	rs, diags := Parse(parseYAML(t, doc), ns)
	require.Empty(t, diags, "expected no diagnostics")
	require.NotNil(t, rs)
	require.Equal(t, 1, rs.Version)
	require.Len(t, rs.Rules, 1)

	_, err := layer.Build(rs.Rules)
	require.NoError(t, err, "layer.Build on a clean parse should succeed")
}

func TestParse_Rule1_MissingOrDuplicateName(t *testing.T) {
	doc := `
version: 1
rules:
  - actions:
      - send_message: { channel: ops, message: hi }
  - name: dup
    actions: [ { send_message: { channel: ops, message: hi } } ]
  - name: dup
    actions: [ { send_message: { channel: ops, message: hi } } ]
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace(nil))
	require.True(t, kinds(diags)[DiagInvalidName], "expected DiagInvalidName, got %v", diags)

	count := 0
	for _, d := range diags {
		if d.Kind == DiagInvalidName {
			count++
		}
	}
	require.Equal(t, 2, count, "expected 2 DiagInvalidName (missing + duplicate), got %v", diags)
}

func TestParse_Rule2_EmptyActions(t *testing.T) {
	doc := `
version: 1
rules:
  - name: no_actions
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace(nil))
	require.True(t, kinds(diags)[DiagEmptyActions], "expected DiagEmptyActions, got %v", diags)
}

func TestParse_Rule3_UnknownConditionType(t *testing.T) {
	doc := `
version: 1
rules:
  - name: bad_condition
    conditions:
      all:
        - type: not_a_real_type
          sensor: x
    actions:
      - send_message: { channel: ops, message: hi }
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x"}))
	require.True(t, kinds(diags)[DiagUnknownConditionType], "expected DiagUnknownConditionType, got %v", diags)
}

func TestParse_Rule4_UnknownOperator(t *testing.T) {
	doc := `
version: 1
rules:
  - name: bad_op
    conditions:
      all:
        - type: comparison
          sensor: x
          operator: "~="
          value: 1
    actions:
      - send_message: { channel: ops, message: hi }
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x"}))
	require.True(t, kinds(diags)[DiagUnknownOperator], "expected DiagUnknownOperator, got %v", diags)
}

func TestParse_Rule5_InvalidDuration(t *testing.T) {
	doc := `
version: 1
rules:
  - name: bad_duration
    conditions:
      all:
        - type: threshold_over_time
          sensor: x
          threshold: 1
          duration: "not-a-duration"
          operator: ">"
    actions:
      - send_message: { channel: ops, message: hi }
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x"}))
	require.True(t, kinds(diags)[DiagInvalidDuration], "expected DiagInvalidDuration, got %v", diags)
}

func TestParse_Rule6_UnknownSensor(t *testing.T) {
	doc := `
version: 1
rules:
  - name: unknown_sensor
    conditions:
      all:
        - type: comparison
          sensor: not_declared
          operator: ">"
          value: 1
    actions:
      - send_message: { channel: ops, message: hi }
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"temperature_f"}))
	require.True(t, kinds(diags)[DiagUnknownSensor], "expected DiagUnknownSensor, got %v", diags)
}

func TestParse_Rule7_UnknownFunction(t *testing.T) {
	doc := `
version: 1
rules:
  - name: unknown_func
    conditions:
      all:
        - type: expression
          expression: "wizardry(x)"
    actions:
      - send_message: { channel: ops, message: hi }
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x"}))
	require.True(t, kinds(diags)[DiagUnknownFunction], "expected DiagUnknownFunction, got %v", diags)
}

func TestParse_Rule8_ExpressionParseError(t *testing.T) {
	doc := `
version: 1
rules:
  - name: bad_expr
    conditions:
      all:
        - type: expression
          expression: "x + "
    actions:
      - send_message: { channel: ops, message: hi }
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x"}))
	require.True(t, kinds(diags)[DiagExpressionParse], "expected DiagExpressionParse, got %v", diags)
}

func TestParse_Rule9_EmptySetValueTarget(t *testing.T) {
	doc := `
version: 1
rules:
  - name: no_target
    actions:
      - set_value:
          value: 1
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace(nil))
	require.True(t, kinds(diags)[DiagEmptySetValueTarget], "expected DiagEmptySetValueTarget, got %v", diags)
}

func TestParse_Rule10_RequiredFractionOutOfRange(t *testing.T) {
	doc := `
version: 1
rules:
  - name: bad_fraction
    conditions:
      all:
        - type: threshold_over_time
          sensor: x
          threshold: 1
          duration: "5s"
          operator: ">"
          required_fraction: 1.5
    actions:
      - send_message: { channel: ops, message: hi }
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x"}))
	require.True(t, kinds(diags)[DiagInvalidRequiredFraction], "expected DiagInvalidRequiredFraction, got %v", diags)
}

func TestParse_Rule11_SetValueMissingSource(t *testing.T) {
	doc := `
version: 1
rules:
  - name: no_source
    actions:
      - set_value:
          key: out
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace(nil))
	require.True(t, kinds(diags)[DiagSetValueMissingSource], "expected DiagSetValueMissingSource, got %v", diags)
}

func TestParse_Rule11_SetValueBothSourcesSet(t *testing.T) {
	doc := `
version: 1
rules:
  - name: both_sources
    actions:
      - set_value:
          key: out
          value: 1
          value_expression: "x + 1"
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x"}))
	require.True(t, kinds(diags)[DiagSetValueMissingSource], "expected DiagSetValueMissingSource, got %v", diags)
}

// TestParse_ValidationIsTotal matches spec.md §4.B: "the diagnostic
// list contains every failure (not just the first)".
func TestParse_ValidationIsTotal(t *testing.T) {
	doc := `
version: 1
rules:
  - name: everything_wrong
    conditions:
      all:
        - type: comparison
          sensor: not_declared
          operator: "~="
          value: 1
    actions:
      - set_value:
          value: 1
`
	_, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"temperature_f"}))
	got := kinds(diags)
	for _, want := range []DiagnosticKind{DiagUnknownSensor, DiagUnknownOperator, DiagEmptySetValueTarget} {
		require.True(t, got[want], "expected diagnostic kind %s among %v", want, diags)
	}
	require.GreaterOrEqual(t, len(diags), 3, "expected at least 3 simultaneous diagnostics, got %v", diags)
}

func TestParse_AnyCombinatorAndSendMessage(t *testing.T) {
	doc := `
version: 1
rules:
  - name: any_rule
    conditions:
      any:
        - type: comparison
          sensor: x
          operator: ">"
          value: 10
        - type: comparison
          sensor: y
          operator: "<"
          value: 0
    actions:
      - send_message: { channel: ops, message: "threshold crossed" }
`
	rs, diags := Parse(parseYAML(t, doc), NewNamespace([]string{"x", "y"}))
	require.Empty(t, diags, "expected no diagnostics")
	require.Len(t, rs.Rules, 1)
}
