package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pulsar-beacon/beacon/pkg/ruleset"
)

func TestCompile_ExampleDocument_Succeeds(t *testing.T) {
	ns := ruleset.NewNamespace([]string{"temperature_f"})
	p, diags := Compile(exampleDocument(), ns)
	require.Empty(t, diags, "expected no diagnostics")
	require.NotNil(t, p, "expected a non-nil plan")
}

func TestCompile_DependencyCycle_ReportsDiagnostic(t *testing.T) {
	const doc = `
version: 1
rules:
  - name: a
    conditions:
      all:
        - type: comparison
          sensor: b
          operator: ">"
          value: 0
    actions:
      - set_value: { key: a, value: 1 }
  - name: b
    conditions:
      all:
        - type: comparison
          sensor: a
          operator: ">"
          value: 0
    actions:
      - set_value: { key: b, value: 1 }
`
	var root yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &root))

	ns := ruleset.NewNamespace([]string{"a", "b"})
	p, diags := Compile(&root, ns)
	require.Nil(t, p, "expected nil plan on a dependency cycle")
	require.Len(t, diags, 1)
	require.Equal(t, ruleset.DiagDependencyCycle, diags[0].Kind)
}

func TestCompile_ValidationFailure_ReportsDiagnostics(t *testing.T) {
	const doc = `
version: 1
rules:
  - name: broken
    conditions:
      all:
        - type: comparison
          sensor: not_declared
          operator: ">"
          value: 1
    actions: []
`
	var root yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &root))

	ns := ruleset.NewNamespace([]string{"temperature_f"})
	p, diags := Compile(&root, ns)
	require.Nil(t, p, "expected nil plan on validation failure")
	require.NotEmpty(t, diags, "expected at least one diagnostic")
}
