package ruleset

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pulsar-beacon/beacon/internal/duration"
	"github.com/pulsar-beacon/beacon/internal/expr"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

// Namespace is the closed set of sensor identifiers declared by the
// system-config document (spec.md §3: "Sensor namespace").
type Namespace struct {
	sensors map[string]bool
}

// NewNamespace builds a Namespace from the system-config document's
// valid_sensors list.
func NewNamespace(sensors []string) Namespace {
	m := make(map[string]bool, len(sensors))
	for _, s := range sensors {
		m[s] = true
	}
	return Namespace{sensors: m}
}

func (n Namespace) has(sensor string) bool {
	return n.sensors[stripNamespacePrefix(sensor)]
}

// stripNamespacePrefix drops a leading "input:"/"output:" style
// namespace prefix so expression identifiers in either form resolve
// against the same bare sensor name the system config declares
// (spec.md §4.C describes the colon form as a namespaced key over
// the same identifier, not a second identifier space).
func stripNamespacePrefix(s string) string {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Parse decodes doc (a yaml.Node document or mapping node) into a
// model.RuleSet, validating every rule against the ten checks of
// spec.md §4.B along the way. The returned RuleSet is only fit to
// pass to layer.Build when the diagnostic list is empty; a non-empty
// list is a ValidationError (spec.md §7) and authoring must abort
// before producing a plan.
func Parse(doc *yaml.Node, ns Namespace) (*model.RuleSet, []Diagnostic) {
	p := &parser{ns: ns}

	root := unwrapDocument(doc)
	if root == nil || root.Kind != yaml.MappingNode {
		p.addf(root, "", DiagMalformedDocument, "rule-set document must be a mapping")
		return nil, p.diags
	}

	version := 1
	if v := mappingGet(root, "version"); v != nil {
		if n, err := strconv.Atoi(v.Value); err == nil {
			version = n
		} else {
			p.addf(v, "", DiagMalformedDocument, fmt.Sprintf("version %q is not an integer", v.Value))
		}
	}

	rulesNode := mappingGet(root, "rules")
	if rulesNode == nil || rulesNode.Kind != yaml.SequenceNode {
		p.addf(root, "", DiagMalformedDocument, "rule-set document must declare a rules sequence")
		return &model.RuleSet{Version: version}, p.diags
	}

	seen := make(map[string]bool, len(rulesNode.Content))
	rules := make([]model.Rule, 0, len(rulesNode.Content))
	for _, rn := range rulesNode.Content {
		rules = append(rules, p.parseRule(rn, seen))
	}

	return &model.RuleSet{Version: version, Rules: rules}, p.diags
}

type parser struct {
	ns    Namespace
	diags []Diagnostic
}

func (p *parser) addf(node *yaml.Node, ruleName string, kind DiagnosticKind, msg string) {
	line, col := 0, 0
	if node != nil {
		line, col = node.Line, node.Column
	}
	p.diags = append(p.diags, Diagnostic{Kind: kind, Message: msg, Line: line, Column: col, Rule: ruleName})
}

func (p *parser) parseRule(rn *yaml.Node, seen map[string]bool) model.Rule {
	rule := model.Rule{ID: model.NewRuleID()}

	if rn.Kind != yaml.MappingNode {
		p.addf(rn, "", DiagMalformedDocument, "rule entry must be a mapping")
		return rule
	}

	// Rule 1: name present and unique.
	if nameNode := mappingGet(rn, "name"); nameNode == nil || strings.TrimSpace(nameNode.Value) == "" {
		p.addf(rn, "", DiagInvalidName, "rule name is required")
	} else {
		rule.Name = nameNode.Value
		if seen[rule.Name] {
			p.addf(nameNode, rule.Name, DiagInvalidName, fmt.Sprintf("duplicate rule name %q", rule.Name))
		}
		seen[rule.Name] = true
	}

	if descNode := mappingGet(rn, "description"); descNode != nil {
		rule.Description = descNode.Value
	}

	if condNode := mappingGet(rn, "conditions"); condNode != nil {
		rule.Condition = p.parseConditions(condNode, rule.Name)
	}

	// Rule 2: actions list non-empty.
	actionsNode := mappingGet(rn, "actions")
	if actionsNode == nil || actionsNode.Kind != yaml.SequenceNode || len(actionsNode.Content) == 0 {
		p.addf(rn, rule.Name, DiagEmptyActions, "actions list must be non-empty")
	} else {
		for _, an := range actionsNode.Content {
			if a := p.parseAction(an, rule.Name); a != nil {
				rule.Actions = append(rule.Actions, a)
			}
		}
	}

	return rule
}

func (p *parser) parseConditions(node *yaml.Node, ruleName string) model.Condition {
	if node.Kind != yaml.MappingNode {
		p.addf(node, ruleName, DiagUnknownConditionType, "conditions must be a mapping with an all/any key")
		return nil
	}
	if allNode := mappingGet(node, "all"); allNode != nil {
		return &model.Group{Combinator: model.CombinatorAll, Children: p.parseConditionList(allNode, ruleName)}
	}
	if anyNode := mappingGet(node, "any"); anyNode != nil {
		return &model.Group{Combinator: model.CombinatorAny, Children: p.parseConditionList(anyNode, ruleName)}
	}
	// Neither key present: an empty top-level group, vacuously true
	// (spec.md §4.E).
	return &model.Group{Combinator: model.CombinatorAll}
}

func (p *parser) parseConditionList(node *yaml.Node, ruleName string) []model.Condition {
	if node.Kind != yaml.SequenceNode {
		p.addf(node, ruleName, DiagUnknownConditionType, "all/any must hold a sequence of conditions")
		return nil
	}
	out := make([]model.Condition, 0, len(node.Content))
	for _, cn := range node.Content {
		if c := p.parseCondition(cn, ruleName); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Rule 3: each condition leaf type recognized.
func (p *parser) parseCondition(node *yaml.Node, ruleName string) model.Condition {
	if node.Kind != yaml.MappingNode {
		p.addf(node, ruleName, DiagUnknownConditionType, "condition entry must be a mapping")
		return nil
	}
	// A nested group is allowed anywhere a leaf is (spec.md §3: the
	// condition tree is recursive), even though the §6 grammar only
	// spells out the leaf alternatives explicitly.
	if allNode := mappingGet(node, "all"); allNode != nil {
		return &model.Group{Combinator: model.CombinatorAll, Children: p.parseConditionList(allNode, ruleName)}
	}
	if anyNode := mappingGet(node, "any"); anyNode != nil {
		return &model.Group{Combinator: model.CombinatorAny, Children: p.parseConditionList(anyNode, ruleName)}
	}

	typeNode := mappingGet(node, "type")
	if typeNode == nil {
		p.addf(node, ruleName, DiagUnknownConditionType, "condition entry missing type")
		return nil
	}
	switch typeNode.Value {
	case "comparison":
		return p.parseComparison(node, ruleName)
	case "expression":
		return p.parseExpression(node, ruleName)
	case "threshold_over_time":
		return p.parseThresholdOverTime(node, ruleName)
	default:
		p.addf(typeNode, ruleName, DiagUnknownConditionType, fmt.Sprintf("unrecognized condition type %q", typeNode.Value))
		return nil
	}
}

func (p *parser) parseComparison(node *yaml.Node, ruleName string) model.Condition {
	c := &model.Comparison{}

	if sensorNode := mappingGet(node, "sensor"); sensorNode != nil {
		c.Sensor = sensorNode.Value
		p.checkSensor(sensorNode, ruleName, c.Sensor)
	}

	// Rule 4: comparison operator in the whitelist.
	if opNode := mappingGet(node, "operator"); opNode != nil {
		op := model.Operator(opNode.Value)
		if !model.ValidOperators[op] {
			p.addf(opNode, ruleName, DiagUnknownOperator, fmt.Sprintf("unknown comparison operator %q", opNode.Value))
		}
		c.Operator = op
	}

	if valNode := mappingGet(node, "value"); valNode != nil {
		if f, err := strconv.ParseFloat(valNode.Value, 64); err == nil {
			c.Value = f
		} else {
			p.addf(valNode, ruleName, DiagUnknownConditionType, fmt.Sprintf("comparison value %q is not numeric", valNode.Value))
		}
	}

	return c
}

func (p *parser) parseExpression(node *yaml.Node, ruleName string) model.Condition {
	exprNode := mappingGet(node, "expression")
	if exprNode == nil {
		p.addf(node, ruleName, DiagExpressionParse, "expression condition missing expression text")
		return &model.Expression{}
	}
	p.validateExpression(exprNode, ruleName, exprNode.Value)
	return &model.Expression{Source: exprNode.Value}
}

// validateExpression implements rules 7 and 8 together: the
// expression must parse under the grammar (internal/expr), every
// function it calls must be whitelisted, and every sensor it
// references must be declared (rule 6, reused here since an
// expression's sensor references are checked the same way a bare
// Comparison.Sensor is).
func (p *parser) validateExpression(node *yaml.Node, ruleName, source string) {
	ast, err := expr.Parse(source)
	if err != nil {
		p.addf(node, ruleName, DiagExpressionParse, fmt.Sprintf("expression %q: %v", source, err))
		return
	}
	analysis, err := expr.Analyze(ast)
	if err != nil {
		p.addf(node, ruleName, DiagUnknownFunction, err.Error())
		return
	}
	for _, s := range analysis.Sensors {
		p.checkSensor(node, ruleName, s)
	}
}

// Rule 6: every sensor identifier occurs in the declared namespace.
func (p *parser) checkSensor(node *yaml.Node, ruleName, sensor string) {
	if !p.ns.has(sensor) {
		p.addf(node, ruleName, DiagUnknownSensor, fmt.Sprintf("unknown sensor %q", sensor))
	}
}

func (p *parser) parseThresholdOverTime(node *yaml.Node, ruleName string) model.Condition {
	t := &model.ThresholdOverTime{RequiredFraction: 1.0}

	if sensorNode := mappingGet(node, "sensor"); sensorNode != nil {
		t.Sensor = sensorNode.Value
		p.checkSensor(sensorNode, ruleName, t.Sensor)
	}

	if threshNode := mappingGet(node, "threshold"); threshNode != nil {
		if f, err := strconv.ParseFloat(threshNode.Value, 64); err == nil {
			t.Threshold = f
		} else {
			p.addf(threshNode, ruleName, DiagUnknownConditionType, fmt.Sprintf("threshold %q is not numeric", threshNode.Value))
		}
	}

	// Rule 5: temporal duration parses and is > 0.
	if durNode := mappingGet(node, "duration"); durNode != nil {
		ms, err := duration.ParseMillis(durNode.Value)
		if err != nil {
			p.addf(durNode, ruleName, DiagInvalidDuration, err.Error())
		}
		t.DurationMS = ms
	} else {
		p.addf(node, ruleName, DiagInvalidDuration, "threshold_over_time requires a duration")
	}

	if opNode := mappingGet(node, "operator"); opNode != nil {
		op := model.Operator(opNode.Value)
		if !model.ValidOperators[op] {
			p.addf(opNode, ruleName, DiagUnknownOperator, fmt.Sprintf("unknown comparison operator %q", opNode.Value))
		}
		t.Operator = op
	}

	// Rule 10: required-fraction in [0,1].
	if fracNode := mappingGet(node, "required_fraction"); fracNode != nil {
		f, err := strconv.ParseFloat(fracNode.Value, 64)
		if err != nil {
			p.addf(fracNode, ruleName, DiagInvalidRequiredFraction, fmt.Sprintf("required_fraction %q is not numeric", fracNode.Value))
		} else if f < 0 || f > 1 {
			p.addf(fracNode, ruleName, DiagInvalidRequiredFraction, fmt.Sprintf("required_fraction %v is outside [0,1]", f))
		} else {
			t.RequiredFraction = f
		}
	}

	return t
}

func (p *parser) parseAction(node *yaml.Node, ruleName string) model.Action {
	if node.Kind != yaml.MappingNode {
		p.addf(node, ruleName, DiagEmptyActions, "action entry must be a mapping")
		return nil
	}
	if svNode := mappingGet(node, "set_value"); svNode != nil {
		return p.parseSetValue(svNode, ruleName)
	}
	if smNode := mappingGet(node, "send_message"); smNode != nil {
		return p.parseSendMessage(smNode, ruleName)
	}
	p.addf(node, ruleName, DiagEmptyActions, "action entry must be set_value or send_message")
	return nil
}

// Rule 9: SetValue targets are non-empty strings.
func (p *parser) parseSetValue(node *yaml.Node, ruleName string) model.Action {
	sv := &model.SetValue{}

	if keyNode := mappingGet(node, "key"); keyNode == nil || strings.TrimSpace(keyNode.Value) == "" {
		p.addf(node, ruleName, DiagEmptySetValueTarget, "set_value key must be a non-empty string")
	} else {
		sv.Key = keyNode.Value
	}

	exprNode := mappingGet(node, "value_expression")
	hasExpr := exprNode != nil && exprNode.Value != ""
	valNode := mappingGet(node, "value")
	hasValue := valNode != nil

	switch {
	case hasExpr && hasValue:
		p.addf(node, ruleName, DiagSetValueMissingSource, "set_value must declare exactly one of value or value_expression, not both")
	case hasExpr:
		sv.ValueExpression = exprNode.Value
		p.validateExpression(exprNode, ruleName, exprNode.Value)
	case hasValue:
		sv.Value = p.parseScalarValue(valNode)
	default:
		p.addf(node, ruleName, DiagSetValueMissingSource, "set_value must declare one of value or value_expression")
	}

	return sv
}

func (p *parser) parseScalarValue(node *yaml.Node) *model.ScalarValue {
	if node.Tag == "!!str" {
		return &model.ScalarValue{Kind: model.ScalarString, String: node.Value}
	}
	if f, err := strconv.ParseFloat(node.Value, 64); err == nil {
		return &model.ScalarValue{Kind: model.ScalarNumber, Number: f}
	}
	return &model.ScalarValue{Kind: model.ScalarString, String: node.Value}
}

func (p *parser) parseSendMessage(node *yaml.Node, ruleName string) model.Action {
	sm := &model.SendMessage{}
	if channelNode := mappingGet(node, "channel"); channelNode != nil {
		sm.Channel = channelNode.Value
	}
	if messageNode := mappingGet(node, "message"); messageNode != nil {
		sm.Message = messageNode.Value
	}
	return sm
}

func mappingGet(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func unwrapDocument(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}
