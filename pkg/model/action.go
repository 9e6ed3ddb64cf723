package model

import "fmt"

// Action is the closed tagged-variant sum type for action-list
// entries: SetValue and SendMessage (spec §3).
type Action interface {
	isAction()
}

// ScalarKind distinguishes the two literal kinds a SetValue.Value can
// hold. Open Question (spec §9) resolved in SPEC_FULL.md §5.1: a
// numeric-looking string literal stays a String, it is never
// re-parsed as a Number.
type ScalarKind int

const (
	ScalarNumber ScalarKind = iota
	ScalarString
)

// ScalarValue is a constant value for SetValue, as opposed to a
// ValueExpression.
type ScalarValue struct {
	Kind   ScalarKind
	Number float64
	String string
}

func (s ScalarValue) String() string {
	if s.Kind == ScalarString {
		return fmt.Sprintf("%q", s.String)
	}
	return formatFloat(s.Number)
}

// SetValue writes a literal or computed value to an output key.
// Exactly one of Value or ValueExpression is set, never both
// (enforced by pkg/ruleset's rule 11, DiagSetValueMissingSource).
type SetValue struct {
	Key             string
	Value           *ScalarValue
	ValueExpression string
}

func (*SetValue) isAction() {}

// SendMessage emits a static message string on a named channel.
type SendMessage struct {
	Channel string
	Message string
}

func (*SendMessage) isAction() {}

func actionEqual(a, b Action) bool {
	switch av := a.(type) {
	case *SetValue:
		bv, ok := b.(*SetValue)
		if !ok || av.Key != bv.Key || av.ValueExpression != bv.ValueExpression {
			return false
		}
		if (av.Value == nil) != (bv.Value == nil) {
			return false
		}
		if av.Value != nil && *av.Value != *bv.Value {
			return false
		}
		return true
	case *SendMessage:
		bv, ok := b.(*SendMessage)
		return ok && *av == *bv
	default:
		return false
	}
}

func canonicalAction(a Action) string {
	switch v := a.(type) {
	case *SetValue:
		if v.ValueExpression != "" {
			return fmt.Sprintf("set_value(%s = %s)", v.Key, v.ValueExpression)
		}
		val := ""
		if v.Value != nil {
			val = v.Value.String()
		}
		return fmt.Sprintf("set_value(%s = %s)", v.Key, val)
	case *SendMessage:
		return fmt.Sprintf("send_message(%s, %q)", v.Channel, v.Message)
	default:
		return "<unknown>"
	}
}
