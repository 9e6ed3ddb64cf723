package plan

import (
	"github.com/pulsar-beacon/beacon/internal/expr"
	"github.com/pulsar-beacon/beacon/pkg/model"
)

// actionEvaluator is a compiled action: given this layer's read-only
// env and the cycle Result, it writes to pending (this rule's layer,
// not yet visible to sibling rules) and/or appends a Message.
type actionEvaluator func(e *env, result *Result, pending map[string]model.ScalarValue)

func buildAction(a model.Action) (actionEvaluator, error) {
	switch v := a.(type) {
	case *model.SetValue:
		return buildSetValue(v)
	case *model.SendMessage:
		channel, text := v.Channel, v.Message
		return func(e *env, result *Result, pending map[string]model.ScalarValue) {
			result.Messages = append(result.Messages, Message{Channel: channel, Text: text})
		}, nil
	default:
		panic("plan: unknown action node reached buildAction")
	}
}

// buildSetValue compiles a SetValue action. A constant Value always
// succeeds; a ValueExpression is parsed once here and re-evaluated
// every cycle against that cycle's env — if it reads a missing or
// non-numeric sensor, the write is skipped entirely for this cycle
// (spec §4.E coercion rule), it does not fall back to any default.
func buildSetValue(v *model.SetValue) (actionEvaluator, error) {
	key := v.Key

	if v.ValueExpression != "" {
		node, err := expr.Parse(v.ValueExpression)
		if err != nil {
			return nil, err
		}
		return func(e *env, result *Result, pending map[string]model.ScalarValue) {
			val, ok := evalExprNode(node, e)
			if !ok {
				e.skips.record(key)
				return
			}
			pending[key] = model.ScalarValue{Kind: model.ScalarNumber, Number: val}
		}, nil
	}

	constant := *v.Value
	return func(e *env, result *Result, pending map[string]model.ScalarValue) {
		pending[key] = constant
	}, nil
}
