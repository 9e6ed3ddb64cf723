package model

import "fmt"

// CombinatorType distinguishes the two logical combinators a
// condition-tree internal node can be (spec §3: "internal nodes are
// logical combinators {ALL, ANY}").
type CombinatorType int

const (
	CombinatorAll CombinatorType = iota
	CombinatorAny
)

func (c CombinatorType) String() string {
	if c == CombinatorAny {
		return "any"
	}
	return "all"
}

// Condition is the closed tagged-variant sum type for condition-tree
// nodes: internal Group nodes, and Comparison / Expression /
// ThresholdOverTime leaves. Represented as a Go interface with a
// private marker method so the set of implementations is closed to
// this package (spec §9: "represent as a closed tagged-variant sum
// type with exhaustive pattern matching").
type Condition interface {
	isCondition()
}

// Group is an internal ALL/ANY combinator node. An empty ALL is
// vacuously true; an empty ANY is vacuously false (spec §4.E).
type Group struct {
	Combinator CombinatorType
	Children   []Condition
}

func (*Group) isCondition() {}

// Comparison is a leaf: sensor OP numeric-value.
type Comparison struct {
	Sensor   string
	Operator Operator
	Value    float64
}

func (*Comparison) isCondition() {}

// Expression is a leaf holding a raw arithmetic/boolean expression
// string over the grammar in spec §3/§4.C. model does not parse it —
// internal/expr does — so that this package stays pure data.
type Expression struct {
	Source string
}

func (*Expression) isCondition() {}

// ThresholdOverTime is a leaf: a threshold-over-duration predicate,
// evaluated against a sensor's ring-buffer window (spec §4.G).
// RequiredFraction defaults to 1.0 when not supplied by the parser.
type ThresholdOverTime struct {
	Sensor           string
	Threshold        float64
	DurationMS       int64
	Operator         Operator
	RequiredFraction float64
}

func (*ThresholdOverTime) isCondition() {}

func conditionEqual(a, b Condition) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *Group:
		bv, ok := b.(*Group)
		if !ok || av.Combinator != bv.Combinator || len(av.Children) != len(bv.Children) {
			return false
		}
		for i := range av.Children {
			if !conditionEqual(av.Children[i], bv.Children[i]) {
				return false
			}
		}
		return true
	case *Comparison:
		bv, ok := b.(*Comparison)
		return ok && *av == *bv
	case *Expression:
		bv, ok := b.(*Expression)
		return ok && *av == *bv
	case *ThresholdOverTime:
		bv, ok := b.(*ThresholdOverTime)
		return ok && *av == *bv
	default:
		return false
	}
}

func canonicalCondition(c Condition) string {
	switch v := c.(type) {
	case *Group:
		parts := make([]string, len(v.Children))
		for i, child := range v.Children {
			parts[i] = canonicalCondition(child)
		}
		sep := " and "
		if v.Combinator == CombinatorAny {
			sep = " or "
		}
		return "(" + joinStrings(parts, sep) + ")"
	case *Comparison:
		return fmt.Sprintf("%s %s %s", v.Sensor, v.Operator, formatFloat(v.Value))
	case *Expression:
		return v.Source
	case *ThresholdOverTime:
		return fmt.Sprintf("threshold_over_time(%s %s %s, %dms, frac=%s)",
			v.Sensor, v.Operator, formatFloat(v.Threshold), v.DurationMS, formatFloat(v.RequiredFraction))
	default:
		return "<unknown>"
	}
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
