package expr

import "fmt"

// Node is the closed tagged-variant sum type for the expression AST
// (spec §9): NumberLit and Ident leaves, BinaryExpr/UnaryExpr
// operators, and CallExpr for whitelisted math functions.
type Node interface {
	node()
	String() string
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

func (*NumberLit) node()          {}
func (n *NumberLit) String() string { return fmt.Sprintf("%g", n.Value) }

// Ident is a sensor/output identifier reference, possibly namespaced
// (e.g. input:temperature, output:alert).
type Ident struct {
	Name string
}

func (*Ident) node()          {}
func (i *Ident) String() string { return i.Name }

// BoolLit is a boolean literal (true/false). NullLit is the null
// literal. Neither counts as a sensor reference (spec §4.C).
type BoolLit struct{ Value bool }

func (*BoolLit) node()          {}
func (b *BoolLit) String() string { return fmt.Sprintf("%t", b.Value) }

type NullLit struct{}

func (*NullLit) node()          {}
func (*NullLit) String() string { return "null" }

// BinaryExpr covers both arithmetic (+ - * /) and comparison
// (> < >= <= == !=) binary operators.
type BinaryExpr struct {
	Left  Node
	Op    TokenType
	Right Node
}

func (*BinaryExpr) node() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryExpr covers unary minus.
type UnaryExpr struct {
	Op      TokenType
	Operand Node
}

func (*UnaryExpr) node() {}
func (u *UnaryExpr) String() string {
	return fmt.Sprintf("(%s%s)", u.Op, u.Operand)
}

// CallExpr is a call to a whitelisted math function.
type CallExpr struct {
	Func string
	Args []Node
}

func (*CallExpr) node() {}
func (c *CallExpr) String() string {
	args := ""
	for i, a := range c.Args {
		if i > 0 {
			args += ", "
		}
		args += a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Func, args)
}
