package expr

import "fmt"

// TokenType enumerates the lexical tokens of the arithmetic/boolean
// expression grammar (spec §3/§4.C): sensor identifiers (with the
// colon form for namespaced keys like input:temperature), numeric
// literals, the comparison operators, the four arithmetic operators,
// and call/grouping punctuation.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenTrue
	TokenFalse
	TokenNull
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenEqual
	TokenNotEqual
	TokenGreater
	TokenGreaterEqual
	TokenLess
	TokenLessEqual
	TokenLParen
	TokenRParen
	TokenComma
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "IDENT"
	case TokenNumber:
		return "NUMBER"
	case TokenTrue:
		return "TRUE"
	case TokenFalse:
		return "FALSE"
	case TokenNull:
		return "NULL"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenEqual:
		return "=="
	case TokenNotEqual:
		return "!="
	case TokenGreater:
		return ">"
	case TokenGreaterEqual:
		return ">="
	case TokenLess:
		return "<"
	case TokenLessEqual:
		return "<="
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenComma:
		return ","
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

// Token is a single lexical token with source position, used to
// produce location-carrying diagnostics (spec §4.B).
type Token struct {
	Type   TokenType
	Lexeme string
	Pos    int
}

// reservedConstants are excluded from identifier/sensor extraction
// (spec §4.C).
var reservedConstants = map[string]TokenType{
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
}

// MathFunctions is the closed whitelist of pure math functions
// callable from the expression grammar (spec §3).
var MathFunctions = map[string]bool{
	"abs": true, "pow": true, "sqrt": true, "sin": true, "cos": true,
	"tan": true, "log": true, "exp": true, "floor": true, "ceil": true,
	"round": true, "min": true, "max": true,
}
