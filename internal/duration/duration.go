// Package duration parses the `<dur>` literal from spec §6: an
// integer followed by a unit suffix in {ms, s, m, h}, normalized to
// milliseconds (spec §3: "Duration is a positive integer with unit
// ... normalized to milliseconds").
//
// The grammar is small and closed, so it is declared with participle
// struct tags (the same technique the teacher's internal/dsl/parser.go
// uses for its DSL grammar), rather than hand-rolling a second lexer
// next to internal/expr's.
package duration

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Literal is the parsed form of a duration literal: an integer
// magnitude and its unit suffix.
type Literal struct {
	Magnitude int64  `@Int`
	Unit      string `@("ms" | "s" | "m" | "h")`
}

var durationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `\d+`},
	{Name: "Unit", Pattern: `ms|s|m|h`},
})

var durationParser = participle.MustBuild[Literal](
	participle.Lexer(durationLexer),
)

var unitToMillis = map[string]int64{
	"ms": 1,
	"s":  1000,
	"m":  60 * 1000,
	"h":  60 * 60 * 1000,
}

// ParseMillis parses a duration literal such as "500ms", "30s", "5m",
// or "1h" and returns the equivalent millisecond count. Returns an
// error if the literal fails to parse, or if the magnitude is not
// strictly positive (spec §3: "duration_ms > 0").
func ParseMillis(s string) (int64, error) {
	lit, err := durationParser.ParseString("", s)
	if err != nil {
		return 0, fmt.Errorf("duration: invalid literal %q: %w", s, err)
	}
	factor, ok := unitToMillis[lit.Unit]
	if !ok {
		return 0, fmt.Errorf("duration: unknown unit %q in %q", lit.Unit, s)
	}
	ms := lit.Magnitude * factor
	if ms <= 0 {
		return 0, fmt.Errorf("duration: %q must normalize to a positive millisecond count", s)
	}
	return ms, nil
}
