package sexy

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		actual  string
		message string // empty if the pattern matches
	}{
		{"5", "5", ""},
		{"5", "6", "root: expected 5, got 6"},
		{`"a"`, `"a"`, ""},
		{`"a"`, "a", `root: expected "a", got a`},
		{"...", "(anything at all)", ""},
		{"(a b)", "(a b)", ""},
		{"(a ...)", "(a b c)", ""},
		{"(a ...)", "(a)", ""},
		{"(a b ...)", "(a)", "root: expected 3 items, got 1 in (a)"},
		{"(a b)", "(a b c)", "root: expected 2 items, got 3 in (a b c)"},
		{"(a (b 5))", "(a (b 6))", "root[1][1]: expected 5, got 6"},
		{"(a (b ...) c)", "(a (b 1 2) c)", ""},
		{"(binary ^{type: integer} ...)", `(binary ^{type: integer} "+" 1 2)`, ""},
		{"(binary ^{type: integer} ...)", `(binary ^{type: decimal} "+" 1 2)`, "root^type: expected integer, got decimal"},
		{"(binary ^{type: integer} ...)", `(binary "+" 1 2)`, "root: missing metadata type"},
		{`(binary "+" 1 2)`, `(binary ^{type: integer} "+" 1 2)`, ""},
		{"{a: 1}", "{a: 1, b: 2}", ""},
		{"{c: 1}", "{a: 1}", "root: missing key c"},
		{"{a: 1}", "{a: 2}", "root.a: expected 1, got 2"},
		{"(a)", "a", "root: expected (a), got a"},
	}

	for _, test := range tests {
		pattern, err := Parse(test.pattern)
		be.Err(t, err, nil)
		actual, err := Parse(test.actual)
		be.Err(t, err, nil)

		message, ok := Match(pattern, actual)
		be.Equal(t, message, test.message)
		be.Equal(t, ok, test.message == "")
	}
}
