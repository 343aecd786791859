// AST document reader and printer tests

package main

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestParseASTNodes(t *testing.T) {
	t.Parallel()
	arena, root := parseTree(t, `
		(program
		  (class "Point" (fields (field "x" integer) (field "y" integer)))
		  (func "scale" (params (param "p" Point) (param "k" decimal)) "Point"
		    (block (return (ident "p"))))
		  (var "name" text (string "a\\tb"))
		  (var "later" integer)
		  (if (boolean true) (break) (continue))
		  (assign (index (ident "xs") 0) (unary "-" 1))
		  (pipe (decimal "2.5") (call (ident "f") (integer -3))))
	`)

	prog := arena.At(root)
	be.Equal(t, prog.Kind, NodeProgram)
	be.Equal(t, len(prog.Children), 7)

	class := arena.At(prog.Children[0])
	be.Equal(t, class.Kind, NodeClass)
	be.Equal(t, class.Name, "Point")
	be.Equal(t, class.Fields, []Param{{"x", TypeInteger}, {"y", TypeInteger}})

	fn := arena.At(prog.Children[1])
	be.Equal(t, fn.Kind, NodeFunc)
	be.Equal(t, fn.Params, []Param{{"p", Type("Point")}, {"k", TypeDecimal}})
	be.Equal(t, fn.Result, Type("Point"))
	be.True(t, fn.Result.IsClass())
	be.Equal(t, len(fn.Children), 1)

	name := arena.At(prog.Children[2])
	be.Equal(t, name.Type, TypeText)
	// Text escapes stay encoded until code generation.
	be.Equal(t, arena.At(name.Children[0]).Text, `a\tb`)

	later := arena.At(prog.Children[3])
	be.Equal(t, len(later.Children), 0)

	pipe := arena.At(prog.Children[6])
	be.Equal(t, pipe.Kind, NodePipe)
	be.Equal(t, arena.At(pipe.Children[0]).Decimal, 2.5)
	call := arena.At(pipe.Children[1])
	be.Equal(t, arena.At(call.Children[1]).Integer, int64(-3))
}

func TestParseASTTypeMetadata(t *testing.T) {
	t.Parallel()
	arena, root := parseTree(t, `(^{type: decimal} binary "+" (^{type: integer} ident "a") 2)`)
	n := arena.At(root)
	be.Equal(t, n.Type, TypeDecimal)
	be.Equal(t, arena.At(n.Children[0]).Type, TypeInteger)
	be.Equal(t, arena.At(n.Children[1]).Type, TypeInteger)

	// unknown is the absent type.
	arena, root = parseTree(t, `(var "v" unknown 1)`)
	be.Equal(t, arena.At(root).Type, TypeUnknown)

	// Metadata does not override the declared type of a var.
	arena, root = parseTree(t, `(^{type: text} var "v" integer 1)`)
	be.Equal(t, arena.At(root).Type, TypeInteger)
}

func TestStringEscapesAreDoubled(t *testing.T) {
	t.Parallel()
	// The document escapes the backslash; the literal keeps its own \n
	// until code generation decodes it.
	arena, root := parseTree(t, `(string "line\\n")`)
	be.Equal(t, arena.At(root).Text, `line\n`)
	be.Equal(t, string(decodeEscapes(arena.At(root).Text)), "line\n")
	be.Equal(t, ToSExpr(arena, root), `(string "line\\n")`)
}

func TestToSExprRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []string{
		`42`,
		`-7`,
		`(integer 5 ^{type: decimal})`,
		`(decimal "0.1")`,
		`(boolean false)`,
		`(string "say \\\"hi\\\"")`,
		`(ident "größe")`,
		`(binary "+" 1 (unary "-" 2))`,
		`(call (ident "print") (string "x") 2)`,
		`(pipe 1 (ident "f"))`,
		`(var "v" unknown)`,
		`(var "p" "Point Type" (ident "q"))`,
		`(func "f" (params) void (block))`,
		`(class "C" (fields))`,
		`(if (boolean true) (block) (boolean false) (block) (block))`,
		`(for "i" 1 10 (block (break) (continue)))`,
		`(while (boolean true) (return))`,
		`(program (assign (index (ident "a") 0) (array 1 2 3)))`,
		`(^{type: Point} ident "p")`,
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			t.Parallel()
			arena, root := parseTree(t, src)
			printed := ToSExpr(arena, root)
			arena2, root2 := parseTree(t, printed)
			be.True(t, StructurallyEqual(arena, root, arena2, root2))
			be.Equal(t, ToSExpr(arena2, root2), printed)
		})
	}
}

func TestToSExprFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want string
	}{
		{`42`, `42`},
		{`(integer 42)`, `42`},
		{`(^{type: decimal} integer 42)`, `(^{type: decimal} integer 42)`},
		{`(^{type: integer} ident "x")`, `(^{type: integer} ident "x")`},
		{`(^{type: text} string "s")`, `(string "s")`},
		{`(var "v" unknown)`, `(var "v" unknown)`},
		{`(var "p" "Point Type")`, `(var "p" "Point Type")`},
		{`(func "f" (params (param "a" integer)) void (block))`, `(func "f" (params (param "a" integer)) void (block))`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			arena, root := parseTree(t, tt.src)
			be.Equal(t, ToSExpr(arena, root), tt.want)
		})
	}
}

func TestParseASTErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want string
	}{
		{`(`, "parsing AST document"},
		{`"bare"`, "expected a node"},
		{`(frobnicate 1)`, `unknown node kind "frobnicate"`},
		{`(integer "1")`, "integer: expected one integer"},
		{`99999999999999999999`, "integer literal 99999999999999999999"},
		{`(decimal "abc")`, `decimal literal "abc"`},
		{`(boolean maybe)`, "boolean: expected true or false, got maybe"},
		{`(ident x)`, "ident: argument 1 must be a string"},
		{`(binary "+" 1)`, "binary: expected 2 operands, got 1"},
		{`(call)`, "call: missing callee"},
		{`(var "v" integer 1 2)`, "var v: too many initializers"},
		{`(var "v" 5)`, "var: argument 2 must be a symbol"},
		{`(func "f" (params) void)`, "func f: expected (params ...) RESULT BODY"},
		{`(func "f" (args) void (block))`, "func f: expected (params ...), got (args)"},
		{`(func "f" (params (param "a")) void (block))`, "expected (param NAME TYPE)"},
		{`(class "C")`, "class C: expected (fields ...)"},
		{`(if (boolean true))`, "if: expected a condition and a body"},
		{`(for "i" 1 2)`, "for: expected 3 operands, got 2"},
		{`(return 1 2)`, "return: too many values"},
		{`(break 1)`, "break: expected 0 operands, got 1"},
		{`(^{type: 5} ident "x")`, "type metadata"},
		{`(string "line\n")`, `invalid escape sequence: \n`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			_, _, err := ParseAST(tt.src)
			be.True(t, err != nil)
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	arena, root := parseTree(t, `(func "f" (params (param "a" integer)) integer (block (return (ident "a"))))`)
	clone := arena.Clone(root)
	be.True(t, clone != root)
	be.True(t, StructurallyEqual(arena, root, arena, clone))

	arena.At(clone).Params[0].Name = "b"
	body := arena.At(clone).Children[0]
	arena.At(body).Children = nil

	be.Equal(t, arena.At(root).Params[0].Name, "a")
	be.Equal(t, len(arena.At(arena.At(root).Children[0]).Children), 1)
	be.True(t, !StructurallyEqual(arena, root, arena, clone))
}

func TestEveryNodeKindPrints(t *testing.T) {
	t.Parallel()
	for _, kind := range allNodeKinds {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()
			a := NewArena()
			id := a.New(Node{Kind: kind, Name: "n", Op: "+", Params: []Param{}, Fields: []Param{}})
			printed := ToSExpr(a, id)
			be.True(t, !strings.Contains(printed, string(kind)))
		})
	}
}
