package sexy

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InputType names the fence that holds a case's AST document.
type InputType string

const (
	// InputTypeAST is an AST document: a single statement or expression.
	InputTypeAST InputType = "kw-ast"
	// InputTypeProgram is an AST document whose root is (program ...).
	InputTypeProgram InputType = "kw-program"
)

// AssertionType names a fence that checks something about the compiled case.
type AssertionType string

const (
	AssertionTypeAST         AssertionType = "ast"         // optimized tree, as a pattern
	AssertionTypeARM64       AssertionType = "arm64"       // lines expected in order in the assembly
	AssertionTypeWat         AssertionType = "wat"         // lines expected in order in the module text
	AssertionTypeExecute     AssertionType = "execute"     // program output on every runnable target
	AssertionTypeDiagnostics AssertionType = "diagnostics" // expected limitation messages, one per line
)

type fenceRole int

const (
	roleNone fenceRole = iota
	roleInput
	roleAssertion
)

var fenceRoles = map[string]fenceRole{
	string(InputTypeAST):             roleInput,
	string(InputTypeProgram):         roleInput,
	string(AssertionTypeAST):         roleAssertion,
	string(AssertionTypeARM64):       roleAssertion,
	string(AssertionTypeWat):         roleAssertion,
	string(AssertionTypeExecute):     roleAssertion,
	string(AssertionTypeDiagnostics): roleAssertion,
}

type Assertion struct {
	Type       AssertionType
	Content    string // fence body without the trailing newline
	ParsedSexy *Node  // the pattern of an ast assertion; nil for the others
}

// ExpectedLines splits a line-oriented assertion into trimmed, non-empty
// lines.
func (a Assertion) ExpectedLines() []string {
	var lines []string
	for _, line := range strings.Split(a.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// TestCase is one "Test: NAME" heading with its input and assertion fences.
type TestCase struct {
	Name       string
	Input      string
	InputType  InputType
	Line       int // first line of the input fence's body
	Assertions []Assertion
}

// ExtractTestCases reads every test case from a Markdown document. Fences
// with no language are prose and ignored. Any other fence must belong to a
// test case and have a known language.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	x := &extractor{source: []byte(markdownContent)}
	doc := goldmark.New().Parser().Parse(text.NewReader(x.source))

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var err error
		switch n := node.(type) {
		case *ast.Heading:
			err = x.heading(n)
		case *ast.FencedCodeBlock:
			err = x.fence(n)
		}
		if err != nil {
			return ast.WalkStop, err
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "error walking markdown AST")
	}
	if err := x.flush(); err != nil {
		return nil, err
	}
	return x.cases, nil
}

type extractor struct {
	source  []byte
	cases   []TestCase
	current *TestCase
}

func (x *extractor) heading(n *ast.Heading) error {
	name, ok := strings.CutPrefix(x.plainText(n), "Test: ")
	if !ok {
		return nil
	}
	if err := x.flush(); err != nil {
		return err
	}
	x.current = &TestCase{Name: name, Assertions: []Assertion{}}
	return nil
}

// flush validates the case being collected and appends it to the result.
func (x *extractor) flush() error {
	tc := x.current
	if tc == nil {
		return nil
	}
	switch {
	case tc.Input == "":
		return errors.Errorf("test '%s' has no input fence", tc.Name)
	case len(tc.Assertions) == 0:
		return errors.Errorf("test '%s' has no assertion fences", tc.Name)
	}
	x.cases = append(x.cases, *tc)
	x.current = nil
	return nil
}

func (x *extractor) fence(n *ast.FencedCodeBlock) error {
	language := string(n.Language(x.source))
	if language == "" {
		return nil
	}
	line := x.line(n)
	role := fenceRoles[language]
	tc := x.current

	switch {
	case tc == nil && role == roleNone:
		return errors.Errorf("line %d: unknown fence language '%s' found outside of test case", line, language)
	case tc == nil:
		return errors.Errorf("line %d: %s fence found outside of test case", line, language)
	case role == roleNone:
		return errors.Errorf("line %d: unknown fence language '%s' in test '%s'", line, language, tc.Name)
	}

	content := strings.TrimRight(x.body(n), "\n")
	if role == roleInput {
		if tc.Input != "" {
			return errors.Errorf("line %d: multiple input fences found in test '%s'", line, tc.Name)
		}
		tc.Input = content
		tc.InputType = InputType(language)
		tc.Line = line
		return nil
	}

	a := Assertion{Type: AssertionType(language), Content: content}
	if a.Type == AssertionTypeAST {
		pattern, err := Parse(content)
		if err != nil {
			return errors.Wrapf(err, "line %d: failed to parse ast assertion in test '%s'", line, tc.Name)
		}
		a.ParsedSexy = pattern
	}
	tc.Assertions = append(tc.Assertions, a)
	return nil
}

// plainText concatenates the text segments under node.
func (x *extractor) plainText(node ast.Node) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); entering && ok {
			buf.Write(t.Segment.Value(x.source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func (x *extractor) body(n *ast.FencedCodeBlock) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(x.source))
	}
	return buf.String()
}

// line is the 1-based line of the first body line of n, or of the fence
// itself when the body is empty.
func (x *extractor) line(n *ast.FencedCodeBlock) int {
	var start int
	switch {
	case n.Lines().Len() > 0:
		start = n.Lines().At(0).Start
	case n.Info != nil:
		start = n.Info.Segment.Start
	}
	return bytes.Count(x.source[:start], []byte("\n")) + 1
}
