package sexy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestExtractTestCases_OptimizerFixtures(t *testing.T) {
	content, err := os.ReadFile("../test/optimizer_test.md")
	be.Err(t, err, nil)

	testCases, err := ExtractTestCases(string(content))
	be.Err(t, err, nil)
	be.True(t, len(testCases) > 5)

	var addition, nested *TestCase
	for i := range testCases {
		tc := &testCases[i]
		switch tc.Name {
		case "addition":
			addition = tc
		case "nested arithmetic":
			nested = tc
		}
	}

	be.True(t, addition != nil)
	be.Equal(t, addition.Input, `(binary "+" 2 3)`)
	be.Equal(t, addition.InputType, InputTypeAST)
	be.Equal(t, len(addition.Assertions), 1)
	be.Equal(t, addition.Assertions[0].Type, AssertionTypeAST)
	be.Equal(t, addition.Assertions[0].ParsedSexy.String(), "5")

	be.True(t, nested != nil)
	input, err := Parse(nested.Input)
	be.Err(t, err, nil)
	be.Equal(t, input.Type, NodeList)
	be.Equal(t, len(input.Items), 4) // (binary "*" (binary "+" 2 3) 4)
	be.Equal(t, input.Items[0].Text, "binary")
	be.Equal(t, input.Items[1].Text, "*")
	be.Equal(t, input.Items[2].Type, NodeList)
	be.Equal(t, input.Items[3].Text, "4")
}

func TestExtractTestCases_AllFixtures(t *testing.T) {
	files, err := filepath.Glob("../test/*_test.md")
	be.Err(t, err, nil)
	be.True(t, len(files) > 0)

	for _, file := range files {
		content, err := os.ReadFile(file)
		be.Err(t, err, nil)

		testCases, err := ExtractTestCases(string(content))
		be.Err(t, err, nil)

		for _, tc := range testCases {
			be.True(t, tc.Name != "")
			be.True(t, tc.Input != "")
			be.True(t, tc.Line > 0)

			// Inputs are S-expressions too.
			_, err := Parse(tc.Input)
			be.Err(t, err, nil)

			be.True(t, len(tc.Assertions) >= 1)
			for _, assertion := range tc.Assertions {
				if assertion.Type == AssertionTypeAST {
					be.True(t, assertion.ParsedSexy != nil)
				} else {
					be.True(t, assertion.ParsedSexy == nil)
				}
			}
		}
	}
}
