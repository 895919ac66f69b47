package sexy

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func fence(lang, body string) string {
	return "```" + lang + "\n" + body + "\n```\n"
}

func TestExtractTestCases_BasicTest(t *testing.T) {
	markdown := "# Binary expressions\n\n## Test: +\n" +
		fence("kal-expr", "1 + 2") +
		fence("ast", `(def (proto "" () double) (binary "+" (number 1) (number 2)))`) +
		"\n## Test: -\n" +
		fence("kal-expr", "1 - 2") +
		fence("values", "-1")

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 2)

	tc1 := testCases[0]
	be.Equal(t, tc1.Name, "+")
	be.Equal(t, tc1.Input, "1 + 2")
	be.Equal(t, tc1.InputType, InputTypeKalExpr)
	be.Equal(t, len(tc1.Assertions), 1)
	be.Equal(t, tc1.Assertions[0].Type, AssertionTypeAST)
	be.Equal(t, len(tc1.Assertions[0].ParsedSexy), 1)
	be.Equal(t, tc1.Assertions[0].ParsedSexy[0].String(), `(def (proto "" () double) (binary "+" (number 1) (number 2)))`)

	tc2 := testCases[1]
	be.Equal(t, tc2.Name, "-")
	be.Equal(t, tc2.Assertions[0].Type, AssertionTypeValues)
	be.Equal(t, tc2.Assertions[0].Lines(), []string{"-1"})
	be.True(t, tc2.Assertions[0].ParsedSexy == nil)
	be.True(t, tc2.Line > tc1.Line)
}

func TestExtractTestCases_AllAssertionTypes(t *testing.T) {
	markdown := "## Test: everything\n" +
		fence("kal-program", "def f(x) x\nf(2)") +
		fence("ast", "(def ...)\n(def ...)") +
		fence("execute", "") +
		fence("values", "2") +
		fence("ir", "define double @f(double %x)") +
		fence("compile-error", "")

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 1)

	tc := testCases[0]
	be.Equal(t, tc.InputType, InputTypeKalProgram)
	be.Equal(t, tc.Input, "def f(x) x\nf(2)")
	be.Equal(t, len(tc.Assertions), 5)
	be.Equal(t, tc.Assertions[0].Type, AssertionTypeAST)
	be.Equal(t, len(tc.Assertions[0].ParsedSexy), 2)
	be.Equal(t, tc.Assertions[1].Type, AssertionTypeExecute)
	be.Equal(t, tc.Assertions[1].Content, "")
	be.Equal(t, tc.Assertions[2].Type, AssertionTypeValues)
	be.Equal(t, tc.Assertions[3].Type, AssertionTypeIR)
	be.Equal(t, tc.Assertions[4].Type, AssertionTypeCompileError)
}

func TestExtractTestCases_EmptyFile(t *testing.T) {
	testCases, err := ExtractTestCases("")
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 0)
}

func TestExtractTestCases_PlainCodeBlocksAllowed(t *testing.T) {
	markdown := "# Notes\n\n" + fence("", "anything goes") + "\n## Regular heading\n"

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 0)
}

func TestExtractTestCases_Errors(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		err      string
	}{
		{
			name:     "unknown fence outside test",
			markdown: "# Doc\n" + fence("go", "func main() {}"),
			err:      "unknown fence language 'go' found outside of test case",
		},
		{
			name:     "input fence outside test",
			markdown: "# Doc\n" + fence("kal-expr", "1"),
			err:      "kal-expr fence found outside of test case",
		},
		{
			name:     "assertion fence outside test",
			markdown: "# Doc\n" + fence("values", "1"),
			err:      "values fence found outside of test case",
		},
		{
			name:     "unknown fence in test",
			markdown: "## Test: t\n" + fence("kal-expr", "1") + fence("c-expr", "1"),
			err:      "unknown fence language 'c-expr' in test 't'",
		},
		{
			name:     "multiple inputs",
			markdown: "## Test: t\n" + fence("kal-expr", "1") + fence("kal-program", "2") + fence("values", "1"),
			err:      "multiple input fences found in test 't'",
		},
		{
			name:     "no input",
			markdown: "## Test: t\n" + fence("values", "1"),
			err:      "test 't' has no input fence",
		},
		{
			name:     "no assertions",
			markdown: "## Test: t\n" + fence("kal-expr", "1") + "\n## Test: u\n" + fence("kal-expr", "2") + fence("values", "2"),
			err:      "test 't' has no assertion fences",
		},
		{
			name:     "bad sexy",
			markdown: "## Test: t\n" + fence("kal-expr", "1") + fence("ast", "(unclosed list"),
			err:      "failed to parse Sexy assertion in test 't'",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ExtractTestCases(test.markdown)
			be.Err(t, err, test.err)
		})
	}
}

func TestExtractTestCases_LineNumbers(t *testing.T) {
	markdown := "# Title\n\n## Test: first\n" + fence("kal-expr", "1") + fence("values", "1")

	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	// The input's first line sits below the title, a blank line, the
	// heading and the opening fence.
	be.Equal(t, testCases[0].Line, 5)

	_, err = ExtractTestCases(markdown + "\n" + fence("ast", "(oops"))
	be.True(t, strings.Contains(err.Error(), "line 12"))
}

func TestAssertionLines(t *testing.T) {
	a := Assertion{Content: "1\n\n  2  \n[1 2 3 4]"}
	be.Equal(t, a.Lines(), []string{"1", "2", "[1 2 3 4]"})
}
