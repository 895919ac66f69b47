package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/strager/kal/irexec"
	"github.com/strager/kal/lang"
	"github.com/strager/kal/sexy"
)

func TestSexyAllTests(t *testing.T) {
	testFiles, err := filepath.Glob("test/*_test.md")
	be.Err(t, err, nil)
	be.True(t, len(testFiles) > 0)

	for _, testFile := range testFiles {
		testName := strings.TrimSuffix(filepath.Base(testFile), ".md")

		t.Run(testName, func(t *testing.T) {
			content, err := os.ReadFile(testFile)
			be.Err(t, err, nil)

			testCases, err := sexy.ExtractTestCases(string(content))
			be.Err(t, err, nil)

			for _, tc := range testCases {
				t.Run(tc.Name, func(t *testing.T) {
					runSexyTestCase(t, tc)
				})
			}
		})
	}
}

func runSexyTestCase(t *testing.T, tc sexy.TestCase) {
	input := []byte(tc.Input)
	nodes, parseErrs := lang.ParseAll(input)
	cg := lang.NewCodegen()
	forms, errs := lang.CompileAll(input, cg)

	expectErrors := false
	for _, assertion := range tc.Assertions {
		if assertion.Type == sexy.AssertionTypeCompileError {
			expectErrors = true
		}
	}
	if !expectErrors && errs.HasErrors() {
		t.Fatalf("line %d: unexpected compile errors:\n%s", tc.Line, errs.String())
	}

	var out bytes.Buffer
	var values []string
	var runErr error
	executed := false
	execute := func() {
		if executed {
			return
		}
		executed = true
		results, err := executeProgram(&program{module: cg.Module(), forms: forms}, &out, irexec.DefaultMaxSteps)
		runErr = err
		for _, v := range results {
			values = append(values, v.String())
		}
	}

	for _, assertion := range tc.Assertions {
		switch assertion.Type {
		case sexy.AssertionTypeAST:
			be.Equal(t, parseErrs.String(), "")
			actuals := nodes
			if tc.InputType == sexy.InputTypeKalExpr {
				be.Equal(t, len(nodes), 1)
				be.True(t, nodes[0].IsAnonymous())
				actuals = nodes[0].Body()
			}
			be.Equal(t, len(assertion.ParsedSexy), len(actuals))
			for i, pattern := range assertion.ParsedSexy {
				actual, err := sexy.Parse(lang.ToSExpr(actuals[i]))
				be.Err(t, err, nil)
				if err := sexy.Match(pattern, actual); err != nil {
					t.Errorf("line %d: %v\n  pattern: %s\n  actual:  %s", tc.Line, err, pattern, actual)
				}
			}

		case sexy.AssertionTypeCompileError:
			be.True(t, errs.HasErrors())
			for _, want := range assertion.Lines() {
				assertContains(t, errs.String(), want)
			}

		case sexy.AssertionTypeValues:
			execute()
			be.Err(t, runErr, nil)
			want := assertion.Lines()
			if want == nil {
				want = []string{}
			}
			if values == nil {
				values = []string{}
			}
			be.Equal(t, values, want)

		case sexy.AssertionTypeExecute:
			execute()
			be.Err(t, runErr, nil)
			be.Equal(t, strings.TrimRight(out.String(), "\n"), assertion.Content)

		case sexy.AssertionTypeIR:
			text := cg.Module().String()
			for _, want := range assertion.Lines() {
				assertContains(t, text, want)
			}
		}
	}
}

func assertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("expected to find %q in:\n%s", needle, haystack)
	}
}
