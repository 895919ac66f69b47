package lang

import (
	"bytes"
	"errors"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/nalgeon/be"
	"github.com/strager/kal/irexec"
)

func compile(t *testing.T, src string) (*Codegen, []*Form) {
	t.Helper()
	cg := NewCodegen()
	forms, errs := CompileAll([]byte(src), cg)
	be.Equal(t, errs.String(), "")
	return cg, forms
}

// run compiles src, evaluates every top-level expression and returns the
// printed output and the expression values.
func run(t *testing.T, src string) (string, []string) {
	t.Helper()
	cg, forms := compile(t, src)
	var out bytes.Buffer
	m := irexec.New(cg.Module(), irexec.WithOutput(&out))
	var values []string
	for _, form := range forms {
		if form.Kind != FormExpression {
			continue
		}
		v, err := m.Call(form.Name())
		be.Err(t, err, nil)
		values = append(values, v.String())
	}
	return out.String(), values
}

func findFunc(cg *Codegen, name string) *ir.Func {
	for _, f := range cg.Module().Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func TestEvaluateExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"10 - 4 - 3", "3"},
		{"4 < 3", "0"},
		{"3 < 4", "1"},
		{"1 < 2 + 3", "1"},
		{"0.1 + 0.2 < 0.3", "0"},
		{"2 * 2 * 2 * 2 - 1", "15"},
	}

	for _, test := range tests {
		_, values := run(t, test.input)
		be.Equal(t, values, []string{test.expected})
	}
}

func TestComparisonLowersToFloatCompare(t *testing.T) {
	cg, forms := compile(t, "3 < 4")
	f := forms[0].Func
	insts := f.Blocks[0].Insts
	be.Equal(t, len(insts), 2)

	cmp, ok := insts[0].(*ir.InstFCmp)
	be.True(t, ok)
	be.Equal(t, cmp.Pred, enum.FPredULT)
	be.Equal(t, cmp.Name(), "cmptmp")

	conv, ok := insts[1].(*ir.InstUIToFP)
	be.True(t, ok)
	be.Equal(t, conv.Name(), "booltmp")
	be.True(t, conv.Type().Equal(types.Double))
	be.True(t, findFunc(cg, AnonFunctionName) == f)
}

func TestAllocasAtEntryBlockHead(t *testing.T) {
	cg, _ := compile(t, `
def f(x) {
  double y = x + 1
  for i = 0, i < 2 in y * i
  array v = [x, y, x, y]
  for j = 0, j < 1 in v[0] = j
  double z = v[0]
  z
}`)
	f := findFunc(cg, "f")
	be.True(t, f != nil)
	be.True(t, len(f.Blocks) > 1)

	// x, y, i, v, j, z
	const slots = 6
	entry := f.Blocks[0].Insts
	for i := 0; i < slots; i++ {
		_, ok := entry[i].(*ir.InstAlloca)
		be.True(t, ok)
	}
	count := 0
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			if _, ok := inst.(*ir.InstAlloca); ok {
				count++
			}
		}
	}
	be.Equal(t, count, slots)
}

func TestLocalNamesAreUnique(t *testing.T) {
	cg, _ := compile(t, `
def f(x) {
  for x = x, x < 3 in x * x
  for x = 0, x < 1 in x
  x + x
}`)
	f := findFunc(cg, "f")
	seen := map[string]bool{}
	for _, param := range f.Params {
		seen[param.Name()] = true
	}
	for _, block := range f.Blocks {
		be.True(t, !seen[block.Name()])
		seen[block.Name()] = true
		for _, inst := range block.Insts {
			named, ok := inst.(interface{ Name() string })
			if !ok || named.Name() == "" {
				continue
			}
			be.True(t, !seen[named.Name()])
			seen[named.Name()] = true
		}
	}
	be.True(t, seen["loop"])
	be.True(t, seen["loop.1"])
	be.True(t, seen["afterloop"])
	be.True(t, seen["afterloop.1"])
}

func TestFunctionRegistry(t *testing.T) {
	cg, forms := compile(t, "extern sin(x)\ndef sq(x) x * x\nsq(3)")
	be.Equal(t, len(forms), 3)
	be.Equal(t, forms[0].Kind, FormExtern)
	be.Equal(t, forms[1].Kind, FormDefinition)
	be.Equal(t, forms[2].Kind, FormExpression)

	sin, ok := cg.Registry().Lookup("sin")
	be.True(t, ok)
	be.True(t, !sin.Defined)
	be.Equal(t, len(sin.Func.Blocks), 0)

	sq, ok := cg.Registry().Lookup("sq")
	be.True(t, ok)
	be.True(t, sq.Defined)
	be.Equal(t, sq.Params, []string{"x"})
	be.Equal(t, sq.ReturnType, TypeDouble)

	anon, ok := cg.Registry().Lookup(AnonFunctionName)
	be.True(t, ok)
	be.True(t, anon.Defined)
	be.Equal(t, cg.Registry().Len(), 3)
}

func TestEnvironmentEmptyBetweenFunctions(t *testing.T) {
	cg := NewCodegen()
	inputs := []string{
		"def f(a, b) { double c = a; array d; c }",
		"for i = 0, i < 1 in i",
		"def g(x) y",
	}
	for _, input := range inputs {
		CompileAll([]byte(input), cg)
		be.Equal(t, cg.Env().Len(), 0)
	}
}

func TestRedefinitionRejected(t *testing.T) {
	cg := NewCodegen()
	forms, errs := CompileAll([]byte("def f(x) x\ndef f(x) x + 1"), cg)
	be.Equal(t, len(forms), 1)
	be.Equal(t, len(errs), 1)

	var le *LoweringError
	be.True(t, errors.As(errs[0], &le))
	be.Equal(t, le.Kind, Redefinition)
	be.Equal(t, le.Name, "f")

	count := 0
	for _, f := range cg.Module().Funcs {
		if f.Name() == "f" {
			count++
		}
	}
	be.Equal(t, count, 1)

	// The surviving definition is the first one.
	m := irexec.New(cg.Module())
	v, err := m.Call("f", 5)
	be.Err(t, err, nil)
	be.Equal(t, v.Double, 5.0)
}

func TestFailedFunctionIsRemoved(t *testing.T) {
	cg := NewCodegen()
	_, errs := CompileAll([]byte("def f(x) x + nope"), cg)
	be.Equal(t, len(errs), 1)

	_, ok := cg.Registry().Lookup("f")
	be.True(t, !ok)
	be.True(t, findFunc(cg, "f") == nil)
	be.Equal(t, len(cg.Module().Funcs), 0)

	// The name is free again.
	_, errs = CompileAll([]byte("def f(x) x"), cg)
	be.Equal(t, errs.String(), "")
}

func TestFailedDefinitionRevertsToDeclaration(t *testing.T) {
	cg := NewCodegen()
	_, errs := CompileAll([]byte("extern h(x)\ndef h(x) nope"), cg)
	be.Equal(t, len(errs), 1)

	entry, ok := cg.Registry().Lookup("h")
	be.True(t, ok)
	be.True(t, !entry.Defined)
	be.Equal(t, len(entry.Func.Blocks), 0)
	be.True(t, findFunc(cg, "h") == entry.Func)

	_, errs = CompileAll([]byte("def h(x) x * 2"), cg)
	be.Equal(t, errs.String(), "")
	be.True(t, entry.Defined)
}

func TestLoweringErrorKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  LoweringErrorKind
		name  string
	}{
		{"x", UnknownIdentifier, "x"},
		{"f(1)", UnknownIdentifier, "f"},
		{"def g(a) a\ng()", ArityMismatch, "g"},
		{"def g(a) a\ndef g(a) a", Redefinition, "g"},
		{"extern g(a)\nextern g(a, b)", Redefinition, "g"},
		{"extern g(a)\ndef array g(a) [a, a, a, a]", Redefinition, "g"},
		{"def printf(a) a", Redefinition, "printf"},
		{"def __anon_expr() 100", Redefinition, "__anon_expr"},
		{"1\nextern __anon_expr()", Redefinition, "__anon_expr"},
		{"[1, 2, 3, 4] + 1", TypeMismatch, "+"},
		{"def g() { array a; a[4] }", IndexOutOfRange, "a"},
		{"def g() { double a; a[0] }", TypeMismatch, "a"},
		{"def g() { a[0] = 1 }", UnknownIdentifier, "a"},
	}

	for _, test := range tests {
		_, errs := CompileAll([]byte(test.input), NewCodegen())
		be.True(t, errs.HasErrors())

		var le *LoweringError
		be.True(t, errors.As(errs[len(errs)-1], &le))
		be.Equal(t, le.Kind, test.kind)
		be.Equal(t, le.Name, test.name)
	}
}

func TestInvalidOperator(t *testing.T) {
	node := &ASTNode{
		Kind:     NodeBinary,
		Op:       "/",
		Children: []*ASTNode{{Kind: NodeNumber, Number: 1}, {Kind: NodeNumber, Number: 2}},
	}
	_, err := NewCodegen().LowerTopLevel(node)

	var le *LoweringError
	be.True(t, errors.As(err, &le))
	be.Equal(t, le.Kind, InvalidOperator)
	be.Equal(t, le.Name, "/")
}

func TestAnonymousFunctionNames(t *testing.T) {
	cg, forms := compile(t, "1; 2; 3")
	be.Equal(t, len(forms), 3)
	be.Equal(t, forms[0].Name(), "__anon_expr")
	be.Equal(t, forms[1].Name(), "__anon_expr.1")
	be.Equal(t, forms[2].Name(), "__anon_expr.2")

	cg.Reset()
	forms, errs := CompileAll([]byte("4"), cg)
	be.Equal(t, errs.String(), "")
	be.Equal(t, forms[0].Name(), "__anon_expr")
	be.Equal(t, len(cg.Module().Funcs), 1)
}

func TestAnonymousNameIsReserved(t *testing.T) {
	cg := NewCodegen()
	forms, errs := CompileAll([]byte("def __anon_expr() 100\n2"), cg)
	be.Equal(t, len(errs), 1)
	be.Err(t, errs[0], "name is reserved for top-level expressions")
	be.Equal(t, len(forms), 1)
	be.Equal(t, forms[0].Kind, FormExpression)

	count := 0
	for _, f := range cg.Module().Funcs {
		if f.Name() == AnonFunctionName {
			count++
		}
	}
	be.Equal(t, count, 1)

	entry, ok := cg.Registry().Lookup(AnonFunctionName)
	be.True(t, ok)
	be.True(t, entry.Func == forms[0].Func)

	m := irexec.New(cg.Module())
	v, err := m.Call(forms[0].Name())
	be.Err(t, err, nil)
	be.Equal(t, v.Double, 2.0)
}

func TestPrintfDeclaredOnce(t *testing.T) {
	cg, _ := compile(t, "print(1)\ndef f(x) { print(x); print(x, x) }\nprint([1, 2, 3, 4])")
	count := 0
	for _, f := range cg.Module().Funcs {
		if f.Name() == PrintfName {
			count++
			be.True(t, f.Sig.Variadic)
			be.Equal(t, len(f.Blocks), 0)
		}
	}
	be.Equal(t, count, 1)
}

func TestPrint(t *testing.T) {
	out, values := run(t, "print(1, 2.5)\nprint([1, 2, 3, 4], 0)\nprint()")
	be.Equal(t, out, "1 2.5\n[1 2 3 4] 0\n\n")
	be.Equal(t, values, []string{"6", "12", "1"})
}

func TestTopLevelIsIdempotent(t *testing.T) {
	src := "def f(a) { array v = [a, a, a, a]; v[1] = 2; v[1] * a }\nfor i = 0, i < 2 in print(f(i))\nf(3)"
	cg1, _ := compile(t, src)
	cg2, _ := compile(t, src)
	be.Equal(t, cg2.Module().String(), cg1.Module().String())
}
