package irexec

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

func defaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		"printf":   printfBuiltin,
		"putchard": putchardBuiltin,
		"sin":      unaryMath("sin", math.Sin),
		"cos":      unaryMath("cos", math.Cos),
		"sqrt":     unaryMath("sqrt", math.Sqrt),
		"fabs":     unaryMath("fabs", math.Abs),
		"exp":      unaryMath("exp", math.Exp),
		"log":      unaryMath("log", math.Log),
		"floor":    unaryMath("floor", math.Floor),
		"pow":      powBuiltin,
	}
}

// printfBuiltin prints its arguments separated by spaces and returns the
// number of bytes written. kal's print passes values without a format
// string.
func printfBuiltin(m *Machine, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	n, err := fmt.Fprintln(m.out, strings.Join(parts, " "))
	if err != nil {
		return Value{}, errors.Wrap(err, "printf")
	}
	return Double(float64(n)), nil
}

// putchardBuiltin writes one byte and returns 0.
func putchardBuiltin(m *Machine, args []Value) (Value, error) {
	if err := expectDoubles("putchard", args, 1); err != nil {
		return Value{}, err
	}
	if _, err := m.out.Write([]byte{byte(args[0].Double)}); err != nil {
		return Value{}, errors.Wrap(err, "putchard")
	}
	return Double(0), nil
}

func unaryMath(name string, fn func(float64) float64) Builtin {
	return func(m *Machine, args []Value) (Value, error) {
		if err := expectDoubles(name, args, 1); err != nil {
			return Value{}, err
		}
		return Double(fn(args[0].Double)), nil
	}
}

func powBuiltin(m *Machine, args []Value) (Value, error) {
	if err := expectDoubles("pow", args, 2); err != nil {
		return Value{}, err
	}
	return Double(math.Pow(args[0].Double, args[1].Double)), nil
}

func expectDoubles(name string, args []Value, n int) error {
	if len(args) != n {
		return errors.Errorf("%s: expected %d arguments, got %d", name, n, len(args))
	}
	for i, arg := range args {
		if arg.Kind != KindDouble {
			return errors.Errorf("%s: argument %d is not a double", name, i+1)
		}
	}
	return nil
}
