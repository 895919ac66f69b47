// Package irexec interprets the subset of LLVM IR emitted by the kal
// compiler. It lets tests and the CLI run compiled programs without a
// native toolchain.
package irexec

import (
	"io"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// ErrStepLimit is returned when a program executes more instructions than
// the machine allows.
var ErrStepLimit = errors.New("step limit exceeded")

// ErrCallDepth is returned when calls nest deeper than the machine allows.
var ErrCallDepth = errors.New("call depth exceeded")

const (
	DefaultMaxSteps     = 10_000_000
	DefaultMaxCallDepth = 10_000
)

// Builtin implements an external function.
type Builtin func(m *Machine, args []Value) (Value, error)

// Machine executes functions of one module.
type Machine struct {
	mod          *ir.Module
	out          io.Writer
	builtins     map[string]Builtin
	maxSteps     int
	maxCallDepth int

	steps int
	depth int
}

type Option func(*Machine)

// WithOutput sets where printf and putchard write. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) { m.out = w }
}

// WithMaxSteps bounds the number of instructions a single Call may execute.
// Zero or negative means unbounded.
func WithMaxSteps(n int) Option {
	return func(m *Machine) { m.maxSteps = n }
}

// WithBuiltin registers or replaces an external function.
func WithBuiltin(name string, fn Builtin) Option {
	return func(m *Machine) { m.builtins[name] = fn }
}

func New(mod *ir.Module, opts ...Option) *Machine {
	m := &Machine{
		mod:          mod,
		out:          io.Discard,
		builtins:     defaultBuiltins(),
		maxSteps:     DefaultMaxSteps,
		maxCallDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) lookup(name string) *ir.Func {
	for _, f := range m.mod.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Call runs the named function with double arguments.
func (m *Machine) Call(name string, args ...float64) (Value, error) {
	f := m.lookup(name)
	if f == nil {
		return Value{}, errors.Errorf("no function named %q", name)
	}
	vals := make([]Value, len(args))
	for i, arg := range args {
		vals[i] = Double(arg)
	}
	m.steps = 0
	m.depth = 0
	return m.call(f, vals)
}

type frame struct {
	values map[value.Value]Value
}

func (m *Machine) call(f *ir.Func, args []Value) (Value, error) {
	if len(f.Blocks) == 0 {
		builtin, ok := m.builtins[f.Name()]
		if !ok {
			return Value{}, errors.Errorf("unresolved external function %q", f.Name())
		}
		return builtin(m, args)
	}
	if len(args) != len(f.Params) {
		return Value{}, errors.Errorf("%s: expected %d arguments, got %d", f.Name(), len(f.Params), len(args))
	}

	m.depth++
	defer func() { m.depth-- }()
	if m.depth > m.maxCallDepth {
		return Value{}, ErrCallDepth
	}

	fr := &frame{values: make(map[value.Value]Value)}
	for i, param := range f.Params {
		fr.values[param] = args[i]
	}

	block := f.Blocks[0]
	for {
		for _, inst := range block.Insts {
			m.steps++
			if m.maxSteps > 0 && m.steps > m.maxSteps {
				return Value{}, ErrStepLimit
			}
			if err := m.exec(fr, inst); err != nil {
				if errors.Is(err, ErrStepLimit) || errors.Is(err, ErrCallDepth) {
					return Value{}, err
				}
				return Value{}, errors.Wrapf(err, "in %s", f.Name())
			}
		}

		var next value.Value
		switch term := block.Term.(type) {
		case *ir.TermBr:
			next = term.Target
		case *ir.TermCondBr:
			cond, err := fr.eval(term.Cond)
			if err != nil {
				return Value{}, err
			}
			if cond.Bool {
				next = term.TargetTrue
			} else {
				next = term.TargetFalse
			}
		case *ir.TermRet:
			if term.X == nil {
				return Value{Kind: KindVoid}, nil
			}
			return fr.eval(term.X)
		case nil:
			return Value{}, errors.Errorf("%s: block %s has no terminator", f.Name(), block.Name())
		default:
			return Value{}, errors.Errorf("%s: unsupported terminator %T", f.Name(), term)
		}

		target, ok := next.(*ir.Block)
		if !ok {
			return Value{}, errors.Errorf("%s: branch target is %T, not a block", f.Name(), next)
		}
		block = target
	}
}

func (fr *frame) eval(v value.Value) (Value, error) {
	switch v := v.(type) {
	case *constant.Float:
		f, _ := v.X.Float64()
		return Double(f), nil
	case *constant.Int:
		if v.Typ.BitSize == 1 {
			return Value{Kind: KindBool, Bool: v.X.Sign() != 0}, nil
		}
		return Value{Kind: KindInt, Int: v.X.Int64()}, nil
	case *constant.Undef, *constant.ZeroInitializer:
		zero, ok := zeroOf(v.Type())
		if !ok {
			return Value{}, errors.Errorf("no zero value for %s", v.Type())
		}
		return zero, nil
	}
	val, ok := fr.values[v]
	if !ok {
		return Value{}, errors.Errorf("use of undefined value %s", v.Ident())
	}
	return val, nil
}

func (fr *frame) evalAll(vs ...value.Value) ([]Value, error) {
	out := make([]Value, len(vs))
	for i, v := range vs {
		val, err := fr.eval(v)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

func (m *Machine) exec(fr *frame, inst ir.Instruction) error {
	switch inst := inst.(type) {
	case *ir.InstAlloca:
		zero, ok := zeroOf(inst.ElemType)
		if !ok {
			return errors.Errorf("cannot allocate %s", inst.ElemType)
		}
		fr.values[inst] = Value{Kind: KindPointer, Ptr: &zero}

	case *ir.InstLoad:
		ptr, err := fr.eval(inst.Src)
		if err != nil {
			return err
		}
		if ptr.Kind != KindPointer {
			return errors.Errorf("load from non-pointer %s", inst.Src.Ident())
		}
		fr.values[inst] = *ptr.Ptr

	case *ir.InstStore:
		vals, err := fr.evalAll(inst.Src, inst.Dst)
		if err != nil {
			return err
		}
		if vals[1].Kind != KindPointer {
			return errors.Errorf("store to non-pointer %s", inst.Dst.Ident())
		}
		*vals[1].Ptr = vals[0]

	case *ir.InstFAdd:
		return fr.arith(inst, inst.X, inst.Y, func(x, y float64) float64 { return x + y })
	case *ir.InstFSub:
		return fr.arith(inst, inst.X, inst.Y, func(x, y float64) float64 { return x - y })
	case *ir.InstFMul:
		return fr.arith(inst, inst.X, inst.Y, func(x, y float64) float64 { return x * y })

	case *ir.InstFCmp:
		vals, err := fr.evalAll(inst.X, inst.Y)
		if err != nil {
			return err
		}
		result, err := compare(inst.Pred, vals[0].Double, vals[1].Double)
		if err != nil {
			return err
		}
		fr.values[inst] = Value{Kind: KindBool, Bool: result}

	case *ir.InstUIToFP:
		from, err := fr.eval(inst.From)
		if err != nil {
			return err
		}
		switch from.Kind {
		case KindBool:
			if from.Bool {
				fr.values[inst] = Double(1)
			} else {
				fr.values[inst] = Double(0)
			}
		case KindInt:
			fr.values[inst] = Double(float64(uint64(from.Int)))
		default:
			return errors.Errorf("uitofp of non-integer %s", inst.From.Ident())
		}

	case *ir.InstInsertElement:
		vals, err := fr.evalAll(inst.X, inst.Elem, inst.Index)
		if err != nil {
			return err
		}
		vec, elem, index := vals[0], vals[1], vals[2]
		if index.Int < 0 || index.Int >= Lanes {
			return errors.Errorf("insertelement index %d out of range", index.Int)
		}
		vec.Array[index.Int] = elem.Double
		fr.values[inst] = vec

	case *ir.InstExtractElement:
		vals, err := fr.evalAll(inst.X, inst.Index)
		if err != nil {
			return err
		}
		vec, index := vals[0], vals[1]
		if index.Int < 0 || index.Int >= Lanes {
			return errors.Errorf("extractelement index %d out of range", index.Int)
		}
		fr.values[inst] = Double(vec.Array[index.Int])

	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return errors.Errorf("indirect call through %T is not supported", inst.Callee)
		}
		args, err := fr.evalAll(inst.Args...)
		if err != nil {
			return err
		}
		result, err := m.call(callee, args)
		if err != nil {
			return err
		}
		fr.values[inst] = result

	default:
		return errors.Errorf("unsupported instruction %T", inst)
	}
	return nil
}

// arith applies op to two doubles, or lane-wise to two arrays.
func (fr *frame) arith(inst value.Value, x, y value.Value, op func(x, y float64) float64) error {
	vals, err := fr.evalAll(x, y)
	if err != nil {
		return err
	}
	a, b := vals[0], vals[1]
	switch {
	case a.Kind == KindDouble && b.Kind == KindDouble:
		fr.values[inst] = Double(op(a.Double, b.Double))
	case a.Kind == KindArray && b.Kind == KindArray:
		var lanes [Lanes]float64
		for i := range lanes {
			lanes[i] = op(a.Array[i], b.Array[i])
		}
		fr.values[inst] = Array(lanes)
	default:
		return errors.Errorf("mismatched operands for %s", inst.Ident())
	}
	return nil
}

func compare(pred enum.FPred, x, y float64) (bool, error) {
	unordered := math.IsNaN(x) || math.IsNaN(y)
	switch pred {
	case enum.FPredULT:
		return unordered || x < y, nil
	case enum.FPredOLT:
		return !unordered && x < y, nil
	case enum.FPredONE:
		return !unordered && x != y, nil
	case enum.FPredUNE:
		return unordered || x != y, nil
	case enum.FPredOEQ:
		return !unordered && x == y, nil
	case enum.FPredUEQ:
		return unordered || x == y, nil
	default:
		return false, errors.Errorf("unsupported fcmp predicate %s", pred)
	}
}
