package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// AnonFunctionName is the base name given to functions wrapping bare
// top-level expressions. Later ones get a ".N" suffix.
const AnonFunctionName = "__anon_expr"

// PrintfName is the external variadic function print lowers to.
const PrintfName = "printf"

var arrayIRType = types.NewVector(ArrayLanes, types.Double)

func irType(t ValueType) types.Type {
	if t == TypeArray {
		return arrayIRType
	}
	return types.Double
}

// valueTypeOf recovers the kal type of a lowered value.
func valueTypeOf(v value.Value) ValueType {
	if _, ok := v.Type().(*types.VectorType); ok {
		return TypeArray
	}
	return TypeDouble
}

func zeroValue(t ValueType) value.Value {
	if t == TypeArray {
		return constant.NewZeroInitializer(arrayIRType)
	}
	return constant.NewFloat(types.Double, 0)
}

// Codegen lowers ASTs into an LLVM IR module. It owns the per-compilation
// state: the module, the function registry and the symbol environment of the
// function currently being lowered.
type Codegen struct {
	module   *ir.Module
	registry *Registry
	env      *Env
	printf   *ir.Func

	fn         *ir.Func
	entry      *ir.Block
	block      *ir.Block // insertion point
	allocas    int       // number of allocas at the head of entry
	localNames map[string]int
	anonCount  int
}

// NewCodegen returns a code generator with an empty module.
func NewCodegen() *Codegen {
	c := &Codegen{}
	c.Reset()
	return c
}

// Reset discards everything lowered so far and starts a new compilation
// unit.
func (c *Codegen) Reset() {
	c.module = ir.NewModule()
	c.registry = NewRegistry()
	c.env = NewEnv()
	c.printf = nil
	c.anonCount = 0
	c.endFunction()
}

// Module returns the module every lowered function is emitted into.
func (c *Codegen) Module() *ir.Module {
	return c.module
}

// Registry returns the declared and defined functions.
func (c *Codegen) Registry() *Registry {
	return c.registry
}

// Env returns the variable bindings of the function being lowered.
func (c *Codegen) Env() *Env {
	return c.env
}

// LowerTopLevel lowers one top-level form: an extern prototype or a
// function definition (anonymous or named).
func (c *Codegen) LowerTopLevel(node *ASTNode) (*ir.Func, error) {
	switch node.Kind {
	case NodePrototype:
		entry, err := c.LowerPrototype(node)
		if err != nil {
			return nil, err
		}
		return entry.Func, nil
	case NodeFunction:
		return c.LowerFunction(node)
	default:
		proto := &ASTNode{Kind: NodePrototype, ParameterNames: []string{}}
		return c.LowerFunction(&ASTNode{Kind: NodeFunction, Children: []*ASTNode{proto, node}})
	}
}

// LowerPrototype declares a function, or returns the existing declaration if
// one with the same signature is already registered.
func (c *Codegen) LowerPrototype(proto *ASTNode) (*FunctionEntry, error) {
	name := proto.String
	if name == PrintfName {
		return nil, loweringErrorf(Redefinition, name, "name is reserved for print")
	}
	if isAnonName(name) {
		return nil, loweringErrorf(Redefinition, name, "name is reserved for top-level expressions")
	}
	if entry, ok := c.registry.Lookup(name); ok {
		if !entry.sameSignature(proto) {
			return nil, loweringErrorf(Redefinition, name,
				"conflicting declaration: previously %d parameters returning %s, now %d returning %s",
				len(entry.Params), entry.ReturnType, len(proto.ParameterNames), proto.Type)
		}
		return entry, nil
	}
	return c.declare(name, proto.ParameterNames, proto.Type), nil
}

func (c *Codegen) declare(name string, paramNames []string, returnType ValueType) *FunctionEntry {
	params := make([]*ir.Param, len(paramNames))
	for i, paramName := range paramNames {
		params[i] = ir.NewParam(paramName, types.Double)
	}
	entry := &FunctionEntry{
		Name:       name,
		Params:     paramNames,
		ReturnType: returnType,
		Func:       c.module.NewFunc(name, irType(returnType), params...),
	}
	c.registry.Add(entry)
	return entry
}

// isAnonName reports whether name is one nextAnonName can produce.
func isAnonName(name string) bool {
	return name == AnonFunctionName || strings.HasPrefix(name, AnonFunctionName+".")
}

func (c *Codegen) nextAnonName() string {
	name := AnonFunctionName
	if c.anonCount > 0 {
		name += "." + strconv.Itoa(c.anonCount)
	}
	c.anonCount++
	return name
}

// LowerFunction emits a function body. If anything in the body fails the
// function is removed again (or reverted to a bare declaration if it was
// declared with extern first), so only fully lowered functions are ever
// visible.
func (c *Codegen) LowerFunction(node *ASTNode) (*ir.Func, error) {
	proto := node.Prototype()
	anonymous := proto.String == ""

	var entry *FunctionEntry
	wasDeclared := false
	if anonymous {
		entry = c.declare(c.nextAnonName(), proto.ParameterNames, TypeDouble)
	} else {
		if existing, ok := c.registry.Lookup(proto.String); ok {
			if existing.Defined {
				return nil, loweringErrorf(Redefinition, proto.String, "function cannot be redefined")
			}
			wasDeclared = true
		}
		var err error
		entry, err = c.LowerPrototype(proto)
		if err != nil {
			return nil, err
		}
	}

	c.beginFunction(entry.Func)
	defer c.endFunction()

	for i, param := range entry.Func.Params {
		name := proto.ParameterNames[i]
		slot := c.createEntryBlockAlloca(TypeDouble, name)
		c.block.NewStore(param, slot)
		c.env.Bind(name, Binding{Slot: slot, Type: TypeDouble})
	}

	ret, err := c.lowerBody(node.Body(), entry.ReturnType)
	if err == nil {
		if anonymous {
			entry.ReturnType = valueTypeOf(ret)
			entry.Func.Sig.RetType = irType(entry.ReturnType)
		} else if got := valueTypeOf(ret); got != entry.ReturnType {
			err = loweringErrorf(TypeMismatch, proto.String, "body yields %s but function returns %s", got, entry.ReturnType)
		}
	}
	if err != nil {
		c.discardFunction(entry, wasDeclared)
		return nil, err
	}

	c.block.NewRet(ret)
	entry.Defined = true
	return entry.Func, nil
}

// lowerBody lowers each statement in order and yields the last value. An
// empty body yields the zero value of the return type.
func (c *Codegen) lowerBody(body []*ASTNode, returnType ValueType) (value.Value, error) {
	if len(body) == 0 {
		return zeroValue(returnType), nil
	}
	var last value.Value
	for _, stmt := range body {
		v, err := c.lower(stmt)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func (c *Codegen) discardFunction(entry *FunctionEntry, wasDeclared bool) {
	if wasDeclared {
		entry.Func.Blocks = nil
		return
	}
	c.registry.Remove(entry.Name)
	funcs := c.module.Funcs[:0]
	for _, f := range c.module.Funcs {
		if f != entry.Func {
			funcs = append(funcs, f)
		}
	}
	c.module.Funcs = funcs
}

func (c *Codegen) beginFunction(f *ir.Func) {
	c.fn = f
	c.localNames = make(map[string]int)
	for _, param := range f.Params {
		c.localNames[param.Name()] = 1
	}
	c.entry = c.newBlock("entry")
	c.block = c.entry
	c.allocas = 0
	c.env.Clear()
}

func (c *Codegen) endFunction() {
	c.fn = nil
	c.entry = nil
	c.block = nil
	c.allocas = 0
	c.localNames = nil
	if c.env != nil {
		c.env.Clear()
	}
}

// localName returns base, or base.N if base is already taken in the current
// function. kal identifiers never contain '.', so the result is unique.
func (c *Codegen) localName(base string) string {
	n := c.localNames[base]
	c.localNames[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "." + strconv.Itoa(n)
}

func (c *Codegen) newBlock(name string) *ir.Block {
	return c.fn.NewBlock(c.localName(name))
}

// createEntryBlockAlloca creates a stack slot at the head of the entry
// block, after any slots created before it.
func (c *Codegen) createEntryBlockAlloca(t ValueType, name string) *ir.InstAlloca {
	slot := ir.NewAlloca(irType(t))
	slot.SetName(c.localName(name))

	insts := append(c.entry.Insts, nil)
	copy(insts[c.allocas+1:], insts[c.allocas:])
	insts[c.allocas] = slot
	c.entry.Insts = insts
	c.allocas++
	return slot
}

func (c *Codegen) lower(node *ASTNode) (value.Value, error) {
	switch node.Kind {
	case NodeNumber:
		return constant.NewFloat(types.Double, node.Number), nil
	case NodeIdent:
		return c.lowerVariable(node)
	case NodeVar:
		return c.lowerVarDecl(node)
	case NodeArray:
		return c.lowerArrayLiteral(node)
	case NodeIndex:
		return c.lowerIndex(node)
	case NodeIndexSet:
		return c.lowerIndexSet(node)
	case NodeBinary:
		return c.lowerBinary(node)
	case NodeCall:
		return c.lowerCall(node)
	case NodeFor:
		return c.lowerFor(node)
	case NodePrint:
		return c.lowerPrint(node)
	default:
		return nil, fmt.Errorf("cannot lower %s as an expression", node.Kind)
	}
}

func (c *Codegen) lowerVariable(node *ASTNode) (value.Value, error) {
	b, ok := c.env.Lookup(node.String)
	if !ok {
		return nil, loweringErrorf(UnknownIdentifier, node.String, "unknown variable name")
	}
	load := c.block.NewLoad(irType(b.Type), b.Slot)
	load.SetName(c.localName(node.String))
	return load, nil
}

func (c *Codegen) lowerVarDecl(node *ASTNode) (value.Value, error) {
	var init value.Value
	if len(node.Children) > 0 {
		v, err := c.lower(node.Children[0])
		if err != nil {
			return nil, err
		}
		if got := valueTypeOf(v); got != node.Type {
			return nil, loweringErrorf(TypeMismatch, node.String, "cannot initialize %s variable with %s value", node.Type, got)
		}
		init = v
	} else {
		init = zeroValue(node.Type)
	}

	slot := c.createEntryBlockAlloca(node.Type, node.String)
	c.block.NewStore(init, slot)
	c.env.Bind(node.String, Binding{Slot: slot, Type: node.Type})
	return init, nil
}

func (c *Codegen) lowerBinary(node *ASTNode) (value.Value, error) {
	l, err := c.lower(node.Children[0])
	if err != nil {
		return nil, err
	}
	r, err := c.lower(node.Children[1])
	if err != nil {
		return nil, err
	}
	lt, rt := valueTypeOf(l), valueTypeOf(r)

	switch node.Op {
	case "+", "-", "*":
		if lt != rt {
			return nil, loweringErrorf(TypeMismatch, node.Op, "operands must have the same type, got %s and %s", lt, rt)
		}
	case "<":
		if lt != TypeDouble || rt != TypeDouble {
			return nil, loweringErrorf(TypeMismatch, node.Op, "operands must be doubles, got %s and %s", lt, rt)
		}
	}

	switch node.Op {
	case "+":
		inst := c.block.NewFAdd(l, r)
		inst.SetName(c.localName("addtmp"))
		return inst, nil
	case "-":
		inst := c.block.NewFSub(l, r)
		inst.SetName(c.localName("subtmp"))
		return inst, nil
	case "*":
		inst := c.block.NewFMul(l, r)
		inst.SetName(c.localName("multmp"))
		return inst, nil
	case "<":
		cmp := c.block.NewFCmp(enum.FPredULT, l, r)
		cmp.SetName(c.localName("cmptmp"))
		// Booleans are doubles: 1.0 for true, 0.0 for false.
		inst := c.block.NewUIToFP(cmp, types.Double)
		inst.SetName(c.localName("booltmp"))
		return inst, nil
	default:
		return nil, loweringErrorf(InvalidOperator, node.Op, "operator must be one of + - * <")
	}
}

func (c *Codegen) lowerCall(node *ASTNode) (value.Value, error) {
	entry, ok := c.registry.Lookup(node.String)
	if !ok {
		return nil, loweringErrorf(UnknownIdentifier, node.String, "unknown function referenced")
	}
	if len(entry.Params) != len(node.Children) {
		return nil, loweringErrorf(ArityMismatch, node.String, "expected %d arguments, got %d", len(entry.Params), len(node.Children))
	}

	args := make([]value.Value, 0, len(node.Children))
	for i, arg := range node.Children {
		v, err := c.lower(arg)
		if err != nil {
			return nil, err
		}
		if valueTypeOf(v) != TypeDouble {
			return nil, loweringErrorf(TypeMismatch, node.String, "argument %d must be a double", i+1)
		}
		args = append(args, v)
	}

	call := c.block.NewCall(entry.Func, args...)
	call.SetName(c.localName("calltmp"))
	return call, nil
}

// printfFunc returns the external variadic printf declaration, adding it to
// the module on first use.
func (c *Codegen) printfFunc() *ir.Func {
	if c.printf == nil {
		c.printf = c.module.NewFunc(PrintfName, types.Double)
		c.printf.Sig.Variadic = true
	}
	return c.printf
}

func (c *Codegen) lowerPrint(node *ASTNode) (value.Value, error) {
	args := make([]value.Value, 0, len(node.Children))
	for _, arg := range node.Children {
		v, err := c.lower(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	call := c.block.NewCall(c.printfFunc(), args...)
	call.SetName(c.localName("printfcall"))
	return call, nil
}
