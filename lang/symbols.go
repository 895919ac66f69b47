package lang

import "github.com/llir/llvm/ir"

// Binding is the storage location of a variable: a stack slot in the entry
// block of the function being lowered.
type Binding struct {
	Slot *ir.InstAlloca
	Type ValueType
}

// Env maps variable names to their stack slots for the function currently
// being lowered. At most one binding per name is visible.
type Env struct {
	bindings map[string]Binding
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{bindings: make(map[string]Binding)}
}

// Lookup returns the visible binding for name.
func (e *Env) Lookup(name string) (Binding, bool) {
	b, ok := e.bindings[name]
	return b, ok
}

// Bind makes b the visible binding for name and returns what it replaced so
// the caller can Restore it.
func (e *Env) Bind(name string, b Binding) (prev Binding, hadPrev bool) {
	prev, hadPrev = e.bindings[name]
	e.bindings[name] = b
	return prev, hadPrev
}

// Restore undoes a Bind: it reinstates prev, or removes name entirely if
// there was no previous binding.
func (e *Env) Restore(name string, prev Binding, hadPrev bool) {
	if hadPrev {
		e.bindings[name] = prev
	} else {
		delete(e.bindings, name)
	}
}

// Clear drops every binding. Called when a new function body starts.
func (e *Env) Clear() {
	clear(e.bindings)
}

// Len returns the number of visible bindings.
func (e *Env) Len() int {
	return len(e.bindings)
}

// FunctionEntry is what the registry knows about one function.
type FunctionEntry struct {
	Name       string
	Params     []string
	ReturnType ValueType
	Func       *ir.Func
	Defined    bool // a body has been lowered successfully
}

// Registry maps function names to their prototypes and IR functions.
type Registry struct {
	funcs map[string]*FunctionEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*FunctionEntry)}
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*FunctionEntry, bool) {
	entry, ok := r.funcs[name]
	return entry, ok
}

// Add registers entry under its name, replacing any previous entry.
func (r *Registry) Add(entry *FunctionEntry) {
	r.funcs[entry.Name] = entry
}

// Remove forgets the entry registered under name.
func (r *Registry) Remove(name string) {
	delete(r.funcs, name)
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	return len(r.funcs)
}

// sameSignature reports whether proto declares the same arity and return
// type as the registered entry. Parameter names may differ.
func (entry *FunctionEntry) sameSignature(proto *ASTNode) bool {
	return len(entry.Params) == len(proto.ParameterNames) && entry.ReturnType == proto.Type
}
