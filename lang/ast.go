package lang

// NodeKind represents different types of AST nodes
type NodeKind string

const (
	NodeNumber    NodeKind = "NodeNumber"
	NodeIdent     NodeKind = "NodeIdent"
	NodeVar       NodeKind = "NodeVar"
	NodeArray     NodeKind = "NodeArray"
	NodeIndex     NodeKind = "NodeIndex"
	NodeIndexSet  NodeKind = "NodeIndexSet"
	NodeBinary    NodeKind = "NodeBinary"
	NodeCall      NodeKind = "NodeCall"
	NodeFor       NodeKind = "NodeFor"
	NodePrint     NodeKind = "NodePrint"
	NodePrototype NodeKind = "NodePrototype"
	NodeFunction  NodeKind = "NodeFunction"
)

// ValueType is one of the two value types kal knows about.
type ValueType int

const (
	TypeDouble ValueType = iota
	TypeArray
)

// ArrayLanes is the fixed width of an array value.
const ArrayLanes = 4

func (t ValueType) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// ASTNode represents a node in the Abstract Syntax Tree.
//
// Nodes are built once by the parser and never modified afterwards.
type ASTNode struct {
	Kind NodeKind
	// NodeIdent, NodeVar, NodeIndex, NodeIndexSet, NodeCall, NodeFor,
	// NodePrototype: the variable, callee or function name.
	String string
	// NodeNumber:
	Number float64
	// NodeIndex, NodeIndexSet:
	Index int
	// NodeBinary:
	Op string // "+", "-", "*", "<"
	// NodeVar: declared type. NodePrototype: return type.
	Type ValueType
	// NodeFor: [start, end, step, body] where step may be nil.
	// NodeFunction: [prototype, body...].
	Children []*ASTNode
	// NodePrototype:
	ParameterNames []string
}

// Prototype returns the prototype of a NodeFunction.
func (n *ASTNode) Prototype() *ASTNode {
	return n.Children[0]
}

// Body returns the body statements of a NodeFunction.
func (n *ASTNode) Body() []*ASTNode {
	return n.Children[1:]
}

// IsAnonymous reports whether a NodeFunction wraps a bare top-level
// expression.
func (n *ASTNode) IsAnonymous() bool {
	return n.Kind == NodeFunction && n.Prototype().String == ""
}
