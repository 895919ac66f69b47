package lang

import (
	"strconv"
	"strings"
)

// ToSExpr converts an AST node to s-expression string representation
func ToSExpr(node *ASTNode) string {
	if node == nil {
		return "nil"
	}
	switch node.Kind {
	case NodeNumber:
		return "(number " + formatNumber(node.Number) + ")"
	case NodeIdent:
		return "(ident " + strconv.Quote(node.String) + ")"
	case NodeVar:
		result := "(var " + strconv.Quote(node.String) + " " + node.Type.String()
		if len(node.Children) > 0 {
			result += " " + ToSExpr(node.Children[0])
		}
		return result + ")"
	case NodeArray:
		return "(array" + childrenSExpr(node.Children) + ")"
	case NodeIndex:
		return "(idx " + strconv.Quote(node.String) + " " + strconv.Itoa(node.Index) + ")"
	case NodeIndexSet:
		return "(idx-set " + strconv.Quote(node.String) + " " + strconv.Itoa(node.Index) + " " + ToSExpr(node.Children[0]) + ")"
	case NodeBinary:
		left := ToSExpr(node.Children[0])
		right := ToSExpr(node.Children[1])
		return "(binary " + strconv.Quote(node.Op) + " " + left + " " + right + ")"
	case NodeCall:
		return "(call " + strconv.Quote(node.String) + childrenSExpr(node.Children) + ")"
	case NodeFor:
		result := "(for " + strconv.Quote(node.String)
		for _, child := range node.Children {
			result += " " + ToSExpr(child)
		}
		return result + ")"
	case NodePrint:
		return "(print" + childrenSExpr(node.Children) + ")"
	case NodePrototype:
		params := make([]string, len(node.ParameterNames))
		for i, name := range node.ParameterNames {
			params[i] = strconv.Quote(name)
		}
		return "(proto " + strconv.Quote(node.String) + " (" + strings.Join(params, " ") + ") " + node.Type.String() + ")"
	case NodeFunction:
		return "(def " + ToSExpr(node.Prototype()) + childrenSExpr(node.Body()) + ")"
	default:
		return ""
	}
}

func childrenSExpr(children []*ASTNode) string {
	var result string
	for _, child := range children {
		result += " " + ToSExpr(child)
	}
	return result
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}
