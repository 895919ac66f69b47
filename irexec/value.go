package irexec

import (
	"strconv"
	"strings"

	"github.com/llir/llvm/ir/types"
)

// Kind is the runtime representation of a Value.
type Kind int

const (
	KindVoid Kind = iota
	KindDouble
	KindArray
	KindBool
	KindInt
	KindPointer
)

// Lanes is the width of an array value.
const Lanes = 4

// Value is a runtime value. Only the field selected by Kind is meaningful.
type Value struct {
	Kind   Kind
	Double float64
	Array  [Lanes]float64
	Bool   bool
	Int    int64
	Ptr    *Value
}

func Double(f float64) Value {
	return Value{Kind: KindDouble, Double: f}
}

func Array(lanes [Lanes]float64) Value {
	return Value{Kind: KindArray, Array: lanes}
}

func (v Value) String() string {
	switch v.Kind {
	case KindVoid:
		return "void"
	case KindDouble:
		return formatDouble(v.Double)
	case KindArray:
		parts := make([]string, Lanes)
		for i, lane := range v.Array {
			parts[i] = formatDouble(lane)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindPointer:
		return "ptr"
	default:
		return "?"
	}
}

func formatDouble(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// zeroOf returns the zero value of an IR type. Undefined values are also
// materialized as zero.
func zeroOf(t types.Type) (Value, bool) {
	switch t := t.(type) {
	case *types.FloatType:
		return Double(0), true
	case *types.VectorType:
		return Value{Kind: KindArray}, true
	case *types.IntType:
		if t.BitSize == 1 {
			return Value{Kind: KindBool}, true
		}
		return Value{Kind: KindInt}, true
	default:
		return Value{}, false
	}
}
