package lang

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

func laneIndex(i int) *constant.Int {
	return constant.NewInt(types.I32, int64(i))
}

// lowerArrayLiteral builds the vector by inserting each element, in source
// order, into an undefined vector.
func (c *Codegen) lowerArrayLiteral(node *ASTNode) (value.Value, error) {
	var vec value.Value = constant.NewUndef(arrayIRType)
	for i, elem := range node.Children {
		v, err := c.lower(elem)
		if err != nil {
			return nil, err
		}
		if valueTypeOf(v) != TypeDouble {
			return nil, loweringErrorf(TypeMismatch, "", "array element %d must be a double", i)
		}
		inst := c.block.NewInsertElement(vec, v, laneIndex(i))
		inst.SetName(c.localName("vectmp"))
		vec = inst
	}
	return vec, nil
}

// arrayBinding resolves name to an array variable and checks the lane
// index against the fixed width.
func (c *Codegen) arrayBinding(name string, index int) (Binding, error) {
	b, ok := c.env.Lookup(name)
	if !ok {
		return Binding{}, loweringErrorf(UnknownIdentifier, name, "unknown variable name")
	}
	if b.Type != TypeArray {
		return Binding{}, loweringErrorf(TypeMismatch, name, "cannot index a %s", b.Type)
	}
	if index < 0 || index >= ArrayLanes {
		return Binding{}, loweringErrorf(IndexOutOfRange, name, "index %d outside 0..%d", index, ArrayLanes-1)
	}
	return b, nil
}

func (c *Codegen) lowerIndex(node *ASTNode) (value.Value, error) {
	b, err := c.arrayBinding(node.String, node.Index)
	if err != nil {
		return nil, err
	}
	vec := c.block.NewLoad(arrayIRType, b.Slot)
	vec.SetName(c.localName(node.String))
	elem := c.block.NewExtractElement(vec, laneIndex(node.Index))
	elem.SetName(c.localName("elemtmp"))
	return elem, nil
}

// lowerIndexSet stores a new lane into the array variable. The expression
// yields the stored element.
func (c *Codegen) lowerIndexSet(node *ASTNode) (value.Value, error) {
	b, err := c.arrayBinding(node.String, node.Index)
	if err != nil {
		return nil, err
	}
	v, err := c.lower(node.Children[0])
	if err != nil {
		return nil, err
	}
	if valueTypeOf(v) != TypeDouble {
		return nil, loweringErrorf(TypeMismatch, node.String, "array element must be a double")
	}

	vec := c.block.NewLoad(arrayIRType, b.Slot)
	vec.SetName(c.localName(node.String))
	updated := c.block.NewInsertElement(vec, v, laneIndex(node.Index))
	updated.SetName(c.localName("vectmp"))
	c.block.NewStore(updated, b.Slot)
	return v, nil
}
