package lang

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// lowerFor emits
//
//	entry:      slot = start; br loop
//	loop:       body; slot += step; br (end != 0) ? loop : afterloop
//	afterloop:
//
// The body runs before the end condition is first tested, so it always
// executes at least once. The loop expression yields 0.0.
func (c *Codegen) lowerFor(node *ASTNode) (value.Value, error) {
	start, end, step, body := node.Children[0], node.Children[1], node.Children[2], node.Children[3]
	name := node.String

	slot := c.createEntryBlockAlloca(TypeDouble, name)

	startV, err := c.lowerDouble(start, "loop start")
	if err != nil {
		return nil, err
	}
	c.block.NewStore(startV, slot)

	loop := c.newBlock("loop")
	c.block.NewBr(loop)
	c.block = loop

	// The loop variable shadows any outer binding until the loop ends.
	prev, hadPrev := c.env.Bind(name, Binding{Slot: slot, Type: TypeDouble})
	defer c.env.Restore(name, prev, hadPrev)

	if _, err := c.lower(body); err != nil {
		return nil, err
	}

	var stepV value.Value = constant.NewFloat(types.Double, 1)
	if step != nil {
		stepV, err = c.lowerDouble(step, "loop step")
		if err != nil {
			return nil, err
		}
	}

	cur := c.block.NewLoad(types.Double, slot)
	cur.SetName(c.localName(name))
	next := c.block.NewFAdd(cur, stepV)
	next.SetName(c.localName("nextvar"))
	c.block.NewStore(next, slot)

	endV, err := c.lowerDouble(end, "loop condition")
	if err != nil {
		return nil, err
	}
	cond := c.block.NewFCmp(enum.FPredONE, endV, constant.NewFloat(types.Double, 0))
	cond.SetName(c.localName("loopcond"))

	after := c.newBlock("afterloop")
	c.block.NewCondBr(cond, loop, after)
	c.block = after

	return constant.NewFloat(types.Double, 0), nil
}

// lowerDouble lowers node and requires a scalar result.
func (c *Codegen) lowerDouble(node *ASTNode, what string) (value.Value, error) {
	v, err := c.lower(node)
	if err != nil {
		return nil, err
	}
	if got := valueTypeOf(v); got != TypeDouble {
		return nil, loweringErrorf(TypeMismatch, "", "%s must be a double, got %s", what, got)
	}
	return v, nil
}
