package passes

import (
	"context"

	"dcir/internal/ir"
	"dcir/internal/trace"
)

// RemoveFallthroughJumps drops unconditional jumps to the block that starts
// right where the jumping block ends, turning them into plain fallthrough.
func RemoveFallthroughJumps(ctx context.Context, f *ir.Function) (int, error) {
	removed := 0
	for _, b := range f.Blocks() {
		j := b.Jump()
		if j == nil || j.IsConditional() {
			continue
		}
		next, ok := fallAddress(b, j)
		if !ok {
			continue
		}
		target := jumpTarget(f, j.Jump.Then)
		if target == nil || !target.Address().Equal(ir.Addr(next)) {
			continue
		}
		if err := b.PopBack(); err != nil {
			return removed, err
		}
		b.SetSuccessorAddress(ir.Addr(next))
		trace.Point(ctx, trace.ScopeBlock, "fallthrough:pop", b.Name())
		removed++
	}
	return removed, nil
}

// fallAddress is the address control would reach if j were not taken.
func fallAddress(b *ir.BasicBlock, j *ir.Stmt) (ir.ByteAddr, bool) {
	if a, ok := b.SuccessorAddress().Get(); ok {
		return a, true
	}
	if j.Instr == nil {
		return 0, false
	}
	return j.Instr.Address() + ir.ByteAddr(j.Instr.Length()), true
}

// jumpTarget returns the block a non-table target leads to, if known.
func jumpTarget(f *ir.Function, t ir.JumpTarget) *ir.BasicBlock {
	if t.Block != nil {
		return t.Block
	}
	if a, ok := t.ConstAddr(); ok {
		return f.BlockAt(a)
	}
	return nil
}
