package passes

import (
	"context"
	"fmt"

	"dcir/internal/ir"
	"dcir/internal/trace"
)

// DefaultTailLimit is the largest return block DuplicateReturnTails copies.
const DefaultTailLimit = 4

// DuplicateReturnTails gives every extra goto-predecessor of a small
// return block its own copy of that block. Copies have no address and are
// placed right after the predecessor that jumps to them.
func DuplicateReturnTails(ctx context.Context, f *ir.Function, limit int) (int, error) {
	copies := 0
	for _, b := range f.Blocks() {
		if b.Return() == nil || b.Len() > limit {
			continue
		}
		preds := gotoPredecessors(f, b)
		if len(preds) < 2 {
			continue
		}
		for _, pred := range preds[1:] {
			// The copy keeps b's address until it is split off, which would
			// clash with b inside the function.
			tail, err := b.Clone().Split(0, ir.NoAddr)
			if err != nil {
				return copies, err
			}
			if err := f.AddBasicBlockAfter(pred, tail); err != nil {
				return copies, fmt.Errorf("attach copy of %s: %w", b.Name(), err)
			}
			pred.Jump().Jump.Then = ir.JumpTarget{Block: tail}
			f.Invalidate()
			trace.Point(ctx, trace.ScopeBlock, "dup-returns:clone", fmt.Sprintf("%s for %s", b.Name(), pred.Name()))
			copies++
		}
	}
	return copies, nil
}

// gotoPredecessors returns the predecessors of b that reach it only through
// an unconditional jump.
func gotoPredecessors(f *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock {
	var out []*ir.BasicBlock
	for _, p := range f.Predecessors(b) {
		j := p.Jump()
		if j == nil || j.IsConditional() || len(j.Jump.Then.Table) > 0 {
			continue
		}
		if jumpTarget(f, j.Jump.Then) == b {
			out = append(out, p)
		}
	}
	return out
}
