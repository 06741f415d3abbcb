package ir

import "slices"

// CFG is a snapshot of a function's edges. It is rebuilt by Function.CFG
// after any mutation of the function or its blocks.
type CFG struct {
	succs map[*BasicBlock][]*BasicBlock
	preds map[*BasicBlock][]*BasicBlock
}

func buildCFG(f *Function) *CFG {
	g := &CFG{
		succs: make(map[*BasicBlock][]*BasicBlock, len(f.blocks)),
		preds: make(map[*BasicBlock][]*BasicBlock, len(f.blocks)),
	}
	for _, b := range f.blocks {
		for _, s := range blockSuccessors(f, b) {
			if slices.Contains(g.succs[b], s) {
				continue
			}
			g.succs[b] = append(g.succs[b], s)
			g.preds[s] = append(g.preds[s], b)
		}
	}
	return g
}

// Successors returns the blocks b flows to, in terminator order.
func (g *CFG) Successors(b *BasicBlock) []*BasicBlock {
	return slices.Clone(g.succs[b])
}

// Predecessors returns the blocks flowing into b, in layout order.
func (g *CFG) Predecessors(b *BasicBlock) []*BasicBlock {
	return slices.Clone(g.preds[b])
}

// blockSuccessors lists the targets of b's terminator plus its fallthrough.
// Unresolvable targets (computed addresses, addresses outside the function)
// produce no edge.
func blockSuccessors(f *Function, b *BasicBlock) []*BasicBlock {
	var out []*BasicBlock
	add := func(t *BasicBlock) {
		if t != nil && t.fn == f {
			out = append(out, t)
		}
	}

	if j := b.Jump(); j != nil {
		collectTargets(f, j.Jump.Then, add)
		if j.Jump.Cond != nil {
			collectTargets(f, j.Jump.Else, add)
		}
	}
	if fallsThrough(b) {
		if a, ok := b.succAddr.Get(); ok {
			add(f.BlockAt(a))
		}
	}
	return out
}

func collectTargets(f *Function, t JumpTarget, add func(*BasicBlock)) {
	switch {
	case t.Block != nil:
		add(t.Block)
	case t.Addr != nil:
		if a, ok := t.ConstAddr(); ok {
			add(f.BlockAt(a))
		}
	}
	for _, e := range t.Table {
		collectTargets(f, e, add)
	}
}

// fallsThrough reports whether control may continue to the successor address.
func fallsThrough(b *BasicBlock) bool {
	last := b.last()
	switch {
	case last.IsReturn(), last != nil && last.Kind == StmtHalt:
		return false
	case last.IsJump():
		return last.Jump.Cond != nil && !last.Jump.Else.IsSet()
	}
	return true
}
