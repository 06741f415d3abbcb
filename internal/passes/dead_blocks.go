package passes

import (
	"context"

	"dcir/internal/ir"
	"dcir/internal/trace"
)

// EliminateDeadBlocks removes blocks that cannot be reached from the entry.
func EliminateDeadBlocks(ctx context.Context, f *ir.Function) (int, error) {
	entry := f.Entry()
	if entry == nil {
		return 0, nil
	}
	reachable := computeReachability(f, entry)

	removed := 0
	for _, b := range f.Blocks() {
		if reachable[b] {
			continue
		}
		if err := f.RemoveBasicBlock(b); err != nil {
			return removed, err
		}
		trace.Point(ctx, trace.ScopeBlock, "dce:remove", b.Name())
		removed++
	}
	return removed, nil
}

// computeReachability performs a DFS from entry over the function's edges.
func computeReachability(f *ir.Function, entry *ir.BasicBlock) map[*ir.BasicBlock]bool {
	reachable := make(map[*ir.BasicBlock]bool, f.Len())
	stack := []*ir.BasicBlock{entry}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[b] {
			continue
		}
		reachable[b] = true
		stack = append(stack, f.Successors(b)...)
	}
	return reachable
}
