package ir

import (
	"fmt"
	"slices"
)

// Function owns a list of basic blocks and the control flow edges between
// them. The first block is the entry.
type Function struct {
	Name string

	blocks []*BasicBlock
	byAddr map[ByteAddr]*BasicBlock
	cfg    *CFG
}

// NewFunction returns an empty function.
func NewFunction(name string) *Function {
	return &Function{Name: name, byAddr: make(map[ByteAddr]*BasicBlock)}
}

// AddBasicBlock attaches b and appends it to the block list.
func (f *Function) AddBasicBlock(b *BasicBlock) error {
	return f.insert(len(f.blocks), b)
}

// AddBasicBlockAfter attaches b and places it right after the attached block after.
func (f *Function) AddBasicBlockAfter(after, b *BasicBlock) error {
	i := f.indexOf(after)
	if i < 0 {
		return fmt.Errorf("%w: block %s is not in function %s", ErrPrecondition, after.Name(), f.Name)
	}
	return f.insert(i+1, b)
}

func (f *Function) insert(pos int, b *BasicBlock) error {
	if b == nil {
		return fmt.Errorf("%w: nil block", ErrPrecondition)
	}
	if b.fn != nil {
		return fmt.Errorf("%w: block %s already belongs to function %s", ErrPrecondition, b.Name(), b.fn.Name)
	}
	if a, ok := b.addr.Get(); ok {
		if _, dup := f.byAddr[a]; dup {
			return fmt.Errorf("%w: function %s already has a block at %s", ErrPrecondition, f.Name, a)
		}
		f.byAddr[a] = b
	}
	f.blocks = slices.Insert(f.blocks, pos, b)
	b.SetFunction(f)
	f.Invalidate()
	return nil
}

// RemoveBasicBlock detaches b from the function.
func (f *Function) RemoveBasicBlock(b *BasicBlock) error {
	i := f.indexOf(b)
	if i < 0 {
		return fmt.Errorf("%w: block %s is not in function %s", ErrPrecondition, b.Name(), f.Name)
	}
	f.blocks = slices.Delete(f.blocks, i, i+1)
	if a, ok := b.addr.Get(); ok && f.byAddr[a] == b {
		delete(f.byAddr, a)
	}
	b.SetFunction(nil)
	f.Invalidate()
	return nil
}

// Blocks returns the blocks in layout order. The slice is fresh.
func (f *Function) Blocks() []*BasicBlock { return slices.Clone(f.blocks) }

// Len returns the number of blocks.
func (f *Function) Len() int { return len(f.blocks) }

// Entry returns the entry block, or nil for an empty function.
func (f *Function) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// BlockAt returns the block starting at addr, or nil.
func (f *Function) BlockAt(addr ByteAddr) *BasicBlock {
	return f.byAddr[addr]
}

// Invalidate drops cached edges. Block mutations call it automatically.
func (f *Function) Invalidate() { f.cfg = nil }

// CFG returns the control flow graph, rebuilding it if stale.
func (f *Function) CFG() *CFG {
	if f.cfg == nil {
		f.cfg = buildCFG(f)
	}
	return f.cfg
}

// Predecessors returns the blocks with an edge into b.
func (f *Function) Predecessors(b *BasicBlock) []*BasicBlock {
	return f.CFG().Predecessors(b)
}

// Successors returns the blocks b has an edge to.
func (f *Function) Successors(b *BasicBlock) []*BasicBlock {
	return f.CFG().Successors(b)
}

// ResolveJumpTargets points constant-address jump targets at the blocks
// starting there. It returns the number of targets resolved.
func (f *Function) ResolveJumpTargets() int {
	n := 0
	for _, b := range f.blocks {
		j := b.Jump()
		if j == nil {
			continue
		}
		n += f.resolve(&j.Jump.Then)
		n += f.resolve(&j.Jump.Else)
	}
	if n > 0 {
		f.Invalidate()
	}
	return n
}

func (f *Function) resolve(t *JumpTarget) int {
	n := 0
	if t.Block == nil {
		if a, ok := t.ConstAddr(); ok {
			if target := f.BlockAt(a); target != nil {
				t.Block = target
				n++
			}
		}
	}
	for i := range t.Table {
		n += f.resolve(&t.Table[i])
	}
	return n
}

func (f *Function) indexOf(b *BasicBlock) int {
	if b == nil || b.fn != f {
		return -1
	}
	return slices.Index(f.blocks, b)
}
