package ir

import (
	"fmt"
	"iter"
	"slices"
	"sync/atomic"
)

var blockSeq atomic.Uint64

// BasicBlock is an ordered run of statements with a single entry.
//
// The block owns its statements. The Function pointer is a plain
// association: Function owns its blocks, a block never keeps its Function
// alive, and a block must not be used through Function() after that
// Function is discarded.
type BasicBlock struct {
	addr     OptAddr
	succAddr OptAddr
	stmts    []*Stmt
	fn       *Function
	seq      uint64
}

// Insertion pairs an existing statement with a new one to be placed after it.
type Insertion struct {
	After *Stmt
	Stmt  *Stmt
}

// NewBasicBlock creates an unattached block at addr owning stmts.
// It panics if a statement is nil or already owned by another block.
func NewBasicBlock(addr OptAddr, stmts ...*Stmt) *BasicBlock {
	b := &BasicBlock{addr: addr, seq: blockSeq.Add(1)}
	for _, s := range stmts {
		if err := b.AddStatement(s); err != nil {
			panic(err)
		}
	}
	return b
}

// Address returns the start address of the block.
func (b *BasicBlock) Address() OptAddr { return b.addr }

// SuccessorAddress returns the address control falls through to.
func (b *BasicBlock) SuccessorAddress() OptAddr { return b.succAddr }

// SetSuccessorAddress sets the fallthrough address.
func (b *BasicBlock) SetSuccessorAddress(addr OptAddr) {
	b.succAddr = addr
	b.touch()
}

// Function returns the function the block is attached to, or nil.
func (b *BasicBlock) Function() *Function { return b.fn }

// SetFunction associates the block with fn. Passing nil detaches it.
// Function.AddBasicBlock and Function.RemoveBasicBlock call this; passes
// should go through them so the function's block list stays in sync.
func (b *BasicBlock) SetFunction(fn *Function) { b.fn = fn }

// Len returns the number of statements.
func (b *BasicBlock) Len() int { return len(b.stmts) }

// IsEmpty reports whether the block has no statements.
func (b *BasicBlock) IsEmpty() bool { return len(b.stmts) == 0 }

// Statement returns the i-th statement.
func (b *BasicBlock) Statement(i int) *Stmt { return b.stmts[i] }

// Statements returns the statements in execution order. The slice is fresh;
// reordering it does not affect the block, but the statements are shared.
func (b *BasicBlock) Statements() []*Stmt { return slices.Clone(b.stmts) }

// MutableStatements returns the statements for in-place editing of their
// payloads (operands, jump targets). The sequence itself is a copy; use
// AddStatement, AddStatements, PopBack or Split to change it. Cached edges
// are dropped since targets may change.
func (b *BasicBlock) MutableStatements() []*Stmt {
	b.touch()
	return slices.Clone(b.stmts)
}

// All iterates over the statements without copying.
// The block must not be mutated during iteration.
func (b *BasicBlock) All() iter.Seq2[int, *Stmt] {
	return func(yield func(int, *Stmt) bool) {
		for i, s := range b.stmts {
			if !yield(i, s) {
				return
			}
		}
	}
}

// IndexOf returns the position of s in the block, or -1.
func (b *BasicBlock) IndexOf(s *Stmt) int {
	if s == nil || s.block != b {
		return -1
	}
	return slices.Index(b.stmts, s)
}

// AddStatement appends s. Appending after a terminator is allowed; the
// terminator queries only look at the last statement.
func (b *BasicBlock) AddStatement(s *Stmt) error {
	if err := b.checkFree(s); err != nil {
		return err
	}
	s.block = b
	b.stmts = append(b.stmts, s)
	b.touch()
	return nil
}

// AddStatements inserts every pair's Stmt right after its After anchor.
// Anchors must occur in the block in the same order as in pairs; pairs
// sharing an anchor are inserted in list order. On error the block is
// left unchanged.
func (b *BasicBlock) AddStatements(pairs []Insertion) error {
	if len(pairs) == 0 {
		return nil
	}
	seen := make(map[*Stmt]struct{}, len(pairs))
	for i, p := range pairs {
		if p.After == nil {
			return fmt.Errorf("%w: insertion %d has nil anchor", ErrPrecondition, i)
		}
		if p.After.block != b {
			return fmt.Errorf("%w: insertion %d anchor %q is not in block %s", ErrPrecondition, i, p.After, b.Name())
		}
		if err := b.checkFree(p.Stmt); err != nil {
			return fmt.Errorf("insertion %d: %w", i, err)
		}
		if _, dup := seen[p.Stmt]; dup {
			return fmt.Errorf("%w: insertion %d repeats statement %q", ErrPrecondition, i, p.Stmt)
		}
		seen[p.Stmt] = struct{}{}
	}

	out := make([]*Stmt, 0, len(b.stmts)+len(pairs))
	k := 0
	for _, s := range b.stmts {
		out = append(out, s)
		for k < len(pairs) && pairs[k].After == s {
			out = append(out, pairs[k].Stmt)
			k++
		}
	}
	if k != len(pairs) {
		return fmt.Errorf("%w: insertion %d anchor %q is out of block order", ErrPrecondition, k, pairs[k].After)
	}

	for _, p := range pairs {
		p.Stmt.block = b
	}
	b.stmts = out
	b.touch()
	return nil
}

// PopBack removes the last statement and releases it.
func (b *BasicBlock) PopBack() error {
	n := len(b.stmts)
	if n == 0 {
		return fmt.Errorf("%w: PopBack on empty block %s", ErrPrecondition, b.Name())
	}
	b.stmts[n-1].block = nil
	b.stmts[n-1] = nil
	b.stmts = b.stmts[:n-1]
	b.touch()
	return nil
}

// Terminator returns the last statement if it is a jump or a return.
func (b *BasicBlock) Terminator() *Stmt {
	if s := b.last(); s.IsTerminator() {
		return s
	}
	return nil
}

// Jump returns the last statement if it is a jump.
func (b *BasicBlock) Jump() *Stmt {
	if s := b.last(); s.IsJump() {
		return s
	}
	return nil
}

// Return returns the last statement if it is a return.
func (b *BasicBlock) Return() *Stmt {
	if s := b.last(); s.IsReturn() {
		return s
	}
	return nil
}

// Split moves statements [index, Len()) into a new block at addr and
// returns it. The new block takes over the successor address; the receiver
// is left without one since it now flows into the new block. The new block
// is not attached to any function.
func (b *BasicBlock) Split(index int, addr OptAddr) (*BasicBlock, error) {
	if index < 0 || index > len(b.stmts) {
		return nil, fmt.Errorf("%w: split index %d out of range [0, %d] in block %s", ErrPrecondition, index, len(b.stmts), b.Name())
	}

	tail := &BasicBlock{addr: addr, seq: blockSeq.Add(1)}
	tail.stmts = slices.Clone(b.stmts[index:])
	for _, s := range tail.stmts {
		s.block = tail
	}
	clear(b.stmts[index:])
	b.stmts = slices.Clip(b.stmts[:index])

	tail.succAddr = b.succAddr
	b.succAddr = NoAddr
	b.touch()
	return tail, nil
}

// Clone returns an unattached copy of the block with deep-copied statements.
func (b *BasicBlock) Clone() *BasicBlock {
	out := &BasicBlock{
		addr:     b.addr,
		succAddr: b.succAddr,
		stmts:    make([]*Stmt, len(b.stmts)),
		seq:      blockSeq.Add(1),
	}
	for i, s := range b.stmts {
		c := s.Clone()
		c.block = out
		out.stmts[i] = c
	}
	return out
}

// Name returns a readable identifier. Blocks sharing an address share a name.
func (b *BasicBlock) Name() string {
	if a, ok := b.addr.Get(); ok {
		return fmt.Sprintf("bb_%x", uint64(a))
	}
	return fmt.Sprintf("bb_n%d", b.seq)
}

func (b *BasicBlock) String() string { return b.Name() }

func (b *BasicBlock) last() *Stmt {
	if len(b.stmts) == 0 {
		return nil
	}
	return b.stmts[len(b.stmts)-1]
}

func (b *BasicBlock) checkFree(s *Stmt) error {
	if s == nil {
		return fmt.Errorf("%w: nil statement", ErrPrecondition)
	}
	if s.block != nil {
		return fmt.Errorf("%w: statement %q already belongs to block %s", ErrPrecondition, s, s.block.Name())
	}
	return nil
}

// touch drops cached edges of the owning function.
func (b *BasicBlock) touch() {
	if b.fn != nil {
		b.fn.Invalidate()
	}
}

// nodeID is unique per block within a process.
func (b *BasicBlock) nodeID() string {
	return fmt.Sprintf("basicblock%d", b.seq)
}
