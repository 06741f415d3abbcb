package ir

import (
	"fmt"
)

// FunctionSnapshot is a pointer-free copy of a function suitable for
// serialization. Block references are indices into Blocks.
type FunctionSnapshot struct {
	Name   string
	Blocks []BlockSnapshot
}

// BlockSnapshot is the serialized form of a BasicBlock.
type BlockSnapshot struct {
	HasAddr     bool
	Addr        uint64
	HasSuccAddr bool
	SuccAddr    uint64
	Stmts       []StmtSnapshot
}

// StmtSnapshot is the serialized form of a Stmt. Callback functions are
// not preserved, only their names.
type StmtSnapshot struct {
	Kind  StmtKind
	Instr *InstrSnapshot

	Dst, Src *Term
	Cond     *Term
	Then     TargetSnapshot
	Else     TargetSnapshot
	Operand  *Term
	Access   AccessKind
	Name     string
}

// TargetSnapshot is the serialized form of a JumpTarget. Block is -1 when unset.
type TargetSnapshot struct {
	Addr  *Term
	Block int
	Table []TargetSnapshot
}

// InstrSnapshot keeps what a statement needs from its instruction.
type InstrSnapshot struct {
	Addr uint64
	Size uint64
	Text string
}

func (i *InstrSnapshot) Address() ByteAddr { return ByteAddr(i.Addr) }
func (i *InstrSnapshot) Length() uint64    { return i.Size }
func (i *InstrSnapshot) String() string    { return i.Text }

// Snapshot captures f. Jump targets pointing outside f are kept by address only.
func Snapshot(f *Function) *FunctionSnapshot {
	index := make(map[*BasicBlock]int, len(f.blocks))
	for i, b := range f.blocks {
		index[b] = i
	}

	out := &FunctionSnapshot{Name: f.Name, Blocks: make([]BlockSnapshot, len(f.blocks))}
	for i, b := range f.blocks {
		bs := BlockSnapshot{Stmts: make([]StmtSnapshot, len(b.stmts))}
		if a, ok := b.addr.Get(); ok {
			bs.HasAddr, bs.Addr = true, uint64(a)
		}
		if a, ok := b.succAddr.Get(); ok {
			bs.HasSuccAddr, bs.SuccAddr = true, uint64(a)
		}
		for j, s := range b.stmts {
			bs.Stmts[j] = snapshotStmt(s, index)
		}
		out.Blocks[i] = bs
	}
	return out
}

func snapshotStmt(s *Stmt, index map[*BasicBlock]int) StmtSnapshot {
	out := StmtSnapshot{Kind: s.Kind}
	if s.Instr != nil {
		out.Instr = &InstrSnapshot{Addr: uint64(s.Instr.Address()), Size: s.Instr.Length(), Text: s.Instr.String()}
	}
	switch s.Kind {
	case StmtAssign:
		out.Dst, out.Src = s.Assign.Dst.Clone(), s.Assign.Src.Clone()
	case StmtJump:
		out.Cond = s.Jump.Cond.Clone()
		out.Then = snapshotTarget(s.Jump.Then, index)
		out.Else = snapshotTarget(s.Jump.Else, index)
	case StmtCall:
		out.Operand = s.Call.Target.Clone()
	case StmtTouch:
		out.Operand, out.Access = s.Touch.Term.Clone(), s.Touch.Access
	case StmtKill:
		out.Operand = s.Kill.Term.Clone()
	case StmtCallback:
		out.Name = s.Callback.Name
	}
	return out
}

func snapshotTarget(t JumpTarget, index map[*BasicBlock]int) TargetSnapshot {
	out := TargetSnapshot{Addr: t.Addr.Clone(), Block: -1}
	if t.Block != nil {
		if i, ok := index[t.Block]; ok {
			out.Block = i
		} else if out.Addr == nil {
			if a, ok := t.Block.addr.Get(); ok {
				out.Addr = IntConst(uint64(a), 0)
			}
		}
	}
	for _, e := range t.Table {
		out.Table = append(out.Table, snapshotTarget(e, index))
	}
	return out
}

// Restore rebuilds a function from a snapshot.
func Restore(fs *FunctionSnapshot) (*Function, error) {
	if fs == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrPrecondition)
	}
	f := NewFunction(fs.Name)
	blocks := make([]*BasicBlock, len(fs.Blocks))
	for i := range fs.Blocks {
		bs := &fs.Blocks[i]
		addr := NoAddr
		if bs.HasAddr {
			addr = Addr(ByteAddr(bs.Addr))
		}
		blocks[i] = NewBasicBlock(addr)
		if bs.HasSuccAddr {
			blocks[i].succAddr = Addr(ByteAddr(bs.SuccAddr))
		}
		if err := f.AddBasicBlock(blocks[i]); err != nil {
			return nil, fmt.Errorf("restore block %d: %w", i, err)
		}
	}

	for i := range fs.Blocks {
		for j := range fs.Blocks[i].Stmts {
			s, err := restoreStmt(&fs.Blocks[i].Stmts[j], blocks)
			if err != nil {
				return nil, fmt.Errorf("restore %s[%d]: %w", blocks[i].Name(), j, err)
			}
			if err := blocks[i].AddStatement(s); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func restoreStmt(ss *StmtSnapshot, blocks []*BasicBlock) (*Stmt, error) {
	s := &Stmt{Kind: ss.Kind}
	if ss.Instr != nil {
		instr := *ss.Instr
		s.Instr = &instr
	}
	switch ss.Kind {
	case StmtAssign:
		s.Assign = AssignStmt{Dst: ss.Dst.Clone(), Src: ss.Src.Clone()}
	case StmtJump:
		then, err := restoreTarget(ss.Then, blocks)
		if err != nil {
			return nil, err
		}
		els, err := restoreTarget(ss.Else, blocks)
		if err != nil {
			return nil, err
		}
		s.Jump = JumpStmt{Cond: ss.Cond.Clone(), Then: then, Else: els}
	case StmtCall:
		s.Call = CallStmt{Target: ss.Operand.Clone()}
	case StmtTouch:
		s.Touch = TouchStmt{Term: ss.Operand.Clone(), Access: ss.Access}
	case StmtKill:
		s.Kill = KillStmt{Term: ss.Operand.Clone()}
	case StmtCallback:
		s.Callback = CallbackStmt{Name: ss.Name}
	case StmtInlineAsm, StmtReturn, StmtHalt:
	default:
		return nil, fmt.Errorf("unknown statement kind %d", ss.Kind)
	}
	return s, nil
}

func restoreTarget(ts TargetSnapshot, blocks []*BasicBlock) (JumpTarget, error) {
	out := JumpTarget{Addr: ts.Addr.Clone()}
	if ts.Block >= 0 {
		if ts.Block >= len(blocks) {
			return JumpTarget{}, fmt.Errorf("jump target block %d out of range", ts.Block)
		}
		out.Block = blocks[ts.Block]
	}
	for _, e := range ts.Table {
		t, err := restoreTarget(e, blocks)
		if err != nil {
			return JumpTarget{}, err
		}
		out.Table = append(out.Table, t)
	}
	return out, nil
}
