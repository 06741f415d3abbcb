package ir

import (
	"fmt"
	"strings"
)

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	// StmtInlineAsm stands for an instruction the front end could not lower.
	StmtInlineAsm StmtKind = iota
	// StmtAssign writes Src into Dst.
	StmtAssign
	// StmtJump transfers control, conditionally when Cond is set.
	StmtJump
	// StmtCall calls a function.
	StmtCall
	// StmtReturn returns from the function.
	StmtReturn
	// StmtHalt stops execution.
	StmtHalt
	// StmtTouch marks a term as read or written without computing anything.
	StmtTouch
	// StmtCallback notifies an analysis when it is reached.
	StmtCallback
	// StmtKill marks a term as undefined from this point.
	StmtKill
)

func (k StmtKind) String() string {
	switch k {
	case StmtInlineAsm:
		return "asm"
	case StmtAssign:
		return "assign"
	case StmtJump:
		return "jump"
	case StmtCall:
		return "call"
	case StmtReturn:
		return "return"
	case StmtHalt:
		return "halt"
	case StmtTouch:
		return "touch"
	case StmtCallback:
		return "callback"
	case StmtKill:
		return "kill"
	default:
		return fmt.Sprintf("StmtKind(%d)", uint8(k))
	}
}

// Instruction is the decoded machine instruction a statement was lowered from.
type Instruction interface {
	Address() ByteAddr
	Length() uint64
	String() string
}

// Stmt is a single IR statement. A statement is owned by at most one
// BasicBlock at a time; use Clone to obtain an independent copy.
type Stmt struct {
	Kind StmtKind

	// Instr is not owned and may be nil for synthesized statements.
	Instr Instruction

	Assign   AssignStmt
	Jump     JumpStmt
	Call     CallStmt
	Touch    TouchStmt
	Kill     KillStmt
	Callback CallbackStmt

	block *BasicBlock
}

// AssignStmt is the payload of StmtAssign.
type AssignStmt struct {
	Dst *Term
	Src *Term
}

// JumpStmt is the payload of StmtJump. Else is only meaningful when Cond is set.
type JumpStmt struct {
	Cond *Term
	Then JumpTarget
	Else JumpTarget
}

// CallStmt is the payload of StmtCall.
type CallStmt struct {
	Target *Term
}

// AccessKind tells whether a touch reads or writes its term.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// TouchStmt is the payload of StmtTouch.
type TouchStmt struct {
	Term   *Term
	Access AccessKind
}

// KillStmt is the payload of StmtKill.
type KillStmt struct {
	Term *Term
}

// CallbackStmt is the payload of StmtCallback.
type CallbackStmt struct {
	Name string
	Fn   func()
}

// JumpTarget is where a jump may go: an address term, a resolved block,
// or a table of alternative targets.
type JumpTarget struct {
	Addr  *Term
	Block *BasicBlock // not owned
	Table []JumpTarget
}

// IsSet reports whether the target designates anything.
func (t JumpTarget) IsSet() bool {
	return t.Addr != nil || t.Block != nil || len(t.Table) > 0
}

// ConstAddr returns the target address if it is a constant.
func (t JumpTarget) ConstAddr() (ByteAddr, bool) {
	v, ok := t.Addr.ConstValue()
	return ByteAddr(v), ok
}

func (t JumpTarget) clone() JumpTarget {
	out := JumpTarget{Addr: t.Addr.Clone(), Block: t.Block}
	if len(t.Table) > 0 {
		out.Table = make([]JumpTarget, len(t.Table))
		for i := range t.Table {
			out.Table[i] = t.Table[i].clone()
		}
	}
	return out
}

func (t JumpTarget) String() string {
	switch {
	case t.Block != nil:
		return t.Block.Name()
	case t.Addr != nil:
		return t.Addr.String()
	case len(t.Table) > 0:
		parts := make([]string, len(t.Table))
		for i := range t.Table {
			parts[i] = t.Table[i].String()
		}
		return "table[" + strings.Join(parts, ", ") + "]"
	default:
		return "<none>"
	}
}

// NewInlineAsm returns a statement standing for instr verbatim.
func NewInlineAsm(instr Instruction) *Stmt {
	return &Stmt{Kind: StmtInlineAsm, Instr: instr}
}

// NewAssign returns dst = src.
func NewAssign(dst, src *Term) *Stmt {
	return &Stmt{Kind: StmtAssign, Assign: AssignStmt{Dst: dst, Src: src}}
}

// NewGoto returns an unconditional jump.
func NewGoto(target JumpTarget) *Stmt {
	return &Stmt{Kind: StmtJump, Jump: JumpStmt{Then: target}}
}

// NewBranch returns a conditional jump.
func NewBranch(cond *Term, then, els JumpTarget) *Stmt {
	return &Stmt{Kind: StmtJump, Jump: JumpStmt{Cond: cond, Then: then, Else: els}}
}

// NewCall returns a call of target.
func NewCall(target *Term) *Stmt {
	return &Stmt{Kind: StmtCall, Call: CallStmt{Target: target}}
}

// NewReturn returns a return statement.
func NewReturn() *Stmt {
	return &Stmt{Kind: StmtReturn}
}

// NewHalt returns a halt statement.
func NewHalt() *Stmt {
	return &Stmt{Kind: StmtHalt}
}

// NewTouch returns a touch of term.
func NewTouch(term *Term, access AccessKind) *Stmt {
	return &Stmt{Kind: StmtTouch, Touch: TouchStmt{Term: term, Access: access}}
}

// NewKill returns a kill of term.
func NewKill(term *Term) *Stmt {
	return &Stmt{Kind: StmtKill, Kill: KillStmt{Term: term}}
}

// NewCallback returns a callback statement.
func NewCallback(name string, fn func()) *Stmt {
	return &Stmt{Kind: StmtCallback, Callback: CallbackStmt{Name: name, Fn: fn}}
}

// Block returns the owning basic block, or nil when the statement is free.
func (s *Stmt) Block() *BasicBlock {
	if s == nil {
		return nil
	}
	return s.block
}

// IsJump reports whether s is a jump.
func (s *Stmt) IsJump() bool { return s != nil && s.Kind == StmtJump }

// IsReturn reports whether s is a return.
func (s *Stmt) IsReturn() bool { return s != nil && s.Kind == StmtReturn }

// IsTerminator reports whether s is a jump or a return.
func (s *Stmt) IsTerminator() bool { return s.IsJump() || s.IsReturn() }

// IsConditional reports whether s is a conditional jump.
func (s *Stmt) IsConditional() bool { return s.IsJump() && s.Jump.Cond != nil }

// Clone returns a deep copy of s that belongs to no block.
// Jump targets keep pointing at the same blocks.
func (s *Stmt) Clone() *Stmt {
	if s == nil {
		return nil
	}
	out := &Stmt{Kind: s.Kind, Instr: s.Instr}
	switch s.Kind {
	case StmtAssign:
		out.Assign = AssignStmt{Dst: s.Assign.Dst.Clone(), Src: s.Assign.Src.Clone()}
	case StmtJump:
		out.Jump = JumpStmt{
			Cond: s.Jump.Cond.Clone(),
			Then: s.Jump.Then.clone(),
			Else: s.Jump.Else.clone(),
		}
	case StmtCall:
		out.Call = CallStmt{Target: s.Call.Target.Clone()}
	case StmtTouch:
		out.Touch = TouchStmt{Term: s.Touch.Term.Clone(), Access: s.Touch.Access}
	case StmtKill:
		out.Kill = KillStmt{Term: s.Kill.Term.Clone()}
	case StmtCallback:
		out.Callback = s.Callback
	}
	return out
}

func (s *Stmt) String() string {
	if s == nil {
		return "<stmt?>"
	}
	switch s.Kind {
	case StmtInlineAsm:
		if s.Instr == nil {
			return "asm <unknown>"
		}
		return "asm " + s.Instr.String()
	case StmtAssign:
		return fmt.Sprintf("%s = %s", s.Assign.Dst, s.Assign.Src)
	case StmtJump:
		if s.Jump.Cond == nil {
			return "goto " + s.Jump.Then.String()
		}
		return fmt.Sprintf("if %s goto %s else %s", s.Jump.Cond, s.Jump.Then, s.Jump.Else)
	case StmtCall:
		return "call " + s.Call.Target.String()
	case StmtReturn:
		return "return"
	case StmtHalt:
		return "halt"
	case StmtTouch:
		if s.Touch.Access == AccessWrite {
			return "touch write " + s.Touch.Term.String()
		}
		return "touch read " + s.Touch.Term.String()
	case StmtKill:
		return "kill " + s.Kill.Term.String()
	case StmtCallback:
		return "callback " + s.Callback.Name
	default:
		return "<stmt?>"
	}
}
