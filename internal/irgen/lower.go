package irgen

import (
	"strings"

	"dcir/internal/ir"
	"dcir/internal/listing"
)

var binaryOps = map[string]string{
	"add":  "+",
	"sub":  "-",
	"and":  "&",
	"or":   "|",
	"xor":  "^",
	"imul": "*",
	"shl":  "<<",
	"shr":  ">>",
	"sar":  ">>s",
}

// lowered is the result of lowering one instruction: statements appended
// in order, plus flag fix-ups to be inserted after given statements once
// the whole block is built.
type lowered struct {
	stmts  []*ir.Stmt
	fixups []ir.Insertion
}

func (l *lowered) add(instr *listing.Instruction, s *ir.Stmt) *ir.Stmt {
	s.Instr = instr
	l.stmts = append(l.stmts, s)
	return s
}

func (l *lowered) fixup(instr *listing.Instruction, after *ir.Stmt, s *ir.Stmt) {
	s.Instr = instr
	l.fixups = append(l.fixups, ir.Insertion{After: after, Stmt: s})
}

func lower(instr *listing.Instruction) lowered {
	var l lowered
	switch instr.Kind {
	case listing.KindJump:
		l.add(instr, ir.NewGoto(targetOf(instr)))
	case listing.KindCondJump:
		l.add(instr, ir.NewBranch(conditionOf(instr), targetOf(instr), ir.JumpTarget{}))
	case listing.KindCall:
		l.add(instr, ir.NewCall(targetOf(instr).Addr))
	case listing.KindReturn:
		l.add(instr, ir.NewReturn())
	case listing.KindHalt:
		l.add(instr, ir.NewHalt())
	default:
		lowerPlain(&l, instr)
	}
	return l
}

func lowerPlain(l *lowered, instr *listing.Instruction) {
	m := strings.ToLower(instr.Mnemonic)
	ops := make([]*ir.Term, len(instr.Operands))
	for i, o := range instr.Operands {
		ops[i] = parseOperand(o)
	}
	rsp := func() *ir.Term { return ir.Register("rsp", 64) }

	switch {
	case m == "nop":
	case (m == "mov" || m == "movzx" || m == "movsx") && len(ops) == 2:
		l.add(instr, ir.NewAssign(ops[0], ops[1]))
	case m == "lea" && len(ops) == 2:
		src := ops[1]
		if src.Kind == ir.TermDeref {
			src = src.Args[0]
		}
		l.add(instr, ir.NewAssign(ops[0], src))
	case binaryOps[m] != "" && len(ops) == 2:
		s := l.add(instr, ir.NewAssign(ops[0], ir.Binary(binaryOps[m], ops[0].Clone(), ops[1])))
		l.fixup(instr, s, zeroFlag(ops[0]))
	case (m == "inc" || m == "dec") && len(ops) == 1:
		op := "+"
		if m == "dec" {
			op = "-"
		}
		s := l.add(instr, ir.NewAssign(ops[0], ir.Binary(op, ops[0].Clone(), ir.IntConst(1, ops[0].Size))))
		l.fixup(instr, s, zeroFlag(ops[0]))
	case (m == "neg" || m == "not") && len(ops) == 1:
		op := "-"
		if m == "not" {
			op = "~"
		}
		l.add(instr, ir.NewAssign(ops[0], ir.Unary(op, ops[0].Clone())))
	case m == "cmp" && len(ops) == 2:
		s := l.add(instr, ir.NewAssign(ir.Register("zf", 1), ir.Binary("==", ops[0], ops[1])))
		l.fixup(instr, s, ir.NewAssign(ir.Register("sf", 1), ir.Binary("<s", ops[0].Clone(), ops[1].Clone())))
		l.fixup(instr, s, ir.NewAssign(ir.Register("cf", 1), ir.Binary("<u", ops[0].Clone(), ops[1].Clone())))
	case m == "test" && len(ops) == 2:
		and := ir.Binary("&", ops[0], ops[1])
		s := l.add(instr, ir.NewAssign(ir.Register("zf", 1), ir.Binary("==", and, ir.IntConst(0, and.Size))))
		l.fixup(instr, s, ir.NewAssign(ir.Register("sf", 1), ir.Binary("<s", and.Clone(), ir.IntConst(0, and.Size))))
	case m == "push" && len(ops) == 1:
		l.add(instr, ir.NewAssign(rsp(), ir.Binary("-", rsp(), ir.IntConst(8, 64))))
		l.add(instr, ir.NewAssign(ir.Deref(rsp(), 64), ops[0]))
	case m == "pop" && len(ops) == 1:
		l.add(instr, ir.NewAssign(ops[0], ir.Deref(rsp(), 64)))
		l.add(instr, ir.NewAssign(rsp(), ir.Binary("+", rsp(), ir.IntConst(8, 64))))
	default:
		l.add(instr, ir.NewInlineAsm(instr))
	}
}

func zeroFlag(dst *ir.Term) *ir.Stmt {
	return ir.NewAssign(ir.Register("zf", 1), ir.Binary("==", dst.Clone(), ir.IntConst(0, dst.Size)))
}

// targetOf returns the static target when known, else the first operand.
func targetOf(instr *listing.Instruction) ir.JumpTarget {
	if a, ok := instr.Target.Get(); ok {
		return ir.JumpTarget{Addr: ir.IntConst(uint64(a), 64)}
	}
	if len(instr.Operands) > 0 {
		return ir.JumpTarget{Addr: parseOperand(instr.Operands[0])}
	}
	return ir.JumpTarget{Addr: ir.Intrinsic("unknown-target", 64)}
}

var condFlags = map[string]string{
	"jz": "zf", "je": "zf",
	"js": "sf",
	"jb": "cf", "jc": "cf",
}

var negatedCondFlags = map[string]string{
	"jnz": "zf", "jne": "zf",
	"jns": "sf",
	"jae": "cf", "jnc": "cf",
}

func conditionOf(instr *listing.Instruction) *ir.Term {
	if instr.Cond != "" {
		return ir.Register(instr.Cond, 1)
	}
	m := strings.ToLower(instr.Mnemonic)
	if f, ok := condFlags[m]; ok {
		return ir.Register(f, 1)
	}
	if f, ok := negatedCondFlags[m]; ok {
		return ir.Unary("!", ir.Register(f, 1))
	}
	return ir.Intrinsic("cond:"+m, 1)
}
