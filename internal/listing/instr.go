package listing

import (
	"strings"

	"dcir/internal/ir"
)

// Kind classifies an instruction by its effect on control flow.
type Kind uint8

const (
	KindPlain    Kind = iota // falls through
	KindJump                 // unconditional jump
	KindCondJump             // conditional jump, falls through when not taken
	KindCall                 // call, falls through after return
	KindReturn               // return
	KindHalt                 // stops execution
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindJump:
		return "jump"
	case KindCondJump:
		return "cjump"
	case KindCall:
		return "call"
	case KindReturn:
		return "ret"
	case KindHalt:
		return "halt"
	default:
		return "unknown"
	}
}

func parseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain":
		return KindPlain, true
	case "jump", "jmp":
		return KindJump, true
	case "cjump", "jcc":
		return KindCondJump, true
	case "call":
		return KindCall, true
	case "ret", "return":
		return KindReturn, true
	case "halt", "hlt":
		return KindHalt, true
	default:
		return KindPlain, false
	}
}

// Instruction is one decoded machine instruction.
type Instruction struct {
	Addr     ir.ByteAddr
	Size     uint64
	Mnemonic string
	Operands []string
	Kind     Kind
	// Target is the static destination of a jump or call, if known.
	Target ir.OptAddr
	// Cond names the flag tested by a conditional jump.
	Cond string
}

// Address implements ir.Instruction.
func (i *Instruction) Address() ir.ByteAddr { return i.Addr }

// Length implements ir.Instruction.
func (i *Instruction) Length() uint64 { return i.Size }

// End returns the address right after the instruction.
func (i *Instruction) End() ir.ByteAddr { return i.Addr + ir.ByteAddr(i.Size) }

func (i *Instruction) String() string {
	if len(i.Operands) == 0 {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + strings.Join(i.Operands, ", ")
}

// Function is the instruction listing of one function in address order.
type Function struct {
	Name   string
	Entry  ir.ByteAddr
	Instrs []*Instruction
}

// Find returns the index of the instruction starting at addr.
func (f *Function) Find(addr ir.ByteAddr) (int, bool) {
	lo, hi := 0, len(f.Instrs)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if f.Instrs[mid].Addr < addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(f.Instrs) && f.Instrs[lo].Addr == addr
}
