package ir

import (
	"fmt"
	"strings"
)

// TermKind enumerates operand term kinds.
type TermKind uint8

const (
	// TermIntConst is an integer constant.
	TermIntConst TermKind = iota
	// TermRegister is a named machine register.
	TermRegister
	// TermMemory is an access to an absolute memory location.
	TermMemory
	// TermDeref is a memory access through an address term.
	TermDeref
	// TermUnary applies a unary operator to one argument.
	TermUnary
	// TermBinary applies a binary operator to two arguments.
	TermBinary
	// TermIntrinsic is an opaque value produced by the front end.
	TermIntrinsic
)

// Term is an operand expression used by statements.
// Terms are owned by a single statement and copied by Clone.
type Term struct {
	Kind TermKind
	Size uint16 // bits, 0 when unknown

	Value uint64   // TermIntConst
	Reg   string   // TermRegister
	Addr  ByteAddr // TermMemory
	Op    string   // TermUnary, TermBinary, TermIntrinsic
	Args  []*Term  // TermDeref (1), TermUnary (1), TermBinary (2)
}

// IntConst returns a constant term.
func IntConst(v uint64, size uint16) *Term {
	return &Term{Kind: TermIntConst, Value: v, Size: size}
}

// Register returns a register term.
func Register(name string, size uint16) *Term {
	return &Term{Kind: TermRegister, Reg: name, Size: size}
}

// Memory returns an absolute memory access term.
func Memory(addr ByteAddr, size uint16) *Term {
	return &Term{Kind: TermMemory, Addr: addr, Size: size}
}

// Deref returns a memory access through addr.
func Deref(addr *Term, size uint16) *Term {
	return &Term{Kind: TermDeref, Args: []*Term{addr}, Size: size}
}

// Unary returns op applied to x.
func Unary(op string, x *Term) *Term {
	return &Term{Kind: TermUnary, Op: op, Args: []*Term{x}, Size: x.Size}
}

// Binary returns op applied to l and r.
func Binary(op string, l, r *Term) *Term {
	size := l.Size
	if size == 0 {
		size = r.Size
	}
	return &Term{Kind: TermBinary, Op: op, Args: []*Term{l, r}, Size: size}
}

// Intrinsic returns an opaque front-end value.
func Intrinsic(name string, size uint16) *Term {
	return &Term{Kind: TermIntrinsic, Op: name, Size: size}
}

// Clone returns a deep copy of the term.
func (t *Term) Clone() *Term {
	if t == nil {
		return nil
	}
	out := *t
	if len(t.Args) > 0 {
		out.Args = make([]*Term, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = a.Clone()
		}
	}
	return &out
}

// ConstValue returns the value of an integer constant term.
func (t *Term) ConstValue() (uint64, bool) {
	if t == nil || t.Kind != TermIntConst {
		return 0, false
	}
	return t.Value, true
}

func (t *Term) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	t.format(&sb)
	return sb.String()
}

func (t *Term) format(sb *strings.Builder) {
	switch t.Kind {
	case TermIntConst:
		fmt.Fprintf(sb, "0x%x", t.Value)
	case TermRegister:
		sb.WriteString(t.Reg)
	case TermMemory:
		fmt.Fprintf(sb, "[0x%x]", uint64(t.Addr))
	case TermDeref:
		sb.WriteString("*(")
		t.arg(0).format(sb)
		sb.WriteString(")")
	case TermUnary:
		sb.WriteString(t.Op)
		t.arg(0).format(sb)
	case TermBinary:
		sb.WriteString("(")
		t.arg(0).format(sb)
		sb.WriteString(" " + t.Op + " ")
		t.arg(1).format(sb)
		sb.WriteString(")")
	case TermIntrinsic:
		sb.WriteString("intrinsic<" + t.Op + ">")
	default:
		sb.WriteString("<term?>")
	}
}

func (t *Term) arg(i int) *Term {
	if i < len(t.Args) && t.Args[i] != nil {
		return t.Args[i]
	}
	return &Term{Kind: TermIntrinsic, Op: "missing"}
}
