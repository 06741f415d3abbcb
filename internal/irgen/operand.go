package irgen

import (
	"strconv"
	"strings"

	"dcir/internal/ir"
)

// parseOperand turns listing operand text into a term. Unrecognized text
// becomes a register of unknown size, which is what most of it is.
func parseOperand(s string) *ir.Term {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutPrefix(s, "["); ok {
		if inner, ok = strings.CutSuffix(inner, "]"); ok {
			return ir.Deref(parseExpr(inner), 0)
		}
	}
	return parseExpr(s)
}

func parseExpr(s string) *ir.Term {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "+-"); i > 0 {
		op := s[i : i+1]
		return ir.Binary(op, parseExpr(s[:i]), parseAtom(s[i+1:]))
	}
	return parseAtom(s)
}

func parseAtom(s string) *ir.Term {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return ir.IntConst(v, 0)
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return ir.IntConst(uint64(v), 0)
	}
	return ir.Register(strings.ToLower(s), registerSize(s))
}

// registerSize guesses the width of an x86 register name, 0 when unknown.
func registerSize(name string) uint16 {
	name = strings.ToLower(name)
	switch {
	case len(name) == 3 && name[0] == 'r':
		return 64
	case len(name) == 3 && name[0] == 'e':
		return 32
	case len(name) == 2 && (name[1] == 'x' || name[1] == 'p' || name[1] == 'i'):
		return 16
	case len(name) == 2 && (name[1] == 'l' || name[1] == 'h'):
		return 8
	case strings.HasPrefix(name, "r") && strings.HasSuffix(name, "d"):
		return 32
	case strings.HasPrefix(name, "r") && len(name) <= 3:
		return 64
	default:
		return 0
	}
}
