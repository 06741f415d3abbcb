package testkit

import (
	"errors"
	"fmt"
	"slices"

	"dcir/internal/ir"
)

// CheckBlockInvariants runs the structural checks that must hold for any
// block after any sequence of mutations:
// 1) every statement is non-nil, owned by b and appears once
// 2) statements lowered from instructions keep address order and do not
// start before the block address
// 3) an attached block is listed by its function
func CheckBlockInvariants(b *ir.BasicBlock) error {
	if b == nil {
		return fmt.Errorf("nil block")
	}
	seen := make(map[*ir.Stmt]struct{}, b.Len())
	var prev ir.ByteAddr
	havePrev := false
	for i, s := range b.All() {
		if s == nil {
			return fmt.Errorf("%s: statement %d is nil", b.Name(), i)
		}
		if s.Block() != b {
			return fmt.Errorf("%s: statement %d (%s) is owned by %v", b.Name(), i, s, s.Block())
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%s: statement %d (%s) appears twice", b.Name(), i, s)
		}
		seen[s] = struct{}{}

		if s.Instr == nil {
			continue
		}
		at := s.Instr.Address()
		if start, ok := b.Address().Get(); ok && at < start {
			return fmt.Errorf("%s: statement %d (%s) lowered from %s before block start", b.Name(), i, s, at)
		}
		if havePrev && at < prev {
			return fmt.Errorf("%s: statement %d (%s) at %s follows %s", b.Name(), i, s, at, prev)
		}
		prev, havePrev = at, true
	}

	if fn := b.Function(); fn != nil && !slices.Contains(fn.Blocks(), b) {
		return fmt.Errorf("%s: points at function %s which does not list it", b.Name(), fn.Name)
	}
	return nil
}

// CheckFunctionInvariants checks every block of f, the function-level
// validation and the symmetry of the control-flow graph.
func CheckFunctionInvariants(f *ir.Function) error {
	if f == nil {
		return fmt.Errorf("nil function")
	}
	var errs []error
	for _, b := range f.Blocks() {
		if b.Function() != f {
			errs = append(errs, fmt.Errorf("%s: function back-reference is %v", b.Name(), b.Function()))
		}
		if err := CheckBlockInvariants(b); err != nil {
			errs = append(errs, err)
		}
		for _, s := range f.Successors(b) {
			if !slices.Contains(f.Predecessors(s), b) {
				errs = append(errs, fmt.Errorf("edge %s -> %s missing from predecessors", b.Name(), s.Name()))
			}
		}
		for _, p := range f.Predecessors(b) {
			if !slices.Contains(f.Successors(p), b) {
				errs = append(errs, fmt.Errorf("edge %s -> %s missing from successors", p.Name(), b.Name()))
			}
		}
	}
	if err := ir.Validate(f, ir.ValidateOptions{}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
