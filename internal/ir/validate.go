package ir

import (
	"errors"
	"fmt"
)

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	// Strict also rejects jumps and returns that are not the last statement.
	// Repair passes may leave those behind temporarily, so this is off by default.
	Strict bool
}

// Validate checks function and block invariants and returns every violation.
func Validate(f *Function, opts ValidateOptions) error {
	if f == nil {
		return nil
	}
	var errs []error

	if err := validateMembership(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateOwnership(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateTargets(f); err != nil {
		errs = append(errs, err)
	}
	if opts.Strict {
		if err := validateTerminators(f); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("function %s: %w", f.Name, errors.Join(errs...))
}

// validateMembership checks back-references and address uniqueness.
func validateMembership(f *Function) error {
	var errs []error
	seen := make(map[ByteAddr]*BasicBlock, len(f.blocks))
	for i, b := range f.blocks {
		if b.fn != f {
			errs = append(errs, fmt.Errorf("block #%d %s: function back-reference does not point to owner", i, b.Name()))
		}
		a, ok := b.addr.Get()
		if !ok {
			continue
		}
		if prev, dup := seen[a]; dup && prev != b {
			errs = append(errs, fmt.Errorf("block #%d %s: duplicate address %s", i, b.Name(), a))
		}
		seen[a] = b
		if f.byAddr[a] != b {
			errs = append(errs, fmt.Errorf("block #%d %s: missing from address index", i, b.Name()))
		}
	}
	return errors.Join(errs...)
}

// validateOwnership checks that every statement points back at its block
// and appears only once.
func validateOwnership(f *Function) error {
	var errs []error
	owner := make(map[*Stmt]*BasicBlock)
	for _, b := range f.blocks {
		for j, s := range b.stmts {
			if s == nil {
				errs = append(errs, fmt.Errorf("%s[%d]: nil statement", b.Name(), j))
				continue
			}
			if s.block != b {
				errs = append(errs, fmt.Errorf("%s[%d]: statement %q has wrong owner", b.Name(), j, s))
			}
			if prev, dup := owner[s]; dup {
				errs = append(errs, fmt.Errorf("%s[%d]: statement %q also appears in %s", b.Name(), j, s, prev.Name()))
			}
			owner[s] = b
		}
	}
	return errors.Join(errs...)
}

// validateTargets checks that resolved jump targets belong to f.
func validateTargets(f *Function) error {
	var errs []error
	var check func(b *BasicBlock, t JumpTarget)
	check = func(b *BasicBlock, t JumpTarget) {
		if t.Block != nil && t.Block.fn != f {
			errs = append(errs, fmt.Errorf("%s: jump target %s is not in function", b.Name(), t.Block.Name()))
		}
		for _, e := range t.Table {
			check(b, e)
		}
	}
	for _, b := range f.blocks {
		for _, s := range b.stmts {
			if s.IsJump() {
				check(b, s.Jump.Then)
				check(b, s.Jump.Else)
			}
		}
	}
	return errors.Join(errs...)
}

// validateTerminators checks that jumps and returns only end blocks.
func validateTerminators(f *Function) error {
	var errs []error
	for _, b := range f.blocks {
		for j, s := range b.stmts {
			if s.IsTerminator() && j != len(b.stmts)-1 {
				errs = append(errs, fmt.Errorf("%s[%d]: %s is not the last statement", b.Name(), j, s.Kind))
			}
		}
	}
	return errors.Join(errs...)
}
