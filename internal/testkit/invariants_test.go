package testkit_test

import (
	"strings"
	"testing"

	"dcir/internal/ir"
	"dcir/internal/testkit"
)

func at(addr ir.ByteAddr, s *ir.Stmt) *ir.Stmt {
	s.Instr = &ir.InstrSnapshot{Addr: uint64(addr), Size: 1, Text: "x"}
	return s
}

func TestCheckBlockInvariants(t *testing.T) {
	good := ir.NewBasicBlock(ir.Addr(0x10),
		at(0x10, ir.NewKill(ir.Register("eax", 32))),
		at(0x11, ir.NewReturn()),
	)
	if err := testkit.CheckBlockInvariants(good); err != nil {
		t.Fatalf("good block: %v", err)
	}

	backwards := ir.NewBasicBlock(ir.Addr(0x10),
		at(0x12, ir.NewKill(ir.Register("eax", 32))),
		at(0x11, ir.NewReturn()),
	)
	if err := testkit.CheckBlockInvariants(backwards); err == nil || !strings.Contains(err.Error(), "follows") {
		t.Fatalf("expected ordering error, got %v", err)
	}

	early := ir.NewBasicBlock(ir.Addr(0x10), at(0x8, ir.NewReturn()))
	if err := testkit.CheckBlockInvariants(early); err == nil || !strings.Contains(err.Error(), "before block start") {
		t.Fatalf("expected start error, got %v", err)
	}

	if err := testkit.CheckBlockInvariants(nil); err == nil {
		t.Fatalf("expected error for nil block")
	}
}

func TestCheckFunctionInvariants(t *testing.T) {
	f := ir.NewFunction("f")
	a := ir.NewBasicBlock(ir.Addr(0x10), ir.NewGoto(ir.JumpTarget{Addr: ir.IntConst(0x20, 64)}))
	b := ir.NewBasicBlock(ir.Addr(0x20), ir.NewReturn())
	for _, blk := range []*ir.BasicBlock{a, b} {
		if err := f.AddBasicBlock(blk); err != nil {
			t.Fatalf("AddBasicBlock: %v", err)
		}
	}
	if err := testkit.CheckFunctionInvariants(f); err != nil {
		t.Fatalf("good function: %v", err)
	}

	// A detached block still pointed at by a resolved jump is a dangling target.
	f.ResolveJumpTargets()
	if err := f.RemoveBasicBlock(b); err != nil {
		t.Fatalf("RemoveBasicBlock: %v", err)
	}
	if err := testkit.CheckFunctionInvariants(f); err == nil {
		t.Fatalf("expected dangling target error")
	}
}
