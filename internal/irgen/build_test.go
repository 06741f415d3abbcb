package irgen_test

import (
	"context"
	"testing"

	"dcir/internal/ir"
	"dcir/internal/irgen"
	"dcir/internal/listing"
	"dcir/internal/testkit"
)

// loop jumps back into the middle of the entry block, which forces a split.
const loop = `
[[function]]
name = "loop"
entry = 0x10

[[function.instr]]
addr = 0x10
size = 5
mnemonic = "mov"
operands = ["eax", "1"]

[[function.instr]]
addr = 0x15
size = 3
mnemonic = "cmp"
operands = ["eax", "0"]

[[function.instr]]
addr = 0x18
size = 2
mnemonic = "jz"
kind = "cjump"
target = 0x20

[[function.instr]]
addr = 0x1a
size = 3
mnemonic = "mov"
operands = ["ebx", "2"]

[[function.instr]]
addr = 0x1d
size = 3
mnemonic = "jmp"
kind = "jump"
target = 0x15

[[function.instr]]
addr = 0x20
size = 1
mnemonic = "ret"
kind = "ret"
`

func parseOne(t *testing.T, src string) *listing.Function {
	t.Helper()
	file, err := listing.Parse("test.toml", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(file.Functions) != 1 {
		t.Fatalf("want 1 function, got %d", len(file.Functions))
	}
	return file.Functions[0]
}

func names(blocks []*ir.BasicBlock) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Name()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildSplitsAtInnerTarget(t *testing.T) {
	fn, err := irgen.Build(context.Background(), parseOne(t, loop))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := testkit.CheckFunctionInvariants(fn); err != nil {
		t.Fatalf("invariants: %v", err)
	}

	got := names(fn.Blocks())
	want := []string{"bb_10", "bb_15", "bb_1a", "bb_20"}
	if !equalStrings(got, want) {
		t.Fatalf("blocks = %v, want %v", got, want)
	}

	head := fn.BlockAt(0x10)
	if head.Len() != 1 {
		t.Fatalf("head has %d statements, want 1", head.Len())
	}
	if a, ok := head.SuccessorAddress().Get(); !ok || a != 0x15 {
		t.Fatalf("head successor = %s, want 0x15", head.SuccessorAddress())
	}

	tail := fn.BlockAt(0x15)
	if a, ok := tail.SuccessorAddress().Get(); !ok || a != 0x1a {
		t.Fatalf("tail successor = %s, want 0x1a", tail.SuccessorAddress())
	}
	if !tail.Terminator().IsConditional() {
		t.Fatalf("tail terminator = %s, want conditional jump", tail.Terminator())
	}

	if got := names(fn.Successors(fn.BlockAt(0x1a))); !equalStrings(got, []string{"bb_15"}) {
		t.Fatalf("successors of bb_1a = %v", got)
	}
	if got := names(fn.Predecessors(tail)); !equalStrings(got, []string{"bb_10", "bb_1a"}) {
		t.Fatalf("predecessors of bb_15 = %v", got)
	}
	if fn.BlockAt(0x1a).SuccessorAddress().IsSet() {
		t.Fatalf("block ending in goto must not have a successor address")
	}
}

func TestBuildInsertsFlagFixupsInOrder(t *testing.T) {
	fn, err := irgen.Build(context.Background(), parseOne(t, loop))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	stmts := fn.BlockAt(0x15).Statements()
	if len(stmts) != 4 {
		t.Fatalf("want 4 statements, got %d: %v", len(stmts), stmts)
	}
	wantDst := []string{"zf", "sf", "cf"}
	for i, reg := range wantDst {
		s := stmts[i]
		if s.Kind != ir.StmtAssign || s.Assign.Dst.Reg != reg {
			t.Fatalf("statement %d = %s, want assignment to %s", i, s, reg)
		}
		if s.Instr == nil || s.Instr.Address() != 0x15 {
			t.Fatalf("statement %d not attributed to cmp", i)
		}
	}
}

func TestBuildEntryFirst(t *testing.T) {
	src := `
[[function]]
name = "f"
entry = 0x20

[[function.instr]]
addr = 0x10
size = 1
mnemonic = "ret"
kind = "ret"

[[function.instr]]
addr = 0x20
size = 2
mnemonic = "jmp"
kind = "jump"
target = 0x10
`
	fn, err := irgen.Build(context.Background(), parseOne(t, src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := fn.Entry().Name(); got != "bb_20" {
		t.Fatalf("entry = %s, want bb_20", got)
	}
	if got := names(fn.Successors(fn.Entry())); !equalStrings(got, []string{"bb_10"}) {
		t.Fatalf("entry successors = %v", got)
	}
}

func TestBuildGapStartsBlock(t *testing.T) {
	src := `
[[function]]
name = "gap"
entry = 0x10

[[function.instr]]
addr = 0x10
size = 2
mnemonic = "nop"

[[function.instr]]
addr = 0x40
size = 1
mnemonic = "ret"
kind = "ret"
`
	fn, err := irgen.Build(context.Background(), parseOne(t, src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if fn.Len() != 2 {
		t.Fatalf("want 2 blocks, got %v", names(fn.Blocks()))
	}
	first := fn.Entry()
	if !first.IsEmpty() {
		t.Fatalf("nop block should be empty, got %v", first.Statements())
	}
	if a, ok := first.SuccessorAddress().Get(); !ok || a != 0x12 {
		t.Fatalf("successor = %s, want 0x12", first.SuccessorAddress())
	}
}

func TestBuildEmptyListing(t *testing.T) {
	if _, err := irgen.Build(context.Background(), &listing.Function{Name: "empty"}); err == nil {
		t.Fatalf("expected error for empty listing")
	}
}
