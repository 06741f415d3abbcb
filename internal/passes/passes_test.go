package passes_test

import (
	"context"
	"slices"
	"testing"

	"dcir/internal/ir"
	"dcir/internal/observ"
	"dcir/internal/passes"
	"dcir/internal/testkit"
	"dcir/internal/trace"
)

func assign(reg string, v uint64) *ir.Stmt {
	return ir.NewAssign(ir.Register(reg, 32), ir.IntConst(v, 32))
}

func gotoAddr(a ir.ByteAddr) *ir.Stmt {
	return ir.NewGoto(ir.JumpTarget{Addr: ir.IntConst(uint64(a), 64)})
}

func mustFunction(t *testing.T, blocks ...*ir.BasicBlock) *ir.Function {
	t.Helper()
	f := ir.NewFunction("f")
	for _, b := range blocks {
		if err := f.AddBasicBlock(b); err != nil {
			t.Fatalf("AddBasicBlock: %v", err)
		}
	}
	f.ResolveJumpTargets()
	return f
}

// twoReturns has two blocks jumping to the same return block:
//
//	0x10: if zf goto 0x20 else 0x30
//	0x20: a = 1; goto 0x40
//	0x30: a = 2; goto 0x40
//	0x40: return
func twoReturns(t *testing.T) *ir.Function {
	t.Helper()
	branch := ir.NewBranch(ir.Register("zf", 1),
		ir.JumpTarget{Addr: ir.IntConst(0x20, 64)},
		ir.JumpTarget{Addr: ir.IntConst(0x30, 64)})
	return mustFunction(t,
		ir.NewBasicBlock(ir.Addr(0x10), branch),
		ir.NewBasicBlock(ir.Addr(0x20), assign("a", 1), gotoAddr(0x40)),
		ir.NewBasicBlock(ir.Addr(0x30), assign("a", 2), gotoAddr(0x40)),
		ir.NewBasicBlock(ir.Addr(0x40), ir.NewReturn()),
	)
}

func TestRemoveFallthroughJumps(t *testing.T) {
	jmp := gotoAddr(0x20)
	jmp.Instr = &ir.InstrSnapshot{Addr: 0x1e, Size: 2, Text: "jmp 0x20"}
	far := gotoAddr(0x10)
	far.Instr = &ir.InstrSnapshot{Addr: 0x24, Size: 2, Text: "jmp 0x10"}

	a := ir.NewBasicBlock(ir.Addr(0x10), assign("a", 1), jmp)
	b := ir.NewBasicBlock(ir.Addr(0x20), assign("b", 2), far)
	f := mustFunction(t, a, b)

	n, err := passes.RemoveFallthroughJumps(context.Background(), f)
	if err != nil {
		t.Fatalf("RemoveFallthroughJumps: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d jumps, want 1", n)
	}
	if a.Len() != 1 || a.Jump() != nil {
		t.Fatalf("jump to next block not removed: %v", a.Statements())
	}
	if jmp.Block() != nil {
		t.Fatalf("popped jump still owned by %s", jmp.Block())
	}
	if got := a.SuccessorAddress(); !got.Equal(ir.Addr(0x20)) {
		t.Fatalf("successor = %s, want 0x20", got)
	}
	if b.Jump() != far {
		t.Fatalf("backward jump must stay")
	}
	if succ := f.Successors(a); len(succ) != 1 || succ[0] != b {
		t.Fatalf("successors of a = %v, want [bb_20]", succ)
	}
	if err := testkit.CheckFunctionInvariants(f); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestRemoveFallthroughJumpsKeepsConditional(t *testing.T) {
	br := ir.NewBranch(ir.Register("zf", 1), ir.JumpTarget{Addr: ir.IntConst(0x20, 64)}, ir.JumpTarget{})
	a := ir.NewBasicBlock(ir.Addr(0x10), br)
	a.SetSuccessorAddress(ir.Addr(0x20))
	f := mustFunction(t, a, ir.NewBasicBlock(ir.Addr(0x20), ir.NewReturn()))

	n, err := passes.RemoveFallthroughJumps(context.Background(), f)
	if err != nil || n != 0 {
		t.Fatalf("got n=%d err=%v, want nothing removed", n, err)
	}
}

func TestDuplicateReturnTails(t *testing.T) {
	f := twoReturns(t)
	ret := f.BlockAt(0x40)
	second := f.BlockAt(0x30)

	n, err := passes.DuplicateReturnTails(context.Background(), f, passes.DefaultTailLimit)
	if err != nil {
		t.Fatalf("DuplicateReturnTails: %v", err)
	}
	if n != 1 {
		t.Fatalf("made %d copies, want 1", n)
	}
	if f.Len() != 5 {
		t.Fatalf("function has %d blocks, want 5", f.Len())
	}

	blocks := f.Blocks()
	i := slices.Index(blocks, second)
	clone := blocks[i+1]
	if clone.Address().IsSet() {
		t.Fatalf("copy has address %s, want none", clone.Address())
	}
	if clone.Return() == nil {
		t.Fatalf("copy does not end in return: %v", clone.Statements())
	}
	if clone.Statement(0) == ret.Statement(0) {
		t.Fatalf("copy shares statements with the original")
	}

	if succ := f.Successors(second); len(succ) != 1 || succ[0] != clone {
		t.Fatalf("successors of bb_30 = %v, want the copy", succ)
	}
	if preds := f.Predecessors(ret); len(preds) != 1 || preds[0] != f.BlockAt(0x20) {
		t.Fatalf("predecessors of bb_40 = %v, want [bb_20]", preds)
	}
	if err := testkit.CheckFunctionInvariants(f); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestDuplicateReturnTailsRespectsLimit(t *testing.T) {
	f := twoReturns(t)
	n, err := passes.DuplicateReturnTails(context.Background(), f, 0)
	if err != nil || n != 0 {
		t.Fatalf("got n=%d err=%v, want no copies", n, err)
	}
}

func TestEliminateDeadBlocks(t *testing.T) {
	dead := ir.NewBasicBlock(ir.Addr(0x20), assign("x", 1), gotoAddr(0x20))
	f := mustFunction(t,
		ir.NewBasicBlock(ir.Addr(0x10), ir.NewReturn()),
		dead,
	)

	n, err := passes.EliminateDeadBlocks(context.Background(), f)
	if err != nil {
		t.Fatalf("EliminateDeadBlocks: %v", err)
	}
	if n != 1 || f.Len() != 1 {
		t.Fatalf("removed %d, %d blocks left; want 1 and 1", n, f.Len())
	}
	if dead.Function() != nil {
		t.Fatalf("removed block still attached")
	}
	if f.BlockAt(0x20) != nil {
		t.Fatalf("removed block still indexed")
	}
}

func TestEliminateDeadBlocksKeepsReachable(t *testing.T) {
	f := twoReturns(t)
	n, err := passes.EliminateDeadBlocks(context.Background(), f)
	if err != nil || n != 0 {
		t.Fatalf("got n=%d err=%v, want nothing removed", n, err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "", want: passes.Default},
		{in: "none", want: nil},
		{in: "dce, fallthrough", want: []string{"dce", "fallthrough"}},
		{in: "dce,,dup-returns", want: []string{"dce", "dup-returns"}},
		{in: "dce,inline", wantErr: true},
	}
	for _, tt := range tests {
		got, err := passes.Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPipelineRun(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelPhase)
	ctx := trace.WithTracer(context.Background(), ring)
	timer := observ.NewTimer()

	p, err := passes.NewPipeline(passes.Default, timer)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	f := twoReturns(t)
	if err := p.Run(ctx, f); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.Len() != 5 {
		t.Fatalf("function has %d blocks after pipeline, want 5", f.Len())
	}

	report := timer.Report()
	if len(report.Phases) != len(passes.Default) {
		t.Fatalf("timer has %d phases, want %d", len(report.Phases), len(passes.Default))
	}

	ends := 0
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanEnd && ev.Scope == trace.ScopePass {
			ends++
			if ev.Extra["function"] != "f" {
				t.Errorf("span %s missing function extra: %v", ev.Name, ev.Extra)
			}
		}
		if ev.Scope == trace.ScopeBlock {
			t.Errorf("block event %s emitted at phase level", ev.Name)
		}
	}
	if ends != len(passes.Default) {
		t.Fatalf("got %d pass spans, want %d", ends, len(passes.Default))
	}
}

func TestPipelineCancelled(t *testing.T) {
	p, err := passes.NewPipeline([]string{"dce"}, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx, twoReturns(t)); err == nil {
		t.Fatalf("expected context error")
	}
}
