// Package irgen builds IR functions from decoded instruction listings.
package irgen

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"dcir/internal/ir"
	"dcir/internal/listing"
	"dcir/internal/trace"
)

// region is a block under construction together with the address range
// of the instructions it was built from.
type region struct {
	block      *ir.BasicBlock
	start, end ir.ByteAddr
}

type builder struct {
	ctx     context.Context
	src     *listing.Function
	regions []region
}

// Build lowers fn into an IR function. Blocks start at the entry, at every
// static jump target and after every instruction that ends straight-line
// flow; targets landing inside an already built block split it.
func Build(ctx context.Context, fn *listing.Function) (*ir.Function, error) {
	if fn == nil || len(fn.Instrs) == 0 {
		return nil, fmt.Errorf("irgen: empty listing")
	}
	span, ctx := trace.Start(ctx, trace.ScopeFunction, "irgen:"+fn.Name)
	defer span.End("")

	b := &builder{ctx: ctx, src: fn}
	if err := b.buildRegions(); err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name, err)
	}
	splits, err := b.splitAtTargets()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name, err)
	}
	out, err := b.assemble()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name, err)
	}
	resolved := out.ResolveJumpTargets()

	span.WithExtra("blocks", strconv.Itoa(out.Len())).
		WithExtra("splits", strconv.Itoa(splits)).
		WithExtra("resolved", strconv.Itoa(resolved))
	return out, nil
}

func (b *builder) buildRegions() error {
	var (
		cur     *region
		pending []ir.Insertion
	)
	flush := func(last *listing.Instruction) error {
		if cur == nil {
			return nil
		}
		if err := cur.block.AddStatements(pending); err != nil {
			return fmt.Errorf("block %s: flag fix-ups: %w", cur.block.Name(), err)
		}
		pending = pending[:0]
		if fallsThrough(last.Kind) {
			cur.block.SetSuccessorAddress(ir.Addr(cur.end))
		}
		b.regions = append(b.regions, *cur)
		cur = nil
		return nil
	}

	var prev *listing.Instruction
	for _, instr := range b.src.Instrs {
		if cur != nil && instr.Addr != cur.end {
			if err := flush(prev); err != nil {
				return err
			}
		}
		if cur == nil {
			cur = &region{block: ir.NewBasicBlock(ir.Addr(instr.Addr)), start: instr.Addr, end: instr.Addr}
		}

		l := lower(instr)
		for _, s := range l.stmts {
			if err := cur.block.AddStatement(s); err != nil {
				return fmt.Errorf("at %s: %w", instr.Addr, err)
			}
		}
		pending = append(pending, l.fixups...)
		cur.end = instr.End()
		prev = instr

		if endsBlock(instr.Kind) {
			if err := flush(instr); err != nil {
				return err
			}
		}
	}
	return flush(prev)
}

// splitAtTargets makes every entry and static jump target that lands inside
// a region the start of its own block.
func (b *builder) splitAtTargets() (int, error) {
	targets := []ir.ByteAddr{b.src.Entry}
	for _, instr := range b.src.Instrs {
		if instr.Kind != listing.KindJump && instr.Kind != listing.KindCondJump {
			continue
		}
		if a, ok := instr.Target.Get(); ok {
			targets = append(targets, a)
		}
	}
	slices.Sort(targets)
	targets = slices.Compact(targets)

	splits := 0
	for _, t := range targets {
		i := sort.Search(len(b.regions), func(i int) bool { return b.regions[i].end > t })
		if i == len(b.regions) || b.regions[i].start > t {
			trace.Point(b.ctx, trace.ScopeBlock, "unresolved-target", t.String())
			continue
		}
		r := &b.regions[i]
		if r.start == t {
			continue
		}
		if _, ok := b.src.Find(t); !ok {
			trace.Point(b.ctx, trace.ScopeBlock, "target-inside-instruction", t.String())
			continue
		}

		head := r.block
		tail, err := head.Split(splitIndex(head, t), ir.Addr(t))
		if err != nil {
			return splits, err
		}
		// The head now flows straight into the tail.
		head.SetSuccessorAddress(ir.Addr(t))
		trace.Point(b.ctx, trace.ScopeBlock, "split", fmt.Sprintf("%s at %s", head.Name(), t))

		next := region{block: tail, start: t, end: r.end}
		r.end = t
		b.regions = slices.Insert(b.regions, i+1, next)
		splits++
	}
	return splits, nil
}

// splitIndex returns the index of the first statement lowered from an
// instruction at or after addr.
func splitIndex(block *ir.BasicBlock, addr ir.ByteAddr) int {
	for i, s := range block.All() {
		if s.Instr != nil && s.Instr.Address() >= addr {
			return i
		}
	}
	return block.Len()
}

// assemble attaches the regions to a new function, entry block first.
func (b *builder) assemble() (*ir.Function, error) {
	out := ir.NewFunction(b.src.Name)
	entry := slices.IndexFunc(b.regions, func(r region) bool { return r.start == b.src.Entry })
	if entry < 0 {
		return nil, fmt.Errorf("entry %s does not start a block", b.src.Entry)
	}
	if err := out.AddBasicBlock(b.regions[entry].block); err != nil {
		return nil, err
	}
	for i, r := range b.regions {
		if i == entry {
			continue
		}
		if err := out.AddBasicBlock(r.block); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func endsBlock(k listing.Kind) bool {
	switch k {
	case listing.KindJump, listing.KindCondJump, listing.KindReturn, listing.KindHalt:
		return true
	}
	return false
}

func fallsThrough(k listing.Kind) bool {
	switch k {
	case listing.KindJump, listing.KindReturn, listing.KindHalt:
		return false
	}
	return true
}
