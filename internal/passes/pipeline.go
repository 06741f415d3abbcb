// Package passes holds IR-to-IR transformations over basic blocks and the
// pipeline that runs them.
package passes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"dcir/internal/ir"
	"dcir/internal/observ"
	"dcir/internal/trace"
)

// Pass is one named transformation. Run reports how many changes it made.
type Pass struct {
	Name string
	Run  func(ctx context.Context, f *ir.Function) (int, error)
}

var registry = map[string]Pass{
	"dce":         {Name: "dce", Run: EliminateDeadBlocks},
	"fallthrough": {Name: "fallthrough", Run: RemoveFallthroughJumps},
	"dup-returns": {Name: "dup-returns", Run: func(ctx context.Context, f *ir.Function) (int, error) {
		return DuplicateReturnTails(ctx, f, DefaultTailLimit)
	}},
}

// Default is the pass order used when none is configured.
var Default = []string{"dce", "fallthrough", "dup-returns"}

// Names lists the registered pass names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Parse splits a comma separated pass list. "none" selects no passes and
// an empty string selects Default.
func Parse(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return Default, nil
	case "none":
		return nil, nil
	}
	var out []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("unknown pass %q (available: %s)", name, strings.Join(Names(), ", "))
		}
		out = append(out, name)
	}
	return out, nil
}

// Pipeline runs a fixed sequence of passes.
type Pipeline struct {
	passes []Pass
	timer  *observ.Timer
}

// NewPipeline resolves names against the registry. timer may be nil.
func NewPipeline(names []string, timer *observ.Timer) (*Pipeline, error) {
	p := &Pipeline{timer: timer}
	for _, name := range names {
		pass, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown pass %q", name)
		}
		p.passes = append(p.passes, pass)
	}
	return p, nil
}

// Names returns the pass names in run order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.passes))
	for i, pass := range p.passes {
		out[i] = pass.Name
	}
	return out
}

// Run applies every pass to f in order and stops at the first error.
func (p *Pipeline) Run(ctx context.Context, f *ir.Function) error {
	for _, pass := range p.passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		span, pctx := trace.Start(ctx, trace.ScopePass, "pass:"+pass.Name)
		start := time.Now()
		changed, err := pass.Run(pctx, f)
		p.timer.Add("pass:"+pass.Name, time.Since(start))
		span.WithExtra("function", f.Name).WithExtra("changed", strconv.Itoa(changed))
		if err != nil {
			span.End("error")
			return fmt.Errorf("%s: pass %s: %w", f.Name, pass.Name, err)
		}
		span.End("")
	}
	return nil
}
