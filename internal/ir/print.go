package ir

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Print writes the block as a Graphviz DOT node followed by its incoming
// edges. An unattached block has no edges.
func (b *BasicBlock) Print(w io.Writer) error {
	bw := bufio.NewWriter(w)
	printBlock(bw, b)
	return bw.Flush()
}

// Print writes the whole function as a DOT digraph.
func (f *Function) Print(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", quoteDOT(f.Name))
	fmt.Fprintf(bw, "node [shape=box, fontname=\"Courier\"];\n")
	for _, b := range f.blocks {
		printBlock(bw, b)
	}
	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}

func printBlock(w *bufio.Writer, b *BasicBlock) {
	var label strings.Builder
	fmt.Fprintf(&label, "%s\\laddress: %s\\lsuccessor: %s\\l", b.Name(), b.addr, b.succAddr)
	for _, s := range b.stmts {
		label.WriteString(escapeDOT(s.String()))
		label.WriteString("\\l")
	}
	fmt.Fprintf(w, "%s [label=\"%s\"];\n", b.nodeID(), label.String())

	if b.fn == nil {
		return
	}
	for _, pred := range b.fn.Predecessors(b) {
		style := ""
		if !jumpsTo(b.fn, pred, b) {
			style = " [style=dashed]"
		}
		fmt.Fprintf(w, "%s -> %s%s;\n", pred.nodeID(), b.nodeID(), style)
	}
}

// jumpsTo reports whether the edge from -> to comes from an explicit jump
// rather than fallthrough.
func jumpsTo(f *Function, from, to *BasicBlock) bool {
	j := from.Jump()
	if j == nil {
		return false
	}
	found := false
	mark := func(t *BasicBlock) {
		if t == to {
			found = true
		}
	}
	collectTargets(f, j.Jump.Then, mark)
	if j.Jump.Cond != nil {
		collectTargets(f, j.Jump.Else, mark)
	}
	return found
}

func escapeDOT(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\l`)
	return r.Replace(s)
}

func quoteDOT(s string) string {
	if s == "" {
		s = "function"
	}
	return `"` + escapeDOT(s) + `"`
}
