package ir

import (
	"fmt"
	"io"
	"strings"
)

// DumpFunction writes a human-readable listing of f.
func DumpFunction(w io.Writer, f *Function) error {
	if w == nil || f == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "fn %s:\n", f.Name); err != nil {
		return err
	}
	for _, b := range f.blocks {
		if err := dumpBlock(w, f, b); err != nil {
			return err
		}
	}
	return nil
}

func dumpBlock(w io.Writer, f *Function, b *BasicBlock) error {
	header := fmt.Sprintf("  %s:", b.Name())
	if preds := f.Predecessors(b); len(preds) > 0 {
		names := make([]string, len(preds))
		for i, p := range preds {
			names[i] = p.Name()
		}
		header += " ; preds: " + strings.Join(names, ", ")
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, s := range b.stmts {
		if _, err := fmt.Fprintf(w, "    %s\n", s); err != nil {
			return err
		}
	}
	if fallsThrough(b) && b.succAddr.IsSet() {
		if _, err := fmt.Fprintf(w, "    ; falls through to %s\n", b.succAddr); err != nil {
			return err
		}
	}
	return nil
}
