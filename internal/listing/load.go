package listing

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"dcir/internal/ir"
)

// File is a decoded listing file.
type File struct {
	Path      string
	Digest    Digest
	Functions []*Function
}

type rawFile struct {
	Functions []rawFunction `toml:"function"`
}

type rawFunction struct {
	Name   string     `toml:"name"`
	Entry  *int64     `toml:"entry"`
	Instrs []rawInstr `toml:"instr"`
}

type rawInstr struct {
	Addr     int64    `toml:"addr"`
	Size     int64    `toml:"size"`
	Mnemonic string   `toml:"mnemonic"`
	Operands []string `toml:"operands"`
	Kind     string   `toml:"kind"`
	Target   *int64   `toml:"target"`
	Cond     string   `toml:"cond"`
}

// Load reads and decodes the listing at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes listing text. name is used in error messages only.
func Parse(name string, data []byte) (*File, error) {
	var raw rawFile
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", name, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", name, strings.Join(keys, ", "))
	}
	if len(raw.Functions) == 0 {
		return nil, fmt.Errorf("%s: no [[function]] tables", name)
	}

	out := &File{Path: name, Digest: Sum(data)}
	seen := make(map[string]bool, len(raw.Functions))
	for i := range raw.Functions {
		fn, err := convertFunction(&raw.Functions[i])
		if err != nil {
			return nil, fmt.Errorf("%s: function #%d: %w", name, i, err)
		}
		if seen[fn.Name] {
			return nil, fmt.Errorf("%s: duplicate function %q", name, fn.Name)
		}
		seen[fn.Name] = true
		out.Functions = append(out.Functions, fn)
	}
	return out, nil
}

func convertFunction(rf *rawFunction) (*Function, error) {
	// Demangled names may arrive decomposed; compare them in NFC.
	name := norm.NFC.String(strings.TrimSpace(rf.Name))
	if name == "" {
		return nil, errors.New("missing name")
	}
	if len(rf.Instrs) == 0 {
		return nil, fmt.Errorf("%s: no instructions", name)
	}

	fn := &Function{Name: name, Instrs: make([]*Instruction, 0, len(rf.Instrs))}
	for i := range rf.Instrs {
		instr, err := convertInstr(&rf.Instrs[i])
		if err != nil {
			return nil, fmt.Errorf("%s: instr #%d: %w", name, i, err)
		}
		fn.Instrs = append(fn.Instrs, instr)
	}
	slices.SortStableFunc(fn.Instrs, func(a, b *Instruction) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	for i := 1; i < len(fn.Instrs); i++ {
		prev, cur := fn.Instrs[i-1], fn.Instrs[i]
		if prev.End() > cur.Addr {
			return nil, fmt.Errorf("%s: instruction at %s overlaps %s", name, cur.Addr, prev.Addr)
		}
	}

	fn.Entry = fn.Instrs[0].Addr
	if rf.Entry != nil {
		entry, err := toAddr(*rf.Entry)
		if err != nil {
			return nil, fmt.Errorf("%s: entry: %w", name, err)
		}
		if _, ok := fn.Find(entry); !ok {
			return nil, fmt.Errorf("%s: entry %s is not an instruction address", name, entry)
		}
		fn.Entry = entry
	}
	return fn, nil
}

func convertInstr(ri *rawInstr) (*Instruction, error) {
	addr, err := toAddr(ri.Addr)
	if err != nil {
		return nil, fmt.Errorf("addr: %w", err)
	}
	size, err := safecast.Conv[uint64](ri.Size)
	if err != nil || size == 0 {
		return nil, fmt.Errorf("at %s: invalid size %d", addr, ri.Size)
	}
	mnemonic := strings.TrimSpace(ri.Mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("at %s: missing mnemonic", addr)
	}
	kind, ok := parseKind(ri.Kind)
	if !ok {
		return nil, fmt.Errorf("at %s: unknown kind %q (expected: plain|jump|cjump|call|ret|halt)", addr, ri.Kind)
	}

	instr := &Instruction{
		Addr:     addr,
		Size:     size,
		Mnemonic: mnemonic,
		Operands: ri.Operands,
		Kind:     kind,
		Cond:     strings.TrimSpace(ri.Cond),
	}
	if ri.Target != nil {
		target, err := toAddr(*ri.Target)
		if err != nil {
			return nil, fmt.Errorf("at %s: target: %w", addr, err)
		}
		instr.Target = ir.Addr(target)
	}
	if kind == KindCondJump && !instr.Target.IsSet() {
		return nil, fmt.Errorf("at %s: conditional jump without target", addr)
	}
	return instr, nil
}

func toAddr(v int64) (ir.ByteAddr, error) {
	a, err := ir.AddrFromInt(v)
	if err != nil {
		return 0, err
	}
	return a.MustGet(), nil
}
