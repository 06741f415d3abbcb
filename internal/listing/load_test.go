package listing_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dcir/internal/ir"
	"dcir/internal/listing"
)

const sample = `
[[function]]
name = "main"
entry = 0x1000

[[function.instr]]
addr = 0x1005
size = 3
mnemonic = "cmp"
operands = ["eax", "0"]

[[function.instr]]
addr = 0x1000
size = 5
mnemonic = "mov"
operands = ["eax", "1"]

[[function.instr]]
addr = 0x1008
size = 2
mnemonic = "jz"
kind = "cjump"
cond = "zf"
target = 0x1000

[[function.instr]]
addr = 0x100a
size = 1
mnemonic = "ret"
kind = "ret"
`

func TestParseSortsAndConverts(t *testing.T) {
	f, err := listing.Parse("sample.toml", []byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(f.Functions))
	}
	fn := f.Functions[0]
	if fn.Name != "main" || fn.Entry != 0x1000 {
		t.Errorf("unexpected function header %q %s", fn.Name, fn.Entry)
	}
	wantAddrs := []ir.ByteAddr{0x1000, 0x1005, 0x1008, 0x100a}
	for i, want := range wantAddrs {
		if fn.Instrs[i].Addr != want {
			t.Errorf("instr %d: expected %s, got %s", i, want, fn.Instrs[i].Addr)
		}
	}
	jz := fn.Instrs[2]
	if jz.Kind != listing.KindCondJump || jz.Cond != "zf" || !jz.Target.Equal(ir.Addr(0x1000)) {
		t.Errorf("unexpected jz decoding: %+v", jz)
	}
	if jz.End() != 0x100a {
		t.Errorf("expected end 0x100a, got %s", jz.End())
	}
	if got := fn.Instrs[0].String(); got != "mov eax, 1" {
		t.Errorf("unexpected text %q", got)
	}
	if f.Digest.IsZero() {
		t.Errorf("expected a content digest")
	}
	if idx, ok := fn.Find(0x1008); !ok || idx != 2 {
		t.Errorf("Find(0x1008) = %d, %v", idx, ok)
	}
	if _, ok := fn.Find(0x1006); ok {
		t.Errorf("Find(0x1006) should miss")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no functions", ``, "no [[function]]"},
		{"bad toml", `[[function`, "failed to parse TOML"},
		{"unknown key", "[[function]]\nname=\"f\"\nbogus=1\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"nop\"", "unknown keys"},
		{"negative addr", "[[function]]\nname=\"f\"\n[[function.instr]]\naddr=-1\nsize=1\nmnemonic=\"nop\"", "addr"},
		{"zero size", "[[function]]\nname=\"f\"\n[[function.instr]]\naddr=0\nsize=0\nmnemonic=\"nop\"", "invalid size"},
		{"bad kind", "[[function]]\nname=\"f\"\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"nop\"\nkind=\"teleport\"", "unknown kind"},
		{"cjump without target", "[[function]]\nname=\"f\"\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"jz\"\nkind=\"cjump\"", "without target"},
		{"overlap", "[[function]]\nname=\"f\"\n[[function.instr]]\naddr=0\nsize=4\nmnemonic=\"a\"\n[[function.instr]]\naddr=2\nsize=1\nmnemonic=\"b\"", "overlaps"},
		{"bad entry", "[[function]]\nname=\"f\"\nentry=7\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"nop\"", "entry"},
		{"duplicate function", "[[function]]\nname=\"f\"\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"nop\"\n[[function]]\nname=\"f\"\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"nop\"", "duplicate function"},
		{"duplicate after NFC", "[[function]]\nname=\"caf\\u00e9\"\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"nop\"\n[[function]]\nname=\"cafe\\u0301\"\n[[function.instr]]\naddr=0\nsize=1\nmnemonic=\"nop\"", "duplicate function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := listing.Parse("x.toml", []byte(tt.text))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.toml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := listing.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Path != path || f.Digest != listing.Sum([]byte(sample)) {
		t.Errorf("unexpected path or digest")
	}
	if _, err := listing.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestCombineDependsOnParts(t *testing.T) {
	d := listing.Sum([]byte("x"))
	if listing.Combine(d, "a", "b") == listing.Combine(d, "ab") {
		t.Errorf("expected part boundaries to matter")
	}
	if listing.Combine(d, "a") != listing.Combine(d, "a") {
		t.Errorf("expected Combine to be deterministic")
	}
}
