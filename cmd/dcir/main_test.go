package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const demoListing = `
[[function]]
name = "demo"
entry = 0x10

[[function.instr]]
addr = 0x10
size = 3
mnemonic = "cmp"
operands = ["eax", "0"]

[[function.instr]]
addr = 0x13
size = 2
mnemonic = "jz"
kind = "cjump"
target = 0x16

[[function.instr]]
addr = 0x15
size = 1
mnemonic = "nop"

[[function.instr]]
addr = 0x16
size = 1
mnemonic = "ret"
kind = "ret"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--color", "off", "--no-cache"}, args...))
	err := rootCmd.Execute()
	cleanup()
	return out.String(), err
}

func TestLoadProjectManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dcir.toml"), `
[project]
name = "demo"

[build]
jobs = 2
passes = ["dce"]
cache = false

[listings]
files = ["listings/a.toml"]
`)
	sub := filepath.Join(root, "listings")
	writeFile(t, filepath.Join(sub, "a.toml"), demoListing)

	m, ok, err := loadProjectManifest(sub)
	if err != nil || !ok {
		t.Fatalf("loadProjectManifest: ok=%v err=%v", ok, err)
	}
	if m.Config.Project.Name != "demo" || m.Config.Build.Jobs != 2 {
		t.Fatalf("unexpected config: %+v", m.Config)
	}
	if m.cacheEnabled() {
		t.Fatalf("cache = false was ignored")
	}
	paths := m.listingPaths()
	if len(paths) != 1 || paths[0] != filepath.Join(root, "listings", "a.toml") {
		t.Fatalf("listingPaths = %v", paths)
	}
}

func TestLoadProjectManifestErrors(t *testing.T) {
	cases := map[string]string{
		"missing name": "[project]\n",
		"unknown key":  "[project]\nname = \"x\"\n[build]\nthreads = 3\n",
		"negative":     "[project]\nname = \"x\"\n[build]\njobs = -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, "dcir.toml"), content)
			if _, _, err := loadProjectManifest(root); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDumpCommand(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "demo.toml")
	writeFile(t, path, demoListing)

	out, err := runCLI(t, "dump", "--passes", "none", path)
	if err != nil {
		t.Fatalf("dump: %v\n%s", err, out)
	}
	for _, want := range []string{"fn demo:", "bb_10:", "bb_15:", "bb_16:", "return"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump output missing %q:\n%s", want, out)
		}
	}
}

func TestGraphCommand(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "demo.toml")
	writeFile(t, path, demoListing)

	out, err := runCLI(t, "graph", path)
	if err != nil {
		t.Fatalf("graph: %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, `digraph "demo" {`) {
		t.Fatalf("graph output does not start with digraph:\n%s", out)
	}
	if !strings.Contains(out, "->") {
		t.Fatalf("graph output has no edges:\n%s", out)
	}
}

func TestCheckCommand(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "demo.toml")
	writeFile(t, path, demoListing)

	out, err := runCLI(t, "check", path)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ok   demo  ") {
		t.Fatalf("check output = %q", out)
	}
}

func TestNoListingsWithoutManifest(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := runCLI(t, "dump"); err == nil {
		t.Fatalf("expected error without listings or manifest")
	}
}
