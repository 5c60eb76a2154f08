package toolkind

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRustcArgsTrivial(t *testing.T) {
	argv := []string{"/usr/bin/rustc", "--crate-name", "hello", "--edition", "2021", "-o", "/tmp/out", "src/main.rs"}
	got, err := ParseRustcArgs(argv, NewEnv(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"--crate-name", "hello", "--edition", "2021", "-o", "/tmp/out", "src/main.rs"}
	if diff := cmp.Diff(want, got.Remaining); diff != "" {
		t.Fatalf("remaining mismatch (-want +got):\n%s", diff)
	}
	if got.CrateName != "hello" {
		t.Fatalf("crate name = %q", got.CrateName)
	}
	if got.SourceDirectory != "src" {
		t.Fatalf("source directory = %q, want %q", got.SourceDirectory, "src")
	}
	if got.IsPassthrough() {
		t.Fatal("expected non-passthrough")
	}
}

func TestParseRustcArgsExterns(t *testing.T) {
	argv := []string{
		"/usr/bin/rustc",
		"--extern", "zeta=/d/libzeta-abc.rlib",
		"--extern", "alpha=/d/libalpha-def.rlib",
		"-L", "dependency=/d",
		"--crate-name", "hello",
	}
	got, err := ParseRustcArgs(argv, NewEnv(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Extern{
		{Name: "zeta", Path: "/d/libzeta-abc.rlib"},
		{Name: "alpha", Path: "/d/libalpha-def.rlib"},
	}
	if diff := cmp.Diff(want, got.Externs); diff != "" {
		t.Fatalf("externs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/d"}, got.Dependencies); diff != "" {
		t.Fatalf("dependencies mismatch (-want +got):\n%s", diff)
	}
	// -L dependency=/d must not also land in Remaining.
	for _, r := range got.Remaining {
		if r == "dependency=/d" || r == "-L" {
			t.Fatalf("dependency entry leaked into remaining: %v", got.Remaining)
		}
	}
}

func TestParseRustcArgsMalformedExtern(t *testing.T) {
	argv := []string{"/usr/bin/rustc", "--extern", "=nopath"}
	if _, err := ParseRustcArgs(argv, NewEnv(nil)); err == nil {
		t.Fatal("expected error for malformed --extern")
	}
}

func TestParseRustcArgsSourceDirectoryFromManifestDir(t *testing.T) {
	argv := []string{"/usr/bin/rustc", "--crate-name", "hello", "src/main.rs"}
	env := NewEnv([]string{"CARGO_MANIFEST_DIR=/workspace/mycrate"})
	got, err := ParseRustcArgs(argv, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceDirectory != "/workspace/mycrate" {
		t.Fatalf("source directory = %q", got.SourceDirectory)
	}
}

func TestIsPassthrough(t *testing.T) {
	argv := []string{"/usr/bin/rustc", "-"}
	got, err := ParseRustcArgs(argv, NewEnv(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsPassthrough() {
		t.Fatal("expected passthrough when stdin flag is set")
	}
}
