package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/command"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		arg  string
		want PathClass
	}{
		{"--edition", ClassLiteral},
		{"2021", ClassLiteral},
		{"/usr/lib/libc.so", ClassAbsoluteLocal},
		{"/tmp/x/.tangram/artifacts/deadbeef/lib.rlib", ClassRenderedStorePath},
		{"native=/usr/lib", ClassNativePrefixed},
	}
	for _, tt := range tests {
		if got := Classify(tt.arg); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.txt")
	fileB := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(fileA, []byte("aaa"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fileB, []byte("bbb"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := storeclient.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}

	args := []string{"--edition", "2021", fileA, "-o", fileB, "literal-tail"}
	got, err := ResolveAll(context.Background(), store, args)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(got) != len(args) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(args))
	}

	expectLiteral := map[int]string{0: "--edition", 1: "2021", 3: "-o", 5: "literal-tail"}
	for idx, lit := range expectLiteral {
		if got[idx].IsTmpl || got[idx].Literal != lit {
			t.Fatalf("index %d = %+v, want literal %q", idx, got[idx], lit)
		}
	}
	for _, idx := range []int{2, 4} {
		if !got[idx].IsTmpl {
			t.Fatalf("index %d expected to resolve to a template, got %+v", idx, got[idx])
		}
	}
}

func TestResolveAllReportsFirstError(t *testing.T) {
	store, err := storeclient.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = ResolveAll(context.Background(), store, []string{"/does/not/exist"})
	if err == nil {
		t.Fatal("expected error for nonexistent absolute path")
	}
}

func TestArgLitHelper(t *testing.T) {
	if got := command.Lit("x"); got.IsTmpl || got.Literal != "x" {
		t.Fatalf("unexpected literal arg: %+v", got)
	}
}
