package closure

import (
	"os"
	"path/filepath"
	"testing"
)

// TestComputeClosureExclusion covers scenario 3 from the spec's
// concrete end-to-end scenarios.
func TestComputeClosureExclusion(t *testing.T) {
	dir := t.TempDir()
	write := func(name, contents string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("libA-1.rlib", "a")
	write("libA-1.externs", "")
	write("libB-1.rlib", "b")
	write("libB-1.externs", "A-1\n")
	write("libC-1.rlib", "c")
	write("libC-1.externs", "Z-9\n")

	result, err := Compute([]string{dir}, []string{"/d/libB-1.rlib"})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	names := result.SortedNames()
	want := []string{"libA-1.rlib", "libB-1.rlib"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestExtractStem(t *testing.T) {
	tests := map[string]string{
		"libfoo-abc123.rlib": "foo-abc123",
		"libfoo.so":           "foo",
		"bar.rmeta":           "bar",
	}
	for in, want := range tests {
		if got := ExtractStem(in); got != want {
			t.Errorf("ExtractStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripMetadataSuffix(t *testing.T) {
	base, ok := StripMetadataSuffix("build_script_build-abc123")
	if !ok || base != "build-script-build" {
		t.Fatalf("got (%q, %v)", base, ok)
	}
	if _, ok := StripMetadataSuffix("not_hex-zzzz"); ok {
		t.Fatal("expected no match for non-hex suffix")
	}
	if _, ok := StripMetadataSuffix("noSuffixHere"); ok {
		t.Fatal("expected no match without a hyphen suffix")
	}
}
