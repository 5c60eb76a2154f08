package ldproxy

import (
	"context"
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/hostsys"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
)

func TestParseOptLevel(t *testing.T) {
	cases := map[string]LibraryPathOptLevel{
		"none":      OptNone,
		"0":         OptNone,
		"resolve":   OptResolve,
		"1":         OptResolve,
		"filter":    OptFilter,
		"2":         OptFilter,
		"combine":   OptCombine,
		"3":         OptCombine,
		"99":        OptCombine,
		"bogus":     OptCombine, // falls back to the default
	}
	for in, want := range cases {
		if got := ParseOptLevel(in); got != want {
			t.Fatalf("ParseOptLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestReadOptionsStripsTgFlags(t *testing.T) {
	triple := hostsys.Default()
	env := map[string]string{"TANGRAM_LINKER_COMMAND_PATH": "/usr/bin/ld"}
	args := []string{"-o", "a.out", "--tg-library-path-opt-level=filter", "--tg-max-depth=4", "foo.o"}

	opts, err := ReadOptions(args, env, triple)
	if err != nil {
		t.Fatalf("ReadOptions: %v", err)
	}
	if opts.LibraryPathOptimization != OptFilter {
		t.Fatalf("LibraryPathOptimization = %v, want Filter", opts.LibraryPathOptimization)
	}
	if opts.MaxDepth != 4 {
		t.Fatalf("MaxDepth = %d, want 4", opts.MaxDepth)
	}
	if opts.OutputPath != "a.out" {
		t.Fatalf("OutputPath = %q", opts.OutputPath)
	}
	for _, a := range opts.CommandArgs {
		if a == "--tg-library-path-opt-level=filter" || a == "--tg-max-depth=4" {
			t.Fatalf("tg-flag leaked into forwarded command args: %v", opts.CommandArgs)
		}
	}
}

func TestReadOptionsRequiresCommandPath(t *testing.T) {
	triple := hostsys.Default()
	if _, err := ReadOptions(nil, map[string]string{}, triple); err == nil {
		t.Fatal("expected error when TANGRAM_LINKER_COMMAND_PATH is unset")
	}
}

func TestFoundAllLibraries(t *testing.T) {
	if !foundAll(NeededLibraries{}) {
		t.Fatal("empty map should report found")
	}
	ref := artifact.NewReferent(artifact.IdFromBytes([]byte("x")))
	needed := NeededLibraries{"libfoo.so": &ref, "libbar.so": nil}
	if foundAll(needed) {
		t.Fatal("map with a nil entry should not report found")
	}
	needed["libbar.so"] = &ref
	if !foundAll(needed) {
		t.Fatal("fully resolved map should report found")
	}
}

func TestOptimizeLibraryPathsNoneReturnsVerbatim(t *testing.T) {
	store, err := storeclient.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ref := artifact.NewReferent(artifact.IdFromBytes([]byte("libpath")))
	out, err := OptimizeLibraryPaths(context.Background(), store, nil, []artifact.Referent{ref}, NeededLibraries{}, OptNone, defaultMaxDepth)
	if err != nil {
		t.Fatalf("OptimizeLibraryPaths: %v", err)
	}
	if len(out) != 1 || out[0] != ref {
		t.Fatalf("expected library paths passed through verbatim, got %v", out)
	}
}

// TestOptimizeLibraryPathsCombineSynthesizesSingleDirectory covers §8
// scenario 5: -L /A /B with NEEDED [libfoo.so, libbar.so, libsystem.so.6]
// at OptCombine collapses to one synthesized directory holding exactly
// libfoo.so and libbar.so, excluding the system library that never
// resolved against either search path.
func TestOptimizeLibraryPathsCombineSynthesizesSingleDirectory(t *testing.T) {
	ctx := context.Background()
	store, err := storeclient.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	foo := artifact.NewFile([]byte("foo"), false)
	bar := artifact.NewFile([]byte("bar"), false)

	dirA, err := store.StoreArtifact(ctx, artifact.NewDirectory(map[string]artifact.Artifact{"libfoo.so": foo}))
	if err != nil {
		t.Fatalf("StoreArtifact A: %v", err)
	}
	dirB, err := store.StoreArtifact(ctx, artifact.NewDirectory(map[string]artifact.Artifact{"libbar.so": bar}))
	if err != nil {
		t.Fatalf("StoreArtifact B: %v", err)
	}

	paths := []artifact.Referent{artifact.NewReferent(dirA), artifact.NewReferent(dirB)}
	fileNeeded := []string{"libfoo.so", "libbar.so", "libsystem.so.6"}
	needed := NeededLibraries{}

	out, err := OptimizeLibraryPaths(ctx, store, fileNeeded, paths, needed, OptCombine, defaultMaxDepth)
	if err != nil {
		t.Fatalf("OptimizeLibraryPaths: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected combine to synthesize a single directory, got %d: %v", len(out), out)
	}

	combined, ok := store.GetArtifact(ctx, out[0].Artifact)
	if !ok {
		t.Fatalf("synthesized directory %s not found in store", out[0].Artifact)
	}
	if combined.Kind != artifact.KindDirectory {
		t.Fatalf("expected synthesized artifact to be a directory, got %v", combined.Kind)
	}
	if len(combined.Names) != 2 {
		t.Fatalf("expected exactly 2 entries, got %v", combined.Names)
	}
	if _, ok := combined.Get("libfoo.so"); !ok {
		t.Fatalf("combined directory missing libfoo.so: %v", combined.Names)
	}
	if _, ok := combined.Get("libbar.so"); !ok {
		t.Fatalf("combined directory missing libbar.so: %v", combined.Names)
	}
	if _, ok := combined.Get("libsystem.so.6"); ok {
		t.Fatalf("combined directory should not contain unresolved system library libsystem.so.6")
	}

	if needed["libsystem.so.6"] != nil {
		t.Fatalf("libsystem.so.6 should remain unresolved in NeededLibraries, got %v", needed["libsystem.so.6"])
	}
}
