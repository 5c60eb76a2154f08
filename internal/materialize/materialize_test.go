package materialize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
)

func TestWriteOutputsSymlinksDepsAndCopiesBinary(t *testing.T) {
	store, err := storeclient.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	outDir := t.TempDir()

	entries := []Entry{
		{Name: "libfoo-abc123.rlib", Artifact: artifact.NewFile([]byte("rlib-contents"), false)},
		{Name: "foo_bar-abc123", Artifact: artifact.NewFile([]byte("binary-contents"), true)},
	}

	if err := WriteOutputs(context.Background(), store, entries, outDir, nil); err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}

	rlibInfo, err := os.Lstat(filepath.Join(outDir, "libfoo-abc123.rlib"))
	if err != nil {
		t.Fatalf("rlib not written: %v", err)
	}
	if rlibInfo.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected dependency file to be a symlink")
	}

	binPath := filepath.Join(outDir, "foo_bar-abc123")
	data, err := os.ReadFile(binPath)
	if err != nil {
		t.Fatalf("binary not written: %v", err)
	}
	if string(data) != "binary-contents" {
		t.Fatalf("binary contents = %q", data)
	}
	info, _ := os.Stat(binPath)
	if info.Mode()&0o111 == 0 {
		t.Fatal("expected binary to be executable")
	}

	convenienceInfo, err := os.Lstat(filepath.Join(outDir, "foo-bar"))
	if err != nil {
		t.Fatalf("convenience symlink not created: %v", err)
	}
	if convenienceInfo.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected convenience entry to be a symlink")
	}
}

func TestWriteOutputsExternsSidecar(t *testing.T) {
	store, err := storeclient.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	outDir := t.TempDir()
	entries := []Entry{
		{Name: "libcrate-deadbeef.rlib", Artifact: artifact.NewFile([]byte("rlib"), false)},
	}
	externs := []string{"/deps/libdep_one-11111111.rlib", "/deps/libdep_two-22222222.rmeta"}

	if err := WriteOutputs(context.Background(), store, entries, outDir, externs); err != nil {
		t.Fatalf("WriteOutputs: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "libcrate-deadbeef.externs"))
	if err != nil {
		t.Fatalf("externs sidecar not written: %v", err)
	}
	want := "dep_one-11111111\ndep_two-22222222"
	if string(data) != want {
		t.Fatalf("externs content = %q, want %q", data, want)
	}
}
