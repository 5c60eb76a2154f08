package proxyrun

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyTreePreservesStructureAndMode(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "lib.rs"), []byte("pub fn x() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "build.sh"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := copyTree(src, dst); err != nil {
		t.Fatalf("copyTree: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "sub", "lib.rs"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(got) != "pub fn x() {}\n" {
		t.Fatalf("copied contents = %q", got)
	}

	info, err := os.Stat(filepath.Join(dst, "build.sh"))
	if err != nil {
		t.Fatalf("copied executable missing: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Fatalf("executable bit not preserved: mode = %v", info.Mode())
	}
}

func TestCopyTreePreservesSymlinks(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	if err := os.WriteFile(filepath.Join(src, "real.txt"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("real.txt", filepath.Join(src, "link.txt")); err != nil {
		t.Fatal(err)
	}

	if err := copyTree(src, dst); err != nil {
		t.Fatalf("copyTree: %v", err)
	}

	target, err := os.Readlink(filepath.Join(dst, "link.txt"))
	if err != nil {
		t.Fatalf("copied symlink missing: %v", err)
	}
	if target != "real.txt" {
		t.Fatalf("symlink target = %q, want %q", target, "real.txt")
	}
}
