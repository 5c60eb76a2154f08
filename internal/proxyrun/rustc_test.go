package proxyrun

import (
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/toolkind"
)

func TestExternPathsOfSkipsEmpty(t *testing.T) {
	externs := []toolkind.Extern{
		{Name: "a", Path: "/d/liba.rlib"},
		{Name: "b", Path: ""},
		{Name: "c", Path: "/d/libc.rlib"},
	}
	got := externPathsOf(externs)
	if len(got) != 2 || got[0] != "/d/liba.rlib" || got[1] != "/d/libc.rlib" {
		t.Fatalf("externPathsOf = %v", got)
	}
}

func TestFollowSymlinkNonSymlinkIsUnchanged(t *testing.T) {
	got, err := followSymlink("/does/not/exist")
	if err != nil {
		t.Fatalf("followSymlink: %v", err)
	}
	if got != "/does/not/exist" {
		t.Fatalf("followSymlink = %q", got)
	}
}
