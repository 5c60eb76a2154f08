package toolkind

import "testing"

func TestParseCCArgsStatefulPrefix(t *testing.T) {
	argv := []string{
		"/usr/bin/cc",
		"-iprefix", "/opt/sdk/",
		"-iwithprefix", "include",
		"-iwithprefixbefore", "include2",
		"-o", "out.o",
		"main.c",
	}
	got, err := ParseCCArgs(argv, NewEnv(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OutputPath != "out.o" {
		t.Fatalf("output path = %q", got.OutputPath)
	}
	if len(got.Sources) != 1 || got.Sources[0].Path != "main.c" {
		t.Fatalf("sources = %+v", got.Sources)
	}
	wantIncludes := []IncludePath{
		{Kind: IncludeWithPrefix, Path: "/opt/sdk/include"},
		{Kind: IncludeWithPrefixBefore, Path: "/opt/sdk/include2"},
	}
	if len(got.Includes) != len(wantIncludes) {
		t.Fatalf("includes = %+v", got.Includes)
	}
	for i, inc := range wantIncludes {
		if got.Includes[i] != inc {
			t.Fatalf("include %d = %+v, want %+v", i, got.Includes[i], inc)
		}
	}
}

func TestParseCCArgsAttachedForms(t *testing.T) {
	argv := []string{"/usr/bin/cc", "-I/usr/include/foo", "-L/usr/lib/bar", "-ofoo.o", "a.c"}
	got, err := ParseCCArgs(argv, NewEnv(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OutputPath != "foo.o" {
		t.Fatalf("output path = %q", got.OutputPath)
	}
	if len(got.Includes) != 2 {
		t.Fatalf("includes = %+v", got.Includes)
	}
}
