package placeholder

import "testing"

// TestRoundTrip covers scenario 6: a build script prints cargo:root=$OUT_DIR/include,
// which is cached as the placeholder form and later replayed with a real OUT_DIR.
func TestRoundTrip(t *testing.T) {
	sandboxRoot := "/tmp/sandbox-xyz"
	realOutDir := "/cargo/target/debug/build/foo-1234/out"

	raw := "cargo:root=" + sandboxRoot + "/" + OutDirSentinel + "/include"
	cached := StripSandboxPrefix(raw, sandboxRoot)
	if cached != "cargo:root="+OutDirSentinel+"/include" {
		t.Fatalf("cached = %q", cached)
	}

	replayed := Substitute(cached, realOutDir)
	want := "cargo:root=" + realOutDir + "/include"
	if replayed != want {
		t.Fatalf("replayed = %q, want %q", replayed, want)
	}
}
