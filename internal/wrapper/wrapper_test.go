package wrapper

import "testing"

func TestEnvMapRoundTrip(t *testing.T) {
	environ := []string{"PATH=/usr/bin", "FOO=bar=baz"}
	env := envMap(environ)
	if env["PATH"] != "/usr/bin" || env["FOO"] != "bar=baz" {
		t.Fatalf("envMap = %v", env)
	}
	flattened := flattenEnv(env)
	if len(flattened) != 2 {
		t.Fatalf("flattenEnv length = %d", len(flattened))
	}
}

func TestLookPathAbsoluteIsUnchanged(t *testing.T) {
	got, err := lookPath("/bin/sh")
	if err != nil {
		t.Fatalf("lookPath: %v", err)
	}
	if got != "/bin/sh" {
		t.Fatalf("lookPath = %q", got)
	}
}
