package artifact

import "testing"

func TestRenderUnrenderRoundTrip(t *testing.T) {
	root := "/tmp/sandbox-abc"
	id := IdFromBytes([]byte("hello"))

	tests := []struct {
		name string
		tmpl Template
	}{
		{"literal only", Lit("--edition 2021")},
		{"single ref", Ref(NewReferent(id))},
		{"ref with subpath", Ref(NewReferent(id).WithSubpath("lib/libfoo.rlib"))},
		{"native prefix", Join("native=", NewReferent(id).WithSubpath("lib"))},
		{"ref then literal", Join(NewReferent(id), "=.")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered := tt.tmpl.Render(root)
			got, err := Unrender(root, rendered)
			if err != nil {
				t.Fatalf("unrender: %v", err)
			}
			if len(got) != len(tt.tmpl) {
				t.Fatalf("component count mismatch: got %d want %d (%v vs %v)", len(got), len(tt.tmpl), got, tt.tmpl)
			}
			for i := range got {
				if got[i] != tt.tmpl[i] {
					t.Fatalf("component %d mismatch: got %#v want %#v", i, got[i], tt.tmpl[i])
				}
			}
		})
	}
}

func TestContainsArtifactPath(t *testing.T) {
	if !ContainsArtifactPath("/tmp/x/.tangram/artifacts/abc/lib.rlib") {
		t.Fatal("expected true")
	}
	if ContainsArtifactPath("/usr/lib/libc.so") {
		t.Fatal("expected false")
	}
}
