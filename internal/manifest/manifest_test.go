package manifest

import (
	"bytes"
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
)

func TestFooterRoundTrip(t *testing.T) {
	stub := []byte("#!/bin/sh\nexit 1\n")
	payload := []byte(`{"executable":{"kind":0}}`)

	encoded := EncodeFooter(stub, payload)

	got, stubLen, err := ReadFooter(encoded)
	if err != nil {
		t.Fatalf("ReadFooter: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
	if stubLen != len(stub) {
		t.Fatalf("stubLen = %d, want %d", stubLen, len(stub))
	}
}

func TestReadFooterNoManifest(t *testing.T) {
	if _, _, err := ReadFooter([]byte("not a manifest")); err != ErrNoManifest {
		t.Fatalf("err = %v, want ErrNoManifest", err)
	}
}

func TestEmbedOverwritesExisting(t *testing.T) {
	file := EncodeFooter([]byte("stub"), []byte("first-payload"))
	updated, err := Embed(FormatELF64, file, []byte("second-payload-longer"))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	got, stubLen, err := ReadFooter(updated)
	if err != nil {
		t.Fatalf("ReadFooter: %v", err)
	}
	if string(got) != "second-payload-longer" {
		t.Fatalf("payload = %q", got)
	}
	if stubLen != len("stub") {
		t.Fatalf("stubLen = %d, want %d", stubLen, len("stub"))
	}
}

func TestManifestDependenciesUnion(t *testing.T) {
	id1 := artifact.IdFromBytes([]byte("interpreter-artifact"))
	id2 := artifact.IdFromBytes([]byte("executable-artifact"))

	m := Manifest{
		Interpreter: &Interpreter{
			Kind: LdLinux,
			Path: Template{Components: []TemplateComponent{{Artifact: id1.String(), Subpath: "lib/ld-linux.so"}}},
		},
		Executable: Executable{
			Kind: ExecutablePath,
			Path: Template{Components: []TemplateComponent{{Artifact: id2.String(), Subpath: "bin/prog"}}},
		},
		Args: []Template{
			{Components: []TemplateComponent{{Artifact: id1.String()}}},
		},
	}

	deps := m.Dependencies()
	if len(deps) != 2 {
		t.Fatalf("Dependencies() = %v, want 2 unique ids", deps)
	}
	seen := map[artifact.Id]bool{}
	for _, d := range deps {
		seen[d] = true
	}
	if !seen[id1] || !seen[id2] {
		t.Fatalf("Dependencies() missing expected ids: %v", deps)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	m := Manifest{
		Executable: Executable{Kind: ExecutableAddress, Address: 0x400000},
		Env: &Mutation{
			"PATH": VarMutation{Op: Prepend, List: []Template{{Components: []TemplateComponent{{Literal: "/opt/bin"}}}}, Separator: ":"},
		},
	}
	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Executable.Address != 0x400000 {
		t.Fatalf("Address = %d", got.Executable.Address)
	}
	if got.Env == nil || (*got.Env)["PATH"].Op != Prepend {
		t.Fatalf("Env mutation not preserved: %+v", got.Env)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name   string
		header []byte
		want   BinaryFormat
	}{
		{"elf64", []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}, FormatELF64},
		{"elf32", []byte{0x7f, 'E', 'L', 'F', 1, 1, 1, 0}, FormatELF32},
		{"macho64", []byte{0xfe, 0xed, 0xfa, 0xcf}, FormatMachO},
		{"macho-universal", []byte{0xca, 0xfe, 0xba, 0xbe}, FormatMachOUniversal},
		{"unknown", []byte{0, 0, 0, 0}, FormatUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DetectFormat(c.header); got != c.want {
				t.Fatalf("DetectFormat(%s) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}
