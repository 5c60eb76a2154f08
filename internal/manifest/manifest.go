// Package manifest implements the Wrapper Manifest (§4.7): a self-describing
// record appended to a stub executable, read back at launch time by the
// wrapper binary to decide how to re-exec the real program.
package manifest

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
)

// magicNumber and version match the original wrapper footer layout.
var magicNumber = [8]byte{'t', 'a', 'n', 'g', 'r', 'a', 'm', 0}

const footerVersion uint64 = 0
const footerSize = 8 + 8 + 8 // size + version + magic

// ExecutableKind discriminates how the wrapper launches its target.
type ExecutableKind int

const (
	ExecutablePath ExecutableKind = iota
	ExecutableContent
	ExecutableAddress
)

// Executable is {Path | Content | Address} per §4.7.
type Executable struct {
	Kind    ExecutableKind `json:"kind"`
	Path    Template       `json:"path,omitempty"`
	Content Template       `json:"content,omitempty"`
	Address uint64         `json:"address,omitempty"`
}

// InterpreterKind discriminates the dynamic-linker flavor.
type InterpreterKind string

const (
	Normal  InterpreterKind = "normal"
	LdLinux InterpreterKind = "ld-linux"
	LdMusl  InterpreterKind = "ld-musl"
	DyLd    InterpreterKind = "dyld"
)

// Interpreter is one of {Normal, LdLinux, LdMusl, DyLd}.
type Interpreter struct {
	Kind InterpreterKind `json:"kind"`

	// Normal
	Path Template   `json:"path,omitempty"`
	Args []Template `json:"args,omitempty"`

	// LdLinux / LdMusl
	LibraryPaths []Template `json:"libraryPaths,omitempty"`
	Preloads     []Template `json:"preloads,omitempty"`

	// all variants except DyLd carry Path/Args above; DyLd only carries
	// LibraryPaths/Preloads, consumed via DYLD_LIBRARY_PATH/DYLD_INSERT_LIBRARIES.
}

// IsDynamic reports whether the interpreter requires a dynamic linker
// (everything except Normal, which execs the target directly).
func (i Interpreter) IsDynamic() bool {
	return i.Kind == LdLinux || i.Kind == LdMusl || i.Kind == DyLd
}

// Template is a JSON-friendly encoding of an artifact.Template, since
// artifact.Template's component interface does not itself implement
// json.Marshaler.
type Template struct {
	Components []TemplateComponent `json:"components"`
}

type TemplateComponent struct {
	Literal  string `json:"literal,omitempty"`
	Artifact string `json:"artifact,omitempty"`
	Subpath  string `json:"subpath,omitempty"`
}

func FromArtifactTemplate(t artifact.Template) Template {
	out := Template{}
	for _, c := range t {
		switch v := c.(type) {
		case artifact.Literal:
			out.Components = append(out.Components, TemplateComponent{Literal: string(v)})
		case artifact.ArtifactRef:
			out.Components = append(out.Components, TemplateComponent{Artifact: v.Artifact.String(), Subpath: v.Subpath})
		}
	}
	return out
}

func (t Template) ToArtifactTemplate() (artifact.Template, error) {
	var out artifact.Template
	for _, c := range t.Components {
		if c.Artifact != "" {
			id, err := artifact.IdFromHex(c.Artifact)
			if err != nil {
				return nil, err
			}
			out = append(out, artifact.ArtifactRef(artifact.NewReferent(id).WithSubpath(c.Subpath)))
		} else {
			out = append(out, artifact.Literal(c.Literal))
		}
	}
	return out, nil
}

// Dependencies returns the union of ArtifactIds appearing anywhere in the
// manifest (§4.7: "the dependencies of a wrapper file are computed as the
// union of all ArtifactIds appearing inside templates anywhere in the
// manifest").
func (m Manifest) Dependencies() []artifact.Id {
	seen := map[artifact.Id]bool{}
	var out []artifact.Id
	add := func(t Template) {
		tmpl, err := t.ToArtifactTemplate()
		if err != nil {
			return
		}
		for _, id := range tmpl.Dependencies() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	add(m.Executable.Path)
	add(m.Executable.Content)
	if m.Interpreter != nil {
		add(m.Interpreter.Path)
		for _, a := range m.Interpreter.Args {
			add(a)
		}
		for _, a := range m.Interpreter.LibraryPaths {
			add(a)
		}
		for _, a := range m.Interpreter.Preloads {
			add(a)
		}
	}
	for _, a := range m.Args {
		add(a)
	}
	return out
}

// Manifest is {interpreter?, executable, env?, args?} per §4.7.
type Manifest struct {
	Interpreter *Interpreter
	Executable  Executable
	Env         *Mutation
	Args        []Template
}

// Serialize encodes the manifest for embedding. The original implementation
// carries both a serde-JSON form (for tooling/debugging) and a compact
// tangram_serialize binary form for the embedded bytes; tangram_serialize
// is an internal format not available as a library in this retrieval pack,
// so the embedded payload here is plain JSON (see DESIGN.md) -- functionally
// equivalent for the footer-convention reader/writer, since the footer only
// needs to know the byte length of the payload, not its internal shape.
func (m Manifest) Serialize() ([]byte, error) {
	return json.Marshal(manifestWire{
		Interpreter: m.Interpreter,
		Executable:  m.Executable,
		Env:         m.Env,
		Args:        m.Args,
	})
}

func Deserialize(data []byte) (Manifest, error) {
	var wire manifestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Manifest{}, err
	}
	return Manifest{
		Interpreter: wire.Interpreter,
		Executable:  wire.Executable,
		Env:         wire.Env,
		Args:        wire.Args,
	}, nil
}

type manifestWire struct {
	Interpreter *Interpreter `json:"interpreter,omitempty"`
	Executable  Executable   `json:"executable"`
	Env         *Mutation    `json:"env,omitempty"`
	Args        []Template   `json:"args,omitempty"`
}

// EncodeFooter appends the manifest payload and its footer to file
// contents: {payload}{size: u64 LE}{version: u64 LE}{magic: "tangram\0"}.
func EncodeFooter(stub []byte, payload []byte) []byte {
	out := make([]byte, 0, len(stub)+len(payload)+footerSize)
	out = append(out, stub...)
	out = append(out, payload...)
	var footer [footerSize]byte
	binary.LittleEndian.PutUint64(footer[0:8], uint64(len(payload)))
	binary.LittleEndian.PutUint64(footer[8:16], footerVersion)
	copy(footer[16:24], magicNumber[:])
	out = append(out, footer[:]...)
	return out
}

var ErrNoManifest = errors.New("no manifest footer found")

// ReadFooter locates the footer at end-minus-footerSize, validates magic and
// version, and returns the payload bytes immediately preceding it along
// with the offset where the stub (pre-manifest) content ends.
func ReadFooter(file []byte) (payload []byte, stubLen int, err error) {
	if len(file) < footerSize {
		return nil, 0, ErrNoManifest
	}
	footer := file[len(file)-footerSize:]
	size := binary.LittleEndian.Uint64(footer[0:8])
	version := binary.LittleEndian.Uint64(footer[8:16])
	var magic [8]byte
	copy(magic[:], footer[16:24])
	if magic != magicNumber {
		return nil, 0, ErrNoManifest
	}
	if version != footerVersion {
		return nil, 0, errors.New("unsupported manifest version")
	}
	payloadStart := len(file) - footerSize - int(size)
	if payloadStart < 0 {
		return nil, 0, errors.New("manifest footer size exceeds file length")
	}
	return file[payloadStart : len(file)-footerSize], payloadStart, nil
}
