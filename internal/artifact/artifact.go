// Package artifact is the data model for the content-addressed store: the
// ArtifactId, Artifact, Template, Referent and ResolvedArg types shared by
// every proxy variant.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Id is the store's opaque identifier for a File, Directory or Symlink.
// It is content-derived, comparable by equality, and orderable so iteration
// over sets of artifacts is deterministic.
type Id struct {
	hash [32]byte
}

// IdFromBytes derives an Id from the content bytes of a blob.
func IdFromBytes(content []byte) Id {
	return Id{hash: sha256.Sum256(content)}
}

// IdFromHex parses a previously-rendered hex identifier, as found embedded
// in a rendered store path (".tangram/artifacts/<id>").
func IdFromHex(s string) (Id, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return Id{}, fmt.Errorf("invalid artifact id %q", s)
	}
	var id Id
	copy(id.hash[:], b)
	return id, nil
}

func (id Id) String() string {
	return hex.EncodeToString(id.hash[:])
}

func (id Id) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id Id) Compare(other Id) int {
	return bytes.Compare(id.hash[:], other.hash[:])
}

func (id Id) IsZero() bool {
	return id == Id{}
}

// Kind discriminates the Artifact variant.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

// Artifact is a variant: File (bytes + executable bit + ordered dependency
// references), Directory (ordered mapping name -> Artifact), or Symlink
// (absolute store path or relative target). Artifacts are owned by the
// store; proxies hold Id-typed handles plus, for synthesized artifacts not
// yet persisted, the in-memory value itself.
type Artifact struct {
	Kind Kind

	// File
	Contents   []byte
	Executable bool
	Depends    []Id // ordered dependency references, e.g. NEEDED libraries

	// Directory: ordered by Names to keep iteration deterministic.
	Names   []string
	Entries map[string]Artifact

	// Symlink
	LinkTarget   string // relative target, if Absolute is false
	LinkAbsolute *Referent
}

// NewFile constructs a file artifact.
func NewFile(contents []byte, executable bool, depends ...Id) Artifact {
	return Artifact{Kind: KindFile, Contents: contents, Executable: executable, Depends: depends}
}

// NewDirectory constructs a directory artifact from a name->artifact map,
// sorting names for deterministic iteration.
func NewDirectory(entries map[string]Artifact) Artifact {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return Artifact{Kind: KindDirectory, Names: names, Entries: entries}
}

// NewSymlink constructs a relative symlink artifact.
func NewSymlink(target string) Artifact {
	return Artifact{Kind: KindSymlink, LinkTarget: target}
}

// NewSymlinkToArtifact constructs a symlink that resolves to another
// artifact directly (rather than a relative filesystem path), used to
// preserve a dependency file's required extension inside a directory named
// after its crate rather than its store id.
func NewSymlinkToArtifact(target Referent) Artifact {
	return Artifact{Kind: KindSymlink, LinkAbsolute: &target}
}

// Get looks up a dotted/slash-separated subpath within a directory artifact.
func (a Artifact) Get(subpath string) (Artifact, bool) {
	if subpath == "" || subpath == "." {
		return a, true
	}
	if a.Kind != KindDirectory {
		return Artifact{}, false
	}
	head, rest := splitFirst(subpath)
	child, ok := a.Entries[head]
	if !ok {
		return Artifact{}, false
	}
	if rest == "" {
		return child, true
	}
	return child.Get(rest)
}

func splitFirst(path string) (head, rest string) {
	for i, c := range path {
		if c == '/' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}

// Referent is an artifact reference with an optional sub-path and optional
// provenance tag, used anywhere "artifact X, specifically entry Y" must be
// expressed (e.g. a library file inside a merged dependency directory).
type Referent struct {
	Artifact   Id
	Subpath    string
	Provenance string
}

func NewReferent(id Id) Referent {
	return Referent{Artifact: id}
}

func (r Referent) WithSubpath(subpath string) Referent {
	r.Subpath = subpath
	return r
}

func (r Referent) WithProvenance(tag string) Referent {
	r.Provenance = tag
	return r
}
