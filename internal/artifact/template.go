package artifact

import (
	"fmt"
	"strings"
)

// Component is one element of a Template: either a literal string or an
// artifact reference. It is a closed sum type via an unexported marker
// method rather than a tagged union, which is the idiomatic Go shape for a
// small closed interface.
type Component interface {
	isComponent()
}

type Literal string

func (Literal) isComponent() {}

type ArtifactRef Referent

func (ArtifactRef) isComponent() {}

// Template is an ordered sequence of components that renders to a single
// path string once a store root is chosen.
type Template []Component

func Lit(s string) Template {
	return Template{Literal(s)}
}

func Ref(r Referent) Template {
	return Template{ArtifactRef(r)}
}

// Join concatenates templates and literal fragments in order, merging
// adjacent literals so render/unrender stay well-behaved.
func Join(parts ...any) Template {
	var out Template
	add := func(c Component) {
		if lit, ok := c.(Literal); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(Literal); ok {
				out[len(out)-1] = prev + lit
				return
			}
		}
		out = append(out, c)
	}
	for _, p := range parts {
		switch v := p.(type) {
		case Template:
			for _, c := range v {
				add(c)
			}
		case string:
			add(Literal(v))
		case Referent:
			add(ArtifactRef(v))
		default:
			panic(fmt.Sprintf("artifact.Join: unsupported part %T", p))
		}
	}
	return out
}

const artifactsPathPrefix = "/.tangram/artifacts/"

// Render substitutes storeRoot + "/.tangram/artifacts/<id>[/<subpath>]" for
// each artifact component, producing a concrete path string.
func (t Template) Render(storeRoot string) string {
	var b strings.Builder
	for _, c := range t {
		switch v := c.(type) {
		case Literal:
			b.WriteString(string(v))
		case ArtifactRef:
			b.WriteString(storeRoot)
			b.WriteString(artifactsPathPrefix)
			b.WriteString(v.Artifact.String())
			if v.Subpath != "" {
				b.WriteByte('/')
				b.WriteString(v.Subpath)
			}
		}
	}
	return b.String()
}

// Unrender is the inverse of Render: given a rendered string and the same
// store root, recover the Template. Satisfies the round-trip law
// unrender(render(t)) == t for every template this package constructs.
//
// Literal regions of the input string are preserved verbatim; occurrences of
// "<storeRoot>/.tangram/artifacts/<id>[/<subpath>]" are decoded back into
// ArtifactRef components. A rendered path may appear anywhere in the
// string, not only at its start (e.g. inside "native=<path>"). The id is
// always 64 hex characters; a "/" directly after it starts the reference's
// subpath, so a literal beginning with "/" right after a reference is read
// back as that reference's subpath.
func Unrender(storeRoot, rendered string) (Template, error) {
	prefix := storeRoot + artifactsPathPrefix
	var out Template
	rest := rendered
	for {
		idx := strings.Index(rest, prefix)
		if idx < 0 {
			if rest != "" {
				out = append(out, Literal(rest))
			}
			break
		}
		if idx > 0 {
			out = append(out, Literal(rest[:idx]))
		}
		rest = rest[idx+len(prefix):]
		idEnd := 2 * len(Id{}.hash)
		if idEnd > len(rest) {
			idEnd = len(rest)
		}
		idStr := rest[:idEnd]
		rest = rest[idEnd:]
		var subpath string
		if strings.HasPrefix(rest, "/") {
			remainder := rest[1:]
			// The subpath runs until the next path separator that looks like
			// a fresh literal boundary; store paths themselves never embed
			// spaces, so a space terminates the subpath conservatively.
			if sp := strings.IndexByte(remainder, ' '); sp >= 0 {
				subpath = remainder[:sp]
				rest = remainder[sp:]
			} else {
				subpath = remainder
				rest = ""
			}
		}
		id, err := IdFromHex(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, ArtifactRef(Referent{Artifact: id, Subpath: subpath}))
	}
	return out, nil
}

// ContainsArtifactPath reports whether s embeds a rendered store path,
// i.e. is a "Rendered store path" per the Input Resolver's classification.
func ContainsArtifactPath(s string) bool {
	return strings.Contains(s, "/.tangram/artifacts/")
}

// Dependencies returns the set of ArtifactIds referenced anywhere in t, in
// first-seen order. Used to compute a wrapper file's dependency list as the
// union of ids appearing in any template inside a Manifest.
func (t Template) Dependencies() []Id {
	seen := map[Id]bool{}
	var out []Id
	for _, c := range t {
		if ref, ok := c.(ArtifactRef); ok {
			if !seen[ref.Artifact] {
				seen[ref.Artifact] = true
				out = append(out, ref.Artifact)
			}
		}
	}
	return out
}
