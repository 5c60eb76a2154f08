// Package command implements the Command/CommandId data model (§3, §4.4):
// a content-addressable description of a process to spawn under the store.
package command

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/hostsys"
)

// Id is the content hash of a Command, used as the cache key. Two commands
// with identical Id share a process result.
type Id string

// Arg is either a pass-through literal or a Template (ResolvedArg, §3).
type Arg struct {
	Literal  string
	Template artifact.Template
	IsTmpl   bool
}

func Lit(s string) Arg                 { return Arg{Literal: s} }
func Tmpl(t artifact.Template) Arg      { return Arg{Template: t, IsTmpl: true} }

// Command is {executable, args, env, host, network} per §3. It is content
// addressable: canonical() produces a deterministic encoding independent of
// map iteration order, map insertion order, or the absolute paths baked
// into any Template (those are resolved relative to an artifact id, not a
// filesystem path).
type Command struct {
	Executable artifact.Id
	Args       []Arg
	Env        map[string]artifact.Template
	Host       hostsys.Triple
	Network    bool
}

// Id computes the deterministic CommandId for c.
func (c Command) Id() Id {
	h := sha256.New()
	h.Write([]byte("executable:"))
	h.Write([]byte(c.Executable.String()))
	h.Write([]byte("\nhost:"))
	h.Write([]byte(c.Host))
	h.Write([]byte("\nnetwork:"))
	if c.Network {
		h.Write([]byte("1"))
	} else {
		h.Write([]byte("0"))
	}
	h.Write([]byte("\nargs:\n"))
	for _, a := range c.Args {
		h.Write([]byte(canonicalArg(a)))
		h.Write([]byte("\x00"))
	}
	h.Write([]byte("env:\n"))
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte("="))
		h.Write([]byte(canonicalTemplate(c.Env[k])))
		h.Write([]byte("\x00"))
	}
	return Id(hex.EncodeToString(h.Sum(nil)))
}

func canonicalArg(a Arg) string {
	if !a.IsTmpl {
		return "L:" + a.Literal
	}
	return "T:" + canonicalTemplate(a.Template)
}

// canonicalTemplate renders a template to a hash-stable string that depends
// only on its literal text and artifact ids, never on a filesystem root.
func canonicalTemplate(t artifact.Template) string {
	var b strings.Builder
	for _, c := range t {
		switch v := c.(type) {
		case artifact.Literal:
			b.WriteString("l:")
			b.WriteString(string(v))
		case artifact.ArtifactRef:
			b.WriteString("a:")
			b.WriteString(v.Artifact.String())
			b.WriteString(":")
			b.WriteString(v.Subpath)
		}
		b.WriteByte(';')
	}
	return b.String()
}
