// Package ldproxy implements the linker proxy (§4.5): it runs the real
// linker, inspects whatever it produced, and — for an executable that needs
// a dynamic interpreter — replaces the output with a
// wrapper-manifest-carrying file. A shared library output is left as the
// linker wrote it, with no library paths recorded in it.
package ldproxy

import (
	"strconv"
	"strings"
)

// LibraryPathOptLevel controls how aggressively the linker proxy collapses
// -L search paths before recording them in the wrapper manifest.
type LibraryPathOptLevel int

const (
	// OptNone records every -L path verbatim.
	OptNone LibraryPathOptLevel = iota
	// OptResolve collapses each path with a subpath to its innermost directory.
	OptResolve
	// OptFilter keeps only the paths that actually contain a needed library.
	OptFilter
	// OptCombine (the default) merges every needed library into one directory.
	OptCombine
)

func (l LibraryPathOptLevel) String() string {
	switch l {
	case OptNone:
		return "none"
	case OptResolve:
		return "resolve"
	case OptFilter:
		return "filter"
	case OptCombine:
		return "combine"
	default:
		return "unknown"
	}
}

// DefaultOptLevel matches the original's #[default] Combine.
func DefaultOptLevel() LibraryPathOptLevel { return OptCombine }

// ParseOptLevel mirrors the Rust FromStr impl: named or numeric 0-3 parse
// exactly, any larger number saturates to Combine, and anything else falls
// back to the default rather than erroring, since both the env var and the
// --tg-library-path-opt-level= flag use `unwrap_or_default()` at the call site.
func ParseOptLevel(s string) LibraryPathOptLevel {
	switch strings.ToLower(s) {
	case "none", "0":
		return OptNone
	case "resolve", "1":
		return OptResolve
	case "filter", "2":
		return OptFilter
	case "combine", "3":
		return OptCombine
	}
	if n, err := strconv.Atoi(s); err == nil && n > 3 {
		return OptCombine
	}
	return DefaultOptLevel()
}
