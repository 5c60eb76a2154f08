// Package closure implements the Closure Computer (§4.3, rustc only):
// reducing the set of library files presented in -L dependency= directories
// to the transitive closure of the current crate's extern set.
package closure

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// dependencyExtensions are the library file kinds the Output Materializer
// tracks as dependency files (§4.6) and therefore the kinds the closure
// catalog must recognize.
var dependencyExtensions = map[string]bool{
	".rlib": true, ".rmeta": true, ".so": true, ".dylib": true,
}

// IsDependencyFile reports whether filename's extension marks it as a
// dependency file per §4.6.
func IsDependencyFile(filename string) bool {
	return dependencyExtensions[filepath.Ext(filename)]
}

// ExtractStem drops the path, drops a recognized library extension, and
// strips a leading "lib" prefix if present. The metadata-hash suffix (e.g.
// "-abc123") is retained because distinct hashes identify distinct crate
// versions.
func ExtractStem(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	if dependencyExtensions[ext] {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimPrefix(base, "lib")
}

// catalogEntry records where a cataloged library file lives: either a real
// path, or a relative symlink target (the original distinguishes these so a
// symlink can be re-created rather than copied).
type catalogEntry struct {
	path       string
	symlinkTo  string
	isSymlink  bool
}

// Result is the filtered dependency set: files whose stem is in the
// transitive closure, keyed by filename (matching §4.3 step 5).
type Result struct {
	Files map[string]string // filename -> source path (or symlink target)
	Symlinks map[string]bool // filename -> true if Files[filename] is a symlink target rather than a path
}

// Compute implements the scan/catalog/BFS/filter algorithm of §4.3.
//
//  1. Scan every dependency directory once. ".externs" entries are parsed
//     as newline-separated stems and recorded as stem -> {required stems}.
//  2. Catalog every other non-".d" entry by filename.
//  3. Seed a BFS queue with the stems of the current --extern set.
//  4. BFS over the stem graph until the reachable set is closed.
//  5. Filter the catalog to files whose stem is reachable.
func Compute(depDirs []string, externPaths []string) (Result, error) {
	externsGraph := map[string]map[string]bool{}
	catalog := map[string]catalogEntry{}

	for _, dir := range depDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return Result{}, tgerror.Wrap(tgerror.StoreError, err, "failed to scan dependency directory %s", dir)
		}
		for _, e := range entries {
			name := e.Name()
			if filepath.Ext(name) == ".d" {
				continue
			}
			full := filepath.Join(dir, name)
			if filepath.Ext(name) == ".externs" {
				data, err := os.ReadFile(full)
				if err != nil {
					continue
				}
				stem := ExtractStem(strings.TrimSuffix(name, ".externs"))
				required := map[string]bool{}
				for _, line := range strings.Split(string(data), "\n") {
					line = strings.TrimSpace(line)
					if line != "" {
						required[line] = true
					}
				}
				externsGraph[stem] = required
				continue
			}

			info, err := os.Lstat(full)
			if err != nil {
				continue
			}
			if info.Mode()&os.ModeSymlink != 0 {
				target, err := os.Readlink(full)
				if err == nil {
					catalog[name] = catalogEntry{symlinkTo: target, isSymlink: true}
				}
				continue
			}
			catalog[name] = catalogEntry{path: full}
		}
	}

	needed := map[string]bool{}
	queue := make([]string, 0, len(externPaths))
	for _, p := range externPaths {
		if p == "" {
			continue
		}
		stem := ExtractStem(p)
		if !needed[stem] {
			needed[stem] = true
			queue = append(queue, stem)
		}
	}
	for len(queue) > 0 {
		stem := queue[0]
		queue = queue[1:]
		for req := range externsGraph[stem] {
			if !needed[req] {
				needed[req] = true
				queue = append(queue, req)
			}
		}
	}

	files := map[string]string{}
	symlinks := map[string]bool{}
	for name, entry := range catalog {
		if !needed[ExtractStem(name)] {
			continue
		}
		if entry.isSymlink {
			files[name] = entry.symlinkTo
			symlinks[name] = true
		} else {
			files[name] = entry.path
		}
	}

	return Result{Files: files, Symlinks: symlinks}, nil
}

// SortedNames returns the names in Result.Files in lexicographic order, for
// deterministic iteration when building the merged dependency directory.
func (r Result) SortedNames() []string {
	names := make([]string, 0, len(r.Files))
	for name := range r.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// metadataSuffix matches a trailing "-<hex>" metadata hash, e.g. the "-abc123"
// in "libfoo-abc123.rlib" (extension already stripped by the caller).
var metadataSuffix = regexp.MustCompile(`^(.+)-([0-9a-fA-F]+)$`)

// StripMetadataSuffix returns the base of a stem-like name (no extension)
// with its trailing "-<hex>" metadata suffix removed and underscores
// converted to hyphens (the convenience-symlink rule, §4.6), and true. The
// suffix must be non-empty and all-hex, following strip_metadata_suffix's
// guard; without one it returns "" and false.
func StripMetadataSuffix(nameNoExt string) (string, bool) {
	m := metadataSuffix.FindStringSubmatch(nameNoExt)
	if m == nil {
		return "", false
	}
	base := strings.ReplaceAll(m[1], "_", "-")
	return base, true
}
