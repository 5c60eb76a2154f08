// Package workspace discovers Cargo workspace members and builds the
// filtered-workspace source artifact used by the build-script runner
// (§4.2, §9's "find_root_manifest_dir" open question — resolved here in
// favor of the member filter influencing the source artifact itself, not
// merely logging, matching the original implementation's behavior).
package workspace

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// placeholderContents replaces every sibling member's .rs file so unrelated
// source edits elsewhere in the workspace do not change the current
// crate's cache key, while preserving non-rust files (notably Cargo.toml
// and Cargo.lock) verbatim.
const placeholderContents = "// placeholder\n"

type cargoManifest struct {
	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

// ParseMembers reads root/Cargo.toml's [workspace] members array, expanding
// glob patterns (e.g. "crates/*") the way Cargo itself does, via the
// standard library's filepath.Glob — sufficient here because workspace
// member patterns are single-level shell globs, not the recursive "**"
// forms a dedicated glob library would be needed for.
func ParseMembers(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil, tgerror.Wrap(tgerror.StoreError, err, "failed to read workspace manifest in %s", root)
	}
	var manifest cargoManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, tgerror.Wrap(tgerror.ArgParseError, err, "failed to parse workspace manifest in %s", root)
	}

	seen := map[string]bool{}
	var members []string
	for _, pattern := range manifest.Workspace.Members {
		expanded, err := expandMemberGlob(root, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range expanded {
			if !seen[m] {
				seen[m] = true
				members = append(members, m)
			}
		}
	}
	sort.Strings(members)
	return members, nil
}

func expandMemberGlob(root, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, tgerror.Wrap(tgerror.ArgParseError, err, "invalid workspace member glob %q", pattern)
	}
	var out []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(m, "Cargo.toml")); err != nil {
			continue
		}
		rel, err := filepath.Rel(root, m)
		if err != nil {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// FilterSiblings walks root, replacing .rs file contents under every
// member directory other than currentMember with placeholderContents,
// leaving currentMember and every non-.rs file untouched. This must be
// applied to a scratch copy of the workspace, never the build driver's own
// checkout, since it mutates file contents before checkin.
func FilterSiblings(scratchRoot string, members []string, currentMember string) error {
	for _, member := range members {
		if member == currentMember {
			continue
		}
		dir := filepath.Join(scratchRoot, member)
		if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			if filepath.Ext(path) != ".rs" {
				return nil
			}
			return os.WriteFile(path, []byte(placeholderContents), info.Mode())
		}); err != nil {
			return tgerror.Wrap(tgerror.StoreError, err, "failed to filter workspace member %s", member)
		}
	}
	return nil
}
