package ldproxy

import (
	"context"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

func tgNotFound(id artifact.Id) error {
	return tgerror.New(tgerror.StoreError, "artifact %s not found", id)
}

// NeededLibraries tracks, for every library name seen so far, which library
// path referent (if any) was found to contain it.
type NeededLibraries map[string]*artifact.Referent

func foundAll(needed NeededLibraries) bool {
	if len(needed) == 0 {
		return true
	}
	for _, v := range needed {
		if v == nil {
			return false
		}
	}
	return true
}

// nameOf reverse-looks-up a file artifact's entry name within any of the
// candidate library path directories, so a Depends id (which carries no
// name of its own) can be turned back into the string NEEDED entries key
// on for the next BFS round.
func nameOf(ctx context.Context, store storeclient.Store, paths []artifact.Referent, id artifact.Id) string {
	for _, pathRef := range paths {
		dir, err := directoryFor(ctx, store, pathRef)
		if err != nil || dir.Kind != artifact.KindDirectory {
			continue
		}
		for _, name := range dir.Names {
			entryID, err := store.StoreArtifact(ctx, dir.Entries[name])
			if err == nil && entryID == id {
				return name
			}
		}
	}
	return ""
}

func directoryFor(ctx context.Context, store storeclient.Store, ref artifact.Referent) (artifact.Artifact, error) {
	a, ok := store.GetArtifact(ctx, ref.Artifact)
	if !ok {
		return artifact.Artifact{}, tgNotFound(ref.Artifact)
	}
	if ref.Subpath != "" {
		inner, ok := a.Get(ref.Subpath)
		if !ok {
			return artifact.Artifact{}, tgNotFound(ref.Artifact)
		}
		return inner, nil
	}
	return a, nil
}

// ResolveDirectories collapses every referent with a subpath down to its
// innermost directory, re-storing the result so later lookups operate on a
// plain (no-subpath) referent.
func ResolveDirectories(ctx context.Context, store storeclient.Store, paths []artifact.Referent) ([]artifact.Referent, error) {
	out := make([]artifact.Referent, 0, len(paths))
	for _, p := range paths {
		if p.Subpath == "" {
			out = append(out, p)
			continue
		}
		dir, err := directoryFor(ctx, store, p)
		if err != nil {
			return nil, err
		}
		id, err := store.StoreArtifact(ctx, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, artifact.NewReferent(id))
	}
	return out, nil
}

// FindTransitiveNeeded walks library paths breadth-first (bounded by
// maxDepth), recording which path contains each needed library and pulling
// in that library's own NEEDED entries for the next round.
func FindTransitiveNeeded(ctx context.Context, store storeclient.Store, fileNeeded []string, paths []artifact.Referent, needed NeededLibraries, maxDepth int) error {
	for _, name := range fileNeeded {
		if _, ok := needed[name]; !ok {
			needed[name] = nil
		}
	}
	frontier := fileNeeded
	for depth := 0; depth < maxDepth && !foundAll(needed) && len(frontier) > 0; depth++ {
		for _, name := range frontier {
			if _, ok := needed[name]; !ok {
				needed[name] = nil
			}
		}
		var next []string
		for _, name := range frontier {
			if needed[name] != nil {
				continue
			}
			for _, pathRef := range paths {
				dir, err := directoryFor(ctx, store, pathRef)
				if err != nil {
					continue
				}
				child, ok := dir.Get(name)
				if !ok || child.Kind != artifact.KindFile {
					continue
				}
				ref := pathRef
				needed[name] = &ref
				for _, depId := range child.Depends {
					if depName := nameOf(ctx, store, paths, depId); depName != "" {
						if _, known := needed[depName]; !known {
							needed[depName] = nil
							next = append(next, depName)
						}
					}
				}
				break
			}
		}
		if foundAll(needed) {
			break
		}
		frontier = next
	}
	return nil
}

// FinalizeLibraryPaths checks out every selected directory to disk (so the
// wrapper manifest's symlinks resolve) and reports any needed library that
// was never located.
func FinalizeLibraryPaths(ctx context.Context, store storeclient.Store, resolved []artifact.Referent, needed NeededLibraries) ([]artifact.Referent, []string) {
	for _, ref := range resolved {
		_, _ = store.Checkout(ctx, ref.Artifact, storeclient.CheckoutArg{})
	}
	var missing []string
	for name, ref := range needed {
		if ref == nil {
			missing = append(missing, name)
		}
	}
	return resolved, missing
}

// CombineLibraryPaths builds a single synthetic directory containing every
// located needed library, collapsing the "Combine" optimization level's
// paths down to one -L argument in the wrapper manifest.
func CombineLibraryPaths(ctx context.Context, store storeclient.Store, needed NeededLibraries) (*artifact.Referent, error) {
	entries := map[string]artifact.Artifact{}
	for name, ref := range needed {
		if ref == nil {
			continue
		}
		dir, err := directoryFor(ctx, store, *ref)
		if err != nil {
			continue
		}
		if a, ok := dir.Get(name); ok {
			entries[name] = a
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	id, err := store.StoreArtifact(ctx, artifact.NewDirectory(entries))
	if err != nil {
		return nil, err
	}
	ref := artifact.NewReferent(id)
	return &ref, nil
}

// OptimizeLibraryPaths implements the four optimization levels described in
// §4.5: none passes library paths through untouched; resolve collapses
// subpaths; filter keeps only paths containing a needed library; combine
// (the default) further merges every needed library into one directory.
func OptimizeLibraryPaths(ctx context.Context, store storeclient.Store, fileNeeded []string, paths []artifact.Referent, needed NeededLibraries, level LibraryPathOptLevel, maxDepth int) ([]artifact.Referent, error) {
	if level == OptNone || len(paths) == 0 {
		return paths, nil
	}

	resolved, err := ResolveDirectories(ctx, store, paths)
	if err != nil {
		return nil, err
	}
	if level == OptResolve {
		out, _ := FinalizeLibraryPaths(ctx, store, resolved, needed)
		return out, nil
	}

	if err := FindTransitiveNeeded(ctx, store, fileNeeded, resolved, needed, maxDepth); err != nil {
		return nil, err
	}
	if level == OptFilter {
		var filtered []artifact.Referent
		seen := map[artifact.Id]bool{}
		for _, ref := range needed {
			if ref != nil && !seen[ref.Artifact] {
				seen[ref.Artifact] = true
				filtered = append(filtered, *ref)
			}
		}
		out, _ := FinalizeLibraryPaths(ctx, store, filtered, needed)
		return out, nil
	}

	combined, err := CombineLibraryPaths(ctx, store, needed)
	if err != nil {
		return nil, err
	}
	var out []artifact.Referent
	if combined != nil {
		out = []artifact.Referent{*combined}
	}
	out, _ = FinalizeLibraryPaths(ctx, store, out, needed)
	return out, nil
}
