// Package materialize is the Output Materializer (§4.6): it writes a
// completed build directory out to cargo's expected output layout,
// symlinking dependency files to the artifact store and copying binaries
// with the executable bit set.
package materialize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/closure"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// dependencyExtensions mirrors is_dependency_file: unlike the closure
// computer's catalog (which skips ".d" files since they carry no useful
// transitive-dependency information), the materializer symlinks ".d" files
// to the store too since cargo still expects them to exist on disk.
var dependencyExtensions = map[string]bool{
	"rlib": true, "rmeta": true, "d": true, "so": true, "dylib": true,
}

func isDependencyFile(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return dependencyExtensions[strings.ToLower(ext)]
}

// Entry pairs an output directory member's name with its materialized
// artifact.
type Entry struct {
	Name     string
	Artifact artifact.Artifact
}

// WriteOutputs materializes build directory entries into outputDir:
// dependency files (.rlib/.rmeta/.d/.so/.dylib) are symlinked to the store
// after a single batch Cache call; everything else is treated as a binary,
// written with 0o755 permissions, and given a convenience hyphenated
// symlink when its filename carries a rustc metadata suffix. A single
// ".externs" sidecar is written alongside the first .rlib/.rmeta entry
// found, listing the stems of this invocation's extern dependencies for
// the next crate's closure computation.
func WriteOutputs(ctx context.Context, store storeclient.Store, entries []Entry, outputDir string, externPaths []string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create output directory %s", outputDir)
	}

	if err := writeExternsSidecar(entries, outputDir, externPaths); err != nil {
		return err
	}

	var depIDs []artifact.Id
	for _, e := range entries {
		if isDependencyFile(e.Name) {
			id, err := store.StoreArtifact(ctx, e.Artifact)
			if err != nil {
				return err
			}
			depIDs = append(depIDs, id)
		}
	}
	if err := store.Cache(ctx, depIDs); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(entries))
	for _, e := range entries {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			errs <- writeEntry(ctx, store, e, outputDir)
		}(e)
	}
	wg.Wait()
	close(errs)

	var result *multierror.Error
	for err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func writeEntry(ctx context.Context, store storeclient.Store, e Entry, outputDir string) error {
	to := filepath.Join(outputDir, e.Name)
	_ = os.Remove(to)

	if isDependencyFile(e.Name) {
		id, err := store.StoreArtifact(ctx, e.Artifact)
		if err != nil {
			return err
		}
		path, err := store.Checkout(ctx, id, storeclient.CheckoutArg{})
		if err != nil {
			return tgerror.Wrap(tgerror.StoreError, err, "failed to materialize dependency %s", e.Name)
		}
		if err := os.Symlink(path, to); err != nil {
			return tgerror.Wrap(tgerror.StoreError, err, "failed to symlink %s", to)
		}
		return nil
	}

	if e.Artifact.Kind != artifact.KindFile {
		return tgerror.New(tgerror.StoreError, "expected file artifact for %s", e.Name)
	}
	if err := os.WriteFile(to, e.Artifact.Contents, 0o755); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write file %s", to)
	}

	ext := filepath.Ext(e.Name)
	nameNoExt := strings.TrimSuffix(e.Name, ext)
	if convenience, ok := closure.StripMetadataSuffix(nameNoExt); ok {
		convenientPath := filepath.Join(outputDir, convenience+ext)
		_ = os.Remove(convenientPath)
		if err := os.Symlink(to, convenientPath); err != nil {
			return tgerror.Wrap(tgerror.StoreError, err, "failed to create convenience symlink %s", convenientPath)
		}
	}
	return nil
}

func writeExternsSidecar(entries []Entry, outputDir string, externPaths []string) error {
	for _, e := range entries {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name), "."))
		if ext != "rlib" && ext != "rmeta" {
			continue
		}
		stemmedName := strings.TrimSuffix(e.Name, filepath.Ext(e.Name)) + ".externs"
		externsPath := filepath.Join(outputDir, filepath.Base(stemmedName))

		var stems []string
		for _, p := range externPaths {
			if stem := closure.ExtractStem(filepath.Base(p)); stem != "" {
				stems = append(stems, stem)
			}
		}
		content := strings.Join(stems, "\n")
		if err := os.WriteFile(externsPath, []byte(content), 0o644); err != nil {
			return tgerror.Wrap(tgerror.StoreError, err, "failed to write externs file %s", externsPath)
		}
		return nil // only one .externs file per crate
	}
	return nil
}
