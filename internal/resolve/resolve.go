// Package resolve implements the Input Resolver (§4.2): it turns an
// ArgsRecord's raw string arguments into Command args/env Templates rooted
// in store artifacts.
package resolve

import (
	"context"
	"strings"
	"sync"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/command"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// PathClass is the Input Resolver's classification of an opaque argument
// (§4.2 "Path classification").
type PathClass int

const (
	ClassLiteral PathClass = iota
	ClassRenderedStorePath
	ClassAbsoluteLocal
	ClassNativePrefixed
)

func Classify(arg string) PathClass {
	if strings.HasPrefix(arg, "native=") {
		return ClassNativePrefixed
	}
	if artifact.ContainsArtifactPath(arg) {
		return ClassRenderedStorePath
	}
	if strings.HasPrefix(arg, "/") {
		return ClassAbsoluteLocal
	}
	return ClassLiteral
}

// ResolveToken converts a single opaque argument into a Command Arg,
// dispatching on Classify. store.StoreRoot() is the root used both to
// detect already-rendered store paths and to checkin fresh local paths.
func ResolveToken(ctx context.Context, store storeclient.Store, arg string) (command.Arg, error) {
	switch Classify(arg) {
	case ClassLiteral:
		return command.Lit(arg), nil

	case ClassRenderedStorePath:
		tmpl, err := artifact.Unrender(store.StoreRoot(), arg)
		if err != nil {
			return command.Arg{}, tgerror.Wrap(tgerror.StoreError, err, "failed to unrender %s", arg)
		}
		return command.Tmpl(tmpl), nil

	case ClassNativePrefixed:
		suffix := strings.TrimPrefix(arg, "native=")
		inner, err := ResolveToken(ctx, store, suffix)
		if err != nil {
			return command.Arg{}, err
		}
		if !inner.IsTmpl {
			return command.Lit("native=" + inner.Literal), nil
		}
		return command.Tmpl(artifact.Join("native=", inner.Template)), nil

	case ClassAbsoluteLocal:
		id, err := store.Checkin(ctx, arg, storeclient.CheckinArg{Deterministic: true})
		if err != nil {
			return command.Arg{}, tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", arg)
		}
		return command.Tmpl(artifact.Ref(artifact.NewReferent(id))), nil
	}
	return command.Lit(arg), nil
}

// needsResolution reports whether arg requires a store round-trip, as
// opposed to being a cheap literal fast-path (§4.2's "fast-paths
// non-path args directly into command_args").
func needsResolution(arg string) bool {
	return Classify(arg) != ClassLiteral
}

// ResolveAll implements the two-pass strategy from §4.2/§5: pass one walks
// args in order, reserving a positional slot for every arg that needs
// resolution and resolving cheap literals immediately; pass two dispatches
// every reservation concurrently (a single join) and fills slots by index,
// so the final order matches the textual order despite out-of-order
// completion.
func ResolveAll(ctx context.Context, store storeclient.Store, args []string) ([]command.Arg, error) {
	out := make([]command.Arg, len(args))
	type pending struct {
		index int
		arg   string
	}
	var reservations []pending

	for i, arg := range args {
		if needsResolution(arg) {
			reservations = append(reservations, pending{index: i, arg: arg})
			continue
		}
		out[i] = command.Lit(arg)
	}

	if len(reservations) == 0 {
		return out, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, p := range reservations {
		wg.Add(1)
		go func(p pending) {
			defer wg.Done()
			resolved, err := ResolveToken(ctx, store, p.arg)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			out[p.index] = resolved
		}(p)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// NormalizeRemap implements "Workspace-remap normalization" (§4.2): for
// "--remap-path-prefix OLD=NEW", if OLD is a prefix of manifestDir, rewrite
// the left side to be a Template rooted at the crate-specific source
// artifact (crateSource) rather than the literal workspace root, so the
// resulting Command arg is independent of the workspace's absolute path.
func NormalizeRemap(arg string, manifestDir string, crateSource artifact.Referent) (command.Arg, bool) {
	value, ok := strings.CutPrefix(arg, "--remap-path-prefix=")
	prefixForm := ok
	if !ok {
		value = arg
	}
	old, new_, found := strings.Cut(value, "=")
	if !found {
		return command.Arg{}, false
	}
	if !strings.HasPrefix(manifestDir, old) {
		return command.Arg{}, false
	}
	tmpl := artifact.Join(artifact.NewReferent(crateSource.Artifact).WithSubpath(crateSource.Subpath), "=", new_)
	if prefixForm {
		return command.Tmpl(artifact.Join("--remap-path-prefix=", tmpl)), true
	}
	return command.Tmpl(tmpl), true
}

// RewriteSourcePath implements "Source path rewriting (rustc)" (§4.2): when
// the crate source is a sub-path of a larger workspace artifact and a
// positional .rs argument begins with that sub-path, rewrite it relative,
// because the inner driver's working directory is the crate subdirectory.
func RewriteSourcePath(arg, crateSubpath string) string {
	if crateSubpath == "" {
		return arg
	}
	prefix := crateSubpath + "/"
	if rest, ok := strings.CutPrefix(arg, prefix); ok {
		return rest
	}
	return arg
}
