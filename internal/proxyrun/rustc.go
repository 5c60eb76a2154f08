package proxyrun

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/closure"
	"github.com/tangramdotdev/tgproxy/internal/command"
	"github.com/tangramdotdev/tgproxy/internal/config"
	"github.com/tangramdotdev/tgproxy/internal/dispatch"
	"github.com/tangramdotdev/tgproxy/internal/hostsys"
	"github.com/tangramdotdev/tgproxy/internal/materialize"
	"github.com/tangramdotdev/tgproxy/internal/resolve"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
	"github.com/tangramdotdev/tgproxy/internal/toolkind"
)

// RunRustcOuter is run_proxy's equivalent: it classifies argv, resolves
// every path-shaped argument into the store, spawns an inner driver
// invocation, and materializes the result into rustc's expected --out-dir.
func RunRustcOuter(ctx context.Context, argv []string, environ []string) error {
	env := toolkind.NewEnv(environ)
	args, err := toolkind.ParseRustcArgs(argv, env)
	if err != nil {
		return err
	}

	if args.IsPassthrough() {
		return execPassthrough(args.Rustc, argv[1:])
	}

	outerEnv := config.LoadOuterEnv()
	store, err := OpenStore(outerEnv)
	if err != nil {
		return err
	}

	sourceRef, err := resolveSourceDirectory(ctx, store, outerEnv.WorkspaceSource, args.SourceDirectory)
	if err != nil {
		return err
	}

	outDirRef, outDirArtifactId, cargoOutPath, err := resolveOutDirectory(ctx, store, args.CargoOutDirectory)
	if err != nil {
		return err
	}

	driverExecutable, checkedInSelf := SelfExecutablePath(outerEnv.DriverExecutable)
	executableID, err := resolveExecutable(ctx, store, driverExecutable, checkedInSelf)
	if err != nil {
		return err
	}

	cmdEnv, err := buildRustcEnv(ctx, store, environ, args.Rustc, sourceRef, outDirRef)
	if err != nil {
		return err
	}

	var cmdArgs []command.Arg
	for _, arg := range args.Remaining {
		if cargoOutPath != "" && outDirArtifactId != nil {
			if native, ok := strings.CutPrefix(arg, "native="); ok && native == cargoOutPath {
				tmpl := artifact.Join("native=", artifact.Ref(artifact.NewReferent(*outDirArtifactId)))
				cmdArgs = append(cmdArgs, command.Tmpl(tmpl))
				continue
			}
		}
		resolved, err := resolve.ResolveToken(ctx, store, arg)
		if err != nil {
			return err
		}
		cmdArgs = append(cmdArgs, resolved)
	}

	externArgs, err := processExterns(ctx, store, args.Externs)
	if err != nil {
		return err
	}
	cmdArgs = append(cmdArgs, externArgs...)

	depArgs, err := processDependencies(ctx, store, args.Dependencies, args.Externs)
	if err != nil {
		return err
	}
	cmdArgs = append(cmdArgs, depArgs...)

	cmd := command.Command{
		Executable: executableID,
		Args:       cmdArgs,
		Env:        cmdEnv,
		Host:       hostsys.Default(),
		Network:    false,
	}

	output, err := dispatch.SpawnAndWait(ctx, store, cmd, "rustc")
	if err != nil {
		return err
	}

	stdout, stderr, err := dispatch.ReadLogs(output.Directory)
	if err != nil {
		return err
	}

	buildDir, ok := output.Build()
	if !ok {
		return tgerror.New(tgerror.StoreError, "expected build directory in process %s output", output.ProcessId)
	}
	entries := make([]materialize.Entry, 0, len(buildDir.Names))
	for _, name := range buildDir.Names {
		entries = append(entries, materialize.Entry{Name: name, Artifact: buildDir.Entries[name]})
	}
	if err := materialize.WriteOutputs(ctx, store, entries, args.RustcOutputDirectory, externPathsOf(args.Externs)); err != nil {
		return err
	}

	return dispatch.ForwardLogs(stdout, stderr)
}

func execPassthrough(rustc string, args []string) error {
	resolved, err := exec.LookPath(rustc)
	if err != nil {
		resolved = rustc
	}
	execErr := syscall.Exec(resolved, append([]string{rustc}, args...), os.Environ())
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "exec failed")
}

func resolveSourceDirectory(ctx context.Context, store storeclient.Store, workspaceSource, sourceDirectory string) (artifact.Referent, error) {
	if workspaceSource != "" {
		tmpl, err := artifact.Unrender(store.StoreRoot(), workspaceSource)
		if err != nil {
			return artifact.Referent{}, tgerror.Wrap(tgerror.StoreError, err, "failed to unrender TGRUSTC_WORKSPACE_SOURCE")
		}
		for _, c := range tmpl {
			if ref, ok := c.(artifact.ArtifactRef); ok {
				return artifact.Referent(ref), nil
			}
		}
		return artifact.Referent{}, tgerror.New(tgerror.StoreError, "TGRUSTC_WORKSPACE_SOURCE did not resolve to an artifact")
	}
	id, err := store.Checkin(ctx, sourceDirectory, storeclient.CheckinArg{Deterministic: true})
	if err != nil {
		return artifact.Referent{}, tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", sourceDirectory)
	}
	return artifact.NewReferent(id), nil
}

func resolveOutDirectory(ctx context.Context, store storeclient.Store, cargoOutDirectory string) (artifact.Template, *artifact.Id, string, error) {
	if cargoOutDirectory == "" {
		id, err := store.StoreArtifact(ctx, artifact.NewDirectory(map[string]artifact.Artifact{}))
		if err != nil {
			return nil, nil, "", err
		}
		return artifact.Ref(artifact.NewReferent(id)), nil, "", nil
	}
	path, err := filepath.Abs(cargoOutDirectory)
	if err != nil {
		return nil, nil, "", tgerror.Wrap(tgerror.StoreError, err, "cannot canonicalize %s", cargoOutDirectory)
	}
	id, err := store.Checkin(ctx, path, storeclient.CheckinArg{Deterministic: true})
	if err != nil {
		return nil, nil, "", tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", path)
	}
	return artifact.Ref(artifact.NewReferent(id)), &id, path, nil
}

func resolveExecutable(ctx context.Context, store storeclient.Store, path string, alreadyRendered bool) (artifact.Id, error) {
	if alreadyRendered {
		tmpl, err := artifact.Unrender(store.StoreRoot(), path)
		if err != nil {
			return artifact.Id{}, tgerror.Wrap(tgerror.StoreError, err, "failed to unrender TGRUSTC_DRIVER_EXECUTABLE")
		}
		for _, c := range tmpl {
			if ref, ok := c.(artifact.ArtifactRef); ok {
				return ref.Artifact, nil
			}
		}
		return artifact.Id{}, tgerror.New(tgerror.StoreError, "TGRUSTC_DRIVER_EXECUTABLE did not resolve to an artifact")
	}
	id, err := store.Checkin(ctx, path, storeclient.CheckinArg{Deterministic: true})
	if err != nil {
		return artifact.Id{}, tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", path)
	}
	return id, nil
}

func buildRustcEnv(ctx context.Context, store storeclient.Store, environ []string, rustc string, sourceRef artifact.Referent, outDirTmpl artifact.Template) (map[string]artifact.Template, error) {
	raw := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			raw[kv[:i]] = kv[i+1:]
		}
	}
	filtered := resolve.FilterEnv(raw)

	out := make(map[string]artifact.Template, len(filtered)+4)
	for name, value := range filtered {
		resolved, err := resolve.ResolveToken(ctx, store, value)
		if err != nil {
			return nil, err
		}
		if resolved.IsTmpl {
			out[name] = resolved.Template
		} else {
			out[name] = artifact.Lit(resolved.Literal)
		}
	}

	rustcArg, err := resolve.ResolveToken(ctx, store, rustc)
	if err != nil {
		return nil, err
	}
	out["TGRUSTC_DRIVER_MODE"] = artifact.Lit("1")
	if rustcArg.IsTmpl {
		out["TGRUSTC_RUSTC"] = rustcArg.Template
	} else {
		out["TGRUSTC_RUSTC"] = artifact.Lit(rustcArg.Literal)
	}
	out["TGRUSTC_SOURCE"] = artifact.Ref(sourceRef)
	out["TGRUSTC_OUT_DIR"] = outDirTmpl
	return out, nil
}

func processExterns(ctx context.Context, store storeclient.Store, externs []toolkind.Extern) ([]command.Arg, error) {
	sorted := make([]toolkind.Extern, len(externs))
	copy(sorted, externs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var out []command.Arg
	for _, e := range sorted {
		if e.Path == "" {
			out = append(out, command.Lit("--extern"), command.Lit(e.Name))
			continue
		}
		targetPath, err := followSymlink(e.Path)
		if err != nil {
			return nil, err
		}
		filename := filepath.Base(e.Path)
		ref, err := resolvePathToArtifact(ctx, store, targetPath)
		if err != nil {
			return nil, err
		}
		wrapped := artifact.NewDirectory(map[string]artifact.Artifact{
			filename: artifact.NewSymlinkToArtifact(ref),
		})
		dirID, err := store.StoreArtifact(ctx, wrapped)
		if err != nil {
			return nil, err
		}
		tmpl := artifact.Join(e.Name+"=", artifact.NewReferent(dirID), "/"+filename)
		out = append(out, command.Lit("--extern"), command.Tmpl(tmpl))
	}
	return out, nil
}

func processDependencies(ctx context.Context, store storeclient.Store, dependencies []string, externs []toolkind.Extern) ([]command.Arg, error) {
	if len(dependencies) == 0 {
		return nil, nil
	}
	sorted := append([]string(nil), dependencies...)
	sort.Strings(sorted)

	result, err := closure.Compute(sorted, externPathsOf(externs))
	if err != nil {
		return nil, err
	}
	if len(result.Files) == 0 {
		return nil, nil
	}

	entries := map[string]artifact.Artifact{}
	for _, name := range result.SortedNames() {
		src := result.Files[name]
		ref, err := resolvePathToArtifact(ctx, store, src)
		if err != nil {
			continue
		}
		entries[name] = artifact.NewSymlinkToArtifact(ref)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	dirID, err := store.StoreArtifact(ctx, artifact.NewDirectory(entries))
	if err != nil {
		return nil, err
	}
	tmpl := artifact.Join("dependency=", artifact.NewReferent(dirID))
	return []command.Arg{command.Lit("-L"), command.Tmpl(tmpl)}, nil
}

func followSymlink(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return path, nil
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}
	target, err := os.Readlink(path)
	if err != nil {
		return path, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return target, nil
}

// resolvePathToArtifact mirrors resolve_path_to_artifact: a path that
// already renders a store artifact is unrendered directly (optionally
// navigating a subpath); otherwise it is freshly checked in.
func resolvePathToArtifact(ctx context.Context, store storeclient.Store, path string) (artifact.Referent, error) {
	if ref, ok := store.ArtifactPathDetect(path); ok {
		return ref, nil
	}
	id, err := store.Checkin(ctx, path, storeclient.CheckinArg{Deterministic: true})
	if err != nil {
		return artifact.Referent{}, tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", path)
	}
	return artifact.NewReferent(id), nil
}

func externPathsOf(externs []toolkind.Extern) []string {
	out := make([]string, 0, len(externs))
	for _, e := range externs {
		if e.Path != "" {
			out = append(out, e.Path)
		}
	}
	return out
}
