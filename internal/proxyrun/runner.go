package proxyrun

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/command"
	"github.com/tangramdotdev/tgproxy/internal/config"
	"github.com/tangramdotdev/tgproxy/internal/dispatch"
	"github.com/tangramdotdev/tgproxy/internal/hostsys"
	"github.com/tangramdotdev/tgproxy/internal/placeholder"
	"github.com/tangramdotdev/tgproxy/internal/resolve"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
	"github.com/tangramdotdev/tgproxy/internal/toolkind"
	"github.com/tangramdotdev/tgproxy/internal/workspace"
)

// RunBuildScriptRunnerOuter is the build-script runner's outer half:
// content-address the script binary and its crate source, dispatch a
// sandboxed run through the runner driver, then write the resulting
// OUT_DIR back to cargo's real output path. Invoked as
// "tgrustc runner <script-binary> ...", distinct from both a plain rustc
// invocation and from the runner driver mode that runs inside the sandbox.
func RunBuildScriptRunnerOuter(ctx context.Context, argv []string, environ []string) error {
	env := toolkind.NewEnv(environ)
	args, err := toolkind.ParseRunnerArgs(argv, env)
	if err != nil {
		return err
	}

	outerEnv := config.LoadOuterEnv()
	store, err := OpenStore(outerEnv)
	if err != nil {
		return err
	}

	scriptID, err := store.Checkin(ctx, args.ScriptBinary, storeclient.CheckinArg{Deterministic: true})
	if err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to checkin build script binary %s", args.ScriptBinary)
	}

	sourceRef, manifestSubpath, err := resolveRunnerSource(ctx, store, args)
	if err != nil {
		return err
	}

	driverExecutable, checkedInSelf := SelfExecutablePath(outerEnv.DriverExecutable)
	executableID, err := resolveExecutable(ctx, store, driverExecutable, checkedInSelf)
	if err != nil {
		return err
	}

	cmdEnv, err := buildRunnerEnv(ctx, store, environ, sourceRef, manifestSubpath)
	if err != nil {
		return err
	}

	cmd := command.Command{
		Executable: executableID,
		Args:       []command.Arg{command.Tmpl(artifact.Ref(artifact.NewReferent(scriptID)))},
		Env:        cmdEnv,
		Host:       hostsys.Default(),
		Network:    false,
	}

	crateName := env.GetOr("CARGO_PKG_NAME", "unknown")
	output, err := dispatch.SpawnAndWait(ctx, store, cmd, "build script for "+crateName)
	if err != nil {
		return err
	}

	stdout, stderr, err := dispatch.ReadLogs(output.Directory)
	if err != nil {
		return err
	}

	outDir, ok := output.Directory.Get(placeholder.OutDirSentinel)
	if !ok {
		return tgerror.New(tgerror.StoreError, "expected %s directory in output from runner process %s", placeholder.OutDirSentinel, output.ProcessId)
	}

	cargoOutDir, ok := env.Get("OUT_DIR")
	if !ok || cargoOutDir == "" {
		return tgerror.New(tgerror.EnvError, "OUT_DIR must be set")
	}
	if err := writeOutDirToCargo(ctx, store, outDir, cargoOutDir); err != nil {
		return err
	}

	stdout = []byte(placeholder.Substitute(string(stdout), cargoOutDir))
	return dispatch.ForwardLogs(stdout, stderr)
}

// writeOutDirToCargo materializes a build script's OUT_DIR artifact to
// cargo's real output path. Goes through StoreArtifact+Checkout rather than
// a hand-rolled recursive disk writer, since that pair already implements
// "remove what's there, write fresh" for every store implementation.
func writeOutDirToCargo(ctx context.Context, store storeclient.Store, outDir artifact.Artifact, target string) error {
	id, err := store.StoreArtifact(ctx, outDir)
	if err != nil {
		return err
	}
	if _, err := store.Checkout(ctx, id, storeclient.CheckoutArg{Force: true, Path: target}); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write OUT_DIR contents to %s", target)
	}
	return nil
}

// resolveRunnerSource content-addresses the crate source the build script
// should run against. For a workspace member it first filters out sibling
// members' .rs files in a scratch copy, so editing an unrelated workspace
// crate never perturbs this crate's build-script cache key; a plain crate
// (or a workspace whose members can't be parsed) is checked in directly.
func resolveRunnerSource(ctx context.Context, store storeclient.Store, args toolkind.RunnerArgs) (artifact.Referent, string, error) {
	subpath := args.ManifestSubpath()
	if subpath == "" {
		id, err := store.Checkin(ctx, args.ManifestDir, storeclient.CheckinArg{Deterministic: true})
		if err != nil {
			return artifact.Referent{}, "", tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", args.ManifestDir)
		}
		return artifact.NewReferent(id), "", nil
	}

	members, err := workspace.ParseMembers(args.WorkspaceRoot)
	if err != nil {
		id, checkinErr := store.Checkin(ctx, args.WorkspaceRoot, storeclient.CheckinArg{Deterministic: true})
		if checkinErr != nil {
			return artifact.Referent{}, "", tgerror.Wrap(tgerror.StoreError, checkinErr, "failed to checkin %s", args.WorkspaceRoot)
		}
		return artifact.NewReferent(id), subpath, nil
	}

	scratch, err := os.MkdirTemp("", "tgrustc-workspace-*")
	if err != nil {
		return artifact.Referent{}, "", tgerror.Wrap(tgerror.StoreError, err, "failed to create scratch workspace directory")
	}
	defer os.RemoveAll(scratch)

	if err := copyTree(args.WorkspaceRoot, scratch); err != nil {
		return artifact.Referent{}, "", tgerror.Wrap(tgerror.StoreError, err, "failed to copy workspace %s", args.WorkspaceRoot)
	}
	if err := workspace.FilterSiblings(scratch, members, subpath); err != nil {
		return artifact.Referent{}, "", err
	}

	id, err := store.Checkin(ctx, scratch, storeclient.CheckinArg{Deterministic: true})
	if err != nil {
		return artifact.Referent{}, "", tgerror.Wrap(tgerror.StoreError, err, "failed to checkin filtered workspace")
	}
	return artifact.NewReferent(id), subpath, nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// buildRunnerEnv filters the runner's environment through the runner's own
// blacklist (distinct from the plain rustc/cc/ld blacklist; see
// resolve.FilterRunnerEnv), content-addressing every surviving value the
// way buildRustcEnv does, then layers in the TGRUSTC_RUNNER_* handshake the
// runner driver reads on the other side of the dispatch.
func buildRunnerEnv(ctx context.Context, store storeclient.Store, environ []string, sourceRef artifact.Referent, manifestSubpath string) (map[string]artifact.Template, error) {
	raw := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			raw[kv[:i]] = kv[i+1:]
		}
	}
	filtered := resolve.FilterRunnerEnv(raw)

	out := make(map[string]artifact.Template, len(filtered)+3)
	for name, value := range filtered {
		if name == "PATH" {
			tmpl, err := artifact.Unrender(store.StoreRoot(), value)
			if err != nil {
				return nil, tgerror.Wrap(tgerror.StoreError, err, "failed to unrender PATH")
			}
			out[name] = tmpl
			continue
		}
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

	out["TGRUSTC_RUNNER_DRIVER_MODE"] = artifact.Lit("1")
	out["TGRUSTC_RUNNER_SOURCE"] = artifact.Ref(sourceRef)
	if manifestSubpath != "" {
		out["TGRUSTC_RUNNER_MANIFEST_SUBPATH"] = artifact.Lit(manifestSubpath)
	}
	return out, nil
}
