package toolkind

import (
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// RunnerArgs is the ArgsRecord for the buildScriptRunner variant: unlike
// rustc, there is no flag classification, only a script binary path and the
// ambient cargo environment describing where it should run.
type RunnerArgs struct {
	ScriptBinary  string
	ManifestDir   string // CARGO_MANIFEST_DIR
	WorkspaceRoot string // set if ManifestDir is a workspace member, else equal to ManifestDir
}

func ParseRunnerArgs(argv []string, env Env) (RunnerArgs, error) {
	if len(argv) < 1 {
		return RunnerArgs{}, tgerror.New(tgerror.ArgParseError, "missing build script binary argument")
	}
	manifestDir, ok := env.Get("CARGO_MANIFEST_DIR")
	if !ok || manifestDir == "" {
		return RunnerArgs{}, tgerror.New(tgerror.EnvError, "CARGO_MANIFEST_DIR is required for build script runner mode")
	}
	workspaceRoot, _ := env.Get("TGRUSTC_WORKSPACE_SOURCE")
	if workspaceRoot == "" {
		workspaceRoot = manifestDir
	}
	return RunnerArgs{
		ScriptBinary:  argv[0],
		ManifestDir:   manifestDir,
		WorkspaceRoot: workspaceRoot,
	}, nil
}

// ManifestSubpath returns the path of ManifestDir relative to WorkspaceRoot,
// or "" if they are equal (the crate is not a workspace member, or no
// workspace-filtering is in effect).
func (a RunnerArgs) ManifestSubpath() string {
	if a.WorkspaceRoot == a.ManifestDir {
		return ""
	}
	rel := strings.TrimPrefix(a.ManifestDir, a.WorkspaceRoot)
	return strings.TrimPrefix(rel, "/")
}
