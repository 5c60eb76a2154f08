// Package config gathers the proxy family's environment-variable surface
// (§6) into typed structs, the way vorpal's pkg/config/cli.go gathers CLI
// flags into a command struct: read once at startup, validated eagerly,
// passed down instead of re-read with os.Getenv at every call site.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// OuterEnv is the environment surface read by an outer (non-driver) proxy
// invocation: store handshake plus per-tool configuration vars.
type OuterEnv struct {
	DriverMode       bool
	DriverExecutable string
	WorkspaceSource  string

	Host    string
	URL     string
	Output  string
	Process string

	LinkerCommandPath    string
	LinkerPassthrough    bool
	LinkerInjectionPath  string
	LinkerInterpreter    string
	LinkerInterpreterArgs string
	LinkerOptLevel       string
	LinkerMaxDepth       string

	CCEnable   bool
	CCCompiler string

	StripEnable string
	CodesignEnable string
}

// RunnerEnv is the environment surface read inside the build-script runner
// driver, distinct from OuterEnv since it additionally carries the
// TGRUSTC_RUNNER_* handshake that never exists outside that mode.
type RunnerEnv struct {
	DriverMode       bool
	Source           string
	ManifestSubpath  string
	Output           string
}

// DriverEnv is the environment surface read inside the rustc inner driver.
type DriverEnv struct {
	Output string
	Rustc  string
	Source string
	OutDir string
}

func boolEnv(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && v != ""
}

// LoadOuterEnv reads the outer-proxy environment surface. It never fails:
// every field is optional at this layer, since which vars are required
// depends on which proxy (rustc/cc/ld/strip/codesign) is running.
func LoadOuterEnv() OuterEnv {
	return OuterEnv{
		DriverMode:       boolEnv("TGRUSTC_DRIVER_MODE"),
		DriverExecutable: os.Getenv("TGRUSTC_DRIVER_EXECUTABLE"),
		WorkspaceSource:  os.Getenv("TGRUSTC_WORKSPACE_SOURCE"),

		Host:    os.Getenv("TANGRAM_HOST"),
		URL:     os.Getenv("TANGRAM_URL"),
		Output:  os.Getenv("TANGRAM_OUTPUT"),
		Process: os.Getenv("TANGRAM_PROCESS"),

		LinkerCommandPath:     os.Getenv("TANGRAM_LINKER_COMMAND_PATH"),
		LinkerPassthrough:     boolEnv("TANGRAM_LINKER_PASSTHROUGH"),
		LinkerInjectionPath:   os.Getenv("TANGRAM_LINKER_INJECTION_PATH"),
		LinkerInterpreter:     os.Getenv("TANGRAM_LINKER_INTERPRETER_PATH"),
		LinkerInterpreterArgs: os.Getenv("TANGRAM_LINKER_INTERPRETER_ARGS"),
		LinkerOptLevel:        os.Getenv("TANGRAM_LINKER_LIBRARY_PATH_OPT_LEVEL"),
		LinkerMaxDepth:        os.Getenv("TANGRAM_LINKER_MAX_DEPTH"),

		CCEnable:   boolEnv("TANGRAM_CC_ENABLE"),
		CCCompiler: os.Getenv("TANGRAM_CC_COMPILER"),

		StripEnable:    os.Getenv("TANGRAM_STRIP_ENABLE"),
		CodesignEnable: os.Getenv("TANGRAM_CODESIGN_ENABLE"),
	}
}

// LoadRunnerEnv reads the build-script runner driver's environment surface.
// Returns an error if TGRUSTC_RUNNER_SOURCE is missing while driver mode is
// active, since the runner driver cannot proceed without it.
func LoadRunnerEnv() (RunnerEnv, error) {
	e := RunnerEnv{
		DriverMode:      boolEnv("TGRUSTC_RUNNER_DRIVER_MODE"),
		Source:          os.Getenv("TGRUSTC_RUNNER_SOURCE"),
		ManifestSubpath: os.Getenv("TGRUSTC_RUNNER_MANIFEST_SUBPATH"),
		Output:          os.Getenv("TANGRAM_OUTPUT"),
	}
	if e.DriverMode && e.Source == "" {
		return e, tgerror.New(tgerror.EnvError, "TGRUSTC_RUNNER_SOURCE must be set in runner driver mode")
	}
	return e, nil
}

// LoadDriverEnv reads the plain inner-driver environment surface, required
// in full whenever TGRUSTC_DRIVER_MODE is active.
func LoadDriverEnv() (DriverEnv, error) {
	e := DriverEnv{
		Output: os.Getenv("TANGRAM_OUTPUT"),
		Rustc:  os.Getenv("TGRUSTC_RUSTC"),
		Source: os.Getenv("TGRUSTC_SOURCE"),
		OutDir: os.Getenv("TGRUSTC_OUT_DIR"),
	}
	var missing []string
	if e.Output == "" {
		missing = append(missing, "TANGRAM_OUTPUT")
	}
	if e.Rustc == "" {
		missing = append(missing, "TGRUSTC_RUSTC")
	}
	if e.Source == "" {
		missing = append(missing, "TGRUSTC_SOURCE")
	}
	if e.OutDir == "" {
		missing = append(missing, "TGRUSTC_OUT_DIR")
	}
	if len(missing) > 0 {
		return e, tgerror.New(tgerror.EnvError, "missing required driver-mode env vars: %s", strings.Join(missing, ", "))
	}
	return e, nil
}

// MaxDepth parses LinkerMaxDepth, falling back to def when unset or
// unparseable, mirroring the linker proxy's own forgiving option parsing.
func (e OuterEnv) MaxDepth(def int) int {
	if e.LinkerMaxDepth == "" {
		return def
	}
	n, err := strconv.Atoi(e.LinkerMaxDepth)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Env var blacklisting lives in package resolve (FilterEnv/FilterRunnerEnv),
// since that package is the one that actually builds Command env maps; this
// package only loads the proxy's own typed config out of the environment.
