// Package driver implements the two inner-sandbox driver modes that run
// once a build has already been dispatched into the store's sandbox:
// RunDriver execs the real rustc directly with its stdout/stderr captured
// to log files, and RunRunnerDriver runs a build script as a captured
// subprocess, substituting the OUT_DIR placeholder into its own stdout.
package driver

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tangramdotdev/tgproxy/internal/placeholder"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

func requiredEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", tgerror.New(tgerror.EnvError, "%s must be set", name)
	}
	return v, nil
}

// RunDriver execs rustc in place of the current process, having redirected
// stdout/stderr to <TANGRAM_OUTPUT>/log/{stdout,stderr} and rewritten
// --out-dir to <TANGRAM_OUTPUT>/build while leaving OUT_DIR pointed at the
// original (already-resolved) build-script output directory. Only returns
// on failure, since success replaces the process image.
func RunDriver(args []string) error {
	tangramOutput, err := requiredEnv("TANGRAM_OUTPUT")
	if err != nil {
		return err
	}
	rustcPath, err := requiredEnv("TGRUSTC_RUSTC")
	if err != nil {
		return err
	}
	sourceDir, err := requiredEnv("TGRUSTC_SOURCE")
	if err != nil {
		return err
	}
	outDirSource, err := requiredEnv("TGRUSTC_OUT_DIR")
	if err != nil {
		return err
	}

	buildPath := filepath.Join(tangramOutput, "build")
	logPath := filepath.Join(tangramOutput, "log")
	if err := os.MkdirAll(buildPath, 0o755); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create %s", buildPath)
	}
	if err := os.MkdirAll(logPath, 0o755); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create %s", logPath)
	}

	stdoutFile, err := os.Create(filepath.Join(logPath, "stdout"))
	if err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create stdout log")
	}
	stderrFile, err := os.Create(filepath.Join(logPath, "stderr"))
	if err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create stderr log")
	}

	if err := os.Chdir(sourceDir); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to chdir to %s", sourceDir)
	}
	if err := syscall.Dup2(int(stdoutFile.Fd()), 1); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to redirect stdout")
	}
	if err := syscall.Dup2(int(stderrFile.Fd()), 2); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to redirect stderr")
	}

	finalArgs := append([]string{rustcPath}, args...)
	finalArgs = append(finalArgs, "--out-dir", buildPath)
	env := append(os.Environ(), "OUT_DIR="+outDirSource)

	resolved, err := exec.LookPath(rustcPath)
	if err != nil {
		resolved = rustcPath
	}
	execErr := syscall.Exec(resolved, finalArgs, env)
	_ = os.WriteFile(filepath.Join(tangramOutput, "exec_error.txt"), []byte("exec failed: "+execErr.Error()), 0o644)
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "failed to exec rustc")
}

// RunRunnerDriver runs the build script named by args[0] as a captured
// subprocess (not an exec, since its exit code and log output still need
// post-processing before this driver itself exits), rooted at the crate's
// manifest directory, with OUT_DIR pointed at a placeholder-named directory
// under TANGRAM_OUTPUT and a scratch TMPDIR that is removed before the
// driver exits so it never ends up in the cached output artifact.
func RunRunnerDriver(args []string) error {
	tangramOutput, err := requiredEnv("TANGRAM_OUTPUT")
	if err != nil {
		return err
	}
	sourceDir, err := requiredEnv("TGRUSTC_RUNNER_SOURCE")
	if err != nil {
		return err
	}
	manifestDir := sourceDir
	if subpath := os.Getenv("TGRUSTC_RUNNER_MANIFEST_SUBPATH"); subpath != "" {
		manifestDir = filepath.Join(sourceDir, subpath)
	}

	outDirPath := filepath.Join(tangramOutput, placeholder.OutDirSentinel)
	logPath := filepath.Join(tangramOutput, "log")
	if err := os.MkdirAll(outDirPath, 0o755); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create out dir")
	}
	if err := os.MkdirAll(logPath, 0o755); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create log dir")
	}

	if len(args) == 0 {
		return tgerror.New(tgerror.ArgParseError, "expected build script binary path as argument")
	}
	scriptBinary := args[0]

	tmpDirPath := filepath.Join(tangramOutput, "tmp")
	if err := os.MkdirAll(tmpDirPath, 0o755); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to create tmp dir")
	}
	defer os.RemoveAll(tmpDirPath)

	cmd := exec.Command(scriptBinary)
	cmd.Dir = manifestDir
	cmd.Env = filterRunnerDriverEnv(os.Environ())
	cmd.Env = append(cmd.Env,
		"OUT_DIR="+outDirPath,
		"CARGO_MANIFEST_DIR="+manifestDir,
		"TMPDIR="+tmpDirPath,
		"BUN_INSTALL_CACHE_DIR="+tmpDirPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	cleanedStdout := placeholder.StripSandboxPrefix(stdout.String(), tangramOutput)

	if err := os.WriteFile(filepath.Join(logPath, "stdout"), []byte(cleanedStdout), 0o644); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write stdout log")
	}
	if err := os.WriteFile(filepath.Join(logPath, "stderr"), stderr.Bytes(), 0o644); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write stderr log")
	}

	if exitErr, ok := runErr.(*exec.ExitError); ok {
		// os.Exit skips deferred calls, so remove the scratch TMPDIR here.
		os.RemoveAll(tmpDirPath)
		os.Exit(exitErr.ExitCode())
	} else if runErr != nil {
		return tgerror.Wrap(tgerror.ToolFailure, runErr, "failed to spawn build script")
	}
	return nil
}

func filterRunnerDriverEnv(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}
		switch name {
		case "TGRUSTC_RUNNER_DRIVER_MODE", "TGRUSTC_RUNNER_SOURCE", "TGRUSTC_RUNNER_MANIFEST_SUBPATH":
			continue
		}
		out = append(out, kv)
	}
	return out
}
