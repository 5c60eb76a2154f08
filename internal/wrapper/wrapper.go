// Package wrapper implements the at-launch re-exec binary (§4.7): it reads
// the manifest footer embedded in its own executable and replaces its
// process image with the real target, having applied the manifest's
// interpreter selection, argument prefix and environment mutations.
package wrapper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tangramdotdev/tgproxy/internal/manifest"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// Launch reads the manifest footer out of the wrapper binary at wrapperPath,
// renders its templates against storeRoot, and execs the resolved command in
// place of the current process. It only returns if exec itself fails.
func Launch(wrapperPath, storeRoot string, argv []string, environ []string) error {
	data, err := os.ReadFile(wrapperPath)
	if err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to read wrapper %s", wrapperPath)
	}
	payload, err := manifest.Extract(data)
	if err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "malformed manifest in %s", wrapperPath)
	}
	m, err := manifest.Deserialize(payload)
	if err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to parse manifest in %s", wrapperPath)
	}

	executablePath, err := renderExecutable(m.Executable, storeRoot)
	if err != nil {
		return err
	}

	var execPath string
	var execArgs []string
	if m.Interpreter != nil {
		interpPath, err := renderOne(m.Interpreter.Path, storeRoot)
		if err != nil {
			return err
		}
		for _, a := range m.Interpreter.Args {
			rendered, err := renderOne(a, storeRoot)
			if err != nil {
				return err
			}
			execArgs = append(execArgs, rendered)
		}
		execArgs = append(execArgs, executablePath)
		execPath = interpPath
	} else {
		execPath = executablePath
	}

	env := envMap(environ)
	if m.Env != nil {
		env, err = m.Env.Apply(env, storeRoot)
		if err != nil {
			return err
		}
	}
	if m.Interpreter != nil && m.Interpreter.IsDynamic() {
		env["TANGRAM_INJECTION_IDENTITY_PATH"] = wrapperPath
	}

	for _, a := range m.Args {
		rendered, err := renderOne(a, storeRoot)
		if err != nil {
			return err
		}
		execArgs = append(execArgs, rendered)
	}
	execArgs = append(execArgs, argv[1:]...)

	finalArgs := append([]string{argv[0]}, execArgs...)
	finalEnv := flattenEnv(env)

	resolved, err := lookPath(execPath)
	if err != nil {
		return tgerror.Wrap(tgerror.ToolFailure, err, "failed to locate %s", execPath)
	}
	if err := syscall.Exec(resolved, finalArgs, finalEnv); err != nil {
		return tgerror.Wrap(tgerror.ToolFailure, err, "failed to exec %s", resolved)
	}
	return nil
}

func renderExecutable(e manifest.Executable, storeRoot string) (string, error) {
	switch e.Kind {
	case manifest.ExecutablePath:
		return renderOne(e.Path, storeRoot)
	case manifest.ExecutableContent:
		return renderOne(e.Content, storeRoot)
	default:
		return "", tgerror.New(tgerror.StoreError, "address-based executables are not supported by this wrapper")
	}
}

func renderOne(t manifest.Template, storeRoot string) (string, error) {
	tmpl, err := t.ToArtifactTemplate()
	if err != nil {
		return "", err
	}
	return tmpl.Render(storeRoot), nil
}

func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func lookPath(path string) (string, error) {
	if strings.Contains(path, "/") {
		return path, nil
	}
	for _, dir := range strings.Split(os.Getenv("PATH"), ":") {
		candidate := filepath.Join(dir, path)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return path, nil
}
