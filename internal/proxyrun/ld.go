package proxyrun

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/hostsys"
	"github.com/tangramdotdev/tgproxy/internal/ldproxy"
	"github.com/tangramdotdev/tgproxy/internal/logging"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// RunLD runs the real linker as a direct local subprocess — unlike rustc,
// the linker proxy never dispatches through the sandbox, since its job is
// to post-process a native output file already sitting on disk, not to
// reproduce a sandboxed build step. Once the underlying link succeeds,
// ldproxy.CreateWrapper analyzes the result and, for a dynamically linked
// executable, wraps it in place.
func RunLD(ctx context.Context, store storeclient.Store, argv []string) error {
	log := logging.New("tgld")
	env := envMap(os.Environ())
	triple := hostsys.Default()

	opts, err := ldproxy.ReadOptions(argv, env, triple)
	if err != nil {
		return err
	}

	if err := runLinkerCommand(opts); err != nil {
		return err
	}

	if opts.Passthrough {
		return nil
	}

	result, err := ldproxy.CreateWrapper(ctx, store, opts, triple)
	if err != nil {
		return err
	}
	if len(result.MissingLibs) > 0 {
		log.WithField("libraries", strings.Join(result.MissingLibs, ",")).
			Warn("could not resolve every needed library to a store artifact")
	}
	return nil
}

// runLinkerCommand execs the real linker and waits for it, since the proxy
// still needs to run afterward in this same process to analyze the output.
func runLinkerCommand(opts ldproxy.Options) error {
	cmd := exec.Command(opts.CommandPath, opts.CommandArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return tgerror.New(tgerror.ToolFailure, "linker %s exited with status %d", opts.CommandPath, exitErr.ExitCode())
		}
		return tgerror.Wrap(tgerror.ToolFailure, err, "failed to run linker %s", opts.CommandPath)
	}
	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			m[kv[:idx]] = kv[idx+1:]
		}
	}
	return m
}
