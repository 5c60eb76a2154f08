package proxyrun

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
	"github.com/tangramdotdev/tgproxy/internal/toolkind"
)

// RunCCPassthrough execs the real compiler driver named by argv[0] verbatim.
// The C proxy only intervenes when TANGRAM_CC_ENABLE is set (§6); a cc/gcc
// invocation that isn't opted in bypasses Tangram entirely, since most
// crates only spawn cc indirectly through cc-rs for tiny helper objects
// that don't benefit from store-backed caching.
func RunCCPassthrough(argv []string) error {
	if len(argv) == 0 {
		return tgerror.New(tgerror.ArgParseError, "missing argument for cc")
	}
	resolved, err := exec.LookPath(argv[0])
	if err != nil {
		resolved = argv[0]
	}
	execErr := syscall.Exec(resolved, argv, os.Environ())
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "exec failed")
}

// RunCCEnabled classifies argv and checks every source/include path into the
// store before execing, so the resulting command line is provenance-tracked
// the same way rustc's inputs are, even though cc itself still runs outside
// the sandbox (its invocations are typically single tiny translation units
// where store-backed caching of the process itself buys little).
func RunCCEnabled(ctx context.Context, store storeclient.Store, argv []string) error {
	args, err := toolkind.ParseCCArgs(argv, toolkind.NewEnv(os.Environ()))
	if err != nil {
		return err
	}
	for _, src := range args.Sources {
		if _, err := checkinIfLocal(ctx, store, src.Path); err != nil {
			return err
		}
	}
	for _, inc := range args.Includes {
		if _, err := checkinIfLocal(ctx, store, inc.Path); err != nil {
			return err
		}
	}
	resolved, err := exec.LookPath(args.Compiler)
	if err != nil {
		resolved = args.Compiler
	}
	execErr := syscall.Exec(resolved, argv, os.Environ())
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "exec failed")
}

func checkinIfLocal(ctx context.Context, store storeclient.Store, path string) (bool, error) {
	if path == "" || path[0] != '/' {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	if _, err := store.Checkin(ctx, path, storeclient.CheckinArg{Deterministic: true}); err != nil {
		return false, tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", path)
	}
	return true, nil
}

