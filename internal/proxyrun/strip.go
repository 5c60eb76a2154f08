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

// RunStripPassthrough execs the real strip binary verbatim, used whenever
// TANGRAM_STRIP_ENABLE is unset.
func RunStripPassthrough(argv []string) error {
	if len(argv) == 0 {
		return tgerror.New(tgerror.ArgParseError, "missing argument for strip")
	}
	resolved, err := exec.LookPath(argv[0])
	if err != nil {
		resolved = argv[0]
	}
	execErr := syscall.Exec(resolved, argv, os.Environ())
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "exec failed")
}

// RunStripEnabled checks the input binary into the store before stripping
// it in place, so the stripped artifact can still be traced back to the
// unstripped one it replaced.
func RunStripEnabled(ctx context.Context, store storeclient.Store, argv []string) error {
	args, err := toolkind.ParseStripArgs(argv, toolkind.NewEnv(os.Environ()))
	if err != nil {
		return err
	}
	if _, err := checkinIfLocal(ctx, store, args.InputPath); err != nil {
		return err
	}
	resolved, err := exec.LookPath(args.Strip)
	if err != nil {
		resolved = args.Strip
	}
	execErr := syscall.Exec(resolved, argv, os.Environ())
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "exec failed")
}
