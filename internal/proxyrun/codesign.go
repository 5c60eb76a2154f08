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

// RunCodesignPassthrough execs the real codesign binary verbatim, used
// whenever TANGRAM_CODESIGN_ENABLE is unset (and always on non-Darwin
// hosts, where codesign does not apply).
func RunCodesignPassthrough(argv []string) error {
	if len(argv) == 0 {
		return tgerror.New(tgerror.ArgParseError, "missing argument for codesign")
	}
	resolved, err := exec.LookPath(argv[0])
	if err != nil {
		resolved = argv[0]
	}
	execErr := syscall.Exec(resolved, argv, os.Environ())
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "exec failed")
}

// RunCodesignEnabled checks the input binary into the store before signing
// it in place, for the same provenance reason as RunStripEnabled.
func RunCodesignEnabled(ctx context.Context, store storeclient.Store, argv []string) error {
	args, err := toolkind.ParseCodesignArgs(argv, toolkind.NewEnv(os.Environ()))
	if err != nil {
		return err
	}
	if _, err := checkinIfLocal(ctx, store, args.InputPath); err != nil {
		return err
	}
	resolved, err := exec.LookPath(args.Codesign)
	if err != nil {
		resolved = args.Codesign
	}
	execErr := syscall.Exec(resolved, argv, os.Environ())
	return tgerror.Wrap(tgerror.ToolFailure, execErr, "exec failed")
}
