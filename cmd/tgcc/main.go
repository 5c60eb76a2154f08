// Command tgcc is the C/C++ compiler proxy (§4.1, §6). Invoked as
// `tgcc <real-cc-path> <cc-args...>`, it passes through untouched unless
// TANGRAM_CC_ENABLE is set, in which case source and include paths are
// checked into the store before the real compiler runs.
package main

import (
	"context"
	"os"

	"github.com/tangramdotdev/tgproxy/internal/config"
	"github.com/tangramdotdev/tgproxy/internal/proxyrun"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

func main() {
	outerEnv := config.LoadOuterEnv()

	var err error
	if outerEnv.CCEnable {
		ctx := context.Background()
		store, openErr := proxyrun.OpenStore(outerEnv)
		if openErr != nil {
			tgerror.Print(os.Stderr, openErr)
			os.Exit(1)
		}
		err = proxyrun.RunCCEnabled(ctx, store, os.Args[1:])
	} else {
		err = proxyrun.RunCCPassthrough(os.Args[1:])
	}

	if err != nil {
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}
}
