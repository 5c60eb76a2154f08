// Command tgcodesign is the codesign proxy (§6, Darwin only). Passes
// through to the real codesign binary unless TANGRAM_CODESIGN_ENABLE is
// set, in which case the input binary is checked into the store first.
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
	if outerEnv.CodesignEnable != "" {
		store, openErr := proxyrun.OpenStore(outerEnv)
		if openErr != nil {
			tgerror.Print(os.Stderr, openErr)
			os.Exit(1)
		}
		err = proxyrun.RunCodesignEnabled(context.Background(), store, os.Args[1:])
	} else {
		err = proxyrun.RunCodesignPassthrough(os.Args[1:])
	}

	if err != nil {
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}
}
