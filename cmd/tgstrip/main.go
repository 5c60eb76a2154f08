// Command tgstrip is the strip proxy (§6). Passes through to the real
// strip binary unless TANGRAM_STRIP_ENABLE is set, in which case the input
// binary is checked into the store first for provenance.
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
	if outerEnv.StripEnable != "" {
		store, openErr := proxyrun.OpenStore(outerEnv)
		if openErr != nil {
			tgerror.Print(os.Stderr, openErr)
			os.Exit(1)
		}
		err = proxyrun.RunStripEnabled(context.Background(), store, os.Args[1:])
	} else {
		err = proxyrun.RunStripPassthrough(os.Args[1:])
	}

	if err != nil {
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}
}
