// Command tgld is the linker proxy (§4.5, §6). It runs the real linker
// named by TANGRAM_LINKER_COMMAND_PATH as a direct subprocess, then
// analyzes and wraps its output so the wrapper can resolve its shared
// library dependencies out of the store at launch time.
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
	store, err := proxyrun.OpenStore(outerEnv)
	if err != nil {
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}

	if err := proxyrun.RunLD(context.Background(), store, os.Args[1:]); err != nil {
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}
}
