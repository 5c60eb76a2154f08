// Command tgwrapper is never invoked directly: it is the template binary
// linked into every manifest-carrying executable the linker proxy produces
// (§4.7). At launch it reads its own embedded manifest and re-execs the
// real target in its place.
package main

import (
	"os"

	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
	"github.com/tangramdotdev/tgproxy/internal/wrapper"
)

func main() {
	self, err := os.Executable()
	if err != nil {
		tgerror.Print(os.Stderr, tgerror.Wrap(tgerror.StoreError, err, "failed to resolve own executable path"))
		os.Exit(1)
	}

	store, err := storeclient.NewLocal("")
	if err != nil {
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}

	if err := wrapper.Launch(self, store.StoreRoot(), os.Args, os.Environ()); err != nil {
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}
}
