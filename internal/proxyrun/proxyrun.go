// Package proxyrun wires together the Argument Classifier, Input Resolver,
// Closure Computer, Command Builder, Process Dispatcher and Output
// Materializer into the outer-proxy entrypoints invoked by cmd/. Each
// tool's run_proxy-equivalent lives in its own file (rustc.go, cc.go,
// ld.go, strip.go, codesign.go).
package proxyrun

import (
	"os"

	"github.com/tangramdotdev/tgproxy/internal/config"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// OpenStore builds the Store a proxy invocation talks to: a gRPC-backed
// store when TANGRAM_URL names one, otherwise a local disk store rooted at
// the default store root (used for driver-mode invocations and
// standalone testing, which never need a remote dial).
func OpenStore(env config.OuterEnv) (storeclient.Store, error) {
	if env.URL != "" {
		store, err := storeclient.NewGRPCStore(storeclient.DialConfig{
			Address:    env.URL,
			CACertPath: os.Getenv("TANGRAM_CA_CERT_PATH"),
		}, "")
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storeclient.NewLocal("")
	if err != nil {
		return nil, tgerror.Wrap(tgerror.StoreError, err, "failed to open local store")
	}
	return store, nil
}

// SelfExecutablePath returns the artifact template to use as a Command's
// executable: TGRUSTC_DRIVER_EXECUTABLE when the caller pre-checked one in,
// otherwise the running binary's own path, checked in as a fallback.
func SelfExecutablePath(driverExecutableEnv string) (string, bool) {
	if driverExecutableEnv != "" {
		return driverExecutableEnv, true
	}
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}
	return exe, false
}
