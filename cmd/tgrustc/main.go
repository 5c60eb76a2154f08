// Command tgrustc is the rustc compiler proxy. Invoked as
// `tgrustc <real-rustc-path> <rustc-args...>` it runs as the outer rustc
// proxy (classify -> resolve -> dispatch -> materialize); invoked as
// `tgrustc runner <script-binary> ...` it runs as the build-script
// runner's outer proxy instead. When TGRUSTC_DRIVER_MODE or
// TGRUSTC_RUNNER_DRIVER_MODE is set it runs as the corresponding sandboxed
// inner driver that actually execs rustc or the build script.
package main

import (
	"context"
	"os"

	"github.com/tangramdotdev/tgproxy/internal/driver"
	"github.com/tangramdotdev/tgproxy/internal/logging"
	"github.com/tangramdotdev/tgproxy/internal/proxyrun"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

func main() {
	log := logging.New("tgrustc")

	if os.Getenv("TGRUSTC_RUNNER_DRIVER_MODE") != "" {
		if err := driver.RunRunnerDriver(os.Args[1:]); err != nil {
			tgerror.Print(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if os.Getenv("TGRUSTC_DRIVER_MODE") != "" {
		if err := driver.RunDriver(os.Args[1:]); err != nil {
			tgerror.Print(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "runner" {
		if err := proxyrun.RunBuildScriptRunnerOuter(context.Background(), os.Args[2:], os.Environ()); err != nil {
			tgerror.Print(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := proxyrun.RunRustcOuter(context.Background(), os.Args[1:], os.Environ()); err != nil {
		if tgerror.KindOf(err) == tgerror.Passthrough {
			log.Debug("falling back to passthrough")
		}
		tgerror.Print(os.Stderr, err)
		os.Exit(1)
	}
}
