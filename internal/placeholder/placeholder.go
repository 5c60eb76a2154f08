// Package placeholder implements the @@TGRUSTC_OUT_DIR@@ sentinel technique
// (§4.4, §9 "Placeholder substitution for non-determinism"): build scripts
// print absolute OUT_DIR paths to stdout, which would otherwise make the
// cached log non-deterministic. The runner driver writes the sentinel
// instead of the sandbox path; the outer runner substitutes the driver's
// real OUT_DIR back in at replay time.
package placeholder

import "strings"

// OutDirSentinel is the deterministic placeholder substituted for a
// build-script's OUT_DIR in cached stdout.
const OutDirSentinel = "@@TGRUSTC_OUT_DIR@@"

// StripSandboxPrefix removes "sandboxRoot/" from every occurrence in text,
// run inside the sandbox just before the stdout log is written, so the
// cached log contains only the sentinel-relative form
// ("@@TGRUSTC_OUT_DIR@@/..."), never the ephemeral sandbox path.
func StripSandboxPrefix(text, sandboxRoot string) string {
	prefix := sandboxRoot + "/"
	return strings.ReplaceAll(text, prefix, "")
}

// Substitute replaces the sentinel with the driver's actual OUT_DIR at log
// replay time, reversing StripSandboxPrefix's effect for the consuming
// build driver.
func Substitute(text, realOutDir string) string {
	return strings.ReplaceAll(text, OutDirSentinel, realOutDir)
}
