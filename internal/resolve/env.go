package resolve

// blacklistedEnvVars excludes vars that vary per invocation, are consumed
// only by the outer proxy, or carry non-portable library search paths
// (§4.2 "Environment"). Kept distinct from runnerBlacklistedEnvVars per the
// Open Question resolution recorded in DESIGN.md: runner mode additionally
// excludes RUSTC_WRAPPER and the TGRUSTC_RUNNER_* handshake vars that do
// not exist in outer-proxy mode, so unifying the two sets would either miss
// a runner-only var here or filter a var outer mode still needs.
var blacklistedEnvVars = map[string]bool{
	"TGRUSTC_TRACING":           true,
	"TGRUSTC_DRIVER_EXECUTABLE": true,
	"TANGRAM_HOST":              true,
	"TANGRAM_URL":               true,
	"TANGRAM_OUTPUT":            true,
	"TANGRAM_PROCESS":           true,
	"HOME":                      true,
	"PWD":                       true,
	"TARGET_DIR":                true,
	"CARGO_TARGET_DIR":          true,
	"SOURCE":                    true,
	"OUT_DIR":                   true,
	"NODE_PATH":                 true,
	"PYTHONPATH":                true,
	"CARGO_HOME":                true,
	"CARGO_MANIFEST_DIR":        true,
	"CARGO_MANIFEST_PATH":       true,
	"CARGO_MAKEFLAGS":           true,
	"DYLD_FALLBACK_LIBRARY_PATH": true,
	"LD_LIBRARY_PATH":           true,
	"TGRUSTC_WORKSPACE_SOURCE":  true,
}

var runnerBlacklistedEnvVars = map[string]bool{
	"TGRUSTC_TRACING":              true,
	"TGRUSTC_DRIVER_EXECUTABLE":    true,
	"TGRUSTC_RUNNER_DRIVER_MODE":   true,
	"TGRUSTC_RUNNER_SOURCE":        true,
	"TGRUSTC_RUNNER_MANIFEST_SUBPATH": true,
	"RUSTC_WRAPPER":                true,
	"TANGRAM_HOST":                 true,
	"TANGRAM_URL":                  true,
	"TANGRAM_OUTPUT":               true,
	"TANGRAM_PROCESS":              true,
	"HOME":                         true,
	"PWD":                          true,
	"TARGET_DIR":                   true,
	"CARGO_TARGET_DIR":             true,
	"SOURCE":                       true,
	"OUT_DIR":                      true,
	"NODE_PATH":                    true,
	"PYTHONPATH":                   true,
	"CARGO_HOME":                   true,
	"CARGO_MANIFEST_DIR":           true,
	"CARGO_MANIFEST_PATH":          true,
	"CARGO_MAKEFLAGS":              true,
	"DYLD_FALLBACK_LIBRARY_PATH":   true,
	"LD_LIBRARY_PATH":              true,
}

// FilterEnv returns the subset of environ not present in the outer-proxy
// blacklist.
func FilterEnv(environ map[string]string) map[string]string {
	return filterWith(environ, blacklistedEnvVars)
}

// FilterRunnerEnv returns the subset of environ not present in the
// build-script-runner blacklist.
func FilterRunnerEnv(environ map[string]string) map[string]string {
	return filterWith(environ, runnerBlacklistedEnvVars)
}

func filterWith(environ map[string]string, blacklist map[string]bool) map[string]string {
	out := make(map[string]string, len(environ))
	for k, v := range environ {
		if blacklist[k] {
			continue
		}
		if k == "CARGO_MAKEFLAGS" {
			v = stripJobserver(v)
		}
		out[k] = v
	}
	return out
}

// stripJobserver removes jobserver-related tokens from a MAKEFLAGS-style
// string, since the jobserver fds are only valid in the outer process.
func stripJobserver(makeflags string) string {
	fields := splitFields(makeflags)
	var out []string
	for _, f := range fields {
		if hasJobserverPrefix(f) {
			continue
		}
		out = append(out, f)
	}
	return joinFields(out)
}

func hasJobserverPrefix(s string) bool {
	return len(s) >= 10 && s[:10] == "--jobserver"
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += " "
		}
		out += f
	}
	return out
}
