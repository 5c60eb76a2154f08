// Package toolkind enumerates the proxy variants (§9 "Dynamic dispatch over
// tool kinds"). Each variant has a distinct argument classifier, dependency
// model, and output-materialization policy; each argument classifier lives
// in its own file of this package rather than behind one unified parser.
package toolkind

type Kind string

const (
	Rustc           Kind = "rustc"
	BuildScriptRunner Kind = "build_script_runner"
	CC              Kind = "cc"
	LD              Kind = "ld"
	Strip           Kind = "strip"
	Codesign        Kind = "codesign"
)

// Env is the recognized-environment-variable surface (§6), read once at
// proxy startup and threaded explicitly rather than re-read ad hoc so tests
// can construct it directly instead of mutating process environment.
type Env struct {
	Vars map[string]string
}

func NewEnv(environ []string) Env {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				vars[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return Env{Vars: vars}
}

func (e Env) Get(key string) (string, bool) {
	v, ok := e.Vars[key]
	return v, ok
}

func (e Env) GetOr(key, fallback string) string {
	if v, ok := e.Vars[key]; ok {
		return v
	}
	return fallback
}
