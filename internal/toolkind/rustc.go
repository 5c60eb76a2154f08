package toolkind

import (
	"path/filepath"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// Extern is a parsed --extern NAME=PATH entry. Path is empty for a bare
// "--extern NAME" (no rlib/rmeta on disk, e.g. a proc-macro metadata-only
// extern).
type Extern struct {
	Name string
	Path string
}

// RustcArgs is the ArgsRecord (§3) for the rustc proxy.
type RustcArgs struct {
	CargoOutDirectory    string // from OUT_DIR, empty if unset
	CrateName            string
	Dependencies         []string // -L dependency=PATH values
	Externs              []Extern
	Remaining            []string
	Rustc                string
	RustcOutputDirectory string // from --out-dir
	SourceDirectory      string
	Stdin                bool
}

// argsWithValues lists the rustc flags that consume a following argument
// when the next token does not begin with '-', exactly as tgrustc's
// ARGS_WITH_VALUES table.
var argsWithValues = map[string]bool{
	"--allow": true, "--cap-lints": true, "--cfg": true, "--codegen": true,
	"--color": true, "--crate-name": true, "--crate-type": true, "--deny": true,
	"--diagnostic-width": true, "--edition": true, "--emit": true,
	"--error-format": true, "--explain": true, "--extern": true, "--forbid": true,
	"--force-warn": true, "--json": true, "--out-dir": true, "--print": true,
	"--remap-path-prefix": true, "--sysroot": true, "--target": true, "--warn": true,
	"-A": true, "-C": true, "-D": true, "-F": true, "-l": true, "-L": true,
	"-o": true, "-W": true,
}

// ParseRustcArgs implements the Argument Classifier for rustc: argv[0] is
// the path to the real rustc binary, argv[1:] are rustc's own arguments.
func ParseRustcArgs(argv []string, env Env) (RustcArgs, error) {
	if len(argv) < 1 {
		return RustcArgs{}, tgerror.New(tgerror.ArgParseError, "missing argument for rustc")
	}
	rustc := argv[0]

	var (
		stdin                bool
		crateName            string
		dependencies         []string
		externs              []Extern
		rustcOutputDirectory string
		remaining            []string
	)

	rest := argv[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]

		var value string
		haveValue := false
		if argsWithValues[arg] && i+1 < len(rest) && !strings.HasPrefix(rest[i+1], "-") {
			value = rest[i+1]
			haveValue = true
			i++
		}

		switch {
		case arg == "--crate-name" && haveValue:
			crateName = value
			remaining = append(remaining, arg, value)

		case arg == "-L" && haveValue && strings.HasPrefix(value, "dependency="):
			dependencies = append(dependencies, strings.TrimPrefix(value, "dependency="))

		case arg == "--extern" && haveValue:
			name, path, found := strings.Cut(value, "=")
			if !found {
				name, path = value, ""
			}
			if name == "" {
				return RustcArgs{}, tgerror.New(tgerror.ArgParseError, "malformed --extern value %q", value)
			}
			externs = append(externs, Extern{Name: name, Path: path})

		case arg == "--out-dir" && haveValue:
			rustcOutputDirectory = value

		case !haveValue && strings.HasPrefix(arg, "--out-dir="):
			rustcOutputDirectory = strings.TrimPrefix(arg, "--out-dir=")

		case arg == "-" && !haveValue:
			stdin = true
			remaining = append(remaining, "-")

		case !haveValue:
			remaining = append(remaining, arg)

		default:
			remaining = append(remaining, arg, value)
		}
	}

	sourceDirectory, ok := env.Get("CARGO_MANIFEST_DIR")
	if !ok || sourceDirectory == "" {
		sourceDirectory = "."
		for _, arg := range remaining {
			if strings.EqualFold(filepath.Ext(arg), ".rs") {
				sourceDirectory = filepath.Dir(arg)
				break
			}
		}
	}

	if crateName == "" {
		crateName = "unknown"
	}

	cargoOutDirectory, _ := env.Get("OUT_DIR")

	return RustcArgs{
		CargoOutDirectory:    cargoOutDirectory,
		CrateName:            crateName,
		Dependencies:         dependencies,
		Externs:              externs,
		Remaining:            remaining,
		Rustc:                rustc,
		RustcOutputDirectory: rustcOutputDirectory,
		SourceDirectory:      sourceDirectory,
		Stdin:                stdin,
	}, nil
}

// IsPassthrough reports whether this invocation should bypass the proxy
// entirely and exec the real tool verbatim (§7 "Passthrough", §8
// "Passthrough equivalence"): the stdin flag is set, or fewer than two
// remaining args are present.
func (a RustcArgs) IsPassthrough() bool {
	return a.Stdin || len(a.Remaining) < 2
}
