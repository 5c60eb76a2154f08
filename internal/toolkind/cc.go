package toolkind

import (
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// IncludeKind distinguishes how an include/library path argument was
// classified, since the C compiler accepts several spellings that all carry
// the same semantic payload (a search directory).
type IncludeKind string

const (
	IncludeI             IncludeKind = "-I"
	IncludeSystem        IncludeKind = "-isystem"
	IncludeWithPrefix    IncludeKind = "-iwithprefix"
	IncludeWithPrefixBefore IncludeKind = "-iwithprefixbefore"
	LibrarySearch        IncludeKind = "-L"
	LibrarySearchB       IncludeKind = "-B"
)

type IncludePath struct {
	Kind IncludeKind
	Path string
}

// Source is a positional compiler input, a distinct remap kind from include
// and library search paths per §4.1.
type Source struct {
	Path string
}

// CCArgs is the ArgsRecord for the cc proxy.
type CCArgs struct {
	Compiler     string
	Includes     []IncludePath
	Sources      []Source
	OutputPath   string
	Remaining    []string
}

var ccArgsWithValues = map[string]bool{
	"-I": true, "-isystem": true, "-iprefix": true, "-iwithprefix": true,
	"-iwithprefixbefore": true, "-L": true, "-B": true, "-o": true,
	"-include": true, "-isysroot": true, "--sysroot": true,
}

// ParseCCArgs classifies cc/gcc/clang argv. -iprefix/-iwithprefix/
// -iwithprefixbefore are stateful: the most recently set prefix (via
// -iprefix) is concatenated with the suffix of a later -iwithprefix/
// -iwithprefixbefore before being recorded as an include path, matching
// §4.1's "Edge-case policies".
func ParseCCArgs(argv []string, env Env) (CCArgs, error) {
	if len(argv) < 1 {
		return CCArgs{}, tgerror.New(tgerror.ArgParseError, "missing argument for compiler")
	}
	compiler := argv[0]

	var (
		includes   []IncludePath
		sources    []Source
		outputPath string
		remaining  []string
		prefix     string
	)

	rest := argv[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]

		if val, ok := strings.CutPrefix(arg, "-I"); ok && val != "" {
			includes = append(includes, IncludePath{Kind: IncludeI, Path: val})
			continue
		}
		if val, ok := strings.CutPrefix(arg, "-L"); ok && val != "" {
			includes = append(includes, IncludePath{Kind: LibrarySearch, Path: val})
			continue
		}

		var value string
		haveValue := false
		if ccArgsWithValues[arg] && i+1 < len(rest) && !strings.HasPrefix(rest[i+1], "-") {
			value = rest[i+1]
			haveValue = true
			i++
		}

		switch {
		case arg == "-I" && haveValue:
			includes = append(includes, IncludePath{Kind: IncludeI, Path: value})
		case arg == "-isystem" && haveValue:
			includes = append(includes, IncludePath{Kind: IncludeSystem, Path: value})
		case arg == "-iprefix" && haveValue:
			prefix = value
		case arg == "-iwithprefix" && haveValue:
			includes = append(includes, IncludePath{Kind: IncludeWithPrefix, Path: prefix + value})
		case arg == "-iwithprefixbefore" && haveValue:
			includes = append(includes, IncludePath{Kind: IncludeWithPrefixBefore, Path: prefix + value})
		case arg == "-L" && haveValue:
			includes = append(includes, IncludePath{Kind: LibrarySearch, Path: value})
		case arg == "-B" && haveValue:
			includes = append(includes, IncludePath{Kind: LibrarySearchB, Path: value})
		case arg == "-o" && haveValue:
			outputPath = value
		case !haveValue && strings.HasPrefix(arg, "-o") && arg != "-o":
			outputPath = strings.TrimPrefix(arg, "-o")
		case !haveValue && !strings.HasPrefix(arg, "-"):
			sources = append(sources, Source{Path: arg})
			remaining = append(remaining, arg)
		case !haveValue:
			remaining = append(remaining, arg)
		default:
			remaining = append(remaining, arg, value)
		}
	}

	return CCArgs{
		Compiler:   compiler,
		Includes:   includes,
		Sources:    sources,
		OutputPath: outputPath,
		Remaining:  remaining,
	}, nil
}
