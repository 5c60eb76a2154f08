package toolkind

import (
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// CodesignArgs is the ArgsRecord for the codesign proxy (Darwin only).
type CodesignArgs struct {
	Codesign  string
	Identity  string // -s IDENTITY
	InputPath string
	Remaining []string
}

func ParseCodesignArgs(argv []string, env Env) (CodesignArgs, error) {
	if len(argv) < 2 {
		return CodesignArgs{}, tgerror.New(tgerror.ArgParseError, "missing arguments for codesign")
	}
	codesign := argv[0]
	rest := argv[1:]

	var identity string
	var remaining []string
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if arg == "-s" && i+1 < len(rest) {
			identity = rest[i+1]
			remaining = append(remaining, arg, rest[i+1])
			i++
			continue
		}
		if val, ok := strings.CutPrefix(arg, "-s="); ok {
			identity = val
		}
		remaining = append(remaining, arg)
	}

	input := rest[len(rest)-1]
	return CodesignArgs{
		Codesign:  codesign,
		Identity:  identity,
		InputPath: input,
		Remaining: remaining,
	}, nil
}
