package toolkind

import "github.com/tangramdotdev/tgproxy/internal/tgerror"

// StripArgs is the ArgsRecord for the strip proxy: strip takes one real
// binary path and forwards every other flag verbatim.
type StripArgs struct {
	Strip     string
	InputPath string
	Remaining []string
}

func ParseStripArgs(argv []string, env Env) (StripArgs, error) {
	if len(argv) < 2 {
		return StripArgs{}, tgerror.New(tgerror.ArgParseError, "missing arguments for strip")
	}
	strip := argv[0]
	rest := argv[1:]
	input := rest[len(rest)-1]
	return StripArgs{
		Strip:     strip,
		InputPath: input,
		Remaining: rest,
	}, nil
}
