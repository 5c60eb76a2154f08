package command

import "github.com/tangramdotdev/tgproxy/internal/artifact"

// ProcessId identifies a completed or in-flight spawn, used in
// human-facing diagnostics ("View logs with: <process_id>").
type ProcessId string

// Output is a directory artifact produced by a completed command. By
// convention it contains log/stdout, log/stderr, and a build/ directory (or
// a placeholder-named directory for build-script runs).
type Output struct {
	Directory artifact.Artifact
	ProcessId ProcessId
	Cached    bool
}

// Stdout returns the contents of log/stdout, if present.
func (o Output) Stdout() ([]byte, bool) {
	return logFile(o.Directory, "stdout")
}

// Stderr returns the contents of log/stderr, if present.
func (o Output) Stderr() ([]byte, bool) {
	return logFile(o.Directory, "stderr")
}

func logFile(dir artifact.Artifact, name string) ([]byte, bool) {
	a, ok := dir.Get("log/" + name)
	if !ok || a.Kind != artifact.KindFile {
		return nil, false
	}
	return a.Contents, true
}

// Build returns the build/ subdirectory artifact, if present.
func (o Output) Build() (artifact.Artifact, bool) {
	return o.Directory.Get("build")
}
