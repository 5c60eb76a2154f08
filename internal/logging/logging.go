// Package logging sets up the package-level structured logger shared by
// every proxy binary, since none of cmd/'s entrypoints forward stdout/
// stderr that aren't the real tool's: diagnostics go to a separate stream
// written as logrus fields instead of interleaved fmt.Println calls.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger for the named proxy ("tgrustc", "tgld", ...), writing
// to stderr as text in a terminal and as JSON when stderr is redirected
// (piped into the store's own log capture), so captured build logs stay
// machine-parseable without losing human readability on a dev terminal.
func New(proxy string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level := os.Getenv("TGRUSTC_LOG_LEVEL"); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		}
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	if isTerminal(os.Stderr) {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger.WithField("proxy", proxy)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Discard returns a logger that drops everything, used by tests that need a
// valid *logrus.Entry without wanting log noise.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("proxy", "test")
}
