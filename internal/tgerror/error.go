// Package tgerror defines the single wrapped-error type used throughout the
// proxy family, carrying a recovery-policy Kind alongside a source chain.
package tgerror

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind discriminates the recovery policy for an error (see the error
// handling design table: ArgParseError, EnvError, ... Passthrough).
type Kind string

const (
	ArgParseError   Kind = "arg_parse_error"
	EnvError        Kind = "env_error"
	StoreError      Kind = "store_error"
	ToolFailure     Kind = "tool_failure"
	AnalysisError   Kind = "analysis_error"
	MissingLibrary  Kind = "missing_library"
	Passthrough     Kind = "passthrough"
)

// Error is the wrapped-error type. Location metadata is attached at
// construction via New/Wrap; Unwrap exposes the source chain to errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Source  error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, source error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Source: source}
}

func (e *Error) Error() string {
	if e.Source != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Source.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Source
}

// KindOf walks the error chain looking for a *Error and returns its Kind.
// Returns "" if none is found.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// Print renders err as one primary line followed by indented cause lines,
// one per level of wrapping, so a human operator can read a store reference
// (artifact id, process id) that a cause carries without parsing it.
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var te *Error
	if errors.As(err, &te) {
		fmt.Fprintf(w, "error: %s\n", te.Message)
		depth := 1
		cause := te.Source
		for cause != nil {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), cause.Error())
			depth++
			cause = errors.Unwrap(cause)
		}
		return
	}
	fmt.Fprintf(w, "error: %s\n", err.Error())
}
