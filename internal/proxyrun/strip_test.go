package proxyrun

import (
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

func TestRunStripPassthroughRequiresArgs(t *testing.T) {
	err := RunStripPassthrough(nil)
	if tgerror.KindOf(err) != tgerror.ArgParseError {
		t.Fatalf("expected ArgParseError, got %v", err)
	}
}

func TestRunCodesignPassthroughRequiresArgs(t *testing.T) {
	err := RunCodesignPassthrough(nil)
	if tgerror.KindOf(err) != tgerror.ArgParseError {
		t.Fatalf("expected ArgParseError, got %v", err)
	}
}
