package dispatch

import (
	"bytes"
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
)

func TestReadLogs(t *testing.T) {
	dir := artifact.NewDirectory(map[string]artifact.Artifact{
		"log": artifact.NewDirectory(map[string]artifact.Artifact{
			"stdout": artifact.NewFile([]byte("out"), false),
			"stderr": artifact.NewFile([]byte("err"), false),
		}),
	})
	stdout, stderr, err := ReadLogs(dir)
	if err != nil {
		t.Fatalf("ReadLogs: %v", err)
	}
	if string(stdout) != "out" || string(stderr) != "err" {
		t.Fatalf("stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestReadLogsMissing(t *testing.T) {
	dir := artifact.NewDirectory(map[string]artifact.Artifact{})
	if _, _, err := ReadLogs(dir); err == nil {
		t.Fatal("expected error for missing log directory")
	}
}

func TestForwardLogsTo(t *testing.T) {
	var out, errBuf bytes.Buffer
	if err := ForwardLogsTo(&out, &errBuf, []byte("a"), []byte("b")); err != nil {
		t.Fatalf("ForwardLogsTo: %v", err)
	}
	if out.String() != "a" || errBuf.String() != "b" {
		t.Fatalf("out=%q err=%q", out.String(), errBuf.String())
	}
}

func TestBatchCacheEmptyIsNoop(t *testing.T) {
	if err := BatchCache(nil, nil, nil); err != nil {
		t.Fatalf("BatchCache with no ids should be a no-op: %v", err)
	}
}
