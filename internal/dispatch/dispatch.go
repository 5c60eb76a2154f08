// Package dispatch is the Process Dispatcher (§4.4): it spawns a built
// Command through the store, waits for completion, and turns a non-zero
// exit into a formatted tgerror with the failing process id attached for
// log retrieval.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/command"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// SpawnAndWait runs cmd to completion and returns its output directory,
// process id and whether the run was a cache hit. description labels the
// spawn in the failure message, mirroring spawn_and_wait's
// "<description> failed. View logs with: <process_id>" convention.
func SpawnAndWait(ctx context.Context, store storeclient.Store, cmd command.Command, description string) (command.Output, error) {
	out, err := store.Spawn(ctx, cmd, storeclient.SpawnArg{Network: cmd.Network})
	if err != nil {
		if tgerror.KindOf(err) == tgerror.ToolFailure {
			return out, err
		}
		return out, tgerror.Wrap(tgerror.ToolFailure, err, "%s failed. View logs with: %s", description, out.ProcessId)
	}
	return out, nil
}

// ReadLogs fetches stdout/stderr bytes out of a process output directory's
// "log/stdout" and "log/stderr" file entries.
func ReadLogs(dir artifact.Artifact) (stdout, stderr []byte, err error) {
	stdoutFile, ok := dir.Get("log/stdout")
	if !ok || stdoutFile.Kind != artifact.KindFile {
		return nil, nil, tgerror.New(tgerror.StoreError, "process output missing log/stdout")
	}
	stderrFile, ok := dir.Get("log/stderr")
	if !ok || stderrFile.Kind != artifact.KindFile {
		return nil, nil, tgerror.New(tgerror.StoreError, "process output missing log/stderr")
	}
	return stdoutFile.Contents, stderrFile.Contents, nil
}

// ForwardLogs writes stdout/stderr bytes to the current process's own
// stdout/stderr, in order, flushing each before moving to the next.
func ForwardLogs(stdout, stderr []byte) error {
	if _, err := os.Stdout.Write(stdout); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write stdout")
	}
	if _, err := os.Stderr.Write(stderr); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write stderr")
	}
	return nil
}

// ForwardLogsTo writes to explicit writers, used by tests that don't want
// to capture the real process streams.
func ForwardLogsTo(stdoutW, stderrW io.Writer, stdout, stderr []byte) error {
	if _, err := stdoutW.Write(stdout); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write stdout")
	}
	if _, err := stderrW.Write(stderr); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to write stderr")
	}
	return nil
}

// BatchCache is a thin, named wrapper over store.Cache for call sites that
// want to express "this is the single batched cache call for N artifacts"
// the way process.rs's batch_cache does, short-circuiting on an empty list.
func BatchCache(ctx context.Context, store storeclient.Store, ids []artifact.Id) error {
	if len(ids) == 0 {
		return nil
	}
	if err := store.Cache(ctx, ids); err != nil {
		return tgerror.Wrap(tgerror.StoreError, err, "failed to cache artifacts")
	}
	return nil
}

// SymlinkCachedArtifact creates a symlink from target to the artifact's
// location under the store's closest-artifact-path root.
func SymlinkCachedArtifact(store storeclient.Store, id artifact.Id, target string) error {
	from := fmt.Sprintf("%s/.tangram/artifacts/%s", store.StoreRoot(), id.String())
	return os.Symlink(from, target)
}
