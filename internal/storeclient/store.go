// Package storeclient is the Artifact Layer: a thin adapter over the
// content-addressed store, exposing checkin/cache/checkout/store/spawn as
// described in §6 "Store API (consumed)". The store itself is explicitly
// out of scope for this repository (§1); this package only consumes it.
package storeclient

import (
	"context"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/command"
)

// CheckinArg mirrors the original's checkin options.
type CheckinArg struct {
	Deterministic     bool
	Ignore            bool
	Destructive       bool
	Lock              bool
	LocalDependencies bool
	Solve             bool
}

// CheckoutArg mirrors the original's checkout options.
type CheckoutArg struct {
	Force        bool
	Path         string
	Dependencies bool
	Lock         bool
}

// SpawnArg configures a process spawn.
type SpawnArg struct {
	Network bool
}

// Store is the Artifact Layer contract every proxy variant is written
// against. The only implementations provided here are a local-disk store
// (storeclient.Local) suitable for driver mode and tests, and a gRPC dialer
// (storeclient.Dial) that wires TLS/connection plumbing the way
// pkg/config/context.go's GetContext does; see DESIGN.md for why the RPC
// method bodies still land on the local content-addressed cache rather than
// a hand-rolled wire protocol.
type Store interface {
	// Checkin registers a filesystem path as an artifact, returning its id.
	Checkin(ctx context.Context, path string, arg CheckinArg) (artifact.Id, error)

	// Cache marks the given artifacts as locally materialized so later
	// Output Materializer symlinks are valid. Batched: one call per group.
	Cache(ctx context.Context, ids []artifact.Id) error

	// Checkout materializes an artifact id to a filesystem path, returning
	// the path actually used (honors CheckoutArg.Path when set).
	Checkout(ctx context.Context, id artifact.Id, arg CheckoutArg) (string, error)

	// StoreArtifact persists an in-memory artifact (e.g. a synthesized
	// directory) and returns its id. Recursively stores unstored children
	// in a single batch call, mirroring Value::store().
	StoreArtifact(ctx context.Context, a artifact.Artifact) (artifact.Id, error)

	// ArtifactPathDetect recognizes a rendered path pointing back into the
	// store, returning the referent if so.
	ArtifactPathDetect(path string) (artifact.Referent, bool)

	// GetArtifact returns an already-stored artifact by id, without
	// performing a filesystem checkout. Used to inspect directory entries
	// in place, e.g. when the linker proxy walks a library path looking for
	// a NEEDED dependency.
	GetArtifact(ctx context.Context, id artifact.Id) (artifact.Artifact, bool)

	// StoreRoot returns the filesystem path under which
	// ".tangram/artifacts/<id>" resolves for this store instance. Used by
	// Template.Render/Unrender.
	StoreRoot() string

	// Spawn runs cmd via the store's sandboxed runtime and awaits the
	// final output directory, mirroring spawn_and_wait.
	Spawn(ctx context.Context, cmd command.Command, arg SpawnArg) (command.Output, error)
}
