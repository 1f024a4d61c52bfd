// Package syncstore implements the content-addressed entity store the
// sync engine consumes: main storage, the temp-entity staging table,
// and the promotion rule that moves an entity from one to the other.
package syncstore

import (
	"context"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
)

// Location is one of the three mutually-exclusive places a Hash32 can
// be (spec.md §3): absent from every table, staged in temp pending
// dependencies, or durably in main with its full dependency closure
// already satisfied.
type Location int

const (
	LocationAbsent Location = iota
	LocationTemp
	LocationMain
)

func (l Location) String() string {
	switch l {
	case LocationAbsent:
		return "absent"
	case LocationTemp:
		return "temp"
	case LocationMain:
		return "main"
	default:
		return "unknown"
	}
}

// Store is the interface the sync engine consumes from the surrounding
// content-addressed object store (spec.md §4.1). Every method groups
// its mutations into a single transaction internally; callers that need
// several mutations to commit atomically use Batch.
type Store interface {
	EntityLocation(ctx context.Context, h hash.Hash32) (Location, error)
	EntityExists(ctx context.Context, h hash.Hash32) (bool, error)
	ExpectEntity(ctx context.Context, h hash.Hash32) (entity.Entity, error)

	// Promote applies the promotion rule from spec.md §4.8 to
	// (h, e): if h is already present, it is a no-op reporting the
	// existing location; otherwise e is written to main if all of its
	// dependencies already exist, or staged in temp otherwise.
	Promote(ctx context.Context, h hash.Hash32, e entity.Entity) (Location, error)

	// LoadCausalParentsByHash returns the parents of the causal stored
	// locally at h (main or temp), or an empty slice if h is unknown or
	// is a root causal (no parents).
	LoadCausalParentsByHash(ctx context.Context, h hash.Hash32) ([]hash.Hash32, error)

	// ElaborateHashes computes the set of dependency HashJWTs that are
	// currently absent (neither main nor temp) for the entities newly
	// staged at hs. It may return a superset of strictly-required items
	// but must never omit one.
	ElaborateHashes(ctx context.Context, hs map[hash.Hash32]struct{}) ([]hash.HashJWT, error)

	// Batch runs fn against a BatchStore backed by a single
	// transaction; all of fn's mutations commit together or not at all.
	Batch(ctx context.Context, fn func(BatchStore) error) error

	Close() error
}

// BatchStore exposes the same read/write operations as Store but scoped
// to an already-open transaction, for call sites that must group
// several mutations atomically (the inserter promoting a whole download
// batch). The upload loop does not use it: it loads each entity of an
// upload batch with its own ExpectEntity call and transaction.
type BatchStore interface {
	EntityLocation(h hash.Hash32) (Location, error)
	EntityExists(h hash.Hash32) (bool, error)
	ExpectEntity(h hash.Hash32) (entity.Entity, error)
	Promote(h hash.Hash32, e entity.Entity) (Location, error)
	LoadCausalParentsByHash(h hash.Hash32) ([]hash.Hash32, error)
	ElaborateHashes(hs map[hash.Hash32]struct{}) ([]hash.HashJWT, error)
}
