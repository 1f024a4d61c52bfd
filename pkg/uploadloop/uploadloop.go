// Package uploadloop drives a set of server-demanded missing hashes
// to convergence, shared by both push flavours (spec.md §4.4).
package uploadloop

import (
	"context"
	"fmt"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/synctransport"
)

// MaxBatchSize is the maximum number of entities in a single upload or
// download request (spec.md §4.4, §6). Implementations may tune it
// downward but never upward without server coordination.
const MaxBatchSize = 50

// ProgressFunc reports upload progress: uploaded is the running total
// of entities successfully accepted, remaining is the current size of
// the residual missing set.
type ProgressFunc func(uploaded, remaining int)

// Store is the subset of syncstore.Store the upload loop needs to load
// entities it is about to upload.
type Store interface {
	ExpectEntity(ctx context.Context, h hash.Hash32) (entity.Entity, error)
}

// PermissionError is returned when the server rejects the upload for
// lack of write permission on repoName.
type PermissionError struct {
	RepoName string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("uploadloop: no write permission on %q", e.RepoName)
}

// MismatchError is returned when the server reports that an uploaded
// entity's declared hash does not match its body.
type MismatchError struct {
	Hash hash.Hash32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("uploadloop: hash mismatch for entity %s", e.Hash)
}

// Run drives missing to convergence: while it is non-empty, it splits
// off a batch of at most MaxBatchSize hashes, loads their entities from
// store, and uploads them. A Success response shrinks the residual set
// by the batch size; a NeedDependencies response unions the
// server-reported hashes into the residual set. The loop has no
// iteration cap — the server is responsible for convergence (spec.md
// §4.4) — but it is bounded by ctx for cancellation.
func Run(
	ctx context.Context,
	store Store,
	transport synctransport.Transport,
	repoName string,
	missing map[hash.Hash32]struct{},
	progress ProgressFunc,
) error {
	if progress == nil {
		progress = func(int, int) {}
	}

	uploaded := 0
	for len(missing) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]hash.Hash32, 0, MaxBatchSize)
		for h := range missing {
			batch = append(batch, h)
			if len(batch) == MaxBatchSize {
				break
			}
		}

		entities := make(map[hash.Hash32]entity.Entity, len(batch))
		for _, h := range batch {
			e, err := store.ExpectEntity(ctx, h)
			if err != nil {
				return fmt.Errorf("uploadloop: load %s: %w", h, err)
			}
			entities[h] = e
		}

		result, err := transport.UploadEntities(ctx, repoName, entities)
		if err != nil {
			return err
		}

		switch result.Type {
		case synctransport.UploadEntitiesSuccess:
			for _, h := range batch {
				delete(missing, h)
			}
			uploaded += len(batch)
			progress(uploaded, len(missing))
			if len(missing) == 0 {
				return nil
			}

		case synctransport.UploadEntitiesNeedDependencies:
			for _, h := range batch {
				delete(missing, h)
			}
			uploaded += len(batch)
			for _, h := range result.NeedDependencies {
				missing[h] = struct{}{}
			}
			progress(uploaded, len(missing))

		case synctransport.UploadEntitiesNoWritePermission:
			return &PermissionError{RepoName: result.RepoName}

		case synctransport.UploadEntitiesHashMismatchForEntity:
			var h hash.Hash32
			if result.Mismatched != nil {
				h = *result.Mismatched
			}
			return &MismatchError{Hash: h}

		default:
			return fmt.Errorf("uploadloop: unexpected response type %q", result.Type)
		}
	}
	return nil
}
