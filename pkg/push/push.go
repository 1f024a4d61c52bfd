// Package push implements the two push flavours of spec.md §4.5/§4.6:
// check-and-set (atomically replace a remote head) and fast-forward
// (advance a remote head along a known causal chain). Both are
// composed from the upload loop, the causal BFS, and the transport.
package push

import (
	"context"
	"fmt"

	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/synctransport"
	"github.com/i5heu/sharesync/pkg/uploadloop"
)

// HashMismatchError is returned when the remote head does not match
// the caller's expectation, either on the first updatePath call or
// after losing a race on the retry (spec.md §4.5 steps 3 and 4).
type HashMismatchError struct {
	Expected *hash.Hash32
	Actual   *hash.Hash32
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("push: hash mismatch: expected %v, actual %v", e.Expected, e.Actual)
}

// ServerMissingDependenciesError is the "both sides think the other is
// at fault" outcome of spec.md §4.5 step 4: the upload loop converged,
// the retried updatePath still reports dependencies missing.
type ServerMissingDependenciesError struct {
	Missing []hash.Hash32
}

func (e *ServerMissingDependenciesError) Error() string {
	return fmt.Sprintf("push: server still reports %d missing dependencies after upload", len(e.Missing))
}

// NoWritePermissionError surfaces a server-reported write-permission
// failure for path.
type NoWritePermissionError struct {
	Path synctransport.Path
}

func (e *NoWritePermissionError) Error() string {
	return fmt.Sprintf("push: no write permission on %+v", e.Path)
}

// CheckAndSet implements spec.md §4.5: atomically replace the remote
// head at path with local, uploading any transitively missing
// dependencies the server demands.
func CheckAndSet(
	ctx context.Context,
	store uploadloop.Store,
	transport synctransport.Transport,
	path synctransport.Path,
	expectedHash *hash.Hash32,
	local hash.CausalHash,
	progress uploadloop.ProgressFunc,
) error {
	result, err := transport.UpdatePath(ctx, synctransport.UpdatePathRequest{
		Path:         path,
		ExpectedHash: expectedHash,
		NewHash:      local,
	})
	if err != nil {
		return err
	}

	switch result.Type {
	case synctransport.UpdatePathSuccess:
		return nil

	case synctransport.UpdatePathHashMismatch:
		return &HashMismatchError{Expected: result.Expected, Actual: result.Actual}

	case synctransport.UpdatePathNoWritePermission:
		return &NoWritePermissionError{Path: path}

	case synctransport.UpdatePathMissingDependencies:
		missing := toSet(result.MissingDependencies)
		if err := uploadloop.Run(ctx, store, transport, path.RepoName, missing, progress); err != nil {
			return err
		}

		retry, err := transport.UpdatePath(ctx, synctransport.UpdatePathRequest{
			Path:         path,
			ExpectedHash: expectedHash,
			NewHash:      local,
		})
		if err != nil {
			return err
		}

		switch retry.Type {
		case synctransport.UpdatePathSuccess:
			return nil
		case synctransport.UpdatePathHashMismatch:
			return &HashMismatchError{Expected: retry.Expected, Actual: retry.Actual}
		case synctransport.UpdatePathMissingDependencies:
			return &ServerMissingDependenciesError{Missing: retry.MissingDependencies}
		case synctransport.UpdatePathNoWritePermission:
			return &NoWritePermissionError{Path: path}
		default:
			return fmt.Errorf("push: unexpected updatePath retry response type %q", retry.Type)
		}

	default:
		return fmt.Errorf("push: unexpected updatePath response type %q", result.Type)
	}
}

func toSet(hs []hash.Hash32) map[hash.Hash32]struct{} {
	set := make(map[hash.Hash32]struct{}, len(hs))
	for _, h := range hs {
		set[h] = struct{}{}
	}
	return set
}
