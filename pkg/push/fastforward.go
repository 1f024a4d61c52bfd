package push

import (
	"context"
	"fmt"

	"github.com/i5heu/sharesync/pkg/causalbfs"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/synctransport"
	"github.com/i5heu/sharesync/pkg/uploadloop"
)

// NoReadPermissionError surfaces a server-reported read-permission
// failure while resolving the remote head (spec.md §4.6 step 1).
type NoReadPermissionError struct {
	Path synctransport.Path
}

func (e *NoReadPermissionError) Error() string {
	return fmt.Sprintf("push: no read permission on %+v", e.Path)
}

// NoHistoryError is returned when path has no remote head at all
// (spec.md §4.6 step 1).
type NoHistoryError struct {
	Path synctransport.Path
}

func (e *NoHistoryError) Error() string {
	return fmt.Sprintf("push: %+v has no history", e.Path)
}

// NotFastForwardError is returned when the local causal is not a
// descendant of the remote head (spec.md §4.6 step 2).
type NotFastForwardError struct {
	Remote hash.Hash32
	Local  hash.CausalHash
}

func (e *NotFastForwardError) Error() string {
	return fmt.Sprintf("push: %s is not a fast-forward of remote %s", e.Local, e.Remote)
}

// InvalidParentageError surfaces the server-reported structural
// rejection of the chain offered to fastForwardPath.
type InvalidParentageError struct {
	Parent hash.Hash32
	Child  hash.Hash32
}

func (e *InvalidParentageError) Error() string {
	return fmt.Sprintf("push: invalid parentage between %s and %s", e.Parent, e.Child)
}

// FastForward implements spec.md §4.6: advance the remote head at path
// along the local causal chain up to local.
func FastForward(
	ctx context.Context,
	store uploadloop.Store,
	loader causalbfs.ParentLoader,
	transport synctransport.Transport,
	path synctransport.Path,
	local hash.CausalHash,
	progress uploadloop.ProgressFunc,
) error {
	head, err := transport.GetCausalHashByPath(ctx, path)
	if err != nil {
		return err
	}

	switch head.Type {
	case synctransport.GetCausalHashByPathNoReadPermission:
		return &NoReadPermissionError{Path: path}
	case synctransport.GetCausalHashByPathSuccess:
		if head.HashJWT == nil {
			return &NoHistoryError{Path: path}
		}
	default:
		return fmt.Errorf("push: unexpected getCausalHashByPath response type %q", head.Type)
	}

	remote, err := head.HashJWT.Hash()
	if err != nil {
		return fmt.Errorf("push: decode remote head: %w", err)
	}

	spine, ok, err := causalbfs.SpineBetween(ctx, loader, remote, local.Hash32)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFastForwardError{Remote: remote, Local: local}
	}
	if len(spine) == 0 && remote == local.Hash32 {
		return nil
	}

	chain := append(append([]hash.Hash32{}, spine...), local.Hash32)

	if err := uploadloop.Run(ctx, store, transport, path.RepoName,
		map[hash.Hash32]struct{}{local.Hash32: {}}, progress); err != nil {
		return err
	}

	result, err := transport.FastForwardPath(ctx, synctransport.FastForwardPathRequest{
		Path:         path,
		ExpectedHash: hash.NewCausalHash(remote),
		Hashes:       chain,
	})
	if err != nil {
		return err
	}

	switch result.Type {
	case synctransport.FastForwardPathSuccess:
		return nil
	case synctransport.FastForwardPathMissingDependencies:
		return &ServerMissingDependenciesError{Missing: result.MissingDependencies}
	case synctransport.FastForwardPathNoHistory:
		return &NoHistoryError{Path: path}
	case synctransport.FastForwardPathNotFastForward:
		return &NotFastForwardError{Remote: remote, Local: local}
	case synctransport.FastForwardPathInvalidParentage:
		var parent, child hash.Hash32
		if result.Parent != nil {
			parent = *result.Parent
		}
		if result.Child != nil {
			child = *result.Child
		}
		return &InvalidParentageError{Parent: parent, Child: child}
	case synctransport.FastForwardPathNoWritePermission:
		return &NoWritePermissionError{Path: path}
	default:
		return fmt.Errorf("push: unexpected fastForwardPath response type %q", result.Type)
	}
}
