// Package synctransport implements the typed client for the five Share
// sync endpoints (spec.md §4.2, §6) and the HTTP-status error
// classification (spec.md §6, §7).
package synctransport

import (
	"context"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
)

// Path is a remote location addressed as a repo name plus zero or more
// name segments. It is opaque to the core beyond serialization
// (spec.md §3).
type Path struct {
	RepoName string   `json:"repoName"`
	Segments []string `json:"segments,omitempty"`
}

// Transport is the interface the sync engine consumes for all network
// I/O (spec.md §4.2). Every method blocks until it has a typed result
// or a *TransportError.
type Transport interface {
	GetCausalHashByPath(ctx context.Context, path Path) (*GetCausalHashByPathResult, error)
	UpdatePath(ctx context.Context, req UpdatePathRequest) (*UpdatePathResult, error)
	FastForwardPath(ctx context.Context, req FastForwardPathRequest) (*FastForwardPathResult, error)
	DownloadEntities(ctx context.Context, repoName string, hashes []hash.HashJWT) (map[hash.Hash32]entity.Entity, error)
	UploadEntities(ctx context.Context, repoName string, entities map[hash.Hash32]entity.Entity) (*UploadEntitiesResult, error)
}
