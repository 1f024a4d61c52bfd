package synctransport

import (
	"github.com/i5heu/sharesync/pkg/hash"
)

// GetCausalHashByPathResult is the tagged-union response of
// GetCausalHashByPath (spec.md §4.2). Exactly one of the two shapes is
// populated, selected by Type.
type GetCausalHashByPathResult struct {
	Type string `json:"type"`

	// Present when Type == GetCausalHashByPathSuccess. HashJWT is nil
	// when the path has no history.
	HashJWT *hash.HashJWT `json:"hashJWT,omitempty"`

	// Present when Type == GetCausalHashByPathNoReadPermission.
	Path *Path `json:"path,omitempty"`
}

const (
	GetCausalHashByPathSuccess         = "success"
	GetCausalHashByPathNoReadPermission = "noReadPermission"
)

// UpdatePathRequest is the check-and-set push request (spec.md §4.5).
type UpdatePathRequest struct {
	Path         Path           `json:"path"`
	ExpectedHash *hash.Hash32   `json:"expectedHash,omitempty"`
	NewHash      hash.CausalHash `json:"newHash"`
}

// UpdatePathResult is the tagged-union response of UpdatePath.
type UpdatePathResult struct {
	Type string `json:"type"`

	// Present when Type == UpdatePathHashMismatch.
	Expected *hash.Hash32 `json:"expected,omitempty"`
	Actual   *hash.Hash32 `json:"actual,omitempty"`

	// Present when Type == UpdatePathMissingDependencies.
	MissingDependencies []hash.Hash32 `json:"missingDependencies,omitempty"`

	// Present when Type == UpdatePathNoWritePermission.
	Path *Path `json:"path,omitempty"`
}

const (
	UpdatePathSuccess             = "success"
	UpdatePathHashMismatch        = "hashMismatch"
	UpdatePathMissingDependencies = "missingDependencies"
	UpdatePathNoWritePermission   = "noWritePermission"
)

// FastForwardPathRequest is the fast-forward push request (spec.md §4.6).
type FastForwardPathRequest struct {
	Path         Path            `json:"path"`
	ExpectedHash hash.CausalHash `json:"expectedHash"`
	Hashes       []hash.Hash32   `json:"hashes"`
}

// FastForwardPathResult is the tagged-union response of FastForwardPath.
type FastForwardPathResult struct {
	Type string `json:"type"`

	// Present when Type == FastForwardPathMissingDependencies.
	MissingDependencies []hash.Hash32 `json:"missingDependencies,omitempty"`

	// Present when Type == FastForwardPathInvalidParentage.
	Parent *hash.Hash32 `json:"parent,omitempty"`
	Child  *hash.Hash32 `json:"child,omitempty"`

	// Present when Type == FastForwardPathNoWritePermission.
	Path *Path `json:"path,omitempty"`
}

const (
	FastForwardPathSuccess             = "success"
	FastForwardPathMissingDependencies = "missingDependencies"
	FastForwardPathNoHistory           = "noHistory"
	FastForwardPathNotFastForward      = "notFastForward"
	FastForwardPathInvalidParentage    = "invalidParentage"
	FastForwardPathNoWritePermission   = "noWritePermission"
)

// UploadEntitiesResult is the tagged-union response of UploadEntities.
type UploadEntitiesResult struct {
	Type string `json:"type"`

	// Present when Type == UploadEntitiesNeedDependencies.
	NeedDependencies []hash.Hash32 `json:"needDependencies,omitempty"`

	// Present when Type == UploadEntitiesHashMismatchForEntity.
	Mismatched *hash.Hash32 `json:"mismatched,omitempty"`

	// Present when Type == UploadEntitiesNoWritePermission.
	RepoName string `json:"repoName,omitempty"`
}

const (
	UploadEntitiesSuccess               = "success"
	UploadEntitiesNeedDependencies       = "needDependencies"
	UploadEntitiesHashMismatchForEntity  = "hashMismatchForEntity"
	UploadEntitiesNoWritePermission      = "noWritePermission"
)
