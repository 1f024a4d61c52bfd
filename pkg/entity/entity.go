// Package entity defines the fully-parsed payload type transferred
// between the local store and a remote Share instance, and the
// dependency-extraction rule the rest of sharesync relies on.
package entity

import "github.com/i5heu/sharesync/pkg/hash"

// Kind tags the six entity flavours the Share object model knows
// about. Causals are addressed by CausalHash; the rest are plain
// Hash32-addressed objects.
type Kind uint8

const (
	KindCausal Kind = iota
	KindNamespace
	KindTerm
	KindType
	KindPatch
	KindBytes
)

// String renders k for logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindCausal:
		return "causal"
	case KindNamespace:
		return "namespace"
	case KindTerm:
		return "term"
	case KindType:
		return "type"
	case KindPatch:
		return "patch"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Entity is a fully parsed payload tagged by kind, carrying zero or
// more dependency references as HashJWTs and an opaque body. The
// sync engine never looks inside Body; it only ever hashes, stores, and
// retransmits it verbatim.
type Entity struct {
	Kind         Kind           `json:"kind"`
	Dependencies []hash.HashJWT `json:"dependencies,omitempty"`
	Body         []byte         `json:"body"`
}

// Dependencies returns the set of Hash32s that must be present
// somewhere in the store (main or temp) before e may be promoted to
// main storage. This is entityDependencies(e) from spec.md §3: the
// invariant is that this set equals exactly the dependency hashes
// carried by e, deduplicated.
func Dependencies(e Entity) (map[hash.Hash32]hash.HashJWT, error) {
	deps := make(map[hash.Hash32]hash.HashJWT, len(e.Dependencies))
	for _, jwt := range e.Dependencies {
		h, err := jwt.Hash()
		if err != nil {
			return nil, err
		}
		deps[h] = jwt
	}
	return deps, nil
}
