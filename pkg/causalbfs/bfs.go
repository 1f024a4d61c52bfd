// Package causalbfs implements the breadth-first search over the local
// causal parent DAG used to decide whether a fast-forward push is
// possible and to enumerate the intermediate causals (spec.md §4.3).
package causalbfs

import (
	"context"

	"github.com/i5heu/sharesync/pkg/hash"
)

// ParentLoader is the one store operation this package depends on,
// kept as a small local interface (matching the teacher's habit in
// pkg/cas and pkg/cluster of depending on narrow interfaces rather than
// a concrete store type) so the search is testable against a plain map.
type ParentLoader interface {
	LoadCausalParentsByHash(ctx context.Context, h hash.Hash32) ([]hash.Hash32, error)
}

// frontierEntry pairs a frontier node with the chain of
// strictly-intermediate nodes collected so far, stored newest-first
// during the search per spec.md §4.3.
type frontierEntry struct {
	node hash.Hash32
	path []hash.Hash32 // newest-first; does not include node or the start node
}

// SpineBetween returns the chain of causals strictly between earlier
// and later (oldest-to-newest, excluding both endpoints), or ok=false
// if earlier is not reachable from later via LoadCausalParentsByHash
// steps.
//
// Edge cases match spec.md §4.3: earlier == later returns ([], true);
// a later with no parents that is not itself the goal returns (nil,
// false).
func SpineBetween(
	ctx context.Context,
	loader ParentLoader,
	earlier, later hash.Hash32,
) ([]hash.Hash32, bool, error) {
	if earlier == later {
		return []hash.Hash32{}, true, nil
	}

	visited := map[hash.Hash32]struct{}{later: {}}
	frontier := []frontierEntry{{node: later, path: nil}}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		// effectivePath is the interior chain from later (exclusive) up
		// to and including current.node, except for the root entry
		// (current.node == later) where current.node itself must stay
		// excluded.
		effectivePath := current.path
		if current.node != later {
			effectivePath = append(append([]hash.Hash32{}, current.path...), current.node)
		}

		parents, err := loader.LoadCausalParentsByHash(ctx, current.node)
		if err != nil {
			return nil, false, err
		}

		for _, parent := range parents {
			if parent == earlier {
				return reverse(effectivePath), true, nil
			}
			if _, seen := visited[parent]; seen {
				continue
			}
			visited[parent] = struct{}{}

			// New frontier paths are appended to the back so shorter
			// paths are explored first (spec.md §4.3 fairness rule).
			frontier = append(frontier, frontierEntry{node: parent, path: effectivePath})
		}
	}

	return nil, false, nil
}

func reverse(path []hash.Hash32) []hash.Hash32 {
	out := make([]hash.Hash32, len(path))
	for i, h := range path {
		out[len(path)-1-i] = h
	}
	return out
}
