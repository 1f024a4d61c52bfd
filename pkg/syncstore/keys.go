package syncstore

import "github.com/i5heu/sharesync/pkg/hash"

// Badger key prefixes. Two logical tables (main, temp_entity) live in
// one badger database as disjoint key prefixes, matching the teacher's
// habit of multiplexing several logical tables over one KV handle
// (internal/keyValStore, internal/distribution's "dist:block:" /
// "dist:meta:" prefixes).
const (
	prefixMainCausal = "main/causal/"
	prefixMainObject = "main/object/"
	prefixTemp       = "temp/"
)

func mainCausalKey(h hash.Hash32) []byte {
	return append([]byte(prefixMainCausal), h[:]...)
}

func mainObjectKey(h hash.Hash32) []byte {
	return append([]byte(prefixMainObject), h[:]...)
}

func tempKey(h hash.Hash32) []byte {
	return append([]byte(prefixTemp), h[:]...)
}

// hashFromTempKey extracts the Hash32 suffix of a temp/ key, as
// returned by an iterator over that prefix.
func hashFromTempKey(key []byte) hash.Hash32 {
	var h hash.Hash32
	copy(h[:], key[len(key)-hash.Size:])
	return h
}
