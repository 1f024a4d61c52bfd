// Package hash defines the content-address types used throughout
// sharesync: Hash32, the causal-restricted CausalHash, and HashJWT, the
// server-signed token that carries both a Hash32 and permission to
// fetch it.
package hash

import (
	"encoding/hex"
	"fmt"
)

// Size is the byte length of a Hash32.
const Size = 32

// Hash32 is a 32-byte content address. Its zero value is not a valid
// hash of anything; callers that need an "empty" sentinel should use a
// separate bool/pointer, not the zero Hash32.
type Hash32 [Size]byte

// String renders h as 64-char lowercase hex.
func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler so Hash32 renders as
// lowercase hex inside JSON request/response bodies.
func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash32) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Parse decodes a 64-char lowercase-hex string into a Hash32. It
// rejects uppercase hex and any length other than exactly 64 chars,
// since spec.md §3 fixes the wire rendering to lowercase.
func Parse(s string) (Hash32, error) {
	var h Hash32
	if len(s) != Size*2 {
		return h, fmt.Errorf("hash: %q is not %d hex chars", s, Size*2)
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return h, fmt.Errorf("hash: %q is not lowercase hex", s)
		}
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hash: decode %q: %w", s, err)
	}
	copy(h[:], decoded)
	return h, nil
}

// CausalHash is a Hash32 known (by construction) to address a causal
// rather than an object. It is a distinct type, not an alias, so that
// push and BFS entry points which only make sense for causals cannot
// accidentally be called with an object hash.
type CausalHash struct {
	Hash32
}

// NewCausalHash wraps h as a CausalHash.
func NewCausalHash(h Hash32) CausalHash {
	return CausalHash{Hash32: h}
}
