package hash

import (
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// HashJWT is a server-signed token carrying a Hash32 plus the server's
// authorization to fetch it. The embedded hash is extractable locally
// without verification: the client never holds the server's signing
// key, and the server already vouched for the token when it issued it.
//
// HashJWT must never be used as a storage key — only Hash32, extracted
// via Hash(), is a valid map/table key on the client side.
type HashJWT string

// hashClaim is the claim name the Share server embeds the Hash32 under.
const hashClaim = "hash"

// unverifiedParser never checks a signature; it only decodes claims.
// Constructing it once avoids re-allocating on every call to Hash().
var unverifiedParser = gojwt.NewParser()

// Hash extracts the embedded Hash32 from j without verifying the
// token's signature, mirroring the unverified-claims-extraction pattern
// used for locally-trusted identity tokens elsewhere in the ecosystem.
func (j HashJWT) Hash() (Hash32, error) {
	token, _, err := unverifiedParser.ParseUnverified(string(j), gojwt.MapClaims{})
	if err != nil {
		return Hash32{}, fmt.Errorf("hashjwt: parse: %w", err)
	}

	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return Hash32{}, fmt.Errorf("hashjwt: unexpected claims type %T", token.Claims)
	}

	raw, ok := claims[hashClaim]
	if !ok {
		return Hash32{}, fmt.Errorf("hashjwt: missing %q claim", hashClaim)
	}

	str, ok := raw.(string)
	if !ok {
		return Hash32{}, fmt.Errorf("hashjwt: %q claim is not a string", hashClaim)
	}

	return Parse(str)
}

// String returns the raw compact JWT.
func (j HashJWT) String() string {
	return string(j)
}
