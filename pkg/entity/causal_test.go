package entity

import (
	"testing"

	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/stretchr/testify/require"
)

func TestCausalBody_RoundTrip(t *testing.T) {
	c := CausalBody{
		Namespace: hash.HashJWT("ns-token"),
		Parents:   []hash.HashJWT{"p1-token", "p2-token"},
	}

	encoded := EncodeCausalBody(c)
	decoded, err := DecodeCausalBody(encoded)
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestCausalBody_RoundTrip_NoParents(t *testing.T) {
	c := CausalBody{Namespace: hash.HashJWT("ns-token")}

	decoded, err := DecodeCausalBody(EncodeCausalBody(c))
	require.NoError(t, err)
	require.Equal(t, 0, len(decoded.Parents))
	require.Equal(t, c.Namespace, decoded.Namespace)
}

func TestDecodeCausalBody_Truncated(t *testing.T) {
	_, err := DecodeCausalBody([]byte{0, 0, 0})
	require.Error(t, err)
}
