package entity

import (
	"encoding/binary"
	"fmt"

	"github.com/i5heu/sharesync/pkg/hash"
)

// CausalBody is the parsed shape of a causal Entity's Body: a
// namespace-hash reference plus the set of parent causal references.
// spec.md §1 and §6 place the on-disk/wire entity encoding out of this
// module's scope; CausalBody is the minimal concrete format this
// module needs in order to be buildable, following the teacher's
// fixed-header-then-payload convention (encoding/encoding.go) rather
// than reaching for a schema-compiled format for a handful of fields.
type CausalBody struct {
	Namespace hash.HashJWT
	Parents   []hash.HashJWT
}

// EncodeCausalBody serializes c as: a uint32 length-prefixed namespace
// token, a uint32 parent count, then each parent as a uint32
// length-prefixed token.
func EncodeCausalBody(c CausalBody) []byte {
	buf := make([]byte, 0, 64)
	buf = appendLenPrefixed(buf, []byte(c.Namespace))

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(c.Parents)))
	buf = append(buf, count...)

	for _, p := range c.Parents {
		buf = appendLenPrefixed(buf, []byte(p))
	}
	return buf
}

// DecodeCausalBody is the inverse of EncodeCausalBody.
func DecodeCausalBody(body []byte) (CausalBody, error) {
	var c CausalBody

	ns, rest, err := readLenPrefixed(body)
	if err != nil {
		return c, fmt.Errorf("causal body: namespace: %w", err)
	}
	c.Namespace = hash.HashJWT(ns)

	if len(rest) < 4 {
		return c, fmt.Errorf("causal body: truncated parent count")
	}
	count := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]

	c.Parents = make([]hash.HashJWT, 0, count)
	for i := uint32(0); i < count; i++ {
		var p []byte
		p, rest, err = readLenPrefixed(rest)
		if err != nil {
			return c, fmt.Errorf("causal body: parent %d: %w", i, err)
		}
		c.Parents = append(c.Parents, hash.HashJWT(p))
	}
	return c, nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	buf = append(buf, lenBuf...)
	buf = append(buf, data...)
	return buf
}

func readLenPrefixed(buf []byte) (data, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, fmt.Errorf("truncated payload: want %d, have %d", n, len(buf))
	}
	return buf[:n], buf[n:], nil
}
