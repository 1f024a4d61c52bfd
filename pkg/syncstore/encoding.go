package syncstore

import (
	"encoding/binary"
	"fmt"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
)

// The on-disk entity/wire encoding is an external collaborator out of
// spec.md's scope (§1). What follows is the minimal concrete envelope
// this module needs to persist an Entity inside badger, following the
// teacher's fixed-header-then-payload convention (encoding/encoding.go)
// rather than a schema-compiled format for a handful of fields.

// encodeEntity serializes e as: [1 byte kind][4 byte dep count]
// [len-prefixed dep tokens...][4 byte body length][body].
func encodeEntity(e entity.Entity) []byte {
	buf := make([]byte, 0, 32+len(e.Body))
	buf = append(buf, byte(e.Kind))

	depCount := make([]byte, 4)
	binary.BigEndian.PutUint32(depCount, uint32(len(e.Dependencies)))
	buf = append(buf, depCount...)

	for _, d := range e.Dependencies {
		buf = appendLenPrefixed(buf, []byte(d))
	}

	bodyLen := make([]byte, 4)
	binary.BigEndian.PutUint32(bodyLen, uint32(len(e.Body)))
	buf = append(buf, bodyLen...)
	buf = append(buf, e.Body...)
	return buf
}

func decodeEntity(data []byte) (entity.Entity, error) {
	var e entity.Entity
	if len(data) < 1 {
		return e, fmt.Errorf("syncstore: empty entity record")
	}
	e.Kind = entity.Kind(data[0])
	rest := data[1:]

	if len(rest) < 4 {
		return e, fmt.Errorf("syncstore: truncated dep count")
	}
	depCount := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]

	e.Dependencies = make([]hash.HashJWT, 0, depCount)
	for i := uint32(0); i < depCount; i++ {
		var dep []byte
		var err error
		dep, rest, err = readLenPrefixed(rest)
		if err != nil {
			return e, fmt.Errorf("syncstore: dep %d: %w", i, err)
		}
		e.Dependencies = append(e.Dependencies, hash.HashJWT(dep))
	}

	if len(rest) < 4 {
		return e, fmt.Errorf("syncstore: truncated body length")
	}
	bodyLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < bodyLen {
		return e, fmt.Errorf("syncstore: truncated body")
	}
	e.Body = append([]byte(nil), rest[:bodyLen]...)
	return e, nil
}

// encodeTempRecord serializes an entity together with its still-missing
// dependency map, so a temp row carries everything §4.1 requires
// (insertTempEntity(h, entity, missingDeps)) in one badger value.
func encodeTempRecord(e entity.Entity, missing map[hash.Hash32]hash.HashJWT) []byte {
	buf := encodeEntity(e)

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(missing)))
	buf = append(buf, count...)

	for h, jwt := range missing {
		buf = append(buf, h[:]...)
		buf = appendLenPrefixed(buf, []byte(jwt))
	}
	return buf
}

func decodeTempRecord(data []byte) (entity.Entity, map[hash.Hash32]hash.HashJWT, error) {
	e, err := decodeEntity(data)
	if err != nil {
		return e, nil, err
	}

	entityLen := len(encodeEntity(e))
	rest := data[entityLen:]

	if len(rest) < 4 {
		return e, nil, fmt.Errorf("syncstore: truncated missing-dep count")
	}
	count := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]

	missing := make(map[hash.Hash32]hash.HashJWT, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < hash.Size {
			return e, nil, fmt.Errorf("syncstore: missing-dep %d: truncated hash", i)
		}
		var h hash.Hash32
		copy(h[:], rest[:hash.Size])
		rest = rest[hash.Size:]

		var jwt []byte
		jwt, rest, err = readLenPrefixed(rest)
		if err != nil {
			return e, nil, fmt.Errorf("syncstore: missing-dep %d: %w", i, err)
		}
		missing[h] = hash.HashJWT(jwt)
	}
	return e, missing, nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	buf = append(buf, lenBuf...)
	return append(buf, data...)
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
