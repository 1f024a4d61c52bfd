package syncstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/i5heu/sharesync/pkg/entity"
	"github.com/i5heu/sharesync/pkg/hash"
)

// log is package-scoped, matching internal/keyValStore's
// `var log *logrus.Logger` convention: the storage layer is the one
// subsystem in this module that logs via logrus rather than slog (see
// SPEC_FULL.md §7).
var log = logrus.New()

// Config configures a BadgerStore.
type Config struct {
	// Path is the badger data directory.
	Path string
	// MinimumFreeGB, if non-zero, is checked by diskcheck before the
	// database is opened.
	MinimumFreeGB uint
	// Logger overrides the package-level logrus logger.
	Logger *logrus.Logger
}

// BadgerStore implements Store on top of badger/v4, mirroring the
// teacher's internal/keyValStore wrapper idiom: one *badger.DB, a
// logrus logger, explicit transactions per operation.
type BadgerStore struct {
	db  *badger.DB
	cfg Config
}

// DiskChecker is satisfied by internal/diskcheck.Check; it is a
// parameter (not a hard import) so tests can stub it out.
type DiskChecker func(path string, minimumFreeGB uint) error

// Open opens (or creates) a badger store at cfg.Path. If check is
// non-nil and cfg.MinimumFreeGB is non-zero, it is consulted before the
// database is opened, continuing the free-space preflight the teacher's
// internal/keyValStore performed ahead of every badger.Open.
func Open(cfg Config, check DiskChecker) (*BadgerStore, error) {
	if cfg.Logger != nil {
		log = cfg.Logger
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("syncstore: Path is required")
	}

	if check != nil && cfg.MinimumFreeGB > 0 {
		if err := check(cfg.Path, cfg.MinimumFreeGB); err != nil {
			return nil, fmt.Errorf("syncstore: disk preflight: %w", err)
		}
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("syncstore: open badger at %s: %w", cfg.Path, err)
	}

	log.WithField("path", cfg.Path).Info("syncstore: opened")
	return &BadgerStore{db: db, cfg: cfg}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Batch(ctx context.Context, fn func(BatchStore) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&txnStore{txn: txn})
	})
}

func (s *BadgerStore) EntityLocation(ctx context.Context, h hash.Hash32) (Location, error) {
	var loc Location
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		loc, err = (&txnStore{txn: txn}).EntityLocation(h)
		return err
	})
	return loc, err
}

func (s *BadgerStore) EntityExists(ctx context.Context, h hash.Hash32) (bool, error) {
	loc, err := s.EntityLocation(ctx, h)
	if err != nil {
		return false, err
	}
	return loc != LocationAbsent, nil
}

func (s *BadgerStore) ExpectEntity(ctx context.Context, h hash.Hash32) (entity.Entity, error) {
	var e entity.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = (&txnStore{txn: txn}).ExpectEntity(h)
		return err
	})
	return e, err
}

func (s *BadgerStore) Promote(ctx context.Context, h hash.Hash32, e entity.Entity) (Location, error) {
	var loc Location
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		loc, err = (&txnStore{txn: txn}).Promote(h, e)
		return err
	})
	if err == nil {
		log.WithFields(logrus.Fields{"hash": h.String(), "location": loc.String()}).Debug("syncstore: promote")
	}
	return loc, err
}

func (s *BadgerStore) LoadCausalParentsByHash(ctx context.Context, h hash.Hash32) ([]hash.Hash32, error) {
	var parents []hash.Hash32
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		parents, err = (&txnStore{txn: txn}).LoadCausalParentsByHash(h)
		return err
	})
	return parents, err
}

func (s *BadgerStore) ElaborateHashes(ctx context.Context, hs map[hash.Hash32]struct{}) ([]hash.HashJWT, error) {
	var out []hash.HashJWT
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = (&txnStore{txn: txn}).ElaborateHashes(hs)
		return err
	})
	return out, err
}

// txnStore implements BatchStore against a single open *badger.Txn.
type txnStore struct {
	txn *badger.Txn
}

func (t *txnStore) EntityLocation(h hash.Hash32) (Location, error) {
	if _, err := t.txn.Get(mainCausalKey(h)); err == nil {
		return LocationMain, nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return LocationAbsent, err
	}

	if _, err := t.txn.Get(mainObjectKey(h)); err == nil {
		return LocationMain, nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return LocationAbsent, err
	}

	if _, err := t.txn.Get(tempKey(h)); err == nil {
		return LocationTemp, nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return LocationAbsent, err
	}

	return LocationAbsent, nil
}

func (t *txnStore) EntityExists(h hash.Hash32) (bool, error) {
	loc, err := t.EntityLocation(h)
	if err != nil {
		return false, err
	}
	return loc != LocationAbsent, nil
}

func (t *txnStore) ExpectEntity(h hash.Hash32) (entity.Entity, error) {
	item, err := t.txn.Get(mainCausalKey(h))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return entity.Entity{}, err
	}
	if err == nil {
		return decodeValue(item, decodeEntity)
	}

	item, err = t.txn.Get(mainObjectKey(h))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return entity.Entity{}, err
	}
	if err == nil {
		return decodeValue(item, decodeEntity)
	}

	item, err = t.txn.Get(tempKey(h))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return entity.Entity{}, fmt.Errorf("syncstore: expectEntity: %s is absent", h)
		}
		return entity.Entity{}, err
	}
	pair, err := decodeValue(item, func(b []byte) (tempPair, error) {
		ent, missing, err := decodeTempRecord(b)
		return tempPair{ent, missing}, err
	})
	return pair.entity, err
}

func decodeValue[T any](item *badger.Item, decode func([]byte) (T, error)) (T, error) {
	var out T
	err := item.Value(func(val []byte) error {
		decoded, err := decode(val)
		out = decoded
		return err
	})
	return out, err
}

// Promote implements the promotion rule of spec.md §4.8.
func (t *txnStore) Promote(h hash.Hash32, e entity.Entity) (Location, error) {
	if loc, err := t.EntityLocation(h); err != nil {
		return LocationAbsent, err
	} else if loc != LocationAbsent {
		return loc, nil
	}

	deps, err := entity.Dependencies(e)
	if err != nil {
		return LocationAbsent, fmt.Errorf("syncstore: promote %s: %w", h, err)
	}

	missing := make(map[hash.Hash32]hash.HashJWT)
	for depHash, depJWT := range deps {
		exists, err := t.EntityExists(depHash)
		if err != nil {
			return LocationAbsent, err
		}
		if !exists {
			missing[depHash] = depJWT
		}
	}

	if len(missing) == 0 {
		if err := t.saveInMain(h, e); err != nil {
			return LocationAbsent, err
		}
		if err := t.cascadePromote(h); err != nil {
			return LocationAbsent, err
		}
		return LocationMain, nil
	}

	if err := t.insertTemp(h, e, missing); err != nil {
		return LocationAbsent, err
	}
	return LocationTemp, nil
}

func (t *txnStore) saveInMain(h hash.Hash32, e entity.Entity) error {
	key := mainObjectKey(h)
	if e.Kind == entity.KindCausal {
		key = mainCausalKey(h)
	}
	return t.txn.Set(key, encodeEntity(e))
}

func (t *txnStore) insertTemp(h hash.Hash32, e entity.Entity, missing map[hash.Hash32]hash.HashJWT) error {
	if len(missing) == 0 {
		return fmt.Errorf("syncstore: insertTemp requires a non-empty missing set")
	}
	return t.txn.Set(tempKey(h), encodeTempRecord(e, missing))
}

// cascadePromote re-examines every temp entity that was waiting on
// landed and, now that it has arrived in main, either removes landed
// from its recorded missing set or — if that was the last missing
// dependency — promotes it to main too, recursively. This is what
// makes a chain of promotions triggered by a single downloaded
// dependency converge to the closure-of-main invariant of spec.md §3,
// which spec.md §4.8 only states as a per-(hash,entity) rule.
func (t *txnStore) cascadePromote(landed hash.Hash32) error {
	type candidate struct {
		hash    hash.Hash32
		entity  entity.Entity
		missing map[hash.Hash32]hash.HashJWT
	}
	var candidates []candidate

	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	prefix := []byte(prefixTemp)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		pair, err := decodeValue(item, func(b []byte) (tempPair, error) {
			ent, m, err := decodeTempRecord(b)
			return tempPair{ent, m}, err
		})
		if err != nil {
			it.Close()
			return err
		}
		if _, has := pair.missing[landed]; !has {
			continue
		}

		remaining := make(map[hash.Hash32]hash.HashJWT, len(pair.missing))
		for depHash, depJWT := range pair.missing {
			if depHash == landed {
				continue
			}
			remaining[depHash] = depJWT
		}
		candidates = append(candidates, candidate{hash: hashFromTempKey(key), entity: pair.entity, missing: remaining})
	}
	it.Close()

	for _, c := range candidates {
		// A nested cascade earlier in this loop may already have rewritten
		// or promoted this candidate, so start from its current record.
		item, err := t.txn.Get(tempKey(c.hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		} else if err != nil {
			return err
		}
		current, err := decodeValue(item, func(b []byte) (tempPair, error) {
			ent, m, err := decodeTempRecord(b)
			return tempPair{ent, m}, err
		})
		if err != nil {
			return err
		}
		delete(current.missing, landed)
		c.missing = current.missing

		if len(c.missing) == 0 {
			if err := t.txn.Delete(tempKey(c.hash)); err != nil {
				return err
			}
			if err := t.saveInMain(c.hash, c.entity); err != nil {
				return err
			}
			if err := t.cascadePromote(c.hash); err != nil {
				return err
			}
			continue
		}
		if err := t.txn.Set(tempKey(c.hash), encodeTempRecord(c.entity, c.missing)); err != nil {
			return err
		}
	}
	return nil
}

func (t *txnStore) LoadCausalParentsByHash(h hash.Hash32) ([]hash.Hash32, error) {
	loc, err := t.EntityLocation(h)
	if err != nil {
		return nil, err
	}
	if loc == LocationAbsent {
		return nil, nil
	}

	e, err := t.ExpectEntity(h)
	if err != nil {
		return nil, err
	}
	if e.Kind != entity.KindCausal {
		return nil, fmt.Errorf("syncstore: %s is a %s, not a causal", h, e.Kind)
	}

	body, err := entity.DecodeCausalBody(e.Body)
	if err != nil {
		return nil, fmt.Errorf("syncstore: decode causal body for %s: %w", h, err)
	}

	parents := make([]hash.Hash32, 0, len(body.Parents))
	for _, jwt := range body.Parents {
		ph, err := jwt.Hash()
		if err != nil {
			return nil, err
		}
		parents = append(parents, ph)
	}
	return parents, nil
}

// ElaborateHashes implements spec.md §4.1's elaborateHashes: for every
// hash newly staged in temp, look at its recorded missing-dependency
// set and return those not already known to be in main or temp
// (i.e. still absent). Each absent dependency appears once in the
// result, even when several input hashes wait on it.
func (t *txnStore) ElaborateHashes(hs map[hash.Hash32]struct{}) ([]hash.HashJWT, error) {
	if len(hs) == 0 {
		return nil, fmt.Errorf("syncstore: elaborateHashes requires a non-empty set")
	}

	seen := make(map[hash.Hash32]struct{})
	var out []hash.HashJWT

	for h := range hs {
		item, err := t.txn.Get(tempKey(h))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}

		pair, err := decodeValue(item, func(b []byte) (tempPair, error) {
			ent, m, err := decodeTempRecord(b)
			return tempPair{ent, m}, err
		})
		if err != nil {
			return nil, err
		}

		for depHash, depJWT := range pair.missing {
			if _, dup := seen[depHash]; dup {
				continue
			}
			loc, err := t.EntityLocation(depHash)
			if err != nil {
				return nil, err
			}
			if loc == LocationAbsent {
				seen[depHash] = struct{}{}
				out = append(out, depJWT)
			}
		}
	}
	return out, nil
}

type tempPair struct {
	entity  entity.Entity
	missing map[hash.Hash32]hash.HashJWT
}
