package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketRows = []byte("rows")

// BoltStore implements Store using BoltDB as the transactional KV backend.
// Every mutation spec.md calls an "optimistic transaction" maps to one
// bbolt db.Update closure: bbolt itself serializes writers through a
// single file lock, so there is no conflict to retry (see DESIGN.md,
// Open Question 5) — the observable contract (either all of a mutation's
// writes land, or none do) is identical.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the bbolt database at
// <dataDir>/docstore.db and ensures the rows bucket exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "docstore.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRows)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rows bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Key composition helpers, matching spec.md §3 exactly. Collection and
// usecase names are joined with ':' as given; nothing here or in
// pkg/protocol rejects a name that itself contains ':'.

// DataKey exposes the "{collection}:{id}" grammar for callers (pkg/query)
// that need to address a row without going through Store's by-id methods.
func DataKey(collection, id string) string { return dataKey(collection, id) }

// SplitDataKey inverts DataKey by splitting at the first ':'. For a
// collection name that contains ':' the split lands inside the name, so
// the result is not the original collection and id.
func SplitDataKey(key string) (collection, id string, ok bool) {
	idx := strings.Index(key, ":")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

func dataKey(collection, id string) string { return collection + ":" + id }
func aclKey(collection, id string) string  { return collection + ":" + id + ":acl" }
func nonceKey(collection, id string) string {
	return collection + ":" + id + ":nonce"
}
func usecaseKey(collection, usecase string) string {
	return collection + ":" + usecase + ":usecase"
}
func collectionKeysKey(collection string) string { return collection + ":keys" }

// decodeKeyList/appendKeyList store index entries as CBOR list<bytes>
// (major type 2), matching original_source/server/src/insert.rs's
// Vec<Vec<u8>> of raw data-key bytes, not list<string>.
func decodeKeyList(raw []byte) ([][]byte, error) {
	if raw == nil {
		return nil, nil
	}
	var keys [][]byte
	if err := cbor.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode key list: %w", err)
	}
	return keys, nil
}

func appendKeyList(b *bolt.Bucket, listKey, newMember string) error {
	raw := b.Get([]byte(listKey))
	keys, err := decodeKeyList(raw)
	if err != nil {
		return err
	}
	keys = append(keys, []byte(newMember))
	encoded, err := cbor.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to encode key list: %w", err)
	}
	return b.Put([]byte(listKey), encoded)
}

func keyListToStrings(keys [][]byte) []string {
	if keys == nil {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// Insert generates a v4 UUID and atomically writes the data row, acl row,
// nonce row (only when nonce is non-nil), membership in every named
// usecase index, and membership in the collection's key index (I1, I2).
func (s *BoltStore) Insert(collection string, acl []string, data []byte, nonce []byte, usecases []string) (string, error) {
	id := uuid.New().String()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)

		if err := b.Put([]byte(dataKey(collection, id)), data); err != nil {
			return err
		}

		aclEncoded, err := cbor.Marshal(acl)
		if err != nil {
			return fmt.Errorf("failed to encode acl: %w", err)
		}
		if err := b.Put([]byte(aclKey(collection, id)), aclEncoded); err != nil {
			return err
		}

		if nonce != nil {
			if err := b.Put([]byte(nonceKey(collection, id)), nonce); err != nil {
				return err
			}
		}

		dk := dataKey(collection, id)
		for _, u := range usecases {
			if err := appendKeyList(b, usecaseKey(collection, u), dk); err != nil {
				return err
			}
		}

		return appendKeyList(b, collectionKeysKey(collection), dk)
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// Update overwrites the data row at collection:id. If the row is absent
// at read time, no write occurs and ErrKeyNotFound is returned (I3).
func (s *BoltStore) Update(collection, id string, newValue []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		key := []byte(dataKey(collection, id))
		if b.Get(key) == nil {
			return ErrKeyNotFound
		}
		return b.Put(key, newValue)
	})
}

// Delete removes the data row at collection:id. Ancillary acl/nonce/index
// entries are left in place as tombstonable garbage (I4).
func (s *BoltStore) Delete(collection, id string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		key := []byte(dataKey(collection, id))
		existed = b.Get(key) != nil
		if !existed {
			return nil
		}
		return b.Delete(key)
	})
	return existed, err
}

// DeleteForUsecase drops the usecase index itself, without touching the
// rows it referenced.
func (s *BoltStore) DeleteForUsecase(collection, usecase string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		return b.Delete([]byte(usecaseKey(collection, usecase)))
	})
}

// Drop removes every data row referenced by the collection's key index,
// then every remaining key prefixed "{collection}:": the key index
// itself, every usecase index, and the acl and nonce rows. Unlike
// Delete, it leaves no garbage behind for the collection.
func (s *BoltStore) Drop(collection string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)

		keysRaw := b.Get([]byte(collectionKeysKey(collection)))
		keys, err := decodeKeyList(keysRaw)
		if err != nil {
			return err
		}
		existed = len(keys) > 0

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		prefix := []byte(collection + ":")
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			dup := append([]byte(nil), k...)
			toDelete = append(toDelete, dup)
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
	return existed, err
}

// GetData reads the data row at collection:id.
func (s *BoltStore) GetData(collection, id string) ([]byte, bool, error) {
	var data []byte
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		raw := b.Get([]byte(dataKey(collection, id)))
		if raw == nil {
			return nil
		}
		ok = true
		data = append([]byte(nil), raw...)
		return nil
	})
	return data, ok, err
}

// GetNonce reads the nonce row at collection:id.
func (s *BoltStore) GetNonce(collection, id string) ([]byte, bool, error) {
	var nonce []byte
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		raw := b.Get([]byte(nonceKey(collection, id)))
		if raw == nil {
			return nil
		}
		ok = true
		nonce = append([]byte(nil), raw...)
		return nil
	})
	return nonce, ok, err
}

// BatchGet reads many keys inside a single read transaction. Absent keys
// are silently omitted from the result (dangling-index tolerance, §4.6).
func (s *BoltStore) BatchGet(keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		for _, k := range keys {
			raw := b.Get([]byte(k))
			if raw == nil {
				continue
			}
			result[k] = append([]byte(nil), raw...)
		}
		return nil
	})
	return result, err
}

// BatchGetNonces reads the nonce row paired with each data key in
// dataKeys, inside a single read transaction. Data keys with no nonce
// row (plain OPE rows, or rows inserted without one) are omitted.
func (s *BoltStore) BatchGetNonces(dataKeys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(dataKeys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		for _, dk := range dataKeys {
			collection, id, ok := SplitDataKey(dk)
			if !ok {
				continue
			}
			raw := b.Get([]byte(nonceKey(collection, id)))
			if raw == nil {
				continue
			}
			result[dk] = append([]byte(nil), raw...)
		}
		return nil
	})
	return result, err
}

// UsecaseIndex decodes the list of data keys under collection:usecase:usecase.
func (s *BoltStore) UsecaseIndex(collection, usecase string) ([]string, error) {
	var keys [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		raw := b.Get([]byte(usecaseKey(collection, usecase)))
		decoded, err := decodeKeyList(raw)
		if err != nil {
			return err
		}
		keys = decoded
		return nil
	})
	return keyListToStrings(keys), err
}

// CountUsecase returns len(usecase index), or 0 if absent.
func (s *BoltStore) CountUsecase(collection, usecase string) (int, error) {
	keys, err := s.UsecaseIndex(collection, usecase)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// CountCollection returns len(collection key index), or 0 if absent.
func (s *BoltStore) CountCollection(collection string) (int, error) {
	var keys [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		raw := b.Get([]byte(collectionKeysKey(collection)))
		decoded, err := decodeKeyList(raw)
		if err != nil {
			return err
		}
		keys = decoded
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
