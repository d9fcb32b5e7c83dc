package scalarstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDocs = []byte("docs")
	bucketRaw  = []byte("raw")
)

// BoltStore implements Store on top of bbolt, an embedded ordered B+tree
// KV engine. Opening it is fatal-at-startup on failure, as spec.md §4.1
// requires: a node with no usable engine handle cannot serve any role.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the scalar store at dbPath.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open scalar store %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDocs); err != nil {
			return fmt.Errorf("create docs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketRaw); err != nil {
			return fmt.Errorf("create raw bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// Put durably writes document under id, returning once bbolt has fsynced
// its own internal WAL for the enclosing transaction.
func (s *BoltStore) Put(id uint64, document []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocs).Put(idKey(id), document)
	})
}

// Get returns the latest committed document for id, or (nil, false, nil)
// on a miss.
func (s *BoltStore) Get(id uint64) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDocs).Get(idKey(id))
		if v == nil {
			return nil
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get id %d: %w", id, err)
	}
	return out, out != nil, nil
}

// PutRaw stores value under a string key, used by FilterIndex snapshots.
func (s *BoltStore) PutRaw(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRaw).Put([]byte(key), value)
	})
}

// GetRaw reads back a blob stored with PutRaw.
func (s *BoltStore) GetRaw(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRaw).Get([]byte(key))
		if v == nil {
			return nil
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get raw %s: %w", key, err)
	}
	return out, out != nil, nil
}

// Close releases the bbolt file handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
