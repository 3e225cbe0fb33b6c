// Package configstore provides the bbolt-backed config.Store
// implementation (spec.md §6): the core only ever sees the config.Store
// interface, this package supplies the on-disk persistence behind it.
package configstore

import (
	"encoding/json"
	"strings"

	"go.etcd.io/bbolt"

	"stairled-core/errcode"
)

var bucketName = []byte("config")

// Store is a bbolt-backed config.Store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and
// ensures the config bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errcode.Wrap(errcode.Fatal, "configstore.Open", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errcode.Wrap(errcode.Fatal, "configstore.Open", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements config.Store.
func (s *Store) Get(key string) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		ok = true
		raw = append(json.RawMessage(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, errcode.Wrap(errcode.ConfigInvalid, "configstore.Get", err)
	}
	return raw, ok, nil
}

// Set implements config.Store.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errcode.Wrap(errcode.ConfigInvalid, "configstore.Set", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(key), raw)
	})
	if err != nil {
		return errcode.Wrap(errcode.Fatal, "configstore.Set", err)
	}
	return nil
}

// Keys implements config.Store.
func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.ConfigInvalid, "configstore.Keys", err)
	}
	return keys, nil
}
