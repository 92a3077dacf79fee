package slots

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"citysim/internal/persistence/snapshot"
)

const keyPrefix = "save/"

// BadgerStore keeps encoded saves under `save/<name>` keys.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a store at dir, or an in-memory store when dir is empty.
func OpenBadger(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
		opts.NumVersionsToKeep = 1
		opts.CompactL0OnClose = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func key(name string) []byte { return []byte(keyPrefix + name) }

func (s *BadgerStore) List() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			names = append(names, string(k[len(keyPrefix):]))
		}
		return nil
	})
	return names, err
}

func (s *BadgerStore) get(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return val, err
}

func (s *BadgerStore) Stat(name string) (snapshot.Header, error) {
	val, err := s.get(name)
	if err != nil {
		return snapshot.Header{}, err
	}
	hdr, err := snapshot.ReadHeader(bytes.NewReader(val))
	if err != nil {
		return hdr, fmt.Errorf("%w: %q: %w", ErrCorrupt, name, err)
	}
	return hdr, nil
}

func (s *BadgerStore) Save(name string, save snapshot.SaveV1) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, save); err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(name), buf.Bytes())
	})
}

func (s *BadgerStore) Load(name string) (snapshot.SaveV1, error) {
	val, err := s.get(name)
	if err != nil {
		return snapshot.SaveV1{}, err
	}
	save, err := snapshot.Decode(bytes.NewReader(val))
	if err != nil {
		return save, fmt.Errorf("%w: %q: %w", ErrCorrupt, name, err)
	}
	return save, nil
}

func (s *BadgerStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		} else if err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
}

func (s *BadgerStore) Close() error { return s.db.Close() }
