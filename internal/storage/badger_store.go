package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/allisson/gatekeeper/internal/errors"
)

// BadgerStore is an embedded on-disk Store backed by BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a BadgerDB database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get implements Store.
func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put implements Store.
func (b *BadgerStore) Put(ctx context.Context, key string, value []byte) error {
	return b.Apply(ctx, Op{Key: key, Value: value})
}

// Apply implements Store. Badger transactions are serializable, so a
// concurrent writer touching the same keys makes one of them fail with
// badger.ErrConflict.
func (b *BadgerStore) Apply(_ context.Context, ops ...Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			if op.CreateOnly || op.Expect != nil {
				current, found, err := txnValue(txn, op.Key)
				if err != nil {
					return err
				}
				if found && op.CreateOnly {
					return ErrKeyExists
				}
				if err := checkExpected(op, current, found); err != nil {
					return err
				}
			}
			if err := txn.Set([]byte(op.Key), op.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return errors.Wrap(errors.ErrConflict, "concurrent write")
	}
	return err
}

func txnValue(txn *badger.Txn, key string) ([]byte, bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Scan implements Store.
func (b *BadgerStore) Scan(
	_ context.Context,
	prefix, start string,
	limit int,
	fn func(key string, value []byte) error,
) error {
	seek := start
	if seek < prefix {
		seek = prefix
	}

	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		count := 0
		p := []byte(prefix)
		for it.Seek([]byte(seek)); it.ValidForPrefix(p); it.Next() {
			if limit > 0 && count >= limit {
				return nil
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.KeyCopy(nil)), value); err != nil {
				return err
			}
			count++
		}
		return nil
	})
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
