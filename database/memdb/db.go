// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memdb

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/ava-labs/worldstate/database"
)

const (
	// Name is the name of this database for database switches
	Name = "memdb"

	btreeDegree = 32
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*iterator)(nil)
)

type entry struct {
	key   []byte
	value []byte
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Database is an ephemeral key-value store kept in key order. It backs tests
// and the memdb db type, where the tree databases never touch disk.
type Database struct {
	lock sync.RWMutex
	// nil once closed
	data *btree.BTreeG[entry]
	size int
}

func New() *Database {
	return &Database{
		data: btree.NewG(btreeDegree, lessEntry),
	}
}

func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.data == nil {
		return database.ErrClosed
	}
	db.data = nil
	db.size = 0
	return nil
}

// Len returns the number of stored key/value pairs.
func (db *Database) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.data == nil {
		return 0
	}
	return db.data.Len()
}

// Size returns the number of key and value bytes held.
func (db *Database) Size() int {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return db.size
}

func (db *Database) isClosed() bool {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return db.data == nil
}

func (db *Database) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.data == nil {
		return false, database.ErrClosed
	}
	return db.data.Has(entry{key: key}), nil
}

func (db *Database) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.data == nil {
		return nil, database.ErrClosed
	}
	if e, ok := db.data.Get(entry{key: key}); ok {
		return slices.Clone(e.value), nil
	}
	return nil, database.ErrNotFound
}

func (db *Database) Put(key []byte, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.data == nil {
		return database.ErrClosed
	}
	db.put(slices.Clone(key), slices.Clone(value))
	return nil
}

func (db *Database) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.data == nil {
		return database.ErrClosed
	}
	db.delete(key)
	return nil
}

// put and delete assume the write lock is held and the keys are owned.
func (db *Database) put(key, value []byte) {
	if old, ok := db.data.ReplaceOrInsert(entry{key: key, value: value}); ok {
		db.size -= len(old.key) + len(old.value)
	}
	db.size += len(key) + len(value)
}

func (db *Database) delete(key []byte) {
	if old, ok := db.data.Delete(entry{key: key}); ok {
		db.size -= len(old.key) + len(old.value)
	}
}

func (db *Database) NewBatch() database.Batch {
	return &batch{db: db}
}

func (db *Database) NewIterator() database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, nil)
}

func (db *Database) NewIteratorWithStart(start []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(start, nil)
}

func (db *Database) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, prefix)
}

// NewIteratorWithStartAndPrefix collects the matching pairs up front, so the
// iterator observes the database as of its creation.
func (db *Database) NewIteratorWithStartAndPrefix(start, prefix []byte) database.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.data == nil {
		return &database.IteratorError{
			Err: database.ErrClosed,
		}
	}

	if bytes.Compare(start, prefix) < 0 {
		start = prefix
	}
	var entries []entry
	db.data.AscendGreaterOrEqual(entry{key: start}, func(e entry) bool {
		if !bytes.HasPrefix(e.key, prefix) {
			return false
		}
		entries = append(entries, e)
		return true
	})
	return &iterator{
		db:      db,
		entries: entries,
	}
}

func (db *Database) Compact(_, _ []byte) error {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.data == nil {
		return database.ErrClosed
	}
	return nil
}

type batch struct {
	database.BatchOps

	db *Database
}

func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.data == nil {
		return database.ErrClosed
	}
	for _, op := range b.Ops {
		if op.Delete {
			b.db.delete(op.Key)
		} else {
			b.db.put(op.Key, op.Value)
		}
	}
	return nil
}

func (b *batch) Inner() database.Batch {
	return b
}

type iterator struct {
	db      *Database
	started bool
	entries []entry
	err     error
}

func (it *iterator) Next() bool {
	if it.db.isClosed() {
		it.entries = nil
		it.err = database.ErrClosed
		return false
	}
	if !it.started {
		it.started = true
	} else if len(it.entries) > 0 {
		it.entries[0] = entry{}
		it.entries = it.entries[1:]
	}
	return len(it.entries) > 0
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Key() []byte {
	if len(it.entries) > 0 {
		return slices.Clone(it.entries[0].key)
	}
	return nil
}

func (it *iterator) Value() []byte {
	if len(it.entries) > 0 {
		return slices.Clone(it.entries[0].value)
	}
	return nil
}

func (it *iterator) Release() {
	it.entries = nil
}
