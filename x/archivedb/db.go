// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package archivedb

import (
	"bytes"
	"errors"
	"sync"

	"github.com/ava-labs/worldstate/database"
)

var ErrUnknownHeight = errors.New("unknown height")

// Database is a thin layer on top of a database.Database that stores every
// version of every key, tagged with the height at which it was written.
//
// Writes happen through a Batch created for a given height, inside which
// entries can be put or deleted. Reads happen through a Reader opened at a
// given height and observe the latest version written at or below it.
//
//	The way it works is as follows:
//		- Height: 10
//			Set(foo, "foo's value is bar")
//			Set(bar, "bar's value is bar")
//		- Height: 100
//			Set(foo, "updatedfoo's value is bar")
//		- Height: 1000
//			Set(bar, "updated bar's value is bar")
//			Delete(foo)
//
// Reading foo at height 9 returns ErrNotFound because foo was not defined
// yet. Reading it at height 99 returns "foo's value is bar", set at height
// 10. Reading it at height 2000 returns ErrNotFound because foo was deleted
// at height 1000.
//
// Unlike a pure archive, versions can also be erased with Batch.Remove, which
// is how history is rewound or pruned.
type Database struct {
	// Must be held when reading/writing fields.
	lock sync.RWMutex

	db database.Database
}

func New(db database.Database) *Database {
	return &Database{
		db: db,
	}
}

// Height returns the height of the last written batch.
func (db *Database) Height() (uint64, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return database.GetUInt64(db.db, heightKey)
}

// Open returns a reader of the state at [height].
func (db *Database) Open(height uint64) (*Reader, error) {
	lastHeight, err := db.Height()
	if err != nil {
		return nil, err
	}
	if height > lastHeight {
		return nil, ErrUnknownHeight
	}
	return &Reader{
		db:     db,
		height: height,
	}, nil
}

// Reader returns a reader at [height] without checking it was written.
func (db *Database) Reader(height uint64) *Reader {
	return &Reader{
		db:     db,
		height: height,
	}
}

// get returns the latest version of [key] at or below [height] along with
// the height it was written at.
func (db *Database) get(key []byte, height uint64) ([]byte, uint64, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	start, prefix := newDBKey(key, height)
	it := db.db.NewIteratorWithStartAndPrefix(start, prefix)
	defer it.Release()

	if !it.Next() {
		// There is no available key with the requested prefix
		return nil, 0, errors.Join(database.ErrNotFound, it.Error())
	}

	foundKey, foundHeight, err := parseDBKey(it.Key())
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(foundKey, key) {
		return nil, 0, database.ErrNotFound
	}

	value, isDeleted, err := parseValue(it.Value())
	if err != nil {
		return nil, 0, err
	}
	if isDeleted {
		return nil, foundHeight, database.ErrNotFound
	}
	return value, foundHeight, nil
}

// Previous returns the height of the latest version of [key] written strictly
// below [height], deletions included.
func (db *Database) Previous(key []byte, height uint64) (uint64, bool, error) {
	if height == 0 {
		return 0, false, nil
	}

	db.lock.RLock()
	defer db.lock.RUnlock()

	start, prefix := newDBKey(key, height-1)
	it := db.db.NewIteratorWithStartAndPrefix(start, prefix)
	defer it.Release()

	if !it.Next() {
		return 0, false, it.Error()
	}
	_, foundHeight, err := parseDBKey(it.Key())
	if err != nil {
		return 0, false, err
	}
	return foundHeight, true, nil
}

// Versions returns every height at which [key] was written, newest first.
func (db *Database) Versions(key []byte) ([]uint64, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	_, prefix := newDBKey(key, 0)
	it := db.db.NewIteratorWithPrefix(prefix)
	defer it.Release()

	var heights []uint64
	for it.Next() {
		_, height, err := parseDBKey(it.Key())
		if err != nil {
			return nil, err
		}
		heights = append(heights, height)
	}
	return heights, it.Error()
}

// Batch accumulates writes at a single height.
type Batch struct {
	db     *Database
	height uint64
	batch  database.Batch
}

// NewBatch creates a new batch to append database changes in a given height
func (db *Database) NewBatch(height uint64) *Batch {
	return &Batch{
		db:     db,
		height: height,
		batch:  db.db.NewBatch(),
	}
}

func (b *Batch) Height() uint64 {
	return b.height
}

// Put queues an insert of [key] at the batch height.
func (b *Batch) Put(key []byte, value []byte) error {
	dbKey, _ := newDBKey(key, b.height)
	return b.batch.Put(dbKey, encodeValue(value))
}

// Delete marks [key] as removed from the batch height onward.
func (b *Batch) Delete(key []byte) error {
	dbKey, _ := newDBKey(key, b.height)
	return b.batch.Put(dbKey, encodeDeleted())
}

// Remove erases the version of [key] written at [height], as if it had never
// been written.
func (b *Batch) Remove(key []byte, height uint64) error {
	dbKey, _ := newDBKey(key, height)
	return b.batch.Delete(dbKey)
}

// Raw returns the underlying batch so that unversioned records can be written
// atomically with the versioned ones. Raw keys must start with a byte greater
// than or equal to RawPrefixStart.
func (b *Batch) Raw() database.KeyValueWriterDeleter {
	return b.batch
}

// Size returns the sizes to be committed in the database
func (b *Batch) Size() int {
	return b.batch.Size()
}

// Write writes the changes to the database and records the batch height as
// the last written height.
func (b *Batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if err := database.PutUInt64(b.batch, heightKey, b.height); err != nil {
		return err
	}
	return b.batch.Write()
}

// Reset removes all pending writes and deletes to the database
func (b *Batch) Reset() {
	b.batch.Reset()
}
