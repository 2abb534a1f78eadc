// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mapsizedb bounds the amount of data a database may hold. It mirrors
// the fixed map size of memory mapped stores: a write that would grow the
// stored data past the limit fails as a whole and nothing is applied.
package mapsizedb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/worldstate/database"
)

// kvPairOverhead is an estimated overhead for a kv pair in a database.
const kvPairOverhead = 8

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)

	ErrMapFull = errors.New("database map size exceeded")
)

// Stats describes the data held by a Database.
type Stats struct {
	NumDataItems uint64 `json:"numDataItems"`
	UsedSize     uint64 `json:"usedSize"`
	MapSize      uint64 `json:"mapSize"`
}

type Database struct {
	database.Database

	// writeLock serializes writes so that the usage accounting of concurrent
	// batches can not interleave.
	writeLock sync.Mutex

	lock    sync.RWMutex
	mapSize uint64
	used    uint64
	items   uint64
}

// New wraps [db], limiting it to [mapSize] bytes. A [mapSize] of 0 disables
// the limit while still tracking usage. The current usage is computed by
// scanning [db].
func New(db database.Database, mapSize uint64) (*Database, error) {
	it := db.NewIterator()
	defer it.Release()

	var used, items uint64
	for it.Next() {
		used += entrySize(it.Key(), it.Value())
		items++
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to measure database: %w", err)
	}
	return &Database{
		Database: db,
		mapSize:  mapSize,
		used:     used,
		items:    items,
	}, nil
}

func entrySize(key, value []byte) uint64 {
	return uint64(len(key) + len(value) + kvPairOverhead)
}

func (db *Database) Stats() Stats {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return Stats{
		NumDataItems: db.items,
		UsedSize:     db.used,
		MapSize:      db.mapSize,
	}
}

func (db *Database) Put(key []byte, value []byte) error {
	b := db.NewBatch()
	if err := b.Put(key, value); err != nil {
		return err
	}
	return b.Write()
}

func (db *Database) Delete(key []byte) error {
	b := db.NewBatch()
	if err := b.Delete(key); err != nil {
		return err
	}
	return b.Write()
}

func (db *Database) NewBatch() database.Batch {
	return &batch{db: db}
}

// change is the effect of a set of operations on the tracked usage.
type change struct {
	added, removed uint64
	newItems       uint64
	deletedItems   uint64
}

// measure computes the effect of [ops] without applying them. Assumes
// [db.writeLock] is held.
func (db *Database) measure(ops []database.BatchOp) (change, error) {
	var (
		c change
		// current size of every key touched so far, 0 meaning absent
		sizes = make(map[string]uint64, len(ops))
	)
	for _, op := range ops {
		key := string(op.Key)
		prev, ok := sizes[key]
		if !ok {
			value, err := db.Database.Get(op.Key)
			switch {
			case err == nil:
				prev = entrySize(op.Key, value)
			case errors.Is(err, database.ErrNotFound):
			default:
				return change{}, err
			}
		}

		var next uint64
		if !op.Delete {
			next = entrySize(op.Key, op.Value)
		}
		sizes[key] = next

		c.added += next
		c.removed += prev
		switch {
		case prev == 0 && next != 0:
			c.newItems++
		case prev != 0 && next == 0:
			c.deletedItems++
		}
	}
	return c, nil
}

// check returns ErrMapFull if applying [c] would exceed the map size.
func (db *Database) check(c change) error {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.mapSize == 0 || c.added <= c.removed {
		return nil
	}
	if used := db.used + c.added - c.removed; used > db.mapSize {
		return fmt.Errorf("%w: %d bytes used, %d requested, limit %d",
			ErrMapFull,
			db.used,
			c.added-c.removed,
			db.mapSize,
		)
	}
	return nil
}

func (db *Database) apply(c change) {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.used = db.used + c.added - c.removed
	db.items = db.items + c.newItems - c.deletedItems
}

type batch struct {
	database.BatchOps

	db *Database
}

func (b *batch) Write() error {
	b.db.writeLock.Lock()
	defer b.db.writeLock.Unlock()

	c, err := b.db.measure(b.Ops)
	if err != nil {
		return err
	}

	if err := b.db.check(c); err != nil {
		return err
	}

	inner := b.db.Database.NewBatch()
	if err := b.Replay(inner); err != nil {
		return err
	}
	if err := inner.Write(); err != nil {
		return err
	}
	b.db.apply(c)
	return nil
}

func (b *batch) Inner() database.Batch {
	return b
}
