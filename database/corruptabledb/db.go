// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package corruptabledb

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ava-labs/worldstate/database"
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
)

// Database is a wrapper around Database that prevents any future calls once a
// write or read failed for a reason other than "not found" or "closed". Once
// latched, the tree stored in this database can no longer be trusted to be
// consistent with its siblings.
type Database struct {
	database.Database

	// set if there was previously an error other than "not found" or
	// "closed" while performing a db operation. If [errored] is set, Has,
	// Get, Put, Delete and batch writes fail with ErrAvoidCorruption.
	errored      atomic.Bool
	initialError atomic.Pointer[error]
}

func New(db database.Database) *Database {
	return &Database{Database: db}
}

// Has returns if the key is set in the database
func (db *Database) Has(key []byte) (bool, error) {
	if err := db.corrupted(); err != nil {
		return false, err
	}
	has, err := db.Database.Has(key)
	return has, db.handleError(err)
}

// Get returns the value the key maps to in the database
func (db *Database) Get(key []byte) ([]byte, error) {
	if err := db.corrupted(); err != nil {
		return nil, err
	}
	value, err := db.Database.Get(key)
	return value, db.handleError(err)
}

// Put sets the value of the provided key to the provided value
func (db *Database) Put(key []byte, value []byte) error {
	if err := db.corrupted(); err != nil {
		return err
	}
	return db.handleError(db.Database.Put(key, value))
}

// Delete removes the key from the database
func (db *Database) Delete(key []byte) error {
	if err := db.corrupted(); err != nil {
		return err
	}
	return db.handleError(db.Database.Delete(key))
}

func (db *Database) Compact(start []byte, limit []byte) error {
	return db.handleError(db.Database.Compact(start, limit))
}

func (db *Database) Close() error {
	return db.handleError(db.Database.Close())
}

func (db *Database) NewBatch() database.Batch {
	return &batch{
		Batch: db.Database.NewBatch(),
		db:    db,
	}
}

// Corrupted returns the error that latched the database, or nil.
func (db *Database) Corrupted() error {
	return db.corrupted()
}

func (db *Database) corrupted() error {
	if !db.errored.Load() {
		return nil
	}
	if errPtr := db.initialError.Load(); errPtr != nil {
		return fmt.Errorf("%w: %w", database.ErrAvoidCorruption, *errPtr)
	}
	return database.ErrAvoidCorruption
}

func (db *Database) handleError(err error) error {
	switch {
	case err == nil, errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrClosed):
	// If we get an error other than "not found" or "closed", disallow future
	// database operations to avoid possible corruption
	default:
		db.initialError.CompareAndSwap(nil, &err)
		db.errored.Store(true)
	}
	return err
}

// batch is a wrapper around the batch to contain sizes.
type batch struct {
	database.Batch
	db *Database
}

// Write flushes any accumulated data to disk.
func (b *batch) Write() error {
	if err := b.db.corrupted(); err != nil {
		return err
	}
	return b.db.handleError(b.Batch.Write())
}
