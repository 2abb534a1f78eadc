// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package archivedb

import (
	"errors"

	"github.com/ava-labs/worldstate/database"
)

var _ database.KeyValueReader = (*Reader)(nil)

// Reader reads the state of a Database as of a fixed height.
type Reader struct {
	db     *Database
	height uint64
}

func (r *Reader) Height() uint64 {
	return r.height
}

// Has retrieves if a key is present in the key-value data store.
func (r *Reader) Has(key []byte) (bool, error) {
	_, err := r.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Get retrieves the given key if it's present in the key-value data store.
func (r *Reader) Get(key []byte) ([]byte, error) {
	value, _, err := r.db.get(key, r.height)
	return value, err
}

// GetEntry returns the value of [key] along with the height it was last
// written at, at or below the reader height.
func (r *Reader) GetEntry(key []byte) ([]byte, uint64, error) {
	return r.db.get(key, r.height)
}
