// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package archivedb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database"
	"github.com/ava-labs/worldstate/database/memdb"
)

func write(t *testing.T, db *Database, height uint64, f func(*Batch)) {
	t.Helper()
	batch := db.NewBatch(height)
	f(batch)
	require.NoError(t, batch.Write())
}

func TestDBEntries(t *testing.T) {
	require := require.New(t)
	db := New(memdb.New())

	write(t, db, 1, func(b *Batch) {
		require.NoError(b.Put([]byte("key1"), []byte("value1@10")))
		require.NoError(b.Put([]byte("key2"), []byte("value2@10")))
	})
	write(t, db, 2, func(b *Batch) {
		require.NoError(b.Put([]byte("key1"), []byte("value1@100")))
	})
	write(t, db, 3, func(b *Batch) {
		require.NoError(b.Put([]byte("key2"), []byte("value2@1000")))
	})

	height, err := db.Height()
	require.NoError(err)
	require.Equal(uint64(3), height)

	reader, err := db.Open(2)
	require.NoError(err)
	value, err := reader.Get([]byte("key1"))
	require.NoError(err)
	require.Equal([]byte("value1@100"), value)
	value, writtenAt, err := reader.GetEntry([]byte("key2"))
	require.NoError(err)
	require.Equal([]byte("value2@10"), value)
	require.Equal(uint64(1), writtenAt)

	reader, err = db.Open(3)
	require.NoError(err)
	value, err = reader.Get([]byte("key2"))
	require.NoError(err)
	require.Equal([]byte("value2@1000"), value)

	_, err = db.Open(4)
	require.ErrorIs(err, ErrUnknownHeight)
}

func TestDelete(t *testing.T) {
	require := require.New(t)
	db := New(memdb.New())

	write(t, db, 1, func(b *Batch) {
		require.NoError(b.Put([]byte("key1"), []byte("value1@10")))
	})
	write(t, db, 2, func(b *Batch) {
		require.NoError(b.Delete([]byte("key1")))
	})

	reader := db.Reader(1)
	has, err := reader.Has([]byte("key1"))
	require.NoError(err)
	require.True(has)

	reader = db.Reader(2)
	has, err = reader.Has([]byte("key1"))
	require.NoError(err)
	require.False(has)
	_, err = reader.Get([]byte("key1"))
	require.ErrorIs(err, database.ErrNotFound)
}

func TestEmptyValue(t *testing.T) {
	require := require.New(t)
	db := New(memdb.New())

	write(t, db, 1, func(b *Batch) {
		require.NoError(b.Put([]byte("key"), nil))
	})

	value, err := db.Reader(1).Get([]byte("key"))
	require.NoError(err)
	require.Empty(value)
}

func TestPrefixesDoNotCollide(t *testing.T) {
	require := require.New(t)
	db := New(memdb.New())

	write(t, db, 1, func(b *Batch) {
		require.NoError(b.Put([]byte("a"), []byte("short")))
		require.NoError(b.Put([]byte("ab"), []byte("long")))
	})

	_, err := db.Reader(1).Get([]byte("b"))
	require.ErrorIs(err, database.ErrNotFound)
	value, err := db.Reader(1).Get([]byte("a"))
	require.NoError(err)
	require.Equal([]byte("short"), value)
}

func TestRemoveAndPrevious(t *testing.T) {
	require := require.New(t)
	db := New(memdb.New())

	key := []byte("key")
	write(t, db, 1, func(b *Batch) {
		require.NoError(b.Put(key, []byte{1}))
	})
	write(t, db, 3, func(b *Batch) {
		require.NoError(b.Put(key, []byte{3}))
	})
	write(t, db, 5, func(b *Batch) {
		require.NoError(b.Put(key, []byte{5}))
	})

	versions, err := db.Versions(key)
	require.NoError(err)
	require.Equal([]uint64{5, 3, 1}, versions)

	prev, ok, err := db.Previous(key, 5)
	require.NoError(err)
	require.True(ok)
	require.Equal(uint64(3), prev)

	_, ok, err = db.Previous(key, 1)
	require.NoError(err)
	require.False(ok)

	// Remove the newest version and rewind the recorded height.
	write(t, db, 3, func(b *Batch) {
		require.NoError(b.Remove(key, 5))
	})
	value, err := db.Reader(10).Get(key)
	require.NoError(err)
	require.Equal([]byte{3}, value)

	height, err := db.Height()
	require.NoError(err)
	require.Equal(uint64(3), height)
}

func TestRawWritesAreAtomic(t *testing.T) {
	require := require.New(t)
	base := memdb.New()
	db := New(base)

	rawKey := []byte{RawPrefixStart, 1}
	batch := db.NewBatch(1)
	require.NoError(batch.Put([]byte("key"), []byte("value")))
	require.NoError(batch.Raw().Put(rawKey, []byte("raw")))

	has, err := base.Has(rawKey)
	require.NoError(err)
	require.False(has)

	require.NoError(batch.Write())

	value, err := base.Get(rawKey)
	require.NoError(err)
	require.Equal([]byte("raw"), value)
}

func TestHeightNotWritten(t *testing.T) {
	db := New(memdb.New())
	_, err := db.Height()
	require.ErrorIs(t, err, database.ErrNotFound)
}
