// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mapsizedb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database"
	"github.com/ava-labs/worldstate/database/dbtest"
	"github.com/ava-labs/worldstate/database/memdb"
)

func TestInterface(t *testing.T) {
	for name, test := range dbtest.Tests {
		t.Run(name, func(t *testing.T) {
			db, err := New(memdb.New(), 0)
			require.NoError(t, err)

			test(t, db)
		})
	}
}

func TestStats(t *testing.T) {
	require := require.New(t)

	base := memdb.New()
	require.NoError(base.Put([]byte("a"), []byte("1")))

	db, err := New(base, 0)
	require.NoError(err)
	require.Equal(Stats{NumDataItems: 1, UsedSize: 10}, db.Stats())

	b := db.NewBatch()
	require.NoError(b.Put([]byte("b"), []byte("22")))
	require.NoError(b.Put([]byte("b"), []byte("333")))
	require.NoError(b.Delete([]byte("a")))
	require.NoError(b.Write())
	require.Equal(Stats{NumDataItems: 1, UsedSize: 12}, db.Stats())

	require.NoError(db.Delete([]byte("b")))
	require.Equal(Stats{}, db.Stats())
}

func TestMapFull(t *testing.T) {
	require := require.New(t)

	db, err := New(memdb.New(), 32)
	require.NoError(err)

	require.NoError(db.Put([]byte("key1"), []byte("value1"))) // 18 bytes

	b := db.NewBatch()
	require.NoError(b.Put([]byte("key2"), []byte("value2")))
	require.NoError(b.Put([]byte("key3"), []byte("value3")))
	require.ErrorIs(b.Write(), ErrMapFull)

	// Nothing from the failed batch was applied.
	has, err := db.Has([]byte("key2"))
	require.NoError(err)
	require.False(has)
	require.Equal(uint64(18), db.Stats().UsedSize)

	// Shrinking writes are always allowed.
	require.NoError(db.Delete([]byte("key1")))
	_, err = db.Get([]byte("key1"))
	require.ErrorIs(err, database.ErrNotFound)
	require.NoError(db.Put([]byte("key2"), []byte("value2")))
}
