// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dbtest is a conformance suite every database.Database
// implementation in this module is run against.
package dbtest

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database"
)

// Tests is a list of all database tests
var Tests = map[string]func(t *testing.T, db database.Database){
	"SimpleKeyValue":       TestSimpleKeyValue,
	"KeyEmptyValue":        TestKeyEmptyValue,
	"SimpleKeyValueClosed": TestSimpleKeyValueClosed,
	"MemorySafetyDatabase": TestMemorySafetyDatabase,
	"BatchPut":             TestBatchPut,
	"BatchDelete":          TestBatchDelete,
	"BatchReset":           TestBatchReset,
	"BatchReplay":          TestBatchReplay,
	"BatchInner":           TestBatchInner,
	"BatchLargeSize":       TestBatchLargeSize,
	"IteratorSnapshot":     TestIteratorSnapshot,
	"Iterator":             TestIterator,
	"IteratorStart":        TestIteratorStart,
	"IteratorPrefix":       TestIteratorPrefix,
	"IteratorStartPrefix":  TestIteratorStartPrefix,
	"IteratorClosed":       TestIteratorClosed,
	"CompactNoPanic":       TestCompactNoPanic,
	"Clear":                TestClear,
	"ClearPrefix":          TestClearPrefix,
}

// TestSimpleKeyValue tests to make sure that simple Put + Get + Delete + Has
// calls return the expected values.
func TestSimpleKeyValue(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)

	_, err = db.Get(key)
	require.Equal(database.ErrNotFound, err)

	require.NoError(db.Delete(key))
	require.NoError(db.Put(key, value))

	has, err = db.Has(key)
	require.NoError(err)
	require.True(has)

	v, err := db.Get(key)
	require.NoError(err)
	require.Equal(value, v)

	require.NoError(db.Delete(key))

	has, err = db.Has(key)
	require.NoError(err)
	require.False(has)

	_, err = db.Get(key)
	require.Equal(database.ErrNotFound, err)

	require.NoError(db.Delete(key))
}

func TestKeyEmptyValue(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	val := []byte(nil)

	_, err := db.Get(key)
	require.Equal(database.ErrNotFound, err)

	require.NoError(db.Put(key, val))

	value, err := db.Get(key)
	require.NoError(err)
	require.Empty(value)
}

// TestSimpleKeyValueClosed tests to make sure that Put + Get + Delete + Has
// calls return the correct error when the database has been closed.
func TestSimpleKeyValueClosed(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	require.NoError(db.Put(key, value))
	require.NoError(db.Close())

	_, err := db.Has(key)
	require.Equal(database.ErrClosed, err)

	_, err = db.Get(key)
	require.Equal(database.ErrClosed, err)

	require.Equal(database.ErrClosed, db.Put(key, value))
	require.Equal(database.ErrClosed, db.Delete(key))
	require.Equal(database.ErrClosed, db.Close())
}

// TestMemorySafetyDatabase ensures it is safe to modify a key after passing it
// to Database.Put and Database.Get.
func TestMemorySafetyDatabase(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("1key")
	keyCopy := slices.Clone(key)
	value := []byte("value")
	key2 := []byte("2key")
	value2 := []byte("value2")

	require.NoError(db.Put(key, value))
	require.NoError(db.Put(key2, value2))

	key[0] = key2[0]
	gotVal, err := db.Get(keyCopy)
	require.NoError(err)
	require.Equal(value, gotVal)

	gotVal[0] = 'x'
	gotVal2, err := db.Get(keyCopy)
	require.NoError(err)
	require.Equal(value, gotVal2)
}

func TestBatchPut(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	batch := db.NewBatch()
	require.NotNil(batch)

	require.NoError(batch.Put(key, value))
	require.Positive(batch.Size())
	require.NoError(batch.Write())

	v, err := db.Get(key)
	require.NoError(err)
	require.Equal(value, v)

	require.NoError(db.Close())

	batch = db.NewBatch()
	require.NoError(batch.Put(key, value))
	require.Equal(database.ErrClosed, batch.Write())
}

func TestBatchDelete(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	require.NoError(db.Put(key, value))

	batch := db.NewBatch()
	require.NoError(batch.Delete(key))
	require.NoError(batch.Write())

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)
}

func TestBatchReset(t *testing.T, db database.Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	batch := db.NewBatch()
	require.NoError(batch.Put(key, value))
	batch.Reset()
	require.Zero(batch.Size())
	require.NoError(batch.Write())

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)
}

func TestBatchReplay(t *testing.T, db database.Database) {
	require := require.New(t)

	key1 := []byte("hello1")
	value1 := []byte("world1")
	key2 := []byte("hello2")
	value2 := []byte("world2")

	batch := db.NewBatch()
	require.NoError(batch.Put(key1, value1))
	require.NoError(batch.Put(key2, value2))
	require.NoError(batch.Delete(key1))

	second := db.NewBatch()
	require.NoError(batch.Replay(second))
	require.NoError(second.Write())

	has, err := db.Has(key1)
	require.NoError(err)
	require.False(has)

	v, err := db.Get(key2)
	require.NoError(err)
	require.Equal(value2, v)
}

// TestBatchInner tests to make sure that inner can be used to write to the
// database.
func TestBatchInner(t *testing.T, db database.Database) {
	require := require.New(t)

	key1 := []byte("hello1")
	value1 := []byte("world1")
	key2 := []byte("hello2")
	value2 := []byte("world2")

	first := db.NewBatch()
	require.NoError(first.Put(key1, value1))

	second := db.NewBatch()
	require.NoError(second.Put(key2, value2))

	innerFirst := first.Inner()
	innerSecond := second.Inner()

	require.NoError(innerFirst.Replay(innerSecond))
	require.NoError(innerSecond.Write())

	for key, value := range map[string][]byte{
		string(key1): value1,
		string(key2): value2,
	} {
		v, err := db.Get([]byte(key))
		require.NoError(err)
		require.Equal(value, v)
	}
}

// TestBatchLargeSize tests to make sure that the batch can support a large
// amount of entries.
func TestBatchLargeSize(t *testing.T, db database.Database) {
	require := require.New(t)

	batch := db.NewBatch()
	value := bytes.Repeat([]byte{0xAB}, 1024)
	for i := 0; i < 1024; i++ {
		require.NoError(batch.Put(database.PackUInt64(uint64(i)), value))
	}
	require.NoError(batch.Write())

	count, err := database.Count(db)
	require.NoError(err)
	require.Equal(1024, count)
}

// TestIteratorSnapshot tests to make sure the database iterates over a snapshot
// of the database at the time of the iterator creation.
func TestIteratorSnapshot(t *testing.T, db database.Database) {
	require := require.New(t)

	key1 := []byte("hello1")
	value1 := []byte("world1")
	key2 := []byte("hello2")
	value2 := []byte("world2")

	require.NoError(db.Put(key1, value1))

	iterator := db.NewIterator()
	defer iterator.Release()

	require.NoError(db.Put(key2, value2))

	require.True(iterator.Next())
	require.Equal(key1, iterator.Key())
	require.Equal(value1, iterator.Value())

	require.False(iterator.Next())
	require.NoError(iterator.Error())
}

func putAll(t *testing.T, db database.Database, pairs ...[]byte) {
	for i := 0; i+1 < len(pairs); i += 2 {
		require.NoError(t, db.Put(pairs[i], pairs[i+1]))
	}
}

func collect(t *testing.T, iterator database.Iterator) []string {
	defer iterator.Release()

	var keys []string
	for iterator.Next() {
		keys = append(keys, string(iterator.Key()))
	}
	require.NoError(t, iterator.Error())
	return keys
}

func TestIterator(t *testing.T, db database.Database) {
	putAll(t, db,
		[]byte("hello2"), []byte("world2"),
		[]byte("hello1"), []byte("world1"),
	)
	require.Equal(t, []string{"hello1", "hello2"}, collect(t, db.NewIterator()))
}

func TestIteratorStart(t *testing.T, db database.Database) {
	putAll(t, db,
		[]byte("hello1"), []byte("world1"),
		[]byte("hello2"), []byte("world2"),
	)
	require.Equal(t, []string{"hello2"}, collect(t, db.NewIteratorWithStart([]byte("hello2"))))
}

func TestIteratorPrefix(t *testing.T, db database.Database) {
	putAll(t, db,
		[]byte("hello"), []byte("world1"),
		[]byte("goodbye"), []byte("world2"),
		[]byte("joy"), []byte("world3"),
	)
	require.Equal(t, []string{"goodbye"}, collect(t, db.NewIteratorWithPrefix([]byte("g"))))
	require.Equal(t, []string{"hello"}, collect(t, db.NewIteratorWithPrefix([]byte("h"))))
}

func TestIteratorStartPrefix(t *testing.T, db database.Database) {
	putAll(t, db,
		[]byte("hello1"), []byte("world1"),
		[]byte("z"), []byte("world2"),
		[]byte("hello3"), []byte("world3"),
	)
	require.Equal(t, []string{"hello3"}, collect(t, db.NewIteratorWithStartAndPrefix([]byte("hello2"), []byte("h"))))
}

func TestIteratorClosed(t *testing.T, db database.Database) {
	require := require.New(t)

	putAll(t, db, []byte("hello1"), []byte("world1"))
	require.NoError(db.Close())

	iterator := db.NewIterator()
	defer iterator.Release()

	require.False(iterator.Next())
	require.Nil(iterator.Key())
	require.Nil(iterator.Value())
	require.Equal(database.ErrClosed, iterator.Error())
}

func TestCompactNoPanic(t *testing.T, db database.Database) {
	require := require.New(t)

	putAll(t, db,
		[]byte("hello1"), []byte("world1"),
		[]byte("hello2"), []byte("world2"),
	)
	require.NoError(db.Compact(nil, nil))
	require.NoError(db.Close())
	require.Equal(database.ErrClosed, db.Compact(nil, nil))
}

func TestClear(t *testing.T, db database.Database) {
	require := require.New(t)

	putAll(t, db,
		[]byte("hello1"), []byte("world1"),
		[]byte("hello2"), []byte("world2"),
		[]byte("hello3"), []byte("world3"),
	)
	require.NoError(database.Clear(db, 2))

	count, err := database.Count(db)
	require.NoError(err)
	require.Zero(count)
}

func TestClearPrefix(t *testing.T, db database.Database) {
	require := require.New(t)

	putAll(t, db,
		[]byte("hello1"), []byte("world1"),
		[]byte("goodbye"), []byte("world2"),
		[]byte("hello3"), []byte("world3"),
	)
	require.NoError(database.ClearPrefix(db, []byte("hello"), 1))

	count, err := database.Count(db)
	require.NoError(err)
	require.Equal(1, count)

	v, err := db.Get([]byte("goodbye"))
	require.NoError(err)
	require.Equal([]byte("world2"), v)
}
