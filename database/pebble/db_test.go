// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database/dbtest"
	"github.com/ava-labs/worldstate/utils/logging"
)

func newDB(t testing.TB) *Database {
	folder := t.TempDir()
	db, err := New(folder, DefaultConfig, logging.NoLog{})
	require.NoError(t, err)
	return db
}

func TestInterface(t *testing.T) {
	for name, test := range dbtest.Tests {
		t.Run(name, func(t *testing.T) {
			db := newDB(t)
			test(t, db)
			_ = db.Close()
		})
	}
}

func TestKeyRange(t *testing.T) {
	type test struct {
		start         []byte
		prefix        []byte
		expectedLower []byte
		expectedUpper []byte
	}

	tests := []test{
		{
			start:         nil,
			prefix:        nil,
			expectedLower: nil,
			expectedUpper: nil,
		},
		{
			start:         nil,
			prefix:        []byte{},
			expectedLower: []byte{},
			expectedUpper: nil,
		},
		{
			start:         nil,
			prefix:        []byte{0x00},
			expectedLower: []byte{0x00},
			expectedUpper: []byte{0x01},
		},
		{
			start:         []byte{0x00, 0x02},
			prefix:        []byte{0x00},
			expectedLower: []byte{0x00, 0x02},
			expectedUpper: []byte{0x01},
		},
		{
			start:         []byte{0x01},
			prefix:        []byte{0x00, 0xFF},
			expectedLower: []byte{0x01},
			expectedUpper: []byte{0x01},
		},
		{
			start:         nil,
			prefix:        []byte{0xFF},
			expectedLower: []byte{0xFF},
			expectedUpper: nil,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.start)+" "+string(tt.prefix), func(t *testing.T) {
			require := require.New(t)
			bounds := keyRange(tt.start, tt.prefix)
			require.Equal(tt.expectedLower, bounds.LowerBound)
			require.Equal(tt.expectedUpper, bounds.UpperBound)
		})
	}
}

func TestBatchRewrite(t *testing.T) {
	require := require.New(t)

	db := newDB(t)
	defer db.Close()

	b := db.NewBatch()
	require.NoError(b.Put([]byte("key"), []byte("value")))
	require.NoError(b.Write())
	require.NoError(db.Delete([]byte("key")))

	// Writing the same batch again re-applies its operations.
	require.NoError(b.Write())
	value, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), value)
}
