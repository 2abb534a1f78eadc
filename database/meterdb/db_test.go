// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package meterdb

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database/dbtest"
	"github.com/ava-labs/worldstate/database/memdb"
)

func TestInterface(t *testing.T) {
	for name, test := range dbtest.Tests {
		t.Run(name, func(t *testing.T) {
			db, err := New(prometheus.NewRegistry(), memdb.New())
			require.NoError(t, err)

			test(t, db)
		})
	}
}

func TestCallsAreCounted(t *testing.T) {
	require := require.New(t)

	db, err := New(prometheus.NewRegistry(), memdb.New())
	require.NoError(err)

	require.NoError(db.Put([]byte("key"), []byte("value")))
	_, err = db.Get([]byte("key"))
	require.NoError(err)
	_, err = db.Get([]byte("key"))
	require.NoError(err)

	require.Equal(1.0, testutil.ToFloat64(db.calls.With(putLabel)))
	require.Equal(2.0, testutil.ToFloat64(db.calls.With(getLabel)))
	require.Equal(8.0, testutil.ToFloat64(db.size.With(putLabel)))
}
