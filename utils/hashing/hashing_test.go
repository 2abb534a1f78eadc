// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashing

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeKeccak256Array(t *testing.T) {
	require := require.New(t)

	empty := ComputeKeccak256Array()
	require.Equal(
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(empty[:]),
	)

	joined := ComputeKeccak256Array([]byte("hello"), []byte("world"))
	require.Equal(ComputeKeccak256Array([]byte("helloworld")), joined)
}
