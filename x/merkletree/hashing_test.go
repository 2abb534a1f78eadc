// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var hashers = []Hasher{
	Poseidon2Hasher,
	Keccak256Hasher,
}

func TestHasherIsOrderSensitive(t *testing.T) {
	for _, hasher := range hashers {
		t.Run(hasher.Name(), func(t *testing.T) {
			require := require.New(t)

			a := FromUint64(1)
			b := FromUint64(2)
			ab := hasher.Hash(a, b)
			require.Equal(ab, hasher.Hash(a, b))
			require.NotEqual(ab, hasher.Hash(b, a))
			require.False(ab.IsZero())
		})
	}
}

func TestZeroHashes(t *testing.T) {
	for _, hasher := range hashers {
		t.Run(hasher.Name(), func(t *testing.T) {
			require := require.New(t)

			zeros := ZeroHashes(hasher, 4)
			require.Len(zeros, 5)
			require.True(zeros[4].IsZero())
			for level := 0; level < 4; level++ {
				require.Equal(hasher.Hash(zeros[level+1], zeros[level+1]), zeros[level])
			}
		})
	}
}

func TestHasherByName(t *testing.T) {
	require := require.New(t)

	hasher, err := HasherByName("keccak256")
	require.NoError(err)
	require.Equal(Keccak256Hasher, hasher)

	hasher, err = HasherByName("poseidon2")
	require.NoError(err)
	require.Equal(Poseidon2Hasher, hasher)

	_, err = HasherByName("sha256")
	require.ErrorIs(err, ErrUnknownHasher)
}

func TestFromBytesReducesModulus(t *testing.T) {
	require := require.New(t)

	allOnes := make([]byte, HashLength)
	for i := range allOnes {
		allOnes[i] = 0xff
	}
	e := FromBytes(allOnes)
	b := e.Bytes()
	require.NotEqual(allOnes, b[:])
}
