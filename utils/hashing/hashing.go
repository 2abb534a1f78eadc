// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashing

import "golang.org/x/crypto/sha3"

const HashLen = 32

// Hash256 A 256 bit long hash value.
type Hash256 = [HashLen]byte

// ComputeKeccak256Array computes the legacy (pre-standard) keccak256 hash of
// the concatenation of [bufs], as used by Ethereum.
func ComputeKeccak256Array(bufs ...[]byte) Hash256 {
	h := sha3.NewLegacyKeccak256()
	for _, buf := range bufs {
		// h.Write always returns nil, so we ignore its return values.
		_, _ = h.Write(buf)
	}
	var out Hash256
	h.Sum(out[:0])
	return out
}
