// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// LeafPreimageLen is the encoded size of a LeafPreimage.
const LeafPreimageLen = 3*HashLength + 8

// LeafKind selects how the leaves of an indexed tree are hashed.
type LeafKind uint8

const (
	// NullifierLeaf leaves hash (key, nextKey, nextIndex).
	NullifierLeaf LeafKind = iota
	// PublicDataLeaf leaves hash (key, value, nextKey, nextIndex).
	PublicDataLeaf
)

func (k LeafKind) String() string {
	switch k {
	case NullifierLeaf:
		return "nullifier"
	case PublicDataLeaf:
		return "public_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Hash returns the leaf hash of [l]. Empty leaves hash to zero.
func (k LeafKind) Hash(hasher Hasher, l LeafPreimage) fr.Element {
	if l.IsEmpty() {
		return fr.Element{}
	}
	nextIndex := FromUint64(l.NextIndex)
	if k == NullifierLeaf {
		return hasher.HashInputs(l.Key, l.NextKey, nextIndex)
	}
	return hasher.HashInputs(l.Key, l.Value, l.NextKey, nextIndex)
}

// isPadding reports whether an inserted leaf only fills a subtree slot.
func (k LeafKind) isPadding(l LeafPreimage) bool {
	if k == NullifierLeaf {
		return l.Key.IsZero()
	}
	return l.Key.IsZero() && l.Value.IsZero()
}

// LeafPreimage is a slot of an indexed tree. The slots form a linked list
// sorted by key through NextKey and NextIndex. The tail points to (0, 0).
type LeafPreimage struct {
	Key       fr.Element `json:"key"`
	Value     fr.Element `json:"value"`
	NextKey   fr.Element `json:"nextKey"`
	NextIndex uint64     `json:"nextIndex"`
}

func (l LeafPreimage) IsEmpty() bool {
	return l.Key.IsZero() && l.Value.IsZero() && l.NextKey.IsZero() && l.NextIndex == 0
}

// Bytes encodes the preimage as key|value|nextKey|nextIndex.
func (l LeafPreimage) Bytes() []byte {
	b := make([]byte, LeafPreimageLen)
	key := l.Key.Bytes()
	value := l.Value.Bytes()
	nextKey := l.NextKey.Bytes()
	copy(b, key[:])
	copy(b[HashLength:], value[:])
	copy(b[2*HashLength:], nextKey[:])
	binary.BigEndian.PutUint64(b[3*HashLength:], l.NextIndex)
	return b
}

func ParseLeafPreimage(b []byte) (LeafPreimage, error) {
	if len(b) != LeafPreimageLen {
		return LeafPreimage{}, fmt.Errorf("%w: expected %d bytes but got %d",
			ErrInvalidLeaf,
			LeafPreimageLen,
			len(b),
		)
	}
	return LeafPreimage{
		Key:       FromBytes(b[:HashLength]),
		Value:     FromBytes(b[HashLength : 2*HashLength]),
		NextKey:   FromBytes(b[2*HashLength : 3*HashLength]),
		NextIndex: binary.BigEndian.Uint64(b[3*HashLength:]),
	}, nil
}

// LeafWitness is a leaf along with the path proving its membership.
type LeafWitness struct {
	Preimage    LeafPreimage `json:"preimage"`
	Index       uint64       `json:"index"`
	SiblingPath []fr.Element `json:"siblingPath"`
}
