// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

var _ Reader = Empty{}

// Reader exposes the stored contents of a single tree.
//
// Nodes that were never written are reported as absent and must be treated
// as the root of an empty subtree at their level.
type Reader interface {
	// Size returns the number of leaves, padding included.
	Size() uint64
	// Node returns the hash at [level], [index]. Level 0 is the root.
	Node(level uint8, index uint64) (fr.Element, bool, error)
	// Leaf returns the encoded leaf at [index].
	Leaf(index uint64) ([]byte, bool, error)
	// Find returns the index of [value]. For append-only trees this is the
	// first leaf holding the value, for indexed trees the leaf holding the
	// key.
	Find(value fr.Element) (uint64, bool, error)
	// LowKey returns the largest key that is less than or equal to [key]
	// along with its leaf index.
	LowKey(key fr.Element) (fr.Element, uint64, bool, error)
}

// Empty is a Reader of a tree without any leaves.
type Empty struct{}

func (Empty) Size() uint64 {
	return 0
}

func (Empty) Node(uint8, uint64) (fr.Element, bool, error) {
	return fr.Element{}, false, nil
}

func (Empty) Leaf(uint64) ([]byte, bool, error) {
	return nil, false, nil
}

func (Empty) Find(fr.Element) (uint64, bool, error) {
	return 0, false, nil
}

func (Empty) LowKey(fr.Element) (fr.Element, uint64, bool, error) {
	return fr.Element{}, 0, false, nil
}
