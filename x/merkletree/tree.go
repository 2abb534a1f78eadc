// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// MaxDepth is the deepest supported tree. Leaf indices must fit in a uint64.
const MaxDepth = 63

// MaxSubtreeHeight bounds the subtrees BatchInsert appends, which are
// materialized in memory.
const MaxSubtreeHeight = 16

// Tree holds the shape of a fixed depth binary tree. It carries no state:
// every operation reads from a Reader and writes into an Overlay.
type Tree struct {
	depth  uint8
	hasher Hasher
	zeros  []fr.Element
}

func NewTree(depth uint8, hasher Hasher) (*Tree, error) {
	if depth == 0 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	return &Tree{
		depth:  depth,
		hasher: hasher,
		zeros:  ZeroHashes(hasher, depth),
	}, nil
}

func (t *Tree) Depth() uint8 {
	return t.depth
}

func (t *Tree) Hasher() Hasher {
	return t.hasher
}

// Capacity returns the maximum number of leaves.
func (t *Tree) Capacity() uint64 {
	return 1 << t.depth
}

// Zero returns the root of an empty subtree at [level].
func (t *Tree) Zero(level uint8) fr.Element {
	return t.zeros[level]
}

// Root returns the root of the tree read through [r].
func (t *Tree) Root(r Reader) (fr.Element, error) {
	return t.node(r, 0, 0)
}

func (t *Tree) node(r Reader, level uint8, index uint64) (fr.Element, error) {
	n, ok, err := r.Node(level, index)
	if err != nil {
		return fr.Element{}, err
	}
	if !ok {
		return t.zeros[level], nil
	}
	return n, nil
}

// SiblingPath returns the [Depth] sibling hashes of the leaf at [index],
// ordered from the leaf level up to the children of the root.
func (t *Tree) SiblingPath(r Reader, index uint64) ([]fr.Element, error) {
	if index >= t.Capacity() {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	path := make([]fr.Element, t.depth)
	for i := range path {
		level := t.depth - uint8(i)
		sibling, err := t.node(r, level, index^1)
		if err != nil {
			return nil, err
		}
		path[i] = sibling
		index >>= 1
	}
	return path, nil
}

// ComputeRoot folds [leaf] at [index] with its sibling [path].
func (t *Tree) ComputeRoot(leaf fr.Element, index uint64, path []fr.Element) fr.Element {
	acc := leaf
	for _, sibling := range path {
		if index&1 == 0 {
			acc = t.hasher.Hash(acc, sibling)
		} else {
			acc = t.hasher.Hash(sibling, acc)
		}
		index >>= 1
	}
	return acc
}

// Append adds [leaves] to an append-only tree starting at the current size.
func (t *Tree) Append(o *Overlay, leaves []fr.Element) error {
	start := o.Size()
	if err := t.checkCapacity(start, len(leaves)); err != nil {
		return err
	}
	if len(leaves) == 0 {
		return nil
	}

	hashes := make([]fr.Element, len(leaves))
	zeroIndexed := false
	for i, leaf := range leaves {
		index := start + uint64(i)
		hashes[i] = leaf
		isZero := leaf.IsZero()
		if isZero {
			// Zero leaves are not stored but the first one is indexed.
			if zeroIndexed {
				continue
			}
			zeroIndexed = true
		} else {
			b := leaf.Bytes()
			o.putLeaf(index, b[:])
		}
		if _, found, err := o.Find(leaf); err != nil {
			return err
		} else if !found {
			o.putValue(leaf, index)
		}
	}
	o.size = start + uint64(len(leaves))
	return t.writeRange(o, start, hashes)
}

// Leaf returns the value stored at [index] of an append-only tree. Padding
// leaves are zero.
func (t *Tree) Leaf(r Reader, index uint64) (fr.Element, bool, error) {
	if index >= r.Size() {
		return fr.Element{}, false, nil
	}
	b, ok, err := r.Leaf(index)
	if err != nil {
		return fr.Element{}, false, err
	}
	if !ok {
		return fr.Element{}, true, nil
	}
	return FromBytes(b), true, nil
}

// FindLeafIndex returns the first index holding [value]. Padding leaves hold
// zero.
func (*Tree) FindLeafIndex(r Reader, value fr.Element) (uint64, bool, error) {
	return r.Find(value)
}

func (t *Tree) checkCapacity(size uint64, n int) error {
	if uint64(n) > t.Capacity()-size {
		return fmt.Errorf("%w: size %d, adding %d, capacity %d",
			ErrCapacityExceeded,
			size,
			n,
			t.Capacity(),
		)
	}
	return nil
}

// writeRange writes contiguous leaf hashes at [start] and recomputes every
// ancestor once.
func (t *Tree) writeRange(o *Overlay, start uint64, hashes []fr.Element) error {
	for i, h := range hashes {
		o.putNode(t.depth, start+uint64(i), h)
	}
	lo := start
	hi := start + uint64(len(hashes)) - 1
	for level := t.depth; level > 0; level-- {
		lo >>= 1
		hi >>= 1
		for index := lo; index <= hi; index++ {
			if err := t.rehash(o, level-1, index); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeLeafHash replaces a single leaf hash and recomputes its path.
func (t *Tree) writeLeafHash(o *Overlay, index uint64, hash fr.Element) error {
	o.putNode(t.depth, index, hash)
	for level := t.depth; level > 0; level-- {
		index >>= 1
		if err := t.rehash(o, level-1, index); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) rehash(o *Overlay, level uint8, index uint64) error {
	left, err := t.node(o, level+1, 2*index)
	if err != nil {
		return err
	}
	right, err := t.node(o, level+1, 2*index+1)
	if err != nil {
		return err
	}
	o.putNode(level, index, t.hasher.Hash(left, right))
	return nil
}
