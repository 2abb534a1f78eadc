// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import (
	"fmt"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// IndexedTree is an append-only tree whose leaves also form a linked list
// sorted by key.
type IndexedTree struct {
	tree *Tree
	kind LeafKind
}

func NewIndexedTree(depth uint8, hasher Hasher, kind LeafKind) (*IndexedTree, error) {
	tree, err := NewTree(depth, hasher)
	if err != nil {
		return nil, err
	}
	return &IndexedTree{
		tree: tree,
		kind: kind,
	}, nil
}

func (t *IndexedTree) Tree() *Tree {
	return t.tree
}

func (t *IndexedTree) Kind() LeafKind {
	return t.kind
}

// BatchInsertion is the witness data produced by BatchInsert. Per input
// entries are in input order.
type BatchInsertion struct {
	// LowLeaves holds every low leaf before it was updated along with its
	// sibling path at that moment.
	LowLeaves []LeafWitness `json:"lowLeaves"`
	// Insertions holds every written leaf along with its sibling path after
	// the subtree was appended. Padding entries are empty.
	Insertions []LeafWitness `json:"insertions"`
	// SortedLeaves holds the inputs sorted by descending key, padding last.
	SortedLeaves []LeafPreimage `json:"sortedLeaves"`
	// SortedIndexes holds the input position of every sorted leaf.
	SortedIndexes []int `json:"sortedIndexes"`
	// SubtreeSiblingPath proves the empty subtree the leaves were appended
	// into.
	SubtreeSiblingPath []fr.Element `json:"subtreeSiblingPath"`
	StartIndex         uint64       `json:"startIndex"`
}

// SequentialInsertion is the witness data produced by SequentialInsert, in
// input order.
type SequentialInsertion struct {
	LowLeaves  []LeafWitness `json:"lowLeaves"`
	Insertions []LeafWitness `json:"insertions"`
}

// Preimage returns the leaf at [index]. Padding leaves are empty.
func (t *IndexedTree) Preimage(r Reader, index uint64) (LeafPreimage, bool, error) {
	if index >= r.Size() {
		return LeafPreimage{}, false, nil
	}
	b, ok, err := r.Leaf(index)
	if err != nil {
		return LeafPreimage{}, false, err
	}
	if !ok {
		return LeafPreimage{}, true, nil
	}
	l, err := ParseLeafPreimage(b)
	return l, err == nil, err
}

// FindLowLeaf returns the index of the leaf with the largest key that is less
// than or equal to [key], and whether the keys are equal.
func (*IndexedTree) FindLowLeaf(r Reader, key fr.Element) (uint64, bool, error) {
	lowKey, index, ok, err := r.LowKey(key)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrNoLowLeaf, key.String())
	}
	return index, lowKey.Equal(&key), nil
}

// FindLeafIndex returns the index of the leaf holding [key].
func (*IndexedTree) FindLeafIndex(r Reader, key fr.Element) (uint64, bool, error) {
	return r.Find(key)
}

// Prefill appends [n] linked leaves with keys 0 through n-1 into an empty
// tree.
func (t *IndexedTree) Prefill(o *Overlay, n uint64) error {
	if o.Size() != 0 {
		return fmt.Errorf("%w: prefilling a tree of size %d", ErrIndexOutOfRange, o.Size())
	}
	if err := t.tree.checkCapacity(0, int(n)); err != nil {
		return err
	}
	leaves := make([]*LeafPreimage, n)
	for i := range leaves {
		l := &LeafPreimage{
			Key: FromUint64(uint64(i)),
		}
		if next := uint64(i) + 1; next < n {
			l.NextKey = FromUint64(next)
			l.NextIndex = next
		}
		leaves[i] = l
	}
	return t.appendLeaves(o, leaves)
}

// BatchInsert inserts [leaves] as one subtree of height [subtreeHeight].
// The input is padded with empty leaves to fill the subtree. Inputs are
// applied in descending key order so that every low leaf update observes the
// updates of larger keys.
func (t *IndexedTree) BatchInsert(o *Overlay, leaves []LeafPreimage, subtreeHeight uint8) (*BatchInsertion, error) {
	if limit := min(t.tree.depth, MaxSubtreeHeight); subtreeHeight > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidSubtreeHeight, subtreeHeight, limit)
	}
	subtreeSize := 1 << subtreeHeight
	if len(leaves) > subtreeSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyLeaves, len(leaves), subtreeSize)
	}
	start := o.Size()
	if err := t.tree.checkCapacity(start, subtreeSize); err != nil {
		return nil, err
	}
	if err := t.validate(o, leaves); err != nil {
		return nil, err
	}

	padded := make([]LeafPreimage, subtreeSize)
	for i, l := range leaves {
		padded[i] = LeafPreimage{
			Key:   l.Key,
			Value: l.Value,
		}
	}
	order := make([]int, subtreeSize)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		aPadding := t.kind.isPadding(padded[a])
		bPadding := t.kind.isPadding(padded[b])
		switch {
		case aPadding && bPadding:
			return 0
		case aPadding:
			return 1
		case bPadding:
			return -1
		default:
			return padded[b].Key.Cmp(&padded[a].Key)
		}
	})

	emptyPath := make([]fr.Element, t.tree.depth)
	result := &BatchInsertion{
		LowLeaves:     make([]LeafWitness, subtreeSize),
		Insertions:    make([]LeafWitness, subtreeSize),
		SortedLeaves:  make([]LeafPreimage, subtreeSize),
		SortedIndexes: order,
		StartIndex:    start,
	}
	subtree := make([]*LeafPreimage, subtreeSize)
	updated := make(map[int]uint64)
	for i, pos := range order {
		result.SortedLeaves[i] = padded[pos]
		l := padded[pos]
		if t.kind.isPadding(l) {
			result.LowLeaves[pos] = LeafWitness{SiblingPath: emptyPath}
			continue
		}

		lowIndex, low, path, exact, err := t.lowLeafWitness(o, l.Key)
		if err != nil {
			return nil, err
		}
		result.LowLeaves[pos] = LeafWitness{
			Preimage:    low,
			Index:       lowIndex,
			SiblingPath: path,
		}

		if exact {
			low.Value = l.Value
			updated[pos] = lowIndex
		} else {
			l.NextKey = low.NextKey
			l.NextIndex = low.NextIndex
			subtree[pos] = &l
			low.NextKey = l.Key
			low.NextIndex = start + uint64(pos)
		}
		if err := t.updateLeaf(o, lowIndex, low); err != nil {
			return nil, err
		}
	}

	subtreePath, err := t.tree.SiblingPath(o, start)
	if err != nil {
		return nil, err
	}
	result.SubtreeSiblingPath = subtreePath[subtreeHeight:]

	if err := t.appendLeaves(o, subtree); err != nil {
		return nil, err
	}

	for pos := range result.Insertions {
		index := start + uint64(pos)
		if lowIndex, ok := updated[pos]; ok {
			index = lowIndex
		} else if subtree[pos] == nil {
			continue
		}
		witness, err := t.witness(o, index)
		if err != nil {
			return nil, err
		}
		result.Insertions[pos] = witness
	}
	return result, nil
}

// SequentialInsert inserts [leaves] one at a time. Every new leaf is
// appended at the next free index and every update is applied in place.
func (t *IndexedTree) SequentialInsert(o *Overlay, leaves []LeafPreimage) (*SequentialInsertion, error) {
	if err := t.tree.checkCapacity(o.Size(), len(leaves)); err != nil {
		return nil, err
	}
	if t.kind == NullifierLeaf {
		if err := t.validate(o, leaves); err != nil {
			return nil, err
		}
	}

	result := &SequentialInsertion{
		LowLeaves:  make([]LeafWitness, len(leaves)),
		Insertions: make([]LeafWitness, len(leaves)),
	}
	for i, input := range leaves {
		l := LeafPreimage{
			Key:   input.Key,
			Value: input.Value,
		}
		if t.kind.isPadding(l) {
			continue
		}

		lowIndex, low, path, exact, err := t.lowLeafWitness(o, l.Key)
		if err != nil {
			return nil, err
		}
		result.LowLeaves[i] = LeafWitness{
			Preimage:    low,
			Index:       lowIndex,
			SiblingPath: path,
		}

		index := lowIndex
		if exact {
			low.Value = l.Value
			if err := t.updateLeaf(o, lowIndex, low); err != nil {
				return nil, err
			}
		} else {
			index = o.Size()
			l.NextKey = low.NextKey
			l.NextIndex = low.NextIndex
			low.NextKey = l.Key
			low.NextIndex = index
			if err := t.updateLeaf(o, lowIndex, low); err != nil {
				return nil, err
			}
			if err := t.appendLeaves(o, []*LeafPreimage{&l}); err != nil {
				return nil, err
			}
		}

		witness, err := t.witness(o, index)
		if err != nil {
			return nil, err
		}
		result.Insertions[i] = witness
	}
	return result, nil
}

// validate rejects inputs that can not be inserted without partially
// modifying the tree.
func (t *IndexedTree) validate(r Reader, leaves []LeafPreimage) error {
	seen := make(map[fr.Element]struct{}, len(leaves))
	for _, l := range leaves {
		if t.kind.isPadding(l) {
			continue
		}
		if _, ok := seen[l.Key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateKeyInBatch, l.Key.String())
		}
		seen[l.Key] = struct{}{}

		if t.kind != NullifierLeaf {
			continue
		}
		if _, exists, err := r.Find(l.Key); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: %s", ErrKeyExists, l.Key.String())
		}
	}
	return nil
}

func (t *IndexedTree) lowLeafWitness(r Reader, key fr.Element) (uint64, LeafPreimage, []fr.Element, bool, error) {
	index, exact, err := t.FindLowLeaf(r, key)
	if err != nil {
		return 0, LeafPreimage{}, nil, false, err
	}
	low, _, err := t.Preimage(r, index)
	if err != nil {
		return 0, LeafPreimage{}, nil, false, err
	}
	path, err := t.tree.SiblingPath(r, index)
	if err != nil {
		return 0, LeafPreimage{}, nil, false, err
	}
	return index, low, path, exact, nil
}

func (t *IndexedTree) witness(r Reader, index uint64) (LeafWitness, error) {
	l, _, err := t.Preimage(r, index)
	if err != nil {
		return LeafWitness{}, err
	}
	path, err := t.tree.SiblingPath(r, index)
	if err != nil {
		return LeafWitness{}, err
	}
	return LeafWitness{
		Preimage:    l,
		Index:       index,
		SiblingPath: path,
	}, nil
}

func (t *IndexedTree) updateLeaf(o *Overlay, index uint64, l LeafPreimage) error {
	o.putLeaf(index, l.Bytes())
	return t.tree.writeLeafHash(o, index, t.kind.Hash(t.tree.hasher, l))
}

// appendLeaves appends [leaves] at the current size. Nil entries are padding.
func (t *IndexedTree) appendLeaves(o *Overlay, leaves []*LeafPreimage) error {
	start := o.Size()
	hashes := make([]fr.Element, len(leaves))
	for i, l := range leaves {
		if l == nil {
			continue
		}
		index := start + uint64(i)
		o.putLeaf(index, l.Bytes())
		o.putKey(l.Key, index)
		hashes[i] = t.kind.Hash(t.tree.hasher, *l)
	}
	o.size = start + uint64(len(leaves))
	if len(leaves) == 0 {
		return nil
	}
	return t.tree.writeRange(o, start, hashes)
}
