// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import (
	"cmp"
	"maps"
	"slices"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/google/btree"
)

const keyIndexDegree = 16

var _ Reader = (*Overlay)(nil)

type NodeKey struct {
	Level uint8
	Index uint64
}

// KeyIndex is an entry of the ordered key index of an indexed tree.
type KeyIndex struct {
	Key   fr.Element
	Index uint64
}

func lessKeyIndex(a, b KeyIndex) bool {
	return less(a.Key, b.Key)
}

// Overlay is a copy-on-write layer of changes on top of a parent Reader.
// Reads fall through to the parent for anything the overlay has not written.
//
// An Overlay is not safe for concurrent use.
type Overlay struct {
	parent Reader
	size   uint64

	nodes  map[NodeKey]fr.Element
	leaves map[uint64][]byte
	keys   *btree.BTreeG[KeyIndex]
	values map[fr.Element]uint64
}

func NewOverlay(parent Reader) *Overlay {
	return &Overlay{
		parent: parent,
		size:   parent.Size(),
		nodes:  make(map[NodeKey]fr.Element),
		leaves: make(map[uint64][]byte),
		keys:   btree.NewG(keyIndexDegree, lessKeyIndex),
		values: make(map[fr.Element]uint64),
	}
}

func (o *Overlay) Parent() Reader {
	return o.parent
}

func (o *Overlay) Size() uint64 {
	return o.size
}

func (o *Overlay) Node(level uint8, index uint64) (fr.Element, bool, error) {
	if n, ok := o.nodes[NodeKey{Level: level, Index: index}]; ok {
		return n, true, nil
	}
	return o.parent.Node(level, index)
}

func (o *Overlay) Leaf(index uint64) ([]byte, bool, error) {
	if index >= o.size {
		return nil, false, nil
	}
	if l, ok := o.leaves[index]; ok {
		return l, true, nil
	}
	return o.parent.Leaf(index)
}

func (o *Overlay) Find(value fr.Element) (uint64, bool, error) {
	if entry, ok := o.keys.Get(KeyIndex{Key: value}); ok {
		return entry.Index, true, nil
	}
	// The parent holds older leaves, so its first occurrence wins.
	index, ok, err := o.parent.Find(value)
	if err != nil || ok {
		return index, ok, err
	}
	index, ok = o.values[value]
	return index, ok, nil
}

func (o *Overlay) LowKey(key fr.Element) (fr.Element, uint64, bool, error) {
	var (
		local      KeyIndex
		foundLocal bool
	)
	o.keys.DescendLessOrEqual(KeyIndex{Key: key}, func(item KeyIndex) bool {
		local = item
		foundLocal = true
		return false
	})
	if foundLocal && local.Key.Equal(&key) {
		return local.Key, local.Index, true, nil
	}

	parentKey, parentIndex, foundParent, err := o.parent.LowKey(key)
	switch {
	case err != nil:
		return fr.Element{}, 0, false, err
	case !foundParent:
		return local.Key, local.Index, foundLocal, nil
	case !foundLocal || less(local.Key, parentKey):
		return parentKey, parentIndex, true, nil
	default:
		return local.Key, local.Index, true, nil
	}
}

// IsEmpty returns true if the overlay holds no changes.
func (o *Overlay) IsEmpty() bool {
	return o.size == o.parent.Size() &&
		len(o.nodes) == 0 &&
		len(o.leaves) == 0 &&
		o.keys.Len() == 0 &&
		len(o.values) == 0
}

// Reset discards every change.
func (o *Overlay) Reset() {
	o.size = o.parent.Size()
	clear(o.nodes)
	clear(o.leaves)
	o.keys.Clear(false)
	clear(o.values)
}

// Merge applies the changes of [child] to [o]. [child] must have been
// created on top of [o].
func (o *Overlay) Merge(child *Overlay) {
	o.size = child.size
	for k, v := range child.nodes {
		o.nodes[k] = v
	}
	for k, v := range child.leaves {
		o.leaves[k] = v
	}
	child.keys.Ascend(func(item KeyIndex) bool {
		o.keys.ReplaceOrInsert(item)
		return true
	})
	for k, v := range child.values {
		if _, ok := o.values[k]; !ok {
			o.values[k] = v
		}
	}
}

// Nodes returns the written nodes sorted by level then index.
func (o *Overlay) Nodes() []NodeKey {
	return slices.SortedFunc(maps.Keys(o.nodes), func(a, b NodeKey) int {
		if c := cmp.Compare(a.Level, b.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}

// NodeAt returns a node written by this overlay.
func (o *Overlay) NodeAt(k NodeKey) fr.Element {
	return o.nodes[k]
}

// Leaves returns the written leaves by index.
func (o *Overlay) Leaves() map[uint64][]byte {
	return o.leaves
}

// Keys calls [f] on every indexed key written by this overlay in ascending
// order.
func (o *Overlay) Keys(f func(KeyIndex) bool) {
	o.keys.Ascend(f)
}

// Values returns the first index of every value appended by this overlay.
func (o *Overlay) Values() map[fr.Element]uint64 {
	return o.values
}

func (o *Overlay) putNode(level uint8, index uint64, hash fr.Element) {
	o.nodes[NodeKey{Level: level, Index: index}] = hash
}

func (o *Overlay) putLeaf(index uint64, leaf []byte) {
	o.leaves[index] = leaf
}

func (o *Overlay) putKey(key fr.Element, index uint64) {
	o.keys.ReplaceOrInsert(KeyIndex{Key: key, Index: index})
}

func (o *Overlay) putValue(value fr.Element, index uint64) {
	if _, ok := o.values[value]; !ok {
		o.values[value] = index
	}
}
