// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayReadsFallThrough(t *testing.T) {
	require := require.New(t)

	tree := newTestTree(t, 3)
	parent := NewOverlay(Empty{})
	require.NoError(tree.Append(parent, toElements([]uint64{1, 2})))

	child := NewOverlay(parent)
	require.True(child.IsEmpty())
	require.Equal(uint64(2), child.Size())

	parentRoot, err := tree.Root(parent)
	require.NoError(err)
	childRoot, err := tree.Root(child)
	require.NoError(err)
	require.Equal(parentRoot, childRoot)

	require.NoError(tree.Append(child, toElements([]uint64{3})))
	require.False(child.IsEmpty())

	// Writes to the child never reach the parent.
	require.Equal(uint64(2), parent.Size())
	root, err := tree.Root(parent)
	require.NoError(err)
	require.Equal(parentRoot, root)
}

func TestOverlayResetAndMerge(t *testing.T) {
	require := require.New(t)

	tree := newTestTree(t, 3)
	parent := NewOverlay(Empty{})
	child := NewOverlay(parent)

	require.NoError(tree.Append(child, toElements([]uint64{1, 2})))
	child.Reset()
	require.True(child.IsEmpty())
	require.Zero(child.Size())

	require.NoError(tree.Append(child, toElements([]uint64{4, 5})))
	expected, err := tree.Root(child)
	require.NoError(err)

	parent.Merge(child)
	require.Equal(uint64(2), parent.Size())
	root, err := tree.Root(parent)
	require.NoError(err)
	require.Equal(expected, root)

	index, ok, err := parent.Find(FromUint64(5))
	require.NoError(err)
	require.True(ok)
	require.Equal(uint64(1), index)
}

func TestOverlayLowKeyCombinesLayers(t *testing.T) {
	require := require.New(t)

	parent := NewOverlay(Empty{})
	parent.putKey(FromUint64(10), 0)
	parent.putKey(FromUint64(30), 1)

	child := NewOverlay(parent)
	child.putKey(FromUint64(20), 2)

	tests := []struct {
		key   uint64
		low   uint64
		index uint64
	}{
		{key: 10, low: 10, index: 0},
		{key: 15, low: 10, index: 0},
		{key: 20, low: 20, index: 2},
		{key: 25, low: 20, index: 2},
		{key: 30, low: 30, index: 1},
		{key: 99, low: 30, index: 1},
	}
	for _, test := range tests {
		low, index, ok, err := child.LowKey(FromUint64(test.key))
		require.NoError(err)
		require.True(ok)
		require.Equal(FromUint64(test.low), low, "key %d", test.key)
		require.Equal(test.index, index, "key %d", test.key)
	}

	_, _, ok, err := child.LowKey(FromUint64(5))
	require.NoError(err)
	require.False(ok)
}

func TestOverlayNodesAreSorted(t *testing.T) {
	require := require.New(t)

	tree := newTestTree(t, 2)
	o := NewOverlay(Empty{})
	require.NoError(tree.Append(o, toElements([]uint64{1, 2, 3})))

	nodes := o.Nodes()
	require.Len(nodes, 1+2+3)
	for i := 1; i < len(nodes); i++ {
		prev, cur := nodes[i-1], nodes[i]
		require.True(prev.Level < cur.Level || (prev.Level == cur.Level && prev.Index < cur.Index))
	}
}
