// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnboundedDequeWrapsAndGrows(t *testing.T) {
	require := require.New(t)

	deque := NewUnboundedDeque[int](2)
	_, ok := deque.PopLeft()
	require.False(ok)

	deque.PushRight(0)
	deque.PushRight(1)
	got, ok := deque.PopLeft()
	require.True(ok)
	require.Zero(got)

	// The next pushes wrap around the end of the ring and then force a resize.
	for i := 2; i < 10; i++ {
		deque.PushRight(i)
	}
	require.Equal(9, deque.Len())
	require.Equal([]int{1, 2, 3, 4, 5, 6, 7, 8, 9}, deque.List())

	first, ok := deque.PeekLeft()
	require.True(ok)
	require.Equal(1, first)

	for i := 1; i < 10; i++ {
		got, ok := deque.PopLeft()
		require.True(ok)
		require.Equal(i, got)
	}
	require.Zero(deque.Len())
}
