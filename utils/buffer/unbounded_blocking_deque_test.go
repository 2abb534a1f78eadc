// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnboundedBlockingDequeFIFO(t *testing.T) {
	require := require.New(t)

	deque := NewUnboundedBlockingDeque[int](2)
	for i := 0; i < 10; i++ {
		require.True(deque.PushRight(i))
	}
	require.Equal(10, deque.Len())

	head, ok := deque.PeekLeft()
	require.True(ok)
	require.Zero(head)

	for i := 0; i < 10; i++ {
		got, ok := deque.PopLeft()
		require.True(ok)
		require.Equal(i, got)
	}
	require.Zero(deque.Len())
}

func TestUnboundedBlockingDequePopWaits(t *testing.T) {
	require := require.New(t)

	deque := NewUnboundedBlockingDeque[int](2)

	var (
		wg  sync.WaitGroup
		got []int
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			elt, ok := deque.PopLeft()
			if !ok {
				return
			}
			got = append(got, elt)
		}
	}()

	for i := 1; i <= 3; i++ {
		require.True(deque.PushRight(i))
	}
	wg.Wait()
	require.Equal([]int{1, 2, 3}, got)
}

func TestUnboundedBlockingDequeCloseWakesWaiters(t *testing.T) {
	require := require.New(t)

	deque := NewUnboundedBlockingDeque[int](2)

	const waiters = 4
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, ok := deque.PopLeft()
			results <- ok
		}()
	}

	deque.Close()
	deque.Close()
	for i := 0; i < waiters; i++ {
		require.False(<-results)
	}

	require.False(deque.PushRight(1))
	_, ok := deque.PeekLeft()
	require.False(ok)
	require.Zero(deque.Len())
	require.Nil(deque.List())
}
