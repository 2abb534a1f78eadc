// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buffer

const defaultInitSize = 32

var _ Deque[int] = (*unboundedSliceDeque[int])(nil)

// Deque is a FIFO/LIFO container. Elements are pushed on the right and popped
// from the left when used as a queue.
type Deque[T any] interface {
	// Place an element at the rightmost end of the deque.
	PushRight(T)
	// Remove and return the leftmost element of the deque.
	// Returns false if the deque is empty.
	PopLeft() (T, bool)
	// Return the leftmost element of the deque without removing it.
	// Returns false if the deque is empty.
	PeekLeft() (T, bool)
	// Returns the number of elements in the deque.
	Len() int
	// Returns the elements in the deque from left to right.
	List() []T
}

// NewUnboundedDeque returns a ring buffer backed deque that grows as needed.
// [initSize] is a hint for the initial capacity.
func NewUnboundedDeque[T any](initSize int) Deque[T] {
	if initSize < 2 {
		initSize = defaultInitSize
	}
	return &unboundedSliceDeque[T]{
		data: make([]T, initSize),
	}
}

type unboundedSliceDeque[T any] struct {
	data []T
	// index of the leftmost element
	left int
	size int
}

func (b *unboundedSliceDeque[T]) PushRight(elt T) {
	if b.size == len(b.data) {
		b.resize()
	}
	b.data[(b.left+b.size)%len(b.data)] = elt
	b.size++
}

func (b *unboundedSliceDeque[T]) PopLeft() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	elt := b.data[b.left]
	// Allow the element to be garbage collected.
	b.data[b.left] = zero
	b.left = (b.left + 1) % len(b.data)
	b.size--
	return elt, true
}

func (b *unboundedSliceDeque[T]) PeekLeft() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.data[b.left], true
}

func (b *unboundedSliceDeque[T]) Len() int {
	return b.size
}

func (b *unboundedSliceDeque[T]) List() []T {
	list := make([]T, b.size)
	for i := range list {
		list[i] = b.data[(b.left+i)%len(b.data)]
	}
	return list
}

// Doubles the capacity, moving the elements to the start of the new buffer.
func (b *unboundedSliceDeque[T]) resize() {
	data := make([]T, 2*len(b.data))
	copy(data, b.List())
	b.data = data
	b.left = 0
}
