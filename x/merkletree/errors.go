// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import "errors"

var (
	ErrCapacityExceeded     = errors.New("tree capacity exceeded")
	ErrDuplicateKeyInBatch  = errors.New("duplicate key in batch")
	ErrKeyExists            = errors.New("key already exists")
	ErrIndexOutOfRange      = errors.New("leaf index out of range")
	ErrNoLowLeaf            = errors.New("no low leaf found")
	ErrInvalidSubtreeHeight = errors.New("invalid subtree height")
	ErrTooManyLeaves        = errors.New("too many leaves for subtree")
	ErrInvalidLeaf          = errors.New("invalid leaf encoding")
	ErrInvalidDepth         = errors.New("invalid tree depth")
	ErrUnknownHasher        = errors.New("unknown hasher")
)
