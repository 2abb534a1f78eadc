// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"errors"
	"fmt"
)

var (
	ErrStateMismatch        = errors.New("state mismatch")
	ErrTreesOutOfSync       = errors.New("world state trees are out of sync")
	ErrForkNotFound         = errors.New("fork not found")
	ErrClosed               = errors.New("world state closed")
	ErrInvalidBlockNumber   = errors.New("invalid block number")
	ErrUnknownTree          = errors.New("unknown tree")
	ErrNotIndexedTree       = errors.New("tree is not an indexed tree")
	ErrNotAppendOnlyTree    = errors.New("tree is not an append-only tree")
	ErrHeaderStateMismatch  = errors.New("state in header does not match current state")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// StateMismatchError reports a tree whose rebuilt state differs from the
// state published in a block.
type StateMismatchError struct {
	Tree     TreeID
	Expected TreeSnapshot
	Actual   TreeSnapshot
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("%s: synced %s root %s with size %d does not match published root %s with size %d",
		ErrStateMismatch,
		e.Tree,
		e.Actual.Root.String(),
		e.Actual.Size,
		e.Expected.Root.String(),
		e.Expected.Size,
	)
}

func (*StateMismatchError) Unwrap() error {
	return ErrStateMismatch
}
