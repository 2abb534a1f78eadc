// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package heights tracks the chain markers of a world state and the state
// snapshot recorded at every retained height.
package heights

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHeight      = errors.New("invalid height")
	ErrHeightNotRetained  = errors.New("height not retained")
	ErrHeightNotFound     = errors.New("height not found")
	ErrBlockNotFound      = errors.New("block not found")
	ErrAlreadyPruned      = errors.New("unable to remove historical blocks")
	ErrMissingSnapshot    = errors.New("missing snapshot")
	errInconsistentHeight = errors.New("inconsistent heights")
)

// Summary reports the three chain markers.
type Summary struct {
	Unfinalised uint64 `json:"unfinalisedBlockNumber"`
	Finalised   uint64 `json:"finalisedBlockNumber"`
	Oldest      uint64 `json:"oldestHistoricalBlock"`
}

// Tracker maintains the unfinalised, finalised and oldest retained heights
// along with a snapshot of type S for every height in [oldest, unfinalised].
//
// The markers always satisfy finalised <= unfinalised and
// oldest <= unfinalised. Pruning is allowed past the finalised height.
//
// Tracker is not safe for concurrent use.
type Tracker[S any] struct {
	unfinalised uint64
	finalised   uint64
	oldest      uint64
	snapshots   map[uint64]S
}

// New returns a tracker with every marker at the genesis height 0.
func New[S any](genesis S) *Tracker[S] {
	return &Tracker[S]{
		snapshots: map[uint64]S{0: genesis},
	}
}

// Restore rebuilds a tracker from persisted markers. [snapshots] must hold
// every height in [oldest, unfinalised].
func Restore[S any](summary Summary, snapshots map[uint64]S) (*Tracker[S], error) {
	if summary.Finalised > summary.Unfinalised || summary.Oldest > summary.Unfinalised {
		return nil, fmt.Errorf("%w: unfinalised %d, finalised %d, oldest %d",
			errInconsistentHeight,
			summary.Unfinalised,
			summary.Finalised,
			summary.Oldest,
		)
	}
	t := &Tracker[S]{
		unfinalised: summary.Unfinalised,
		finalised:   summary.Finalised,
		oldest:      summary.Oldest,
		snapshots:   make(map[uint64]S, summary.Unfinalised-summary.Oldest+1),
	}
	for h := summary.Oldest; h <= summary.Unfinalised; h++ {
		s, ok := snapshots[h]
		if !ok {
			return nil, fmt.Errorf("%w at height %d", ErrMissingSnapshot, h)
		}
		t.snapshots[h] = s
	}
	return t, nil
}

func (t *Tracker[S]) Unfinalised() uint64 {
	return t.unfinalised
}

func (t *Tracker[S]) Finalised() uint64 {
	return t.finalised
}

func (t *Tracker[S]) Oldest() uint64 {
	return t.oldest
}

func (t *Tracker[S]) Summary() Summary {
	return Summary{
		Unfinalised: t.unfinalised,
		Finalised:   t.finalised,
		Oldest:      t.oldest,
	}
}

// Tip returns the snapshot at the unfinalised height.
func (t *Tracker[S]) Tip() S {
	return t.snapshots[t.unfinalised]
}

// Retained returns true if a snapshot is available at [height].
func (t *Tracker[S]) Retained(height uint64) bool {
	return t.oldest <= height && height <= t.unfinalised
}

// Snapshot returns the snapshot recorded at [height].
func (t *Tracker[S]) Snapshot(height uint64) (S, error) {
	if !t.Retained(height) {
		var zero S
		return zero, fmt.Errorf("%w: %d is outside [%d, %d]",
			ErrHeightNotRetained,
			height,
			t.oldest,
			t.unfinalised,
		)
	}
	return t.snapshots[height], nil
}

// Commit records the snapshot of the next block.
func (t *Tracker[S]) Commit(height uint64, s S) error {
	if height != t.unfinalised+1 {
		return fmt.Errorf("%w: expected %d but got %d", ErrInvalidHeight, t.unfinalised+1, height)
	}
	t.unfinalised = height
	t.snapshots[height] = s
	return nil
}

// Finalise advances the finalised height. Heights at or below the current
// finalised height are ignored.
func (t *Tracker[S]) Finalise(height uint64) error {
	if height > t.unfinalised {
		return fmt.Errorf("%w: unable to finalise block %d, latest block is %d",
			ErrHeightNotFound,
			height,
			t.unfinalised,
		)
	}
	t.finalised = max(t.finalised, height)
	return nil
}

// Unwind removes every block above [height]. The finalised height is clamped
// to [height].
func (t *Tracker[S]) Unwind(height uint64) error {
	if height >= t.unfinalised || height < t.oldest {
		return fmt.Errorf("unable to unwind block, %w: %d is outside [%d, %d)",
			ErrBlockNotFound,
			height,
			t.oldest,
			t.unfinalised,
		)
	}
	for h := height + 1; h <= t.unfinalised; h++ {
		delete(t.snapshots, h)
	}
	t.unfinalised = height
	t.finalised = min(t.finalised, height)
	return nil
}

// Prune discards every snapshot below [height].
func (t *Tracker[S]) Prune(height uint64) error {
	if height <= t.oldest {
		return fmt.Errorf("%w to block number %d, blocks not found. Current oldest block: %d",
			ErrAlreadyPruned,
			height,
			t.oldest,
		)
	}
	if height > t.unfinalised {
		return fmt.Errorf("unable to remove historical blocks, %w: %d is above %d",
			ErrBlockNotFound,
			height,
			t.unfinalised,
		)
	}
	for h := t.oldest; h < height; h++ {
		delete(t.snapshots, h)
	}
	t.oldest = height
	return nil
}
