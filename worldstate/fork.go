// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ava-labs/worldstate/utils/serial"
	"github.com/ava-labs/worldstate/x/merkletree"
)

var _ View = (*Fork)(nil)

// Fork is a writable view of the world state based on a committed height.
//
// Writes made to a fork are never persisted. Commit folds the pending writes
// of the fork into the fork itself, which Rollback never discards. A fork is
// invalidated if its base height is unwound or pruned.
type Fork struct {
	view

	store *Store
	base  uint64
	queue *serial.Queue

	// Only accessed from the queue.
	committed [NumTrees]*merkletree.Overlay
	pending   [NumTrees]*merkletree.Overlay

	invalidated atomic.Bool
	closeOnce   sync.Once
}

func newFork(s *Store, base uint64, readers [NumTrees]merkletree.Reader) *Fork {
	f := &Fork{
		store: s,
		base:  base,
		queue: serial.New(),
	}
	for _, id := range AllTrees {
		f.committed[id] = merkletree.NewOverlay(readers[id])
		f.pending[id] = merkletree.NewOverlay(f.committed[id])
	}
	f.view = view{
		shapes:        s.shapes,
		initialHeader: s.initialHeader,
		run:           f.run,
	}
	return f
}

// BaseHeight returns the height the fork was created at.
func (f *Fork) BaseHeight() uint64 {
	return f.base
}

func (f *Fork) exec(fn func() error) error {
	if f.invalidated.Load() {
		return ErrForkNotFound
	}
	err := serial.Exec(f.queue, func() error {
		if f.invalidated.Load() {
			return ErrForkNotFound
		}
		if err := fn(); err != nil {
			return err
		}
		// The base height may have been removed while [fn] was reading it.
		if f.invalidated.Load() {
			return ErrForkNotFound
		}
		return nil
	})
	if errors.Is(err, serial.ErrClosed) {
		return ErrForkNotFound
	}
	return err
}

func (f *Fork) run(_ context.Context, _ bool, fn func(*state) error) error {
	return f.exec(func() error {
		return fn(&state{writers: &f.pending})
	})
}

// Commit makes the pending writes of the fork permanent for the lifetime of
// the fork.
func (f *Fork) Commit(context.Context) error {
	return f.exec(func() error {
		for _, id := range AllTrees {
			f.committed[id].Merge(f.pending[id])
			f.pending[id].Reset()
		}
		return nil
	})
}

// Rollback discards the writes made since the last Commit.
func (f *Fork) Rollback(context.Context) error {
	return f.exec(func() error {
		for _, o := range f.pending {
			o.Reset()
		}
		return nil
	})
}

// Close releases the fork. Any further use of the fork fails with
// ErrForkNotFound.
func (f *Fork) Close() error {
	f.invalidate()
	f.store.removeFork(f)
	f.close()
	return nil
}

func (f *Fork) invalidate() {
	f.invalidated.Store(true)
}

func (f *Fork) close() {
	f.closeOnce.Do(f.queue.Close)
}
