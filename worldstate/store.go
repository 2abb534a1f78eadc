// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package worldstate maintains the five trees of a rollup chain: the note
// hash, nullifier, public data, L1 to L2 message and archive trees.
//
// The canonical state advances one block at a time through HandleBlock.
// Every committed height stays readable until it is pruned, and forks give
// independent writable views of any retained height.
package worldstate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/worldstate/database/factory"
	"github.com/ava-labs/worldstate/database/memdb"
	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/utils/serial"
	"github.com/ava-labs/worldstate/utils/wrappers"
	"github.com/ava-labs/worldstate/worldstate/heights"
	"github.com/ava-labs/worldstate/x/merkletree"

	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	errIncompatibleState = errors.New("persisted state was built with different params")
	errTooManyEffects    = errors.New("too many effects")
	errNilBlock          = errors.New("nil block")
)

// Store is the canonical world state.
//
// Every operation that reads pending state or writes runs on a single
// queue, one at a time and in submission order. Reads of committed heights
// run concurrently.
type Store struct {
	config  Config
	log     logging.Logger
	tracer  oteltrace.Tracer
	metrics *metrics
	shapes  *shapes
	dbs     [NumTrees]*treeDB
	queue   *serial.Queue

	initialHeader Header
	genesis       BlockState

	// Must be held when reading/writing the fields below.
	lock    sync.RWMutex
	heights *heights.Tracker[BlockState]
	forks   map[*Fork]struct{}
	// unwinds holds the height of every unwind, in order.
	unwinds []uint64
	// fatalErr is set once the store can no longer be mutated.
	fatalErr error
	synched  bool
	closed   bool

	// Only accessed from the queue.
	pending [NumTrees]*merkletree.Overlay
	// Sizes of the pending trees, published after every queued operation.
	pendingSizes [NumTrees]atomic.Uint64
}

// Open opens the world state described by [config], creating its genesis
// state if needed.
func Open(
	ctx context.Context,
	config Config,
	log logging.Logger,
	reg prometheus.Registerer,
) (*Store, error) {
	if err := config.Params.Verify(); err != nil {
		return nil, err
	}
	hasher, err := merkletree.HasherByName(config.Hasher)
	if err != nil {
		return nil, err
	}
	shapes, err := newShapes(&config.Params, hasher)
	if err != nil {
		return nil, err
	}
	metrics, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = oteltrace.NewNoopTracerProvider().Tracer(namespace)
	}

	s := &Store{
		config:  config,
		log:     log,
		tracer:  tracer,
		metrics: metrics,
		shapes:  shapes,
		forks:   make(map[*Fork]struct{}),
		synched: true,
	}

	dir := filepath.Join(config.DataDir, worldStateDir)
	if config.DBType != memdb.Name {
		if err := prepareDir(dir, config.RollupAddress, log); err != nil {
			return nil, err
		}
	}

	genesis, err := s.buildGenesis()
	if err != nil {
		return nil, err
	}

	for _, id := range AllTrees {
		db, err := factory.New(
			factory.DatabaseConfig{
				Name:    config.DBType,
				Path:    filepath.Join(dir, id.String()),
				MapSize: config.MapSize,
			},
			treeRegisterer(reg, id),
			log,
		)
		if err != nil {
			_ = s.closeDBs()
			return nil, fmt.Errorf("failed to open %s: %w", id, err)
		}
		s.dbs[id] = newTreeDB(id, db)
	}

	if err := s.load(ctx, genesis); err != nil {
		_ = s.closeDBs()
		return nil, err
	}

	s.queue = serial.New()
	s.resetPending()
	s.metrics.setState(s.heights.Summary(), s.heights.Tip())
	s.log.Info("opened world state",
		zap.Uint64("unfinalised", s.heights.Unfinalised()),
		zap.Uint64("finalised", s.heights.Finalised()),
		zap.Uint64("oldest", s.heights.Oldest()),
		zap.String("hasher", hasher.Name()),
	)
	return s, nil
}

func treeRegisterer(reg prometheus.Registerer, id TreeID) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return prometheus.WrapRegistererWithPrefix(id.String()+"_db_", reg)
}

// buildGenesis returns the state at height 0: prefilled indexed trees and an
// archive holding the hash of the initial header.
func (s *Store) buildGenesis() (*[NumTrees]*merkletree.Overlay, error) {
	var overlays [NumTrees]*merkletree.Overlay
	for _, id := range AllTrees {
		overlays[id] = merkletree.NewOverlay(merkletree.Empty{})
		if !id.Indexed() {
			continue
		}
		if err := s.shapes.indexed[id].Prefill(overlays[id], s.config.Params.initialSize(id)); err != nil {
			return nil, fmt.Errorf("failed to prefill %s: %w", id, err)
		}
	}

	st := &state{writers: &overlays}
	ref, err := s.shapes.stateReference(st)
	if err != nil {
		return nil, err
	}
	s.initialHeader = Header{State: ref}
	if err := s.shapes.updateArchive(st, &s.initialHeader); err != nil {
		return nil, err
	}
	s.genesis, err = s.shapes.blockState(st)
	return &overlays, err
}

// load restores the chain markers from the tree databases. Trees that are
// ahead of the others are unwound, and trees that are behind the others'
// pruning are pruned.
func (s *Store) load(ctx context.Context, genesis *[NumTrees]*merkletree.Overlay) error {
	var (
		markers     [NumTrees]treeMarkers
		initialized int
	)
	for _, id := range AllTrees {
		m, ok, err := s.dbs[id].markers()
		if err != nil {
			return fmt.Errorf("failed to read %s markers: %w", id, err)
		}
		if !ok {
			if err := s.dbs[id].commit(0, genesis[id], s.genesis[id]); err != nil {
				return fmt.Errorf("failed to write %s genesis: %w", id, err)
			}
			m = treeMarkers{initialSize: s.genesis[id].Size}
		} else {
			initialized++
		}
		if m.initialSize != s.genesis[id].Size {
			return fmt.Errorf("%w: %s initial size %d, expected %d",
				errIncompatibleState,
				id,
				m.initialSize,
				s.genesis[id].Size,
			)
		}
		markers[id] = m
	}
	if initialized == 0 {
		s.heights = heights.New(s.genesis)
		return nil
	}

	summary := heights.Summary{
		Unfinalised: markers[0].unfinalised,
		Finalised:   markers[0].finalised,
		Oldest:      markers[0].oldest,
	}
	for _, m := range markers[1:] {
		summary.Unfinalised = min(summary.Unfinalised, m.unfinalised)
		summary.Finalised = min(summary.Finalised, m.finalised)
		summary.Oldest = max(summary.Oldest, m.oldest)
	}
	summary.Finalised = min(summary.Finalised, summary.Unfinalised)
	if summary.Oldest > summary.Unfinalised {
		return fmt.Errorf("%w: pruned to %d beyond common height %d",
			ErrTreesOutOfSync,
			summary.Oldest,
			summary.Unfinalised,
		)
	}

	for _, id := range AllTrees {
		m := markers[id]
		if m.unfinalised > summary.Unfinalised {
			s.log.Warn("unwinding tree ahead of the others",
				zap.Stringer("tree", id),
				zap.Uint64("height", m.unfinalised),
				zap.Uint64("target", summary.Unfinalised),
			)
			if err := s.dbs[id].unwind(summary.Unfinalised, m.unfinalised, m.finalised); err != nil {
				return fmt.Errorf("failed to repair %s: %w", id, err)
			}
		}
		if m.oldest < summary.Oldest {
			s.log.Warn("pruning tree behind the others",
				zap.Stringer("tree", id),
				zap.Uint64("oldest", m.oldest),
				zap.Uint64("target", summary.Oldest),
			)
			if err := s.dbs[id].prune(summary.Oldest, m.oldest, summary.Unfinalised); err != nil {
				return fmt.Errorf("failed to repair %s: %w", id, err)
			}
		}
		if m.finalised > summary.Finalised {
			if err := s.dbs[id].setFinalised(summary.Finalised); err != nil {
				return fmt.Errorf("failed to repair %s: %w", id, err)
			}
		}
	}

	snapshots := make(map[uint64]BlockState, summary.Unfinalised-summary.Oldest+1)
	for h := summary.Oldest; h <= summary.Unfinalised; h++ {
		var bs BlockState
		for _, id := range AllTrees {
			snapshot, err := s.dbs[id].block(h)
			if err != nil {
				return err
			}
			bs[id] = snapshot
		}
		snapshots[h] = bs
	}
	if genesis, ok := snapshots[0]; ok && genesis != s.genesis {
		return fmt.Errorf("%w: genesis state differs", errIncompatibleState)
	}

	tracker, err := heights.Restore(summary, snapshots)
	if err != nil {
		return err
	}
	s.heights = tracker
	return nil
}

// readers returns the trees as of [height].
func (s *Store) readers(height uint64, bs BlockState) [NumTrees]merkletree.Reader {
	var readers [NumTrees]merkletree.Reader
	for _, id := range AllTrees {
		readers[id] = s.dbs[id].reader(height, bs[id])
	}
	return readers
}

// resetPending discards pending writes and rebases them on the tip.
// Must be called from the queue, or before the queue is started.
func (s *Store) resetPending() {
	s.lock.RLock()
	height := s.heights.Unfinalised()
	tip := s.heights.Tip()
	s.lock.RUnlock()

	readers := s.readers(height, tip)
	for _, id := range AllTrees {
		s.pending[id] = merkletree.NewOverlay(readers[id])
	}
	s.publishPendingSizes()
}

func (s *Store) publishPendingSizes() {
	for _, id := range AllTrees {
		s.pendingSizes[id].Store(s.pending[id].Size())
	}
}

// exec runs [f] on the queue and waits for it.
func (s *Store) exec(f func() error) error {
	err := serial.Exec(s.queue, f)
	if errors.Is(err, serial.ErrClosed) {
		return ErrClosed
	}
	return err
}

// mutable returns the error that prevents the store from being modified.
func (s *Store) mutable() error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return s.fatalErr
}

// desync marks the trees as no longer consistent with each other.
func (s *Store) desync(op string, err error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.synched = false
	s.fatalErr = fmt.Errorf("%w: %s failed: %w", ErrTreesOutOfSync, op, err)
	s.log.Error("world state trees are out of sync",
		zap.String("op", op),
		zap.Error(err),
	)
	return s.fatalErr
}

func (s *Store) runCanonical(_ context.Context, write bool, f func(*state) error) error {
	return s.exec(func() error {
		if write {
			if err := s.mutable(); err != nil {
				return err
			}
		}
		err := f(&state{writers: &s.pending})
		s.publishPendingSizes()
		return err
	})
}

// Latest returns the canonical view, including pending writes.
func (s *Store) Latest() View {
	return &view{
		shapes:        s.shapes,
		initialHeader: s.initialHeader,
		run:           s.runCanonical,
	}
}

// Committed returns a read-only view of the committed tip.
func (s *Store) Committed() (ReadView, error) {
	s.lock.RLock()
	height := s.heights.Unfinalised()
	s.lock.RUnlock()

	return s.Snapshot(height)
}

// Snapshot returns a read-only view of the state committed at [height].
// Reads fail with heights.ErrHeightNotRetained once [height] is pruned or
// unwound.
func (s *Store) Snapshot(height uint64) (ReadView, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	bs, err := s.heights.Snapshot(height)
	if err != nil {
		return nil, err
	}
	readers := s.readers(height, bs)
	epoch := len(s.unwinds)
	return &view{
		shapes:        s.shapes,
		initialHeader: s.initialHeader,
		run: func(_ context.Context, write bool, f func(*state) error) error {
			if write {
				return fmt.Errorf("%w: historical views are read-only", ErrUnsupportedOperation)
			}
			if err := s.checkRetained(height, epoch); err != nil {
				return err
			}
			if err := f(&state{readers: readers}); err != nil {
				return err
			}
			return s.checkRetained(height, epoch)
		},
	}, nil
}

// checkRetained returns an error if the state at [height] was pruned, or was
// unwound by any of the unwinds since [epoch].
func (s *Store) checkRetained(height uint64, epoch int) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.heights.Snapshot(height); err != nil {
		return err
	}
	for _, unwoundTo := range s.unwinds[epoch:] {
		if unwoundTo < height {
			return fmt.Errorf("%w: %d was unwound", heights.ErrHeightNotRetained, height)
		}
	}
	return nil
}

// Fork opens a writable view of the state at [height], or of the tip if
// [height] is nil. The fork must be closed by the caller.
func (s *Store) Fork(ctx context.Context, height *uint64) (*Fork, error) {
	_, span := s.tracer.Start(ctx, "WorldState.Fork")
	defer span.End()

	start := time.Now()
	defer s.metrics.observe(forkOp, start)

	var fork *Fork
	err := s.exec(func() error {
		s.lock.Lock()
		defer s.lock.Unlock()

		if s.closed {
			return ErrClosed
		}
		base := s.heights.Unfinalised()
		if height != nil {
			base = *height
		}
		bs, err := s.heights.Snapshot(base)
		if err != nil {
			return err
		}
		fork = newFork(s, base, s.readers(base, bs))
		s.forks[fork] = struct{}{}
		s.metrics.forks.Set(float64(len(s.forks)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("created fork",
		zap.Uint64("height", fork.base),
	)
	return fork, nil
}

func (s *Store) removeFork(f *Fork) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.forks, f)
	s.metrics.forks.Set(float64(len(s.forks)))
}

// invalidateForks invalidates every fork whose base height matches [stale].
// Assumes [s.lock] is held.
func (s *Store) invalidateForks(stale func(base uint64) bool) {
	for f := range s.forks {
		if !stale(f.base) {
			continue
		}
		f.invalidate()
		delete(s.forks, f)
		// Waits for the fork's running task, which must not block [s.lock].
		go f.close()
		s.log.Debug("invalidated fork",
			zap.Uint64("height", f.base),
		)
	}
	s.metrics.forks.Set(float64(len(s.forks)))
}

// HandleBlock applies [block] along with the L1 to L2 messages it consumed
// as the next height of the chain.
//
// If the pending state already matches the block, it is committed as is.
// Otherwise the pending state is discarded and the block is rebuilt from its
// tx effects. A rebuilt state that does not match the block is fatal.
func (s *Store) HandleBlock(ctx context.Context, block *Block, l1ToL2Messages []fr.Element) (Status, error) {
	if block == nil {
		return Status{}, errNilBlock
	}
	ctx, span := s.tracer.Start(ctx, "WorldState.HandleBlock", oteltrace.WithAttributes(
		attribute.Int64("blockNumber", int64(block.Number())),
		attribute.Int("numTxs", len(block.Body.TxEffects)),
	))
	defer span.End()

	start := time.Now()
	var selfProduced bool
	err := s.exec(func() error {
		if err := s.mutable(); err != nil {
			return err
		}

		s.lock.RLock()
		expected := s.heights.Unfinalised() + 1
		s.lock.RUnlock()
		if block.Number() != expected {
			return fmt.Errorf("%w: expected %d but got %d", ErrInvalidBlockNumber, expected, block.Number())
		}

		st := &state{writers: &s.pending}
		var err error
		selfProduced, err = s.matchesPending(st, block)
		if err != nil {
			return err
		}
		if selfProduced {
			s.metrics.selfProduced.Inc()
		} else {
			s.metrics.rebuilt.Inc()
			s.resetPending()
			if err := s.rebuild(ctx, st, block, l1ToL2Messages); err != nil {
				s.resetPending()
				var mismatch *StateMismatchError
				if errors.As(err, &mismatch) {
					return s.fail(err)
				}
				return err
			}
		}

		bs, err := s.shapes.blockState(st)
		if err != nil {
			return err
		}
		return s.commitPending(ctx, block.Number(), bs)
	})
	if err != nil {
		return Status{}, err
	}

	s.metrics.observe(handleBlockOp, start)
	s.log.Info("handled block",
		zap.Uint64("height", block.Number()),
		zap.Bool("selfProduced", selfProduced),
		zap.Int("numTxs", len(block.Body.TxEffects)),
		zap.Duration("duration", time.Since(start)),
	)
	return s.Status(), nil
}

// fail latches [err] as fatal. The trees are reported as out of sync so that
// the latch is visible through Status.
func (s *Store) fail(err error) error {
	s.metrics.mismatches.Inc()
	s.log.Error("refusing block with mismatched state",
		zap.Error(err),
	)

	s.lock.Lock()
	defer s.lock.Unlock()

	s.synched = false
	s.fatalErr = err
	return err
}

// matchesPending returns true if the pending roots equal the roots published
// in [block].
func (s *Store) matchesPending(st *state, block *Block) (bool, error) {
	for _, id := range AllTrees {
		expected := block.Archive
		if id != ArchiveTree {
			expected, _ = block.Header.State.Tree(id)
		}
		root, err := s.shapes.trees[id].Root(st.reader(id))
		if err != nil {
			return false, err
		}
		if root != expected.Root {
			return false, nil
		}
	}
	return true, nil
}

// rebuild applies the tx effects of [block] to the empty pending state. Every
// tx is padded to the same number of slots so that the shape of the trees
// only depends on the number of txs.
func (s *Store) rebuild(ctx context.Context, st *state, block *Block, l1ToL2Messages []fr.Element) error {
	_, span := s.tracer.Start(ctx, "WorldState.rebuild")
	defer span.End()

	params := &s.config.Params
	if len(l1ToL2Messages) > params.L1ToL2MessagesPerBlock {
		return fmt.Errorf("%w: %d L1 to L2 messages", errTooManyEffects, len(l1ToL2Messages))
	}
	txs := make([]TxEffect, max(params.MinTxsPerBlock, len(block.Body.TxEffects)))
	copy(txs, block.Body.TxEffects)
	for i, tx := range txs {
		if len(tx.NoteHashes) > params.MaxNoteHashesPerTx ||
			len(tx.Nullifiers) > params.MaxNullifiersPerTx ||
			len(tx.PublicDataWrites) > params.MaxPublicDataWritesPerTx {
			return fmt.Errorf("%w: tx %d", errTooManyEffects, i)
		}
	}

	// The trees are independent until the archive is updated.
	var eg errgroup.Group
	eg.Go(func() error {
		noteHashes := make([]fr.Element, 0, len(txs)*params.MaxNoteHashesPerTx)
		for _, tx := range txs {
			noteHashes = append(noteHashes, pad(tx.NoteHashes, params.MaxNoteHashesPerTx)...)
		}
		return s.shapes.trees[NoteHashTree].Append(s.pending[NoteHashTree], noteHashes)
	})
	eg.Go(func() error {
		messages := pad(l1ToL2Messages, params.L1ToL2MessagesPerBlock)
		return s.shapes.trees[L1ToL2MessageTree].Append(s.pending[L1ToL2MessageTree], messages)
	})
	eg.Go(func() error {
		tree := s.shapes.indexed[NullifierTree]
		for _, tx := range txs {
			leaves := make([]merkletree.LeafPreimage, params.MaxNullifiersPerTx)
			for i, nullifier := range tx.Nullifiers {
				leaves[i].Key = nullifier
			}
			if _, err := tree.BatchInsert(s.pending[NullifierTree], leaves, params.subtreeHeight(NullifierTree)); err != nil {
				return fmt.Errorf("failed to insert nullifiers: %w", err)
			}
		}
		return nil
	})
	eg.Go(func() error {
		// One batch per tx so that a slot is written at most once per batch.
		tree := s.shapes.indexed[PublicDataTree]
		for _, tx := range txs {
			leaves := make([]merkletree.LeafPreimage, params.MaxPublicDataWritesPerTx)
			for i, write := range tx.PublicDataWrites {
				leaves[i] = merkletree.LeafPreimage{
					Key:   write.Slot,
					Value: write.Value,
				}
			}
			if _, err := tree.BatchInsert(s.pending[PublicDataTree], leaves, params.subtreeHeight(PublicDataTree)); err != nil {
				return fmt.Errorf("failed to insert public data writes: %w", err)
			}
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	published := BlockState{ArchiveTree: block.Archive}
	for _, id := range AllTrees {
		if id == ArchiveTree {
			if err := s.shapes.updateArchive(st, &block.Header); err != nil {
				return err
			}
		} else {
			published[id], _ = block.Header.State.Tree(id)
		}
		actual, err := s.shapes.snapshot(id, st.reader(id))
		if err != nil {
			return err
		}
		if actual != published[id] {
			return &StateMismatchError{
				Tree:     id,
				Expected: published[id],
				Actual:   actual,
			}
		}
	}
	return nil
}

func pad(values []fr.Element, n int) []fr.Element {
	padded := make([]fr.Element, n)
	copy(padded, values)
	return padded
}

// commitPending writes the pending state as [height].
// Must be called from the queue.
func (s *Store) commitPending(ctx context.Context, height uint64, bs BlockState) error {
	_, span := s.tracer.Start(ctx, "WorldState.commit", oteltrace.WithAttributes(
		attribute.Int64("height", int64(height)),
	))
	defer span.End()

	start := time.Now()
	var eg errgroup.Group
	for _, id := range AllTrees {
		eg.Go(func() error {
			return s.dbs[id].commit(height, s.pending[id], bs[id])
		})
	}
	if err := eg.Wait(); err != nil {
		return s.desync(commitOp, err)
	}

	s.lock.Lock()
	err := s.heights.Commit(height, bs)
	summary := s.heights.Summary()
	s.lock.Unlock()
	if err != nil {
		return err
	}

	s.resetPending()
	s.metrics.setState(summary, bs)
	s.metrics.observe(commitOp, start)
	return nil
}

// Commit writes the pending state of the canonical view as the next height.
// Nothing happens if there are no pending writes.
func (s *Store) Commit(ctx context.Context) (Status, error) {
	err := s.exec(func() error {
		if err := s.mutable(); err != nil {
			return err
		}
		empty := true
		for _, o := range s.pending {
			empty = empty && o.IsEmpty()
		}
		if empty {
			return nil
		}

		s.lock.RLock()
		height := s.heights.Unfinalised() + 1
		s.lock.RUnlock()

		bs, err := s.shapes.blockState(&state{writers: &s.pending})
		if err != nil {
			return err
		}
		return s.commitPending(ctx, height, bs)
	})
	if err != nil {
		return Status{}, err
	}
	return s.Status(), nil
}

// Rollback discards the pending writes of the canonical view.
func (s *Store) Rollback(context.Context) error {
	return s.exec(func() error {
		for _, o := range s.pending {
			o.Reset()
		}
		s.publishPendingSizes()
		return nil
	})
}

// SetFinalised marks every height up to [height] as finalised.
func (s *Store) SetFinalised(_ context.Context, height uint64) (heights.Summary, error) {
	var summary heights.Summary
	err := s.exec(func() error {
		if err := s.mutable(); err != nil {
			return err
		}

		s.lock.Lock()
		previous := s.heights.Finalised()
		err := s.heights.Finalise(height)
		summary = s.heights.Summary()
		s.lock.Unlock()
		if err != nil || summary.Finalised == previous {
			return err
		}

		var eg errgroup.Group
		for _, id := range AllTrees {
			eg.Go(func() error {
				return s.dbs[id].setFinalised(summary.Finalised)
			})
		}
		if err := eg.Wait(); err != nil {
			return s.desync("finalise", err)
		}
		s.metrics.setState(summary, s.tip())
		return nil
	})
	return summary, err
}

// UnwindTo removes every height above [height]. Forks based above [height]
// are invalidated.
func (s *Store) UnwindTo(ctx context.Context, height uint64) (Status, error) {
	_, span := s.tracer.Start(ctx, "WorldState.UnwindTo", oteltrace.WithAttributes(
		attribute.Int64("height", int64(height)),
	))
	defer span.End()

	start := time.Now()
	err := s.exec(func() error {
		if err := s.mutable(); err != nil {
			return err
		}

		s.lock.Lock()
		tip := s.heights.Unfinalised()
		finalised := s.heights.Finalised()
		if err := s.heights.Unwind(height); err != nil {
			s.lock.Unlock()
			return err
		}
		s.unwinds = append(s.unwinds, height)
		s.invalidateForks(func(base uint64) bool {
			return base > height
		})
		summary := s.heights.Summary()
		s.lock.Unlock()

		var eg errgroup.Group
		for _, id := range AllTrees {
			eg.Go(func() error {
				return s.dbs[id].unwind(height, tip, finalised)
			})
		}
		if err := eg.Wait(); err != nil {
			return s.desync(unwindOp, err)
		}

		s.resetPending()
		s.metrics.setState(summary, s.tip())
		s.log.Info("unwound world state",
			zap.Uint64("from", tip),
			zap.Uint64("to", height),
		)
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	s.metrics.observe(unwindOp, start)
	return s.Status(), nil
}

// RemoveHistoricalBlocksUpTo discards the state of every height below
// [height]. Forks based below [height] are invalidated.
func (s *Store) RemoveHistoricalBlocksUpTo(ctx context.Context, height uint64) (Status, error) {
	_, span := s.tracer.Start(ctx, "WorldState.RemoveHistoricalBlocksUpTo", oteltrace.WithAttributes(
		attribute.Int64("height", int64(height)),
	))
	defer span.End()

	start := time.Now()
	err := s.exec(func() error {
		if err := s.mutable(); err != nil {
			return err
		}

		s.lock.Lock()
		tip := s.heights.Unfinalised()
		oldest := s.heights.Oldest()
		if err := s.heights.Prune(height); err != nil {
			s.lock.Unlock()
			return err
		}
		s.invalidateForks(func(base uint64) bool {
			return base < height
		})
		summary := s.heights.Summary()
		s.lock.Unlock()

		var eg errgroup.Group
		for _, id := range AllTrees {
			eg.Go(func() error {
				return s.dbs[id].prune(height, oldest, tip)
			})
		}
		if err := eg.Wait(); err != nil {
			return s.desync(pruneOp, err)
		}

		s.metrics.setState(summary, s.tip())
		s.log.Info("removed historical blocks",
			zap.Uint64("from", oldest),
			zap.Uint64("to", height),
		)
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	s.metrics.observe(pruneOp, start)
	return s.Status(), nil
}

func (s *Store) tip() BlockState {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.heights.Tip()
}

// Status reports the chain markers and the state of every tree. It never
// fails, so that a store refusing writes can still be monitored.
func (s *Store) Status() Status {
	s.lock.RLock()
	defer s.lock.RUnlock()

	summary := s.heights.Summary()
	tip := s.heights.Tip()
	status := Status{
		Summary:         summary,
		TreesAreSynched: s.synched,
		Trees:           make([]TreeMeta, NumTrees),
	}
	for _, id := range AllTrees {
		status.Trees[id] = TreeMeta{
			Name:                   id.String(),
			Depth:                  s.shapes.trees[id].Depth(),
			Size:                   s.pendingSizes[id].Load(),
			CommittedSize:          tip[id].Size,
			Root:                   tip[id].Root,
			InitialSize:            s.genesis[id].Size,
			InitialRoot:            s.genesis[id].Root,
			OldestHistoricBlock:    summary.Oldest,
			UnfinalisedBlockHeight: summary.Unfinalised,
			FinalisedBlockHeight:   summary.Finalised,
		}
	}
	return status
}

// DBStats reports the storage used by every tree.
func (s *Store) DBStats() []TreeDBStats {
	stats := make([]TreeDBStats, NumTrees)
	for _, id := range AllTrees {
		stats[id] = TreeDBStats{
			Name:  id.String(),
			Stats: s.dbs[id].db.Stats(),
		}
	}
	return stats
}

// Close drains the queue, closes every open fork and releases the
// databases.
func (s *Store) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	forks := s.forks
	s.forks = make(map[*Fork]struct{})
	s.lock.Unlock()

	s.queue.Close()
	for f := range forks {
		f.invalidate()
		f.close()
	}
	return s.closeDBs()
}

func (s *Store) closeDBs() error {
	errs := wrappers.Errs{}
	for _, db := range s.dbs {
		if db != nil {
			errs.Add(db.close())
		}
	}
	return errs.Err
}
