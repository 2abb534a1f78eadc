// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"context"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database/pebble"
	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/worldstate/heights"
	"github.com/ava-labs/worldstate/x/merkletree"
)

func TestOpenGenesis(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	status := s.Status()
	require.Equal(heights.Summary{}, status.Summary)
	require.True(status.TreesAreSynched)

	expectedSizes := map[TreeID]uint64{
		NullifierTree:     8,
		NoteHashTree:      0,
		PublicDataTree:    8,
		L1ToL2MessageTree: 0,
		ArchiveTree:       1,
	}
	for id, size := range expectedSizes {
		tree := status.Trees[id]
		require.Equal(id.String(), tree.Name)
		require.Equal(size, tree.Size)
		require.Equal(size, tree.CommittedSize)
		require.Equal(size, tree.InitialSize)
		require.Equal(tree.InitialRoot, tree.Root)
	}

	// The first archive leaf is the hash of the initial header.
	header := s.Latest().InitialHeader()
	leaf, ok, err := s.Latest().Leaf(ctx, ArchiveTree, 0)
	require.NoError(err)
	require.True(ok)
	require.Equal(header.Hash(s.shapes.hasher), leaf)

	// The genesis nullifiers form a linked list of the keys 0..7.
	preimage, ok, err := s.Latest().LeafPreimage(ctx, NullifierTree, 7)
	require.NoError(err)
	require.True(ok)
	require.Equal(merkletree.FromUint64(7), preimage.Key)
	require.Equal(uint64(0), preimage.NextIndex)
}

func TestGenesisIsDeterministic(t *testing.T) {
	require := require.New(t)

	a := openTestStore(t, testConfig(t))
	b := openTestStore(t, testConfig(t))
	require.Equal(committedRoots(a), committedRoots(b))

	keccak := testConfig(t)
	keccak.Hasher = merkletree.Keccak256Hasher.Name()
	c := openTestStore(t, keccak)
	require.NotEqual(committedRoots(a), committedRoots(c))
}

func TestOpenInvalidConfig(t *testing.T) {
	config := testConfig(t)
	config.Hasher = "sha1"
	_, err := Open(context.Background(), config, logging.NoLog{}, nil)
	require.ErrorIs(t, err, merkletree.ErrUnknownHasher)

	config = testConfig(t)
	config.Params.NullifierTreeHeight = 0
	_, err = Open(context.Background(), config, logging.NoLog{}, nil)
	require.ErrorIs(t, err, errInvalidParams)

	config = testConfig(t)
	config.Params.NullifierTreeHeight = 40
	config.Params.NullifierSubtreeHeight = merkletree.MaxSubtreeHeight + 1
	_, err = Open(context.Background(), config, logging.NoLog{}, nil)
	require.ErrorIs(t, err, errInvalidParams)
}

func TestHandleSelfProducedAndRebuiltBlocks(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	producer, err := Open(ctx, testConfig(t), logging.NoLog{}, reg)
	require.NoError(err)
	defer func() {
		require.NoError(producer.Close())
	}()
	follower := openTestStore(t, testConfig(t))

	for number := uint64(1); number <= 3; number++ {
		block := produceBlock(t, producer, number)

		status, err := follower.HandleBlock(ctx, block, testMessages(number))
		require.NoError(err)
		require.Equal(number, status.Summary.Unfinalised)
		require.Equal(committedRoots(producer), committedRoots(follower))
	}
	require.Equal(3.0, testutil.ToFloat64(producer.metrics.selfProduced))
	require.Zero(testutil.ToFloat64(producer.metrics.rebuilt))
	require.Equal(3.0, testutil.ToFloat64(follower.metrics.rebuilt))

	// Every block pads its three txs to four note hashes each.
	ref, err := follower.Latest().StateReference(ctx)
	require.NoError(err)
	require.Equal(uint64(3*3*4), ref.Partial.NoteHashTree.Size)
	require.Equal(uint64(4), follower.Status().Trees[ArchiveTree].Size)
}

func TestHandleBlockReplacesPendingWrites(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	producer := openTestStore(t, testConfig(t))
	follower := openTestStore(t, testConfig(t))

	block := produceBlock(t, producer, 1)

	// Pending writes that do not match the block are discarded.
	require.NoError(follower.Latest().AppendLeaves(ctx, NoteHashTree, []fr.Element{merkletree.FromUint64(1)}))
	_, err := follower.HandleBlock(ctx, block, testMessages(1))
	require.NoError(err)
	require.Equal(committedRoots(producer), committedRoots(follower))
}

func TestHandleBlockNumber(t *testing.T) {
	require := require.New(t)

	producer := openTestStore(t, testConfig(t))
	follower := openTestStore(t, testConfig(t))

	produceBlock(t, producer, 1)
	block := produceBlock(t, producer, 2)

	_, err := follower.HandleBlock(context.Background(), block, testMessages(2))
	require.ErrorIs(err, ErrInvalidBlockNumber)
	require.Zero(follower.Status().Summary.Unfinalised)

	_, err = follower.HandleBlock(context.Background(), nil, testMessages(1))
	require.ErrorIs(err, errNilBlock)
	require.Zero(follower.Status().Summary.Unfinalised)
}

func TestHandleBlockTooManyEffects(t *testing.T) {
	require := require.New(t)

	s := openTestStore(t, testConfig(t))
	block := buildBlock(t, s, 1)
	block.Body.TxEffects[0].Nullifiers = make([]fr.Element, 5)

	_, err := s.HandleBlock(context.Background(), block, testMessages(1))
	require.ErrorIs(err, errTooManyEffects)

	// The store is still usable.
	block = buildBlock(t, s, 1)
	_, err = s.HandleBlock(context.Background(), block, testMessages(1))
	require.NoError(err)
}

func TestStateMismatchIsFatal(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	block := buildBlock(t, s, 1)
	tampered := *block
	tampered.Header.State.Partial.NoteHashTree.Size++

	_, err := s.HandleBlock(ctx, &tampered, testMessages(1))
	var mismatch *StateMismatchError
	require.ErrorAs(err, &mismatch)
	require.Equal(NoteHashTree, mismatch.Tree)
	require.Equal(tampered.Header.State.Partial.NoteHashTree, mismatch.Expected)
	require.Equal(block.Header.State.Partial.NoteHashTree, mismatch.Actual)

	// Nothing was committed and every later write is refused.
	_, err = s.HandleBlock(ctx, block, testMessages(1))
	require.ErrorIs(err, ErrStateMismatch)
	_, err = s.SetFinalised(ctx, 0)
	require.ErrorIs(err, ErrStateMismatch)
	require.ErrorIs(s.Latest().AppendLeaves(ctx, NoteHashTree, []fr.Element{merkletree.FromUint64(1)}), ErrStateMismatch)

	// Reads keep working and the latch is reported.
	status := s.Status()
	require.Zero(status.Summary.Unfinalised)
	require.False(status.TreesAreSynched)
	_, err = s.Latest().TreeInfo(ctx, NoteHashTree)
	require.NoError(err)
}

func TestFullDatabaseDesyncsTrees(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	config := testConfig(t)
	config.MapSize = 32 * 1024
	s := openTestStore(t, config)

	var err error
	for number := uint64(1); number <= 64 && err == nil; number++ {
		block := buildBlock(t, s, number)
		_, err = s.HandleBlock(ctx, block, testMessages(number))
	}
	require.ErrorIs(err, ErrTreesOutOfSync)

	status := s.Status()
	require.False(status.TreesAreSynched)

	_, err = s.UnwindTo(ctx, 0)
	require.ErrorIs(err, ErrTreesOutOfSync)

	var full bool
	for _, stats := range s.DBStats() {
		require.Equal(config.MapSize, stats.MapSize)
		full = full || stats.UsedSize > config.MapSize/2
	}
	require.True(full)
}

func TestCanonicalCommitAndRollback(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	latest := s.Latest()

	// Committing nothing does not create a height.
	status, err := s.Commit(ctx)
	require.NoError(err)
	require.Zero(status.Summary.Unfinalised)

	leaves := []fr.Element{merkletree.FromUint64(1), merkletree.FromUint64(2)}
	require.NoError(latest.AppendLeaves(ctx, NoteHashTree, leaves))
	tree := s.Status().Trees[NoteHashTree]
	require.Equal(uint64(2), tree.Size)
	require.Zero(tree.CommittedSize)

	require.NoError(s.Rollback(ctx))
	tree = s.Status().Trees[NoteHashTree]
	require.Zero(tree.Size)

	require.NoError(latest.AppendLeaves(ctx, NoteHashTree, leaves))
	status, err = s.Commit(ctx)
	require.NoError(err)
	require.Equal(uint64(1), status.Summary.Unfinalised)
	require.Equal(uint64(2), status.Trees[NoteHashTree].CommittedSize)

	committed, err := s.Committed()
	require.NoError(err)
	index, ok, err := committed.FindLeafIndex(ctx, NoteHashTree, merkletree.FromUint64(2))
	require.NoError(err)
	require.True(ok)
	require.Equal(uint64(1), index)

	writable, ok := committed.(View)
	require.True(ok)
	require.ErrorIs(writable.AppendLeaves(ctx, NoteHashTree, leaves), ErrUnsupportedOperation)
}

func TestUpdateArchiveChecksHeader(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	latest := s.Latest()

	ref, err := latest.StateReference(ctx)
	require.NoError(err)
	require.NoError(latest.AppendLeaves(ctx, NoteHashTree, []fr.Element{merkletree.FromUint64(1)}))

	err = latest.UpdateArchive(ctx, Header{State: ref})
	require.ErrorIs(err, ErrHeaderStateMismatch)
}

func TestTreeKindChecks(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	latest := s.Latest()

	_, _, err := latest.Leaf(ctx, NullifierTree, 0)
	require.ErrorIs(err, ErrNotAppendOnlyTree)
	_, _, err = latest.LeafPreimage(ctx, NoteHashTree, 0)
	require.ErrorIs(err, ErrNotIndexedTree)
	_, err = latest.TreeInfo(ctx, TreeID(NumTrees))
	require.ErrorIs(err, ErrUnknownTree)

	low, err := latest.FindLowLeaf(ctx, NullifierTree, merkletree.FromUint64(100))
	require.NoError(err)
	require.Equal(LowLeaf{Index: 7}, low)

	low, err = latest.FindLowLeaf(ctx, NullifierTree, merkletree.FromUint64(3))
	require.NoError(err)
	require.Equal(LowLeaf{Index: 3, AlreadyPresent: true}, low)
}

// TestChainLifecycle builds 16 blocks, then finalises, prunes and unwinds
// them while forks are open.
func TestChainLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	var (
		blocks = make([]*Block, 17)
		states = make([]BlockState, 17)
	)
	states[0] = committedRoots(s)
	for number := uint64(1); number <= 16; number++ {
		blocks[number] = produceBlock(t, s, number)
		states[number] = committedRoots(s)
	}

	summary, err := s.SetFinalised(ctx, 8)
	require.NoError(err)
	require.Equal(heights.Summary{Unfinalised: 16, Finalised: 8}, summary)

	_, err = s.SetFinalised(ctx, 17)
	require.ErrorIs(err, heights.ErrHeightNotFound)

	status, err := s.RemoveHistoricalBlocksUpTo(ctx, 9)
	require.NoError(err)
	require.Equal(heights.Summary{Unfinalised: 16, Finalised: 8, Oldest: 9}, status.Summary)

	_, err = s.RemoveHistoricalBlocksUpTo(ctx, 5)
	require.ErrorIs(err, heights.ErrAlreadyPruned)

	_, err = s.Fork(ctx, ptr(uint64(8)))
	require.ErrorIs(err, heights.ErrHeightNotRetained)

	fork9, err := s.Fork(ctx, ptr(uint64(9)))
	require.NoError(err)
	defer fork9.Close()
	fork12, err := s.Fork(ctx, ptr(uint64(12)))
	require.NoError(err)
	defer fork12.Close()
	snapshot12, err := s.Snapshot(12)
	require.NoError(err)

	info, err := fork12.TreeInfo(ctx, NoteHashTree)
	require.NoError(err)
	require.Equal(states[12][NoteHashTree].Root, info.Root)

	status, err = s.UnwindTo(ctx, 10)
	require.NoError(err)
	require.Equal(heights.Summary{Unfinalised: 10, Finalised: 8, Oldest: 9}, status.Summary)
	require.Equal(states[10], committedRoots(s))

	_, err = fork12.TreeInfo(ctx, NoteHashTree)
	require.ErrorIs(err, ErrForkNotFound)
	_, err = snapshot12.TreeInfo(ctx, NoteHashTree)
	require.ErrorIs(err, heights.ErrHeightNotRetained)

	info, err = fork9.TreeInfo(ctx, ArchiveTree)
	require.NoError(err)
	require.Equal(states[9][ArchiveTree].Root, info.Root)

	_, err = s.UnwindTo(ctx, 11)
	require.ErrorIs(err, heights.ErrBlockNotFound)

	// Replaying the unwound blocks reproduces the same state.
	for number := uint64(11); number <= 16; number++ {
		_, err := s.HandleBlock(ctx, blocks[number], testMessages(number))
		require.NoError(err)
		require.Equal(states[number], committedRoots(s))
	}

	// The new height 12 is not the one the snapshot was taken at.
	_, err = snapshot12.TreeInfo(ctx, NoteHashTree)
	require.ErrorIs(err, heights.ErrHeightNotRetained)

	// Pruning past the finalised height is allowed.
	status, err = s.RemoveHistoricalBlocksUpTo(ctx, 12)
	require.NoError(err)
	require.Equal(heights.Summary{Unfinalised: 16, Finalised: 8, Oldest: 12}, status.Summary)

	_, err = fork9.TreeInfo(ctx, ArchiveTree)
	require.ErrorIs(err, ErrForkNotFound)

	for number := uint64(12); number <= 16; number++ {
		snapshot, err := s.Snapshot(number)
		require.NoError(err)
		info, err := snapshot.TreeInfo(ctx, NullifierTree)
		require.NoError(err)
		require.Equal(states[number][NullifierTree].Root, info.Root)
		require.Equal(states[number][NullifierTree].Size, info.Size)
	}
}

func TestUnwindThenReplayIsDeterministic(t *testing.T) {
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)
	properties.Property("replaying unwound blocks reproduces every height", prop.ForAll(
		func(numBlocks int, offset int) bool {
			target := uint64(offset % numBlocks)

			s, err := Open(ctx, testConfig(t), logging.NoLog{}, nil)
			if err != nil {
				return false
			}
			defer func() {
				_ = s.Close()
			}()

			blocks := make([]*Block, numBlocks+1)
			states := make([]BlockState, numBlocks+1)
			states[0] = committedRoots(s)
			for number := uint64(1); number <= uint64(numBlocks); number++ {
				blocks[number] = produceBlock(t, s, number)
				states[number] = committedRoots(s)
			}

			status, err := s.UnwindTo(ctx, target)
			if err != nil || status.Summary.Unfinalised != target || committedRoots(s) != states[target] {
				return false
			}
			for number := target + 1; number <= uint64(numBlocks); number++ {
				if _, err := s.HandleBlock(ctx, blocks[number], testMessages(number)); err != nil {
					return false
				}
				if committedRoots(s) != states[number] {
					return false
				}
			}
			return s.Status().TreesAreSynched
		},
		gen.IntRange(1, 6),
		gen.IntRange(0, 100),
	))
	properties.TestingRun(t)
}

func TestSnapshotReadsHistoricalState(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	var states []BlockState
	for number := uint64(1); number <= 3; number++ {
		produceBlock(t, s, number)
		states = append(states, committedRoots(s))
	}

	snapshot, err := s.Snapshot(1)
	require.NoError(err)
	for _, id := range AllTrees {
		info, err := snapshot.TreeInfo(ctx, id)
		require.NoError(err)
		require.Equal(states[0][id].Root, info.Root)
		require.Equal(states[0][id].Size, info.Size)
	}

	// A nullifier of block 2 is not visible at height 1.
	nullifier := testTxs(2, 3)[0].Nullifiers[0]
	_, ok, err := snapshot.FindLeafIndex(ctx, NullifierTree, nullifier)
	require.NoError(err)
	require.False(ok)
	latest, err := s.Committed()
	require.NoError(err)
	_, ok, err = latest.FindLeafIndex(ctx, NullifierTree, nullifier)
	require.NoError(err)
	require.True(ok)

	// Public data slots were overwritten by later blocks.
	slot := testTxs(1, 3)[0].PublicDataWrites[0].Slot
	index, ok, err := snapshot.FindLeafIndex(ctx, PublicDataTree, slot)
	require.NoError(err)
	require.True(ok)
	preimage, ok, err := snapshot.LeafPreimage(ctx, PublicDataTree, index)
	require.NoError(err)
	require.True(ok)
	require.Equal(merkletree.FromUint64(1), preimage.Value)
	preimage, ok, err = latest.LeafPreimage(ctx, PublicDataTree, index)
	require.NoError(err)
	require.True(ok)
	require.Equal(merkletree.FromUint64(3), preimage.Value)

	// Sibling paths of a snapshot prove against its root.
	path, err := snapshot.SiblingPath(ctx, NoteHashTree, 0)
	require.NoError(err)
	leaf, ok, err := snapshot.Leaf(ctx, NoteHashTree, 0)
	require.NoError(err)
	require.True(ok)
	require.Equal(states[0][NoteHashTree].Root, s.shapes.trees[NoteHashTree].ComputeRoot(leaf, 0, path))

	_, err = s.Snapshot(4)
	require.ErrorIs(err, heights.ErrHeightNotRetained)

	_, err = s.RemoveHistoricalBlocksUpTo(ctx, 2)
	require.NoError(err)
	_, err = snapshot.TreeInfo(ctx, NoteHashTree)
	require.ErrorIs(err, heights.ErrHeightNotRetained)
}

func TestForkIsolation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	produceBlock(t, s, 1)
	produceBlock(t, s, 2)
	before := committedRoots(s)

	f, err := s.Fork(ctx, nil)
	require.NoError(err)
	require.Equal(uint64(2), f.BaseHeight())

	leaves := []fr.Element{merkletree.FromUint64(1), merkletree.FromUint64(2)}
	require.NoError(f.AppendLeaves(ctx, NoteHashTree, leaves))
	require.NoError(f.Commit(ctx))
	require.NoError(f.AppendLeaves(ctx, NoteHashTree, leaves))

	info, err := f.TreeInfo(ctx, NoteHashTree)
	require.NoError(err)
	require.Equal(before[NoteHashTree].Size+4, info.Size)

	require.NoError(f.Rollback(ctx))
	info, err = f.TreeInfo(ctx, NoteHashTree)
	require.NoError(err)
	require.Equal(before[NoteHashTree].Size+2, info.Size)

	// The canonical state never sees fork writes.
	require.Equal(before, committedRoots(s))
	latest, err := s.Latest().TreeInfo(ctx, NoteHashTree)
	require.NoError(err)
	require.Equal(before[NoteHashTree], TreeSnapshot{Root: latest.Root, Size: latest.Size})

	// Blocks handled after the fork was created are not visible to it.
	produceBlock(t, s, 3)
	info, err = f.TreeInfo(ctx, NoteHashTree)
	require.NoError(err)
	require.Equal(before[NoteHashTree].Size+2, info.Size)

	// A fork of an older height sees that height.
	old, err := s.Fork(ctx, ptr(uint64(1)))
	require.NoError(err)
	defer old.Close()
	ref, err := old.StateReference(ctx)
	require.NoError(err)
	snapshot, err := s.Snapshot(1)
	require.NoError(err)
	expected, err := snapshot.StateReference(ctx)
	require.NoError(err)
	require.Equal(expected, ref)

	require.NoError(f.Close())
	_, err = f.TreeInfo(ctx, NoteHashTree)
	require.ErrorIs(err, ErrForkNotFound)
	require.ErrorIs(f.Commit(ctx), ErrForkNotFound)
	require.NoError(f.Close())
}

func TestForksAreIndependent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := openTestStore(t, testConfig(t))
	a, err := s.Fork(ctx, nil)
	require.NoError(err)
	defer a.Close()
	b, err := s.Fork(ctx, nil)
	require.NoError(err)
	defer b.Close()

	key := []merkletree.LeafPreimage{{Key: merkletree.FromUint64(500)}}
	_, err = a.SequentialInsert(ctx, NullifierTree, key)
	require.NoError(err)
	_, err = b.SequentialInsert(ctx, NullifierTree, key)
	require.NoError(err)

	_, err = a.SequentialInsert(ctx, NullifierTree, key)
	require.ErrorIs(err, merkletree.ErrKeyExists)

	infoA, err := a.TreeInfo(ctx, NullifierTree)
	require.NoError(err)
	infoB, err := b.TreeInfo(ctx, NullifierTree)
	require.NoError(err)
	require.Equal(infoA, infoB)
	require.Equal(uint64(9), infoA.Size)
}

func TestReopen(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	config := DefaultConfig(t.TempDir())
	config.DBType = pebble.Name
	config.Params = testParams()
	config.RollupAddress = common.HexToAddress("0x01")

	s, err := Open(ctx, config, logging.NoLog{}, nil)
	require.NoError(err)
	var blocks []*Block
	for number := uint64(1); number <= 4; number++ {
		blocks = append(blocks, produceBlock(t, s, number))
	}
	_, err = s.SetFinalised(ctx, 3)
	require.NoError(err)
	_, err = s.RemoveHistoricalBlocksUpTo(ctx, 2)
	require.NoError(err)
	expected := s.Status()
	require.NoError(s.Close())

	_, err = s.HandleBlock(ctx, blocks[0], nil)
	require.ErrorIs(err, ErrClosed)
	_, err = s.Snapshot(3)
	require.ErrorIs(err, ErrClosed)

	s, err = Open(ctx, config, logging.NoLog{}, nil)
	require.NoError(err)
	require.Equal(expected, s.Status())

	snapshot, err := s.Snapshot(2)
	require.NoError(err)
	ref, err := snapshot.StateReference(ctx)
	require.NoError(err)
	require.Equal(blocks[1].Header.State, ref)

	produceBlock(t, s, 5)
	require.NoError(s.Close())

	// A different rollup wipes the state.
	config.RollupAddress = common.HexToAddress("0x02")
	s, err = Open(ctx, config, logging.NoLog{}, nil)
	require.NoError(err)
	require.Equal(heights.Summary{}, s.Status().Summary)
	require.NoError(s.Close())
}

func TestCloseInvalidatesForks(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, err := Open(ctx, testConfig(t), logging.NoLog{}, nil)
	require.NoError(err)
	f, err := s.Fork(ctx, nil)
	require.NoError(err)

	require.NoError(s.Close())
	require.NoError(s.Close())

	_, err = f.TreeInfo(ctx, NoteHashTree)
	require.ErrorIs(err, ErrForkNotFound)
	require.NoError(f.Close())

	_, err = s.Fork(ctx, nil)
	require.ErrorIs(err, ErrClosed)
}

func ptr[T any](v T) *T {
	return &v
}
