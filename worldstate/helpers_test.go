// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"context"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database/memdb"
	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/x/merkletree"
)

func testParams() Params {
	return Params{
		NullifierTreeHeight:     10,
		NoteHashTreeHeight:      10,
		PublicDataTreeHeight:    10,
		L1ToL2MessageTreeHeight: 8,
		ArchiveTreeHeight:       8,

		MaxNoteHashesPerTx:       4,
		MaxNullifiersPerTx:       4,
		MaxPublicDataWritesPerTx: 4,
		L1ToL2MessagesPerBlock:   4,
		MinTxsPerBlock:           2,

		NullifierSubtreeHeight:  2,
		PublicDataSubtreeHeight: 2,

		InitialNullifierTreeSize:  8,
		InitialPublicDataTreeSize: 8,
	}
}

func testConfig(t *testing.T) Config {
	config := DefaultConfig(t.TempDir())
	config.DBType = memdb.Name
	config.Params = testParams()
	return config
}

func openTestStore(t *testing.T, config Config) *Store {
	require := require.New(t)

	s, err := Open(context.Background(), config, logging.NoLog{}, nil)
	require.NoError(err)
	t.Cleanup(func() {
		require.NoError(s.Close())
	})
	return s
}

// testTxs returns the effects of a block. Blocks built from distinct seeds
// never emit the same nullifier but do overwrite the same public data slots.
func testTxs(seed uint64, numTxs int) []TxEffect {
	txs := make([]TxEffect, numTxs)
	for i := range txs {
		base := 1000*seed + 10*uint64(i) + 100
		txs[i] = TxEffect{
			NoteHashes: []fr.Element{
				merkletree.FromUint64(base),
				merkletree.FromUint64(base + 1),
			},
			Nullifiers: []fr.Element{
				merkletree.FromUint64(base + 2),
				merkletree.FromUint64(base + 3),
				merkletree.FromUint64(base + 4),
			},
			PublicDataWrites: []PublicDataWrite{
				{
					Slot:  merkletree.FromUint64(50 + uint64(i)),
					Value: merkletree.FromUint64(seed),
				},
			},
		}
	}
	return txs
}

func testMessages(seed uint64) []fr.Element {
	return []fr.Element{
		merkletree.FromUint64(7000 + seed),
		merkletree.FromUint64(7100 + seed),
	}
}

// applyEffects writes [txs] and [messages] to [v] the way a block producer
// lays them out.
func applyEffects(t *testing.T, v View, params *Params, txs []TxEffect, messages []fr.Element) {
	require := require.New(t)
	ctx := context.Background()

	padded := make([]TxEffect, max(params.MinTxsPerBlock, len(txs)))
	copy(padded, txs)

	var noteHashes []fr.Element
	for _, tx := range padded {
		noteHashes = append(noteHashes, pad(tx.NoteHashes, params.MaxNoteHashesPerTx)...)

		nullifiers := make([]merkletree.LeafPreimage, params.MaxNullifiersPerTx)
		for i, n := range tx.Nullifiers {
			nullifiers[i].Key = n
		}
		_, err := v.BatchInsert(ctx, NullifierTree, nullifiers, params.NullifierSubtreeHeight)
		require.NoError(err)

		writes := make([]merkletree.LeafPreimage, params.MaxPublicDataWritesPerTx)
		for i, w := range tx.PublicDataWrites {
			writes[i] = merkletree.LeafPreimage{Key: w.Slot, Value: w.Value}
		}
		_, err = v.BatchInsert(ctx, PublicDataTree, writes, params.PublicDataSubtreeHeight)
		require.NoError(err)
	}
	require.NoError(v.AppendLeaves(ctx, NoteHashTree, noteHashes))
	require.NoError(v.AppendLeaves(ctx, L1ToL2MessageTree, pad(messages, params.L1ToL2MessagesPerBlock)))
}

// finishBlock appends the header of block [number] to the archive of [v] and
// returns the resulting block.
func finishBlock(t *testing.T, v View, number uint64, txs []TxEffect) *Block {
	require := require.New(t)
	ctx := context.Background()

	last, err := v.TreeInfo(ctx, ArchiveTree)
	require.NoError(err)
	ref, err := v.StateReference(ctx)
	require.NoError(err)

	header := Header{
		LastArchive: TreeSnapshot{Root: last.Root, Size: last.Size},
		ContentCommitment: ContentCommitment{
			NumTxs: uint64(len(txs)),
		},
		State: ref,
		GlobalVariables: GlobalVariables{
			ChainID:     merkletree.FromUint64(1),
			BlockNumber: number,
			Timestamp:   1_700_000_000 + number,
		},
	}
	require.NoError(v.UpdateArchive(ctx, header))

	archive, err := v.TreeInfo(ctx, ArchiveTree)
	require.NoError(err)
	return &Block{
		Archive: TreeSnapshot{Root: archive.Root, Size: archive.Size},
		Header:  header,
		Body:    Body{TxEffects: txs},
	}
}

// buildBlock builds block [number] on a fork of the tip of [s] so that the
// store has to rebuild it.
func buildBlock(t *testing.T, s *Store, number uint64) *Block {
	require := require.New(t)

	f, err := s.Fork(context.Background(), nil)
	require.NoError(err)
	defer func() {
		require.NoError(f.Close())
	}()

	txs := testTxs(number, 3)
	applyEffects(t, f, &s.config.Params, txs, testMessages(number))
	return finishBlock(t, f, number, txs)
}

// produceBlock builds block [number] on the canonical view of [s] and hands
// it to [s].
func produceBlock(t *testing.T, s *Store, number uint64) *Block {
	require := require.New(t)

	txs := testTxs(number, 3)
	messages := testMessages(number)
	applyEffects(t, s.Latest(), &s.config.Params, txs, messages)
	block := finishBlock(t, s.Latest(), number, txs)
	_, err := s.HandleBlock(context.Background(), block, messages)
	require.NoError(err)
	return block
}

func committedRoots(s *Store) BlockState {
	var bs BlockState
	for i, tree := range s.Status().Trees {
		bs[i] = TreeSnapshot{Root: tree.Root, Size: tree.CommittedSize}
	}
	return bs
}
