// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ava-labs/worldstate/x/merkletree"
)

// TreeSnapshot is the root and size of a tree.
type TreeSnapshot struct {
	Root fr.Element `json:"root"`
	Size uint64     `json:"size"`
}

func (s TreeSnapshot) fields() []fr.Element {
	return []fr.Element{s.Root, merkletree.FromUint64(s.Size)}
}

// PartialStateReference is the state of the trees written by txs.
type PartialStateReference struct {
	NoteHashTree   TreeSnapshot `json:"noteHashTree"`
	NullifierTree  TreeSnapshot `json:"nullifierTree"`
	PublicDataTree TreeSnapshot `json:"publicDataTree"`
}

// StateReference is the state of every tree but the archive.
type StateReference struct {
	L1ToL2MessageTree TreeSnapshot          `json:"l1ToL2MessageTree"`
	Partial           PartialStateReference `json:"partial"`
}

// Tree returns the snapshot of [id]. The archive is not part of a state
// reference.
func (s *StateReference) Tree(id TreeID) (TreeSnapshot, bool) {
	switch id {
	case NullifierTree:
		return s.Partial.NullifierTree, true
	case NoteHashTree:
		return s.Partial.NoteHashTree, true
	case PublicDataTree:
		return s.Partial.PublicDataTree, true
	case L1ToL2MessageTree:
		return s.L1ToL2MessageTree, true
	default:
		return TreeSnapshot{}, false
	}
}

func (s *StateReference) fields() []fr.Element {
	fields := s.L1ToL2MessageTree.fields()
	fields = append(fields, s.Partial.NoteHashTree.fields()...)
	fields = append(fields, s.Partial.NullifierTree.fields()...)
	return append(fields, s.Partial.PublicDataTree.fields()...)
}

// BlockState is the snapshot of every tree at a height.
type BlockState [NumTrees]TreeSnapshot

func (s *BlockState) StateReference() StateReference {
	return StateReference{
		L1ToL2MessageTree: s[L1ToL2MessageTree],
		Partial: PartialStateReference{
			NoteHashTree:   s[NoteHashTree],
			NullifierTree:  s[NullifierTree],
			PublicDataTree: s[PublicDataTree],
		},
	}
}

type ContentCommitment struct {
	NumTxs         uint64     `json:"numTxs"`
	TxsEffectsHash fr.Element `json:"txsEffectsHash"`
	InHash         fr.Element `json:"inHash"`
	OutHash        fr.Element `json:"outHash"`
}

type GasFees struct {
	FeePerDAGas fr.Element `json:"feePerDaGas"`
	FeePerL2Gas fr.Element `json:"feePerL2Gas"`
}

type GlobalVariables struct {
	ChainID      fr.Element     `json:"chainId"`
	Version      fr.Element     `json:"version"`
	BlockNumber  uint64         `json:"blockNumber"`
	SlotNumber   uint64         `json:"slotNumber"`
	Timestamp    uint64         `json:"timestamp"`
	Coinbase     common.Address `json:"coinbase"`
	FeeRecipient fr.Element     `json:"feeRecipient"`
	GasFees      GasFees        `json:"gasFees"`
}

func (g *GlobalVariables) fields() []fr.Element {
	return []fr.Element{
		g.ChainID,
		g.Version,
		merkletree.FromUint64(g.BlockNumber),
		merkletree.FromUint64(g.SlotNumber),
		merkletree.FromUint64(g.Timestamp),
		merkletree.FromBytes(g.Coinbase[:]),
		g.FeeRecipient,
		g.GasFees.FeePerDAGas,
		g.GasFees.FeePerL2Gas,
	}
}

type Header struct {
	LastArchive       TreeSnapshot      `json:"lastArchive"`
	ContentCommitment ContentCommitment `json:"contentCommitment"`
	State             StateReference    `json:"state"`
	GlobalVariables   GlobalVariables   `json:"globalVariables"`
	TotalFees         fr.Element        `json:"totalFees"`
}

// Fields returns the header flattened into field elements in the order they
// are hashed.
func (h *Header) Fields() []fr.Element {
	fields := h.LastArchive.fields()
	fields = append(fields,
		merkletree.FromUint64(h.ContentCommitment.NumTxs),
		h.ContentCommitment.TxsEffectsHash,
		h.ContentCommitment.InHash,
		h.ContentCommitment.OutHash,
	)
	fields = append(fields, h.State.fields()...)
	fields = append(fields, h.GlobalVariables.fields()...)
	return append(fields, h.TotalFees)
}

// Hash returns the leaf appended to the archive for this header.
func (h *Header) Hash(hasher merkletree.Hasher) fr.Element {
	return hasher.HashInputs(h.Fields()...)
}

// PublicDataWrite sets the value of a public data slot.
type PublicDataWrite struct {
	Slot  fr.Element `json:"slot"`
	Value fr.Element `json:"value"`
}

// TxEffect holds the tree writes of one tx.
type TxEffect struct {
	NoteHashes       []fr.Element      `json:"noteHashes"`
	Nullifiers       []fr.Element      `json:"nullifiers"`
	PublicDataWrites []PublicDataWrite `json:"publicDataWrites"`
}

type Body struct {
	TxEffects []TxEffect `json:"txEffects"`
}

type Block struct {
	// Archive is the archive tree after this block's header was appended.
	Archive TreeSnapshot `json:"archive"`
	Header  Header       `json:"header"`
	Body    Body         `json:"body"`
}

func (b *Block) Number() uint64 {
	return b.Header.GlobalVariables.BlockNumber
}
