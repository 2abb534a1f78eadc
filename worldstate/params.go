// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"errors"
	"fmt"

	"github.com/ava-labs/worldstate/x/merkletree"
)

// TreeID identifies one of the trees of the world state. The order matches
// the order in which the trees are committed.
type TreeID uint8

const (
	NullifierTree TreeID = iota
	NoteHashTree
	PublicDataTree
	L1ToL2MessageTree
	ArchiveTree

	NumTrees = 5
)

var (
	AllTrees = [NumTrees]TreeID{
		NullifierTree,
		NoteHashTree,
		PublicDataTree,
		L1ToL2MessageTree,
		ArchiveTree,
	}

	treeNames = [NumTrees]string{
		"nullifier_tree",
		"note_hash_tree",
		"public_data_tree",
		"l1_to_l2_message_tree",
		"archive_tree",
	}

	errInvalidParams = errors.New("invalid params")
)

func (id TreeID) String() string {
	if int(id) < NumTrees {
		return treeNames[id]
	}
	return fmt.Sprintf("unknown_tree(%d)", uint8(id))
}

// Indexed returns true for trees whose leaves form a sorted linked list.
func (id TreeID) Indexed() bool {
	return id == NullifierTree || id == PublicDataTree
}

func (id TreeID) leafKind() merkletree.LeafKind {
	if id == NullifierTree {
		return merkletree.NullifierLeaf
	}
	return merkletree.PublicDataLeaf
}

func (id TreeID) verify() error {
	if int(id) >= NumTrees {
		return fmt.Errorf("%w: %d", ErrUnknownTree, uint8(id))
	}
	return nil
}

// Params holds the protocol constants that determine the shape of the trees
// and of the blocks applied to them.
type Params struct {
	NullifierTreeHeight     uint8 `json:"nullifierTreeHeight"`
	NoteHashTreeHeight      uint8 `json:"noteHashTreeHeight"`
	PublicDataTreeHeight    uint8 `json:"publicDataTreeHeight"`
	L1ToL2MessageTreeHeight uint8 `json:"l1ToL2MessageTreeHeight"`
	ArchiveTreeHeight       uint8 `json:"archiveTreeHeight"`

	MaxNoteHashesPerTx       int `json:"maxNoteHashesPerTx"`
	MaxNullifiersPerTx       int `json:"maxNullifiersPerTx"`
	MaxPublicDataWritesPerTx int `json:"maxPublicDataWritesPerTx"`
	L1ToL2MessagesPerBlock   int `json:"l1ToL2MessagesPerBlock"`
	// MinTxsPerBlock is the number of tx slots of a block with fewer txs.
	MinTxsPerBlock int `json:"minTxsPerBlock"`

	NullifierSubtreeHeight  uint8 `json:"nullifierSubtreeHeight"`
	PublicDataSubtreeHeight uint8 `json:"publicDataSubtreeHeight"`

	InitialNullifierTreeSize  uint64 `json:"initialNullifierTreeSize"`
	InitialPublicDataTreeSize uint64 `json:"initialPublicDataTreeSize"`
}

func DefaultParams() Params {
	return Params{
		NullifierTreeHeight:     40,
		NoteHashTreeHeight:      40,
		PublicDataTreeHeight:    40,
		L1ToL2MessageTreeHeight: 39,
		ArchiveTreeHeight:       29,

		MaxNoteHashesPerTx:       64,
		MaxNullifiersPerTx:       64,
		MaxPublicDataWritesPerTx: 64,
		L1ToL2MessagesPerBlock:   16,
		MinTxsPerBlock:           2,

		NullifierSubtreeHeight:  6,
		PublicDataSubtreeHeight: 6,

		InitialNullifierTreeSize:  128,
		InitialPublicDataTreeSize: 128,
	}
}

// Height returns the depth of the tree [id].
func (p *Params) Height(id TreeID) uint8 {
	switch id {
	case NullifierTree:
		return p.NullifierTreeHeight
	case NoteHashTree:
		return p.NoteHashTreeHeight
	case PublicDataTree:
		return p.PublicDataTreeHeight
	case L1ToL2MessageTree:
		return p.L1ToL2MessageTreeHeight
	default:
		return p.ArchiveTreeHeight
	}
}

func (p *Params) initialSize(id TreeID) uint64 {
	switch id {
	case NullifierTree:
		return p.InitialNullifierTreeSize
	case PublicDataTree:
		return p.InitialPublicDataTreeSize
	default:
		return 0
	}
}

func (p *Params) subtreeHeight(id TreeID) uint8 {
	if id == NullifierTree {
		return p.NullifierSubtreeHeight
	}
	return p.PublicDataSubtreeHeight
}

// Verify returns an error if the params can not describe a valid world
// state.
func (p *Params) Verify() error {
	for _, id := range AllTrees {
		if h := p.Height(id); h == 0 || h > merkletree.MaxDepth {
			return fmt.Errorf("%w: %s height %d", errInvalidParams, id, h)
		}
	}
	switch {
	case p.MaxNoteHashesPerTx < 0, p.MaxNullifiersPerTx < 0, p.MaxPublicDataWritesPerTx < 0, p.L1ToL2MessagesPerBlock < 0:
		return fmt.Errorf("%w: negative maximum", errInvalidParams)
	case p.MaxNullifiersPerTx > 1<<p.NullifierSubtreeHeight:
		return fmt.Errorf("%w: %d nullifiers do not fit a subtree of height %d",
			errInvalidParams,
			p.MaxNullifiersPerTx,
			p.NullifierSubtreeHeight,
		)
	case p.MaxPublicDataWritesPerTx > 1<<p.PublicDataSubtreeHeight:
		return fmt.Errorf("%w: %d public data writes do not fit a subtree of height %d",
			errInvalidParams,
			p.MaxPublicDataWritesPerTx,
			p.PublicDataSubtreeHeight,
		)
	case p.NullifierSubtreeHeight > p.NullifierTreeHeight, p.PublicDataSubtreeHeight > p.PublicDataTreeHeight:
		return fmt.Errorf("%w: subtree taller than its tree", errInvalidParams)
	case p.NullifierSubtreeHeight > merkletree.MaxSubtreeHeight, p.PublicDataSubtreeHeight > merkletree.MaxSubtreeHeight:
		return fmt.Errorf("%w: subtree height above %d", errInvalidParams, merkletree.MaxSubtreeHeight)
	case p.InitialNullifierTreeSize == 0, p.InitialPublicDataTreeSize == 0:
		return fmt.Errorf("%w: indexed trees need at least one genesis leaf", errInvalidParams)
	case p.MinTxsPerBlock < 0:
		return fmt.Errorf("%w: negative tx slot count", errInvalidParams)
	}
	return nil
}
