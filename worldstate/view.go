// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ava-labs/worldstate/x/merkletree"
)

var (
	_ View     = (*view)(nil)
	_ ReadView = (*view)(nil)
)

// TreeInfo describes a tree as seen by a view.
type TreeInfo struct {
	ID    TreeID     `json:"treeId"`
	Root  fr.Element `json:"root"`
	Size  uint64     `json:"size"`
	Depth uint8      `json:"depth"`
}

// LowLeaf locates the predecessor of a key in an indexed tree.
type LowLeaf struct {
	Index          uint64 `json:"index"`
	AlreadyPresent bool   `json:"alreadyPresent"`
}

// ReadView reads the trees of the world state.
type ReadView interface {
	TreeInfo(ctx context.Context, id TreeID) (TreeInfo, error)
	// StateReference returns the state of every tree but the archive.
	StateReference(ctx context.Context) (StateReference, error)
	// InitialHeader returns the header whose hash is the first archive leaf.
	InitialHeader() Header

	SiblingPath(ctx context.Context, id TreeID, index uint64) ([]fr.Element, error)
	// Leaf returns the leaf of an append-only tree.
	Leaf(ctx context.Context, id TreeID, index uint64) (fr.Element, bool, error)
	// LeafPreimage returns the leaf of an indexed tree.
	LeafPreimage(ctx context.Context, id TreeID, index uint64) (merkletree.LeafPreimage, bool, error)
	// FindLeafIndex returns the first index holding [value] in an append-only
	// tree or the index holding the key [value] in an indexed tree.
	FindLeafIndex(ctx context.Context, id TreeID, value fr.Element) (uint64, bool, error)
	FindLowLeaf(ctx context.Context, id TreeID, key fr.Element) (LowLeaf, error)
}

// View reads and writes the trees of the world state. Writes stay pending
// until the owner of the view commits them.
type View interface {
	ReadView

	AppendLeaves(ctx context.Context, id TreeID, leaves []fr.Element) error
	BatchInsert(ctx context.Context, id TreeID, leaves []merkletree.LeafPreimage, subtreeHeight uint8) (*merkletree.BatchInsertion, error)
	SequentialInsert(ctx context.Context, id TreeID, leaves []merkletree.LeafPreimage) (*merkletree.SequentialInsertion, error)
	// UpdateArchive appends the hash of [header] to the archive. The state of
	// the view must match the state in the header.
	UpdateArchive(ctx context.Context, header Header) error
}

// shapes holds the shape of every tree.
type shapes struct {
	hasher  merkletree.Hasher
	trees   [NumTrees]*merkletree.Tree
	indexed [NumTrees]*merkletree.IndexedTree
}

func newShapes(params *Params, hasher merkletree.Hasher) (*shapes, error) {
	s := &shapes{hasher: hasher}
	for _, id := range AllTrees {
		if id.Indexed() {
			tree, err := merkletree.NewIndexedTree(params.Height(id), hasher, id.leafKind())
			if err != nil {
				return nil, err
			}
			s.indexed[id] = tree
			s.trees[id] = tree.Tree()
			continue
		}
		tree, err := merkletree.NewTree(params.Height(id), hasher)
		if err != nil {
			return nil, err
		}
		s.trees[id] = tree
	}
	return s, nil
}

func (s *shapes) indexedTree(id TreeID) (*merkletree.IndexedTree, error) {
	if err := id.verify(); err != nil {
		return nil, err
	}
	if !id.Indexed() {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexedTree, id)
	}
	return s.indexed[id], nil
}

func (s *shapes) appendOnlyTree(id TreeID) (*merkletree.Tree, error) {
	if err := id.verify(); err != nil {
		return nil, err
	}
	if id.Indexed() {
		return nil, fmt.Errorf("%w: %s", ErrNotAppendOnlyTree, id)
	}
	return s.trees[id], nil
}

// snapshot returns the root and size of [id] read through [r].
func (s *shapes) snapshot(id TreeID, r merkletree.Reader) (TreeSnapshot, error) {
	root, err := s.trees[id].Root(r)
	if err != nil {
		return TreeSnapshot{}, err
	}
	return TreeSnapshot{
		Root: root,
		Size: r.Size(),
	}, nil
}

func (s *shapes) blockState(st *state) (BlockState, error) {
	var bs BlockState
	for _, id := range AllTrees {
		snapshot, err := s.snapshot(id, st.reader(id))
		if err != nil {
			return BlockState{}, err
		}
		bs[id] = snapshot
	}
	return bs, nil
}

func (s *shapes) stateReference(st *state) (StateReference, error) {
	bs, err := s.blockState(st)
	if err != nil {
		return StateReference{}, err
	}
	return bs.StateReference(), nil
}

// state is the set of trees a view operates on.
type state struct {
	readers [NumTrees]merkletree.Reader
	// writers is nil for read-only views.
	writers *[NumTrees]*merkletree.Overlay
}

func (st *state) reader(id TreeID) merkletree.Reader {
	if st.writers != nil {
		return st.writers[id]
	}
	return st.readers[id]
}

func (st *state) writer(id TreeID) (*merkletree.Overlay, error) {
	if st.writers == nil {
		return nil, fmt.Errorf("%w: view is read-only", ErrUnsupportedOperation)
	}
	return st.writers[id], nil
}

// runFunc executes [f] against the state of a view. [write] is true if [f]
// modifies the state.
type runFunc func(ctx context.Context, write bool, f func(*state) error) error

// view implements View on top of a runFunc, which decides how operations are
// scheduled and whether the view is still usable.
type view struct {
	shapes        *shapes
	initialHeader Header
	run           runFunc
}

func (v *view) InitialHeader() Header {
	return v.initialHeader
}

func (v *view) TreeInfo(ctx context.Context, id TreeID) (TreeInfo, error) {
	if err := id.verify(); err != nil {
		return TreeInfo{}, err
	}
	var info TreeInfo
	err := v.run(ctx, false, func(st *state) error {
		snapshot, err := v.shapes.snapshot(id, st.reader(id))
		if err != nil {
			return err
		}
		info = TreeInfo{
			ID:    id,
			Root:  snapshot.Root,
			Size:  snapshot.Size,
			Depth: v.shapes.trees[id].Depth(),
		}
		return nil
	})
	return info, err
}

func (v *view) StateReference(ctx context.Context) (StateReference, error) {
	var ref StateReference
	err := v.run(ctx, false, func(st *state) error {
		var err error
		ref, err = v.shapes.stateReference(st)
		return err
	})
	return ref, err
}

func (v *view) SiblingPath(ctx context.Context, id TreeID, index uint64) ([]fr.Element, error) {
	if err := id.verify(); err != nil {
		return nil, err
	}
	var path []fr.Element
	err := v.run(ctx, false, func(st *state) error {
		var err error
		path, err = v.shapes.trees[id].SiblingPath(st.reader(id), index)
		return err
	})
	return path, err
}

func (v *view) Leaf(ctx context.Context, id TreeID, index uint64) (fr.Element, bool, error) {
	tree, err := v.shapes.appendOnlyTree(id)
	if err != nil {
		return fr.Element{}, false, err
	}
	var (
		leaf  fr.Element
		found bool
	)
	err = v.run(ctx, false, func(st *state) error {
		var err error
		leaf, found, err = tree.Leaf(st.reader(id), index)
		return err
	})
	return leaf, found, err
}

func (v *view) LeafPreimage(ctx context.Context, id TreeID, index uint64) (merkletree.LeafPreimage, bool, error) {
	tree, err := v.shapes.indexedTree(id)
	if err != nil {
		return merkletree.LeafPreimage{}, false, err
	}
	var (
		leaf  merkletree.LeafPreimage
		found bool
	)
	err = v.run(ctx, false, func(st *state) error {
		var err error
		leaf, found, err = tree.Preimage(st.reader(id), index)
		return err
	})
	return leaf, found, err
}

func (v *view) FindLeafIndex(ctx context.Context, id TreeID, value fr.Element) (uint64, bool, error) {
	if err := id.verify(); err != nil {
		return 0, false, err
	}
	var (
		index uint64
		found bool
	)
	err := v.run(ctx, false, func(st *state) error {
		var err error
		index, found, err = st.reader(id).Find(value)
		return err
	})
	return index, found, err
}

func (v *view) FindLowLeaf(ctx context.Context, id TreeID, key fr.Element) (LowLeaf, error) {
	tree, err := v.shapes.indexedTree(id)
	if err != nil {
		return LowLeaf{}, err
	}
	var low LowLeaf
	err = v.run(ctx, false, func(st *state) error {
		index, exact, err := tree.FindLowLeaf(st.reader(id), key)
		low = LowLeaf{
			Index:          index,
			AlreadyPresent: exact,
		}
		return err
	})
	return low, err
}

func (v *view) AppendLeaves(ctx context.Context, id TreeID, leaves []fr.Element) error {
	tree, err := v.shapes.appendOnlyTree(id)
	if err != nil {
		return err
	}
	return v.run(ctx, true, func(st *state) error {
		o, err := st.writer(id)
		if err != nil {
			return err
		}
		return tree.Append(o, leaves)
	})
}

func (v *view) BatchInsert(
	ctx context.Context,
	id TreeID,
	leaves []merkletree.LeafPreimage,
	subtreeHeight uint8,
) (*merkletree.BatchInsertion, error) {
	tree, err := v.shapes.indexedTree(id)
	if err != nil {
		return nil, err
	}
	var result *merkletree.BatchInsertion
	err = v.run(ctx, true, func(st *state) error {
		o, err := st.writer(id)
		if err != nil {
			return err
		}
		result, err = tree.BatchInsert(o, leaves, subtreeHeight)
		return err
	})
	return result, err
}

func (v *view) SequentialInsert(
	ctx context.Context,
	id TreeID,
	leaves []merkletree.LeafPreimage,
) (*merkletree.SequentialInsertion, error) {
	tree, err := v.shapes.indexedTree(id)
	if err != nil {
		return nil, err
	}
	var result *merkletree.SequentialInsertion
	err = v.run(ctx, true, func(st *state) error {
		o, err := st.writer(id)
		if err != nil {
			return err
		}
		result, err = tree.SequentialInsert(o, leaves)
		return err
	})
	return result, err
}

func (v *view) UpdateArchive(ctx context.Context, header Header) error {
	return v.run(ctx, true, func(st *state) error {
		return v.shapes.updateArchive(st, &header)
	})
}

// updateArchive appends the hash of [header] to the archive after checking
// the rest of the state matches the header.
func (s *shapes) updateArchive(st *state, header *Header) error {
	o, err := st.writer(ArchiveTree)
	if err != nil {
		return err
	}
	ref, err := s.stateReference(st)
	if err != nil {
		return err
	}
	if ref != header.State {
		return ErrHeaderStateMismatch
	}
	return s.trees[ArchiveTree].Append(o, []fr.Element{header.Hash(s.hasher)})
}
