// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ava-labs/worldstate/database"
	"github.com/ava-labs/worldstate/database/factory"
	"github.com/ava-labs/worldstate/x/archivedb"
	"github.com/ava-labs/worldstate/x/merkletree"
)

// Versioned records are stored through archivedb so that every height keeps
// its own view of the nodes and leaves.
const (
	nodeKeyPrefix byte = 'n'
	leafKeyPrefix byte = 'l'
)

// Unversioned records.
const (
	keyIndexPrefix byte = archivedb.RawPrefixStart + iota
	valueIndexPrefix
	blockPrefix
	journalPrefix
	metaPrefix
)

const (
	versionedEntry byte = iota
	rawEntry
)

// indexEntryLen is the size of an (index, height) pair.
const indexEntryLen = 2 * database.Uint64Size

var (
	finalisedKey   = []byte{metaPrefix, 'f'}
	oldestKey      = []byte{metaPrefix, 'o'}
	initialSizeKey = []byte{metaPrefix, 'i'}

	errInvalidRecord = errors.New("invalid record")
)

// treeDB persists a single tree. Every height writes a block record with the
// tree snapshot and a journal of the keys it wrote, which is what unwind and
// prune replay.
type treeDB struct {
	id      TreeID
	db      *factory.Database
	archive *archivedb.Database
}

func newTreeDB(id TreeID, db *factory.Database) *treeDB {
	return &treeDB{
		id:      id,
		db:      db,
		archive: archivedb.New(db),
	}
}

// treeMarkers are the heights persisted by a tree.
type treeMarkers struct {
	unfinalised uint64
	finalised   uint64
	oldest      uint64
	initialSize uint64
}

// markers returns the persisted heights of the tree. The second return value
// is false if the tree was never committed.
func (t *treeDB) markers() (treeMarkers, bool, error) {
	unfinalised, err := t.archive.Height()
	if errors.Is(err, database.ErrNotFound) {
		return treeMarkers{}, false, nil
	}
	if err != nil {
		return treeMarkers{}, false, err
	}
	m := treeMarkers{unfinalised: unfinalised}
	if m.finalised, err = database.GetUInt64(t.db, finalisedKey); err != nil {
		return treeMarkers{}, false, err
	}
	if m.oldest, err = database.GetUInt64(t.db, oldestKey); err != nil {
		return treeMarkers{}, false, err
	}
	if m.initialSize, err = database.GetUInt64(t.db, initialSizeKey); err != nil {
		return treeMarkers{}, false, err
	}
	return m, true, nil
}

func (t *treeDB) block(height uint64) (TreeSnapshot, error) {
	b, err := t.db.Get(blockKey(height))
	if err != nil {
		return TreeSnapshot{}, fmt.Errorf("failed to read %s block %d: %w", t.id, height, err)
	}
	if len(b) != merkletree.HashLength+database.Uint64Size {
		return TreeSnapshot{}, fmt.Errorf("%w: %s block %d", errInvalidRecord, t.id, height)
	}
	return TreeSnapshot{
		Root: merkletree.FromBytes(b[:merkletree.HashLength]),
		Size: binary.BigEndian.Uint64(b[merkletree.HashLength:]),
	}, nil
}

// reader returns the tree as of [height].
func (t *treeDB) reader(height uint64, snapshot TreeSnapshot) *snapshotReader {
	return &snapshotReader{
		t:      t,
		height: height,
		size:   snapshot.Size,
		reader: t.archive.Reader(height),
	}
}

// commit writes the changes of [o] as the state at [height].
func (t *treeDB) commit(height uint64, o *merkletree.Overlay, snapshot TreeSnapshot) error {
	var (
		batch   = t.archive.NewBatch(height)
		raw     = batch.Raw()
		journal journal
		errs    []error
	)
	for _, k := range o.Nodes() {
		key := nodeKey(k.Level, k.Index)
		node := o.NodeAt(k)
		hash := node.Bytes()
		errs = append(errs, batch.Put(key, hash[:]))
		journal.add(versionedEntry, key)
	}
	for index, leaf := range o.Leaves() {
		key := leafKey(index)
		errs = append(errs, batch.Put(key, leaf))
		journal.add(versionedEntry, key)
	}
	o.Keys(func(entry merkletree.KeyIndex) bool {
		key := indexKey(keyIndexPrefix, entry.Key)
		errs = append(errs, raw.Put(key, packIndexEntry(entry.Index, height)))
		journal.add(rawEntry, key)
		return true
	})
	for value, index := range o.Values() {
		key := indexKey(valueIndexPrefix, value)
		errs = append(errs, raw.Put(key, packIndexEntry(index, height)))
		journal.add(rawEntry, key)
	}

	root := snapshot.Root.Bytes()
	record := make([]byte, 0, merkletree.HashLength+database.Uint64Size)
	record = append(record, root[:]...)
	record = binary.BigEndian.AppendUint64(record, snapshot.Size)
	errs = append(errs, raw.Put(blockKey(height), record))

	if height == 0 {
		errs = append(errs,
			database.PutUInt64(raw, finalisedKey, 0),
			database.PutUInt64(raw, oldestKey, 0),
			database.PutUInt64(raw, initialSizeKey, snapshot.Size),
		)
	} else {
		// Genesis is never unwound, so it needs no journal.
		errs = append(errs, raw.Put(journalKey(height), journal.bytes()))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return batch.Write()
}

// unwind removes every height above [height]. [tip] is the current height.
func (t *treeDB) unwind(height, tip, finalised uint64) error {
	batch := t.archive.NewBatch(height)
	raw := batch.Raw()
	for h := tip; h > height; h-- {
		entries, err := t.journal(h)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.kind == versionedEntry {
				err = batch.Remove(e.key, h)
			} else {
				err = raw.Delete(e.key)
			}
			if err != nil {
				return err
			}
		}
		if err := raw.Delete(journalKey(h)); err != nil {
			return err
		}
		if err := raw.Delete(blockKey(h)); err != nil {
			return err
		}
	}
	if finalised > height {
		if err := database.PutUInt64(raw, finalisedKey, height); err != nil {
			return err
		}
	}
	return batch.Write()
}

// prune removes the state of every height below [height]. Versions that are
// still visible at [height] are kept.
func (t *treeDB) prune(height, oldest, tip uint64) error {
	batch := t.archive.NewBatch(tip)
	raw := batch.Raw()
	for h := oldest + 1; h <= height; h++ {
		entries, err := t.journal(h)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.kind != versionedEntry {
				continue
			}
			previous, ok, err := t.archive.Previous(e.key, h)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := batch.Remove(e.key, previous); err != nil {
				return err
			}
		}
		if err := raw.Delete(journalKey(h)); err != nil {
			return err
		}
	}
	for h := oldest; h < height; h++ {
		if err := raw.Delete(blockKey(h)); err != nil {
			return err
		}
	}
	if err := database.PutUInt64(raw, oldestKey, height); err != nil {
		return err
	}
	return batch.Write()
}

func (t *treeDB) setFinalised(height uint64) error {
	return database.PutUInt64(t.db, finalisedKey, height)
}

func (t *treeDB) journal(height uint64) ([]journalEntry, error) {
	b, err := t.db.Get(journalKey(height))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s journal %d: %w", t.id, height, err)
	}
	return parseJournal(b)
}

func (t *treeDB) close() error {
	return t.db.Close()
}

// snapshotReader reads a tree as it was at a committed height.
type snapshotReader struct {
	t      *treeDB
	height uint64
	size   uint64
	reader *archivedb.Reader
}

func (r *snapshotReader) Size() uint64 {
	return r.size
}

func (r *snapshotReader) Node(level uint8, index uint64) (fr.Element, bool, error) {
	b, err := r.reader.Get(nodeKey(level, index))
	if errors.Is(err, database.ErrNotFound) {
		return fr.Element{}, false, nil
	}
	if err != nil {
		return fr.Element{}, false, err
	}
	return merkletree.FromBytes(b), true, nil
}

func (r *snapshotReader) Leaf(index uint64) ([]byte, bool, error) {
	if index >= r.size {
		return nil, false, nil
	}
	b, err := r.reader.Get(leafKey(index))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (r *snapshotReader) Find(value fr.Element) (uint64, bool, error) {
	prefix := valueIndexPrefix
	if r.t.id.Indexed() {
		prefix = keyIndexPrefix
	}
	b, err := r.t.db.Get(indexKey(prefix, value))
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	index, height, err := parseIndexEntry(b)
	if err != nil {
		return 0, false, err
	}
	return index, height <= r.height && index < r.size, nil
}

// LowKey walks the key index downward from [key]. Keys are stored inverted so
// that an ascending iteration visits them in descending order.
func (r *snapshotReader) LowKey(key fr.Element) (fr.Element, uint64, bool, error) {
	it := r.t.db.NewIteratorWithStartAndPrefix(
		indexKey(keyIndexPrefix, key),
		[]byte{keyIndexPrefix},
	)
	defer it.Release()

	for it.Next() {
		index, height, err := parseIndexEntry(it.Value())
		if err != nil {
			return fr.Element{}, 0, false, err
		}
		if height > r.height {
			continue
		}
		found := invert(it.Key()[1:])
		return merkletree.FromBytes(found), index, true, nil
	}
	return fr.Element{}, 0, false, it.Error()
}

func nodeKey(level uint8, index uint64) []byte {
	key := make([]byte, 2, 2+database.Uint64Size)
	key[0] = nodeKeyPrefix
	key[1] = level
	return binary.BigEndian.AppendUint64(key, index)
}

func leafKey(index uint64) []byte {
	key := make([]byte, 1, 1+database.Uint64Size)
	key[0] = leafKeyPrefix
	return binary.BigEndian.AppendUint64(key, index)
}

func heightKey(prefix byte, height uint64) []byte {
	key := make([]byte, 1, 1+database.Uint64Size)
	key[0] = prefix
	return binary.BigEndian.AppendUint64(key, height)
}

func blockKey(height uint64) []byte {
	return heightKey(blockPrefix, height)
}

func journalKey(height uint64) []byte {
	return heightKey(journalPrefix, height)
}

// indexKey returns the key of [value] in the key index or the value index.
// Keys of the key index are inverted.
func indexKey(prefix byte, value fr.Element) []byte {
	b := value.Bytes()
	key := make([]byte, 1+len(b))
	key[0] = prefix
	copy(key[1:], b[:])
	if prefix == keyIndexPrefix {
		copy(key[1:], invert(b[:]))
	}
	return key
}

func invert(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = ^v
	}
	return out
}

func packIndexEntry(index, height uint64) []byte {
	b := make([]byte, 0, indexEntryLen)
	b = binary.BigEndian.AppendUint64(b, index)
	return binary.BigEndian.AppendUint64(b, height)
}

func parseIndexEntry(b []byte) (uint64, uint64, error) {
	if len(b) != indexEntryLen {
		return 0, 0, fmt.Errorf("%w: index entry of %d bytes", errInvalidRecord, len(b))
	}
	return binary.BigEndian.Uint64(b), binary.BigEndian.Uint64(b[database.Uint64Size:]), nil
}

type journalEntry struct {
	kind byte
	key  []byte
}

// journal encodes the keys written at a height as kind|uvarint(len)|key.
type journal struct {
	buf []byte
}

func (j *journal) add(kind byte, key []byte) {
	j.buf = append(j.buf, kind)
	j.buf = binary.AppendUvarint(j.buf, uint64(len(key)))
	j.buf = append(j.buf, key...)
}

func (j *journal) bytes() []byte {
	if j.buf == nil {
		return []byte{}
	}
	return j.buf
}

func parseJournal(b []byte) ([]journalEntry, error) {
	var entries []journalEntry
	for len(b) > 0 {
		kind := b[0]
		length, n := binary.Uvarint(b[1:])
		if n <= 0 || uint64(len(b)-1-n) < length {
			return nil, fmt.Errorf("%w: truncated journal", errInvalidRecord)
		}
		start := 1 + n
		entries = append(entries, journalEntry{
			kind: kind,
			key:  b[start : start+int(length)],
		})
		b = b[start+int(length):]
	}
	return entries, nil
}
