// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package archivedb

import (
	"encoding/binary"
	"errors"

	"github.com/ava-labs/worldstate/database"
)

var (
	ErrParsingKeyLength   = errors.New("failed reading key length")
	ErrIncorrectKeyLength = errors.New("incorrect key length")

	heightKey = []byte{metadataPrefix}
)

const (
	versionedPrefix byte = 0x00
	metadataPrefix  byte = 0x01

	// RawPrefixStart is the smallest first byte a caller may use for records
	// written through Batch.Raw. Smaller first bytes are reserved.
	RawPrefixStart byte = 0x02
)

// newDBKey converts a user formatted key and a height into a database formatted
// key.
//
// A database key contains additional information alongside the given user key.
//
// The requirements of a database key are:
//
// 1. A given user key must have a unique database key prefix. This guarantees
// that user keys can not overlap on disk.
// 2. Inside of a database key prefix, the database keys must be sorted by
// decreasing height.
// 3. User keys must never overlap with any metadata keys.
//
// To meet these requirements, a database key prefix is defined by concatinating
// the zero byte, the length of the user key, and the user key. The suffix of
// the database key is the negation of the big endian encoded height. This
// suffix guarantees the keys are sorted correctly.
//
//	Example (Asumming heights are 1 byte):
//	 |  User given  |  Stored as  |
//	 |--------------|-------------|
//	 |    foo:10    |  3:foo:245  |
//	 |    foo:20    |  3:foo:235  |
//
// Returns:
// - The database key
// - The database key prefix, which is independent of the height
func newDBKey(key []byte, height uint64) ([]byte, []byte) {
	keyLen := len(key)
	dbKeyMaxSize := 1 + binary.MaxVarintLen64 + keyLen + database.Uint64Size
	dbKey := make([]byte, dbKeyMaxSize)
	dbKey[0] = versionedPrefix
	offset := 1
	offset += binary.PutUvarint(dbKey[offset:], uint64(keyLen))
	offset += copy(dbKey[offset:], key)
	prefixOffset := offset
	binary.BigEndian.PutUint64(dbKey[offset:], ^height)
	offset += database.Uint64Size
	return dbKey[:offset], dbKey[:prefixOffset]
}

// parseDBKey takes a database formatted key and returns the user formatted key
// along with its height.
//
// Note: An error should only be returned from this function if the database has
// been corrupted.
func parseDBKey(dbKey []byte) ([]byte, uint64, error) {
	if len(dbKey) == 0 || dbKey[0] != versionedPrefix {
		return nil, 0, ErrParsingKeyLength
	}

	keyLen, offset := binary.Uvarint(dbKey[1:])
	if offset <= 0 {
		return nil, 0, ErrParsingKeyLength
	}

	keyIndex := 1 + uint64(offset)
	heightIndex := keyIndex + keyLen
	if uint64(len(dbKey)) != heightIndex+database.Uint64Size {
		return nil, 0, ErrIncorrectKeyLength
	}

	key := dbKey[keyIndex:heightIndex]
	height := ^binary.BigEndian.Uint64(dbKey[heightIndex:])
	return key, height, nil
}
