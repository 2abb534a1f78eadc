// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package archivedb

import "errors"

const (
	present byte = 0
	deleted byte = 1
)

var errEmptyValue = errors.New("stored value is missing its flag")

func encodeValue(value []byte) []byte {
	b := make([]byte, len(value)+1)
	copy(b, value)
	b[len(value)] = present
	return b
}

func encodeDeleted() []byte {
	return []byte{deleted}
}

// parseValue returns the user value and whether the record marks a deletion.
func parseValue(b []byte) ([]byte, bool, error) {
	if len(b) == 0 {
		return nil, false, errEmptyValue
	}
	last := len(b) - 1
	return b[:last], b[last] == deleted, nil
}
