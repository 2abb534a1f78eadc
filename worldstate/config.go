// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/ava-labs/worldstate/database/pebble"
	"github.com/ava-labs/worldstate/x/merkletree"

	oteltrace "go.opentelemetry.io/otel/trace"
)

type Config struct {
	// DataDir holds the world_state directory.
	DataDir string `json:"dataDir"`
	// DBType is the backend of every tree database.
	DBType string `json:"dbType"`
	// MapSize bounds the bytes each tree database may hold. 0 disables the
	// bound.
	MapSize uint64 `json:"mapSize"`
	// RollupAddress identifies the chain the state belongs to.
	RollupAddress common.Address `json:"rollupAddress"`
	// Hasher names the tree hash function.
	Hasher string `json:"hasher"`
	Params Params `json:"params"`

	// Tracer used to trace operations. Defaults to a no-op tracer.
	Tracer oteltrace.Tracer `json:"-"`
}

func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		DBType:  pebble.Name,
		Hasher:  merkletree.DefaultHasher.Name(),
		Params:  DefaultParams(),
	}
}
