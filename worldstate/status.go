// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/ava-labs/worldstate/database/mapsizedb"
	"github.com/ava-labs/worldstate/worldstate/heights"
)

// TreeMeta describes a tree of the canonical world state.
type TreeMeta struct {
	Name  string `json:"name"`
	Depth uint8  `json:"depth"`
	// Size includes uncommitted leaves.
	Size          uint64     `json:"size"`
	CommittedSize uint64     `json:"committedSize"`
	Root          fr.Element `json:"root"`
	InitialSize   uint64     `json:"initialSize"`
	InitialRoot   fr.Element `json:"initialRoot"`

	OldestHistoricBlock    uint64 `json:"oldestHistoricBlock"`
	UnfinalisedBlockHeight uint64 `json:"unfinalisedBlockHeight"`
	FinalisedBlockHeight   uint64 `json:"finalisedBlockHeight"`
}

// Status reports the chain markers and the state of every tree.
type Status struct {
	Summary         heights.Summary `json:"summary"`
	TreesAreSynched bool            `json:"treesAreSynched"`
	Trees           []TreeMeta      `json:"trees"`
}

// TreeDBStats reports the storage used by a tree.
type TreeDBStats struct {
	Name string `json:"name"`
	mapsizedb.Stats
}
