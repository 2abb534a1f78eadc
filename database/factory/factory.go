// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/worldstate/database"
	"github.com/ava-labs/worldstate/database/corruptabledb"
	"github.com/ava-labs/worldstate/database/leveldb"
	"github.com/ava-labs/worldstate/database/mapsizedb"
	"github.com/ava-labs/worldstate/database/memdb"
	"github.com/ava-labs/worldstate/database/meterdb"
	"github.com/ava-labs/worldstate/database/pebble"
	"github.com/ava-labs/worldstate/utils/logging"
)

type DatabaseConfig struct {
	// Name of the database type to use
	Name string `json:"name"`

	// Path to database
	Path string `json:"path"`

	// MapSize bounds the bytes the database may hold. 0 disables the bound.
	MapSize uint64 `json:"mapSize"`
}

// Database is a database built by New along with handles on the wrappers
// that callers need to inspect.
type Database struct {
	database.Database

	sized       *mapsizedb.Database
	corruptable *corruptabledb.Database
}

// Stats reports the amount of data held by the database.
func (db *Database) Stats() mapsizedb.Stats {
	return db.sized.Stats()
}

// Corrupted returns the error that disabled the database, if any.
func (db *Database) Corrupted() error {
	return db.corruptable.Corrupted()
}

// New creates a new database instance based on the provided configuration.
// It supports LevelDB, MemDB, and PebbleDB as database types. The database
// is wrapped with a map size bound, a meter DB when [reg] is non-nil, and
// finally a corruptable DB.
func New(
	config DatabaseConfig,
	reg prometheus.Registerer,
	log logging.Logger,
) (*Database, error) {
	var (
		db  database.Database
		err error
	)
	switch config.Name {
	case leveldb.Name:
		db, err = leveldb.New(config.Path, leveldb.DefaultConfig, log)
		if err != nil {
			return nil, fmt.Errorf("couldn't create %s at %s: %w", leveldb.Name, config.Path, err)
		}
	case memdb.Name:
		db = memdb.New()
	case pebble.Name:
		db, err = pebble.New(config.Path, pebble.DefaultConfig, log)
		if err != nil {
			return nil, fmt.Errorf("couldn't create %s at %s: %w", pebble.Name, config.Path, err)
		}
	default:
		return nil, fmt.Errorf(
			"db-type was %q but should have been one of {%s, %s, %s}",
			config.Name,
			leveldb.Name,
			memdb.Name,
			pebble.Name,
		)
	}

	sized, err := mapsizedb.New(db, config.MapSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	db = sized

	if reg != nil {
		db, err = meterdb.New(reg, db)
		if err != nil {
			_ = sized.Close()
			return nil, fmt.Errorf("failed to create meterdb: %w", err)
		}
	}

	corruptable := corruptabledb.New(db)
	return &Database{
		Database:    corruptable,
		sized:       sized,
		corruptable: corruptable,
	}, nil
}
