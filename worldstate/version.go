// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/utils/perms"
)

const (
	// StateVersion is bumped whenever the persisted layout changes.
	StateVersion = 1

	worldStateDir   = "world_state"
	versionFileName = "world_state_version.json"
)

// versionRecord identifies the chain a directory holds the state of.
type versionRecord struct {
	Version       uint64         `json:"version"`
	RollupAddress common.Address `json:"rollupAddress"`
}

// prepareDir makes sure [dir] holds the state of [rollup] at the current
// version. A directory holding anything else is wiped.
func prepareDir(dir string, rollup common.Address, log logging.Logger) error {
	path := filepath.Join(dir, versionFileName)
	expected := versionRecord{
		Version:       StateVersion,
		RollupAddress: rollup,
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("creating world state",
			zap.String("dir", dir),
			zap.Stringer("rollupAddress", rollup),
		)
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", path, err)
	default:
		var found versionRecord
		if err := json.Unmarshal(b, &found); err != nil {
			log.Warn("wiping world state with an unreadable version record",
				zap.String("dir", dir),
				zap.Error(err),
			)
		} else if found == expected {
			return nil
		} else {
			log.Warn("wiping world state of a different rollup or version",
				zap.String("dir", dir),
				zap.Uint64("version", found.Version),
				zap.Uint64("expectedVersion", expected.Version),
				zap.Stringer("rollupAddress", found.RollupAddress),
				zap.Stringer("expectedRollupAddress", expected.RollupAddress),
			)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", dir, err)
		}
	}

	if err := os.MkdirAll(dir, perms.ReadWriteExecute); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	b, err = json.Marshal(expected)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, perms.ReadWrite)
}
