// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/utils/perms"
)

func TestPrepareDir(t *testing.T) {
	rollup := common.HexToAddress("0xabc")
	other := common.HexToAddress("0xdef")

	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		wiped bool
	}{
		{
			name:  "missing dir",
			setup: func(*testing.T, string) {},
		},
		{
			name: "matching record",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, prepareDir(dir, rollup, logging.NoLog{}))
			},
		},
		{
			name: "different rollup",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, prepareDir(dir, other, logging.NoLog{}))
			},
			wiped: true,
		},
		{
			name: "unreadable record",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(dir, perms.ReadWriteExecute))
				path := filepath.Join(dir, versionFileName)
				require.NoError(t, os.WriteFile(path, []byte("{"), perms.ReadWrite))
			},
			wiped: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			dir := filepath.Join(t.TempDir(), worldStateDir)
			test.setup(t, dir)

			// A marker tells whether the directory was wiped.
			marker := filepath.Join(dir, "marker")
			_, err := os.Stat(dir)
			existed := err == nil
			if existed {
				require.NoError(os.WriteFile(marker, nil, perms.ReadWrite))
			}

			require.NoError(prepareDir(dir, rollup, logging.NoLog{}))

			b, err := os.ReadFile(filepath.Join(dir, versionFileName))
			require.NoError(err)
			var record versionRecord
			require.NoError(json.Unmarshal(b, &record))
			require.Equal(versionRecord{Version: StateVersion, RollupAddress: rollup}, record)

			_, err = os.Stat(marker)
			switch {
			case test.wiped:
				require.ErrorIs(err, os.ErrNotExist)
			case existed:
				require.NoError(err)
			}
		})
	}
}
