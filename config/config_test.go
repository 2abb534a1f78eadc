// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/worldstate/database/memdb"
	"github.com/ava-labs/worldstate/database/pebble"
	"github.com/ava-labs/worldstate/trace"
	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/worldstate"
	"github.com/ava-labs/worldstate/x/merkletree"
)

func TestDefaults(t *testing.T) {
	require := require.New(t)

	v, err := BuildViper(BuildFlagSet(), nil)
	require.NoError(err)
	config, err := GetConfig(v)
	require.NoError(err)

	require.Equal(worldstate.DefaultConfig(defaultDataDir), config.WorldState)
	require.Equal(pebble.Name, config.WorldState.DBType)
	require.Equal(logging.Info, config.Logging.LogLevel)
	require.Equal(logging.Info, config.Logging.DisplayLevel)
	require.Equal(defaultLogDir, config.Logging.Directory)
}

func TestFlags(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	v, err := BuildViper(BuildFlagSet(), []string{
		"--" + DataDirKey, dir,
		"--" + DBTypeKey, memdb.Name,
		"--" + DBMapSizeKBKey, "2",
		"--" + RollupAddressKey, "0x00000000000000000000000000000000000000aa",
		"--" + HasherKey, merkletree.Keccak256Hasher.Name(),
		"--" + LogLevelKey, "debug",
		"--" + LogDisplayLevelKey, "warn",
		"--" + LogFormatKey, "json",
	})
	require.NoError(err)
	config, err := GetConfig(v)
	require.NoError(err)

	require.Equal(dir, config.WorldState.DataDir)
	require.Equal(memdb.Name, config.WorldState.DBType)
	require.Equal(uint64(2048), config.WorldState.MapSize)
	require.Equal(common.HexToAddress("0xaa"), config.WorldState.RollupAddress)
	require.Equal(merkletree.Keccak256Hasher.Name(), config.WorldState.Hasher)
	require.Equal(logging.Debug, config.Logging.LogLevel)
	require.Equal(logging.Warn, config.Logging.DisplayLevel)
	require.Equal(logging.JSON, config.Logging.LogFormat)
	require.Equal(trace.NoOp, config.Trace.Type)
}

func TestTracingFlags(t *testing.T) {
	require := require.New(t)

	v, err := BuildViper(BuildFlagSet(), []string{
		"--" + TracingExporterTypeKey, "grpc",
		"--" + TracingEndpointKey, "collector:4317",
		"--" + TracingSampleRateKey, "1",
		"--" + TracingHeadersKey, "authorization=token",
	})
	require.NoError(err)
	config, err := GetConfig(v)
	require.NoError(err)

	require.Equal(trace.ExporterConfig{
		Type:     trace.GRPC,
		Endpoint: "collector:4317",
		Headers:  map[string]string{"authorization": "token"},
		Insecure: true,
	}, config.Trace.ExporterConfig)
	require.Equal(1.0, config.Trace.TraceSampleRate)

	v, err = BuildViper(BuildFlagSet(), []string{"--" + TracingExporterTypeKey, "udp"})
	require.NoError(err)
	_, err = GetConfig(v)
	require.ErrorContains(err, "unknown exporter type")
}

func TestEnvOverridesDefault(t *testing.T) {
	require := require.New(t)

	t.Setenv("WORLDSTATE_DB_TYPE", memdb.Name)
	v, err := BuildViper(BuildFlagSet(), nil)
	require.NoError(err)
	config, err := GetConfig(v)
	require.NoError(err)
	require.Equal(memdb.Name, config.WorldState.DBType)
}

func TestMapSizeAboveInt64(t *testing.T) {
	require := require.New(t)

	// Largest size in KiB whose byte count fits a uint64.
	v, err := BuildViper(BuildFlagSet(), []string{"--" + DBMapSizeKBKey, "18014398509481983"})
	require.NoError(err)
	config, err := GetConfig(v)
	require.NoError(err)
	require.Equal(uint64(18014398509481983)*1024, config.WorldState.MapSize)

	t.Setenv("WORLDSTATE_DB_MAP_SIZE_KB", "many")
	v, err = BuildViper(BuildFlagSet(), nil)
	require.NoError(err)
	_, err = GetConfig(v)
	require.ErrorIs(err, errInvalidMapSize)
}

func TestConfigFileParams(t *testing.T) {
	require := require.New(t)

	root := t.TempDir()
	configFile := filepath.Join(root, "config.json")
	content := `{
		"db-type": "memdb",
		"params": {
			"noteHashTreeHeight": 16,
			"minTxsPerBlock": 4
		}
	}`
	require.NoError(os.WriteFile(configFile, []byte(content), 0o600))

	v, err := BuildViper(BuildFlagSet(), []string{"--" + ConfigFileKey, configFile})
	require.NoError(err)
	config, err := GetConfig(v)
	require.NoError(err)

	expected := worldstate.DefaultParams()
	expected.NoteHashTreeHeight = 16
	expected.MinTxsPerBlock = 4
	require.Equal(expected, config.WorldState.Params)
	require.Equal(memdb.Name, config.WorldState.DBType)
}

func TestConfigContent(t *testing.T) {
	require := require.New(t)

	content := base64.StdEncoding.EncodeToString([]byte("hasher: keccak256\n"))
	v, err := BuildViper(BuildFlagSet(), []string{
		"--" + ConfigContentKey, content,
		"--" + ConfigContentTypeKey, "yaml",
	})
	require.NoError(err)
	config, err := GetConfig(v)
	require.NoError(err)
	require.Equal(merkletree.Keccak256Hasher.Name(), config.WorldState.Hasher)
}

func TestInvalidConfig(t *testing.T) {
	tests := map[string]struct {
		args        []string
		expectedErr error
	}{
		"invalid rollup address": {
			args:        []string{"--" + RollupAddressKey, "0x1234"},
			expectedErr: errInvalidRollupAddress,
		},
		"map size overflow": {
			args:        []string{"--" + DBMapSizeKBKey, "18446744073709551615"},
			expectedErr: errMapSizeOverflow,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			v, err := BuildViper(BuildFlagSet(), test.args)
			require.NoError(err)
			_, err = GetConfig(v)
			require.ErrorIs(err, test.expectedErr)
		})
	}
}
