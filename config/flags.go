// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/ava-labs/worldstate/database/leveldb"
	"github.com/ava-labs/worldstate/database/memdb"
	"github.com/ava-labs/worldstate/database/pebble"
	"github.com/ava-labs/worldstate/trace"
	"github.com/ava-labs/worldstate/x/merkletree"
)

var (
	defaultDataDir = filepath.Join(os.ExpandEnv("$HOME"), ".worldstate")
	defaultLogDir  = filepath.Join(defaultDataDir, "logs")
)

// BuildFlagSet returns the flags of every world state command.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("worldstate", pflag.ContinueOnError)
	addFlags(fs)
	return fs
}

func addFlags(fs *pflag.FlagSet) {
	// Config
	fs.String(ConfigFileKey, "", fmt.Sprintf("Specifies a config file. Ignored if %s is specified", ConfigContentKey))
	fs.String(ConfigContentKey, "", "Specifies base64 encoded config content")
	fs.String(ConfigContentTypeKey, "json", "Specifies the format of the base64 encoded config content. Available values: 'json', 'yaml', 'toml'")

	// Database
	fs.String(DataDirKey, defaultDataDir, "Directory holding the world_state directory")
	fs.String(DBTypeKey, pebble.Name, fmt.Sprintf("Database type to use. Must be one of {%s, %s, %s}", leveldb.Name, memdb.Name, pebble.Name))
	fs.Uint64(DBMapSizeKBKey, 0, "Maximum size of each tree database in KiB. 0 disables the limit")

	// World state
	fs.String(RollupAddressKey, "0x0000000000000000000000000000000000000000", "Address of the rollup contract the state belongs to. A different address wipes the state")
	fs.String(HasherKey, merkletree.DefaultHasher.Name(), fmt.Sprintf("Hash function of the trees. Must be one of {%s, %s}", merkletree.Poseidon2Hasher.Name(), merkletree.Keccak256Hasher.Name()))

	// Logging
	fs.String(LogsDirKey, defaultLogDir, "Logging directory")
	fs.String(LogLevelKey, "info", "The log level. Should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogDisplayLevelKey, "", "The log display level. If left blank, will inherit the value of log-level. Otherwise, should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogFormatKey, "plain", "The structure of log format. Should be one of {plain, json}")
	fs.Bool(LogDisableDisplayKey, false, "If true, logs are only written to the log directory")

	// Tracing
	fs.String(TracingExporterTypeKey, trace.NoOp.String(), fmt.Sprintf("Type of exporter to use for tracing. Options are [%s, %s]. Empty disables tracing", trace.GRPC, trace.HTTP))
	fs.String(TracingEndpointKey, "localhost:4317", "The endpoint to send trace data to")
	fs.Bool(TracingInsecureKey, true, "If true, don't use TLS when sending trace data")
	fs.Float64(TracingSampleRateKey, 0.1, "The fraction of traces to sample. If >= 1, always sample. If <= 0, never sample")
	fs.StringToString(TracingHeadersKey, map[string]string{}, "The headers to provide the trace indexer")
}
