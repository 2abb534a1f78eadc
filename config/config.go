// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config builds the configuration of the world state commands from
// flags, environment variables and config files.
package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/worldstate/trace"
	"github.com/ava-labs/worldstate/utils/logging"
	"github.com/ava-labs/worldstate/utils/units"
	"github.com/ava-labs/worldstate/worldstate"
)

// EnvPrefix prefixes the environment variables that override flags.
const EnvPrefix = "worldstate"

var (
	errInvalidRollupAddress = errors.New("invalid rollup address")
	errMapSizeOverflow      = errors.New("db map size overflows")
	errInvalidMapSize       = errors.New("invalid db map size")
)

// Config is the configuration of a world state command.
type Config struct {
	WorldState worldstate.Config `json:"worldState"`
	Logging    logging.Config    `json:"logging"`
	Trace      trace.Config      `json:"trace"`
}

// BuildViper parses [args] with [fs] and returns the resulting viper
// instance. Flags may be overridden by WORLDSTATE_ prefixed environment
// variables and by a config file.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	switch {
	case v.IsSet(ConfigContentKey):
		configContentB64 := v.GetString(ConfigContentKey)
		configBytes, err := base64.StdEncoding.DecodeString(configContentB64)
		if err != nil {
			return nil, fmt.Errorf("unable to decode base64 content: %w", err)
		}

		v.SetConfigType(v.GetString(ConfigContentTypeKey))
		if err := v.ReadConfig(bytes.NewBuffer(configBytes)); err != nil {
			return nil, err
		}
	case v.IsSet(ConfigFileKey):
		filename := os.ExpandEnv(v.GetString(ConfigFileKey))
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// GetConfig reads the configuration held by [v].
func GetConfig(v *viper.Viper) (Config, error) {
	worldStateConfig, err := getWorldStateConfig(v)
	if err != nil {
		return Config{}, err
	}
	loggingConfig, err := getLoggingConfig(v)
	if err != nil {
		return Config{}, err
	}
	traceConfig, err := getTraceConfig(v)
	if err != nil {
		return Config{}, err
	}
	return Config{
		WorldState: worldStateConfig,
		Logging:    loggingConfig,
		Trace:      traceConfig,
	}, nil
}

func getWorldStateConfig(v *viper.Viper) (worldstate.Config, error) {
	config := worldstate.DefaultConfig(os.ExpandEnv(v.GetString(DataDirKey)))
	config.DBType = v.GetString(DBTypeKey)
	config.Hasher = v.GetString(HasherKey)

	// GetUint64 parses through int64 and maps larger values to 0.
	mapSizeKB, err := strconv.ParseUint(v.GetString(DBMapSizeKBKey), 10, 64)
	if err != nil {
		return worldstate.Config{}, fmt.Errorf("%w: %w", errInvalidMapSize, err)
	}
	if mapSizeKB > ^uint64(0)/units.KiB {
		return worldstate.Config{}, fmt.Errorf("%w: %d KiB", errMapSizeOverflow, mapSizeKB)
	}
	config.MapSize = mapSizeKB * units.KiB

	rollup := v.GetString(RollupAddressKey)
	if !common.IsHexAddress(rollup) {
		return worldstate.Config{}, fmt.Errorf("%w: %q", errInvalidRollupAddress, rollup)
	}
	config.RollupAddress = common.HexToAddress(rollup)

	// Params only come from config files. Fields that are not set keep their
	// default value.
	if v.IsSet(ParamsKey) {
		if err := v.UnmarshalKey(ParamsKey, &config.Params); err != nil {
			return worldstate.Config{}, fmt.Errorf("couldn't parse %s: %w", ParamsKey, err)
		}
	}
	if err := config.Params.Verify(); err != nil {
		return worldstate.Config{}, err
	}
	return config, nil
}

func getLoggingConfig(v *viper.Viper) (logging.Config, error) {
	config := logging.DefaultConfig(os.ExpandEnv(v.GetString(LogsDirKey)))

	var err error
	config.LogLevel, err = logging.ToLevel(v.GetString(LogLevelKey))
	if err != nil {
		return logging.Config{}, err
	}
	config.DisplayLevel = config.LogLevel
	if v.IsSet(LogDisplayLevelKey) && v.GetString(LogDisplayLevelKey) != "" {
		config.DisplayLevel, err = logging.ToLevel(v.GetString(LogDisplayLevelKey))
		if err != nil {
			return logging.Config{}, err
		}
	}
	config.LogFormat, err = logging.ToFormat(v.GetString(LogFormatKey))
	if err != nil {
		return logging.Config{}, err
	}
	config.DisableWriterDisplaying = v.GetBool(LogDisableDisplayKey)
	return config, nil
}

func getTraceConfig(v *viper.Viper) (trace.Config, error) {
	exporterType, err := trace.ExporterTypeFromString(v.GetString(TracingExporterTypeKey))
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		ExporterConfig: trace.ExporterConfig{
			Type:     exporterType,
			Endpoint: v.GetString(TracingEndpointKey),
			Headers:  v.GetStringMapString(TracingHeadersKey),
			Insecure: v.GetBool(TracingInsecureKey),
		},
		TraceSampleRate: v.GetFloat64(TracingSampleRateKey),
		Version:         strconv.Itoa(worldstate.StateVersion),
	}, nil
}
