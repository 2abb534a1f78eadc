// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	ConfigFileKey          = "config-file"
	ConfigContentKey       = "config-file-content"
	ConfigContentTypeKey   = "config-file-content-type"
	DataDirKey             = "data-dir"
	DBTypeKey              = "db-type"
	DBMapSizeKBKey         = "db-map-size-kb"
	RollupAddressKey       = "rollup-address"
	HasherKey              = "hasher"
	ParamsKey              = "params"
	LogsDirKey             = "log-dir"
	LogLevelKey            = "log-level"
	LogDisplayLevelKey     = "log-display-level"
	LogFormatKey           = "log-format"
	LogDisableDisplayKey   = "log-disable-display"
	TracingExporterTypeKey = "tracing-exporter-type"
	TracingEndpointKey     = "tracing-endpoint"
	TracingInsecureKey     = "tracing-insecure"
	TracingSampleRateKey   = "tracing-sample-rate"
	TracingHeadersKey      = "tracing-headers"
)
