// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	NoOp ExporterType = iota
	GRPC
	HTTP
)

var (
	errUnknownExporterType = errors.New("unknown exporter type")
	errInvalidFormat       = errors.New("invalid format")
)

// ExporterType selects the protocol spans are exported with.
type ExporterType byte

// ExporterTypeFromString parses an exporter type. The empty string, "none"
// and "null" disable tracing.
func ExporterTypeFromString(s string) (ExporterType, error) {
	switch strings.ToLower(s) {
	case "", "none", "null":
		return NoOp, nil
	case GRPC.String():
		return GRPC, nil
	case HTTP.String():
		return HTTP, nil
	default:
		return NoOp, fmt.Errorf("%w: %q", errUnknownExporterType, s)
	}
}

func (t ExporterType) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *ExporterType) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", errInvalidFormat, b)
	}
	exporterType, err := ExporterTypeFromString(s)
	if err != nil {
		return err
	}
	*t = exporterType
	return nil
}

func (t ExporterType) String() string {
	switch t {
	case NoOp:
		return ""
	case GRPC:
		return "grpc"
	case HTTP:
		return "http"
	default:
		return "unknown"
	}
}
