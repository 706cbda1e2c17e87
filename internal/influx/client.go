// Package influx queries the time-series store for per-blob record counts.
// Only the v1-compatibility HTTP API is implemented; the service's other wire
// protocols are out of scope here.
package influx

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtcops/blobsync/internal/config"
)

// Client executes a scalar count query against the time-series store.
type Client interface {
	QueryCount(ctx context.Context, query string) (int64, error)
	Close() error
}

// NewClient builds a client for the configured protocol. grpc (FlightSQL) is
// recognized but unsupported; refusing at startup beats failing on the first
// verification cycle.
func NewClient(cfg config.InfluxConfig) (Client, error) {
	switch strings.ToLower(cfg.Protocol) {
	case "http", "https":
		return newHTTPClient(cfg), nil
	case "grpc":
		return nil, fmt.Errorf("influx protocol %q (FlightSQL) is not supported, use http or https", cfg.Protocol)
	default:
		return nil, fmt.Errorf("unknown influx protocol %q", cfg.Protocol)
	}
}
