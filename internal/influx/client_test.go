package influx

import (
	"testing"

	"github.com/dtcops/blobsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientProtocols(t *testing.T) {
	base := config.InfluxConfig{Host: "influx.local", Port: 8086, Database: "metrics"}

	t.Run("http", func(t *testing.T) {
		cfg := base
		cfg.Protocol = "http"
		client, err := NewClient(cfg)
		require.NoError(t, err)
		defer client.Close()
		assert.IsType(t, &httpClient{}, client)
	})

	t.Run("https case-insensitive", func(t *testing.T) {
		cfg := base
		cfg.Protocol = "HTTPS"
		client, err := NewClient(cfg)
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("grpc refused at startup", func(t *testing.T) {
		cfg := base
		cfg.Protocol = "grpc"
		_, err := NewClient(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not supported")
	})

	t.Run("unknown protocol", func(t *testing.T) {
		cfg := base
		cfg.Protocol = "carrier-pigeon"
		_, err := NewClient(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown influx protocol")
	})
}
