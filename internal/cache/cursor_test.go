package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dtcops/blobsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCursorStoreDisabled(t *testing.T) {
	store, err := NewCursorStore(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestNilStoreIsPermanentMiss(t *testing.T) {
	var store *CursorStore

	_, ok := store.Get(context.Background())
	assert.False(t, ok)

	// Set and Close on a nil store are no-ops, not panics.
	store.Set(context.Background(), time.Now())
	assert.NoError(t, store.Close())
}

func TestBuildRedisOptionsFromURL(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{
		Enabled:  true,
		RedisURL: "redis://:pw@redis.local:6380/2",
	})
	require.NoError(t, err)
	assert.Equal(t, "redis.local:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestBuildRedisOptionsInvalidURL(t *testing.T) {
	_, err := buildRedisOptions(config.CacheConfig{Enabled: true, RedisURL: "://nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}

func TestBuildRedisOptionsFromHostPort(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{
		Enabled:   true,
		RedisHost: "redis.local",
		RedisPort: "6380",
		RedisDB:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, "redis.local:6380", opts.Addr)
	assert.Equal(t, 1, opts.DB)
}

func TestBuildRedisOptionsDefaults(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
}
