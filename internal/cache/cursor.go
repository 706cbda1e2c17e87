// Package cache keeps the ingestion loop's scan cursor in Redis so a restart
// resumes without querying MAX(last_modified). The database value stays
// authoritative; every cache miss or error degrades to the DB path.
package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dtcops/blobsync/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cursorKey = "blobsync:scan_cursor"

type CursorStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCursorStore connects to Redis per the cache config. Returns (nil, nil)
// when caching is disabled; callers treat a nil store as a permanent miss.
func NewCursorStore(cfg config.CacheConfig) (*CursorStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &CursorStore{
		client: client,
		ttl:    time.Duration(cfg.CursorTTLSeconds) * time.Second,
	}, nil
}

// Get returns the cached cursor, or ok=false on miss, error, or nil store.
func (s *CursorStore) Get(ctx context.Context) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	raw, err := s.client.Get(ctx, cursorKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("scan cursor cache read failed")
		}
		return time.Time{}, false
	}
	cursor, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		log.Warn().Err(err).Str("value", raw).Msg("scan cursor cache holds an unparseable value")
		return time.Time{}, false
	}
	return cursor, true
}

// Set stores the cursor. Best effort: a write failure only costs the next
// restart one MAX(last_modified) query.
func (s *CursorStore) Set(ctx context.Context, cursor time.Time) {
	if s == nil {
		return
	}
	if err := s.client.Set(ctx, cursorKey, cursor.Format(time.RFC3339Nano), s.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("scan cursor cache write failed")
	}
}

// Close releases the Redis connection.
func (s *CursorStore) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
