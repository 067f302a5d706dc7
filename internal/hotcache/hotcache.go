// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hotcache is the fast, lossy tier in front of the SQLite store.
// It holds serialized GEO aggregates and search results under short TTLs
// and may evict or lose entries at any time; the store below it remains
// authoritative.
package hotcache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("hotcache: miss")

// Backend is one hot-cache implementation. Values are opaque bytes;
// serialization belongs to the caller.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Stats counts cache traffic since startup.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// New builds the configured backend. An unreachable redis degrades to the
// in-memory backend rather than failing startup; the in-memory tier does
// not survive restarts.
func New(cfg types.HotCacheConfig, logger *slog.Logger) Backend {
	if cfg.Backend == "redis" && cfg.URL != "" {
		rb, err := newRedisBackend(cfg.URL)
		if err == nil {
			return rb
		}
		logger.Warn("redis unavailable, using in-memory hot cache",
			"url", cfg.URL, "error", err)
	}
	return newMemoryBackend(cfg.MaxEntries)
}

// TTL returns the configured entry lifetime.
func TTL(cfg types.HotCacheConfig) time.Duration {
	if cfg.TTLSeconds <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}
