// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omics-oracle/omics-oracle/internal/hotcache"
	"github.com/omics-oracle/omics-oracle/internal/store"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// Discoverer fills a cache miss by running the full discovery pipeline
// for a dataset. The orchestrator implements it.
type Discoverer interface {
	AutoDiscover(ctx context.Context, geoID string) (*types.GEOAggregate, error)
}

// CacheStats is the traffic snapshot exposed by GetStats.
type CacheStats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Promotions int64   `json:"promotions"`
	HitRate    float64 `json:"hit_rate"`
}

// TieredCache serves GEO aggregates from two tiers: a hot key-value
// store in front of the warm SQLite aggregate read. Hot entries are
// disposable; every value can be rebuilt from the warm tier, and a warm
// miss triggers discovery.
type TieredCache struct {
	hot      hotcache.Backend
	store    *store.Store
	discover Discoverer
	ttl      time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	stats CacheStats
}

// NewTieredCache wires the cache. discover may be nil, in which case a
// full miss returns store.ErrNotFound instead of triggering discovery.
func NewTieredCache(hot hotcache.Backend, st *store.Store, discover Discoverer, ttl time.Duration, logger *slog.Logger) *TieredCache {
	return &TieredCache{hot: hot, store: st, discover: discover, ttl: ttl, logger: logger}
}

func geoKey(geoID string) string { return "geo:" + geoID }

// Get returns the aggregate for a dataset: hot tier first, then the warm
// tier with promotion, then auto-discovery.
func (c *TieredCache) Get(ctx context.Context, geoID string) (*types.GEOAggregate, error) {
	if payload, err := c.hot.Get(ctx, geoKey(geoID)); err == nil {
		var agg types.GEOAggregate
		if err := json.Unmarshal(payload, &agg); err == nil {
			c.count(func(s *CacheStats) { s.Hits++ })
			return &agg, nil
		}
		// Undecodable hot entries are dropped, not served.
		c.hot.Delete(ctx, geoKey(geoID))
	} else if !errors.Is(err, hotcache.ErrMiss) {
		c.logger.Warn("hot tier read failed", "geo_id", geoID, "error", err)
	}

	agg, err := c.store.CompleteGEOData(ctx, geoID)
	if err == nil {
		c.count(func(s *CacheStats) { s.Promotions++ })
		c.promote(ctx, geoID, agg)
		return agg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	c.count(func(s *CacheStats) { s.Misses++ })
	if c.discover == nil {
		return nil, store.ErrNotFound
	}
	return c.discover.AutoDiscover(ctx, geoID)
}

// Update writes the aggregate through to both tiers. The warm tier is
// already current when the aggregate came from CompleteGEOData; callers
// holding hand-built aggregates persist them first.
func (c *TieredCache) Update(ctx context.Context, geoID string, agg *types.GEOAggregate) {
	c.promote(ctx, geoID, agg)
}

// Invalidate drops the hot entry and the citation-discovery cache for a
// dataset so the next read rebuilds from sources.
func (c *TieredCache) Invalidate(ctx context.Context, geoID string) error {
	if err := c.hot.Delete(ctx, geoKey(geoID)); err != nil {
		return err
	}
	return c.store.InvalidateCitationCache(ctx, geoID)
}

// InvalidateBatch invalidates several datasets, returning the first
// failure after attempting all of them.
func (c *TieredCache) InvalidateBatch(ctx context.Context, geoIDs []string) error {
	var firstErr error
	for _, id := range geoIDs {
		if err := c.Invalidate(ctx, id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("invalidating %s: %w", id, err)
		}
	}
	return firstErr
}

// GetStats returns the hit/miss counters with a derived hit rate.
func (c *TieredCache) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	if total := stats.Hits + stats.Misses + stats.Promotions; total > 0 {
		stats.HitRate = float64(stats.Hits+stats.Promotions) / float64(total)
	}
	return stats
}

func (c *TieredCache) promote(ctx context.Context, geoID string, agg *types.GEOAggregate) {
	payload, err := json.Marshal(agg)
	if err != nil {
		return
	}
	if err := c.hot.Set(ctx, geoKey(geoID), payload, c.ttl); err != nil {
		c.logger.Warn("hot tier write failed", "geo_id", geoID, "error", err)
	}
}

func (c *TieredCache) count(fn func(*CacheStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
