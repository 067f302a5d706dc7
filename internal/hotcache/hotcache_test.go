// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hotcache

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

func TestMemoryGetSet(t *testing.T) {
	m := newMemoryBackend(10)
	ctx := context.Background()

	_, err := m.Get(ctx, "geo:GSE1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "geo:GSE1", []byte("payload"), time.Minute))
	got, err := m.Get(ctx, "geo:GSE1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := newMemoryBackend(10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), -time.Second))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryLRUEviction(t *testing.T) {
	m := newMemoryBackend(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	// Touch k0 so k1 becomes the least recently used.
	_, err := m.Get(ctx, "k0")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "k3", []byte("v"), time.Minute))

	_, err = m.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss, "least recently used entry should be evicted")
	_, err = m.Get(ctx, "k0")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), m.Stats().Evictions)
}

func TestMemoryOverwriteKeepsSize(t *testing.T) {
	m := newMemoryBackend(2)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("one"), time.Minute))
	require.NoError(t, m.Set(ctx, "k", []byte("two"), time.Minute))
	require.NoError(t, m.Set(ctx, "other", []byte("v"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
	assert.Equal(t, int64(0), m.Stats().Evictions)
}

func TestMemoryDelete(t *testing.T) {
	m := newMemoryBackend(10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	// Deleting an absent key is not an error.
	assert.NoError(t, m.Delete(ctx, "gone"))
}

func TestNewDegradesToMemory(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	// Nothing listens on this port; construction must still succeed.
	b := New(types.HotCacheConfig{
		Backend: "redis",
		URL:     "redis://127.0.0.1:1/0",
	}, logger)
	defer b.Close()

	_, ok := b.(*memoryBackend)
	assert.True(t, ok, "expected in-memory fallback, got %T", b)
}

func TestTTLDefault(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, TTL(types.HotCacheConfig{}))
	assert.Equal(t, 90*time.Second, TTL(types.HotCacheConfig{TTLSeconds: 90}))
}
