package cache

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("oracle", "extract_claims", "prompt", "{}")
	b := CacheKey("oracle", "extract_claims", "prompt", "{}")
	c := CacheKey("oracle", "extract_claims", "prompt2", "{}")

	assert.Equal(t, a, b, "same payload must hash to the same key")
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "sixc:v1:oracle:"))

	// Part boundaries are significant
	assert.NotEqual(t, CacheKey("ns", "ab", "c"), CacheKey("ns", "a", "bc"))
}

// exerciseStore runs the behaviour every store must share
func exerciseStore(t *testing.T, c Cache) {
	t.Helper()

	_, found := c.Get("missing")
	assert.False(t, found)

	require.NoError(t, c.Set("k1", []byte("first"), time.Hour))
	val, found := c.Get("k1")
	require.True(t, found)
	assert.Equal(t, "first", string(val))

	// Append-only: a second write of a present key keeps the first value
	require.NoError(t, c.Set("k1", []byte("second"), time.Hour))
	val, found = c.Get("k1")
	require.True(t, found)
	assert.Equal(t, "first", string(val))

	require.NoError(t, c.Delete("k1"))
	_, found = c.Get("k1")
	assert.False(t, found)

	require.NoError(t, c.Set("k2", []byte("v"), time.Hour))
	require.NoError(t, c.Clear())
	_, found = c.Get("k2")
	assert.False(t, found)
}

func TestMemoryCache(t *testing.T) {
	exerciseStore(t, NewMemoryCache(time.Hour, time.Minute))
}

func TestDiskCache(t *testing.T) {
	c := NewDiskCache(filepath.Join(t.TempDir(), "cache"), time.Hour)

	require.NoError(t, c.Set("sixc:v1:oracle:abc", []byte("payload"), 0))
	val, found := c.Get("sixc:v1:oracle:abc")
	require.True(t, found)
	assert.Equal(t, "payload", string(val))

	require.NoError(t, c.Delete("sixc:v1:oracle:abc"))
	require.NoError(t, c.Delete("sixc:v1:oracle:abc"), "deleting a missing key is not an error")
}

func TestDiskCacheExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	require.NoError(t, c.Set("k", []byte("v"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, found := c.Get("k")
	assert.False(t, found)
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	defer c.Close()

	exerciseStore(t, c)
}

func TestSQLiteCacheInMemory(t *testing.T) {
	c, err := NewSQLiteCache(":memory:", time.Hour)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k", []byte("v"), 0))
	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, "v", string(val))
}

func TestSQLiteCacheExpiredEntryIsReplaced(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set("k", []byte("old"), time.Minute))

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, found := c.Get("k")
	assert.False(t, found)

	require.NoError(t, c.Set("k", []byte("new"), time.Minute))
	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, "new", string(val))
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, time.Hour, zap.NewNop())
	defer c.Close()

	exerciseStore(t, c)
}

func TestRedisCacheTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := DialRedis(context.Background(), mr.Addr(), 0, time.Hour, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found := c.Get("k")
	assert.False(t, found)
}

func TestLayeredCachePromotes(t *testing.T) {
	memory := NewMemoryCache(time.Hour, time.Minute)
	store := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayered(memory, store)

	require.NoError(t, store.Set("k", []byte("from-store"), 0))
	_, found := memory.Get("k")
	require.False(t, found)

	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, "from-store", string(val))

	val, found = memory.Get("k")
	require.True(t, found, "store hit should be promoted to memory")
	assert.Equal(t, "from-store", string(val))
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     model.CacheConfig
		wantErr bool
	}{
		{"disabled", model.CacheConfig{Enabled: false, Backend: "redis"}, false},
		{"memory", model.CacheConfig{Enabled: true, Backend: "memory", TTL: time.Hour}, false},
		{"disk", model.CacheConfig{Enabled: true, Backend: "disk", Dir: dir, TTL: time.Hour}, false},
		{"layered", model.CacheConfig{Enabled: true, Backend: "layered", Dir: dir, TTL: time.Hour}, false},
		{"sqlite", model.CacheConfig{Enabled: true, Backend: "sqlite", SQLite: filepath.Join(dir, "c.db"), TTL: time.Hour}, false},
		{"unknown", model.CacheConfig{Enabled: true, Backend: "memcached"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(context.Background(), tt.cfg, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer Close(c)

			require.NoError(t, c.Set("k", []byte("v"), 0))
			val, found := c.Get("k")
			require.True(t, found)
			assert.Equal(t, "v", string(val))
		})
	}
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.NotContains(t, ExpandHome("~/x"), "~")
}
