package cache

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/warenbestand/internal/config"
	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:pw@redis.local:6379/3"})
	require.NoError(t, err)
	assert.Equal(t, "redis.local:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestDisabledClient(t *testing.T) {
	client, err := NewRedisClient(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestTTLs(t *testing.T) {
	assert.Equal(t, defaultMappingTTL, MappingTTL(config.CacheConfig{}))
	assert.Equal(t, 10*time.Second, MappingTTL(config.CacheConfig{MappingTTLSeconds: 10}))
	assert.Equal(t, defaultLockTTL, LockTTL(config.CacheConfig{LockTTLSeconds: -1}))
}

func TestMappingKey(t *testing.T) {
	a := mappingKey("s3://mapping.csv")
	assert.Equal(t, a, mappingKey(" s3://mapping.csv "))
	assert.NotEqual(t, a, mappingKey("s3://other.csv"))
	assert.Len(t, a, len(mappingKeyPrefix)+40)
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()

	c := NewMappingCache(nil, time.Minute)
	require.NoError(t, c.Set(ctx, "x", []domain.MappingEntry{{OriginalSKU: "1", MappedSKU: "2"}}))
	entries, ok, err := c.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entries)
	assert.NoError(t, c.InvalidateAll(ctx))

	l := NewBatchLocker(nil, 0)
	unlock, err := l.Lock(ctx)
	require.NoError(t, err)
	unlock()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Lock(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
