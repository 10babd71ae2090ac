package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	mappingKeyPrefix     = "mapping:"
	mappingScanBatchSize = 100
)

// MappingCache keeps parsed mapping tables keyed by their source URI
type MappingCache interface {
	Get(ctx context.Context, uri string) ([]domain.MappingEntry, bool, error)
	Set(ctx context.Context, uri string, entries []domain.MappingEntry) error
	InvalidateAll(ctx context.Context) error
}

type redisMappingCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopMappingCache struct{}

// NewMappingCache returns a Redis backed cache, or a no-op cache when client is nil
func NewMappingCache(client *redis.Client, ttl time.Duration) MappingCache {
	if client == nil {
		return &noopMappingCache{}
	}
	if ttl <= 0 {
		ttl = defaultMappingTTL
	}
	return &redisMappingCache{
		client: client,
		ttl:    ttl,
	}
}

func NewNoopMappingCache() MappingCache {
	return &noopMappingCache{}
}

func (c *redisMappingCache) Get(ctx context.Context, uri string) ([]domain.MappingEntry, bool, error) {
	payload, err := c.client.Get(ctx, mappingKey(uri)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entries []domain.MappingEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, false, fmt.Errorf("decode mapping cache: %w", err)
	}
	return entries, true, nil
}

func (c *redisMappingCache) Set(ctx context.Context, uri string, entries []domain.MappingEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode mapping cache: %w", err)
	}
	if err := c.client.Set(ctx, mappingKey(uri), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisMappingCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, mappingKeyPrefix, mappingScanBatchSize)
}

func (n *noopMappingCache) Get(ctx context.Context, uri string) ([]domain.MappingEntry, bool, error) {
	return nil, false, nil
}

func (n *noopMappingCache) Set(ctx context.Context, uri string, entries []domain.MappingEntry) error {
	return nil
}

func (n *noopMappingCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func mappingKey(uri string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(uri)))
	return mappingKeyPrefix + hex.EncodeToString(sum[:])
}
