package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/warenbestand/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMappingTTL = 5 * time.Minute
	defaultLockTTL    = 30 * time.Second
)

// NewRedisClient connects to Redis. It returns nil without error when caching is disabled.
func NewRedisClient(cfg config.CacheConfig) (*redis.Client, error) {
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
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// MappingTTL returns the configured mapping cache lifetime
func MappingTTL(cfg config.CacheConfig) time.Duration {
	return secondsOr(cfg.MappingTTLSeconds, defaultMappingTTL)
}

// LockTTL returns the configured lifetime of a ledger batch lock
func LockTTL(cfg config.CacheConfig) time.Duration {
	return secondsOr(cfg.LockTTLSeconds, defaultLockTTL)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	ttl := time.Duration(seconds) * time.Second
	if ttl <= 0 {
		return fallback
	}
	return ttl
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

func deleteKeysWithPrefix(ctx context.Context, client *redis.Client, prefix string, batchSize int64) error {
	var cursor uint64
	pattern := prefix + "*"
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, batchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}

		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}
