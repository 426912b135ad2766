package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig carries connection settings for the Redis-backed provider.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// RedisProvider implements Provider on a Redis (or Valkey) server. It holds
// per-feed window snapshots that admin surfaces read without touching the
// run loops.
type RedisProvider struct {
	client *redis.Client
}

// NewRedisProvider connects and pings the server before returning.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache ping failed: %w", err)
	}
	return &RedisProvider{client: client}, nil
}

// Get fetches a key, mapping redis.Nil onto ErrCacheMiss.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return value, nil
}

// Set stores a key with the given ttl.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.client.Set(ctx, key, value, ttl).Err()
}

// Del removes a key.
func (p *RedisProvider) Del(ctx context.Context, key string) error {
	return p.client.Del(ctx, key).Err()
}

// Close releases the underlying connection pool.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
