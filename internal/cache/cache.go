/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for published playlists.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultManifestTTL       = 1 * time.Hour
	DefaultInfoscreenListTTL = 5 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyInfoscreenList = "infoscreen:cache:infoscreens"
	KeyManifest       = "infoscreen:cache:manifest:" // + infoscreen_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ManifestTTL       time.Duration
	InfoscreenListTTL time.Duration

	// DisableOnError turns the cache off after the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:         "localhost:6379",
		ManifestTTL:       DefaultManifestTTL,
		InfoscreenListTTL: DefaultInfoscreenListTTL,
		DisableOnError:    true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// behaves like a disabled cache.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("cache: redis address is required")
	}
	logger = logger.With().Str("component", "cache").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return &Cache{logger: logger, config: cfg, disabled: true}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return &Cache{client: client, logger: logger, config: cfg}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) getBytes(ctx context.Context, key string) ([]byte, bool) {
	if !c.IsAvailable() {
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get")
		return nil, false
	}
	return data, true
}

func (c *Cache) setBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

func (c *Cache) delete(ctx context.Context, keys ...string) error {
	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// SCAN instead of KEYS
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.delete(ctx, keys...); err != nil {
				return err
			}
		}
		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}

// Manifest caching methods

// GetManifest returns the encoded manifest last published for a screen.
func (c *Cache) GetManifest(ctx context.Context, infoscreenID string) ([]byte, bool) {
	data, ok := c.getBytes(ctx, KeyManifest+infoscreenID)
	if ok {
		c.logger.Debug().Str("infoscreen_id", infoscreenID).Msg("manifest cache hit")
	}
	return data, ok
}

// SetManifest caches an encoded manifest.
func (c *Cache) SetManifest(ctx context.Context, infoscreenID string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("cache manifest %s: not valid JSON", infoscreenID)
	}
	if !c.IsAvailable() {
		return nil
	}
	return c.setBytes(ctx, KeyManifest+infoscreenID, data, c.config.ManifestTTL)
}

// InvalidateManifest removes a screen's manifest from cache.
func (c *Cache) InvalidateManifest(ctx context.Context, infoscreenID string) error {
	return c.delete(ctx, KeyManifest+infoscreenID)
}

// InvalidateAllManifests removes every cached manifest.
func (c *Cache) InvalidateAllManifests(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Msg("invalidating all manifests")
	return c.deletePattern(ctx, KeyManifest+"*")
}

// Infoscreen list caching methods

// CachedInfoscreen represents a cached infoscreen record.
type CachedInfoscreen struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Location        string `json:"location"`
	MinRegularSlots int    `json:"min_regular_slots"`
	MinEventSlots   int    `json:"min_event_slots"`
	SlotSeconds     int    `json:"slot_seconds"`
	Active          bool   `json:"active"`
}

// GetInfoscreenList retrieves the cached list of infoscreens.
func (c *Cache) GetInfoscreenList(ctx context.Context) ([]CachedInfoscreen, bool) {
	data, ok := c.getBytes(ctx, KeyInfoscreenList)
	if !ok {
		return nil, false
	}
	var screens []CachedInfoscreen
	if err := json.Unmarshal(data, &screens); err != nil {
		c.logger.Debug().Err(err).Msg("failed to unmarshal cached infoscreen list")
		return nil, false
	}
	return screens, true
}

// SetInfoscreenList caches the list of infoscreens.
func (c *Cache) SetInfoscreenList(ctx context.Context, screens []CachedInfoscreen) error {
	if !c.IsAvailable() {
		return nil
	}
	data, err := json.Marshal(screens)
	if err != nil {
		return fmt.Errorf("marshal infoscreen list: %w", err)
	}
	return c.setBytes(ctx, KeyInfoscreenList, data, c.config.InfoscreenListTTL)
}

// InvalidateInfoscreenList removes the infoscreen list from cache.
func (c *Cache) InvalidateInfoscreenList(ctx context.Context) error {
	return c.delete(ctx, KeyInfoscreenList)
}
