/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/infoscreen/internal/events"
)

const channelPrefix = "infoscreen:events:"

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisBus mirrors events to other instances over Redis pub/sub. It is used
// when Redis is deployed for caching but no NATS server is available.
type RedisBus struct {
	local  *events.Bus
	client *redis.Client
	pubsub *redis.PubSub
	nodeID string
	logger zerolog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisBus connects to Redis and starts relaying remote events to local subscribers.
func NewRedisBus(cfg RedisConfig, logger zerolog.Logger) (*RedisBus, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	logger = logger.With().Str("component", "eventbus").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cancel()
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	pubsub := client.PSubscribe(ctx, channelPrefix+"*")
	// Wait for the subscription confirmation so no event published after
	// construction is missed.
	if _, err := pubsub.Receive(pingCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}

	rb := &RedisBus{
		local:  events.NewBus(),
		client: client,
		pubsub: pubsub,
		nodeID: generateNodeID(),
		logger: logger,
		cancel: cancel,
	}

	rb.wg.Add(1)
	go rb.receive(ctx)

	logger.Info().Str("addr", cfg.Addr).Str("node_id", rb.nodeID).Msg("redis event bus connected")
	return rb, nil
}

// Subscribe registers a local subscriber for an event type.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	return rb.local.Subscribe(eventType)
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Publish delivers locally, then forwards to Redis. Forwarding failures are
// logged; local delivery has already happened.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("encode event for redis")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, channelPrefix+string(eventType), data).Err(); err != nil {
		rb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("publish event to redis")
	}
}

func (rb *RedisBus) receive(ctx context.Context) {
	defer rb.wg.Done()

	ch := rb.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			wire, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				rb.logger.Debug().Err(err).Str("channel", msg.Channel).Msg("dropping malformed redis message")
				continue
			}
			if !strings.HasSuffix(msg.Channel, string(wire.EventType)) {
				rb.logger.Debug().Str("channel", msg.Channel).Str("event", string(wire.EventType)).Msg("event type does not match channel")
				continue
			}
			relay(rb.local, wire, rb.nodeID)
		}
	}
}

// Close stops the receiver and closes the Redis connection.
func (rb *RedisBus) Close() error {
	var err error
	rb.closeOnce.Do(func() {
		rb.cancel()
		err = errors.Join(rb.pubsub.Close(), rb.client.Close())
		rb.wg.Wait()
	})
	return err
}
