/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Connection pooling
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ChannelPrefix is prepended to the event type to form the channel name.
	ChannelPrefix string
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      4,
		MinIdleConns:  1,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		ChannelPrefix: "kiosk.",
	}
}

// RedisSink publishes events on Redis pub/sub channels.
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink connects to Redis. A failed initial ping is logged but not fatal;
// the forwarder circuit breaker handles an unavailable server.
func NewRedisSink(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis connection failed, events will be retried")
	} else {
		logger.Info().Str("addr", cfg.Addr).Msg("Redis event sink initialized")
	}

	return &RedisSink{client: client, prefix: cfg.ChannelPrefix}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Channel returns the pub/sub channel for an event type.
func (s *RedisSink) Channel(eventType events.EventType) string {
	return s.prefix + string(eventType)
}

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, eventType events.EventType, data []byte) error {
	if err := s.client.Publish(ctx, s.Channel(eventType), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ping implements Sink.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Sink.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
