/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_kiosk/internal/events"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Name          string
	Token         string
	SubjectPrefix string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "grimnir-kiosk",
		SubjectPrefix: "kiosk.events.",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSSink publishes events on NATS subjects.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSink connects to NATS.
func NewNATSSink(cfg NATSConfig, logger zerolog.Logger) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("NATS event sink initialized")
	return &NATSSink{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

// Name implements Sink.
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject for an event type.
func (s *NATSSink) Subject(eventType events.EventType) string {
	return s.prefix + string(eventType)
}

// Send implements Sink.
func (s *NATSSink) Send(_ context.Context, eventType events.EventType, data []byte) error {
	if err := s.conn.Publish(s.Subject(eventType), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Ping implements Sink.
func (s *NATSSink) Ping(ctx context.Context) error {
	if !s.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return s.conn.Flush()
	}
	return s.conn.FlushTimeout(time.Until(deadline))
}

// Close implements Sink.
func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}
