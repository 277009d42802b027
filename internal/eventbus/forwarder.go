/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/friendsincode/grimnir_kiosk/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink delivers serialized events to an external broker.
type Sink interface {
	Name() string
	Send(ctx context.Context, eventType events.EventType, data []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// ForwarderConfig tunes the circuit breaker around a sink.
type ForwarderConfig struct {
	MaxFailures   int
	CheckInterval time.Duration
	SendTimeout   time.Duration
}

// DefaultForwarderConfig returns default forwarder configuration.
func DefaultForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
		SendTimeout:   2 * time.Second,
	}
}

// Forwarder relays local bus events to a Sink. The local bus stays authoritative;
// a broken sink only stops the fan-out.
type Forwarder struct {
	bus    *events.Bus
	sink   Sink
	cfg    ForwarderConfig
	nodeID string
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	tripped   bool
	failCount int
	lastCheck time.Time
	forwarded int64
	dropped   int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewForwarder creates a forwarder for sink. An empty nodeID gets a generated one.
func NewForwarder(bus *events.Bus, sink Sink, cfg ForwarderConfig, nodeID string, logger zerolog.Logger) *Forwarder {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultForwarderConfig().MaxFailures
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultForwarderConfig().CheckInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultForwarderConfig().SendTimeout
	}
	if nodeID == "" {
		nodeID = GenerateNodeID()
	}
	return &Forwarder{
		bus:    bus,
		sink:   sink,
		cfg:    cfg,
		nodeID: nodeID,
		logger: logger.With().Str("component", "eventbus").Str("sink", sink.Name()).Logger(),
		now:    time.Now,
	}
}

// Start subscribes to every event type and relays until ctx is cancelled or Close is called.
func (f *Forwarder) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	for _, eventType := range events.AllTypes() {
		sub := f.bus.Subscribe(eventType)
		f.wg.Add(1)
		go f.relay(ctx, eventType, sub)
	}

	f.logger.Info().Str("node_id", f.nodeID).Msg("event forwarder started")
}

func (f *Forwarder) relay(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	defer f.wg.Done()
	defer f.bus.Unsubscribe(eventType, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			f.forward(ctx, eventType, payload)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, eventType events.EventType, payload events.Payload) {
	if !f.allow(ctx) {
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		telemetry.EventsForwardedTotal.WithLabelValues(f.sink.Name(), "dropped").Inc()
		return
	}

	data, err := marshalMessage(eventType, payload, f.nodeID, f.now())
	if err != nil {
		f.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, f.cfg.SendTimeout)
	defer cancel()

	if err := f.sink.Send(sendCtx, eventType, data); err != nil {
		f.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to forward event")
		telemetry.EventsForwardedTotal.WithLabelValues(f.sink.Name(), "failed").Inc()
		f.handleFailure()
		return
	}

	f.mu.Lock()
	f.failCount = 0
	f.forwarded++
	f.mu.Unlock()
	telemetry.EventsForwardedTotal.WithLabelValues(f.sink.Name(), "ok").Inc()

	f.logger.Debug().Str("event_type", string(eventType)).Msg("forwarded event")
}

// allow reports whether the sink should be tried, probing it once per CheckInterval while tripped.
func (f *Forwarder) allow(ctx context.Context) bool {
	f.mu.Lock()
	if !f.tripped {
		f.mu.Unlock()
		return true
	}
	if f.now().Sub(f.lastCheck) < f.cfg.CheckInterval {
		f.mu.Unlock()
		return false
	}
	f.lastCheck = f.now()
	f.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, f.cfg.SendTimeout)
	defer cancel()
	if err := f.sink.Ping(pingCtx); err != nil {
		f.logger.Debug().Err(err).Msg("sink still unavailable")
		return false
	}

	f.mu.Lock()
	f.tripped = false
	f.failCount = 0
	f.mu.Unlock()
	f.logger.Info().Msg("sink recovered, resuming forwarding")
	return true
}

func (f *Forwarder) handleFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failCount++
	if f.failCount >= f.cfg.MaxFailures && !f.tripped {
		f.logger.Warn().Int("fail_count", f.failCount).Msg("sink failure threshold reached, pausing forwarding")
		f.tripped = true
		f.lastCheck = f.now()
	}
}

// ForwarderStats is a snapshot of forwarding counters.
type ForwarderStats struct {
	Sink      string `json:"sink"`
	Tripped   bool   `json:"tripped"`
	Forwarded int64  `json:"forwarded"`
	Dropped   int64  `json:"dropped"`
}

// Stats returns the current counters.
func (f *Forwarder) Stats() ForwarderStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ForwarderStats{
		Sink:      f.sink.Name(),
		Tripped:   f.tripped,
		Forwarded: f.forwarded,
		Dropped:   f.dropped,
	}
}

// Close stops relaying and closes the sink.
func (f *Forwarder) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	if err := f.sink.Close(); err != nil {
		return fmt.Errorf("close %s sink: %w", f.sink.Name(), err)
	}
	f.logger.Info().Msg("event forwarder closed")
	return nil
}

// message is the envelope written to external brokers.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string, at time.Time) ([]byte, error) {
	msg := message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: at.UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	return &msg, nil
}

// GenerateNodeID returns a random node identifier for envelopes.
func GenerateNodeID() string {
	return "kiosk-" + uuid.NewString()[:8]
}
