/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package configstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"github.com/friendsincode/grimnir_kiosk/internal/telemetry"
	"github.com/rs/zerolog"
)

// Source records where the manager's current configuration came from.
type Source string

const (
	SourceStore         Source = "store"
	SourceDefault       Source = "default"
	SourceLastKnownGood Source = "last_known_good"
)

// Manager fronts a Store. Load never fails: callers always get something
// startable (or an explicitly empty list someone saved).
type Manager struct {
	store  Store
	bus    *events.Bus
	logger zerolog.Logger

	mu       sync.RWMutex
	current  models.RotationConfig
	source   Source
	loaded   bool
	lastGood *models.RotationConfig
}

// NewManager creates a Manager around store. bus may be nil.
func NewManager(store Store, bus *events.Bus, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "configstore").Str("backend", store.Name()).Logger(),
	}
}

// Backend names the underlying store.
func (m *Manager) Backend() string { return m.store.Name() }

// Load reads the store and caches the result. Missing or invalid data yields
// the default configuration; a backend error keeps the last-known-good one.
func (m *Manager) Load(ctx context.Context) models.RotationConfig {
	cfg, source := m.load(ctx)

	m.mu.Lock()
	m.current = cfg
	m.source = source
	m.loaded = true
	if source == SourceStore {
		good := cfg.Clone()
		m.lastGood = &good
	}
	m.mu.Unlock()

	return cfg.Clone()
}

func (m *Manager) load(ctx context.Context) (models.RotationConfig, Source) {
	cfg, err := m.store.Load(ctx)
	if err == nil {
		err = cfg.Validate()
	}

	switch {
	case errors.Is(err, ErrNotFound):
		m.logger.Info().Msg("no persisted rotation config, using default")
		return models.DefaultRotationConfig(), SourceDefault

	case errors.Is(err, ErrMalformed), errors.Is(err, models.ErrInvalidDestination):
		telemetry.ConfigLoadFallbacksTotal.WithLabelValues("invalid").Inc()
		m.publish(events.EventConfigLoadFailure, events.Payload{"error": err.Error()})
		m.logger.Warn().Err(err).Msg("persisted rotation config is invalid, using default")
		return models.DefaultRotationConfig(), SourceDefault

	case err != nil:
		m.mu.RLock()
		lastGood := m.lastGood
		m.mu.RUnlock()

		telemetry.ConfigLoadFallbacksTotal.WithLabelValues("backend_error").Inc()
		m.publish(events.EventConfigLoadFailure, events.Payload{"error": err.Error()})
		if lastGood != nil {
			m.logger.Error().Err(err).Msg("config backend failed, keeping last known good config")
			return lastGood.Clone(), SourceLastKnownGood
		}
		m.logger.Error().Err(err).Msg("config backend failed, using default config")
		return models.DefaultRotationConfig(), SourceDefault
	}

	cfg.Normalize()
	return cfg, SourceStore
}

// Current returns the cached configuration, loading it on first use.
func (m *Manager) Current(ctx context.Context) models.RotationConfig {
	m.mu.RLock()
	if m.loaded {
		cfg := m.current.Clone()
		m.mu.RUnlock()
		return cfg
	}
	m.mu.RUnlock()
	return m.Load(ctx)
}

// Source reports where the cached configuration came from.
func (m *Manager) Source() Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source
}

// Save validates, normalizes and persists cfg, then returns the stored form.
// A running rotation keeps its own snapshot until it is restarted.
func (m *Manager) Save(ctx context.Context, cfg models.RotationConfig) (models.RotationConfig, error) {
	cfg = cfg.Clone()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		telemetry.ConfigSavesTotal.WithLabelValues(m.store.Name(), "invalid").Inc()
		return models.RotationConfig{}, err
	}

	if err := m.store.Save(ctx, cfg); err != nil {
		telemetry.ConfigSavesTotal.WithLabelValues(m.store.Name(), "failed").Inc()
		m.logger.Error().Err(err).Msg("failed to save rotation config")
		return models.RotationConfig{}, fmt.Errorf("save rotation config: %w", err)
	}

	m.mu.Lock()
	m.current = cfg
	m.source = SourceStore
	m.loaded = true
	good := cfg.Clone()
	m.lastGood = &good
	m.mu.Unlock()

	telemetry.ConfigSavesTotal.WithLabelValues(m.store.Name(), "ok").Inc()
	m.logger.Info().
		Int("pages", len(cfg.Destinations)).
		Bool("loop", cfg.Loop).
		Bool("auto_start", cfg.AutoStart).
		Msg("rotation config saved")
	m.publish(events.EventConfigUpdated, events.Payload{
		"total_pages": len(cfg.Destinations),
		"loop":        cfg.Loop,
		"auto_start":  cfg.AutoStart,
	})

	return cfg.Clone(), nil
}

// Reset persists the default configuration.
func (m *Manager) Reset(ctx context.Context) (models.RotationConfig, error) {
	return m.Save(ctx, models.DefaultRotationConfig())
}

func (m *Manager) publish(eventType events.EventType, payload events.Payload) {
	m.bus.Publish(eventType, payload)
}
