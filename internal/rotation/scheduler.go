/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rotation cycles the kiosk display through a configured list of destinations.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/grimnir_kiosk/internal/display"
	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"github.com/friendsincode/grimnir_kiosk/internal/telemetry"
	"github.com/rs/zerolog"
)

var (
	// ErrEmptyConfiguration is returned by Start when there is nothing to show.
	ErrEmptyConfiguration = errors.New("rotation has no destinations")
	// ErrDriverAcquisition is returned by Start when the display could not be initialized.
	ErrDriverAcquisition = errors.New("display driver acquisition failed")
)

const (
	DefaultSettleLatency = 2 * time.Second
	DefaultPollInterval  = 250 * time.Millisecond
	maxPollInterval      = time.Second
)

// Options tune a Scheduler. A zero PollInterval or nil Now selects the default.
type Options struct {
	// SettleLatency is the time a destination is given to load before its
	// display_seconds start counting.
	SettleLatency time.Duration
	// PollInterval bounds how long a stop can go unnoticed by the wait step.
	PollInterval time.Duration
	Bus          *events.Bus
	Now          func() time.Time
}

// state is the mutable scheduler state. Guarded by Scheduler.mu.
type state struct {
	phase          models.RotationPhase
	index          int
	cycleStartedAt time.Time // zero when no display phase is active
	displayFrom    time.Time // zero until Show returns for the current destination
	startedAt      time.Time
	config         models.RotationConfig
	hasConfig      bool

	cycles              int
	consecutiveFailures int
	lastError           string
}

// run is one Start..Stop lifetime. Only the loop goroutine touches the handle
// once it is running.
type run struct {
	cancel      context.CancelFunc
	handle      display.Handle
	releaseOnce sync.Once
	done        chan struct{}
}

// Scheduler owns the display driver and advances through destinations in a
// background goroutine. Status may be called concurrently at any time.
type Scheduler struct {
	driver display.Driver
	settle time.Duration
	poll   time.Duration
	bus    *events.Bus
	now    func() time.Time
	logger zerolog.Logger

	ctlMu sync.Mutex // serializes Start, Stop and Restart

	mu    sync.RWMutex
	state state
	run   *run
}

// New creates an idle scheduler.
func New(driver display.Driver, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.SettleLatency < 0 {
		opts.SettleLatency = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollInterval > maxPollInterval {
		opts.PollInterval = maxPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		driver: driver,
		settle: opts.SettleLatency,
		poll:   opts.PollInterval,
		bus:    opts.Bus,
		now:    opts.Now,
		logger: logger.With().Str("component", "rotation").Logger(),
		state:  state{phase: models.RotationIdle},
	}
}

// SettleLatency returns the configured settle latency.
func (s *Scheduler) SettleLatency() time.Duration { return s.settle }

// Start begins rotating through cfg. Calling Start while a rotation is active
// is a no-op that returns the current status. The config is copied, so later
// edits by the caller do not affect the running rotation.
func (s *Scheduler) Start(ctx context.Context, cfg models.RotationConfig) (models.StatusSnapshot, error) {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "rotation.start", map[string]any{
		"destinations": len(cfg.Destinations),
		"loop":         cfg.Loop,
	})
	defer span.End()

	s.mu.RLock()
	active := s.run != nil
	s.mu.RUnlock()
	if active {
		telemetry.RotationStartsTotal.WithLabelValues("already_running").Inc()
		s.logger.Debug().Msg("start ignored, rotation already running")
		return s.Status(), nil
	}

	if len(cfg.Destinations) == 0 {
		telemetry.RotationStartsTotal.WithLabelValues("empty").Inc()
		telemetry.RecordError(span, ErrEmptyConfiguration)
		s.logger.Warn().Msg("start refused, no destinations configured")
		return s.Status(), ErrEmptyConfiguration
	}

	snapshot := cfg.Clone()

	s.mu.Lock()
	s.state.phase = models.RotationStarting
	s.mu.Unlock()

	handle, err := s.driver.Acquire(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrDriverAcquisition, err)
		s.mu.Lock()
		s.state.phase = models.RotationIdle
		s.state.lastError = err.Error()
		s.mu.Unlock()

		telemetry.RotationStartsTotal.WithLabelValues("acquire_failed").Inc()
		telemetry.RecordError(span, err)
		s.logger.Error().Err(err).Str("driver", s.driver.Name()).Msg("failed to acquire display")
		return s.Status(), err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, handle: handle, done: make(chan struct{})}

	s.mu.Lock()
	s.run = r
	s.state = state{
		phase:     models.RotationDisplaying,
		index:     0,
		startedAt: s.now(),
		config:    snapshot,
		hasConfig: true,
	}
	s.mu.Unlock()

	telemetry.RotationStartsTotal.WithLabelValues("ok").Inc()
	telemetry.RotationRunning.Set(1)
	telemetry.RotationCurrentIndex.Set(0)

	s.logger.Info().
		Int("destinations", len(snapshot.Destinations)).
		Bool("loop", snapshot.Loop).
		Str("driver", s.driver.Name()).
		Msg("rotation started")
	s.publish(events.EventRotationStarted, events.Payload{
		"total_pages": len(snapshot.Destinations),
		"loop":        snapshot.Loop,
	})

	go s.loop(runCtx, r)

	return s.Status(), nil
}

// Stop halts the rotation. It is safe to call at any time and returns without
// waiting; the background loop releases the display as it exits.
func (s *Scheduler) Stop() {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() *run {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.state.phase = models.RotationIdle
	s.state.cycleStartedAt = time.Time{}
	s.state.displayFrom = time.Time{}
	s.mu.Unlock()

	if r == nil {
		return nil
	}

	r.cancel()
	telemetry.RotationRunning.Set(0)

	s.logger.Info().Msg("rotation stopped")
	s.publish(events.EventRotationStopped, events.Payload{})
	return r
}

// Restart stops any active rotation, waits for its display to be released,
// then starts cfg.
func (s *Scheduler) Restart(ctx context.Context, cfg models.RotationConfig) (models.StatusSnapshot, error) {
	s.ctlMu.Lock()
	r := s.stopLocked()
	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			s.ctlMu.Unlock()
			return s.Status(), ctx.Err()
		}
	}
	s.ctlMu.Unlock()
	return s.Start(ctx, cfg)
}

// Shutdown stops the rotation and waits for the background loop to exit or ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.ctlMu.Lock()
	r := s.stopLocked()
	s.ctlMu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release frees the display handle once per run. Failures are logged only.
func (s *Scheduler) release(r *run) {
	r.releaseOnce.Do(func() {
		if err := s.driver.Release(r.handle); err != nil {
			telemetry.DriverReleaseFailuresTotal.Inc()
			s.logger.Warn().Err(err).Str("driver", s.driver.Name()).Msg("display release failed")
		}
	})
}

func (s *Scheduler) loop(ctx context.Context, r *run) {
	defer close(r.done)
	defer s.release(r)

	for {
		s.mu.Lock()
		if s.run != r {
			s.mu.Unlock()
			return
		}
		idx := s.state.index
		dest := s.state.config.Destinations[idx]
		started := s.now()
		s.state.cycleStartedAt = started
		s.state.displayFrom = time.Time{}
		s.state.phase = models.RotationDisplaying
		s.mu.Unlock()

		telemetry.RotationCurrentIndex.Set(float64(idx))
		s.show(ctx, r, idx, dest)
		if ctx.Err() != nil {
			return
		}

		// The slot starts once the page has loaded and settled.
		from := started.Add(s.settle)
		if loaded := s.now(); loaded.After(from) {
			from = loaded
		}
		s.mu.Lock()
		if s.run == r {
			s.state.displayFrom = from
		}
		s.mu.Unlock()

		deadline := from.Add(time.Duration(dest.DurationSeconds) * time.Second)
		if !s.waitUntil(ctx, deadline) {
			return
		}

		if !s.advance(r) {
			return
		}
	}
}

// show asks the driver for the destination. A failure still consumes the slot.
func (s *Scheduler) show(ctx context.Context, r *run, idx int, dest models.Destination) {
	spanCtx, span := telemetry.StartSpan(ctx, "rotation.show", map[string]any{
		"destination_id": dest.ID,
		"index":          idx,
	})
	defer span.End()

	begin := time.Now()
	err := s.driver.Show(spanCtx, r.handle, dest.URL)
	telemetry.RotationShowDuration.Observe(time.Since(begin).Seconds())

	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state.consecutiveFailures++
		s.state.lastError = err.Error()
	} else {
		s.state.consecutiveFailures = 0
	}
	failures := s.state.consecutiveFailures
	s.mu.Unlock()

	payload := events.Payload{
		"destination_id":     dest.ID,
		"url":                dest.URL,
		"name":               dest.Name,
		"current_page_index": idx,
		"duration_seconds":   dest.DurationSeconds,
	}

	if err != nil {
		telemetry.RotationShowsTotal.WithLabelValues("failed").Inc()
		telemetry.RecordError(span, err)
		s.logger.Error().
			Err(err).
			Str("destination_id", dest.ID).
			Str("url", dest.URL).
			Int("index", idx).
			Int("consecutive_failures", failures).
			Msg("failed to show destination, keeping its slot")
		payload["error"] = err.Error()
		s.publish(events.EventShowFailed, payload)
		return
	}

	telemetry.RotationShowsTotal.WithLabelValues("ok").Inc()
	s.logger.Info().
		Str("destination_id", dest.ID).
		Str("url", dest.URL).
		Int("index", idx).
		Int("duration_seconds", dest.DurationSeconds).
		Msg("showing destination")
	s.publish(events.EventDestinationShown, payload)
}

// waitUntil sleeps in poll sized steps until deadline. It returns false if the run was cancelled.
func (s *Scheduler) waitUntil(ctx context.Context, deadline time.Time) bool {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return ctx.Err() == nil
		}
		if remaining > s.poll {
			remaining = s.poll
		}
		timer.Reset(remaining)

		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	}
}

// advance moves to the next destination. It returns false when the run is over.
func (s *Scheduler) advance(r *run) bool {
	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return false
	}

	s.state.phase = models.RotationAdvancing
	next := s.state.index + 1
	total := len(s.state.config.Destinations)
	wrapped := next >= total
	finished := wrapped && !s.state.config.Loop

	if wrapped {
		s.state.cycles++
		next = 0
	}
	cycles := s.state.cycles

	if finished {
		s.run = nil
		s.state.phase = models.RotationIdle
		s.state.cycleStartedAt = time.Time{}
		s.state.displayFrom = time.Time{}
		s.state.index = 0
	} else {
		s.state.index = next
	}
	s.mu.Unlock()

	if wrapped {
		telemetry.RotationCyclesTotal.Inc()
		s.publish(events.EventCycleCompleted, events.Payload{"cycles_completed": cycles})
	}

	if finished {
		r.cancel()
		telemetry.RotationRunning.Set(0)
		s.logger.Info().Int("cycles_completed", cycles).Msg("rotation finished, loop disabled")
		s.publish(events.EventRotationFinished, events.Payload{"cycles_completed": cycles})
		return false
	}
	return true
}

func (s *Scheduler) publish(eventType events.EventType, payload events.Payload) {
	s.bus.Publish(eventType, payload)
}
