/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package display

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type logHandle struct {
	id string

	mu       sync.Mutex
	released bool
	last     string
}

func (h *logHandle) ID() string { return h.id }

// LogDriver records destinations in the log instead of rendering them.
// It is used on headless hosts and for dry runs.
type LogDriver struct {
	logger zerolog.Logger
}

// NewLogDriver creates a LogDriver.
func NewLogDriver(logger zerolog.Logger) *LogDriver {
	return &LogDriver{logger: logger.With().Str("driver", "log").Logger()}
}

// Name implements Driver.
func (d *LogDriver) Name() string { return "log" }

// Acquire implements Driver.
func (d *LogDriver) Acquire(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquire, err)
	}
	h := &logHandle{id: uuid.NewString()}
	d.logger.Info().Str("handle", h.id).Msg("display acquired")
	return h, nil
}

// Show implements Driver.
func (d *LogDriver) Show(ctx context.Context, h Handle, locator string) error {
	lh, ok := h.(*logHandle)
	if !ok {
		return ErrForeignHandle
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrShowFailed, err)
	}

	lh.mu.Lock()
	defer lh.mu.Unlock()
	if lh.released {
		return ErrReleased
	}
	lh.last = locator
	d.logger.Info().Str("handle", lh.id).Str("url", locator).Msg("showing destination")
	return nil
}

// Release implements Driver.
func (d *LogDriver) Release(h Handle) error {
	lh, ok := h.(*logHandle)
	if !ok {
		return ErrForeignHandle
	}
	lh.mu.Lock()
	lh.released = true
	lh.mu.Unlock()
	d.logger.Info().Str("handle", lh.id).Msg("display released")
	return nil
}
