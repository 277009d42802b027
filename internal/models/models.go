/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidDestination is returned when a destination fails validation.
var ErrInvalidDestination = errors.New("invalid destination")

// Destination is one page shown by the kiosk for a fixed duration.
type Destination struct {
	ID              string `json:"id" yaml:"id"`
	URL             string `json:"url" yaml:"url"` // locator understood by the display driver
	DurationSeconds int    `json:"duration_seconds" yaml:"duration_seconds"`
	Name            string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Label returns the display name, falling back to the URL.
func (d Destination) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.URL
}

// RotationConfig is the ordered destination list plus rotation mode.
type RotationConfig struct {
	Destinations []Destination `json:"pages" yaml:"pages"`
	Loop         bool          `json:"loop" yaml:"loop"`
	AutoStart    bool          `json:"auto_start" yaml:"auto_start"`
}

// DefaultRotationConfig is used when nothing valid has been persisted.
func DefaultRotationConfig() RotationConfig {
	cfg := RotationConfig{
		Destinations: []Destination{
			{URL: "https://www.google.com", DurationSeconds: 30, Name: "Google"},
			{URL: "https://www.github.com", DurationSeconds: 45, Name: "GitHub"},
		},
		Loop:      true,
		AutoStart: false,
	}
	cfg.Normalize()
	return cfg
}

// Clone returns a deep copy, so a running rotation never observes later edits.
func (c RotationConfig) Clone() RotationConfig {
	out := c
	if c.Destinations != nil {
		out.Destinations = make([]Destination, len(c.Destinations))
		copy(out.Destinations, c.Destinations)
	}
	return out
}

// Normalize trims fields and assigns identifiers to destinations that lack one.
func (c *RotationConfig) Normalize() {
	for i := range c.Destinations {
		d := &c.Destinations[i]
		d.URL = strings.TrimSpace(d.URL)
		d.Name = strings.TrimSpace(d.Name)
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
	}
}

// Validate checks every destination. An empty list is valid to store but cannot be started.
func (c RotationConfig) Validate() error {
	seen := make(map[string]int, len(c.Destinations))
	for i, d := range c.Destinations {
		if strings.TrimSpace(d.URL) == "" {
			return fmt.Errorf("%w: page %d has no url", ErrInvalidDestination, i)
		}
		if d.DurationSeconds < 0 {
			return fmt.Errorf("%w: page %d has negative duration %d", ErrInvalidDestination, i, d.DurationSeconds)
		}
		if d.ID == "" {
			continue
		}
		if prev, ok := seen[d.ID]; ok {
			return fmt.Errorf("%w: pages %d and %d share id %q", ErrInvalidDestination, prev, i, d.ID)
		}
		seen[d.ID] = i
	}
	return nil
}

// TotalDurationSeconds is the configured length of one pass, excluding settle latency.
func (c RotationConfig) TotalDurationSeconds() int {
	total := 0
	for _, d := range c.Destinations {
		total += d.DurationSeconds
	}
	return total
}
