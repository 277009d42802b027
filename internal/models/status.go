/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// RotationPhase defines the phases of the rotation state machine.
type RotationPhase string

const (
	RotationIdle       RotationPhase = "idle"       // Nothing running
	RotationStarting   RotationPhase = "starting"   // Acquiring the display driver
	RotationDisplaying RotationPhase = "displaying" // A destination is on screen
	RotationAdvancing  RotationPhase = "advancing"  // Moving to the next destination
)

// StatusSnapshot is an immutable point-in-time view of the rotation.
type StatusSnapshot struct {
	Running             bool          `json:"is_running"`
	Phase               RotationPhase `json:"state"`
	CurrentIndex        *int          `json:"current_page_index"`
	CurrentDestination  *Destination  `json:"current_page"`
	RemainingSeconds    *int          `json:"time_remaining"`
	TotalDestinations   int           `json:"total_pages"`
	GeneratedAt         time.Time     `json:"last_updated"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	Loop                bool          `json:"loop"`
	CyclesCompleted     int           `json:"cycles_completed"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
}

// Payload flattens the snapshot for event bus consumers.
func (s StatusSnapshot) Payload() map[string]any {
	payload := map[string]any{
		"is_running":           s.Running,
		"state":                string(s.Phase),
		"total_pages":          s.TotalDestinations,
		"cycles_completed":     s.CyclesCompleted,
		"consecutive_failures": s.ConsecutiveFailures,
		"last_updated":         s.GeneratedAt,
	}
	if s.CurrentIndex != nil {
		payload["current_page_index"] = *s.CurrentIndex
	}
	if s.CurrentDestination != nil {
		payload["destination_id"] = s.CurrentDestination.ID
		payload["url"] = s.CurrentDestination.URL
		payload["name"] = s.CurrentDestination.Name
	}
	if s.RemainingSeconds != nil {
		payload["time_remaining"] = *s.RemainingSeconds
	}
	if s.LastError != "" {
		payload["last_error"] = s.LastError
	}
	return payload
}
