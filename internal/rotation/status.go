/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"time"

	"github.com/friendsincode/grimnir_kiosk/internal/models"
)

// Status returns a point-in-time snapshot. It never blocks on the display driver.
func (s *Scheduler) Status() models.StatusSnapshot {
	s.mu.RLock()
	st := s.state
	running := s.run != nil
	s.mu.RUnlock()

	now := s.now()
	snap := models.StatusSnapshot{
		Running:             running,
		Phase:               st.phase,
		GeneratedAt:         now,
		Loop:                st.config.Loop,
		CyclesCompleted:     st.cycles,
		ConsecutiveFailures: st.consecutiveFailures,
		LastError:           st.lastError,
	}
	if st.hasConfig {
		snap.TotalDestinations = len(st.config.Destinations)
	}
	if !running {
		return snap
	}

	started := st.startedAt
	snap.StartedAt = &started

	if st.index < 0 || st.index >= len(st.config.Destinations) {
		return snap
	}
	idx := st.index
	dest := st.config.Destinations[idx]
	snap.CurrentIndex = &idx
	snap.CurrentDestination = &dest

	// Until Show returns the full duration is still ahead.
	remaining := dest.DurationSeconds
	if !st.cycleStartedAt.IsZero() && !st.displayFrom.IsZero() {
		remaining = RemainingSeconds(dest.DurationSeconds, now.Sub(st.cycleStartedAt), st.displayFrom.Sub(st.cycleStartedAt))
	}
	snap.RemainingSeconds = &remaining
	return snap
}

// RemainingSeconds is the display time left for a destination, excluding the
// settle time (the load and settle period before display_seconds start). The result is rounded up and always within [0, displaySeconds].
func RemainingSeconds(displaySeconds int, elapsed, settle time.Duration) int {
	if displaySeconds <= 0 {
		return 0
	}
	shown := elapsed - settle
	if shown < 0 {
		shown = 0
	}
	left := time.Duration(displaySeconds)*time.Second - shown
	if left <= 0 {
		return 0
	}
	secs := int((left + time.Second - 1) / time.Second)
	if secs > displaySeconds {
		secs = displaySeconds
	}
	return secs
}
