/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/friendsincode/grimnir_kiosk/internal/auth"
	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"github.com/friendsincode/grimnir_kiosk/internal/rotation"
)

type controlRequest struct {
	Action string `json:"action"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.scheduler.Status())
}

func (a *API) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	logger := a.logger.With().Str("action", action).Logger()
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		logger = logger.With().Str("username", claims.Username).Logger()
	}

	var (
		status  models.StatusSnapshot
		err     error
		message string
	)

	// The rotation outlives the request, so it must not inherit its context.
	ctx := context.WithoutCancel(r.Context())

	switch action {
	case "start":
		status, err = a.scheduler.Start(ctx, a.configs.Current(r.Context()))
		message = "Rotation started"
	case "restart":
		status, err = a.scheduler.Restart(ctx, a.configs.Current(r.Context()))
		message = "Rotation restarted"
	case "stop":
		a.scheduler.Stop()
		status = a.scheduler.Status()
		message = "Rotation stopped"
	default:
		writeError(w, http.StatusBadRequest, "unknown_action")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, rotation.ErrEmptyConfiguration):
			writeError(w, http.StatusConflict, "empty_configuration")
		case errors.Is(err, rotation.ErrDriverAcquisition):
			logger.Error().Err(err).Msg("display driver unavailable")
			writeError(w, http.StatusServiceUnavailable, "display_unavailable")
		default:
			logger.Error().Err(err).Msg("control action failed")
			writeError(w, http.StatusInternalServerError, "control_failed")
		}
		return
	}

	logger.Info().Msg("control action applied")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"status":  status,
	})
}
