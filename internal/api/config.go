/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/friendsincode/grimnir_kiosk/internal/models"
)

const maxConfigBody = 1 << 20

func (a *API) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.configs.Current(r.Context()))
}

// handleConfigUpdate accepts {"config": {...}} or a bare configuration. The
// running rotation keeps its snapshot until restarted.
func (a *API) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	cfg, err := decodeConfigBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	saved, err := a.configs.Save(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, models.ErrInvalidDestination) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "invalid_configuration",
				"detail": err.Error(),
			})
			return
		}
		a.logger.Error().Err(err).Msg("config save failed")
		writeError(w, http.StatusInternalServerError, "config_save_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Configuration updated successfully",
		"config":  saved,
	})
}

func (a *API) handleConfigReset(w http.ResponseWriter, r *http.Request) {
	saved, err := a.configs.Reset(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("config reset failed")
		writeError(w, http.StatusInternalServerError, "config_save_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Configuration reset to defaults",
		"config":  saved,
	})
}

func decodeConfigBody(body []byte) (models.RotationConfig, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return models.RotationConfig{}, err
	}

	raw := body
	if wrapped, ok := probe["config"]; ok {
		raw = wrapped
	}

	var cfg models.RotationConfig
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return models.RotationConfig{}, err
	}
	return cfg, nil
}
