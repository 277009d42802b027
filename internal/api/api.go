/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the kiosk control surface over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_kiosk/internal/auth"
	"github.com/friendsincode/grimnir_kiosk/internal/configstore"
	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/friendsincode/grimnir_kiosk/internal/logbuffer"
	"github.com/friendsincode/grimnir_kiosk/internal/rotation"
	"github.com/friendsincode/grimnir_kiosk/internal/version"
)

// DefaultStatusInterval is how often the events stream pushes a status snapshot.
const DefaultStatusInterval = time.Second

// API exposes HTTP handlers.
type API struct {
	scheduler      *rotation.Scheduler
	configs        *configstore.Manager
	admin          *auth.Admin
	jwtSecret      []byte
	jwtTTL         time.Duration
	bus            *events.Bus
	logBuffer      *logbuffer.Buffer
	logger         zerolog.Logger
	statusInterval time.Duration
	pingInterval   time.Duration
}

// New creates the API router wrapper. bus and logBuf may be nil.
func New(scheduler *rotation.Scheduler, configs *configstore.Manager, admin *auth.Admin, jwtSecret []byte, jwtTTL time.Duration, bus *events.Bus, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	if jwtTTL <= 0 {
		jwtTTL = 30 * time.Minute
	}
	return &API{
		scheduler:      scheduler,
		configs:        configs,
		admin:          admin,
		jwtSecret:      jwtSecret,
		jwtTTL:         jwtTTL,
		bus:            bus,
		logBuffer:      logBuf,
		logger:         logger.With().Str("component", "api").Logger(),
		statusInterval: DefaultStatusInterval,
		pingInterval:   15 * time.Second,
	}
}

// Routes registers all HTTP endpoints under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Get("/status", a.handleStatus)
			pr.Post("/control", a.handleControl)

			pr.Route("/config", func(r chi.Router) {
				r.Get("/", a.handleConfigGet)
				r.Put("/", a.handleConfigUpdate)
				r.Post("/", a.handleConfigUpdate)
				r.Post("/reset", a.handleConfigReset)
			})

			pr.Route("/logs", func(r chi.Router) {
				r.Get("/", a.handleLogs)
				r.Get("/stats", a.handleLogStats)
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := a.scheduler.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"rotation_state": status.Phase,
		"config_backend": a.configs.Backend(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
