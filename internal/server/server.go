/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_kiosk/internal/api"
	"github.com/friendsincode/grimnir_kiosk/internal/auth"
	"github.com/friendsincode/grimnir_kiosk/internal/config"
	"github.com/friendsincode/grimnir_kiosk/internal/configstore"
	"github.com/friendsincode/grimnir_kiosk/internal/db"
	"github.com/friendsincode/grimnir_kiosk/internal/display"
	"github.com/friendsincode/grimnir_kiosk/internal/eventbus"
	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/friendsincode/grimnir_kiosk/internal/logbuffer"
	"github.com/friendsincode/grimnir_kiosk/internal/rotation"
	"github.com/friendsincode/grimnir_kiosk/internal/telemetry"
	"gorm.io/gorm"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	bus        *events.Bus
	logBuffer  *logbuffer.Buffer
	db         *gorm.DB
	configs    *configstore.Manager
	driver     display.Driver
	scheduler  *rotation.Scheduler
	api        *api.API
	forwarders []*eventbus.Forwarder

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// Options lets callers swap the display driver, mainly for tests.
type Options struct {
	Driver display.Driver
}

// New constructs the server and wires dependencies. Nothing is started until Start.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	return NewWithOptions(cfg, logBuf, logger, Options{})
}

// NewWithOptions is New with overrides.
func NewWithOptions(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger, opts Options) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("grimnir-kiosk-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The status stream is long lived; everything else gets a deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
		driver:    opts.Driver,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the websocket stream; the middleware timeout covers the rest.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.MetricsBind != "" {
		mux := chi.NewRouter()
		mux.Handle("/metrics", telemetry.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, database, err := OpenStore(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	if database != nil {
		s.db = database
		s.DeferClose(func() error { return db.Close(database) })
	}
	s.configs = configstore.NewManager(store, s.bus, s.logger)

	if s.driver == nil {
		s.driver = NewDriver(s.cfg, s.logger)
	}

	s.scheduler = rotation.New(s.driver, rotation.Options{
		SettleLatency: s.cfg.SettleLatency,
		PollInterval:  s.cfg.PollInterval,
		Bus:           s.bus,
	}, s.logger)

	admin, err := auth.NewAdmin(s.cfg.AdminUsername, s.cfg.AdminPasswordHash, s.cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("configure admin account: %w", err)
	}

	s.api = api.New(s.scheduler, s.configs, admin, []byte(s.cfg.JWTSigningKey), s.cfg.JWTTTL, s.bus, s.logBuffer, s.logger)

	return s.initForwarders(ctx)
}

func (s *Server) initForwarders(ctx context.Context) error {
	nodeID := s.cfg.InstanceID
	if nodeID == "" {
		nodeID = eventbus.GenerateNodeID()
	}

	if s.cfg.RedisAddr != "" {
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		sink := eventbus.NewRedisSink(ctx, redisCfg, s.logger)
		s.forwarders = append(s.forwarders, eventbus.NewForwarder(s.bus, sink, eventbus.DefaultForwarderConfig(), nodeID, s.logger))
		s.logger.Info().Str("addr", redisCfg.Addr).Str("node_id", nodeID).Msg("redis event forwarding enabled")
	}

	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.Name = "grimnir-kiosk-" + nodeID
		sink, err := eventbus.NewNATSSink(natsCfg, s.logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		s.forwarders = append(s.forwarders, eventbus.NewForwarder(s.bus, sink, eventbus.DefaultForwarderConfig(), nodeID, s.logger))
		s.logger.Info().Str("url", natsCfg.URL).Str("node_id", nodeID).Msg("nats event forwarding enabled")
	}

	for _, fwd := range s.forwarders {
		s.DeferClose(fwd.Close)
	}
	return nil
}

// Router exposes the HTTP handler tree.
func (s *Server) Router() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer returns the metrics listener, or nil when metrics share the main router.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Scheduler returns the rotation scheduler.
func (s *Server) Scheduler() *rotation.Scheduler {
	return s.scheduler
}

// Configs returns the configuration manager.
func (s *Server) Configs() *configstore.Manager {
	return s.configs
}

// Start launches background work and auto-starts the rotation when configured.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	for _, fwd := range s.forwarders {
		fwd.Start(ctx)
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runConnectionMetrics(ctx)
		}()
	}

	cfg := s.configs.Load(ctx)
	s.logger.Info().
		Str("backend", s.configs.Backend()).
		Str("source", string(s.configs.Source())).
		Int("pages", len(cfg.Destinations)).
		Bool("auto_start", cfg.AutoStart).
		Msg("rotation config loaded")

	if !cfg.AutoStart {
		return
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if _, err := s.scheduler.Start(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("auto-start failed")
		}
	}()
}

func (s *Server) runConnectionMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		db.UpdateConnectionMetrics(s.db)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops the rotation, then releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	if s.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.scheduler.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("rotation shutdown error")
		}
		cancel()
	}
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.cfg.MetricsBind == "" {
		s.router.Handle("/metrics", telemetry.Handler())
	}

	s.api.Routes(s.router)
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		w.Header().Set("Cache-Control", "no-store")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Debug()
			if status >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
