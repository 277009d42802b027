package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_kiosk_api_requests_total",
		Help: "Control surface requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grimnir_kiosk_api_request_duration_seconds",
		Help:    "Control surface request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_kiosk_api_active_connections",
		Help: "In-flight control surface requests.",
	})

	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_kiosk_api_websocket_connections",
		Help: "Open status stream connections.",
	})
)

// Rotation metrics
var (
	RotationRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_kiosk_rotation_running",
		Help: "1 while a rotation is running, 0 when idle.",
	})

	RotationCurrentIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_kiosk_rotation_current_index",
		Help: "Index of the destination currently on screen.",
	})

	RotationStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_kiosk_rotation_starts_total",
		Help: "Start requests by outcome.",
	}, []string{"result"})

	RotationShowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_kiosk_rotation_shows_total",
		Help: "Destinations shown by outcome.",
	}, []string{"result"})

	RotationShowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "grimnir_kiosk_rotation_show_duration_seconds",
		Help:    "Time spent in the display driver per destination.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	RotationCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_kiosk_rotation_cycles_total",
		Help: "Completed passes through the destination list.",
	})

	DriverReleaseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_kiosk_driver_release_failures_total",
		Help: "Display driver releases that reported an error.",
	})
)

// Config store metrics
var (
	ConfigSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_kiosk_config_saves_total",
		Help: "Configuration saves by backend and outcome.",
	}, []string{"backend", "result"})

	ConfigLoadFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_kiosk_config_load_fallbacks_total",
		Help: "Loads that fell back to last-known-good or default configuration.",
	}, []string{"reason"})
)

// Database metrics
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grimnir_kiosk_database_query_duration_seconds",
		Help:    "Config store query latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_kiosk_database_errors_total",
		Help: "Config store query errors by operation.",
	}, []string{"operation", "type"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_kiosk_database_connections_active",
		Help: "Open connections in the config store pool.",
	})
)

// Event fan-out metrics
var (
	EventsForwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_kiosk_events_forwarded_total",
		Help: "Events relayed to external brokers by sink and outcome.",
	}, []string{"sink", "result"})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
