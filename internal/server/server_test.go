package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_kiosk/internal/config"
	"github.com/friendsincode/grimnir_kiosk/internal/logbuffer"
)

func testConfig(t *testing.T, configJSON string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard_config.json")
	if configJSON != "" {
		if err := os.WriteFile(path, []byte(configJSON), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &config.Config{
		Environment:   "test",
		HTTPBind:      "127.0.0.1",
		HTTPPort:      0,
		ConfigBackend: config.BackendFile,
		ConfigPath:    path,
		ConfigName:    "default",
		DisplayDriver: config.DriverLog,
		SettleLatency: 10 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		JWTSigningKey: "test-secret",
		JWTTTL:        time.Minute,
		AdminUsername: "admin",
		AdminPassword: "pw",
	}
}

func TestServerAutoStartsRotation(t *testing.T) {
	cfg := testConfig(t, `{"pages":[{"url":"https://a.example","duration_seconds":60}],"loop":true,"auto_start":true}`)
	srv, err := New(cfg, logbuffer.New(100), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv.Start()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.Scheduler().Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("rotation did not auto-start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if srv.Scheduler().Status().Running {
		t.Fatal("rotation still running after Close")
	}
}

func TestServerDoesNotAutoStartByDefault(t *testing.T) {
	srv, err := New(testConfig(t, ""), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	srv.Start()
	if srv.Scheduler().Status().Running {
		t.Fatal("default configuration must not auto-start")
	}
	if got := len(srv.Configs().Current(testContext(t)).Destinations); got != 2 {
		t.Fatalf("expected default destinations, got %d", got)
	}
}

func TestServerRoutes(t *testing.T) {
	srv, err := New(testConfig(t, ""), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/api/v1/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/v1/status", http.StatusUnauthorized},
		{"/api/v1/config", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != tt.want {
			t.Fatalf("GET %s = %d, want %d", tt.path, rr.Code, tt.want)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("GET %s missing security headers", tt.path)
		}
	}
}

func TestServerMetricsListener(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.MetricsBind = "127.0.0.1:0"
	srv, err := New(cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	if srv.MetricsServer() == nil {
		t.Fatal("expected dedicated metrics server")
	}
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("metrics must not be on the main router when a metrics bind is set, got %d", rr.Code)
	}
}

func TestNewRejectsBadAdmin(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.AdminPassword = ""
	if _, err := New(cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error without admin credentials")
	}
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.ConfigBackend = "floppy"
	if _, _, err := OpenStore(testContext(t), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled
// when the test's cleanup runs.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
