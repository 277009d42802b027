/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigBackend selects where the rotation configuration is persisted.
type ConfigBackend string

const (
	BackendFile     ConfigBackend = "file"
	BackendSQLite   ConfigBackend = "sqlite"
	BackendPostgres ConfigBackend = "postgres"
	BackendMySQL    ConfigBackend = "mysql"
	BackendS3       ConfigBackend = "s3"
)

// IsDatabase reports whether the backend is served by gorm.
func (b ConfigBackend) IsDatabase() bool {
	return b == BackendSQLite || b == BackendPostgres || b == BackendMySQL
}

// DisplayDriver selects the display driver implementation.
type DisplayDriver string

const (
	DriverRod DisplayDriver = "rod"
	DriverLog DisplayDriver = "log"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	// Rotation configuration persistence
	ConfigBackend ConfigBackend
	ConfigPath    string // file backend (.json, .yaml or .yml)
	DBDSN         string // sqlite/postgres/mysql backends
	ConfigName    string // row name (db) or object key (s3)

	// S3 object storage (s3 backend)
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, etc.)
	S3UsePathStyle    bool

	// Display driver
	DisplayDriver     DisplayDriver
	BrowserBin        string // empty: let rod locate or download a browser
	BrowserHeadless   bool
	BrowserControlURL string // connect to an already running browser instead of launching one
	PageLoadTimeout   time.Duration

	// Rotation timing
	SettleLatency time.Duration
	PollInterval  time.Duration

	// Control surface authentication
	JWTSigningKey     string
	JWTTTL            time.Duration
	AdminUsername     string
	AdminPasswordHash string // bcrypt hash; takes precedence over AdminPassword
	AdminPassword     string

	// Event fan-out
	RedisAddr     string // empty disables the Redis forwarder
	RedisPassword string
	RedisDB       int
	NATSURL       string // empty disables the NATS forwarder
	InstanceID    string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LogBufferSize     int
	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// LoadStorage reads the environment but only checks what the config store
// needs. CLI maintenance commands use it so they run without auth secrets.
func LoadStorage() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Environment: getEnvAny([]string{"KIOSK_ENV", "GRIMNIR_KIOSK_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"KIOSK_HTTP_BIND", "GRIMNIR_KIOSK_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"KIOSK_HTTP_PORT", "GRIMNIR_KIOSK_HTTP_PORT"}, 8000),
		MetricsBind: getEnvAny([]string{"KIOSK_METRICS_BIND", "GRIMNIR_KIOSK_METRICS_BIND"}, "127.0.0.1:9000"),

		ConfigBackend: ConfigBackend(strings.ToLower(getEnvAny([]string{"KIOSK_CONFIG_BACKEND", "GRIMNIR_KIOSK_CONFIG_BACKEND"}, string(BackendFile)))),
		ConfigPath:    getEnvAny([]string{"KIOSK_CONFIG_PATH", "GRIMNIR_KIOSK_CONFIG_PATH"}, "dashboard_config.json"),
		DBDSN:         getEnvAny([]string{"KIOSK_DB_DSN", "GRIMNIR_KIOSK_DB_DSN"}, ""),
		ConfigName:    getEnvAny([]string{"KIOSK_CONFIG_NAME", "GRIMNIR_KIOSK_CONFIG_NAME"}, "default"),

		S3AccessKeyID:     getEnvAny([]string{"KIOSK_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"KIOSK_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"KIOSK_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"KIOSK_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"KIOSK_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"KIOSK_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		DisplayDriver:     DisplayDriver(strings.ToLower(getEnvAny([]string{"KIOSK_DISPLAY_DRIVER", "GRIMNIR_KIOSK_DISPLAY_DRIVER"}, string(DriverRod)))),
		BrowserBin:        getEnvAny([]string{"KIOSK_BROWSER_BIN", "CHROME_BIN"}, ""),
		BrowserHeadless:   getEnvBoolAny([]string{"KIOSK_BROWSER_HEADLESS", "GRIMNIR_KIOSK_BROWSER_HEADLESS"}, false),
		BrowserControlURL: getEnvAny([]string{"KIOSK_BROWSER_CONTROL_URL", "GRIMNIR_KIOSK_BROWSER_CONTROL_URL"}, ""),
		PageLoadTimeout:   time.Duration(getEnvIntAny([]string{"KIOSK_PAGE_LOAD_TIMEOUT_SECONDS", "GRIMNIR_KIOSK_PAGE_LOAD_TIMEOUT_SECONDS"}, 30)) * time.Second,

		SettleLatency: time.Duration(getEnvIntAny([]string{"KIOSK_SETTLE_LATENCY_MS", "GRIMNIR_KIOSK_SETTLE_LATENCY_MS"}, 2000)) * time.Millisecond,
		PollInterval:  time.Duration(getEnvIntAny([]string{"KIOSK_POLL_INTERVAL_MS", "GRIMNIR_KIOSK_POLL_INTERVAL_MS"}, 250)) * time.Millisecond,

		JWTSigningKey:     getEnvAny([]string{"KIOSK_JWT_SIGNING_KEY", "GRIMNIR_KIOSK_JWT_SIGNING_KEY"}, ""),
		JWTTTL:            time.Duration(getEnvIntAny([]string{"KIOSK_JWT_TTL_MINUTES", "GRIMNIR_KIOSK_JWT_TTL_MINUTES"}, 30)) * time.Minute,
		AdminUsername:     getEnvAny([]string{"KIOSK_ADMIN_USERNAME", "GRIMNIR_KIOSK_ADMIN_USERNAME"}, "admin"),
		AdminPasswordHash: getEnvAny([]string{"KIOSK_ADMIN_PASSWORD_HASH", "GRIMNIR_KIOSK_ADMIN_PASSWORD_HASH"}, ""),
		AdminPassword:     getEnvAny([]string{"KIOSK_ADMIN_PASSWORD", "GRIMNIR_KIOSK_ADMIN_PASSWORD"}, ""),

		RedisAddr:     getEnvAny([]string{"KIOSK_REDIS_ADDR", "GRIMNIR_KIOSK_REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"KIOSK_REDIS_PASSWORD", "GRIMNIR_KIOSK_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"KIOSK_REDIS_DB", "GRIMNIR_KIOSK_REDIS_DB"}, 0),
		NATSURL:       getEnvAny([]string{"KIOSK_NATS_URL", "GRIMNIR_KIOSK_NATS_URL"}, ""),
		InstanceID:    getEnvAny([]string{"KIOSK_INSTANCE_ID", "GRIMNIR_KIOSK_INSTANCE_ID"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"KIOSK_TRACING_ENABLED", "GRIMNIR_KIOSK_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"KIOSK_OTLP_ENDPOINT", "GRIMNIR_KIOSK_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"KIOSK_TRACING_SAMPLE_RATE", "GRIMNIR_KIOSK_TRACING_SAMPLE_RATE"}, 1.0),

		LogBufferSize: getEnvIntAny([]string{"KIOSK_LOG_BUFFER_SIZE", "GRIMNIR_KIOSK_LOG_BUFFER_SIZE"}, 5000),
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.DisplayDriver != DriverRod && c.DisplayDriver != DriverLog {
		return fmt.Errorf("unsupported display driver %q", c.DisplayDriver)
	}

	if c.SettleLatency < 0 {
		return fmt.Errorf("KIOSK_SETTLE_LATENCY_MS must not be negative")
	}
	if c.PollInterval <= 0 || c.PollInterval > time.Second {
		return fmt.Errorf("KIOSK_POLL_INTERVAL_MS must be between 1 and 1000")
	}

	if c.JWTSigningKey == "" {
		return fmt.Errorf("KIOSK_JWT_SIGNING_KEY or GRIMNIR_KIOSK_JWT_SIGNING_KEY must be provided")
	}

	if strings.EqualFold(c.Environment, "production") {
		if c.AdminPasswordHash == "" {
			return fmt.Errorf("KIOSK_ADMIN_PASSWORD_HASH must be set in production")
		}
	} else if c.AdminPasswordHash == "" && c.AdminPassword == "" {
		return fmt.Errorf("KIOSK_ADMIN_PASSWORD_HASH or KIOSK_ADMIN_PASSWORD must be provided")
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch c.ConfigBackend {
	case BackendFile:
		if c.ConfigPath == "" {
			return fmt.Errorf("KIOSK_CONFIG_PATH must be provided for the file backend")
		}
	case BackendSQLite, BackendPostgres, BackendMySQL:
		if c.DBDSN == "" {
			return fmt.Errorf("KIOSK_DB_DSN must be provided for the %s backend", c.ConfigBackend)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("KIOSK_S3_BUCKET must be provided for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported config backend %q", c.ConfigBackend)
	}
	return nil
}

// HTTPAddr returns the control surface listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"DASHBOARD_CONFIG_FILE": "use KIOSK_CONFIG_PATH",
		"JWT_SIGNING_KEY":       "use KIOSK_JWT_SIGNING_KEY",
		"SECRET_KEY":            "use KIOSK_JWT_SIGNING_KEY",
		"TRACING_ENABLED":       "use KIOSK_TRACING_ENABLED",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
