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

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// StorageBackend selects where published playlists are written.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// EventBusBackend selects how events reach other instances.
type EventBusBackend string

const (
	EventBusLocal EventBusBackend = "local"
	EventBusNATS  EventBusBackend = "nats"
	EventBusRedis EventBusBackend = "redis"
)

// ExpansionPolicy decides what publishing does when a stream cannot be expanded.
type ExpansionPolicy string

const (
	// ExpansionSkip publishes the unexpanded stream.
	ExpansionSkip ExpansionPolicy = "skip"
	// ExpansionRefuse aborts the publication.
	ExpansionRefuse ExpansionPolicy = "refuse"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL used in published manifests
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Published playlist storage
	StorageBackend    StorageBackend
	StorageRoot       string // Local directory for the local backend
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Manifest cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Cross-instance events. Defaults to nats when NATSURL is set, local otherwise.
	EventBus  EventBusBackend
	NATSURL   string
	NATSToken string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Publishing
	LeaderElectionEnabled bool // Only the elected instance runs the publish loop; requires Redis
	PublishInterval       time.Duration
	ExpansionPolicy       ExpansionPolicy
	DefaultSlotSeconds    int

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"INFOSCREEN_ENV", "APP_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"INFOSCREEN_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"INFOSCREEN_HTTP_PORT", "PORT"}, 8080),
		BaseURL:     getEnvAny([]string{"INFOSCREEN_BASE_URL", "BASE_URL"}, ""),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"INFOSCREEN_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"INFOSCREEN_DB_DSN", "DATABASE_URL"}, ""),
		MetricsBind: getEnvAny([]string{"INFOSCREEN_METRICS_BIND"}, "127.0.0.1:9000"),

		StorageBackend:    StorageBackend(getEnvAny([]string{"INFOSCREEN_STORAGE_BACKEND"}, string(StorageLocal))),
		StorageRoot:       getEnvAny([]string{"INFOSCREEN_STORAGE_ROOT", "STATIC_INFOSCREEN_ROOT_DIR"}, "./static/infoscreens"),
		S3AccessKeyID:     getEnvAny([]string{"INFOSCREEN_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"INFOSCREEN_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"INFOSCREEN_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"INFOSCREEN_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"INFOSCREEN_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"INFOSCREEN_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		RedisAddr:     getEnvAny([]string{"INFOSCREEN_REDIS_ADDR", "REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"INFOSCREEN_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"INFOSCREEN_REDIS_DB"}, 0),
		CacheTTL:      time.Duration(getEnvIntAny([]string{"INFOSCREEN_CACHE_TTL_SECONDS"}, 3600)) * time.Second,

		EventBus:  EventBusBackend(strings.ToLower(getEnvAny([]string{"INFOSCREEN_EVENT_BUS"}, ""))),
		NATSURL:   getEnvAny([]string{"INFOSCREEN_NATS_URL", "NATS_URL"}, ""),
		NATSToken: getEnvAny([]string{"INFOSCREEN_NATS_TOKEN", "NATS_TOKEN"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"INFOSCREEN_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"INFOSCREEN_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"INFOSCREEN_TRACING_SAMPLE_RATE"}, 1.0),

		LeaderElectionEnabled: getEnvBoolAny([]string{"INFOSCREEN_LEADER_ELECTION", "LEADER_ELECTION_ENABLED"}, false),
		PublishInterval:       time.Duration(getEnvIntAny([]string{"INFOSCREEN_PUBLISH_INTERVAL_SECONDS"}, 300)) * time.Second,
		ExpansionPolicy:       ExpansionPolicy(strings.ToLower(getEnvAny([]string{"INFOSCREEN_EXPANSION_POLICY"}, string(ExpansionSkip)))),
		DefaultSlotSeconds:    getEnvIntAny([]string{"INFOSCREEN_DEFAULT_SLOT_SECONDS"}, 10),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("INFOSCREEN_DB_DSN or DATABASE_URL must be provided")
	}

	switch cfg.StorageBackend {
	case StorageLocal:
		if cfg.StorageRoot == "" {
			return nil, fmt.Errorf("INFOSCREEN_STORAGE_ROOT must not be empty for local storage")
		}
	case StorageS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("INFOSCREEN_S3_BUCKET or S3_BUCKET must be provided for s3 storage")
		}
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}

	if cfg.ExpansionPolicy != ExpansionSkip && cfg.ExpansionPolicy != ExpansionRefuse {
		return nil, fmt.Errorf("unsupported expansion policy %q", cfg.ExpansionPolicy)
	}

	if cfg.EventBus == "" {
		cfg.EventBus = EventBusLocal
		if cfg.NATSURL != "" {
			cfg.EventBus = EventBusNATS
		}
	}
	switch cfg.EventBus {
	case EventBusLocal:
	case EventBusNATS:
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("INFOSCREEN_EVENT_BUS=nats requires INFOSCREEN_NATS_URL")
		}
	case EventBusRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("INFOSCREEN_EVENT_BUS=redis requires INFOSCREEN_REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if cfg.LeaderElectionEnabled && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("INFOSCREEN_LEADER_ELECTION requires INFOSCREEN_REDIS_ADDR")
	}

	if cfg.DefaultSlotSeconds <= 0 {
		return nil, fmt.Errorf("INFOSCREEN_DEFAULT_SLOT_SECONDS must be positive")
	}

	if cfg.PublishInterval < 0 {
		cfg.PublishInterval = 0
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"INFOSCREEN_FILES_FOLDER": "uploads are handled outside this service; the key is ignored",
		"STATIC_ROOT":             "use INFOSCREEN_STORAGE_ROOT",
		"TRACING_ENABLED":         "use INFOSCREEN_TRACING_ENABLED",
		"OTLP_ENDPOINT":           "use INFOSCREEN_OTLP_ENDPOINT",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool {
	return c != nil && c.RedisAddr != ""
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
