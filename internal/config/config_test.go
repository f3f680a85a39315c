package config

import (
	"testing"
	"time"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("INFOSCREEN_DB_DSN", "file:test.db")
	t.Setenv("INFOSCREEN_ENV", "development")
	t.Setenv("INFOSCREEN_PUBLISH_INTERVAL_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != "file:test.db" {
		t.Fatalf("unexpected dsn: %q", cfg.DBDSN)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("default backend = %q, want sqlite", cfg.DBBackend)
	}
	if cfg.PublishInterval != time.Minute {
		t.Fatalf("publish interval = %v, want 1m", cfg.PublishInterval)
	}
	if cfg.ExpansionPolicy != ExpansionSkip {
		t.Fatalf("default expansion policy = %q, want skip", cfg.ExpansionPolicy)
	}
	if cfg.CacheEnabled() {
		t.Fatal("cache should be disabled without a redis address")
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("INFOSCREEN_DB_DSN", "")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail without a DSN")
	}
}

func TestLoadValidatesEnums(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"db backend", "INFOSCREEN_DB_BACKEND", "oracle"},
		{"storage backend", "INFOSCREEN_STORAGE_BACKEND", "ftp"},
		{"expansion policy", "INFOSCREEN_EXPANSION_POLICY", "clamp"},
		{"slot seconds", "INFOSCREEN_DEFAULT_SLOT_SECONDS", "0"},
		{"event bus", "INFOSCREEN_EVENT_BUS", "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INFOSCREEN_DB_DSN", "file:test.db")
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", tt.key, tt.val)
			}
		})
	}
}

func TestLoadS3RequiresBucket(t *testing.T) {
	t.Setenv("INFOSCREEN_DB_DSN", "file:test.db")
	t.Setenv("INFOSCREEN_STORAGE_BACKEND", "s3")
	t.Setenv("INFOSCREEN_S3_BUCKET", "")
	t.Setenv("S3_BUCKET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected s3 storage without bucket to fail")
	}

	t.Setenv("INFOSCREEN_S3_BUCKET", "screens")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with bucket: %v", err)
	}
	if cfg.S3Bucket != "screens" {
		t.Fatalf("bucket = %q", cfg.S3Bucket)
	}
}

func TestLoadLeaderElectionRequiresRedis(t *testing.T) {
	t.Setenv("INFOSCREEN_DB_DSN", "file:test.db")
	t.Setenv("INFOSCREEN_LEADER_ELECTION", "true")
	t.Setenv("INFOSCREEN_REDIS_ADDR", "")
	t.Setenv("REDIS_ADDR", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected leader election without redis to fail")
	}

	t.Setenv("INFOSCREEN_REDIS_ADDR", "localhost:6379")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with redis: %v", err)
	}
	if !cfg.LeaderElectionEnabled || !cfg.CacheEnabled() {
		t.Fatalf("unexpected config: election=%v cache=%v", cfg.LeaderElectionEnabled, cfg.CacheEnabled())
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("INFOSCREEN_DB_DSN", "file:test.db")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

func TestLoadSelectsEventBus(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    EventBusBackend
		wantErr bool
	}{
		{"local by default", map[string]string{}, EventBusLocal, false},
		{"nats when url set", map[string]string{"INFOSCREEN_NATS_URL": "nats://localhost:4222"}, EventBusNATS, false},
		{"explicit local wins", map[string]string{"INFOSCREEN_NATS_URL": "nats://localhost:4222", "INFOSCREEN_EVENT_BUS": "local"}, EventBusLocal, false},
		{"redis", map[string]string{"INFOSCREEN_EVENT_BUS": "redis", "INFOSCREEN_REDIS_ADDR": "localhost:6379"}, EventBusRedis, false},
		{"redis without addr", map[string]string{"INFOSCREEN_EVENT_BUS": "redis"}, "", true},
		{"nats without url", map[string]string{"INFOSCREEN_EVENT_BUS": "nats"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INFOSCREEN_DB_DSN", "file:test.db")
			for _, key := range []string{"INFOSCREEN_EVENT_BUS", "INFOSCREEN_NATS_URL", "NATS_URL", "INFOSCREEN_REDIS_ADDR", "REDIS_ADDR"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.EventBus != tt.want {
				t.Fatalf("event bus = %q, want %q", cfg.EventBus, tt.want)
			}
		})
	}
}
