package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/tl")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if cfg.MaxAttempts() != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts(), DefaultMaxAttempts)
	}
	if cfg.HistoryTTL() != DefaultHistoryTTL {
		t.Errorf("HistoryTTL = %v, want %v", cfg.HistoryTTL(), DefaultHistoryTTL)
	}
	if cfg.SessionScope() != DefaultSessionScope {
		t.Errorf("SessionScope = %q", cfg.SessionScope())
	}
	if cfg.RebaseOnConflict() {
		t.Error("RebaseOnConflict should default to false")
	}
	if cfg.DBPath() != filepath.Join("/tmp/tl", DBFilename) {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
	if cfg.ServerURL() != "http://127.0.0.1:8788" {
		t.Errorf("ServerURL = %q", cfg.ServerURL())
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvServerURL, "http://edit.local/")
	t.Setenv(EnvMaxAttempts, "2")
	t.Setenv(EnvHistoryTTL, "90m")
	t.Setenv(EnvRebaseOnConflict, "true")
	t.Setenv(EnvSessionScope, "tab-1")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port = %d", cfg.Port())
	}
	if cfg.ServerURL() != "http://edit.local" {
		t.Errorf("ServerURL = %q", cfg.ServerURL())
	}
	if cfg.MaxAttempts() != 2 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts())
	}
	if cfg.HistoryTTL() != 90*time.Minute {
		t.Errorf("HistoryTTL = %v", cfg.HistoryTTL())
	}
	if !cfg.RebaseOnConflict() {
		t.Error("RebaseOnConflict = false")
	}
	if cfg.SessionScope() != "tab-1" {
		t.Errorf("SessionScope = %q", cfg.SessionScope())
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvPort, "0"},
		{EnvPort, "abc"},
		{EnvMaxAttempts, "0"},
		{EnvHistoryTTL, "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
