package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithIdempotencyKey(WithProjectID(NewLoggerTo(&buf, "info"), "p1"), "k1")
	logger.Debug("hidden")
	logger.Info("write committed", "revision", 3)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["project_id"] != "p1" || line["idempotency_key"] != "k1" {
		t.Errorf("missing context attributes: %v", line)
	}
	if line["revision"] != float64(3) {
		t.Errorf("revision = %v", line["revision"])
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("short token = %q", got)
	}
	if got := SanitizeToken("abcd1234efgh5678"); got != "abcd...5678" {
		t.Errorf("long token = %q", got)
	}
}
