package logger

import (
	"encoding/json"
	"testing"
)

func TestRedactSensitive_SessionToken(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	token := "clss-01hgw2bbdydkymdrwy5nb9rcq0"
	l.Info("session started", "current", token)

	entry := decodeEntry(t, buf)
	got, _ := entry["current"].(string)
	if got == token {
		t.Fatalf("token should be masked, got original value")
	}
	if got != "clss-01h...cq0" {
		t.Errorf("token mask format incorrect, got: %s", got)
	}
}

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	tests := []struct {
		key   string
		value any
	}{
		{"value", "my secret note"},
		{"payload", `{"act":"cl::set"}`},
		{"session_token", "abc"},
		{"password", "hunter2"},
		{"value", json.RawMessage(`{"a":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			buf.Reset()
			l.Info("test", tt.key, tt.value)

			entry := decodeEntry(t, buf)
			if entry[tt.key] != redactedValue {
				t.Errorf("%s = %v, want redacted", tt.key, entry[tt.key])
			}
		})
	}
}

func TestRedactSensitive_LeavesOrdinaryAttrs(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	l.Info("request", "key", "cl::theme", "origin", "a.example.com", "id", 3, "value", "")

	entry := decodeEntry(t, buf)
	if entry["key"] != "cl::theme" || entry["origin"] != "a.example.com" {
		t.Errorf("ordinary attributes altered: %v", entry)
	}
	if entry["id"] != float64(3) {
		t.Errorf("id = %v", entry["id"])
	}
	if entry["value"] != "" {
		t.Errorf("empty value should stay empty, got %v", entry["value"])
	}
}

func TestRedactHelpers(t *testing.T) {
	if got := RedactString("clss-abc"); got != "clss-***" {
		t.Errorf("RedactString short = %q", got)
	}
	if got := RedactString("plain"); got != "plain" {
		t.Errorf("RedactString plain = %q", got)
	}
	if !IsSensitiveKey("Session") || IsSensitiveKey("origin") {
		t.Error("IsSensitiveKey mismatch")
	}
	if !IsSensitiveValue("clss-x") || IsSensitiveValue("cl::x") {
		t.Error("IsSensitiveValue mismatch")
	}
}
