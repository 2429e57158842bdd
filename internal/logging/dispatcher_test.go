package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestZerologAdapter_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*ZerologAdapter, string, ...any)
	}{
		{"debug", (*ZerologAdapter).Debug},
		{"info", (*ZerologAdapter).Info},
		{"warn", (*ZerologAdapter).Warn},
		{"error", (*ZerologAdapter).Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			zl := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(zl, "track loaded", "track", "Harbor Loop", "checkpoints", 12)

			entry := decodeEntry(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("expected level %q, got %v", tt.level, entry["level"])
			}
			if entry["message"] != "track loaded" {
				t.Errorf("expected message 'track loaded', got %v", entry["message"])
			}
			if entry["track"] != "Harbor Loop" {
				t.Errorf("expected track='Harbor Loop', got %v", entry["track"])
			}
			if entry["checkpoints"] != float64(12) { // JSON numbers are float64
				t.Errorf("expected checkpoints=12, got %v", entry["checkpoints"])
			}
		})
	}
}

func TestZerologAdapter_ErrorValue(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologAdapter(zerolog.New(&buf))

	zl.Error("queued command failed", "command", ":MAP:LOAD:", "error", errors.New("no such file"))

	entry := decodeEntry(t, &buf)
	if entry["error"] != "no such file" {
		t.Errorf("expected error='no such file', got %v", entry["error"])
	}
}

func TestZerologAdapter_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologAdapter(zerolog.New(&buf))

	zl.Info("simple message", "dangling")

	entry := decodeEntry(t, &buf)
	if entry["message"] != "simple message" {
		t.Errorf("expected message 'simple message', got %v", entry["message"])
	}
	if _, ok := entry["dangling"]; ok {
		t.Error("dangling key should be dropped")
	}
}

func TestNewZerolog_Level(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologAdapter(NewZerolog(&buf, "warn"))

	zl.Info("filtered")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	zl.Warn("kept")
	entry := decodeEntry(t, &buf)
	if _, ok := entry["time"]; !ok {
		t.Error("expected a timestamp")
	}
}

func TestNewZerolog_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZerologAdapter(NewZerolog(&buf, "loud"))

	zl.Debug("filtered")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level, got %q", buf.String())
	}
}

func TestZerologAdapter_ImplementsInterface(t *testing.T) {
	var _ interface {
		Debug(msg string, keysAndValues ...any)
		Info(msg string, keysAndValues ...any)
		Warn(msg string, keysAndValues ...any)
		Error(msg string, keysAndValues ...any)
	} = NewZerologAdapter(zerolog.Nop())
}
