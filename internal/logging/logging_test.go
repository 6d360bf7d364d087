package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New("info", "json", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info().Str("identity", "Bob").Msg("presence recorded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["identity"] != "Bob" {
		t.Errorf("expected identity field 'Bob', got %v", entry["identity"])
	}
	if entry["message"] != "presence recorded" {
		t.Errorf("expected message 'presence recorded', got %v", entry["message"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New("", "", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info().Msg("camera ready")

	if !strings.Contains(buf.String(), "camera ready") {
		t.Errorf("expected console output to contain message, got %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New("loud", "json", nil); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Error("expected error for invalid format")
	}
}
