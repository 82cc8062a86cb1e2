package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONModeEmitsParsableJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "info", Pretty: false, Output: &buf})
	logger.Info().Str("k", "v").Msg("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "hello" && line["msg"] != "hello" {
		t.Errorf("expected the message field to be preserved, got %v", line)
	}
}

func TestNew_PrettyModeIsNotRawJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "info", Pretty: true, Output: &buf})
	logger.Info().Msg("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err == nil {
		t.Error("expected console-pretty output not to be raw JSON")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected the message to appear in pretty output, got %q", buf.String())
	}
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "not-a-level", Output: &buf})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected fallback to info level, got %v", logger.GetLevel())
	}
}

func TestNew_InfoBelowConfiguredLevelIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Output: &buf})
	logger.Info().Msg("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected info-level message suppressed under warn threshold, got %q", buf.String())
	}
}

func TestComponent_TagsSubsystemName(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Level: "info", Output: &buf})
	comp := Component(base, "scheduler")
	comp.Info().Msg("tick")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line: %v", err)
	}
	if line["component"] != "scheduler" {
		t.Errorf("expected component=scheduler, got %v", line["component"])
	}
}
