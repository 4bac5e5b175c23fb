package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_WritesJSONWithServiceField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})
	l.Info().Str("k", "v").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "aiweb" || entry["message"] != "hello" || entry["k"] != "v" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_LevelFiltersBelowThreshold(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})
	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line must be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew_Pretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(Config{Level: "debug", Pretty: true, Output: &buf})
	l.Debug().Msg("console")

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("pretty output must not be JSON: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "console") {
		t.Errorf("message missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s; want %s", in, got, want)
		}
	}
}

func TestComponent_AddsField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := Component(New(Config{Output: &buf}), "chat")
	l.Info().Msg("x")

	if !strings.Contains(buf.String(), `"component":"chat"`) {
		t.Errorf("component field missing: %q", buf.String())
	}
}
