package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func restoreGlobal(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default output should be JSON")
	}
	if cfg.Output == nil {
		t.Error("default output should be set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"trace", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_PageFetchFields(t *testing.T) {
	restoreGlobal(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelDebug, Output: buf})

	logger := NewLogger("pagination")
	logger.Debug().
		Uint64("epoch", 2).
		Int("limit", 25).
		Int("offset", 50).
		Str("state", "fetching").
		Msg("page requested")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	entry := lines[0]
	if entry["component"] != "pagination" {
		t.Errorf("component = %v, want pagination", entry["component"])
	}
	if entry["level"] != "debug" {
		t.Errorf("level = %v, want debug", entry["level"])
	}
	if entry["limit"] != float64(25) || entry["offset"] != float64(50) || entry["epoch"] != float64(2) {
		t.Errorf("position fields = %v/%v/%v", entry["limit"], entry["offset"], entry["epoch"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no timestamp")
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	restoreGlobal(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("scroll")
	logger.Debug().Msg("debounce expired")
	logger.Info().Msg("session opened")
	logger.Warn().Str("error_class", "server").Msg("page fetch failed")
	logger.Error().Msg("rate limit blocked")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %s", len(lines), buf.String())
	}
	if lines[0]["message"] != "page fetch failed" || lines[0]["error_class"] != "server" {
		t.Errorf("first entry = %v", lines[0])
	}
	if lines[1]["message"] != "rate limit blocked" {
		t.Errorf("second entry = %v", lines[1])
	}
}

func TestSetup_Pretty(t *testing.T) {
	restoreGlobal(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger("browser")
	logger.Info().Str("session_id", "abc").Msg("session opened")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
	if !strings.Contains(out, "session opened") || !strings.Contains(out, "session_id") || !strings.Contains(out, "abc") {
		t.Errorf("pretty output = %q", out)
	}
}

func TestNewLogger_SharesGlobalOutput(t *testing.T) {
	restoreGlobal(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	clientLog := NewLogger("client")
	cacheLog := NewLogger("cache")
	clientLog.Info().Msg("one")
	cacheLog.Info().Msg("two")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["component"] != "client" || lines[1]["component"] != "cache" {
		t.Errorf("components = %v, %v", lines[0]["component"], lines[1]["component"])
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "trace", "verbose"} {
		if ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = true, want false", s)
		}
	}
}

func TestSetup_NilOutputFallsBack(t *testing.T) {
	restoreGlobal(t)
	Setup(Config{Level: LevelError})
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("global level = %v, want error", zerolog.GlobalLevel())
	}
}
