package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevel(t *testing.T) {
	if got := New("debug", false).GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", got)
	}
	if got := New("invalid", false).GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", got)
	}
	if got := New("", true).GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", got)
	}
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")
	log.Info().Msg("hidden")
	log.Warn().Str("feed", "venue").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %s", out)
	}
	if !strings.Contains(out, `"feed":"venue"`) || !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %s", out)
	}
}
