package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":    LevelDebug,
		"DEBUG":    LevelDebug,
		"info":     LevelInfo,
		"warn":     LevelWarn,
		"warning":  LevelWarn,
		"Error":    LevelError,
		"fatal":    LevelFatal,
		"nonsense": LevelInfo,
		"":         LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitAndLevelString(t *testing.T) {
	Init("WARN")
	if got := LevelString(); got != "warn" {
		t.Fatalf("LevelString() = %q, want %q", got, "warn")
	}
	Init("")
	if got := LevelString(); got != "info" {
		t.Fatalf("LevelString() = %q, want %q", got, "info")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Init("warn")
	defer Init("info")

	Debugf("debug-msg")
	Infof("info-msg")
	Warnf("warn-msg")
	Errorf("error-msg")

	got := buf.String()
	if strings.Contains(got, "debug-msg") || strings.Contains(got, "info-msg") {
		t.Fatalf("messages below warn should be suppressed: %q", got)
	}
	if !strings.Contains(got, "warn-msg") || !strings.Contains(got, "error-msg") {
		t.Fatalf("warn/error messages missing: %q", got)
	}
	if !strings.Contains(got, "[WARN]") {
		t.Fatalf("expected level tag in output: %q", got)
	}
}
