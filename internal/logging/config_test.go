package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	if lvl, ok := parseLevel("warning"); !ok || lvl != zerolog.WarnLevel {
		t.Fatalf("warning: got=%v ok=%v", lvl, ok)
	}
	if lvl, ok := parseLevel(" OFF "); !ok || lvl != zerolog.Disabled {
		t.Fatalf("off: got=%v ok=%v", lvl, ok)
	}
	if _, ok := parseLevel("chatty"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
	if _, ok := parseLevel(""); ok {
		t.Fatalf("expected empty level to be ignored")
	}
	if lvl, ok := parseLevel("Trace"); !ok || lvl != zerolog.TraceLevel {
		t.Fatalf("trace: got=%v ok=%v", lvl, ok)
	}
}

func TestProfileBaselines(t *testing.T) {
	if cfg := ProfileTest.config(); cfg.Level != zerolog.DebugLevel || cfg.Timestamp {
		t.Fatalf("unexpected test profile: %+v", cfg)
	}
	if cfg := ProfileRuntime.config(); cfg.Level != zerolog.InfoLevel || !cfg.Timestamp {
		t.Fatalf("unexpected runtime profile: %+v", cfg)
	}
	if ProfileTest.String() != "test" || ProfileRuntime.String() != "runtime" {
		t.Fatalf("unexpected profile names")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogBypass, "not-a-bool")

	cfg := ProfileRuntime.config()
	ignored := applyEnvOverrides(&cfg)
	if len(ignored) != 1 || ignored[0] != EnvLogBypass {
		t.Fatalf("expected only the bypass override to be ignored, got %v", ignored)
	}
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("expected timestamp disabled")
	}
	if !cfg.NoColor {
		t.Fatalf("expected nocolor enabled")
	}
	if cfg.Bypass {
		t.Fatalf("expected invalid bypass value to be ignored")
	}
}

func TestNewBypassWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: zerolog.InfoLevel, Bypass: true, Out: &buf})
	l.Info().Msg("link.Session.run attached")
	l.Debug().Msg("hidden")
	out := buf.String()
	if !strings.Contains(out, `"message":"link.Session.run attached"`) {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug message should be filtered: %q", out)
	}
}
