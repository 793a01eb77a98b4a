package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newBuffered(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Pretty: false, Output: &buf}), &buf
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("Level = %v, want InfoLevel", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("Pretty should be true by default")
	}
	if cfg.Output == nil {
		t.Error("Output should not be nil")
	}
}

func TestNew_Component(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Output: &buf, Component: "extract"})
	l.Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "extract" {
		t.Errorf("component = %v, want extract", entry["component"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
}

func TestLogger_ContextFields(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Logger) *Logger
		want  []string
	}{
		{"component", func(l *Logger) *Logger { return l.WithComponent("group") }, []string{`"component":"group"`}},
		{"field", func(l *Logger) *Logger { return l.WithField("k", "v") }, []string{`"k":"v"`}},
		{"url", func(l *Logger) *Logger { return l.WithURL("https://example.com/login") }, []string{"https://example.com/login"}},
		{"run id", func(l *Logger) *Logger { return l.WithRunID("run-1") }, []string{`"run_id":"run-1"`}},
		{"form", func(l *Logger) *Logger { return l.WithForm("form_abc") }, []string{`"form_id":"form_abc"`}},
		{"error", func(l *Logger) *Logger { return l.WithError(errors.New("boom")) }, []string{`"error":"boom"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBuffered(InfoLevel)
			tt.apply(l).Info("msg")
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %s missing %s", buf.String(), w)
				}
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	l, buf := newBuffered(WarnLevel)

	l.Debug("debug message")
	l.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("below-level messages were written: %s", buf.String())
	}

	l.Warnf("warn %d", 1)
	l.Errorf("error %d", 2)
	out := buf.String()
	if !strings.Contains(out, "warn 1") || !strings.Contains(out, "error 2") {
		t.Errorf("missing warn/error output: %s", out)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l, buf := newBuffered(InfoLevel)
	l.Debug("hidden")
	l.SetLevel(DebugLevel)
	l.Debug("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug message logged before SetLevel")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug message not logged after SetLevel")
	}
}

func TestLogger_StageEvent(t *testing.T) {
	l, buf := newBuffered(InfoLevel)
	l.StageEvent("filter", 7, 15*time.Millisecond)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["stage"] != "filter" {
		t.Errorf("stage = %v, want filter", entry["stage"])
	}
	if entry["count"] != float64(7) {
		t.Errorf("count = %v, want 7", entry["count"])
	}
	if _, ok := entry["duration"]; !ok {
		t.Error("duration missing")
	}
}

func TestLogger_DropEvent_DebugOnly(t *testing.T) {
	l, buf := newBuffered(InfoLevel)
	l.DropEvent("tracking", "ga_id")
	if buf.Len() != 0 {
		t.Errorf("drop event logged at info level: %s", buf.String())
	}

	l.SetLevel(DebugLevel)
	l.DropEvent("tracking", "ga_id")
	if !strings.Contains(buf.String(), `"reason":"tracking"`) {
		t.Errorf("drop reason missing: %s", buf.String())
	}
}

func TestLogger_ErrorAndStatsEvents(t *testing.T) {
	l, buf := newBuffered(InfoLevel)
	l.ErrorEvent(errors.New("nav failed"), "https://example.com", "load")
	l.StatsEvent(map[string]interface{}{"forms": 2})

	out := buf.String()
	for _, want := range []string{"nav failed", `"operation":"load"`, `"forms":2`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	l.StageEvent("extract", 1, time.Millisecond)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"bogus", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
