package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := NewWithWriter(&buf)

	d.Analyzed(1)
	if buf.Len() != 0 {
		t.Errorf("display rendered before Start: %q", buf.String())
	}

	d.Start(4)
	d.Analyzed(2)
	d.Failed()
	d.Skipped()
	d.Analyzed(1)
	d.Stop()

	out := buf.String()
	if !strings.Contains(out, "100%") || !strings.Contains(out, "Pages: 4/4") {
		t.Errorf("final line missing totals:\n%q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Stop() should end the line")
	}

	analyzed, failed, skipped, forms := d.Stats()
	if analyzed != 3 || failed != 1 || skipped != 1 || forms != 4 {
		t.Errorf("Stats() = %d, %d, %d, %d", analyzed, failed, skipped, forms)
	}

	n := buf.Len()
	d.Analyzed(1)
	if buf.Len() != n {
		t.Error("display rendered after Stop")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "2s"},
		{65 * time.Second, "1m05s"},
		{3*time.Hour + 2*time.Minute + 1*time.Second, "3h02m01s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
