// Package progress draws a batch progress line on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Display manages the progress line during a batch run.
type Display struct {
	mu      sync.Mutex
	started bool
	stopped bool
	out     io.Writer

	total    atomic.Int64
	analyzed atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64
	forms    atomic.Int64

	startTime time.Time
	lastLine  string
}

// New creates a progress display writing to stderr.
func New() *Display {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a progress display writing to w.
func NewWithWriter(w io.Writer) *Display {
	return &Display{out: w}
}

// Start begins the display for a batch of total URLs.
func (d *Display) Start(total int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	d.startTime = time.Now()
	d.total.Store(int64(total))
}

// Analyzed records a completed page and its form count.
func (d *Display) Analyzed(forms int) {
	d.analyzed.Add(1)
	d.forms.Add(int64(forms))
	d.render()
}

// Failed records a page that could not be analyzed.
func (d *Display) Failed() {
	d.failed.Add(1)
	d.render()
}

// Skipped records a duplicate URL.
func (d *Display) Skipped() {
	d.skipped.Add(1)
	d.render()
}

func (d *Display) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}

	total := d.total.Load()
	done := d.analyzed.Load() + d.failed.Load() + d.skipped.Load()
	progress := 100
	if total > 0 {
		progress = int(float64(done) / float64(total) * 100)
		if progress > 100 {
			progress = 100
		}
	}

	elapsed := time.Since(d.startTime)
	speed := float64(0)
	if elapsed.Seconds() > 0 {
		speed = float64(done) / elapsed.Seconds()
	}

	barWidth := 30
	filled := progress * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r[%s] %3d%% | Pages: %d/%d | Failed: %d | Forms: %d | %.1f p/s | %s",
		bar, progress, done, total, d.failed.Load(), d.forms.Load(), speed, formatDuration(elapsed))

	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop ends the display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}
	d.stopped = true
	fmt.Fprintln(d.out)
}

// Stats returns the current counts.
func (d *Display) Stats() (analyzed, failed, skipped, forms int64) {
	return d.analyzed.Load(), d.failed.Load(), d.skipped.Load(), d.forms.Load()
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
