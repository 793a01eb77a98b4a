package analyzer

import (
	"fmt"
	"time"

	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/internal/progress"
	"github.com/PentesterFlow/FieldAnalyzer/internal/rules"
	"github.com/PentesterFlow/FieldAnalyzer/internal/store"
)

// Option is a functional option for configuring the Analyzer.
type Option func(*Analyzer) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) Option {
	return func(a *Analyzer) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		a.config = cfg.Clone()
		return nil
	}
}

// WithRules sets the pattern sets and thresholds.
func WithRules(r rules.Rules) Option {
	return func(a *Analyzer) error {
		if err := r.Validate(); err != nil {
			return err
		}
		a.config.Rules = r.Clone()
		return nil
	}
}

// WithConcurrency bounds concurrent element reads.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) error {
		if n < 1 {
			n = 1
		}
		a.config.Extract.Concurrency = n
		return nil
	}
}

// WithBatchConcurrency sets how many pages a batch analyzes at once.
func WithBatchConcurrency(n int) Option {
	return func(a *Analyzer) error {
		if n < 1 {
			n = 1
		}
		a.config.Batch.Concurrency = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Analyzer) error {
		a.log = l
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Analyzer) error {
		a.metrics = m
		return nil
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) error {
		if now == nil {
			return fmt.Errorf("nil clock")
		}
		a.now = now
		return nil
	}
}

// WithLoader sets the live page loader. Without one, AnalyzeURL starts a
// browser pool on first use.
func WithLoader(l Loader) Option {
	return func(a *Analyzer) error {
		a.loader = l
		return nil
	}
}

// WithStore records every analysis in s. The caller keeps ownership of s.
func WithStore(s store.Store) Option {
	return func(a *Analyzer) error {
		a.store = s
		return nil
	}
}

// WithProgress reports batch progress on d.
func WithProgress(d *progress.Display) Option {
	return func(a *Analyzer) error {
		a.progress = d
		return nil
	}
}
