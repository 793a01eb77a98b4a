// Package filter removes fields that carry no useful input: disabled
// controls, analytics inputs and hidden fields that are not tokens.
package filter

import (
	"time"

	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/internal/rules"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// Reason explains why a field was dropped.
type Reason string

const (
	Keep            Reason = ""
	ReasonDisabled  Reason = "disabled"
	ReasonTracking  Reason = "tracking"
	ReasonHiddenRaw Reason = "hidden_non_token"
)

// Decide returns the reason f is dropped, or Keep. The checks run in a fixed
// order: disabled, then tracking, then hidden-token retention. A hidden
// token whose name also matches a tracking pattern is therefore dropped.
func Decide(r rules.Rules, f page.Field) Reason {
	if f.Disabled {
		return ReasonDisabled
	}
	if r.IsTracking(f.Name, f.ID) {
		return ReasonTracking
	}
	if f.InputType == "hidden" && !r.IsKeptToken(f.Name, f.ID) {
		return ReasonHiddenRaw
	}
	return Keep
}

// Filter applies Decide to every field.
type Filter struct {
	rules   rules.Rules
	log     *logger.Logger
	metrics *metrics.Collector
}

// New creates a filter for the given rule set.
func New(r rules.Rules, log *logger.Logger, m *metrics.Collector) *Filter {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Filter{rules: r, log: log.WithComponent("filter"), metrics: m}
}

// Apply returns the surviving fields in their original order.
func (f *Filter) Apply(fields []page.Field) []page.Field {
	start := time.Now()
	kept := make([]page.Field, 0, len(fields))
	for _, field := range fields {
		reason := Decide(f.rules, field)
		if reason != Keep {
			f.log.DropEvent(string(reason), field.Label())
			f.metrics.RecordDrop(string(reason))
			continue
		}
		kept = append(kept, field)
	}

	f.metrics.RecordKept(len(kept))
	f.metrics.RecordStage("filter", time.Since(start))
	f.log.StageEvent("filter", len(kept), time.Since(start))
	return kept
}
