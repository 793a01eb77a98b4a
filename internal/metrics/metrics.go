// Package metrics provides metrics collection for the field analyzer.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Grouping tiers reported by RecordForm.
const (
	TierExplicit = "explicit"
	TierAdHoc    = "adhoc"
	TierFallback = "fallback"
)

// Collector collects and aggregates pipeline metrics. It is safe for
// concurrent use; a batch run shares one collector across pages.
type Collector struct {
	// Counters
	pagesAnalyzed     atomic.Int64
	pagesFailed       atomic.Int64
	elementsMatched   atomic.Int64
	extractFailures   atomic.Int64
	fieldsKept        atomic.Int64
	fieldsRequired    atomic.Int64
	submitsFound      atomic.Int64
	submitsMissing    atomic.Int64
	containerFailures atomic.Int64
	retriesTotal      atomic.Int64

	// Page load time tracking
	loadTimesSum atomic.Int64
	loadTimesNum atomic.Int64

	// Histogram buckets for analysis time in ms
	analysisBuckets [8]atomic.Int64 // <50, <100, <250, <500, <1000, <2500, <5000, >=5000

	drops   map[string]*atomic.Int64
	dropsMu sync.RWMutex

	forms   map[string]*atomic.Int64
	formsMu sync.RWMutex

	purposes   map[string]*atomic.Int64
	purposesMu sync.RWMutex

	stages   map[string]*stageTimer
	stagesMu sync.RWMutex

	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	startTime time.Time
}

type stageTimer struct {
	sum atomic.Int64 // microseconds
	num atomic.Int64
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		drops:       make(map[string]*atomic.Int64),
		forms:       make(map[string]*atomic.Int64),
		purposes:    make(map[string]*atomic.Int64),
		stages:      make(map[string]*stageTimer),
		errorCounts: make(map[string]*atomic.Int64),
		startTime:   time.Now(),
	}
}

func incr(mu *sync.RWMutex, m map[string]*atomic.Int64, key string, n int64) {
	mu.RLock()
	v := m[key]
	mu.RUnlock()
	if v == nil {
		mu.Lock()
		if v = m[key]; v == nil {
			v = &atomic.Int64{}
			m[key] = v
		}
		mu.Unlock()
	}
	v.Add(n)
}

func copyCounts(mu *sync.RWMutex, m map[string]*atomic.Int64) map[string]int64 {
	out := make(map[string]int64)
	mu.RLock()
	for k, v := range m {
		out[k] = v.Load()
	}
	mu.RUnlock()
	return out
}

// RecordPage records a completed page analysis and its total duration.
func (c *Collector) RecordPage(d time.Duration) {
	c.pagesAnalyzed.Add(1)
	c.analysisBuckets[c.getBucket(d.Milliseconds())].Add(1)
}

// RecordPageFailure records an analysis that could not complete.
func (c *Collector) RecordPageFailure(errorType string) {
	c.pagesFailed.Add(1)
	incr(&c.errorMu, c.errorCounts, errorType, 1)
}

// RecordLoadTime records how long loading and stabilizing a page took.
func (c *Collector) RecordLoadTime(d time.Duration) {
	c.loadTimesSum.Add(d.Milliseconds())
	c.loadTimesNum.Add(1)
}

// getBucket returns the histogram bucket for an analysis time.
func (c *Collector) getBucket(ms int64) int {
	switch {
	case ms < 50:
		return 0
	case ms < 100:
		return 1
	case ms < 250:
		return 2
	case ms < 500:
		return 3
	case ms < 1000:
		return 4
	case ms < 2500:
		return 5
	case ms < 5000:
		return 6
	default:
		return 7
	}
}

// RecordMatched records how many elements the interactive query matched.
func (c *Collector) RecordMatched(n int) {
	c.elementsMatched.Add(int64(n))
}

// RecordExtractFailure records an element whose descriptor could not be read.
func (c *Collector) RecordExtractFailure() {
	c.extractFailures.Add(1)
}

// RecordDrop records a field removed by filtering.
func (c *Collector) RecordDrop(reason string) {
	incr(&c.dropsMu, c.drops, reason, 1)
}

// RecordKept records fields surviving the filter.
func (c *Collector) RecordKept(n int) {
	c.fieldsKept.Add(int64(n))
}

// RecordForm records a form emitted by the given grouping tier.
func (c *Collector) RecordForm(tier string) {
	incr(&c.formsMu, c.forms, tier, 1)
}

// RecordSubmit records the outcome of submit detection for one form.
func (c *Collector) RecordSubmit(found bool) {
	if found {
		c.submitsFound.Add(1)
	} else {
		c.submitsMissing.Add(1)
	}
}

// RecordContainerFailure records a degraded container map query.
func (c *Collector) RecordContainerFailure() {
	c.containerFailures.Add(1)
}

// RecordRequired records fields classified required.
func (c *Collector) RecordRequired(n int) {
	c.fieldsRequired.Add(int64(n))
}

// RecordPurpose records a classified form purpose.
func (c *Collector) RecordPurpose(purpose string) {
	incr(&c.purposesMu, c.purposes, purpose, 1)
}

// RecordRetry records a page load retry attempt.
func (c *Collector) RecordRetry() {
	c.retriesTotal.Add(1)
}

// RecordStage records the duration of one pipeline stage.
func (c *Collector) RecordStage(stage string, d time.Duration) {
	c.stagesMu.RLock()
	st := c.stages[stage]
	c.stagesMu.RUnlock()
	if st == nil {
		c.stagesMu.Lock()
		if st = c.stages[stage]; st == nil {
			st = &stageTimer{}
			c.stages[stage] = st
		}
		c.stagesMu.Unlock()
	}
	st.sum.Add(d.Microseconds())
	st.num.Add(1)
}

// GetAverageLoadTime returns the average page load time.
func (c *Collector) GetAverageLoadTime() time.Duration {
	sum := c.loadTimesSum.Load()
	num := c.loadTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:         time.Now(),
		Uptime:            time.Since(c.startTime),
		PagesAnalyzed:     c.pagesAnalyzed.Load(),
		PagesFailed:       c.pagesFailed.Load(),
		ElementsMatched:   c.elementsMatched.Load(),
		ExtractFailures:   c.extractFailures.Load(),
		FieldsKept:        c.fieldsKept.Load(),
		FieldsRequired:    c.fieldsRequired.Load(),
		SubmitsFound:      c.submitsFound.Load(),
		SubmitsMissing:    c.submitsMissing.Load(),
		ContainerFailures: c.containerFailures.Load(),
		RetriesTotal:      c.retriesTotal.Load(),
		AverageLoadTime:   c.GetAverageLoadTime(),
		Drops:             copyCounts(&c.dropsMu, c.drops),
		FormsByTier:       copyCounts(&c.formsMu, c.forms),
		Purposes:          copyCounts(&c.purposesMu, c.purposes),
		ErrorCounts:       copyCounts(&c.errorMu, c.errorCounts),
		StageAverages:     make(map[string]time.Duration),
		AnalysisTimeHist:  make([]int64, len(c.analysisBuckets)),
	}

	c.stagesMu.RLock()
	for name, st := range c.stages {
		if n := st.num.Load(); n > 0 {
			s.StageAverages[name] = time.Duration(st.sum.Load()/n) * time.Microsecond
		}
	}
	c.stagesMu.RUnlock()

	for i := range c.analysisBuckets {
		s.AnalysisTimeHist[i] = c.analysisBuckets[i].Load()
	}

	return s
}

// Reset resets all metrics.
func (c *Collector) Reset() {
	c.pagesAnalyzed.Store(0)
	c.pagesFailed.Store(0)
	c.elementsMatched.Store(0)
	c.extractFailures.Store(0)
	c.fieldsKept.Store(0)
	c.fieldsRequired.Store(0)
	c.submitsFound.Store(0)
	c.submitsMissing.Store(0)
	c.containerFailures.Store(0)
	c.retriesTotal.Store(0)
	c.loadTimesSum.Store(0)
	c.loadTimesNum.Store(0)

	for i := range c.analysisBuckets {
		c.analysisBuckets[i].Store(0)
	}

	c.dropsMu.Lock()
	c.drops = make(map[string]*atomic.Int64)
	c.dropsMu.Unlock()

	c.formsMu.Lock()
	c.forms = make(map[string]*atomic.Int64)
	c.formsMu.Unlock()

	c.purposesMu.Lock()
	c.purposes = make(map[string]*atomic.Int64)
	c.purposesMu.Unlock()

	c.stagesMu.Lock()
	c.stages = make(map[string]*stageTimer)
	c.stagesMu.Unlock()

	c.errorMu.Lock()
	c.errorCounts = make(map[string]*atomic.Int64)
	c.errorMu.Unlock()

	c.startTime = time.Now()
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp         time.Time                `json:"timestamp"`
	Uptime            time.Duration            `json:"uptime"`
	PagesAnalyzed     int64                    `json:"pages_analyzed"`
	PagesFailed       int64                    `json:"pages_failed"`
	ElementsMatched   int64                    `json:"elements_matched"`
	ExtractFailures   int64                    `json:"extract_failures"`
	FieldsKept        int64                    `json:"fields_kept"`
	FieldsRequired    int64                    `json:"fields_required"`
	SubmitsFound      int64                    `json:"submits_found"`
	SubmitsMissing    int64                    `json:"submits_missing"`
	ContainerFailures int64                    `json:"container_failures"`
	RetriesTotal      int64                    `json:"retries_total"`
	AverageLoadTime   time.Duration            `json:"average_load_time"`
	Drops             map[string]int64         `json:"drops"`
	FormsByTier       map[string]int64         `json:"forms_by_tier"`
	Purposes          map[string]int64         `json:"purposes"`
	ErrorCounts       map[string]int64         `json:"error_counts"`
	StageAverages     map[string]time.Duration `json:"stage_averages"`
	AnalysisTimeHist  []int64                  `json:"analysis_time_histogram"`
}

// DropsTotal returns the number of fields removed by filtering.
func (s *Snapshot) DropsTotal() int64 {
	var total int64
	for _, n := range s.Drops {
		total += n
	}
	return total
}

// FormsTotal returns the number of forms emitted across all tiers.
func (s *Snapshot) FormsTotal() int64 {
	var total int64
	for _, n := range s.FormsByTier {
		total += n
	}
	return total
}

// ExtractFailureRate returns failed reads over matched elements.
func (s *Snapshot) ExtractFailureRate() float64 {
	if s.ElementsMatched == 0 {
		return 0
	}
	return float64(s.ExtractFailures) / float64(s.ElementsMatched)
}

// Summary returns a flat view suitable for logger.StatsEvent.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":           s.Uptime.String(),
		"pages_analyzed":   s.PagesAnalyzed,
		"pages_failed":     s.PagesFailed,
		"elements_matched": s.ElementsMatched,
		"extract_failures": s.ExtractFailures,
		"fields_kept":      s.FieldsKept,
		"fields_dropped":   s.DropsTotal(),
		"fields_required":  s.FieldsRequired,
		"forms":            s.FormsTotal(),
		"submits_missing":  s.SubmitsMissing,
		"retries_total":    s.RetriesTotal,
		"avg_load_time_ms": s.AverageLoadTime.Milliseconds(),
	}
}
