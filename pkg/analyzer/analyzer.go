// Package analyzer runs the field analysis pipeline over a page:
// extraction, filtering, grouping, submit detection and classification.
//
// Stages run strictly in order and each one derives new values from the
// previous stage's output. Cancellation is checked between stages.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PentesterFlow/FieldAnalyzer/internal/browser"
	"github.com/PentesterFlow/FieldAnalyzer/internal/classify"
	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
	"github.com/PentesterFlow/FieldAnalyzer/internal/errors"
	"github.com/PentesterFlow/FieldAnalyzer/internal/extract"
	"github.com/PentesterFlow/FieldAnalyzer/internal/filter"
	"github.com/PentesterFlow/FieldAnalyzer/internal/group"
	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/internal/progress"
	"github.com/PentesterFlow/FieldAnalyzer/internal/snapshot"
	"github.com/PentesterFlow/FieldAnalyzer/internal/store"
	"github.com/PentesterFlow/FieldAnalyzer/internal/submit"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// LoadedPage is a live page that must be closed after analysis.
type LoadedPage interface {
	dom.Page
	Close() error
}

// Loader loads and stabilizes live pages.
type Loader interface {
	Load(ctx context.Context, url string) (LoadedPage, error)
}

// poolLoader adapts a browser pool to Loader.
type poolLoader struct {
	pool *browser.Pool
}

func (l poolLoader) Load(ctx context.Context, url string) (LoadedPage, error) {
	p, err := l.pool.Load(ctx, url)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Analyzer is the main analyzer instance.
type Analyzer struct {
	config   *Config
	log      *logger.Logger
	metrics  *metrics.Collector
	now      func() time.Time
	loader   Loader
	store    store.Store
	progress *progress.Display

	extractor  *extract.Extractor
	filter     *filter.Filter
	grouper    *group.Grouper
	detector   *submit.Detector
	classifier *classify.Classifier

	poolMu sync.Mutex
	pool   *browser.Pool
}

// New creates a new analyzer with the given options.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		config: DefaultConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if a.log == nil {
		a.log = a.config.NewLogger()
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	r := a.config.Rules.Clone()
	a.extractor = extract.New(a.config.Extract.Concurrency, a.log, a.metrics)
	a.filter = filter.New(r, a.log, a.metrics)
	a.grouper = group.New(a.log, a.metrics)
	a.detector = submit.New(a.log, a.metrics)
	a.classifier = classify.New(r, a.log, a.metrics)

	return a, nil
}

// Analyze runs the pipeline over a stabilized page.
func (a *Analyzer) Analyze(ctx context.Context, p dom.Page) (*page.Analysis, error) {
	return a.analyze(ctx, p, uuid.NewString())
}

func (a *Analyzer) analyze(ctx context.Context, p dom.Page, runID string) (*page.Analysis, error) {
	start := a.now()
	url := p.URL()
	log := a.log.WithComponent("analyzer").WithRunID(runID).WithURL(url)
	log.Info("Starting page analysis")

	between := func(stage string) error {
		if ctx.Err() != nil {
			return errors.NewCancelledError(url, stage)
		}
		return nil
	}

	fields, err := a.extractor.Extract(ctx, p)
	if err != nil {
		a.metrics.RecordPageFailure(errors.GetErrorType(err).String())
		return nil, err
	}

	if err := between("filter"); err != nil {
		return nil, a.fail(err)
	}
	kept := a.filter.Apply(fields)

	if err := between("group"); err != nil {
		return nil, a.fail(err)
	}
	grouped := a.grouper.Group(ctx, p, kept)

	if err := between("submit"); err != nil {
		return nil, a.fail(err)
	}
	forms := a.detector.Detect(ctx, p, grouped.Forms)

	if err := between("classify"); err != nil {
		return nil, a.fail(err)
	}
	forms = a.classifier.ClassifyFields(forms)
	forms, pageType := a.classifier.ClassifyPurposes(forms)

	elapsed := a.now().Sub(start)
	result := &page.Analysis{
		URL:        url,
		PageType:   pageType,
		Forms:      forms,
		TotalForms: len(forms),
		Notes:      append([]string{}, grouped.Notes...),
		Timestamp:  start,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}
	for _, form := range forms {
		result.TotalFields += len(form.Fields)
		result.TotalRequired += len(form.RequiredFields())
	}

	a.metrics.RecordPage(elapsed)
	log.Event(logger.InfoLevel).
		Str("page_type", string(pageType)).
		Int("forms", result.TotalForms).
		Int("fields", result.TotalFields).
		Int("required", result.TotalRequired).
		Dur("duration", elapsed).
		Msg("Analysis complete")

	if a.store != nil {
		if _, err := a.store.Put(result, runID); err != nil {
			log.WithError(err).Warn("Failed to store analysis")
		}
	}

	return result, nil
}

func (a *Analyzer) fail(err error) error {
	a.metrics.RecordPageFailure(errors.GetErrorType(err).String())
	return err
}

// AnalyzeHTML analyzes a static HTML document as if served from pageURL.
func (a *Analyzer) AnalyzeHTML(ctx context.Context, pageURL string, r io.Reader) (*page.Analysis, error) {
	p, err := snapshot.New(pageURL, r)
	if err != nil {
		return nil, errors.New(errors.Config, pageURL, "parse", "document could not be parsed", err)
	}
	return a.Analyze(ctx, p)
}

// AnalyzeString analyzes an HTML string.
func (a *Analyzer) AnalyzeString(ctx context.Context, pageURL, document string) (*page.Analysis, error) {
	return a.AnalyzeHTML(ctx, pageURL, strings.NewReader(document))
}

// AnalyzeFile analyzes an HTML file. An empty pageURL uses the file's
// file:// URL.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path, pageURL string) (*page.Analysis, error) {
	p, err := snapshot.FromFile(path, pageURL)
	if err != nil {
		return nil, errors.New(errors.Config, path, "read", "file could not be read", err)
	}
	return a.Analyze(ctx, p)
}

// AnalyzeURL loads url in a browser, waits for it to settle and analyzes it.
func (a *Analyzer) AnalyzeURL(ctx context.Context, url string) (*page.Analysis, error) {
	return a.analyzeURL(ctx, url, uuid.NewString())
}

func (a *Analyzer) analyzeURL(ctx context.Context, url, runID string) (*page.Analysis, error) {
	loader, err := a.getLoader()
	if err != nil {
		return nil, a.fail(err)
	}

	start := time.Now()
	p, err := loader.Load(ctx, url)
	if err != nil {
		e := errors.Categorize(err, url, "load")
		a.metrics.RecordPageFailure(e.Type.String())
		a.log.ErrorEvent(err, url, "load")
		return nil, e
	}
	defer func() {
		if err := p.Close(); err != nil {
			a.log.WithURL(url).WithError(err).Debug("Failed to close page")
		}
	}()
	a.metrics.RecordLoadTime(time.Since(start))

	return a.analyze(ctx, p, runID)
}

// getLoader returns the configured loader, starting a browser pool on
// first use.
func (a *Analyzer) getLoader() (Loader, error) {
	if a.loader != nil {
		return a.loader, nil
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.pool == nil {
		pool, err := browser.NewPool(a.config.Browser, a.log)
		if err != nil {
			return nil, err
		}
		a.pool = pool
	}
	return poolLoader{pool: a.pool}, nil
}

// Metrics returns the metrics collector.
func (a *Analyzer) Metrics() *metrics.Collector {
	return a.metrics
}

// Config returns a copy of the configuration.
func (a *Analyzer) Config() *Config {
	return a.config.Clone()
}

// Close releases the browser pool, if one was started.
func (a *Analyzer) Close() error {
	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.pool == nil {
		return nil
	}
	err := a.pool.Close()
	a.pool = nil
	return err
}
