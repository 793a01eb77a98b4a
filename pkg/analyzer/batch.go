package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/FieldAnalyzer/internal/errors"
	"github.com/PentesterFlow/FieldAnalyzer/internal/output"
	"github.com/PentesterFlow/FieldAnalyzer/internal/ratelimit"
	"github.com/PentesterFlow/FieldAnalyzer/internal/store"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// ReadURLs reads one URL per line, skipping blank lines and # comments.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url list: %w", err)
	}
	return urls, nil
}

// batchRun holds the shared state of one batch.
type batchRun struct {
	id      string
	limiter *ratelimit.AdaptiveRateLimiter
	retrier *errors.Retrier
	w       output.Writer

	mu      sync.Mutex
	summary output.BatchSummary
}

func (b *batchRun) analyzed(a *page.Analysis) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &b.summary.Statistics
	s.Analyzed++
	s.Forms += a.TotalForms
	s.Fields += a.TotalFields
	s.RequiredFields += a.TotalRequired
	b.summary.PageTypes[string(a.PageType)]++
}

func (b *batchRun) failed() {
	b.mu.Lock()
	b.summary.Statistics.Failed++
	b.mu.Unlock()
}

// Batch analyzes urls with bounded concurrency, writing each result to w as
// it completes. Page loads are rate limited per host and retried with
// backoff on navigation, timeout and browser failures. A failed page is
// written as an error and does not stop the batch; only cancellation and
// output failures do.
func (a *Analyzer) Batch(ctx context.Context, urls []string, w output.Writer) (*output.BatchSummary, error) {
	cfg := a.config.Batch
	run := &batchRun{
		id:      uuid.NewString(),
		limiter: ratelimit.New(cfg.RateLimit),
		retrier: errors.NewRetrier(cfg.Retry),
		w:       w,
		summary: output.BatchSummary{
			StartedAt: a.now(),
			PageTypes: make(map[string]int),
		},
	}
	run.summary.RunID = run.id
	run.summary.Statistics.TotalURLs = len(urls)
	log := a.log.WithComponent("batch").WithRunID(run.id)

	todo := urls
	if cfg.Dedup {
		todo = store.NewDeduplicator(len(urls)).Unique(urls)
		run.summary.Statistics.SkippedDuplicate = len(urls) - len(todo)
	}

	if a.progress != nil {
		a.progress.Start(len(urls))
		for i := 0; i < len(urls)-len(todo); i++ {
			a.progress.Skipped()
		}
		defer a.progress.Stop()
	}
	log.Infof("Starting batch of %d URLs (%d duplicates skipped)", len(todo), len(urls)-len(todo))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for _, u := range todo {
		if gctx.Err() != nil {
			break
		}
		u := u
		g.Go(func() error {
			return a.batchOne(gctx, run, u)
		})
	}
	err := g.Wait()

	if err == nil && ctx.Err() != nil {
		err = errors.NewCancelledError("", "batch")
	}

	run.summary.CompletedAt = a.now()
	run.summary.Duration = run.summary.CompletedAt.Sub(run.summary.StartedAt)
	run.summary.Metrics = a.metrics.Snapshot().Summary()
	log.StatsEvent(run.summary.Metrics)

	if werr := w.WriteSummary(&run.summary); werr != nil && err == nil {
		err = werr
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return &run.summary, err
}

func (a *Analyzer) batchOne(ctx context.Context, run *batchRun, url string) error {
	result, res := errors.DoWithResult(ctx, run.retrier, "analyze", url,
		func(ctx context.Context) (*page.Analysis, error) {
			if err := run.limiter.WaitURL(ctx, url); err != nil {
				return nil, errors.NewCancelledError(url, "rate limit")
			}
			return a.analyzeURL(ctx, url, run.id)
		})

	for i := 1; i < res.Attempts; i++ {
		a.metrics.RecordRetry()
	}

	if res.Success {
		run.limiter.RecordSuccess()
		run.analyzed(result)
		if a.progress != nil {
			a.progress.Analyzed(result.TotalForms)
		}
		return run.w.WriteAnalysis(result)
	}

	if errors.GetErrorType(res.LastError) == errors.Cancelled {
		return res.LastError
	}

	run.limiter.RecordError()
	run.failed()
	if a.progress != nil {
		a.progress.Failed()
	}
	return run.w.WriteError(&output.PageError{
		URL:       url,
		Type:      errors.Classify(res.LastError).String(),
		Error:     res.LastError.Error(),
		Attempts:  res.Attempts,
		Timestamp: time.Now().UTC(),
	})
}
