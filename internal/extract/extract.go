// Package extract reads every interactive element of a page and normalizes
// it into a page.Field.
package extract

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
	"github.com/PentesterFlow/FieldAnalyzer/internal/errors"
	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// DefaultConcurrency bounds concurrent element reads.
const DefaultConcurrency = 8

// Extractor captures field descriptors from a dom.Page.
type Extractor struct {
	concurrency int
	log         *logger.Logger
	metrics     *metrics.Collector
}

// New creates an extractor. A nil logger or collector disables that output.
func New(concurrency int, log *logger.Logger, m *metrics.Collector) *Extractor {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Extractor{
		concurrency: concurrency,
		log:         log.WithComponent("extract"),
		metrics:     m,
	}
}

// Extract queries the interactive elements of p and reads each one. Reads
// run concurrently; the result keeps query order. An element whose read
// fails is dropped. Only a failed query or a context cancelled before the
// query returns an error; once reads start the stage runs to completion and
// the caller decides whether to go on.
func (e *Extractor) Extract(ctx context.Context, p dom.Page) ([]page.Field, error) {
	start := time.Now()

	if ctx.Err() != nil {
		return nil, errors.NewCancelledError(p.URL(), "extract")
	}
	handles, err := p.Query(ctx, dom.InteractiveSelector)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(p.URL(), "query")
		}
		return nil, errors.NewQueryError(p.URL(), "query", err)
	}
	e.metrics.RecordMatched(len(handles))
	e.log.Debugf("Found %d interactive elements", len(handles))

	infos := make([]*dom.ElementInfo, len(handles))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			info, err := p.ReadElementInfo(ctx, h)
			if err != nil {
				if ctx.Err() == nil {
					e.metrics.RecordExtractFailure()
				}
				e.log.Event(logger.DebugLevel).
					Int("element", i).
					Err(err).
					Msg("Failed to read element")
				return nil
			}
			infos[i] = info
			return nil
		})
	}
	_ = g.Wait()

	fields := make([]page.Field, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		fields = append(fields, Normalize(*info))
	}

	e.log.StageEvent("extract", len(fields), time.Since(start))
	e.metrics.RecordStage("extract", time.Since(start))
	return fields, nil
}

// Normalize converts a raw descriptor into a Field. Classification starts
// as unknown.
func Normalize(info dom.ElementInfo) page.Field {
	tag := strings.ToLower(info.TagName)
	inputType := strings.ToLower(info.Type)
	if inputType == "" {
		inputType = tag
	}

	container := info.Container
	if container == "" {
		container = page.RootContainer
	}

	f := page.Field{
		TagName:         tag,
		InputType:       inputType,
		Name:            info.Name,
		ID:              info.ID,
		Placeholder:     info.Placeholder,
		AriaLabel:       info.AriaLabel,
		LabelText:       strings.TrimSpace(info.LabelText),
		Required:        info.Required,
		Disabled:        info.Disabled,
		Readonly:        info.ReadOnly,
		Visible:         IsVisible(info),
		Selector:        info.Selector,
		ParentContainer: container,
		Classification:  page.ClassificationUnknown,
		Value:           info.Value,
		Autocomplete:    info.Autocomplete,
		Pattern:         info.Pattern,
		MinLength:       positive(info.MinLength),
		MaxLength:       positive(info.MaxLength),
	}

	if len(info.Options) > 0 {
		f.Options = make([]page.Option, len(info.Options))
		for i, o := range info.Options {
			f.Options[i] = page.Option{
				Label:    strings.TrimSpace(o.Label),
				Value:    o.Value,
				Selected: o.Selected,
			}
		}
	}

	return f
}

// IsVisible applies the layout rule: displayed and at least 1x1.
func IsVisible(info dom.ElementInfo) bool {
	return info.Displayed && info.Width >= 1 && info.Height >= 1
}

// positive drops the unset sentinels browsers report for length limits
// (0 for minLength, -1 for maxLength).
func positive(n *int) *int {
	if n == nil || *n <= 0 {
		return nil
	}
	v := *n
	return &v
}
