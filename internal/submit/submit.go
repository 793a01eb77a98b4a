// Package submit attaches the submit control of each form.
package submit

import (
	"context"
	"strings"
	"time"

	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// Form notes.
const (
	NoteNotFound = "No explicit submit button found"
	NoteFailed   = "Submit detection failed"
)

// Detector looks up submit controls through the page.
type Detector struct {
	log     *logger.Logger
	metrics *metrics.Collector
}

// New creates a detector.
func New(log *logger.Logger, m *metrics.Collector) *Detector {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Detector{log: log.WithComponent("submit"), metrics: m}
}

// Detect returns copies of forms with SubmitElement set, or a note when no
// control was found or the query failed. It never fails.
func (d *Detector) Detect(ctx context.Context, p dom.Page, forms []page.Form) []page.Form {
	start := time.Now()
	out := make([]page.Form, len(forms))
	found := 0

	for i, form := range forms {
		f := form.Clone()
		info, err := p.QuerySubmitWithin(ctx, f.ContainerSelector)
		switch {
		case err != nil:
			d.log.WithForm(f.FormID).WithError(err).Debug("Submit detection failed")
			f.Notes = append(f.Notes, NoteFailed)
			d.metrics.RecordSubmit(false)
		case info == nil:
			d.log.WithForm(f.FormID).Debug("No submit button found")
			f.Notes = append(f.Notes, NoteNotFound)
			d.metrics.RecordSubmit(false)
		default:
			f.SubmitElement = toElement(*info)
			d.log.WithForm(f.FormID).Debugf("Submit found: %s", f.SubmitElement.Text)
			d.metrics.RecordSubmit(true)
			found++
		}
		out[i] = f
	}

	d.metrics.RecordStage("submit", time.Since(start))
	d.log.StageEvent("submit", found, time.Since(start))
	return out
}

func toElement(info dom.SubmitInfo) *page.SubmitElement {
	typ := info.Type
	if typ == "" {
		typ = "button"
	}
	return &page.SubmitElement{
		Tag:       strings.ToLower(info.Tag),
		Type:      typ,
		Text:      strings.TrimSpace(info.Text),
		ID:        info.ID,
		ClassName: info.ClassName,
	}
}
