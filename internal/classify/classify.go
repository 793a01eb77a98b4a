package classify

import (
	"time"

	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/internal/rules"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// Classifier runs field classification followed by purpose inference.
type Classifier struct {
	rules   rules.Rules
	log     *logger.Logger
	metrics *metrics.Collector
}

// New creates a classifier for the given rule set.
func New(r rules.Rules, log *logger.Logger, m *metrics.Collector) *Classifier {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Classifier{rules: r, log: log.WithComponent("classify"), metrics: m}
}

// ClassifyFields returns forms with every field classified.
func (c *Classifier) ClassifyFields(forms []page.Form) []page.Form {
	start := time.Now()
	out := make([]page.Form, len(forms))
	required := 0
	for i, form := range forms {
		out[i] = Fields(c.rules, form)
		required += len(out[i].RequiredFields())
	}
	c.metrics.RecordRequired(required)
	c.metrics.RecordStage("classify_fields", time.Since(start))
	c.log.StageEvent("classify_fields", required, time.Since(start))
	return out
}

// ClassifyPurposes returns forms with Purpose set, and the page type.
func (c *Classifier) ClassifyPurposes(forms []page.Form) ([]page.Form, page.Purpose) {
	start := time.Now()
	out := make([]page.Form, len(forms))
	for i, form := range forms {
		f := form.Clone()
		f.Purpose = Purpose(c.rules, f)
		c.log.WithForm(f.FormID).Debugf("Form classified as: %s", f.Purpose)
		c.metrics.RecordPurpose(string(f.Purpose))
		out[i] = f
	}

	pageType := PageType(out)
	c.metrics.RecordStage("classify_purpose", time.Since(start))
	c.log.Event(logger.InfoLevel).
		Str("stage", "classify_purpose").
		Str("page_type", string(pageType)).
		Dur("duration", time.Since(start)).
		Msg("Page classified")
	return out, pageType
}
