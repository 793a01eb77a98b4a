// Package group partitions filtered fields into forms.
//
// Three tiers run in order and the first tier to claim a field wins:
// explicit form-like containers reported by the page, then buckets of the
// fields' own container selectors, then a single default form at the
// document root when the page has no other structure.
package group

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// Page notes emitted by grouping.
const (
	NoteDefaultForm           = "no form structure detected, created default form"
	NoteContainersUnavailable = "container map unavailable"
)

// FormID returns the stable identifier for a container selector.
func FormID(containerSelector string) string {
	return fmt.Sprintf("form_%016x", xxhash.Sum64String(containerSelector))
}

// Result is the outcome of grouping.
type Result struct {
	Forms []page.Form
	// Notes are page-level observations, such as a degraded container query.
	Notes []string
}

// Grouper assigns fields to forms.
type Grouper struct {
	log     *logger.Logger
	metrics *metrics.Collector
}

// New creates a grouper.
func New(log *logger.Logger, m *metrics.Collector) *Grouper {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Grouper{log: log.WithComponent("group"), metrics: m}
}

// Group reads the page's container map and partitions fields. Submit
// controls are not grouped. A failed container query degrades to an empty
// map and a page note.
func (g *Grouper) Group(ctx context.Context, p dom.Page, fields []page.Field) Result {
	start := time.Now()
	var res Result

	containers, err := p.ReadContainerMap(ctx)
	if err != nil {
		g.metrics.RecordContainerFailure()
		g.log.WithError(err).Warn("Failed to read container map")
		res.Notes = append(res.Notes, fmt.Sprintf("%s: %v", NoteContainersUnavailable, err))
		containers = nil
	}

	inputs := make([]page.Field, 0, len(fields))
	for _, f := range fields {
		if !f.IsSubmit() {
			inputs = append(inputs, f)
		}
	}

	forms, defaulted := g.partition(dedupe(containers), inputs)
	res.Forms = forms
	if defaulted {
		res.Notes = append(res.Notes, NoteDefaultForm)
	}

	g.metrics.RecordStage("group", time.Since(start))
	g.log.StageEvent("group", len(res.Forms), time.Since(start))
	return res
}

// partition reports defaulted when the root form is the only form.
func (g *Grouper) partition(containers []dom.Container, inputs []page.Field) (forms []page.Form, defaulted bool) {
	claimed := make([]bool, len(inputs))

	// Tier 1: explicit containers.
	for _, c := range containers {
		var members []page.Field
		for i, f := range inputs {
			if claimed[i] {
				continue
			}
			if f.ParentContainer == c.Selector || strings.Contains(f.Selector, c.Selector) {
				members = append(members, f)
				claimed[i] = true
			}
		}
		if len(members) == 0 {
			continue
		}
		forms = append(forms, newForm(c.Selector, members, c.Selector))
		g.metrics.RecordForm(metrics.TierExplicit)
	}

	// Tier 2: buckets of the fields' own containers, in first-seen order.
	// Fields without a container share the root bucket.
	var order []string
	buckets := make(map[string][]page.Field)
	for i, f := range inputs {
		if claimed[i] {
			continue
		}
		container := f.ParentContainer
		if container == "" {
			container = page.RootContainer
		}
		if _, ok := buckets[container]; !ok {
			order = append(order, container)
		}
		buckets[container] = append(buckets[container], f)
	}

	// Tier 3: the root bucket is the default form when nothing else formed.
	defaulted = len(forms) == 0 && len(order) == 1 && order[0] == page.RootContainer
	for _, container := range order {
		forms = append(forms, newForm(container, buckets[container], ""))
		if defaulted {
			g.log.Warn("No form structure detected, creating default form")
			g.metrics.RecordForm(metrics.TierFallback)
			continue
		}
		g.metrics.RecordForm(metrics.TierAdHoc)
	}

	return forms, defaulted
}

func newForm(container string, fields []page.Field, formTag string) page.Form {
	return page.Form{
		FormID:            FormID(container),
		Fields:            fields,
		Purpose:           page.PurposeUnknown,
		ContainerSelector: container,
		FormTagSelector:   formTag,
		Notes:             []string{},
	}
}

// dedupe keeps the first container for each selector.
func dedupe(containers []dom.Container) []dom.Container {
	seen := make(map[string]bool, len(containers))
	out := make([]dom.Container, 0, len(containers))
	for _, c := range containers {
		if c.Selector == "" || seen[c.Selector] {
			continue
		}
		seen[c.Selector] = true
		out = append(out, c)
	}
	return out
}
