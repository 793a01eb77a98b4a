package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// TextWriter writes a human-readable report.
type TextWriter struct {
	mu     sync.Mutex
	writer io.Writer
	closed bool
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{writer: w}
}

// WriteAnalysis writes the page summary followed by one block per form.
func (t *TextWriter) WriteAnalysis(a *page.Analysis) error {
	var b strings.Builder
	b.WriteString(a.Summary())

	for _, note := range a.Notes {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}

	for _, form := range a.Forms {
		fmt.Fprintf(&b, "\n%s  purpose=%s  container=%s\n", form.FormID, form.Purpose, form.ContainerSelector)
		for _, f := range form.Fields {
			fmt.Fprintf(&b, "  - %-9s %-10s %s\n", f.Classification, f.InputType, f.Label())
		}
		if form.SubmitElement != nil {
			text := form.SubmitElement.Text
			if text == "" {
				text = form.SubmitElement.Tag
			}
			fmt.Fprintf(&b, "  submit: %s\n", text)
		}
		for _, note := range form.Notes {
			fmt.Fprintf(&b, "  note: %s\n", note)
		}
	}
	b.WriteString("\n")

	return t.write(b.String())
}

// WriteError writes a one-line failure.
func (t *TextWriter) WriteError(err *PageError) error {
	return t.write(fmt.Sprintf("FAILED %s [%s] after %d attempt(s): %s\n",
		err.URL, err.Type, err.Attempts, err.Error))
}

// WriteSummary writes the batch totals.
func (t *TextWriter) WriteSummary(s *BatchSummary) error {
	var b strings.Builder
	rule := strings.Repeat("=", 50)
	b.WriteString("Batch Summary\n" + rule + "\n")
	fmt.Fprintf(&b, "URLs: %d (analyzed %d, failed %d, duplicates %d)\n",
		s.Statistics.TotalURLs, s.Statistics.Analyzed, s.Statistics.Failed, s.Statistics.SkippedDuplicate)
	fmt.Fprintf(&b, "Forms: %d  Fields: %d  Required: %d\n",
		s.Statistics.Forms, s.Statistics.Fields, s.Statistics.RequiredFields)

	types := make([]string, 0, len(s.PageTypes))
	for k := range s.PageTypes {
		types = append(types, k)
	}
	sort.Strings(types)
	for _, k := range types {
		fmt.Fprintf(&b, "  %-8s %d\n", k, s.PageTypes[k])
	}
	fmt.Fprintf(&b, "Duration: %s\n%s\n", s.Duration, rule)

	return t.write(b.String())
}

func (t *TextWriter) write(s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	_, err := io.WriteString(t.writer, s)
	return err
}

// Flush is a no-op; writes are unbuffered.
func (t *TextWriter) Flush() error {
	return nil
}

// Close closes the underlying writer when it is closable.
func (t *TextWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if closer, ok := t.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
