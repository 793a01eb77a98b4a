package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

type mockFlusher struct {
	bytes.Buffer
	flushed bool
}

func (m *mockFlusher) Flush() error {
	m.flushed = true
	return nil
}

type mockCloser struct {
	bytes.Buffer
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

type mockWriteError struct {
	err error
}

func (m *mockWriteError) Write(p []byte) (n int, err error) {
	return 0, m.err
}

func sampleAnalysis() *page.Analysis {
	return &page.Analysis{
		URL:      "https://example.com/login",
		PageType: page.PurposeLogin,
		Forms: []page.Form{{
			FormID: "form_0123456789abcdef",
			Fields: []page.Field{{
				TagName:         "input",
				InputType:       "email",
				Name:            "email",
				Visible:         true,
				Selector:        "#email",
				ParentContainer: "form#login",
				Classification:  page.ClassificationRequired,
			}},
			SubmitElement:     &page.SubmitElement{Tag: "button", Type: "submit", Text: "Sign in"},
			Purpose:           page.PurposeLogin,
			ContainerSelector: "form#login",
			HasRequiredFields: true,
			Notes:             []string{},
		}},
		TotalFields:   1,
		TotalRequired: 1,
		TotalForms:    1,
		Notes:         []string{},
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		DurationMS:    12.5,
	}
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestJSONWriter_AnalysisDocument(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf, false, false)

	if err := jw.WriteAnalysis(sampleAnalysis()); err != nil {
		t.Fatalf("WriteAnalysis() error = %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	want := []string{"analysis_duration_ms", "forms", "notes", "page_type", "timestamp",
		"total_fields", "total_forms", "total_required", "url"}
	if diff := cmp.Diff(want, keys(doc)); diff != "" {
		t.Errorf("analysis keys mismatch (-want +got):\n%s", diff)
	}

	form := doc["forms"].([]interface{})[0].(map[string]interface{})
	wantForm := []string{"container_selector", "fields", "form_id", "form_purpose",
		"has_required_fields", "notes", "submit_element"}
	if diff := cmp.Diff(wantForm, keys(form)); diff != "" {
		t.Errorf("form keys mismatch (-want +got):\n%s", diff)
	}
	if form["form_purpose"] != "login" {
		t.Errorf("form_purpose = %v, want login", form["form_purpose"])
	}
}

func TestJSONWriter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONWriter(&buf, true, false).WriteAnalysis(sampleAnalysis()); err != nil {
		t.Fatalf("WriteAnalysis() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"url\"") {
		t.Errorf("pretty output not indented:\n%s", buf.String())
	}
}

func TestJSONWriter_Stream(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf, true, true)

	if err := jw.WriteAnalysis(sampleAnalysis()); err != nil {
		t.Fatalf("WriteAnalysis() error = %v", err)
	}
	if err := jw.WriteError(&PageError{URL: "https://down.example", Type: "navigation", Error: "net::ERR", Attempts: 3}); err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}
	if err := jw.WriteSummary(&BatchSummary{RunID: "r1"}); err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (stream output is one event per line):\n%s", len(lines), buf.String())
	}

	var types []string
	for _, line := range lines {
		var ev StreamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		types = append(types, ev.Type)
	}
	if diff := cmp.Diff([]string{"analysis", "error", "summary"}, types); diff != "" {
		t.Errorf("event types mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONWriter_ErrorsSkippedOutsideStream(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf, false, false)
	if err := jw.WriteError(&PageError{URL: "https://down.example"}); err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("non-stream WriteError wrote %q", buf.String())
	}
}

func TestJSONWriter_WriteFailure(t *testing.T) {
	jw := NewJSONWriter(&mockWriteError{err: errors.New("disk full")}, false, false)
	if err := jw.WriteAnalysis(sampleAnalysis()); err == nil {
		t.Error("WriteAnalysis() should surface write errors")
	}
}

func TestJSONWriter_FlushAndClose(t *testing.T) {
	f := &mockFlusher{}
	if err := NewJSONWriter(f, false, false).Flush(); err != nil || !f.flushed {
		t.Errorf("Flush() = %v, flushed = %v", err, f.flushed)
	}

	c := &mockCloser{}
	jw := NewJSONWriter(c, false, false)
	if err := jw.Close(); err != nil || !c.closed {
		t.Errorf("Close() = %v, closed = %v", err, c.closed)
	}
	if err := jw.WriteAnalysis(sampleAnalysis()); err != nil {
		t.Errorf("WriteAnalysis() after Close = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("write after Close produced output: %q", c.String())
	}
}

func TestJSONWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf, false, true)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jw.WriteAnalysis(sampleAnalysis())
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Errorf("got %d lines, want 20", len(lines))
	}
	for _, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Fatalf("interleaved output: %q", line)
		}
	}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTextWriter(&buf)

	a := sampleAnalysis()
	a.Notes = []string{"no form structure detected, created default form"}
	if err := tw.WriteAnalysis(a); err != nil {
		t.Fatalf("WriteAnalysis() error = %v", err)
	}
	if err := tw.WriteError(&PageError{URL: "https://down.example", Type: "timeout", Attempts: 3, Error: "deadline"}); err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}
	if err := tw.WriteSummary(&BatchSummary{
		Statistics: Statistics{TotalURLs: 2, Analyzed: 1, Failed: 1},
		PageTypes:  map[string]int{"login": 1},
	}); err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Page Type: login",
		"Note: no form structure detected",
		"form_0123456789abcdef  purpose=login",
		"submit: Sign in",
		"FAILED https://down.example [timeout] after 3 attempt(s)",
		"analyzed 1, failed 1",
		"login    1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := NewWriter(&buf, Config{Format: FormatText}).(*TextWriter); !ok {
		t.Error("text format should produce a TextWriter")
	}
	if _, ok := NewWriter(&buf, Config{Format: FormatJSON}).(*JSONWriter); !ok {
		t.Error("json format should produce a JSONWriter")
	}
	if _, ok := NewWriter(&buf, Config{}).(*JSONWriter); !ok {
		t.Error("empty format should default to JSON")
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
	if err := (Config{Format: "xml"}).Validate(); err == nil {
		t.Error("unknown format should fail validation")
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")
	w, err := Open(Config{Format: FormatJSON, FilePath: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := w.WriteAnalysis(sampleAnalysis()); err != nil {
		t.Fatalf("WriteAnalysis() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var got page.Analysis
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("file is not an analysis document: %v", err)
	}
	if diff := cmp.Diff(sampleAnalysis(), &got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
