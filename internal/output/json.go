package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// JSONWriter writes output in JSON format. In stream mode every record is
// one compact line wrapped in a StreamEvent; otherwise analyses are
// written as standalone documents and errors are skipped.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	stream bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty, stream bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty,
		stream: stream,
	}
}

// WriteAnalysis writes one page analysis.
func (j *JSONWriter) WriteAnalysis(a *page.Analysis) error {
	if j.stream {
		return j.writeEvent("analysis", a)
	}
	return j.writeDocument(a)
}

// WriteError writes a failed page in stream mode.
func (j *JSONWriter) WriteError(err *PageError) error {
	if !j.stream {
		return nil
	}
	return j.writeEvent("error", err)
}

// WriteSummary writes the batch summary.
func (j *JSONWriter) WriteSummary(s *BatchSummary) error {
	if j.stream {
		return j.writeEvent("summary", s)
	}
	return j.writeDocument(s)
}

func (j *JSONWriter) writeDocument(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	return j.writeLine(data)
}

// writeEvent writes a stream event as a single line.
func (j *JSONWriter) writeEvent(typ string, v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	data, err := json.Marshal(StreamEvent{Type: typ, Data: v})
	if err != nil {
		return err
	}
	return j.writeLine(data)
}

func (j *JSONWriter) writeLine(data []byte) error {
	if _, err := j.writer.Write(data); err != nil {
		return err
	}
	_, err := j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	if syncer, ok := j.writer.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
