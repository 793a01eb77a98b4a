// Package output writes page analyses as JSON documents, JSON lines or a
// human-readable report.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// Writer defines the interface for output writers.
type Writer interface {
	// WriteAnalysis writes one page analysis.
	WriteAnalysis(a *page.Analysis) error

	// WriteError writes a failed page (batch runs).
	WriteError(err *PageError) error

	// WriteSummary writes the end-of-batch summary.
	WriteSummary(s *BatchSummary) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config holds output configuration.
type Config struct {
	Format   string `json:"format" yaml:"format"`
	Pretty   bool   `json:"pretty" yaml:"pretty"`
	Stream   bool   `json:"stream" yaml:"stream"` // JSON lines, one event per page
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
}

// DefaultConfig returns pretty JSON on stdout.
func DefaultConfig() Config {
	return Config{Format: FormatJSON, Pretty: true}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Format {
	case FormatJSON, FormatText, "":
		return nil
	default:
		return fmt.Errorf("output: unknown format %q", c.Format)
	}
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case FormatText:
		return NewTextWriter(w)
	default:
		return NewJSONWriter(w, config.Pretty, config.Stream)
	}
}

// Open creates a writer for config.FilePath, or stdout when it is empty.
// Closing the writer never closes stdout.
func Open(config Config) (Writer, error) {
	if config.FilePath == "" {
		return NewWriter(nopCloser{os.Stdout}, config), nil
	}
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return NewWriter(f, config), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
