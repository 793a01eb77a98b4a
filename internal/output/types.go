package output

import (
	"time"
)

// PageError describes a page that could not be analyzed.
type PageError struct {
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchSummary contains a summary of a batch run.
type BatchSummary struct {
	RunID       string                 `json:"run_id"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Duration    time.Duration          `json:"duration"`
	Statistics  Statistics             `json:"statistics"`
	PageTypes   map[string]int         `json:"page_types"`
	Metrics     map[string]interface{} `json:"metrics,omitempty"`
}

// Statistics contains batch counts.
type Statistics struct {
	TotalURLs        int `json:"total_urls"`
	Analyzed         int `json:"analyzed"`
	Failed           int `json:"failed"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Forms            int `json:"forms"`
	Fields           int `json:"fields"`
	RequiredFields   int `json:"required_fields"`
}

// StreamEvent represents a streaming output event.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
