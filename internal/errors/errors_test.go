package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ErrorType Tests
// =============================================================================

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{Unknown, "unknown"},
		{Navigation, "navigation"},
		{Timeout, "timeout"},
		{Browser, "browser"},
		{Query, "query"},
		{Config, "config"},
		{Cancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorType_IsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{Navigation, true},
		{Timeout, true},
		{Browser, true},
		{Query, false},
		{Config, false},
		{Cancelled, false},
		{Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.errType.String(), func(t *testing.T) {
			if got := tt.errType.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

// =============================================================================
// AnalysisError Tests
// =============================================================================

func TestAnalysisError_Error(t *testing.T) {
	err := New(Navigation, "https://example.com", "navigate", "page could not be loaded", nil)

	want := "navigation error during navigate on https://example.com: page could not be loaded"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAnalysisError_Error_WithCause(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := NewNavigationError("https://example.com", cause)

	if got := err.Error(); !strings.Contains(got, "caused by: net::ERR_NAME_NOT_RESOLVED") {
		t.Errorf("Error() = %q, should include cause", got)
	}
}

func TestAnalysisError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewBrowserError("url", "eval", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestAnalysisError_Is(t *testing.T) {
	err := fmt.Errorf("load: %w", NewTimeoutError("url", "navigate", nil))

	if !errors.Is(err, &AnalysisError{Type: Timeout}) {
		t.Error("wrapped timeout should match Timeout target")
	}
	if errors.Is(err, &AnalysisError{Type: Navigation}) {
		t.Error("timeout should not match Navigation target")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *AnalysisError
		wantType  ErrorType
		retryable bool
	}{
		{"navigation", NewNavigationError("u", nil), Navigation, true},
		{"timeout", NewTimeoutError("u", "op", nil), Timeout, true},
		{"browser", NewBrowserError("u", "op", nil), Browser, true},
		{"query", NewQueryError("u", "op", nil), Query, false},
		{"config", NewConfigError("u", "bad"), Config, false},
		{"cancelled", NewCancelledError("u", "op"), Cancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", tt.err.Type, tt.wantType)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
		})
	}
}

// =============================================================================
// Categorize Tests
// =============================================================================

func TestCategorize(t *testing.T) {
	existing := NewQueryError("u", "query", nil)

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"existing", fmt.Errorf("wrap: %w", existing), Query},
		{"canceled", context.Canceled, Cancelled},
		{"deadline", context.DeadlineExceeded, Timeout},
		{"timeout text", errors.New("navigation timeout"), Timeout},
		{"chrome net error", errors.New("net::ERR_CONNECTION_REFUSED"), Navigation},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, Navigation},
		{"other", errors.New("something odd"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err, "u", "op")
			if got.Type != tt.want {
				t.Errorf("Categorize() type = %v, want %v", got.Type, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(fmt.Errorf("read: %w", context.Canceled)); got != Cancelled {
		t.Errorf("Classify(canceled) = %v, want Cancelled", got)
	}
	if got := Classify(nil); got != Unknown {
		t.Errorf("Classify(nil) = %v, want Unknown", got)
	}
}

func TestCategorize_Nil(t *testing.T) {
	if Categorize(nil, "u", "op") != nil {
		t.Error("Categorize(nil) should be nil")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"navigation", NewNavigationError("u", nil), true},
		{"query", NewQueryError("u", "op", nil), false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetErrorType(t *testing.T) {
	if got := GetErrorType(NewConfigError("u", "bad")); got != Config {
		t.Errorf("GetErrorType() = %v, want Config", got)
	}
	if got := GetErrorType(errors.New("plain")); got != Unknown {
		t.Errorf("GetErrorType() = %v, want Unknown", got)
	}
}

// =============================================================================
// Retry Tests
// =============================================================================

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", cfg.InitialDelay)
	}
	if len(cfg.RetryableTypes) == 0 {
		t.Error("RetryableTypes should not be empty")
	}
}

func fastRetrier(maxRetries int) *Retrier {
	return NewRetrier(RetryConfig{
		MaxRetries:     maxRetries,
		InitialDelay:   time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Navigation, Timeout, Browser},
	})
}

func TestRetrier_Do_Success(t *testing.T) {
	r := NewDefaultRetrier()
	calls := 0

	result := r.Do(context.Background(), "load", "url", func(ctx context.Context) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Error("Should succeed")
	}
	if result.Attempts != 1 || calls != 1 {
		t.Errorf("Attempts = %d, calls = %d, want 1", result.Attempts, calls)
	}
}

func TestRetrier_Do_RetryOnError(t *testing.T) {
	r := fastRetrier(2)

	calls := 0
	result := r.Do(context.Background(), "load", "url", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewNavigationError("url", nil)
		}
		return nil
	})

	if !result.Success {
		t.Error("Should succeed after retries")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetrier_Do_MaxRetriesExceeded(t *testing.T) {
	r := fastRetrier(2)

	result := r.Do(context.Background(), "load", "url", func(ctx context.Context) error {
		return NewBrowserError("url", "eval", nil)
	})

	if result.Success {
		t.Error("Should fail after max retries")
	}
	if result.Attempts != 3 { // 1 initial + 2 retries
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if GetErrorType(result.LastError) != Browser {
		t.Errorf("LastError = %v, want browser error", result.LastError)
	}
}

func TestRetrier_Do_NoRetryForNonRetryable(t *testing.T) {
	r := fastRetrier(3)
	calls := 0

	result := r.Do(context.Background(), "load", "url", func(ctx context.Context) error {
		calls++
		return NewQueryError("url", "query", nil)
	})

	if result.Success {
		t.Error("Should fail")
	}
	if calls != 1 {
		t.Errorf("Function called %d times, want 1 (no retry)", calls)
	}
}

func TestRetrier_Do_ContextCancellation(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := r.Do(ctx, "load", "url", func(ctx context.Context) error {
		return NewNavigationError("url", nil)
	})

	if result.Success {
		t.Error("Should fail on cancellation")
	}
	if GetErrorType(result.LastError) != Cancelled {
		t.Errorf("LastError = %v, want cancelled", result.LastError)
	}
}

func TestDoWithResult(t *testing.T) {
	r := fastRetrier(1)
	calls := 0

	got, result := DoWithResult(context.Background(), r, "load", "url", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTimeoutError("url", "load", nil)
		}
		return "ok", nil
	})

	if !result.Success || got != "ok" {
		t.Errorf("DoWithResult = %q, success %v", got, result.Success)
	}
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // Capped at max
	}

	for _, tt := range tests {
		got := BackoffDuration(tt.attempt, time.Second, 10*time.Second, 2.0)
		if got != tt.want {
			t.Errorf("BackoffDuration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
