package browser

import (
	"context"
	"testing"
	"time"

	"github.com/PentesterFlow/FieldAnalyzer/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.NavigationTimeout != 30*time.Second {
		t.Errorf("NavigationTimeout = %v, want 30s", cfg.NavigationTimeout)
	}
	if cfg.NetworkIdle != 2*time.Second {
		t.Errorf("NetworkIdle = %v, want 2s", cfg.NetworkIdle)
	}
	if cfg.DOMSettle != time.Second {
		t.Errorf("DOMSettle = %v, want 1s", cfg.DOMSettle)
	}
	if cfg.ViewportWidth != 1920 || cfg.ViewportHeight != 1080 {
		t.Errorf("viewport = %dx%d, want 1920x1080", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if !cfg.Headless {
		t.Error("Headless should be true by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pool", func(c *Config) { c.PoolSize = 0 }},
		{"zero timeout", func(c *Config) { c.NavigationTimeout = 0 }},
		{"negative idle", func(c *Config) { c.NetworkIdle = -time.Second }},
		{"negative settle", func(c *Config) { c.DOMSettle = -time.Second }},
		{"empty viewport", func(c *Config) { c.ViewportWidth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/login", false},
		{"http://localhost:8080", false},
		{"ftp://example.com", true},
		{"example.com", true},
		{"", true},
		{"file:///tmp/page.html", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateURL(%q) = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && errors.GetErrorType(err) != errors.Config {
				t.Errorf("error type = %v, want config", errors.GetErrorType(err))
			}
		})
	}
}

func TestPool_LoadRejectsBadURL(t *testing.T) {
	// No browsers are launched; URL validation runs first.
	p := &Pool{size: 1, sem: make(chan struct{}, 1)}

	_, err := p.Load(context.Background(), "javascript:alert(1)")
	if errors.GetErrorType(err) != errors.Config {
		t.Errorf("Load() error = %v, want config error", err)
	}
}

func TestPool_AcquireCancelled(t *testing.T) {
	p := &Pool{size: 1, sem: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Acquire(ctx)
	if errors.GetErrorType(err) != errors.Cancelled {
		t.Errorf("Acquire() error = %v, want cancelled", err)
	}
}

func TestPool_AcquireClosed(t *testing.T) {
	p := &Pool{size: 1, sem: make(chan struct{}, 1), browsers: make([]*Browser, 1)}
	p.sem <- struct{}{}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	if _, err := p.Acquire(context.Background()); err == nil {
		t.Error("Acquire() on closed pool should fail")
	}
	// Release after close must not block.
	p.Release(nil)
}

func TestNetworkHeaders(t *testing.T) {
	h := networkHeaders(map[string]string{
		"Authorization": "Bearer abc",
		"Cookie":        "session=1",
	})
	if len(h) != 2 {
		t.Fatalf("len = %d, want 2", len(h))
	}
	if got := h["Authorization"].Str(); got != "Bearer abc" {
		t.Errorf("Authorization = %q", got)
	}
	if got := h["Cookie"].Str(); got != "session=1" {
		t.Errorf("Cookie = %q", got)
	}
}
