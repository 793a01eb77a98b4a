// Package browser provides headless Chrome integration via Rod.
//
// A Browser loads a URL, waits for the page to settle and hands back a
// Page that implements dom.Page over the live document.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/PentesterFlow/FieldAnalyzer/internal/errors"
	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
)

// Config defines browser configuration.
type Config struct {
	PoolSize          int           `json:"pool_size" yaml:"pool_size"`
	Headless          bool          `json:"headless" yaml:"headless"`
	Bin               string        `json:"bin,omitempty" yaml:"bin,omitempty"` // Chrome binary; empty lets rod find or download one
	NavigationTimeout time.Duration `json:"navigation_timeout" yaml:"navigation_timeout"`
	NetworkIdle       time.Duration `json:"network_idle" yaml:"network_idle"`
	DOMSettle         time.Duration `json:"dom_settle" yaml:"dom_settle"`
	UserAgent         string        `json:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height" yaml:"viewport_height"`
	RecycleAfter      int           `json:"recycle_after" yaml:"recycle_after"`
	IgnoreHTTPSErrors bool          `json:"ignore_https_errors" yaml:"ignore_https_errors"`

	// Sent with every request, e.g. a session cookie or Authorization header
	ExtraHeaders map[string]string `json:"extra_headers,omitempty" yaml:"extra_headers,omitempty"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		PoolSize:          1,
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		NetworkIdle:       2 * time.Second,
		DOMSettle:         time.Second,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		RecycleAfter:      75,
		IgnoreHTTPSErrors: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("browser: pool_size must be at least 1")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("browser: navigation_timeout must be positive")
	}
	if c.NetworkIdle < 0 || c.DOMSettle < 0 {
		return fmt.Errorf("browser: wait durations must not be negative")
	}
	if c.ViewportWidth < 1 || c.ViewportHeight < 1 {
		return fmt.Errorf("browser: viewport must be at least 1x1")
	}
	return nil
}

// Browser wraps a Rod browser instance.
type Browser struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	config    Config
	log       *logger.Logger
	mu        sync.Mutex
	pageCount int
}

// New launches Chrome and connects to it.
func New(config Config, log *logger.Logger) (*Browser, error) {
	if log == nil {
		log = logger.Nop()
	}

	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Leakless(true).
		Headless(config.Headless)

	if config.Bin != "" {
		l = l.Bin(config.Bin)
	}
	if config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors", "true")
	}

	u, err := l.Launch()
	if err != nil {
		return nil, errors.NewBrowserError("", "launch", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, errors.NewBrowserError("", "connect", err)
	}

	return &Browser{
		browser:  browser,
		launcher: l,
		config:   config,
		log:      log.WithComponent("browser"),
	}, nil
}

// ValidateURL rejects anything but absolute http(s) URLs.
func ValidateURL(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.NewConfigError(url, "url must start with http:// or https://")
	}
	return nil
}

// Load opens url in a new tab and waits for it to settle. The caller must
// Close the returned page.
func (b *Browser) Load(ctx context.Context, url string) (*Page, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError(url, "load")
	}

	b.mu.Lock()
	b.pageCount++
	b.mu.Unlock()

	start := time.Now()
	log := b.log.WithURL(url)

	rp, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, errors.NewBrowserError(url, "create page", err)
	}
	rp = rp.Context(ctx)

	// Viewport and user agent are best effort.
	_ = rp.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  b.config.ViewportWidth,
		Height: b.config.ViewportHeight,
	})
	if b.config.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{UserAgent: b.config.UserAgent}.Call(rp)
	}
	if len(b.config.ExtraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: networkHeaders(b.config.ExtraHeaders)}.Call(rp)
	}

	st := newStabilizer(b.config, log)
	waitIdle := st.watchRequests(rp)

	nav := rp.Timeout(b.config.NavigationTimeout)
	if err := nav.Navigate(url); err != nil {
		_ = rp.Close()
		return nil, b.loadError(ctx, url, "navigate", err)
	}
	if err := nav.WaitLoad(); err != nil {
		_ = rp.Close()
		return nil, b.loadError(ctx, url, "wait load", err)
	}

	st.settle(rp, waitIdle)
	if ctx.Err() != nil {
		_ = rp.Close()
		return nil, errors.NewCancelledError(url, "load")
	}

	log.Event(logger.DebugLevel).Dur("duration", time.Since(start)).Msg("Page loaded")
	return newPage(url, rp), nil
}

func (b *Browser) loadError(ctx context.Context, url, op string, err error) error {
	if ctx.Err() != nil {
		return errors.NewCancelledError(url, op)
	}
	e := errors.Categorize(err, url, op)
	if e.Type == errors.Unknown {
		return errors.NewNavigationError(url, err)
	}
	return e
}

// Close closes the browser and kills the launched process.
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return err
}

// PageCount returns the number of pages loaded.
func (b *Browser) PageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pageCount
}

// NeedsRecycle checks if the browser needs recycling.
func (b *Browser) NeedsRecycle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.RecycleAfter > 0 && b.pageCount >= b.config.RecycleAfter
}

// GetConfig returns the browser configuration.
func (b *Browser) GetConfig() Config {
	return b.config
}

func networkHeaders(headers map[string]string) proto.NetworkHeaders {
	out := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		out[k] = gson.New(v)
	}
	return out
}
