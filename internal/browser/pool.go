package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/PentesterFlow/FieldAnalyzer/internal/errors"
	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
)

// Pool manages a pool of browser instances.
type Pool struct {
	mu       sync.Mutex
	browsers []*Browser
	config   Config
	log      *logger.Logger
	size     int
	current  int
	closed   bool
	sem      chan struct{}
	inUse    map[*Browser]int
	launch   func(Config, *logger.Logger) (*Browser, error)
}

// NewPool launches config.PoolSize browsers.
func NewPool(config Config, log *logger.Logger) (*Pool, error) {
	if config.PoolSize < 1 {
		config.PoolSize = 1
	}
	if log == nil {
		log = logger.Nop()
	}

	pool := &Pool{
		browsers: make([]*Browser, config.PoolSize),
		config:   config,
		log:      log,
		size:     config.PoolSize,
		sem:      make(chan struct{}, config.PoolSize),
		inUse:    make(map[*Browser]int),
		launch:   New,
	}

	for i := 0; i < config.PoolSize; i++ {
		pool.sem <- struct{}{}
	}

	for i := 0; i < config.PoolSize; i++ {
		browser, err := pool.launch(config, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create browser %d: %w", i, err)
		}
		pool.browsers[i] = browser
	}

	return pool, nil
}

// Acquire gets a browser from the pool, recycling it first when it has
// served RecycleAfter pages and no other page is open on it.
func (p *Pool) Acquire(ctx context.Context) (*Browser, error) {
	select {
	case <-p.sem:
	case <-ctx.Done():
		return nil, errors.NewCancelledError("", "acquire browser")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.NewBrowserError("", "acquire browser", fmt.Errorf("pool is closed"))
	}

	i := p.current
	browser := p.browsers[i]
	p.current = (p.current + 1) % p.size

	if browser.NeedsRecycle() && p.inUse[browser] == 0 {
		p.log.Event(logger.DebugLevel).Int("pages", browser.PageCount()).Msg("Recycling browser")
		_ = browser.Close()
		fresh, err := p.launch(p.config, p.log)
		if err != nil {
			p.sem <- struct{}{}
			return nil, fmt.Errorf("failed to recycle browser: %w", err)
		}
		p.browsers[i] = fresh
		browser = fresh
	}

	p.inUse[browser]++
	return browser, nil
}

// Release returns a browser to the pool.
func (p *Pool) Release(b *Browser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse[b] > 1 {
		p.inUse[b]--
	} else {
		delete(p.inUse, b)
	}
	if !p.closed {
		p.sem <- struct{}{}
	}
}

// Load acquires a browser and loads url on it. The browser is released
// when the returned page is closed.
func (p *Pool) Load(ctx context.Context, url string) (*Page, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}

	browser, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	page, err := browser.Load(ctx, url)
	if err != nil {
		p.Release(browser)
		return nil, err
	}
	page.release = func() { p.Release(browser) }
	return page, nil
}

// Close closes all browsers in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var lastErr error
	for _, browser := range p.browsers {
		if browser != nil {
			if err := browser.Close(); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}

// PoolStats reports pool usage.
type PoolStats struct {
	Size       int `json:"size"`
	Available  int `json:"available"`
	TotalPages int `json:"total_pages"`
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	totalPages := 0
	for _, b := range p.browsers {
		if b != nil {
			totalPages += b.PageCount()
		}
	}

	return PoolStats{
		Size:       p.size,
		Available:  len(p.sem),
		TotalPages: totalPages,
	}
}
