package store

import (
	"net/url"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator drops repeated URLs from batch input using a Bloom filter
// backed by an exact set.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
	count  int
	fpRate float64
}

// NewDeduplicator creates a new deduplicator.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	fpRate := 0.001

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), fpRate),
		exact:  make(map[string]struct{}),
		fpRate: fpRate,
	}
}

// Normalize canonicalizes a URL for deduplication: scheme and host are
// lowercased, the fragment and a trailing slash on the path are dropped.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

// Add records a URL and reports whether it was new.
func (d *Deduplicator) Add(rawURL string) bool {
	key := Normalize(rawURL)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.exact[key]; exists {
		return false
	}
	d.filter.AddString(key)
	d.exact[key] = struct{}{}
	d.count++
	return true
}

// HasSeen checks if a URL has been seen before.
func (d *Deduplicator) HasSeen(rawURL string) bool {
	key := Normalize(rawURL)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.filter.TestString(key) {
		return false
	}
	_, exists := d.exact[key]
	return exists
}

// Count returns the number of unique URLs seen.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// Reset resets the deduplicator.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.ClearAll()
	d.exact = make(map[string]struct{})
	d.count = 0
}

// Unique returns urls with repeats removed, keeping first occurrences in order.
func (d *Deduplicator) Unique(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if d.Add(u) {
			out = append(out, u)
		}
	}
	return out
}
