package browser

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/PentesterFlow/FieldAnalyzer/internal/logger"
)

// Resource types that never hold up form rendering.
var ignoredResources = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeMedia,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
}

// stabilizer waits for a loaded page to stop changing: first for the
// network to go quiet, then for the DOM to stop mutating. Both waits are
// bounded; a page that never settles is analyzed as-is.
type stabilizer struct {
	idle      time.Duration
	domSettle time.Duration
	maxWait   time.Duration
	log       *logger.Logger
}

func newStabilizer(cfg Config, log *logger.Logger) *stabilizer {
	return &stabilizer{
		idle:      cfg.NetworkIdle,
		domSettle: cfg.DOMSettle,
		maxWait:   cfg.NavigationTimeout,
		log:       log,
	}
}

// watchRequests starts tracking requests. It must be called before
// navigation so early XHRs are seen.
func (s *stabilizer) watchRequests(p *rod.Page) func() {
	if s.idle <= 0 {
		return nil
	}
	return p.Timeout(s.maxWait).WaitRequestIdle(s.idle, nil, nil, ignoredResources)
}

// settle blocks until the page is stable or the waits time out.
func (s *stabilizer) settle(p *rod.Page, waitIdle func()) {
	start := time.Now()

	if waitIdle != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			waitIdle()
		}()
		select {
		case <-done:
		case <-time.After(s.maxWait):
			s.log.Warn("network did not become idle, proceeding")
		case <-p.GetContext().Done():
			return
		}
	}

	if s.domSettle > 0 {
		// Allow a few settle windows for the DOM diff to fall to zero.
		if err := p.Timeout(4*s.domSettle).WaitDOMStable(s.domSettle, 0); err != nil {
			s.log.WithError(err).Warn("DOM did not settle, proceeding")
		}
	}

	s.log.Event(logger.DebugLevel).Dur("stabilize", time.Since(start)).Msg("Page stabilized")
}
