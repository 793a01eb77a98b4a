// Package domtest provides an in-memory dom.Page for tests.
package domtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
)

// Page is a scripted dom.Page. Handles are element indexes.
type Page struct {
	PageURL    string
	Elements   []dom.ElementInfo
	ReadErrors map[int]error
	// ReadDelay lets tests reorder completion of concurrent reads.
	ReadDelay func(i int) time.Duration
	// OnRead runs at the start of every read.
	OnRead   func(i int)
	QueryErr error

	Containers   []dom.Container
	ContainerErr error

	Submits    map[string]*dom.SubmitInfo
	SubmitErrs map[string]error

	reads atomic.Int64
}

var _ dom.Page = (*Page)(nil)

// URL implements dom.Page.
func (p *Page) URL() string {
	if p.PageURL == "" {
		return "https://example.test/"
	}
	return p.PageURL
}

// Query implements dom.Page. The selector is ignored: every scripted element matches.
func (p *Page) Query(ctx context.Context, selector string) ([]dom.Handle, error) {
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	handles := make([]dom.Handle, len(p.Elements))
	for i := range p.Elements {
		handles[i] = i
	}
	return handles, nil
}

// ReadElementInfo implements dom.Page.
func (p *Page) ReadElementInfo(ctx context.Context, h dom.Handle) (*dom.ElementInfo, error) {
	p.reads.Add(1)
	i, ok := h.(int)
	if !ok || i < 0 || i >= len(p.Elements) {
		return nil, fmt.Errorf("domtest: bad handle %v", h)
	}
	if p.OnRead != nil {
		p.OnRead(i)
	}
	if p.ReadDelay != nil {
		select {
		case <-time.After(p.ReadDelay(i)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.ReadErrors[i]; err != nil {
		return nil, err
	}
	info := p.Elements[i]
	return &info, nil
}

// ReadContainerMap implements dom.Page.
func (p *Page) ReadContainerMap(ctx context.Context) ([]dom.Container, error) {
	if p.ContainerErr != nil {
		return nil, p.ContainerErr
	}
	return p.Containers, nil
}

// QuerySubmitWithin implements dom.Page.
func (p *Page) QuerySubmitWithin(ctx context.Context, containerSelector string) (*dom.SubmitInfo, error) {
	if err := p.SubmitErrs[containerSelector]; err != nil {
		return nil, err
	}
	return p.Submits[containerSelector], nil
}

// Reads returns how many ReadElementInfo calls were made.
func (p *Page) Reads() int {
	return int(p.reads.Load())
}

// Input returns a visible input descriptor, a shorthand for table tests.
func Input(typ, name, container string) dom.ElementInfo {
	sel := "input"
	if name != "" {
		sel = fmt.Sprintf("input[name=%q]", name)
	}
	return dom.ElementInfo{
		TagName:   "input",
		Type:      typ,
		Name:      name,
		Displayed: true,
		Width:     120,
		Height:    24,
		Selector:  sel,
		Container: container,
	}
}
