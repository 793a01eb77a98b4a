// Package dom defines the page-query contract the analyzer reads through.
//
// Implementations wrap a stabilized snapshot of a page: a live browser tab
// (internal/browser) or a parsed HTML document (internal/snapshot). Callers
// must not invoke any method before the page has settled.
package dom

import "context"

// InteractiveSelector matches every element the extractor considers.
const InteractiveSelector = `input, textarea, select, button, [contenteditable="true"], ` +
	`[role="button"], [role="textbox"], [onclick], [type="submit"]`

// ContainerSelector matches explicit form-like containers.
const ContainerSelector = `form, [role="form"]`

// SubmitSelector matches an explicit submit control within a container.
const SubmitSelector = `button[type="submit"], input[type="submit"], button:not([type="button"])`

// MaxSelectorDepth bounds the tag+class path built for elements without id or name.
const MaxSelectorDepth = 5

// Handle is an opaque reference to a matched element. Only the Page that
// returned it can interpret it.
type Handle interface{}

// Page is a read-only view of a stabilized page.
type Page interface {
	// URL returns the address of the page.
	URL() string

	// Query returns handles for all elements matching selector, in document order.
	Query(ctx context.Context, selector string) ([]Handle, error)

	// ReadElementInfo captures a flat descriptor of one element.
	ReadElementInfo(ctx context.Context, h Handle) (*ElementInfo, error)

	// ReadContainerMap lists explicit form-like containers in document order.
	ReadContainerMap(ctx context.Context) ([]Container, error)

	// QuerySubmitWithin returns the first submit control inside the container,
	// or nil when there is none.
	QuerySubmitWithin(ctx context.Context, containerSelector string) (*SubmitInfo, error)
}

// OptionInfo is one <option> of a select element.
type OptionInfo struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// ElementInfo is the raw descriptor read from one element. Empty strings
// mean the attribute is absent.
type ElementInfo struct {
	TagName      string       `json:"tagName"`
	Type         string       `json:"type"`
	Name         string       `json:"name"`
	ID           string       `json:"id"`
	ClassName    string       `json:"className"`
	Placeholder  string       `json:"placeholder"`
	Value        string       `json:"value"`
	AriaLabel    string       `json:"ariaLabel"`
	Role         string       `json:"role"`
	Required     bool         `json:"required"`
	Disabled     bool         `json:"disabled"`
	ReadOnly     bool         `json:"readonly"`
	Autocomplete string       `json:"autocomplete"`
	Pattern      string       `json:"pattern"`
	MinLength    *int         `json:"minLength"`
	MaxLength    *int         `json:"maxLength"`
	Options      []OptionInfo `json:"options"`

	// Layout as reported by the renderer.
	Displayed bool    `json:"displayed"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`

	// Resolved by the page implementation.
	LabelText string `json:"labelText"`
	Selector  string `json:"selector"`
	Container string `json:"container"`
}

// Container describes an explicit form-like element.
type Container struct {
	Selector  string `json:"selector"`
	Action    string `json:"action"`
	Method    string `json:"method"`
	HasSubmit bool   `json:"hasSubmit"`
}

// SubmitInfo describes a submit control.
type SubmitInfo struct {
	Tag       string `json:"tag"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	ID        string `json:"id"`
	ClassName string `json:"className"`
}
