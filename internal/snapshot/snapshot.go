// Package snapshot implements dom.Page over a static HTML document.
//
// There is no renderer behind a snapshot, so layout is approximated: an
// element is displayed unless it or an ancestor is hidden by the hidden
// attribute or an inline display/visibility style, and displayed elements
// report a nominal box.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// Nominal box reported for displayed elements.
const (
	NominalWidth  = 150
	NominalHeight = 21
)

// Page is a parsed HTML document.
type Page struct {
	url  string
	base *url.URL
	doc  *goquery.Document
}

var _ dom.Page = (*Page)(nil)

// New parses an HTML document. pageURL resolves relative form actions; it
// may be empty.
func New(pageURL string, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot: base url: %w", err)
	}
	return &Page{url: pageURL, base: base, doc: doc}, nil
}

// FromString parses an HTML string.
func FromString(pageURL, document string) (*Page, error) {
	return New(pageURL, strings.NewReader(document))
}

// FromFile parses an HTML file. The page URL defaults to a file:// URL.
func FromFile(path, pageURL string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if pageURL == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		pageURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	return New(pageURL, f)
}

// URL implements dom.Page.
func (p *Page) URL() string {
	return p.url
}

// Query implements dom.Page. Handles are *html.Node values.
func (p *Page) Query(ctx context.Context, selector string) ([]dom.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes := p.doc.Find(selector).Nodes
	handles := make([]dom.Handle, len(nodes))
	for i, n := range nodes {
		handles[i] = n
	}
	return handles, nil
}

// ReadElementInfo implements dom.Page.
func (p *Page) ReadElementInfo(ctx context.Context, h dom.Handle) (*dom.ElementInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, ok := h.(*html.Node)
	if !ok || n == nil || n.Type != html.ElementNode {
		return nil, fmt.Errorf("snapshot: invalid handle %T", h)
	}

	tag := strings.ToLower(n.Data)
	control := isControl(tag)

	info := &dom.ElementInfo{
		TagName:   tag,
		Type:      elementType(n),
		ID:        attr(n, "id"),
		ClassName: attr(n, "class"),
		AriaLabel: attr(n, "aria-label"),
		Role:      attr(n, "role"),
		Selector:  Selector(n),
		Container: Container(n),
		LabelText: p.label(n),
	}

	if control {
		info.Name = attr(n, "name")
		info.Value = p.value(n)
		info.Disabled = hasAttr(n, "disabled")
	}
	if tag == "input" || tag == "textarea" {
		info.Placeholder = attr(n, "placeholder")
		info.ReadOnly = hasAttr(n, "readonly")
		info.Pattern = attr(n, "pattern")
		info.MinLength = intAttr(n, "minlength")
		info.MaxLength = intAttr(n, "maxlength")
	}
	if tag == "input" || tag == "textarea" || tag == "select" {
		info.Required = hasAttr(n, "required")
		info.Autocomplete = attr(n, "autocomplete")
	}
	if tag == "select" {
		info.Options = p.options(n)
	}

	if displayed(n) {
		info.Displayed = true
		info.Width = NominalWidth
		info.Height = NominalHeight
	}

	return info, nil
}

// ReadContainerMap implements dom.Page.
func (p *Page) ReadContainerMap(ctx context.Context) ([]dom.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var containers []dom.Container
	seen := make(map[string]bool)
	p.doc.Find(dom.ContainerSelector).Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		sel := containerName(n)
		if seen[sel] {
			return
		}
		seen[sel] = true

		c := dom.Container{
			Selector:  sel,
			HasSubmit: s.Find(`button, input[type="submit"]`).Length() > 0,
		}
		if strings.EqualFold(n.Data, "form") {
			c.Action = p.resolve(attr(n, "action"))
			c.Method = strings.ToLower(attr(n, "method"))
			if c.Method == "" {
				c.Method = "get"
			}
		}
		containers = append(containers, c)
	})
	return containers, nil
}

// QuerySubmitWithin implements dom.Page.
func (p *Page) QuerySubmitWithin(ctx context.Context, containerSelector string) (*dom.SubmitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	container := p.doc.Find(containerSelector).First()
	if container.Length() == 0 {
		return nil, nil
	}
	btn := container.Find(dom.SubmitSelector).First()
	if btn.Length() == 0 {
		return nil, nil
	}

	n := btn.Nodes[0]
	text := strings.TrimSpace(btn.Text())
	if text == "" {
		text = attr(n, "value")
	}
	typ := elementType(n)
	if typ == "" {
		typ = "button"
	}
	return &dom.SubmitInfo{
		Tag:       strings.ToLower(n.Data),
		Type:      typ,
		Text:      text,
		ID:        attr(n, "id"),
		ClassName: attr(n, "class"),
	}, nil
}

// label resolves the label text: label[for], then an enclosing label, then
// aria-labelledby.
func (p *Page) label(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		var text string
		p.doc.Find("label[for]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if f, _ := s.Attr("for"); f == id {
				text = strings.TrimSpace(s.Text())
				return false
			}
			return true
		})
		if text != "" {
			return text
		}
	}

	for a := n.Parent; a != nil; a = a.Parent {
		if a.Type == html.ElementNode && a.Data == "label" {
			if text := strings.TrimSpace(p.doc.FindNodes(a).Text()); text != "" {
				return text
			}
			break
		}
	}

	if ref := attr(n, "aria-labelledby"); ref != "" {
		var parts []string
		for _, id := range strings.Fields(ref) {
			p.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if v, _ := s.Attr("id"); v == id {
					if t := strings.TrimSpace(s.Text()); t != "" {
						parts = append(parts, t)
					}
					return false
				}
				return true
			})
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func (p *Page) value(n *html.Node) string {
	switch strings.ToLower(n.Data) {
	case "textarea":
		return p.doc.FindNodes(n).Text()
	case "select":
		opts := p.options(n)
		for _, o := range opts {
			if o.Selected {
				return o.Value
			}
		}
		if len(opts) > 0 && !hasAttr(n, "multiple") {
			return opts[0].Value
		}
		return ""
	default:
		return attr(n, "value")
	}
}

func (p *Page) options(n *html.Node) []dom.OptionInfo {
	var opts []dom.OptionInfo
	p.doc.FindNodes(n).Find("option").Each(func(_ int, s *goquery.Selection) {
		o := s.Nodes[0]
		text := strings.TrimSpace(s.Text())
		label := attr(o, "label")
		if label == "" {
			label = text
		}
		value, ok := s.Attr("value")
		if !ok {
			value = text
		}
		opts = append(opts, dom.OptionInfo{
			Label:    label,
			Value:    value,
			Selected: hasAttr(o, "selected"),
		})
	})
	return opts
}

func (p *Page) resolve(action string) string {
	if action == "" {
		if p.base == nil {
			return ""
		}
		return p.base.String()
	}
	ref, err := url.Parse(action)
	if err != nil || p.base == nil {
		return action
	}
	return p.base.ResolveReference(ref).String()
}

// Selector builds a stable selector: #id, then tag[name="..."], then a
// tag.class path from the element up through at most dom.MaxSelectorDepth
// ancestors.
func Selector(n *html.Node) string {
	tag := strings.ToLower(n.Data)
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}
	if name := attr(n, "name"); name != "" {
		return fmt.Sprintf(`%s[name="%s"]`, tag, name)
	}

	var path []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		seg := strings.ToLower(cur.Data)
		if classes := strings.Fields(attr(cur, "class")); len(classes) > 0 {
			seg += "." + strings.Join(classes, ".")
		}
		path = append([]string{seg}, path...)
		if len(path) > dom.MaxSelectorDepth {
			break
		}
	}
	return strings.Join(path, " > ")
}

// Container returns the nearest form, role=form or role=dialog ancestor,
// or the document root.
func Container(n *html.Node) string {
	for a := n.Parent; a != nil; a = a.Parent {
		if a.Type != html.ElementNode {
			continue
		}
		role := strings.ToLower(attr(a, "role"))
		if strings.EqualFold(a.Data, "form") || role == "form" || role == "dialog" {
			return containerName(a)
		}
	}
	return page.RootContainer
}

// containerName is tag#id for containers with an id. Other containers get
// their nth-of-type path from the root, which selects exactly one element.
func containerName(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return strings.ToLower(n.Data) + "#" + id
	}
	var path []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		tag := strings.ToLower(cur.Data)
		if tag == "body" || tag == "html" {
			break
		}
		path = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", tag, typeIndex(cur))}, path...)
	}
	if len(path) == 0 {
		return page.RootContainer
	}
	return page.RootContainer + " > " + strings.Join(path, " > ")
}

// typeIndex is the 1-based position of n among its same-tag siblings.
func typeIndex(n *html.Node) int {
	i := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			i++
		}
	}
	return i
}

// elementType mirrors the DOM type property.
func elementType(n *html.Node) string {
	switch strings.ToLower(n.Data) {
	case "input":
		if t := strings.ToLower(strings.TrimSpace(attr(n, "type"))); t != "" {
			return t
		}
		return "text"
	case "button":
		switch t := strings.ToLower(strings.TrimSpace(attr(n, "type"))); t {
		case "button", "reset":
			return t
		default:
			return "submit"
		}
	case "select":
		if hasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	case "textarea":
		return "textarea"
	default:
		return ""
	}
}

func isControl(tag string) bool {
	switch tag {
	case "input", "textarea", "select", "button":
		return true
	}
	return false
}

// displayed approximates layout for a static document.
func displayed(n *html.Node) bool {
	if strings.EqualFold(n.Data, "input") && strings.EqualFold(attr(n, "type"), "hidden") {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		switch strings.ToLower(cur.Data) {
		case "template", "noscript", "head", "script", "style":
			return false
		}
		if hasAttr(cur, "hidden") {
			return false
		}
		if styleHides(attr(cur, "style")) {
			return false
		}
	}
	return true
}

func styleHides(style string) bool {
	if style == "" {
		return false
	}
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")))
		if (prop == "display" && val == "none") || (prop == "visibility" && val == "hidden") {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func intAttr(n *html.Node, key string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(attr(n, key)))
	if err != nil {
		return nil
	}
	return &v
}
