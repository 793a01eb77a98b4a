package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
)

var _ dom.Page = (*Page)(nil)

// Page is a loaded browser tab exposed as a dom.Page. Handles returned by
// Query are *rod.Element values.
type Page struct {
	url     string
	rp      *rod.Page
	release func()
}

func newPage(url string, rp *rod.Page) *Page {
	return &Page{url: url, rp: rp}
}

// URL implements dom.Page.
func (p *Page) URL() string {
	return p.url
}

// Query implements dom.Page.
func (p *Page) Query(ctx context.Context, selector string) ([]dom.Handle, error) {
	els, err := p.rp.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	handles := make([]dom.Handle, len(els))
	for i, el := range els {
		handles[i] = el
	}
	return handles, nil
}

// ReadElementInfo implements dom.Page.
func (p *Page) ReadElementInfo(ctx context.Context, h dom.Handle) (*dom.ElementInfo, error) {
	el, ok := h.(*rod.Element)
	if !ok {
		return nil, fmt.Errorf("browser: unexpected handle type %T", h)
	}

	res, err := el.Context(ctx).Eval(elementInfoJS)
	if err != nil {
		return nil, err
	}

	var info dom.ElementInfo
	if err := res.Value.Unmarshal(&info); err != nil {
		return nil, fmt.Errorf("browser: decode element info: %w", err)
	}
	return &info, nil
}

// ReadContainerMap implements dom.Page.
func (p *Page) ReadContainerMap(ctx context.Context) ([]dom.Container, error) {
	res, err := p.rp.Context(ctx).Eval(containerMapJS, dom.ContainerSelector)
	if err != nil {
		return nil, err
	}

	var containers []dom.Container
	if err := res.Value.Unmarshal(&containers); err != nil {
		return nil, fmt.Errorf("browser: decode container map: %w", err)
	}
	return containers, nil
}

// QuerySubmitWithin implements dom.Page.
func (p *Page) QuerySubmitWithin(ctx context.Context, containerSelector string) (*dom.SubmitInfo, error) {
	res, err := p.rp.Context(ctx).Eval(submitJS, containerSelector, dom.SubmitSelector)
	if err != nil {
		return nil, err
	}
	if res.Value.Nil() {
		return nil, nil
	}

	var info dom.SubmitInfo
	if err := res.Value.Unmarshal(&info); err != nil {
		return nil, fmt.Errorf("browser: decode submit control: %w", err)
	}
	return &info, nil
}

// Close closes the tab and returns its browser to the pool, if any.
func (p *Page) Close() error {
	err := p.rp.Close()
	if p.release != nil {
		p.release()
		p.release = nil
	}
	return err
}

// Shared helpers. selectorOf, nameOf, containerOf and labelOf build the same
// strings the snapshot package builds for static documents; maxDepth mirrors
// dom.MaxSelectorDepth.
const helpersJS = `
const maxDepth = 5;
const selectorOf = (el) => {
	const tag = el.tagName.toLowerCase();
	if (el.id) return '#' + el.id;
	const name = el.getAttribute('name');
	if (name) return tag + '[name="' + name + '"]';
	const path = [];
	for (let cur = el; cur && cur.nodeType === 1; cur = cur.parentElement) {
		let seg = cur.tagName.toLowerCase();
		const cls = (cur.getAttribute('class') || '').trim().split(/\s+/).filter(Boolean);
		if (cls.length) seg += '.' + cls.join('.');
		path.unshift(seg);
		if (path.length > maxDepth) break;
	}
	return path.join(' > ');
};
const nameOf = (el) => {
	if (el.id) return el.tagName.toLowerCase() + '#' + el.id;
	const path = [];
	for (let cur = el; cur && cur !== document.body && cur !== document.documentElement; cur = cur.parentElement) {
		let i = 1;
		for (let s = cur.previousElementSibling; s; s = s.previousElementSibling) {
			if (s.tagName === cur.tagName) i++;
		}
		path.unshift(cur.tagName.toLowerCase() + ':nth-of-type(' + i + ')');
	}
	return path.length ? 'body > ' + path.join(' > ') : 'body';
};
const containerOf = (el) => {
	for (let a = el.parentElement; a; a = a.parentElement) {
		const role = (a.getAttribute('role') || '').toLowerCase();
		if (a.tagName === 'FORM' || role === 'form' || role === 'dialog') return nameOf(a);
	}
	return 'body';
};
const labelOf = (el) => {
	if (el.id) {
		for (const l of document.querySelectorAll('label[for]')) {
			if (l.getAttribute('for') === el.id) {
				const t = (l.textContent || '').trim();
				if (t) return t;
				break;
			}
		}
	}
	const wrap = el.closest('label');
	if (wrap) {
		const t = (wrap.textContent || '').trim();
		if (t) return t;
	}
	const ref = el.getAttribute('aria-labelledby');
	if (ref) {
		return ref.trim().split(/\s+/)
			.map((id) => document.getElementById(id))
			.filter(Boolean)
			.map((n) => (n.textContent || '').trim())
			.filter(Boolean)
			.join(' ');
	}
	return '';
};
`

const elementInfoJS = `function() {` + helpersJS + `
	const el = this;
	const tag = el.tagName.toLowerCase();
	const control = ['input', 'textarea', 'select', 'button'].includes(tag);
	const text = tag === 'input' || tag === 'textarea';
	const lenAttr = (key) => {
		if (!text || !el.hasAttribute(key)) return null;
		const n = parseInt(el.getAttribute(key), 10);
		return isNaN(n) ? null : n;
	};
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	return {
		tagName: tag,
		type: control && el.type ? String(el.type) : '',
		name: control ? (el.getAttribute('name') || '') : '',
		id: el.id || '',
		className: el.getAttribute('class') || '',
		placeholder: text ? (el.getAttribute('placeholder') || '') : '',
		value: control && el.value != null ? String(el.value) : '',
		ariaLabel: el.getAttribute('aria-label') || '',
		role: el.getAttribute('role') || '',
		required: (text || tag === 'select') && !!el.required,
		disabled: control && !!el.disabled,
		readonly: text && !!el.readOnly,
		autocomplete: (text || tag === 'select') ? (el.getAttribute('autocomplete') || '') : '',
		pattern: text ? (el.getAttribute('pattern') || '') : '',
		minLength: lenAttr('minlength'),
		maxLength: lenAttr('maxlength'),
		options: tag === 'select' ? Array.from(el.options).map((o) => ({
			label: o.label || (o.text || '').trim(),
			value: o.value,
			selected: o.selected,
		})) : [],
		displayed: style.display !== 'none' && style.visibility !== 'hidden' && el.getClientRects().length > 0,
		width: rect.width,
		height: rect.height,
		labelText: labelOf(el),
		selector: selectorOf(el),
		container: containerOf(el),
	};
}`

const containerMapJS = `(sel) => {` + helpersJS + `
	const seen = new Set();
	const out = [];
	for (const el of document.querySelectorAll(sel)) {
		const selector = nameOf(el);
		if (seen.has(selector)) continue;
		seen.add(selector);
		const c = {
			selector: selector,
			action: '',
			method: '',
			hasSubmit: !!el.querySelector('button, input[type="submit"]'),
		};
		if (el.tagName === 'FORM') {
			c.action = el.getAttribute('action') ? el.action : '';
			c.method = (el.getAttribute('method') || 'get').toLowerCase();
		}
		out.push(c);
	}
	return out;
}`

const submitJS = `(containerSel, submitSel) => {
	const container = document.querySelector(containerSel);
	if (!container) return null;
	const btn = container.querySelector(submitSel);
	if (!btn) return null;
	const text = (btn.textContent || '').trim() || btn.getAttribute('value') || '';
	return {
		tag: btn.tagName.toLowerCase(),
		type: btn.type ? String(btn.type) : 'button',
		text: text,
		id: btn.id || '',
		className: btn.getAttribute('class') || '',
	};
}`
