package classify

import (
	"strings"

	"github.com/PentesterFlow/FieldAnalyzer/internal/rules"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// formView is the precomputed input to purpose rules: the visible fields of
// a form and counts over them.
type formView struct {
	visible   []page.Field
	passwords int
	selects   int
	hasEmail  bool
}

func newFormView(form page.Form) formView {
	v := formView{visible: form.VisibleFields()}
	for _, f := range v.visible {
		if f.IsPassword() {
			v.passwords++
		}
		if f.IsSelect() {
			v.selects++
		}
		if f.IsEmail() {
			v.hasEmail = true
		}
	}
	return v
}

func (v formView) any(pred func(page.Field) bool) bool {
	for _, f := range v.visible {
		if pred(f) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// PurposeRule assigns Purpose when Match holds.
type PurposeRule struct {
	Purpose page.Purpose
	Match   func(r rules.Rules, v formView) bool
}

// PurposeRules is the form purpose precedence.
var PurposeRules = []PurposeRule{
	{page.PurposeLogin, func(_ rules.Rules, v formView) bool {
		return v.passwords == 1 && (v.hasEmail || v.any(func(f page.Field) bool {
			return containsFold(f.Name, "user")
		}))
	}},
	{page.PurposeSignup, func(_ rules.Rules, v formView) bool {
		return v.hasEmail && v.passwords >= 2
	}},
	{page.PurposeSearch, func(_ rules.Rules, v formView) bool {
		return len(v.visible) == 1 &&
			(v.visible[0].InputType == "text" || v.visible[0].InputType == "search")
	}},
	{page.PurposeSearch, func(_ rules.Rules, v formView) bool {
		return v.any(func(f page.Field) bool {
			return containsFold(f.Name, "search") ||
				containsFold(f.Placeholder, "search") ||
				f.InputType == "search"
		})
	}},
	{page.PurposeListing, func(r rules.Rules, v formView) bool {
		return v.selects >= r.ListingSelectThreshold
	}},
	{page.PurposeMixed, func(r rules.Rules, v formView) bool {
		return len(v.visible) > r.MixedFieldThreshold
	}},
}

// Purpose infers the role of a form from its visible fields.
func Purpose(r rules.Rules, form page.Form) page.Purpose {
	v := newFormView(form)
	for _, rule := range PurposeRules {
		if rule.Match(r, v) {
			return rule.Purpose
		}
	}
	return page.PurposeUnknown
}

// PageTypeRule picks the page type from the set of form purposes.
type PageTypeRule struct {
	Type  page.Purpose
	Match func(present map[page.Purpose]bool) bool
}

func has(p page.Purpose) func(map[page.Purpose]bool) bool {
	return func(present map[page.Purpose]bool) bool { return present[p] }
}

// PageTypeRules applies when forms disagree on purpose.
var PageTypeRules = []PageTypeRule{
	{page.PurposeMixed, func(present map[page.Purpose]bool) bool {
		return present[page.PurposeLogin] && present[page.PurposeSearch]
	}},
	{page.PurposeLogin, has(page.PurposeLogin)},
	{page.PurposeSignup, has(page.PurposeSignup)},
	{page.PurposeSearch, has(page.PurposeSearch)},
	{page.PurposeListing, has(page.PurposeListing)},
}

// PageType aggregates form purposes into a page type.
func PageType(forms []page.Form) page.Purpose {
	if len(forms) == 0 {
		return page.PurposeUnknown
	}

	present := make(map[page.Purpose]bool)
	for _, f := range forms {
		present[f.Purpose] = true
	}
	if len(present) == 1 {
		return forms[0].Purpose
	}

	for _, rule := range PageTypeRules {
		if rule.Match(present) {
			return rule.Type
		}
	}
	return page.PurposeMixed
}
