// Package classify assigns field classifications, form purposes and the
// page type. Each decision is an ordered table of rules evaluated top to
// bottom; the first rule that matches decides.
package classify

import (
	"strings"

	"github.com/PentesterFlow/FieldAnalyzer/internal/rules"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// FieldRule maps a field to a classification when it applies.
type FieldRule struct {
	Name  string
	Match func(r rules.Rules, f page.Field) (page.Classification, bool)
}

func when(c page.Classification, pred func(r rules.Rules, f page.Field) bool) func(rules.Rules, page.Field) (page.Classification, bool) {
	return func(r rules.Rules, f page.Field) (page.Classification, bool) {
		if pred(r, f) {
			return c, true
		}
		return "", false
	}
}

// FieldRules is the requirement precedence.
var FieldRules = []FieldRule{
	{"hidden", when(page.ClassificationHidden, func(_ rules.Rules, f page.Field) bool {
		return f.IsHidden()
	})},
	{"required attribute", when(page.ClassificationRequired, func(_ rules.Rules, f page.Field) bool {
		return f.Required
	})},
	{"password", when(page.ClassificationRequired, func(_ rules.Rules, f page.Field) bool {
		return f.IsPassword()
	})},
	{"required keyword", when(page.ClassificationRequired, func(r rules.Rules, f page.Field) bool {
		return r.MatchesRequired(f.Name, f.ID, f.Label())
	})},
	{"email type", when(page.ClassificationRequired, func(_ rules.Rules, f page.Field) bool {
		return f.InputType == "email"
	})},
	{"choice", when(page.ClassificationOptional, func(_ rules.Rules, f page.Field) bool {
		return f.InputType == "checkbox" || f.InputType == "radio"
	})},
	{"select", when(page.ClassificationOptional, func(_ rules.Rules, f page.Field) bool {
		return f.IsSelect()
	})},
	{"placeholder hint", func(_ rules.Rules, f page.Field) (page.Classification, bool) {
		ph := strings.ToLower(f.Placeholder)
		switch {
		case ph == "":
			return "", false
		case strings.Contains(ph, "optional"):
			return page.ClassificationOptional, true
		case strings.Contains(ph, "required") || strings.Contains(ph, "*"):
			return page.ClassificationRequired, true
		}
		return "", false
	}},
}

// Field returns the classification of f and the name of the deciding rule.
func Field(r rules.Rules, f page.Field) (page.Classification, string) {
	for _, rule := range FieldRules {
		if c, ok := rule.Match(r, f); ok {
			return c, rule.Name
		}
	}
	return page.ClassificationOptional, "default"
}

// Fields returns a copy of form with every field classified and
// HasRequiredFields set.
func Fields(r rules.Rules, form page.Form) page.Form {
	out := form.Clone()
	out.HasRequiredFields = false
	for i := range out.Fields {
		c, _ := Field(r, out.Fields[i])
		out.Fields[i].Classification = c
		if c == page.ClassificationRequired {
			out.HasRequiredFields = true
		}
	}
	return out
}
