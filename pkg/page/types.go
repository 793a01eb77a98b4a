// Package page defines the structured model produced by analyzing a page:
// fields, the forms that group them, and the page-level result.
package page

import (
	"fmt"
	"strings"
	"time"
)

// Classification tags a field as required, optional or hidden.
type Classification string

const (
	ClassificationUnknown  Classification = "unknown"
	ClassificationRequired Classification = "required"
	ClassificationOptional Classification = "optional"
	ClassificationHidden   Classification = "hidden"
)

// Purpose is the inferred role of a form, and by aggregation of a page.
type Purpose string

const (
	PurposeLogin   Purpose = "login"
	PurposeSignup  Purpose = "signup"
	PurposeSearch  Purpose = "search"
	PurposeListing Purpose = "listing"
	PurposeMixed   Purpose = "mixed"
	PurposeUnknown Purpose = "unknown"
)

// RootContainer is the container selector used when no form-like ancestor exists.
const RootContainer = "body"

// Option is one choice of a select control.
type Option struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// Field is the normalized descriptor of one interactive element.
type Field struct {
	TagName   string `json:"tag_name"`
	InputType string `json:"input_type"`

	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`

	Placeholder string `json:"placeholder,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
	LabelText   string `json:"label_text,omitempty"`

	Required bool `json:"required"`
	Disabled bool `json:"disabled"`
	Readonly bool `json:"readonly"`
	Visible  bool `json:"visible"`

	Selector        string `json:"selector"`
	ParentContainer string `json:"parent_container"`

	Classification Classification `json:"classification"`

	Value   string   `json:"value,omitempty"`
	Options []Option `json:"options,omitempty"`

	Autocomplete string `json:"autocomplete,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	MinLength    *int   `json:"min_length,omitempty"`
	MaxLength    *int   `json:"max_length,omitempty"`
}

// IsPassword reports whether the field is a password input.
func (f Field) IsPassword() bool {
	return f.InputType == "password"
}

// IsHidden reports whether the field is a hidden input or not rendered.
func (f Field) IsHidden() bool {
	return f.InputType == "hidden" || !f.Visible
}

// IsSubmit reports whether the field is a submit control. Every button
// counts, since a button without a type submits its form.
func (f Field) IsSubmit() bool {
	return f.InputType == "submit" || f.TagName == "button"
}

// IsEmail reports whether the field collects an email address.
func (f Field) IsEmail() bool {
	return f.InputType == "email" ||
		strings.Contains(strings.ToLower(f.Name), "email") ||
		strings.Contains(strings.ToLower(f.ID), "email")
}

// IsSelect reports whether the field is a dropdown.
func (f Field) IsSelect() bool {
	return f.TagName == "select"
}

// Label returns the best available human label for the field.
func (f Field) Label() string {
	switch {
	case f.LabelText != "":
		return f.LabelText
	case f.Placeholder != "":
		return f.Placeholder
	case f.AriaLabel != "":
		return f.AriaLabel
	case f.Name != "":
		return f.Name
	case f.ID != "":
		return f.ID
	default:
		return fmt.Sprintf("%s[%s]", f.TagName, f.InputType)
	}
}

// String implements fmt.Stringer.
func (f Field) String() string {
	return fmt.Sprintf("Field(%s[%s] - %s)", f.TagName, f.InputType, f.Label())
}

// SubmitElement describes the control that submits a form.
type SubmitElement struct {
	Tag       string `json:"tag"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	ID        string `json:"id"`
	ClassName string `json:"class"`
}

// Form is a logical group of fields sharing a submission context.
type Form struct {
	FormID            string         `json:"form_id"`
	Fields            []Field        `json:"fields"`
	SubmitElement     *SubmitElement `json:"submit_element"`
	Purpose           Purpose        `json:"form_purpose"`
	ContainerSelector string         `json:"container_selector"`
	FormTagSelector   string         `json:"form_tag_selector,omitempty"`
	HasRequiredFields bool           `json:"has_required_fields"`
	Notes             []string       `json:"notes"`
}

// Clone returns a deep copy so later stages can derive new values without
// touching the input.
func (f Form) Clone() Form {
	c := f
	c.Fields = append([]Field(nil), f.Fields...)
	c.Notes = append([]string{}, f.Notes...)
	if f.SubmitElement != nil {
		s := *f.SubmitElement
		c.SubmitElement = &s
	}
	return c
}

func (f Form) fieldsWith(c Classification) []Field {
	out := make([]Field, 0)
	for _, field := range f.Fields {
		if field.Classification == c {
			out = append(out, field)
		}
	}
	return out
}

// RequiredFields returns fields classified as required.
func (f Form) RequiredFields() []Field { return f.fieldsWith(ClassificationRequired) }

// OptionalFields returns fields classified as optional.
func (f Form) OptionalFields() []Field { return f.fieldsWith(ClassificationOptional) }

// HiddenFields returns fields classified as hidden (tokens and the like).
func (f Form) HiddenFields() []Field { return f.fieldsWith(ClassificationHidden) }

// VisibleFields returns the rendered fields of the form.
func (f Form) VisibleFields() []Field {
	out := make([]Field, 0, len(f.Fields))
	for _, field := range f.Fields {
		if field.Visible {
			out = append(out, field)
		}
	}
	return out
}

// HasPasswordField reports whether any field is a password input.
func (f Form) HasPasswordField() bool {
	for _, field := range f.Fields {
		if field.IsPassword() {
			return true
		}
	}
	return false
}

// HasEmailField reports whether any field collects an email address.
func (f Form) HasEmailField() bool {
	for _, field := range f.Fields {
		if field.IsEmail() {
			return true
		}
	}
	return false
}

// FieldCount returns the number of fields in the form.
func (f Form) FieldCount() int {
	return len(f.Fields)
}

// String implements fmt.Stringer.
func (f Form) String() string {
	return fmt.Sprintf("Form(id=%s, purpose=%s, fields=%d, required=%d)",
		f.FormID, f.Purpose, len(f.Fields), len(f.RequiredFields()))
}

// Analysis is the complete result for one page.
type Analysis struct {
	URL           string    `json:"url"`
	PageType      Purpose   `json:"page_type"`
	Forms         []Form    `json:"forms"`
	TotalFields   int       `json:"total_fields"`
	TotalRequired int       `json:"total_required"`
	TotalForms    int       `json:"total_forms"`
	Notes         []string  `json:"notes"`
	Timestamp     time.Time `json:"timestamp"`
	DurationMS    float64   `json:"analysis_duration_ms"`
}

// AllFields returns the fields of every form in order.
func (a *Analysis) AllFields() []Field {
	out := make([]Field, 0, a.TotalFields)
	for _, form := range a.Forms {
		out = append(out, form.Fields...)
	}
	return out
}

// HasLoginForm reports whether any form was classified as a login form.
func (a *Analysis) HasLoginForm() bool {
	return a.hasPurpose(PurposeLogin)
}

// HasSearchForm reports whether any form was classified as a search form.
func (a *Analysis) HasSearchForm() bool {
	return a.hasPurpose(PurposeSearch)
}

func (a *Analysis) hasPurpose(p Purpose) bool {
	for _, form := range a.Forms {
		if form.Purpose == p {
			return true
		}
	}
	return false
}

// Summary returns a short human-readable report.
func (a *Analysis) Summary() string {
	rule := strings.Repeat("=", 50)
	var b strings.Builder
	b.WriteString("Page Analysis Summary\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "URL: %s\n", a.URL)
	fmt.Fprintf(&b, "Page Type: %s\n", a.PageType)
	fmt.Fprintf(&b, "Total Forms: %d\n", a.TotalForms)
	fmt.Fprintf(&b, "Total Fields: %d\n", a.TotalFields)
	fmt.Fprintf(&b, "Required Fields: %d\n", a.TotalRequired)
	fmt.Fprintf(&b, "Analysis Time: %.2fms\n", a.DurationMS)
	b.WriteString(rule + "\n")
	return b.String()
}

// String implements fmt.Stringer.
func (a *Analysis) String() string {
	return fmt.Sprintf("PageAnalysis(url=%s, type=%s, forms=%d, fields=%d)",
		a.URL, a.PageType, len(a.Forms), a.TotalFields)
}
