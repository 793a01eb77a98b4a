// Package rules holds the static pattern sets and thresholds that drive
// filtering and classification. A Rules value is built once and passed into
// every stage; stages never modify it.
package rules

import (
	"fmt"
	"strings"
)

// Rules configures the filter and the classifiers.
type Rules struct {
	// KeepHidden lists substrings marking a hidden input as a token worth keeping.
	KeepHidden []string `json:"keep_hidden" yaml:"keep_hidden"`
	// Tracking lists substrings marking a field as analytics noise.
	Tracking []string `json:"tracking" yaml:"tracking"`
	// RequiredKeywords lists substrings that make a field required.
	RequiredKeywords []string `json:"required_keywords" yaml:"required_keywords"`

	// MixedFieldThreshold is the visible field count above which an
	// otherwise unclassified form is "mixed".
	MixedFieldThreshold int `json:"mixed_field_threshold" yaml:"mixed_field_threshold"`
	// ListingSelectThreshold is the select count from which a form is a listing.
	ListingSelectThreshold int `json:"listing_select_threshold" yaml:"listing_select_threshold"`
}

// Default returns the built-in rule set.
func Default() Rules {
	return Rules{
		KeepHidden: []string{
			"csrf", "token", "session", "authenticity",
			"_token", "csrfmiddlewaretoken", "__requestverificationtoken",
		},
		Tracking: []string{
			"ga", "gtm", "analytics", "tracking", "pixel",
			"facebook", "fb", "twitter", "linkedin",
		},
		RequiredKeywords: []string{
			"email", "username", "user", "login", "password",
			"pass", "pwd", "signin", "sign-in",
		},
		MixedFieldThreshold:    5,
		ListingSelectThreshold: 2,
	}
}

// Validate checks the rule set for values no stage can work with.
func (r Rules) Validate() error {
	for name, set := range map[string][]string{
		"keep_hidden":       r.KeepHidden,
		"tracking":          r.Tracking,
		"required_keywords": r.RequiredKeywords,
	} {
		for _, p := range set {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("rules: %s contains an empty pattern", name)
			}
		}
	}
	if r.MixedFieldThreshold < 1 {
		return fmt.Errorf("rules: mixed_field_threshold must be at least 1")
	}
	if r.ListingSelectThreshold < 1 {
		return fmt.Errorf("rules: listing_select_threshold must be at least 1")
	}
	return nil
}

// Clone returns a copy that shares no slices with r.
func (r Rules) Clone() Rules {
	c := r
	c.KeepHidden = append([]string(nil), r.KeepHidden...)
	c.Tracking = append([]string(nil), r.Tracking...)
	c.RequiredKeywords = append([]string(nil), r.RequiredKeywords...)
	return c
}

// IsTracking reports whether name or id contains a tracking pattern.
func (r Rules) IsTracking(name, id string) bool {
	return ContainsAny(r.Tracking, name, id)
}

// IsKeptToken reports whether name or id contains a keep-hidden pattern.
func (r Rules) IsKeptToken(name, id string) bool {
	return ContainsAny(r.KeepHidden, name, id)
}

// MatchesRequired reports whether any value contains a required keyword.
func (r Rules) MatchesRequired(values ...string) bool {
	return ContainsAny(r.RequiredKeywords, values...)
}

// ContainsAny reports whether any value contains any pattern, ignoring case.
// Empty values never match.
func ContainsAny(patterns []string, values ...string) bool {
	for _, v := range values {
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		for _, p := range patterns {
			if strings.Contains(lower, strings.ToLower(p)) {
				return true
			}
		}
	}
	return false
}
