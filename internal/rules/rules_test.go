package rules

import "testing"

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Rules)
		wantErr bool
	}{
		{"defaults", func(r *Rules) {}, false},
		{"empty tracking pattern", func(r *Rules) { r.Tracking = append(r.Tracking, " ") }, true},
		{"empty keep pattern", func(r *Rules) { r.KeepHidden = []string{""} }, true},
		{"zero mixed threshold", func(r *Rules) { r.MixedFieldThreshold = 0 }, true},
		{"zero listing threshold", func(r *Rules) { r.ListingSelectThreshold = 0 }, true},
		{"no patterns at all", func(r *Rules) { r.Tracking = nil; r.KeepHidden = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Default()
			tt.mutate(&r)
			if err := r.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClone_Independent(t *testing.T) {
	r := Default()
	c := r.Clone()
	c.Tracking[0] = "changed"

	if r.Tracking[0] == "changed" {
		t.Error("Clone shares the Tracking slice")
	}
}

func TestMatchers(t *testing.T) {
	r := Default()

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"tracking by name", r.IsTracking("_gat_UA", ""), true},
		{"tracking by id", r.IsTracking("", "FB_pixel"), true},
		{"tracking none", r.IsTracking("q", "query"), false},
		{"token by name", r.IsKeptToken("csrf_token", ""), true},
		{"token case insensitive", r.IsKeptToken("__RequestVerificationToken", ""), true},
		{"token none", r.IsKeptToken("step", "wizard"), false},
		{"required by label", r.MatchesRequired("", "", "Your Username"), true},
		{"required none", r.MatchesRequired("q", "", "Search"), false},
		{"empty values", r.MatchesRequired("", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
