package group

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/PentesterFlow/FieldAnalyzer/internal/dom"
	"github.com/PentesterFlow/FieldAnalyzer/internal/dom/domtest"
	"github.com/PentesterFlow/FieldAnalyzer/internal/metrics"
	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

func in(name, container string) page.Field {
	return page.Field{
		TagName:         "input",
		InputType:       "text",
		Name:            name,
		Visible:         true,
		Selector:        `input[name="` + name + `"]`,
		ParentContainer: container,
	}
}

func formFields(forms []page.Form) map[string][]string {
	out := make(map[string][]string)
	for _, f := range forms {
		for _, field := range f.Fields {
			out[f.ContainerSelector] = append(out[f.ContainerSelector], field.Name)
		}
	}
	return out
}

func TestFormID(t *testing.T) {
	id := FormID("form#login")

	if !regexp.MustCompile(`^form_[0-9a-f]{16}$`).MatchString(id) {
		t.Errorf("FormID() = %q, want form_ + 16 hex digits", id)
	}
	if FormID("form#login") != id {
		t.Error("FormID is not deterministic")
	}
	if FormID("form#signup") == id {
		t.Error("different selectors produced the same id")
	}
}

func TestGroup_Tiers(t *testing.T) {
	p := &domtest.Page{
		Containers: []dom.Container{
			{Selector: "form#login", Method: "post", HasSubmit: true},
			{Selector: "form#empty"},
		},
	}
	fields := []page.Field{
		in("email", "form#login"),
		in("q", "div#search"),
		in("password", "form#login"),
		in("stray", page.RootContainer),
		in("sort", "div#search"),
		in("page", "section"),
	}

	m := metrics.New()
	res := New(nil, m).Group(context.Background(), p, fields)

	want := map[string][]string{
		"form#login": {"email", "password"},
		"div#search": {"q", "sort"},
		"section":    {"page"},
		"body":       {"stray"},
	}
	if diff := cmp.Diff(want, formFields(res.Forms)); diff != "" {
		t.Errorf("grouping mismatch (-want +got):\n%s", diff)
	}

	gotOrder := make([]string, len(res.Forms))
	for i, f := range res.Forms {
		gotOrder[i] = f.ContainerSelector
	}
	if diff := cmp.Diff([]string{"form#login", "div#search", "body", "section"}, gotOrder); diff != "" {
		t.Errorf("form order mismatch (-want +got):\n%s", diff)
	}

	if res.Forms[0].FormTagSelector != "form#login" {
		t.Errorf("tier 1 FormTagSelector = %q", res.Forms[0].FormTagSelector)
	}
	if res.Forms[1].FormTagSelector != "" {
		t.Errorf("tier 2 FormTagSelector = %q, want empty", res.Forms[1].FormTagSelector)
	}
	if len(res.Notes) != 0 {
		t.Errorf("Notes = %v, want none", res.Notes)
	}

	snap := m.Snapshot()
	if snap.FormsByTier[metrics.TierExplicit] != 1 || snap.FormsByTier[metrics.TierAdHoc] != 3 || snap.FormsByTier[metrics.TierFallback] != 0 {
		t.Errorf("FormsByTier = %v", snap.FormsByTier)
	}
}

func TestGroup_SelectorContainment(t *testing.T) {
	p := &domtest.Page{Containers: []dom.Container{{Selector: "form.checkout"}}}
	f := in("", "div")
	f.Selector = "form.checkout > div > input.qty"

	res := New(nil, nil).Group(context.Background(), p, []page.Field{f})

	if len(res.Forms) != 1 || res.Forms[0].ContainerSelector != "form.checkout" {
		t.Fatalf("Forms = %v, want one form.checkout form", res.Forms)
	}
}

func TestGroup_FirstContainerWins(t *testing.T) {
	p := &domtest.Page{Containers: []dom.Container{
		{Selector: "form", Action: "/first"},
		{Selector: "form", Action: "/second"},
	}}

	res := New(nil, nil).Group(context.Background(), p, []page.Field{in("a", "form"), in("b", "form")})

	if len(res.Forms) != 1 {
		t.Fatalf("len(Forms) = %d, want 1", len(res.Forms))
	}
	if res.Forms[0].FieldCount() != 2 {
		t.Errorf("FieldCount() = %d, want 2", res.Forms[0].FieldCount())
	}
}

func TestGroup_DefaultForm(t *testing.T) {
	res := New(nil, nil).Group(context.Background(), &domtest.Page{}, []page.Field{in("q", page.RootContainer), in("x", "")})

	if len(res.Forms) != 1 {
		t.Fatalf("len(Forms) = %d, want 1", len(res.Forms))
	}
	form := res.Forms[0]
	if form.ContainerSelector != page.RootContainer {
		t.Errorf("ContainerSelector = %q, want body", form.ContainerSelector)
	}
	if form.FormID != FormID(page.RootContainer) {
		t.Errorf("FormID = %q, want %q", form.FormID, FormID(page.RootContainer))
	}
	if form.Purpose != page.PurposeUnknown {
		t.Errorf("Purpose = %q, want unknown", form.Purpose)
	}
	if diff := cmp.Diff([]string{NoteDefaultForm}, res.Notes); diff != "" {
		t.Errorf("Notes mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup_RootBucketFirstSeen(t *testing.T) {
	tests := []struct {
		name      string
		fields    []page.Field
		wantOrder []string
		wantNote  bool
	}{
		{
			name:      "root first",
			fields:    []page.Field{in("q", page.RootContainer), in("a", "div#x"), in("b", "")},
			wantOrder: []string{page.RootContainer, "div#x"},
		},
		{
			name:      "root between buckets",
			fields:    []page.Field{in("a", "div#x"), in("q", ""), in("b", "section")},
			wantOrder: []string{"div#x", page.RootContainer, "section"},
		},
		{
			name:      "root only",
			fields:    []page.Field{in("q", ""), in("r", page.RootContainer)},
			wantOrder: []string{page.RootContainer},
			wantNote:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			res := New(nil, m).Group(context.Background(), &domtest.Page{}, tt.fields)

			var order []string
			for _, f := range res.Forms {
				order = append(order, f.ContainerSelector)
			}
			if diff := cmp.Diff(tt.wantOrder, order); diff != "" {
				t.Errorf("form order mismatch (-want +got):\n%s", diff)
			}

			hasNote := len(res.Notes) == 1 && res.Notes[0] == NoteDefaultForm
			if hasNote != tt.wantNote {
				t.Errorf("Notes = %v, want default form note %v", res.Notes, tt.wantNote)
			}
			fallback := m.Snapshot().FormsByTier[metrics.TierFallback]
			if (fallback == 1) != tt.wantNote {
				t.Errorf("fallback forms = %d", fallback)
			}
		})
	}
}

func TestGroup_ExcludesSubmitControls(t *testing.T) {
	submit := in("go", "form")
	submit.InputType = "submit"
	button := page.Field{TagName: "button", InputType: "submit", ParentContainer: "form", Visible: true}

	res := New(nil, nil).Group(context.Background(), &domtest.Page{}, []page.Field{in("q", "form"), submit, button})

	if diff := cmp.Diff(map[string][]string{"form": {"q"}}, formFields(res.Forms)); diff != "" {
		t.Errorf("grouping mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup_NoFields(t *testing.T) {
	res := New(nil, nil).Group(context.Background(), &domtest.Page{}, nil)

	if len(res.Forms) != 0 || len(res.Notes) != 0 {
		t.Errorf("Group(nil) = %+v, want empty", res)
	}
}

func TestGroup_ContainerMapFailure(t *testing.T) {
	p := &domtest.Page{ContainerErr: errors.New("execution context destroyed")}

	res := New(nil, nil).Group(context.Background(), p, []page.Field{in("email", "form#login")})

	if len(res.Forms) != 1 || res.Forms[0].ContainerSelector != "form#login" {
		t.Fatalf("Forms = %v, want tier 2 form#login", res.Forms)
	}
	if len(res.Notes) != 1 || !strings.HasPrefix(res.Notes[0], NoteContainersUnavailable) {
		t.Errorf("Notes = %v, want container note", res.Notes)
	}
}

// Every input field lands in exactly one form.
func TestGroup_Partition(t *testing.T) {
	p := &domtest.Page{Containers: []dom.Container{{Selector: "form#a"}, {Selector: "form#b"}}}
	var fields []page.Field
	containers := []string{"form#a", "form#b", "div#x", "", page.RootContainer, "div#y"}
	for i := 0; i < 30; i++ {
		fields = append(fields, in(string(rune('a'+i%26))+strings.Repeat("x", i/26), containers[i%len(containers)]))
	}

	res := New(nil, nil).Group(context.Background(), p, fields)

	seen := make(map[string]int)
	ids := make(map[string]bool)
	for _, f := range res.Forms {
		if ids[f.FormID] {
			t.Errorf("duplicate form id %s", f.FormID)
		}
		ids[f.FormID] = true
		for _, field := range f.Fields {
			seen[field.Name]++
		}
	}
	for _, f := range fields {
		if seen[f.Name] != 1 {
			t.Errorf("field %s appears in %d forms", f.Name, seen[f.Name])
		}
	}
}
