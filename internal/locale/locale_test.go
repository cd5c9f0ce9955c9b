package locale

import (
	"testing"

	"github.com/alucardeht/fstspell/internal/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Tag
	}{
		{"se", "se"},
		{"SE", "se"},
		{"se_NO", "se-no"},
		{"se-no", "se-no"},
		{"en-US", "en-us"},
		{" fi ", "fi"},
		{"smj_SE", "smj-se"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, in := range []string{"", "  ", "se--no", "se-nø", "-se"} {
		if _, err := Normalize(in); !errors.IsInvalidArgument(err) {
			t.Errorf("Normalize(%q): expected InvalidArgument, got %v", in, err)
		}
	}
}

func TestBaseAndCandidates(t *testing.T) {
	tag := Tag("se-no")
	if tag.Base() != "se" {
		t.Errorf("expected base se, got %q", tag.Base())
	}
	c := tag.Candidates()
	if len(c) != 2 || c[0] != "se-no" || c[1] != "se" {
		t.Errorf("unexpected candidates %v", c)
	}
	if c := Tag("se").Candidates(); len(c) != 1 {
		t.Errorf("base tag should be its own only candidate, got %v", c)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		in   HostLocale
		want Tag
		ok   bool
	}{
		{"language only", HostLocale{Language: "se"}, "se", true},
		{"language and country", HostLocale{Language: "se", Country: "NO"}, "se-no", true},
		{"private use", HostLocale{Language: PrivateUse, Country: "NO", Variant: "smj-Latn-NO"}, "smj-latn-no", true},
		{"empty", HostLocale{}, "", false},
		{"private use without variant", HostLocale{Language: PrivateUse}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.in)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got.Base() != tt.want.Base() {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if ok && tt.in.Language != PrivateUse && got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHas(t *testing.T) {
	available := map[Tag]struct{}{"se": {}, "fi-fi": {}}

	if !Has(available, "se-no") {
		t.Error("expected se-no to fall back to se")
	}
	if !Has(available, "fi-fi") {
		t.Error("expected exact match for fi-fi")
	}
	if Has(available, "fi") {
		t.Error("a base tag must not match a regional resource")
	}
	if Has(available, "sv-se") {
		t.Error("expected sv-se to be unavailable")
	}
}

func TestHostLocales(t *testing.T) {
	got := HostLocales([]Tag{"smj", "nb-no", "sme-x-lule-no"})

	want := map[HostLocale]bool{
		{Language: "smj"}:                true,
		{Language: "smj", Country: "NO"}: true,
		{Language: "smj", Country: "SE"}: true,
		{Language: "nb", Country: "NO"}:  true,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d locales, got %v", len(want), got)
	}
	for _, h := range got {
		if !want[h] {
			t.Errorf("unexpected locale %+v", h)
		}
	}
	if got[0].Language != "nb" {
		t.Errorf("expected sorted output, got %v", got)
	}
}

func TestCountriesUnknownLanguage(t *testing.T) {
	if c := Countries("zz"); len(c) != 0 {
		t.Errorf("expected no countries, got %v", c)
	}
	if c := Countries("SE"); len(c) != 3 {
		t.Errorf("expected three countries for se, got %v", c)
	}
}

func TestClosest(t *testing.T) {
	available := []Tag{"se", "sma", "fi", "nb-no"}

	got := Closest("se-fi", available, 2)
	if len(got) == 0 || got[0] != "se" {
		t.Errorf("expected se first, got %v", got)
	}
	if got := Closest("xx", available, 3); len(got) != 0 {
		t.Errorf("expected no hints, got %v", got)
	}
}
