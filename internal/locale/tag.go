package locale

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/alucardeht/fstspell/internal/errors"
)

// PrivateUse is the language code hosts use to carry a tag they cannot
// express natively; the real tag travels in the variant.
const PrivateUse = "qlt"

// Tag is a normalized, lowercase, hyphen-joined language tag such as
// "se", "se-no" or "sme-x-lule".
type Tag string

// Normalize canonicalizes s. Underscores become hyphens, well-formed
// BCP 47 tags are canonicalized by x/text and everything is lowercased.
// Tags x/text rejects are kept when they only use letters, digits and
// hyphens.
func Normalize(s string) (Tag, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))
	if s == "" {
		return "", errors.E(errors.InvalidArgument, "normalize_tag", "", "empty locale tag")
	}
	if t, err := language.Parse(s); err == nil && t != language.Und {
		return Tag(strings.ToLower(t.String())), nil
	}

	s = strings.ToLower(s)
	for _, part := range strings.Split(s, "-") {
		if part == "" {
			return "", errors.E(errors.InvalidArgument, "normalize_tag", "", "malformed locale tag "+s)
		}
		for _, r := range part {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return "", errors.E(errors.InvalidArgument, "normalize_tag", "", "malformed locale tag "+s)
			}
		}
	}
	return Tag(s), nil
}

// MustNormalize is Normalize for constants.
func MustNormalize(s string) Tag {
	t, err := Normalize(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tag) String() string {
	return string(t)
}

// Base is the language part of the tag.
func (t Tag) Base() Tag {
	if i := strings.IndexByte(string(t), '-'); i >= 0 {
		return t[:i]
	}
	return t
}

func (t Tag) IsBase() bool {
	return t.Base() == t
}

// Subtags counts the hyphen-separated parts after the language.
func (t Tag) Subtags() int {
	return strings.Count(string(t), "-")
}

// Candidates lists the tags to try for t, most specific first.
func (t Tag) Candidates() []Tag {
	if t.IsBase() {
		return []Tag{t}
	}
	return []Tag{t, t.Base()}
}

// HostLocale is a locale as document hosts describe it.
type HostLocale struct {
	Language string `json:"language"`
	Country  string `json:"country,omitempty"`
	Variant  string `json:"variant,omitempty"`
}

// Resolve maps a host locale to a tag. The private-use language takes the
// tag from the variant; an empty language has no tag.
func Resolve(h HostLocale) (Tag, bool) {
	var raw string
	switch {
	case h.Language == PrivateUse:
		raw = h.Variant
	case h.Language == "":
		return "", false
	case h.Country == "":
		raw = h.Language
	default:
		raw = h.Language + "-" + h.Country
	}
	t, err := Normalize(raw)
	if err != nil {
		return "", false
	}
	return t, true
}

// HostLocale maps t back to the host's structure. Tags with more than one
// subtag cannot be expressed and report false.
func (t Tag) HostLocale() (HostLocale, bool) {
	switch t.Subtags() {
	case 0:
		return HostLocale{Language: string(t)}, true
	case 1:
		lang, country, _ := strings.Cut(string(t), "-")
		return HostLocale{Language: lang, Country: strings.ToUpper(country)}, true
	}
	return HostLocale{}, false
}

// Has reports whether t or its base tag is in available.
func Has(available map[Tag]struct{}, t Tag) bool {
	for _, c := range t.Candidates() {
		if _, ok := available[c]; ok {
			return true
		}
	}
	return false
}
