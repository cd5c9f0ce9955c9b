package speller

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type casePattern int

const (
	caseOther casePattern = iota
	caseTitle
	caseUpper
)

func classifyCase(token string) casePattern {
	letters, upper := 0, 0
	firstUpper := false
	for _, r := range token {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			upper++
			if letters == 1 {
				firstUpper = true
			}
		}
	}
	switch {
	case letters > 1 && upper == letters:
		return caseUpper
	case firstUpper && upper == 1:
		return caseTitle
	}
	return caseOther
}

func firstLetter(token string) int {
	for i, r := range token {
		if unicode.IsLetter(r) {
			return i
		}
	}
	return -1
}

// caser applies language-specific case mappings. cases.Caser values are
// stateful, so one is built per call.
type caser struct {
	tag language.Tag
}

func newCaser(tag language.Tag) caser {
	return caser{tag: tag}
}

func (c caser) toLower(s string) string {
	return cases.Lower(c.tag).String(s)
}

func (c caser) toUpper(s string) string {
	return cases.Upper(c.tag).String(s)
}

// variants lists the forms a token may be accepted under, most specific first.
func (c caser) variants(token string) []string {
	switch classifyCase(token) {
	case caseUpper:
		lower := c.toLower(token)
		return uniq(token, c.upperFirst(lower), lower)
	case caseTitle:
		return uniq(token, c.toLower(token))
	}
	return []string{token}
}

// recase maps a suggestion found for the lowered token back to the input's case.
func (c caser) recase(p casePattern, s string) string {
	switch p {
	case caseUpper:
		return c.toUpper(s)
	case caseTitle:
		return c.upperFirst(s)
	}
	return s
}

func (c caser) upperFirst(s string) string {
	i := firstLetter(s)
	if i < 0 {
		return s
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return s[:i] + c.toUpper(s[i:i+size]) + s[i+size:]
}

func uniq(items ...string) []string {
	out := items[:0]
	seen := make(map[string]bool, len(items))
	for _, s := range items {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
