package grammar

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/alucardeht/fstspell/internal/errors"
)

const (
	KindPattern      = "pattern"
	KindRepeatedWord = "repeated-word"
	KindReplace      = "replace"
	KindSpacing      = "spacing"
	KindSpelling     = "spelling"
)

// Kinds lists the rule kinds a manifest may use.
func Kinds() []string {
	return []string{KindPattern, KindRepeatedWord, KindReplace, KindSpacing, KindSpelling}
}

// runState is the input shared by every rule of one Run.
type runState struct {
	ctx    context.Context
	text   string
	tokens []Token
	opts   RunOptions
}

type rule interface {
	id() string
	check(s *runState) ([]Error, error)
}

func newRule(spec RuleSpec, lang language.Tag, table map[string][]string) (rule, error) {
	base := ruleBase{ruleID: spec.ID, message: spec.Message}
	switch spec.Kind {
	case KindPattern:
		if spec.Pattern == "" {
			return nil, fmt.Errorf("pattern rule needs a pattern")
		}
		expr := spec.Pattern
		if spec.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		if base.message == "" {
			base.message = "Possible error"
		}
		return &patternRule{ruleBase: base, re: re, suggestions: spec.Suggestions}, nil

	case KindRepeatedWord:
		if base.message == "" {
			base.message = "Repeated word"
		}
		return &repeatedWordRule{ruleBase: base}, nil

	case KindReplace:
		if len(table) == 0 {
			return nil, fmt.Errorf("replace rule has an empty table")
		}
		return &replaceRule{ruleBase: base, table: table, lang: lang}, nil

	case KindSpacing:
		if base.message == "" {
			base.message = "Unexpected spacing"
		}
		return &spacingRule{ruleBase: base}, nil

	case KindSpelling:
		if base.message == "" {
			base.message = "Possible spelling mistake"
		}
		return &spellingRule{ruleBase: base}, nil

	case "":
		return nil, fmt.Errorf("rule has no kind")
	default:
		return nil, fmt.Errorf("unknown rule kind %q", spec.Kind)
	}
}

type ruleBase struct {
	ruleID  string
	message string
}

func (r ruleBase) id() string {
	return r.ruleID
}

func (r ruleBase) errorAt(start, end int, suggestions ...string) Error {
	return Error{Start: start, End: end, RuleID: r.ruleID, Message: r.message, Suggestions: suggestions}
}

// patternRule reports every match of a regular expression. Suggestions and
// the message may refer to capture groups as $1 or ${name}.
type patternRule struct {
	ruleBase
	re          *regexp.Regexp
	suggestions []string
}

func (r *patternRule) check(s *runState) ([]Error, error) {
	var out []Error
	for _, m := range r.re.FindAllStringSubmatchIndex(s.text, -1) {
		if m[0] == m[1] {
			continue
		}
		suggs := make([]string, 0, len(r.suggestions))
		for _, tmpl := range r.suggestions {
			suggs = append(suggs, string(r.re.ExpandString(nil, tmpl, s.text, m)))
		}
		e := r.errorAt(m[0], m[1], suggs...)
		e.Message = string(r.re.ExpandString(nil, r.message, s.text, m))
		out = append(out, e)
	}
	return out, nil
}

// repeatedWordRule flags a word followed, after whitespace only, by the
// same word in any case.
type repeatedWordRule struct {
	ruleBase
}

func (r *repeatedWordRule) check(s *runState) ([]Error, error) {
	var out []Error
	for i := 1; i < len(s.tokens); i++ {
		a, b := s.tokens[i-1], s.tokens[i]
		if hasDigit(a.Text) || !strings.EqualFold(a.Text, b.Text) {
			continue
		}
		gap := s.text[a.End:b.Start]
		if gap == "" || strings.TrimFunc(gap, unicode.IsSpace) != "" || strings.Contains(gap, "\n") {
			continue
		}
		out = append(out, r.errorAt(a.Start, b.End, a.Text))
	}
	return out, nil
}

// replaceRule looks whole words up in a table and keeps the word's
// initial or full capitalization in the suggestions.
type replaceRule struct {
	ruleBase
	table map[string][]string
	lang  language.Tag
}

func (r *replaceRule) check(s *runState) ([]Error, error) {
	var out []Error
	for _, t := range s.tokens {
		to, ok := r.table[strings.ToLower(t.Text)]
		if !ok {
			continue
		}
		suggs := make([]string, 0, len(to))
		for _, v := range to {
			v = matchCase(r.lang, t.Text, v)
			if v != t.Text {
				suggs = append(suggs, v)
			}
		}
		if len(suggs) == 0 {
			continue
		}
		e := r.errorAt(t.Start, t.End, suggs...)
		if e.Message == "" {
			e.Message = fmt.Sprintf("Did you mean %q?", suggs[0])
		}
		out = append(out, e)
	}
	return out, nil
}

func matchCase(lang language.Tag, model, s string) string {
	letters, upper := 0, 0
	for _, r := range model {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	first, _ := utf8.DecodeRuneInString(model)
	switch {
	case letters > 1 && upper == letters:
		return cases.Upper(lang).String(s)
	case unicode.IsUpper(first):
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError {
			return s
		}
		return cases.Upper(lang).String(string(r)) + s[size:]
	}
	return s
}

// spacingRule flags runs of spaces between words and spaces before
// closing punctuation.
type spacingRule struct {
	ruleBase
}

const closingPunct = ",.;:!?"

func (r *spacingRule) check(s *runState) ([]Error, error) {
	var out []Error
	text := s.text
	for i := 0; i < len(text); {
		if text[i] != ' ' {
			i++
			continue
		}
		j := i
		for j < len(text) && text[j] == ' ' {
			j++
		}
		if i > 0 && j < len(text) && !isSpaceByte(text[i-1]) {
			next := text[j]
			switch {
			case strings.IndexByte(closingPunct, next) >= 0:
				e := r.errorAt(i, j+1, text[j:j+1])
				e.Message = "Space before punctuation"
				out = append(out, e)
			case j-i > 1 && !isSpaceByte(next):
				out = append(out, r.errorAt(i, j, " "))
			}
		}
		i = j
	}
	return out, nil
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// spellingRule asks the run's Checker about every word without digits.
// Words the checker refuses as input, such as overlong runs, are skipped.
type spellingRule struct {
	ruleBase
}

func (r *spellingRule) check(s *runState) ([]Error, error) {
	c := s.opts.Checker
	if c == nil {
		return nil, nil
	}
	var out []Error
	for i, t := range s.tokens {
		if i%64 == 0 {
			if err := s.ctx.Err(); err != nil {
				return nil, err
			}
		}
		if hasDigit(t.Text) {
			continue
		}
		ok, err := c.IsCorrect(t.Text)
		if errors.IsInvalidArgument(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", t.Text, err)
		}
		if ok {
			continue
		}
		suggs, err := c.Suggest(s.ctx, t.Text, s.opts.SuggestionLimit)
		if err != nil {
			return nil, fmt.Errorf("suggest %q: %w", t.Text, err)
		}
		out = append(out, r.errorAt(t.Start, t.End, suggs...))
	}
	return out, nil
}
