package speller

import (
	"context"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/fst"
)

// MaxTokenLength bounds the runes accepted in a single token.
const MaxTokenLength = 128

// Checker is the query surface shared by analyzers and the layers that wrap
// them (user dictionaries, caches).
type Checker interface {
	IsCorrect(token string) (bool, error)
	Suggest(ctx context.Context, token string, limit int) ([]string, error)
}

// Analyzer answers correctness and suggestion queries against one resource.
// Handles are cheap; all handles of a resource share its automaton and become
// invalid together when the resource is closed.
type Analyzer struct {
	res  *base
	opts SearchOptions
}

var _ Checker = (*Analyzer)(nil)

func (a *Analyzer) WithOptions(opts SearchOptions) *Analyzer {
	cp := *a
	cp.opts = opts
	return &cp
}

func (a *Analyzer) Path() string {
	return a.res.path
}

func (a *Analyzer) Locale() string {
	return a.res.c.Meta.Locale
}

func validateToken(op, token string) error {
	if token == "" {
		return errors.E(errors.InvalidArgument, op, "", "empty token")
	}
	if !utf8.ValidString(token) {
		return errors.E(errors.InvalidArgument, op, "", "token is not valid UTF-8")
	}
	if utf8.RuneCountInString(token) > MaxTokenLength {
		return errors.E(errors.InvalidArgument, op, "", "token too long")
	}
	return nil
}

func (a *Analyzer) IsCorrect(token string) (bool, error) {
	if err := validateToken("is_correct", token); err != nil {
		return false, err
	}
	if err := a.res.acquire("is_correct"); err != nil {
		return false, err
	}
	defer a.res.mu.RUnlock()

	token = norm.NFC.String(token)
	for _, v := range newCaser(a.res.lang).variants(token) {
		if accepts(a.res.c.Automaton, v) {
			return true, nil
		}
	}
	return false, nil
}

func (a *Analyzer) Suggest(ctx context.Context, token string, limit int) ([]string, error) {
	items, err := a.SuggestWeighted(ctx, token, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Value
	}
	return out, nil
}

// SuggestWeighted returns at most limit corrections ordered by edit cost,
// then lexicon weight, then surface. Title case and all caps input is also
// searched in lower case and the results are recased to match.
func (a *Analyzer) SuggestWeighted(ctx context.Context, token string, limit int) ([]Suggestion, error) {
	if err := validateToken("suggest", token); err != nil {
		return nil, err
	}
	if err := a.res.acquire("suggest"); err != nil {
		return nil, err
	}
	defer a.res.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultLimit
	}
	token = norm.NFC.String(token)

	results := a.search(ctx, token, limit)

	c := newCaser(a.res.lang)
	if pattern := classifyCase(token); pattern != caseOther {
		if lowered := c.toLower(token); lowered != token {
			for _, s := range a.search(ctx, lowered, limit) {
				s.Value = c.recase(pattern, s.Value)
				results = append(results, s)
			}
			results = mergeSuggestions(results, limit)
		}
	}
	if results == nil {
		results = []Suggestion{}
	}
	return results, nil
}

func (a *Analyzer) search(ctx context.Context, token string, limit int) []Suggestion {
	meta := a.res.c.Meta

	maxEdits := meta.MaxEdits
	if maxEdits <= 0 {
		maxEdits = DefaultMaxEdits
	}
	if a.opts.MaxEdits > 0 && a.opts.MaxEdits < maxEdits {
		maxEdits = a.opts.MaxEdits
	}
	if maxEdits > MaxEditCeiling {
		maxEdits = MaxEditCeiling
	}

	maxCost := meta.MaxWeight
	if a.opts.MaxCost > 0 && (maxCost == 0 || a.opts.MaxCost < maxCost) {
		maxCost = a.opts.MaxCost
	}

	maxSteps := a.opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	s := &search{
		a:        a.res.c.Automaton,
		m:        a.res.c.ErrorModel,
		input:    []rune(token),
		maxEdits: maxEdits,
		maxCost:  maxCost,
		maxSteps: maxSteps,
		limit:    limit,
	}
	results, truncated := s.run(ctx)
	if truncated {
		log.Debug("suggestion search stopped early",
			"path", a.res.path, "token", token, "steps", s.steps, "found", len(results))
	}
	return results
}

// accepts runs the token through the automaton, following epsilon arcs.
func accepts(a *fst.Automaton, token string) bool {
	current := epsilonClosure(a, []uint32{fst.StartState})
	for _, r := range token {
		sym, ok := a.SymbolIndex(r)
		if !ok {
			return false
		}
		var next []uint32
		for _, st := range current {
			lo, hi := a.Lookup(st, sym)
			for i := lo; i < hi; i++ {
				next = append(next, a.Transition(i).Target)
			}
		}
		if len(next) == 0 {
			return false
		}
		current = epsilonClosure(a, next)
	}
	for _, st := range current {
		if _, final := a.Final(st); final {
			return true
		}
	}
	return false
}

func epsilonClosure(a *fst.Automaton, states []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(states))
	stack := append([]uint32(nil), states...)
	out := make([]uint32, 0, len(states))
	for len(stack) > 0 {
		st := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[st]; ok {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
		lo, hi := a.Lookup(st, 0)
		for i := lo; i < hi; i++ {
			stack = append(stack, a.Transition(i).Target)
		}
	}
	return out
}
