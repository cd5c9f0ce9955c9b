package grammar

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/speller"
)

// Error is one finding in a text. Start and End are byte offsets into the
// exact string given to Run, End exclusive; CharStart and CharEnd are the
// same span counted in code points.
type Error struct {
	Start       int      `json:"start"`
	End         int      `json:"end"`
	CharStart   int      `json:"charStart"`
	CharEnd     int      `json:"charEnd"`
	Form        string   `json:"form"`
	RuleID      string   `json:"ruleId"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

type RunOptions struct {
	// Checker backs spelling rules. Spelling rules report nothing without it.
	Checker speller.Checker
	// SuggestionLimit caps suggestions from Checker; zero means its default.
	SuggestionLimit int
	// IgnoreRules drops findings of these rule ids.
	IgnoreRules []string
}

// Run applies every rule to text. The result is complete and sorted by
// (Start, End, RuleID), or the call fails with PipelineError.
func (b *Bundle) Run(ctx context.Context, text string, opts RunOptions) ([]Error, error) {
	if b.closed.Load() {
		return nil, errors.E(errors.UseAfterInvalidate, "run", b.path, "bundle is closed")
	}
	if !utf8.ValidString(text) {
		return nil, errors.E(errors.InvalidArgument, "run", b.path, "text is not valid UTF-8")
	}
	if text == "" {
		return []Error{}, nil
	}

	s := &runState{ctx: ctx, text: text, tokens: Tokenize(text), opts: opts}

	found := make([][]Error, len(b.rules))
	g, gctx := errgroup.WithContext(ctx)
	s.ctx = gctx
	for i, r := range b.rules {
		i, r := i, r
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					log.Error("grammar rule panicked", "rule", r.id(), "panic", p, "stack", string(debug.Stack()))
					err = fmt.Errorf("rule %s panicked: %v", r.id(), p)
				}
			}()
			errs, err := r.check(s)
			if err != nil {
				return fmt.Errorf("rule %s: %w", r.id(), err)
			}
			found[i] = errs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(errors.PipelineError, "run", b.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.PipelineError, "run", b.path, err)
	}

	var all []Error
	for _, errs := range found {
		all = append(all, errs...)
	}
	out, err := finish(text, all, opts.IgnoreRules)
	if err != nil {
		return nil, errors.Wrap(errors.PipelineError, "run", b.path, err)
	}
	return out, nil
}

// finish validates spans, fills in the derived fields, filters ignored
// rules, sorts and removes duplicates.
func finish(text string, errs []Error, ignore []string) ([]Error, error) {
	ignored := make(map[string]bool, len(ignore))
	for _, id := range ignore {
		ignored[id] = true
	}

	out := make([]Error, 0, len(errs))
	for _, e := range errs {
		if ignored[e.RuleID] {
			continue
		}
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			return nil, fmt.Errorf("rule %s produced span [%d,%d) outside the text", e.RuleID, e.Start, e.End)
		}
		if !utf8.RuneStart(text[e.Start]) || (e.End < len(text) && !utf8.RuneStart(text[e.End])) {
			return nil, fmt.Errorf("rule %s produced span [%d,%d) inside a character", e.RuleID, e.Start, e.End)
		}
		if e.Suggestions == nil {
			e.Suggestions = []string{}
		}
		e.Form = text[e.Start:e.End]
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.RuleID < b.RuleID
	})

	dedup := out[:0]
	for i, e := range out {
		if i > 0 {
			p := dedup[len(dedup)-1]
			if p.Start == e.Start && p.End == e.End && p.RuleID == e.RuleID {
				continue
			}
		}
		dedup = append(dedup, e)
	}

	// Code point offsets in one pass over the sorted starts.
	pos, chars := 0, 0
	for i := range dedup {
		chars += utf8.RuneCountInString(text[pos:dedup[i].Start])
		pos = dedup[i].Start
		dedup[i].CharStart = chars
		dedup[i].CharEnd = chars + utf8.RuneCountInString(dedup[i].Form)
	}
	return dedup, nil
}

// Apply replaces each finding with its first suggestion. Findings without
// suggestions, and findings overlapping an earlier applied one, are skipped.
func Apply(text string, errs []Error) string {
	sorted := append([]Error(nil), errs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []byte
	pos := 0
	for _, e := range sorted {
		if len(e.Suggestions) == 0 || e.Start < pos || e.End > len(text) {
			continue
		}
		out = append(out, text[pos:e.Start]...)
		out = append(out, e.Suggestions[0]...)
		pos = e.End
	}
	out = append(out, text[pos:]...)
	return string(out)
}
