package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/alucardeht/fstspell/internal/engine"
	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/grammar"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

// Service is the engine surface the methods call.
type Service interface {
	IsCorrect(ctx context.Context, tag, word string) (bool, error)
	Suggest(ctx context.Context, tag, word string, limit int) ([]string, error)
	CheckWords(ctx context.Context, tag string, words []string) ([]engine.Misspelling, error)
	Proofread(ctx context.Context, tag, text string) ([]grammar.Error, error)
	IgnoreRule(ctx context.Context, tag, ruleID string) error
	ResetIgnoredRules(ctx context.Context, tag string) error
	Learn(ctx context.Context, tag, word string) error
	Unlearn(ctx context.Context, tag, word string) error
	Learned(ctx context.Context, tag string) ([]string, error)
	Locales() []locale.Tag
	HostLocales() []locale.HostLocale
	HasLocale(tag string) bool
	Loaded() (spellers, grammars []locale.Tag)
	Refresh() error
	Uptime() time.Duration
}

// NewServiceRegistry registers every engine method on a new registry.
func NewServiceRegistry(s Service, timeout time.Duration) *Registry {
	r := NewRegistry(timeout)
	for _, m := range serviceMethods(s) {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	return r
}

func serviceMethods(s Service) []Method {
	return []Method{
		{
			Name:        protocol.MethodHealth,
			Description: "Report daemon status, uptime and loaded resources",
			Call: typed(func(ctx context.Context, _ protocol.Empty) (protocol.HealthResult, error) {
				spellers, grammars := s.Loaded()
				return protocol.HealthResult{
					Status:           "healthy",
					Uptime:           int64(s.Uptime().Seconds()),
					Version:          protocol.Version,
					LoadedSpellers:   tagStrings(spellers),
					LoadedGrammars:   tagStrings(grammars),
					AvailableLocales: len(s.Locales()),
				}, nil
			}),
		},
		{
			Name:        protocol.MethodIsCorrect,
			Description: "Check one word",
			Call: typed(func(ctx context.Context, p protocol.WordParams) (protocol.IsCorrectResult, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.IsCorrectResult{}, err
				}
				ok, err := s.IsCorrect(ctx, tag, p.Word)
				return protocol.IsCorrectResult{Correct: ok}, err
			}),
		},
		{
			Name:        protocol.MethodSuggest,
			Description: "Suggest corrections for one word, best first",
			Call: typed(func(ctx context.Context, p protocol.SuggestParams) (protocol.SuggestResult, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.SuggestResult{}, err
				}
				suggs, err := s.Suggest(ctx, tag, p.Word, p.Limit)
				return protocol.SuggestResult{Suggestions: suggs}, err
			}),
		},
		{
			Name:        protocol.MethodCheck,
			Description: "Check a batch of words and suggest corrections for the misspelled ones",
			Call: typed(func(ctx context.Context, p protocol.CheckParams) (protocol.CheckResult, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.CheckResult{}, err
				}
				found, err := s.CheckWords(ctx, tag, p.Words)
				if err != nil {
					return protocol.CheckResult{}, err
				}
				out := make([]protocol.Misspelling, len(found))
				for i, m := range found {
					out[i] = protocol.Misspelling{Index: m.Index, Suggestions: m.Suggestions}
				}
				return protocol.CheckResult{Misspellings: out}, nil
			}),
		},
		{
			Name:        protocol.MethodProofread,
			Description: "Run the grammar checker over a text",
			Call: typed(func(ctx context.Context, p protocol.ProofreadParams) (protocol.ProofreadResult, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.ProofreadResult{}, err
				}
				errs, err := s.Proofread(ctx, tag, p.Text)
				if err != nil {
					return protocol.ProofreadResult{}, err
				}
				return protocol.ProofreadResult{Errors: GrammarErrors(errs)}, nil
			}),
		},
		{
			Name:        protocol.MethodIgnoreRule,
			Description: "Stop reporting a grammar rule for a locale",
			Call: typed(func(ctx context.Context, p protocol.RuleParams) (protocol.Empty, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.Empty{}, err
				}
				return protocol.Empty{}, s.IgnoreRule(ctx, tag, p.RuleID)
			}),
		},
		{
			Name:        protocol.MethodResetIgnoreRules,
			Description: "Report ignored grammar rules again, for one locale or all",
			Call: typed(func(ctx context.Context, p protocol.LocaleParams) (protocol.Empty, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.Empty{}, err
				}
				return protocol.Empty{}, s.ResetIgnoredRules(ctx, tag)
			}),
		},
		{
			Name:        protocol.MethodLearn,
			Description: "Add a word to the user dictionary",
			Call: typed(func(ctx context.Context, p protocol.WordParams) (protocol.Empty, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.Empty{}, err
				}
				return protocol.Empty{}, s.Learn(ctx, tag, p.Word)
			}),
		},
		{
			Name:        protocol.MethodUnlearn,
			Description: "Remove a word from the user dictionary",
			Call: typed(func(ctx context.Context, p protocol.WordParams) (protocol.Empty, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.Empty{}, err
				}
				return protocol.Empty{}, s.Unlearn(ctx, tag, p.Word)
			}),
		},
		{
			Name:        protocol.MethodLearned,
			Description: "List the user dictionary of a locale",
			Call: typed(func(ctx context.Context, p protocol.LocaleParams) (protocol.LearnedResult, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.LearnedResult{}, err
				}
				words, err := s.Learned(ctx, tag)
				return protocol.LearnedResult{Words: words}, err
			}),
		},
		{
			Name:        protocol.MethodLocales,
			Description: "List available locales",
			Call: typed(func(ctx context.Context, _ protocol.Empty) (protocol.LocalesResult, error) {
				return Locales(s), nil
			}),
		},
		{
			Name:        protocol.MethodHasLocale,
			Description: "Tell whether a locale or its base language is available",
			Call: typed(func(ctx context.Context, p protocol.LocaleParams) (protocol.HasLocaleResult, error) {
				tag, err := resolveLocale(p.Locale, p.HostLocale)
				if err != nil {
					return protocol.HasLocaleResult{Available: false}, nil
				}
				return protocol.HasLocaleResult{Available: s.HasLocale(tag)}, nil
			}),
		},
		{
			Name:        protocol.MethodRefresh,
			Description: "Rescan the resource directories",
			Call: typed(func(ctx context.Context, _ protocol.Empty) (protocol.Empty, error) {
				return protocol.Empty{}, s.Refresh()
			}),
		},
	}
}

// resolveLocale returns the tag a request names, mapping a host locale
// when no tag is given.
func resolveLocale(tag string, host *protocol.HostLocale) (string, error) {
	if tag != "" || host == nil {
		return tag, nil
	}
	t, ok := locale.Resolve(locale.HostLocale{Language: host.Language, Country: host.Country, Variant: host.Variant})
	if !ok {
		return "", errors.E(errors.InvalidArgument, "resolve_locale", "",
			fmt.Sprintf("host locale %s-%s-%s names no tag", host.Language, host.Country, host.Variant))
	}
	return string(t), nil
}

// GrammarErrors converts findings to their wire shape.
func GrammarErrors(errs []grammar.Error) []protocol.GrammarError {
	out := make([]protocol.GrammarError, len(errs))
	for i, e := range errs {
		out[i] = protocol.GrammarError{
			Start:       e.Start,
			End:         e.End,
			CharStart:   e.CharStart,
			CharEnd:     e.CharEnd,
			Form:        e.Form,
			RuleID:      e.RuleID,
			Message:     e.Message,
			Suggestions: e.Suggestions,
		}
	}
	return out
}

// Locales lists the available tags and what a host is told about them.
func Locales(s Service) protocol.LocalesResult {
	hosts := s.HostLocales()
	out := protocol.LocalesResult{
		Tags:        tagStrings(s.Locales()),
		HostLocales: make([]protocol.HostLocale, len(hosts)),
	}
	for i, h := range hosts {
		out.HostLocales[i] = protocol.HostLocale{Language: h.Language, Country: h.Country, Variant: h.Variant}
	}
	return out
}

func tagStrings(tags []locale.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
