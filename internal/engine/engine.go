package engine

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/alucardeht/fstspell/internal/cache"
	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/grammar"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/resources"
	"github.com/alucardeht/fstspell/internal/speller"
	"github.com/alucardeht/fstspell/internal/store"
)

var log = logger.ForComponent("engine")

const (
	RequestLimit   = 10_000
	DefaultLRUSize = 10_000
	MaxTextLength  = 1 << 20
)

type Options struct {
	MaxEdits         int
	MaxSteps         int
	SuggestionLimit  int
	LRUSize          int
	BatchConcurrency int
}

// Misspelling marks a word of a CheckWords batch by its index.
type Misspelling struct {
	Index       int      `json:"index"`
	Word        string   `json:"word"`
	Suggestions []string `json:"suggestions"`
}

// Engine answers spelling and grammar queries by locale. Resources are
// opened on first use and shared by all callers.
type Engine struct {
	registry *resources.Registry
	spellers *cache.Cache[speller.Resource]
	grammars *cache.Cache[*grammar.Bundle]
	store    store.Store
	opts     Options
	started  time.Time

	lruMu sync.Mutex
	lrus  map[locale.Tag]*lru.Cache[string, []string]
}

// New builds an engine over reg. st may be nil, in which case learned
// words and ignored rules are unavailable.
func New(reg *resources.Registry, st store.Store, opts Options) *Engine {
	if opts.LRUSize <= 0 {
		opts.LRUSize = DefaultLRUSize
	}
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = speller.DefaultLimit
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		registry: reg,
		spellers: cache.New("spellers", reg.Lookup, openSpeller),
		grammars: cache.New("grammars", reg.LookupGrammar, grammar.Load),
		store:    st,
		opts:     opts,
		started:  time.Now(),
		lrus:     make(map[locale.Tag]*lru.Cache[string, []string]),
	}
}

// openSpeller opens a resource and materializes its analyzer, so broken
// automata fail the load instead of the first query.
func openSpeller(path string) (speller.Resource, error) {
	res, err := speller.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := res.Analyzer(); err != nil {
		res.Close()
		return nil, err
	}
	return res, nil
}

func (e *Engine) Registry() *resources.Registry {
	return e.registry
}

func (e *Engine) Uptime() time.Duration {
	return time.Since(e.started)
}

func parseTag(raw string) (locale.Tag, error) {
	return locale.Normalize(raw)
}

// afterSpellerGet runs between fetching a speller and deriving its
// analyzer. Tests use it to land a refresh in that window.
var afterSpellerGet = func(locale.Tag) {}

// analyzer returns the analyzer serving tag and the speller's own tag, which
// keys learned words and suggestion caches. A resource invalidated by a
// refresh between the cache lookup and use is fetched again once.
func (e *Engine) analyzer(ctx context.Context, raw string) (*speller.Analyzer, locale.Tag, error) {
	tag, err := parseTag(raw)
	if err != nil {
		return nil, "", err
	}
	for attempt := 0; ; attempt++ {
		entry, err := e.registry.Lookup(tag)
		if err != nil {
			return nil, "", err
		}
		res, err := e.spellers.Get(ctx, tag)
		if err != nil {
			return nil, "", err
		}
		afterSpellerGet(tag)
		an, err := res.Analyzer()
		if errors.IsUseAfterInvalidate(err) && attempt == 0 {
			log.Debug("speller replaced while in use, fetching again", "tag", tag)
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return an.WithOptions(speller.SearchOptions{MaxEdits: e.opts.MaxEdits, MaxSteps: e.opts.MaxSteps}), entry.Source, nil
	}
}

func (e *Engine) suggestions(tag locale.Tag) *lru.Cache[string, []string] {
	e.lruMu.Lock()
	defer e.lruMu.Unlock()
	c, ok := e.lrus[tag]
	if !ok {
		c, _ = lru.New[string, []string](e.opts.LRUSize)
		e.lrus[tag] = c
	}
	return c
}

func (e *Engine) dropSuggestions(tags ...locale.Tag) {
	e.lruMu.Lock()
	defer e.lruMu.Unlock()
	if len(tags) == 0 {
		e.lrus = make(map[locale.Tag]*lru.Cache[string, []string])
		return
	}
	for _, t := range tags {
		delete(e.lrus, t)
	}
}

func (e *Engine) isLearned(ctx context.Context, tag locale.Tag, word string) (bool, error) {
	if e.store == nil {
		return false, nil
	}
	return e.store.IsLearned(ctx, tag, word)
}

// IsCorrect reports whether word is accepted for the locale, counting the
// user's learned words.
func (e *Engine) IsCorrect(ctx context.Context, rawTag, word string) (bool, error) {
	an, tag, err := e.analyzer(ctx, rawTag)
	if err != nil {
		return false, err
	}
	return e.isCorrect(ctx, an, tag, word)
}

func (e *Engine) isCorrect(ctx context.Context, an *speller.Analyzer, tag locale.Tag, word string) (bool, error) {
	word = norm.NFC.String(word)
	if learned, err := e.isLearned(ctx, tag, word); err != nil {
		return false, errors.Tag(err, "learned words")
	} else if learned {
		return true, nil
	}
	return an.IsCorrect(word)
}

// Suggest returns ranked corrections for word. Learned words suggest
// themselves first.
func (e *Engine) Suggest(ctx context.Context, rawTag, word string, limit int) ([]string, error) {
	an, tag, err := e.analyzer(ctx, rawTag)
	if err != nil {
		return nil, err
	}
	return e.suggest(ctx, an, tag, word, limit)
}

func (e *Engine) suggest(ctx context.Context, an *speller.Analyzer, tag locale.Tag, word string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = e.opts.SuggestionLimit
	}
	word = norm.NFC.String(word)

	lc := e.suggestions(tag)
	key := strconv.Itoa(limit) + "\x00" + word
	if items, ok := lc.Get(key); ok {
		return items, nil
	}

	items, err := an.Suggest(ctx, word, limit)
	if err != nil {
		return nil, err
	}
	learned, err := e.isLearned(ctx, tag, word)
	if err != nil {
		return nil, errors.Tag(err, "learned words")
	}
	if learned && (len(items) == 0 || items[0] != word) {
		items = append([]string{word}, items...)
		if len(items) > limit {
			items = items[:limit]
		}
	}
	if ctx.Err() == nil {
		lc.Add(key, items)
	}
	return items, nil
}

// CheckWords returns the misspelled words of a batch with their
// suggestions, in input order. Batches beyond RequestLimit are truncated.
// Words the analyzer cannot take, such as empty or overlong ones, are
// passed over rather than failing the batch.
func (e *Engine) CheckWords(ctx context.Context, rawTag string, words []string) ([]Misspelling, error) {
	an, tag, err := e.analyzer(ctx, rawTag)
	if err != nil {
		return nil, err
	}
	if len(words) > RequestLimit {
		words = words[:RequestLimit]
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	type verdict struct {
		word string
		sugg []string
	}
	results := make(chan verdict, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.BatchConcurrency)
	for w := range unique {
		w := w
		g.Go(func() error {
			ok, err := e.isCorrect(gctx, an, tag, w)
			if errors.IsInvalidArgument(err) {
				log.Debug("skipping uncheckable word", "tag", tag, "error", err)
				return nil
			}
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
			sugg, err := e.suggest(gctx, an, tag, w, 0)
			if err != nil {
				return err
			}
			results <- verdict{word: w, sugg: sugg}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	wrong := make(map[string][]string)
	for v := range results {
		wrong[v.word] = v.sugg
	}

	out := make([]Misspelling, 0)
	for i, w := range words {
		sugg, ok := wrong[w]
		if !ok {
			continue
		}
		out = append(out, Misspelling{Index: i, Word: w, Suggestions: sugg})
	}
	return out, nil
}

// Proofread runs the locale's grammar bundle over text. When a speller is
// available for the locale, spelling rules consult it.
func (e *Engine) Proofread(ctx context.Context, rawTag, text string) ([]grammar.Error, error) {
	tag, err := parseTag(rawTag)
	if err != nil {
		return nil, err
	}
	if len(text) > MaxTextLength {
		return nil, errors.E(errors.InvalidArgument, "proofread", "", "text too long")
	}
	entry, err := e.registry.LookupGrammar(tag)
	if err != nil {
		return nil, err
	}
	bundle, err := e.grammars.Get(ctx, tag)
	if err != nil {
		return nil, err
	}

	opts := grammar.RunOptions{SuggestionLimit: e.opts.SuggestionLimit}
	if e.store != nil {
		ignored, err := e.store.IgnoredRules(ctx, entry.Source)
		if err != nil {
			return nil, errors.Tag(err, "ignored rules")
		}
		opts.IgnoreRules = ignored
	}
	if an, stag, err := e.analyzer(ctx, rawTag); err == nil {
		opts.Checker = &checker{e: e, an: an, tag: stag}
	} else if !errors.IsResourceNotFound(err) {
		return nil, err
	}

	start := time.Now()
	errs, err := bundle.Run(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	log.Debug("proofread", "tag", entry.Tag, "bytes", len(text), "errors", len(errs), "elapsed", time.Since(start))
	return errs, nil
}

func (e *Engine) userStore(op string) (store.Store, error) {
	if e.store == nil {
		return nil, errors.E(errors.InvalidArgument, op, "", "no user store configured")
	}
	return e.store, nil
}

// dictionaryTag resolves raw to the tag of the file serving it, so words
// learned under "se-no" and "se" land in one dictionary when se_NO serves
// both.
func (e *Engine) dictionaryTag(raw string) (locale.Tag, error) {
	tag, err := parseTag(raw)
	if err != nil {
		return "", err
	}
	entry, err := e.registry.Lookup(tag)
	if err != nil {
		return "", err
	}
	return entry.Source, nil
}

// Learn adds word to the user's dictionary for the locale.
func (e *Engine) Learn(ctx context.Context, rawTag, word string) error {
	st, err := e.userStore("learn")
	if err != nil {
		return err
	}
	tag, err := e.dictionaryTag(rawTag)
	if err != nil {
		return err
	}
	if err := st.Learn(ctx, tag, norm.NFC.String(word)); err != nil {
		return err
	}
	e.dropSuggestions(tag)
	return nil
}

func (e *Engine) Unlearn(ctx context.Context, rawTag, word string) error {
	st, err := e.userStore("unlearn")
	if err != nil {
		return err
	}
	tag, err := e.dictionaryTag(rawTag)
	if err != nil {
		return err
	}
	if err := st.Unlearn(ctx, tag, norm.NFC.String(word)); err != nil {
		return err
	}
	e.dropSuggestions(tag)
	return nil
}

func (e *Engine) Learned(ctx context.Context, rawTag string) ([]string, error) {
	st, err := e.userStore("learned")
	if err != nil {
		return nil, err
	}
	tag, err := e.dictionaryTag(rawTag)
	if err != nil {
		return nil, err
	}
	return st.Learned(ctx, tag)
}

// IgnoreRule stops Proofread reporting ruleID for the locale.
func (e *Engine) IgnoreRule(ctx context.Context, rawTag, ruleID string) error {
	st, err := e.userStore("ignore_rule")
	if err != nil {
		return err
	}
	tag, err := parseTag(rawTag)
	if err != nil {
		return err
	}
	entry, err := e.registry.LookupGrammar(tag)
	if err != nil {
		return err
	}
	return st.IgnoreRule(ctx, entry.Source, ruleID)
}

// ResetIgnoredRules clears ignored rules for the locale, or for every
// locale when rawTag is empty.
func (e *Engine) ResetIgnoredRules(ctx context.Context, rawTag string) error {
	st, err := e.userStore("reset_ignored_rules")
	if err != nil {
		return err
	}
	if rawTag == "" {
		return st.ResetIgnoredRules(ctx, "")
	}
	tag, err := parseTag(rawTag)
	if err != nil {
		return err
	}
	entry, err := e.registry.LookupGrammar(tag)
	if err != nil {
		return err
	}
	return st.ResetIgnoredRules(ctx, entry.Source)
}

func (e *Engine) IgnoredRules(ctx context.Context, rawTag string) ([]string, error) {
	st, err := e.userStore("ignored_rules")
	if err != nil {
		return nil, err
	}
	tag, err := parseTag(rawTag)
	if err != nil {
		return nil, err
	}
	entry, err := e.registry.LookupGrammar(tag)
	if err != nil {
		return nil, err
	}
	return st.IgnoredRules(ctx, entry.Source)
}

// checker adapts the engine's learned-word aware queries to grammar rules.
type checker struct {
	e   *Engine
	an  *speller.Analyzer
	tag locale.Tag
}

func (c *checker) IsCorrect(token string) (bool, error) {
	return c.e.isCorrect(context.Background(), c.an, c.tag, token)
}

func (c *checker) Suggest(ctx context.Context, token string, limit int) ([]string, error) {
	return c.e.suggest(ctx, c.an, c.tag, token, limit)
}

// Locales lists the tags with a speller.
func (e *Engine) Locales() []locale.Tag {
	return e.registry.Tags()
}

// HostLocales lists the locales advertised to a document host.
func (e *Engine) HostLocales() []locale.HostLocale {
	return locale.HostLocales(e.registry.Tags())
}

// HasLocale reports whether a speller serves raw or its base language.
func (e *Engine) HasLocale(raw string) bool {
	tag, err := parseTag(raw)
	if err != nil {
		return false
	}
	return locale.Has(e.registry.Available(), tag)
}

// Loaded lists the tags with an opened speller and grammar bundle.
func (e *Engine) Loaded() (spellers, grammars []locale.Tag) {
	return e.spellers.Loaded(), e.grammars.Loaded()
}

// Refresh rescans the resource directories and drops resources whose
// files changed or disappeared.
func (e *Engine) Refresh() error {
	s, g, err := e.registry.Rescan()
	if err != nil {
		return err
	}
	stale := s.Stale()
	e.dropSuggestions(stale...)
	return errors.Merge(
		e.spellers.Invalidate(stale...),
		e.grammars.Invalidate(g.Stale()...),
	)
}

// InvalidatePath drops resources opened from path.
func (e *Engine) InvalidatePath(path string) error {
	e.dropSuggestions()
	return errors.Merge(e.spellers.InvalidatePath(path), e.grammars.InvalidatePath(path))
}

func (e *Engine) Close() error {
	errs := []error{e.spellers.Close(), e.grammars.Close()}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Merge(errs...)
}
