package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/fst"
	"github.com/alucardeht/fstspell/internal/grammar"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/internal/resources"
	"github.com/alucardeht/fstspell/internal/speller"
	"github.com/alucardeht/fstspell/internal/store"
)

var words = map[string]float32{
	"the": 1,
	"cat": 2,
	"sat": 2,
	"on":  1,
	"mat": 3,
}

func writeSpeller(t *testing.T, path string, lexicon map[string]float32) {
	t.Helper()
	b := fst.NewBuilder(fst.Metadata{Locale: "en", MaxEdits: 2})
	for w, weight := range lexicon {
		if err := b.Add(w, weight); err != nil {
			t.Fatalf("Add(%q) failed: %v", w, err)
		}
	}
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("failed to build archive: %v", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("failed to move archive into place: %v", err)
	}
}

func writeGrammar(t *testing.T, path string) {
	t.Helper()
	m := grammar.Manifest{
		Locale: "en",
		Rules: []grammar.RuleSpec{
			{ID: "repeated", Kind: grammar.KindRepeatedWord},
			{ID: "spelling", Kind: grammar.KindSpelling},
		},
	}
	if err := grammar.WriteFile(path, m, nil); err != nil {
		t.Fatalf("failed to write bundle: %v", err)
	}
}

type fixture struct {
	dir    string
	engine *Engine
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeSpeller(t, filepath.Join(dir, "en.fsta"), words)
	writeGrammar(t, filepath.Join(dir, "en.grb"))

	reg := resources.NewRegistry(dir)
	if _, _, err := reg.Rescan(); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}

	var st store.Store
	if withStore {
		s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "user.db"))
		if err != nil {
			t.Fatalf("OpenSQLite failed: %v", err)
		}
		st = s
	}
	e := New(reg, st, Options{})
	t.Cleanup(func() { e.Close() })
	return &fixture{dir: dir, engine: e}
}

func TestIsCorrectAndSuggest(t *testing.T) {
	e := newFixture(t, false).engine
	ctx := context.Background()

	ok, err := e.IsCorrect(ctx, "en_US", "cat")
	if err != nil || !ok {
		t.Fatalf("expected cat correct through base fallback, got %v %v", ok, err)
	}
	ok, _ = e.IsCorrect(ctx, "en", "cta")
	if ok {
		t.Error("expected cta to be rejected")
	}

	suggs, err := e.Suggest(ctx, "en", "teh", 0)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(suggs) == 0 || suggs[0] != "the" {
		t.Errorf("expected 'the' first, got %v", suggs)
	}

	again, _ := e.Suggest(ctx, "en", "teh", 0)
	if len(again) != len(suggs) || again[0] != suggs[0] {
		t.Errorf("expected cached suggestions to match, got %v and %v", suggs, again)
	}
}

func TestUnknownLocale(t *testing.T) {
	e := newFixture(t, false).engine

	_, err := e.IsCorrect(context.Background(), "fi", "sauna")
	if !errors.IsResourceNotFound(err) {
		t.Errorf("expected ResourceNotFound, got %v", err)
	}
	_, err = e.Suggest(context.Background(), "not a tag!", "x", 0)
	if !errors.IsInvalidArgument(err) {
		t.Errorf("expected InvalidArgument for bad tag, got %v", err)
	}
	if e.HasLocale("fi") {
		t.Error("expected fi to be unavailable")
	}
	if !e.HasLocale("en-GB") {
		t.Error("expected en-GB to be served by en")
	}
}

func TestLearnedWords(t *testing.T) {
	e := newFixture(t, true).engine
	ctx := context.Background()

	before, _ := e.Suggest(ctx, "en", "zork", 0)
	if len(before) != 0 {
		t.Fatalf("expected no suggestions for zork, got %v", before)
	}

	if err := e.Learn(ctx, "en-US", "zork"); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	ok, err := e.IsCorrect(ctx, "en", "zork")
	if err != nil || !ok {
		t.Errorf("expected learned word accepted under base tag, got %v %v", ok, err)
	}
	suggs, _ := e.Suggest(ctx, "en", "zork", 0)
	if len(suggs) == 0 || suggs[0] != "zork" {
		t.Errorf("expected learned word first after learning, got %v", suggs)
	}

	learned, err := e.Learned(ctx, "en")
	if err != nil || len(learned) != 1 || learned[0] != "zork" {
		t.Errorf("expected [zork], got %v %v", learned, err)
	}

	if err := e.Unlearn(ctx, "en", "zork"); err != nil {
		t.Fatalf("Unlearn failed: %v", err)
	}
	if ok, _ := e.IsCorrect(ctx, "en", "zork"); ok {
		t.Error("expected zork rejected after unlearning")
	}
}

func TestRegionalSpellerSharedWithBase(t *testing.T) {
	dir := t.TempDir()
	writeSpeller(t, filepath.Join(dir, "en_GB.fsta"), words)
	reg := resources.NewRegistry(dir)
	if _, _, err := reg.Rescan(); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "user.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	e := New(reg, st, Options{})
	defer e.Close()
	ctx := context.Background()

	if err := e.Learn(ctx, "en", "zork"); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	for _, tag := range []string{"en", "en-GB"} {
		if ok, err := e.IsCorrect(ctx, tag, "zork"); err != nil || !ok {
			t.Errorf("expected zork accepted under %s, got %v %v", tag, ok, err)
		}
	}
	learned, err := e.Learned(ctx, "en-GB")
	if err != nil || len(learned) != 1 || learned[0] != "zork" {
		t.Errorf("expected [zork] under en-GB, got %v %v", learned, err)
	}
	spellers, _ := e.Loaded()
	if len(spellers) != 2 {
		t.Errorf("expected en and en-gb bound to one speller, got %v", spellers)
	}
}

func TestSpellerReplacedDuringLookup(t *testing.T) {
	f := newFixture(t, false)
	e := f.engine
	ctx := context.Background()

	if _, err := e.IsCorrect(ctx, "en", "cat"); err != nil {
		t.Fatalf("IsCorrect failed: %v", err)
	}

	calls := 0
	afterSpellerGet = func(locale.Tag) {
		calls++
		if calls == 1 {
			e.InvalidatePath(filepath.Join(f.dir, "en.fsta"))
		}
	}
	t.Cleanup(func() { afterSpellerGet = func(locale.Tag) {} })

	ok, err := e.IsCorrect(ctx, "en", "cat")
	if err != nil || !ok {
		t.Fatalf("expected the speller fetched again, got %v %v", ok, err)
	}
	if calls != 2 {
		t.Errorf("expected two lookups, got %d", calls)
	}
}

func TestDictionaryWithoutStore(t *testing.T) {
	e := newFixture(t, false).engine

	err := e.Learn(context.Background(), "en", "zork")
	if !errors.IsInvalidArgument(err) {
		t.Errorf("expected InvalidArgument without a store, got %v", err)
	}
}

func TestCheckWords(t *testing.T) {
	e := newFixture(t, false).engine

	got, err := e.CheckWords(context.Background(), "en", []string{"the", "teh", "cat", "teh", "mta"})
	if err != nil {
		t.Fatalf("CheckWords failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 misspellings, got %+v", got)
	}
	wantIdx := []int{1, 3, 4}
	for i, m := range got {
		if m.Index != wantIdx[i] {
			t.Errorf("misspelling %d: expected index %d, got %d", i, wantIdx[i], m.Index)
		}
	}
	if len(got[0].Suggestions) == 0 || got[0].Suggestions[0] != "the" {
		t.Errorf("expected 'the' for teh, got %v", got[0].Suggestions)
	}

	none, err := e.CheckWords(context.Background(), "en", nil)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil result, got %v %v", none, err)
	}
}

func TestCheckWordsSkipsUncheckableWords(t *testing.T) {
	e := newFixture(t, true).engine

	long := strings.Repeat("a", speller.MaxTokenLength+1)
	got, err := e.CheckWords(context.Background(), "en", []string{"teh", "", "cat", long})
	if err != nil {
		t.Fatalf("expected the batch to succeed, got %v", err)
	}
	if len(got) != 1 || got[0].Index != 0 || got[0].Word != "teh" {
		t.Errorf("expected only teh reported, got %+v", got)
	}
}

func TestProofread(t *testing.T) {
	e := newFixture(t, true).engine
	ctx := context.Background()
	text := "Teh cat sat on on the mat"

	errs, err := e.Proofread(ctx, "en", text)
	if err != nil {
		t.Fatalf("Proofread failed: %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %+v", errs)
	}
	if errs[0].RuleID != "spelling" || errs[0].Start != 0 || errs[0].End != 3 {
		t.Errorf("expected spelling error at [0,3), got %+v", errs[0])
	}
	if len(errs[0].Suggestions) == 0 || errs[0].Suggestions[0] != "The" {
		t.Errorf("expected recased suggestion The, got %v", errs[0].Suggestions)
	}
	if errs[1].RuleID != "repeated" || errs[1].Form != "on on" {
		t.Errorf("expected repeated word 'on on', got %+v", errs[1])
	}

	if err := e.IgnoreRule(ctx, "en-US", "repeated"); err != nil {
		t.Fatalf("IgnoreRule failed: %v", err)
	}
	errs, _ = e.Proofread(ctx, "en", text)
	if len(errs) != 1 || errs[0].RuleID != "spelling" {
		t.Errorf("expected only the spelling error, got %+v", errs)
	}

	if err := e.ResetIgnoredRules(ctx, ""); err != nil {
		t.Fatalf("ResetIgnoredRules failed: %v", err)
	}
	errs, _ = e.Proofread(ctx, "en", text)
	if len(errs) != 2 {
		t.Errorf("expected both errors after reset, got %+v", errs)
	}

	empty, err := e.Proofread(ctx, "en", "")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil result, got %v %v", empty, err)
	}
}

func TestProofreadUsesLearnedWords(t *testing.T) {
	e := newFixture(t, true).engine
	ctx := context.Background()

	e.Learn(ctx, "en", "Teh")
	errs, err := e.Proofread(ctx, "en", "Teh cat")
	if err != nil {
		t.Fatalf("Proofread failed: %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("expected learned word to pass, got %+v", errs)
	}
}

func TestProofreadWithoutGrammar(t *testing.T) {
	f := newFixture(t, false)
	os.Remove(filepath.Join(f.dir, "en.grb"))
	if err := f.engine.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	_, err := f.engine.Proofread(context.Background(), "en", "the cat")
	if !errors.IsResourceNotFound(err) {
		t.Errorf("expected ResourceNotFound, got %v", err)
	}
}

func TestRefreshPicksUpChanges(t *testing.T) {
	f := newFixture(t, false)
	e := f.engine
	ctx := context.Background()

	if ok, _ := e.IsCorrect(ctx, "en", "dog"); ok {
		t.Fatal("dog should not be known yet")
	}
	spellers, _ := e.Loaded()
	if len(spellers) != 1 || spellers[0] != "en" {
		t.Fatalf("expected en loaded, got %v", spellers)
	}

	grown := map[string]float32{"dog": 1}
	for w, weight := range words {
		grown[w] = weight
	}
	writeSpeller(t, filepath.Join(f.dir, "en.fsta"), grown)
	writeSpeller(t, filepath.Join(f.dir, "fi.fsta"), map[string]float32{"sauna": 1})
	if err := e.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if ok, err := e.IsCorrect(ctx, "en", "dog"); err != nil || !ok {
		t.Errorf("expected dog after refresh, got %v %v", ok, err)
	}
	if !e.HasLocale("fi") {
		t.Error("expected fi after refresh")
	}
	if got := e.Locales(); len(got) != 2 {
		t.Errorf("expected 2 locales, got %v", got)
	}
}

func TestHostLocales(t *testing.T) {
	e := newFixture(t, false).engine

	hosts := e.HostLocales()
	if len(hosts) == 0 || hosts[0].Language != "en" || hosts[0].Country != "" {
		t.Errorf("expected the base language first, got %+v", hosts)
	}
}

func TestCloseRejectsQueries(t *testing.T) {
	e := newFixture(t, true).engine
	ctx := context.Background()

	if _, err := e.IsCorrect(ctx, "en", "cat"); err != nil {
		t.Fatalf("IsCorrect failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	_, err := e.IsCorrect(ctx, "en", "cat")
	if !errors.IsUseAfterInvalidate(err) {
		t.Errorf("expected UseAfterInvalidate, got %v", err)
	}
}
