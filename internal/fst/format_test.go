package fst

import (
	"math"
	"strings"
	"testing"

	"github.com/alucardeht/fstspell/internal/errors"
)

func buildSample(t *testing.T) []byte {
	t.Helper()
	b := NewBuilder(Metadata{Locale: "en", Title: "sample"})
	for word, weight := range map[string]float32{"the": 1, "then": 2, "than": 3, "café": 4} {
		if err := b.Add(word, weight); err != nil {
			t.Fatalf("Add(%q) failed: %v", word, err)
		}
	}
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	return data
}

func accepts(a *Automaton, word string) (float32, bool) {
	state := StartState
	var weight float32
	for _, r := range word {
		sym, ok := a.SymbolIndex(r)
		if !ok {
			return 0, false
		}
		lo, hi := a.Lookup(state, sym)
		if lo == hi {
			return 0, false
		}
		t := a.Transition(lo)
		weight += t.Weight
		state = t.Target
	}
	fw, final := a.Final(state)
	return weight + fw, final
}

func TestBuildDecodeRoundTrip(t *testing.T) {
	c, err := Decode(buildSample(t))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if c.Version != Version {
		t.Errorf("expected version %d, got %d", Version, c.Version)
	}
	if c.Meta.Locale != "en" || c.Meta.MaxEdits != 2 {
		t.Errorf("unexpected metadata %+v", c.Meta)
	}
	if err := c.Automaton.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !c.ErrorModel.Transpositions {
		t.Error("expected transpositions enabled by default")
	}

	for word, want := range map[string]float32{"the": 1, "then": 2, "than": 3, "café": 4} {
		w, ok := accepts(c.Automaton, word)
		if !ok {
			t.Errorf("expected %q to be accepted", word)
			continue
		}
		if w != want {
			t.Errorf("%q: expected weight %v, got %v", word, want, w)
		}
	}
	for _, word := range []string{"th", "thee", "cafe", ""} {
		if _, ok := accepts(c.Automaton, word); ok {
			t.Errorf("expected %q to be rejected", word)
		}
	}
}

func TestDecodeRejectsDamage(t *testing.T) {
	data := buildSample(t)

	tests := []struct {
		name string
		data []byte
		kind errors.Kind
	}{
		{"empty", nil, errors.CorruptArchive},
		{"truncated header", data[:10], errors.CorruptArchive},
		{"truncated body", data[:len(data)-5], errors.CorruptArchive},
		{"bad magic", append([]byte("NOTSPELL"), data[8:]...), errors.CorruptArchive},
		{"flipped byte", flip(data, len(data)-1), errors.CorruptArchive},
		{"future version", withVersion(data, Version+1), errors.UnsupportedVersion},
		{"old version", withVersion(data, 0), errors.UnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.KindOf(err) != tt.kind {
				t.Errorf("expected %s, got %s (%v)", tt.kind, errors.KindOf(err), err)
			}
		})
	}
}

func flip(data []byte, i int) []byte {
	out := append([]byte(nil), data...)
	out[i] ^= 0xff
	return out
}

func withVersion(data []byte, v uint16) []byte {
	out := append([]byte(nil), data...)
	le.PutUint16(out[8:10], v)
	return out
}

func TestValidateCatchesBadTargets(t *testing.T) {
	c, err := Decode(buildSample(t))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	// Point the first transition past the last state.
	le.PutUint32(c.Automaton.trans[4:8], c.Automaton.NumStates()+10)
	if err := c.Automaton.Validate(); err == nil {
		t.Fatal("expected Validate to reject an out of range target")
	}
}

func TestErrorModelRejectsNonFiniteCosts(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())
	for name, mutate := range map[string]func(m *ErrorModel){
		"infinite substitute": func(m *ErrorModel) { m.Substitute = inf },
		"nan insert":          func(m *ErrorModel) { m.Insert = nan },
		"infinite delete 'a'": func(m *ErrorModel) { m.DeleteCost = map[rune]float32{'a': inf} },
	} {
		m := NewErrorModel()
		mutate(m)
		if err := m.Validate(); err == nil {
			t.Errorf("%s: expected Validate to fail", name)
		}
	}
	if err := NewErrorModel().Validate(); err != nil {
		t.Errorf("expected the default model to validate, got %v", err)
	}
}

func TestCompoundsLoopToStart(t *testing.T) {
	b := NewBuilder(Metadata{Locale: "se"})
	b.Add("guolle", 0)
	b.Add("biila", 0)
	b.AllowCompounds(2.5)
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	c, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := c.Automaton.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	found := false
	for s := uint32(0); s < c.Automaton.NumStates(); s++ {
		if _, final := c.Automaton.Final(s); !final {
			continue
		}
		lo, hi := c.Automaton.Lookup(s, 0)
		if hi-lo != 1 {
			t.Fatalf("final state %d: expected one epsilon arc, got %d", s, hi-lo)
		}
		tr := c.Automaton.Transition(lo)
		if tr.Target != StartState || tr.Weight != 2.5 {
			t.Errorf("unexpected compound arc %+v", tr)
		}
		found = true
	}
	if !found {
		t.Fatal("expected at least one final state")
	}
}

func TestParseWordlist(t *testing.T) {
	src := strings.Join([]string{
		"# sample",
		"!locale se",
		"!title Davvisámegiella",
		"!max-edits 3",
		"!transpose 0.5",
		"!sub á a 0.2",
		"!ins h 0.4",
		"!keyboard qwerty 0.6",
		"sámi\t1.5",
		"giella",
		"",
	}, "\n")

	b, err := ParseWordlist(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseWordlist failed: %v", err)
	}
	if b.Len() != 2 {
		t.Errorf("expected 2 words, got %d", b.Len())
	}
	meta := b.Metadata()
	if meta.Locale != "se" || meta.Title != "Davvisámegiella" || meta.MaxEdits != 3 {
		t.Errorf("unexpected metadata %+v", *meta)
	}
	m := b.ErrorModel()
	if m.TranspositionCost() != 0.5 {
		t.Errorf("expected transpose 0.5, got %v", m.TranspositionCost())
	}
	if m.SubstitutionCost('á', 'a') != 0.2 {
		t.Errorf("expected á->a 0.2, got %v", m.SubstitutionCost('á', 'a'))
	}
	if m.InsertionCost('h') != 0.4 || m.InsertionCost('x') != 1 {
		t.Error("unexpected insertion costs")
	}
	if m.SubstitutionCost('q', 'w') != 0.6 {
		t.Errorf("expected keyboard neighbour cost 0.6, got %v", m.SubstitutionCost('q', 'w'))
	}
	if m.SubstitutionCost('q', 'p') != 1 {
		t.Errorf("expected default cost for distant keys, got %v", m.SubstitutionCost('q', 'p'))
	}

	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	c, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.ErrorModel.SubstitutionCost('á', 'a') != 0.2 {
		t.Error("expected substitution override to survive encoding")
	}
	if w, ok := accepts(c.Automaton, "sámi"); !ok || w != 1.5 {
		t.Errorf("expected sámi with weight 1.5, got %v %v", w, ok)
	}
}

func TestParseWordlistErrors(t *testing.T) {
	tests := map[string]string{
		"unknown directive": "!bogus 1",
		"bad weight":        "word\tabc",
		"negative cost":     "!insert -1",
		"bad layout":        "!keyboard dvorak 0.5",
		"multi rune sub":    "!sub ab c 1",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseWordlist(strings.NewReader(src)); err == nil {
				t.Errorf("expected error for %q", src)
			}
		})
	}
}
