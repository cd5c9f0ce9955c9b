package locale

import (
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	golocale "github.com/jeandeaual/go-locale"
)

// MinHintSimilarity is the lowest similarity a tag needs to be offered as
// a hint for an unknown one.
const MinHintSimilarity = 0.5

// Closest returns up to n available tags that look like t, most similar
// first. It backs "did you mean" messages for unknown locales.
func Closest(t Tag, available []Tag, n int) []Tag {
	type scored struct {
		tag Tag
		sim float64
	}
	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false

	var hits []scored
	for _, a := range available {
		if a == t {
			continue
		}
		sim := strutil.Similarity(string(t), string(a), jw)
		if a.Base() == t.Base() {
			sim = 1
		}
		if sim >= MinHintSimilarity {
			hits = append(hits, scored{a, sim})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].tag < hits[j].tag
	})
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	out := make([]Tag, len(hits))
	for i, h := range hits {
		out[i] = h.tag
	}
	return out
}

// Detect returns the user's preferred tags as reported by the operating
// system, first one first.
func Detect() ([]Tag, error) {
	raw, err := golocale.GetLocales()
	if err != nil {
		return nil, err
	}
	var out []Tag
	seen := make(map[Tag]struct{})
	for _, r := range raw {
		t, err := Normalize(r)
		if err != nil {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
