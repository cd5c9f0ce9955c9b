package locale

import (
	_ "embed"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

//go:embed locales.json
var localesJSON []byte

var (
	countriesOnce sync.Once
	countries     map[string][]string
)

// Countries lists the countries hosts pair with a base language, from the
// embedded locale table.
func Countries(lang string) []string {
	countriesOnce.Do(func() {
		if err := json.Unmarshal(localesJSON, &countries); err != nil {
			panic("locale: embedded locale table: " + err.Error())
		}
	})
	return countries[strings.ToLower(lang)]
}

// HostLocales converts available tags into the locales advertised to a host.
// A base tag is advertised on its own and with every country the locale
// table pairs it with. Tags with more than one subtag are skipped.
func HostLocales(tags []Tag) []HostLocale {
	seen := make(map[HostLocale]struct{})
	var out []HostLocale
	add := func(h HostLocale) {
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}

	for _, t := range tags {
		h, ok := t.HostLocale()
		if !ok {
			continue
		}
		add(h)
		if h.Country == "" {
			for _, c := range Countries(h.Language) {
				add(HostLocale{Language: h.Language, Country: c})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		return out[i].Country < out[j].Country
	})
	return out
}
