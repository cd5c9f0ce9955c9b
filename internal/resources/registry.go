package resources

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/internal/logger"
)

var log = logger.ForComponent("resources")

type Kind int

const (
	KindSpeller Kind = iota
	KindGrammar
)

func (k Kind) String() string {
	switch k {
	case KindSpeller:
		return "speller"
	case KindGrammar:
		return "grammar"
	default:
		return "unknown"
	}
}

// Extension preference within one directory, best first.
var extensions = map[string]struct {
	kind Kind
	rank int
}{
	".fsta":     {KindSpeller, 0},
	".wordlist": {KindSpeller, 1},
	".grb":      {KindGrammar, 0},
}

const pattern = "**/*.{fsta,wordlist,grb}"

// Entry is one discovered resource file. Source is the tag the file is
// named for; it differs from Tag when the entry stands in for a base tag.
type Entry struct {
	Tag      locale.Tag `json:"tag"`
	Source   locale.Tag `json:"source"`
	Kind     Kind       `json:"-"`
	Path     string     `json:"path"`
	Size     int64      `json:"size"`
	ModTime  time.Time  `json:"mod_time"`
	Fallback bool       `json:"fallback,omitempty"`

	dir  int
	rank int
}

// SameFile reports whether o points at the same unchanged file.
func (e Entry) SameFile(o Entry) bool {
	return e.Path == o.Path && e.Size == o.Size && e.ModTime.Equal(o.ModTime)
}

// Changes lists the tags whose resources differ between two scans.
type Changes struct {
	Added   []locale.Tag
	Changed []locale.Tag
	Removed []locale.Tag
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Stale lists the tags whose loaded resources must be dropped.
func (c Changes) Stale() []locale.Tag {
	return append(append([]locale.Tag(nil), c.Changed...), c.Removed...)
}

// Registry maps tags to resource files found under a list of directories.
// Earlier directories take precedence.
type Registry struct {
	dirs []string

	mu       sync.RWMutex
	spellers map[locale.Tag]Entry
	grammars map[locale.Tag]Entry
}

func NewRegistry(dirs ...string) *Registry {
	return &Registry{
		dirs:     dirs,
		spellers: make(map[locale.Tag]Entry),
		grammars: make(map[locale.Tag]Entry),
	}
}

func (r *Registry) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Rescan walks the directories again and swaps in the result. Missing
// directories are skipped.
func (r *Registry) Rescan() (spellers, grammars Changes, err error) {
	entries, err := Discover(r.dirs)
	if err != nil {
		return Changes{}, Changes{}, err
	}
	s, g := index(entries, KindSpeller), index(entries, KindGrammar)

	r.mu.Lock()
	spellers = diff(r.spellers, s)
	grammars = diff(r.grammars, g)
	r.spellers, r.grammars = s, g
	r.mu.Unlock()

	if !spellers.Empty() || !grammars.Empty() {
		log.Info("resources rescanned",
			"spellers", len(s), "grammars", len(g),
			"added", len(spellers.Added)+len(grammars.Added),
			"changed", len(spellers.Changed)+len(grammars.Changed),
			"removed", len(spellers.Removed)+len(grammars.Removed))
	}
	return spellers, grammars, nil
}

// Lookup finds the speller for t, falling back to its base tag.
func (r *Registry) Lookup(t locale.Tag) (Entry, error) {
	return r.lookup("lookup_speller", r.spellers, t)
}

// LookupGrammar finds the grammar bundle for t, falling back to its base tag.
func (r *Registry) LookupGrammar(t locale.Tag) (Entry, error) {
	return r.lookup("lookup_grammar", r.grammars, t)
}

func (r *Registry) lookup(op string, m map[locale.Tag]Entry, t locale.Tag) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range t.Candidates() {
		if e, ok := m[c]; ok {
			return e, nil
		}
	}

	msg := "no resource for " + string(t)
	known := make([]locale.Tag, 0, len(m))
	for k := range m {
		known = append(known, k)
	}
	sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })
	if hints := locale.Closest(t, known, 3); len(hints) > 0 {
		names := make([]string, len(hints))
		for i, h := range hints {
			names[i] = string(h)
		}
		msg += "; did you mean " + strings.Join(names, ", ") + "?"
	}
	return Entry{}, errors.E(errors.ResourceNotFound, op, "", msg)
}

// Tags lists the tags with a speller, sorted.
func (r *Registry) Tags() []locale.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedTags(r.spellers)
}

// GrammarTags lists the tags with a grammar bundle, sorted.
func (r *Registry) GrammarTags() []locale.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedTags(r.grammars)
}

// Available is the set of speller tags, for locale.Has.
func (r *Registry) Available() map[locale.Tag]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[locale.Tag]struct{}, len(r.spellers))
	for t := range r.spellers {
		out[t] = struct{}{}
	}
	return out
}

// Entries returns every registered resource of both kinds.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.spellers)+len(r.grammars))
	for _, e := range r.spellers {
		out = append(out, e)
	}
	for _, e := range r.grammars {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// Discover globs every resource file under dirs. The tag comes from the
// file name with underscores read as hyphens.
func Discover(dirs []string) ([]Entry, error) {
	var out []Entry
	for i, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			log.Debug("skipping resource dir", "dir", dir)
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Tag(err, "scan "+dir)
		}
		for _, m := range matches {
			path := filepath.Join(dir, filepath.FromSlash(m))
			e, ok := entryFor(path)
			if !ok {
				continue
			}
			e.dir = i
			out = append(out, e)
		}
	}
	return out, nil
}

// IsResource reports whether path has a resource file extension.
func IsResource(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func entryFor(path string) (Entry, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := extensions[ext]
	if !ok {
		return Entry{}, false
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tag, err := locale.Normalize(stem)
	if err != nil {
		log.Warn("ignoring resource with unusable name", "path", path, "error", err)
		return Entry{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, false
	}
	return Entry{
		Tag:     tag,
		Source:  tag,
		Kind:    kind.kind,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		rank:    kind.rank,
	}, true
}

// index picks one entry per tag: earlier directory, then preferred
// extension, then path. Regional resources stand in for their base tag
// when nothing registers the base directly.
func index(entries []Entry, kind Kind) map[locale.Tag]Entry {
	var own []Entry
	for _, e := range entries {
		if e.Kind == kind {
			own = append(own, e)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		a, b := own[i], own[j]
		if a.dir != b.dir {
			return a.dir < b.dir
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.Path < b.Path
	})

	out := make(map[locale.Tag]Entry, len(own))
	for _, e := range own {
		if prev, ok := out[e.Tag]; ok {
			log.Debug("resource shadowed", "tag", e.Tag, "path", e.Path, "by", prev.Path)
			continue
		}
		out[e.Tag] = e
	}
	for _, e := range own {
		if e.Tag.IsBase() {
			continue
		}
		base := e.Tag.Base()
		if _, ok := out[base]; ok {
			continue
		}
		fb := e
		fb.Tag = base
		fb.Fallback = true
		out[base] = fb
	}
	return out
}

func diff(old, cur map[locale.Tag]Entry) Changes {
	var c Changes
	for t, e := range cur {
		prev, ok := old[t]
		switch {
		case !ok:
			c.Added = append(c.Added, t)
		case !prev.SameFile(e):
			c.Changed = append(c.Changed, t)
		}
	}
	for t := range old {
		if _, ok := cur[t]; !ok {
			c.Removed = append(c.Removed, t)
		}
	}
	sortTags(c.Added)
	sortTags(c.Changed)
	sortTags(c.Removed)
	return c
}

func sortedTags(m map[locale.Tag]Entry) []locale.Tag {
	out := make([]locale.Tag, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sortTags(out)
	return out
}

func sortTags(tags []locale.Tag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
}
