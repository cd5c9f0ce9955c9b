package grammar

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/logger"
)

var log = logger.ForComponent("grammar")

const (
	Ext              = ".grb"
	ManifestName     = "manifest.toml"
	ReplacementsName = "replacements.tsv"

	// FormatVersion is written into new bundles.
	FormatVersion = "1.0.0"
	// FormatConstraint is the range of format versions Load accepts.
	FormatConstraint = "^1"
)

var formatConstraint = mustConstraint(FormatConstraint)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Manifest describes a bundle and its rules.
type Manifest struct {
	FormatVersion string     `toml:"format_version"`
	Locale        string     `toml:"locale"`
	Name          string     `toml:"name,omitempty"`
	Description   string     `toml:"description,omitempty"`
	Rules         []RuleSpec `toml:"rules"`
}

// RuleSpec configures one rule. Which fields apply depends on Kind.
type RuleSpec struct {
	ID              string              `toml:"id"`
	Kind            string              `toml:"kind"`
	Message         string              `toml:"message,omitempty"`
	Pattern         string              `toml:"pattern,omitempty"`
	Suggestions     []string            `toml:"suggestions,omitempty"`
	CaseInsensitive bool                `toml:"case_insensitive,omitempty"`
	Table           string              `toml:"table,omitempty"`
	Replacements    map[string][]string `toml:"replacements,omitempty"`
	Disabled        bool                `toml:"disabled,omitempty"`
}

// Bundle is a loaded set of grammar rules. It is read-only after Load and
// safe for concurrent Run calls.
type Bundle struct {
	path     string
	manifest Manifest
	lang     language.Tag
	rules    []rule
	closed   atomic.Bool
}

func (b *Bundle) Path() string {
	return b.path
}

func (b *Bundle) Locale() string {
	return b.manifest.Locale
}

func (b *Bundle) Manifest() Manifest {
	return b.manifest
}

// RuleIDs lists the enabled rules in run order.
func (b *Bundle) RuleIDs() []string {
	ids := make([]string, len(b.rules))
	for i, r := range b.rules {
		ids[i] = r.id()
	}
	return ids
}

// Close marks the bundle unusable. Later Run calls fail with
// UseAfterInvalidate.
func (b *Bundle) Close() error {
	b.closed.Store(true)
	return nil
}

// Load reads a bundle file.
func Load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, errors.E(errors.ResourceNotFound, "load", path, "no such bundle")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ResourceNotFound, "load", path, err)
	}
	b, err := LoadBytes(path, data)
	if err != nil {
		return nil, err
	}
	log.Debug("bundle loaded", "path", path, "locale", b.Locale(), "rules", len(b.rules))
	return b, nil
}

// LoadBytes parses a bundle held in memory. name is used in errors.
func LoadBytes(name string, data []byte) (*Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.CorruptArchive, "load", name, err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	mf, ok := files[ManifestName]
	if !ok {
		return nil, errors.E(errors.CorruptArchive, "load", name, "missing "+ManifestName)
	}
	raw, err := readZipFile(mf)
	if err != nil {
		return nil, errors.Wrap(errors.CorruptArchive, "load", name, err)
	}

	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(errors.CorruptArchive, "load", name, fmt.Errorf("manifest: %w", err))
	}

	if m.FormatVersion == "" {
		return nil, errors.E(errors.CorruptArchive, "load", name, "manifest has no format_version")
	}
	v, err := semver.NewVersion(m.FormatVersion)
	if err != nil {
		return nil, errors.Wrap(errors.CorruptArchive, "load", name, fmt.Errorf("format_version: %w", err))
	}
	if !formatConstraint.Check(v) {
		return nil, errors.E(errors.UnsupportedVersion, "load", name,
			fmt.Sprintf("format version %s does not satisfy %s", v, FormatConstraint))
	}

	lang, err := language.Parse(strings.ReplaceAll(m.Locale, "_", "-"))
	if err != nil {
		lang = language.Und
	}

	b := &Bundle{path: name, manifest: m, lang: lang}
	seen := make(map[string]bool, len(m.Rules))
	for i, spec := range m.Rules {
		if spec.ID == "" {
			spec.ID = spec.Kind
		}
		if seen[spec.ID] {
			return nil, errors.E(errors.CorruptArchive, "load", name, fmt.Sprintf("rule %d: duplicate id %q", i, spec.ID))
		}
		seen[spec.ID] = true
		if spec.Disabled {
			continue
		}

		var table map[string][]string
		if spec.Kind == KindReplace {
			table, err = replacementTable(spec, files)
			if err != nil {
				return nil, errors.Wrap(errors.CorruptArchive, "load", name, fmt.Errorf("rule %q: %w", spec.ID, err))
			}
		}
		r, err := newRule(spec, lang, table)
		if err != nil {
			return nil, errors.Wrap(errors.CorruptArchive, "load", name, fmt.Errorf("rule %q: %w", spec.ID, err))
		}
		b.rules = append(b.rules, r)
	}
	return b, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func replacementTable(spec RuleSpec, files map[string]*zip.File) (map[string][]string, error) {
	table := make(map[string][]string, len(spec.Replacements))
	for from, to := range spec.Replacements {
		table[strings.ToLower(from)] = to
	}

	name := spec.Table
	if name == "" && len(spec.Replacements) == 0 {
		name = ReplacementsName
	}
	if name == "" {
		return table, nil
	}
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("missing table %s", name)
	}
	raw, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseReplacements(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for from, to := range parsed {
		table[from] = to
	}
	return table, nil
}

// ParseReplacements reads a tab separated table: the word to replace, then
// one or more replacements. Lines starting with # are comments.
func ParseReplacements(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected a word and at least one replacement", line)
		}
		from := strings.ToLower(strings.TrimSpace(fields[0]))
		var to []string
		for _, f := range fields[1:] {
			if f = strings.TrimSpace(f); f != "" {
				to = append(to, f)
			}
		}
		if from == "" || len(to) == 0 {
			return nil, fmt.Errorf("line %d: empty entry", line)
		}
		out[from] = to
	}
	return out, sc.Err()
}

// Write encodes a bundle. A non-empty table is stored as replacements.tsv.
func Write(w io.Writer, m Manifest, table map[string][]string) error {
	if m.FormatVersion == "" {
		m.FormatVersion = FormatVersion
	}
	raw, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	zw := zip.NewWriter(w)
	f, err := zw.Create(ManifestName)
	if err != nil {
		return err
	}
	if _, err := f.Write(raw); err != nil {
		return err
	}

	if len(table) > 0 {
		f, err := zw.Create(ReplacementsName)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		bw := bufio.NewWriter(f)
		for _, k := range keys {
			fmt.Fprintf(bw, "%s\t%s\n", k, strings.Join(table[k], "\t"))
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	return zw.Close()
}

// WriteFile writes a bundle to path, creating parent directories.
func WriteFile(path string, m Manifest, table map[string][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, m, table); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
