package speller

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/fst"
	"github.com/alucardeht/fstspell/internal/logger"
)

var log = logger.ForComponent("speller")

const (
	ArchiveExt  = ".fsta"
	WordlistExt = ".wordlist"
)

// Resource is anything that can hand out analyzers: a mapped archive or a
// word list compiled at load time.
type Resource interface {
	Path() string
	Metadata() fst.Metadata
	Analyzer() (*Analyzer, error)
	Close() error
}

type opener func(path string) (Resource, error)

var openers = map[string]opener{
	ArchiveExt:  func(path string) (Resource, error) { return OpenArchive(path) },
	WordlistExt: func(path string) (Resource, error) { return OpenWordlist(path) },
}

// Extensions lists the file extensions Open understands.
func Extensions() []string {
	return []string{ArchiveExt, WordlistExt}
}

func IsResourceFile(path string) bool {
	_, ok := openers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Open loads the speller resource at path, picking the format by extension.
func Open(path string) (Resource, error) {
	open, ok := openers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, errors.E(errors.InvalidArgument, "open", path, "unknown speller resource type")
	}
	return open(path)
}

func statResource(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.ResourceNotFound, "open", path, err)
	}
	if info.IsDir() {
		return nil, errors.E(errors.ResourceNotFound, "open", path, "is a directory")
	}
	return info, nil
}

// base carries what archives and word lists share: the decoded container,
// the validity guard and the one-time automaton validation.
type base struct {
	path    string
	c       *fst.Container
	lang    language.Tag
	release func() error

	mu     sync.RWMutex
	closed bool

	initOnce sync.Once
	initErr  error
}

func newBase(path string, c *fst.Container, release func() error) *base {
	lang := language.Und
	if c.Meta.Locale != "" {
		if t, err := language.Parse(c.Meta.Locale); err == nil {
			lang = t
		}
	}
	return &base{path: path, c: c, lang: lang, release: release}
}

func (b *base) Path() string {
	return b.path
}

func (b *base) Metadata() fst.Metadata {
	return b.c.Meta
}

// Analyzer validates the automaton on first use and returns a new handle.
func (b *base) Analyzer() (*Analyzer, error) {
	if err := b.acquire("analyzer"); err != nil {
		return nil, err
	}
	defer b.mu.RUnlock()

	b.initOnce.Do(func() {
		if err := b.c.Automaton.Validate(); err != nil {
			b.initErr = errors.Wrap(errors.EngineInitError, "analyzer", b.path, err)
			return
		}
		if err := b.c.ErrorModel.Validate(); err != nil {
			b.initErr = errors.Wrap(errors.EngineInitError, "analyzer", b.path, err)
		}
	})
	if b.initErr != nil {
		return nil, b.initErr
	}
	return &Analyzer{res: b, opts: SearchOptions{}}, nil
}

// acquire takes the read side of the guard. Callers must RUnlock on success.
func (b *base) acquire(op string) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.E(errors.UseAfterInvalidate, op, b.path, "resource closed")
	}
	return nil
}

// Close waits for in-flight queries, then releases the backing memory.
// Analyzer handles fail with UseAfterInvalidate afterwards.
func (b *base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	log.Debug("closing speller resource", "path", b.path)
	if b.release != nil {
		return b.release()
	}
	return nil
}
