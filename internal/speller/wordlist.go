package speller

import (
	"bytes"
	"os"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/fst"
)

// Wordlist is a plain text word list compiled into an automaton when opened.
type Wordlist struct {
	*base
	words int
}

func OpenWordlist(path string) (*Wordlist, error) {
	if _, err := statResource(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ResourceNotFound, "open", path, err)
	}
	defer f.Close()

	b, err := fst.ParseWordlist(f)
	if err != nil {
		return nil, errors.Wrap(errors.CorruptArchive, "open", path, err)
	}
	return compileWordlist(path, b)
}

func compileWordlist(path string, b *fst.Builder) (*Wordlist, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(errors.EngineInitError, "compile", path, err)
	}
	c, err := fst.Decode(buf.Bytes())
	if err != nil {
		return nil, tagPath(err, path)
	}
	log.Debug("word list compiled", "path", path, "words", b.Len(), "states", c.Automaton.NumStates())
	return &Wordlist{base: newBase(path, c, nil), words: b.Len()}, nil
}

// FromBuilder compiles b directly, mostly for tests and embedded word lists.
func FromBuilder(name string, b *fst.Builder) (*Wordlist, error) {
	return compileWordlist(name, b)
}

func (w *Wordlist) Words() int {
	return w.words
}
