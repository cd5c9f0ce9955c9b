package speller

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/fst"
)

// Archive is a compiled speller mapped read-only into memory. The automaton
// tables are read straight from the mapping, which Close unmaps.
type Archive struct {
	*base
	size int64
}

func OpenArchive(path string) (*Archive, error) {
	info, err := statResource(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, errors.E(errors.CorruptArchive, "open", path, "empty file")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ResourceNotFound, "open", path, err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(errors.ResourceNotFound, "open", path, fmt.Errorf("mmap: %w", err))
	}

	c, err := fst.Decode(m)
	if err != nil {
		m.Unmap()
		return nil, tagPath(err, path)
	}

	log.Debug("archive mapped", "path", path, "bytes", info.Size(),
		"states", c.Automaton.NumStates(), "locale", c.Meta.Locale)

	return &Archive{
		base: newBase(path, c, m.Unmap),
		size: info.Size(),
	}, nil
}

// OpenArchiveBytes decodes an archive held in memory, for archives embedded
// in other containers.
func OpenArchiveBytes(name string, data []byte) (*Archive, error) {
	c, err := fst.Decode(data)
	if err != nil {
		return nil, tagPath(err, name)
	}
	return &Archive{base: newBase(name, c, nil), size: int64(len(data))}, nil
}

func (a *Archive) Size() int64 {
	return a.size
}

func tagPath(err error, path string) error {
	var e *errors.Error
	if errors.As(err, &e) && e.Path == "" {
		cp := *e
		cp.Path = path
		cp.Op = "open"
		return &cp
	}
	return err
}
