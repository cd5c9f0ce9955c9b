package fst

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"unicode/utf8"

	"github.com/alucardeht/fstspell/internal/errors"
)

const (
	Magic = "FSTSPELL"

	// Version is the container format written by this package. Archives with a
	// version outside [MinVersion, Version] are rejected.
	Version    uint16 = 1
	MinVersion uint16 = 1

	FlagTranspositions uint16 = 1 << 0

	headerSize       = 16
	sectionEntrySize = 16
	stateSize        = 12
	transitionSize   = 12
	maxSections      = 64
)

var (
	sectionMeta       = [4]byte{'M', 'E', 'T', 'A'}
	sectionSymbols    = [4]byte{'S', 'Y', 'M', 'B'}
	sectionStates     = [4]byte{'S', 'T', 'A', 'T'}
	sectionTrans      = [4]byte{'T', 'R', 'A', 'N'}
	sectionErrorModel = [4]byte{'E', 'M', 'O', 'D'}

	requiredSections = [][4]byte{sectionMeta, sectionSymbols, sectionStates, sectionTrans, sectionErrorModel}
)

var le = binary.LittleEndian

type Metadata struct {
	Locale      string  `json:"locale"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	MaxEdits    int     `json:"max_edits"`
	MaxWeight   float32 `json:"max_weight,omitempty"`
}

// Container is a decoded archive. The automaton tables alias the input bytes.
type Container struct {
	Version    uint16
	Flags      uint16
	Meta       Metadata
	Automaton  *Automaton
	ErrorModel *ErrorModel
}

type section struct {
	tag    [4]byte
	offset uint32
	length uint32
	crc    uint32
}

func corrupt(format string, args ...any) error {
	return errors.E(errors.CorruptArchive, "decode", "", fmt.Sprintf(format, args...))
}

// Decode parses an archive held in data. The returned container keeps
// references into data, so data must stay valid for the container's lifetime.
func Decode(data []byte) (*Container, error) {
	if len(data) < headerSize {
		return nil, corrupt("truncated header (%d bytes)", len(data))
	}
	if string(data[:8]) != Magic {
		return nil, corrupt("bad magic %q", data[:8])
	}

	version := le.Uint16(data[8:10])
	if version < MinVersion || version > Version {
		return nil, errors.E(errors.UnsupportedVersion, "decode", "",
			fmt.Sprintf("format version %d, supported %d..%d", version, MinVersion, Version))
	}
	flags := le.Uint16(data[10:12])

	nsect := le.Uint32(data[12:16])
	if nsect > maxSections {
		return nil, corrupt("section count %d out of range", nsect)
	}
	tableEnd := headerSize + int(nsect)*sectionEntrySize
	if tableEnd > len(data) {
		return nil, corrupt("truncated section table")
	}

	sections := make(map[[4]byte][]byte, nsect)
	for i := 0; i < int(nsect); i++ {
		raw := data[headerSize+i*sectionEntrySize:]
		var s section
		copy(s.tag[:], raw[:4])
		s.offset = le.Uint32(raw[4:8])
		s.length = le.Uint32(raw[8:12])
		s.crc = le.Uint32(raw[12:16])

		end := uint64(s.offset) + uint64(s.length)
		if uint64(s.offset) < uint64(tableEnd) || end > uint64(len(data)) {
			return nil, corrupt("section %s out of bounds", s.tag[:])
		}
		body := data[s.offset:end]
		if crc32.ChecksumIEEE(body) != s.crc {
			return nil, corrupt("section %s checksum mismatch", s.tag[:])
		}
		if _, dup := sections[s.tag]; dup {
			return nil, corrupt("duplicate section %s", s.tag[:])
		}
		sections[s.tag] = body
	}

	for _, tag := range requiredSections {
		if _, ok := sections[tag]; !ok {
			return nil, corrupt("missing section %s", tag[:])
		}
	}

	c := &Container{Version: version, Flags: flags}

	if err := json.Unmarshal(sections[sectionMeta], &c.Meta); err != nil {
		return nil, corrupt("metadata: %v", err)
	}

	symbols, err := decodeSymbols(sections[sectionSymbols])
	if err != nil {
		return nil, err
	}

	states := sections[sectionStates]
	if len(states)%stateSize != 0 || len(states) == 0 {
		return nil, corrupt("state table length %d", len(states))
	}
	trans := sections[sectionTrans]
	if len(trans)%transitionSize != 0 {
		return nil, corrupt("transition table length %d", len(trans))
	}
	c.Automaton = newAutomaton(symbols, states, trans)

	model, err := decodeErrorModel(sections[sectionErrorModel])
	if err != nil {
		return nil, err
	}
	model.Transpositions = flags&FlagTranspositions != 0
	c.ErrorModel = model

	return c, nil
}

func decodeSymbols(b []byte) ([]rune, error) {
	if len(b) < 4 {
		return nil, corrupt("truncated symbol table")
	}
	count := le.Uint32(b[:4])
	b = b[4:]
	if count == 0 || uint64(count)*2 > uint64(len(b)) {
		return nil, corrupt("symbol count %d out of range", count)
	}

	symbols := make([]rune, count)
	for i := range symbols {
		if len(b) < 2 {
			return nil, corrupt("truncated symbol %d", i)
		}
		n := int(le.Uint16(b[:2]))
		b = b[2:]
		if n > len(b) {
			return nil, corrupt("truncated symbol %d", i)
		}
		s := b[:n]
		b = b[n:]

		if i == 0 {
			if n != 0 {
				return nil, corrupt("symbol 0 must be epsilon")
			}
			symbols[0] = Epsilon
			continue
		}
		r, size := utf8.DecodeRune(s)
		if r == utf8.RuneError || size != n {
			return nil, corrupt("symbol %d is not a single rune", i)
		}
		symbols[i] = r
	}
	if len(b) != 0 {
		return nil, corrupt("trailing bytes in symbol table")
	}
	return symbols, nil
}

func decodeErrorModel(b []byte) (*ErrorModel, error) {
	r := reader{b: b}
	m := NewErrorModel()
	m.Insert = r.float32()
	m.Delete = r.float32()
	m.Substitute = r.float32()
	m.Transpose = r.float32()

	for n := r.uint32(); n > 0 && r.err == nil; n-- {
		sym := rune(r.uint32())
		m.InsertCost[sym] = r.float32()
	}
	for n := r.uint32(); n > 0 && r.err == nil; n-- {
		sym := rune(r.uint32())
		m.DeleteCost[sym] = r.float32()
	}
	for n := r.uint32(); n > 0 && r.err == nil; n-- {
		from := rune(r.uint32())
		to := rune(r.uint32())
		m.SubstituteCost[[2]rune{from, to}] = r.float32()
	}

	if r.err != nil {
		return nil, corrupt("error model: %v", r.err)
	}
	if len(r.b) != 0 {
		return nil, corrupt("error model: %d trailing bytes", len(r.b))
	}
	return m, nil
}

type reader struct {
	b   []byte
	err error
}

func (r *reader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.b) < 4 {
		r.err = fmt.Errorf("unexpected end of section")
		return 0
	}
	v := le.Uint32(r.b[:4])
	r.b = r.b[4:]
	return v
}

func (r *reader) float32() float32 {
	return math.Float32frombits(r.uint32())
}
