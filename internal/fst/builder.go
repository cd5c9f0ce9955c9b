package fst

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"sort"
	"unicode/utf8"
)

// Builder compiles a weighted word list into an archive. Lower weights rank
// higher among suggestions with the same edit cost.
type Builder struct {
	meta      Metadata
	model     *ErrorModel
	words     map[string]float32
	compound  bool
	compoundW float32
}

func NewBuilder(meta Metadata) *Builder {
	if meta.MaxEdits <= 0 {
		meta.MaxEdits = 2
	}
	return &Builder{
		meta:  meta,
		model: NewErrorModel(),
		words: make(map[string]float32),
	}
}

func (b *Builder) Metadata() *Metadata {
	return &b.meta
}

func (b *Builder) ErrorModel() *ErrorModel {
	return b.model
}

func (b *Builder) SetErrorModel(m *ErrorModel) {
	b.model = m
}

// AllowCompounds lets any sequence of words be accepted as one token, each
// boundary adding weight.
func (b *Builder) AllowCompounds(weight float32) {
	b.compound = true
	b.compoundW = weight
}

// Add registers word. Adding a word twice keeps the lower weight.
func (b *Builder) Add(word string, weight float32) error {
	if word == "" {
		return fmt.Errorf("empty word")
	}
	if !utf8.ValidString(word) {
		return fmt.Errorf("word %q is not valid UTF-8", word)
	}
	if weight < 0 || math.IsNaN(float64(weight)) || math.IsInf(float64(weight), 0) {
		return fmt.Errorf("word %q: invalid weight %v", word, weight)
	}
	if prev, ok := b.words[word]; ok && prev <= weight {
		return nil
	}
	b.words[word] = weight
	return nil
}

func (b *Builder) Len() int {
	return len(b.words)
}

type trieNode struct {
	children map[rune]*trieNode
	final    bool
	weight   float32
	id       uint32
}

func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	if err := b.model.Validate(); err != nil {
		return 0, err
	}
	if b.compound && (b.compoundW < 0 || math.IsNaN(float64(b.compoundW))) {
		return 0, fmt.Errorf("invalid compound weight %v", b.compoundW)
	}

	root := &trieNode{children: make(map[rune]*trieNode)}
	alphabet := make(map[rune]struct{})
	for word, weight := range b.words {
		n := root
		for _, r := range word {
			alphabet[r] = struct{}{}
			child, ok := n.children[r]
			if !ok {
				child = &trieNode{children: make(map[rune]*trieNode)}
				n.children[r] = child
			}
			n = child
		}
		n.final = true
		n.weight = weight
	}

	runes := make([]rune, 0, len(alphabet))
	for r := range alphabet {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	symIndex := make(map[rune]uint32, len(runes))
	for i, r := range runes {
		symIndex[r] = uint32(i + 1)
	}

	// Breadth-first numbering keeps the start state at 0 and the output stable.
	order := []*trieNode{root}
	for i := 0; i < len(order); i++ {
		n := order[i]
		n.id = uint32(i)
		for _, r := range sortedKeys(n.children) {
			order = append(order, n.children[r])
		}
	}

	var states, trans bytes.Buffer
	var ntrans uint32
	for _, n := range order {
		first := ntrans
		if b.compound && n.final {
			writeTransition(&trans, 0, StartState, b.compoundW)
			ntrans++
		}
		for _, r := range sortedKeys(n.children) {
			writeTransition(&trans, symIndex[r], n.children[r].id, 0)
			ntrans++
		}

		final := float32(math.NaN())
		if n.final {
			final = n.weight
		}
		var rec [stateSize]byte
		le.PutUint32(rec[0:4], first)
		le.PutUint32(rec[4:8], ntrans-first)
		le.PutUint32(rec[8:12], math.Float32bits(final))
		states.Write(rec[:])
	}

	meta, err := json.Marshal(b.meta)
	if err != nil {
		return 0, err
	}

	var flags uint16
	if b.model.Transpositions {
		flags |= FlagTranspositions
	}

	return writeContainer(w, flags, []sectionBody{
		{sectionMeta, meta},
		{sectionSymbols, encodeSymbols(runes)},
		{sectionStates, states.Bytes()},
		{sectionTrans, trans.Bytes()},
		{sectionErrorModel, encodeErrorModel(b.model)},
	})
}

func sortedKeys(m map[rune]*trieNode) []rune {
	keys := make([]rune, 0, len(m))
	for r := range m {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func writeTransition(w *bytes.Buffer, symbol, target uint32, weight float32) {
	var rec [transitionSize]byte
	le.PutUint32(rec[0:4], symbol)
	le.PutUint32(rec[4:8], target)
	le.PutUint32(rec[8:12], math.Float32bits(weight))
	w.Write(rec[:])
}

func encodeSymbols(runes []rune) []byte {
	var buf bytes.Buffer
	var n [4]byte
	le.PutUint32(n[:], uint32(len(runes)+1))
	buf.Write(n[:])

	// epsilon
	buf.Write([]byte{0, 0})
	for _, r := range runes {
		s := string(r)
		var l [2]byte
		le.PutUint16(l[:], uint16(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}
	return buf.Bytes()
}

func encodeErrorModel(m *ErrorModel) []byte {
	var buf bytes.Buffer
	put := func(v uint32) {
		var b [4]byte
		le.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	putf := func(v float32) { put(math.Float32bits(v)) }

	putf(m.Insert)
	putf(m.Delete)
	putf(m.Substitute)
	putf(m.Transpose)

	for _, costs := range []map[rune]float32{m.InsertCost, m.DeleteCost} {
		keys := make([]rune, 0, len(costs))
		for r := range costs {
			keys = append(keys, r)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		put(uint32(len(keys)))
		for _, r := range keys {
			put(uint32(r))
			putf(costs[r])
		}
	}

	pairs := make([][2]rune, 0, len(m.SubstituteCost))
	for p := range m.SubstituteCost {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	put(uint32(len(pairs)))
	for _, p := range pairs {
		put(uint32(p[0]))
		put(uint32(p[1]))
		putf(m.SubstituteCost[p])
	}
	return buf.Bytes()
}

type sectionBody struct {
	tag  [4]byte
	body []byte
}

func writeContainer(w io.Writer, flags uint16, sections []sectionBody) (int64, error) {
	header := make([]byte, headerSize+len(sections)*sectionEntrySize)
	copy(header[:8], Magic)
	le.PutUint16(header[8:10], Version)
	le.PutUint16(header[10:12], flags)
	le.PutUint32(header[12:16], uint32(len(sections)))

	offset := uint32(len(header))
	for i, s := range sections {
		entry := header[headerSize+i*sectionEntrySize:]
		copy(entry[:4], s.tag[:])
		le.PutUint32(entry[4:8], offset)
		le.PutUint32(entry[8:12], uint32(len(s.body)))
		le.PutUint32(entry[12:16], crc32.ChecksumIEEE(s.body))
		offset += uint32(len(s.body))
	}

	n, err := w.Write(header)
	total := int64(n)
	if err != nil {
		return total, err
	}
	for _, s := range sections {
		n, err := w.Write(s.body)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
