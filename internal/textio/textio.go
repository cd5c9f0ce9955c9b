// Package textio reads documents in legacy encodings as UTF-8 and writes
// them back in the encoding they came in.
package textio

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

const bom = "\ufeff"

var encodings = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8,
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"iso-8859-4":   charmap.ISO8859_4,
	"iso-8859-5":   charmap.ISO8859_5,
	"iso-8859-7":   charmap.ISO8859_7,
	"iso-8859-10":  charmap.ISO8859_10,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"windows-1257": charmap.Windows1257,
	"koi8-r":       charmap.KOI8R,
	"koi8-u":       charmap.KOI8U,
	"shift-jis":    japanese.ShiftJIS,
	"euc-jp":       japanese.EUCJP,
	"gbk":          simplifiedchinese.GBK,
	"gb18030":      simplifiedchinese.GB18030,
	"big5":         traditionalchinese.Big5,
	"euc-kr":       korean.EUCKR,
}

var aliases = map[string]string{
	"utf8":   "utf-8",
	"ascii":  "utf-8",
	"latin1": "iso-8859-1",
	"latin9": "iso-8859-15",
	"cp1250": "windows-1250",
	"cp1251": "windows-1251",
	"cp1252": "windows-1252",
	"cp1257": "windows-1257",
	"sjis":   "shift-jis",
}

// Names lists the encodings Lookup accepts, aliases aside.
func Names() []string {
	names := make([]string, 0, len(encodings))
	for name := range encodings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the canonical name of an encoding.
func Lookup(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	if a, ok := aliases[n]; ok {
		n = a
	}
	if _, ok := encodings[n]; !ok {
		return "", fmt.Errorf("unknown encoding %q", name)
	}
	return n, nil
}

// Detect guesses the encoding of data: a byte order mark wins, then valid
// UTF-8, then UTF-16 recognised by its zero bytes. Anything else is taken
// as windows-1252.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8"
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return "utf-16le"
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return "utf-16be"
	}

	if utf8.Valid(data) {
		if enc := detectUTF16(data); enc != "" {
			return enc
		}
		return "utf-8"
	}
	if enc := detectUTF16(data); enc != "" {
		return enc
	}
	return "windows-1252"
}

// detectUTF16 looks for text that is mostly ASCII stored in two bytes: one
// half of every pair is zero.
func detectUTF16(data []byte) string {
	if len(data) < 4 || len(data)%2 != 0 {
		return ""
	}
	var even, odd int
	for i := 0; i < len(data); i += 2 {
		if data[i] == 0 {
			even++
		}
		if data[i+1] == 0 {
			odd++
		}
	}
	pairs := len(data) / 2
	switch {
	case odd*10 >= pairs*6 && even*10 < pairs:
		return "utf-16le"
	case even*10 >= pairs*6 && odd*10 < pairs:
		return "utf-16be"
	}
	return ""
}

// Document is decoded text with what is needed to encode it again.
type Document struct {
	Text     string
	Encoding string
	BOM      bool
}

// Decode converts data to UTF-8. An empty name means detect. A leading
// byte order mark is dropped from Text and remembered.
func Decode(data []byte, name string) (Document, error) {
	if name == "" || name == "auto" {
		name = Detect(data)
	}
	name, err := Lookup(name)
	if err != nil {
		return Document{}, err
	}

	out, err := encodings[name].NewDecoder().Bytes(data)
	if err != nil {
		return Document{}, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	text := string(out)
	doc := Document{Encoding: name}
	if strings.HasPrefix(text, bom) {
		text = text[len(bom):]
		doc.BOM = true
	}
	doc.Text = text
	return doc, nil
}

// Encode returns text in the document's encoding, with its byte order
// mark if it had one. Characters the encoding cannot hold are an error.
func (d Document) Encode(text string) ([]byte, error) {
	enc, ok := encodings[d.Encoding]
	if !ok {
		return nil, fmt.Errorf("unknown encoding %q", d.Encoding)
	}
	if d.BOM {
		text = bom + text
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode as %s: %w", d.Encoding, err)
	}
	return out, nil
}
