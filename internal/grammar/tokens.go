package grammar

import (
	"unicode"
	"unicode/utf8"
)

// Token is a word in the input. Start and End are byte offsets.
type Token struct {
	Start, End int
	Text       string
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r)
}

// joiners may appear inside a word but never at its edges.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '-', '\u00ad':
		return true
	}
	return false
}

// Tokenize splits text into words: runs of letters, marks and digits,
// with apostrophes and hyphens allowed between them.
func Tokenize(text string) []Token {
	var out []Token
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case isJoiner(r) && start >= 0:
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if i+size < len(text) && isWordRune(next) {
				break
			}
			out = append(out, Token{start, i, text[start:i]})
			start = -1
		default:
			if start >= 0 {
				out = append(out, Token{start, i, text[start:i]})
				start = -1
			}
		}
		i += size
	}
	if start >= 0 {
		out = append(out, Token{start, len(text), text[start:]})
	}
	return out
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
