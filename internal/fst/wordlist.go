package fst

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseWordlist reads the plain text source format into a Builder.
//
// Each line holds a word, optionally followed by a tab and a weight. Lines
// starting with '#' are comments and lines starting with '!' are directives:
//
//	!locale se
//	!title Northern Sami
//	!max-edits 2
//	!max-weight 12.5
//	!insert 1 | !delete 1 | !substitute 1 | !transpose 0.8
//	!no-transpose
//	!sub a á 0.3
//	!ins h 0.5
//	!del h 0.5
//	!keyboard qwerty 0.6
//	!compound 3
func ParseWordlist(r io.Reader) (*Builder, error) {
	b := NewBuilder(Metadata{})
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if !utf8.ValidString(text) {
			return nil, fmt.Errorf("line %d: invalid UTF-8", line)
		}
		trimmed := strings.TrimSpace(text)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			continue
		case strings.HasPrefix(trimmed, "!"):
			if err := b.directive(strings.Fields(trimmed[1:])); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		default:
			word, weight := text, float32(0)
			if i := strings.IndexByte(text, '\t'); i >= 0 {
				word = text[:i]
				w, err := strconv.ParseFloat(strings.TrimSpace(text[i+1:]), 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad weight: %w", line, err)
				}
				weight = float32(w)
			}
			word = strings.TrimSpace(word)
			if err := b.Add(word, weight); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Builder) directive(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("empty directive")
	}
	name, args := fields[0], fields[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("!%s takes %d argument(s), got %d", name, n, len(args))
		}
		return nil
	}
	cost := func(s string) (float32, error) {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, fmt.Errorf("!%s: bad cost %q", name, s)
		}
		if v < 0 {
			return 0, fmt.Errorf("!%s: negative cost %q", name, s)
		}
		return float32(v), nil
	}
	single := func(s string) (rune, error) {
		r, size := utf8.DecodeRuneInString(s)
		if size != len(s) || r == utf8.RuneError {
			return 0, fmt.Errorf("!%s: %q is not a single character", name, s)
		}
		return r, nil
	}

	m := b.model
	switch name {
	case "locale":
		if err := want(1); err != nil {
			return err
		}
		b.meta.Locale = args[0]
	case "title":
		if len(args) == 0 {
			return fmt.Errorf("!title needs a value")
		}
		b.meta.Title = strings.Join(args, " ")
	case "description":
		b.meta.Description = strings.Join(args, " ")
	case "max-edits":
		if err := want(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("!max-edits: bad value %q", args[0])
		}
		b.meta.MaxEdits = n
	case "max-weight":
		if err := want(1); err != nil {
			return err
		}
		v, err := cost(args[0])
		if err != nil {
			return err
		}
		b.meta.MaxWeight = v
	case "insert", "delete", "substitute", "transpose":
		if err := want(1); err != nil {
			return err
		}
		v, err := cost(args[0])
		if err != nil {
			return err
		}
		switch name {
		case "insert":
			m.Insert = v
		case "delete":
			m.Delete = v
		case "substitute":
			m.Substitute = v
		case "transpose":
			m.Transpose = v
		}
	case "no-transpose":
		m.Transpositions = false
	case "sub":
		if err := want(3); err != nil {
			return err
		}
		from, err := single(args[0])
		if err != nil {
			return err
		}
		to, err := single(args[1])
		if err != nil {
			return err
		}
		v, err := cost(args[2])
		if err != nil {
			return err
		}
		m.SubstituteCost[[2]rune{from, to}] = v
	case "ins", "del":
		if err := want(2); err != nil {
			return err
		}
		r, err := single(args[0])
		if err != nil {
			return err
		}
		v, err := cost(args[1])
		if err != nil {
			return err
		}
		if name == "ins" {
			m.InsertCost[r] = v
		} else {
			m.DeleteCost[r] = v
		}
	case "keyboard":
		if err := want(2); err != nil {
			return err
		}
		v, err := cost(args[1])
		if err != nil {
			return err
		}
		return m.ApplyKeyboard(args[0], v)
	case "compound":
		if err := want(1); err != nil {
			return err
		}
		v, err := cost(args[0])
		if err != nil {
			return err
		}
		b.AllowCompounds(v)
	default:
		return fmt.Errorf("unknown directive !%s", name)
	}
	return nil
}
