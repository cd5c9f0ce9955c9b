package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/muesli/termenv"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// printer styles output when it goes to a terminal and leaves it plain
// otherwise.
type printer struct {
	w   io.Writer
	out *termenv.Output
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, out: termenv.NewOutput(w)}
}

func (p *printer) plain() bool {
	return p.out.Profile == termenv.Ascii
}

func (p *printer) bad(s string) string {
	return p.out.String(s).Foreground(p.out.Color("1")).Underline().String()
}

func (p *printer) good(s string) string {
	return p.out.String(s).Foreground(p.out.Color("2")).String()
}

func (p *printer) faint(s string) string {
	return p.out.String(s).Faint().String()
}

func (p *printer) bold(s string) string {
	return p.out.String(s).Bold().String()
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// diff writes after as a word diff against before. Without colors the
// changes are marked [-removed-]{+added+}.
func (p *printer) diff(before, after string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			if p.plain() {
				b.WriteString("[-" + d.Text + "-]")
			} else {
				b.WriteString(p.out.String(d.Text).Foreground(p.out.Color("1")).CrossOut().String())
			}
		case diffmatchpatch.DiffInsert:
			if p.plain() {
				b.WriteString("{+" + d.Text + "+}")
			} else {
				b.WriteString(p.good(d.Text))
			}
		default:
			b.WriteString(d.Text)
		}
	}
	io.WriteString(p.w, b.String())
	if !strings.HasSuffix(after, "\n") {
		io.WriteString(p.w, "\n")
	}
}

// position turns a byte offset into a 1-based line and a 1-based column
// counted in code points.
func position(text string, offset int) (line, col int) {
	if offset > len(text) {
		offset = len(text)
	}
	head := text[:offset]
	line = strings.Count(head, "\n") + 1
	if i := strings.LastIndexByte(head, '\n'); i >= 0 {
		head = head[i+1:]
	}
	return line, utf8.RuneCountInString(head) + 1
}

// lineAt returns the line of text holding offset and where that line starts.
func lineAt(text string, offset int) (string, int) {
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		return text[start:], start
	}
	return text[start : offset+end], start
}
