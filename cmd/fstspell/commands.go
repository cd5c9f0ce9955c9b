package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alucardeht/fstspell/internal/engine"
	"github.com/alucardeht/fstspell/internal/grammar"
	"github.com/alucardeht/fstspell/internal/textio"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

type input struct {
	name string
	path string
	text string
	doc  textio.Document
}

// readInputs reads the named files, or stdin when there are none or the
// name is "-", and decodes them from enc, detected when empty.
func readInputs(e *env, names []string, enc string) ([]input, error) {
	if len(names) == 0 {
		names = []string{"-"}
	}
	out := make([]input, 0, len(names))
	for _, name := range names {
		var (
			data []byte
			err  error
			in   = input{name: name, path: name}
		)
		if name == "-" {
			in = input{name: "<stdin>"}
			data, err = io.ReadAll(e.stdin)
		} else {
			data, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, err
		}
		in.doc, err = textio.Decode(data, enc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.name, err)
		}
		in.text = in.doc.Text
		log.Debug("read input", "name", in.name, "encoding", in.doc.Encoding, "bom", in.doc.BOM)
		out = append(out, in)
	}
	return out, nil
}

func encodingFlag(fs *flag.FlagSet) *string {
	return fs.String("encoding", "", "input encoding, detected when empty: "+strings.Join(textio.Names(), ", "))
}

// session connects to the engine and settles the locale.
func session(ctx context.Context, e *env, q queryFlags) (backend, string, error) {
	b, err := connect(ctx, e.cfg, q.local)
	if err != nil {
		return nil, "", err
	}
	tag, err := pickLocale(ctx, b, q.locale)
	if err != nil {
		b.Close()
		return nil, "", err
	}
	return b, tag, nil
}

func runCheck(ctx context.Context, e *env, args []string) error {
	var q queryFlags
	fs := newFlagSet(e, "check", "[-l locale] [-n count] [file ...]")
	q.register(fs)
	limit := fs.Int("n", 3, "suggestions shown per word, 0 for none")
	enc := encodingFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	inputs, err := readInputs(e, fs.Args(), *enc)
	if err != nil {
		return err
	}

	b, tag, err := session(ctx, e, q)
	if err != nil {
		return err
	}
	defer b.Close()

	p := newPrinter(e.stdout)
	found := false
	for _, in := range inputs {
		var toks []grammar.Token
		for _, tok := range grammar.Tokenize(in.text) {
			if !strings.ContainsAny(tok.Text, "0123456789") {
				toks = append(toks, tok)
			}
		}

		for start := 0; start < len(toks); start += engine.RequestLimit {
			end := min(start+engine.RequestLimit, len(toks))
			words := make([]string, 0, end-start)
			for _, tok := range toks[start:end] {
				words = append(words, tok.Text)
			}

			var res protocol.CheckResult
			if err := b.Call(ctx, protocol.MethodCheck, protocol.CheckParams{Locale: tag, Words: words}, &res); err != nil {
				return err
			}
			for _, m := range res.Misspellings {
				found = true
				tok := toks[start+m.Index]
				line, col := position(in.text, tok.Start)
				p.printf("%s:%d:%d: %s", in.name, line, col, p.bad(tok.Text))
				if suggs := m.Suggestions; len(suggs) > 0 && *limit > 0 {
					p.printf(" %s %s", p.faint("->"), strings.Join(suggs[:min(*limit, len(suggs))], ", "))
				}
				p.printf("\n")
			}
		}
	}

	if found {
		return errFindings
	}
	return nil
}

func runSuggest(ctx context.Context, e *env, args []string) error {
	var q queryFlags
	fs := newFlagSet(e, "suggest", "[-l locale] [-n count] word ...")
	q.register(fs)
	limit := fs.Int("n", 0, "maximum number of suggestions, 0 for the engine default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no words given")
	}

	b, tag, err := session(ctx, e, q)
	if err != nil {
		return err
	}
	defer b.Close()

	p := newPrinter(e.stdout)
	for _, word := range fs.Args() {
		var ok protocol.IsCorrectResult
		if err := b.Call(ctx, protocol.MethodIsCorrect, protocol.WordParams{Locale: tag, Word: word}, &ok); err != nil {
			return err
		}
		if ok.Correct {
			p.printf("%s: %s\n", word, p.good("correct"))
			continue
		}

		var res protocol.SuggestResult
		if err := b.Call(ctx, protocol.MethodSuggest, protocol.SuggestParams{Locale: tag, Word: word, Limit: *limit}, &res); err != nil {
			return err
		}
		if len(res.Suggestions) == 0 {
			p.printf("%s: %s\n", p.bad(word), p.faint("no suggestions"))
			continue
		}
		p.printf("%s: %s\n", p.bad(word), strings.Join(res.Suggestions, ", "))
	}
	return nil
}

func runProofread(ctx context.Context, e *env, args []string) error {
	var q queryFlags
	fs := newFlagSet(e, "proofread", "[-l locale] [-fix | -diff | -w] [file ...]")
	q.register(fs)
	fix := fs.Bool("fix", false, "print the text with every first suggestion applied")
	showDiff := fs.Bool("diff", false, "print the applied suggestions as a word diff")
	write := fs.Bool("w", false, "apply suggestions to the files in place, keeping their encoding")
	enc := encodingFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	inputs, err := readInputs(e, fs.Args(), *enc)
	if err != nil {
		return err
	}

	b, tag, err := session(ctx, e, q)
	if err != nil {
		return err
	}
	defer b.Close()

	p := newPrinter(e.stdout)
	found := false
	for _, in := range inputs {
		var res protocol.ProofreadResult
		if err := b.Call(ctx, protocol.MethodProofread, protocol.ProofreadParams{Locale: tag, Text: in.text}, &res); err != nil {
			return fmt.Errorf("%s: %w", in.name, err)
		}
		found = found || len(res.Errors) > 0

		switch {
		case *write:
			if in.path == "" {
				return fmt.Errorf("-w needs file arguments")
			}
			fixed := grammar.Apply(in.text, fromWire(res.Errors))
			if fixed != in.text {
				data, err := in.doc.Encode(fixed)
				if err != nil {
					return fmt.Errorf("%s: %w", in.name, err)
				}
				if err := writeFileAtomic(in.path, data); err != nil {
					return err
				}
				p.printf("%s: applied %d corrections\n", in.name, len(res.Errors))
			}
		case *fix:
			io.WriteString(e.stdout, grammar.Apply(in.text, fromWire(res.Errors)))
		case *showDiff:
			p.diff(in.text, grammar.Apply(in.text, fromWire(res.Errors)))
		default:
			reportGrammar(p, in, res.Errors)
		}
	}

	if found && !*fix && !*write {
		return errFindings
	}
	return nil
}

func reportGrammar(p *printer, in input, errs []protocol.GrammarError) {
	for _, ge := range errs {
		line, col := position(in.text, ge.Start)
		p.printf("%s:%d:%d: %s %s\n", in.name, line, col, p.faint("["+ge.RuleID+"]"), ge.Message)

		text, start := lineAt(in.text, ge.Start)
		end := min(ge.End-start, len(text))
		p.printf("    %s%s%s\n", text[:ge.Start-start], p.bad(text[ge.Start-start:end]), text[end:])
		if len(ge.Suggestions) > 0 {
			p.printf("    %s %s\n", p.faint("->"), strings.Join(ge.Suggestions, ", "))
		}
	}
}

func fromWire(errs []protocol.GrammarError) []grammar.Error {
	out := make([]grammar.Error, len(errs))
	for i, ge := range errs {
		out[i] = grammar.Error{
			Start:       ge.Start,
			End:         ge.End,
			CharStart:   ge.CharStart,
			CharEnd:     ge.CharEnd,
			Form:        ge.Form,
			RuleID:      ge.RuleID,
			Message:     ge.Message,
			Suggestions: ge.Suggestions,
		}
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func runLearn(ctx context.Context, e *env, args []string) error {
	return editDictionary(ctx, e, "learn", protocol.MethodLearn, args)
}

func runUnlearn(ctx context.Context, e *env, args []string) error {
	return editDictionary(ctx, e, "unlearn", protocol.MethodUnlearn, args)
}

func editDictionary(ctx context.Context, e *env, name, method string, args []string) error {
	var q queryFlags
	fs := newFlagSet(e, name, "[-l locale] word ...")
	q.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no words given")
	}

	b, tag, err := session(ctx, e, q)
	if err != nil {
		return err
	}
	defer b.Close()

	for _, word := range fs.Args() {
		if err := b.Call(ctx, method, protocol.WordParams{Locale: tag, Word: word}, nil); err != nil {
			return fmt.Errorf("%s: %w", word, err)
		}
	}
	return nil
}

func runLearned(ctx context.Context, e *env, args []string) error {
	var q queryFlags
	fs := newFlagSet(e, "learned", "[-l locale]")
	q.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, tag, err := session(ctx, e, q)
	if err != nil {
		return err
	}
	defer b.Close()

	var res protocol.LearnedResult
	if err := b.Call(ctx, protocol.MethodLearned, protocol.LocaleParams{Locale: tag}, &res); err != nil {
		return err
	}
	for _, w := range res.Words {
		fmt.Fprintln(e.stdout, w)
	}
	return nil
}

func runIgnore(ctx context.Context, e *env, args []string) error {
	var q queryFlags
	fs := newFlagSet(e, "ignore", "[-l locale] rule-id ... | -reset")
	q.register(fs)
	reset := fs.Bool("reset", false, "report ignored rules again, for -l or for every locale")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *reset {
		b, err := connect(ctx, e.cfg, q.local)
		if err != nil {
			return err
		}
		defer b.Close()
		return b.Call(ctx, protocol.MethodResetIgnoreRules, protocol.LocaleParams{Locale: q.locale}, nil)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no rules given")
	}
	b, tag, err := session(ctx, e, q)
	if err != nil {
		return err
	}
	defer b.Close()

	for _, id := range fs.Args() {
		if err := b.Call(ctx, protocol.MethodIgnoreRule, protocol.RuleParams{Locale: tag, RuleID: id}, nil); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

func runLocales(ctx context.Context, e *env, args []string) error {
	var q queryFlags
	fs := newFlagSet(e, "locales", "[-hosts]")
	q.register(fs)
	hosts := fs.Bool("hosts", false, "list host locales (language and country) instead of tags")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := connect(ctx, e.cfg, q.local)
	if err != nil {
		return err
	}
	defer b.Close()

	var res protocol.LocalesResult
	if err := b.Call(ctx, protocol.MethodLocales, nil, &res); err != nil {
		return err
	}
	if !*hosts {
		for _, tag := range res.Tags {
			fmt.Fprintln(e.stdout, tag)
		}
		return nil
	}
	for _, h := range res.HostLocales {
		parts := []string{h.Language}
		for _, s := range []string{h.Country, h.Variant} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		fmt.Fprintln(e.stdout, strings.Join(parts, "_"))
	}
	return nil
}
