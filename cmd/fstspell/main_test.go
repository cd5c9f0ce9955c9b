package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alucardeht/fstspell/internal/grammar"
)

const wordlist = `# test lexicon
!locale en
!max-edits 2
the	1
cat	2
sat	2
on	1
mat	3
`

// setup builds an en speller with the CLI itself and points the
// configuration at a scratch home.
func setup(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	res := filepath.Join(home, "resources")
	if err := os.MkdirAll(res, 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FSTSPELL_HOME", home)
	t.Setenv("FSTSPELL_RESOURCE_DIRS", res)
	t.Setenv("FSTSPELL_SOCKET", filepath.Join(home, "none.sock"))
	t.Setenv("NO_COLOR", "1")

	src := filepath.Join(home, "en.wordlist")
	if err := os.WriteFile(src, []byte(wordlist), 0644); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCLI(t, "", "build", "-o", filepath.Join(res, "en.fsta"), "-keyboard", "qwerty", src)
	if code != 0 {
		t.Fatalf("build failed with %d: %s", code, errOut)
	}
	if !strings.Contains(out, "wrote 5 words for en") {
		t.Fatalf("unexpected build output %q", out)
	}

	m := grammar.Manifest{
		Locale: "en",
		Rules: []grammar.RuleSpec{
			{ID: "repeated", Kind: grammar.KindRepeatedWord},
			{ID: "spelling", Kind: grammar.KindSpelling},
		},
	}
	if err := grammar.WriteFile(filepath.Join(res, "en.grb"), m, nil); err != nil {
		t.Fatalf("failed to write bundle: %v", err)
	}
	return home
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCheck(t *testing.T) {
	setup(t)

	code, out, errOut := runCLI(t, "the cat\nsat on teh mat\n", "check", "-l", "en_US")
	if code != 1 {
		t.Fatalf("expected exit 1 for a misspelling, got %d (%s)", code, errOut)
	}
	if !strings.Contains(out, "<stdin>:2:8: teh -> the") {
		t.Errorf("expected position and suggestion, got %q", out)
	}

	code, out, _ = runCLI(t, "the cat sat on the mat", "check", "-l", "en")
	if code != 0 || out != "" {
		t.Errorf("expected clean text to pass, got %d %q", code, out)
	}
}

func TestSuggest(t *testing.T) {
	setup(t)

	code, out, errOut := runCLI(t, "", "suggest", "-l", "en", "cat", "mta")
	if code != 0 {
		t.Fatalf("suggest failed with %d: %s", code, errOut)
	}
	if !strings.Contains(out, "cat: correct") {
		t.Errorf("expected cat to be correct, got %q", out)
	}
	if !strings.Contains(out, "mta: mat") {
		t.Errorf("expected mat for mta, got %q", out)
	}
}

func TestUnknownLocale(t *testing.T) {
	setup(t)

	code, _, errOut := runCLI(t, "", "suggest", "-l", "fi", "sauna")
	if code != 1 || !strings.Contains(errOut, "fi") {
		t.Errorf("expected a failure naming the locale, got %d %q", code, errOut)
	}
}

func TestProofread(t *testing.T) {
	setup(t)
	text := "Teh cat sat on on the mat"

	code, out, _ := runCLI(t, text, "proofread", "-l", "en")
	if code != 1 {
		t.Fatalf("expected exit 1 with findings, got %d", code)
	}
	if !strings.Contains(out, "<stdin>:1:1: [spelling]") || !strings.Contains(out, "[repeated]") {
		t.Errorf("expected both rules reported, got %q", out)
	}

	code, out, _ = runCLI(t, text, "proofread", "-l", "en", "-fix")
	if code != 0 || out != "The cat sat on the mat" {
		t.Errorf("expected fixed text, got %d %q", code, out)
	}

	_, out, _ = runCLI(t, text, "proofread", "-l", "en", "-diff")
	if !strings.Contains(out, "[-") || !strings.Contains(out, "{+") || !strings.HasSuffix(out, "mat\n") {
		t.Errorf("expected a plain diff, got %q", out)
	}
}

func TestProofreadInPlace(t *testing.T) {
	home := setup(t)
	path := filepath.Join(home, "doc.txt")
	os.WriteFile(path, []byte("the cat sat on on the mat\n"), 0600)

	code, _, errOut := runCLI(t, "", "proofread", "-l", "en", "-w", path)
	if code != 0 {
		t.Fatalf("proofread -w failed with %d: %s", code, errOut)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "the cat sat on the mat\n" {
		t.Errorf("expected the file fixed, got %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode kept, got %v", info.Mode().Perm())
	}

	legacy := filepath.Join(home, "legacy.txt")
	os.WriteFile(legacy, []byte("the cat sat on on the mat\xa0\n"), 0644)
	if code, _, errOut := runCLI(t, "", "proofread", "-l", "en", "-w", legacy); code != 0 {
		t.Fatalf("proofread -w on windows-1252 failed with %d: %s", code, errOut)
	}
	data, _ = os.ReadFile(legacy)
	if string(data) != "the cat sat on the mat\xa0\n" {
		t.Errorf("expected the file fixed in its own encoding, got %q", data)
	}
}

func TestLearnAndIgnore(t *testing.T) {
	setup(t)

	if code, _, errOut := runCLI(t, "", "learn", "-l", "en", "zork"); code != 0 {
		t.Fatalf("learn failed with %d: %s", code, errOut)
	}
	if code, _, _ := runCLI(t, "zork", "check", "-l", "en"); code != 0 {
		t.Errorf("expected learned word to pass, got %d", code)
	}
	_, out, _ := runCLI(t, "", "learned", "-l", "en-GB")
	if strings.TrimSpace(out) != "zork" {
		t.Errorf("expected zork listed under the base speller, got %q", out)
	}
	if code, _, _ := runCLI(t, "", "unlearn", "-l", "en", "zork"); code != 0 {
		t.Errorf("unlearn failed with %d", code)
	}

	if code, _, errOut := runCLI(t, "", "ignore", "-l", "en", "repeated"); code != 0 {
		t.Fatalf("ignore failed with %d: %s", code, errOut)
	}
	_, out, _ = runCLI(t, "the cat sat on on the mat", "proofread", "-l", "en")
	if strings.Contains(out, "[repeated]") {
		t.Errorf("expected repeated rule ignored, got %q", out)
	}
	runCLI(t, "", "ignore", "-reset")
	_, out, _ = runCLI(t, "the cat sat on on the mat", "proofread", "-l", "en")
	if !strings.Contains(out, "[repeated]") {
		t.Errorf("expected repeated rule back after reset, got %q", out)
	}
}

func TestLocales(t *testing.T) {
	setup(t)

	code, out, _ := runCLI(t, "", "locales")
	if code != 0 || strings.TrimSpace(out) != "en" {
		t.Errorf("expected en, got %d %q", code, out)
	}
	_, out, _ = runCLI(t, "", "locales", "-hosts")
	if !strings.HasPrefix(out, "en\n") || !strings.Contains(out, "en_US") {
		t.Errorf("expected host locales for en, got %q", out)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	setup(t)

	code, out, _ := runCLI(t, "", "status")
	if code != 1 || !strings.Contains(out, "not running") {
		t.Errorf("expected not running, got %d %q", code, out)
	}
}

func TestUsage(t *testing.T) {
	if code, _, _ := runCLI(t, ""); code != 2 {
		t.Errorf("expected exit 2 without a command, got %d", code)
	}
	if code, _, errOut := runCLI(t, "", "frobnicate"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Errorf("expected unknown command, got %d %q", code, errOut)
	}
	if code, out, _ := runCLI(t, "", "version"); code != 0 || !strings.HasPrefix(out, "fstspell ") {
		t.Errorf("expected version, got %d %q", code, out)
	}
}

func TestPosition(t *testing.T) {
	text := "ábc\ndéf ghi"
	line, col := position(text, strings.Index(text, "ghi"))
	if line != 2 || col != 5 {
		t.Errorf("expected 2:5, got %d:%d", line, col)
	}
	line, col = position(text, 0)
	if line != 1 || col != 1 {
		t.Errorf("expected 1:1, got %d:%d", line, col)
	}

	l, start := lineAt(text, strings.Index(text, "ghi"))
	if l != "déf ghi" || start != len("ábc\n") {
		t.Errorf("unexpected line %q at %d", l, start)
	}
}
