package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alucardeht/fstspell/internal/config"
	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

const usage = `usage: fstspell <command> [flags] [args]

commands:
  check      report misspelled words in files or stdin
  suggest    print corrections for words
  proofread  run the grammar checker on files or stdin
  learn      add words to the user dictionary
  unlearn    remove words from the user dictionary
  learned    list the user dictionary
  ignore     stop reporting a grammar rule
  locales    list installed locales
  build      compile a .wordlist into a .fsta archive
  status     show daemon health
  refresh    rescan the resource directories
  start      start the daemon in the background
  stop       stop the running daemon
  version    print the version

Commands that query the engine use the daemon when it is running and
load the resources in process otherwise.
`

// errFindings makes the process exit with status 1 without printing
// anything more.
var errFindings = errors.New("findings reported")

type command func(ctx context.Context, env *env, args []string) error

var commands = map[string]command{
	"check":     runCheck,
	"suggest":   runSuggest,
	"proofread": runProofread,
	"learn":     runLearn,
	"unlearn":   runUnlearn,
	"learned":   runLearned,
	"ignore":    runIgnore,
	"locales":   runLocales,
	"build":     runBuild,
	"status":    runStatus,
	"refresh":   runRefresh,
	"start":     runStart,
	"stop":      runStop,
}

// env is what every command gets: configuration and where to write.
type env struct {
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	name := args[0]
	switch name {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, protocol.ServerName, protocol.Version)
		return 0
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "fstspell: unknown command %q\n\n%s", name, usage)
		return 2
	}

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "fstspell: %v\n", err)
		return 1
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = slog.LevelWarn
	if v, ok := os.LookupEnv(config.EnvPrefix + "LOG_LEVEL"); ok {
		if lvl, err := logger.ParseLevel(v); err == nil {
			logCfg.Level = lvl
		}
	}
	logCfg.Output = stderr
	logger.Init(logCfg)

	e := &env{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}
	switch err := cmd(ctx, e, args[1:]); {
	case err == nil:
		return 0
	case errors.Is(err, errFindings):
		return 1
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		fmt.Fprintf(stderr, "fstspell %s: %v\n", name, err)
		return 1
	}
}

// queryFlags are shared by the commands that talk to the engine.
type queryFlags struct {
	locale string
	local  bool
}

func newFlagSet(e *env, name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "usage: fstspell %s %s\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func (q *queryFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&q.locale, "l", "", "locale tag, detected from the system when empty")
	fs.BoolVar(&q.local, "local", false, "load resources in process even if the daemon runs")
}
