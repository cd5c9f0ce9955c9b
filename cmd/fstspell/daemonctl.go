package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alucardeht/fstspell/internal/daemon"
	"github.com/alucardeht/fstspell/internal/fst"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

func runBuild(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "build", "[-o out.fsta] [-locale tag] [-keyboard layout] source.wordlist")
	out := fs.String("o", "", "output path, the source with a .fsta extension by default")
	tag := fs.String("locale", "", "locale tag stored in the archive, overriding !locale")
	keyboard := fs.String("keyboard", "", "lower substitution costs between neighbouring keys: "+strings.Join(fst.KeyboardLayouts(), ", "))
	near := fs.Float64("near", 0.5, "substitution cost between neighbouring keys")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one source file")
	}
	src := fs.Arg(0)

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	b, err := fst.ParseWordlist(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}

	if *tag != "" {
		b.Metadata().Locale = *tag
	}
	if b.Metadata().Locale == "" {
		b.Metadata().Locale = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	if *keyboard != "" {
		if err := b.ErrorModel().ApplyKeyboard(*keyboard, float32(*near)); err != nil {
			return err
		}
	}

	dst := *out
	if dst == "" {
		dst = strings.TrimSuffix(src, filepath.Ext(src)) + ".fsta"
	}
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return err
	}
	// The daemon may have the old archive mapped; replace it, never rewrite it.
	if err := os.WriteFile(dst+".tmp", buf.Bytes(), 0644); err != nil {
		return err
	}
	if err := os.Rename(dst+".tmp", dst); err != nil {
		os.Remove(dst + ".tmp")
		return err
	}

	fmt.Fprintf(e.stdout, "wrote %d words for %s to %s (%d bytes)\n", b.Len(), b.Metadata().Locale, dst, buf.Len())
	return nil
}

func runStatus(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "status", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := newPrinter(e.stdout)
	if !daemon.IsSocketResponsive(e.cfg.SocketPath) {
		p.printf("daemon: %s (%s)\n", p.bad("not running"), e.cfg.SocketPath)
		return errFindings
	}
	c, err := daemon.Dial(ctx, e.cfg.SocketPath, e.cfg.RequestTimeout)
	if err != nil {
		return err
	}
	defer c.Close()

	var h protocol.HealthResult
	if err := c.Call(ctx, protocol.MethodHealth, nil, &h); err != nil {
		return err
	}
	inst, _ := daemon.NewLifecycleManager(e.cfg.BaseDir, e.cfg.SocketPath).InstanceFile().Read()

	p.printf("daemon:   %s, pid %d, version %s\n", p.good(h.Status), inst.PID, h.Version)
	p.printf("socket:   %s\n", e.cfg.SocketPath)
	if inst.HTTPAddr != "" {
		p.printf("http:     %s\n", inst.HTTPAddr)
	}
	p.printf("uptime:   %s\n", time.Duration(h.Uptime)*time.Second)
	p.printf("locales:  %d available\n", h.AvailableLocales)
	p.printf("spellers: %s\n", listOrNone(p, h.LoadedSpellers))
	p.printf("grammars: %s\n", listOrNone(p, h.LoadedGrammars))
	return nil
}

func listOrNone(p *printer, tags []string) string {
	if len(tags) == 0 {
		return p.faint("none loaded")
	}
	return strings.Join(tags, ", ")
}

func runRefresh(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "refresh", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !daemon.IsSocketResponsive(e.cfg.SocketPath) {
		fmt.Fprintln(e.stderr, "daemon not running; resources are read fresh on every call")
		return nil
	}
	c, err := daemon.Dial(ctx, e.cfg.SocketPath, e.cfg.RequestTimeout)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Call(ctx, protocol.MethodRefresh, nil, nil)
}

func runStart(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "start", "[-http addr]")
	httpAddr := fs.String("http", "", "also serve the HTTP API on this address")
	wait := fs.Duration("wait", 10*time.Second, "how long to wait for the daemon to listen")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if daemon.IsSocketResponsive(e.cfg.SocketPath) {
		fmt.Fprintf(e.stdout, "daemon already running on %s\n", e.cfg.SocketPath)
		return nil
	}

	path, err := daemonPath()
	if err != nil {
		return err
	}
	var daemonArgs []string
	if *httpAddr != "" {
		daemonArgs = append(daemonArgs, "-http", *httpAddr)
	}

	cmd := exec.Command(path, daemonArgs...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if err := waitForDaemonReady(ctx, e.cfg.SocketPath, *wait, exited); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "daemon started, pid %d, socket %s\n", pid, e.cfg.SocketPath)
	return nil
}

// daemonPath finds fstspell-daemon next to this executable, then on PATH.
func daemonPath() (string, error) {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), daemonBinary)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	p, err := exec.LookPath(daemonBinary)
	if err != nil {
		return "", fmt.Errorf("cannot find %s: %w", daemonBinary, err)
	}
	return p, nil
}

func waitForDaemonReady(ctx context.Context, socketPath string, timeout time.Duration, exited <-chan error) error {
	deadline := time.After(timeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		if daemon.IsSocketResponsive(socketPath) {
			return nil
		}
		select {
		case err := <-exited:
			return fmt.Errorf("daemon exited during startup: %v", err)
		case <-deadline:
			return fmt.Errorf("daemon socket not ready after %v", timeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func runStop(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "stop", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := daemon.NewLifecycleManager(e.cfg.BaseDir, e.cfg.SocketPath).InstanceFile()
	if !f.Alive() {
		fmt.Fprintln(e.stdout, "daemon not running")
		return nil
	}
	inst, err := f.Read()
	if err != nil {
		return err
	}
	pid := inst.PID
	if err := killDaemon(pid); err != nil {
		return fmt.Errorf("failed to stop daemon %d: %w", pid, err)
	}
	fmt.Fprintf(e.stdout, "daemon %d stopped\n", pid)
	return nil
}
