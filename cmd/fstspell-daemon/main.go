package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/alucardeht/fstspell/internal/config"
	"github.com/alucardeht/fstspell/internal/daemon"
	"github.com/alucardeht/fstspell/internal/engine"
	"github.com/alucardeht/fstspell/internal/httpapi"
	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/resources"
	"github.com/alucardeht/fstspell/internal/rpc"
	"github.com/alucardeht/fstspell/internal/store"
	"github.com/alucardeht/fstspell/internal/watcher"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

var log = logger.ForComponent("main")

func main() {
	stdio := flag.Bool("stdio", false, "serve one client on stdin/stdout instead of the socket")
	httpAddr := flag.String("http", "", "also serve the HTTP API on this address")
	version := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *version {
		fmt.Println(protocol.ServerName, protocol.Version)
		return
	}

	if err := run(*stdio, *httpAddr); err != nil {
		fmt.Fprintf(os.Stderr, "fstspell-daemon: %v\n", err)
		os.Exit(1)
	}
}

func run(stdio bool, httpAddr string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	logCfg, logFile, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.Init(logCfg)

	lifecycle := daemon.NewLifecycleManager(cfg.BaseDir, cfg.SocketPath)
	if !stdio {
		if err := lifecycle.AcquireInstanceLock(); err != nil {
			return err
		}
		if err := lifecycle.RegisterRunningDaemon(cfg.HTTPAddr, protocol.Version); err != nil {
			lifecycle.Cleanup()
			return fmt.Errorf("failed to write instance file: %w", err)
		}
		defer lifecycle.Cleanup()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}

	reg := resources.NewRegistry(cfg.ResourceDirs...)
	if _, _, err := reg.Rescan(); err != nil {
		st.Close()
		return fmt.Errorf("failed to scan resources: %w", err)
	}
	log.Info("resources found", "spellers", len(reg.Tags()), "grammars", len(reg.GrammarTags()), "dirs", cfg.ResourceDirs)

	eng := engine.New(reg, st, cfg.EngineOptions())
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("engine teardown reported errors", "error", err)
		}
	}()

	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Watcher, eng)
		if err != nil {
			log.Warn("resource watcher unavailable", "error", err)
		} else {
			for _, dir := range cfg.ResourceDirs {
				if err := w.AddRoot(dir); err != nil {
					log.Debug("not watching resource dir", "dir", dir, "error", err)
				}
			}
			w.Start(ctx)
			defer w.Stop()
		}
	}

	methods := rpc.NewServiceRegistry(eng, cfg.RequestTimeout)
	d := daemon.New(cfg.SocketPath, rpc.NewHandler(methods))
	defer d.Shutdown()

	if cfg.HTTPAddr != "" {
		if err := d.ServeHTTP(cfg.HTTPAddr, httpapi.NewRouter(methods)); err != nil {
			return err
		}
	}

	if stdio {
		go func() {
			<-shutdownSignals()
			d.Shutdown()
		}()
		d.ServeStdio(os.Stdin, os.Stdout)
		return nil
	}

	if err := d.Start(); err != nil {
		return err
	}

	shutdown, reload := shutdownSignals(), reloadSignals()
	for {
		select {
		case <-shutdown:
			return nil
		case <-d.Done():
			return nil
		case <-reload:
			log.Info("reloading resources")
			if err := eng.Refresh(); err != nil {
				log.Error("reload failed", "error", err)
			}
		}
	}
}
