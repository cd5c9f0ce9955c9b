package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alucardeht/fstspell/internal/config"
	"github.com/alucardeht/fstspell/internal/daemon"
	"github.com/alucardeht/fstspell/internal/engine"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/resources"
	"github.com/alucardeht/fstspell/internal/rpc"
	"github.com/alucardeht/fstspell/internal/store"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

var log = logger.ForComponent("cli")

// backend runs protocol methods, either on the daemon or in process.
type backend interface {
	Call(ctx context.Context, method string, params, result any) error
	Close() error
}

func connect(ctx context.Context, cfg *config.Config, local bool) (backend, error) {
	if !local && daemon.IsSocketResponsive(cfg.SocketPath) {
		c, err := daemon.Dial(ctx, cfg.SocketPath, cfg.RequestTimeout)
		if err == nil {
			return c, nil
		}
		log.Debug("daemon unreachable, running in process", "error", err)
	}
	return openLocal(ctx, cfg)
}

// localBackend serves calls with an engine of its own, going through the
// same method registry as the daemon.
type localBackend struct {
	handler *rpc.Handler
	engine  *engine.Engine
}

func openLocal(ctx context.Context, cfg *config.Config) (*localBackend, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}

	reg := resources.NewRegistry(cfg.ResourceDirs...)
	if _, _, err := reg.Rescan(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to scan resources: %w", err)
	}

	eng := engine.New(reg, st, cfg.EngineOptions())
	return &localBackend{
		handler: rpc.NewHandler(rpc.NewServiceRegistry(eng, cfg.RequestTimeout)),
		engine:  eng,
	}, nil
}

func (b *localBackend) Call(ctx context.Context, method string, params, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	res, err := b.handler.Handle(ctx, method, raw)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (b *localBackend) Close() error {
	return b.engine.Close()
}

// pickLocale returns tag when given. Otherwise it walks the system's
// preferred locales and returns the first one that is installed.
func pickLocale(ctx context.Context, b backend, tag string) (string, error) {
	if tag != "" {
		return tag, nil
	}
	detected, err := locale.Detect()
	if err != nil {
		return "", fmt.Errorf("no locale given and detection failed: %w", err)
	}
	for _, t := range detected {
		var res protocol.HasLocaleResult
		if err := b.Call(ctx, protocol.MethodHasLocale, protocol.LocaleParams{Locale: t.String()}, &res); err != nil {
			return "", err
		}
		if res.Available {
			log.Debug("using system locale", "locale", t)
			return t.String(), nil
		}
	}
	return "", fmt.Errorf("no locale given and none of the system locales %v is installed; pass -l", detected)
}
