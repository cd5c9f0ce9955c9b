package store

import (
	"context"
	"fmt"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/locale"
	"github.com/alucardeht/fstspell/internal/logger"
)

var log = logger.ForComponent("store")

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Store persists per-locale user state: learned words and ignored grammar
// rules.
type Store interface {
	Learn(ctx context.Context, tag locale.Tag, word string) error
	Unlearn(ctx context.Context, tag locale.Tag, word string) error
	IsLearned(ctx context.Context, tag locale.Tag, word string) (bool, error)
	Learned(ctx context.Context, tag locale.Tag) ([]string, error)

	IgnoreRule(ctx context.Context, tag locale.Tag, ruleID string) error
	// ResetIgnoredRules clears the rules ignored for tag, or for every
	// locale when tag is empty.
	ResetIgnoredRules(ctx context.Context, tag locale.Tag) error
	IgnoredRules(ctx context.Context, tag locale.Tag) ([]string, error)

	Close() error
}

type Config struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
}

// Open creates the store the config selects.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return OpenSQLite(cfg.Path)
	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisURL, cfg.Prefix)
	default:
		return nil, errors.E(errors.InvalidArgument, "open_store", "", fmt.Sprintf("unknown store backend %q", cfg.Backend))
	}
}

func validate(op string, tag locale.Tag, value string) error {
	if tag == "" {
		return errors.E(errors.InvalidArgument, op, "", "empty locale")
	}
	if value == "" {
		return errors.E(errors.InvalidArgument, op, "", "empty value")
	}
	return nil
}
