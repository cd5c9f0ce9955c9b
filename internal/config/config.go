package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alucardeht/fstspell/internal/engine"
	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/resources"
	"github.com/alucardeht/fstspell/internal/speller"
	"github.com/alucardeht/fstspell/internal/store"
	"github.com/alucardeht/fstspell/internal/watcher"
)

const (
	DirName   = ".fstspell"
	FileName  = "config.yaml"
	EnvPrefix = "FSTSPELL_"
)

type EngineConfig struct {
	MaxEdits         int `yaml:"max_edits"`
	MaxSteps         int `yaml:"max_steps"`
	SuggestionLimit  int `yaml:"suggestion_limit"`
	LRUSize          int `yaml:"lru_size"`
	BatchConcurrency int `yaml:"batch_concurrency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type Config struct {
	BaseDir        string         `yaml:"-"`
	SocketPath     string         `yaml:"socket_path"`
	HTTPAddr       string         `yaml:"http_addr"`
	ResourceDirs   []string       `yaml:"resource_dirs"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	Log            LogConfig      `yaml:"log"`
	Engine         EngineConfig   `yaml:"engine"`
	Store          store.Config   `yaml:"store"`
	Watcher        watcher.Config `yaml:"watcher"`
}

// Default builds the configuration rooted at baseDir.
func Default(baseDir string) *Config {
	return &Config{
		BaseDir:        baseDir,
		SocketPath:     filepath.Join(baseDir, "daemon.sock"),
		ResourceDirs:   append([]string{filepath.Join(baseDir, "resources")}, resources.DefaultDirs()...),
		RequestTimeout: 30 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Engine: EngineConfig{
			MaxEdits:        speller.MaxEditCeiling,
			MaxSteps:        speller.DefaultMaxSteps,
			SuggestionLimit: speller.DefaultLimit,
			LRUSize:         10_000,
		},
		Store: store.Config{
			Backend: store.BackendSQLite,
			Path:    filepath.Join(baseDir, "user.db"),
		},
		Watcher: watcher.DefaultConfig(),
	}
}

// Load returns the defaults under ~/.fstspell (or $FSTSPELL_HOME),
// overlaid by config.yaml in that directory and then by FSTSPELL_*
// environment variables.
func Load() (*Config, error) {
	base := os.Getenv(EnvPrefix + "HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		base = filepath.Join(home, DirName)
	}
	return LoadFrom(base, os.LookupEnv)
}

// LoadFrom is Load with an explicit base directory and environment.
func LoadFrom(baseDir string, env func(string) (string, bool)) (*Config, error) {
	cfg := Default(baseDir)

	path := filepath.Join(baseDir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := env(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := env(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("SOCKET", &c.SocketPath)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	str("STORE", &c.Store.Backend)
	str("DB_PATH", &c.Store.Path)
	str("REDIS_URL", &c.Store.RedisURL)
	if v, ok := env(EnvPrefix + "RESOURCE_DIRS"); ok {
		c.ResourceDirs = filepath.SplitList(v)
	}

	for name, dst := range map[string]*int{
		"MAX_EDITS":        &c.Engine.MaxEdits,
		"MAX_STEPS":        &c.Engine.MaxSteps,
		"SUGGESTION_LIMIT": &c.Engine.SuggestionLimit,
		"LRU_SIZE":         &c.Engine.LRUSize,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.MaxEdits < 1 || c.Engine.MaxEdits > speller.MaxEditCeiling {
		return fmt.Errorf("engine.max_edits must be between 1 and %d, got %d", speller.MaxEditCeiling, c.Engine.MaxEdits)
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be positive")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if len(c.ResourceDirs) == 0 {
		return fmt.Errorf("no resource directories configured")
	}
	return nil
}

// LoggerConfig translates the log settings. The returned file, when not
// nil, must be closed by the caller.
func (c *Config) LoggerConfig() (logger.Config, *os.File, error) {
	out := logger.DefaultConfig()
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return out, nil, err
	}
	out.Level = level
	out.Format = strings.ToLower(c.Log.Format)
	out.AddSource = level == slog.LevelDebug
	if c.Log.File == "" {
		return out, nil, nil
	}
	f, err := logger.OpenFile(c.Log.File)
	if err != nil {
		return out, nil, err
	}
	out.Output = f
	return out, f, nil
}

func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		MaxEdits:         c.Engine.MaxEdits,
		MaxSteps:         c.Engine.MaxSteps,
		SuggestionLimit:  c.Engine.SuggestionLimit,
		LRUSize:          c.Engine.LRUSize,
		BatchConcurrency: c.Engine.BatchConcurrency,
	}
}

func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(c.BaseDir, 0700)
}

