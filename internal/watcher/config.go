package watcher

import "time"

type Config struct {
	Enabled        bool          `yaml:"enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
	WatchHidden    bool          `yaml:"watch_hidden"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DebounceWindow: 500 * time.Millisecond,
		MaxBatchSize:   64,
		IgnorePatterns: []string{
			"**/*.tmp",
			"**/*.part",
			"**/*~",
		},
		WatchHidden: false,
	}
}
