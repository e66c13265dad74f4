// Package config loads the runtime configuration from YAML with environment
// variable expansion.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hoplite-search/hoplite"
)

// Config holds all runtime configuration.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Research ResearchConfig `yaml:"research"`
	EventBus EventBusConfig `yaml:"event_bus"`
	Log      LogConfig      `yaml:"log"`
}

// CacheConfig controls the semantic result cache.
type CacheConfig struct {
	MaxEntries   int                      `yaml:"max_entries"`
	SnapshotPath string                   `yaml:"snapshot_path"`
	TTLOverrides map[string]time.Duration `yaml:"ttl_overrides"`
}

// FetchConfig controls the search engine client.
type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	Burst          int           `yaml:"burst"`
	Endpoint       string        `yaml:"endpoint"`
	UserAgent      string        `yaml:"user_agent"`
}

// ResearchConfig controls multi-hop research runs.
type ResearchConfig struct {
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	DetailCount      int           `yaml:"detail_count"`
	SummaryLength    int           `yaml:"summary_length"`
}

// EventBusConfig controls the in-process event bus.
type EventBusConfig struct {
	Enabled     bool `yaml:"enabled"`
	BufferSize  int  `yaml:"buffer_size"`
	WorkerCount int  `yaml:"worker_count"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxEntries: 256,
		},
		Fetch: FetchConfig{
			Timeout:        10 * time.Second,
			RequestsPerSec: 1,
			Burst:          2,
		},
		Research: ResearchConfig{
			ExecutionTimeout: 2 * time.Minute,
			DetailCount:      3,
			SummaryLength:    500,
		},
		EventBus: EventBusConfig{
			Enabled:     true,
			BufferSize:  100,
			WorkerCount: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file and expands environment variables. A missing
// path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, hoplite.NewConfigurationError("failed to read config file: "+path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, hoplite.NewConfigurationError("failed to parse config file: "+path, err)
	}

	return cfg, nil
}

// IntentTTLs converts the configured TTL override map to intent keys,
// dropping unrecognized intent names.
func (c *Config) IntentTTLs() map[hoplite.Intent]time.Duration {
	if len(c.Cache.TTLOverrides) == 0 {
		return nil
	}
	overrides := make(map[hoplite.Intent]time.Duration, len(c.Cache.TTLOverrides))
	for name, ttl := range c.Cache.TTLOverrides {
		overrides[hoplite.ParseIntent(name)] = ttl
	}
	return overrides
}
