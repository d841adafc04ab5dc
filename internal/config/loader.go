package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".personakit"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("PERSONAKIT_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ConfigDir)
	return &Config{
		Paths: PathsConfig{
			DataDir:      dataDir,
			DatabasePath: filepath.Join(dataDir, "personakit.db"),
		},
		Worker: WorkerConfig{
			Dispatchers:   2,
			PollInterval:  5 * time.Second,
			MaxAttempts:   3,
			BackoffBase:   time.Minute,
			BackoffCap:    time.Hour,
			TaskRetention: 7 * 24 * time.Hour,
		},
		Mindscape: MindscapeConfig{
			MaxRetries: 5,
			RetryBase:  20 * time.Millisecond,
			RetryCap:   time.Second,
		},
		Engine: EngineConfig{
			TopK:          5,
			SearchTimeout: 2 * time.Second,
		},
		Staleness: StalenessConfig{
			KafkaEnabled: false,
			Brokers:      "localhost:9092",
			Topic:        "personakit.mindscape.stale",
		},
		Narrative: NarrativeConfig{
			Enabled: false,
			BaseURL: "http://localhost:8090",
			Timeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9180",
		},
	}
}

// Load reads the config file (if present) and applies environment overrides.
// A missing config file is not an error; defaults are used.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Environment overrides, one prefix per section.
	envconfig.Process("PERSONAKIT_PATHS", &cfg.Paths)
	envconfig.Process("PERSONAKIT_WORKER", &cfg.Worker)
	envconfig.Process("PERSONAKIT_MINDSCAPE", &cfg.Mindscape)
	envconfig.Process("PERSONAKIT_ENGINE", &cfg.Engine)
	envconfig.Process("PERSONAKIT_STALENESS", &cfg.Staleness)
	envconfig.Process("PERSONAKIT_NARRATIVE", &cfg.Narrative)
	envconfig.Process("PERSONAKIT_METRICS", &cfg.Metrics)

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = def.Paths.DataDir
	}
	if c.Paths.DatabasePath == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, "personakit.db")
	}
	if c.Worker.Dispatchers <= 0 {
		c.Worker.Dispatchers = def.Worker.Dispatchers
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = def.Worker.PollInterval
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = def.Worker.MaxAttempts
	}
	if c.Worker.BackoffBase <= 0 {
		c.Worker.BackoffBase = def.Worker.BackoffBase
	}
	if c.Worker.BackoffCap <= 0 {
		c.Worker.BackoffCap = def.Worker.BackoffCap
	}
	if c.Worker.TaskRetention <= 0 {
		c.Worker.TaskRetention = def.Worker.TaskRetention
	}
	if c.Mindscape.MaxRetries <= 0 {
		c.Mindscape.MaxRetries = def.Mindscape.MaxRetries
	}
	if c.Mindscape.RetryBase <= 0 {
		c.Mindscape.RetryBase = def.Mindscape.RetryBase
	}
	if c.Mindscape.RetryCap <= 0 {
		c.Mindscape.RetryCap = def.Mindscape.RetryCap
	}
	if c.Engine.TopK <= 0 {
		c.Engine.TopK = def.Engine.TopK
	}
	if c.Engine.SearchTimeout <= 0 {
		c.Engine.SearchTimeout = def.Engine.SearchTimeout
	}
	if c.Staleness.Topic == "" {
		c.Staleness.Topic = def.Staleness.Topic
	}
	if c.Narrative.Timeout <= 0 {
		c.Narrative.Timeout = def.Narrative.Timeout
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = def.Metrics.Addr
	}
}
