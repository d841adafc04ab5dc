// Package config provides configuration types and loading for personakit.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Worker, Mindscape, Engine, Staleness, Narrative, Metrics.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Worker    WorkerConfig    `json:"worker"`
	Mindscape MindscapeConfig `json:"mindscape"`
	Engine    EngineConfig    `json:"engine"`
	Staleness StalenessConfig `json:"staleness"`
	Narrative NarrativeConfig `json:"narrative"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir      string `json:"dataDir" envconfig:"DATA_DIR"`
	DatabasePath string `json:"databasePath" envconfig:"DATABASE_PATH"`
}

// WorkerConfig groups outbox dispatcher settings.
type WorkerConfig struct {
	Dispatchers  int           `json:"dispatchers" envconfig:"DISPATCHERS"`
	PollInterval time.Duration `json:"pollInterval" envconfig:"POLL_INTERVAL"`
	MaxAttempts  int           `json:"maxAttempts" envconfig:"MAX_ATTEMPTS"`
	BackoffBase  time.Duration `json:"backoffBase" envconfig:"BACKOFF_BASE"`
	BackoffCap   time.Duration `json:"backoffCap" envconfig:"BACKOFF_CAP"`
	// TaskRetention controls how long done/failed tasks are kept before cleanup.
	TaskRetention time.Duration `json:"taskRetention" envconfig:"TASK_RETENTION"`
}

// MindscapeConfig groups optimistic-lock retry settings for trait writes.
type MindscapeConfig struct {
	MaxRetries int           `json:"maxRetries" envconfig:"MAX_RETRIES"`
	RetryBase  time.Duration `json:"retryBase" envconfig:"RETRY_BASE"`
	RetryCap   time.Duration `json:"retryCap" envconfig:"RETRY_CAP"`
}

// EngineConfig groups rule engine settings.
type EngineConfig struct {
	// TopK caps the number of suggestions returned per evaluation.
	TopK          int           `json:"topK" envconfig:"TOP_K"`
	SearchTimeout time.Duration `json:"searchTimeout" envconfig:"SEARCH_TIMEOUT"`
}

// StalenessConfig groups staleness event publishing settings.
// The in-process bus is always active; Kafka is opt-in.
type StalenessConfig struct {
	KafkaEnabled bool   `json:"kafkaEnabled" envconfig:"KAFKA_ENABLED"`
	Brokers      string `json:"brokers" envconfig:"BROKERS"`
	Topic        string `json:"topic" envconfig:"TOPIC"`
}

// NarrativeConfig groups the external narrative search collaborator settings.
type NarrativeConfig struct {
	Enabled bool          `json:"enabled" envconfig:"ENABLED"`
	BaseURL string        `json:"baseUrl" envconfig:"BASE_URL"`
	Timeout time.Duration `json:"timeout" envconfig:"TIMEOUT"`
}

// MetricsConfig groups the Prometheus endpoint settings for the worker.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Addr    string `json:"addr" envconfig:"ADDR"`
}
