package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Worker.Dispatchers != 2 {
		t.Errorf("expected 2 dispatchers, got %d", cfg.Worker.Dispatchers)
	}
	if cfg.Worker.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Worker.MaxAttempts)
	}
	if cfg.Engine.TopK != 5 {
		t.Errorf("expected top-5, got %d", cfg.Engine.TopK)
	}
	if cfg.Staleness.Topic == "" {
		t.Error("expected a default staleness topic")
	}
	if cfg.Paths.DatabasePath == "" {
		t.Error("expected a default database path")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PERSONAKIT_CONFIG", filepath.Join(t.TempDir(), "nope.json"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("expected default poll interval, got %v", cfg.Worker.PollInterval)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"worker": {"dispatchers": 4}, "staleness": {"topic": "custom.topic"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PERSONAKIT_CONFIG", path)
	t.Setenv("PERSONAKIT_WORKER_MAX_ATTEMPTS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Worker.Dispatchers != 4 {
		t.Errorf("file value lost, dispatchers=%d", cfg.Worker.Dispatchers)
	}
	if cfg.Staleness.Topic != "custom.topic" {
		t.Errorf("file value lost, topic=%s", cfg.Staleness.Topic)
	}
	if cfg.Worker.MaxAttempts != 7 {
		t.Errorf("env override lost, max attempts=%d", cfg.Worker.MaxAttempts)
	}
	// Unset fields fall back to defaults.
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("default not applied, poll=%v", cfg.Worker.PollInterval)
	}
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PERSONAKIT_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	t.Setenv("PERSONAKIT_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Worker.Dispatchers = 9
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Worker.Dispatchers != 9 {
		t.Errorf("round trip lost dispatchers, got %d", loaded.Worker.Dispatchers)
	}
}
