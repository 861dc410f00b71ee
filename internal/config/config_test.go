package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.APIBaseURL != "http://localhost:5001/api" {
		t.Errorf("unexpected api base url: %s", cfg.APIBaseURL)
	}
	if cfg.RealtimeURL != "ws://localhost:5001/ws" {
		t.Errorf("unexpected realtime url: %s", cfg.RealtimeURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "https://bot.example.com/api")
	t.Setenv(EnvRealtime, "wss://bot.example.com/ws")
	t.Setenv(EnvLogLevel, "debug")

	cfg := FromEnv()

	if cfg.APIBaseURL != "https://bot.example.com/api" {
		t.Errorf("env override not applied: %s", cfg.APIBaseURL)
	}
	if cfg.RealtimeURL != "wss://bot.example.com/ws" {
		t.Errorf("env override not applied: %s", cfg.RealtimeURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("env override not applied: %s", cfg.LogLevel)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicebot.yaml")
	data := []byte("api_base_url: http://10.0.0.2:5001/api\nlog_level: warn\nrequest_timeout: 10s\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "http://10.0.0.2:5001/api" {
		t.Errorf("file value not applied: %s", cfg.APIBaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("file value not applied: %s", cfg.LogLevel)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("file value not applied: %v", cfg.RequestTimeout)
	}
	// Untouched values keep defaults.
	if cfg.RealtimeURL != DefaultRealtime {
		t.Errorf("default lost: %s", cfg.RealtimeURL)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicebot.yaml")
	if err := os.WriteFile(path, []byte("api_base_url: http://file.example/api\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvAPIBaseURL, "http://env.example/api")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != "http://env.example/api" {
		t.Errorf("expected env to win, got %s", cfg.APIBaseURL)
	}
}

func TestValidate(t *testing.T) {
	t.Run("empty base url", func(t *testing.T) {
		cfg := Default()
		cfg.APIBaseURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := Default()
		cfg.LogLevel = "verbose"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad timeout", func(t *testing.T) {
		cfg := Default()
		cfg.RequestTimeout = 0
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/voicebot.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
