// Package config provides configuration for voicebot commands.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// then environment variables. Every value has a default suitable for local
// development against a backend on localhost:5001.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables understood by Load.
const (
	EnvAPIBaseURL = "VOICEBOT_API_URL"
	EnvRealtime   = "VOICEBOT_WS_URL"
	EnvLogLevel   = "VOICEBOT_LOG_LEVEL"
	EnvBackend    = "VOICEBOT_AUDIO_BACKEND"
	EnvDevice     = "VOICEBOT_AUDIO_DEVICE"
	EnvPlayerCmd  = "VOICEBOT_PLAYER"
)

// Local-development defaults.
const (
	DefaultAPIBaseURL = "http://localhost:5001/api"
	DefaultRealtime   = "ws://localhost:5001/ws"
	DefaultLogLevel   = "info"
)

// Config holds all settings for a voicebot process.
type Config struct {
	// APIBaseURL is the base URL of the chatbot backend HTTP contract.
	APIBaseURL string `yaml:"api_base_url"`

	// RealtimeURL is the optional server-push websocket endpoint.
	RealtimeURL string `yaml:"realtime_url"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// AudioBackend selects the capture backend ("auto", "arecord", "mock").
	AudioBackend string `yaml:"audio_backend"`

	// AudioDevice is the capture device identifier (backend specific).
	AudioDevice string `yaml:"audio_device"`

	// PlayerCommand is the external command used for audio playback.
	// Empty selects the platform default.
	PlayerCommand string `yaml:"player_command"`

	// RequestTimeout bounds a single API round trip.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns the built-in local-development configuration.
func Default() Config {
	return Config{
		APIBaseURL:     DefaultAPIBaseURL,
		RealtimeURL:    DefaultRealtime,
		LogLevel:       DefaultLogLevel,
		AudioBackend:   "auto",
		RequestTimeout: 30 * time.Second,
	}
}

// Load resolves the configuration. If path is non-empty the YAML file at
// path is layered over the defaults; environment variables win last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv resolves the configuration from defaults and environment only.
func FromEnv() Config {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(EnvRealtime); v != "" {
		cfg.RealtimeURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.AudioBackend = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		cfg.AudioDevice = v
	}
	if v := os.Getenv(EnvPlayerCmd); v != "" {
		cfg.PlayerCommand = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("config: api_base_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be positive, got %v", c.RequestTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}
