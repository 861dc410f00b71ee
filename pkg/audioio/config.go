// Package audioio provides microphone capture for the voice pipeline.
//
// Two backends are supported:
//   - arecord - exec-based ALSA capture on Linux
//   - mock    - synthetic audio for CI/testing without hardware
//
// The backend is selected automatically from the platform, or explicitly
// via configuration. Capability detection is a one-shot Probe consumed at
// construction time; callers never sniff the environment themselves.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio capture backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendArecord captures via the ALSA arecord command.
	BackendArecord Backend = "arecord"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds capture configuration.
type Config struct {
	// Backend specifies which capture backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture sample rate in Hz.
	// Default: 16000 (what the transcription endpoint expects)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of capture buffers.
	// Default: 100ms (1600 samples at 16kHz)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is the backend-specific device identifier,
	// e.g. "default" or "plughw:1,0" for arecord.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 100 * time.Millisecond,
		Device:         "",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
