package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Capability is the result of probing for audio capture support.
// It is produced once at construction time and consumed by callers that
// need to degrade gracefully; no other code checks the environment.
type Capability struct {
	// Supported is true if a capture backend is available.
	Supported bool

	// Backend is the backend that would be used.
	Backend Backend

	// Reason explains why capture is unsupported (when Supported is false).
	Reason string
}

// Probe detects whether audio capture is available for the given config.
func Probe(cfg Config) Capability {
	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend = detectBestBackend()
	}

	switch backend {
	case BackendMock:
		return Capability{Supported: true, Backend: BackendMock}
	case BackendArecord:
		if _, err := exec.LookPath("arecord"); err != nil {
			return Capability{
				Supported: false,
				Backend:   BackendArecord,
				Reason:    "arecord not found in PATH",
			}
		}
		return Capability{Supported: true, Backend: BackendArecord}
	default:
		return Capability{
			Supported: false,
			Backend:   backend,
			Reason:    fmt.Sprintf("no capture backend for %s", runtime.GOOS),
		}
	}
}

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendArecord:
		return newArecordSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns the best available backend for this platform.
func detectBestBackend() Backend {
	if runtime.GOOS == "linux" {
		if _, err := exec.LookPath("arecord"); err == nil {
			return BackendArecord
		}
	}
	return BackendMock
}

// AvailableBackends returns the backends usable on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if runtime.GOOS == "linux" {
		if _, err := exec.LookPath("arecord"); err == nil {
			backends = append(backends, BackendArecord)
		}
	}
	return backends
}
