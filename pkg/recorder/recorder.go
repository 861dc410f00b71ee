// Package recorder turns microphone capture into finished audio artifacts.
//
// A Recorder wraps an audioio.Source and accumulates PCM while recording is
// active. Stop produces a WAV Artifact ready for upload; Cancel discards
// everything captured so far. In both cases the capture device is released
// before the call returns.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spike-crypto/voicebot/pkg/audioio"
)

var (
	// ErrAlreadyRecording is returned when Start is called while recording.
	ErrAlreadyRecording = errors.New("recorder: already recording")

	// ErrNotRecording is returned by Stop or Cancel with no active recording.
	ErrNotRecording = errors.New("recorder: not recording")

	// ErrPermissionDenied is returned when microphone access is refused.
	ErrPermissionDenied = errors.New("recorder: microphone permission denied")

	// ErrDeviceUnavailable is returned when no capture device can be opened.
	ErrDeviceUnavailable = errors.New("recorder: capture device unavailable")

	// ErrNoAudio is returned by Stop when nothing was captured.
	ErrNoAudio = errors.New("recorder: no audio captured")
)

// Artifact is a finished recording.
type Artifact struct {
	// WAV is the complete PCM-16 WAV payload.
	WAV []byte

	// MIMEType is the content type of the payload.
	MIMEType string

	// SampleRate is the capture sample rate in Hz.
	SampleRate int

	// Duration is the length of the recording.
	Duration time.Duration
}

// Config holds recorder configuration.
type Config struct {
	// Source is the audio source to record from. Required.
	Source audioio.Source

	// MaxDuration caps a single recording. Zero means no cap.
	// Default: 60s
	MaxDuration time.Duration

	// Logger for recording lifecycle events.
	Logger *slog.Logger
}

// Option configures a Recorder.
type Option func(*Config)

// WithMaxDuration sets the recording duration cap.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Config) { c.MaxDuration = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Recorder accumulates audio from a Source between Start and Stop.
// All methods are safe for concurrent use; at most one recording is
// active at a time.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	samples   []int16
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Recorder for the given source.
func New(source audioio.Source, opts ...Option) (*Recorder, error) {
	if source == nil {
		return nil, fmt.Errorf("recorder: source is required")
	}

	cfg := Config{
		Source:      source,
		MaxDuration: 60 * time.Second,
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Recorder{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "recorder"),
	}, nil
}

// Start begins a new recording. The capture device is acquired here; a
// failure to acquire it is mapped to ErrPermissionDenied or
// ErrDeviceUnavailable and leaves the recorder idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.recording = true
	r.samples = nil
	r.startedAt = time.Now()
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	if err := r.cfg.Source.Start(ctx); err != nil {
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return classifyDeviceError(err)
	}

	go r.collect(ctx)

	r.logger.Info("recording started", "backend", r.cfg.Source.Name())
	return nil
}

// collect drains the source stream into the sample buffer until stopped.
func (r *Recorder) collect(ctx context.Context) {
	defer close(r.doneCh)

	var deadline <-chan time.Time
	if r.cfg.MaxDuration > 0 {
		t := time.NewTimer(r.cfg.MaxDuration)
		defer t.Stop()
		deadline = t.C
	}

	stream := r.cfg.Source.Stream()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-deadline:
			r.logger.Warn("recording hit max duration", "max", r.cfg.MaxDuration)
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			r.mu.Lock()
			if r.recording {
				r.samples = append(r.samples, chunk.Samples...)
			}
			r.mu.Unlock()
		}
	}
}

// Stop ends the recording and returns the captured audio as a WAV artifact.
// The device is released whether or not encoding succeeds.
func (r *Recorder) Stop() (*Artifact, error) {
	samples, err := r.finish()
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}

	cfg := r.cfg.Source.Config()
	wav, err := EncodeWAV(samples, cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("recorder: encode: %w", err)
	}

	frames := len(samples) / cfg.Channels
	duration := time.Duration(frames) * time.Second / time.Duration(cfg.SampleRate)

	r.logger.Info("recording stopped",
		"duration", duration,
		"bytes", len(wav),
	)

	return &Artifact{
		WAV:        wav,
		MIMEType:   "audio/wav",
		SampleRate: cfg.SampleRate,
		Duration:   duration,
	}, nil
}

// Cancel ends the recording and discards everything captured.
// The device is released; nothing is returned to the caller.
func (r *Recorder) Cancel() error {
	if _, err := r.finish(); err != nil {
		return err
	}
	r.logger.Info("recording cancelled")
	return nil
}

// finish transitions out of the recording state, stops the source and
// returns whatever samples were captured.
func (r *Recorder) finish() ([]int16, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.recording = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	// Release the device first so the collector's stream drains out.
	if err := r.cfg.Source.Stop(); err != nil {
		r.logger.Warn("source stop failed", "error", err)
	}
	<-done

	r.mu.Lock()
	samples := r.samples
	r.samples = nil
	r.mu.Unlock()
	return samples, nil
}

// Recording reports whether a recording is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Elapsed returns how long the current recording has been running,
// or zero when idle.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return 0
	}
	return time.Since(r.startedAt)
}

// classifyDeviceError maps a source start failure onto the recorder's
// error taxonomy so callers can tell "ask for permission" apart from
// "no device".
func classifyDeviceError(err error) error {
	if errors.Is(err, os.ErrPermission) ||
		strings.Contains(strings.ToLower(err.Error()), "permission denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
