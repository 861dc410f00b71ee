package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/spike-crypto/voicebot/pkg/api"
	"github.com/spike-crypto/voicebot/pkg/audioio"
	"github.com/spike-crypto/voicebot/pkg/recorder"
)

// ErrRecognitionFailed wraps failures surfaced on the event stream.
var ErrRecognitionFailed = errors.New("recognition: recognition failed")

// Transcriber converts a recorded WAV payload into text.
// *api.Client satisfies this.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (*api.TranscribeResult, error)
}

// StreamConfig holds StreamRecognizer configuration.
type StreamConfig struct {
	// Source is the audio source to capture from. Required.
	Source audioio.Source

	// Transcriber produces the final transcript. Required.
	Transcriber Transcriber

	// SilenceThreshold is the normalized RMS level (0..1) below which a
	// chunk counts as silence.
	// Default: 0.02
	SilenceThreshold float64

	// SilenceWindow is how much trailing silence ends the utterance.
	// Default: 1200ms
	SilenceWindow time.Duration

	// MaxUtterance caps a single listening session.
	// Default: 15s
	MaxUtterance time.Duration

	// Logger for session lifecycle events.
	Logger *slog.Logger
}

// StreamOption configures a StreamRecognizer.
type StreamOption func(*StreamConfig)

// WithSilenceThreshold sets the RMS silence threshold.
func WithSilenceThreshold(level float64) StreamOption {
	return func(c *StreamConfig) { c.SilenceThreshold = level }
}

// WithSilenceWindow sets the trailing-silence endpoint window.
func WithSilenceWindow(d time.Duration) StreamOption {
	return func(c *StreamConfig) { c.SilenceWindow = d }
}

// WithMaxUtterance caps session length.
func WithMaxUtterance(d time.Duration) StreamOption {
	return func(c *StreamConfig) { c.MaxUtterance = d }
}

// WithStreamLogger sets the logger.
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(c *StreamConfig) { c.Logger = logger }
}

// StreamRecognizer captures audio from a Source, detects the end of the
// utterance by trailing silence and produces the transcript with a single
// transcription round trip.
type StreamRecognizer struct {
	cfg    StreamConfig
	logger *slog.Logger

	// unsupported holds the capability verdict, fixed at construction.
	unsupported error

	mu        sync.Mutex
	listening bool
	stopCh    chan struct{} // finish early, keep the transcript
	abortCh   chan struct{} // tear down, no transcript
}

// NewStreamRecognizer creates a recognizer over the given source and
// transcription backend.
func NewStreamRecognizer(source audioio.Source, transcriber Transcriber, opts ...StreamOption) (*StreamRecognizer, error) {
	if source == nil {
		return nil, fmt.Errorf("recognition: source is required")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("recognition: transcriber is required")
	}

	cfg := StreamConfig{
		Source:           source,
		Transcriber:      transcriber,
		SilenceThreshold: 0.02,
		SilenceWindow:    1200 * time.Millisecond,
		MaxUtterance:     15 * time.Second,
		Logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &StreamRecognizer{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "recognition"),
	}

	// The environment is probed exactly once, here.
	if probe := audioio.Probe(source.Config()); !probe.Supported {
		r.unsupported = fmt.Errorf("%w: %s", ErrUnsupported, probe.Reason)
	}

	return r, nil
}

// StartListening begins a listening session.
func (r *StreamRecognizer) StartListening(ctx context.Context) (<-chan Event, error) {
	if r.unsupported != nil {
		return nil, r.unsupported
	}

	r.mu.Lock()
	if r.listening {
		r.mu.Unlock()
		return nil, ErrAlreadyListening
	}
	r.listening = true
	r.stopCh = make(chan struct{})
	r.abortCh = make(chan struct{})
	r.mu.Unlock()

	if err := r.cfg.Source.Start(ctx); err != nil {
		r.mu.Lock()
		r.listening = false
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}

	events := make(chan Event, 16)
	go r.run(ctx, events)

	r.logger.Info("listening started", "backend", r.cfg.Source.Name())
	return events, nil
}

// run owns the session: capture, endpointing, transcription, terminal event.
func (r *StreamRecognizer) run(ctx context.Context, events chan<- Event) {
	started := time.Now()
	var samples []int16
	var speechSeen bool
	var silence time.Duration
	aborted := false

	maxTimer := time.NewTimer(r.cfg.MaxUtterance)
	defer maxTimer.Stop()

	stream := r.cfg.Source.Stream()

capture:
	for {
		select {
		case <-ctx.Done():
			aborted = true
			break capture
		case <-r.abortCh:
			aborted = true
			break capture
		case <-r.stopCh:
			break capture
		case <-maxTimer.C:
			r.logger.Warn("utterance hit max duration", "max", r.cfg.MaxUtterance)
			break capture
		case chunk, ok := <-stream:
			if !ok {
				break capture
			}
			samples = append(samples, chunk.Samples...)

			level := rmsLevel(chunk.Samples)
			if level >= r.cfg.SilenceThreshold {
				speechSeen = true
				silence = 0
			} else if speechSeen {
				silence += time.Duration(chunk.Duration() * float64(time.Second))
				if silence >= r.cfg.SilenceWindow {
					break capture
				}
			}

			select {
			case events <- Event{Type: EventInterim, Elapsed: time.Since(started), Level: level}:
			default:
			}
		}
	}

	// Release the device before the network round trip.
	if err := r.cfg.Source.Stop(); err != nil {
		r.logger.Warn("source stop failed", "error", err)
	}
	r.mu.Lock()
	r.listening = false
	r.mu.Unlock()

	defer close(events)

	if aborted || !speechSeen || len(samples) == 0 {
		events <- Event{Type: EventEnded}
		return
	}

	cfg := r.cfg.Source.Config()
	wav, err := recorder.EncodeWAV(samples, cfg.SampleRate, cfg.Channels)
	if err != nil {
		events <- Event{Type: EventError, Err: fmt.Errorf("%w: %v", ErrRecognitionFailed, err)}
		return
	}

	result, err := r.cfg.Transcriber.Transcribe(ctx, "recording.wav", wav)
	if err != nil {
		events <- Event{Type: EventError, Err: fmt.Errorf("%w: %v", ErrRecognitionFailed, err)}
		return
	}

	r.logger.Info("transcript ready",
		"chars", len(result.Text),
		"elapsed", time.Since(started),
	)

	events <- Event{Type: EventFinal, Text: result.Text}
	events <- Event{Type: EventEnded}
}

// StopListening finishes the session early, keeping the transcript.
func (r *StreamRecognizer) StopListening() error {
	return r.signal(func() chan struct{} { return r.stopCh })
}

// Abort tears the session down without transcribing.
func (r *StreamRecognizer) Abort() error {
	return r.signal(func() chan struct{} { return r.abortCh })
}

func (r *StreamRecognizer) signal(pick func() chan struct{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.listening {
		return ErrNotListening
	}
	ch := pick()
	select {
	case <-ch:
	default:
		close(ch)
	}
	return nil
}

// Listening reports whether a session is active.
func (r *StreamRecognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// rmsLevel computes the normalized RMS energy of a chunk.
func rmsLevel(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	return math.Sqrt(energy/float64(len(samples))) / 32768.0
}

var _ Recognizer = (*StreamRecognizer)(nil)
