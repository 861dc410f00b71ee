package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave) on a ticker, and
// chunks can also be injected directly with SimulateChunk.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	generate  bool

	// StartErr, when set, is returned by Start to simulate device failures.
	StartErr error
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave on a ticker.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
		m.generate = true
	}
}

// WithGeneratedSilence configures the mock to emit silent chunks on a ticker.
func WithGeneratedSilence() MockSourceOption {
	return func(m *MockSource) {
		m.generate = true
	}
}

// NewMockSource creates a new mock audio source. Without generation options
// it emits nothing on its own; tests drive it with SimulateChunk.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan AudioChunk, 32),
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins capture.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StartErr != nil {
		return m.StartErr
	}
	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan AudioChunk, 32)

	if m.generate {
		go m.generateLoop(ctx, m.stopCh, m.streamCh)
	}

	m.logger.Debug("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)
	return nil
}

// generateLoop owns the session's channels as locals so a loop from a
// stopped session can never feed a restarted one.
func (m *MockSource) generateLoop(ctx context.Context, stopCh chan struct{}, streamCh chan AudioChunk) {
	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.running && m.streamCh == streamCh {
				select {
				case streamCh <- m.generateChunk():
				default:
					// Buffer full, drop chunk (overrun).
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *MockSource) generateChunk() AudioChunk {
	bufferSize := m.cfg.BufferSize()
	samples := make([]int16, bufferSize*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < bufferSize; i++ {
			sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
			sampleInt := int16(sample * 32767)
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = sampleInt
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// SimulateChunk injects a chunk as if it were captured from the device.
// Returns false if the source is not running.
func (m *MockSource) SimulateChunk(chunk AudioChunk) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}

	select {
	case m.streamCh <- chunk:
		return true
	default:
		return false
	}
}

// SimulateSpeech injects n chunks of loud audio followed by silence chunks,
// approximating one spoken utterance.
func (m *MockSource) SimulateSpeech(loud, silent int) {
	bufferSize := m.cfg.BufferSize()
	for i := 0; i < loud; i++ {
		samples := make([]int16, bufferSize)
		for j := range samples {
			samples[j] = 12000
		}
		m.SimulateChunk(AudioChunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: 1})
	}
	for i := 0; i < silent; i++ {
		m.SimulateChunk(AudioChunk{Samples: make([]int16, bufferSize), SampleRate: m.cfg.SampleRate, Channels: 1})
	}
}

// Stop halts capture.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	close(m.stopCh)
	close(m.streamCh)

	m.logger.Debug("mock audio source stopped")
	return nil
}

// Read reads the next audio chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-m.Stream():
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (m *MockSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Running reports whether the source is currently capturing.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Ensure MockSource implements Source.
var _ Source = (*MockSource)(nil)
