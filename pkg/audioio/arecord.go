package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// ArecordSource captures audio by running the ALSA arecord command and
// reading raw PCM16 from its stdout. This avoids cgo while still using the
// system capture stack; the process holds the device until it exits.
type ArecordSource struct {
	cfg    Config
	logger *slog.Logger
	device string

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	streamCh chan AudioChunk
	stopCh   chan struct{}
	readDone chan struct{}
}

// newArecordSource creates a new arecord-backed audio source.
func newArecordSource(cfg Config, logger *slog.Logger) (*ArecordSource, error) {
	if _, err := exec.LookPath("arecord"); err != nil {
		return nil, fmt.Errorf("arecord not found in PATH: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	device := cfg.Device
	if device == "" {
		device = "default"
	}

	return &ArecordSource{
		cfg:      cfg,
		logger:   logger,
		device:   device,
		streamCh: make(chan AudioChunk, 32),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins audio capture.
func (s *ArecordSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	// arecord writes raw little-endian PCM16 to stdout until killed.
	cmd := exec.Command("arecord",
		"-q",
		"-D", s.device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-t", "raw",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start arecord: %w", err)
	}

	s.cmd = cmd
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 32)
	s.readDone = make(chan struct{})

	// The loop owns its pipe and channels as locals; Stop joins it via
	// readDone before a restart can reassign these fields.
	go s.readLoop(ctx, stdout, s.stopCh, s.streamCh, s.readDone)

	s.logger.Info("arecord capture started",
		"device", s.device,
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
	)
	return nil
}

// readLoop reads fixed-size buffers from arecord and fans them out. It
// closes streamCh and done on exit; nothing else touches its channels.
func (s *ArecordSource) readLoop(ctx context.Context, stdout io.Reader, stopCh chan struct{}, streamCh chan AudioChunk, done chan struct{}) {
	defer close(done)
	defer close(streamCh)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		n, err := io.ReadFull(stdout, buf)
		if n == 0 {
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf[:n], s.cfg.SampleRate, s.cfg.Channels)

		select {
		case streamCh <- chunk:
		case <-stopCh:
			return
		default:
			// Consumer too slow, drop the chunk (overrun).
			s.logger.Debug("arecord source: buffer full, dropping chunk")
		}

		if err != nil {
			// Short read: arecord exited mid-buffer.
			return
		}
	}
}

// Stop halts capture and releases the device. It returns only after the
// capture goroutine has exited, so a following Start sees a quiet source.
func (s *ArecordSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	// Killing the child drops its end of the pipe, which unblocks the
	// loop's pending read.
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	<-s.readDone
	if s.cmd != nil {
		s.cmd.Wait()
	}
	s.cmd = nil

	s.logger.Info("arecord capture stopped")
	return nil
}

// Read reads the next audio chunk.
func (s *ArecordSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-s.Stream():
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *ArecordSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *ArecordSource) Config() Config {
	return s.cfg
}

// Name returns "arecord".
func (s *ArecordSource) Name() string {
	return "arecord"
}

// Close releases all resources.
func (s *ArecordSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Ensure ArecordSource implements Source.
var _ Source = (*ArecordSource)(nil)
