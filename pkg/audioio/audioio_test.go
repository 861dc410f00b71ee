package audioio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", cfg.Channels)
	}
	if cfg.Backend != BackendAuto {
		t.Errorf("expected auto backend, got %s", cfg.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"negative channels", func(c *Config) { c.Channels = -1 }, true},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigBufferSize(t *testing.T) {
	cfg := DefaultConfig()

	// 100ms at 16kHz mono = 1600 samples = 3200 bytes
	if got := cfg.BufferSize(); got != 1600 {
		t.Errorf("expected buffer size 1600, got %d", got)
	}
	if got := cfg.BufferBytes(); got != 3200 {
		t.Errorf("expected buffer bytes 3200, got %d", got)
	}
}

func TestAudioChunkRoundTrip(t *testing.T) {
	chunk := AudioChunk{
		Samples:    []int16{0, 1, -1, 32767, -32768, 12345},
		SampleRate: 16000,
		Channels:   1,
	}

	data := chunk.Bytes()
	if len(data) != len(chunk.Samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(chunk.Samples)*2, len(data))
	}

	var decoded AudioChunk
	decoded.FromBytes(data, 16000, 1)

	if len(decoded.Samples) != len(chunk.Samples) {
		t.Fatalf("expected %d samples, got %d", len(chunk.Samples), len(decoded.Samples))
	}
	for i, s := range chunk.Samples {
		if decoded.Samples[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, decoded.Samples[i])
		}
	}
}

func TestAudioChunkDuration(t *testing.T) {
	chunk := AudioChunk{
		Samples:    make([]int16, 16000),
		SampleRate: 16000,
		Channels:   1,
	}
	if d := chunk.Duration(); d != 1.0 {
		t.Errorf("expected duration 1.0s, got %f", d)
	}

	var empty AudioChunk
	if d := empty.Duration(); d != 0 {
		t.Errorf("expected zero duration for empty chunk, got %f", d)
	}
}

func TestMockSourceSimulateChunk(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()

	// Injecting before Start fails.
	if src.SimulateChunk(AudioChunk{Samples: []int16{1}}) {
		t.Error("SimulateChunk should fail before Start")
	}

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1}
	if !src.SimulateChunk(want) {
		t.Fatal("SimulateChunk failed while running")
	}

	got, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Samples) != 3 || got.Samples[0] != 1 {
		t.Errorf("unexpected chunk: %+v", got)
	}
}

func TestMockSourceStopClosesStream(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !src.Running() {
		t.Error("source should be running after Start")
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if src.Running() {
		t.Error("source should not be running after Stop")
	}

	// Stream drained and closed; Read returns EOF.
	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after Stop, got %v", err)
	}

	// Stop is idempotent.
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestMockSourceStartErr(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)
	src.StartErr = errors.New("device busy")

	if err := src.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
	if src.Running() {
		t.Error("source should not be running after failed Start")
	}
}

func TestMockSourceGeneratesSineWave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond
	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var nonZero bool
	for _, s := range chunk.Samples {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("sine wave chunk should contain non-zero samples")
	}
}

// stubArecord shadows any real arecord with a script that streams zeros,
// standing in for a live capture device.
func stubArecord(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	script := "#!/bin/sh\nexec cat /dev/zero\n"
	if err := os.WriteFile(filepath.Join(dir, "arecord"), []byte(script), 0o755); err != nil {
		t.Fatalf("write arecord stub: %v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestArecordSourceRestartCycle(t *testing.T) {
	stubArecord(t)

	cfg := DefaultConfig()
	cfg.Backend = BackendArecord
	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The listen → stop → listen-again cycle must fully retire the old
	// capture goroutine before the next session reuses the source.
	for i := 0; i < 50; i++ {
		if err := src.Start(ctx); err != nil {
			t.Fatalf("cycle %d: Start failed: %v", i, err)
		}
		if _, err := src.Read(ctx); err != nil {
			t.Fatalf("cycle %d: Read failed: %v", i, err)
		}
		if err := src.Stop(); err != nil {
			t.Fatalf("cycle %d: Stop failed: %v", i, err)
		}
	}

	// The last session's stream is closed once Stop returns.
	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after final Stop, got %v", err)
	}
}

func TestProbeMockAlwaysSupported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	cap := Probe(cfg)
	if !cap.Supported {
		t.Errorf("mock backend should always be supported: %s", cap.Reason)
	}
	if cap.Backend != BackendMock {
		t.Errorf("expected mock backend, got %s", cap.Backend)
	}
}

func TestProbeUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = Backend("pulseaudio")

	cap := Probe(cfg)
	if cap.Supported {
		t.Error("unknown backend should not be supported")
	}
	if cap.Reason == "" {
		t.Error("unsupported capability should carry a reason")
	}
}

func TestNewSourceMock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	if src.Name() != "mock" {
		t.Errorf("expected mock source, got %s", src.Name())
	}
	if src.Config().SampleRate != cfg.SampleRate {
		t.Error("source should carry the given config")
	}
}

func TestNewSourceInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = -1

	if _, err := NewSource(cfg, nil); err == nil {
		t.Fatal("expected error for invalid config")
	}
}
