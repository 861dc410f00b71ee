package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spike-crypto/voicebot/pkg/audioio"
)

func newTestRecorder(t *testing.T) (*Recorder, *audioio.MockSource) {
	t.Helper()

	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	src := audioio.NewMockSource(cfg, nil)
	t.Cleanup(func() { src.Close() })

	rec, err := New(src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return rec, src
}

func TestRecorderRequiresSource(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestRecorderStartStop(t *testing.T) {
	rec, src := newTestRecorder(t)
	ctx := context.Background()

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !rec.Recording() {
		t.Error("Recording() should be true after Start")
	}

	src.SimulateSpeech(5, 2)
	time.Sleep(50 * time.Millisecond)

	artifact, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if rec.Recording() {
		t.Error("Recording() should be false after Stop")
	}
	if src.Running() {
		t.Error("device should be released after Stop")
	}
	if artifact.MIMEType != "audio/wav" {
		t.Errorf("expected audio/wav, got %s", artifact.MIMEType)
	}
	if artifact.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", artifact.SampleRate)
	}

	// 7 chunks of 100ms = 700ms of audio
	samples, rate, err := DecodeWAV(artifact.WAV)
	if err != nil {
		t.Fatalf("artifact is not valid WAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("decoded sample rate = %d", rate)
	}
	if len(samples) != 7*1600 {
		t.Errorf("expected %d samples, got %d", 7*1600, len(samples))
	}

	dur, err := WAVDuration(artifact.WAV)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}
	if dur < 0.69 || dur > 0.71 {
		t.Errorf("expected ~0.7s, got %f", dur)
	}
}

func TestRecorderDoubleStart(t *testing.T) {
	rec, _ := newTestRecorder(t)
	ctx := context.Background()

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer rec.Cancel()

	if err := rec.Start(ctx); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	rec, _ := newTestRecorder(t)

	if _, err := rec.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording from Stop, got %v", err)
	}
	if err := rec.Cancel(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording from Cancel, got %v", err)
	}
}

func TestRecorderCancelDiscardsAndReleases(t *testing.T) {
	rec, src := newTestRecorder(t)
	ctx := context.Background()

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.SimulateSpeech(3, 1)
	time.Sleep(50 * time.Millisecond)

	if err := rec.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if src.Running() {
		t.Error("device should be released after Cancel")
	}
	if rec.Recording() {
		t.Error("Recording() should be false after Cancel")
	}

	// A cancelled take leaves nothing behind: the next recording
	// contains only its own audio.
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start after Cancel failed: %v", err)
	}
	src.SimulateSpeech(2, 0)
	time.Sleep(50 * time.Millisecond)

	artifact, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	samples, _, err := DecodeWAV(artifact.WAV)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(samples) != 2*1600 {
		t.Errorf("expected %d samples from second take only, got %d", 2*1600, len(samples))
	}
}

func TestRecorderStopWithNoAudio(t *testing.T) {
	rec, _ := newTestRecorder(t)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := rec.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestRecorderDeviceErrors(t *testing.T) {
	tests := []struct {
		name     string
		startErr error
		want     error
	}{
		{"permission", errors.New("arecord: Permission denied opening device"), ErrPermissionDenied},
		{"unavailable", errors.New("start arecord: no such device"), ErrDeviceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, src := newTestRecorder(t)
			src.StartErr = tt.startErr

			err := rec.Start(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if rec.Recording() {
				t.Error("recorder should stay idle after failed Start")
			}

			// The failure is recoverable once the device comes back.
			src.StartErr = nil
			if err := rec.Start(context.Background()); err != nil {
				t.Errorf("Start after recovery failed: %v", err)
			}
			rec.Cancel()
		})
	}
}

func TestRecorderElapsed(t *testing.T) {
	rec, _ := newTestRecorder(t)

	if rec.Elapsed() != 0 {
		t.Error("Elapsed should be zero while idle")
	}

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if rec.Elapsed() <= 0 {
		t.Error("Elapsed should be positive while recording")
	}
	rec.Cancel()
	if rec.Elapsed() != 0 {
		t.Error("Elapsed should reset after Cancel")
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000, 1); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := EncodeWAV([]int16{1}, 16000, 0); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Error("expected error for truncated data")
	}

	junk := make([]byte, 64)
	if _, _, err := DecodeWAV(junk); err == nil {
		t.Error("expected error for non-RIFF data")
	}
}
