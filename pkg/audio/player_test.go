package audio

import (
	"context"
	"testing"
	"time"
)

func TestExecPlayerCallbacks(t *testing.T) {
	// cat consumes stdin and exits, standing in for a real player.
	p := NewExecPlayer(WithCommand("cat"))

	var started, ended bool
	p.OnPlaybackStart = func() { started = true }
	p.OnPlaybackEnd = func() { ended = true }

	if err := p.Play(context.Background(), []byte("audio payload")); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !started || !ended {
		t.Errorf("expected both callbacks, got start=%v end=%v", started, ended)
	}
	if p.Playing() {
		t.Error("Playing() should be false after Play returns")
	}
}

func TestExecPlayerEmptyPayload(t *testing.T) {
	p := NewExecPlayer(WithCommand("cat"))
	if err := p.Play(context.Background(), nil); err != nil {
		t.Errorf("empty payload should be a no-op, got %v", err)
	}
}

func TestExecPlayerCancel(t *testing.T) {
	// sleep ignores stdin, so Play blocks until Cancel kills it.
	p := NewExecPlayer(WithCommand("sleep", "10"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Play(context.Background(), []byte("x"))
	}()

	deadline := time.After(2 * time.Second)
	for !p.Playing() {
		select {
		case <-deadline:
			t.Fatal("playback never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.Cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("cancelled Play should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Cancel")
	}

	// Idempotent when idle.
	p.Cancel()
}

func TestExecPlayerContextCancellation(t *testing.T) {
	p := NewExecPlayer(WithCommand("sleep", "10"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Play(ctx, []byte("x"))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("context-cancelled Play should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after context cancel")
	}
}

func TestExecPlayerMissingBinary(t *testing.T) {
	p := NewExecPlayer(WithCommand("definitely-not-a-player"))
	if err := p.Play(context.Background(), []byte("x")); err == nil {
		t.Error("expected error for missing player binary")
	}
	if p.Playing() {
		t.Error("failed Play must not leave the player in playing state")
	}
}

func TestMockPlayerFinish(t *testing.T) {
	m := NewMockPlayer()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Play(context.Background(), []byte("abc"))
	}()

	deadline := time.After(2 * time.Second)
	for !m.Playing() {
		select {
		case <-deadline:
			t.Fatal("mock playback never started")
		case <-time.After(time.Millisecond):
		}
	}

	m.FinishPlayback()
	if err := <-errCh; err != nil {
		t.Errorf("Play returned %v", err)
	}
	if m.PlayCount() != 1 {
		t.Errorf("expected 1 play, got %d", m.PlayCount())
	}
	if string(m.LastData()) != "abc" {
		t.Errorf("unexpected payload %q", m.LastData())
	}
}

func TestPCMConversionRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	data := SamplesToPCMBytes(samples)
	back := PCMBytesToSamples(data)

	if len(back) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(back))
	}
	for i, s := range samples {
		if back[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, back[i])
		}
	}
}
