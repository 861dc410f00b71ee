package recognition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spike-crypto/voicebot/pkg/api"
	"github.com/spike-crypto/voicebot/pkg/audioio"
)

type fakeTranscriber struct {
	result *api.TranscribeResult
	err    error
	calls  int
	gotWAV []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filename string, audio []byte) (*api.TranscribeResult, error) {
	f.calls++
	f.gotWAV = audio
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newStreamTest(t *testing.T, tr *fakeTranscriber) (*StreamRecognizer, *audioio.MockSource) {
	t.Helper()

	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	src := audioio.NewMockSource(cfg, nil)
	t.Cleanup(func() { src.Close() })

	rec, err := NewStreamRecognizer(src, tr,
		WithSilenceWindow(200*time.Millisecond),
		WithMaxUtterance(5*time.Second),
	)
	if err != nil {
		t.Fatalf("NewStreamRecognizer failed: %v", err)
	}
	return rec, src
}

// collect drains an event stream to completion, returning all events.
func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()

	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not terminate")
		}
	}
}

func terminal(events []Event) Event {
	if len(events) == 0 {
		return Event{}
	}
	return events[len(events)-1]
}

func finalText(events []Event) (string, bool) {
	for _, ev := range events {
		if ev.Type == EventFinal {
			return ev.Text, true
		}
	}
	return "", false
}

func TestStreamRecognizerHappyPath(t *testing.T) {
	tr := &fakeTranscriber{result: &api.TranscribeResult{Text: "hello there"}}
	rec, src := newStreamTest(t, tr)

	events, err := rec.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}

	// Speech then enough silence to trip the endpoint (200ms window,
	// 100ms chunks).
	src.SimulateSpeech(4, 3)

	got := collect(t, events)

	text, ok := finalText(got)
	if !ok {
		t.Fatal("expected a Final event")
	}
	if text != "hello there" {
		t.Errorf("expected transcript %q, got %q", "hello there", text)
	}
	if terminal(got).Type != EventEnded {
		t.Errorf("stream should end with Ended, got %s", terminal(got).Type)
	}
	if tr.calls != 1 {
		t.Errorf("expected exactly one transcription call, got %d", tr.calls)
	}
	if len(tr.gotWAV) < 44 {
		t.Error("transcriber should receive a WAV payload")
	}
	if src.Running() {
		t.Error("device should be released after the session")
	}
	if rec.Listening() {
		t.Error("recognizer should be idle after the session")
	}
}

func TestStreamRecognizerEmitsInterim(t *testing.T) {
	tr := &fakeTranscriber{result: &api.TranscribeResult{Text: "x"}}
	rec, src := newStreamTest(t, tr)

	events, err := rec.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	src.SimulateSpeech(3, 3)

	got := collect(t, events)

	var sawInterim bool
	for _, ev := range got {
		if ev.Type == EventInterim {
			sawInterim = true
			if ev.Level < 0 || ev.Level > 1 {
				t.Errorf("interim level out of range: %f", ev.Level)
			}
		}
	}
	if !sawInterim {
		t.Error("expected at least one Interim event")
	}
}

func TestStreamRecognizerStopListening(t *testing.T) {
	tr := &fakeTranscriber{result: &api.TranscribeResult{Text: "early stop"}}
	rec, src := newStreamTest(t, tr)

	events, err := rec.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	src.SimulateSpeech(3, 0)
	time.Sleep(50 * time.Millisecond)

	if err := rec.StopListening(); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}

	got := collect(t, events)
	if text, ok := finalText(got); !ok || text != "early stop" {
		t.Errorf("early stop should still transcribe, got %v", got)
	}
	if terminal(got).Type != EventEnded {
		t.Errorf("stream should end with Ended, got %s", terminal(got).Type)
	}
}

func TestStreamRecognizerAbortSkipsTranscription(t *testing.T) {
	tr := &fakeTranscriber{result: &api.TranscribeResult{Text: "never"}}
	rec, src := newStreamTest(t, tr)

	events, err := rec.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	src.SimulateSpeech(3, 0)
	time.Sleep(50 * time.Millisecond)

	if err := rec.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	got := collect(t, events)
	if _, ok := finalText(got); ok {
		t.Error("aborted session must not produce a transcript")
	}
	if terminal(got).Type != EventEnded {
		t.Errorf("stream should end with Ended, got %s", terminal(got).Type)
	}
	if tr.calls != 0 {
		t.Errorf("aborted session must not call the transcriber, got %d calls", tr.calls)
	}
}

func TestStreamRecognizerTranscribeFailure(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("backend down")}
	rec, src := newStreamTest(t, tr)

	events, err := rec.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	src.SimulateSpeech(3, 3)

	got := collect(t, events)

	term := terminal(got)
	if term.Type != EventError {
		t.Fatalf("expected terminal Error event, got %s", term.Type)
	}
	if !errors.Is(term.Err, ErrRecognitionFailed) {
		t.Errorf("terminal error should wrap ErrRecognitionFailed, got %v", term.Err)
	}
	if src.Running() {
		t.Error("device should be released even on failure")
	}
}

func TestStreamRecognizerSilenceOnlyEndsWithoutTranscript(t *testing.T) {
	tr := &fakeTranscriber{result: &api.TranscribeResult{Text: "never"}}
	rec, _ := newStreamTest(t, tr)

	events, err := rec.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if err := rec.StopListening(); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}

	got := collect(t, events)
	if _, ok := finalText(got); ok {
		t.Error("silence-only session must not produce a transcript")
	}
	if tr.calls != 0 {
		t.Errorf("silence-only session must not call the transcriber, got %d", tr.calls)
	}
}

func TestStreamRecognizerAlreadyListening(t *testing.T) {
	tr := &fakeTranscriber{result: &api.TranscribeResult{Text: "x"}}
	rec, src := newStreamTest(t, tr)

	events, err := rec.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}

	if _, err := rec.StartListening(context.Background()); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("expected ErrAlreadyListening, got %v", err)
	}

	rec.Abort()
	_ = src
	collect(t, events)
}

func TestStreamRecognizerCapabilityFixedAtConstruction(t *testing.T) {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.Backend("bogus")
	src := audioio.NewMockSource(cfg, nil)

	rec, err := NewStreamRecognizer(src, &fakeTranscriber{})
	if err != nil {
		t.Fatalf("NewStreamRecognizer failed: %v", err)
	}

	// The verdict is decided once, at construction, for every session.
	for i := 0; i < 2; i++ {
		if _, err := rec.StartListening(context.Background()); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("attempt %d: expected ErrUnsupported, got %v", i, err)
		}
	}
	if src.Running() {
		t.Error("unsupported recognizer must never start the source")
	}
}

func TestStreamRecognizerStopWhenIdle(t *testing.T) {
	tr := &fakeTranscriber{}
	rec, _ := newStreamTest(t, tr)

	if err := rec.StopListening(); !errors.Is(err, ErrNotListening) {
		t.Errorf("expected ErrNotListening, got %v", err)
	}
	if err := rec.Abort(); !errors.Is(err, ErrNotListening) {
		t.Errorf("expected ErrNotListening, got %v", err)
	}
}

func TestMockRecognizerScriptedSession(t *testing.T) {
	m := NewMockRecognizer()

	events, err := m.StartListening(context.Background())
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}

	m.SimulateInterim(time.Second, 0.3)
	m.SimulateFinal("scripted")

	got := collect(t, events)
	if text, ok := finalText(got); !ok || text != "scripted" {
		t.Errorf("expected scripted transcript, got %v", got)
	}
	if terminal(got).Type != EventEnded {
		t.Errorf("expected Ended terminal, got %s", terminal(got).Type)
	}
	if m.Listening() {
		t.Error("mock should be idle after Final")
	}
}

func TestMockRecognizerUnsupported(t *testing.T) {
	m := NewMockRecognizer()
	m.Unsupported = true

	if _, err := m.StartListening(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestRmsLevel(t *testing.T) {
	if got := rmsLevel(nil); got != 0 {
		t.Errorf("empty chunk should have zero level, got %f", got)
	}

	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = 16384
	}
	if got := rmsLevel(loud); got < 0.4 || got > 0.6 {
		t.Errorf("expected ~0.5 level, got %f", got)
	}

	quiet := make([]int16, 100)
	if got := rmsLevel(quiet); got != 0 {
		t.Errorf("silent chunk should have zero level, got %f", got)
	}
}
