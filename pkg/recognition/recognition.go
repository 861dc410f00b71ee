// Package recognition turns microphone audio into transcripts.
//
// A Recognizer exposes one typed event stream per listening session.
// The stream carries Interim progress while capture runs, at most one
// Final transcript, and always terminates with Ended or Error; consumers
// can range over the channel without extra bookkeeping.
package recognition

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnsupported is returned by StartListening when no capture
	// backend is available. Callers should fall back to text input.
	ErrUnsupported = errors.New("recognition: speech recognition unsupported")

	// ErrAlreadyListening is returned when a listening session is active.
	ErrAlreadyListening = errors.New("recognition: already listening")

	// ErrNotListening is returned by StopListening when idle.
	ErrNotListening = errors.New("recognition: not listening")
)

// EventType discriminates recognition events.
type EventType string

const (
	// EventInterim reports capture progress while listening.
	EventInterim EventType = "interim"
	// EventFinal carries the final transcript for the utterance.
	EventFinal EventType = "final"
	// EventError reports a failure; it is terminal.
	EventError EventType = "error"
	// EventEnded marks the end of the stream; it is terminal.
	EventEnded EventType = "ended"
)

// Event is one item on a recognition stream.
//
// Exactly one terminal event (Error or Ended) is delivered per session,
// after which the channel is closed. A Final event, if any, precedes Ended.
type Event struct {
	Type EventType

	// Text is the transcript. Set on Final events.
	Text string

	// Elapsed is how long the session has been capturing. Set on Interim.
	Elapsed time.Duration

	// Level is the current input level (RMS, 0..1). Set on Interim.
	Level float64

	// Err is the failure that ended the session. Set on Error events.
	Err error
}

// Recognizer runs listening sessions.
type Recognizer interface {
	// StartListening begins a session and returns its event stream.
	// Returns ErrUnsupported when no backend is available and
	// ErrAlreadyListening when a session is active.
	StartListening(ctx context.Context) (<-chan Event, error)

	// StopListening asks the active session to finish early. The stream
	// still terminates normally (Final if anything was captured, then
	// Ended). Returns ErrNotListening when idle.
	StopListening() error

	// Abort tears down the active session without producing a transcript.
	// The stream ends with Ended and no Final. Returns ErrNotListening
	// when idle.
	Abort() error
}
