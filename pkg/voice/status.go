// Package voice orchestrates the conversation pipeline: listening,
// transcription, chat, synthesis and playback.
//
// An Orchestrator drives exactly one pipeline at a time. Intents that
// would start a second pipeline while one is in flight are rejected with
// ErrBusy; control intents (stop listening, stop speaking, clear) are
// always accepted.
package voice

import "errors"

// ErrBusy is returned when an intent would start a second pipeline.
var ErrBusy = errors.New("voice: pipeline already in flight")

// Status is the orchestrator's externally visible state.
type Status string

const (
	// StatusIdle means no pipeline is running.
	StatusIdle Status = "idle"
	// StatusListening means the microphone is capturing.
	StatusListening Status = "listening"
	// StatusProcessing means a chat round trip is in flight.
	StatusProcessing Status = "processing"
	// StatusGenerating means speech synthesis is in flight.
	StatusGenerating Status = "generating"
	// StatusSpeaking means synthesized audio is playing.
	StatusSpeaking Status = "speaking"
	// StatusError is a transient state surfaced just before returning
	// to idle. It never sticks.
	StatusError Status = "error"
)

// UserError is an error translated for display. Every failure crossing
// the orchestrator boundary becomes exactly one of these.
type UserError struct {
	// Message is the user-facing text.
	Message string

	// SwitchToText suggests falling back to typed input.
	SwitchToText bool

	// Err is the underlying error.
	Err error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

// Callbacks groups the orchestrator's notifications. All fields are
// optional; callbacks fire on pipeline goroutines and must not block.
type Callbacks struct {
	// OnStatusChange fires on every status transition.
	OnStatusChange func(status Status)

	// OnTranscript fires when the final transcript for an utterance is
	// known, before the chat round trip.
	OnTranscript func(text string)

	// OnLevel fires with capture progress while listening.
	OnLevel func(level float64)

	// OnMessage fires when a message is appended to the conversation.
	OnMessage func(role, content string)

	// OnError fires once per surfaced failure.
	OnError func(err *UserError)
}
