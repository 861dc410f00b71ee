package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spike-crypto/voicebot/pkg/api"
	"github.com/spike-crypto/voicebot/pkg/audio"
	"github.com/spike-crypto/voicebot/pkg/conversation"
	"github.com/spike-crypto/voicebot/pkg/recognition"
	"github.com/spike-crypto/voicebot/pkg/recorder"
)

// ChatAPI is the slice of the backend client the orchestrator needs.
// *api.Client satisfies this.
type ChatAPI interface {
	Chat(ctx context.Context, text, sessionID string) (*api.ChatResult, error)
	Synthesize(ctx context.Context, text string) (*api.SpeechResult, error)
	ProcessVoice(ctx context.Context, filename string, audio []byte, sessionID string) (*api.ProcessResult, error)
}

// Capture is the push-to-talk recorder surface. *recorder.Recorder
// satisfies this.
type Capture interface {
	Start(ctx context.Context) error
	Stop() (*recorder.Artifact, error)
	Cancel() error
}

// Orchestrator drives the conversation pipeline. Construct one per
// conversation.Store; all methods are safe for concurrent use.
type Orchestrator struct {
	client     ChatAPI
	store      *conversation.Store
	recognizer recognition.Recognizer
	player     audio.Player
	capture    Capture
	logger     *slog.Logger
	metrics    *MetricsCollector
	callbacks  Callbacks

	mu         sync.Mutex
	status     Status
	busy       bool
	recording  bool
	transcript string
	lastErr    *UserError
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecognizer enables hands-free voice input.
func WithRecognizer(r recognition.Recognizer) Option {
	return func(o *Orchestrator) { o.recognizer = r }
}

// WithPlayer enables spoken responses.
func WithPlayer(p audio.Player) Option {
	return func(o *Orchestrator) { o.player = p }
}

// WithCapture enables the push-to-talk flow.
func WithCapture(c Capture) Option {
	return func(o *Orchestrator) { o.capture = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates an Orchestrator over the given backend client and store.
func New(client ChatAPI, store *conversation.Store, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("voice: chat API is required")
	}
	if store == nil {
		return nil, fmt.Errorf("voice: conversation store is required")
	}

	o := &Orchestrator{
		client:  client,
		store:   store,
		logger:  slog.Default(),
		metrics: NewMetricsCollector(),
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "voice")
	return o, nil
}

// SetCallbacks installs the notification set. Call before starting
// any pipeline.
func (o *Orchestrator) SetCallbacks(cb Callbacks) {
	o.callbacks = cb
}

// Status returns the current pipeline status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Transcript returns the most recent final transcript.
func (o *Orchestrator) Transcript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript
}

// LastError returns the most recently surfaced error, or nil.
func (o *Orchestrator) LastError() *UserError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Metrics returns the latency collector.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Store returns the conversation store this orchestrator drives.
func (o *Orchestrator) Store() *conversation.Store {
	return o.store
}

// StartListening begins a hands-free voice turn. Rejected with ErrBusy
// while a pipeline is in flight; an unsupported backend never enters the
// listening state.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	if o.recognizer == nil {
		uerr := translateVoice(recognition.ErrUnsupported)
		o.surface(uerr)
		return uerr
	}
	if err := o.begin(); err != nil {
		return err
	}

	events, err := o.recognizer.StartListening(ctx)
	if err != nil {
		o.end()
		uerr := translateVoice(err)
		o.surface(uerr)
		return uerr
	}

	o.setStatus(StatusListening)
	go o.consume(ctx, events)
	return nil
}

// consume drains one recognition stream and runs the voice turn if a
// transcript arrives.
func (o *Orchestrator) consume(ctx context.Context, events <-chan recognition.Event) {
	defer o.end()

	var finalText string
	var failure error

	for ev := range events {
		switch ev.Type {
		case recognition.EventInterim:
			if o.callbacks.OnLevel != nil {
				o.callbacks.OnLevel(ev.Level)
			}
		case recognition.EventFinal:
			finalText = ev.Text
		case recognition.EventError:
			failure = ev.Err
		case recognition.EventEnded:
		}
	}

	switch {
	case failure != nil:
		o.surface(translateVoice(failure))
		o.setStatus(StatusIdle)
	case finalText != "":
		o.metrics.MarkSpeechEnd()
		o.voiceTurn(ctx, finalText)
	default:
		// Cancelled or nothing was said.
		o.setStatus(StatusIdle)
	}
}

// voiceTurn runs transcript → chat → synthesis → playback.
func (o *Orchestrator) voiceTurn(ctx context.Context, text string) {
	o.mu.Lock()
	o.transcript = text
	o.mu.Unlock()
	if o.callbacks.OnTranscript != nil {
		o.callbacks.OnTranscript(text)
	}
	o.metrics.MarkTranscript()

	o.setStatus(StatusProcessing)

	// The user message lands before the chat call so a failed round trip
	// never loses what was said.
	epoch := o.store.Epoch()
	o.appendMessage(conversation.RoleUser, text)

	result, err := o.client.Chat(ctx, text, o.store.SessionID())
	if err != nil {
		o.surface(translateVoice(err))
		o.setStatus(StatusIdle)
		return
	}
	o.metrics.MarkChatDone()

	if o.stale(epoch, "chat") {
		o.setStatus(StatusIdle)
		return
	}
	o.appendMessage(conversation.RoleAssistant, result.Response)

	o.speak(ctx, epoch, result.Response)
}

// speak synthesizes and plays a response, honoring the epoch guard.
func (o *Orchestrator) speak(ctx context.Context, epoch uint64, text string) {
	if o.player == nil {
		o.setStatus(StatusIdle)
		return
	}

	o.setStatus(StatusGenerating)
	speech, err := o.client.Synthesize(ctx, text)
	if err != nil {
		// The text answer is already in the log; losing the audio is
		// not fatal.
		o.surface(translateVoice(err))
		o.setStatus(StatusIdle)
		return
	}
	o.metrics.MarkSynthesisDone()

	if o.stale(epoch, "synthesize") {
		o.setStatus(StatusIdle)
		return
	}

	o.setStatus(StatusSpeaking)
	if err := o.player.Play(ctx, speech.Audio); err != nil {
		o.surface(translateVoice(err))
	}
	o.metrics.MarkTurnDone()
	o.setStatus(StatusIdle)
}

// StopListening ends capture early; the transcript still goes through.
func (o *Orchestrator) StopListening() error {
	if o.recognizer == nil {
		return recognition.ErrNotListening
	}
	return o.recognizer.StopListening()
}

// CancelListening abandons the current utterance. No message is
// appended and the pipeline returns straight to idle.
func (o *Orchestrator) CancelListening() error {
	if o.recognizer == nil {
		return recognition.ErrNotListening
	}
	o.mu.Lock()
	o.transcript = ""
	o.mu.Unlock()
	return o.recognizer.Abort()
}

// SubmitText runs one typed turn: idle → processing → idle. Text turns
// never synthesize audio.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) error {
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	o.setStatus(StatusProcessing)

	epoch := o.store.Epoch()
	if _, err := o.store.AddMessage(conversation.RoleUser, text); err != nil {
		uerr := translate(err)
		o.surface(uerr)
		o.setStatus(StatusIdle)
		return uerr
	}
	o.notifyMessage(conversation.RoleUser, text)

	result, err := o.client.Chat(ctx, text, o.store.SessionID())
	if err != nil {
		uerr := translate(err)
		o.surface(uerr)
		o.setStatus(StatusIdle)
		return uerr
	}

	if o.stale(epoch, "chat") {
		o.setStatus(StatusIdle)
		return nil
	}
	o.appendMessage(conversation.RoleAssistant, result.Response)
	o.setStatus(StatusIdle)
	return nil
}

// StopSpeaking cuts playback immediately. Safe to call in any state.
func (o *Orchestrator) StopSpeaking() {
	if o.player != nil {
		o.player.Cancel()
	}
}

// Clear resets the conversation from any state: listening is aborted,
// playback stops, the store swaps sessions, transcript and error are
// discarded. A failed backend clear is logged and does not block
// further chatting.
func (o *Orchestrator) Clear(ctx context.Context) error {
	if o.recognizer != nil {
		o.recognizer.Abort()
	}
	if o.player != nil {
		o.player.Cancel()
	}

	err := o.store.Clear(ctx)
	if err != nil {
		o.logger.Warn("conversation clear failed", "error", err)
	}

	o.mu.Lock()
	o.transcript = ""
	o.lastErr = nil
	o.mu.Unlock()

	o.setStatus(StatusIdle)
	return err
}

// StartRecording begins a push-to-talk take.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	if o.capture == nil {
		uerr := translateVoice(recognition.ErrUnsupported)
		o.surface(uerr)
		return uerr
	}
	if err := o.begin(); err != nil {
		return err
	}

	if err := o.capture.Start(ctx); err != nil {
		o.end()
		uerr := translateVoice(err)
		o.surface(uerr)
		return uerr
	}

	o.mu.Lock()
	o.recording = true
	o.mu.Unlock()
	o.setStatus(StatusListening)
	return nil
}

// StopRecording finishes the take and runs the combined round trip:
// one upload transcribes, answers and (when a player is attached)
// speaks the reply.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	o.mu.Lock()
	if !o.recording {
		o.mu.Unlock()
		return recorder.ErrNotRecording
	}
	o.recording = false
	o.mu.Unlock()
	defer o.end()

	artifact, err := o.capture.Stop()
	if err != nil {
		uerr := translateVoice(err)
		o.surface(uerr)
		o.setStatus(StatusIdle)
		return uerr
	}

	o.metrics.MarkSpeechEnd()
	o.setStatus(StatusProcessing)

	epoch := o.store.Epoch()
	result, err := o.client.ProcessVoice(ctx, "recording.wav", artifact.WAV, o.store.SessionID())
	if err != nil {
		uerr := translateVoice(err)
		o.surface(uerr)
		o.setStatus(StatusIdle)
		return uerr
	}
	o.metrics.MarkChatDone()

	if o.stale(epoch, "process") {
		o.setStatus(StatusIdle)
		return nil
	}

	o.mu.Lock()
	o.transcript = result.TranscribedText
	o.mu.Unlock()
	if o.callbacks.OnTranscript != nil {
		o.callbacks.OnTranscript(result.TranscribedText)
	}

	o.appendMessage(conversation.RoleUser, result.TranscribedText)
	o.appendMessage(conversation.RoleAssistant, result.ResponseText)

	o.speak(ctx, epoch, result.ResponseText)
	return nil
}

// CancelRecording abandons the take; nothing is uploaded or appended.
func (o *Orchestrator) CancelRecording() error {
	o.mu.Lock()
	if !o.recording {
		o.mu.Unlock()
		return recorder.ErrNotRecording
	}
	o.recording = false
	o.mu.Unlock()

	err := o.capture.Cancel()
	o.setStatus(StatusIdle)
	o.end()
	return err
}

// begin claims the single pipeline slot.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy
	}
	o.busy = true
	return nil
}

// end releases the pipeline slot.
func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// stale reports whether the store epoch moved during a round trip,
// meaning the result belongs to a cleared conversation.
func (o *Orchestrator) stale(epoch uint64, stage string) bool {
	if o.store.Epoch() == epoch {
		return false
	}
	o.logger.Info("discarding stale result", "stage", stage, "epoch", epoch)
	return true
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	if o.status == s {
		o.mu.Unlock()
		return
	}
	o.status = s
	o.mu.Unlock()

	if o.callbacks.OnStatusChange != nil {
		o.callbacks.OnStatusChange(s)
	}
}

// surface delivers a failure to the user exactly once: error status
// flashes, the callback fires, then the pipeline settles back to idle.
// The error state never sticks.
func (o *Orchestrator) surface(uerr *UserError) {
	o.mu.Lock()
	o.lastErr = uerr
	o.mu.Unlock()

	o.logger.Error("pipeline error", "error", uerr.Err, "user_message", uerr.Message)
	o.setStatus(StatusError)
	if o.callbacks.OnError != nil {
		o.callbacks.OnError(uerr)
	}
	o.setStatus(StatusIdle)
}

// appendMessage adds to the log and notifies; append failures are logged,
// not surfaced, to keep the turn moving.
func (o *Orchestrator) appendMessage(role conversation.Role, content string) {
	if content == "" {
		return
	}
	if _, err := o.store.AddMessage(role, content); err != nil {
		o.logger.Warn("message append failed", "role", role, "error", err)
		return
	}
	o.notifyMessage(role, content)
}

func (o *Orchestrator) notifyMessage(role conversation.Role, content string) {
	if o.callbacks.OnMessage != nil {
		o.callbacks.OnMessage(string(role), content)
	}
}
