package api

// SessionResult is the response to a session creation request.
type SessionResult struct {
	SessionID string `json:"session_id"`
}

// ChatResult is the assistant reply to one chat turn.
type ChatResult struct {
	Response string `json:"response"`

	// LatencyMs is the round-trip time measured client side.
	LatencyMs int64 `json:"-"`
}

// TranscribeResult is the transcription of an uploaded audio artifact.
type TranscribeResult struct {
	Text string `json:"text"`

	// Confidence is optional and backend dependent.
	Confidence float64 `json:"confidence,omitempty"`

	// DurationSeconds is the audio duration as reported by the backend.
	DurationSeconds float64 `json:"duration,omitempty"`
}

// SpeechResult is a synthesized audio blob.
type SpeechResult struct {
	// Audio is the raw encoded audio returned by the backend.
	Audio []byte

	// ContentType is the MIME type reported by the backend
	// (typically audio/mpeg).
	ContentType string

	// LatencyMs is the round-trip time measured client side.
	LatencyMs int64
}

// ProcessResult is the combined response of the one-shot voice endpoint:
// transcription plus assistant reply, with an optional pre-synthesized
// audio reference.
type ProcessResult struct {
	TranscribedText string `json:"transcribed_text"`
	ResponseText    string `json:"response_text"`
	AudioURL        string `json:"audio_url,omitempty"`
}

// HistoryMessage is one entry of a server-side conversation history.
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ConversationResult is the server-side view of a session's history.
type ConversationResult struct {
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
}

// HealthResult is the backend health report.
type HealthResult struct {
	Status string `json:"status"`
}
