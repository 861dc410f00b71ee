package voice

import (
	"errors"

	"github.com/spike-crypto/voicebot/pkg/api"
	"github.com/spike-crypto/voicebot/pkg/recognition"
	"github.com/spike-crypto/voicebot/pkg/recorder"
)

// translate maps an internal failure onto the single user-facing error
// that crosses the orchestrator boundary.
func translate(err error) *UserError {
	switch {
	case api.IsRateLimited(err):
		return &UserError{
			Message: "I'm receiving a lot of requests right now. Please wait a moment and try again.",
			Err:     err,
		}
	case errors.Is(err, recognition.ErrUnsupported):
		return &UserError{
			Message:      "Voice input isn't available here. You can type your message instead.",
			SwitchToText: true,
			Err:          err,
		}
	case errors.Is(err, recorder.ErrPermissionDenied):
		return &UserError{
			Message:      "Microphone access was denied. Check your permissions, or type your message instead.",
			SwitchToText: true,
			Err:          err,
		}
	case errors.Is(err, recorder.ErrDeviceUnavailable):
		return &UserError{
			Message:      "No microphone was found. You can type your message instead.",
			SwitchToText: true,
			Err:          err,
		}
	case errors.Is(err, recognition.ErrRecognitionFailed):
		return &UserError{
			Message:      "I couldn't make out what was said. Please try again, or type your message.",
			SwitchToText: true,
			Err:          err,
		}
	case api.IsNetworkError(err):
		return &UserError{
			Message: "I couldn't reach the assistant. Check your connection and try again.",
			Err:     err,
		}
	default:
		return &UserError{
			Message: "Something went wrong. Please try again.",
			Err:     err,
		}
	}
}

// translateVoice translates a failure that happened inside a voice turn.
// Whatever went wrong, typing remains available, so the fallback is
// always offered.
func translateVoice(err error) *UserError {
	uerr := translate(err)
	uerr.SwitchToText = true
	return uerr
}
