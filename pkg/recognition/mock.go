package recognition

import (
	"context"
	"sync"
	"time"
)

// MockRecognizer is a scriptable Recognizer for tests. Sessions are driven
// with the Simulate helpers; the terminal-event contract is preserved.
type MockRecognizer struct {
	// Unsupported makes StartListening fail with ErrUnsupported.
	Unsupported bool

	// StartCalls counts StartListening invocations.
	StartCalls int

	mu        sync.Mutex
	listening bool
	events    chan Event
}

// NewMockRecognizer creates a new mock recognizer.
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{}
}

// StartListening begins a scripted session.
func (m *MockRecognizer) StartListening(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartCalls++
	if m.Unsupported {
		return nil, ErrUnsupported
	}
	if m.listening {
		return nil, ErrAlreadyListening
	}

	m.listening = true
	m.events = make(chan Event, 16)
	return m.events, nil
}

// StopListening ends the session with Ended (no transcript was scripted).
func (m *MockRecognizer) StopListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return ErrNotListening
	}
	m.terminate(Event{Type: EventEnded})
	return nil
}

// Abort ends the session with Ended and no transcript.
func (m *MockRecognizer) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return ErrNotListening
	}
	m.terminate(Event{Type: EventEnded})
	return nil
}

// SimulateInterim emits an interim progress event.
func (m *MockRecognizer) SimulateInterim(elapsed time.Duration, level float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return false
	}
	m.events <- Event{Type: EventInterim, Elapsed: elapsed, Level: level}
	return true
}

// SimulateFinal emits the final transcript and terminates the stream.
func (m *MockRecognizer) SimulateFinal(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return false
	}
	m.events <- Event{Type: EventFinal, Text: text}
	m.terminate(Event{Type: EventEnded})
	return true
}

// SimulateError terminates the stream with an error event.
func (m *MockRecognizer) SimulateError(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return false
	}
	m.terminate(Event{Type: EventError, Err: err})
	return true
}

// terminate must be called with the lock held.
func (m *MockRecognizer) terminate(ev Event) {
	m.events <- ev
	close(m.events)
	m.listening = false
}

// Listening reports whether a scripted session is active.
func (m *MockRecognizer) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

var _ Recognizer = (*MockRecognizer)(nil)
