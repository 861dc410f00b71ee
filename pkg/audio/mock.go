package audio

import (
	"context"
	"sync"
)

// MockPlayer is a Player for tests. Play blocks until Cancel,
// FinishPlayback or context cancellation.
type MockPlayer struct {
	// PlayErr, when set, is returned immediately by Play.
	PlayErr error

	mu       sync.Mutex
	playing  bool
	playedN  int
	lastData []byte
	doneCh   chan struct{}
}

// NewMockPlayer creates a new mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Play records the payload and blocks until released.
func (m *MockPlayer) Play(ctx context.Context, data []byte) error {
	m.mu.Lock()
	if m.PlayErr != nil {
		m.mu.Unlock()
		return m.PlayErr
	}
	m.playing = true
	m.playedN++
	m.lastData = data
	m.doneCh = make(chan struct{})
	done := m.doneCh
	m.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-done:
	}

	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
	return nil
}

// Cancel releases a blocked Play.
func (m *MockPlayer) Cancel() {
	m.FinishPlayback()
}

// FinishPlayback simulates natural end of playback.
func (m *MockPlayer) FinishPlayback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doneCh != nil {
		select {
		case <-m.doneCh:
		default:
			close(m.doneCh)
		}
	}
}

// Playing reports whether a Play call is blocked.
func (m *MockPlayer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// PlayCount returns how many times Play was called.
func (m *MockPlayer) PlayCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playedN
}

// LastData returns the payload from the most recent Play call.
func (m *MockPlayer) LastData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastData
}

var _ Player = (*MockPlayer)(nil)
