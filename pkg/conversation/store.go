// Package conversation holds the client-side session state: the backend
// session id and the ordered message log.
//
// The log is append-only. The only way to empty it is Clear, which swaps
// the backend session atomically from the caller's point of view: either
// the old session is deleted and a fresh one exists, or nothing changed.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotInitialized is returned when the store has no session yet.
	ErrNotInitialized = errors.New("conversation: store not initialized")

	// ErrEmptyContent is returned when appending a message with no content.
	ErrEmptyContent = errors.New("conversation: message content is empty")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation log.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// SessionAPI is the slice of the backend client the store needs.
// *api.Client satisfies this.
type SessionAPI interface {
	CreateSession(ctx context.Context) (string, error)
	ClearConversation(ctx context.Context, sessionID string) error
}

// Store owns the session id, the message log and the epoch counter.
// All methods are safe for concurrent use.
type Store struct {
	client SessionAPI
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	sessionID string
	messages  []Message
	epoch     uint64

	initOnce sync.Once
	initErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// withClock overrides the timestamp source, for tests.
func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over the given session API.
func NewStore(client SessionAPI, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("conversation: session API is required")
	}

	s := &Store{
		client: client,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "conversation")
	return s, nil
}

// Init creates the backend session. It runs at most once per Store;
// subsequent calls return the first call's result without any effect.
func (s *Store) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		sessionID, err := s.client.CreateSession(ctx)
		if err != nil {
			s.initErr = fmt.Errorf("conversation: create session: %w", err)
			return
		}

		s.mu.Lock()
		s.sessionID = sessionID
		s.messages = nil
		s.mu.Unlock()

		s.logger.Info("session initialized", "session_id", sessionID)
	})
	return s.initErr
}

// SessionID returns the current backend session id, or "" before Init.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Epoch returns the clear-generation counter. It increments only on a
// successful Clear; callers snapshot it before a round trip and discard
// the result if it changed.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// AddMessage appends a message with a fresh timestamp.
func (s *Store) AddMessage(role Role, content string) (Message, error) {
	if content == "" {
		return Message{}, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID == "" {
		return Message{}, ErrNotInitialized
	}

	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// Messages returns a copy of the log in append order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear deletes the backend session, creates a fresh one and empties the
// log. On any failure the previous session and log are left untouched.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.RLock()
	oldSession := s.sessionID
	s.mu.RUnlock()

	if oldSession == "" {
		return ErrNotInitialized
	}

	if err := s.client.ClearConversation(ctx, oldSession); err != nil {
		return fmt.Errorf("conversation: clear session: %w", err)
	}

	newSession, err := s.client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("conversation: recreate session: %w", err)
	}

	s.mu.Lock()
	s.sessionID = newSession
	s.messages = nil
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.logger.Info("conversation cleared",
		"old_session", oldSession,
		"new_session", newSession,
		"epoch", epoch,
	)
	return nil
}
