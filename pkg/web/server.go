// Package web serves the chat widget surface: a JSON API mirroring the
// orchestrator's intents plus a websocket pushing state snapshots.
package web

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/spike-crypto/voicebot/pkg/conversation"
	"github.com/spike-crypto/voicebot/pkg/hub"
	"github.com/spike-crypto/voicebot/pkg/voice"
)

// State is the widget-facing snapshot pushed on every change.
type State struct {
	Status     voice.Status           `json:"status"`
	SessionID  string                 `json:"session_id"`
	Transcript string                 `json:"transcript"`
	Error      *ErrorView             `json:"error,omitempty"`
	Messages   []conversation.Message `json:"messages"`
}

// ErrorView is the user-facing rendering of a pipeline error.
type ErrorView struct {
	Message      string `json:"message"`
	SwitchToText bool   `json:"switch_to_text"`
}

// Server is the widget server.
type Server struct {
	app    *fiber.App
	orch   *voice.Orchestrator
	logger *slog.Logger

	stateHub *hub.Hub

	mu    sync.Mutex
	level float64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates the widget server over an orchestrator. The server
// installs the orchestrator callbacks; it is the single consumer of its
// notifications.
func NewServer(orch *voice.Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:   orch,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.stateHub = hub.New("state", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "voicebot widget",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/chat", s.handleChat)
	api.Post("/listen/start", s.handleListenStart)
	api.Post("/listen/stop", s.handleListenStop)
	api.Post("/listen/cancel", s.handleListenCancel)
	api.Post("/record/start", s.handleRecordStart)
	api.Post("/record/stop", s.handleRecordStop)
	api.Post("/record/cancel", s.handleRecordCancel)
	api.Post("/speak/stop", s.handleSpeakStop)
	api.Post("/session/clear", s.handleSessionClear)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleStateWS))

	s.app = app

	orch.SetCallbacks(voice.Callbacks{
		OnStatusChange: func(voice.Status) { s.broadcastState() },
		OnTranscript:   func(string) { s.broadcastState() },
		OnMessage:      func(string, string) { s.broadcastState() },
		OnError:        func(*voice.UserError) { s.broadcastState() },
		OnLevel: func(level float64) {
			s.mu.Lock()
			s.level = level
			s.mu.Unlock()
		},
	})
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on the given address, blocking.
func (s *Server) Listen(addr string) error {
	go s.stateHub.Run()
	s.logger.Info("widget server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// snapshot assembles the current widget state.
func (s *Server) snapshot() State {
	st := State{
		Status:     s.orch.Status(),
		SessionID:  s.orch.Store().SessionID(),
		Transcript: s.orch.Transcript(),
		Messages:   s.orch.Store().Messages(),
	}
	if uerr := s.orch.LastError(); uerr != nil {
		st.Error = &ErrorView{
			Message:      uerr.Message,
			SwitchToText: uerr.SwitchToText,
		}
	}
	return st
}

// broadcastState pushes a fresh snapshot to every websocket client.
func (s *Server) broadcastState() {
	if err := s.stateHub.BroadcastJSON(s.snapshot()); err != nil {
		s.logger.Warn("state broadcast failed", "error", err)
	}
}
