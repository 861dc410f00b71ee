package web

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/spike-crypto/voicebot/pkg/hub"
	"github.com/spike-crypto/voicebot/pkg/recorder"
	"github.com/spike-crypto/voicebot/pkg/voice"
)

type chatRequest struct {
	Text string `json:"text"`
}

// handleState returns the current widget state.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

// handleChat runs one typed turn and returns the resulting state.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	if err := s.orch.SubmitText(c.Context(), req.Text); err != nil {
		return s.intentError(c, err)
	}
	return c.JSON(s.snapshot())
}

// handleListenStart begins a hands-free voice turn. The pipeline
// outlives this request, so it runs on a background context.
func (s *Server) handleListenStart(c *fiber.Ctx) error {
	if err := s.orch.StartListening(context.Background()); err != nil {
		return s.intentError(c, err)
	}
	return c.JSON(s.snapshot())
}

func (s *Server) handleListenStop(c *fiber.Ctx) error {
	if err := s.orch.StopListening(); err != nil {
		s.logger.Debug("listen stop ignored", "error", err)
	}
	return c.JSON(s.snapshot())
}

func (s *Server) handleListenCancel(c *fiber.Ctx) error {
	if err := s.orch.CancelListening(); err != nil {
		s.logger.Debug("listen cancel ignored", "error", err)
	}
	return c.JSON(s.snapshot())
}

// handleRecordStart begins a push-to-talk take. Like listening, the
// take outlives this request.
func (s *Server) handleRecordStart(c *fiber.Ctx) error {
	if err := s.orch.StartRecording(context.Background()); err != nil {
		return s.intentError(c, err)
	}
	return c.JSON(s.snapshot())
}

// handleRecordStop finishes the take and runs the combined round trip
// before responding, so the snapshot already carries both messages.
func (s *Server) handleRecordStop(c *fiber.Ctx) error {
	if err := s.orch.StopRecording(context.Background()); err != nil {
		return s.intentError(c, err)
	}
	return c.JSON(s.snapshot())
}

func (s *Server) handleRecordCancel(c *fiber.Ctx) error {
	if err := s.orch.CancelRecording(); err != nil {
		s.logger.Debug("record cancel ignored", "error", err)
	}
	return c.JSON(s.snapshot())
}

func (s *Server) handleSpeakStop(c *fiber.Ctx) error {
	s.orch.StopSpeaking()
	return c.JSON(s.snapshot())
}

// handleSessionClear resets the conversation. A backend failure is
// reported but chatting stays possible on the old session.
func (s *Server) handleSessionClear(c *fiber.Ctx) error {
	if err := s.orch.Clear(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "clear failed, conversation unchanged",
			"state": s.snapshot(),
		})
	}
	return c.JSON(s.snapshot())
}

// handleStateWS attaches a websocket client to the state hub and sends
// it the current snapshot immediately.
func (s *Server) handleStateWS(conn *websocket.Conn) {
	client := hub.NewClient(s.stateHub, conn)
	s.broadcastState()
	client.Run()
}

// intentError maps orchestrator failures onto HTTP responses.
func (s *Server) intentError(c *fiber.Ctx, err error) error {
	if errors.Is(err, voice.ErrBusy) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "another turn is in progress",
		})
	}
	if errors.Is(err, recorder.ErrNotRecording) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "no recording in progress",
		})
	}

	var uerr *voice.UserError
	if errors.As(err, &uerr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":          uerr.Message,
			"switch_to_text": uerr.SwitchToText,
		})
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
