// Package api is a typed client for the chatbot backend HTTP contract.
//
// Every operation is a single request/response round trip. The client never
// retries on its own: rate limits, server errors and transport failures
// propagate immediately so the caller can surface them and let the user
// decide to retry. Once a session source is attached, every request carries
// the current session id in the X-Session-ID header.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spike-crypto/voicebot/internal/httpc"
)

// Header names used by the backend contract.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderRequestID = "X-Request-ID"
)

// SessionSource supplies the current session id for outgoing requests.
// It may return "" before a session exists.
type SessionSource func() string

// Client talks to the chatbot backend. It is stateless apart from the
// attached session source and safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	session SessionSource
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http = httpc.NewClient(timeout)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With("component", "api.client")
	}
}

// WithSessionSource attaches the session id supplier.
func WithSessionSource(src SessionSource) Option {
	return func(c *Client) {
		c.session = src
	}
}

// NewClient creates a new backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpc.Client,
		logger:  slog.Default().With("component", "api.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSessionSource attaches the session id supplier after construction.
// Used to break the construction cycle with the conversation store.
func (c *Client) SetSessionSource(src SessionSource) {
	c.session = src
}

// CreateSession asks the backend for a fresh session id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	resp, err := c.postJSON(ctx, "create_session", "/session", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.parseError("create_session", resp)
	}

	var result SessionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError("create_session", fmt.Errorf("decode response: %w", err))
	}
	if result.SessionID == "" {
		return "", WrapError("create_session", fmt.Errorf("backend returned empty session id"))
	}

	c.logger.Debug("session created", "session_id", result.SessionID)
	return result.SessionID, nil
}

// ClearConversation deletes the server-side state of a session.
func (c *Client) ClearConversation(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	req, err := c.newRequest(ctx, http.MethodDelete, "/conversation/"+sessionID, nil, "")
	if err != nil {
		return WrapError("clear_conversation", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError("clear_conversation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError("clear_conversation", resp)
	}
	return nil
}

// GetConversation fetches the server-side message history of a session.
func (c *Client) GetConversation(ctx context.Context, sessionID string) (*ConversationResult, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/conversation/"+sessionID, nil, "")
	if err != nil {
		return nil, WrapError("get_conversation", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, WrapError("get_conversation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError("get_conversation", resp)
	}

	var result ConversationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError("get_conversation", fmt.Errorf("decode response: %w", err))
	}
	return &result, nil
}

// Chat sends one text turn and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, text, sessionID string) (*ChatResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	payload := map[string]string{
		"text":       text,
		"session_id": sessionID,
	}

	resp, err := c.postJSON(ctx, "chat", "/chat", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError("chat", resp)
	}

	var result ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError("chat", fmt.Errorf("decode response: %w", err))
	}
	result.LatencyMs = time.Since(start).Milliseconds()

	c.logger.Debug("chat turn complete",
		"chars_in", len(text),
		"chars_out", len(result.Response),
		"latency_ms", result.LatencyMs,
	)
	return &result, nil
}

// Transcribe uploads an audio artifact and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (*TranscribeResult, error) {
	resp, err := c.postAudio(ctx, "transcribe", "/transcribe", filename, audio, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError("transcribe", resp)
	}

	var result TranscribeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError("transcribe", fmt.Errorf("decode response: %w", err))
	}
	return &result, nil
}

// Synthesize converts text to speech and returns the audio blob.
func (c *Client) Synthesize(ctx context.Context, text string) (*SpeechResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	resp, err := c.postJSON(ctx, "tts", "/tts", map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError("tts", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError("tts", fmt.Errorf("read audio: %w", err))
	}

	result := &SpeechResult{
		Audio:       audio,
		ContentType: resp.Header.Get("Content-Type"),
		LatencyMs:   time.Since(start).Milliseconds(),
	}

	c.logger.Debug("speech synthesized",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

// ProcessVoice uploads an audio artifact and performs transcription plus one
// chat turn in a single round trip.
func (c *Client) ProcessVoice(ctx context.Context, filename string, audio []byte, sessionID string) (*ProcessResult, error) {
	resp, err := c.postAudio(ctx, "process_voice", "/process", filename, audio, sessionID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError("process_voice", resp)
	}

	var result ProcessResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError("process_voice", fmt.Errorf("decode response: %w", err))
	}
	return &result, nil
}

// Health checks backend connectivity.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return WrapError("health", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError("health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError("health", resp)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// newRequest builds a request with the standard headers applied.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if c.session != nil {
		if id := c.session(); id != "" {
			req.Header.Set(HeaderSessionID, id)
		}
	}
	return req, nil
}

// postJSON sends a JSON payload. A nil payload sends an empty body.
func (c *Client) postJSON(ctx context.Context, op, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, WrapError(op, fmt.Errorf("marshal payload: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return nil, WrapError(op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, WrapError(op, err)
	}
	return resp, nil
}

// postAudio uploads an audio artifact as multipart form data under the
// "audio" field. A non-empty sessionID is added as a form field as well.
func (c *Client) postAudio(ctx context.Context, op, path, filename string, audio []byte, sessionID string) (*http.Response, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if filename == "" {
		filename = "recording.wav"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return nil, WrapError(op, fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(audio); err != nil {
		return nil, WrapError(op, fmt.Errorf("write audio: %w", err))
	}
	if sessionID != "" {
		if err := w.WriteField("session_id", sessionID); err != nil {
			return nil, WrapError(op, fmt.Errorf("write session field: %w", err))
		}
	}
	if err := w.Close(); err != nil {
		return nil, WrapError(op, fmt.Errorf("close multipart writer: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, w.FormDataContentType())
	if err != nil {
		return nil, WrapError(op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, WrapError(op, err)
	}
	return resp, nil
}

// parseError reads and parses an error response body.
func (c *Client) parseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	message := strings.TrimSpace(string(body))

	// Backend errors come as {"error": "..."} or {"error": {"message": "..."}}.
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		message = flat.Error
	} else {
		var nested struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
			message = nested.Error.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Operation:  op,
	}
}
