// Package realtime is the optional websocket channel to the backend.
// It is best-effort: the HTTP pipeline works without it, and failures
// here are logged rather than propagated.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is returned when the channel is down.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("realtime: already connected")
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Envelope is the wire format for both directions.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Handler consumes one inbound event payload.
type Handler func(data json.RawMessage)

// Client is a websocket client with a single writer goroutine.
type Client struct {
	url    string
	logger *slog.Logger
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	handlers  map[string]Handler
	sendCh    chan Envelope
	closeCh   chan struct{}
	connected bool

	// OnDisconnect fires when the connection drops for any reason.
	OnDisconnect func(err error)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a client for the given ws:// or wss:// URL.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:      url,
		logger:   slog.Default(),
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "realtime")
	return c
}

// On registers a handler for an inbound event type. Call before Connect.
func (c *Client) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

// Connect dials the backend and starts the read and write pumps.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.sendCh = make(chan Envelope, 64)
	c.closeCh = make(chan struct{})
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()

	c.logger.Info("connected", "url", c.url)
	return nil
}

// Connected reports whether the channel is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// JoinSession announces the session this client belongs to.
func (c *Client) JoinSession(sessionID string) error {
	return c.Emit("join_session", map[string]string{"session_id": sessionID})
}

// Emit queues an outbound event. Never blocks; returns ErrNotConnected
// when the channel is down and drops silently when the queue is full.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: marshal %s: %w", event, err)
	}

	env := Envelope{
		Event:     event,
		Data:      data,
		RequestID: uuid.NewString(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}

	select {
	case c.sendCh <- env:
		return nil
	default:
		c.logger.Warn("send queue full, dropping event", "event", event)
		return nil
	}
}

// writePump is the only goroutine writing to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case env := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.teardown(err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.teardown(err)
				return
			}
		}
	}
}

// readPump dispatches inbound envelopes to registered handlers.
func (c *Client) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.teardown(err)
			return
		}

		c.mu.Lock()
		handler := c.handlers[env.Event]
		c.mu.Unlock()

		if handler == nil {
			c.logger.Debug("unhandled event", "event", env.Event)
			continue
		}
		handler(env.Data)
	}
}

// teardown closes the connection once and notifies.
func (c *Client) teardown(err error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	close(c.closeCh)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	conn.Close()
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.logger.Warn("connection lost", "error", err)
	}
	if c.OnDisconnect != nil {
		c.OnDisconnect(err)
	}
}

// Close shuts the channel down.
func (c *Client) Close() error {
	c.mu.Lock()
	connected := c.connected
	conn := c.conn
	c.mu.Unlock()

	if !connected {
		return nil
	}

	// Best-effort close frame before tearing down.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.teardown(nil)
	return nil
}
