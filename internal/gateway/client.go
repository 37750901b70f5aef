package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DialRetryDelay is the fixed pause between connect attempts. Startup
// never gives up on its own; only context cancellation stops it.
const DialRetryDelay = 5 * time.Second

// Client speaks the gateway websocket protocol and dispatches inbound
// events to registered handlers.
type Client struct {
	endpoint string
	token    string
	logger   *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string][]Handler
	stopped  bool
}

// NewClient creates a client for the given websocket endpoint. The
// token is attached to every outbound frame.
func NewClient(endpoint, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// Start dials the gateway, retrying forever at a fixed delay, then
// launches the read loop. Returns once connected or when ctx is
// cancelled.
func (c *Client) Start(ctx context.Context) error {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.stopped = false
			c.mu.Unlock()
			go c.readLoop(conn)
			c.logger.Info("gateway connected", zap.String("endpoint", c.endpoint))
			return nil
		}
		c.logger.Warn("gateway dial failed, retrying",
			zap.String("endpoint", c.endpoint),
			zap.Duration("delay", DialRetryDelay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(DialRetryDelay):
		}
	}
}

// On registers a handler for a named inbound event.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// RemoveAllHandlers drops every registered handler.
func (c *Client) RemoveAllHandlers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = make(map[string][]Handler)
}

// Request sends an api call carrying data.
func (c *Client) Request(api string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", api, err)
	}
	return c.write(frame{ID: uuid.NewString(), API: api, Token: c.token, Data: raw})
}

// Notify sends an api call with no data.
func (c *Client) Notify(api string) error {
	return c.write(frame{ID: uuid.NewString(), API: api, Token: c.token})
}

// Stop closes the connection. Handlers stay registered; a later Start
// reuses them.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) write(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("gateway: not connected")
	}
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("gateway write %s: %w", f.API, err)
	}
	return nil
}

// readLoop decodes inbound frames and fans them out. A read error
// while not stopped is reported to handlers as a reconnect event so
// the lifecycle layer can schedule a restart.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			stopped := c.stopped
			c.mu.Unlock()
			if !stopped {
				c.logger.Warn("gateway read failed", zap.Error(err))
				c.dispatch(EventReconnect, nil)
			}
			return
		}
		if f.Event == "" {
			c.logger.Debug("gateway frame without event name dropped")
			continue
		}
		c.dispatch(f.Event, f.Data)
	}
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()
	if len(hs) == 0 {
		c.logger.Debug("unhandled gateway event", zap.String("event", event))
		return
	}
	for _, h := range hs {
		c.invoke(event, h, data)
	}
}

func (c *Client) invoke(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("gateway handler panicked",
				zap.String("event", event),
				zap.Any("panic", r))
		}
	}()
	h(data)
}
