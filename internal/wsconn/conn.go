// Package wsconn is a reconnecting WebSocket client with a single writer
// goroutine and acknowledged sends.
package wsconn

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/tracksim/tracksim/pkg/streaming"
)

const (
	sendChSize = 10_000
	ackChSize  = 16
	writeWait  = 10 * time.Second

	// AckTimeout is the default wait for an acknowledged send.
	AckTimeout = 10 * time.Second
)

// ErrClosed is returned when waiting on a connection that was closed.
var ErrClosed = errors.New("connection closed")

// Handler receives every non-ack message from the server.
type Handler func(env streaming.Envelope)

// Option configures a Conn.
type Option func(*Conn)

// WithHandler routes incoming envelopes to h.
func WithHandler(h Handler) Option {
	return func(c *Conn) {
		c.handler = h
	}
}

// WithReconnect sets the attempt limit and backoff ceiling.
func WithReconnect(maxAttempts int, initial, max time.Duration) Option {
	return func(c *Conn) {
		c.maxReconnect = maxAttempts
		c.initialBackoff = initial
		c.maxBackoff = max
	}
}

// Conn manages a WebSocket connection with a single write goroutine.
type Conn struct {
	// wmu serialises writes between the write loop and Close.
	wmu sync.Mutex

	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	// stop ends the write loop of the current connection.
	stop         chan struct{}
	reconnecting bool

	wsURL  string
	secret string

	// replay is resent first after every reconnect.
	replay [][]byte

	handler        Handler
	maxReconnect   int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	logger *slog.Logger
}

// New creates an unconnected Conn.
func New(logger *slog.Logger, opts ...Option) *Conn {
	c := &Conn{
		sendCh:         make(chan []byte, sendChSize),
		ackCh:          make(chan streaming.AckMessage, ackChSize),
		done:           make(chan struct{}),
		maxReconnect:   10,
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the WebSocket server and starts read/write loops.
func (c *Conn) Dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go c.writeLoop(stop)
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *Conn) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// SetReplay replaces the messages resent after a reconnect, e.g. the
// session header or a replication hello.
func (c *Conn) SetReplay(msgs ...[]byte) {
	c.mu.Lock()
	c.replay = msgs
	c.mu.Unlock()
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *Conn) writeLoop(stop chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := c.write(conn, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// incoming covers both acks and envelopes.
type incoming struct {
	Type    string          `json:"type"`
	For     string          `json:"for"`
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
}

// readLoop routes acks to ackCh and everything else to the handler. It
// exits once conn is no longer the current connection.
func (c *Conn) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn && !c.closed
			c.mu.Unlock()
			if !current {
				return
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var msg incoming
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug("Unreadable message received", "raw", string(message))
			continue
		}

		if msg.Type == streaming.TypeAck {
			select {
			case c.ackCh <- streaming.AckMessage{Type: msg.Type, For: msg.For, Error: msg.Error}:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", msg.For)
			}
			continue
		}
		if c.handler != nil {
			c.handler(streaming.Envelope{Type: msg.Type, Payload: msg.Payload})
		}
	}
}

// reconnect re-establishes the connection with exponential backoff, replays
// the cached messages and restarts the read/write loops.
func (c *Conn) reconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	backoff := c.initialBackoff
	for attempt := 1; attempt <= c.maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}

		c.mu.Lock()
		replay := c.replay
		c.mu.Unlock()

		if err := c.writeAll(conn, replay); err != nil {
			c.logger.Warn("Failed to replay messages after reconnect", "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.stop = make(chan struct{})
		stop := c.stop
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop(stop)
		go c.readLoop(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", c.maxReconnect)
}

func (c *Conn) write(conn *ws.Conn, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *Conn) writeAll(conn *ws.Conn, msgs [][]byte) error {
	for _, m := range msgs {
		if err := c.write(conn, m); err != nil {
			return err
		}
	}
	return nil
}

// Send pushes data to the write loop. It never blocks and reports false when
// the message was dropped.
func (c *Conn) Send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
		return false
	}
}

// SendAndWait sends data and blocks until the server acknowledges ackFor or
// the timeout expires. A rejecting ack is returned as an error.
func (c *Conn) SendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !c.Send(data) {
		return fmt.Errorf("send queue full for %q", ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For != ackFor {
				continue
			}
			if ack.Error != "" {
				return fmt.Errorf("%s rejected: %s", ackFor, ack.Error)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, ErrClosed)
		}
	}
}

// Close sends a WebSocket close frame and shuts down all goroutines.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.wmu.Lock()
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		c.wmu.Unlock()
		return conn.Close()
	}
	return nil
}
