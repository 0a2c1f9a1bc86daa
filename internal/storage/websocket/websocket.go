package websocket

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/tracksim/tracksim/internal/wsconn"
	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/streaming"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no session started")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session data over WebSocket to a telemetry collector.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn      *wsconn.Conn
	cfg       Config
	sessionID atomic.Uint64
	nextID    atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger, opts ...wsconn.Option) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: wsconn.New(logger, opts...),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.Dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.Close()
}

// send pushes a message to the write loop (fire-and-forget).
func (b *Backend) send(msgType string, payload any) error {
	data, err := streaming.Encode(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.Send(data)
	return nil
}

// StartSession sends the session header and waits for the server ack. The
// header is replayed after every reconnect.
func (b *Backend) StartSession(s *core.Session) error {
	s.ID = uint(b.nextID.Add(1))
	data, err := streaming.Encode(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	b.conn.SetReplay(data)
	if err := b.conn.SendAndWait(data, streaming.TypeStartSession, wsconn.AckTimeout); err != nil {
		return err
	}
	b.sessionID.Store(uint64(s.ID))
	return nil
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	if b.sessionID.Load() == 0 {
		return ErrNoSession
	}
	data, err := streaming.Encode(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.SendAndWait(data, streaming.TypeEndSession, wsconn.AckTimeout)

	// Clear cached state regardless of error.
	b.conn.SetReplay()
	b.sessionID.Store(0)
	return err
}

func (b *Backend) RecordSample(s *core.Sample) error {
	id := b.sessionID.Load()
	if id == 0 {
		return ErrNoSession
	}
	sample := *s
	sample.SessionID = uint(id)
	return b.send(streaming.TypeSample, &sample)
}

func (b *Backend) RecordEvent(e *core.Event) error {
	id := b.sessionID.Load()
	if id == 0 {
		return ErrNoSession
	}
	event := *e
	event.SessionID = uint(id)
	return b.send(streaming.TypeEvent, &event)
}
