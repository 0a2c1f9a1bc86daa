// Package replication carries control state from controllers to the
// authority and the authority's sleep state back to observers, over
// WebSocket.
package replication

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tracksim/tracksim/internal/cache"
	"github.com/tracksim/tracksim/internal/dispatcher"
	"github.com/tracksim/tracksim/internal/runner"
	"github.com/tracksim/tracksim/pkg/streaming"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

const (
	// Path is where the server accepts peers.
	Path = "/replicate"

	peerSendSize = 64
	writeWait    = 10 * time.Second
	pongWait     = 90 * time.Second
	pingPeriod   = 20 * time.Second
)

var (
	// ErrStaleSequence rejects a control state older than one already applied.
	ErrStaleSequence = errors.New("stale control sequence")
	// ErrUnknownVehicle rejects messages for a vehicle the server does not own.
	ErrUnknownVehicle = errors.New("unknown vehicle")
	// ErrNotController rejects control states from peers without the controller role.
	ErrNotController = errors.New("peer is not a controller")
)

// Sender dispatches commands to the runner.
type Sender interface {
	Dispatch(dispatcher.Command) (any, error)
}

// ServerConfig configures the authority side.
type ServerConfig struct {
	Vehicle string
	// Secret is compared against the secret query parameter when set.
	Secret string
}

type peer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	role atomic.Value // string, set by hello
}

func (p *peer) roleName() string {
	r, _ := p.role.Load().(string)
	return r
}

// Server is the authority end of replication.
type Server struct {
	cfg      ServerConfig
	d        Sender
	log      *slog.Logger
	upgrader websocket.Upgrader

	seqs   *cache.SeqCache
	conns  cache.SafeCounter
	nextID atomic.Uint64

	mu        sync.RWMutex
	peers     map[*peer]struct{}
	lastSleep []byte
}

// NewServer creates a server that forwards control states to d.
func NewServer(cfg ServerConfig, d Sender, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg: cfg,
		d:   d,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		seqs:  cache.NewSeqCache(),
		peers: make(map[*peer]struct{}),
	}
}

// Handler serves Path and a health endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(Path, s.ServeHTTP)
	return mux
}

// Connections is the number of connected peers.
func (s *Server) Connections() int {
	return s.conns.Value()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "peers": s.Connections()})
}

// ServeHTTP upgrades the request and serves one peer until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Secret != "" && r.URL.Query().Get("secret") != s.cfg.Secret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade error", "error", err)
		return
	}

	p := &peer{
		id:   fmt.Sprintf("peer-%d", s.nextID.Add(1)),
		conn: conn,
		send: make(chan []byte, peerSendSize),
	}
	s.register(p)
	s.log.Info("Peer connected", "peer", p.id, "remote", r.RemoteAddr)

	go s.writePump(p)
	s.readPump(p)
}

// OnSleepChange broadcasts the authority's sleep state to observers. It is
// registered as a runner sleep listener and never blocks.
func (s *Server) OnSleepChange(ev vehicle.SleepEvent) {
	msg, err := streaming.Encode(streaming.TypeSleepState, streaming.SleepStatePayload{
		Vehicle:    s.cfg.Vehicle,
		IsSleeping: ev.IsSleeping,
		SimTime:    ev.Time,
	})
	if err != nil {
		s.log.Error("Failed to encode sleep state", "error", err)
		return
	}

	s.mu.Lock()
	s.lastSleep = msg
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.peers {
		if p.roleName() != streaming.RoleObserver {
			continue
		}
		select {
		case p.send <- msg:
		default:
			s.log.Warn("Observer send buffer full, dropping sleep state", "peer", p.id)
		}
	}
}

// Close disconnects every peer.
func (s *Server) Close() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.peers {
		_ = p.conn.Close()
	}
}

func (s *Server) register(p *peer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.conns.Inc()
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	if _, ok := s.peers[p]; ok {
		close(p.send)
		delete(s.peers, p)
	}
	s.mu.Unlock()
	s.conns.Dec()
}

func (s *Server) readPump(p *peer) {
	defer func() {
		s.unregister(p)
		_ = p.conn.Close()
		// a controller that reconnects starts its sequence again
		if p.roleName() == streaming.RoleController {
			s.seqs.Delete(s.cfg.Vehicle)
		}
		s.log.Info("Peer disconnected", "peer", p.id, "role", p.roleName())
	}()

	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Peer read error", "peer", p.id, "error", err)
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env streaming.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			s.ack(p, "", fmt.Errorf("bad envelope: %w", err))
			continue
		}

		switch env.Type {
		case streaming.TypeHello:
			s.ack(p, env.Type, s.hello(p, env.Payload))
		case streaming.TypeControlState:
			s.ack(p, env.Type, s.control(p, env.Payload))
		default:
			s.ack(p, env.Type, fmt.Errorf("unsupported message type %q", env.Type))
		}
	}
}

func (s *Server) hello(p *peer, raw json.RawMessage) error {
	var h streaming.HelloPayload
	if err := json.Unmarshal(raw, &h); err != nil {
		return fmt.Errorf("bad hello: %w", err)
	}
	if h.Vehicle != s.cfg.Vehicle {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, h.Vehicle)
	}
	switch h.Role {
	case streaming.RoleController, streaming.RoleObserver:
	default:
		return fmt.Errorf("unknown role %q", h.Role)
	}
	p.role.Store(h.Role)
	s.log.Info("Peer joined", "peer", p.id, "role", h.Role, "vehicle", h.Vehicle)

	if h.Role == streaming.RoleObserver {
		s.mu.RLock()
		last := s.lastSleep
		s.mu.RUnlock()
		if last != nil {
			select {
			case p.send <- last:
			default:
			}
		}
	}
	return nil
}

func (s *Server) control(p *peer, raw json.RawMessage) error {
	if p.roleName() != streaming.RoleController {
		return ErrNotController
	}
	var c streaming.ControlStatePayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("bad control state: %w", err)
	}
	if c.Vehicle != s.cfg.Vehicle {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, c.Vehicle)
	}
	if !s.seqs.Advance(c.Vehicle, c.Seq) {
		return fmt.Errorf("%w: %d", ErrStaleSequence, c.Seq)
	}
	_, err := s.d.Dispatch(dispatcher.Command{
		Name:    runner.CmdControl,
		Payload: c.State,
		Source:  p.id,
	})
	return err
}

// ack answers msgType, carrying err when the message was rejected. Acks are
// queued behind any pending broadcast.
func (s *Server) ack(p *peer, msgType string, err error) {
	a := streaming.AckMessage{Type: streaming.TypeAck, For: msgType}
	if err != nil {
		a.Error = err.Error()
		s.log.Debug("Peer message rejected", "peer", p.id, "type", msgType, "error", err)
	}
	data, mErr := json.Marshal(a)
	if mErr != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.peers[p]; !ok {
		return
	}
	select {
	case p.send <- data:
	default:
		s.log.Warn("Peer send buffer full, dropping ack", "peer", p.id, "for", msgType)
	}
}

func (s *Server) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		}
	}
}
