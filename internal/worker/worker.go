package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tracksim/tracksim/internal/dispatcher"
	"github.com/tracksim/tracksim/internal/influx"
	"github.com/tracksim/tracksim/internal/storage"
	"github.com/tracksim/tracksim/pkg/core"
)

// CmdRecord carries every recording request. A single buffered handler
// keeps session start, samples, events and session end in order.
const CmdRecord = "record"

// ErrNoSession is returned when ending a session that was never started.
var ErrNoSession = errors.New("no session recording")

// StartRequest opens a session on the backend. Done receives the result.
type StartRequest struct {
	Session *core.Session
	Done    chan error
}

// EndRequest closes the session, then uploads the export when configured.
type EndRequest struct {
	Done chan error
}

// Uploader sends an exported session file to a collector.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error
}

// Sender is the part of the dispatcher the helpers need.
type Sender interface {
	Dispatch(c dispatcher.Command) (any, error)
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger *slog.Logger
	// Influx mirrors samples and events when set.
	Influx   *influx.Manager
	Uploader Uploader
}

// Manager records samples and events to the storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	mu      sync.RWMutex
	session *core.Session

	lastWrite atomic.Int64
	samples   atomic.Uint64
	events    atomic.Uint64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// RegisterHandlers registers the record handler with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdRecord, m.handleRecord, dispatcher.Buffered(10000), dispatcher.Blocking())
}

func (m *Manager) handleRecord(c dispatcher.Command) (any, error) {
	start := time.Now()
	defer func() { m.lastWrite.Store(int64(time.Since(start))) }()

	switch p := c.Payload.(type) {
	case *core.Sample:
		return nil, m.recordSample(p)
	case *core.Event:
		return nil, m.recordEvent(p)
	case StartRequest:
		err := m.startSession(p.Session)
		p.Done <- err
		return nil, err
	case EndRequest:
		err := m.endSession()
		p.Done <- err
		return nil, err
	default:
		return nil, fmt.Errorf("unexpected record payload %T", c.Payload)
	}
}

func (m *Manager) startSession(s *core.Session) error {
	if err := m.backend.StartSession(s); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	m.mu.Lock()
	cp := *s
	m.session = &cp
	m.mu.Unlock()
	m.samples.Store(0)
	m.events.Store(0)

	m.deps.Logger.Info("Session started", "session", s.Name, "id", s.ID, "vehicle", s.VehicleName)
	return nil
}

func (m *Manager) endSession() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}

	if err := m.backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	m.deps.Logger.Info("Session ended", "session", s.Name, "samples", m.samples.Load(), "events", m.events.Load())

	up, ok := m.backend.(storage.Uploadable)
	if !ok || m.deps.Uploader == nil {
		return nil
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := m.deps.Uploader.Upload(ctx, path, up.GetExportMetadata()); err != nil {
		// The export stays on disk; a failed upload does not fail the session.
		m.deps.Logger.Error("Failed to upload session", "path", path, "error", err)
		return nil
	}
	m.deps.Logger.Info("Session uploaded", "path", path)
	return nil
}

func (m *Manager) recordSample(s *core.Sample) error {
	if err := m.backend.RecordSample(s); err != nil {
		return err
	}
	m.samples.Add(1)
	if m.deps.Influx != nil {
		if sess := m.Session(); sess != nil {
			if err := m.deps.Influx.WritePoint(influx.BucketTelemetry, influx.SamplePoint(sess, s)); err != nil {
				m.deps.Logger.Debug("Influx write failed", "error", err)
			}
		}
	}
	return nil
}

func (m *Manager) recordEvent(e *core.Event) error {
	if err := m.backend.RecordEvent(e); err != nil {
		return err
	}
	m.events.Add(1)
	if m.deps.Influx != nil {
		if sess := m.Session(); sess != nil {
			if err := m.deps.Influx.WritePoint(influx.BucketTelemetry, influx.EventPoint(sess, e)); err != nil {
				m.deps.Logger.Debug("Influx write failed", "error", err)
			}
		}
	}
	return nil
}

// Session returns a copy of the session being recorded, or nil.
func (m *Manager) Session() *core.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	return &cp
}

// Recorded returns the sample and event counts of the current session.
func (m *Manager) Recorded() (samples, events uint64) {
	return m.samples.Load(), m.events.Load()
}

// PendingWrites reports rows buffered by the backend, if it buffers.
func (m *Manager) PendingWrites() (samples, events int) {
	if p, ok := m.backend.(storage.Pending); ok {
		return p.PendingWrites()
	}
	return 0, 0
}

// GetLastWriteDuration returns how long the last record call took.
func (m *Manager) GetLastWriteDuration() time.Duration {
	return time.Duration(m.lastWrite.Load())
}

// StartSession queues a session start and waits for the backend.
func StartSession(d Sender, s *core.Session) error {
	done := make(chan error, 1)
	if _, err := d.Dispatch(dispatcher.Command{Name: CmdRecord, Payload: StartRequest{Session: s, Done: done}, Source: "runner"}); err != nil {
		return err
	}
	return <-done
}

// EndSession queues a session end behind every pending record and waits.
func EndSession(d Sender) error {
	done := make(chan error, 1)
	if _, err := d.Dispatch(dispatcher.Command{Name: CmdRecord, Payload: EndRequest{Done: done}, Source: "runner"}); err != nil {
		return err
	}
	return <-done
}
