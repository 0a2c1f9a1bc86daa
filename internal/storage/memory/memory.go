// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no session started")

// Backend keeps a session in memory and exports it to JSON when it ends.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	samples []core.Sample
	events  []core.Event

	idCounter      uint
	lastExportPath string
	lastMeta       core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and resets all collections.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	b.session = s
	b.samples = nil
	b.events = nil
	return nil
}

// EndSession exports the session and clears it.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// RecordSample appends a sample to the current session.
func (b *Backend) RecordSample(s *core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	sample := *s
	sample.SessionID = b.session.ID
	b.samples = append(b.samples, sample)
	return nil
}

// RecordEvent appends an event to the current session.
func (b *Backend) RecordEvent(e *core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	event := *e
	event.SessionID = b.session.ID
	b.events = append(b.events, event)
	return nil
}

// Samples returns a copy of the recorded samples.
func (b *Backend) Samples() []core.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Events returns a copy of the recorded events.
func (b *Backend) Events() []core.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Event, len(b.events))
	copy(out, b.events)
	return out
}

// GetExportedFilePath returns the path of the last export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastMeta
}
