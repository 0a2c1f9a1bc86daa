// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with internal queues and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tracksim/tracksim/internal/database"
	"github.com/tracksim/tracksim/internal/geo"
	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/internal/model/convert"
	"github.com/tracksim/tracksim/internal/queue"
	"github.com/tracksim/tracksim/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	queueLimit           = 200_000
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger

	// Mass is recorded on the vehicle definition row.
	Mass float64
	// FlushInterval between queue drains. Zero uses the default.
	FlushInterval time.Duration
	// SkipTrack disables the LineString path written at EndSession.
	SkipTrack bool
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	samples *queue.Queue[model.Sample]
	events  *queue.Queue[model.Event]

	sessionID atomic.Uint64
	projector atomic.Pointer[geo.Projector]

	// positions and lastSimTime build the session track and duration.
	mu          sync.Mutex
	positions   []core.Position3D
	lastSimTime float64

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{deps: deps}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it connects to postgres.
func (b *Backend) Init() error {
	b.samples = queue.NewBounded[model.Sample](queueLimit)
	b.events = queue.NewBounded[model.Event](queueLimit)
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		db, err := database.GetPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
	}

	if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	go b.writerLoop()
	return nil
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return nil
}

// StartSession performs vehicle get-or-insert and session create in the DB.
// The DB-generated ID is assigned back to s.
func (b *Backend) StartSession(s *core.Session) error {
	db := b.deps.DB
	if db == nil {
		return errors.New("backend not initialized")
	}

	vehicle := convert.CoreToVehicle(*s, b.deps.Mass)
	created, err := vehicle.GetOrInsert(db)
	if err != nil {
		return fmt.Errorf("failed to get or insert vehicle: %w", err)
	}
	if created {
		b.deps.Logger.Info("Vehicle definition created", "vehicle", vehicle.Name, "wheels", vehicle.Wheels)
	}

	gormSession := convert.CoreToSession(*s)
	gormSession.VehicleID = vehicle.ID
	if err := db.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	s.ID = gormSession.ID
	b.projector.Store(geo.NewProjector(s.Origin))
	b.sessionID.Store(uint64(gormSession.ID))

	b.mu.Lock()
	b.positions = b.positions[:0]
	b.lastSimTime = 0
	b.mu.Unlock()
	return nil
}

// EndSession flushes pending rows, stores the duration and writes the track.
func (b *Backend) EndSession() error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return ErrNoSession
	}
	b.Flush()

	b.mu.Lock()
	positions := b.positions
	duration := b.lastSimTime
	b.positions = nil
	b.mu.Unlock()

	db := b.deps.DB
	if err := db.Model(&model.Session{}).Where("id = ?", id).Update("duration", duration).Error; err != nil {
		return fmt.Errorf("failed to update session duration: %w", err)
	}

	if !b.deps.SkipTrack {
		if track, ok := convert.CoreToTrack(id, positions, b.projector.Load()); ok {
			if err := db.Create(&track).Error; err != nil {
				return fmt.Errorf("failed to insert session track: %w", err)
			}
		}
	}

	b.sessionID.Store(0)
	return nil
}

// RecordSample converts and queues a sample.
func (b *Backend) RecordSample(s *core.Sample) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return ErrNoSession
	}
	gormObj := convert.CoreToSample(*s, b.projector.Load())
	gormObj.SessionID = id
	b.samples.Push(gormObj)

	b.mu.Lock()
	b.positions = append(b.positions, s.Position)
	b.lastSimTime = s.SimTime
	b.mu.Unlock()
	return nil
}

// RecordEvent converts and queues an event.
func (b *Backend) RecordEvent(e *core.Event) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return ErrNoSession
	}
	gormObj := convert.CoreToEvent(*e)
	gormObj.SessionID = id
	b.events.Push(gormObj)
	return nil
}

// PendingWrites reports the queued rows.
func (b *Backend) PendingWrites() (samples, events int) {
	return b.samples.Len(), b.events.Len()
}

// Dropped reports rows discarded because a queue was full.
func (b *Backend) Dropped() uint64 {
	return b.samples.Dropped() + b.events.Dropped()
}

// Flush drains the queues into the DB synchronously.
func (b *Backend) Flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	log := b.deps.Logger
	writeQueue(b.deps.DB, b.samples, "samples", log)
	writeQueue(b.deps.DB, b.events, "events", log)
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if q.Empty() {
		return
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing rows", "table", name, "error", err)
		q.Push(items...)
		return
	}
	log.Debug("Rows written", "table", name, "count", len(items))
}
