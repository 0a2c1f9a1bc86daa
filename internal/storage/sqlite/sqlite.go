// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific parts are the in-memory DB,
// skipping the session track (no PostGIS), and the disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tracksim/tracksim/internal/database"
	"github.com/tracksim/tracksim/internal/storage/postgres"
	"github.com/tracksim/tracksim/pkg/core"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpDir      string
	// DSN overrides the shared in-memory database.
	DSN  string
	Mass float64
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*postgres.Backend
	db  *gorm.DB
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	dumpPath string
	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.GetSqliteDB(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := postgres.New(postgres.Dependencies{
		DB:        db,
		Logger:    logger,
		Mass:      cfg.Mass,
		SkipTrack: true,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpDir != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	return b.Backend.Close()
}

// StartSession creates the session and names its dump file.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Backend.StartSession(s); err != nil {
		return err
	}
	if b.cfg.DumpDir != "" {
		if err := os.MkdirAll(b.cfg.DumpDir, 0755); err != nil {
			return fmt.Errorf("failed to create dump directory: %w", err)
		}
		b.mu.Lock()
		b.dumpPath = filepath.Join(b.cfg.DumpDir, fmt.Sprintf("tracksim_%s.db", s.StartTime.Format("20060102_150405")))
		b.mu.Unlock()
	}
	return nil
}

// EndSession flushes the session and writes a final dump.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.Dump()
}

// DumpPath is the file the current session is dumped to.
func (b *Backend) DumpPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// Dump writes a point-in-time snapshot of the database. It is a no-op
// without a dump path.
func (b *Backend) Dump() error {
	path := b.DumpPath()
	if path == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, path); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", path, "took", time.Since(start))
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
