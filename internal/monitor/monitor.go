package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tracksim/tracksim/internal/cache"
	"github.com/tracksim/tracksim/internal/influx"
	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/internal/runner"
	"github.com/tracksim/tracksim/pkg/core"

	"gorm.io/gorm"
)

const defaultInterval = time.Second

// Loop is the part of the runner the monitor samples.
type Loop interface {
	Status() runner.Status
	LastTickDuration() time.Duration
	PendingCommands() int
}

// Recorder is the part of the worker the monitor samples.
type Recorder interface {
	Session() *core.Session
	PendingWrites() (samples, events int)
	GetLastWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	// DB receives a Performance row per interval when set.
	DB     *gorm.DB
	Logger *slog.Logger
	Loop   Loop
	Worker Recorder
	Influx *influx.Manager
	Poses  *cache.PoseCache
	// Dropped reports rows discarded by the storage backend.
	Dropped func() uint64

	StatusDir string
	Interval  time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}

	lastTick uint64
	lastAt   time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// StatusFilePath is where the status lines are written, or "" without a directory.
func (s *Service) StatusFilePath() string {
	if s.deps.StatusDir == "" {
		return ""
	}
	return filepath.Join(s.deps.StatusDir, "status.txt")
}

// GetProgramStatus snapshots the loop and writer. The output lines are
// indented JSON for the status file; poses adds the cached wheel poses.
func (s *Service) GetProgramStatus(poses bool) (output []string, perf model.Performance) {
	now := time.Now()
	st := s.deps.Loop.Status()

	perf = model.Performance{
		Time:               now,
		LastTickDurationUs: float32(s.deps.Loop.LastTickDuration().Microseconds()),
		Sleeping:           st.Sleeping,
	}
	perf.Queues.Commands = uint32(s.deps.Loop.PendingCommands())
	if s.deps.Dropped != nil {
		perf.Queues.Dropped = s.deps.Dropped()
	}

	if w := s.deps.Worker; w != nil {
		if session := w.Session(); session != nil {
			perf.SessionID = session.ID
		}
		samples, events := w.PendingWrites()
		perf.Queues.Samples = uint32(samples)
		perf.Queues.Events = uint32(events)
		perf.LastWriteDurationMs = float32(w.GetLastWriteDuration().Milliseconds())
	}

	s.mu.Lock()
	if !s.lastAt.IsZero() && st.Tick >= s.lastTick {
		if elapsed := now.Sub(s.lastAt).Seconds(); elapsed > 0 {
			perf.TicksPerSecond = float32(float64(st.Tick-s.lastTick) / elapsed)
		}
	}
	s.lastTick, s.lastAt = st.Tick, now
	s.mu.Unlock()

	output = append(output, marshalLine(st), marshalLine(perf))
	if poses && s.deps.Poses != nil {
		tick, p := s.deps.Poses.Get()
		output = append(output, marshalLine(map[string]any{"tick": tick, "wheels": p}))
	}
	return output, perf
}

func marshalLine(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	var statusFile *os.File
	if path := s.StatusFilePath(); path != "" {
		if err := os.MkdirAll(s.deps.StatusDir, 0755); err != nil {
			s.stopped()
			return fmt.Errorf("creating status directory: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			s.stopped()
			return fmt.Errorf("creating status file: %w", err)
		}
		statusFile = f
	}

	go func() {
		defer s.stopped()
		if statusFile != nil {
			defer statusFile.Close()
		}

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.report(statusFile)
			}
		}
	}()
	return nil
}

func (s *Service) stopped() {
	s.mu.Lock()
	s.isRunning = false
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()
}

func (s *Service) report(statusFile *os.File) {
	logger := s.deps.Logger
	lines, perf := s.GetProgramStatus(true)

	if statusFile != nil {
		if err := statusFile.Truncate(0); err == nil {
			_, _ = statusFile.Seek(0, 0)
			for _, line := range lines {
				_, _ = statusFile.WriteString(line + "\n")
			}
		}
	}

	// rows reference a session, so nothing is stored between sessions
	if s.deps.DB != nil && perf.SessionID != 0 {
		if err := s.deps.DB.Omit("Session").Create(&perf).Error; err != nil {
			logger.Error("Error writing performance row", "error", err)
		}
	}

	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(influx.BucketPerformance, influx.PerformancePoint(&perf)); err != nil {
			logger.Debug("Performance point not written", "error", err)
		}
	}
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	done := s.done
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.mu.Unlock()
	<-done
}
