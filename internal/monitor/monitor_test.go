package monitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/cache"
	"github.com/tracksim/tracksim/internal/database"
	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/internal/model/convert"
	"github.com/tracksim/tracksim/internal/runner"
	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

type fakeLoop struct {
	mu   sync.Mutex
	tick uint64
}

func (f *fakeLoop) advance(n uint64) {
	f.mu.Lock()
	f.tick += n
	f.mu.Unlock()
}

func (f *fakeLoop) Status() runner.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return runner.Status{Tick: f.tick, Gear: 2, Sleeping: true}
}
func (f *fakeLoop) LastTickDuration() time.Duration { return 250 * time.Microsecond }
func (f *fakeLoop) PendingCommands() int            { return 3 }

type fakeRecorder struct {
	session *core.Session
}

func (f *fakeRecorder) Session() *core.Session              { return f.session }
func (f *fakeRecorder) PendingWrites() (int, int)           { return 40, 2 }
func (f *fakeRecorder) GetLastWriteDuration() time.Duration { return 12 * time.Millisecond }

func TestGetProgramStatus(t *testing.T) {
	loop := &fakeLoop{tick: 100}
	poses := cache.NewPoseCache()
	poses.Set(100, []vehicle.WheelPose{{Index: 0}, {Index: 1}})

	s := NewService(Dependencies{
		Logger:  slog.New(slog.DiscardHandler),
		Loop:    loop,
		Worker:  &fakeRecorder{session: &core.Session{ID: 9}},
		Poses:   poses,
		Dropped: func() uint64 { return 5 },
	})

	lines, perf := s.GetProgramStatus(true)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"Tick": 100`)
	assert.Contains(t, lines[2], `"tick": 100`)

	assert.Equal(t, uint(9), perf.SessionID)
	assert.Equal(t, model.QueueLengths{Samples: 40, Events: 2, Commands: 3, Dropped: 5}, perf.Queues)
	assert.InDelta(t, 250, perf.LastTickDurationUs, 1e-6)
	assert.InDelta(t, 12, perf.LastWriteDurationMs, 1e-6)
	assert.True(t, perf.Sleeping)
	assert.Zero(t, perf.TicksPerSecond, "no rate before the second snapshot")

	loop.advance(60)
	time.Sleep(20 * time.Millisecond)
	lines, perf = s.GetProgramStatus(false)
	assert.Len(t, lines, 2)
	assert.Greater(t, perf.TicksPerSecond, float32(0))
}

func TestStartWritesStatusAndPerformance(t *testing.T) {
	db, err := database.GetSqliteDB(database.MemoryDSN(t.Name()))
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	require.NoError(t, database.Setup(db, logger))

	session := core.Session{Name: "monitored", VehicleName: "tank", StartTime: time.Now()}
	v := convert.CoreToVehicle(session, 30000)
	_, err = v.GetOrInsert(db)
	require.NoError(t, err)
	row := convert.CoreToSession(session)
	row.VehicleID = v.ID
	require.NoError(t, db.Create(&row).Error)
	session.ID = row.ID

	loop := &fakeLoop{}
	dir := filepath.Join(t.TempDir(), "status")
	s := NewService(Dependencies{
		DB:        db,
		Logger:    logger,
		Loop:      loop,
		Worker:    &fakeRecorder{session: &session},
		StatusDir: dir,
		Interval:  10 * time.Millisecond,
	})
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(), "second start is a no-op")

	require.Eventually(t, func() bool {
		var n int64
		db.Model(&model.Performance{}).Where("session_id = ?", session.ID).Count(&n)
		return n >= 2
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	data, err := os.ReadFile(s.StatusFilePath())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"queues"`))
}

func TestNoRowsWithoutSession(t *testing.T) {
	db, err := database.GetSqliteDB(database.MemoryDSN(t.Name()))
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	require.NoError(t, database.Setup(db, logger))

	s := NewService(Dependencies{
		DB:       db,
		Logger:   logger,
		Loop:     &fakeLoop{},
		Worker:   &fakeRecorder{},
		Interval: 5 * time.Millisecond,
	})
	require.NoError(t, s.Start())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	var n int64
	require.NoError(t, db.Model(&model.Performance{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, s.StatusFilePath())
}
