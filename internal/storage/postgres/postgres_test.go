package postgres

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/database"
	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/pkg/core"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB(database.MemoryDSN(t.Name()))
	require.NoError(t, err)

	b := New(Dependencies{
		DB:            db,
		Logger:        slog.New(slog.DiscardHandler),
		Mass:          30000,
		FlushInterval: time.Hour,
		SkipTrack:     true,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testSession() *core.Session {
	return &core.Session{
		Name:        "drive",
		VehicleName: "tank",
		StartTime:   time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
		TickRate:    60,
		Origin:      core.GeoOrigin{Latitude: 52.5, Longitude: 13.4, Altitude: 34},
		Tag:         "Test",
	}
}

func TestRecordBeforeStart(t *testing.T) {
	b := newBackend(t)
	assert.ErrorIs(t, b.RecordSample(&core.Sample{}), ErrNoSession)
	assert.ErrorIs(t, b.RecordEvent(&core.Event{}), ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), ErrNoSession)
}

func TestSessionLifecycle(t *testing.T) {
	b := newBackend(t)
	db := b.DB()

	s := testSession()
	require.NoError(t, b.StartSession(s))
	require.NotZero(t, s.ID)

	for i := 1; i <= 5; i++ {
		require.NoError(t, b.RecordSample(&core.Sample{
			Tick:     uint64(i),
			Time:     s.StartTime.Add(time.Duration(i) * time.Second / 60),
			SimTime:  float64(i) / 60,
			Position: core.Position3D{X: float64(i)},
			Gear:     1,
		}))
	}
	require.NoError(t, b.RecordEvent(&core.Event{Tick: 3, Kind: core.EventGearShift, Message: "1 -> 2"}))

	samples, events := b.PendingWrites()
	assert.Equal(t, 5, samples)
	assert.Equal(t, 1, events)

	require.NoError(t, b.EndSession())

	samples, events = b.PendingWrites()
	assert.Zero(t, samples)
	assert.Zero(t, events)
	assert.Zero(t, b.Dropped())

	var count int64
	require.NoError(t, db.Model(&model.Sample{}).Where("session_id = ?", s.ID).Count(&count).Error)
	assert.Equal(t, int64(5), count)
	require.NoError(t, db.Model(&model.Event{}).Where("session_id = ?", s.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored model.Session
	require.NoError(t, db.First(&stored, s.ID).Error)
	assert.InDelta(t, 5.0/60, stored.Duration, 1e-6)
	assert.Equal(t, "Test", stored.Tag)

	var v model.Vehicle
	require.NoError(t, db.Where("name = ?", "tank").First(&v).Error)
	assert.Equal(t, v.ID, stored.VehicleID)
	assert.InDelta(t, 30000, v.Mass, 1e-3)

	assert.ErrorIs(t, b.RecordSample(&core.Sample{}), ErrNoSession, "session ended")
}

func TestVehicleReusedAcrossSessions(t *testing.T) {
	b := newBackend(t)

	first, second := testSession(), testSession()
	require.NoError(t, b.StartSession(first))
	require.NoError(t, b.EndSession())
	require.NoError(t, b.StartSession(second))
	require.NoError(t, b.EndSession())

	assert.NotEqual(t, first.ID, second.ID)

	var count int64
	require.NoError(t, b.DB().Model(&model.Vehicle{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWriterLoopFlushesOnClose(t *testing.T) {
	b := newBackend(t)

	s := testSession()
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordSample(&core.Sample{Tick: 1}))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, b.DB().Model(&model.Sample{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
