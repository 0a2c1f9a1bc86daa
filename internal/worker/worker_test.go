package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/dispatcher"
	"github.com/tracksim/tracksim/internal/storage/memory"
	"github.com/tracksim/tracksim/pkg/core"
)

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	meta  []core.UploadMetadata
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, path string, meta core.UploadMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	f.meta = append(f.meta, meta)
	return f.err
}

func setup(t *testing.T, up Uploader) (*Manager, *dispatcher.Dispatcher, *memory.Backend) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})

	d, err := dispatcher.New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	m := NewManager(Dependencies{Logger: logger, Uploader: up}, backend)
	m.RegisterHandlers(d)
	return m, d, backend
}

func record(t *testing.T, d *dispatcher.Dispatcher, payload any) {
	t.Helper()
	_, err := d.Dispatch(dispatcher.Command{Name: CmdRecord, Payload: payload})
	require.NoError(t, err)
}

func TestRecordsInOrder(t *testing.T) {
	up := &fakeUploader{}
	m, d, backend := setup(t, up)

	s := &core.Session{Name: "drive", VehicleName: "tank", StartTime: time.Now()}
	require.NoError(t, StartSession(d, s))
	assert.Equal(t, uint(1), s.ID)
	require.NotNil(t, m.Session())
	assert.Equal(t, "drive", m.Session().Name)

	for i := 1; i <= 100; i++ {
		record(t, d, &core.Sample{Tick: uint64(i), SimTime: float64(i) / 60})
	}
	record(t, d, &core.Event{Tick: 50, Kind: core.EventSleep})

	require.NoError(t, EndSession(d))
	assert.Nil(t, m.Session())

	samples, events := m.Recorded()
	assert.Equal(t, uint64(100), samples)
	assert.Equal(t, uint64(1), events)

	got := backend.Samples()
	require.Len(t, got, 100)
	for i, s := range got {
		assert.Equal(t, uint64(i+1), s.Tick)
	}

	require.Len(t, up.paths, 1)
	assert.Equal(t, backend.GetExportedFilePath(), up.paths[0])
	assert.Equal(t, "tank", up.meta[0].VehicleName)
	assert.Positive(t, m.GetLastWriteDuration())
}

func TestUploadFailureDoesNotFailSession(t *testing.T) {
	_, d, _ := setup(t, &fakeUploader{err: errors.New("offline")})

	require.NoError(t, StartSession(d, &core.Session{Name: "x", VehicleName: "tank"}))
	assert.NoError(t, EndSession(d))
}

func TestEndWithoutStart(t *testing.T) {
	_, d, _ := setup(t, nil)
	assert.ErrorIs(t, EndSession(d), ErrNoSession)
}

func TestRecordBeforeStartFails(t *testing.T) {
	m, _, _ := setup(t, nil)
	_, err := m.handleRecord(dispatcher.Command{Payload: &core.Sample{}})
	assert.ErrorIs(t, err, memory.ErrNoSession)

	_, err = m.handleRecord(dispatcher.Command{Payload: 42})
	assert.EqualError(t, err, "unexpected record payload int")
}

func TestPendingWritesWithoutBuffer(t *testing.T) {
	m, _, _ := setup(t, nil)
	s, e := m.PendingWrites()
	assert.Zero(t, s)
	assert.Zero(t, e)
}
