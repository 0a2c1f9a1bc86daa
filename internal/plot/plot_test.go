package plot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/storage/memory"
	"github.com/tracksim/tracksim/pkg/core"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func recordedExport(t *testing.T) string {
	t.Helper()
	b := memory.New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true})
	require.NoError(t, b.StartSession(&core.Session{
		Name:        "accel",
		VehicleName: "tank",
		StartTime:   time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		TickRate:    60,
	}))
	for i := 1; i <= 120; i++ {
		simTime := float64(i) / 60
		require.NoError(t, b.RecordSample(&core.Sample{
			Tick:      uint64(i),
			SimTime:   simTime,
			Position:  core.Position3D{X: simTime * simTime, Y: math.Sin(simTime)},
			Speed:     2 * simTime,
			EngineRPM: 800 + 600*simTime,
			Gear:      1 + i/60,
		}))
	}
	require.NoError(t, b.EndSession())
	return b.GetExportedFilePath()
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestFileRendersDriveChart(t *testing.T) {
	out := filepath.Join(t.TempDir(), "charts", "drive.png")
	require.NoError(t, File(recordedExport(t), out))
	assertPNG(t, out)
}

func TestTrack(t *testing.T) {
	exp, err := memory.ReadExport(recordedExport(t))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "track.png")
	require.NoError(t, Track(exp, out))
	assertPNG(t, out)
}

func TestEmptyExport(t *testing.T) {
	exp := &memory.SessionExport{Columns: memory.Columns}
	assert.ErrorIs(t, Drive(exp, filepath.Join(t.TempDir(), "a.png")), ErrNoFrames)
	assert.ErrorIs(t, Track(exp, filepath.Join(t.TempDir(), "b.png")), ErrNoFrames)
}

func TestMissingColumn(t *testing.T) {
	exp := &memory.SessionExport{Columns: []string{"simTime"}, Frames: [][]float64{{0}, {1}}}
	assert.ErrorContains(t, Drive(exp, filepath.Join(t.TempDir(), "a.png")), "speed")
}

func TestFileMissing(t *testing.T) {
	assert.Error(t, File(filepath.Join(t.TempDir(), "nope.json"), filepath.Join(t.TempDir(), "x.png")))
}
