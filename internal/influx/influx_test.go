package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/pkg/core"
)

func TestConnect_Disabled(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestServerURL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("influx.protocol", "https")
	viper.Set("influx.host", "metrics.local")
	viper.Set("influx.port", "8087")
	assert.Equal(t, "https://metrics.local:8087", ServerURL())
}

func TestBackupWriterWhenUnreachable(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")

	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	var logBuf bytes.Buffer
	m := NewManager(zerolog.New(&logBuf), path)
	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
	assert.Contains(t, logBuf.String(), "using backup writer")

	session := &core.Session{Name: "drive", VehicleName: "tank"}
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.WritePoint(BucketTelemetry, SamplePoint(session, &core.Sample{Tick: 7, Time: ts, Speed: 3, Gear: 2})))
	require.NoError(t, m.WritePoint(BucketTelemetry, EventPoint(session, &core.Event{Tick: 7, Time: ts, Kind: core.EventGearShift})))
	require.NoError(t, m.WritePoint(BucketPerformance, PerformancePoint(&model.Performance{Time: ts, SessionID: 1, TicksPerSecond: 60})))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "vehicle_state,session=drive,vehicle=tank "))
	assert.Contains(t, lines[0], "tick=7i")
	assert.True(t, strings.HasPrefix(lines[1], "vehicle_event,kind=gear_shift,session=drive,vehicle=tank "))
	assert.True(t, strings.HasPrefix(lines[2], "loop,session=1 "))
}

func TestWritePoint_NoWriter(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.WritePoint(BucketTelemetry, EventPoint(&core.Session{}, &core.Event{})))
}
