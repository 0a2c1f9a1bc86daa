package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Equal(t, noop.Meter{}, p.Meter("test"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutExporter(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "tracksim"})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "tracksim",
		Vehicle:      "tank",
		Session:      "proving-ground",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())
	assert.NotNil(t, p.Meter("test"))

	ctx := context.Background()
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, p.Shutdown(ctx))
}

func TestResourceAttrs(t *testing.T) {
	attrs := resourceAttrs(Config{ServiceName: "tracksim"})
	assert.Len(t, attrs, 1)

	attrs = resourceAttrs(Config{ServiceName: "tracksim", ServiceVersion: "1.0.0", Vehicle: "tank", Session: "s"})
	require.Len(t, attrs, 4)
	assert.Equal(t, "tank", attrs[2].Value.AsString())
	assert.Equal(t, "tracksim.session", string(attrs[3].Key))
}
