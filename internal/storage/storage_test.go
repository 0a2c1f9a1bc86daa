package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/storage/memory"
	"github.com/tracksim/tracksim/internal/storage/postgres"
	sqlitestorage "github.com/tracksim/tracksim/internal/storage/sqlite"
	"github.com/tracksim/tracksim/internal/storage/websocket"
)

var (
	_ Backend    = (*memory.Backend)(nil)
	_ Uploadable = (*memory.Backend)(nil)
	_ Backend    = (*postgres.Backend)(nil)
	_ Pending    = (*postgres.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Pending    = (*sqlitestorage.Backend)(nil)
	_ Backend    = (*websocket.Backend)(nil)
)

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(config.StorageConfig{Type: "memory"}, Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = NewBackend(config.StorageConfig{Type: "postgres"}, Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &postgres.Backend{}, b)

	b, err = NewBackend(config.StorageConfig{Type: "websocket"}, Dependencies{WebSocket: websocket.Config{URL: "ws://localhost:1"}})
	require.NoError(t, err)
	assert.IsType(t, &websocket.Backend{}, b)

	_, err = NewBackend(config.StorageConfig{Type: "websocket"}, Dependencies{})
	assert.Error(t, err)

	_, err = NewBackend(config.StorageConfig{Type: "cassandra"}, Dependencies{})
	assert.EqualError(t, err, "unknown storage type: cassandra")
}
