// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/tracksim/tracksim/internal/config"
	"github.com/tracksim/tracksim/internal/storage/memory"
	"github.com/tracksim/tracksim/internal/storage/postgres"
	sqlitestorage "github.com/tracksim/tracksim/internal/storage/sqlite"
	"github.com/tracksim/tracksim/internal/storage/websocket"
)

// Dependencies are shared by the backends that need them.
type Dependencies struct {
	Logger *slog.Logger
	// Mass of the recorded vehicle, stored with its definition.
	Mass float64
	// WebSocket collector endpoint for the websocket backend.
	WebSocket websocket.Config
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(postgres.Dependencies{Logger: deps.Logger, Mass: deps.Mass}), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpDir:      cfg.SQLite.DumpDir,
			Mass:         deps.Mass,
		}, deps.Logger)
	case "websocket":
		if deps.WebSocket.URL == "" {
			return nil, fmt.Errorf("websocket backend requires a collector URL")
		}
		return websocket.New(deps.WebSocket, deps.Logger), nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
