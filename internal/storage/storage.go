// internal/storage/storage.go
package storage

import "github.com/tracksim/tracksim/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management. StartSession assigns the session ID.
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordSample(s *core.Sample) error
	RecordEvent(e *core.Event) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a telemetry collector.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Pending is an optional interface for backends that buffer writes.
type Pending interface {
	PendingWrites() (samples, events int)
}
