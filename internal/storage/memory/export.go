// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tracksim/tracksim/pkg/core"
)

// FormatVersion of the export file.
const FormatVersion = 1

// Frame columns in export order.
var Columns = []string{
	"tick", "simTime", "x", "y", "z", "heading", "speed", "yawRate",
	"throttle", "steering", "handbrake", "gear", "reverse", "rpm", "torque",
	"leftOmega", "rightOmega", "leftDrive", "rightDrive", "leftBrake", "rightBrake",
	"leftLoad", "rightLoad", "sleeping",
}

// SessionExport is the root JSON structure. Frames are positional rows
// keyed by Columns so long sessions stay compact.
type SessionExport struct {
	FormatVersion int       `json:"formatVersion"`
	SessionName   string    `json:"sessionName"`
	VehicleName   string    `json:"vehicleName"`
	Tag           string    `json:"tag,omitempty"`
	StartTime     time.Time `json:"startTime"`
	TickRate      float64   `json:"tickRate"`
	Origin        []float64 `json:"origin"` // lat, lon, alt
	Duration      float64   `json:"duration"`

	Vehicle json.RawMessage `json:"vehicle,omitempty"`
	Columns []string        `json:"columns"`
	Frames  [][]float64     `json:"frames"`
	Events  [][]any         `json:"events"` // tick, simTime, kind, message
}

// Column returns one column of the frames, or nil if name is unknown.
func (e *SessionExport) Column(name string) []float64 {
	idx := -1
	for i, c := range e.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, 0, len(e.Frames))
	for _, f := range e.Frames {
		if idx < len(f) {
			out = append(out, f[idx])
		}
	}
	return out
}

// exportJSON writes the session to a (optionally gzipped) JSON file.
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(b.session.Name)
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastMeta = core.UploadMetadata{
		SessionName: b.session.Name,
		VehicleName: b.session.VehicleName,
		Duration:    export.Duration,
		Tag:         b.session.Tag,
	}
	return nil
}

func (b *Backend) buildExport() SessionExport {
	s := b.session
	export := SessionExport{
		FormatVersion: FormatVersion,
		SessionName:   s.Name,
		VehicleName:   s.VehicleName,
		Tag:           s.Tag,
		StartTime:     s.StartTime,
		TickRate:      s.TickRate,
		Origin:        []float64{s.Origin.Latitude, s.Origin.Longitude, s.Origin.Altitude},
		Columns:       Columns,
		Frames:        make([][]float64, 0, len(b.samples)),
		Events:        make([][]any, 0, len(b.events)),
	}
	if json.Valid(s.Config) {
		export.Vehicle = s.Config
	}

	for i := range b.samples {
		export.Frames = append(export.Frames, frame(&b.samples[i]))
	}
	if n := len(b.samples); n > 0 {
		export.Duration = b.samples[n-1].SimTime
	}

	for _, e := range b.events {
		export.Events = append(export.Events, []any{e.Tick, e.SimTime, e.Kind, e.Message})
	}
	return export
}

func frame(s *core.Sample) []float64 {
	return []float64{
		float64(s.Tick), s.SimTime,
		s.Position.X, s.Position.Y, s.Position.Z,
		s.Heading, s.Speed, s.YawRate,
		s.Throttle, s.Steering, boolToFloat(s.Handbrake),
		float64(s.Gear), boolToFloat(s.Reverse), s.EngineRPM, s.EngineTorque,
		s.Left.AngularVelocity, s.Right.AngularVelocity,
		s.Left.DriveTorque, s.Right.DriveTorque,
		s.Left.BrakeRatio, s.Right.BrakeRatio,
		s.Left.Load, s.Right.Load,
		boolToFloat(s.Sleeping),
	}
}

func writeExport(path string, data SessionExport, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

// ReadExport loads an export file written by this backend. Files ending in
// .gz are decompressed.
func ReadExport(path string) (*SessionExport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var export SessionExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	if export.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported export format version %d", export.FormatVersion)
	}
	return &export, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
