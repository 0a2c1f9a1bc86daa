// pkg/core/session.go
package core

import "time"

// Position3D is a point in the simulation's local frame (metres, Z up).
type Position3D struct {
	X float64
	Y float64
	Z float64
}

// GeoOrigin anchors the local frame to the earth. Local +X points east and
// +Y points north of the origin.
type GeoOrigin struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Session is one recorded simulation run of a single vehicle.
type Session struct {
	ID          uint
	Name        string
	VehicleName string
	StartTime   time.Time
	TickRate    float64 // ticks per second
	Origin      GeoOrigin
	Tag         string
	// Config is the vehicle configuration in effect, JSON encoded.
	Config []byte
}

// UploadMetadata describes an exported session file for the collector.
type UploadMetadata struct {
	SessionName string
	VehicleName string
	Duration    float64 // seconds of simulated time
	Tag         string
}
