// pkg/core/sample.go
package core

import "time"

// Sample is the vehicle state captured after one tick.
type Sample struct {
	SessionID uint
	Tick      uint64
	Time      time.Time
	SimTime   float64

	Position Position3D
	Heading  float64 // degrees, 0 = +X, counter-clockwise
	Speed    float64 // forward speed, m/s
	YawRate  float64 // rad/s

	Throttle  float64
	Steering  float64
	Handbrake bool

	Gear         int
	Reverse      bool
	EngineRPM    float64
	EngineTorque float64

	Left  TrackSample
	Right TrackSample

	Sleeping bool
	Wheels   []WheelSample
}

// TrackSample is one side's drivetrain state.
type TrackSample struct {
	AngularVelocity float64
	DriveTorque     float64
	BrakeRatio      float64
	Load            float64
	Contacts        int
}

// WheelSample is one wheel's suspension state.
type WheelSample struct {
	Index        int
	Grounded     bool
	Compression  float64
	Load         float64
	VisualLength float64
	Surface      string
}
