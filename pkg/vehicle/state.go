package vehicle

import "github.com/go-gl/mathgl/mgl64"

// WheelState is the dynamic state of one wheel.
type WheelState struct {
	Index int
	Side  Side

	// PreviousLength is the spring length at the last tick the wheel touched ground.
	PreviousLength float64
	CurrentLength  float64
	// VisualLength is the animated spring length, always within [0, travel].
	VisualLength float64
	Compression  float64
	Load         float64

	TouchedGround bool
	Surface       string
	ContactPoint  mgl64.Vec3
	ContactNormal mgl64.Vec3
	// ContactVelocity is the contact point velocity relative to the ground.
	ContactVelocity         mgl64.Vec3
	PreviousContactVelocity mgl64.Vec3

	SuspensionForce mgl64.Vec3
	TractionForce   mgl64.Vec3

	RotationAngle float64
	SteeringAngle float64
}

// TrackState is the per-side drivetrain state.
type TrackState struct {
	Side Side

	Input          float64
	TorqueTransfer float64

	LinearVelocity           float64
	AngularVelocity          float64
	EffectiveAngularVelocity float64

	DriveTorque           float64
	FrictionTorque        float64
	RollingFrictionTorque float64
	GroundTorque          float64
	BrakeRatio            float64
	DriveForce            mgl64.Vec3

	Load     float64
	Contacts int
}

// EngineState is the engine and gearbox state.
type EngineState struct {
	RPM    float64
	Torque float64
	MinRPM float64
	MaxRPM float64

	Gear    int
	Reverse bool

	LastShiftTime         float64
	LastShiftHullVelocity float64

	// Demand is the throttle share fed to the engine this tick.
	Demand float64
	// DriveTorque is the gearbox output torque, negative in reverse.
	DriveTorque float64
}

// BodyState is the chassis state the pipeline derives or caches.
type BodyState struct {
	Mass float64
	// Inertia is the body-space diagonal inertia tensor computed at build time.
	Inertia  mgl64.Vec3
	YawMOI   float64
	TrackMOI float64

	HullAngularVelocity float64
	ForwardSpeed        float64

	ActiveFrictionPoints       int
	ActiveDrivenFrictionPoints int
}

// SleepState is the sleep controller state.
type SleepState struct {
	Asleep bool
	Timer  float64
}

// SleepEvent is emitted once per sleep state change.
type SleepEvent struct {
	IsSleeping bool
	// Time is the vehicle's simulation clock at the change.
	Time float64
}

// WheelPose is the read-only visual pose of a wheel.
type WheelPose struct {
	Index int
	Side  Side
	// Center is the body-space wheel centre after suspension travel.
	Center        mgl64.Vec3
	VisualLength  float64
	RotationAngle float64
	SteeringAngle float64
	VisualOffset  mgl64.Vec3
	Animate       bool
}
