package vehicle

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SteeringMode selects the distributor algorithm.
type SteeringMode string

const (
	// SteeringTorqueTransfer steers by biasing drive torque between the tracks.
	SteeringTorqueTransfer SteeringMode = "torque_transfer"
	// SteeringAngularVelocity steers by commanding a hull yaw rate directly.
	SteeringAngularVelocity SteeringMode = "angular_velocity"
)

// MountKind tells where a wheel's mount transform comes from.
type MountKind string

const (
	MountExplicit MountKind = "explicit"
	MountBone     MountKind = "bone"
)

// Rotator is an orientation in degrees.
type Rotator struct {
	Pitch float64 `json:"pitch" mapstructure:"pitch"`
	Yaw   float64 `json:"yaw" mapstructure:"yaw"`
	Roll  float64 `json:"roll" mapstructure:"roll"`
}

// Quat converts the rotator to a quaternion (yaw about Z, then pitch about Y, then roll about X).
func (r Rotator) Quat() mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(r.Yaw),
		mgl64.DegToRad(r.Pitch),
		mgl64.DegToRad(r.Roll),
		mgl64.ZYX,
	)
}

// Mount is the wheel suspension mount in body space. With Kind == MountBone the
// transform is resolved once from the Skeleton collaborator by Bone name and
// Location/Rotation are ignored.
type Mount struct {
	Kind     MountKind  `json:"kind" mapstructure:"kind"`
	Bone     string     `json:"bone,omitempty" mapstructure:"bone"`
	Location mgl64.Vec3 `json:"location" mapstructure:"location"`
	Rotation Rotator    `json:"rotation" mapstructure:"rotation"`
}

// WheelParams holds the per-wheel suspension parameters.
type WheelParams struct {
	Length          float64    `json:"length" mapstructure:"length"`
	MaxDrop         float64    `json:"maxDrop" mapstructure:"maxDrop"`
	CollisionRadius float64    `json:"collisionRadius" mapstructure:"collisionRadius"`
	Stiffness       float64    `json:"stiffness" mapstructure:"stiffness"`
	Damping         float64    `json:"damping" mapstructure:"damping"`
	VisualOffset    mgl64.Vec3 `json:"visualOffset" mapstructure:"visualOffset"`
}

// Travel is the total suspension travel.
func (p WheelParams) Travel() float64 {
	return p.Length + p.MaxDrop
}

// WheelConfig is the static setup of one wheel slot. A nil Params uses the
// suspension defaults; a non-nil Params is the wheel's own record.
type WheelConfig struct {
	Mount           Mount        `json:"mount" mapstructure:"mount"`
	RightTrack      bool         `json:"rightTrack" mapstructure:"rightTrack"`
	Driving         bool         `json:"driving" mapstructure:"driving"`
	Steering        bool         `json:"steering" mapstructure:"steering"`
	AnimateOffset   bool         `json:"animateOffset" mapstructure:"animateOffset"`
	AnimateRotation bool         `json:"animateRotation" mapstructure:"animateRotation"`
	Params          *WheelParams `json:"params,omitempty" mapstructure:"params"`
}

// Side returns the track this wheel belongs to.
func (w WheelConfig) Side() Side {
	if w.RightTrack {
		return SideRight
	}
	return SideLeft
}

// SuspensionConfig carries the shared wheel defaults and the global factors.
type SuspensionConfig struct {
	Defaults        WheelParams `json:"defaults" mapstructure:"defaults"`
	StiffnessFactor float64     `json:"stiffnessFactor" mapstructure:"stiffnessFactor"`
	DampingFactor   float64     `json:"dampingFactor" mapstructure:"dampingFactor"`
	// DropFactor is the rate (1/s) at which an airborne wheel eases toward full drop.
	DropFactor float64 `json:"dropFactor" mapstructure:"dropFactor"`
}

// GearInfo is one row of the gear table. Reverse gears sit before the first
// zero-ratio (neutral) entry.
type GearInfo struct {
	Ratio     float64 `json:"ratio" mapstructure:"ratio"`
	DownRatio float64 `json:"downRatio" mapstructure:"downRatio"`
	UpRatio   float64 `json:"upRatio" mapstructure:"upRatio"`
}

// CurvePoint is one sample of the engine torque curve.
type CurvePoint struct {
	RPM    float64 `json:"rpm" mapstructure:"rpm"`
	Torque float64 `json:"torque" mapstructure:"torque"`
}

type EngineConfig struct {
	TorqueCurve            []CurvePoint `json:"torqueCurve" mapstructure:"torqueCurve"`
	ExtraPowerRatio        float64      `json:"extraPowerRatio" mapstructure:"extraPowerRatio"`
	DifferentialRatio      float64      `json:"differentialRatio" mapstructure:"differentialRatio"`
	TransmissionEfficiency float64      `json:"transmissionEfficiency" mapstructure:"transmissionEfficiency"`
	ThrottleUpRatio        float64      `json:"throttleUpRatio" mapstructure:"throttleUpRatio"`
	ThrottleDownRatio      float64      `json:"throttleDownRatio" mapstructure:"throttleDownRatio"`
}

type GearboxConfig struct {
	Gears    []GearInfo `json:"gears" mapstructure:"gears"`
	AutoGear bool       `json:"autoGear" mapstructure:"autoGear"`
	// AutoBoxLatency is the minimum time in seconds between two automatic shifts.
	AutoBoxLatency float64 `json:"autoBoxLatency" mapstructure:"autoBoxLatency"`
}

type SteeringConfig struct {
	Mode                         SteeringMode `json:"mode" mapstructure:"mode"`
	AngularSpeed                 float64      `json:"angularSpeed" mapstructure:"angularSpeed"`
	UpRatio                      float64      `json:"upRatio" mapstructure:"upRatio"`
	DownRatio                    float64      `json:"downRatio" mapstructure:"downRatio"`
	ThrottleFactor               float64      `json:"throttleFactor" mapstructure:"throttleFactor"`
	TorqueTransferThrottleFactor float64      `json:"torqueTransferThrottleFactor" mapstructure:"torqueTransferThrottleFactor"`
	TorqueTransferSteeringFactor float64      `json:"torqueTransferSteeringFactor" mapstructure:"torqueTransferSteeringFactor"`
	// MaxSteeringAngle (radians) is only used by wheeled vehicles.
	MaxSteeringAngle float64 `json:"maxSteeringAngle" mapstructure:"maxSteeringAngle"`
}

type BrakeConfig struct {
	// BrakeForce is the angular deceleration (rad/s^2) of a track at brake ratio 1.
	BrakeForce                float64 `json:"brakeForce" mapstructure:"brakeForce"`
	AutoBrake                 bool    `json:"autoBrake" mapstructure:"autoBrake"`
	SteeringBrakeFactor       float64 `json:"steeringBrakeFactor" mapstructure:"steeringBrakeFactor"`
	SteeringBrakeTransfer     float64 `json:"steeringBrakeTransfer" mapstructure:"steeringBrakeTransfer"`
	SteeringStabilizer        bool    `json:"steeringStabilizer" mapstructure:"steeringStabilizer"`
	StabilizerMinHullVelocity float64 `json:"stabilizerMinHullVelocity" mapstructure:"stabilizerMinHullVelocity"`
	StabilizerBrakeFactor     float64 `json:"stabilizerBrakeFactor" mapstructure:"stabilizerBrakeFactor"`
	AutoBrakeStableTransfer   float64 `json:"autoBrakeStableTransfer" mapstructure:"autoBrakeStableTransfer"`
}

// FrictionEllipse is an independent-axis friction ellipse.
type FrictionEllipse struct {
	Longitudinal float64 `json:"longitudinal" mapstructure:"longitudinal"`
	Lateral      float64 `json:"lateral" mapstructure:"lateral"`
}

type FrictionConfig struct {
	Static  FrictionEllipse `json:"static" mapstructure:"static"`
	Kinetic FrictionEllipse `json:"kinetic" mapstructure:"kinetic"`
	// KineticVelocity is the slip speed (m/s) at which friction is fully kinetic.
	KineticVelocity            float64 `json:"kineticVelocity" mapstructure:"kineticVelocity"`
	TorqueCoefficient          float64 `json:"torqueCoefficient" mapstructure:"torqueCoefficient"`
	RollingCoefficient         float64 `json:"rollingCoefficient" mapstructure:"rollingCoefficient"`
	RollingVelocityCoefficient float64 `json:"rollingVelocityCoefficient" mapstructure:"rollingVelocityCoefficient"`
	// LateralSlipVelocity is the side slip (m/s) at which a contact's lateral
	// grip saturates. Zero makes lateral grip rigid up to the friction limit.
	LateralSlipVelocity float64 `json:"lateralSlipVelocity" mapstructure:"lateralSlipVelocity"`
}

type DrivetrainConfig struct {
	SprocketMass   float64 `json:"sprocketMass" mapstructure:"sprocketMass"`
	SprocketRadius float64 `json:"sprocketRadius" mapstructure:"sprocketRadius"`
	TrackMass      float64 `json:"trackMass" mapstructure:"trackMass"`
}

type SleepConfig struct {
	Velocity   float64 `json:"velocity" mapstructure:"velocity"`
	Delay      float64 `json:"delay" mapstructure:"delay"`
	NeverSleep bool    `json:"neverSleep" mapstructure:"neverSleep"`
}

// Config is the immutable vehicle setup.
type Config struct {
	Wheeled bool `json:"wheeled" mapstructure:"wheeled"`
	// OverrideMass replaces the body's own mass when positive.
	OverrideMass   float64 `json:"overrideMass" mapstructure:"overrideMass"`
	LinearDamping  float64 `json:"linearDamping" mapstructure:"linearDamping"`
	AngularDamping float64 `json:"angularDamping" mapstructure:"angularDamping"`

	Wheels     []WheelConfig    `json:"wheels" mapstructure:"wheels"`
	Suspension SuspensionConfig `json:"suspension" mapstructure:"suspension"`
	Engine     EngineConfig     `json:"engine" mapstructure:"engine"`
	Gearbox    GearboxConfig    `json:"gearbox" mapstructure:"gearbox"`
	Steering   SteeringConfig   `json:"steering" mapstructure:"steering"`
	Brakes     BrakeConfig      `json:"brakes" mapstructure:"brakes"`
	Friction   FrictionConfig   `json:"friction" mapstructure:"friction"`
	Drivetrain DrivetrainConfig `json:"drivetrain" mapstructure:"drivetrain"`
	Sleep      SleepConfig      `json:"sleep" mapstructure:"sleep"`
}

// DefaultSuspension returns the stock wheel parameters.
func DefaultSuspension() SuspensionConfig {
	return SuspensionConfig{
		Defaults: WheelParams{
			Length:          0.25,
			MaxDrop:         0.10,
			CollisionRadius: 0.36,
			Stiffness:       4000000,
			Damping:         4000,
		},
		StiffnessFactor: 1,
		DampingFactor:   1,
		DropFactor:      8,
	}
}

// DefaultConfig returns a complete medium-tank setup without wheels. Callers
// append their wheel layout (see TankWheels).
func DefaultConfig() Config {
	return Config{
		LinearDamping:  0.01,
		AngularDamping: 0.5,
		Suspension:     DefaultSuspension(),
		Engine: EngineConfig{
			TorqueCurve: []CurvePoint{
				{RPM: 600, Torque: 1800},
				{RPM: 1200, Torque: 2600},
				{RPM: 1800, Torque: 2900},
				{RPM: 2400, Torque: 2600},
				{RPM: 2800, Torque: 2000},
			},
			ExtraPowerRatio:        0.1,
			DifferentialRatio:      6,
			TransmissionEfficiency: 0.9,
			ThrottleUpRatio:        2,
			ThrottleDownRatio:      4,
		},
		Gearbox: GearboxConfig{
			Gears: []GearInfo{
				{Ratio: -6.0, DownRatio: 0.15, UpRatio: 0.9},
				{Ratio: 0},
				{Ratio: 6.0, DownRatio: 0.15, UpRatio: 0.9},
				{Ratio: 3.5, DownRatio: 0.4, UpRatio: 0.9},
				{Ratio: 2.2, DownRatio: 0.45, UpRatio: 0.9},
				{Ratio: 1.4, DownRatio: 0.5, UpRatio: 0.9},
				{Ratio: 1.0, DownRatio: 0.55, UpRatio: 0.95},
			},
			AutoGear:       true,
			AutoBoxLatency: 0.5,
		},
		Steering: SteeringConfig{
			Mode:                         SteeringTorqueTransfer,
			AngularSpeed:                 0.6,
			UpRatio:                      2,
			DownRatio:                    4,
			ThrottleFactor:               -0.3,
			TorqueTransferThrottleFactor: 1,
			TorqueTransferSteeringFactor: 1,
			MaxSteeringAngle:             mgl64.DegToRad(30),
		},
		Brakes: BrakeConfig{
			BrakeForce:                600,
			AutoBrake:                 true,
			SteeringBrakeFactor:       1,
			SteeringBrakeTransfer:     0.5,
			SteeringStabilizer:        true,
			StabilizerMinHullVelocity: 0.05,
			StabilizerBrakeFactor:     0.5,
			AutoBrakeStableTransfer:   0.5,
		},
		Friction: FrictionConfig{
			Static:                     FrictionEllipse{Longitudinal: 1.0, Lateral: 0.6},
			Kinetic:                    FrictionEllipse{Longitudinal: 0.8, Lateral: 0.4},
			KineticVelocity:            1.5,
			TorqueCoefficient:          0.01,
			RollingCoefficient:         0.02,
			RollingVelocityCoefficient: 10,
			LateralSlipVelocity:        1,
		},
		Drivetrain: DrivetrainConfig{
			SprocketMass:   65,
			SprocketRadius: 0.35,
			TrackMass:      600,
		},
		Sleep: SleepConfig{
			Velocity: 0.05,
			Delay:    2,
		},
	}
}

// TankWheels lays out perSide road wheels on each track, spaced evenly along X
// between -length/2 and +length/2, at half track width. The front and rear
// wheels on each side are driving wheels.
func TankWheels(perSide int, length, width, height float64) []WheelConfig {
	wheels := make([]WheelConfig, 0, perSide*2)
	for _, right := range []bool{false, true} {
		y := width / 2
		if right {
			y = -y
		}
		for i := 0; i < perSide; i++ {
			x := length / 2
			if perSide > 1 {
				x = length/2 - float64(i)*length/float64(perSide-1)
			}
			wheels = append(wheels, WheelConfig{
				Mount: Mount{
					Kind:     MountExplicit,
					Location: mgl64.Vec3{x, y, height},
				},
				RightTrack:      right,
				Driving:         i == 0 || i == perSide-1,
				AnimateOffset:   true,
				AnimateRotation: true,
			})
		}
	}
	return wheels
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if len(c.Wheels) == 0 {
		return configErr("wheels", "at least one wheel is required")
	}
	if c.OverrideMass < 0 || !finite(c.OverrideMass) {
		return configErr("overrideMass", "must be a non-negative number, got %v", c.OverrideMass)
	}
	if err := validateParams("suspension.defaults", c.Suspension.Defaults); err != nil {
		return err
	}
	for i, w := range c.Wheels {
		if w.Params != nil {
			if err := validateParams(fmt.Sprintf("wheels[%d].params", i), *w.Params); err != nil {
				return err
			}
		}
		switch w.Mount.Kind {
		case MountExplicit, "":
		case MountBone:
			if w.Mount.Bone == "" {
				return configErr(fmt.Sprintf("wheels[%d].mount.bone", i), "bone mount needs a bone name")
			}
		default:
			return configErr(fmt.Sprintf("wheels[%d].mount.kind", i), "unknown mount kind %q", w.Mount.Kind)
		}
	}
	if c.Suspension.StiffnessFactor < 0 || c.Suspension.DampingFactor < 0 || c.Suspension.DropFactor < 0 {
		return configErr("suspension", "factors must not be negative")
	}

	if len(c.Gearbox.Gears) == 0 {
		return configErr("gearbox.gears", "gear table is empty")
	}
	neutral := neutralIndex(c.Gearbox.Gears)
	if neutral < 0 {
		return configErr("gearbox.gears", "gear table has no neutral (zero ratio) entry")
	}
	for i, g := range c.Gearbox.Gears {
		if !finite(g.Ratio) || !finite(g.UpRatio) || !finite(g.DownRatio) {
			return configErr(fmt.Sprintf("gearbox.gears[%d]", i), "non-finite value")
		}
		if i > neutral && g.Ratio <= 0 {
			return configErr(fmt.Sprintf("gearbox.gears[%d].ratio", i), "forward gear ratio must be positive, got %v", g.Ratio)
		}
		if i < neutral && g.Ratio == 0 {
			return configErr(fmt.Sprintf("gearbox.gears[%d].ratio", i), "reverse gear ratio must not be zero")
		}
		if i != neutral && g.DownRatio >= g.UpRatio {
			return configErr(fmt.Sprintf("gearbox.gears[%d]", i), "downRatio %v must be below upRatio %v", g.DownRatio, g.UpRatio)
		}
	}
	if c.Gearbox.AutoBoxLatency < 0 {
		return configErr("gearbox.autoBoxLatency", "must not be negative")
	}

	curve := c.Engine.TorqueCurve
	if len(curve) < 2 {
		return configErr("engine.torqueCurve", "needs at least two samples, got %d", len(curve))
	}
	for i := 1; i < len(curve); i++ {
		if !(curve[i].RPM > curve[i-1].RPM) {
			return configErr(fmt.Sprintf("engine.torqueCurve[%d].rpm", i), "RPM samples must be strictly increasing")
		}
	}
	if curve[0].RPM < 0 {
		return configErr("engine.torqueCurve[0].rpm", "must not be negative")
	}
	if c.Engine.DifferentialRatio <= 0 {
		return configErr("engine.differentialRatio", "must be positive")
	}
	if c.Engine.TransmissionEfficiency <= 0 || c.Engine.TransmissionEfficiency > 1 {
		return configErr("engine.transmissionEfficiency", "must be in (0, 1], got %v", c.Engine.TransmissionEfficiency)
	}
	if c.Engine.ThrottleUpRatio <= 0 || c.Engine.ThrottleDownRatio <= 0 {
		return configErr("engine", "throttle up/down ratios must be positive")
	}

	switch c.Steering.Mode {
	case SteeringTorqueTransfer, SteeringAngularVelocity:
	default:
		return configErr("steering.mode", "unknown steering mode %q", c.Steering.Mode)
	}
	if c.Steering.ThrottleFactor < -1 || c.Steering.ThrottleFactor > 1 {
		return configErr("steering.throttleFactor", "must be in [-1, 1]")
	}

	if err := validateEllipse("friction.static", c.Friction.Static); err != nil {
		return err
	}
	if err := validateEllipse("friction.kinetic", c.Friction.Kinetic); err != nil {
		return err
	}
	if c.Friction.KineticVelocity <= 0 {
		return configErr("friction.kineticVelocity", "must be positive")
	}
	if c.Friction.TorqueCoefficient < 0 || c.Friction.RollingCoefficient < 0 || c.Friction.RollingVelocityCoefficient < 0 ||
		c.Friction.LateralSlipVelocity < 0 {
		return configErr("friction", "coefficients must not be negative")
	}

	if c.Drivetrain.SprocketRadius <= 0 {
		return configErr("drivetrain.sprocketRadius", "must be positive")
	}
	if c.Drivetrain.SprocketMass < 0 || c.Drivetrain.TrackMass < 0 || c.Drivetrain.SprocketMass+c.Drivetrain.TrackMass <= 0 {
		return configErr("drivetrain", "sprocket and track mass must give a positive moment of inertia")
	}
	if c.Brakes.BrakeForce < 0 {
		return configErr("brakes.brakeForce", "must not be negative")
	}
	if c.Sleep.Velocity < 0 || c.Sleep.Delay < 0 {
		return configErr("sleep", "velocity and delay must not be negative")
	}
	return nil
}

func validateParams(field string, p WheelParams) error {
	switch {
	case !(p.Length >= 0) || !(p.MaxDrop >= 0) || p.Travel() <= 0:
		return configErr(field, "suspension travel must be positive")
	case !(p.CollisionRadius > 0):
		return configErr(field+".collisionRadius", "must be positive")
	case !(p.Stiffness >= 0) || !(p.Damping >= 0):
		return configErr(field, "stiffness and damping must not be negative")
	}
	return nil
}

func validateEllipse(field string, e FrictionEllipse) error {
	if !(e.Longitudinal > 0) || !(e.Lateral > 0) || !finite(e.Longitudinal) || !finite(e.Lateral) {
		return configErr(field, "degenerate friction ellipse {%v, %v}", e.Longitudinal, e.Lateral)
	}
	return nil
}

func neutralIndex(gears []GearInfo) int {
	for i, g := range gears {
		if g.Ratio == 0 {
			return i
		}
	}
	return -1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
