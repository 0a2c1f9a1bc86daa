// Package vehicle implements per-tick tracked and wheeled vehicle dynamics on
// top of an external rigid body: suspension, track traction, engine and
// gearbox, steering distribution and an idle sleep controller.
//
// A Vehicle is not safe for concurrent use. One goroutine owns it and calls
// Tick once per fixed simulation step, then integrates the body.
package vehicle

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// minDeltaTime below which velocity terms (damping, slip cancel) are skipped.
	minDeltaTime = 1e-6
	epsilon      = 1e-9
)

// Option configures a Vehicle.
type Option func(*Vehicle)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vehicle) {
		v.logger = l
	}
}

// WithSkeleton resolves bone-mounted wheels.
func WithSkeleton(s Skeleton) Option {
	return func(v *Vehicle) {
		v.skeleton = s
	}
}

// WithSleepListener registers the receiver of sleep state changes.
func WithSleepListener(l SleepListener) Option {
	return func(v *Vehicle) {
		v.listener = l
	}
}

// Sleeper is implemented by bodies that can be frozen while the vehicle sleeps.
type Sleeper interface {
	SetSleeping(asleep bool)
}

type wheel struct {
	cfg    WheelConfig
	params WheelParams
	// mount is the body-space mount transform.
	mount Pose
	// forward is this tick's contact-plane drive direction in world space.
	forward mgl64.Vec3
	state   WheelState
}

// Vehicle is the per-instance dynamics aggregate.
type Vehicle struct {
	cfg      Config
	body     Body
	ground   Ground
	skeleton Skeleton
	listener SleepListener
	logger   *slog.Logger
	metrics  *metrics

	curve   *torqueCurve
	neutral int

	wheels []wheel
	tracks [2]TrackState
	engine EngineState
	hull   BodyState
	sleep  SleepState

	rawThrottle float64
	steering    float64
	handbrake   bool
	neverSleep  bool

	// throttle is the ramped throttle magnitude in [0, 1].
	throttle     float64
	serviceBrake float64
	steerAngle   float64
	targetYaw    float64
	yawCommand   float64

	pose   Pose
	forces []appliedForce

	clock float64
	ticks uint64
}

type appliedForce struct {
	force, at mgl64.Vec3
}

// New builds a vehicle on body. It validates cfg, applies the mass override and
// sets the body's inertia tensor. The vehicle starts awake.
func New(cfg Config, body Body, ground Ground, opts ...Option) (*Vehicle, error) {
	if body == nil || ground == nil {
		return nil, fmt.Errorf("%w: body and ground collaborators are required", ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &Vehicle{
		cfg:        cfg,
		body:       body,
		ground:     ground,
		logger:     slog.New(slog.DiscardHandler),
		neutral:    neutralIndex(cfg.Gearbox.Gears),
		neverSleep: cfg.Sleep.NeverSleep,
	}
	for _, opt := range opts {
		opt(v)
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	v.metrics = m

	v.curve, err = newTorqueCurve(cfg.Engine.TorqueCurve)
	if err != nil {
		return nil, err
	}

	if err := v.initWheels(); err != nil {
		return nil, err
	}
	if err := v.initBody(); err != nil {
		return nil, err
	}

	v.tracks[SideLeft].Side = SideLeft
	v.tracks[SideRight].Side = SideRight

	v.engine.MinRPM = v.curve.min
	v.engine.MaxRPM = v.curve.max
	v.engine.RPM = v.curve.min
	v.engine.Gear = v.neutral
	if cfg.Gearbox.AutoGear && v.neutral+1 < len(cfg.Gearbox.Gears) {
		v.engine.Gear = v.neutral + 1
	}
	v.engine.LastShiftTime = math.Inf(-1)

	v.logger.Debug("vehicle initialized",
		"wheels", len(v.wheels),
		"mass", v.hull.Mass,
		"yawMOI", v.hull.YawMOI,
		"trackMOI", v.hull.TrackMOI,
		"gear", v.engine.Gear,
		"steeringMode", string(cfg.Steering.Mode))
	return v, nil
}

func (v *Vehicle) initWheels() error {
	v.wheels = make([]wheel, len(v.cfg.Wheels))
	for i, wc := range v.cfg.Wheels {
		params := v.cfg.Suspension.Defaults
		if wc.Params != nil {
			params = *wc.Params
		}

		var mount Pose
		switch wc.Mount.Kind {
		case MountBone:
			if v.skeleton == nil {
				return configErr(fmt.Sprintf("wheels[%d].mount", i), "bone mount %q without a skeleton", wc.Mount.Bone)
			}
			p, ok := v.skeleton.BoneTransform(wc.Mount.Bone)
			if !ok {
				return configErr(fmt.Sprintf("wheels[%d].mount.bone", i), "bone %q not found", wc.Mount.Bone)
			}
			mount = p
		default:
			mount = Pose{Position: wc.Mount.Location, Rotation: wc.Mount.Rotation.Quat()}
		}

		travel := params.Travel()
		v.wheels[i] = wheel{
			cfg:    wc,
			params: params,
			mount:  mount,
			state: WheelState{
				Index:          i,
				Side:           wc.Side(),
				PreviousLength: travel,
				CurrentLength:  travel,
				VisualLength:   travel,
			},
		}
	}
	return nil
}

// Tick advances the vehicle by dt seconds and hands the resulting forces to
// the body. It never fails; degenerate inputs degrade to zero force.
func (v *Vehicle) Tick(dt float64) {
	if !(dt > 0) || !finite(dt) {
		return
	}
	v.clock += dt
	v.ticks++
	v.pose = v.body.Pose()

	if !v.updateSleep(dt) {
		v.metrics.tick(false)
		return
	}
	v.metrics.tick(true)

	v.updateInput(dt)
	v.updateSuspension(dt)
	v.measureTraction()
	v.updateEngine()
	v.distribute()
	v.integrateTracks(dt)
	v.applyTraction(dt)
	v.applyBodyForces()
	v.animateWheels(dt)
}

// Config returns the vehicle configuration.
func (v *Vehicle) Config() Config { return v.cfg }

// Clock is the accumulated simulation time in seconds.
func (v *Vehicle) Clock() float64 { return v.clock }

// Ticks is the number of Tick calls with a positive dt.
func (v *Vehicle) Ticks() uint64 { return v.ticks }
