package runner

import (
	"math"
	"time"

	"github.com/tracksim/tracksim/internal/rigidbody"
	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

// Status is a snapshot published after every tick.
type Status struct {
	Tick     uint64
	SimTime  float64
	Time     time.Time
	Position core.Position3D
	Heading  float64
	Speed    float64

	Throttle  float64
	Steering  float64
	Handbrake bool
	HasInput  bool

	Gear     int
	Reverse  bool
	RPM      float64
	Sleeping bool
}

// Status returns the snapshot of the last tick. It is safe to call from
// any goroutine.
func (r *Runner) Status() Status {
	if s := r.status.Load(); s != nil {
		return *s
	}
	return Status{}
}

func (r *Runner) publish(start time.Time) *Status {
	v, pos := r.v, r.body.Pose()
	st := &Status{
		Tick:      v.Ticks(),
		SimTime:   v.Clock(),
		Time:      timeAt(start, v.Clock()),
		Position:  core.Position3D{X: pos.Position.X(), Y: pos.Position.Y(), Z: pos.Position.Z()},
		Heading:   heading(pos),
		Speed:     v.ForwardSpeed(),
		Throttle:  v.ThrottleInput(),
		Steering:  v.SteeringInput(),
		Handbrake: v.HandbrakeInput(),
		HasInput:  v.HasInput(),
		Gear:      v.CurrentGear(),
		Reverse:   v.IsReverse(),
		RPM:       v.EngineRPM(),
		Sleeping:  v.IsSleeping(),
	}
	r.status.Store(st)
	return st
}

func timeAt(start time.Time, simTime float64) time.Time {
	if start.IsZero() {
		return time.Time{}
	}
	return start.Add(time.Duration(simTime * float64(time.Second)))
}

// heading is the yaw of the hull's forward axis in degrees, 0 along +X and
// increasing counter-clockwise.
func heading(p vehicle.Pose) float64 {
	f := p.Forward()
	return math.Atan2(f.Y(), f.X()) * 180 / math.Pi
}

// capture builds the telemetry sample of the current tick.
func capture(v *vehicle.Vehicle, body *rigidbody.Body, at time.Time) core.Sample {
	pose := body.Pose()
	s := core.Sample{
		Tick:     v.Ticks(),
		Time:     at,
		SimTime:  v.Clock(),
		Position: core.Position3D{X: pose.Position.X(), Y: pose.Position.Y(), Z: pose.Position.Z()},
		Heading:  heading(pose),
		Speed:    v.ForwardSpeed(),
		YawRate:  body.AngularVelocity().Z(),

		Throttle:  v.ThrottleInput(),
		Steering:  v.SteeringInput(),
		Handbrake: v.HandbrakeInput(),

		Gear:         v.CurrentGear(),
		Reverse:      v.IsReverse(),
		EngineRPM:    v.EngineRPM(),
		EngineTorque: v.EngineTorque(),

		Left:  trackSample(v.Track(vehicle.SideLeft)),
		Right: trackSample(v.Track(vehicle.SideRight)),

		Sleeping: v.IsSleeping(),
		Wheels:   make([]core.WheelSample, 0, v.NumWheels()),
	}
	for i := 0; i < v.NumWheels(); i++ {
		ws, err := v.WheelState(i)
		if err != nil {
			continue
		}
		s.Wheels = append(s.Wheels, core.WheelSample{
			Index:        i,
			Grounded:     ws.TouchedGround,
			Compression:  ws.Compression,
			Load:         ws.Load,
			VisualLength: ws.VisualLength,
			Surface:      ws.Surface,
		})
	}
	return s
}

func trackSample(t vehicle.TrackState) core.TrackSample {
	return core.TrackSample{
		AngularVelocity: t.AngularVelocity,
		DriveTorque:     t.DriveTorque,
		BrakeRatio:      t.BrakeRatio,
		Load:            t.Load,
		Contacts:        t.Contacts,
	}
}
