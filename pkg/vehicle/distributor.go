package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// distribute splits the gearbox torque between the tracks and sets their
// brake ratios. The handbrake overrides every steering mode.
func (v *Vehicle) distribute() {
	left, right := &v.tracks[SideLeft], &v.tracks[SideRight]
	v.targetYaw = 0

	if v.handbrake {
		for _, t := range []*TrackState{left, right} {
			t.Input = 0
			t.TorqueTransfer = 0
			t.DriveTorque = 0
			t.BrakeRatio = 1
		}
		return
	}

	d := v.engine.DriveTorque
	throttle := v.throttle
	steer := v.steering
	brake := [2]float64{v.serviceBrake, v.serviceBrake}

	switch {
	case v.cfg.Wheeled:
		left.TorqueTransfer, right.TorqueTransfer = 1, 1
		left.Input, right.Input = throttle, throttle

	case v.cfg.Steering.Mode == SteeringAngularVelocity:
		left.TorqueTransfer, right.TorqueTransfer = 1, 1
		left.Input, right.Input = throttle, throttle
		scale := math.Max(0, 1+v.cfg.Steering.ThrottleFactor*throttle)
		v.targetYaw = -steer * v.cfg.Steering.AngularSpeed * scale

	default:
		tt := v.cfg.Steering.TorqueTransferThrottleFactor * throttle
		ts := v.cfg.Steering.TorqueTransferSteeringFactor * steer
		left.TorqueTransfer = mgl64.Clamp(tt+ts, -1, 1)
		right.TorqueTransfer = mgl64.Clamp(tt-ts, -1, 1)
		left.Input = mgl64.Clamp(throttle+steer, -1, 1)
		right.Input = mgl64.Clamp(throttle-steer, -1, 1)

		if steer != 0 {
			inner := SideRight
			if steer < 0 {
				inner = SideLeft
			}
			fade := 1 - mgl64.Clamp(throttle*v.cfg.Brakes.SteeringBrakeTransfer, 0, 1)
			brake[inner] = math.Max(brake[inner], math.Abs(steer)*v.cfg.Brakes.SteeringBrakeFactor*fade)
		}
	}

	left.DriveTorque = d / 2 * left.TorqueTransfer
	right.DriveTorque = d / 2 * right.TorqueTransfer

	if v.stabilizing() {
		// The track on the outside of the unwanted turn leads it.
		leading, trailing := SideRight, SideLeft
		if v.hull.HullAngularVelocity < 0 {
			leading, trailing = SideLeft, SideRight
		}
		f := v.cfg.Brakes.StabilizerBrakeFactor
		brake[leading] = math.Max(brake[leading], f)
		brake[trailing] = math.Max(brake[trailing], f*v.cfg.Brakes.AutoBrakeStableTransfer)
	}

	left.BrakeRatio = mgl64.Clamp(brake[SideLeft], 0, 1)
	right.BrakeRatio = mgl64.Clamp(brake[SideRight], 0, 1)
}

// stabilizing reports whether the steering stabilizer brakes this tick.
func (v *Vehicle) stabilizing() bool {
	b := v.cfg.Brakes
	return b.AutoBrake && b.SteeringStabilizer && !v.HasInput() &&
		math.Abs(v.hull.HullAngularVelocity) > b.StabilizerMinHullVelocity
}
