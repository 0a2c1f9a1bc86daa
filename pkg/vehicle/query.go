package vehicle

import "fmt"

// ForwardSpeed is the hull velocity along its forward axis (m/s).
func (v *Vehicle) ForwardSpeed() float64 {
	return v.body.LinearVelocity().Dot(v.body.Pose().Forward())
}

// Throttle is the ramped throttle the engine sees, in [0, 1].
func (v *Vehicle) Throttle() float64 { return v.throttle }

// ThrottleInput is the raw throttle as last set.
func (v *Vehicle) ThrottleInput() float64 { return v.rawThrottle }

func (v *Vehicle) SteeringInput() float64 { return v.steering }

func (v *Vehicle) HandbrakeInput() bool { return v.handbrake }

func (v *Vehicle) EngineRPM() float64 { return v.engine.RPM }

func (v *Vehicle) MaxEngineRPM() float64 { return v.engine.MaxRPM }

func (v *Vehicle) EngineTorque() float64 { return v.engine.Torque }

// Engine returns a copy of the engine state.
func (v *Vehicle) Engine() EngineState { return v.engine }

// BodyState returns a copy of the derived chassis state.
func (v *Vehicle) BodyState() BodyState { return v.hull }

// Track returns a copy of one track's state.
func (v *Vehicle) Track(s Side) TrackState {
	if s != SideRight {
		s = SideLeft
	}
	return v.tracks[s]
}

func (v *Vehicle) DriveTorque(s Side) float64 { return v.Track(s).DriveTorque }

func (v *Vehicle) AngularVelocity(s Side) float64 { return v.Track(s).AngularVelocity }

func (v *Vehicle) BrakeRatio(s Side) float64 { return v.Track(s).BrakeRatio }

func (v *Vehicle) CurrentGear() int { return v.engine.Gear }

func (v *Vehicle) NeutralGear() int { return v.neutral }

func (v *Vehicle) IsReverse() bool { return v.engine.Reverse }

// GearInfo returns gear i of the table, or ErrOutOfRange with a zero GearInfo.
func (v *Vehicle) GearInfo(i int) (GearInfo, error) {
	if i < 0 || i >= len(v.cfg.Gearbox.Gears) {
		return GearInfo{}, fmt.Errorf("%w: gear %d of %d", ErrOutOfRange, i, len(v.cfg.Gearbox.Gears))
	}
	return v.cfg.Gearbox.Gears[i], nil
}

func (v *Vehicle) CurrentGearInfo() GearInfo {
	return v.cfg.Gearbox.Gears[v.engine.Gear]
}

func (v *Vehicle) NumWheels() int { return len(v.wheels) }

// WheelState returns a copy of wheel i's state, or ErrOutOfRange.
func (v *Vehicle) WheelState(i int) (WheelState, error) {
	if i < 0 || i >= len(v.wheels) {
		return WheelState{}, fmt.Errorf("%w: wheel %d of %d", ErrOutOfRange, i, len(v.wheels))
	}
	return v.wheels[i].state, nil
}

func (v *Vehicle) HullAngularVelocity() float64 { return v.hull.HullAngularVelocity }

func (v *Vehicle) YawMOI() float64 { return v.hull.YawMOI }
