package vehicle

import "github.com/go-gl/mathgl/mgl64"

// updateSleep runs the sleep controller and reports whether the rest of the
// pipeline should run this tick.
func (v *Vehicle) updateSleep(dt float64) bool {
	speed := v.body.LinearVelocity().Len()
	cfg := v.cfg.Sleep

	if v.sleep.Asleep {
		if v.neverSleep || v.HasInput() || speed > cfg.Velocity {
			v.setAsleep(false)
			return true
		}
		return false
	}

	if v.neverSleep || v.HasInput() || speed >= cfg.Velocity {
		v.sleep.Timer = 0
		return true
	}

	v.sleep.Timer += dt
	if v.sleep.Timer > cfg.Delay {
		v.setAsleep(true)
		return false
	}
	return true
}

func (v *Vehicle) setAsleep(asleep bool) {
	if v.sleep.Asleep == asleep {
		return
	}
	v.sleep.Asleep = asleep
	v.sleep.Timer = 0

	if asleep {
		v.settle()
	}
	if s, ok := v.body.(Sleeper); ok {
		s.SetSleeping(asleep)
	}

	v.metrics.sleep(asleep)
	v.logger.Debug("sleep state changed", "asleep", asleep, "time", v.clock)
	if v.listener != nil {
		v.listener.OnSleepStateChanged(SleepEvent{IsSleeping: asleep, Time: v.clock})
	}
}

// settle zeroes the drivetrain so a woken vehicle starts from rest.
func (v *Vehicle) settle() {
	for s := range v.tracks {
		t := &v.tracks[s]
		t.AngularVelocity = 0
		t.EffectiveAngularVelocity = 0
		t.LinearVelocity = 0
		t.DriveTorque = 0
		t.FrictionTorque = 0
		t.RollingFrictionTorque = 0
		t.GroundTorque = 0
		t.DriveForce = mgl64.Vec3{}
	}
	v.engine.RPM = v.engine.MinRPM
	v.engine.Torque = 0
	v.engine.DriveTorque = 0
	v.throttle = 0
	v.yawCommand = 0
	v.forces = v.forces[:0]
}

// IsSleeping reports whether the pipeline is suspended.
func (v *Vehicle) IsSleeping() bool { return v.sleep.Asleep }

// SleepTimer is the time spent below the sleep velocity without input.
func (v *Vehicle) SleepTimer() float64 { return v.sleep.Timer }

// SetForceNeverSleep keeps the vehicle awake while set and wakes it now if it
// is asleep.
func (v *Vehicle) SetForceNeverSleep(never bool) {
	v.neverSleep = never
	if never {
		v.setAsleep(false)
	}
}

// ApplySleepState mirrors a sleep state received from the authority. It does
// not simulate and applying the same state twice has no effect.
func (v *Vehicle) ApplySleepState(asleep bool) {
	if v.sleep.Asleep == asleep {
		return
	}
	v.sleep.Asleep = asleep
	v.sleep.Timer = 0
	if asleep {
		v.settle()
	}
	if s, ok := v.body.(Sleeper); ok {
		s.SetSleeping(asleep)
	}
	v.logger.Debug("mirrored sleep state", "asleep", asleep)
}
