package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// directionSwitchSpeed is the forward speed (m/s) below which the automatic
// gearbox swaps between forward and reverse instead of braking.
const directionSwitchSpeed = 0.5

// updateInput ramps the throttle and sets the steering angle of wheeled
// vehicles.
func (v *Vehicle) updateInput(dt float64) {
	target := math.Abs(v.rawThrottle)
	rate := v.cfg.Engine.ThrottleDownRatio
	if target > v.throttle {
		rate = v.cfg.Engine.ThrottleUpRatio
	}
	v.throttle = towardTarget(v.throttle, target, rate*dt)

	v.steerAngle = 0
	if v.cfg.Wheeled {
		v.steerAngle = -v.steering * v.cfg.Steering.MaxSteeringAngle
	}
	for i := range v.wheels {
		if v.wheels[i].cfg.Steering {
			v.wheels[i].state.SteeringAngle = v.steerAngle
		}
	}
}

// direction is +1 in a forward gear, -1 in reverse and 0 in neutral.
func (v *Vehicle) direction() float64 {
	switch {
	case v.engine.Gear > v.neutral:
		return 1
	case v.engine.Gear < v.neutral:
		return -1
	}
	return 0
}

func (v *Vehicle) engineRPM() float64 {
	e := &v.engine
	if e.Gear == v.neutral {
		return e.MinRPM + (e.MaxRPM-e.MinRPM)*v.throttle
	}
	omega := (math.Abs(v.tracks[SideLeft].EffectiveAngularVelocity) +
		math.Abs(v.tracks[SideRight].EffectiveAngularVelocity)) / 2
	ratio := math.Abs(v.cfg.Gearbox.Gears[e.Gear].Ratio) * v.cfg.Engine.DifferentialRatio
	rpm := omegaToRPM(omega * ratio)
	if !finite(rpm) {
		return e.MinRPM
	}
	return mgl64.Clamp(rpm, e.MinRPM, e.MaxRPM)
}

// updateEngine derives RPM from this tick's effective track speed, lets the
// automatic gearbox react, and computes engine and gearbox output torque.
func (v *Vehicle) updateEngine() {
	e := &v.engine
	e.RPM = v.engineRPM()
	if v.cfg.Gearbox.AutoGear && v.autoShift() {
		e.RPM = v.engineRPM()
	}

	dir := v.direction()
	demand := v.throttle
	v.serviceBrake = 0
	if v.rawThrottle != 0 && dir != 0 && sign(v.rawThrottle) != dir {
		// Throttle against the engaged direction brakes instead.
		v.serviceBrake = v.throttle
		demand = 0
	}
	if !v.cfg.Wheeled && v.cfg.Steering.Mode == SteeringTorqueTransfer {
		// Pivot turns draw engine power from the steering input alone.
		pivot := mgl64.Clamp(math.Abs(v.steering)*v.cfg.Steering.TorqueTransferSteeringFactor, 0, 1)
		demand = math.Max(demand, pivot)
	}
	e.Demand = demand

	e.Torque = v.curve.At(e.RPM) * demand * (1 + v.cfg.Engine.ExtraPowerRatio*demand)
	ratio := math.Abs(v.cfg.Gearbox.Gears[e.Gear].Ratio)
	e.DriveTorque = e.Torque * ratio * v.cfg.Engine.DifferentialRatio * v.cfg.Engine.TransmissionEfficiency * dir
}

// autoShift runs one step of the automatic gearbox. It reports whether the
// gear changed. Shifts are at least AutoBoxLatency seconds apart.
func (v *Vehicle) autoShift() bool {
	e := &v.engine
	if v.clock-e.LastShiftTime < v.cfg.Gearbox.AutoBoxLatency {
		return false
	}

	gears := v.cfg.Gearbox.Gears
	g := e.Gear
	want := sign(v.rawThrottle)
	speed := v.hull.ForwardSpeed
	target := g

	switch {
	case want < 0 && g >= v.neutral && speed < directionSwitchSpeed && v.neutral > 0:
		target = v.neutral - 1
	case want > 0 && g <= v.neutral && speed > -directionSwitchSpeed && v.neutral+1 < len(gears):
		target = v.neutral + 1
	case g != v.neutral:
		ratio := e.RPM / e.MaxRPM
		info := gears[g]
		up, down := g+1, g-1
		if g < v.neutral {
			up, down = g-1, g+1
		}
		switch {
		case ratio > info.UpRatio && v.sameDirection(up, g):
			target = up
		case ratio < info.DownRatio && v.sameDirection(down, g):
			target = down
		}
	}

	if target == g {
		return false
	}
	v.setGear(target, "auto")
	return true
}

// sameDirection reports whether gear index i exists and lies on the same side
// of neutral as g.
func (v *Vehicle) sameDirection(i, g int) bool {
	if i < 0 || i >= len(v.cfg.Gearbox.Gears) || i == v.neutral {
		return false
	}
	return (i < v.neutral) == (g < v.neutral)
}

func (v *Vehicle) setGear(i int, origin string) {
	e := &v.engine
	prev := e.Gear
	e.Gear = i
	e.Reverse = i < v.neutral
	e.LastShiftTime = v.clock
	e.LastShiftHullVelocity = v.hull.ForwardSpeed
	v.metrics.shift(origin)
	v.logger.Debug("gear changed",
		"from", prev,
		"to", i,
		"reverse", e.Reverse,
		"origin", origin,
		"rpm", e.RPM,
		"time", v.clock)
}

// ShiftGear moves one gear up or down the table. It ignores the automatic
// gearbox latency but never leaves the table; at either end it is a no-op.
// It reports whether the gear changed.
func (v *Vehicle) ShiftGear(up bool) bool {
	i := v.engine.Gear - 1
	if up {
		i = v.engine.Gear + 1
	}
	if i < 0 || i >= len(v.cfg.Gearbox.Gears) {
		return false
	}
	v.setGear(i, "manual")
	return true
}
