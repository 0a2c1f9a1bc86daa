package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// frictionCoefficient evaluates an ellipse in the direction making angle
// (cos, sin) with the forward axis.
func frictionCoefficient(e FrictionEllipse, cos, sin float64) float64 {
	return math.Hypot(cos*e.Longitudinal, sin*e.Lateral)
}

// blendedFriction interpolates from static to kinetic friction as slip speed
// approaches kineticVelocity.
func blendedFriction(f FrictionConfig, slip, forward mgl64.Vec3) float64 {
	speed := slip.Len()
	if speed < epsilon {
		return f.Static.Longitudinal
	}
	cos := mgl64.Clamp(slip.Dot(forward)/speed, -1, 1)
	sin := math.Sqrt(1 - cos*cos)
	static := frictionCoefficient(f.Static, cos, sin)
	kinetic := frictionCoefficient(f.Kinetic, cos, sin)
	t := mgl64.Clamp(speed/f.KineticVelocity, 0, 1)
	return static + (kinetic-static)*t
}

// kineticBlend interpolates each ellipse axis from static to kinetic at the
// given slip speed.
func kineticBlend(f FrictionConfig, speed float64) FrictionEllipse {
	t := mgl64.Clamp(speed/f.KineticVelocity, 0, 1)
	return FrictionEllipse{
		Longitudinal: f.Static.Longitudinal + (f.Kinetic.Longitudinal-f.Static.Longitudinal)*t,
		Lateral:      f.Static.Lateral + (f.Kinetic.Lateral-f.Static.Lateral)*t,
	}
}

// applyBrake slows omega by ratio*brakeForce*dt without reversing it.
func applyBrake(omega, ratio, brakeForce, dt float64) float64 {
	dv := ratio * brakeForce * dt
	if math.Abs(omega) > math.Abs(dv) {
		return omega - dv*sign(omega)
	}
	return 0
}

// towardTarget moves x toward target by at most step, never past it.
func towardTarget(x, target, step float64) float64 {
	d := target - x
	if math.Abs(d) <= step {
		return target
	}
	return x + step*sign(d)
}

// measureTraction samples contact kinematics for tick N and derives each
// track's effective angular velocity from the ground speed under it.
func (v *Vehicle) measureTraction() {
	fwd := v.pose.Forward()
	up := v.pose.Up()
	r := v.cfg.Drivetrain.SprocketRadius

	var groundSpeed [2]float64
	for s := range v.tracks {
		t := &v.tracks[s]
		t.Load = 0
		t.Contacts = 0
	}
	v.hull.ActiveFrictionPoints = 0
	v.hull.ActiveDrivenFrictionPoints = 0

	for i := range v.wheels {
		w := &v.wheels[i]
		st := &w.state

		dir := fwd
		if v.cfg.Wheeled && w.cfg.Steering {
			dir = mgl64.QuatRotate(st.SteeringAngle, up).Rotate(fwd)
		}
		if !st.TouchedGround {
			w.forward = dir
			continue
		}
		w.forward = planeDirection(dir, st.ContactNormal, dir)

		t := &v.tracks[st.Side]
		t.Load += st.Load
		t.Contacts++
		groundSpeed[st.Side] += st.Load * st.ContactVelocity.Dot(w.forward)

		v.hull.ActiveFrictionPoints++
		if w.cfg.Driving {
			v.hull.ActiveDrivenFrictionPoints++
		}
	}

	for s := range v.tracks {
		t := &v.tracks[s]
		if t.Load > epsilon {
			t.EffectiveAngularVelocity = groundSpeed[s] / t.Load / r
		} else {
			t.EffectiveAngularVelocity = t.AngularVelocity
		}
	}

	v.hull.HullAngularVelocity = v.body.AngularVelocity().Dot(up)
	v.hull.ForwardSpeed = v.body.LinearVelocity().Dot(fwd)
}

// integrateTracks advances each track's angular velocity by its drive
// torque, drivetrain drag toward the ground speed and rolling resistance. The
// ground reaction and the brakes follow in applyTraction.
func (v *Vehicle) integrateTracks(dt float64) {
	moi := v.hull.TrackMOI
	r := v.cfg.Drivetrain.SprocketRadius
	f := v.cfg.Friction
	limit := v.maxTrackAngularVelocity()

	v.updateYawCommand(dt)

	for s := range v.tracks {
		t := &v.tracks[s]
		omega := t.AngularVelocity + t.DriveTorque/moi*dt

		t.FrictionTorque = 0
		if t.Load > epsilon {
			step := f.TorqueCoefficient * t.Load * dt / moi
			next := towardTarget(omega, t.EffectiveAngularVelocity, step)
			t.FrictionTorque = (next - omega) * moi / dt
			omega = next
		}

		t.RollingFrictionTorque = 0
		if v.rawThrottle == 0 && t.Load > epsilon {
			scale := 0.0
			if f.RollingVelocityCoefficient > 0 {
				scale = mgl64.Clamp(1-math.Abs(omega*r)/f.RollingVelocityCoefficient, 0, 1)
			}
			step := f.RollingCoefficient * t.Load * scale * dt / moi
			next := towardTarget(omega, 0, step)
			t.RollingFrictionTorque = (next - omega) * moi / dt
			omega = next
		}

		t.AngularVelocity = mgl64.Clamp(omega, -limit, limit)
		t.LinearVelocity = t.AngularVelocity * r
	}
}

// maxTrackAngularVelocity is the sprocket speed at maximum engine RPM in the
// current gear, or unbounded in neutral.
func (v *Vehicle) maxTrackAngularVelocity() float64 {
	ratio := math.Abs(v.cfg.Gearbox.Gears[v.engine.Gear].Ratio) * v.cfg.Engine.DifferentialRatio
	if ratio < epsilon {
		return math.MaxFloat64
	}
	return rpmToOmega(v.engine.MaxRPM) / ratio
}

// applyTraction couples the tracks to the ground. Each contact pushes back on
// the slip between the ground and the track surface under it, bounded by the
// friction ellipse and wheel load, and the longitudinal part of that push
// spins its track before the brakes act.
func (v *Vehicle) applyTraction(dt float64) {
	r := v.cfg.Drivetrain.SprocketRadius
	totalLoad := v.tracks[SideLeft].Load + v.tracks[SideRight].Load
	trackMass := v.hull.TrackMOI / (r * r)

	var drivenLoad [2]float64
	for i := range v.wheels {
		w := &v.wheels[i]
		if w.state.TouchedGround && v.transmitsDrive(w) {
			drivenLoad[w.state.Side] += w.state.Load
		}
	}

	// In angular velocity mode the track surfaces carry the commanded yaw.
	var yaw mgl64.Vec3
	if v.steersHull() {
		yaw = v.pose.Up().Mul(v.yawCommand)
	}

	var reaction [2]float64
	for s := range v.tracks {
		v.tracks[s].DriveForce = mgl64.Vec3{}
	}

	for i := range v.wheels {
		w := &v.wheels[i]
		st := &w.state
		st.TractionForce = mgl64.Vec3{}
		if !st.TouchedGround || st.Load <= epsilon || totalLoad <= epsilon || dt < minDeltaTime {
			continue
		}
		t := &v.tracks[st.Side]
		driven := v.transmitsDrive(w) && drivenLoad[st.Side] > epsilon

		surface := w.forward.Mul(t.LinearVelocity)
		if !driven {
			// Free-rolling wheel: only lateral slip.
			surface = w.forward.Mul(st.ContactVelocity.Dot(w.forward))
		}
		surface = surface.Add(yaw.Cross(st.ContactPoint.Sub(v.pose.Position)))
		slip := st.ContactVelocity.Sub(surface)
		slip = slip.Sub(st.ContactNormal.Mul(slip.Dot(st.ContactNormal)))

		trackShare := trackMass * st.Load / math.Max(drivenLoad[st.Side], epsilon)
		force := v.contactForce(w, slip, st.Load/totalLoad, trackShare, dt)

		st.TractionForce = force
		long := force.Dot(w.forward)
		t.DriveForce = t.DriveForce.Add(w.forward.Mul(long))
		if driven {
			reaction[st.Side] += long
		}
		v.addForce(force, st.ContactPoint)
	}

	limit := v.maxTrackAngularVelocity()
	for s := range v.tracks {
		t := &v.tracks[s]
		t.GroundTorque = -reaction[s] * r
		omega := t.AngularVelocity + t.GroundTorque/v.hull.TrackMOI*dt
		omega = applyBrake(omega, t.BrakeRatio, v.cfg.Brakes.BrakeForce, dt)
		omega = mgl64.Clamp(omega, -limit, limit)
		if !finite(omega) {
			omega = 0
		}
		t.AngularVelocity = omega
		t.LinearVelocity = omega * r
	}
}

// contactForce is the friction force one contact applies to the hull for the
// given slip. Along the track it acts on the reduced mass of the hull share
// and the track share, across it on the hull share alone, softened so side
// grip saturates at LateralSlipVelocity. Past the friction limit each axis
// slides on its own ellipse coefficient but never beyond cancelling its slip.
func (v *Vehicle) contactForce(w *wheel, slip mgl64.Vec3, loadShare, trackShare, dt float64) mgl64.Vec3 {
	f := v.cfg.Friction
	load := w.state.Load
	long := slip.Dot(w.forward)
	lateral := slip.Sub(w.forward.Mul(long))

	hullShare := v.hull.Mass * loadShare
	reduced := hullShare * trackShare / (hullShare + trackShare)
	limit := blendedFriction(f, slip, w.forward) * load

	lateralGain := hullShare / dt
	if f.LateralSlipVelocity > 0 {
		lateralGain = math.Min(lateralGain, limit/f.LateralSlipVelocity)
	}
	longGain := reduced / dt

	force := w.forward.Mul(-long * longGain).Add(lateral.Mul(-lateralGain))
	if force.Len() <= limit {
		return force
	}

	speed := slip.Len()
	e := kineticBlend(f, speed)
	fl := math.Min(math.Abs(long/speed)*e.Longitudinal*load, math.Abs(long)*longGain) * sign(-long)
	ft := math.Min(e.Lateral*load/speed, lateralGain)
	return w.forward.Mul(fl).Sub(lateral.Mul(ft))
}

// steersHull reports whether the track surfaces follow a commanded yaw rate.
func (v *Vehicle) steersHull() bool {
	return !v.cfg.Wheeled && v.cfg.Steering.Mode == SteeringAngularVelocity
}

// updateYawCommand ramps the commanded yaw rate toward the steering target at
// UpRatio while it grows and DownRatio while it decays.
func (v *Vehicle) updateYawCommand(dt float64) {
	if !v.steersHull() {
		v.yawCommand = 0
		return
	}
	rate := v.cfg.Steering.DownRatio
	if math.Abs(v.targetYaw) > math.Abs(v.yawCommand) {
		rate = v.cfg.Steering.UpRatio
	}
	v.yawCommand += (v.targetYaw - v.yawCommand) * mgl64.Clamp(rate*dt, 0, 1)
}

// transmitsDrive reports whether a wheel passes drive torque to the ground.
// Every road wheel of a track does; on wheeled vehicles only driving wheels.
func (v *Vehicle) transmitsDrive(w *wheel) bool {
	return !v.cfg.Wheeled || w.cfg.Driving
}

func rpmToOmega(rpm float64) float64 {
	return rpm * 2 * math.Pi / 60
}

func omegaToRPM(omega float64) float64 {
	return omega * 60 / (2 * math.Pi)
}
