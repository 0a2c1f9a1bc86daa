package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

func (v *Vehicle) initBody() error {
	if v.cfg.OverrideMass > 0 {
		v.body.SetMass(v.cfg.OverrideMass)
	}
	mass := v.body.Mass()
	if !(mass > 0) || !finite(mass) {
		return configErr("mass", "body mass must be positive, got %v", mass)
	}
	v.hull.Mass = mass

	v.hull.Inertia = inertiaFromWheels(mass, v.wheels)
	v.hull.YawMOI = v.hull.Inertia.Z()
	v.body.SetInertiaTensor(v.hull.Inertia)

	v.hull.TrackMOI = trackMOI(v.cfg.Drivetrain)
	return nil
}

// inertiaFromWheels spreads the body mass over the wheel centres as point
// masses, each with the disc inertia of its wheel, and sums the diagonal.
func inertiaFromWheels(mass float64, wheels []wheel) mgl64.Vec3 {
	if len(wheels) == 0 {
		return mgl64.Vec3{}
	}
	m := mass / float64(len(wheels))
	var ixx, iyy, izz float64
	for _, w := range wheels {
		c := w.mount.TransformPoint(mgl64.Vec3{0, 0, -w.params.Length})
		x, y, z := c.X(), c.Y(), c.Z()
		r2 := w.params.CollisionRadius * w.params.CollisionRadius
		ixx += m * (y*y + z*z)
		iyy += m * (x*x + z*z + r2/2)
		izz += m * (x*x + y*y)
	}
	// A single wheel on the axis still needs a finite inertia.
	floor := mass * 1e-3
	return mgl64.Vec3{math.Max(ixx, floor), math.Max(iyy, floor), math.Max(izz, floor)}
}

// trackMOI is the drivetrain inertia seen at one sprocket: the sprocket as a
// solid disc plus the track as a thin ring.
func trackMOI(d DrivetrainConfig) float64 {
	r2 := d.SprocketRadius * d.SprocketRadius
	return d.SprocketMass/2*r2 + d.TrackMass*r2
}

// applyBodyForces adds drag, then hands every accumulated force to the body.
func (v *Vehicle) applyBodyForces() {
	if v.cfg.LinearDamping > 0 {
		drag := v.body.LinearVelocity().Mul(-v.cfg.LinearDamping * v.hull.Mass)
		v.addForce(drag, v.pose.Position)
	}
	if v.cfg.AngularDamping > 0 {
		v.body.ApplyTorque(v.body.AngularVelocity().Mul(-v.cfg.AngularDamping * v.hull.YawMOI))
	}

	for _, f := range v.forces {
		v.body.ApplyForce(f.force, f.at)
	}
	v.forces = v.forces[:0]
}

func (v *Vehicle) addForce(force, at mgl64.Vec3) {
	if !finiteVec(force) || force.ApproxEqual(mgl64.Vec3{}) {
		return
	}
	v.forces = append(v.forces, appliedForce{force: force, at: at})
}

func finiteVec(a mgl64.Vec3) bool {
	return finite(a[0]) && finite(a[1]) && finite(a[2])
}

// planeDirection projects dir onto the plane with normal n and normalizes it,
// falling back to fallback when the projection degenerates.
func planeDirection(dir, n, fallback mgl64.Vec3) mgl64.Vec3 {
	p := dir.Sub(n.Mul(dir.Dot(n)))
	if l := p.Len(); l > epsilon {
		return p.Mul(1 / l)
	}
	return fallback
}

func safeNormal(n, fallback mgl64.Vec3) mgl64.Vec3 {
	if l := n.Len(); l > epsilon && finite(l) {
		return n.Mul(1 / l)
	}
	return fallback
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
