// Package rigidbody is a small semi-implicit Euler rigid body and plane ground
// used to run vehicles headless.
package rigidbody

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/tracksim/tracksim/pkg/vehicle"
)

// StandardGravity in m/s^2 along -Z.
var StandardGravity = mgl64.Vec3{0, 0, -9.81}

// Body integrates forces handed to it by a vehicle.
type Body struct {
	pose    vehicle.Pose
	vel     mgl64.Vec3
	angVel  mgl64.Vec3
	mass    float64
	inertia mgl64.Vec3
	gravity mgl64.Vec3

	force  mgl64.Vec3
	torque mgl64.Vec3

	sleeping bool
}

// Option configures a Body.
type Option func(*Body)

// WithGravity overrides StandardGravity.
func WithGravity(g mgl64.Vec3) Option {
	return func(b *Body) {
		b.gravity = g
	}
}

// WithVelocity sets the initial linear velocity.
func WithVelocity(v mgl64.Vec3) Option {
	return func(b *Body) {
		b.vel = v
	}
}

// New creates a body of the given mass at pose. The inertia tensor defaults
// to a unit-ish box until SetInertiaTensor is called.
func New(mass float64, pose vehicle.Pose, opts ...Option) *Body {
	b := &Body{
		pose:    pose,
		mass:    mass,
		inertia: mgl64.Vec3{mass, mass, mass},
		gravity: StandardGravity,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ vehicle.Body = (*Body)(nil)
var _ vehicle.Sleeper = (*Body)(nil)

func (b *Body) Pose() vehicle.Pose { return b.pose }

func (b *Body) LinearVelocity() mgl64.Vec3 { return b.vel }

func (b *Body) AngularVelocity() mgl64.Vec3 { return b.angVel }

func (b *Body) VelocityAtPoint(p mgl64.Vec3) mgl64.Vec3 {
	return b.vel.Add(b.angVel.Cross(p.Sub(b.pose.Position)))
}

func (b *Body) Mass() float64 { return b.mass }

func (b *Body) SetMass(kg float64) { b.mass = kg }

func (b *Body) Inertia() mgl64.Vec3 { return b.inertia }

func (b *Body) SetInertiaTensor(d mgl64.Vec3) { b.inertia = d }

func (b *Body) ApplyForce(f, at mgl64.Vec3) {
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(at.Sub(b.pose.Position).Cross(f))
}

func (b *Body) ApplyTorque(t mgl64.Vec3) {
	b.torque = b.torque.Add(t)
}

// SetSleeping freezes the body. A frozen body ignores forces and gravity.
func (b *Body) SetSleeping(asleep bool) {
	b.sleeping = asleep
	if asleep {
		b.vel = mgl64.Vec3{}
		b.angVel = mgl64.Vec3{}
	}
}

func (b *Body) Sleeping() bool { return b.sleeping }

// Push adds an instantaneous velocity change and wakes the body.
func (b *Body) Push(dv mgl64.Vec3) {
	b.sleeping = false
	b.vel = b.vel.Add(dv)
}

// Step integrates accumulated forces over dt and clears them.
func (b *Body) Step(dt float64) {
	force, torque := b.force, b.torque
	b.force, b.torque = mgl64.Vec3{}, mgl64.Vec3{}
	if b.sleeping || dt <= 0 {
		return
	}

	b.vel = b.vel.Add(force.Mul(1 / b.mass).Add(b.gravity).Mul(dt))

	// Angular acceleration in body space with the diagonal tensor.
	q := b.pose.Rotation
	local := q.Conjugate().Rotate(torque)
	alpha := mgl64.Vec3{
		local.X() / b.inertia.X(),
		local.Y() / b.inertia.Y(),
		local.Z() / b.inertia.Z(),
	}
	b.angVel = b.angVel.Add(q.Rotate(alpha).Mul(dt))

	b.pose.Position = b.pose.Position.Add(b.vel.Mul(dt))
	spin := mgl64.Quat{W: 0, V: b.angVel}.Mul(q).Scale(0.5 * dt)
	b.pose.Rotation = q.Add(spin).Normalize()
}

// Plane is an infinite ground plane.
type Plane struct {
	Point   mgl64.Vec3
	Normal  mgl64.Vec3
	Surface string
	// Velocity moves the plane like a platform; it is reported to the vehicle
	// as the velocity of the body under the wheel.
	Velocity mgl64.Vec3
}

// Flat is a horizontal plane at height z.
func Flat(z float64) *Plane {
	return &Plane{Point: mgl64.Vec3{0, 0, z}, Normal: mgl64.Vec3{0, 0, 1}, Surface: "default"}
}

var _ vehicle.Ground = (*Plane)(nil)

// CastGroundRay traces from mount along its down axis. A mount already below
// the plane reports a hit at distance zero.
func (p *Plane) CastGroundRay(mount vehicle.Pose, maxDistance float64) vehicle.GroundHit {
	n := p.Normal.Normalize()
	dir := mount.Up().Mul(-1)
	denom := n.Dot(dir)
	if denom > -1e-9 {
		return vehicle.GroundHit{}
	}
	t := n.Dot(p.Point.Sub(mount.Position)) / denom
	if t < 0 {
		t = 0
	}
	if t > maxDistance {
		return vehicle.GroundHit{}
	}
	return vehicle.GroundHit{
		Hit:               true,
		Point:             mount.Position.Add(dir.Mul(t)),
		Normal:            n,
		Distance:          t,
		Surface:           p.Surface,
		OtherBodyVelocity: p.Velocity,
	}
}

// Skeleton is a fixed bone table.
type Skeleton map[string]vehicle.Pose

func (s Skeleton) BoneTransform(name string) (vehicle.Pose, bool) {
	p, ok := s[name]
	return p, ok
}
