package vehicle

import "github.com/go-gl/mathgl/mgl64"

// Side identifies a track.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Pose is a rigid transform.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// IdentityPose is the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// TransformPoint maps a local point into the pose's parent space.
func (p Pose) TransformPoint(local mgl64.Vec3) mgl64.Vec3 {
	return p.Position.Add(p.Rotation.Rotate(local))
}

// TransformDirection rotates a local direction into the pose's parent space.
func (p Pose) TransformDirection(local mgl64.Vec3) mgl64.Vec3 {
	return p.Rotation.Rotate(local)
}

// Compose returns the pose of child (given relative to p) in p's parent space.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Position: p.TransformPoint(child.Position),
		Rotation: p.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// Forward, Right and Up are the world axes of the pose (X forward, Y left, Z up).
func (p Pose) Forward() mgl64.Vec3 { return p.Rotation.Rotate(mgl64.Vec3{1, 0, 0}) }
func (p Pose) Left() mgl64.Vec3    { return p.Rotation.Rotate(mgl64.Vec3{0, 1, 0}) }
func (p Pose) Up() mgl64.Vec3      { return p.Rotation.Rotate(mgl64.Vec3{0, 0, 1}) }

// Body is the rigid body the vehicle drives. Implementations integrate the
// accumulated forces themselves after Tick returns.
type Body interface {
	Pose() Pose
	LinearVelocity() mgl64.Vec3
	AngularVelocity() mgl64.Vec3
	VelocityAtPoint(point mgl64.Vec3) mgl64.Vec3
	Mass() float64
	SetMass(kg float64)
	// SetInertiaTensor sets the body-space diagonal inertia tensor.
	SetInertiaTensor(diagonal mgl64.Vec3)
	ApplyForce(force, atPoint mgl64.Vec3)
	ApplyTorque(torque mgl64.Vec3)
}

// GroundHit is the result of a suspension trace.
type GroundHit struct {
	Hit      bool
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Surface  string
	// OtherBodyVelocity is the velocity of whatever the wheel stands on.
	OtherBodyVelocity mgl64.Vec3
}

// Ground casts suspension traces. The trace starts at mount.Position and runs
// along the mount's down axis for maxDistance.
type Ground interface {
	CastGroundRay(mount Pose, maxDistance float64) GroundHit
}

// Skeleton resolves bone-mounted wheels to body-space transforms.
type Skeleton interface {
	BoneTransform(name string) (Pose, bool)
}

// SleepListener receives sleep state changes.
type SleepListener interface {
	OnSleepStateChanged(ev SleepEvent)
}

// SleepListenerFunc adapts a function to SleepListener.
type SleepListenerFunc func(ev SleepEvent)

func (f SleepListenerFunc) OnSleepStateChanged(ev SleepEvent) { f(ev) }
