package vehicle

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

const testDt = 1.0 / 60

type fakeBody struct {
	pose    Pose
	vel     mgl64.Vec3
	angVel  mgl64.Vec3
	mass    float64
	inertia mgl64.Vec3

	forces  []appliedForce
	torques []mgl64.Vec3
	asleep  bool
}

func newFakeBody(mass float64) *fakeBody {
	return &fakeBody{pose: IdentityPose(), mass: mass}
}

func (b *fakeBody) Pose() Pose                  { return b.pose }
func (b *fakeBody) LinearVelocity() mgl64.Vec3  { return b.vel }
func (b *fakeBody) AngularVelocity() mgl64.Vec3 { return b.angVel }
func (b *fakeBody) VelocityAtPoint(p mgl64.Vec3) mgl64.Vec3 {
	return b.vel.Add(b.angVel.Cross(p.Sub(b.pose.Position)))
}
func (b *fakeBody) Mass() float64                  { return b.mass }
func (b *fakeBody) SetMass(kg float64)             { b.mass = kg }
func (b *fakeBody) SetInertiaTensor(d mgl64.Vec3)  { b.inertia = d }
func (b *fakeBody) ApplyForce(f, at mgl64.Vec3)    { b.forces = append(b.forces, appliedForce{f, at}) }
func (b *fakeBody) ApplyTorque(t mgl64.Vec3)       { b.torques = append(b.torques, t) }
func (b *fakeBody) SetSleeping(asleep bool)        { b.asleep = asleep }
func (b *fakeBody) reset()                         { b.forces, b.torques = nil, nil }

// fakeGround reports the same hit for every wheel; miss forces no contact.
type fakeGround struct {
	distance float64
	miss     bool
	surface  string
	calls    int
}

func (g *fakeGround) CastGroundRay(mount Pose, maxDistance float64) GroundHit {
	g.calls++
	if g.miss || g.distance > maxDistance {
		return GroundHit{}
	}
	dir := mount.Up().Mul(-1)
	return GroundHit{
		Hit:      true,
		Point:    mount.Position.Add(dir.Mul(g.distance)),
		Normal:   mgl64.Vec3{0, 0, 1},
		Distance: g.distance,
		Surface:  g.surface,
	}
}

// restDistance puts every wheel of a default-suspension vehicle at the given
// compression.
func restDistance(compression float64) float64 {
	d := DefaultSuspension().Defaults
	return d.CollisionRadius + d.Travel() - compression
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Wheels = TankWheels(3, 4, 3, 0)
	return cfg
}

func newTestVehicle(t *testing.T, mutate func(*Config), opts ...Option) (*Vehicle, *fakeBody, *fakeGround) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	body := newFakeBody(30000)
	ground := &fakeGround{distance: restDistance(0.01), surface: "dirt"}
	v, err := New(cfg, body, ground, opts...)
	require.NoError(t, err)
	return v, body, ground
}
