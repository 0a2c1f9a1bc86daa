package vehicle

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrictionCoefficientFollowsEllipse(t *testing.T) {
	e := FrictionEllipse{Longitudinal: 1.0, Lateral: 0.5}
	assert.InDelta(t, 1.0, frictionCoefficient(e, 1, 0), 1e-12)
	assert.InDelta(t, 0.5, frictionCoefficient(e, 0, 1), 1e-12)
	c := math.Sqrt2 / 2
	assert.InDelta(t, math.Hypot(c, c*0.5), frictionCoefficient(e, c, c), 1e-12)
}

func TestBlendedFrictionStaticToKinetic(t *testing.T) {
	f := DefaultConfig().Friction
	fwd := mgl64.Vec3{1, 0, 0}

	assert.Equal(t, f.Static.Longitudinal, blendedFriction(f, mgl64.Vec3{}, fwd))
	assert.InDelta(t, f.Static.Longitudinal, blendedFriction(f, mgl64.Vec3{1e-6, 0, 0}, fwd), 1e-5)
	assert.InDelta(t, f.Kinetic.Longitudinal, blendedFriction(f, mgl64.Vec3{10, 0, 0}, fwd), 1e-12)
	assert.InDelta(t, f.Kinetic.Lateral, blendedFriction(f, mgl64.Vec3{0, -10, 0}, fwd), 1e-12)

	half := blendedFriction(f, mgl64.Vec3{f.KineticVelocity / 2, 0, 0}, fwd)
	assert.InDelta(t, (f.Static.Longitudinal+f.Kinetic.Longitudinal)/2, half, 1e-12)
}

func TestApplyBrakeNeverReverses(t *testing.T) {
	assert.InDelta(t, 9.5, applyBrake(10, 1, 30, testDt), 1e-12)
	assert.InDelta(t, -9.5, applyBrake(-10, 1, 30, testDt), 1e-12)
	assert.Zero(t, applyBrake(0.2, 1, 30, testDt))
	assert.Zero(t, applyBrake(-0.2, 1, 30, testDt))
	assert.Equal(t, 3.0, applyBrake(3, 0, 30, testDt))
}

func TestTowardTarget(t *testing.T) {
	assert.Equal(t, 1.0, towardTarget(0, 1, 2))
	assert.Equal(t, 0.5, towardTarget(0, 1, 0.5))
	assert.Equal(t, -0.5, towardTarget(0, -1, 0.5))
	assert.Equal(t, 2.0, towardTarget(2, 2, 0))
}

func TestEffectiveAngularVelocityFromGround(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })
	body.vel = mgl64.Vec3{3.5, 0, 0}
	v.Tick(testDt)

	r := v.cfg.Drivetrain.SprocketRadius
	for _, s := range []Side{SideLeft, SideRight} {
		tr := v.Track(s)
		assert.InDelta(t, 3.5/r, tr.EffectiveAngularVelocity, 1e-9)
		assert.Equal(t, 3, tr.Contacts)
		assert.Greater(t, tr.Load, 0.0)
	}
	assert.Equal(t, 6, v.BodyState().ActiveFrictionPoints)
	assert.Equal(t, 4, v.BodyState().ActiveDrivenFrictionPoints)
}

func TestAirborneTrackSpinsFree(t *testing.T) {
	v, _, ground := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })
	ground.miss = true
	v.SetThrottleInput(1)

	prev := 0.0
	for i := 0; i < 20; i++ {
		v.Tick(testDt)
		tr := v.Track(SideLeft)
		assert.Zero(t, tr.FrictionTorque)
		assert.Zero(t, tr.Load)
		assert.Equal(t, prev, tr.EffectiveAngularVelocity, "airborne track reports its own spin")
		assert.GreaterOrEqual(t, tr.AngularVelocity, prev)
		prev = tr.AngularVelocity
	}
	assert.LessOrEqual(t, prev, v.maxTrackAngularVelocity())
	assert.Zero(t, v.BodyState().ActiveFrictionPoints)
}

func TestFrictionTorqueIsDissipative(t *testing.T) {
	v, _, _ := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })
	v.tracks[SideLeft].AngularVelocity = 20
	v.tracks[SideRight].AngularVelocity = -20
	v.Tick(testDt)

	left, right := v.Track(SideLeft), v.Track(SideRight)
	assert.Less(t, left.FrictionTorque, 0.0)
	assert.Greater(t, right.FrictionTorque, 0.0)
	// Never pushed past the ground speed (zero) in one tick.
	assert.GreaterOrEqual(t, left.AngularVelocity, 0.0)
	assert.LessOrEqual(t, right.AngularVelocity, 0.0)
}

func TestRollingFrictionOnlyWithoutThrottle(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) {
		c.Sleep.NeverSleep = true
		c.Friction.TorqueCoefficient = 0
	})
	r := v.cfg.Drivetrain.SprocketRadius
	body.vel = mgl64.Vec3{0.5, 0, 0}
	v.tracks[SideLeft].AngularVelocity = 0.5 / r

	v.Tick(testDt)
	tr := v.Track(SideLeft)
	assert.Less(t, tr.RollingFrictionTorque, 0.0)
	assert.Less(t, tr.AngularVelocity, 0.5/r)

	v.SetThrottleInput(0.1)
	v.Tick(testDt)
	assert.Zero(t, v.Track(SideLeft).RollingFrictionTorque)
}

func TestRollingFrictionVanishesAtThreshold(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) {
		c.Sleep.NeverSleep = true
		c.Friction.TorqueCoefficient = 0
		c.Friction.RollingVelocityCoefficient = 1
	})
	r := v.cfg.Drivetrain.SprocketRadius
	body.vel = mgl64.Vec3{2, 0, 0}
	v.tracks[SideLeft].AngularVelocity = 2 / r

	v.Tick(testDt)
	assert.Zero(t, v.Track(SideLeft).RollingFrictionTorque)
}

func TestTractionCappedByFrictionBudget(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })
	// Sliding sideways fast: every contact force sits on the kinetic limit.
	body.vel = mgl64.Vec3{0, 20, 0}
	v.Tick(testDt)

	lateral := v.cfg.Friction.Kinetic.Lateral
	for i := 0; i < v.NumWheels(); i++ {
		ws, err := v.WheelState(i)
		require.NoError(t, err)
		assert.InDelta(t, lateral*ws.Load, ws.TractionForce.Len(), 1e-6*ws.Load)
		assert.Less(t, ws.TractionForce.Y(), 0.0, "friction opposes the slide")
	}
}

func TestGroundDragsTrackTowardSpeed(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })
	body.vel = mgl64.Vec3{3, 0, 0}
	v.Tick(testDt)

	r := v.cfg.Drivetrain.SprocketRadius
	for _, s := range []Side{SideLeft, SideRight} {
		tr := v.Track(s)
		assert.Greater(t, tr.GroundTorque, 0.0)
		assert.Greater(t, tr.AngularVelocity, 0.0)
		assert.LessOrEqual(t, tr.AngularVelocity, 3/r, "the track never overtakes the ground")
		assert.Less(t, tr.DriveForce.X(), 0.0, "the hull pays for spinning the track")
	}
}

func TestLateralGripSaturatesWithSlip(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })
	slip := mgl64.Vec3{0, 0.1, 0}
	body.vel = slip
	v.Tick(testDt)

	f := v.cfg.Friction
	mu := blendedFriction(f, slip, mgl64.Vec3{1, 0, 0})
	for i := 0; i < v.NumWheels(); i++ {
		ws, err := v.WheelState(i)
		require.NoError(t, err)
		want := mu * ws.Load * slip.Y() / f.LateralSlipVelocity
		assert.InDelta(t, want, ws.TractionForce.Len(), 1e-6*ws.Load)
		assert.Less(t, ws.TractionForce.Y(), 0.0)
	}
}

func TestSlidingTrackStaysOnFrictionLimit(t *testing.T) {
	v, _, _ := newTestVehicle(t, func(c *Config) {
		c.Sleep.NeverSleep = true
		c.Gearbox.AutoGear = false
	})
	// Neutral leaves the tracks unbounded, spinning at 14 m/s under a hull at rest.
	v.tracks[SideLeft].AngularVelocity = 40
	v.tracks[SideRight].AngularVelocity = 40
	v.Tick(testDt)

	long := v.cfg.Friction.Kinetic.Longitudinal
	for i := 0; i < v.NumWheels(); i++ {
		ws, err := v.WheelState(i)
		require.NoError(t, err)
		assert.InDelta(t, long*ws.Load, ws.TractionForce.X(), 1e-6*ws.Load)
	}
	tr := v.Track(SideLeft)
	assert.InDelta(t, -long*tr.Load*v.cfg.Drivetrain.SprocketRadius, tr.GroundTorque, 1e-6*tr.Load)
}

func TestFreeRollingWheelSlipsOnlySideways(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) {
		c.Sleep.NeverSleep = true
		c.Wheeled = true
	})
	body.vel = mgl64.Vec3{3, 0.2, 0}
	v.Tick(testDt)

	for i, wc := range v.cfg.Wheels {
		ws, err := v.WheelState(i)
		require.NoError(t, err)
		assert.Less(t, ws.TractionForce.Y(), 0.0)
		if wc.Driving {
			assert.Less(t, ws.TractionForce.X(), 0.0, "driving wheel drags its drivetrain up to speed")
		} else {
			assert.InDelta(t, 0, ws.TractionForce.X(), 1e-6, "wheel %d rolls freely", i)
		}
	}
}
