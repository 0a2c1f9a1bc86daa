package vehicle

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpringDamperCompressionStep(t *testing.T) {
	const (
		k      = 4000000.0
		c      = 4000.0
		travel = 0.35
	)
	// Compression goes from 0 to 5cm in one tick.
	prev := travel
	cur := travel - 0.05

	force, compression := springDamper(k, c, travel, cur, prev, testDt, true)

	assert.InDelta(t, 0.05, compression, 1e-12)
	// Damper term is Damping * (CurrentLength - PreviousLength) / dt, taken off the spring.
	want := k*0.05 - c*(cur-prev)/testDt
	assert.InDelta(t, want, force, 1e-6)
	assert.InDelta(t, 200000.0+12000.0, force, 1e-6)
}

func TestSpringDamperNoForceWithoutCompression(t *testing.T) {
	// Even with a large length change, zero compression yields zero force.
	force, compression := springDamper(4e6, 4000, 0.35, 0.35, 0.1, testDt, true)
	assert.Zero(t, compression)
	assert.Zero(t, force)

	force, _ = springDamper(4e6, 4000, 0.35, 0.2, 0.35, testDt, false)
	assert.Zero(t, force, "airborne wheel")
}

func TestSpringDamperTinyDeltaIsSpringOnly(t *testing.T) {
	force, _ := springDamper(4e6, 4000, 0.35, 0.30, 0.35, 1e-9, true)
	assert.InDelta(t, 4e6*0.05, force, 1e-6)

	force, _ = springDamper(4e6, 4000, 0.35, 0.30, 0.35, 0, true)
	assert.InDelta(t, 4e6*0.05, force, 1e-6)
}

func TestSpringDamperNeverPulls(t *testing.T) {
	// Fast extension would make the damper exceed the spring.
	force, _ := springDamper(4e6, 400000, 0.35, 0.34, 0.0, testDt, true)
	assert.Zero(t, force)
}

func TestCompressionWithinTravel(t *testing.T) {
	const travel = 0.35
	for cur := -1.0; cur <= 2.0; cur += 0.01 {
		_, compression := springDamper(4e6, 4000, travel, cur, travel, testDt, true)
		assert.GreaterOrEqual(t, compression, 0.0)
		assert.LessOrEqual(t, compression, travel)
	}
}

func TestEaseVisualLength(t *testing.T) {
	const travel = 0.35
	l := 0.1
	for i := 0; i < 600; i++ {
		next := easeVisualLength(l, travel, 8, testDt)
		assert.GreaterOrEqual(t, next, l)
		assert.LessOrEqual(t, next, travel)
		l = next
	}
	assert.InDelta(t, travel, l, 1e-6)

	assert.Equal(t, travel, easeVisualLength(0.1, travel, 1000, 1), "large factor snaps without overshoot")
}

func TestWheelCompressionJumpThroughVehicle(t *testing.T) {
	params := WheelParams{Length: 0.25, MaxDrop: 0.10, CollisionRadius: 0.36, Stiffness: 4000000, Damping: 4000}
	v, body, ground := newTestVehicle(t, func(c *Config) {
		c.Wheels = []WheelConfig{{Mount: Mount{Kind: MountExplicit}, Driving: true, Params: &params}}
		c.Sleep.NeverSleep = true
	})

	ground.miss = true
	v.Tick(testDt)
	ws, err := v.WheelState(0)
	require.NoError(t, err)
	assert.False(t, ws.TouchedGround)
	assert.Zero(t, ws.Compression)
	assert.Equal(t, params.Travel(), ws.PreviousLength)

	ground.miss = false
	ground.distance = params.CollisionRadius + params.Travel() - 0.05
	body.reset()
	v.Tick(testDt)

	ws, err = v.WheelState(0)
	require.NoError(t, err)
	assert.True(t, ws.TouchedGround)
	assert.InDelta(t, 0.05, ws.Compression, 1e-9)
	want := 4000000*0.05 + 4000*(0.05/testDt)
	assert.InDelta(t, want, ws.SuspensionForce.Len(), 1e-6)
	assert.InDelta(t, want, ws.Load, 1e-6)
	assert.InDelta(t, params.Travel()-0.05, ws.PreviousLength, 1e-9)
}

func TestAirborneWheelKeepsPreviousLength(t *testing.T) {
	v, _, ground := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })

	v.Tick(testDt)
	landed, err := v.WheelState(0)
	require.NoError(t, err)
	require.True(t, landed.TouchedGround)

	ground.miss = true
	travel := DefaultSuspension().Defaults.Travel()
	last := landed.VisualLength
	for i := 0; i < 30; i++ {
		v.Tick(testDt)
		ws, _ := v.WheelState(0)
		assert.False(t, ws.TouchedGround)
		assert.Equal(t, landed.PreviousLength, ws.PreviousLength)
		assert.Zero(t, ws.SuspensionForce.Len())
		assert.GreaterOrEqual(t, ws.VisualLength, last)
		assert.LessOrEqual(t, ws.VisualLength, travel)
		last = ws.VisualLength
	}
}

func TestSuspensionForceAlongContactNormal(t *testing.T) {
	v, body, _ := newTestVehicle(t, func(c *Config) { c.Sleep.NeverSleep = true })
	v.Tick(testDt)

	for i := 0; i < v.NumWheels(); i++ {
		ws, err := v.WheelState(i)
		require.NoError(t, err)
		assert.True(t, ws.SuspensionForce.Normalize().ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-9))
		assert.InDelta(t, 0.01, ws.Compression, 1e-9)
		assert.Equal(t, "dirt", ws.Surface)
	}
	assert.NotEmpty(t, body.forces)
}
