package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/geo"
	"github.com/tracksim/tracksim/internal/model"
	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

var testOrigin = core.GeoOrigin{Latitude: 52.52, Longitude: 13.405, Altitude: 34}

func testSample() core.Sample {
	return core.Sample{
		SessionID:    3,
		Tick:         120,
		Time:         time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC),
		SimTime:      2,
		Position:     core.Position3D{X: 12.5, Y: -3.25, Z: 1.5},
		Heading:      90,
		Speed:        4.5,
		YawRate:      0.25,
		Throttle:     1,
		Steering:     -0.5,
		Gear:         3,
		EngineRPM:    1800,
		EngineTorque: 2400,
		Left:         core.TrackSample{AngularVelocity: 12, DriveTorque: 5000, Load: 150000, Contacts: 6},
		Right:        core.TrackSample{AngularVelocity: 10, DriveTorque: 4000, BrakeRatio: 0.5, Load: 140000, Contacts: 6},
		Wheels: []core.WheelSample{
			{Index: 0, Grounded: true, Compression: 0.05, Load: 25000, VisualLength: 0.1, Surface: "default"},
			{Index: 1},
		},
	}
}

func TestCoreToSample(t *testing.T) {
	p := geo.NewProjector(testOrigin)
	m := CoreToSample(testSample(), p)

	assert.Equal(t, uint(3), m.SessionID)
	assert.Equal(t, uint64(120), m.Tick)
	assert.Equal(t, uint8(3), m.Gear)
	assert.Equal(t, float32(35.5), m.Elevation)
	assert.Equal(t, uint8(6), m.Left.Contacts)
	assert.Equal(t, float32(0.5), m.Right.BrakeRatio)

	var wheels []model.WheelState
	require.NoError(t, json.Unmarshal(m.Wheels, &wheels))
	require.Len(t, wheels, 2)
	assert.True(t, wheels[0].Grounded)
	assert.Equal(t, "default", wheels[0].Surface)
}

// Round-trip: Core → GORM → Core
func TestSampleRoundTrip(t *testing.T) {
	p := geo.NewProjector(testOrigin)
	in := testSample()

	out := SampleToCore(CoreToSample(in, p), p)

	assert.InDelta(t, in.Position.X, out.Position.X, 1e-6)
	assert.InDelta(t, in.Position.Y, out.Position.Y, 1e-6)
	assert.InDelta(t, in.Position.Z, out.Position.Z, 1e-9)
	assert.Equal(t, in.Tick, out.Tick)
	assert.Equal(t, in.Gear, out.Gear)
	assert.InDelta(t, in.Speed, out.Speed, 1e-6)
	assert.Equal(t, in.Left.Contacts, out.Left.Contacts)
	require.Len(t, out.Wheels, 2)
	assert.InDelta(t, 0.05, out.Wheels[0].Compression, 1e-6)
}

func TestCoreToSample_NoWheels(t *testing.T) {
	s := testSample()
	s.Wheels = nil
	m := CoreToSample(s, geo.NewProjector(testOrigin))
	assert.JSONEq(t, "[]", string(m.Wheels))
}

func TestSessionRoundTrip(t *testing.T) {
	cfg := vehicle.DefaultConfig()
	cfg.Wheels = vehicle.TankWheels(4, 5, 3, 0)
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	s := core.Session{
		Name:        "proving-ground",
		VehicleName: "tank",
		StartTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TickRate:    60,
		Origin:      testOrigin,
		Tag:         "test",
		Config:      raw,
	}

	m := CoreToSession(s)
	assert.Equal(t, float32(34), m.Elevation)
	m.Vehicle = CoreToVehicle(s, 30000)
	assert.Equal(t, uint16(8), m.Vehicle.Wheels)
	assert.Equal(t, uint8(len(cfg.Gearbox.Gears)), m.Vehicle.Gears)

	back := SessionToCore(m)
	assert.Equal(t, "tank", back.VehicleName)
	assert.InDelta(t, testOrigin.Latitude, back.Origin.Latitude, 1e-9)
	assert.InDelta(t, testOrigin.Longitude, back.Origin.Longitude, 1e-9)
	assert.Equal(t, 34.0, back.Origin.Altitude)
	assert.Equal(t, 60.0, back.TickRate)
}

func TestCoreToVehicle_BadConfig(t *testing.T) {
	v := CoreToVehicle(core.Session{VehicleName: "x", Config: []byte("{broken")}, 100)
	assert.Zero(t, v.Wheels)
	assert.JSONEq(t, "{}", string(v.Config))
}

func TestEventRoundTrip(t *testing.T) {
	e := core.Event{
		SessionID: 1,
		Tick:      42,
		SimTime:   0.7,
		Kind:      core.EventGearShift,
		Message:   "3 -> 4",
		ExtraData: map[string]any{"from": 3.0, "to": 4.0, "origin": "auto"},
	}

	m := CoreToEvent(e)
	assert.Equal(t, core.EventGearShift, m.Kind)

	back := EventToCore(m)
	assert.Equal(t, e, back)
}

func TestCoreToEvent_NilExtra(t *testing.T) {
	m := CoreToEvent(core.Event{Kind: core.EventSleep})
	assert.JSONEq(t, "{}", string(m.ExtraData))
}

func TestCoreToTrack(t *testing.T) {
	p := geo.NewProjector(testOrigin)

	_, ok := CoreToTrack(1, []core.Position3D{{}}, p)
	assert.False(t, ok)

	track, ok := CoreToTrack(1, []core.Position3D{{}, {X: 30}, {X: 30, Y: 40}}, p)
	require.True(t, ok)
	assert.Equal(t, uint32(3), track.Points)
	assert.InDelta(t, 70.0, track.Distance, 1e-9)
	assert.Equal(t, 3, track.Path.Coordinates().Length())
}
