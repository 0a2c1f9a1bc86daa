package streaming

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

func TestEncode_ControlState(t *testing.T) {
	data, err := Encode(TypeControlState, ControlStatePayload{
		Vehicle: "tank",
		Seq:     7,
		State:   vehicle.ControlState{Steering: -0.25, Throttle: 1, Gear: 3},
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "control_state", raw["type"])

	payload := raw["payload"].(map[string]any)
	assert.Equal(t, "tank", payload["vehicle"])
	state := payload["state"].(map[string]any)
	assert.Equal(t, -0.25, state["steering"])
	assert.Equal(t, false, state["handbrake"])
	assert.Equal(t, float64(3), state["gear"])
}

func TestDecode_RoundTripsPayload(t *testing.T) {
	data, err := Encode(TypeSleepState, SleepStatePayload{Vehicle: "tank", IsSleeping: true, SimTime: 12.5})
	require.NoError(t, err)

	var got SleepStatePayload
	msgType, err := Decode(data, &got)
	require.NoError(t, err)
	assert.Equal(t, TypeSleepState, msgType)
	assert.Equal(t, SleepStatePayload{Vehicle: "tank", IsSleeping: true, SimTime: 12.5}, got)
}

func TestDecode_TypeOnly(t *testing.T) {
	data, err := Encode(TypeEndSession, struct{}{})
	require.NoError(t, err)

	msgType, err := Decode(data, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeEndSession, msgType)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte("{not json"), nil)
	assert.ErrorContains(t, err, "unmarshal envelope")

	var hello HelloPayload
	msgType, err := Decode([]byte(`{"type":"hello","payload":{"role":7}}`), &hello)
	assert.Equal(t, TypeHello, msgType)
	assert.ErrorContains(t, err, "unmarshal hello payload")
}

func TestStartSessionPayload(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := Encode(TypeStartSession, StartSessionPayload{Session: &core.Session{
		Name:        "proving-ground",
		VehicleName: "tank",
		StartTime:   start,
		TickRate:    60,
	}})
	require.NoError(t, err)

	var got StartSessionPayload
	_, err = Decode(data, &got)
	require.NoError(t, err)
	require.NotNil(t, got.Session)
	assert.Equal(t, "proving-ground", got.Session.Name)
	assert.True(t, start.Equal(got.Session.StartTime))
	assert.Equal(t, 60.0, got.Session.TickRate)
}

func TestAckMessage_OmitsEmptyError(t *testing.T) {
	data, err := json.Marshal(AckMessage{Type: TypeAck, For: TypeControlState})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","for":"control_state"}`, string(data))
}
