package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/tracksim/tracksim/pkg/core"
	"github.com/tracksim/tracksim/pkg/vehicle"
)

// Telemetry stream message types.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeSample       = "sample"
	TypeEvent        = "event"
)

// Replication message types.
const (
	TypeHello        = "hello"
	TypeControlState = "control_state"
	TypeSleepState   = "sleep_state"
	TypeAck          = "ack"
)

// Roles a replication peer announces in its hello.
const (
	RoleController = "controller"
	RoleObserver   = "observer"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
	// Error is set when the server rejected the message.
	Error string `json:"error,omitempty"`
}

// StartSessionPayload carries the session header.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// HelloPayload opens a replication connection.
type HelloPayload struct {
	Role    string `json:"role"`
	Vehicle string `json:"vehicle"`
}

// ControlStatePayload replicates a controller's inputs to the authority.
type ControlStatePayload struct {
	Vehicle string               `json:"vehicle"`
	Seq     uint64               `json:"seq"`
	State   vehicle.ControlState `json:"state"`
}

// SleepStatePayload mirrors the authority's sleep state to observers.
type SleepStatePayload struct {
	Vehicle    string  `json:"vehicle"`
	IsSleeping bool    `json:"isSleeping"`
	SimTime    float64 `json:"simTime"`
}

// Encode builds a JSON-encoded Envelope from a message type and payload.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode parses an envelope and, when out is non-nil, its payload.
func Decode(data []byte, out any) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	if out != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return env.Type, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
	}
	return env.Type, nil
}
