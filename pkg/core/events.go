// pkg/core/events.go
package core

import (
	"time"
)

// Event kinds.
const (
	EventGearShift       = "gear_shift"
	EventSleep           = "sleep"
	EventWake            = "wake"
	EventControlRejected = "control_rejected"
	EventScenario        = "scenario"
)

// Event is a discrete occurrence during a session.
type Event struct {
	SessionID uint
	Tick      uint64
	Time      time.Time
	SimTime   float64
	Kind      string
	Message   string
	ExtraData map[string]any
}
