package vehicle

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ControlState is the controller input snapshot replicated to the authority.
type ControlState struct {
	Steering  float64 `json:"steering"`
	Throttle  float64 `json:"throttle"`
	Handbrake bool    `json:"handbrake"`
	Gear      int     `json:"gear"`
}

// clampInput limits a driver input to [-1, 1]; NaN becomes zero.
func clampInput(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return mgl64.Clamp(x, -1, 1)
}

// SetThrottleInput sets the raw throttle, clamped to [-1, 1].
func (v *Vehicle) SetThrottleInput(x float64) {
	v.rawThrottle = clampInput(x)
}

// SetSteeringInput sets the steering, clamped to [-1, 1]. Positive turns right.
func (v *Vehicle) SetSteeringInput(x float64) {
	v.steering = clampInput(x)
}

// SetHandbrakeInput engages or releases the handbrake.
func (v *Vehicle) SetHandbrakeInput(on bool) {
	v.handbrake = on
}

// HasInput reports whether any throttle, steering or handbrake input is held.
func (v *Vehicle) HasInput() bool {
	return v.rawThrottle != 0 || v.steering != 0 || v.handbrake
}

// ControlState returns the current input snapshot for replication.
func (v *Vehicle) ControlState() ControlState {
	return ControlState{
		Steering:  v.steering,
		Throttle:  v.rawThrottle,
		Handbrake: v.handbrake,
		Gear:      v.engine.Gear,
	}
}

// ValidateControlState checks a replicated snapshot without applying it.
// Unlike the local setters it rejects out-of-range values instead of clamping.
func ValidateControlState(cs ControlState, gears int) error {
	if math.IsNaN(cs.Steering) || cs.Steering < -1 || cs.Steering > 1 {
		return fmt.Errorf("%w: steering %v outside [-1, 1]", ErrInvalidInput, cs.Steering)
	}
	if math.IsNaN(cs.Throttle) || cs.Throttle < -1 || cs.Throttle > 1 {
		return fmt.Errorf("%w: throttle %v outside [-1, 1]", ErrInvalidInput, cs.Throttle)
	}
	if cs.Gear < 0 || cs.Gear >= gears {
		return fmt.Errorf("%w: gear %d outside [0, %d)", ErrInvalidInput, cs.Gear, gears)
	}
	return nil
}

// UpdateControlState applies a replicated snapshot on the authority. An
// invalid snapshot is rejected whole and the previous inputs are kept.
func (v *Vehicle) UpdateControlState(cs ControlState) error {
	if err := ValidateControlState(cs, len(v.cfg.Gearbox.Gears)); err != nil {
		v.metrics.reject()
		v.logger.Warn("rejected control state", "error", err)
		return err
	}
	v.steering = cs.Steering
	v.rawThrottle = cs.Throttle
	v.handbrake = cs.Handbrake
	if cs.Gear != v.engine.Gear {
		v.setGear(cs.Gear, "replicated")
	}
	return nil
}
