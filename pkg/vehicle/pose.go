package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// animateWheels spins each wheel with its track's surface speed.
func (v *Vehicle) animateWheels(dt float64) {
	for i := range v.wheels {
		w := &v.wheels[i]
		st := &w.state
		speed := v.tracks[st.Side].LinearVelocity
		if v.cfg.Wheeled && !w.cfg.Driving && st.TouchedGround {
			speed = st.ContactVelocity.Dot(w.forward)
		}
		angle := st.RotationAngle + speed/w.params.CollisionRadius*dt
		angle = math.Mod(angle, 2*math.Pi)
		if angle < 0 {
			angle += 2 * math.Pi
		}
		if finite(angle) {
			st.RotationAngle = angle
		}
	}
}

// WheelPoses returns a snapshot of every wheel's visual pose in wheel index
// order. The slice is freshly allocated and safe to hand to other goroutines.
func (v *Vehicle) WheelPoses() []WheelPose {
	out := make([]WheelPose, len(v.wheels))
	for i := range v.wheels {
		w := &v.wheels[i]
		st := &w.state
		down := w.mount.TransformDirection(mgl64.Vec3{0, 0, -1})
		out[i] = WheelPose{
			Index:         i,
			Side:          st.Side,
			Center:        w.mount.Position.Add(down.Mul(st.VisualLength)).Add(w.params.VisualOffset),
			VisualLength:  st.VisualLength,
			RotationAngle: st.RotationAngle,
			SteeringAngle: st.SteeringAngle,
			VisualOffset:  w.params.VisualOffset,
			Animate:       w.cfg.AnimateOffset || w.cfg.AnimateRotation,
		}
	}
	return out
}
