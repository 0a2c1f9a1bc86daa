package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// springDamper returns the suspension force magnitude and the clamped
// compression for a spring of the given travel. No force is produced without
// contact or compression; below minDeltaTime only the spring acts.
func springDamper(stiffness, damping, travel, currentLength, previousLength, dt float64, touched bool) (force, compression float64) {
	compression = mgl64.Clamp(travel-currentLength, 0, travel)
	if !touched || compression <= 0 {
		return 0, compression
	}
	force = stiffness * compression
	if dt >= minDeltaTime {
		force -= damping * (currentLength - previousLength) / dt
	}
	if !(force > 0) {
		return 0, compression
	}
	return force, compression
}

// easeVisualLength moves an airborne wheel's visual length toward full drop.
func easeVisualLength(visual, travel, dropFactor, dt float64) float64 {
	k := mgl64.Clamp(dropFactor*dt, 0, 1)
	return mgl64.Clamp(visual+(travel-visual)*k, 0, travel)
}

func (v *Vehicle) updateSuspension(dt float64) {
	up := v.pose.Up()
	sf := v.cfg.Suspension

	for i := range v.wheels {
		w := &v.wheels[i]
		st := &w.state
		travel := w.params.Travel()
		maxDist := travel + w.params.CollisionRadius

		mount := v.pose.Compose(w.mount)
		down := mount.Up().Mul(-1)
		hit := v.ground.CastGroundRay(mount, maxDist)

		touched := hit.Hit && hit.Distance >= 0 && hit.Distance <= maxDist && finite(hit.Distance)
		current := travel
		if touched {
			current = mgl64.Clamp(hit.Distance-w.params.CollisionRadius, 0, travel)
		}

		stiffness := w.params.Stiffness * sf.StiffnessFactor
		damping := w.params.Damping * sf.DampingFactor
		force, compression := springDamper(stiffness, damping, travel, current, st.PreviousLength, dt, touched)

		st.CurrentLength = current
		st.Compression = compression
		st.TouchedGround = touched
		st.PreviousContactVelocity = st.ContactVelocity

		if touched {
			st.Surface = hit.Surface
			st.ContactPoint = hit.Point
			st.ContactNormal = safeNormal(hit.Normal, up)
			st.SuspensionForce = st.ContactNormal.Mul(force)
			st.Load = math.Max(0, st.SuspensionForce.Dot(up))
			st.ContactVelocity = v.body.VelocityAtPoint(hit.Point).Sub(hit.OtherBodyVelocity)
			st.PreviousLength = current
			st.VisualLength = current
			v.addForce(st.SuspensionForce, hit.Point)
		} else {
			st.Surface = ""
			st.ContactPoint = mount.Position.Add(down.Mul(maxDist))
			st.ContactNormal = up
			st.SuspensionForce = mgl64.Vec3{}
			st.Load = 0
			st.ContactVelocity = mgl64.Vec3{}
			st.VisualLength = easeVisualLength(st.VisualLength, travel, sf.DropFactor, dt)
		}
	}
}
