// Package constraint resolves contacts between rigid bodies and static
// geometry. A contact never pushes bodies apart: it stops the motion into
// the surface and keeps the motion along it.
package constraint

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
)

// velocityThreshold is the speed under which a residual velocity is dropped.
const velocityThreshold = 1e-5

type Constraint interface {
	SolvePosition(offset float64)
	SolveVelocity()
}

// Decompose splits v into its components along and across the unit normal n.
func Decompose(v, n mgl64.Vec3) (normal, tangent mgl64.Vec3) {
	normal = n.Mul(v.Dot(n))
	return normal, v.Sub(normal)
}

func clampSmallVelocities(rb *actor.RigidBody) {
	if rb.Velocity.Len() < velocityThreshold {
		rb.Velocity = mgl64.Vec3{0, 0, 0}
	}
	if rb.AngularVelocity.Len() < velocityThreshold {
		rb.AngularVelocity = mgl64.Vec3{0, 0, 0}
	}
}
