package constraint

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
)

// Contact is a body touching a static surface. Normal is the unit surface
// normal, facing the body. Time is the normalized time of impact within the
// sub-step that found it.
type Contact struct {
	Body   *actor.RigidBody
	Normal mgl64.Vec3
	Time   float64
}

// SolvePosition lifts the body off the surface by offset along the normal.
func (c *Contact) SolvePosition(offset float64) {
	c.Body.Position = c.Body.Position.Add(c.Normal.Mul(offset))
}

// SolveVelocity drops the normal component of the velocity, the contact is
// fully inelastic. The force loses its component pushing into the surface;
// a force pulling away is kept.
func (c *Contact) SolveVelocity() {
	body := c.Body

	_, tangent := Decompose(body.Velocity, c.Normal)
	body.Velocity = tangent

	if normal, tangent := Decompose(body.TotalForce(), c.Normal); normal.Dot(c.Normal) < 0 {
		body.SetTotalForce(tangent)
	}

	clampSmallVelocities(body)
}
