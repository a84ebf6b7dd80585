package actor

import (
	"github.com/go-gl/mathgl/mgl64"
)

// BodyID identifies a rigid body for its whole life.
type BodyID uint32

// RigidBody is a point mass with an orientation, moved by the integrator and
// blocked by static meshes.
type RigidBody struct {
	ID        BodyID
	Transform TransformID

	// Linear motion
	Position         mgl64.Vec3
	PreviousPosition mgl64.Vec3
	Velocity         mgl64.Vec3 // m/s
	PreviousVelocity mgl64.Vec3

	// Angular motion
	Rotation         mgl64.Quat
	PreviousRotation mgl64.Quat
	AngularVelocity  mgl64.Vec3 // rad/s

	Mass       float64
	UseGravity bool

	accumulatedForce mgl64.Vec3
	totalForce       mgl64.Vec3
}

// NewRigidBody creates a unit-mass body at the pose of transform, subject
// to gravity.
func NewRigidBody(id BodyID, transformID TransformID, transform Transform) *RigidBody {
	rotation := transform.Rotation
	if rotation == (mgl64.Quat{}) {
		rotation = mgl64.QuatIdent()
	}

	return &RigidBody{
		ID:               id,
		Transform:        transformID,
		Position:         transform.Position,
		PreviousPosition: transform.Position,
		Rotation:         rotation,
		PreviousRotation: rotation,
		Mass:             1,
		UseGravity:       true,
	}
}

// AddForce accumulates an external force (N) until the end of the next tick.
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	rb.accumulatedForce = rb.accumulatedForce.Add(force)
}

// ClearForces resets the external force accumulator.
func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{}
}

// Force is the external force accumulated so far.
func (rb *RigidBody) Force() mgl64.Vec3 {
	return rb.accumulatedForce
}

// TotalForce is the force driving the current tick: external forces plus
// gravity, minus whatever contacts projected out.
func (rb *RigidBody) TotalForce() mgl64.Vec3 {
	return rb.totalForce
}

// SetTotalForce replaces the force driving the current tick.
func (rb *RigidBody) SetTotalForce(force mgl64.Vec3) {
	rb.totalForce = force
}

// BeginTick snapshots the pose and sums the forces of the tick.
func (rb *RigidBody) BeginTick(gravity mgl64.Vec3) {
	rb.Snapshot()

	rb.totalForce = rb.accumulatedForce
	if rb.UseGravity {
		rb.totalForce = rb.totalForce.Add(gravity.Mul(rb.Mass))
	}
}

// Acceleration is TotalForce over Mass. Bodies without a positive mass do
// not accelerate.
func (rb *RigidBody) Acceleration() mgl64.Vec3 {
	if rb.Mass <= 0 {
		return mgl64.Vec3{}
	}
	return rb.totalForce.Mul(1.0 / rb.Mass)
}

// Displacement is the move Integrate(dt) would apply, without applying it.
func (rb *RigidBody) Displacement(dt float64) mgl64.Vec3 {
	a := rb.Acceleration()
	return rb.Velocity.Mul(dt).Add(a.Mul(0.5 * dt * dt))
}

// Integrate advances the body by dt under constant acceleration.
func (rb *RigidBody) Integrate(dt float64) {
	a := rb.Acceleration()

	rb.Position = rb.Position.Add(rb.Displacement(dt))
	rb.Velocity = rb.Velocity.Add(a.Mul(dt))

	if rb.AngularVelocity.Len() > 0 {
		omega := mgl64.Quat{V: rb.AngularVelocity, W: 0}
		qDot := omega.Mul(rb.Rotation).Scale(0.5)
		rb.Rotation = rb.Rotation.Add(qDot.Scale(dt)).Normalize()
	}
}

// Snapshot stores the current state as the previous state.
func (rb *RigidBody) Snapshot() {
	rb.PreviousPosition = rb.Position
	rb.PreviousVelocity = rb.Velocity
	rb.PreviousRotation = rb.Rotation
}

// Rollback restores the pose of the last snapshot. Velocity is kept, it
// already lost its blocked components.
func (rb *RigidBody) Rollback() {
	rb.Position = rb.PreviousPosition
	rb.Rotation = rb.PreviousRotation
}

// Interpolate blends the previous and current pose, alpha in [0,1].
func (rb *RigidBody) Interpolate(alpha float64) (mgl64.Vec3, mgl64.Quat) {
	position := rb.PreviousPosition.Mul(1 - alpha).Add(rb.Position.Mul(alpha))
	rotation := mgl64.QuatSlerp(rb.PreviousRotation, rb.Rotation, alpha)
	return position, rotation
}
