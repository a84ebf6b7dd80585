package cdengine

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
	"github.com/leonpard21/cdengine/config"
)

func testPhysics() config.Physics {
	cfg := config.Default()
	cfg.Gravity = mgl64.Vec3{0, -10, 0}
	cfg.FixedTimeStep = 0.1
	return cfg
}

func newTestBodies(cfg config.Physics) (*Bodies, *actor.Transforms) {
	transforms := actor.NewTransforms()
	return NewBodies(transforms, cfg), transforms
}

// wall always reports a contact halfway through the motion
type wall struct {
	calls int
}

func (w *wall) SweepStatic(transform actor.TransformID, origin, displacement mgl64.Vec3) (StaticHit, bool) {
	w.calls++
	return StaticHit{Time: 0.5, Normal: mgl64.Vec3{0, 1, 0}}, true
}

// =============================================================================
// Registration Tests
// =============================================================================

func TestBodies_AddRigidBody(t *testing.T) {
	bodies, transforms := newTestBodies(testPhysics())
	id := transforms.Add(actor.NewTransformAt(mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent()))

	body, ok := bodies.AddRigidBody(id)
	if !ok {
		t.Fatal("AddRigidBody failed on a live transform")
	}
	if body.Position != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Position = %v, want the transform position", body.Position)
	}
	if again, _ := bodies.AddRigidBody(id); again != body {
		t.Error("second AddRigidBody should return the existing body")
	}
	if bodies.Len() != 1 {
		t.Errorf("Len() = %d, want 1", bodies.Len())
	}
	if _, ok := bodies.AddRigidBody(actor.TransformID{}); ok {
		t.Error("AddRigidBody accepted an invalid transform")
	}
}

func TestBodies_Remove(t *testing.T) {
	bodies, transforms := newTestBodies(testPhysics())
	id := transforms.Add(actor.NewTransformAt(mgl64.Vec3{0, 10, 0}, mgl64.QuatIdent()))
	body, _ := bodies.AddRigidBody(id)
	body.Velocity = mgl64.Vec3{3, 0, 0}

	if v, ok := bodies.VelocityOf(id); !ok || v != body.Velocity {
		t.Errorf("VelocityOf() = %v, %v", v, ok)
	}

	if !bodies.RemoveByTransform(id) {
		t.Fatal("RemoveByTransform failed")
	}
	if bodies.Get(body.ID) != nil || bodies.Len() != 0 {
		t.Error("pending body is still visible")
	}
	if _, ok := bodies.VelocityOf(id); ok {
		t.Error("pending body still drives its transform")
	}

	// pending bodies are not integrated
	if results := bodies.FixedUpdate(0.1, nil); len(results) != 0 {
		t.Errorf("FixedUpdate ticked %d bodies, want 0", len(results))
	}
	if body.Position != (mgl64.Vec3{0, 10, 0}) {
		t.Errorf("pending body moved to %v", body.Position)
	}

	bodies.ApplyRemovals()
	if len(bodies.list) != 0 || len(bodies.index) != 0 {
		t.Error("ApplyRemovals kept the body")
	}
}

func TestBodies_FixedUpdate_DestroyedTransform(t *testing.T) {
	bodies, transforms := newTestBodies(testPhysics())
	id := transforms.Add(actor.NewTransform())
	body, _ := bodies.AddRigidBody(id)

	transforms.Remove(id)
	bodies.FixedUpdate(0.1, nil)

	if bodies.Get(body.ID) != nil {
		t.Error("a body without a transform should be removed")
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestBodies_FixedUpdate_FreeFall(t *testing.T) {
	bodies, transforms := newTestBodies(testPhysics())
	id := transforms.Add(actor.NewTransformAt(mgl64.Vec3{0, 10, 0}, mgl64.QuatIdent()))
	body, _ := bodies.AddRigidBody(id)
	body.AddForce(mgl64.Vec3{2, 0, 0})

	results := bodies.FixedUpdate(0.1, nil)

	if len(results) != 1 || !results[0].Solved || results[0].Substeps != 1 {
		t.Fatalf("results = %+v, want one solved sub-step", results)
	}
	want := mgl64.Vec3{0.01, 9.95, 0}
	if !vec3AlmostEqual(body.Position, want, 1e-12) {
		t.Errorf("Position = %v, want %v", body.Position, want)
	}
	if !vec3AlmostEqual(body.Velocity, mgl64.Vec3{0.2, -1, 0}, 1e-12) {
		t.Errorf("Velocity = %v, want (0.2,-1,0)", body.Velocity)
	}
	if !vec3AlmostEqual(transforms.Get(id).Position, want, 1e-12) {
		t.Errorf("transform not posed, got %v", transforms.Get(id).Position)
	}
	if body.Force() != (mgl64.Vec3{}) {
		t.Error("external forces should be cleared after the tick")
	}
}

func TestBodies_FixedUpdate_LandsOnFloor(t *testing.T) {
	cfg := testPhysics()
	transforms := actor.NewTransforms()
	bodies := NewBodies(transforms, cfg)
	colliders := NewColliders(transforms)

	floor := transforms.Add(actor.NewTransform())
	colliders.CreateMeshCollider(floor, floorTree(t))

	id := transforms.Add(actor.NewTransformAt(mgl64.Vec3{-4, 1, -6}, mgl64.QuatIdent()))
	body, _ := bodies.AddRigidBody(id)
	body.Velocity = mgl64.Vec3{1, 0, 0}

	contacts := 0
	for i := 0; i < 60; i++ {
		for _, r := range bodies.FixedUpdate(cfg.FixedTimeStep, colliders) {
			if !r.Solved {
				t.Fatalf("tick %d unresolved: %+v", i, r)
			}
			contacts += r.Contacts
		}
		if body.Position.Y() < 0 {
			t.Fatalf("tick %d: body went through the floor, y = %v", i, body.Position.Y())
		}
	}

	if contacts == 0 {
		t.Fatal("the body never touched the floor")
	}
	if body.Position.Y() > 0.05 {
		t.Errorf("y = %v, want resting on the floor", body.Position.Y())
	}
	if body.Velocity.Y() != 0 {
		t.Errorf("Velocity.Y = %v, want 0 at rest", body.Velocity.Y())
	}
	// sliding is not damped
	if !almostEqual(body.Velocity.X(), 1, 1e-12) {
		t.Errorf("Velocity.X = %v, want 1", body.Velocity.X())
	}
	if !almostEqual(body.Position.X(), 2, 1e-9) {
		t.Errorf("x = %v, want 2", body.Position.X())
	}
}

func TestBodies_FixedUpdate_BoxSlidesOnFloor(t *testing.T) {
	cfg := testPhysics()
	transforms := actor.NewTransforms()
	bodies := NewBodies(transforms, cfg)
	colliders := NewColliders(transforms)

	floor := transforms.Add(actor.NewTransform())
	colliders.CreateMeshCollider(floor, floorTree(t))

	// a unit box resting on the floor, pushed along it
	id := transforms.Add(actor.NewTransformAt(mgl64.Vec3{-5, 0.5 + cfg.ContactOffset, -7}, mgl64.QuatIdent()))
	colliders.CreateOBBCollider(id, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{})
	body, _ := bodies.AddRigidBody(id)
	body.Velocity = mgl64.Vec3{4, 0, 0}

	contacts := 0
	for i := 0; i < 20; i++ {
		for _, r := range bodies.FixedUpdate(cfg.FixedTimeStep, colliders) {
			if !r.Solved {
				t.Fatalf("tick %d unresolved: %+v", i, r)
			}
			contacts += r.Contacts
		}
		if bottom := body.Position.Y() - 0.5; bottom < -1e-9 {
			t.Fatalf("tick %d: bottom face %v below the floor", i, bottom)
		}
	}

	if contacts != 20 {
		t.Errorf("contacts = %d, want one per tick", contacts)
	}
	// the gap settles where one tick of gravity meets the contact offset
	if body.Position.Y()-0.5 > 0.01 {
		t.Errorf("y = %v, the box should stay on the floor", body.Position.Y())
	}
	if !almostEqual(body.Velocity.X(), 4, 1e-12) || body.Velocity.Y() != 0 {
		t.Errorf("Velocity = %v, want (4,0,0)", body.Velocity)
	}
	if !almostEqual(body.Position.X(), 3, 1e-9) {
		t.Errorf("x = %v, want 3", body.Position.X())
	}
}

func TestBodies_FixedUpdate_NoSolutionRollsBack(t *testing.T) {
	bodies, transforms := newTestBodies(testPhysics())
	events := NewEvents()
	bodies.events = &events

	var noSolution []NoSolutionEvent
	events.Subscribe(NO_SOLUTION, func(e Event) {
		noSolution = append(noSolution, e.(NoSolutionEvent))
	})

	id := transforms.Add(actor.NewTransformAt(mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent()))
	body, _ := bodies.AddRigidBody(id)
	body.Velocity = mgl64.Vec3{0, -2, 0}
	body.AngularVelocity = mgl64.Vec3{0, 1, 0}

	obstacles := &wall{}
	results := bodies.FixedUpdate(0.1, obstacles)

	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	r := results[0]
	if r.Solved || r.Substeps != config.MaxIntegrationSubsteps || r.Contacts != config.MaxIntegrationSubsteps {
		t.Errorf("result = %+v, want unsolved after %d sub-steps", r, config.MaxIntegrationSubsteps)
	}
	if obstacles.calls != config.MaxIntegrationSubsteps {
		t.Errorf("sweeps = %d, want %d", obstacles.calls, config.MaxIntegrationSubsteps)
	}

	if body.Position != (mgl64.Vec3{0, 5, 0}) {
		t.Errorf("Position = %v, want rolled back to (0,5,0)", body.Position)
	}
	if body.Rotation != mgl64.QuatIdent() {
		t.Errorf("Rotation = %v, want rolled back", body.Rotation)
	}
	if body.Velocity.Y() != 0 {
		t.Errorf("Velocity.Y = %v, the blocked component should stay dropped", body.Velocity.Y())
	}
	if transforms.Get(id).Position != (mgl64.Vec3{0, 5, 0}) {
		t.Error("transform should be posed at the rolled back position")
	}

	events.flush()
	if len(noSolution) != 1 || noSolution[0].Body != body.ID {
		t.Errorf("NO_SOLUTION events = %+v", noSolution)
	}
}

// =============================================================================
// Fixed Step Tests
// =============================================================================

func TestBodies_Update_Accumulator(t *testing.T) {
	cfg := testPhysics()
	bodies, transforms := newTestBodies(cfg)
	id := transforms.Add(actor.NewTransformAt(mgl64.Vec3{0, 10, 0}, mgl64.QuatIdent()))
	body, _ := bodies.AddRigidBody(id)

	if ticks := bodies.Update(0.05, nil); ticks != 0 {
		t.Fatalf("ticks = %d, want 0", ticks)
	}
	if body.Position != (mgl64.Vec3{0, 10, 0}) {
		t.Error("no tick should have run")
	}

	if ticks := bodies.Update(0.2, nil); ticks != 2 {
		t.Fatalf("ticks = %d, want 2", ticks)
	}
	if !almostEqual(body.Position.Y(), 9.8, 1e-9) {
		t.Errorf("y = %v, want 9.8", body.Position.Y())
	}

	// the transform sits halfway between the last two ticks
	if got := transforms.Get(id).Position.Y(); !almostEqual(got, 9.875, 1e-9) {
		t.Errorf("interpolated y = %v, want 9.875", got)
	}
}

func TestBodies_Update_MaxTicks(t *testing.T) {
	cfg := testPhysics()
	cfg.MaxTicks = 3
	bodies, transforms := newTestBodies(cfg)
	transforms.Add(actor.NewTransform())

	if ticks := bodies.Update(1, nil); ticks != 3 {
		t.Errorf("ticks = %d, want 3", ticks)
	}
	if bodies.accumulator >= cfg.FixedTimeStep {
		t.Errorf("accumulator = %v, the backlog should be dropped", bodies.accumulator)
	}
}

func TestBodies_Interpolate(t *testing.T) {
	bodies, transforms := newTestBodies(testPhysics())
	id := transforms.Add(actor.NewTransform())
	body, _ := bodies.AddRigidBody(id)
	body.PreviousPosition = mgl64.Vec3{0, 0, 0}
	body.Position = mgl64.Vec3{4, 0, 0}

	tests := []struct {
		alpha float64
		want  float64
	}{
		{0, 0},
		{0.25, 1},
		{1, 4},
		{-1, 0},
		{2, 4},
	}

	for _, tt := range tests {
		bodies.Interpolate(tt.alpha)
		if got := transforms.Get(id).Position.X(); !almostEqual(got, tt.want, 1e-12) {
			t.Errorf("Interpolate(%v): x = %v, want %v", tt.alpha, got, tt.want)
		}
	}
}
