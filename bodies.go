package cdengine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
	"github.com/leonpard21/cdengine/config"
	"github.com/leonpard21/cdengine/constraint"
)

// StaticSweeper finds the first contact of a motion with static geometry.
type StaticSweeper interface {
	SweepStatic(transform actor.TransformID, origin, displacement mgl64.Vec3) (StaticHit, bool)
}

// TickResult is the outcome of one body for one fixed tick.
type TickResult struct {
	Body     actor.BodyID
	Solved   bool
	Substeps int
	Contacts int
}

// Bodies owns the rigid bodies of a world and integrates them at a fixed
// rate against the static geometry.
type Bodies struct {
	transforms *actor.Transforms
	list       []*actor.RigidBody
	index      map[actor.BodyID]int
	nextID     actor.BodyID
	pending    map[actor.BodyID]struct{}

	gravity       mgl64.Vec3
	fixedTimeStep float64
	maxTicks      int
	maxSubsteps   int
	contactOffset float64
	timeEpsilon   float64
	accumulator   float64

	events  *Events
	metrics *Metrics
	diag    *diagnostics
}

// NewBodies creates an empty integrator over transforms.
func NewBodies(transforms *actor.Transforms, cfg config.Physics) *Bodies {
	return &Bodies{
		transforms:    transforms,
		index:         make(map[actor.BodyID]int),
		pending:       make(map[actor.BodyID]struct{}),
		gravity:       cfg.Gravity,
		fixedTimeStep: cfg.FixedTimeStep,
		maxTicks:      max(cfg.MaxTicks, 1),
		maxSubsteps:   max(cfg.MaxSubsteps, 1),
		contactOffset: cfg.ContactOffset,
		timeEpsilon:   cfg.TimeEpsilon,
	}
}

// SetGravity changes the gravity acceleration (m/s²).
func (b *Bodies) SetGravity(gravity mgl64.Vec3) {
	b.gravity = gravity
}

// AddRigidBody creates a body at the pose of transform. It returns the
// existing body when the transform already has one, and false when the
// transform is not alive.
func (b *Bodies) AddRigidBody(transform actor.TransformID) (*actor.RigidBody, bool) {
	t := b.transforms.Get(transform)
	if t == nil {
		return nil, false
	}
	if existing := b.find(transform); existing != nil {
		return existing, true
	}

	b.nextID++
	body := actor.NewRigidBody(b.nextID, transform, *t)
	b.index[body.ID] = len(b.list)
	b.list = append(b.list, body)
	return body, true
}

func (b *Bodies) find(transform actor.TransformID) *actor.RigidBody {
	for _, body := range b.list {
		if body.Transform == transform && !b.isPending(body.ID) {
			return body
		}
	}
	return nil
}

// Get returns a live body.
func (b *Bodies) Get(id actor.BodyID) *actor.RigidBody {
	i, ok := b.index[id]
	if !ok || b.isPending(id) {
		return nil
	}
	return b.list[i]
}

// Len is the number of live bodies.
func (b *Bodies) Len() int {
	return len(b.list) - len(b.pending)
}

// All returns the live bodies in insertion order.
func (b *Bodies) All() []*actor.RigidBody {
	out := make([]*actor.RigidBody, 0, b.Len())
	for _, body := range b.list {
		if !b.isPending(body.ID) {
			out = append(out, body)
		}
	}
	return out
}

// VelocityOf reports the velocity of the body attached to transform.
func (b *Bodies) VelocityOf(transform actor.TransformID) (mgl64.Vec3, bool) {
	if body := b.find(transform); body != nil {
		return body.Velocity, true
	}
	return mgl64.Vec3{}, false
}

// Remove schedules a body for removal at the next frame boundary. It stops
// being integrated right away.
func (b *Bodies) Remove(id actor.BodyID) bool {
	if _, ok := b.index[id]; !ok || b.isPending(id) {
		return false
	}
	b.pending[id] = struct{}{}
	return true
}

// RemoveByTransform schedules the body attached to transform.
func (b *Bodies) RemoveByTransform(transform actor.TransformID) bool {
	if body := b.find(transform); body != nil {
		return b.Remove(body.ID)
	}
	return false
}

// ApplyRemovals drops the scheduled bodies.
func (b *Bodies) ApplyRemovals() {
	if len(b.pending) == 0 {
		return
	}

	n := 0
	for _, body := range b.list {
		if b.isPending(body.ID) {
			delete(b.index, body.ID)
			continue
		}
		b.list[n] = body
		b.index[body.ID] = n
		n++
	}
	clear(b.list[n:])
	b.list = b.list[:n]
	clear(b.pending)
}

func (b *Bodies) isPending(id actor.BodyID) bool {
	_, ok := b.pending[id]
	return ok
}

// Update runs as many fixed ticks as frameTime allows, at most maxTicks, and
// poses the transforms between the last two ticks. It returns the number of
// ticks run.
func (b *Bodies) Update(frameTime float64, obstacles StaticSweeper) int {
	b.accumulator += frameTime

	ticks := 0
	for b.accumulator >= b.fixedTimeStep && ticks < b.maxTicks {
		b.FixedUpdate(b.fixedTimeStep, obstacles)
		b.accumulator -= b.fixedTimeStep
		ticks++
	}

	if b.accumulator >= b.fixedTimeStep {
		dropped := math.Floor(b.accumulator / b.fixedTimeStep)
		b.diag.warnf("cdengine: frame too slow, dropping %.0f ticks", dropped)
		b.accumulator -= dropped * b.fixedTimeStep
	}

	b.Interpolate(b.accumulator / b.fixedTimeStep)
	return ticks
}

// FixedUpdate advances every body by one tick of dt.
func (b *Bodies) FixedUpdate(dt float64, obstacles StaticSweeper) []TickResult {
	results := make([]TickResult, 0, len(b.list))

	for _, body := range b.list {
		if b.isPending(body.ID) {
			continue
		}
		if !b.transforms.Valid(body.Transform) {
			b.Remove(body.ID)
			continue
		}

		result := b.tick(body, dt, obstacles)
		results = append(results, result)
		b.metrics.observeTick(result)

		if !result.Solved {
			b.events.emit(NoSolutionEvent{Body: body.ID, Substeps: result.Substeps, Contacts: result.Contacts})
			b.diag.warnf("cdengine: body %d unresolved after %d sub-steps, rolled back", body.ID, result.Substeps)
		}

		b.pose(body, body.Position, body.Rotation)
	}

	return results
}

// tick integrates one body, stopping at each contact with static geometry
// to strip the motion into the surface.
func (b *Bodies) tick(body *actor.RigidBody, dt float64, obstacles StaticSweeper) TickResult {
	result := TickResult{Body: body.ID}
	body.BeginTick(b.gravity)
	defer body.ClearForces()

	remaining := dt
	for result.Substeps < b.maxSubsteps {
		result.Substeps++

		var (
			hit StaticHit
			ok  bool
		)
		if obstacles != nil {
			hit, ok = obstacles.SweepStatic(body.Transform, body.Position, body.Displacement(remaining))
		}
		if !ok {
			body.Integrate(remaining)
			result.Solved = true
			return result
		}

		h := math.Max((hit.Time-b.timeEpsilon)*remaining, 0)
		body.Integrate(h)
		remaining -= h

		contact := constraint.Contact{Body: body, Normal: hit.Normal, Time: hit.Time}
		contact.SolvePosition(b.contactOffset)
		contact.SolveVelocity()
		result.Contacts++
	}

	body.Rollback()
	return result
}

// Interpolate poses every transform between the previous and the current
// tick, alpha in [0,1].
func (b *Bodies) Interpolate(alpha float64) {
	alpha = mgl64.Clamp(alpha, 0, 1)
	for _, body := range b.list {
		if b.isPending(body.ID) {
			continue
		}
		position, rotation := body.Interpolate(alpha)
		b.pose(body, position, rotation)
	}
}

func (b *Bodies) pose(body *actor.RigidBody, position mgl64.Vec3, rotation mgl64.Quat) {
	if t := b.transforms.Get(body.Transform); t != nil {
		t.Position = position
		t.SetRotation(rotation)
	}
}
