package cdengine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
	"github.com/leonpard21/cdengine/config"
	"github.com/leonpard21/cdengine/octree"
	"github.com/leonpard21/cdengine/sat"
)

// FrameReport summarizes one Colliders.Update.
type FrameReport struct {
	Iterations int
	Collisions int
	// Advanced is the total time the colliders were moved by. It equals the
	// elapsed time unless the frame stopped early.
	Advanced    float64
	CapReached  bool
	Overlapping bool
}

// StaticHit is the first contact of a motion with static geometry. Time is
// normalized over the motion, Normal faces the moving object.
type StaticHit struct {
	Collider actor.ColliderID
	Triangle [3]uint32
	Time     float64
	Normal   mgl64.Vec3
}

// VelocityFunc reports the velocity of the body driving a transform.
type VelocityFunc func(transform actor.TransformID) (mgl64.Vec3, bool)

// retouchEpsilon is the normalized time under which a pair that already
// responded counts as still touching.
const retouchEpsilon = 1e-6

type candidate struct {
	a, b int
}

// Colliders owns every collider of a world and resolves their motion frame
// by frame, earliest contact first.
type Colliders struct {
	transforms *actor.Transforms
	list       []*actor.Collider
	index      map[actor.ColliderID]int
	nextID     actor.ColliderID

	pending      map[actor.ColliderID]struct{}
	tagCallbacks map[uint64][]actor.CollisionCallback

	grid          *SpatialGrid
	maxIterations int
	driven        VelocityFunc

	events  *Events
	metrics *Metrics
	diag    *diagnostics

	// scratch, reused across frames
	responded map[pairKey]struct{}
	advanced  map[actor.TransformID]struct{}
	aabbs     []actor.AABB
	boxes     []int
}

// NewColliders creates an empty registry over transforms, with the default
// scheduler settings and no broad phase.
func NewColliders(transforms *actor.Transforms) *Colliders {
	return &Colliders{
		transforms:    transforms,
		index:         make(map[actor.ColliderID]int),
		pending:       make(map[actor.ColliderID]struct{}),
		tagCallbacks:  make(map[uint64][]actor.CollisionCallback),
		maxIterations: config.MaxSchedulerIterations,
		responded:     make(map[pairKey]struct{}),
		advanced:      make(map[actor.TransformID]struct{}),
	}
}

// SetGrid enables the swept broad phase. nil scans every pair.
func (c *Colliders) SetGrid(grid *SpatialGrid) {
	c.grid = grid
}

// SetMaxIterations overrides the scheduler cap.
func (c *Colliders) SetMaxIterations(n int) {
	if n < 1 {
		n = 1
	}
	c.maxIterations = n
}

// SetDriver hands the transforms of dynamic bodies to the integrator: the
// scheduler sweeps their colliders with the body velocity but never moves
// them. World.Step runs the integrator first, so a driven collider is swept
// from its pose after this frame's ticks, over the following window.
func (c *Colliders) SetDriver(driven VelocityFunc) {
	c.driven = driven
}

// CreateOBBCollider attaches a box of full size size to transform. It
// returns the existing box when the transform already has one, and false
// when the transform is not alive.
func (c *Colliders) CreateOBBCollider(transform actor.TransformID, size, offset mgl64.Vec3) (*actor.Collider, bool) {
	if !c.transforms.Valid(transform) {
		return nil, false
	}
	if existing := c.find(transform, actor.KindOBB); existing != nil {
		return existing, true
	}

	c.nextID++
	collider := actor.NewOBBCollider(c.nextID, transform, size, offset)
	collider.OBB.ComputeAABB(*c.transforms.Get(transform))
	c.add(collider)
	return collider, true
}

// CreateMeshCollider attaches static geometry to transform.
func (c *Colliders) CreateMeshCollider(transform actor.TransformID, tree *octree.Octree) (*actor.Collider, bool) {
	if tree == nil || !c.transforms.Valid(transform) {
		return nil, false
	}
	if existing := c.find(transform, actor.KindMesh); existing != nil {
		return existing, true
	}

	c.nextID++
	collider := actor.NewMeshCollider(c.nextID, transform, tree)
	c.add(collider)
	return collider, true
}

func (c *Colliders) add(collider *actor.Collider) {
	c.index[collider.ID] = len(c.list)
	c.list = append(c.list, collider)
}

func (c *Colliders) find(transform actor.TransformID, kind actor.ColliderKind) *actor.Collider {
	for _, collider := range c.list {
		if collider.Transform == transform && collider.Kind == kind && !c.isPending(collider.ID) {
			return collider
		}
	}
	return nil
}

// OnTag registers cb for every collider whose Tag equals tag, present or
// future. Tag callbacks run after the collider's own callbacks.
func (c *Colliders) OnTag(tag uint64, cb actor.CollisionCallback) {
	if cb == nil {
		return
	}
	c.tagCallbacks[tag] = append(c.tagCallbacks[tag], cb)
}

// Get returns a live collider.
func (c *Colliders) Get(id actor.ColliderID) *actor.Collider {
	i, ok := c.index[id]
	if !ok || c.isPending(id) {
		return nil
	}
	return c.list[i]
}

// Len is the number of live colliders.
func (c *Colliders) Len() int {
	return len(c.list) - len(c.pending)
}

// All returns the live colliders in insertion order.
func (c *Colliders) All() []*actor.Collider {
	out := make([]*actor.Collider, 0, c.Len())
	for _, collider := range c.list {
		if !c.isPending(collider.ID) {
			out = append(out, collider)
		}
	}
	return out
}

// Remove schedules a collider for removal at the next frame boundary. The
// collider stops taking part in scans right away.
func (c *Colliders) Remove(id actor.ColliderID) bool {
	if _, ok := c.index[id]; !ok || c.isPending(id) {
		return false
	}
	c.pending[id] = struct{}{}
	return true
}

// RemoveByTransform schedules every collider attached to transform.
func (c *Colliders) RemoveByTransform(transform actor.TransformID) int {
	n := 0
	for _, collider := range c.list {
		if collider.Transform == transform && c.Remove(collider.ID) {
			n++
		}
	}
	return n
}

// ApplyRemovals drops the scheduled colliders and their callbacks.
func (c *Colliders) ApplyRemovals() {
	if len(c.pending) == 0 {
		return
	}

	n := 0
	for _, collider := range c.list {
		if c.isPending(collider.ID) {
			collider.ClearCallbacks()
			delete(c.index, collider.ID)
			continue
		}
		c.list[n] = collider
		c.index[collider.ID] = n
		n++
	}
	clear(c.list[n:])
	c.list = c.list[:n]
	clear(c.pending)
}

func (c *Colliders) isPending(id actor.ColliderID) bool {
	_, ok := c.pending[id]
	return ok
}

// Update moves every collider by elapsed seconds, stopping at each contact
// in time order to run its response.
func (c *Colliders) Update(elapsed float64) FrameReport {
	var report FrameReport
	clear(c.responded)

	remaining := elapsed
	for {
		if report.Iterations == c.maxIterations {
			report.CapReached = true
			c.events.emit(SchedulerCapEvent{Iterations: report.Iterations, Deferred: remaining})
			c.diag.warnf("cdengine: collision scheduler stopped after %d iterations, %.6fs deferred", report.Iterations, remaining)
			break
		}
		report.Iterations++

		a, b, result, found := c.earliest(remaining)
		if !found || result.Time > 1 {
			c.advance(remaining)
			report.Advanced += remaining
			break
		}
		if result.Time < 0 {
			report.Overlapping = true
			break
		}

		step := remaining * result.Time
		c.advance(step)
		report.Advanced += step
		remaining -= step

		c.respond(a, b, actor.CollisionInfo{A: a.ID, B: b.ID, Time: result.Time, Axis: result.Axis})
		c.responded[makePairKey(a.ID, b.ID)] = struct{}{}
		report.Collisions++
	}

	c.metrics.observeFrame(report)
	return report
}

// earliest finds the pair with the smallest time of impact over a window of
// length dt. Ties keep the first pair in insertion order.
//
// A pair that already responded in this Update is ignored while it is still
// in contact: its response left it moving through or along the other
// collider. Once it separates, a new approach is a new contact.
func (c *Colliders) earliest(dt float64) (a, b *actor.Collider, best sat.Result, found bool) {
	for _, p := range c.candidates(dt) {
		ca, cb := c.list[p.a], c.list[p.b]

		result, ok := c.test(ca, cb, dt)
		if !ok {
			continue
		}
		if result.Time <= retouchEpsilon && c.hasResponded(ca, cb) {
			continue
		}
		if !found || result.Time < best.Time {
			a, b, best, found = ca, cb, result, true
		}
	}
	return a, b, best, found
}

// candidates lists the pairs worth a narrow phase test, by increasing (a, b)
// position in the registry.
func (c *Colliders) candidates(dt float64) []candidate {
	var pairs []candidate

	if c.grid == nil {
		for i := range c.list {
			if c.isPending(c.list[i].ID) {
				continue
			}
			for j := i + 1; j < len(c.list); j++ {
				if c.isPending(c.list[j].ID) || !canCollide(c.list[i], c.list[j]) {
					continue
				}
				pairs = append(pairs, candidate{i, j})
			}
		}
		return pairs
	}

	// swept bounds of every box, meshes are paired by bounds directly
	c.aabbs = c.aabbs[:0]
	c.boxes = c.boxes[:0]
	for i, collider := range c.list {
		if collider.Kind != actor.KindOBB || c.isPending(collider.ID) {
			continue
		}
		transform := c.transforms.Get(collider.Transform)
		if transform == nil {
			continue
		}
		collider.OBB.ComputeAABB(*transform)
		swept := collider.OBB.GetAABB().Swept(c.velocity(collider).Mul(dt))
		c.aabbs = append(c.aabbs, swept)
		c.boxes = append(c.boxes, i)
	}

	for _, p := range c.grid.FindPairs(c.aabbs) {
		pairs = append(pairs, candidate{c.boxes[p.A], c.boxes[p.B]})
	}

	for i, collider := range c.list {
		if collider.Kind != actor.KindMesh || c.isPending(collider.ID) {
			continue
		}
		bounds := collider.GetAABB()
		for k, box := range c.boxes {
			if bounds.Overlaps(c.aabbs[k]) {
				pairs = append(pairs, candidate{min(i, box), max(i, box)})
			}
		}
	}

	sortCandidates(pairs)
	return pairs
}

func (c *Colliders) hasResponded(a, b *actor.Collider) bool {
	_, ok := c.responded[makePairKey(a.ID, b.ID)]
	return ok
}

func sortCandidates(pairs []candidate) {
	// insertion sort, the lists are short and mostly sorted
	for i := 1; i < len(pairs); i++ {
		p := pairs[i]
		j := i - 1
		for j >= 0 && (pairs[j].a > p.a || (pairs[j].a == p.a && pairs[j].b > p.b)) {
			pairs[j+1] = pairs[j]
			j--
		}
		pairs[j+1] = p
	}
}

func canCollide(a, b *actor.Collider) bool {
	return a.Kind == actor.KindOBB || b.Kind == actor.KindOBB
}

// test runs the narrow phase of a pair, dispatching on the collider kinds.
func (c *Colliders) test(a, b *actor.Collider, dt float64) (sat.Result, bool) {
	ta := c.transforms.Get(a.Transform)
	tb := c.transforms.Get(b.Transform)
	if ta == nil || tb == nil {
		return sat.Result{}, false
	}

	switch {
	case a.Kind == actor.KindOBB && b.Kind == actor.KindOBB:
		boxA := a.OBB.Box(*ta, c.velocity(a))
		boxB := b.OBB.Box(*tb, c.velocity(b))
		result := sat.Sweep(boxA, boxB, dt)
		if !result.Collided {
			return sat.Result{}, false
		}
		if result.Time < 0 && !c.blocking(a, b, boxA, boxB, result) {
			return sat.Result{}, false
		}
		return result, true

	case a.Kind == actor.KindOBB && b.Kind == actor.KindMesh:
		hit, ok := sweepMesh(b, a.OBB.Box(*ta, c.velocity(a)), dt)
		if !ok {
			return sat.Result{}, false
		}
		// the normal faces the box, the axis points from the box to the mesh
		return sat.Result{Collided: true, Time: hit.Time, Axis: hit.Normal.Mul(-1)}, true

	case a.Kind == actor.KindMesh && b.Kind == actor.KindOBB:
		hit, ok := sweepMesh(a, b.OBB.Box(*tb, c.velocity(b)), dt)
		if !ok {
			return sat.Result{}, false
		}
		return sat.Result{Collided: true, Time: hit.Time, Axis: hit.Normal}, true
	}

	return sat.Result{}, false
}

// blocking reports whether an already overlapping pair stops the frame.
// Overlaps involving a trigger, and overlaps that are not getting any deeper
// (resting contact), let the frame go on.
func (c *Colliders) blocking(a, b *actor.Collider, boxA, boxB sat.Box, result sat.Result) bool {
	if a.IsTrigger || b.IsTrigger {
		return false
	}
	approach := boxB.Velocity.Sub(boxA.Velocity).Dot(result.Axis)
	return approach < -sat.Epsilon
}

// sweepMesh sweeps the corners of box along its motion over dt against the
// triangles of a mesh collider.
func sweepMesh(mesh *actor.Collider, box sat.Box, dt float64) (StaticHit, bool) {
	corners := box.Corners()
	return sweepTree(mesh, corners[:], box.Velocity.Mul(dt))
}

// sweepTree casts one segment per point along displacement and keeps the
// earliest triangle crossed. Ties keep the first point.
func sweepTree(mesh *actor.Collider, points []mgl64.Vec3, displacement mgl64.Vec3) (StaticHit, bool) {
	if mesh.Mesh == nil || mesh.Mesh.Tree == nil {
		return StaticHit{}, false
	}
	if displacement.Len() < sat.Epsilon {
		return StaticHit{}, false
	}

	tree := mesh.Mesh.Tree
	var best octree.Hit
	found := false
	for _, p := range points {
		hit, ok := tree.FirstAlongSegment(p, p.Add(displacement))
		if ok && (!found || hit.T < best.T) {
			best, found = hit, true
		}
	}
	if !found {
		return StaticHit{}, false
	}

	return StaticHit{
		Collider: mesh.ID,
		Triangle: best.Triangle,
		Time:     math.Max(best.T, 0),
		Normal:   tree.Mesh.Normal(best.Triangle),
	}, true
}

// SweepStatic finds the earliest contact of a motion from origin by
// displacement with the static meshes. When transform carries a box, the
// box placed at origin is swept by its corners, otherwise origin alone is.
func (c *Colliders) SweepStatic(transform actor.TransformID, origin, displacement mgl64.Vec3) (StaticHit, bool) {
	points := []mgl64.Vec3{origin}
	if box := c.find(transform, actor.KindOBB); box != nil {
		if t := c.transforms.Get(transform); t != nil {
			corners := sat.BoxFromTransform(origin, t.Rotation, box.OBB.HalfExtents, box.OBB.Offset, mgl64.Vec3{}).Corners()
			points = corners[:]
		}
	}

	var best StaticHit
	found := false
	for _, collider := range c.list {
		if collider.Kind != actor.KindMesh || collider.IsTrigger || c.isPending(collider.ID) {
			continue
		}
		hit, ok := sweepTree(collider, points, displacement)
		if ok && (!found || hit.Time < best.Time) {
			best, found = hit, true
		}
	}
	return best, found
}

// velocity of a collider over the current window
func (c *Colliders) velocity(collider *actor.Collider) mgl64.Vec3 {
	if c.driven != nil {
		if v, ok := c.driven(collider.Transform); ok {
			return v
		}
	}
	return collider.Velocity
}

// advance moves every kinematic collider by dt along its velocity. A
// transform shared by several colliders moves once, with the velocity of
// the first one.
func (c *Colliders) advance(dt float64) {
	if dt == 0 {
		return
	}
	clear(c.advanced)

	for _, collider := range c.list {
		if collider.Kind != actor.KindOBB || c.isPending(collider.ID) {
			continue
		}
		if _, ok := c.advanced[collider.Transform]; ok {
			continue
		}
		c.advanced[collider.Transform] = struct{}{}

		if c.driven != nil {
			if _, ok := c.driven(collider.Transform); ok {
				continue
			}
		}

		if t := c.transforms.Get(collider.Transform); t != nil {
			t.Position = t.Position.Add(collider.Velocity.Mul(dt))
		}
	}
}

// respond runs the callbacks and events of a contact.
//
// Two solid colliders run both sides' callbacks and emit a COLLISION. Two
// triggers only emit a TRIGGER. A trigger touching a solid collider runs
// both sides' callbacks and emits a TRIGGER.
func (c *Colliders) respond(a, b *actor.Collider, info actor.CollisionInfo) {
	switch {
	case a.IsTrigger && b.IsTrigger:
		c.events.emit(TriggerEvent{A: a.ID, B: b.ID, Info: info})
		c.metrics.observeContact(true)

	case a.IsTrigger || b.IsTrigger:
		c.dispatch(a, info)
		c.dispatch(b, info.Swap())
		c.events.emit(TriggerEvent{A: a.ID, B: b.ID, Info: info})
		c.metrics.observeContact(true)

	default:
		c.dispatch(a, info)
		c.dispatch(b, info.Swap())
		c.events.emit(CollisionEvent{A: a.ID, B: b.ID, Info: info})
		c.metrics.observeContact(false)
	}
}

// dispatch runs the collider's callbacks, then the callbacks of its tag,
// until one returns false.
func (c *Colliders) dispatch(collider *actor.Collider, info actor.CollisionInfo) {
	if !collider.Dispatch(info) {
		return
	}
	for _, cb := range c.tagCallbacks[collider.Tag] {
		if !cb(collider, info) {
			return
		}
	}
}
