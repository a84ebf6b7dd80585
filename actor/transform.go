package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform is a pose in world space.
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// NewTransformAt creates a transform at position with the given rotation.
func NewTransformAt(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	t := Transform{Position: position}
	t.SetRotation(rotation)
	return t
}

// SetRotation stores a normalized rotation and its inverse.
func (t *Transform) SetRotation(rotation mgl64.Quat) {
	t.Rotation = rotation.Normalize()
	t.InverseRotation = t.Rotation.Inverse()
}

// Forward is the local +Z axis in world space.
func (t Transform) Forward() mgl64.Vec3 {
	return t.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
}

// Right is the local +X axis in world space.
func (t Transform) Right() mgl64.Vec3 {
	return t.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
}

// Up is the local +Y axis in world space.
func (t Transform) Up() mgl64.Vec3 {
	return t.Rotation.Rotate(mgl64.Vec3{0, 1, 0})
}

// TransformID is a generational handle into a Transforms arena. The zero
// value is never valid.
type TransformID struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the handle was never assigned.
func (id TransformID) IsZero() bool {
	return id.generation == 0
}

type transformSlot struct {
	transform  Transform
	generation uint32
	alive      bool
}

// Transforms owns every transform of a world. Removed slots are reused, and
// the generation of a slot is bumped on removal so that old handles go stale.
type Transforms struct {
	slots []transformSlot
	free  []uint32
	count int
}

// NewTransforms creates an empty arena.
func NewTransforms() *Transforms {
	return &Transforms{}
}

// Add stores a transform and returns its handle.
func (ts *Transforms) Add(t Transform) TransformID {
	if n := len(ts.free); n > 0 {
		index := ts.free[n-1]
		ts.free = ts.free[:n-1]

		slot := &ts.slots[index]
		slot.transform = t
		slot.alive = true
		ts.count++
		return TransformID{index: index, generation: slot.generation}
	}

	ts.slots = append(ts.slots, transformSlot{transform: t, generation: 1, alive: true})
	ts.count++
	return TransformID{index: uint32(len(ts.slots) - 1), generation: 1}
}

// Valid reports whether id addresses a live transform.
func (ts *Transforms) Valid(id TransformID) bool {
	if id.IsZero() || int(id.index) >= len(ts.slots) {
		return false
	}
	slot := &ts.slots[id.index]
	return slot.alive && slot.generation == id.generation
}

// Get returns the transform addressed by id, or nil when the handle is stale.
// The pointer is invalidated by the next Add.
func (ts *Transforms) Get(id TransformID) *Transform {
	if !ts.Valid(id) {
		return nil
	}
	return &ts.slots[id.index].transform
}

// Relocate moves a transform to position.
func (ts *Transforms) Relocate(id TransformID, position mgl64.Vec3) bool {
	t := ts.Get(id)
	if t == nil {
		return false
	}
	t.Position = position
	return true
}

// Remove frees the slot of id. Every copy of the handle goes stale.
func (ts *Transforms) Remove(id TransformID) bool {
	if !ts.Valid(id) {
		return false
	}

	slot := &ts.slots[id.index]
	slot.alive = false
	slot.transform = Transform{}
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	ts.free = append(ts.free, id.index)
	ts.count--
	return true
}

// Len is the number of live transforms.
func (ts *Transforms) Len() int {
	return ts.count
}
