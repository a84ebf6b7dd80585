package actor

import (
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/octree"
	"github.com/leonpard21/cdengine/sat"
)

// ColliderID identifies a collider for its whole life. IDs are never reused
// within a registry.
type ColliderID uint32

// ColliderKind selects the shape variant of a collider
type ColliderKind uint8

const (
	KindOBB ColliderKind = iota
	KindMesh
)

func (k ColliderKind) String() string {
	switch k {
	case KindOBB:
		return "obb"
	case KindMesh:
		return "mesh"
	}
	return "unknown"
}

// OBBShape is an oriented box attached to a transform. Offset is expressed
// in the local frame of the transform.
type OBBShape struct {
	HalfExtents mgl64.Vec3
	Offset      mgl64.Vec3

	aabb AABB
}

// Box returns the world-space box for transform, moving with velocity.
func (s *OBBShape) Box(transform Transform, velocity mgl64.Vec3) sat.Box {
	return sat.BoxFromTransform(transform.Position, transform.Rotation, s.HalfExtents, s.Offset, velocity)
}

// ComputeAABB updates the cached world bounds of the box
func (s *OBBShape) ComputeAABB(transform Transform) {
	h := s.HalfExtents
	corners := [8]mgl64.Vec3{
		{-h.X(), -h.Y(), -h.Z()},
		{+h.X(), -h.Y(), -h.Z()},
		{-h.X(), +h.Y(), -h.Z()},
		{+h.X(), +h.Y(), -h.Z()},
		{-h.X(), -h.Y(), +h.Z()},
		{+h.X(), -h.Y(), +h.Z()},
		{-h.X(), +h.Y(), +h.Z()},
		{+h.X(), +h.Y(), +h.Z()},
	}

	origin := transform.Position.Add(transform.Rotation.Rotate(s.Offset))
	corner := transform.Rotation.Rotate(corners[0]).Add(origin)
	lo, hi := corner, corner

	for i := 1; i < 8; i++ {
		corner = transform.Rotation.Rotate(corners[i]).Add(origin)
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], corner[k])
			hi[k] = math.Max(hi[k], corner[k])
		}
	}

	s.aabb = AABB{Min: lo, Max: hi}
}

func (s *OBBShape) GetAABB() AABB {
	return s.aabb
}

// MeshShape is static world geometry. Its triangles are already in world
// space, the transform of the collider does not move them.
type MeshShape struct {
	Tree *octree.Octree
}

func (s *MeshShape) GetAABB() AABB {
	if s.Tree == nil {
		return AABB{}
	}
	return AABB{Min: s.Tree.Min, Max: s.Tree.Max}
}

// CollisionInfo describes a contact from the point of view of collider A.
// Time is the normalized time of impact within the window that produced it,
// Axis is the unit contact normal pointing from A toward B.
type CollisionInfo struct {
	A, B ColliderID
	Time float64
	Axis mgl64.Vec3
}

// Swap returns the same contact seen from B.
func (i CollisionInfo) Swap() CollisionInfo {
	return CollisionInfo{A: i.B, B: i.A, Time: i.Time, Axis: i.Axis.Mul(-1)}
}

// CollisionCallback is invoked on a collider involved in a contact. Returning
// false stops the remaining callbacks of that collider for this contact.
type CollisionCallback func(self *Collider, info CollisionInfo) bool

// Collider is a shape attached to a transform. Exactly one of OBB and Mesh is
// set, matching Kind.
type Collider struct {
	ID        ColliderID
	Kind      ColliderKind
	Tag       uint64
	Transform TransformID
	Velocity  mgl64.Vec3
	IsTrigger bool

	OBB  *OBBShape
	Mesh *MeshShape

	callbacks []CollisionCallback
}

// NewOBBCollider creates a box collider of full size size.
func NewOBBCollider(id ColliderID, transform TransformID, size, offset mgl64.Vec3) *Collider {
	return &Collider{
		ID:        id,
		Kind:      KindOBB,
		Transform: transform,
		OBB:       &OBBShape{HalfExtents: size.Mul(0.5), Offset: offset},
	}
}

// NewMeshCollider creates a static mesh collider over a built octree.
func NewMeshCollider(id ColliderID, transform TransformID, tree *octree.Octree) *Collider {
	return &Collider{
		ID:        id,
		Kind:      KindMesh,
		Transform: transform,
		Mesh:      &MeshShape{Tree: tree},
	}
}

// OnCollision appends a callback.
func (c *Collider) OnCollision(cb CollisionCallback) {
	if cb == nil {
		return
	}
	c.callbacks = append(c.callbacks, cb)
}

// Callbacks returns the registered callbacks, in registration order.
func (c *Collider) Callbacks() []CollisionCallback {
	return c.callbacks
}

// ClearCallbacks drops every callback.
func (c *Collider) ClearCallbacks() {
	c.callbacks = nil
}

// Dispatch runs the callbacks in order and reports whether all of them
// returned true. The first false stops the chain.
func (c *Collider) Dispatch(info CollisionInfo) bool {
	for _, cb := range c.callbacks {
		if !cb(c, info) {
			return false
		}
	}
	return true
}

// GetAABB returns the world bounds of the shape. Box bounds are only as fresh
// as the last ComputeAABB.
func (c *Collider) GetAABB() AABB {
	switch c.Kind {
	case KindOBB:
		return c.OBB.GetAABB()
	case KindMesh:
		return c.Mesh.GetAABB()
	}
	return AABB{}
}

// TypeHash returns the tag of a collider type name.
func TypeHash(name string) uint64 {
	return xxhash.Sum64String(name)
}
