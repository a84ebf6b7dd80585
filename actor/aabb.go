package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Contains checks if other lies entirely inside the AABB
func (a AABB) Contains(other AABB) bool {
	return a.ContainsPoint(other.Min) && a.ContainsPoint(other.Max)
}

// Overlaps checks if two AABBs overlap, touching faces included
func (a AABB) Overlaps(other AABB) bool {
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Union returns the smallest AABB enclosing both boxes
func (a AABB) Union(other AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{
			math.Min(a.Min.X(), other.Min.X()),
			math.Min(a.Min.Y(), other.Min.Y()),
			math.Min(a.Min.Z(), other.Min.Z()),
		},
		Max: mgl64.Vec3{
			math.Max(a.Max.X(), other.Max.X()),
			math.Max(a.Max.Y(), other.Max.Y()),
			math.Max(a.Max.Z(), other.Max.Z()),
		},
	}
}

// Translate returns the AABB moved by offset
func (a AABB) Translate(offset mgl64.Vec3) AABB {
	return AABB{Min: a.Min.Add(offset), Max: a.Max.Add(offset)}
}

// Swept returns the AABB covering the box along its motion by displacement
func (a AABB) Swept(displacement mgl64.Vec3) AABB {
	return a.Union(a.Translate(displacement))
}

// Expand grows the AABB by margin on every side
func (a AABB) Expand(margin mgl64.Vec3) AABB {
	return AABB{Min: a.Min.Sub(margin), Max: a.Max.Add(margin)}
}

func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

func (a AABB) HalfExtents() mgl64.Vec3 {
	return a.Max.Sub(a.Min).Mul(0.5)
}
