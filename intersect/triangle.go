// Package intersect holds the leaf geometric queries of the collision core:
// segment against triangle, segment against axis-aligned box, and triangle
// against axis-aligned box.
//
// All routines are pure functions over mgl64 vectors and never allocate.
package intersect

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// TriangleHit is the result of a successful segment/triangle query.
// T is the normalized parameter along the segment (0 = start, 1 = end),
// U, V, W are the barycentric weights of the triangle vertices A, B, C.
type TriangleHit struct {
	T float64
	U float64
	V float64
	W float64
}

// Point reconstructs the hit point from the barycentric weights.
func (h TriangleHit) Point(a, b, c mgl64.Vec3) mgl64.Vec3 {
	return a.Mul(h.U).Add(b.Mul(h.V)).Add(c.Mul(h.W))
}

// SegmentTriangle tests the directed segment p->q against triangle abc.
//
// The test is single-sided: only segments entering the front face
// (counter-clockwise winding, normal ab x ac) can hit. Segments parallel to
// the plane or travelling along the normal are rejected.
func SegmentTriangle(p, q, a, b, c mgl64.Vec3) (TriangleHit, bool) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	qp := p.Sub(q)

	n := ab.Cross(ac)

	d := qp.Dot(n)
	if d <= 0 {
		return TriangleHit{}, false
	}

	ap := p.Sub(a)
	t := ap.Dot(n)
	if t < 0 || t > d {
		return TriangleHit{}, false
	}

	// barycentric components, still scaled by d
	e := qp.Cross(ap)
	v := ac.Dot(e)
	if v < 0 || v > d {
		return TriangleHit{}, false
	}
	w := -ab.Dot(e)
	if w < 0 || v+w > d {
		return TriangleHit{}, false
	}

	ood := 1.0 / d
	t *= ood
	v *= ood
	w *= ood

	return TriangleHit{T: t, U: 1.0 - v - w, V: v, W: w}, true
}

// TriangleNormal returns the unit front-face normal of triangle abc, or the
// zero vector for a degenerate triangle.
func TriangleNormal(a, b, c mgl64.Vec3) mgl64.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Len() < Epsilon {
		return mgl64.Vec3{}
	}
	return n.Normalize()
}

// TriangleAABB reports whether triangle abc touches the box given by its
// center and half extents, using the 13 separating axes of the pair.
func TriangleAABB(a, b, c, center, halfExtents mgl64.Vec3) bool {
	// triangle in box space
	v0 := a.Sub(center)
	v1 := b.Sub(center)
	v2 := c.Sub(center)

	// box face normals
	for i := 0; i < 3; i++ {
		lo := math.Min(v0[i], math.Min(v1[i], v2[i]))
		hi := math.Max(v0[i], math.Max(v1[i], v2[i]))
		if lo > halfExtents[i] || hi < -halfExtents[i] {
			return false
		}
	}

	f0 := v1.Sub(v0)
	f1 := v2.Sub(v1)
	f2 := v0.Sub(v2)

	normal := f0.Cross(f1)
	if normal.Len() > Epsilon {
		if separatedOnAxis(normal, v0, v1, v2, halfExtents) {
			return false
		}
	}

	units := [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	edges := [3]mgl64.Vec3{f0, f1, f2}
	for _, u := range units {
		for _, f := range edges {
			axis := u.Cross(f)
			if axis.Len() < Epsilon {
				continue
			}
			if separatedOnAxis(axis, v0, v1, v2, halfExtents) {
				return false
			}
		}
	}

	return true
}

func separatedOnAxis(axis, v0, v1, v2, halfExtents mgl64.Vec3) bool {
	p0 := v0.Dot(axis)
	p1 := v1.Dot(axis)
	p2 := v2.Dot(axis)

	lo := math.Min(p0, math.Min(p1, p2))
	hi := math.Max(p0, math.Max(p1, p2))

	r := halfExtents.X()*math.Abs(axis.X()) +
		halfExtents.Y()*math.Abs(axis.Y()) +
		halfExtents.Z()*math.Abs(axis.Z())

	return lo > r || hi < -r
}
