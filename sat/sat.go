// Package sat implements the continuous (swept) Separating Axis Test between
// two moving oriented boxes.
//
// For every candidate axis the projected ranges of both boxes are compared
// while box B moves relative to box A over a time window. Each axis yields the
// interval of normalized time during which the projections overlap; the boxes
// touch only while all intervals overlap at once, so the first contact is the
// latest interval start and the separation is the earliest interval end.
//
// Candidate axes are the 3 face normals of A, the 3 face normals of B and the
// 9 cross products of their edges (Gottschalk, "OBBTree", 1996).
package sat

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Epsilon is the relative displacement along an axis under which the boxes
	// are considered static on that axis.
	Epsilon = 1e-9

	// ParallelEpsilon discards cross-product axes of (nearly) parallel edges,
	// they duplicate a face axis already tested.
	ParallelEpsilon = 1e-6

	// AxisCount is the number of candidate separating axes of a box pair.
	AxisCount = 15
)

// Box is an oriented box in world space, moving with a constant velocity.
type Box struct {
	Center      mgl64.Vec3
	Axes        [3]mgl64.Vec3 // orthonormal local axes
	HalfExtents mgl64.Vec3
	Velocity    mgl64.Vec3
}

// BoxFromTransform builds a world-space box from a pose, local half extents and
// a local center offset.
func BoxFromTransform(position mgl64.Vec3, rotation mgl64.Quat, halfExtents, offset, velocity mgl64.Vec3) Box {
	return Box{
		Center: position.Add(rotation.Rotate(offset)),
		Axes: [3]mgl64.Vec3{
			rotation.Rotate(mgl64.Vec3{1, 0, 0}),
			rotation.Rotate(mgl64.Vec3{0, 1, 0}),
			rotation.Rotate(mgl64.Vec3{0, 0, 1}),
		},
		HalfExtents: halfExtents,
		Velocity:    velocity,
	}
}

// Corners returns the 8 vertices of the box.
func (b Box) Corners() [8]mgl64.Vec3 {
	var corners [8]mgl64.Vec3
	for i := range corners {
		c := b.Center
		for k := 0; k < 3; k++ {
			h := b.HalfExtents[k]
			if i&(1<<k) == 0 {
				h = -h
			}
			c = c.Add(b.Axes[k].Mul(h))
		}
		corners[i] = c
	}
	return corners
}

// Radius is the half length of the box projected onto axis.
func (b Box) Radius(axis mgl64.Vec3) float64 {
	return b.HalfExtents.X()*math.Abs(b.Axes[0].Dot(axis)) +
		b.HalfExtents.Y()*math.Abs(b.Axes[1].Dot(axis)) +
		b.HalfExtents.Z()*math.Abs(b.Axes[2].Dot(axis))
}

// OverlapAndSepTime is the overlap interval of one candidate axis, in
// normalized window time. Static overlapping axes hold -Inf/+Inf.
type OverlapAndSepTime struct {
	Overlap    float64
	Separation float64
	Axis       mgl64.Vec3
}

// Result of a swept test. Time is only meaningful when Collided is true; a
// negative Time means the boxes already overlap at the start of the window.
type Result struct {
	Collided bool
	Time     float64
	Axis     mgl64.Vec3
}

// Axes returns the candidate separating axes of the pair, normalized, with the
// degenerate cross products removed.
func Axes(a, b Box) []mgl64.Vec3 {
	axes := make([]mgl64.Vec3, 0, AxisCount)
	axes = append(axes, a.Axes[0], a.Axes[1], a.Axes[2])
	axes = append(axes, b.Axes[0], b.Axes[1], b.Axes[2])

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axis := a.Axes[i].Cross(b.Axes[j])
			if axis.Len() < ParallelEpsilon {
				continue
			}
			axes = append(axes, axis.Normalize())
		}
	}

	return axes
}

// AxisTimes computes the overlap interval of the pair on a single unit axis
// over a window of length dt. It returns false when the axis alone proves the
// boxes never touch during the window.
func AxisTimes(a, b Box, axis mgl64.Vec3, dt float64) (OverlapAndSepTime, bool) {
	r := a.Radius(axis) + b.Radius(axis)
	s := b.Center.Sub(a.Center).Dot(axis)
	d := b.Velocity.Sub(a.Velocity).Dot(axis) * dt

	if math.Abs(d) < Epsilon {
		if math.Abs(s) <= r {
			return OverlapAndSepTime{Overlap: math.Inf(-1), Separation: math.Inf(1), Axis: axis}, true
		}
		return OverlapAndSepTime{Overlap: math.Inf(1), Separation: math.Inf(-1), Axis: axis}, false
	}

	t1 := (-r - s) / d
	t2 := (r - s) / d

	times := OverlapAndSepTime{Overlap: math.Min(t1, t2), Separation: math.Max(t1, t2), Axis: axis}
	if times.Overlap > times.Separation {
		return times, false
	}

	return times, true
}

// Sweep runs the swept SAT of b against a over a window of length dt.
func Sweep(a, b Box, dt float64) Result {
	axes := Axes(a, b)

	overlap := math.Inf(-1)
	separation := math.Inf(1)
	contact := axes[0]

	for _, axis := range axes {
		times, ok := AxisTimes(a, b, axis, dt)
		if !ok {
			return Result{}
		}

		if times.Overlap > overlap {
			overlap = times.Overlap
			contact = axis
		}
		if times.Separation < separation {
			separation = times.Separation
		}
	}

	switch {
	case separation <= 0:
		return Result{}
	case overlap < 0:
		return Result{Collided: true, Time: overlap, Axis: orient(a, b, contact, 0, dt)}
	case overlap > 1:
		return Result{}
	case overlap > separation:
		return Result{}
	}

	t := math.Max(overlap, 0)
	return Result{Collided: true, Time: t, Axis: orient(a, b, contact, t, dt)}
}

// orient flips axis so that it points from A toward B at normalized time t.
func orient(a, b Box, axis mgl64.Vec3, t, dt float64) mgl64.Vec3 {
	s := b.Center.Sub(a.Center).Dot(axis) + b.Velocity.Sub(a.Velocity).Dot(axis)*dt*t
	if s < 0 {
		return axis.Mul(-1)
	}
	return axis
}
