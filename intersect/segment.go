package intersect

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the magnitude under which a direction component or a vector
// length is treated as zero.
const Epsilon = 1e-12

// SegmentAABB clips the segment p->q against the box [min, max] with the slab
// method. On success tmin <= tmax are the entry and exit parameters clamped to
// the segment range [0, 1].
func SegmentAABB(p, q, min, max mgl64.Vec3) (tmin, tmax float64, ok bool) {
	dir := q.Sub(p)
	tmin, tmax = 0.0, 1.0

	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < Epsilon {
			// parallel to the slab: must already be inside it
			if p[i] < min[i] || p[i] > max[i] {
				return 0, 0, false
			}
			continue
		}

		inv := 1.0 / dir[i]
		t1 := (min[i] - p[i]) * inv
		t2 := (max[i] - p[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, 0, false
		}
	}

	return tmin, tmax, true
}

// AlmostEqualULPs compares two floats by the number of representable values
// between them. NaN never compares equal; +0 and -0 are equal.
func AlmostEqualULPs(a, b float64, maxULPs uint64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	if a == b {
		return true
	}

	ia := orderedBits(a)
	ib := orderedBits(b)
	if ia > ib {
		return ia-ib <= maxULPs
	}
	return ib-ia <= maxULPs
}

// orderedBits maps a float64 onto an unsigned integer line where adjacent
// floats are adjacent integers.
func orderedBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}
