// Package octree implements the static spatial index over world triangles.
//
// The tree is complete and implicit: every level is fully subdivided and the
// nodes are stored breadth-first in a flat slice, so level L starts at index
// (8^L-1)/7, the children of node i are 8i+1..8i+8 and its parent is (i-1)/8.
// Only the deepest level (the leaves) references triangles.
//
// An Octree is immutable once built or loaded and may be queried from any
// number of goroutines.
package octree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/intersect"
)

const (
	// MaxLevel bounds the tree depth, 7 levels already hold 299593 nodes.
	MaxLevel = 7

	// DuplicateULPs is the distance under which two hits of the same
	// triangle are the same hit reported by two leaves.
	DuplicateULPs = 4
)

var (
	ErrInvalidLevel  = errors.New("octree: invalid level")
	ErrInvalidBounds = errors.New("octree: invalid bounds")
	ErrInvalidFormat = errors.New("octree: invalid format")
)

// Node is a cell of the tree. Triangles is only populated on leaves.
type Node struct {
	Center      mgl64.Vec3
	HalfExtents mgl64.Vec3
	Triangles   [][3]uint32
}

// Min returns the lower corner of the node's box.
func (n *Node) Min() mgl64.Vec3 {
	return n.Center.Sub(n.HalfExtents)
}

// Max returns the upper corner of the node's box.
func (n *Node) Max() mgl64.Vec3 {
	return n.Center.Add(n.HalfExtents)
}

// Octree is a complete octree of Level levels over the box [Min, Max].
type Octree struct {
	Level uint32
	Min   mgl64.Vec3
	Max   mgl64.Vec3
	Nodes []Node
	Mesh  *Mesh
}

// Hit is a triangle crossed by a segment query.
type Hit struct {
	Triangle [3]uint32
	intersect.TriangleHit
}

// NodeCount is the number of nodes of a complete octree with level levels.
func NodeCount(level uint32) int {
	count := 0
	size := 1
	for l := uint32(0); l < level; l++ {
		count += size
		size *= 8
	}
	return count
}

// FirstLeaf is the index of the first node of the deepest level.
func FirstLeaf(level uint32) int {
	if level == 0 {
		return 0
	}
	return NodeCount(level - 1)
}

// Child returns the index of the k-th child (0..7) of node i.
func Child(i, k int) int {
	return 8*i + 1 + k
}

// Parent returns the index of the parent of node i (i > 0).
func Parent(i int) int {
	return (i - 1) / 8
}

// New lays out the geometry of an empty tree: every node's center and half
// extents, no triangles.
func New(level uint32, min, max mgl64.Vec3) (*Octree, error) {
	if level < 1 || level > MaxLevel {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLevel, level, MaxLevel)
	}
	for i := 0; i < 3; i++ {
		if min[i] > max[i] {
			return nil, fmt.Errorf("%w: min %v above max %v", ErrInvalidBounds, min, max)
		}
	}

	o := &Octree{
		Level: level,
		Min:   min,
		Max:   max,
		Nodes: make([]Node, NodeCount(level)),
	}

	o.Nodes[0] = Node{
		Center:      min.Add(max).Mul(0.5),
		HalfExtents: max.Sub(min).Mul(0.5),
	}

	for i := 0; i < FirstLeaf(level); i++ {
		parent := o.Nodes[i]
		half := parent.HalfExtents.Mul(0.5)

		for k := 0; k < 8; k++ {
			offset := mgl64.Vec3{-half.X(), -half.Y(), -half.Z()}
			if k&1 != 0 {
				offset[0] = half.X()
			}
			if k&2 != 0 {
				offset[1] = half.Y()
			}
			if k&4 != 0 {
				offset[2] = half.Z()
			}

			o.Nodes[Child(i, k)] = Node{
				Center:      parent.Center.Add(offset),
				HalfExtents: half,
			}
		}
	}

	return o, nil
}

// Build lays out a tree and bins every triangle of mesh into the leaves it
// touches. A triangle straddling several leaves is referenced by all of them.
func Build(level uint32, min, max mgl64.Vec3, mesh *Mesh) (*Octree, error) {
	o, err := New(level, min, max)
	if err != nil {
		return nil, err
	}
	o.Mesh = mesh

	if mesh == nil {
		return o, nil
	}

	firstLeaf := FirstLeaf(level)
	stack := make([]int, 0, 64)

	for t := 0; t < mesh.TriangleCount(); t++ {
		tri := mesh.IndexTriple(t)
		if !mesh.valid(tri) {
			return nil, fmt.Errorf("%w: triangle %d references a missing vertex", ErrInvalidFormat, t)
		}

		a, b, c := mesh.Triangle(tri)
		triMin, triMax := triangleBounds(a, b, c)

		stack = append(stack[:0], 0)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			node := &o.Nodes[i]
			if !boxesOverlap(triMin, triMax, node.Min(), node.Max()) {
				continue
			}

			if i >= firstLeaf {
				if intersect.TriangleAABB(a, b, c, node.Center, node.HalfExtents) {
					node.Triangles = append(node.Triangles, tri)
				}
				continue
			}

			for k := 7; k >= 0; k-- {
				stack = append(stack, Child(i, k))
			}
		}
	}

	return o, nil
}

// IsLeaf reports whether node i is on the deepest level.
func (o *Octree) IsLeaf(i int) bool {
	return i >= FirstLeaf(o.Level)
}

// Leaves returns the deepest level of the tree, in index order.
func (o *Octree) Leaves() []Node {
	return o.Nodes[FirstLeaf(o.Level):]
}

// TrianglesAlongSegment returns every triangle front face crossed by the
// segment start->end, ordered by increasing segment parameter, each triangle
// reported once.
func (o *Octree) TrianglesAlongSegment(start, end mgl64.Vec3) []Hit {
	if o == nil || o.Mesh == nil || len(o.Nodes) == 0 {
		return nil
	}

	if !o.segmentTouches(0, start, end) {
		return nil
	}

	level := []int{0}
	for !o.IsLeaf(level[0]) {
		next := make([]int, 0, len(level)*2)
		for _, i := range level {
			for k := 0; k < 8; k++ {
				c := Child(i, k)
				if o.segmentTouches(c, start, end) {
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		level = next
	}

	var hits []Hit
	for _, i := range level {
		for _, tri := range o.Nodes[i].Triangles {
			a, b, c := o.Mesh.Triangle(tri)
			hit, ok := intersect.SegmentTriangle(start, end, a, b, c)
			if !ok || hit.T < 0 || hit.T > 1 {
				continue
			}
			hits = append(hits, Hit{Triangle: tri, TriangleHit: hit})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].T != hits[j].T {
			return hits[i].T < hits[j].T
		}
		return lessTriple(hits[i].Triangle, hits[j].Triangle)
	})

	unique := hits[:0]
	for _, hit := range hits {
		if n := len(unique); n > 0 {
			last := unique[n-1]
			if last.Triangle == hit.Triangle && intersect.AlmostEqualULPs(last.T, hit.T, DuplicateULPs) {
				continue
			}
		}
		unique = append(unique, hit)
	}

	return unique
}

// FirstAlongSegment returns the earliest triangle crossed by start->end.
func (o *Octree) FirstAlongSegment(start, end mgl64.Vec3) (Hit, bool) {
	hits := o.TrianglesAlongSegment(start, end)
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

func (o *Octree) segmentTouches(i int, start, end mgl64.Vec3) bool {
	node := &o.Nodes[i]
	_, _, ok := intersect.SegmentAABB(start, end, node.Min(), node.Max())
	return ok
}

func triangleBounds(a, b, c mgl64.Vec3) (lo, hi mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		lo[i] = min(a[i], b[i], c[i])
		hi[i] = max(a[i], b[i], c[i])
	}
	return lo, hi
}

func boxesOverlap(minA, maxA, minB, maxB mgl64.Vec3) bool {
	return maxA.X() >= minB.X() && minA.X() <= maxB.X() &&
		maxA.Y() >= minB.Y() && minA.Y() <= maxB.Y() &&
		maxA.Z() >= minB.Z() && minA.Z() <= maxB.Z()
}

func lessTriple(a, b [3]uint32) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
