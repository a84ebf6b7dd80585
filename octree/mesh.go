package octree

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/intersect"
)

// Mesh is the static world geometry shared by the octree leaves: a vertex
// buffer and an index buffer where every 3 indices form a triangle.
// Front faces are wound counter-clockwise.
type Mesh struct {
	Vertices []mgl64.Vec3
	Indices  []uint32
}

// TriangleCount is the number of triangles in the index buffer.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IndexTriple returns the vertex indices of the i-th triangle.
func (m *Mesh) IndexTriple(i int) [3]uint32 {
	return [3]uint32{m.Indices[i*3], m.Indices[i*3+1], m.Indices[i*3+2]}
}

// Triangle returns the world-space vertices of a triangle.
func (m *Mesh) Triangle(tri [3]uint32) (a, b, c mgl64.Vec3) {
	return m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
}

// Normal returns the unit front-face normal of a triangle.
func (m *Mesh) Normal(tri [3]uint32) mgl64.Vec3 {
	a, b, c := m.Triangle(tri)
	return intersect.TriangleNormal(a, b, c)
}

// Bounds returns the corners of the box enclosing every vertex of the mesh.
func (m *Mesh) Bounds() (min, max mgl64.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}

	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			min[i] = math.Min(min[i], v[i])
			max[i] = math.Max(max[i], v[i])
		}
	}
	return min, max
}

// valid reports whether every index of tri addresses a vertex.
func (m *Mesh) valid(tri [3]uint32) bool {
	n := uint32(len(m.Vertices))
	return tri[0] < n && tri[1] < n && tri[2] < n
}
