package octree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"
)

// maxLeafTriangles rejects corrupted counts before allocating for them.
const maxLeafTriangles = 1 << 24

// fileHeader is the fixed prefix of a serialized octree, little endian.
type fileHeader struct {
	Level     uint32
	NodeCount uint32
	BoundsMin [3]float32
	BoundsMax [3]float32
}

// Load reads a serialized octree. The node geometry is rebuilt from the level
// and bounds of the header; only the leaves' triangle lists come from the
// stream, in leaf index order. When mesh is not nil every triangle index is
// checked against its vertex buffer.
func Load(r io.Reader, mesh *Mesh) (*Octree, error) {
	var header fileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if header.Level < 1 || header.Level > MaxLevel {
		return nil, fmt.Errorf("%w: level %d", ErrInvalidFormat, header.Level)
	}
	if want := NodeCount(header.Level); int(header.NodeCount) != want {
		return nil, fmt.Errorf("%w: node count %d, level %d needs %d", ErrInvalidFormat, header.NodeCount, header.Level, want)
	}

	o, err := New(header.Level, toVec3(header.BoundsMin), toVec3(header.BoundsMax))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	o.Mesh = mesh

	for i := FirstLeaf(o.Level); i < len(o.Nodes); i++ {
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, fmt.Errorf("failed to read triangle count of node %d: %w", i, err)
		}
		if count > maxLeafTriangles {
			return nil, fmt.Errorf("%w: node %d claims %d triangles", ErrInvalidFormat, i, count)
		}
		if count == 0 {
			continue
		}

		triangles := make([][3]uint32, count)
		if err := binary.Read(r, binary.LittleEndian, triangles); err != nil {
			return nil, fmt.Errorf("failed to read triangles of node %d: %w", i, err)
		}

		if mesh != nil {
			for _, tri := range triangles {
				if !mesh.valid(tri) {
					return nil, fmt.Errorf("%w: node %d references missing vertex in %v", ErrInvalidFormat, i, tri)
				}
			}
		}

		o.Nodes[i].Triangles = triangles
	}

	return o, nil
}

// LoadFile opens and loads a serialized octree.
func LoadFile(filename string, mesh *Mesh) (*Octree, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Load(bufio.NewReader(f), mesh)
}

// Save writes the octree in the format read by Load.
func (o *Octree) Save(w io.Writer) error {
	header := fileHeader{
		Level:     o.Level,
		NodeCount: uint32(len(o.Nodes)),
		BoundsMin: toFloat32s(o.Min),
		BoundsMax: toFloat32s(o.Max),
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := FirstLeaf(o.Level); i < len(o.Nodes); i++ {
		triangles := o.Nodes[i].Triangles
		if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
			return fmt.Errorf("failed to write triangle count of node %d: %w", i, err)
		}
		if len(triangles) == 0 {
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, triangles); err != nil {
			return fmt.Errorf("failed to write triangles of node %d: %w", i, err)
		}
	}

	return nil
}

// SaveFile writes the octree to filename, replacing any existing file.
func (o *Octree) SaveFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := o.Save(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush file: %w", err)
	}

	return f.Close()
}

func toVec3(v [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func toFloat32s(v mgl64.Vec3) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}
