package cdengine

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
)

// ============================================================================
// Types
// ============================================================================

// CellKey - coordinates of a grid cell
type CellKey struct {
	X, Y, Z int
}

// Cell - entries overlapping a cell
type Cell struct {
	entries []int
}

// Pair - two entries whose boxes share a cell, A < B
type Pair struct {
	A, B int
}

// SpatialGrid is a hashed uniform grid. The collider scheduler fills it with
// the swept bounds of the moving boxes so that only pairs which may meet
// during the window reach the narrow phase.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	// boxes spanning more cells than the grid holds are paired by brute force
	oversized []int
	seen      []bool
}

// ============================================================================
// Constructor
// ============================================================================

// NewSpatialGrid creates a grid of numCells hashed cells (rounded up to a
// power of two) of side cellSize.
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].entries = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

// nextPowerOfTwo rounds n up to a power of two
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert adds an entry to every cell its box overlaps
func (sg *SpatialGrid) Insert(index int, aabb actor.AABB) {
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	if sg.span(minCell, maxCell) > len(sg.cells) {
		sg.oversized = append(sg.oversized, index)
		return
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				sg.cells[cellIdx].entries = append(sg.cells[cellIdx].entries, index)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].entries = sg.cells[i].entries[:0]
	}
	sg.oversized = sg.oversized[:0]
}

// FindPairs inserts every box and returns the pairs whose boxes overlap,
// sorted by (A, B). Indices are positions in aabbs.
func (sg *SpatialGrid) FindPairs(aabbs []actor.AABB) []Pair {
	sg.Clear()
	for i, aabb := range aabbs {
		sg.Insert(i, aabb)
	}

	if cap(sg.seen) < len(aabbs) {
		sg.seen = make([]bool, len(aabbs))
	}
	seen := sg.seen[:len(aabbs)]

	pairs := make([]Pair, 0, len(aabbs))
	for a := range aabbs {
		clear(seen)

		minCell := sg.worldToCell(aabbs[a].Min)
		maxCell := sg.worldToCell(aabbs[a].Max)
		if sg.span(minCell, maxCell) > len(sg.cells) {
			// found from the other side, or below against other oversized boxes
			continue
		}

		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					for _, b := range sg.cells[sg.hashCell(CellKey{x, y, z})].entries {
						// Avoid duplicates, (A,B) and (B,A)
						if b <= a || seen[b] {
							continue
						}
						seen[b] = true

						if aabbs[a].Overlaps(aabbs[b]) {
							pairs = append(pairs, Pair{A: a, B: b})
						}
					}
				}
			}
		}
	}

	for _, o := range sg.oversized {
		for b := range aabbs {
			if b == o || !aabbs[o].Overlaps(aabbs[b]) {
				continue
			}
			if b < o && sg.isOversized(b) {
				// pair already added when b was the oversized side
				continue
			}
			pairs = append(pairs, Pair{A: min(o, b), B: max(o, b)})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	return pairs
}

func (sg *SpatialGrid) isOversized(index int) bool {
	for _, o := range sg.oversized {
		if o == index {
			return true
		}
	}
	return false
}

// span is the number of cells between two corners, saturating on overflow
func (sg *SpatialGrid) span(minCell, maxCell CellKey) int {
	limit := len(sg.cells) + 1
	n := 1
	for _, d := range [3]int{maxCell.X - minCell.X + 1, maxCell.Y - minCell.Y + 1, maxCell.Z - minCell.Z + 1} {
		if d <= 0 || d > limit {
			return limit
		}
		n *= d
		if n > limit {
			return limit
		}
	}
	return n
}

// worldToCell - converts a world position into cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell - hashes a cell onto an index of the array
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
