package cdengine

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
)

func cube(center mgl64.Vec3, half float64) actor.AABB {
	h := mgl64.Vec3{half, half, half}
	return actor.AABB{Min: center.Sub(h), Max: center.Add(h)}
}

func TestWorldToCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected CellKey
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, CellKey{0, 0, 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, CellKey{1, 2, 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, CellKey{-2, -3, -4}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, CellKey{100, -201, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.worldToCell(tt.position)
			if result != tt.expected {
				t.Errorf("worldToCell(%v) = %v, want %v", tt.position, result, tt.expected)
			}
		})
	}
}

func TestHashCell_InRange(t *testing.T) {
	grid := NewSpatialGrid(1.0, 10) // rounded up to 16

	if len(grid.cells) != 16 {
		t.Fatalf("len(cells) = %d, want 16", len(grid.cells))
	}
	for _, key := range []CellKey{{0, 0, 0}, {1, 2, 3}, {-1, -2, -3}, {100, 200, 300}, {-7, 0, 9}} {
		if h := grid.hashCell(key); h < 0 || h >= len(grid.cells) {
			t.Errorf("hashCell(%v) = %d, out of range", key, h)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{{0, 1}, {1, 1}, {3, 4}, {16, 16}, {17, 32}, {1000, 1024}}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// FindPairs Tests
// =============================================================================

func TestFindPairs_NoOverlap(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)

	pairs := grid.FindPairs([]actor.AABB{
		cube(mgl64.Vec3{0, 0, 0}, 0.4),
		cube(mgl64.Vec3{5, 0, 0}, 0.4),
		cube(mgl64.Vec3{0, 5, 0}, 0.4),
	})
	if len(pairs) != 0 {
		t.Errorf("FindPairs() = %v, want none", pairs)
	}
}

func TestFindPairs_SortedAndUnique(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)

	// boxes spanning several cells must still be paired once
	pairs := grid.FindPairs([]actor.AABB{
		cube(mgl64.Vec3{2, 0, 0}, 1.5),
		cube(mgl64.Vec3{0, 0, 0}, 1.5),
		cube(mgl64.Vec3{20, 0, 0}, 0.5),
		cube(mgl64.Vec3{1, 1, 0}, 0.5),
	})

	want := []Pair{{0, 1}, {0, 3}, {1, 3}}
	if len(pairs) != len(want) {
		t.Fatalf("FindPairs() = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestFindPairs_SweptBoxes(t *testing.T) {
	grid := NewSpatialGrid(2.0, 64)

	// a fast box crossing the whole scene within the window
	fast := cube(mgl64.Vec3{-10, 0, 0}, 0.5).Swept(mgl64.Vec3{20, 0, 0})
	pairs := grid.FindPairs([]actor.AABB{
		fast,
		cube(mgl64.Vec3{0, 0, 0}, 0.5),
		cube(mgl64.Vec3{0, 10, 0}, 0.5),
	})

	if len(pairs) != 1 || pairs[0] != (Pair{0, 1}) {
		t.Errorf("FindPairs() = %v, want [{0 1}]", pairs)
	}
}

func TestFindPairs_Oversized(t *testing.T) {
	grid := NewSpatialGrid(1.0, 8)

	// the first two boxes span more cells than the grid holds
	pairs := grid.FindPairs([]actor.AABB{
		cube(mgl64.Vec3{0, 0, 0}, 10),
		cube(mgl64.Vec3{5, 0, 0}, 10),
		cube(mgl64.Vec3{3, 3, 3}, 0.2),
		cube(mgl64.Vec3{40, 0, 0}, 0.2),
	})

	want := []Pair{{0, 1}, {0, 2}, {1, 2}}
	if len(pairs) != len(want) {
		t.Fatalf("FindPairs() = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestFindPairs_ReusesGrid(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)

	grid.FindPairs([]actor.AABB{cube(mgl64.Vec3{}, 0.4), cube(mgl64.Vec3{0.5, 0, 0}, 0.4)})
	pairs := grid.FindPairs([]actor.AABB{cube(mgl64.Vec3{}, 0.4)})

	if len(pairs) != 0 {
		t.Errorf("stale entries leaked into the next query: %v", pairs)
	}
}

func BenchmarkFindPairs(b *testing.B) {
	grid := NewSpatialGrid(1.0, 1024)
	aabbs := make([]actor.AABB, 1000)
	for i := range aabbs {
		pos := mgl64.Vec3{
			float64(i%10) * 2.0,
			float64((i/10)%10) * 2.0,
			float64((i/100)%10) * 2.0,
		}
		aabbs[i] = cube(pos, 0.4).Swept(mgl64.Vec3{1.5, 0, 0})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		grid.FindPairs(aabbs)
	}
}
