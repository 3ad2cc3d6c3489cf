package hull

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/akmonengine/hull/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ============================================================================
// Types
// ============================================================================

// CellKey - coordinates of a cell of the grid
type CellKey struct {
	X, Y, Z int
}

// Cell - indices of the ships overlapping a cell
type Cell struct {
	shipIndices []int
}

// Pair - two ships whose world AABBs overlap, A < B
type Pair struct {
	A, B int
}

// SpatialGrid - uniform hashed grid, broad phase between ships
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int
}

// ============================================================================
// Constructor
// ============================================================================

// NewSpatialGrid - numCells is rounded up to a power of two
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].shipIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

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

// Insert - adds the ship index to every cell its AABB touches
func (sg *SpatialGrid) Insert(shipIndex int, aabb actor.AABB) {
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				sg.cells[cellIdx].shipIndices = append(sg.cells[cellIdx].shipIndices, shipIndex)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].shipIndices = sg.cells[i].shipIndices[:0]
	}
}

func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].shipIndices) > 1 {
			sort.Ints(sg.cells[i].shipIndices)
		}
	}
}

// FindPairs - every overlapping pair once, sorted by A then B.
// aabbs must be the boxes inserted, indexed the same way.
func (sg *SpatialGrid) FindPairs(aabbs []actor.AABB) []Pair {
	pairs := make([]Pair, 0, len(aabbs)/2)
	seen := make([]bool, len(aabbs))

	for shipIdx := range aabbs {
		clear(seen)
		aabbA := aabbs[shipIdx]

		minCell := sg.worldToCell(aabbA.Min)
		maxCell := sg.worldToCell(aabbA.Max)

		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					cellIdx := sg.hashCell(CellKey{x, y, z})

					for _, otherIdx := range sg.cells[cellIdx].shipIndices {
						// (A,B) only, never (B,A)
						if otherIdx <= shipIdx || otherIdx >= len(aabbs) || seen[otherIdx] {
							continue
						}
						seen[otherIdx] = true

						if aabbA.Overlaps(aabbs[otherIdx]) {
							pairs = append(pairs, Pair{A: shipIdx, B: otherIdx})
						}
					}
				}
			}
		}
	}

	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a.A, b.A); c != 0 {
			return c
		}
		return cmp.Compare(a.B, b.B)
	})

	return pairs
}

// worldToCell - world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell - cell coordinates to an index of the cells array
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
