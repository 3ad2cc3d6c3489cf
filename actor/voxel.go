package actor

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrEmptyShape is returned when a ship would have no block, and therefore no mass
var ErrEmptyShape = errors.New("voxel shape has no block")

// DefaultBlockMass is used for blocks declared without mass (kg)
const DefaultBlockMass = 1000.0

// BlockPos is the integer position of a block, in subspace or world grid coordinates
type BlockPos struct {
	X, Y, Z int
}

// Center returns the center of the unit cube occupied by the block
func (p BlockPos) Center() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X) + 0.5, float64(p.Y) + 0.5, float64(p.Z) + 0.5}
}

func (p BlockPos) Add(other BlockPos) BlockPos {
	return BlockPos{p.X + other.X, p.Y + other.Y, p.Z + other.Z}
}

func (p BlockPos) compare(other BlockPos) int {
	if p.X != other.X {
		return p.X - other.X
	}
	if p.Y != other.Y {
		return p.Y - other.Y
	}
	return p.Z - other.Z
}

// Facing is the direction a directional block points to
type Facing uint8

const (
	FacingDown Facing = iota
	FacingUp
	FacingNorth
	FacingSouth
	FacingWest
	FacingEast
)

// Vec returns the unit vector of the facing, north being -Z and east +X
func (f Facing) Vec() mgl64.Vec3 {
	switch f {
	case FacingDown:
		return mgl64.Vec3{0, -1, 0}
	case FacingUp:
		return mgl64.Vec3{0, 1, 0}
	case FacingNorth:
		return mgl64.Vec3{0, 0, -1}
	case FacingSouth:
		return mgl64.Vec3{0, 0, 1}
	case FacingWest:
		return mgl64.Vec3{-1, 0, 0}
	case FacingEast:
		return mgl64.Vec3{1, 0, 0}
	}
	return mgl64.Vec3{}
}

// BlockState is the data a force contributor can read from its block
type BlockState struct {
	Kind    string
	Facing  Facing
	Powered bool
}

// Block is one voxel of a ship
type Block struct {
	State BlockState
	// Mass in kg, DefaultBlockMass when zero
	Mass float64
	// Force is nil for blocks that never push the ship
	Force ForceContributor
}

func (b Block) mass() float64 {
	if b.Mass <= 0 {
		return DefaultBlockMass
	}
	return b.Mass
}

// VoxelShape is the immutable set of blocks of a ship, in subspace coordinates.
// Edits return a new shape, so a shape captured by a collision task never changes under it.
type VoxelShape struct {
	blocks map[BlockPos]Block
	order  []BlockPos

	mass         float64
	centerOfMass mgl64.Vec3
	inertia      mgl64.Mat3
	aabb         AABB
}

// NewVoxelShape copies blocks and computes the mass properties
func NewVoxelShape(blocks map[BlockPos]Block) (*VoxelShape, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyShape
	}

	s := &VoxelShape{
		blocks: make(map[BlockPos]Block, len(blocks)),
		order:  make([]BlockPos, 0, len(blocks)),
	}
	for pos, block := range blocks {
		if !isFinite(block.Mass) {
			return nil, fmt.Errorf("block %v mass %v: %w", pos, block.Mass, ErrNonFinite)
		}
		s.blocks[pos] = block
		s.order = append(s.order, pos)
	}
	slices.SortFunc(s.order, BlockPos.compare)

	s.computeMassProperties()

	return s, nil
}

// MustVoxelShape panics on error, for tests and static ship definitions
func MustVoxelShape(blocks map[BlockPos]Block) *VoxelShape {
	s, err := NewVoxelShape(blocks)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *VoxelShape) computeMassProperties() {
	var weighted mgl64.Vec3
	s.mass = 0
	for _, pos := range s.order {
		m := s.blocks[pos].mass()
		s.mass += m
		weighted = weighted.Add(pos.Center().Mul(m))
	}
	s.centerOfMass = weighted.Mul(1.0 / s.mass)

	// Unit cube: I = (m/12) * (1² + 1²) on each axis, moved to the center of mass with the parallel axis theorem
	var inertia mgl64.Mat3
	for _, pos := range s.order {
		m := s.blocks[pos].mass()
		r := pos.Center().Sub(s.centerOfMass)
		cube := m / 6.0

		inertia = inertia.Add(mgl64.Mat3{
			cube + m*(r.Y()*r.Y()+r.Z()*r.Z()), -m * r.X() * r.Y(), -m * r.X() * r.Z(),
			-m * r.X() * r.Y(), cube + m*(r.X()*r.X()+r.Z()*r.Z()), -m * r.Y() * r.Z(),
			-m * r.X() * r.Z(), -m * r.Y() * r.Z(), cube + m*(r.X()*r.X()+r.Y()*r.Y()),
		})
	}
	s.inertia = inertia

	first := s.order[0]
	min := mgl64.Vec3{float64(first.X), float64(first.Y), float64(first.Z)}
	max := min.Add(mgl64.Vec3{1, 1, 1})
	for _, pos := range s.order[1:] {
		min[0] = math.Min(min[0], float64(pos.X))
		min[1] = math.Min(min[1], float64(pos.Y))
		min[2] = math.Min(min[2], float64(pos.Z))
		max[0] = math.Max(max[0], float64(pos.X+1))
		max[1] = math.Max(max[1], float64(pos.Y+1))
		max[2] = math.Max(max[2], float64(pos.Z+1))
	}
	s.aabb = AABB{Min: min, Max: max}
}

func (s *VoxelShape) Len() int {
	return len(s.order)
}

// Blocks returns the block positions sorted by X, then Y, then Z
func (s *VoxelShape) Blocks() []BlockPos {
	return slices.Clone(s.order)
}

func (s *VoxelShape) Block(pos BlockPos) (Block, bool) {
	b, ok := s.blocks[pos]
	return b, ok
}

func (s *VoxelShape) Contains(pos BlockPos) bool {
	_, ok := s.blocks[pos]
	return ok
}

// Mass in kg
func (s *VoxelShape) Mass() float64 {
	return s.mass
}

// CenterOfMass in subspace coordinates
func (s *VoxelShape) CenterOfMass() mgl64.Vec3 {
	return s.centerOfMass
}

// InertiaLocal is the inertia tensor about the center of mass, in subspace axes
func (s *VoxelShape) InertiaLocal() mgl64.Mat3 {
	return s.inertia
}

// LocalAABB encloses every block, in subspace coordinates
func (s *VoxelShape) LocalAABB() AABB {
	return s.aabb
}

// ChunkAABB encloses the given blocks, in subspace coordinates
func ChunkAABB(blocks []BlockPos) AABB {
	if len(blocks) == 0 {
		return AABB{}
	}
	min := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	max := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, pos := range blocks {
		min[0] = math.Min(min[0], float64(pos.X))
		min[1] = math.Min(min[1], float64(pos.Y))
		min[2] = math.Min(min[2], float64(pos.Z))
		max[0] = math.Max(max[0], float64(pos.X+1))
		max[1] = math.Max(max[1], float64(pos.Y+1))
		max[2] = math.Max(max[2], float64(pos.Z+1))
	}
	return AABB{Min: min, Max: max}
}

// Chunks splits the sorted block list in slices of at most size blocks
func (s *VoxelShape) Chunks(size int) [][]BlockPos {
	if size <= 0 {
		size = len(s.order)
	}
	chunks := make([][]BlockPos, 0, (len(s.order)+size-1)/size)
	for start := 0; start < len(s.order); start += size {
		end := min(start+size, len(s.order))
		chunks = append(chunks, slices.Clone(s.order[start:end]))
	}
	return chunks
}

// With returns a copy of the shape with the block set at pos
func (s *VoxelShape) With(pos BlockPos, block Block) (*VoxelShape, error) {
	blocks := make(map[BlockPos]Block, len(s.blocks)+1)
	for p, b := range s.blocks {
		blocks[p] = b
	}
	blocks[pos] = block
	return NewVoxelShape(blocks)
}

// Without returns a copy of the shape without the block at pos
func (s *VoxelShape) Without(pos BlockPos) (*VoxelShape, error) {
	blocks := make(map[BlockPos]Block, len(s.blocks))
	for p, b := range s.blocks {
		if p != pos {
			blocks[p] = b
		}
	}
	return NewVoxelShape(blocks)
}
