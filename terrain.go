package hull

import (
	"sync"

	"github.com/akmonengine/hull/actor"
	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// Terrain is the static world ships collide with, addressed by world block position.
// Solid is called concurrently by collision tasks.
type Terrain interface {
	Solid(pos actor.BlockPos) bool
}

// Bounded terrains let collision tasks skip chunks far from any solid block
type Bounded interface {
	Bounds() actor.AABB
}

// Surfaced terrains give their contact material, the zero Material otherwise
type Surfaced interface {
	Surface() constraint.Material
}

// FlatTerrain is solid below Level
type FlatTerrain struct {
	Level    int
	Material constraint.Material
}

func (t FlatTerrain) Solid(pos actor.BlockPos) bool {
	return pos.Y < t.Level
}

func (t FlatTerrain) Surface() constraint.Material {
	return t.Material
}

// BlockTerrain is a sparse set of solid blocks
type BlockTerrain struct {
	mu     sync.RWMutex
	blocks map[actor.BlockPos]struct{}
	bounds actor.AABB
}

func NewBlockTerrain(blocks ...actor.BlockPos) *BlockTerrain {
	t := &BlockTerrain{blocks: make(map[actor.BlockPos]struct{}, len(blocks))}
	for _, pos := range blocks {
		t.Set(pos)
	}
	return t
}

func (t *BlockTerrain) Set(pos actor.BlockPos) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cell := actor.AABB{
		Min: mgl64.Vec3{float64(pos.X), float64(pos.Y), float64(pos.Z)},
		Max: mgl64.Vec3{float64(pos.X + 1), float64(pos.Y + 1), float64(pos.Z + 1)},
	}
	if len(t.blocks) == 0 {
		t.bounds = cell
	} else {
		for i := range 3 {
			t.bounds.Min[i] = min(t.bounds.Min[i], cell.Min[i])
			t.bounds.Max[i] = max(t.bounds.Max[i], cell.Max[i])
		}
	}
	t.blocks[pos] = struct{}{}
}

func (t *BlockTerrain) Solid(pos actor.BlockPos) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.blocks[pos]
	return ok
}

func (t *BlockTerrain) Bounds() actor.AABB {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bounds
}
