package provider

import (
	"errors"
	"fmt"
	"sync"

	"github.com/akmonengine/hull/actor"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrNotAssembled is returned for a block that is not part of an assembled compressor
	ErrNotAssembled = errors.New("compressor not assembled")
	// ErrPartTaken is returned when a part already belongs to another master
	ErrPartTaken = errors.New("compressor part already assembled")
)

// Index resolves the parts of multiblock compressors to their master block.
// Parts only hold the position of their master, looked up here, so a removed master
// leaves no dangling reference.
type Index struct {
	mu      sync.RWMutex
	masters map[actor.BlockPos]actor.BlockPos
	parts   map[actor.BlockPos][]actor.BlockPos
	goals   map[actor.BlockPos]float64
}

func NewIndex() *Index {
	return &Index{
		masters: make(map[actor.BlockPos]actor.BlockPos),
		parts:   make(map[actor.BlockPos][]actor.BlockPos),
		goals:   make(map[actor.BlockPos]float64),
	}
}

// Assemble registers master and its parts as one compressor, the master is a part of itself
func (idx *Index) Assemble(master actor.BlockPos, parts ...actor.BlockPos) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	members := append([]actor.BlockPos{master}, parts...)
	for _, part := range members {
		if owner, ok := idx.masters[part]; ok && owner != master {
			return fmt.Errorf("part %v owned by %v: %w", part, owner, ErrPartTaken)
		}
	}

	for _, part := range idx.parts[master] {
		delete(idx.masters, part)
	}
	for _, part := range members {
		idx.masters[part] = master
	}
	idx.parts[master] = members
	if _, ok := idx.goals[master]; !ok {
		idx.goals[master] = 0
	}

	return nil
}

// Disassemble releases every part of the compressor pos belongs to
func (idx *Index) Disassemble(pos actor.BlockPos) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	master, ok := idx.masters[pos]
	if !ok {
		return
	}
	idx.disassemble(master)
}

func (idx *Index) disassemble(master actor.BlockPos) {
	for _, part := range idx.parts[master] {
		delete(idx.masters, part)
	}
	delete(idx.parts, master)
	delete(idx.goals, master)
}

// RemovePart is called when a block is broken. Losing any part breaks the whole compressor.
func (idx *Index) RemovePart(pos actor.BlockPos) {
	idx.Disassemble(pos)
}

// Master returns the master of the compressor pos belongs to
func (idx *Index) Master(pos actor.BlockPos) (actor.BlockPos, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	master, ok := idx.masters[pos]
	return master, ok
}

// SetThrustGoal sets the throttle, clamped to [0, 1], of the compressor pos belongs to
func (idx *Index) SetThrustGoal(pos actor.BlockPos, goal float64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	master, ok := idx.masters[pos]
	if !ok {
		return fmt.Errorf("block %v: %w", pos, ErrNotAssembled)
	}
	idx.goals[master] = mgl64.Clamp(goal, 0, 1)
	return nil
}

// ThrustGoal is 0 for a block outside any compressor
func (idx *Index) ThrustGoal(pos actor.BlockPos) float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	master, ok := idx.masters[pos]
	if !ok {
		return 0
	}
	return idx.goals[master]
}

// EtherEfficiency falls linearly from 1 at height 0 to 0 at ceiling
func EtherEfficiency(height, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return mgl64.Clamp(1-height/ceiling, 0, 1)
}

// EtherCompressor lifts its ship along the ship up axis. Every part of an assembled compressor
// pushes with the throttle of its master, weaker as the part gets higher in the world.
type EtherCompressor struct {
	// MaxThrust of one part in newtons
	MaxThrust float64
	Index     *Index
	// Ceiling is the world height where compressors stop working
	Ceiling float64
}

func (c EtherCompressor) ComputeForce(ctx actor.ForceContext, pos actor.BlockPos, _ actor.BlockState, _ float64) (mgl64.Vec3, mgl64.Vec3, bool) {
	point := pos.Center()
	if c.Index == nil {
		return mgl64.Vec3{}, point, true
	}

	goal := c.Index.ThrustGoal(pos)
	if goal == 0 {
		return mgl64.Vec3{}, point, true
	}

	height := ctx.Transform.TransformPosition(point, actor.SubspaceToGlobal).Y()
	thrust := c.MaxThrust * goal * EtherEfficiency(height, c.Ceiling)

	return mgl64.Vec3{0, thrust, 0}, point, true
}
