package hull

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"

	"github.com/akmonengine/hull/actor"
	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerate is recorded by a CollisionTask whose geometry cannot give a contact normal
var ErrDegenerate = errors.New("degenerate collision geometry")

// blockRadius is the radius of the sphere standing for each owner block
const blockRadius = 0.5

// CollisionTask tests one chunk of blocks of an owner ship against a partner ship, or against
// the terrain when partner is nil. Transforms and shapes are captured at creation: Execute never
// reads the live ships, so tasks can run in any order and on any goroutine.
type CollisionTask struct {
	owner   *Ship
	partner *Ship

	ownerTransform   actor.RigidTransform
	partnerTransform actor.RigidTransform
	partnerShape     *actor.VoxelShape
	blocks           []actor.BlockPos

	terrain Terrain
	surface constraint.Material

	ownerIndex int
	logger     *log.Logger

	points []constraint.ContactPoint
	err    error
	done   atomic.Bool
}

// NewCollisionTask captures the provisional transforms of owner and partner.
// blocks are subspace positions of the owner. A nil partner tests against terrain.
func NewCollisionTask(owner, partner *Ship, blocks []actor.BlockPos, terrain Terrain) *CollisionTask {
	t := &CollisionTask{
		owner:          owner,
		partner:        partner,
		ownerTransform: owner.Processor.Provisional(),
		blocks:         blocks,
		terrain:        terrain,
	}

	if partner != nil {
		t.partnerTransform = partner.Processor.Provisional()
		t.partnerShape = partner.Processor.CollisionShape()
	} else {
		t.partnerTransform = actor.IdentityTransform()
		if surfaced, ok := terrain.(Surfaced); ok {
			t.surface = surfaced.Surface()
		}
	}

	return t
}

func (t *CollisionTask) Owner() *Ship {
	return t.owner
}

// Partner is nil for terrain tasks
func (t *CollisionTask) Partner() *Ship {
	return t.partner
}

// Done reports a task whose Execute returned
func (t *CollisionTask) Done() bool {
	return t.done.Load()
}

// Err is the reason a degenerate task produced no contact
func (t *CollisionTask) Err() error {
	return t.err
}

// Contacts is the output of Execute, owned by the owner ship
func (t *CollisionTask) Contacts() constraint.ContactSet {
	set := constraint.ContactSet{Points: t.points}
	if t.partner != nil {
		set.Partner = t.partner.Processor
	} else {
		set.Partner = constraint.Static{Surface: t.surface}
	}
	return set
}

// Execute runs the broad phase then the narrow phase.
// A degenerate configuration leaves the task without contacts, it never panics out.
func (t *CollisionTask) Execute() {
	defer t.done.Store(true)
	defer func() {
		if r := recover(); r != nil {
			t.fail(fmt.Errorf("%w: %v", ErrDegenerate, r))
		}
	}()

	if t.partner == nil && t.terrain == nil {
		return
	}
	if !t.broadPhase() {
		return
	}

	points, err := t.narrowPhase()
	if err != nil {
		t.fail(err)
		return
	}
	t.points = points
}

func (t *CollisionTask) fail(err error) {
	t.points = nil
	t.err = err

	logger := t.logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("collision task %v against %v skipped: %v", t.owner, t.partnerName(), err)
}

func (t *CollisionTask) partnerName() string {
	if t.partner == nil {
		return "terrain"
	}
	return t.partner.String()
}

// broadPhase compares the world AABB of the chunk with the partner's one
func (t *CollisionTask) broadPhase() bool {
	chunk := actor.ChunkAABB(t.blocks).Transformed(t.ownerTransform)

	if t.partner != nil {
		return chunk.Overlaps(t.partnerShape.LocalAABB().Transformed(t.partnerTransform))
	}
	if bounded, ok := t.terrain.(Bounded); ok {
		return chunk.Overlaps(bounded.Bounds())
	}
	return true
}

func (t *CollisionTask) solid(pos actor.BlockPos) bool {
	if t.partner != nil {
		return t.partnerShape.Contains(pos)
	}
	return t.terrain.Solid(pos)
}

// narrowPhase works in the partner frame (world for terrain): each owner block is a sphere
// tested against the unit cubes of the partner around it
func (t *CollisionTask) narrowPhase() ([]constraint.ContactPoint, error) {
	var points []constraint.ContactPoint

	for _, pos := range t.blocks {
		world := t.ownerTransform.TransformPosition(pos.Center(), actor.SubspaceToGlobal)
		center := t.partnerTransform.TransformPosition(world, actor.GlobalToSubspace)
		if !finite(center) {
			return nil, fmt.Errorf("block %v at %v: %w", pos, center, ErrDegenerate)
		}

		base := actor.BlockPos{
			X: int(math.Floor(center.X())),
			Y: int(math.Floor(center.Y())),
			Z: int(math.Floor(center.Z())),
		}
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					cell := base.Add(actor.BlockPos{X: dx, Y: dy, Z: dz})
					if !t.solid(cell) {
						continue
					}

					point, normal, depth, ok, err := sphereCube(center, cell)
					if err != nil {
						return nil, fmt.Errorf("block %v against %v: %w", pos, cell, err)
					}
					if !ok {
						continue
					}

					points = append(points, constraint.ContactPoint{
						Position:    t.partnerTransform.TransformPosition(point, actor.SubspaceToGlobal),
						Normal:      t.partnerTransform.TransformDirection(normal, actor.SubspaceToGlobal).Normalize(),
						Penetration: depth,
					})
				}
			}
		}
	}

	return points, nil
}

// sphereCube tests a block sphere against the unit cube of cell. The normal points from the cube
// towards the sphere center, point lies on the cube surface.
func sphereCube(center mgl64.Vec3, cell actor.BlockPos) (point, normal mgl64.Vec3, depth float64, ok bool, err error) {
	cubeMin := mgl64.Vec3{float64(cell.X), float64(cell.Y), float64(cell.Z)}
	cubeMax := cubeMin.Add(mgl64.Vec3{1, 1, 1})

	closest := mgl64.Vec3{
		mgl64.Clamp(center.X(), cubeMin.X(), cubeMax.X()),
		mgl64.Clamp(center.Y(), cubeMin.Y(), cubeMax.Y()),
		mgl64.Clamp(center.Z(), cubeMin.Z(), cubeMax.Z()),
	}
	delta := center.Sub(closest)
	distance := delta.Len()

	if distance >= blockRadius {
		return point, normal, 0, false, nil
	}
	if distance > 1e-9 {
		return closest, delta.Mul(1.0 / distance), blockRadius - distance, true, nil
	}

	// Center inside the cube: push out through the nearest face
	offset := center.Sub(cell.Center())
	if offset.Len() < 1e-9 {
		return point, normal, 0, false, ErrDegenerate
	}

	axis := 0
	best := math.Inf(1)
	for i := range 3 {
		if d := 0.5 - math.Abs(offset[i]); d < best {
			best = d
			axis = i
		}
	}
	sign := 1.0
	if offset[axis] < 0 {
		sign = -1.0
	}

	normal[axis] = sign
	point = center
	point[axis] = cell.Center()[axis] + sign*0.5

	return point, normal, blockRadius + best, true, nil
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
