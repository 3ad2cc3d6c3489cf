package hull

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/akmonengine/hull/actor"
	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// countingTerrain records how often the narrow phase looked at it
type countingTerrain struct {
	*BlockTerrain
	calls atomic.Int32
}

func (c *countingTerrain) Solid(pos actor.BlockPos) bool {
	c.calls.Add(1)
	return c.BlockTerrain.Solid(pos)
}

func executeTask(owner, partner *Ship, terrain Terrain) *CollisionTask {
	task := NewCollisionTask(owner, partner, owner.Processor.CollisionShape().Blocks(), terrain)
	task.logger = quietLogger
	task.Execute()
	return task
}

func assertContact(t *testing.T, point constraint.ContactPoint, position, normal mgl64.Vec3, penetration float64) {
	t.Helper()
	if !vecApprox(point.Position, position) {
		t.Errorf("contact position = %v, want %v", point.Position, position)
	}
	if !vecApprox(point.Normal, normal) {
		t.Errorf("contact normal = %v, want %v", point.Normal, normal)
	}
	if math.Abs(point.Penetration-penetration) > 1e-9 {
		t.Errorf("penetration = %v, want %v", point.Penetration, penetration)
	}
}

func vecApprox(a, b mgl64.Vec3) bool {
	return a.Sub(b).Len() < 1e-9
}

func TestCollisionTask_Terrain(t *testing.T) {
	surface := constraint.Material{StaticFriction: 0.6}
	terrain := FlatTerrain{Level: 0, Material: surface}

	t.Run("resting on the ground", func(t *testing.T) {
		// The block spans y in [-0.2, 0.8]
		ship := createShip(t, "raft", mgl64.Vec3{0.5, 0.3, 0.5})
		task := executeTask(ship, nil, terrain)

		if !task.Done() || task.Err() != nil {
			t.Fatalf("Done() = %v, Err() = %v", task.Done(), task.Err())
		}
		set := task.Contacts()
		if len(set.Points) != 1 {
			t.Fatalf("got %d contacts, want 1: %v", len(set.Points), set.Points)
		}
		assertContact(t, set.Points[0], mgl64.Vec3{0.5, 0, 0.5}, mgl64.Vec3{0, 1, 0}, 0.2)

		static, ok := set.Partner.(constraint.Static)
		if !ok || static.Surface != surface {
			t.Errorf("Partner = %#v, want the terrain surface", set.Partner)
		}
		if task.Partner() != nil || task.Owner() != ship {
			t.Error("terrain task has no partner ship")
		}
	})

	t.Run("far above", func(t *testing.T) {
		ship := createShip(t, "raft", mgl64.Vec3{0.5, 50, 0.5})
		task := executeTask(ship, nil, terrain)

		if !task.Contacts().Empty() || task.Err() != nil {
			t.Errorf("Contacts() = %v, Err() = %v, want none", task.Contacts().Points, task.Err())
		}
	})

	t.Run("no terrain", func(t *testing.T) {
		ship := createShip(t, "raft", mgl64.Vec3{0.5, 0.3, 0.5})
		task := executeTask(ship, nil, nil)

		if !task.Done() || !task.Contacts().Empty() {
			t.Error("a task without terrain nor partner finds nothing")
		}
	})
}

func TestCollisionTask_BoundedTerrain(t *testing.T) {
	ship := createShip(t, "raft", mgl64.Vec3{0.5, 0.3, 0.5})

	t.Run("out of bounds skips the narrow phase", func(t *testing.T) {
		terrain := &countingTerrain{BlockTerrain: NewBlockTerrain(actor.BlockPos{X: 100})}
		task := executeTask(ship, nil, terrain)

		if !task.Contacts().Empty() {
			t.Error("unexpected contact")
		}
		if calls := terrain.calls.Load(); calls != 0 {
			t.Errorf("Solid called %d times, want 0", calls)
		}
	})

	t.Run("in bounds", func(t *testing.T) {
		terrain := &countingTerrain{BlockTerrain: NewBlockTerrain(actor.BlockPos{Y: -1})}
		task := executeTask(ship, nil, terrain)

		if len(task.Contacts().Points) != 1 {
			t.Errorf("got %d contacts, want 1", len(task.Contacts().Points))
		}
		if terrain.calls.Load() == 0 {
			t.Error("narrow phase never ran")
		}
	})
}

func TestCollisionTask_ShipPair(t *testing.T) {
	lower := createShip(t, "lower", mgl64.Vec3{0, 0, 0})
	upper := createShip(t, "upper", mgl64.Vec3{0, 0.8, 0})

	task := executeTask(upper, lower, nil)
	if !task.Done() {
		t.Fatal("task not done")
	}

	set := task.Contacts()
	if len(set.Points) != 1 {
		t.Fatalf("got %d contacts, want 1: %v", len(set.Points), set.Points)
	}
	// Normal points from the partner towards the owner
	assertContact(t, set.Points[0], mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{0, 1, 0}, 0.2)
	if set.Partner != lower.Processor {
		t.Error("Partner should be the processor of the partner ship")
	}

	t.Run("separated", func(t *testing.T) {
		far := createShip(t, "far", mgl64.Vec3{0, 3, 0})
		if !executeTask(far, lower, nil).Contacts().Empty() {
			t.Error("unexpected contact")
		}
	})
}

func TestCollisionTask_RotatedPartner(t *testing.T) {
	// A quarter turn around Y keeps the unit block on the same cell
	rotation := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	shape := actor.MustVoxelShape(map[actor.BlockPos]actor.Block{{}: {}})
	lower, err := NewShip("lower", shape, mgl64.Vec3{}, rotation, constraint.Material{})
	if err != nil {
		t.Fatalf("NewShip: %v", err)
	}
	upper := createShip(t, "upper", mgl64.Vec3{0, 0.8, 0})

	set := executeTask(upper, lower, nil).Contacts()
	if len(set.Points) != 1 {
		t.Fatalf("got %d contacts, want 1", len(set.Points))
	}
	assertContact(t, set.Points[0], mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{0, 1, 0}, 0.2)
}

func TestCollisionTask_Degenerate(t *testing.T) {
	a := createShip(t, "a", mgl64.Vec3{4, 4, 4})
	b := createShip(t, "b", mgl64.Vec3{4, 4, 4})

	task := executeTask(a, b, nil)

	if !task.Done() {
		t.Error("a degenerate task still completes")
	}
	if !errors.Is(task.Err(), ErrDegenerate) {
		t.Errorf("Err() = %v, want ErrDegenerate", task.Err())
	}
	if !task.Contacts().Empty() {
		t.Error("a degenerate task has no contact")
	}
}

func TestSphereCube(t *testing.T) {
	cell := actor.BlockPos{}

	tests := []struct {
		name       string
		center     mgl64.Vec3
		ok         bool
		point      mgl64.Vec3
		normal     mgl64.Vec3
		depth      float64
		degenerate bool
	}{
		{name: "above", center: mgl64.Vec3{0.5, 1.3, 0.5}, ok: true, point: mgl64.Vec3{0.5, 1, 0.5}, normal: mgl64.Vec3{0, 1, 0}, depth: 0.2},
		{name: "beside", center: mgl64.Vec3{-0.25, 0.5, 0.5}, ok: true, point: mgl64.Vec3{0, 0.5, 0.5}, normal: mgl64.Vec3{-1, 0, 0}, depth: 0.25},
		{name: "too far", center: mgl64.Vec3{0.5, 1.5, 0.5}},
		{name: "inside", center: mgl64.Vec3{0.5, 0.9, 0.5}, ok: true, point: mgl64.Vec3{0.5, 1, 0.5}, normal: mgl64.Vec3{0, 1, 0}, depth: 0.6},
		{name: "at the center", center: mgl64.Vec3{0.5, 0.5, 0.5}, degenerate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, normal, depth, ok, err := sphereCube(tt.center, cell)

			if tt.degenerate {
				if !errors.Is(err, ErrDegenerate) {
					t.Errorf("err = %v, want ErrDegenerate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			assertContact(t, constraint.ContactPoint{Position: point, Normal: normal, Penetration: depth}, tt.point, tt.normal, tt.depth)
		})
	}
}
