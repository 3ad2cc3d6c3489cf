package hull

import (
	"io"
	"log"
	"strings"
	"testing"

	"github.com/akmonengine/hull/actor"
	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

var quietLogger = log.New(io.Discard, "", 0)

// createShip builds a ship of unit blocks whose center of mass sits at position
func createShip(t *testing.T, name string, position mgl64.Vec3, blocks ...actor.BlockPos) *Ship {
	t.Helper()
	if len(blocks) == 0 {
		blocks = []actor.BlockPos{{}}
	}

	set := make(map[actor.BlockPos]actor.Block, len(blocks))
	for _, pos := range blocks {
		set[pos] = actor.Block{State: actor.BlockState{Kind: "plank"}}
	}
	shape, err := actor.NewVoxelShape(set)
	if err != nil {
		t.Fatalf("NewVoxelShape: %v", err)
	}

	ship, err := NewShip(name, shape, position, mgl64.QuatIdent(), constraint.Material{})
	if err != nil {
		t.Fatalf("NewShip: %v", err)
	}
	return ship
}

func TestNewShip(t *testing.T) {
	ship := createShip(t, "raft", mgl64.Vec3{1, 2, 3}, actor.BlockPos{}, actor.BlockPos{X: 1})

	if ship.ID == uuid.Nil {
		t.Error("ship without ID")
	}
	if got := ship.Transform().Position(); got != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Transform().Position() = %v, want (1, 2, 3)", got)
	}
	if got := ship.Transform().CenterOfMass(); got != (mgl64.Vec3{1, 0.5, 0.5}) {
		t.Errorf("Transform().CenterOfMass() = %v, want (1, 0.5, 0.5)", got)
	}
	if !ship.Interpolated(0.5).ApproxEqual(ship.Transform()) {
		t.Error("a ship that never moved interpolates to its pose")
	}

	if _, err := NewShip("empty", nil, mgl64.Vec3{}, mgl64.QuatIdent(), constraint.Material{}); err == nil {
		t.Error("NewShip() without shape should fail")
	}
}

func TestShip_String(t *testing.T) {
	named := createShip(t, "raft", mgl64.Vec3{})
	if s := named.String(); !strings.HasPrefix(s, "raft(") || !strings.Contains(s, named.ID.String()) {
		t.Errorf("String() = %q", s)
	}

	anonymous := createShip(t, "", mgl64.Vec3{})
	if s := anonymous.String(); s != anonymous.ID.String() {
		t.Errorf("String() = %q, want the bare ID", s)
	}
}
