package provider

import (
	"testing"

	"github.com/akmonengine/hull/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func TestEngine_ComputeForce(t *testing.T) {
	pos := actor.BlockPos{X: 2, Y: 0, Z: -1}

	tests := []struct {
		name     string
		engine   Engine
		state    actor.BlockState
		expected mgl64.Vec3
	}{
		{"unpowered", Engine{Power: 100}, actor.BlockState{Facing: actor.FacingSouth}, mgl64.Vec3{}},
		{"facing south pushes north", Engine{Power: 100}, actor.BlockState{Facing: actor.FacingSouth, Powered: true}, mgl64.Vec3{0, 0, -100}},
		{"facing east pushes west", Engine{Power: 100}, actor.BlockState{Facing: actor.FacingEast, Powered: true}, mgl64.Vec3{-100, 0, 0}},
		{"facing down lifts", Engine{Power: 50}, actor.BlockState{Facing: actor.FacingDown, Powered: true}, mgl64.Vec3{0, 50, 0}},
		{"default power", Engine{}, actor.BlockState{Facing: actor.FacingWest, Powered: true}, mgl64.Vec3{DEFAULT_ENGINE_POWER, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			force, point, local := tt.engine.ComputeForce(actor.ForceContext{}, pos, tt.state, 0.01)

			if force != tt.expected {
				t.Errorf("force = %v, want %v", force, tt.expected)
			}
			if point != pos.Center() {
				t.Errorf("point = %v, want the block center %v", point, pos.Center())
			}
			if !local {
				t.Error("engine forces are expressed in subspace axes")
			}
		})
	}
}
