package provider

import (
	"github.com/akmonengine/hull/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// DEFAULT_ENGINE_POWER is the thrust of an engine block, in newtons
const DEFAULT_ENGINE_POWER = 4000.0

// Engine pushes its ship away from the side it faces, while powered
type Engine struct {
	// Power in newtons, DEFAULT_ENGINE_POWER when zero
	Power float64
}

func (e Engine) ComputeForce(_ actor.ForceContext, pos actor.BlockPos, state actor.BlockState, _ float64) (mgl64.Vec3, mgl64.Vec3, bool) {
	if !state.Powered {
		return mgl64.Vec3{}, pos.Center(), true
	}

	power := e.Power
	if power == 0 {
		power = DEFAULT_ENGINE_POWER
	}

	return state.Facing.Vec().Mul(-power), pos.Center(), true
}
