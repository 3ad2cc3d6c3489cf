package actor

import "github.com/go-gl/mathgl/mgl64"

// ForceContext is the read-only view of a ship handed to force contributors
type ForceContext struct {
	// Transform at the start of the sub-step
	Transform RigidTransform
	Mass      float64
}

// ForceContributor is implemented by blocks that push their ship (engines, compressors...).
// force is in newtons and is applied during dt seconds. point is the application point in
// subspace coordinates. When local is true, force is expressed in subspace axes and gets
// rotated into the world frame before being applied.
type ForceContributor interface {
	ComputeForce(ctx ForceContext, pos BlockPos, state BlockState, dt float64) (force, point mgl64.Vec3, local bool)
}

// ForceFunc adapts a function to ForceContributor
type ForceFunc func(ctx ForceContext, pos BlockPos, state BlockState, dt float64) (mgl64.Vec3, mgl64.Vec3, bool)

func (f ForceFunc) ComputeForce(ctx ForceContext, pos BlockPos, state BlockState, dt float64) (mgl64.Vec3, mgl64.Vec3, bool) {
	return f(ctx, pos, state, dt)
}
