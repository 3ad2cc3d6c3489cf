package actor

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

// Motion is the linear (m/s) and angular (rad/s) velocity published with a transform
type Motion struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

type transformPair struct {
	previous RigidTransform
	current  RigidTransform
	motion   Motion
}

// TransformManager owns the current and previous transform of one ship.
// Writes come only from the ship's PhysicsProcessor; reads are lock-free from any goroutine
// because each Advance publishes a new immutable pair.
type TransformManager struct {
	pair atomic.Pointer[transformPair]
}

// NewTransformManager starts with previous and current both set to initial
func NewTransformManager(initial RigidTransform) *TransformManager {
	tm := &TransformManager{}
	tm.pair.Store(&transformPair{previous: initial, current: initial})
	return tm
}

// Advance replaces previous with current and current with a newly built transform.
// The published motion is kept. On error nothing is published.
func (tm *TransformManager) Advance(position mgl64.Vec3, rotation mgl64.Quat, centerOfMass mgl64.Vec3) error {
	return tm.AdvanceWithMotion(position, rotation, centerOfMass, tm.pair.Load().motion)
}

// AdvanceWithMotion is Advance publishing the velocities of the new transform in the same pair
func (tm *TransformManager) AdvanceWithMotion(position mgl64.Vec3, rotation mgl64.Quat, centerOfMass mgl64.Vec3, motion Motion) error {
	next, err := NewRigidTransform(position, rotation, centerOfMass)
	if err != nil {
		return err
	}

	old := tm.pair.Load()
	tm.pair.Store(&transformPair{previous: old.current, current: next, motion: motion})

	return nil
}

// SetMotion republishes the current pair with new velocities
func (tm *TransformManager) SetMotion(motion Motion) {
	old := tm.pair.Load()
	tm.pair.Store(&transformPair{previous: old.previous, current: old.current, motion: motion})
}

// Motion returns the velocities published with the current transform
func (tm *TransformManager) Motion() Motion {
	return tm.pair.Load().motion
}

// State returns the current transform and its velocities from the same publication
func (tm *TransformManager) State() (RigidTransform, Motion) {
	pair := tm.pair.Load()
	return pair.current, pair.motion
}

// Snapshot returns both transforms from the same publication
func (tm *TransformManager) Snapshot() (previous, current RigidTransform) {
	pair := tm.pair.Load()
	return pair.previous, pair.current
}

func (tm *TransformManager) Current() RigidTransform {
	return tm.pair.Load().current
}

func (tm *TransformManager) Previous() RigidTransform {
	return tm.pair.Load().previous
}

// Interpolate blends previous and current for rendering between two simulation ticks.
// alpha is clamped to [0, 1]; 0 is previous, 1 is current.
func (tm *TransformManager) Interpolate(alpha float64) RigidTransform {
	previous, current := tm.Snapshot()

	alpha = mgl64.Clamp(alpha, 0, 1)
	if alpha == 1 {
		return current
	}
	if alpha == 0 {
		return previous
	}

	position := lerp(previous.position, current.position, alpha)
	center := lerp(previous.centerOfMass, current.centerOfMass, alpha)
	rotation := mgl64.QuatSlerp(previous.rotation, current.rotation, alpha)

	blended, err := NewRigidTransform(position, rotation, center)
	if err != nil {
		return current
	}
	return blended
}

func lerp(a, b mgl64.Vec3, alpha float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(alpha))
}
