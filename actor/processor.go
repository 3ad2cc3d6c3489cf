package actor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrPhase is returned when the sub-step order is not respected
	ErrPhase = errors.New("physics processor called out of order")
	// ErrRemoved is returned when a destroyed processor is ticked
	ErrRemoved = errors.New("physics processor removed")
)

// Phase of a PhysicsProcessor within one sub-step
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhasePreIntegrated
	PhaseCollisionPending
	PhaseCollisionResolved
	PhasePostIntegrated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreIntegrated:
		return "pre-integrated"
	case PhaseCollisionPending:
		return "collision-pending"
	case PhaseCollisionResolved:
		return "collision-resolved"
	case PhasePostIntegrated:
		return "post-integrated"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// PhysicsProcessor owns the simulation state of one ship.
// Sub-step methods (PreIntegrate, BeginCollision, ResolveCollision, PostIntegrate) must be called
// from a single goroutine, in that order. AddForce, AddTorque, SetShape, Destroy and the transform
// accessors are safe from any goroutine.
type PhysicsProcessor struct {
	transforms *TransformManager

	shape        atomic.Pointer[VoxelShape]
	appliedShape *VoxelShape

	material       constraint.Material
	LinearDamping  float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping float64 // 0.0 - 1.0, typical: 0.05

	mass                float64
	inverseMass         float64
	inverseInertiaLocal mgl64.Mat3

	velocity        mgl64.Vec3 // m/s
	angularVelocity mgl64.Vec3 // rad/s

	// Provisional pose of the current sub-step
	position    mgl64.Vec3
	rotation    mgl64.Quat
	provisional RigidTransform

	forceMu           sync.Mutex
	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	// What PreIntegrate consumed, given back by Rollback
	pending     bool
	undo        Motion
	takenForce  mgl64.Vec3
	takenTorque mgl64.Vec3

	phase       Phase
	firstUpdate bool
	removed     atomic.Bool
}

// NewPhysicsProcessor places the center of mass of shape at position
func NewPhysicsProcessor(shape *VoxelShape, position mgl64.Vec3, rotation mgl64.Quat, material constraint.Material) (*PhysicsProcessor, error) {
	if shape == nil || shape.Len() == 0 {
		return nil, ErrEmptyShape
	}

	initial, err := NewRigidTransform(position, rotation, shape.CenterOfMass())
	if err != nil {
		return nil, err
	}

	p := &PhysicsProcessor{
		transforms:  NewTransformManager(initial),
		material:    material,
		position:    initial.Position(),
		rotation:    initial.Rotation(),
		provisional: initial,
		firstUpdate: true,
	}
	p.shape.Store(shape)
	p.applyShape(shape)

	return p, nil
}

func (p *PhysicsProcessor) applyShape(shape *VoxelShape) {
	p.appliedShape = shape
	p.mass = shape.Mass()
	p.inverseMass = 1.0 / p.mass
	p.inverseInertiaLocal = shape.InertiaLocal().Inv()
}

// refreshShape picks up a shape replaced by SetShape. The world pose of the blocks is kept,
// so the reference position moves to the new center of mass.
func (p *PhysicsProcessor) refreshShape() {
	shape := p.shape.Load()
	if shape == p.appliedShape {
		return
	}

	current := p.transforms.Current()
	p.position = current.TransformPosition(shape.CenterOfMass(), SubspaceToGlobal)
	p.applyShape(shape)
}

// Transforms gives read access to the published transforms
func (p *PhysicsProcessor) Transforms() *TransformManager {
	return p.transforms
}

func (p *PhysicsProcessor) Shape() *VoxelShape {
	return p.shape.Load()
}

// CollisionShape is the shape the provisional pose was integrated with.
// Only valid on the goroutine driving the sub-steps.
func (p *PhysicsProcessor) CollisionShape() *VoxelShape {
	return p.appliedShape
}

// SetShape replaces the blocks of the ship, applied at the next sub-step
func (p *PhysicsProcessor) SetShape(shape *VoxelShape) error {
	if shape == nil || shape.Len() == 0 {
		return ErrEmptyShape
	}
	p.shape.Store(shape)
	return nil
}

func (p *PhysicsProcessor) Phase() Phase {
	return p.phase
}

func (p *PhysicsProcessor) Mass() float64 {
	return p.mass
}

func (p *PhysicsProcessor) Velocity() mgl64.Vec3 {
	return p.velocity
}

// SetVelocity is meant for loading a saved ship, before it is handed to a scheduler
func (p *PhysicsProcessor) SetVelocity(linear, angular mgl64.Vec3) {
	p.velocity = linear
	p.angularVelocity = angular
	p.transforms.SetMotion(p.motion())
}

func (p *PhysicsProcessor) motion() Motion {
	return Motion{Linear: p.velocity, Angular: p.angularVelocity}
}

// AddForce accumulates a world force (N) applied at the center of mass during the next sub-step
func (p *PhysicsProcessor) AddForce(force mgl64.Vec3) {
	p.forceMu.Lock()
	defer p.forceMu.Unlock()
	p.accumulatedForce = p.accumulatedForce.Add(force)
}

// AddTorque accumulates a world torque (N⋅m) applied during the next sub-step
func (p *PhysicsProcessor) AddTorque(torque mgl64.Vec3) {
	p.forceMu.Lock()
	defer p.forceMu.Unlock()
	p.accumulatedTorque = p.accumulatedTorque.Add(torque)
}

func (p *PhysicsProcessor) takeForces() (mgl64.Vec3, mgl64.Vec3) {
	p.forceMu.Lock()
	defer p.forceMu.Unlock()
	force, torque := p.accumulatedForce, p.accumulatedTorque
	p.accumulatedForce = mgl64.Vec3{}
	p.accumulatedTorque = mgl64.Vec3{}
	return force, torque
}

// FirstUpdate reports a ship that has not been activated yet
func (p *PhysicsProcessor) FirstUpdate() bool {
	return p.firstUpdate
}

// Activate ends the first update, the next sub-steps integrate normally
func (p *PhysicsProcessor) Activate() {
	p.firstUpdate = false
}

// Destroy marks the processor as removed from the simulation
func (p *PhysicsProcessor) Destroy() {
	p.removed.Store(true)
}

func (p *PhysicsProcessor) Removed() bool {
	return p.removed.Load()
}

func (p *PhysicsProcessor) expect(phases ...Phase) error {
	if p.removed.Load() {
		return ErrRemoved
	}
	for _, phase := range phases {
		if p.phase == phase {
			return nil
		}
	}
	return fmt.Errorf("phase %s: %w", p.phase, ErrPhase)
}

// PublishWithoutIntegration republishes the current pose, used on the first update of a ship
// so a freshly spawned body does not receive a full tick of forces.
func (p *PhysicsProcessor) PublishWithoutIntegration() error {
	if err := p.expect(PhaseIdle); err != nil {
		return err
	}

	p.refreshShape()
	if err := p.transforms.AdvanceWithMotion(p.position, p.rotation, p.appliedShape.CenterOfMass(), p.motion()); err != nil {
		return err
	}
	p.provisional = p.transforms.Current()

	return nil
}

// PreIntegrate applies gravity, block forces and accumulated forces over dt/iterations
// and moves the provisional pose. Nothing is published until PostIntegrate.
func (p *PhysicsProcessor) PreIntegrate(dt float64, iterations int, gravity mgl64.Vec3) error {
	if err := p.expect(PhaseIdle); err != nil {
		return err
	}

	iterations = max(1, iterations)
	h := dt / float64(iterations)

	p.refreshShape()
	current := p.transforms.Current()
	position := p.position
	rotation := p.rotation

	// ========== FORCES ==========
	force := gravity.Mul(p.mass)
	var torque mgl64.Vec3

	ctx := ForceContext{Transform: current, Mass: p.mass}
	shape := p.appliedShape
	for _, pos := range shape.order {
		block := shape.blocks[pos]
		if block.Force == nil {
			continue
		}

		f, point, local := block.Force.ComputeForce(ctx, pos, block.State, h)
		if local {
			f = current.TransformDirection(f, SubspaceToGlobal)
		}
		worldPoint := current.TransformPosition(point, SubspaceToGlobal)

		force = force.Add(f)
		torque = torque.Add(worldPoint.Sub(position).Cross(f))
	}

	externalForce, externalTorque := p.takeForces()
	force = force.Add(externalForce)
	torque = torque.Add(externalTorque)

	// ========== LINEAR INTEGRATION ==========
	velocity := p.velocity.Add(force.Mul(p.inverseMass * h))
	velocity = velocity.Mul(math.Exp(-p.LinearDamping * h))
	position = position.Add(velocity.Mul(h))

	// ========== ANGULAR INTEGRATION ==========
	I_inv := worldInertia(p.inverseInertiaLocal, rotation)
	angularVelocity := p.angularVelocity.Add(I_inv.Mul3x1(torque).Mul(h))
	angularVelocity = angularVelocity.Mul(math.Exp(-p.AngularDamping * h))

	omegaQuat := mgl64.Quat{V: angularVelocity, W: 0}
	q_dot := omegaQuat.Mul(rotation).Scale(0.5)
	rotation = rotation.Add(q_dot.Scale(h)).Normalize()

	provisional, err := NewRigidTransform(position, rotation, shape.CenterOfMass())
	if err != nil {
		return fmt.Errorf("pre-integrate: %w", err)
	}

	p.pending = true
	p.undo = p.motion()
	p.takenForce, p.takenTorque = externalForce, externalTorque

	p.velocity = velocity
	p.angularVelocity = angularVelocity
	p.position = position
	p.rotation = rotation
	p.provisional = provisional
	p.phase = PhasePreIntegrated

	return nil
}

// Provisional is the pose computed by PreIntegrate, read by collision tasks
func (p *PhysicsProcessor) Provisional() RigidTransform {
	return p.provisional
}

// BeginCollision marks the provisional pose as captured by collision tasks
func (p *PhysicsProcessor) BeginCollision() error {
	if err := p.expect(PhasePreIntegrated); err != nil {
		return err
	}
	p.phase = PhaseCollisionPending
	return nil
}

// ResolveCollision applies the contact sets one after the other, in the given order.
// It is called once per sub-step, with no set when nothing touched the ship.
func (p *PhysicsProcessor) ResolveCollision(sets ...constraint.ContactSet) error {
	if err := p.expect(PhaseCollisionPending); err != nil {
		return err
	}

	for _, set := range sets {
		partner := set.Partner
		if partner == nil {
			partner = constraint.Static{}
		}
		constraint.Solve(p, partner, set.Points)
	}
	p.phase = PhaseCollisionResolved

	return nil
}

// PostIntegrate commits the corrected pose to the TransformManager and ends the sub-step
func (p *PhysicsProcessor) PostIntegrate() error {
	if err := p.expect(PhaseCollisionResolved); err != nil {
		return err
	}
	p.phase = PhasePostIntegrated

	clampSmallVelocities(p)

	if err := p.transforms.AdvanceWithMotion(p.position, p.rotation, p.appliedShape.CenterOfMass(), p.motion()); err != nil {
		p.pending = false
		p.Rollback()
		p.velocity = mgl64.Vec3{}
		p.angularVelocity = mgl64.Vec3{}
		p.transforms.SetMotion(Motion{})
		return fmt.Errorf("post-integrate: %w", err)
	}
	p.provisional = p.transforms.Current()
	p.pending = false
	p.phase = PhaseIdle

	return nil
}

// Rollback drops the provisional pose and goes back to Idle. The velocities are restored and
// the forces consumed by PreIntegrate are queued again for the next sub-step.
func (p *PhysicsProcessor) Rollback() {
	current := p.transforms.Current()
	p.position = current.Position()
	p.rotation = current.Rotation()
	p.provisional = current
	p.phase = PhaseIdle

	if !p.pending {
		return
	}
	p.pending = false
	p.velocity = p.undo.Linear
	p.angularVelocity = p.undo.Angular
	p.AddForce(p.takenForce)
	p.AddTorque(p.takenTorque)
}

// ========== constraint.Body ==========

func (p *PhysicsProcessor) InverseMass() float64 {
	return p.inverseMass
}

// InverseInertiaWorld: I_world^(-1) = R * I_local^(-1) * R^T
func (p *PhysicsProcessor) InverseInertiaWorld() mgl64.Mat3 {
	return worldInertia(p.inverseInertiaLocal, p.rotation)
}

func (p *PhysicsProcessor) CenterOfMassWorld() mgl64.Vec3 {
	return p.position
}

func (p *PhysicsProcessor) LinearVelocity() mgl64.Vec3 {
	return p.velocity
}

func (p *PhysicsProcessor) AngularVelocity() mgl64.Vec3 {
	return p.angularVelocity
}

func (p *PhysicsProcessor) ApplyImpulse(impulse, point mgl64.Vec3) {
	p.velocity = p.velocity.Add(impulse.Mul(p.inverseMass))
	r := point.Sub(p.position)
	p.angularVelocity = p.angularVelocity.Add(p.InverseInertiaWorld().Mul3x1(r.Cross(impulse)))
}

func (p *PhysicsProcessor) Translate(delta mgl64.Vec3) {
	p.position = p.position.Add(delta)
}

func (p *PhysicsProcessor) Material() constraint.Material {
	return p.material
}

func worldInertia(local mgl64.Mat3, rotation mgl64.Quat) mgl64.Mat3 {
	R := rotation.Mat4().Mat3()
	return R.Mul3(local).Mul3(R.Transpose())
}

func clampSmallVelocities(p *PhysicsProcessor) {
	const velocityThreshold = 1e-5

	if p.velocity.Len() < velocityThreshold {
		p.velocity = mgl64.Vec3{0, 0, 0}
	}
	if p.angularVelocity.Len() < velocityThreshold {
		p.angularVelocity = mgl64.Vec3{0, 0, 0}
	}
}
