package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Material holds the contact properties of a body
type Material struct {
	Restitution float64 // 0= no rebound, 1= perfect restitution

	StaticFriction  float64
	DynamicFriction float64
}

// Body is what the solver needs from a participant of a contact.
// Implementations are only touched from the goroutine running the solver.
type Body interface {
	InverseMass() float64
	InverseInertiaWorld() mgl64.Mat3
	// CenterOfMassWorld is the point impulses are taken about
	CenterOfMassWorld() mgl64.Vec3
	LinearVelocity() mgl64.Vec3
	AngularVelocity() mgl64.Vec3
	// ApplyImpulse applies impulse (N·s) at the world point
	ApplyImpulse(impulse, point mgl64.Vec3)
	// Translate moves the body, used by the position correction
	Translate(delta mgl64.Vec3)
	Material() Material
}

// Static is an immovable body, used for the terrain
type Static struct {
	Surface Material
}

func (s Static) InverseMass() float64 {
	return 0
}

func (s Static) InverseInertiaWorld() mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (s Static) CenterOfMassWorld() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (s Static) LinearVelocity() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (s Static) AngularVelocity() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (s Static) ApplyImpulse(_, _ mgl64.Vec3) {}

func (s Static) Translate(_ mgl64.Vec3) {}

func (s Static) Material() Material {
	return s.Surface
}

func ComputeRestitution(matA, matB Material) float64 {
	// Option 1: Average (more realistic)
	return (matA.Restitution + matB.Restitution) / 2.0

	// Option 2: Maximum (if one bounces, it bounces)
	//return math.Max(matA.Restitution, matB.Restitution)
}

func ComputeStaticFriction(matA, matB Material) float64 {
	// geometric mean
	return math.Sqrt(matA.StaticFriction * matB.StaticFriction)
}

func ComputeDynamicFriction(matA, matB Material) float64 {
	return math.Sqrt(matA.DynamicFriction * matB.DynamicFriction)
}
