package actor

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrNonFinite is returned when a transform is built from NaN or infinite components
var ErrNonFinite = errors.New("non-finite transform component")

// TransformType selects the direction of a RigidTransform
type TransformType int

const (
	// SubspaceToGlobal converts ship-local (subspace) coordinates into world coordinates
	SubspaceToGlobal TransformType = iota
	// GlobalToSubspace converts world coordinates into ship-local (subspace) coordinates
	GlobalToSubspace
)

func (t TransformType) String() string {
	switch t {
	case SubspaceToGlobal:
		return "subspace-to-global"
	case GlobalToSubspace:
		return "global-to-subspace"
	default:
		return fmt.Sprintf("TransformType(%d)", int(t))
	}
}

// RigidTransform is the immutable pose of a ship: where its center of mass sits in the world,
// how it is oriented, and where that center of mass lies in block coordinates.
// Every field is unexported and no method mutates the receiver, so a RigidTransform can be
// shared between goroutines without synchronization. The zero value is not a valid transform,
// use NewRigidTransform or IdentityTransform.
type RigidTransform struct {
	toWorld mgl64.Mat4
	toLocal mgl64.Mat4

	position     mgl64.Vec3
	rotation     mgl64.Quat
	centerOfMass mgl64.Vec3
}

// NewRigidTransform builds toWorld = Translate(position) * Rotate(rotation) * Translate(-centerOfMass)
// and its inverse. The rotation is normalized first.
func NewRigidTransform(position mgl64.Vec3, rotation mgl64.Quat, centerOfMass mgl64.Vec3) (RigidTransform, error) {
	if !finiteVec(position) {
		return RigidTransform{}, fmt.Errorf("position %v: %w", position, ErrNonFinite)
	}
	if !finiteVec(rotation.V) || !isFinite(rotation.W) {
		return RigidTransform{}, fmt.Errorf("rotation %v: %w", rotation, ErrNonFinite)
	}
	if !finiteVec(centerOfMass) {
		return RigidTransform{}, fmt.Errorf("center of mass %v: %w", centerOfMass, ErrNonFinite)
	}

	rotation = rotation.Normalize()
	rotationMatrix := rotation.Mat4()

	toWorld := mgl64.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(rotationMatrix).
		Mul4(mgl64.Translate3D(-centerOfMass.X(), -centerOfMass.Y(), -centerOfMass.Z()))

	// Rigid inverse: translate back to the center of mass frame, rotate by the transpose, then translate by -position
	toLocal := mgl64.Translate3D(centerOfMass.X(), centerOfMass.Y(), centerOfMass.Z()).
		Mul4(rotationMatrix.Transpose()).
		Mul4(mgl64.Translate3D(-position.X(), -position.Y(), -position.Z()))

	return RigidTransform{
		toWorld:      toWorld,
		toLocal:      toLocal,
		position:     position,
		rotation:     rotation,
		centerOfMass: centerOfMass,
	}, nil
}

// MustRigidTransform is like NewRigidTransform but panics on invalid input.
// Reserved for constants and tests.
func MustRigidTransform(position mgl64.Vec3, rotation mgl64.Quat, centerOfMass mgl64.Vec3) RigidTransform {
	t, err := NewRigidTransform(position, rotation, centerOfMass)
	if err != nil {
		panic(err)
	}
	return t
}

// IdentityTransform is the transform at the origin, without rotation nor center offset
func IdentityTransform() RigidTransform {
	return RigidTransform{
		toWorld:  mgl64.Ident4(),
		toLocal:  mgl64.Ident4(),
		rotation: mgl64.QuatIdent(),
	}
}

// Position is the world position of the center of mass
func (t RigidTransform) Position() mgl64.Vec3 {
	return t.position
}

func (t RigidTransform) Rotation() mgl64.Quat {
	return t.rotation
}

// CenterOfMass is expressed in block (subspace) coordinates
func (t RigidTransform) CenterOfMass() mgl64.Vec3 {
	return t.centerOfMass
}

// Matrix returns a copy of the 4x4 matrix for the given direction
func (t RigidTransform) Matrix(transformType TransformType) mgl64.Mat4 {
	if transformType == GlobalToSubspace {
		return t.toLocal
	}
	return t.toWorld
}

// RotationQuat returns the rotation applied by the given direction
func (t RigidTransform) RotationQuat(transformType TransformType) mgl64.Quat {
	if transformType == GlobalToSubspace {
		return t.rotation.Conjugate()
	}
	return t.rotation
}

// TransformPosition applies the full affine transform to a point
func (t RigidTransform) TransformPosition(point mgl64.Vec3, transformType TransformType) mgl64.Vec3 {
	m := t.Matrix(transformType)
	return m.Mul4x1(point.Vec4(1)).Vec3()
}

// TransformDirection only applies the rotation, used for velocities and normals
func (t RigidTransform) TransformDirection(direction mgl64.Vec3, transformType TransformType) mgl64.Vec3 {
	return mgl64.TransformNormal(direction, t.Matrix(transformType))
}

// TransformBlock maps the block containing pos through the transform, using the block center
func (t RigidTransform) TransformBlock(pos BlockPos, transformType TransformType) BlockPos {
	center := t.TransformPosition(pos.Center(), transformType)
	return BlockPos{
		X: int(math.Floor(center.X())),
		Y: int(math.Floor(center.Y())),
		Z: int(math.Floor(center.Z())),
	}
}

// ApproxEqual compares both matrices element-wise, within an absolute 1e-9
func (t RigidTransform) ApproxEqual(other RigidTransform) bool {
	return matApprox(t.toWorld, other.toWorld) && matApprox(t.toLocal, other.toLocal)
}

func matApprox(a, b mgl64.Mat4) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func (t RigidTransform) String() string {
	return fmt.Sprintf("RigidTransform{position: %v, rotation: %v, center: %v}", t.position, t.rotation, t.centerOfMass)
}

// Compose returns the matrix moving a world point attached to the ship at prev to where
// the same point is at current. Cached world geometry (bounding boxes, contact caches) can be
// updated with it instead of going back through subspace coordinates.
func Compose(prev, current RigidTransform) mgl64.Mat4 {
	return current.toWorld.Mul4(prev.toLocal)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return isFinite(v[0]) && isFinite(v[1]) && isFinite(v[2])
}
