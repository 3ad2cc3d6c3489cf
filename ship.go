package hull

import (
	"github.com/akmonengine/hull/actor"
	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Ship is the handle of a voxel body shared between the host and the scheduler
type Ship struct {
	ID        uuid.UUID
	Name      string
	Processor *actor.PhysicsProcessor
}

// NewShip creates a ship whose center of mass is placed at position
func NewShip(name string, shape *actor.VoxelShape, position mgl64.Vec3, rotation mgl64.Quat, material constraint.Material) (*Ship, error) {
	processor, err := actor.NewPhysicsProcessor(shape, position, rotation, material)
	if err != nil {
		return nil, err
	}

	return &Ship{
		ID:        uuid.New(),
		Name:      name,
		Processor: processor,
	}, nil
}

// Transform is the last published transform, safe from any goroutine
func (s *Ship) Transform() actor.RigidTransform {
	return s.Processor.Transforms().Current()
}

// Interpolated blends the last two published transforms for rendering
func (s *Ship) Interpolated(alpha float64) actor.RigidTransform {
	return s.Processor.Transforms().Interpolate(alpha)
}

func (s *Ship) String() string {
	if s.Name != "" {
		return s.Name + "(" + s.ID.String() + ")"
	}
	return s.ID.String()
}
