package actor

import (
	"fmt"

	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"
)

// Record holds what a save format needs to rebuild a ship's pose and motion exactly
type Record struct {
	Position        [3]float64 `msgpack:"pos"`
	Rotation        [4]float64 `msgpack:"rot"` // w, x, y, z
	CenterOfMass    [3]float64 `msgpack:"com"`
	Velocity        [3]float64 `msgpack:"vel"`
	AngularVelocity [3]float64 `msgpack:"avel"`
}

// NewRecord captures a transform with the given velocities
func NewRecord(transform RigidTransform, velocity, angularVelocity mgl64.Vec3) Record {
	q := transform.Rotation()
	return Record{
		Position:        transform.Position(),
		Rotation:        [4]float64{q.W, q.V.X(), q.V.Y(), q.V.Z()},
		CenterOfMass:    transform.CenterOfMass(),
		Velocity:        velocity,
		AngularVelocity: angularVelocity,
	}
}

// Record captures the last published transform and the velocities published with it.
// Safe from any goroutine, including while a scheduler steps the ship.
func (p *PhysicsProcessor) Record() Record {
	current, motion := p.transforms.State()
	return NewRecord(current, motion.Linear, motion.Angular)
}

// Transform rebuilds the RigidTransform saved in the record
func (r Record) Transform() (RigidTransform, error) {
	rotation := mgl64.Quat{W: r.Rotation[0], V: mgl64.Vec3{r.Rotation[1], r.Rotation[2], r.Rotation[3]}}
	return NewRigidTransform(r.Position, rotation, r.CenterOfMass)
}

func MarshalRecord(r Record) ([]byte, error) {
	data, err := msgpack.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal record: %w", err)
	}
	return data, nil
}

func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("msgpack unmarshal record: %w", err)
	}
	return r, nil
}

// Restore creates a processor for shape at the pose and velocities of the record.
// When the shape center of mass moved since the save, the blocks keep their saved world pose.
func (r Record) Restore(shape *VoxelShape, material constraint.Material) (*PhysicsProcessor, error) {
	saved, err := r.Transform()
	if err != nil {
		return nil, err
	}
	if shape == nil || shape.Len() == 0 {
		return nil, ErrEmptyShape
	}

	position := saved.Position()
	if shape.CenterOfMass() != saved.CenterOfMass() {
		position = saved.TransformPosition(shape.CenterOfMass(), SubspaceToGlobal)
	}

	p, err := NewPhysicsProcessor(shape, position, saved.Rotation(), material)
	if err != nil {
		return nil, err
	}
	p.SetVelocity(r.Velocity, r.AngularVelocity)
	return p, nil
}
