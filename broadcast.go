package hull

import (
	"fmt"

	"github.com/akmonengine/hull/actor"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame is the wire form of one published transform
type Frame struct {
	Ship         string     `msgpack:"ship"`
	Tick         uint64     `msgpack:"tick"`
	Position     [3]float64 `msgpack:"pos"`
	Rotation     [4]float64 `msgpack:"rot"` // w, x, y, z
	CenterOfMass [3]float64 `msgpack:"com"`
}

func NewFrame(ship *Ship, tick uint64, transform actor.RigidTransform) Frame {
	q := transform.Rotation()
	return Frame{
		Ship:         ship.ID.String(),
		Tick:         tick,
		Position:     transform.Position(),
		Rotation:     [4]float64{q.W, q.V.X(), q.V.Y(), q.V.Z()},
		CenterOfMass: transform.CenterOfMass(),
	}
}

// Transform rebuilds the published transform on the receiving side
func (f Frame) Transform() (actor.RigidTransform, error) {
	record := actor.Record{Position: f.Position, Rotation: f.Rotation, CenterOfMass: f.CenterOfMass}
	return record.Transform()
}

func EncodeFrame(f Frame) ([]byte, error) {
	data, err := msgpack.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal frame: %w", err)
	}
	return data, nil
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("msgpack unmarshal frame: %w", err)
	}
	return f, nil
}

// FrameObserver encodes every published transform and hands the bytes to Sink.
// Sink runs on the scheduler goroutine and must not block for long.
type FrameObserver struct {
	Sink func(data []byte)
	// OnError is called for frames that cannot be encoded, nil drops them
	OnError func(err error)
}

func (o FrameObserver) Publish(ship *Ship, tick uint64, transform actor.RigidTransform) {
	data, err := EncodeFrame(NewFrame(ship, tick, transform))
	if err != nil {
		if o.OnError != nil {
			o.OnError(err)
		}
		return
	}
	o.Sink(data)
}
