package actor

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformManager_Advance(t *testing.T) {
	initial := MustRigidTransform(mgl64.Vec3{0, 10, 0}, mgl64.QuatIdent(), mgl64.Vec3{0.5, 0.5, 0.5})
	tm := NewTransformManager(initial)

	previous, current := tm.Snapshot()
	if previous != initial || current != initial {
		t.Fatal("a new manager should start with previous == current == initial")
	}

	if err := tm.Advance(mgl64.Vec3{0, 9, 0}, mgl64.QuatIdent(), mgl64.Vec3{0.5, 0.5, 0.5}); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	previous, current = tm.Snapshot()
	if previous != initial {
		t.Errorf("previous = %v, want the initial transform", previous)
	}
	if current.Position() != (mgl64.Vec3{0, 9, 0}) {
		t.Errorf("current position = %v", current.Position())
	}
	if tm.Current() != current || tm.Previous() != previous {
		t.Error("Current/Previous disagree with Snapshot")
	}
}

func TestTransformManager_Motion(t *testing.T) {
	tm := NewTransformManager(IdentityTransform())
	if tm.Motion() != (Motion{}) {
		t.Errorf("initial Motion() = %v, want zero", tm.Motion())
	}

	falling := Motion{Linear: mgl64.Vec3{0, -2, 0}, Angular: mgl64.Vec3{0, 0, 1}}
	if err := tm.AdvanceWithMotion(mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent(), mgl64.Vec3{}, falling); err != nil {
		t.Fatal(err)
	}
	current, motion := tm.State()
	if current.Position() != (mgl64.Vec3{0, 5, 0}) || motion != falling {
		t.Errorf("State() = %v %v", current, motion)
	}

	// Advance keeps the last published motion
	if err := tm.Advance(mgl64.Vec3{0, 4, 0}, mgl64.QuatIdent(), mgl64.Vec3{}); err != nil {
		t.Fatal(err)
	}
	if tm.Motion() != falling {
		t.Errorf("Motion() after Advance = %v, want %v", tm.Motion(), falling)
	}

	// A rejected transform publishes no motion either
	if err := tm.AdvanceWithMotion(mgl64.Vec3{math.NaN(), 0, 0}, mgl64.QuatIdent(), mgl64.Vec3{}, Motion{}); err == nil {
		t.Fatal("expected an error for a NaN position")
	}
	if tm.Motion() != falling {
		t.Errorf("Motion() after a rejected advance = %v", tm.Motion())
	}

	previous, current := tm.Snapshot()
	tm.SetMotion(Motion{})
	if p, c := tm.Snapshot(); p != previous || c != current || tm.Motion() != (Motion{}) {
		t.Error("SetMotion must only replace the velocities")
	}
}

func TestTransformManager_AdvanceRejectsNonFinite(t *testing.T) {
	initial := IdentityTransform()
	tm := NewTransformManager(initial)

	err := tm.Advance(mgl64.Vec3{math.NaN(), 0, 0}, mgl64.QuatIdent(), mgl64.Vec3{})
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("error = %v, want ErrNonFinite", err)
	}

	previous, current := tm.Snapshot()
	if previous != initial || current != initial {
		t.Error("a failed Advance must not publish anything")
	}
}

func TestTransformManager_Interpolate(t *testing.T) {
	center := mgl64.Vec3{1, 1, 1}
	tm := NewTransformManager(MustRigidTransform(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent(), center))
	if err := tm.Advance(mgl64.Vec3{10, 0, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}), center); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		alpha    float64
		position mgl64.Vec3
		angle    float64
	}{
		{"start", 0, mgl64.Vec3{0, 0, 0}, 0},
		{"middle", 0.5, mgl64.Vec3{5, 0, 0}, math.Pi / 4},
		{"end", 1, mgl64.Vec3{10, 0, 0}, math.Pi / 2},
		{"clamped below", -3, mgl64.Vec3{0, 0, 0}, 0},
		{"clamped above", 7, mgl64.Vec3{10, 0, 0}, math.Pi / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blended := tm.Interpolate(tt.alpha)
			if !vecApprox(blended.Position(), tt.position, 1e-9) {
				t.Errorf("position = %v, want %v", blended.Position(), tt.position)
			}
			want := mgl64.QuatRotate(tt.angle, mgl64.Vec3{0, 1, 0})
			if math.Abs(math.Abs(blended.Rotation().Dot(want))-1) > 1e-9 {
				t.Errorf("rotation = %v, want %v", blended.Rotation(), want)
			}
		})
	}

	// Interpolate is a pure read
	previous, current := tm.Snapshot()
	tm.Interpolate(0.3)
	if p, c := tm.Snapshot(); p != previous || c != current {
		t.Error("Interpolate changed the stored transforms")
	}
}

func TestTransformManager_ConcurrentReads(t *testing.T) {
	center := mgl64.Vec3{0.5, 0.5, 0.5}
	tm := NewTransformManager(MustRigidTransform(mgl64.Vec3{}, mgl64.QuatIdent(), center))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Every published transform is (x, x, x) with a matching inverse
				current := tm.Current()
				p := current.Position()
				if p.X() != p.Y() || p.Y() != p.Z() {
					t.Errorf("torn position %v", p)
					return
				}
				back := current.TransformPosition(current.TransformPosition(center, SubspaceToGlobal), GlobalToSubspace)
				if !vecApprox(back, center, 1e-9) {
					t.Errorf("inconsistent matrices for %v", p)
					return
				}
			}
		}()
	}

	for i := 1; i <= 2000; i++ {
		v := float64(i)
		if err := tm.Advance(mgl64.Vec3{v, v, v}, mgl64.QuatIdent(), center); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}
