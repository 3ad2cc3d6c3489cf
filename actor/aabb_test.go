package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// =============================================================================
// AABB Tests
// =============================================================================

func TestAABBOverlaps(t *testing.T) {
	unit := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}

	tests := []struct {
		name     string
		other    AABB
		expected bool
	}{
		{"separated on X", AABB{Min: mgl64.Vec3{2, 0, 0}, Max: mgl64.Vec3{3, 1, 1}}, false},
		{"separated on Y", AABB{Min: mgl64.Vec3{0, -2, 0}, Max: mgl64.Vec3{1, -1, 1}}, false},
		{"separated on Z", AABB{Min: mgl64.Vec3{0, 0, 2}, Max: mgl64.Vec3{1, 1, 3}}, false},
		{"overlapping", AABB{Min: mgl64.Vec3{0.5, 0.5, 0.5}, Max: mgl64.Vec3{2, 2, 2}}, true},
		{"contained", AABB{Min: mgl64.Vec3{0.25, 0.25, 0.25}, Max: mgl64.Vec3{0.75, 0.75, 0.75}}, true},
		{"face touching", AABB{Min: mgl64.Vec3{1, 0, 0}, Max: mgl64.Vec3{2, 1, 1}}, true},
		{"corner touching", AABB{Min: mgl64.Vec3{1, 1, 1}, Max: mgl64.Vec3{2, 2, 2}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unit.Overlaps(tt.other); got != tt.expected {
				t.Errorf("Overlaps() = %v, want %v", got, tt.expected)
			}
			if got := tt.other.Overlaps(unit); got != tt.expected {
				t.Errorf("Overlaps() not symmetric")
			}
		})
	}
}

func TestAABBContainsPoint(t *testing.T) {
	aabb := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}

	tests := []struct {
		name     string
		point    mgl64.Vec3
		expected bool
	}{
		{"center", mgl64.Vec3{0, 0, 0}, true},
		{"corner", mgl64.Vec3{1, 1, 1}, true},
		{"face", mgl64.Vec3{-1, 0, 0}, true},
		{"outside", mgl64.Vec3{1.01, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aabb.ContainsPoint(tt.point); got != tt.expected {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tt.point, got, tt.expected)
			}
		})
	}
}

func TestAABBExpand(t *testing.T) {
	aabb := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 2, 3}}.Expand(0.5)

	if aabb.Min != (mgl64.Vec3{-0.5, -0.5, -0.5}) || aabb.Max != (mgl64.Vec3{1.5, 2.5, 3.5}) {
		t.Errorf("Expand() = %v", aabb)
	}
}

func TestAABBTransformed(t *testing.T) {
	local := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{2, 1, 1}}

	t.Run("translation", func(t *testing.T) {
		transform := MustRigidTransform(mgl64.Vec3{10, 20, 30}, mgl64.QuatIdent(), mgl64.Vec3{1, 0.5, 0.5})
		world := local.Transformed(transform)

		if !vecApprox(world.Min, mgl64.Vec3{9, 19.5, 29.5}, 1e-12) || !vecApprox(world.Max, mgl64.Vec3{11, 20.5, 30.5}, 1e-12) {
			t.Errorf("Transformed() = %v", world)
		}
	})

	t.Run("quarter turn swaps X and Z extents", func(t *testing.T) {
		transform := MustRigidTransform(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}), mgl64.Vec3{1, 0.5, 0.5})
		world := local.Transformed(transform)
		size := world.Max.Sub(world.Min)

		if !vecApprox(size, mgl64.Vec3{1, 1, 2}, 1e-9) {
			t.Errorf("rotated size = %v, want [1 1 2]", size)
		}
	})
}
