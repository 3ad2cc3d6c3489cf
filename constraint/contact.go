package constraint

import (
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// PenetrationSlop is the depth left uncorrected, so resting contacts do not jitter
	PenetrationSlop = 0.01
	// CorrectionPercent of the remaining depth removed by one Solve
	CorrectionPercent = 0.8
)

// ContactPoint is one touching point between an owner and its partner.
// Normal is a unit vector in world space pointing from the partner towards the owner.
type ContactPoint struct {
	Position    mgl64.Vec3
	Normal      mgl64.Vec3
	Penetration float64
}

// ContactSet is the ordered output of one collision test
type ContactSet struct {
	// Partner is the other body, Static for the terrain
	Partner Body
	Points  []ContactPoint
}

func (s ContactSet) Empty() bool {
	return len(s.Points) == 0
}

// Deepest returns the point with the largest penetration, the first one on ties
func (s ContactSet) Deepest() (ContactPoint, bool) {
	if len(s.Points) == 0 {
		return ContactPoint{}, false
	}
	deepest := s.Points[0]
	for _, point := range s.Points[1:] {
		if point.Penetration > deepest.Penetration {
			deepest = point
		}
	}
	return deepest, true
}

// Solve applies the contact points one after the other: a normal impulse with restitution,
// Coulomb friction, and finally one position correction taken from the deepest point.
// Points are applied in slice order so identical inputs always give identical outputs.
func Solve(owner, partner Body, points []ContactPoint) {
	if len(points) == 0 {
		return
	}

	invMassA := owner.InverseMass()
	invMassB := partner.InverseMass()
	if invMassA+invMassB <= 0 {
		return
	}

	IA_inv := owner.InverseInertiaWorld()
	IB_inv := partner.InverseInertiaWorld()

	restitution := ComputeRestitution(owner.Material(), partner.Material())
	staticFriction := ComputeStaticFriction(owner.Material(), partner.Material())
	dynamicFriction := ComputeDynamicFriction(owner.Material(), partner.Material())

	for _, point := range points {
		normal := point.Normal
		rA := point.Position.Sub(owner.CenterOfMassWorld())
		rB := point.Position.Sub(partner.CenterOfMassWorld())

		relativeVel := relativeVelocity(owner, partner, rA, rB)
		normalVel := relativeVel.Dot(normal)

		// Already separating
		if normalVel >= 0 {
			continue
		}

		effectiveMassNormal := effectiveMass(invMassA, invMassB, IA_inv, IB_inv, rA, rB, normal)
		if effectiveMassNormal < 1e-10 {
			continue
		}

		lambdaNormal := -(1 + restitution) * normalVel / effectiveMassNormal
		// Never pull the bodies together
		if lambdaNormal <= 0 {
			continue
		}

		normalImpulse := normal.Mul(lambdaNormal)
		owner.ApplyImpulse(normalImpulse, point.Position)
		partner.ApplyImpulse(normalImpulse.Mul(-1), point.Position)

		// ========== TANGENTIAL IMPULSE (friction) ==========
		relativeVel = relativeVelocity(owner, partner, rA, rB)
		tangentVel := relativeVel.Sub(normal.Mul(relativeVel.Dot(normal)))
		tangentSpeed := tangentVel.Len()
		if tangentSpeed <= 1e-6 {
			continue
		}

		tangentDir := tangentVel.Mul(1.0 / tangentSpeed)
		effectiveMassTangent := effectiveMass(invMassA, invMassB, IA_inv, IB_inv, rA, rB, tangentDir)
		if effectiveMassTangent < 1e-10 {
			continue
		}

		// Coulomb's law: |F_friction| ≤ μ * |F_normal|
		lambdaTangent := tangentSpeed / effectiveMassTangent
		var frictionImpulse mgl64.Vec3
		if lambdaTangent <= staticFriction*lambdaNormal {
			frictionImpulse = tangentDir.Mul(-lambdaTangent)
		} else {
			frictionImpulse = tangentDir.Mul(-dynamicFriction * lambdaNormal)
		}

		owner.ApplyImpulse(frictionImpulse, point.Position)
		partner.ApplyImpulse(frictionImpulse.Mul(-1), point.Position)
	}

	// ========== POSITION CORRECTION ==========
	deepest, _ := ContactSet{Points: points}.Deepest()
	depth := deepest.Penetration - PenetrationSlop
	if depth <= 0 {
		return
	}

	correction := deepest.Normal.Mul(depth * CorrectionPercent / (invMassA + invMassB))
	owner.Translate(correction.Mul(invMassA))
	partner.Translate(correction.Mul(-invMassB))
}

func relativeVelocity(owner, partner Body, rA, rB mgl64.Vec3) mgl64.Vec3 {
	vA := owner.LinearVelocity().Add(owner.AngularVelocity().Cross(rA))
	vB := partner.LinearVelocity().Add(partner.AngularVelocity().Cross(rB))
	return vA.Sub(vB)
}

func effectiveMass(invMassA, invMassB float64, IA_inv, IB_inv mgl64.Mat3, rA, rB, direction mgl64.Vec3) float64 {
	rA_cross_d := rA.Cross(direction)
	rB_cross_d := rB.Cross(direction)

	angularInertiaA := IA_inv.Mul3x1(rA_cross_d).Dot(rA_cross_d)
	angularInertiaB := IB_inv.Mul3x1(rB_cross_d).Dot(rB_cross_d)

	return invMassA + invMassB + angularInertiaA + angularInertiaB
}
