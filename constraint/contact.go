package constraint

import (
	"github.com/akmonengine/feather2d/collide"
	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactInput is the solver view of one touching contact.
// Manifold impulses are read for warm starting and written back by StoreImpulses.
type ContactInput struct {
	Manifold     *collide.Manifold
	Friction     float64
	Restitution  float64
	TangentSpeed float64
	RadiusA      float64
	RadiusB      float64
	BodyA        BodyRef
	BodyB        BodyRef
}

// ContactImpulse reports the impulses applied at each manifold point.
type ContactImpulse struct {
	NormalImpulses  [geom.MaxManifoldPoints]float64
	TangentImpulses [geom.MaxManifoldPoints]float64
	Count           int
}

type velocityConstraintPoint struct {
	rA             mgl64.Vec2
	rB             mgl64.Vec2
	normalImpulse  float64
	tangentImpulse float64
	normalMass     float64
	tangentMass    float64
	velocityBias   float64
}

type contactVelocityConstraint struct {
	points       [geom.MaxManifoldPoints]velocityConstraintPoint
	normal       mgl64.Vec2
	normalMass   mgl64.Mat2
	k            mgl64.Mat2
	indexA       int
	indexB       int
	invMassA     float64
	invMassB     float64
	invIA        float64
	invIB        float64
	friction     float64
	restitution  float64
	tangentSpeed float64
	pointCount   int
}

type contactPositionConstraint struct {
	localPoints  [geom.MaxManifoldPoints]mgl64.Vec2
	localNormal  mgl64.Vec2
	localPoint   mgl64.Vec2
	indexA       int
	indexB       int
	invMassA     float64
	invMassB     float64
	localCenterA mgl64.Vec2
	localCenterB mgl64.Vec2
	invIA        float64
	invIB        float64
	kind         collide.ManifoldType
	radiusA      float64
	radiusB      float64
	pointCount   int
}

// ContactSolver solves the contacts of one island. Its buffers are reused
// across Reset calls.
type ContactSolver struct {
	step                TimeStep
	positions           []Position
	velocities          []Velocity
	contacts            []ContactInput
	positionConstraints []contactPositionConstraint
	velocityConstraints []contactVelocityConstraint
}

// Reset prepares the solver for a new set of contacts. The positions and
// velocities slices are shared with the island.
func (s *ContactSolver) Reset(step TimeStep, contacts []ContactInput, positions []Position, velocities []Velocity) {
	s.step = step
	s.positions = positions
	s.velocities = velocities
	s.contacts = contacts

	s.positionConstraints = s.positionConstraints[:0]
	s.velocityConstraints = s.velocityConstraints[:0]

	for i := range contacts {
		c := &contacts[i]
		m := c.Manifold

		vc := contactVelocityConstraint{
			friction:     c.Friction,
			restitution:  c.Restitution,
			tangentSpeed: c.TangentSpeed,
			indexA:       c.BodyA.Index,
			indexB:       c.BodyB.Index,
			invMassA:     c.BodyA.InvMass,
			invMassB:     c.BodyB.InvMass,
			invIA:        c.BodyA.InvI,
			invIB:        c.BodyB.InvI,
			pointCount:   m.PointCount,
		}

		pc := contactPositionConstraint{
			indexA:       c.BodyA.Index,
			indexB:       c.BodyB.Index,
			invMassA:     c.BodyA.InvMass,
			invMassB:     c.BodyB.InvMass,
			localCenterA: c.BodyA.LocalCenter,
			localCenterB: c.BodyB.LocalCenter,
			invIA:        c.BodyA.InvI,
			invIB:        c.BodyB.InvI,
			localNormal:  m.LocalNormal,
			localPoint:   m.LocalPoint,
			pointCount:   m.PointCount,
			radiusA:      c.RadiusA,
			radiusB:      c.RadiusB,
			kind:         m.Type,
		}

		for j := 0; j < m.PointCount; j++ {
			cp := &m.Points[j]
			vcp := &vc.points[j]

			if step.WarmStarting {
				vcp.normalImpulse = step.DtRatio * cp.NormalImpulse
				vcp.tangentImpulse = step.DtRatio * cp.TangentImpulse
			}

			pc.localPoints[j] = cp.LocalPoint
		}

		s.velocityConstraints = append(s.velocityConstraints, vc)
		s.positionConstraints = append(s.positionConstraints, pc)
	}
}

// InitializeVelocityConstraints computes anchors, effective masses and
// restitution biases from the current positions.
func (s *ContactSolver) InitializeVelocityConstraints() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]
		pc := &s.positionConstraints[i]
		manifold := s.contacts[i].Manifold

		mA, mB := vc.invMassA, vc.invMassB
		iA, iB := vc.invIA, vc.invIB

		cA, aA := s.positions[vc.indexA].C, s.positions[vc.indexA].A
		vA, wA := s.velocities[vc.indexA].V, s.velocities[vc.indexA].W
		cB, aB := s.positions[vc.indexB].C, s.positions[vc.indexB].A
		vB, wB := s.velocities[vc.indexB].V, s.velocities[vc.indexB].W

		qA := geom.NewRot(aA)
		qB := geom.NewRot(aB)
		xfA := geom.Transform{P: cA.Sub(qA.Apply(pc.localCenterA)), Q: qA}
		xfB := geom.Transform{P: cB.Sub(qB.Apply(pc.localCenterB)), Q: qB}

		worldManifold := manifold.WorldManifold(xfA, pc.radiusA, xfB, pc.radiusB)

		vc.normal = worldManifold.Normal
		tangent := geom.CrossVS(vc.normal, 1.0)

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			vcp.rA = worldManifold.Points[j].Sub(cA)
			vcp.rB = worldManifold.Points[j].Sub(cB)

			rnA := geom.Cross(vcp.rA, vc.normal)
			rnB := geom.Cross(vcp.rB, vc.normal)
			kNormal := mA + mB + iA*rnA*rnA + iB*rnB*rnB
			vcp.normalMass = invOrZero(kNormal)

			rtA := geom.Cross(vcp.rA, tangent)
			rtB := geom.Cross(vcp.rB, tangent)
			kTangent := mA + mB + iA*rtA*rtA + iB*rtB*rtB
			vcp.tangentMass = invOrZero(kTangent)

			// Setup a velocity bias for restitution.
			vcp.velocityBias = 0
			dv := vB.Add(geom.CrossSV(wB, vcp.rB)).Sub(vA).Sub(geom.CrossSV(wA, vcp.rA))
			if vRel := vc.normal.Dot(dv); vRel < -VelocityThreshold {
				vcp.velocityBias = -vc.restitution * vRel
			}
		}

		// If we have two points, then prepare the block solver.
		if vc.pointCount == 2 {
			vcp1 := &vc.points[0]
			vcp2 := &vc.points[1]

			rn1A := geom.Cross(vcp1.rA, vc.normal)
			rn1B := geom.Cross(vcp1.rB, vc.normal)
			rn2A := geom.Cross(vcp2.rA, vc.normal)
			rn2B := geom.Cross(vcp2.rB, vc.normal)

			k11 := mA + mB + iA*rn1A*rn1A + iB*rn1B*rn1B
			k22 := mA + mB + iA*rn2A*rn2A + iB*rn2B*rn2B
			k12 := mA + mB + iA*rn1A*rn2A + iB*rn1B*rn2B

			// Ensure a reasonable condition number.
			if k11*k11 < maxConditionNumber*(k11*k22-k12*k12) {
				// K is safe to invert.
				vc.k = mgl64.Mat2{k11, k12, k12, k22}
				vc.normalMass = vc.k.Inv()
			} else {
				// The constraints are redundant, just use one.
				vc.pointCount = 1
			}
		}
	}
}

// WarmStart applies the impulses carried over from the previous step.
func (s *ContactSolver) WarmStart() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]

		vA, wA := s.velocities[vc.indexA].V, s.velocities[vc.indexA].W
		vB, wB := s.velocities[vc.indexB].V, s.velocities[vc.indexB].W

		normal := vc.normal
		tangent := geom.CrossVS(normal, 1.0)

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]
			P := normal.Mul(vcp.normalImpulse).Add(tangent.Mul(vcp.tangentImpulse))
			wA -= vc.invIA * geom.Cross(vcp.rA, P)
			vA = vA.Sub(P.Mul(vc.invMassA))
			wB += vc.invIB * geom.Cross(vcp.rB, P)
			vB = vB.Add(P.Mul(vc.invMassB))
		}

		s.velocities[vc.indexA] = Velocity{V: vA, W: wA}
		s.velocities[vc.indexB] = Velocity{V: vB, W: wB}
	}
}

// SolveVelocityConstraints runs one iteration over all contacts: friction
// first, then the normal constraints.
func (s *ContactSolver) SolveVelocityConstraints() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]

		mA, iA := vc.invMassA, vc.invIA
		mB, iB := vc.invMassB, vc.invIB

		vA, wA := s.velocities[vc.indexA].V, s.velocities[vc.indexA].W
		vB, wB := s.velocities[vc.indexB].V, s.velocities[vc.indexB].W

		normal := vc.normal
		tangent := geom.CrossVS(normal, 1.0)
		friction := vc.friction

		// ========== Tangent constraints ==========
		// Solved first because non-penetration is more important than friction.
		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			// Relative velocity at contact
			dv := vB.Add(geom.CrossSV(wB, vcp.rB)).Sub(vA).Sub(geom.CrossSV(wA, vcp.rA))

			// Compute tangent force
			vt := dv.Dot(tangent) - vc.tangentSpeed
			lambda := vcp.tangentMass * (-vt)

			// Clamp the accumulated force
			maxFriction := friction * vcp.normalImpulse
			newImpulse := geom.Clamp(vcp.tangentImpulse+lambda, -maxFriction, maxFriction)
			lambda = newImpulse - vcp.tangentImpulse
			vcp.tangentImpulse = newImpulse

			// Apply contact impulse
			P := tangent.Mul(lambda)

			vA = vA.Sub(P.Mul(mA))
			wA -= iA * geom.Cross(vcp.rA, P)

			vB = vB.Add(P.Mul(mB))
			wB += iB * geom.Cross(vcp.rB, P)
		}

		// ========== Normal constraints ==========
		if vc.pointCount == 1 {
			vcp := &vc.points[0]

			dv := vB.Add(geom.CrossSV(wB, vcp.rB)).Sub(vA).Sub(geom.CrossSV(wA, vcp.rA))

			// Compute normal impulse
			vn := dv.Dot(normal)
			lambda := -vcp.normalMass * (vn - vcp.velocityBias)

			// Clamp the accumulated impulse
			newImpulse := max(vcp.normalImpulse+lambda, 0)
			lambda = newImpulse - vcp.normalImpulse
			vcp.normalImpulse = newImpulse

			// Apply contact impulse
			P := normal.Mul(lambda)
			vA = vA.Sub(P.Mul(mA))
			wA -= iA * geom.Cross(vcp.rA, P)

			vB = vB.Add(P.Mul(mB))
			wB += iB * geom.Cross(vcp.rB, P)
		} else if vc.pointCount == 2 {
			vA, wA, vB, wB = s.solveBlock(vc, vA, wA, vB, wB)
		}

		s.velocities[vc.indexA] = Velocity{V: vA, W: wA}
		s.velocities[vc.indexB] = Velocity{V: vB, W: wB}
	}
}

// solveBlock solves the two normal constraints together as a 2D linear
// complementarity problem:
//
//	vn = A * x + b, vn >= 0, x >= 0 and vn_i * x_i = 0 with i = 1..2
//
// using the incremental form x = a + d, where a is the accumulated impulse.
// The four cases (both active, only x1, only x2, none) are enumerated and the
// first one that satisfies the complementarity conditions is applied.
func (s *ContactSolver) solveBlock(vc *contactVelocityConstraint, vA mgl64.Vec2, wA float64, vB mgl64.Vec2, wB float64) (mgl64.Vec2, float64, mgl64.Vec2, float64) {
	mA, iA := vc.invMassA, vc.invIA
	mB, iB := vc.invMassB, vc.invIB
	normal := vc.normal

	cp1 := &vc.points[0]
	cp2 := &vc.points[1]

	a := mgl64.Vec2{cp1.normalImpulse, cp2.normalImpulse}

	// Relative velocity at contact
	dv1 := vB.Add(geom.CrossSV(wB, cp1.rB)).Sub(vA).Sub(geom.CrossSV(wA, cp1.rA))
	dv2 := vB.Add(geom.CrossSV(wB, cp2.rB)).Sub(vA).Sub(geom.CrossSV(wA, cp2.rA))

	// Compute normal velocity
	vn1 := dv1.Dot(normal)
	vn2 := dv2.Dot(normal)

	// Compute b'
	b := mgl64.Vec2{vn1 - cp1.velocityBias, vn2 - cp2.velocityBias}
	b = b.Sub(vc.k.Mul2x1(a))

	apply := func(x mgl64.Vec2) {
		// Get the incremental impulse
		d := x.Sub(a)

		// Apply incremental impulse
		P1 := normal.Mul(d[0])
		P2 := normal.Mul(d[1])
		vA = vA.Sub(P1.Add(P2).Mul(mA))
		wA -= iA * (geom.Cross(cp1.rA, P1) + geom.Cross(cp2.rA, P2))

		vB = vB.Add(P1.Add(P2).Mul(mB))
		wB += iB * (geom.Cross(cp1.rB, P1) + geom.Cross(cp2.rB, P2))

		// Accumulate
		cp1.normalImpulse = x[0]
		cp2.normalImpulse = x[1]
	}

	// Case 1: vn = 0
	//   0 = A * x + b'  =>  x = - inv(A) * b'
	x := vc.normalMass.Mul2x1(b).Mul(-1)
	if x[0] >= 0 && x[1] >= 0 {
		apply(x)
		return vA, wA, vB, wB
	}

	// Case 2: vn1 = 0 and x2 = 0
	//   0 = a11 * x1 + a12 * 0 + b1'
	// vn2 = a21 * x1 + a22 * 0 + b2'
	x = mgl64.Vec2{-cp1.normalMass * b[0], 0}
	vn2 = vc.k.At(1, 0)*x[0] + b[1]
	if x[0] >= 0 && vn2 >= 0 {
		apply(x)
		return vA, wA, vB, wB
	}

	// Case 3: vn2 = 0 and x1 = 0
	// vn1 = a11 * 0 + a12 * x2 + b1'
	//   0 = a21 * 0 + a22 * x2 + b2'
	x = mgl64.Vec2{0, -cp2.normalMass * b[1]}
	vn1 = vc.k.At(0, 1)*x[1] + b[0]
	if x[1] >= 0 && vn1 >= 0 {
		apply(x)
		return vA, wA, vB, wB
	}

	// Case 4: x1 = 0 and x2 = 0
	x = mgl64.Vec2{}
	vn1 = b[0]
	vn2 = b[1]
	if vn1 >= 0 && vn2 >= 0 {
		apply(x)
		return vA, wA, vB, wB
	}

	// No solution, give up. This is hit sometimes, but it doesn't seem to matter.
	return vA, wA, vB, wB
}

// StoreImpulses writes the accumulated impulses back into the manifolds.
func (s *ContactSolver) StoreImpulses() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]
		manifold := s.contacts[i].Manifold

		for j := 0; j < vc.pointCount; j++ {
			manifold.Points[j].NormalImpulse = vc.points[j].normalImpulse
			manifold.Points[j].TangentImpulse = vc.points[j].tangentImpulse
		}
	}
}

// Impulse returns the impulses applied to contact i during the last solve.
func (s *ContactSolver) Impulse(i int) ContactImpulse {
	vc := &s.velocityConstraints[i]
	impulse := ContactImpulse{Count: vc.pointCount}
	for j := 0; j < vc.pointCount; j++ {
		impulse.NormalImpulses[j] = vc.points[j].normalImpulse
		impulse.TangentImpulses[j] = vc.points[j].tangentImpulse
	}
	return impulse
}

// Count returns the number of contacts in the solver.
func (s *ContactSolver) Count() int {
	return len(s.velocityConstraints)
}

// positionSolverManifold evaluates one manifold point at the current positions.
func positionSolverManifold(pc *contactPositionConstraint, xfA, xfB geom.Transform, index int) (normal, point mgl64.Vec2, separation float64) {
	switch pc.kind {
	case collide.ManifoldCircles:
		pointA := xfA.Apply(pc.localPoint)
		pointB := xfB.Apply(pc.localPoints[0])
		normal, _ = geom.Normalize(pointB.Sub(pointA))
		point = pointA.Add(pointB).Mul(0.5)
		separation = pointB.Sub(pointA).Dot(normal) - pc.radiusA - pc.radiusB

	case collide.ManifoldFaceA:
		normal = xfA.Q.Apply(pc.localNormal)
		planePoint := xfA.Apply(pc.localPoint)

		clipPoint := xfB.Apply(pc.localPoints[index])
		separation = clipPoint.Sub(planePoint).Dot(normal) - pc.radiusA - pc.radiusB
		point = clipPoint

	case collide.ManifoldFaceB:
		normal = xfB.Q.Apply(pc.localNormal)
		planePoint := xfB.Apply(pc.localPoint)

		clipPoint := xfA.Apply(pc.localPoints[index])
		separation = clipPoint.Sub(planePoint).Dot(normal) - pc.radiusA - pc.radiusB
		point = clipPoint

		// Ensure normal points from A to B
		normal = normal.Mul(-1)
	}
	return normal, point, separation
}

// SolvePositionConstraints runs one position iteration with Baumgarte
// stabilization. It reports whether the largest penetration is within
// tolerance.
func (s *ContactSolver) SolvePositionConstraints() bool {
	return s.solvePositions(Baumgarte, -1, -1)
}

// SolveTOIPositionConstraints is the sub-step variant: only the bodies at
// toiIndexA and toiIndexB move, every other body acts as static.
func (s *ContactSolver) SolveTOIPositionConstraints(toiIndexA, toiIndexB int) bool {
	return s.solvePositions(TOIBaumgarte, toiIndexA, toiIndexB)
}

func (s *ContactSolver) solvePositions(baumgarte float64, toiIndexA, toiIndexB int) bool {
	minSeparation := 0.0
	toi := toiIndexA >= 0

	for i := range s.positionConstraints {
		pc := &s.positionConstraints[i]

		indexA, indexB := pc.indexA, pc.indexB
		localCenterA, localCenterB := pc.localCenterA, pc.localCenterB

		mA, iA := pc.invMassA, pc.invIA
		mB, iB := pc.invMassB, pc.invIB
		if toi {
			mA, iA = 0, 0
			if indexA == toiIndexA || indexA == toiIndexB {
				mA, iA = pc.invMassA, pc.invIA
			}
			mB, iB = 0, 0
			if indexB == toiIndexA || indexB == toiIndexB {
				mB, iB = pc.invMassB, pc.invIB
			}
		}

		cA, aA := s.positions[indexA].C, s.positions[indexA].A
		cB, aB := s.positions[indexB].C, s.positions[indexB].A

		// Solve normal constraints
		for j := 0; j < pc.pointCount; j++ {
			qA := geom.NewRot(aA)
			qB := geom.NewRot(aB)
			xfA := geom.Transform{P: cA.Sub(qA.Apply(localCenterA)), Q: qA}
			xfB := geom.Transform{P: cB.Sub(qB.Apply(localCenterB)), Q: qB}

			normal, point, separation := positionSolverManifold(pc, xfA, xfB, j)

			rA := point.Sub(cA)
			rB := point.Sub(cB)

			// Track max constraint error.
			minSeparation = min(minSeparation, separation)

			// Prevent large corrections and allow slop.
			C := geom.Clamp(baumgarte*(separation+geom.LinearSlop), -MaxLinearCorrection, 0)

			// Compute the effective mass.
			rnA := geom.Cross(rA, normal)
			rnB := geom.Cross(rB, normal)
			K := mA + mB + iA*rnA*rnA + iB*rnB*rnB

			// Compute normal impulse
			impulse := 0.0
			if K > 0 {
				impulse = -C / K
			}

			P := normal.Mul(impulse)

			cA = cA.Sub(P.Mul(mA))
			aA -= iA * geom.Cross(rA, P)

			cB = cB.Add(P.Mul(mB))
			aB += iB * geom.Cross(rB, P)
		}

		s.positions[indexA] = Position{C: cA, A: aA}
		s.positions[indexB] = Position{C: cB, A: aB}
	}

	// We can't expect minSeparation >= -LinearSlop because we don't
	// push the separation above -LinearSlop.
	if toi {
		return minSeparation >= -1.5*geom.LinearSlop
	}
	return minSeparation >= -3.0*geom.LinearSlop
}
