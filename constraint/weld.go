package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// WeldJointDef glues two bodies together. A positive Stiffness softens the
// angular part.
type WeldJointDef struct {
	LocalAnchorA   mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB   mgl64.Vec2 `yaml:"localAnchorB"`
	ReferenceAngle float64    `yaml:"referenceAngle"`
	Stiffness      float64    `yaml:"stiffness"` // rotational stiffness in N*m
	Damping        float64    `yaml:"damping"`   // rotational damping in N*m*s
}

func (d *WeldJointDef) JointType() JointType { return JointWeld }

func (d *WeldJointDef) Validate() error {
	if !validFinite(d.ReferenceAngle, d.Stiffness, d.Damping) || d.Stiffness < 0 || d.Damping < 0 {
		return fmt.Errorf("weld joint: %w", ErrInvalidDef)
	}
	return nil
}

// WeldJoint removes all relative motion.
type WeldJoint struct {
	base

	stiffness float64
	damping   float64
	bias      float64

	localAnchorA   mgl64.Vec2
	localAnchorB   mgl64.Vec2
	referenceAngle float64
	gamma          float64
	impulse        mgl64.Vec3

	// Solver temp
	rA   mgl64.Vec2
	rB   mgl64.Vec2
	mass mgl64.Mat3
}

// NewWeldJoint builds a weld joint.
func NewWeldJoint(def *WeldJointDef, collideConnected bool) *WeldJoint {
	return &WeldJoint{
		base:           base{collideConnected: collideConnected},
		localAnchorA:   def.LocalAnchorA,
		localAnchorB:   def.LocalAnchorB,
		referenceAngle: def.ReferenceAngle,
		stiffness:      def.Stiffness,
		damping:        def.Damping,
	}
}

func (j *WeldJoint) Type() JointType { return JointWeld }

func (j *WeldJoint) Def() JointDef {
	return &WeldJointDef{
		LocalAnchorA:   j.localAnchorA,
		LocalAnchorB:   j.localAnchorB,
		ReferenceAngle: j.referenceAngle,
		Stiffness:      j.stiffness,
		Damping:        j.damping,
	}
}

func (j *WeldJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *WeldJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *WeldJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.impulse.Vec2().Mul(invDt)
}

func (j *WeldJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse[2]
}

func (j *WeldJoint) ReferenceAngle() float64        { return j.referenceAngle }
func (j *WeldJoint) SetStiffness(stiffness float64) { j.stiffness = stiffness }
func (j *WeldJoint) SetDamping(damping float64)     { j.damping = damping }

// blockMass returns the 3x3 effective mass matrix of the point and angle rows.
func (j *WeldJoint) blockMass(rA, rB mgl64.Vec2) mgl64.Mat3 {
	mA, mB := j.bodyA.InvMass, j.bodyB.InvMass
	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	// J = [-I -r1_skew I r2_skew]
	//     [ 0       -1 0       1]
	// r_skew = [-ry; rx]
	k11 := mA + mB + rA[1]*rA[1]*iA + rB[1]*rB[1]*iB
	k12 := -rA[1]*rA[0]*iA - rB[1]*rB[0]*iB
	k13 := -rA[1]*iA - rB[1]*iB
	k22 := mA + mB + rA[0]*rA[0]*iA + rB[0]*rB[0]*iB
	k23 := rA[0]*iA + rB[0]*iB
	k33 := iA + iB

	return mgl64.Mat3{
		k11, k12, k13,
		k12, k22, k23,
		k13, k23, k33,
	}
}

// applyBlock applies the linear part P and the angular part L of an impulse.
func (j *WeldJoint) applyBlock(vA, vB *Velocity, rA, rB, P mgl64.Vec2, L float64) {
	j.applyLinearAngular(vA, vB, P, geom.Cross(rA, P)+L, geom.Cross(rB, P)+L)
}

func (j *WeldJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	j.rA, j.rB = j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	K := j.blockMass(j.rA, j.rB)

	switch {
	case j.stiffness > 0:
		j.mass = geom.Inverse22(K)

		invM := iA + iB
		C := pB.A - pA.A - j.referenceAngle

		var biasFactor float64
		j.gamma, biasFactor = softness(j.stiffness, j.damping, data.Step.Dt)
		j.bias = C * biasFactor

		invM += j.gamma
		j.mass[8] = invOrZero(invM)
	case K[8] == 0:
		j.mass = geom.Inverse22(K)
		j.gamma = 0
		j.bias = 0
	default:
		j.mass = geom.SymInverse33(K)
		j.gamma = 0
		j.bias = 0
	}

	if data.Step.WarmStarting {
		// Scale impulses to support a variable time step.
		j.impulse = j.impulse.Mul(data.Step.DtRatio)
		j.applyBlock(&vA, &vB, j.rA, j.rB, j.impulse.Vec2(), j.impulse[2])
	} else {
		j.impulse = mgl64.Vec3{}
	}

	j.storeVelocities(data, vA, vB)
}

func (j *WeldJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	if j.stiffness > 0 {
		Cdot2 := vB.W - vA.W

		impulse2 := -j.mass[8] * (Cdot2 + j.bias + j.gamma*j.impulse[2])
		j.impulse[2] += impulse2

		vA.W -= iA * impulse2
		vB.W += iB * impulse2

		Cdot1 := velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA))

		impulse1 := geom.Upper22(j.mass).Mul2x1(Cdot1).Mul(-1)
		j.impulse[0] += impulse1[0]
		j.impulse[1] += impulse1[1]

		j.applyImpulse(&vA, &vB, j.rA, j.rB, impulse1)
	} else {
		Cdot1 := velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA))
		Cdot2 := vB.W - vA.W
		Cdot := Cdot1.Vec3(Cdot2)

		impulse := j.mass.Mul3x1(Cdot).Mul(-1)
		j.impulse = j.impulse.Add(impulse)

		j.applyBlock(&vA, &vB, j.rA, j.rB, impulse.Vec2(), impulse[2])
	}

	j.storeVelocities(data, vA, vB)
}

func (j *WeldJoint) SolvePositionConstraints(data *SolverData) bool {
	pA, pB := j.positions(data)

	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	K := j.blockMass(rA, rB)

	var positionError, angularError float64

	if j.stiffness > 0 {
		C1 := pB.C.Add(rB).Sub(pA.C).Sub(rA)

		positionError = C1.Len()
		angularError = 0

		P := geom.Solve22(K, C1).Mul(-1)
		j.applyCorrection(&pA, &pB, rA, rB, P)
	} else {
		C1 := pB.C.Add(rB).Sub(pA.C).Sub(rA)
		C2 := pB.A - pA.A - j.referenceAngle

		positionError = C1.Len()
		angularError = math.Abs(C2)

		var impulse mgl64.Vec3
		if K[8] > 0 {
			impulse = geom.Solve33(K, C1.Vec3(C2)).Mul(-1)
		} else {
			impulse2 := geom.Solve22(K, C1).Mul(-1)
			impulse = impulse2.Vec3(0)
		}

		P := impulse.Vec2()
		L := impulse[2]

		pA.C = pA.C.Sub(P.Mul(j.bodyA.InvMass))
		pA.A -= j.bodyA.InvI * (geom.Cross(rA, P) + L)
		pB.C = pB.C.Add(P.Mul(j.bodyB.InvMass))
		pB.A += j.bodyB.InvI * (geom.Cross(rB, P) + L)
	}

	j.storePositions(data, pA, pB)

	return positionError <= geom.LinearSlop && angularError <= geom.AngularSlop
}
