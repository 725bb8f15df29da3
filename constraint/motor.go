package constraint

import (
	"fmt"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// MotorJointDef drives body B toward a position and angle relative to body A.
type MotorJointDef struct {
	LinearOffset     mgl64.Vec2 `yaml:"linearOffset"`  // position of B minus position of A, in frame A
	AngularOffset    float64    `yaml:"angularOffset"` // angle of B minus angle of A
	MaxForce         float64    `yaml:"maxForce"`
	MaxTorque        float64    `yaml:"maxTorque"`
	CorrectionFactor float64    `yaml:"correctionFactor"` // in [0, 1]
}

// NewMotorJointDef returns a definition with unit force and torque limits.
func NewMotorJointDef() *MotorJointDef {
	return &MotorJointDef{MaxForce: 1, MaxTorque: 1, CorrectionFactor: 0.3}
}

func (d *MotorJointDef) JointType() JointType { return JointMotor }

func (d *MotorJointDef) Validate() error {
	if !geom.IsValid(d.LinearOffset) || !validFinite(d.AngularOffset, d.MaxForce, d.MaxTorque, d.CorrectionFactor) ||
		d.MaxForce < 0 || d.MaxTorque < 0 || d.CorrectionFactor < 0 || d.CorrectionFactor > 1 {
		return fmt.Errorf("motor joint: %w", ErrInvalidDef)
	}
	return nil
}

// MotorJoint controls the relative motion of two bodies with bounded
// force and torque. A typical use is a character moving on the ground.
type MotorJoint struct {
	base

	linearOffset     mgl64.Vec2
	angularOffset    float64
	linearImpulse    mgl64.Vec2
	angularImpulse   float64
	maxForce         float64
	maxTorque        float64
	correctionFactor float64

	// Solver temp
	rA           mgl64.Vec2
	rB           mgl64.Vec2
	linearError  mgl64.Vec2
	angularError float64
	linearMass   mgl64.Mat2
	angularMass  float64
}

// NewMotorJoint builds a motor joint.
func NewMotorJoint(def *MotorJointDef, collideConnected bool) *MotorJoint {
	return &MotorJoint{
		base:             base{collideConnected: collideConnected},
		linearOffset:     def.LinearOffset,
		angularOffset:    def.AngularOffset,
		maxForce:         def.MaxForce,
		maxTorque:        def.MaxTorque,
		correctionFactor: def.CorrectionFactor,
	}
}

func (j *MotorJoint) Type() JointType { return JointMotor }

func (j *MotorJoint) Def() JointDef {
	return &MotorJointDef{
		LinearOffset:     j.linearOffset,
		AngularOffset:    j.angularOffset,
		MaxForce:         j.maxForce,
		MaxTorque:        j.maxTorque,
		CorrectionFactor: j.correctionFactor,
	}
}

func (j *MotorJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.P }
func (j *MotorJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.P }

func (j *MotorJoint) ReactionForce(invDt float64) mgl64.Vec2 { return j.linearImpulse.Mul(invDt) }
func (j *MotorJoint) ReactionTorque(invDt float64) float64   { return invDt * j.angularImpulse }

func (j *MotorJoint) LinearOffset() mgl64.Vec2 { return j.linearOffset }
func (j *MotorJoint) AngularOffset() float64   { return j.angularOffset }

func (j *MotorJoint) SetLinearOffset(offset mgl64.Vec2) {
	if offset != j.linearOffset {
		j.wakeBodies()
		j.linearOffset = offset
	}
}

func (j *MotorJoint) SetAngularOffset(offset float64) {
	if offset != j.angularOffset {
		j.wakeBodies()
		j.angularOffset = offset
	}
}

func (j *MotorJoint) SetMaxForce(force float64)   { j.maxForce = force }
func (j *MotorJoint) SetMaxTorque(torque float64) { j.maxTorque = torque }

func (j *MotorJoint) SetCorrectionFactor(factor float64) {
	j.correctionFactor = geom.Clamp(factor, 0, 1)
}

func (j *MotorJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	// Compute the effective mass matrix.
	j.rA = geom.NewRot(pA.A).Apply(j.linearOffset.Sub(j.bodyA.LocalCenter))
	j.rB = geom.NewRot(pB.A).Apply(j.bodyB.LocalCenter.Mul(-1))

	j.linearMass = j.pointMass(j.rA, j.rB).Inv()
	j.angularMass = invOrZero(iA + iB)

	j.linearError = pB.C.Add(j.rB).Sub(pA.C).Sub(j.rA)
	j.angularError = pB.A - pA.A - j.angularOffset

	if data.Step.WarmStarting {
		// Scale impulses to support a variable time step.
		j.linearImpulse = j.linearImpulse.Mul(data.Step.DtRatio)
		j.angularImpulse *= data.Step.DtRatio

		P := j.linearImpulse
		j.applyLinearAngular(&vA, &vB, P,
			geom.Cross(j.rA, P)+j.angularImpulse,
			geom.Cross(j.rB, P)+j.angularImpulse)
	} else {
		j.linearImpulse = mgl64.Vec2{}
		j.angularImpulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *MotorJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI
	h := data.Step.Dt
	invH := data.Step.InvDt

	// Solve angular friction
	{
		Cdot := vB.W - vA.W + invH*j.correctionFactor*j.angularError
		impulse := -j.angularMass * Cdot

		oldImpulse := j.angularImpulse
		maxImpulse := h * j.maxTorque
		j.angularImpulse = geom.Clamp(j.angularImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.angularImpulse - oldImpulse

		vA.W -= iA * impulse
		vB.W += iB * impulse
	}

	// Solve linear friction
	{
		Cdot := velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA)).Add(j.linearError.Mul(invH * j.correctionFactor))

		impulse := j.linearMass.Mul2x1(Cdot).Mul(-1)
		oldImpulse := j.linearImpulse
		j.linearImpulse = j.linearImpulse.Add(impulse)

		maxImpulse := h * j.maxForce
		if j.linearImpulse.LenSqr() > maxImpulse*maxImpulse {
			j.linearImpulse, _ = geom.Normalize(j.linearImpulse)
			j.linearImpulse = j.linearImpulse.Mul(maxImpulse)
		}

		impulse = j.linearImpulse.Sub(oldImpulse)
		j.applyImpulse(&vA, &vB, j.rA, j.rB, impulse)
	}

	j.storeVelocities(data, vA, vB)
}

func (j *MotorJoint) SolvePositionConstraints(*SolverData) bool { return true }
