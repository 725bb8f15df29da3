package constraint

import (
	"fmt"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// FrictionJointDef applies top-down friction: relative translation and
// rotation are resisted up to MaxForce and MaxTorque.
type FrictionJointDef struct {
	LocalAnchorA mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB mgl64.Vec2 `yaml:"localAnchorB"`
	MaxForce     float64    `yaml:"maxForce"`
	MaxTorque    float64    `yaml:"maxTorque"`
}

func (d *FrictionJointDef) JointType() JointType { return JointFriction }

func (d *FrictionJointDef) Validate() error {
	if !validFinite(d.MaxForce, d.MaxTorque) || d.MaxForce < 0 || d.MaxTorque < 0 {
		return fmt.Errorf("friction joint: %w", ErrInvalidDef)
	}
	return nil
}

// FrictionJoint resists relative motion with bounded force and torque.
type FrictionJoint struct {
	base

	localAnchorA mgl64.Vec2
	localAnchorB mgl64.Vec2

	linearImpulse  mgl64.Vec2
	angularImpulse float64
	maxForce       float64
	maxTorque      float64

	// Solver temp
	rA          mgl64.Vec2
	rB          mgl64.Vec2
	linearMass  mgl64.Mat2
	angularMass float64
}

// NewFrictionJoint builds a friction joint.
func NewFrictionJoint(def *FrictionJointDef, collideConnected bool) *FrictionJoint {
	return &FrictionJoint{
		base:         base{collideConnected: collideConnected},
		localAnchorA: def.LocalAnchorA,
		localAnchorB: def.LocalAnchorB,
		maxForce:     def.MaxForce,
		maxTorque:    def.MaxTorque,
	}
}

func (j *FrictionJoint) Type() JointType { return JointFriction }

func (j *FrictionJoint) Def() JointDef {
	return &FrictionJointDef{
		LocalAnchorA: j.localAnchorA,
		LocalAnchorB: j.localAnchorB,
		MaxForce:     j.maxForce,
		MaxTorque:    j.maxTorque,
	}
}

func (j *FrictionJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *FrictionJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *FrictionJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.linearImpulse.Mul(invDt)
}

func (j *FrictionJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.angularImpulse
}

func (j *FrictionJoint) SetMaxForce(force float64)   { j.maxForce = force }
func (j *FrictionJoint) SetMaxTorque(torque float64) { j.maxTorque = torque }

func (j *FrictionJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	// Compute the effective mass matrix.
	j.rA, j.rB = j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	j.linearMass = j.pointMass(j.rA, j.rB).Inv()
	j.angularMass = invOrZero(iA + iB)

	if data.Step.WarmStarting {
		// Scale impulses to support a variable time step.
		j.linearImpulse = j.linearImpulse.Mul(data.Step.DtRatio)
		j.angularImpulse *= data.Step.DtRatio

		P := j.linearImpulse
		j.applyLinearAngular(&vA, &vB, P, geom.Cross(j.rA, P)+j.angularImpulse, geom.Cross(j.rB, P)+j.angularImpulse)
	} else {
		j.linearImpulse = mgl64.Vec2{}
		j.angularImpulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *FrictionJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI
	h := data.Step.Dt

	// Solve angular friction
	{
		Cdot := vB.W - vA.W
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
		Cdot := velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA))

		impulse := j.linearMass.Mul2x1(Cdot).Mul(-1)
		oldImpulse := j.linearImpulse
		j.linearImpulse = j.linearImpulse.Add(impulse)

		maxImpulse := h * j.maxForce
		if j.linearImpulse.LenSqr() > maxImpulse*maxImpulse {
			n, _ := geom.Normalize(j.linearImpulse)
			j.linearImpulse = n.Mul(maxImpulse)
		}

		impulse = j.linearImpulse.Sub(oldImpulse)
		j.applyImpulse(&vA, &vB, j.rA, j.rB, impulse)
	}

	j.storeVelocities(data, vA, vB)
}

func (j *FrictionJoint) SolvePositionConstraints(*SolverData) bool {
	return true
}
