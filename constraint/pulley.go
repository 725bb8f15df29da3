package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// PulleyJointDef connects two bodies to two fixed ground points with a rope
// over a pulley: lengthA + Ratio * lengthB stays constant.
type PulleyJointDef struct {
	GroundAnchorA mgl64.Vec2 `yaml:"groundAnchorA"`
	GroundAnchorB mgl64.Vec2 `yaml:"groundAnchorB"`
	LocalAnchorA  mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB  mgl64.Vec2 `yaml:"localAnchorB"`
	LengthA       float64    `yaml:"lengthA"`
	LengthB       float64    `yaml:"lengthB"`
	Ratio         float64    `yaml:"ratio"`
}

func (d *PulleyJointDef) JointType() JointType { return JointPulley }

func (d *PulleyJointDef) Validate() error {
	if !validFinite(d.LengthA, d.LengthB, d.Ratio) || d.Ratio <= geom.Epsilon || d.LengthA < 0 || d.LengthB < 0 {
		return fmt.Errorf("pulley joint: %w", ErrInvalidDef)
	}
	return nil
}

// PulleyJoint is an ideal pulley.
type PulleyJoint struct {
	base

	groundAnchorA mgl64.Vec2
	groundAnchorB mgl64.Vec2
	lengthA       float64
	lengthB       float64

	localAnchorA mgl64.Vec2
	localAnchorB mgl64.Vec2
	constant     float64
	ratio        float64
	impulse      float64

	// Solver temp
	uA   mgl64.Vec2
	uB   mgl64.Vec2
	rA   mgl64.Vec2
	rB   mgl64.Vec2
	mass float64
}

// NewPulleyJoint builds a pulley joint.
func NewPulleyJoint(def *PulleyJointDef, collideConnected bool) *PulleyJoint {
	return &PulleyJoint{
		base:          base{collideConnected: collideConnected},
		groundAnchorA: def.GroundAnchorA,
		groundAnchorB: def.GroundAnchorB,
		localAnchorA:  def.LocalAnchorA,
		localAnchorB:  def.LocalAnchorB,
		lengthA:       def.LengthA,
		lengthB:       def.LengthB,
		ratio:         def.Ratio,
		constant:      def.LengthA + def.Ratio*def.LengthB,
	}
}

func (j *PulleyJoint) Type() JointType { return JointPulley }

func (j *PulleyJoint) Def() JointDef {
	return &PulleyJointDef{
		GroundAnchorA: j.groundAnchorA,
		GroundAnchorB: j.groundAnchorB,
		LocalAnchorA:  j.localAnchorA,
		LocalAnchorB:  j.localAnchorB,
		LengthA:       j.lengthA,
		LengthB:       j.lengthB,
		Ratio:         j.ratio,
	}
}

func (j *PulleyJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *PulleyJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *PulleyJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.uB.Mul(invDt * j.impulse)
}

func (j *PulleyJoint) ReactionTorque(float64) float64 { return 0 }

func (j *PulleyJoint) GroundAnchorA() mgl64.Vec2 { return j.groundAnchorA }
func (j *PulleyJoint) GroundAnchorB() mgl64.Vec2 { return j.groundAnchorB }
func (j *PulleyJoint) Ratio() float64            { return j.ratio }

func (j *PulleyJoint) ShiftOrigin(newOrigin mgl64.Vec2) {
	j.groundAnchorA = j.groundAnchorA.Sub(newOrigin)
	j.groundAnchorB = j.groundAnchorB.Sub(newOrigin)
}

// ropeAxes returns the unit rope directions and lengths on both sides.
// A side shorter than ten linear slops gets a zero axis.
func (j *PulleyJoint) ropeAxes(pA, pB Position, rA, rB mgl64.Vec2) (uA, uB mgl64.Vec2, lengthA, lengthB float64) {
	// Get the pulley axes.
	uA = pA.C.Add(rA).Sub(j.groundAnchorA)
	uB = pB.C.Add(rB).Sub(j.groundAnchorB)

	lengthA = uA.Len()
	lengthB = uB.Len()

	if lengthA > 10*geom.LinearSlop {
		uA = uA.Mul(1.0 / lengthA)
	} else {
		uA = mgl64.Vec2{}
	}

	if lengthB > 10*geom.LinearSlop {
		uB = uB.Mul(1.0 / lengthB)
	} else {
		uB = mgl64.Vec2{}
	}
	return uA, uB, lengthA, lengthB
}

func (j *PulleyJoint) effectiveMass(rA, rB, uA, uB mgl64.Vec2) float64 {
	// Compute effective mass.
	ruA := geom.Cross(rA, uA)
	ruB := geom.Cross(rB, uB)

	mA := j.bodyA.InvMass + j.bodyA.InvI*ruA*ruA
	mB := j.bodyB.InvMass + j.bodyB.InvI*ruB*ruB

	return invOrZero(mA + j.ratio*j.ratio*mB)
}

// applyRope pulls both bodies along their rope axes by impulse.
func (j *PulleyJoint) applyRope(vA, vB *Velocity, rA, rB, uA, uB mgl64.Vec2, impulse float64) {
	PA := uA.Mul(-impulse)
	PB := uB.Mul(-j.ratio * impulse)
	vA.V = vA.V.Add(PA.Mul(j.bodyA.InvMass))
	vA.W += j.bodyA.InvI * geom.Cross(rA, PA)
	vB.V = vB.V.Add(PB.Mul(j.bodyB.InvMass))
	vB.W += j.bodyB.InvI * geom.Cross(rB, PB)
}

func (j *PulleyJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	j.rA, j.rB = j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	j.uA, j.uB, _, _ = j.ropeAxes(pA, pB, j.rA, j.rB)
	j.mass = j.effectiveMass(j.rA, j.rB, j.uA, j.uB)

	if data.Step.WarmStarting {
		// Scale impulses to support variable time steps.
		j.impulse *= data.Step.DtRatio
		j.applyRope(&vA, &vB, j.rA, j.rB, j.uA, j.uB, j.impulse)
	} else {
		j.impulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *PulleyJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	vpA := velocityAt(vA, j.rA)
	vpB := velocityAt(vB, j.rB)

	Cdot := -j.uA.Dot(vpA) - j.ratio*j.uB.Dot(vpB)
	impulse := -j.mass * Cdot
	j.impulse += impulse

	j.applyRope(&vA, &vB, j.rA, j.rB, j.uA, j.uB, impulse)

	j.storeVelocities(data, vA, vB)
}

func (j *PulleyJoint) SolvePositionConstraints(data *SolverData) bool {
	pA, pB := j.positions(data)

	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	uA, uB, lengthA, lengthB := j.ropeAxes(pA, pB, rA, rB)
	mass := j.effectiveMass(rA, rB, uA, uB)

	C := j.constant - lengthA - j.ratio*lengthB
	linearError := math.Abs(C)

	impulse := -mass * C

	PA := uA.Mul(-impulse)
	PB := uB.Mul(-j.ratio * impulse)

	pA.C = pA.C.Add(PA.Mul(j.bodyA.InvMass))
	pA.A += j.bodyA.InvI * geom.Cross(rA, PA)
	pB.C = pB.C.Add(PB.Mul(j.bodyB.InvMass))
	pB.A += j.bodyB.InvI * geom.Cross(rB, PB)

	j.storePositions(data, pA, pB)

	return linearError < geom.LinearSlop
}
