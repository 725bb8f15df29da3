package constraint

import (
	"fmt"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// RopeJointDef bounds the distance between two anchors from above.
type RopeJointDef struct {
	LocalAnchorA mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB mgl64.Vec2 `yaml:"localAnchorB"`
	MaxLength    float64    `yaml:"maxLength"`
}

// NewRopeJointDef returns a definition with anchors two units apart.
func NewRopeJointDef() *RopeJointDef {
	return &RopeJointDef{
		LocalAnchorA: mgl64.Vec2{-1, 0},
		LocalAnchorB: mgl64.Vec2{1, 0},
	}
}

func (d *RopeJointDef) JointType() JointType { return JointRope }

func (d *RopeJointDef) Validate() error {
	if !validFinite(d.MaxLength) || d.MaxLength < geom.LinearSlop {
		return fmt.Errorf("rope joint: %w", ErrInvalidDef)
	}
	return nil
}

// RopeJoint enforces a maximum distance between two anchors. It only pushes
// the bodies together, never apart.
type RopeJoint struct {
	base

	localAnchorA mgl64.Vec2
	localAnchorB mgl64.Vec2
	maxLength    float64
	length       float64
	impulse      float64
	atUpper      bool

	// Solver temp
	u    mgl64.Vec2
	rA   mgl64.Vec2
	rB   mgl64.Vec2
	mass float64
}

// NewRopeJoint builds a rope joint.
func NewRopeJoint(def *RopeJointDef, collideConnected bool) *RopeJoint {
	return &RopeJoint{
		base:         base{collideConnected: collideConnected},
		localAnchorA: def.LocalAnchorA,
		localAnchorB: def.LocalAnchorB,
		maxLength:    def.MaxLength,
	}
}

func (j *RopeJoint) Type() JointType { return JointRope }

func (j *RopeJoint) Def() JointDef {
	return &RopeJointDef{
		LocalAnchorA: j.localAnchorA,
		LocalAnchorB: j.localAnchorB,
		MaxLength:    j.maxLength,
	}
}

func (j *RopeJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *RopeJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *RopeJoint) ReactionForce(invDt float64) mgl64.Vec2 { return j.u.Mul(invDt * j.impulse) }
func (j *RopeJoint) ReactionTorque(float64) float64         { return 0 }

func (j *RopeJoint) MaxLength() float64          { return j.maxLength }
func (j *RopeJoint) SetMaxLength(length float64) { j.maxLength = length }
func (j *RopeJoint) Length() float64             { return j.length }
func (j *RopeJoint) AtUpperLimit() bool          { return j.atUpper }

func (j *RopeJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	mA, mB := j.bodyA.InvMass, j.bodyB.InvMass
	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	j.rA, j.rB = j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	j.u = pB.C.Add(j.rB).Sub(pA.C).Sub(j.rA)

	j.length = j.u.Len()
	j.atUpper = j.length-j.maxLength > 0

	if j.length <= geom.LinearSlop {
		j.u = mgl64.Vec2{}
		j.mass = 0
		j.impulse = 0
		return
	}
	j.u = j.u.Mul(1.0 / j.length)

	// Compute effective mass.
	crA := geom.Cross(j.rA, j.u)
	crB := geom.Cross(j.rB, j.u)
	j.mass = invOrZero(mA + iA*crA*crA + mB + iB*crB*crB)

	if data.Step.WarmStarting {
		// Scale the impulse to support a variable time step.
		j.impulse *= data.Step.DtRatio
		j.applyImpulse(&vA, &vB, j.rA, j.rB, j.u.Mul(j.impulse))
	} else {
		j.impulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *RopeJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	// Cdot = dot(u, v + cross(w, r))
	C := j.length - j.maxLength
	Cdot := j.u.Dot(velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA)))

	// Predictive constraint.
	if C < 0 {
		Cdot += data.Step.InvDt * C
	}

	impulse := -j.mass * Cdot
	oldImpulse := j.impulse
	j.impulse = min(0, j.impulse+impulse)
	impulse = j.impulse - oldImpulse

	j.applyImpulse(&vA, &vB, j.rA, j.rB, j.u.Mul(impulse))
	j.storeVelocities(data, vA, vB)
}

func (j *RopeJoint) SolvePositionConstraints(data *SolverData) bool {
	pA, pB := j.positions(data)

	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	u, length := geom.Normalize(pB.C.Add(rB).Sub(pA.C).Sub(rA))

	C := geom.Clamp(length-j.maxLength, 0, MaxLinearCorrection)

	impulse := -j.mass * C
	j.applyCorrection(&pA, &pB, rA, rB, u.Mul(impulse))
	j.storePositions(data, pA, pB)

	return length-j.maxLength < geom.LinearSlop
}
