package constraint

import (
	"fmt"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// MouseJointDef drags a point of body B toward a world target with a soft
// constraint. Body A is only used as an anchor for the joint graph.
type MouseJointDef struct {
	Target    mgl64.Vec2 `yaml:"target"`
	MaxForce  float64    `yaml:"maxForce"`
	Stiffness float64    `yaml:"stiffness"` // N/m
	Damping   float64    `yaml:"damping"`   // N*s/m
}

func (d *MouseJointDef) JointType() JointType { return JointMouse }

func (d *MouseJointDef) Validate() error {
	if !geom.IsValid(d.Target) || !validFinite(d.MaxForce, d.Stiffness, d.Damping) ||
		d.MaxForce < 0 || d.Stiffness < 0 || d.Damping < 0 {
		return fmt.Errorf("mouse joint: %w", ErrInvalidDef)
	}
	return nil
}

// MouseJoint pulls a body point toward a target with a bounded force.
type MouseJoint struct {
	base

	localAnchorB mgl64.Vec2
	targetA      mgl64.Vec2
	stiffness    float64
	damping      float64
	maxForce     float64

	impulse mgl64.Vec2
	beta    float64
	gamma   float64

	// Solver temp
	rB   mgl64.Vec2
	mass mgl64.Mat2
	c    mgl64.Vec2
}

// NewMouseJoint builds a mouse joint. xfB is the current transform of body B:
// the grabbed point is the target expressed in body B.
func NewMouseJoint(def *MouseJointDef, xfB geom.Transform, collideConnected bool) *MouseJoint {
	return &MouseJoint{
		base:         base{collideConnected: collideConnected},
		localAnchorB: xfB.ApplyInv(def.Target),
		targetA:      def.Target,
		stiffness:    def.Stiffness,
		damping:      def.Damping,
		maxForce:     def.MaxForce,
	}
}

func (j *MouseJoint) Type() JointType { return JointMouse }

func (j *MouseJoint) Def() JointDef {
	return &MouseJointDef{
		Target:    j.targetA,
		MaxForce:  j.maxForce,
		Stiffness: j.stiffness,
		Damping:   j.damping,
	}
}

func (j *MouseJoint) AnchorA(geom.Transform) mgl64.Vec2     { return j.targetA }
func (j *MouseJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *MouseJoint) ReactionForce(invDt float64) mgl64.Vec2 { return j.impulse.Mul(invDt) }
func (j *MouseJoint) ReactionTorque(float64) float64         { return 0 }

func (j *MouseJoint) Target() mgl64.Vec2 { return j.targetA }

// SetTarget moves the target and wakes the dragged body.
func (j *MouseJoint) SetTarget(target mgl64.Vec2) {
	if target != j.targetA {
		j.wakeBodies()
		j.targetA = target
	}
}

func (j *MouseJoint) SetMaxForce(force float64)      { j.maxForce = force }
func (j *MouseJoint) SetStiffness(stiffness float64) { j.stiffness = stiffness }
func (j *MouseJoint) SetDamping(damping float64)     { j.damping = damping }

func (j *MouseJoint) ShiftOrigin(newOrigin mgl64.Vec2) {
	j.targetA = j.targetA.Sub(newOrigin)
}

func (j *MouseJoint) InitVelocityConstraints(data *SolverData) {
	pB := data.Positions[j.bodyB.Index]
	vB := data.Velocities[j.bodyB.Index]

	mB, iB := j.bodyB.InvMass, j.bodyB.InvI

	j.gamma, j.beta = softness(j.stiffness, j.damping, data.Step.Dt)

	// Compute the effective mass matrix.
	j.rB = geom.NewRot(pB.A).Apply(j.localAnchorB.Sub(j.bodyB.LocalCenter))

	// K    = [(1/m1 + 1/m2) * eye(2) - skew(r1) * invI1 * skew(r1) - skew(r2) * invI2 * skew(r2)]
	//      = [1/m1+1/m2     0    ] + invI1 * [r1.y*r1.y -r1.x*r1.y] + invI2 * [r1.y*r1.y -r1.x*r1.y]
	//        [    0     1/m1+1/m2]           [-r1.x*r1.y r1.x*r1.x]           [-r1.x*r1.y r1.x*r1.x]
	rB := j.rB
	k11 := mB + iB*rB[1]*rB[1] + j.gamma
	k12 := -iB * rB[0] * rB[1]
	k22 := mB + iB*rB[0]*rB[0] + j.gamma
	j.mass = mgl64.Mat2{k11, k12, k12, k22}.Inv()

	j.c = pB.C.Add(rB).Sub(j.targetA).Mul(j.beta)

	// Cheat with some damping
	vB.W *= 0.98

	if data.Step.WarmStarting {
		j.impulse = j.impulse.Mul(data.Step.DtRatio)
		vB.V = vB.V.Add(j.impulse.Mul(mB))
		vB.W += iB * geom.Cross(rB, j.impulse)
	} else {
		j.impulse = mgl64.Vec2{}
	}

	data.Velocities[j.bodyB.Index] = vB
}

func (j *MouseJoint) SolveVelocityConstraints(data *SolverData) {
	vB := data.Velocities[j.bodyB.Index]

	// Cdot = v + cross(w, r)
	Cdot := velocityAt(vB, j.rB)
	impulse := j.mass.Mul2x1(Cdot.Add(j.c).Add(j.impulse.Mul(j.gamma))).Mul(-1)

	oldImpulse := j.impulse
	j.impulse = j.impulse.Add(impulse)
	maxImpulse := data.Step.Dt * j.maxForce
	if j.impulse.LenSqr() > maxImpulse*maxImpulse {
		j.impulse = j.impulse.Mul(maxImpulse / j.impulse.Len())
	}
	impulse = j.impulse.Sub(oldImpulse)

	vB.V = vB.V.Add(impulse.Mul(j.bodyB.InvMass))
	vB.W += j.bodyB.InvI * geom.Cross(j.rB, impulse)

	data.Velocities[j.bodyB.Index] = vB
}

func (j *MouseJoint) SolvePositionConstraints(*SolverData) bool { return true }
