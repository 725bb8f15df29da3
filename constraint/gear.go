package constraint

import (
	"fmt"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrGearJointKind is returned when a gear is built on anything other than
// revolute or prismatic joints.
var ErrGearJointKind = fmt.Errorf("gear joint needs revolute or prismatic joints: %w", ErrInvalidDef)

// GearJointDef couples two revolute or prismatic joints:
// coordinate1 + Ratio * coordinate2 = constant.
// The joints themselves are given to NewGearJoint.
type GearJointDef struct {
	Ratio float64 `yaml:"ratio"`
}

func (d *GearJointDef) JointType() JointType { return JointGear }

func (d *GearJointDef) Validate() error {
	if !validFinite(d.Ratio) || d.Ratio == 0 {
		return fmt.Errorf("gear joint: %w", ErrInvalidDef)
	}
	return nil
}

// gearSide is one of the two driving joints seen from the gear.
// The gear body is the driving joint's body B, the carrier its body A.
type gearSide struct {
	joint          Joint
	kind           JointType
	localAnchorC   mgl64.Vec2 // on the carrier
	localAnchor    mgl64.Vec2 // on the gear body
	referenceAngle float64
	localAxisC     mgl64.Vec2
}

func newGearSide(joint Joint) (gearSide, error) {
	switch j := joint.(type) {
	case *RevoluteJoint:
		return gearSide{
			joint:          j,
			kind:           JointRevolute,
			localAnchorC:   j.localAnchorA,
			localAnchor:    j.localAnchorB,
			referenceAngle: j.referenceAngle,
		}, nil
	case *PrismaticJoint:
		return gearSide{
			joint:          j,
			kind:           JointPrismatic,
			localAnchorC:   j.localAnchorA,
			localAnchor:    j.localAnchorB,
			referenceAngle: j.referenceAngle,
			localAxisC:     j.localXAxisA,
		}, nil
	default:
		return gearSide{}, ErrGearJointKind
	}
}

// coordinate returns the joint angle or translation for the given body
// transforms, xf of the gear body and xfC of the carrier.
func (s *gearSide) coordinate(xf, xfC geom.Transform) float64 {
	if s.kind == JointRevolute {
		return xf.Q.Angle() - xfC.Q.Angle() - s.referenceAngle
	}
	pC := s.localAnchorC
	p := xfC.Q.ApplyInv(xf.Q.Apply(s.localAnchor).Add(xf.P.Sub(xfC.P)))
	return p.Sub(pC).Dot(s.localAxisC)
}

// gearJacobian is the velocity Jacobian of one side and its mass contribution.
type gearJacobian struct {
	jv     mgl64.Vec2
	jw, jc float64 // angular terms for the gear body and the carrier
	mass   float64
}

func (s *gearSide) jacobian(ref, refC BodyRef, p, pC Position, scale float64) gearJacobian {
	if s.kind == JointRevolute {
		return gearJacobian{
			jw:   scale,
			jc:   scale,
			mass: scale * scale * (ref.InvI + refC.InvI),
		}
	}

	u := geom.NewRot(pC.A).Apply(s.localAxisC)
	rC := geom.NewRot(pC.A).Apply(s.localAnchorC.Sub(refC.LocalCenter))
	r := geom.NewRot(p.A).Apply(s.localAnchor.Sub(ref.LocalCenter))

	jac := gearJacobian{
		jv: u.Mul(scale),
		jc: scale * geom.Cross(rC, u),
		jw: scale * geom.Cross(r, u),
	}
	jac.mass = scale*scale*(refC.InvMass+ref.InvMass) + refC.InvI*jac.jc*jac.jc + ref.InvI*jac.jw*jac.jw
	return jac
}

// positionCoordinate is coordinate evaluated on solver positions.
func (s *gearSide) positionCoordinate(ref, refC BodyRef, p, pC Position) float64 {
	if s.kind == JointRevolute {
		return p.A - pC.A - s.referenceAngle
	}
	qC := geom.NewRot(pC.A)
	r := geom.NewRot(p.A).Apply(s.localAnchor.Sub(ref.LocalCenter))
	pCLocal := s.localAnchorC.Sub(refC.LocalCenter)
	pLocal := qC.ApplyInv(r.Add(p.C.Sub(pC.C)))
	return pLocal.Sub(pCLocal).Dot(s.localAxisC)
}

// GearJoint ties the coordinates of two revolute or prismatic joints. Body A
// is the body B of the first joint, body B the body B of the second joint.
// Bodies C and D are the respective carriers (body A of each joint).
// The owner must destroy the gear together with either driving joint.
type GearJoint struct {
	base

	side1 gearSide
	side2 gearSide

	bodyC BodyRef
	bodyD BodyRef

	ratio    float64
	constant float64
	impulse  float64

	// Solver temp
	jacA gearJacobian
	jacB gearJacobian
	mass float64
}

// NewGearJoint builds a gear between joint1 and joint2. xfA, xfB, xfC and xfD are
// the current transforms of body B of joint1, body B of joint2, body A of
// joint1 and body A of joint2.
func NewGearJoint(def *GearJointDef, joint1, joint2 Joint, xfA, xfB, xfC, xfD geom.Transform, collideConnected bool) (*GearJoint, error) {
	side1, err := newGearSide(joint1)
	if err != nil {
		return nil, err
	}
	side2, err := newGearSide(joint2)
	if err != nil {
		return nil, err
	}

	j := &GearJoint{
		base:  base{collideConnected: collideConnected},
		side1: side1,
		side2: side2,
		ratio: def.Ratio,
	}
	j.constant = side1.coordinate(xfA, xfC) + j.ratio*side2.coordinate(xfB, xfD)
	return j, nil
}

func (j *GearJoint) Type() JointType { return JointGear }

func (j *GearJoint) Def() JointDef { return &GearJointDef{Ratio: j.ratio} }

// Joints returns the two driving joints.
func (j *GearJoint) Joints() (Joint, Joint) { return j.side1.joint, j.side2.joint }

// SetCarriers binds the island data of bodies C and D before a solve.
func (j *GearJoint) SetCarriers(c, d BodyRef) { j.bodyC, j.bodyD = c, d }

func (j *GearJoint) Ratio() float64 { return j.ratio }

func (j *GearJoint) SetRatio(ratio float64) {
	if validFinite(ratio) {
		j.ratio = ratio
	}
}

func (j *GearJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.side1.localAnchor) }
func (j *GearJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.side2.localAnchor) }

func (j *GearJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.jacA.jv.Mul(invDt * j.impulse)
}

func (j *GearJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse * j.jacA.jw
}

// apply adds impulse along the gear Jacobian to the four velocities.
func (j *GearJoint) apply(data *SolverData, impulse float64) {
	vA := data.Velocities[j.bodyA.Index]
	vB := data.Velocities[j.bodyB.Index]
	vC := data.Velocities[j.bodyC.Index]
	vD := data.Velocities[j.bodyD.Index]

	vA.V = vA.V.Add(j.jacA.jv.Mul(j.bodyA.InvMass * impulse))
	vA.W += j.bodyA.InvI * impulse * j.jacA.jw
	vB.V = vB.V.Add(j.jacB.jv.Mul(j.bodyB.InvMass * impulse))
	vB.W += j.bodyB.InvI * impulse * j.jacB.jw
	vC.V = vC.V.Sub(j.jacA.jv.Mul(j.bodyC.InvMass * impulse))
	vC.W -= j.bodyC.InvI * impulse * j.jacA.jc
	vD.V = vD.V.Sub(j.jacB.jv.Mul(j.bodyD.InvMass * impulse))
	vD.W -= j.bodyD.InvI * impulse * j.jacB.jc

	data.Velocities[j.bodyA.Index] = vA
	data.Velocities[j.bodyB.Index] = vB
	data.Velocities[j.bodyC.Index] = vC
	data.Velocities[j.bodyD.Index] = vD
}

func (j *GearJoint) InitVelocityConstraints(data *SolverData) {
	pA := data.Positions[j.bodyA.Index]
	pB := data.Positions[j.bodyB.Index]
	pC := data.Positions[j.bodyC.Index]
	pD := data.Positions[j.bodyD.Index]

	j.jacA = j.side1.jacobian(j.bodyA, j.bodyC, pA, pC, 1.0)
	j.jacB = j.side2.jacobian(j.bodyB, j.bodyD, pB, pD, j.ratio)
	j.mass = invOrZero(j.jacA.mass + j.jacB.mass)

	if data.Step.WarmStarting {
		j.apply(data, j.impulse)
	} else {
		j.impulse = 0
	}
}

func (j *GearJoint) SolveVelocityConstraints(data *SolverData) {
	vA := data.Velocities[j.bodyA.Index]
	vB := data.Velocities[j.bodyB.Index]
	vC := data.Velocities[j.bodyC.Index]
	vD := data.Velocities[j.bodyD.Index]

	Cdot := j.jacA.jv.Dot(vA.V.Sub(vC.V)) + j.jacB.jv.Dot(vB.V.Sub(vD.V))
	Cdot += (j.jacA.jw*vA.W - j.jacA.jc*vC.W) + (j.jacB.jw*vB.W - j.jacB.jc*vD.W)

	impulse := -j.mass * Cdot
	j.impulse += impulse

	j.apply(data, impulse)
}

func (j *GearJoint) SolvePositionConstraints(data *SolverData) bool {
	pA := data.Positions[j.bodyA.Index]
	pB := data.Positions[j.bodyB.Index]
	pC := data.Positions[j.bodyC.Index]
	pD := data.Positions[j.bodyD.Index]

	jacA := j.side1.jacobian(j.bodyA, j.bodyC, pA, pC, 1.0)
	jacB := j.side2.jacobian(j.bodyB, j.bodyD, pB, pD, j.ratio)

	coordinateA := j.side1.positionCoordinate(j.bodyA, j.bodyC, pA, pC)
	coordinateB := j.side2.positionCoordinate(j.bodyB, j.bodyD, pB, pD)
	C := coordinateA + j.ratio*coordinateB - j.constant

	mass := jacA.mass + jacB.mass
	impulse := 0.0
	if mass > 0 {
		impulse = -C / mass
	}

	pA.C = pA.C.Add(jacA.jv.Mul(j.bodyA.InvMass * impulse))
	pA.A += j.bodyA.InvI * impulse * jacA.jw
	pB.C = pB.C.Add(jacB.jv.Mul(j.bodyB.InvMass * impulse))
	pB.A += j.bodyB.InvI * impulse * jacB.jw
	pC.C = pC.C.Sub(jacA.jv.Mul(j.bodyC.InvMass * impulse))
	pC.A -= j.bodyC.InvI * impulse * jacA.jc
	pD.C = pD.C.Sub(jacB.jv.Mul(j.bodyD.InvMass * impulse))
	pD.A -= j.bodyD.InvI * impulse * jacB.jc

	data.Positions[j.bodyA.Index] = pA
	data.Positions[j.bodyB.Index] = pB
	data.Positions[j.bodyC.Index] = pC
	data.Positions[j.bodyD.Index] = pD

	// The gear has no position tolerance of its own.
	return true
}
