package constraint

import (
	"errors"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidDef is returned by joint definitions that fail validation.
var ErrInvalidDef = errors.New("invalid joint definition")

// JointType enumerates the joint kinds.
type JointType uint8

const (
	JointUnknown JointType = iota
	JointRevolute
	JointPrismatic
	JointDistance
	JointPulley
	JointMouse
	JointGear
	JointWheel
	JointWeld
	JointFriction
	JointRope
	JointMotor
)

func (t JointType) String() string {
	switch t {
	case JointRevolute:
		return "revolute"
	case JointPrismatic:
		return "prismatic"
	case JointDistance:
		return "distance"
	case JointPulley:
		return "pulley"
	case JointMouse:
		return "mouse"
	case JointGear:
		return "gear"
	case JointWheel:
		return "wheel"
	case JointWeld:
		return "weld"
	case JointFriction:
		return "friction"
	case JointRope:
		return "rope"
	case JointMotor:
		return "motor"
	default:
		return "unknown"
	}
}

// Joint constrains two bodies. The set of implementations is closed.
type Joint interface {
	Type() JointType

	// Bodies returns the references bound by the last SetBodies call.
	Bodies() (BodyRef, BodyRef)
	// SetBodies binds the island data of both bodies before a solve.
	SetBodies(a, b BodyRef)
	// CollideConnected reports whether the two bodies may still collide.
	CollideConnected() bool

	InitVelocityConstraints(data *SolverData)
	SolveVelocityConstraints(data *SolverData)
	// SolvePositionConstraints reports whether the position error is within tolerance.
	SolvePositionConstraints(data *SolverData) bool

	// AnchorA and AnchorB return the anchors in world coordinates.
	AnchorA(xfA geom.Transform) mgl64.Vec2
	AnchorB(xfB geom.Transform) mgl64.Vec2

	// ReactionForce returns the reaction force on body B at the anchor.
	ReactionForce(invDt float64) mgl64.Vec2
	// ReactionTorque returns the reaction torque on body B.
	ReactionTorque(invDt float64) float64

	// ShiftOrigin shifts world-space data held by the joint.
	ShiftOrigin(newOrigin mgl64.Vec2)

	// Def returns a definition that recreates the joint in its current state.
	Def() JointDef

	sealed()
}

// JointDef is implemented by the definitions of every joint kind.
type JointDef interface {
	JointType() JointType
	Validate() error
}

// base holds what every joint has in common.
type base struct {
	bodyA            BodyRef
	bodyB            BodyRef
	collideConnected bool

	// wake is called by setters that change the motion of the bodies.
	wake func()
}

func (b *base) Bodies() (BodyRef, BodyRef) { return b.bodyA, b.bodyB }
func (b *base) SetBodies(a, bb BodyRef)    { b.bodyA, b.bodyB = a, bb }
func (b *base) CollideConnected() bool     { return b.collideConnected }
func (b *base) ShiftOrigin(mgl64.Vec2)     {}
func (b *base) sealed()                    {}

// SetCollideConnected sets whether the jointed bodies may collide.
// The owner must refilter their contacts.
func (b *base) SetCollideConnected(flag bool) { b.collideConnected = flag }

// SetWake installs the callback invoked when a setter needs the bodies awake.
func (b *base) SetWake(wake func()) { b.wake = wake }

func (b *base) wakeBodies() {
	if b.wake != nil {
		b.wake()
	}
}

// LinearStiffness computes spring stiffness and damping from a frequency
// (hertz) and a damping ratio for two bodies of the given masses.
// A static body counts with the mass of the other.
func LinearStiffness(frequencyHertz, dampingRatio, massA, massB float64) (stiffness, damping float64) {
	var mass float64
	switch {
	case massA > 0 && massB > 0:
		mass = massA * massB / (massA + massB)
	case massA > 0:
		mass = massA
	default:
		mass = massB
	}

	omega := 2.0 * math.Pi * frequencyHertz
	stiffness = mass * omega * omega
	damping = 2.0 * mass * dampingRatio * omega
	return stiffness, damping
}

// AngularStiffness is LinearStiffness for rotational inertias.
func AngularStiffness(frequencyHertz, dampingRatio, inertiaA, inertiaB float64) (stiffness, damping float64) {
	return LinearStiffness(frequencyHertz, dampingRatio, inertiaA, inertiaB)
}

// softness converts a stiffness and damping into the soft constraint
// coefficients gamma and bias factor for a time step h.
func softness(stiffness, damping, h float64) (gamma, biasFactor float64) {
	// gamma = 1 / (h * (d + h * k)), the extra factor of h in the
	// denominator is since the lambda is an impulse, not a force.
	gamma = h * (damping + h*stiffness)
	gamma = invOrZero(gamma)
	biasFactor = h * stiffness * gamma
	return gamma, biasFactor
}

func validFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (b *base) velocities(data *SolverData) (Velocity, Velocity) {
	return data.Velocities[b.bodyA.Index], data.Velocities[b.bodyB.Index]
}

func (b *base) storeVelocities(data *SolverData, vA, vB Velocity) {
	data.Velocities[b.bodyA.Index] = vA
	data.Velocities[b.bodyB.Index] = vB
}

func (b *base) positions(data *SolverData) (Position, Position) {
	return data.Positions[b.bodyA.Index], data.Positions[b.bodyB.Index]
}

func (b *base) storePositions(data *SolverData, pA, pB Position) {
	data.Positions[b.bodyA.Index] = pA
	data.Positions[b.bodyB.Index] = pB
}

// arms returns the anchor arms relative to the centers of mass.
func (b *base) arms(localAnchorA, localAnchorB mgl64.Vec2, aA, aB float64) (rA, rB mgl64.Vec2) {
	rA = geom.NewRot(aA).Apply(localAnchorA.Sub(b.bodyA.LocalCenter))
	rB = geom.NewRot(aB).Apply(localAnchorB.Sub(b.bodyB.LocalCenter))
	return rA, rB
}

// applyImpulse applies -P at rA on body A and P at rB on body B.
func (b *base) applyImpulse(vA, vB *Velocity, rA, rB, P mgl64.Vec2) {
	vA.V = vA.V.Sub(P.Mul(b.bodyA.InvMass))
	vA.W -= b.bodyA.InvI * geom.Cross(rA, P)
	vB.V = vB.V.Add(P.Mul(b.bodyB.InvMass))
	vB.W += b.bodyB.InvI * geom.Cross(rB, P)
}

// applyCorrection is applyImpulse for positions.
func (b *base) applyCorrection(pA, pB *Position, rA, rB, P mgl64.Vec2) {
	pA.C = pA.C.Sub(P.Mul(b.bodyA.InvMass))
	pA.A -= b.bodyA.InvI * geom.Cross(rA, P)
	pB.C = pB.C.Add(P.Mul(b.bodyB.InvMass))
	pB.A += b.bodyB.InvI * geom.Cross(rB, P)
}

// pointMass returns the 2x2 effective mass matrix K of a point constraint.
func (b *base) pointMass(rA, rB mgl64.Vec2) mgl64.Mat2 {
	mA, mB := b.bodyA.InvMass, b.bodyB.InvMass
	iA, iB := b.bodyA.InvI, b.bodyB.InvI

	k11 := mA + mB + iA*rA[1]*rA[1] + iB*rB[1]*rB[1]
	k12 := -iA*rA[0]*rA[1] - iB*rB[0]*rB[1]
	k22 := mA + mB + iA*rA[0]*rA[0] + iB*rB[0]*rB[0]
	return mgl64.Mat2{k11, k12, k12, k22}
}

// velocityAt returns the velocity of the point at arm r.
func velocityAt(v Velocity, r mgl64.Vec2) mgl64.Vec2 {
	return v.V.Add(geom.CrossSV(v.W, r))
}

// applyLinearAngular applies -P and -LA on body A, P and LB on body B.
func (b *base) applyLinearAngular(vA, vB *Velocity, P mgl64.Vec2, LA, LB float64) {
	vA.V = vA.V.Sub(P.Mul(b.bodyA.InvMass))
	vA.W -= b.bodyA.InvI * LA
	vB.V = vB.V.Add(P.Mul(b.bodyB.InvMass))
	vB.W += b.bodyB.InvI * LB
}

// correctLinearAngular is applyLinearAngular for positions.
func (b *base) correctLinearAngular(pA, pB *Position, P mgl64.Vec2, LA, LB float64) {
	pA.C = pA.C.Sub(P.Mul(b.bodyA.InvMass))
	pA.A -= b.bodyA.InvI * LA
	pB.C = pB.C.Add(P.Mul(b.bodyB.InvMass))
	pB.A += b.bodyB.InvI * LB
}
