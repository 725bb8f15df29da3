package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// DistanceJointDef keeps two anchor points at a distance. With a positive
// Stiffness the rod becomes a spring, optionally bounded by MinLength and MaxLength.
// Zero limits leave a spring unbounded and make a rod rigid.
type DistanceJointDef struct {
	LocalAnchorA mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB mgl64.Vec2 `yaml:"localAnchorB"`
	Length       float64    `yaml:"length"`
	MinLength    float64    `yaml:"minLength"`
	MaxLength    float64    `yaml:"maxLength"`
	Stiffness    float64    `yaml:"stiffness"` // linear stiffness in N/m
	Damping      float64    `yaml:"damping"`   // linear damping in N*s/m
}

// NewDistanceJointDef returns a rigid unit-length rod definition.
func NewDistanceJointDef() *DistanceJointDef {
	return &DistanceJointDef{Length: 1}
}

func (d *DistanceJointDef) JointType() JointType { return JointDistance }

func (d *DistanceJointDef) Validate() error {
	if !validFinite(d.Length, d.MinLength, d.Stiffness, d.Damping) || d.Length < 0 || d.Stiffness < 0 || d.Damping < 0 || d.MaxLength < d.MinLength {
		return fmt.Errorf("distance joint: %w", ErrInvalidDef)
	}
	return nil
}

// DistanceJoint is a rod or spring between two anchors.
type DistanceJoint struct {
	base

	localAnchorA mgl64.Vec2
	localAnchorB mgl64.Vec2
	length       float64
	minLength    float64
	maxLength    float64
	stiffness    float64
	damping      float64

	bias         float64
	gamma        float64
	impulse      float64
	lowerImpulse float64
	upperImpulse float64

	// Solver temp
	u             mgl64.Vec2
	rA            mgl64.Vec2
	rB            mgl64.Vec2
	currentLength float64
	softMass      float64
	mass          float64
}

// NewDistanceJoint builds a distance joint.
func NewDistanceJoint(def *DistanceJointDef, collideConnected bool) *DistanceJoint {
	j := &DistanceJoint{
		base:         base{collideConnected: collideConnected},
		localAnchorA: def.LocalAnchorA,
		localAnchorB: def.LocalAnchorB,
		stiffness:    def.Stiffness,
		damping:      def.Damping,
	}
	j.length = max(def.Length, geom.LinearSlop)
	minLength, maxLength := def.MinLength, def.MaxLength
	if minLength == 0 && maxLength == 0 {
		minLength, maxLength = j.length, j.length
		if j.stiffness > 0 {
			minLength, maxLength = 0, math.MaxFloat64
		}
	}
	j.minLength = max(minLength, geom.LinearSlop)
	j.maxLength = max(maxLength, j.minLength)
	j.length = geom.Clamp(j.length, j.minLength, j.maxLength)
	return j
}

func (j *DistanceJoint) Type() JointType { return JointDistance }

func (j *DistanceJoint) Def() JointDef {
	return &DistanceJointDef{
		LocalAnchorA: j.localAnchorA,
		LocalAnchorB: j.localAnchorB,
		Length:       j.length,
		MinLength:    j.minLength,
		MaxLength:    j.maxLength,
		Stiffness:    j.stiffness,
		Damping:      j.damping,
	}
}

func (j *DistanceJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *DistanceJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *DistanceJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.u.Mul(invDt * (j.impulse + j.lowerImpulse - j.upperImpulse))
}

func (j *DistanceJoint) ReactionTorque(float64) float64 { return 0 }

// Length returns the rest length.
func (j *DistanceJoint) Length() float64 { return j.length }

// SetLength sets the rest length, clamped to the limits. It returns the clamped length.
func (j *DistanceJoint) SetLength(length float64) float64 {
	j.impulse = 0
	j.length = geom.Clamp(length, geom.LinearSlop, math.MaxFloat64)
	return j.length
}

// SetMinLength sets the lower limit and returns the clamped value.
func (j *DistanceJoint) SetMinLength(minLength float64) float64 {
	j.lowerImpulse = 0
	j.minLength = geom.Clamp(minLength, geom.LinearSlop, j.maxLength)
	return j.minLength
}

// SetMaxLength sets the upper limit and returns the clamped value.
func (j *DistanceJoint) SetMaxLength(maxLength float64) float64 {
	j.upperImpulse = 0
	j.maxLength = max(maxLength, j.minLength)
	return j.maxLength
}

// CurrentLength returns the anchor distance of the last solve.
func (j *DistanceJoint) CurrentLength() float64 { return j.currentLength }

func (j *DistanceJoint) SetStiffness(stiffness float64) { j.stiffness = stiffness }
func (j *DistanceJoint) SetDamping(damping float64)     { j.damping = damping }

func (j *DistanceJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	mA, iA := j.bodyA.InvMass, j.bodyA.InvI
	mB, iB := j.bodyB.InvMass, j.bodyB.InvI

	j.rA, j.rB = j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	j.u = pB.C.Add(j.rB).Sub(pA.C).Sub(j.rA)

	// Handle singularity.
	j.currentLength = j.u.Len()
	if j.currentLength > geom.LinearSlop {
		j.u = j.u.Mul(1.0 / j.currentLength)
	} else {
		j.u = mgl64.Vec2{}
		j.mass = 0
		j.impulse = 0
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	crAu := geom.Cross(j.rA, j.u)
	crBu := geom.Cross(j.rB, j.u)
	invMass := mA + iA*crAu*crAu + mB + iB*crBu*crBu
	j.mass = invOrZero(invMass)

	if j.stiffness > 0 && j.minLength < j.maxLength {
		// soft
		C := j.currentLength - j.length
		var biasFactor float64
		j.gamma, biasFactor = softness(j.stiffness, j.damping, data.Step.Dt)
		j.bias = C * biasFactor

		invMass += j.gamma
		j.softMass = invOrZero(invMass)
	} else {
		// rigid
		j.gamma = 0
		j.bias = 0
		j.softMass = j.mass
	}

	if data.Step.WarmStarting {
		// Scale the impulse to support a variable time step.
		j.impulse *= data.Step.DtRatio
		j.lowerImpulse *= data.Step.DtRatio
		j.upperImpulse *= data.Step.DtRatio

		P := j.u.Mul(j.impulse + j.lowerImpulse - j.upperImpulse)
		j.applyImpulse(&vA, &vB, j.rA, j.rB, P)
	} else {
		j.impulse = 0
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *DistanceJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	if j.minLength < j.maxLength {
		if j.stiffness > 0 {
			// Cdot = dot(u, v + cross(w, r))
			Cdot := j.u.Dot(velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA)))
			impulse := -j.softMass * (Cdot + j.bias + j.gamma*j.impulse)
			j.impulse += impulse
			j.applyImpulse(&vA, &vB, j.rA, j.rB, j.u.Mul(impulse))
		}

		// lower
		{
			C := j.currentLength - j.minLength
			bias := max(0, C) * data.Step.InvDt

			Cdot := j.u.Dot(velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA)))
			impulse := -j.mass * (Cdot + bias)
			oldImpulse := j.lowerImpulse
			j.lowerImpulse = max(0, j.lowerImpulse+impulse)
			impulse = j.lowerImpulse - oldImpulse

			j.applyImpulse(&vA, &vB, j.rA, j.rB, j.u.Mul(impulse))
		}

		// upper
		{
			C := j.maxLength - j.currentLength
			bias := max(0, C) * data.Step.InvDt

			Cdot := j.u.Dot(velocityAt(vA, j.rA).Sub(velocityAt(vB, j.rB)))
			impulse := -j.mass * (Cdot + bias)
			oldImpulse := j.upperImpulse
			j.upperImpulse = max(0, j.upperImpulse+impulse)
			impulse = j.upperImpulse - oldImpulse

			j.applyImpulse(&vA, &vB, j.rA, j.rB, j.u.Mul(-impulse))
		}
	} else {
		// Equal limits
		Cdot := j.u.Dot(velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA)))
		impulse := -j.mass * Cdot
		j.impulse += impulse
		j.applyImpulse(&vA, &vB, j.rA, j.rB, j.u.Mul(impulse))
	}

	j.storeVelocities(data, vA, vB)
}

func (j *DistanceJoint) SolvePositionConstraints(data *SolverData) bool {
	pA, pB := j.positions(data)

	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	u, length := geom.Normalize(pB.C.Add(rB).Sub(pA.C).Sub(rA))

	var C float64
	switch {
	case j.minLength == j.maxLength:
		C = length - j.minLength
	case length < j.minLength:
		C = length - j.minLength
	case j.maxLength < length:
		C = length - j.maxLength
	default:
		return true
	}

	impulse := -j.mass * C
	j.applyCorrection(&pA, &pB, rA, rB, u.Mul(impulse))
	j.storePositions(data, pA, pB)

	return math.Abs(C) < geom.LinearSlop
}
