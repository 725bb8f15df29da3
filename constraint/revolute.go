package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// RevoluteJointDef pins two bodies at a shared anchor, with an optional
// angle limit and motor. Angles are positive counter-clockwise.
type RevoluteJointDef struct {
	LocalAnchorA   mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB   mgl64.Vec2 `yaml:"localAnchorB"`
	ReferenceAngle float64    `yaml:"referenceAngle"` // bodyB angle minus bodyA angle in the reference state
	EnableLimit    bool       `yaml:"enableLimit"`
	LowerAngle     float64    `yaml:"lowerAngle"`
	UpperAngle     float64    `yaml:"upperAngle"`
	EnableMotor    bool       `yaml:"enableMotor"`
	MotorSpeed     float64    `yaml:"motorSpeed"`     // radians per second
	MaxMotorTorque float64    `yaml:"maxMotorTorque"` // N-m
}

func (d *RevoluteJointDef) JointType() JointType { return JointRevolute }

func (d *RevoluteJointDef) Validate() error {
	if !validFinite(d.ReferenceAngle, d.LowerAngle, d.UpperAngle, d.MotorSpeed, d.MaxMotorTorque) ||
		d.LowerAngle > d.UpperAngle || d.MaxMotorTorque < 0 {
		return fmt.Errorf("revolute joint: %w", ErrInvalidDef)
	}
	return nil
}

// RevoluteJoint is a hinge.
type RevoluteJoint struct {
	base

	localAnchorA   mgl64.Vec2
	localAnchorB   mgl64.Vec2
	referenceAngle float64

	impulse      mgl64.Vec2
	motorImpulse float64
	lowerImpulse float64
	upperImpulse float64

	enableMotor    bool
	maxMotorTorque float64
	motorSpeed     float64
	enableLimit    bool
	lowerAngle     float64
	upperAngle     float64

	// Solver temp
	rA        mgl64.Vec2
	rB        mgl64.Vec2
	k         mgl64.Mat2
	angle     float64
	axialMass float64
}

// NewRevoluteJoint builds a revolute joint.
func NewRevoluteJoint(def *RevoluteJointDef, collideConnected bool) *RevoluteJoint {
	return &RevoluteJoint{
		base:           base{collideConnected: collideConnected},
		localAnchorA:   def.LocalAnchorA,
		localAnchorB:   def.LocalAnchorB,
		referenceAngle: def.ReferenceAngle,
		lowerAngle:     def.LowerAngle,
		upperAngle:     def.UpperAngle,
		maxMotorTorque: def.MaxMotorTorque,
		motorSpeed:     def.MotorSpeed,
		enableLimit:    def.EnableLimit,
		enableMotor:    def.EnableMotor,
	}
}

func (j *RevoluteJoint) Type() JointType { return JointRevolute }

func (j *RevoluteJoint) Def() JointDef {
	return &RevoluteJointDef{
		LocalAnchorA:   j.localAnchorA,
		LocalAnchorB:   j.localAnchorB,
		ReferenceAngle: j.referenceAngle,
		EnableLimit:    j.enableLimit,
		LowerAngle:     j.lowerAngle,
		UpperAngle:     j.upperAngle,
		EnableMotor:    j.enableMotor,
		MotorSpeed:     j.motorSpeed,
		MaxMotorTorque: j.maxMotorTorque,
	}
}

func (j *RevoluteJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *RevoluteJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *RevoluteJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.impulse.Mul(invDt)
}

func (j *RevoluteJoint) ReactionTorque(invDt float64) float64 {
	return invDt * (j.motorImpulse + j.lowerImpulse - j.upperImpulse)
}

// LocalAnchorA returns the anchor relative to body A's origin.
func (j *RevoluteJoint) LocalAnchorA() mgl64.Vec2 { return j.localAnchorA }

// LocalAnchorB returns the anchor relative to body B's origin.
func (j *RevoluteJoint) LocalAnchorB() mgl64.Vec2 { return j.localAnchorB }

func (j *RevoluteJoint) ReferenceAngle() float64 { return j.referenceAngle }

// Angle returns the joint angle for the given body angles.
func (j *RevoluteJoint) Angle(angleA, angleB float64) float64 {
	return angleB - angleA - j.referenceAngle
}

func (j *RevoluteJoint) IsLimitEnabled() bool { return j.enableLimit }

func (j *RevoluteJoint) EnableLimit(flag bool) {
	if flag != j.enableLimit {
		j.wakeBodies()
		j.enableLimit = flag
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}
}

// Limits returns the lower and upper angles.
func (j *RevoluteJoint) Limits() (float64, float64) { return j.lowerAngle, j.upperAngle }

func (j *RevoluteJoint) SetLimits(lower, upper float64) {
	if lower != j.lowerAngle || upper != j.upperAngle {
		j.wakeBodies()
		j.lowerImpulse = 0
		j.upperImpulse = 0
		j.lowerAngle = lower
		j.upperAngle = upper
	}
}

func (j *RevoluteJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *RevoluteJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.wakeBodies()
		j.enableMotor = flag
	}
}

func (j *RevoluteJoint) MotorSpeed() float64 { return j.motorSpeed }

func (j *RevoluteJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.wakeBodies()
		j.motorSpeed = speed
	}
}

func (j *RevoluteJoint) SetMaxMotorTorque(torque float64) {
	if torque != j.maxMotorTorque {
		j.wakeBodies()
		j.maxMotorTorque = torque
	}
}

// MotorTorque returns the motor torque applied during the last step.
func (j *RevoluteJoint) MotorTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *RevoluteJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	j.rA, j.rB = j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)

	// J = [-I -r1_skew I r2_skew]
	// r_skew = [-ry; rx]
	j.k = j.pointMass(j.rA, j.rB)

	j.axialMass = iA + iB
	fixedRotation := j.axialMass == 0
	j.axialMass = invOrZero(j.axialMass)

	j.angle = pB.A - pA.A - j.referenceAngle
	if !j.enableLimit || fixedRotation {
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	if !j.enableMotor || fixedRotation {
		j.motorImpulse = 0
	}

	if data.Step.WarmStarting {
		// Scale impulses to support a variable time step.
		j.impulse = j.impulse.Mul(data.Step.DtRatio)
		j.motorImpulse *= data.Step.DtRatio
		j.lowerImpulse *= data.Step.DtRatio
		j.upperImpulse *= data.Step.DtRatio

		axialImpulse := j.motorImpulse + j.lowerImpulse - j.upperImpulse
		j.applyImpulse(&vA, &vB, j.rA, j.rB, j.impulse)
		vA.W -= iA * axialImpulse
		vB.W += iB * axialImpulse
	} else {
		j.impulse = mgl64.Vec2{}
		j.motorImpulse = 0
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *RevoluteJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI
	h := data.Step.Dt

	fixedRotation := iA+iB == 0

	// Solve motor constraint.
	if j.enableMotor && !fixedRotation {
		Cdot := vB.W - vA.W - j.motorSpeed
		impulse := -j.axialMass * Cdot
		oldImpulse := j.motorImpulse
		maxImpulse := h * j.maxMotorTorque
		j.motorImpulse = geom.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		vA.W -= iA * impulse
		vB.W += iB * impulse
	}

	if j.enableLimit && !fixedRotation {
		// Lower limit
		{
			C := j.angle - j.lowerAngle
			Cdot := vB.W - vA.W
			impulse := -j.axialMass * (Cdot + max(C, 0)*data.Step.InvDt)
			oldImpulse := j.lowerImpulse
			j.lowerImpulse = max(j.lowerImpulse+impulse, 0)
			impulse = j.lowerImpulse - oldImpulse

			vA.W -= iA * impulse
			vB.W += iB * impulse
		}

		// Upper limit
		// Note: signs are flipped to keep C positive when the constraint is satisfied.
		{
			C := j.upperAngle - j.angle
			Cdot := vA.W - vB.W
			impulse := -j.axialMass * (Cdot + max(C, 0)*data.Step.InvDt)
			oldImpulse := j.upperImpulse
			j.upperImpulse = max(j.upperImpulse+impulse, 0)
			impulse = j.upperImpulse - oldImpulse

			vA.W += iA * impulse
			vB.W -= iB * impulse
		}
	}

	// Solve point to point constraint
	Cdot := velocityAt(vB, j.rB).Sub(velocityAt(vA, j.rA))
	impulse := j.k.Inv().Mul2x1(Cdot.Mul(-1))

	j.impulse = j.impulse.Add(impulse)
	j.applyImpulse(&vA, &vB, j.rA, j.rB, impulse)

	j.storeVelocities(data, vA, vB)
}

func (j *RevoluteJoint) SolvePositionConstraints(data *SolverData) bool {
	pA, pB := j.positions(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	angularError := 0.0
	positionError := 0.0

	fixedRotation := iA+iB == 0

	// Solve angular limit constraint
	if j.enableLimit && !fixedRotation {
		angle := pB.A - pA.A - j.referenceAngle
		C := 0.0

		switch {
		case math.Abs(j.upperAngle-j.lowerAngle) < 2*geom.AngularSlop:
			// Prevent large angular corrections
			C = geom.Clamp(angle-j.lowerAngle, -MaxAngularCorrection, MaxAngularCorrection)
		case angle <= j.lowerAngle:
			// Prevent large angular corrections and allow some slop.
			C = geom.Clamp(angle-j.lowerAngle+geom.AngularSlop, -MaxAngularCorrection, 0)
		case angle >= j.upperAngle:
			C = geom.Clamp(angle-j.upperAngle-geom.AngularSlop, 0, MaxAngularCorrection)
		}

		limitImpulse := -j.axialMass * C
		pA.A -= iA * limitImpulse
		pB.A += iB * limitImpulse
		angularError = math.Abs(C)
	}

	// Solve point to point constraint.
	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)

	C := pB.C.Add(rB).Sub(pA.C).Sub(rA)
	positionError = C.Len()

	K := j.pointMass(rA, rB)
	impulse := K.Inv().Mul2x1(C).Mul(-1)
	j.applyCorrection(&pA, &pB, rA, rB, impulse)

	j.storePositions(data, pA, pB)

	return positionError <= geom.LinearSlop && angularError <= geom.AngularSlop
}
