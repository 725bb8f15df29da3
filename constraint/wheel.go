package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// WheelJointDef puts body B on a line fixed in body A, with a spring along
// the line and a rotational motor. It models a vehicle suspension.
type WheelJointDef struct {
	LocalAnchorA     mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB     mgl64.Vec2 `yaml:"localAnchorB"`
	LocalAxisA       mgl64.Vec2 `yaml:"localAxisA"`
	EnableLimit      bool       `yaml:"enableLimit"`
	LowerTranslation float64    `yaml:"lowerTranslation"`
	UpperTranslation float64    `yaml:"upperTranslation"`
	EnableMotor      bool       `yaml:"enableMotor"`
	MaxMotorTorque   float64    `yaml:"maxMotorTorque"`
	MotorSpeed       float64    `yaml:"motorSpeed"`
	Stiffness        float64    `yaml:"stiffness"` // suspension stiffness in N/m
	Damping          float64    `yaml:"damping"`   // suspension damping in N*s/m
}

// NewWheelJointDef returns a definition with a vertical suspension axis.
func NewWheelJointDef() *WheelJointDef {
	return &WheelJointDef{LocalAxisA: mgl64.Vec2{0, 1}}
}

func (d *WheelJointDef) JointType() JointType { return JointWheel }

func (d *WheelJointDef) Validate() error {
	if !validFinite(d.LowerTranslation, d.UpperTranslation, d.MaxMotorTorque, d.MotorSpeed, d.Stiffness, d.Damping) ||
		d.LocalAxisA.LenSqr() < geom.Epsilon || d.LowerTranslation > d.UpperTranslation ||
		d.MaxMotorTorque < 0 || d.Stiffness < 0 || d.Damping < 0 {
		return fmt.Errorf("wheel joint: %w", ErrInvalidDef)
	}
	return nil
}

// WheelJoint is a point-to-line constraint with a suspension spring and a motor.
type WheelJoint struct {
	base

	localAnchorA mgl64.Vec2
	localAnchorB mgl64.Vec2
	localXAxisA  mgl64.Vec2
	localYAxisA  mgl64.Vec2

	impulse       float64
	motorImpulse  float64
	springImpulse float64
	lowerImpulse  float64
	upperImpulse  float64

	translation      float64
	lowerTranslation float64
	upperTranslation float64

	maxMotorTorque float64
	motorSpeed     float64

	enableLimit bool
	enableMotor bool

	stiffness float64
	damping   float64

	// Solver temp
	ax, ay     mgl64.Vec2
	sAx, sBx   float64
	sAy, sBy   float64
	mass       float64
	motorMass  float64
	axialMass  float64
	springMass float64
	bias       float64
	gamma      float64
}

// NewWheelJoint builds a wheel joint.
func NewWheelJoint(def *WheelJointDef, collideConnected bool) *WheelJoint {
	xAxis, _ := geom.Normalize(def.LocalAxisA)
	return &WheelJoint{
		base:             base{collideConnected: collideConnected},
		localAnchorA:     def.LocalAnchorA,
		localAnchorB:     def.LocalAnchorB,
		localXAxisA:      xAxis,
		localYAxisA:      geom.CrossSV(1.0, xAxis),
		lowerTranslation: def.LowerTranslation,
		upperTranslation: def.UpperTranslation,
		enableLimit:      def.EnableLimit,
		maxMotorTorque:   def.MaxMotorTorque,
		motorSpeed:       def.MotorSpeed,
		enableMotor:      def.EnableMotor,
		stiffness:        def.Stiffness,
		damping:          def.Damping,
	}
}

func (j *WheelJoint) Type() JointType { return JointWheel }

func (j *WheelJoint) Def() JointDef {
	return &WheelJointDef{
		LocalAnchorA:     j.localAnchorA,
		LocalAnchorB:     j.localAnchorB,
		LocalAxisA:       j.localXAxisA,
		EnableLimit:      j.enableLimit,
		LowerTranslation: j.lowerTranslation,
		UpperTranslation: j.upperTranslation,
		EnableMotor:      j.enableMotor,
		MaxMotorTorque:   j.maxMotorTorque,
		MotorSpeed:       j.motorSpeed,
		Stiffness:        j.stiffness,
		Damping:          j.damping,
	}
}

func (j *WheelJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *WheelJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *WheelJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.ay.Mul(j.impulse).Add(j.ax.Mul(j.springImpulse + j.lowerImpulse - j.upperImpulse)).Mul(invDt)
}

func (j *WheelJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *WheelJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *WheelJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.wakeBodies()
		j.enableMotor = flag
	}
}

func (j *WheelJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.wakeBodies()
		j.motorSpeed = speed
	}
}

func (j *WheelJoint) SetMaxMotorTorque(torque float64) {
	if torque != j.maxMotorTorque {
		j.wakeBodies()
		j.maxMotorTorque = torque
	}
}

// MotorTorque returns the motor torque applied during the last step.
func (j *WheelJoint) MotorTorque(invDt float64) float64 { return invDt * j.motorImpulse }

func (j *WheelJoint) EnableLimit(flag bool) {
	if flag != j.enableLimit {
		j.wakeBodies()
		j.enableLimit = flag
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}
}

func (j *WheelJoint) SetLimits(lower, upper float64) {
	if lower != j.lowerTranslation || upper != j.upperTranslation {
		j.wakeBodies()
		j.lowerTranslation = lower
		j.upperTranslation = upper
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}
}

func (j *WheelJoint) SetStiffness(stiffness float64) { j.stiffness = stiffness }
func (j *WheelJoint) SetDamping(damping float64)     { j.damping = damping }

func (j *WheelJoint) axialSpeed(vA, vB Velocity) float64 {
	return j.ax.Dot(vB.V.Sub(vA.V)) + j.sBx*vB.W - j.sAx*vA.W
}

func (j *WheelJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	mA, mB := j.bodyA.InvMass, j.bodyB.InvMass
	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	// Compute the effective masses.
	qA := geom.NewRot(pA.A)
	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	d := pB.C.Add(rB).Sub(pA.C).Sub(rA)

	// Point to line constraint
	j.ay = qA.Apply(j.localYAxisA)
	j.sAy = geom.Cross(d.Add(rA), j.ay)
	j.sBy = geom.Cross(rB, j.ay)

	j.mass = invOrZero(mA + mB + iA*j.sAy*j.sAy + iB*j.sBy*j.sBy)

	// Spring constraint
	j.ax = qA.Apply(j.localXAxisA)
	j.sAx = geom.Cross(d.Add(rA), j.ax)
	j.sBx = geom.Cross(rB, j.ax)

	invMass := mA + mB + iA*j.sAx*j.sAx + iB*j.sBx*j.sBx
	j.axialMass = invOrZero(invMass)

	j.springMass = 0
	j.bias = 0
	j.gamma = 0

	if j.stiffness > 0 && invMass > 0 {
		C := d.Dot(j.ax)

		var biasFactor float64
		j.gamma, biasFactor = softness(j.stiffness, j.damping, data.Step.Dt)
		j.bias = C * biasFactor

		j.springMass = invOrZero(invMass + j.gamma)
	} else {
		j.springImpulse = 0
	}

	if j.enableLimit {
		j.translation = j.ax.Dot(d)
	} else {
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	if j.enableMotor {
		j.motorMass = invOrZero(iA + iB)
	} else {
		j.motorMass = 0
		j.motorImpulse = 0
	}

	if data.Step.WarmStarting {
		// Account for variable time step.
		j.impulse *= data.Step.DtRatio
		j.springImpulse *= data.Step.DtRatio
		j.motorImpulse *= data.Step.DtRatio
		j.lowerImpulse *= data.Step.DtRatio
		j.upperImpulse *= data.Step.DtRatio

		axialImpulse := j.springImpulse + j.lowerImpulse - j.upperImpulse
		P := j.ay.Mul(j.impulse).Add(j.ax.Mul(axialImpulse))
		LA := j.impulse*j.sAy + axialImpulse*j.sAx + j.motorImpulse
		LB := j.impulse*j.sBy + axialImpulse*j.sBx + j.motorImpulse
		j.applyLinearAngular(&vA, &vB, P, LA, LB)
	} else {
		j.impulse = 0
		j.springImpulse = 0
		j.motorImpulse = 0
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *WheelJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	// Solve spring constraint
	{
		Cdot := j.axialSpeed(vA, vB)
		impulse := -j.springMass * (Cdot + j.bias + j.gamma*j.springImpulse)
		j.springImpulse += impulse

		j.applyLinearAngular(&vA, &vB, j.ax.Mul(impulse), impulse*j.sAx, impulse*j.sBx)
	}

	// Solve rotational motor constraint
	{
		Cdot := vB.W - vA.W - j.motorSpeed
		impulse := -j.motorMass * Cdot

		oldImpulse := j.motorImpulse
		maxImpulse := data.Step.Dt * j.maxMotorTorque
		j.motorImpulse = geom.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		vA.W -= iA * impulse
		vB.W += iB * impulse
	}

	if j.enableLimit {
		// Lower limit
		{
			C := j.translation - j.lowerTranslation
			Cdot := j.axialSpeed(vA, vB)
			impulse := -j.axialMass * (Cdot + max(C, 0)*data.Step.InvDt)
			oldImpulse := j.lowerImpulse
			j.lowerImpulse = max(j.lowerImpulse+impulse, 0)
			impulse = j.lowerImpulse - oldImpulse

			j.applyLinearAngular(&vA, &vB, j.ax.Mul(impulse), impulse*j.sAx, impulse*j.sBx)
		}

		// Upper limit
		// Note: signs are flipped to keep C positive when the constraint is satisfied.
		{
			C := j.upperTranslation - j.translation
			Cdot := -j.axialSpeed(vA, vB)
			impulse := -j.axialMass * (Cdot + max(C, 0)*data.Step.InvDt)
			oldImpulse := j.upperImpulse
			j.upperImpulse = max(j.upperImpulse+impulse, 0)
			impulse = j.upperImpulse - oldImpulse

			j.applyLinearAngular(&vA, &vB, j.ax.Mul(-impulse), -impulse*j.sAx, -impulse*j.sBx)
		}
	}

	// Solve point to line constraint
	{
		Cdot := j.ay.Dot(vB.V.Sub(vA.V)) + j.sBy*vB.W - j.sAy*vA.W
		impulse := -j.mass * Cdot
		j.impulse += impulse

		j.applyLinearAngular(&vA, &vB, j.ay.Mul(impulse), impulse*j.sAy, impulse*j.sBy)
	}

	j.storeVelocities(data, vA, vB)
}

func (j *WheelJoint) SolvePositionConstraints(data *SolverData) bool {
	pA, pB := j.positions(data)

	mA, mB := j.bodyA.InvMass, j.bodyB.InvMass
	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	linearError := 0.0

	if j.enableLimit {
		qA := geom.NewRot(pA.A)
		rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
		d := pB.C.Sub(pA.C).Add(rB).Sub(rA)

		ax := qA.Apply(j.localXAxisA)
		sAx := geom.Cross(d.Add(rA), ax)
		sBx := geom.Cross(rB, ax)

		C := 0.0
		translation := ax.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2*geom.LinearSlop:
			C = translation - j.lowerTranslation
		case translation <= j.lowerTranslation:
			C = min(translation-j.lowerTranslation, 0)
		case translation >= j.upperTranslation:
			C = max(translation-j.upperTranslation, 0)
		}

		if C != 0 {
			invMass := mA + mB + iA*sAx*sAx + iB*sBx*sBx
			impulse := 0.0
			if invMass != 0 {
				impulse = -C / invMass
			}

			j.correctLinearAngular(&pA, &pB, ax.Mul(impulse), impulse*sAx, impulse*sBx)
			linearError = math.Abs(C)
		}
	}

	// Solve perpendicular constraint
	{
		qA := geom.NewRot(pA.A)
		rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
		d := pB.C.Sub(pA.C).Add(rB).Sub(rA)

		ay := qA.Apply(j.localYAxisA)

		sAy := geom.Cross(d.Add(rA), ay)
		sBy := geom.Cross(rB, ay)

		C := d.Dot(ay)

		invMass := mA + mB + iA*sAy*sAy + iB*sBy*sBy

		impulse := 0.0
		if invMass != 0 {
			impulse = -C / invMass
		}

		j.correctLinearAngular(&pA, &pB, ay.Mul(impulse), impulse*sAy, impulse*sBy)
		linearError = max(linearError, math.Abs(C))
	}

	j.storePositions(data, pA, pB)

	return linearError <= geom.LinearSlop
}
