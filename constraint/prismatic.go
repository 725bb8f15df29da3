package constraint

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// PrismaticJointDef lets body B slide along an axis fixed in body A, with no
// relative rotation. Translation can be limited and motorized.
type PrismaticJointDef struct {
	LocalAnchorA     mgl64.Vec2 `yaml:"localAnchorA"`
	LocalAnchorB     mgl64.Vec2 `yaml:"localAnchorB"`
	LocalAxisA       mgl64.Vec2 `yaml:"localAxisA"`
	ReferenceAngle   float64    `yaml:"referenceAngle"`
	EnableLimit      bool       `yaml:"enableLimit"`
	LowerTranslation float64    `yaml:"lowerTranslation"`
	UpperTranslation float64    `yaml:"upperTranslation"`
	EnableMotor      bool       `yaml:"enableMotor"`
	MaxMotorForce    float64    `yaml:"maxMotorForce"`
	MotorSpeed       float64    `yaml:"motorSpeed"` // meters per second
}

// NewPrismaticJointDef returns a definition sliding along the x axis.
func NewPrismaticJointDef() *PrismaticJointDef {
	return &PrismaticJointDef{LocalAxisA: mgl64.Vec2{1, 0}}
}

func (d *PrismaticJointDef) JointType() JointType { return JointPrismatic }

func (d *PrismaticJointDef) Validate() error {
	if !validFinite(d.ReferenceAngle, d.LowerTranslation, d.UpperTranslation, d.MaxMotorForce, d.MotorSpeed) ||
		d.LocalAxisA.LenSqr() < geom.Epsilon || d.LowerTranslation > d.UpperTranslation || d.MaxMotorForce < 0 {
		return fmt.Errorf("prismatic joint: %w", ErrInvalidDef)
	}
	return nil
}

// PrismaticJoint is a slider.
type PrismaticJoint struct {
	base

	localAnchorA   mgl64.Vec2
	localAnchorB   mgl64.Vec2
	localXAxisA    mgl64.Vec2
	localYAxisA    mgl64.Vec2
	referenceAngle float64

	impulse      mgl64.Vec2
	motorImpulse float64
	lowerImpulse float64
	upperImpulse float64

	lowerTranslation float64
	upperTranslation float64
	maxMotorForce    float64
	motorSpeed       float64
	enableLimit      bool
	enableMotor      bool

	// Solver temp
	axis        mgl64.Vec2
	perp        mgl64.Vec2
	s1, s2      float64
	a1, a2      float64
	k           mgl64.Mat2
	translation float64
	axialMass   float64
}

// NewPrismaticJoint builds a prismatic joint.
func NewPrismaticJoint(def *PrismaticJointDef, collideConnected bool) *PrismaticJoint {
	xAxis, _ := geom.Normalize(def.LocalAxisA)
	return &PrismaticJoint{
		base:             base{collideConnected: collideConnected},
		localAnchorA:     def.LocalAnchorA,
		localAnchorB:     def.LocalAnchorB,
		localXAxisA:      xAxis,
		localYAxisA:      geom.CrossSV(1.0, xAxis),
		referenceAngle:   def.ReferenceAngle,
		lowerTranslation: def.LowerTranslation,
		upperTranslation: def.UpperTranslation,
		maxMotorForce:    def.MaxMotorForce,
		motorSpeed:       def.MotorSpeed,
		enableLimit:      def.EnableLimit,
		enableMotor:      def.EnableMotor,
	}
}

func (j *PrismaticJoint) Type() JointType { return JointPrismatic }

func (j *PrismaticJoint) Def() JointDef {
	return &PrismaticJointDef{
		LocalAnchorA:     j.localAnchorA,
		LocalAnchorB:     j.localAnchorB,
		LocalAxisA:       j.localXAxisA,
		ReferenceAngle:   j.referenceAngle,
		EnableLimit:      j.enableLimit,
		LowerTranslation: j.lowerTranslation,
		UpperTranslation: j.upperTranslation,
		EnableMotor:      j.enableMotor,
		MaxMotorForce:    j.maxMotorForce,
		MotorSpeed:       j.motorSpeed,
	}
}

func (j *PrismaticJoint) AnchorA(xfA geom.Transform) mgl64.Vec2 { return xfA.Apply(j.localAnchorA) }
func (j *PrismaticJoint) AnchorB(xfB geom.Transform) mgl64.Vec2 { return xfB.Apply(j.localAnchorB) }

func (j *PrismaticJoint) ReactionForce(invDt float64) mgl64.Vec2 {
	return j.perp.Mul(j.impulse[0]).Add(j.axis.Mul(j.motorImpulse + j.lowerImpulse - j.upperImpulse)).Mul(invDt)
}

func (j *PrismaticJoint) ReactionTorque(invDt float64) float64 {
	return invDt * j.impulse[1]
}

func (j *PrismaticJoint) LocalAnchorA() mgl64.Vec2 { return j.localAnchorA }
func (j *PrismaticJoint) LocalAnchorB() mgl64.Vec2 { return j.localAnchorB }
func (j *PrismaticJoint) LocalAxisA() mgl64.Vec2   { return j.localXAxisA }
func (j *PrismaticJoint) ReferenceAngle() float64  { return j.referenceAngle }

// Translation returns the joint translation for the given body transforms.
func (j *PrismaticJoint) Translation(xfA, xfB geom.Transform) float64 {
	pA := xfA.Apply(j.localAnchorA)
	pB := xfB.Apply(j.localAnchorB)
	axis := xfA.Q.Apply(j.localXAxisA)
	return pB.Sub(pA).Dot(axis)
}

func (j *PrismaticJoint) IsLimitEnabled() bool { return j.enableLimit }

func (j *PrismaticJoint) EnableLimit(flag bool) {
	if flag != j.enableLimit {
		j.wakeBodies()
		j.enableLimit = flag
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}
}

// Limits returns the lower and upper translations.
func (j *PrismaticJoint) Limits() (float64, float64) { return j.lowerTranslation, j.upperTranslation }

func (j *PrismaticJoint) SetLimits(lower, upper float64) {
	if lower != j.lowerTranslation || upper != j.upperTranslation {
		j.wakeBodies()
		j.lowerTranslation = lower
		j.upperTranslation = upper
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}
}

func (j *PrismaticJoint) IsMotorEnabled() bool { return j.enableMotor }

func (j *PrismaticJoint) EnableMotor(flag bool) {
	if flag != j.enableMotor {
		j.wakeBodies()
		j.enableMotor = flag
	}
}

func (j *PrismaticJoint) SetMotorSpeed(speed float64) {
	if speed != j.motorSpeed {
		j.wakeBodies()
		j.motorSpeed = speed
	}
}

func (j *PrismaticJoint) SetMaxMotorForce(force float64) {
	if force != j.maxMotorForce {
		j.wakeBodies()
		j.maxMotorForce = force
	}
}

// MotorForce returns the motor force applied during the last step.
func (j *PrismaticJoint) MotorForce(invDt float64) float64 {
	return invDt * j.motorImpulse
}

func (j *PrismaticJoint) InitVelocityConstraints(data *SolverData) {
	pA, pB := j.positions(data)
	vA, vB := j.velocities(data)

	mA, mB := j.bodyA.InvMass, j.bodyB.InvMass
	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	// Compute the effective masses.
	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	d := pB.C.Sub(pA.C).Add(rB).Sub(rA)
	qA := geom.NewRot(pA.A)

	// Compute motor Jacobian and effective mass.
	j.axis = qA.Apply(j.localXAxisA)
	j.a1 = geom.Cross(d.Add(rA), j.axis)
	j.a2 = geom.Cross(rB, j.axis)

	j.axialMass = invOrZero(mA + mB + iA*j.a1*j.a1 + iB*j.a2*j.a2)

	// Prismatic constraint.
	j.perp = qA.Apply(j.localYAxisA)
	j.s1 = geom.Cross(d.Add(rA), j.perp)
	j.s2 = geom.Cross(rB, j.perp)

	k11 := mA + mB + iA*j.s1*j.s1 + iB*j.s2*j.s2
	k12 := iA*j.s1 + iB*j.s2
	k22 := iA + iB
	if k22 == 0 {
		// For bodies with fixed rotation.
		k22 = 1
	}
	j.k = mgl64.Mat2{k11, k12, k12, k22}

	if j.enableLimit {
		j.translation = j.axis.Dot(d)
	} else {
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	if !j.enableMotor {
		j.motorImpulse = 0
	}

	if data.Step.WarmStarting {
		// Account for variable time step.
		j.impulse = j.impulse.Mul(data.Step.DtRatio)
		j.motorImpulse *= data.Step.DtRatio
		j.lowerImpulse *= data.Step.DtRatio
		j.upperImpulse *= data.Step.DtRatio

		axialImpulse := j.motorImpulse + j.lowerImpulse - j.upperImpulse
		P := j.perp.Mul(j.impulse[0]).Add(j.axis.Mul(axialImpulse))
		LA := j.impulse[0]*j.s1 + j.impulse[1] + axialImpulse*j.a1
		LB := j.impulse[0]*j.s2 + j.impulse[1] + axialImpulse*j.a2
		j.applyLinearAngular(&vA, &vB, P, LA, LB)
	} else {
		j.impulse = mgl64.Vec2{}
		j.motorImpulse = 0
		j.lowerImpulse = 0
		j.upperImpulse = 0
	}

	j.storeVelocities(data, vA, vB)
}

func (j *PrismaticJoint) axialSpeed(vA, vB Velocity) float64 {
	return j.axis.Dot(vB.V.Sub(vA.V)) + j.a2*vB.W - j.a1*vA.W
}

func (j *PrismaticJoint) SolveVelocityConstraints(data *SolverData) {
	vA, vB := j.velocities(data)

	// Solve linear motor constraint
	if j.enableMotor {
		Cdot := j.axialSpeed(vA, vB)
		impulse := j.axialMass * (j.motorSpeed - Cdot)
		oldImpulse := j.motorImpulse
		maxImpulse := data.Step.Dt * j.maxMotorForce
		j.motorImpulse = geom.Clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		j.applyLinearAngular(&vA, &vB, j.axis.Mul(impulse), impulse*j.a1, impulse*j.a2)
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

			j.applyLinearAngular(&vA, &vB, j.axis.Mul(impulse), impulse*j.a1, impulse*j.a2)
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

			j.applyLinearAngular(&vA, &vB, j.axis.Mul(-impulse), -impulse*j.a1, -impulse*j.a2)
		}
	}

	// Solve the prismatic constraint in block form.
	Cdot := mgl64.Vec2{
		j.perp.Dot(vB.V.Sub(vA.V)) + j.s2*vB.W - j.s1*vA.W,
		vB.W - vA.W,
	}

	df := j.k.Inv().Mul2x1(Cdot.Mul(-1))
	j.impulse = j.impulse.Add(df)

	P := j.perp.Mul(df[0])
	LA := df[0]*j.s1 + df[1]
	LB := df[0]*j.s2 + df[1]
	j.applyLinearAngular(&vA, &vB, P, LA, LB)

	j.storeVelocities(data, vA, vB)
}

// SolvePositionConstraints solves the perpendicular, angular and limit
// errors together. The limit is added as a third row when active.
func (j *PrismaticJoint) SolvePositionConstraints(data *SolverData) bool {
	pA, pB := j.positions(data)

	mA, mB := j.bodyA.InvMass, j.bodyB.InvMass
	iA, iB := j.bodyA.InvI, j.bodyB.InvI

	qA := geom.NewRot(pA.A)
	rA, rB := j.arms(j.localAnchorA, j.localAnchorB, pA.A, pB.A)
	d := pB.C.Add(rB).Sub(pA.C).Sub(rA)

	axis := qA.Apply(j.localXAxisA)
	a1 := geom.Cross(d.Add(rA), axis)
	a2 := geom.Cross(rB, axis)
	perp := qA.Apply(j.localYAxisA)

	s1 := geom.Cross(d.Add(rA), perp)
	s2 := geom.Cross(rB, perp)

	C1 := mgl64.Vec2{perp.Dot(d), pB.A - pA.A - j.referenceAngle}

	linearError := math.Abs(C1[0])
	angularError := math.Abs(C1[1])

	active := false
	C2 := 0.0
	if j.enableLimit {
		translation := axis.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2*geom.LinearSlop:
			C2 = translation - j.lowerTranslation
			linearError = max(linearError, math.Abs(C2))
			active = true
		case translation <= j.lowerTranslation:
			C2 = min(translation-j.lowerTranslation, 0)
			linearError = max(linearError, j.lowerTranslation-translation)
			active = true
		case translation >= j.upperTranslation:
			C2 = max(translation-j.upperTranslation, 0)
			linearError = max(linearError, translation-j.upperTranslation)
			active = true
		}
	}

	k11 := mA + mB + iA*s1*s1 + iB*s2*s2
	k12 := iA*s1 + iB*s2
	k22 := iA + iB
	if k22 == 0 {
		// For fixed rotation
		k22 = 1
	}

	var impulse mgl64.Vec3
	if active {
		k13 := iA*s1*a1 + iB*s2*a2
		k23 := iA*a1 + iB*a2
		k33 := mA + mB + iA*a1*a1 + iB*a2*a2

		K := mgl64.Mat3{
			k11, k12, k13,
			k12, k22, k23,
			k13, k23, k33,
		}
		impulse = geom.Solve33(K, mgl64.Vec3{-C1[0], -C1[1], -C2})
	} else {
		K := mgl64.Mat2{k11, k12, k12, k22}
		impulse1 := K.Inv().Mul2x1(C1.Mul(-1))
		impulse = mgl64.Vec3{impulse1[0], impulse1[1], 0}
	}

	P := perp.Mul(impulse[0]).Add(axis.Mul(impulse[2]))
	LA := impulse[0]*s1 + impulse[1] + impulse[2]*a1
	LB := impulse[0]*s2 + impulse[1] + impulse[2]*a2

	pA.C = pA.C.Sub(P.Mul(mA))
	pA.A -= iA * LA
	pB.C = pB.C.Add(P.Mul(mB))
	pB.A += iB * LB

	j.storePositions(data, pA, pB)

	return linearError <= geom.LinearSlop && angularError <= geom.AngularSlop
}
