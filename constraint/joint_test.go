package constraint

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

const testDt = 1.0 / 60.0

// rig is a minimal island: body 0 is static ground, the others are unit
// mass disks with unit inertia.
type rig struct {
	refs       []BodyRef
	positions  []Position
	velocities []Velocity
	gravity    mgl64.Vec2
}

func newRig(bodies ...mgl64.Vec2) *rig {
	r := &rig{gravity: mgl64.Vec2{0, -10}}
	r.refs = append(r.refs, BodyRef{Index: 0})
	r.positions = append(r.positions, Position{})
	r.velocities = append(r.velocities, Velocity{})
	for i, c := range bodies {
		r.refs = append(r.refs, BodyRef{Index: i + 1, InvMass: 1, InvI: 1})
		r.positions = append(r.positions, Position{C: c})
		r.velocities = append(r.velocities, Velocity{})
	}
	return r
}

func (r *rig) transform(i int) geom.Transform {
	return geom.NewTransform(r.positions[i].C, r.positions[i].A)
}

// step integrates the rig the way an island does.
func (r *rig) step(joints ...Joint) {
	for i, ref := range r.refs {
		if ref.InvMass > 0 {
			r.velocities[i].V = r.velocities[i].V.Add(r.gravity.Mul(testDt))
		}
	}

	data := &SolverData{
		Step: TimeStep{
			Dt:                 testDt,
			InvDt:              1 / testDt,
			DtRatio:            1,
			VelocityIterations: 8,
			PositionIterations: 3,
			WarmStarting:       true,
		},
		Positions:  r.positions,
		Velocities: r.velocities,
	}

	for _, j := range joints {
		j.InitVelocityConstraints(data)
	}
	for it := 0; it < data.Step.VelocityIterations; it++ {
		for _, j := range joints {
			j.SolveVelocityConstraints(data)
		}
	}

	for i := range r.positions {
		r.positions[i].C = r.positions[i].C.Add(r.velocities[i].V.Mul(testDt))
		r.positions[i].A += testDt * r.velocities[i].W
	}

	for it := 0; it < data.Step.PositionIterations; it++ {
		ok := true
		for _, j := range joints {
			ok = j.SolvePositionConstraints(data) && ok
		}
		if ok {
			break
		}
	}
}

func (r *rig) run(steps int, joints ...Joint) {
	for i := 0; i < steps; i++ {
		r.step(joints...)
	}
}

func bind(r *rig, j Joint, a, b int) Joint {
	j.SetBodies(r.refs[a], r.refs[b])
	return j
}

func TestRevoluteJointPendulum(t *testing.T) {
	r := newRig(mgl64.Vec2{2, 0})
	j := bind(r, NewRevoluteJoint(&RevoluteJointDef{LocalAnchorB: mgl64.Vec2{-2, 0}}, false), 0, 1)

	// Close to the bottom of the swing.
	r.run(40, j)

	gap := j.AnchorB(r.transform(1)).Sub(j.AnchorA(r.transform(0)))
	require.Less(t, gap.Len(), 0.01)
	require.Less(t, r.positions[1].C.Y(), -1.0)
	require.InDelta(t, 2.0, r.positions[1].C.Len(), 0.01)
}

func TestRevoluteJointLimit(t *testing.T) {
	r := newRig(mgl64.Vec2{2, 0})
	rev := NewRevoluteJoint(&RevoluteJointDef{
		LocalAnchorB: mgl64.Vec2{-2, 0},
		EnableLimit:  true,
		LowerAngle:   -0.25 * math.Pi,
		UpperAngle:   0,
	}, false)
	j := bind(r, rev, 0, 1)

	r.run(180, j)

	angle := rev.Angle(r.positions[0].A, r.positions[1].A)
	require.GreaterOrEqual(t, angle, -0.25*math.Pi-2*geom.AngularSlop)
}

func TestRevoluteJointMotor(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0})
	r.gravity = mgl64.Vec2{}
	rev := NewRevoluteJoint(&RevoluteJointDef{
		EnableMotor:    true,
		MotorSpeed:     2,
		MaxMotorTorque: 1000,
	}, false)
	j := bind(r, rev, 0, 1)

	r.run(10, j)

	require.InDelta(t, 2.0, r.velocities[1].W, 1e-6)
}

func TestDistanceJointRod(t *testing.T) {
	r := newRig(mgl64.Vec2{0, -2})
	r.velocities[1].V = mgl64.Vec2{4, 0}
	j := bind(r, NewDistanceJoint(&DistanceJointDef{Length: 2}, false), 0, 1)

	r.run(120, j)

	require.InDelta(t, 2.0, r.positions[1].C.Len(), 0.01)
}

func TestDistanceJointSpring(t *testing.T) {
	r := newRig(mgl64.Vec2{0, -1})
	stiffness, damping := LinearStiffness(2, 1, 0, 1)
	j := bind(r, NewDistanceJoint(&DistanceJointDef{
		Length:    1,
		Stiffness: stiffness,
		Damping:   damping,
	}, false), 0, 1)

	r.run(600, j)

	// At rest the spring holds the weight: k * stretch = m * g.
	require.InDelta(t, 1+10/stiffness, r.positions[1].C.Len(), 0.01)
}

func TestRopeJointMaxLength(t *testing.T) {
	r := newRig(mgl64.Vec2{1, 0})
	rope := NewRopeJoint(&RopeJointDef{MaxLength: 2}, false)
	j := bind(r, rope, 0, 1)

	r.step(j)
	require.False(t, rope.AtUpperLimit())

	r.run(180, j)
	require.LessOrEqual(t, r.positions[1].C.Len(), 2+2*geom.LinearSlop)
	require.Greater(t, r.positions[1].C.Len(), 1.5)
}

func TestPrismaticJointStaysOnAxis(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0})
	r.gravity = mgl64.Vec2{3, -10}
	pri := NewPrismaticJoint(NewPrismaticJointDef(), false)
	j := bind(r, pri, 0, 1)

	r.run(60, j)

	require.InDelta(t, 0.0, r.positions[1].C.Y(), 0.01)
	require.InDelta(t, 0.0, r.positions[1].A, 0.01)
	require.Greater(t, pri.Translation(r.transform(0), r.transform(1)), 0.5)
}

func TestPrismaticJointLimit(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0})
	r.gravity = mgl64.Vec2{10, 0}
	def := NewPrismaticJointDef()
	def.EnableLimit = true
	def.LowerTranslation = -1
	def.UpperTranslation = 1
	pri := NewPrismaticJoint(def, false)
	j := bind(r, pri, 0, 1)

	r.run(120, j)

	require.InDelta(t, 1.0, pri.Translation(r.transform(0), r.transform(1)), 0.02)
}

func TestWeldJointHolds(t *testing.T) {
	r := newRig(mgl64.Vec2{1, 0})
	j := bind(r, NewWeldJoint(&WeldJointDef{LocalAnchorB: mgl64.Vec2{-1, 0}}, false), 0, 1)

	r.run(120, j)

	require.InDelta(t, 1.0, r.positions[1].C.X(), 0.02)
	require.InDelta(t, 0.0, r.positions[1].C.Y(), 0.02)
	require.InDelta(t, 0.0, r.positions[1].A, 0.02)
}

func TestWheelJointSuspension(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0})
	def := NewWheelJointDef()
	def.Stiffness = 100
	def.Damping = 20
	wheel := NewWheelJoint(def, false)
	j := bind(r, wheel, 0, 1)

	r.run(600, j)

	// The spring sags by m * g / k along the vertical axis.
	require.InDelta(t, -0.1, r.positions[1].C.Y(), 0.005)
	require.InDelta(t, 0.0, r.positions[1].C.X(), 1e-6)
}

func TestMouseJointReachesTarget(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0})
	r.gravity = mgl64.Vec2{}
	stiffness, damping := LinearStiffness(5, 0.7, 1, 0)
	mouse := NewMouseJoint(&MouseJointDef{
		Target:    mgl64.Vec2{0, 0},
		MaxForce:  1000,
		Stiffness: stiffness,
		Damping:   damping,
	}, r.transform(1), false)
	j := bind(r, mouse, 0, 1)

	woken := 0
	mouse.SetWake(func() { woken++ })
	mouse.SetTarget(mgl64.Vec2{1, 0.5})
	require.Equal(t, 1, woken)
	mouse.SetTarget(mgl64.Vec2{1, 0.5})
	require.Equal(t, 1, woken)

	r.run(180, j)

	require.InDelta(t, 1.0, r.positions[1].C.X(), 0.01)
	require.InDelta(t, 0.5, r.positions[1].C.Y(), 0.01)

	mouse.ShiftOrigin(mgl64.Vec2{1, 0})
	require.Equal(t, mgl64.Vec2{0, 0.5}, mouse.Target())
}

func TestMotorJointReachesOffset(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0})
	r.gravity = mgl64.Vec2{}
	def := NewMotorJointDef()
	def.LinearOffset = mgl64.Vec2{1, 0.5}
	def.AngularOffset = 0.3
	def.MaxForce = 1000
	def.MaxTorque = 1000
	j := bind(r, NewMotorJoint(def, false), 0, 1)

	r.run(120, j)

	require.InDelta(t, 1.0, r.positions[1].C.X(), 0.01)
	require.InDelta(t, 0.5, r.positions[1].C.Y(), 0.01)
	require.InDelta(t, 0.3, r.positions[1].A, 0.01)
}

func TestFrictionJointStopsBody(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0})
	r.gravity = mgl64.Vec2{}
	r.velocities[1] = Velocity{V: mgl64.Vec2{5, 0}, W: 3}
	j := bind(r, NewFrictionJoint(&FrictionJointDef{MaxForce: 10, MaxTorque: 10}, false), 0, 1)

	// 5 m/s at 10 m/s^2 takes half a second.
	r.run(15, j)
	require.InDelta(t, 2.5, r.velocities[1].V.X(), 0.01)

	r.run(30, j)
	require.InDelta(t, 0.0, r.velocities[1].V.Len(), 1e-9)
	require.InDelta(t, 0.0, r.velocities[1].W, 1e-9)
}

func TestPulleyJointConservesRope(t *testing.T) {
	r := newRig(mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0})
	r.refs[2].InvMass = 0.5
	pulley := NewPulleyJoint(&PulleyJointDef{
		GroundAnchorA: mgl64.Vec2{-1, 2},
		GroundAnchorB: mgl64.Vec2{1, 2},
		LengthA:       2,
		LengthB:       2,
		Ratio:         1,
	}, false)
	j := bind(r, pulley, 1, 2)

	r.run(60, j)

	lengthA := pulley.AnchorA(r.transform(1)).Sub(pulley.GroundAnchorA()).Len()
	lengthB := pulley.AnchorB(r.transform(2)).Sub(pulley.GroundAnchorB()).Len()
	require.InDelta(t, 4.0, lengthA+lengthB, 0.01)

	// The heavier body B goes down.
	require.Less(t, r.positions[2].C.Y(), r.positions[1].C.Y())
}

func TestGearJointRatio(t *testing.T) {
	r := newRig(mgl64.Vec2{0, 0}, mgl64.Vec2{3, 0})
	r.gravity = mgl64.Vec2{}

	rev1 := bind(r, NewRevoluteJoint(&RevoluteJointDef{}, false), 0, 1)
	rev2 := bind(r, NewRevoluteJoint(&RevoluteJointDef{LocalAnchorA: mgl64.Vec2{3, 0}}, false), 0, 2)

	gear, err := NewGearJoint(&GearJointDef{Ratio: 2}, rev1, rev2,
		r.transform(1), r.transform(2), r.transform(0), r.transform(0), false)
	require.NoError(t, err)
	bind(r, gear, 1, 2)
	gear.SetCarriers(r.refs[0], r.refs[0])

	r.velocities[1].W = 1
	r.run(60, rev1, rev2, gear)

	angle1 := r.positions[1].A
	angle2 := r.positions[2].A
	require.NotZero(t, angle1)
	require.InDelta(t, 0.0, angle1+2*angle2, 1e-3)
}

func TestGearJointRejectsOtherJoints(t *testing.T) {
	rev := NewRevoluteJoint(&RevoluteJointDef{}, false)
	dist := NewDistanceJoint(NewDistanceJointDef(), false)
	xf := geom.IdentityTransform()

	_, err := NewGearJoint(&GearJointDef{Ratio: 1}, rev, dist, xf, xf, xf, xf, false)
	if !errors.Is(err, ErrInvalidDef) {
		t.Errorf("NewGearJoint got %v, want %v", err, ErrInvalidDef)
	}
}

func TestJointDefValidate(t *testing.T) {
	tests := []struct {
		name string
		def  JointDef
		ok   bool
	}{
		{"revolute", &RevoluteJointDef{}, true},
		{"revolute inverted limits", &RevoluteJointDef{LowerAngle: 1, UpperAngle: -1}, false},
		{"distance", NewDistanceJointDef(), true},
		{"distance negative stiffness", &DistanceJointDef{Length: 1, Stiffness: -1}, false},
		{"prismatic zero axis", &PrismaticJointDef{}, false},
		{"pulley zero ratio", &PulleyJointDef{}, false},
		{"mouse NaN target", &MouseJointDef{Target: mgl64.Vec2{math.NaN(), 0}}, false},
		{"gear zero ratio", &GearJointDef{}, false},
		{"wheel", NewWheelJointDef(), true},
		{"weld negative damping", &WeldJointDef{Damping: -1}, false},
		{"friction", &FrictionJointDef{MaxForce: 1}, true},
		{"rope too short", &RopeJointDef{}, false},
		{"motor correction above one", &MotorJointDef{CorrectionFactor: 2}, false},
		{"motor", NewMotorJointDef(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if got := err == nil; got != tt.ok {
				t.Errorf("Validate() got %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidDef) {
				t.Errorf("Validate() got %v, want wrapped %v", err, ErrInvalidDef)
			}
		})
	}
}

func TestDumpLoadDef(t *testing.T) {
	rev := NewRevoluteJoint(&RevoluteJointDef{
		LocalAnchorA:   mgl64.Vec2{1, 2},
		EnableLimit:    true,
		LowerAngle:     -0.5,
		UpperAngle:     0.5,
		MaxMotorTorque: 10,
	}, false)

	var buf bytes.Buffer
	require.NoError(t, Dump(rev, &buf))
	require.True(t, strings.HasPrefix(buf.String(), "type: revolute\n"), buf.String())

	def, err := LoadDef(&buf)
	require.NoError(t, err)
	require.Equal(t, rev.Def(), def)
}

func TestLoadDefRejectsUnknownType(t *testing.T) {
	_, err := LoadDef(strings.NewReader("type: spring\nparams: {}\n"))
	if !errors.Is(err, ErrInvalidDef) {
		t.Errorf("LoadDef got %v, want %v", err, ErrInvalidDef)
	}
}
