package feather2d

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

const (
	testDt                 = 1.0 / 60.0
	testVelocityIterations = 8
	testPositionIterations = 3
)

func newTestWorld(t testing.TB) *World {
	t.Helper()
	return NewWorld(DefaultWorldDef())
}

func stepN(t testing.TB, w *World, n int) {
	t.Helper()
	for range n {
		require.NoError(t, w.Step(testDt, testVelocityIterations, testPositionIterations))
	}
}

// createGround creates a static box whose top face lies on y = 0.
func createGround(t testing.TB, w *World) BodyID {
	t.Helper()
	def := DefaultBodyDef()
	def.Position = mgl64.Vec2{0, -0.5}
	id, err := w.CreateBody(def)
	require.NoError(t, err)

	_, err = w.CreateFixture(id, DefaultFixtureDef(shape.NewBox(20, 0.5)))
	require.NoError(t, err)
	return id
}

func createBox(t testing.TB, w *World, position mgl64.Vec2, halfSize float64) BodyID {
	t.Helper()
	def := DefaultBodyDef()
	def.Type = DynamicBody
	def.Position = position
	id, err := w.CreateBody(def)
	require.NoError(t, err)

	fd := DefaultFixtureDef(shape.NewBox(halfSize, halfSize))
	fd.Density = 1
	_, err = w.CreateFixture(id, fd)
	require.NoError(t, err)
	return id
}

func createCircle(t testing.TB, w *World, kind BodyType, position mgl64.Vec2, radius float64) BodyID {
	t.Helper()
	def := DefaultBodyDef()
	def.Type = kind
	def.Position = position
	id, err := w.CreateBody(def)
	require.NoError(t, err)

	circle, err := shape.NewCircle(mgl64.Vec2{}, radius)
	require.NoError(t, err)
	fd := DefaultFixtureDef(circle)
	fd.Density = 1
	_, err = w.CreateFixture(id, fd)
	require.NoError(t, err)
	return id
}

func TestWorld_BoxRestsOnGroundAndSleeps(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	id := createBox(t, w, mgl64.Vec2{0, 2}, 0.5)

	stepN(t, w, 600)

	box := w.Body(id)
	require.InDelta(t, 0.5, box.Position().Y(), 0.05)
	require.InDelta(t, 0, box.Position().X(), 0.01)
	require.InDelta(t, 0, box.Angle(), 0.01)

	if box.IsAwake() {
		t.Errorf("box should sleep after resting, sleep time %v", box.SleepTime())
	}
	if got := box.LinearVelocity(); got.Len() != 0 {
		t.Errorf("sleeping box velocity got %v, want zero", got)
	}
}

func TestWorld_BodyMass(t *testing.T) {
	w := newTestWorld(t)
	id := createBox(t, w, mgl64.Vec2{}, 0.5)
	b := w.Body(id)

	require.InDelta(t, 1.0, b.Mass(), 1e-12)
	require.InDelta(t, 1.0/6.0, b.Inertia(), 1e-12)

	require.NoError(t, b.SetMassData(shape.MassData{Mass: 2, I: 1}))
	require.InDelta(t, 2.0, b.Mass(), 1e-12)
	require.InDelta(t, 1.0, b.Inertia(), 1e-12)

	// Dynamic bodies without dense fixtures keep a unit mass.
	def := DefaultBodyDef()
	def.Type = DynamicBody
	bare, err := w.CreateBody(def)
	require.NoError(t, err)
	require.Equal(t, 1.0, w.Body(bare).Mass())

	// Static bodies have no mass.
	require.NoError(t, b.SetType(StaticBody))
	require.Equal(t, 0.0, b.Mass())
}

func TestWorld_StaleHandles(t *testing.T) {
	w := newTestWorld(t)
	id := createBox(t, w, mgl64.Vec2{}, 0.5)
	fixture := w.Body(id).Fixtures()[0].ID()

	require.NoError(t, w.DestroyBody(id))

	if w.Body(id) != nil {
		t.Errorf("destroyed body should not resolve")
	}
	if w.Fixture(fixture) != nil {
		t.Errorf("fixture of a destroyed body should not resolve")
	}

	err := w.DestroyBody(id)
	if !errors.Is(err, ErrInvalidBody) {
		t.Errorf("DestroyBody on a stale id got %v, want ErrInvalidBody", err)
	}

	_, err = w.CreateFixture(id, DefaultFixtureDef(shape.NewBox(1, 1)))
	if !errors.Is(err, ErrInvalidBody) {
		t.Errorf("CreateFixture on a stale id got %v, want ErrInvalidBody", err)
	}

	err = w.DestroyFixture(fixture)
	if !errors.Is(err, ErrInvalidFixture) {
		t.Errorf("DestroyFixture on a stale id got %v, want ErrInvalidFixture", err)
	}

	require.Equal(t, 0, w.BodyCount())
	require.Equal(t, 0, w.FixtureCount())
	require.Equal(t, 0, w.ProxyCount())
}

func TestWorld_LockedDuringCallbacks(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	createBox(t, w, mgl64.Vec2{0, 0.6}, 0.5)

	var lockedErr error
	calls := 0
	w.SetContactListener(ContactListenerFuncs{
		OnBegin: func(c *Contact) {
			calls++
			_, lockedErr = w.CreateBody(DefaultBodyDef())
		},
	})

	stepN(t, w, 10)

	require.Equal(t, 1, calls)
	if !errors.Is(lockedErr, ErrLocked) {
		t.Errorf("CreateBody from a callback got %v, want ErrLocked", lockedErr)
	}
	require.Equal(t, 2, w.BodyCount())
	require.False(t, w.IsLocked())
}

func TestWorld_WakePropagatesThroughContacts(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	bottom := createBox(t, w, mgl64.Vec2{0, 0.5}, 0.5)
	top := createBox(t, w, mgl64.Vec2{0, 1.5}, 0.5)

	stepN(t, w, 600)

	require.False(t, w.Body(bottom).IsAwake(), "bottom box should sleep")
	require.False(t, w.Body(top).IsAwake(), "top box should sleep")

	w.Body(top).ApplyLinearImpulseToCenter(mgl64.Vec2{0.5, 0}, true)
	stepN(t, w, 1)

	if !w.Body(bottom).IsAwake() {
		t.Errorf("touching bottom box should be woken up by the top box island")
	}
	require.Zero(t, w.Body(top).SleepTime())
}

func TestWorld_SetAwakeResetsSleepTime(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	id := createBox(t, w, mgl64.Vec2{0, 0.5}, 0.5)

	stepN(t, w, 20)
	b := w.Body(id)
	require.Greater(t, b.SleepTime(), 0.0)

	b.SetAwake(true)
	require.Zero(t, b.SleepTime())
}

func TestWorld_ContinuousCollisionStopsFastBody(t *testing.T) {
	tests := []struct {
		name       string
		continuous bool
		tunnels    bool
	}{
		{"continuous", true, false},
		{"discrete", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := DefaultWorldDef()
			def.Gravity = mgl64.Vec2{}
			def.ContinuousPhysics = tt.continuous
			w := NewWorld(def)

			wallDef := DefaultBodyDef()
			wallDef.Position = mgl64.Vec2{5, 0}
			wall, err := w.CreateBody(wallDef)
			require.NoError(t, err)
			_, err = w.CreateFixture(wall, DefaultFixtureDef(shape.NewBox(0.1, 2)))
			require.NoError(t, err)

			id := createCircle(t, w, DynamicBody, mgl64.Vec2{}, 0.1)
			// Just below the per-step translation clamp: the circle skips over the wall.
			w.Body(id).SetLinearVelocity(mgl64.Vec2{119, 0})

			stepN(t, w, 5)

			x := w.Body(id).Position().X()
			if got := x > 5; got != tt.tunnels {
				t.Errorf("circle x got %v, tunneling %v, want %v", x, got, tt.tunnels)
			}
		})
	}
}

func TestWorld_KinematicBodyIgnoresGravity(t *testing.T) {
	w := newTestWorld(t)
	id := createCircle(t, w, KinematicBody, mgl64.Vec2{}, 0.5)
	w.Body(id).SetLinearVelocity(mgl64.Vec2{1, 0})

	stepN(t, w, 60)

	p := w.Body(id).Position()
	require.InDelta(t, 1.0, p.X(), 1e-9)
	require.InDelta(t, 0.0, p.Y(), 1e-9)
}

func TestWorld_SetActive(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	id := createBox(t, w, mgl64.Vec2{0, 0.5}, 0.5)
	stepN(t, w, 2)

	require.Equal(t, 2, w.ProxyCount())
	require.Equal(t, 1, w.ContactCount())

	b := w.Body(id)
	before := b.Position()
	require.NoError(t, b.SetActive(false))
	require.Equal(t, 1, w.ProxyCount())
	require.Equal(t, 0, w.ContactCount())

	stepN(t, w, 10)
	require.Equal(t, before, b.Position(), "inactive body must not move")

	require.NoError(t, b.SetActive(true))
	stepN(t, w, 1)
	require.Equal(t, 1, w.ContactCount())
}

func TestWorld_Filtering(t *testing.T) {
	tests := []struct {
		name string
		a, b Filter
		want bool
	}{
		{"defaults", DefaultFilter(), DefaultFilter(), true},
		{"mask rejects", Filter{CategoryBits: 0x2, MaskBits: 0xFFFF}, Filter{CategoryBits: 0x1, MaskBits: 0x1}, false},
		{"negative group", Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -1}, Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -1}, false},
		{"positive group overrides mask", Filter{CategoryBits: 1, GroupIndex: 3}, Filter{CategoryBits: 1, GroupIndex: 3}, true},
		{"different groups use bits", Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -1}, Filter{CategoryBits: 1, MaskBits: 0xFFFF, GroupIndex: -2}, true},
	}

	for _, tt := range tests {
		if got := tt.a.shouldCollide(tt.b); got != tt.want {
			t.Errorf("%s: shouldCollide got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWorld_RefilterDestroysContact(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	id := createBox(t, w, mgl64.Vec2{0, 0.5}, 0.5)
	stepN(t, w, 1)
	require.Equal(t, 1, w.ContactCount())

	f := w.Body(id).Fixtures()[0]
	f.SetFilter(Filter{CategoryBits: 1, MaskBits: 0})
	stepN(t, w, 1)

	require.Equal(t, 0, w.ContactCount())
}

func TestWorld_JointPreventsCollision(t *testing.T) {
	def := DefaultWorldDef()
	def.Gravity = mgl64.Vec2{}
	w := NewWorld(def)

	a := createBox(t, w, mgl64.Vec2{0, 0}, 0.5)
	b := createBox(t, w, mgl64.Vec2{0.5, 0}, 0.5)

	_, err := w.CreateJoint(JointDef{
		BodyA:  a,
		BodyB:  b,
		Params: &constraint.RevoluteJointDef{LocalAnchorA: mgl64.Vec2{0.25, 0}, LocalAnchorB: mgl64.Vec2{-0.25, 0}},
	})
	require.NoError(t, err)

	stepN(t, w, 1)
	require.Equal(t, 0, w.ContactCount())
}

func TestWorld_PendulumJoint(t *testing.T) {
	w := newTestWorld(t)
	ground, err := w.CreateBody(DefaultBodyDef())
	require.NoError(t, err)
	bob := createCircle(t, w, DynamicBody, mgl64.Vec2{1, 0}, 0.1)

	id, err := w.CreateJoint(JointDef{
		BodyA:  ground,
		BodyB:  bob,
		Params: &constraint.RevoluteJointDef{LocalAnchorB: mgl64.Vec2{-1, 0}},
	})
	require.NoError(t, err)

	stepN(t, w, 30)

	p := w.Body(bob).Position()
	require.InDelta(t, 1.0, p.Len(), 0.02)
	require.Less(t, p.Y(), -0.5)

	anchorA, anchorB, err := w.JointAnchors(id)
	require.NoError(t, err)
	require.InDelta(t, 0, geom.Distance(anchorA, anchorB), 0.02)

	var buf bytes.Buffer
	require.NoError(t, w.DumpJoint(id, &buf))
	if !strings.HasPrefix(buf.String(), "type: revolute\n") {
		t.Errorf("dump got %q, want a revolute document", buf.String())
	}

	def, err := constraint.LoadDef(&buf)
	require.NoError(t, err)
	require.Equal(t, constraint.JointRevolute, def.JointType())
}

func TestWorld_CreateJointErrors(t *testing.T) {
	w := newTestWorld(t)
	a := createBox(t, w, mgl64.Vec2{}, 0.5)

	tests := []struct {
		name string
		def  JointDef
		want error
	}{
		{"no params", JointDef{BodyA: a, BodyB: a}, ErrInvalidJointDef},
		{"same body", JointDef{BodyA: a, BodyB: a, Params: &constraint.WeldJointDef{}}, ErrSameBody},
		{"stale body", JointDef{BodyA: a, BodyB: BodyID{Index: 7, Generation: 3}, Params: &constraint.WeldJointDef{}}, ErrInvalidBody},
		{"invalid params", JointDef{BodyA: a, BodyB: a, Params: &constraint.RopeJointDef{}}, ErrInvalidJointDef},
		{"gear without joints", JointDef{Params: &constraint.GearJointDef{Ratio: 1}}, ErrInvalidJoint},
	}

	for _, tt := range tests {
		_, err := w.CreateJoint(tt.def)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
	require.Equal(t, 0, w.JointCount())
}

type goodbyes struct {
	joints   []JointID
	fixtures []FixtureID
}

func (g *goodbyes) SayGoodbyeJoint(id JointID)     { g.joints = append(g.joints, id) }
func (g *goodbyes) SayGoodbyeFixture(id FixtureID) { g.fixtures = append(g.fixtures, id) }

func TestWorld_GearDestroyedWithDrivingJoint(t *testing.T) {
	listener := &goodbyes{}
	def := DefaultWorldDef()
	def.DestructionListener = listener
	w := NewWorld(def)

	ground, err := w.CreateBody(DefaultBodyDef())
	require.NoError(t, err)
	wheel1 := createCircle(t, w, DynamicBody, mgl64.Vec2{-2, 0}, 0.5)
	wheel2 := createCircle(t, w, DynamicBody, mgl64.Vec2{2, 0}, 1)

	joint1, err := w.CreateJoint(JointDef{BodyA: ground, BodyB: wheel1,
		Params: &constraint.RevoluteJointDef{LocalAnchorA: mgl64.Vec2{-2, 0}}})
	require.NoError(t, err)
	joint2, err := w.CreateJoint(JointDef{BodyA: ground, BodyB: wheel2,
		Params: &constraint.RevoluteJointDef{LocalAnchorA: mgl64.Vec2{2, 0}}})
	require.NoError(t, err)

	gear, err := w.CreateJoint(JointDef{Joint1: joint1, Joint2: joint2, Params: &constraint.GearJointDef{Ratio: 2}})
	require.NoError(t, err)

	bodyA, bodyB, err := w.JointBodies(gear)
	require.NoError(t, err)
	require.Equal(t, wheel1, bodyA)
	require.Equal(t, wheel2, bodyB)

	w.Body(wheel1).SetAngularVelocity(2)
	stepN(t, w, 30)

	// angle1 + ratio * angle2 stays constant.
	require.InDelta(t, 0, w.Body(wheel1).Angle()+2*w.Body(wheel2).Angle(), 0.01)

	require.NoError(t, w.DestroyJoint(joint1))
	require.Equal(t, 1, w.JointCount())
	require.Nil(t, w.Joint(gear))
	require.Equal(t, []JointID{gear}, listener.joints)

	require.NoError(t, w.DestroyBody(wheel2))
	require.Equal(t, 0, w.JointCount())
	require.Equal(t, []JointID{gear, joint2}, listener.joints)
	require.Len(t, listener.fixtures, 1)
}

func TestWorld_QueryAndRayCast(t *testing.T) {
	w := newTestWorld(t)
	near := createCircle(t, w, StaticBody, mgl64.Vec2{2, 0}, 0.5)
	createCircle(t, w, StaticBody, mgl64.Vec2{5, 0}, 0.5)

	var found []*Fixture
	w.QueryAABB(func(f *Fixture, childIndex int) bool {
		found = append(found, f)
		return true
	}, geom.AABB{LowerBound: mgl64.Vec2{1, -1}, UpperBound: mgl64.Vec2{3, 1}})

	require.Len(t, found, 1)
	require.Equal(t, near, found[0].Body().ID())

	var closest *Fixture
	var closestPoint mgl64.Vec2
	minFraction := math.MaxFloat64
	w.RayCast(func(f *Fixture, point, normal mgl64.Vec2, fraction float64) float64 {
		if fraction < minFraction {
			minFraction = fraction
			closest = f
			closestPoint = point
		}
		return fraction
	}, mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0})

	require.NotNil(t, closest)
	require.Equal(t, near, closest.Body().ID())
	require.InDelta(t, 1.5, closestPoint.X(), 1e-9)
	require.InDelta(t, 0.15, minFraction, 1e-9)
}

func TestWorld_ShiftOrigin(t *testing.T) {
	w := newTestWorld(t)
	id := createBox(t, w, mgl64.Vec2{10, 10}, 0.5)

	require.NoError(t, w.ShiftOrigin(mgl64.Vec2{10, 0}))

	b := w.Body(id)
	require.InDelta(t, 0, b.Position().X(), 1e-12)
	require.InDelta(t, 10, b.WorldCenter().Y(), 1e-12)

	aabb, ok := b.Fixtures()[0].AABB(0)
	require.True(t, ok)
	require.True(t, aabb.ContainsPoint(mgl64.Vec2{0, 10}))
}

func TestWorld_WorkersGiveSameResult(t *testing.T) {
	build := func(workers int) (*World, []BodyID) {
		def := DefaultWorldDef()
		def.Workers = workers
		w := NewWorld(def)

		var ids []BodyID
		for stack := range 4 {
			x := float64(stack) * 10
			groundDef := DefaultBodyDef()
			groundDef.Position = mgl64.Vec2{x, -0.5}
			ground, err := w.CreateBody(groundDef)
			require.NoError(t, err)
			_, err = w.CreateFixture(ground, DefaultFixtureDef(shape.NewBox(2, 0.5)))
			require.NoError(t, err)

			for level := range 3 {
				ids = append(ids, createBox(t, w, mgl64.Vec2{x, 0.5 + float64(level)*1.05}, 0.5))
			}
		}
		return w, ids
	}

	serial, serialIDs := build(1)
	parallel, parallelIDs := build(4)
	stepN(t, serial, 120)
	stepN(t, parallel, 120)

	for i := range serialIDs {
		require.Equal(t, serial.Body(serialIDs[i]).Transform(), parallel.Body(parallelIDs[i]).Transform())
	}
}

func TestWorld_ZeroTimeStep(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	id := createBox(t, w, mgl64.Vec2{0, 2}, 0.5)

	require.NoError(t, w.Step(0, testVelocityIterations, testPositionIterations))
	require.Equal(t, mgl64.Vec2{0, 2}, w.Body(id).Position())
}

func TestWorld_ProfileRecordsSteps(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	createBox(t, w, mgl64.Vec2{0, 2}, 0.5)

	stepN(t, w, 5)

	p := w.Profile()
	require.Equal(t, 5, p.Step.Count)
	require.Equal(t, 5, p.Collide.Count)
	require.GreaterOrEqual(t, p.Step.Max, p.Step.Min)
}

func BenchmarkWorldStep(b *testing.B) {
	w := NewWorld(DefaultWorldDef())
	createGround(b, w)
	for row := range 20 {
		for col := range 20 - row {
			x := float64(col) - float64(20-row)/2
			createBox(b, w, mgl64.Vec2{x * 1.05, 0.5 + float64(row)*1.05}, 0.5)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = w.Step(testDt, testVelocityIterations, testPositionIterations)
	}
}

func TestWorld_DestroyFixtureDestroysContacts(t *testing.T) {
	var ended int
	def := DefaultWorldDef()
	def.ContactListener = ContactListenerFuncs{OnEnd: func(*Contact) { ended++ }}
	w := NewWorld(def)
	createGround(t, w)

	bd := DefaultBodyDef()
	bd.Type = DynamicBody
	bd.Position = mgl64.Vec2{0, 0.45}
	id, err := w.CreateBody(bd)
	require.NoError(t, err)
	fd := DefaultFixtureDef(shape.NewBox(0.5, 0.5))
	fd.Density = 4
	fixture, err := w.CreateFixture(id, fd)
	require.NoError(t, err)
	require.InDelta(t, 4, w.Body(id).Mass(), 1e-12)

	stepN(t, w, 1)
	require.Equal(t, 1, w.ContactCount())
	require.True(t, w.Body(id).Contacts()[0].IsTouching())

	require.NoError(t, w.DestroyFixture(fixture))

	require.Equal(t, 0, w.ContactCount())
	require.Equal(t, 1, ended)
	require.Empty(t, w.Body(id).Contacts())
	require.Nil(t, w.Fixture(fixture))
	// Without fixtures a dynamic body falls back to a unit mass.
	require.InDelta(t, 1, w.Body(id).Mass(), 1e-12)
	require.NoError(t, w.contactManager.broadPhase.Tree().Validate())
}

func TestWorld_SetTransformCreatesContacts(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)
	id := createBox(t, w, mgl64.Vec2{0, 10}, 0.5)

	stepN(t, w, 1)
	require.Equal(t, 0, w.ContactCount())

	require.NoError(t, w.Body(id).SetTransform(mgl64.Vec2{0, 0.45}, 0))
	stepN(t, w, 1)

	contacts := w.Body(id).Contacts()
	require.Len(t, contacts, 1)
	require.True(t, contacts[0].IsTouching())
}

func TestWorld_ContactEdgesStayConsistent(t *testing.T) {
	w := newTestWorld(t)
	ground := createGround(t, w)
	var boxes []BodyID
	for i := range 4 {
		boxes = append(boxes, createBox(t, w, mgl64.Vec2{float64(i)*2 - 3, 0.45}, 0.5))
	}
	stepN(t, w, 1)
	require.Len(t, w.Body(ground).Contacts(), 4)

	require.NoError(t, w.DestroyBody(boxes[1]))

	w.Bodies(func(b *Body) bool {
		for i := range b.contacts {
			c := b.contactAt(i)
			require.NotNil(t, c)
			if got := c.edge(b); got != i {
				t.Errorf("contact edge of body %v got %d, want %d", b.ID(), got, i)
			}
		}
		return true
	})
	require.Len(t, w.Body(ground).Contacts(), 3)
	require.Equal(t, 3, w.ContactCount())
}
