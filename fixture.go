package feather2d

import (
	"github.com/akmonengine/feather2d/broadphase"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/internal/pool"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// FixtureID is a generation-checked handle to a fixture of a World.
type FixtureID pool.Handle

func (id FixtureID) IsNil() bool    { return pool.Handle(id).IsNil() }
func (id FixtureID) String() string { return pool.Handle(id).String() }

// Filter holds the collision filtering data of a fixture.
type Filter struct {
	// CategoryBits are the collision categories of the fixture.
	CategoryBits uint16
	// MaskBits are the categories this fixture accepts to collide with.
	MaskBits uint16
	// GroupIndex overrides the bits: fixtures sharing a positive group always
	// collide, fixtures sharing a negative group never do.
	GroupIndex int16
}

// DefaultFilter collides with everything.
func DefaultFilter() Filter {
	return Filter{CategoryBits: 0x0001, MaskBits: 0xFFFF}
}

// shouldCollide is the default filtering rule.
func (f Filter) shouldCollide(other Filter) bool {
	if f.GroupIndex == other.GroupIndex && f.GroupIndex != 0 {
		return f.GroupIndex > 0
	}
	return f.MaskBits&other.CategoryBits != 0 && f.CategoryBits&other.MaskBits != 0
}

// FixtureDef holds the data to construct a fixture. Start from DefaultFixtureDef.
type FixtureDef struct {
	Shape shape.Shape

	Friction    float64
	Restitution float64
	// Density in kg/m^2; zero density gives a massless fixture.
	Density float64
	// IsSensor fixtures detect overlaps but never produce a collision response.
	IsSensor bool

	Filter Filter

	UserData any
}

// DefaultFixtureDef returns a fixture definition for s with the usual friction.
func DefaultFixtureDef(s shape.Shape) FixtureDef {
	return FixtureDef{
		Shape:    s,
		Friction: 0.2,
		Filter:   DefaultFilter(),
	}
}

// FixtureProxy links a fixture child to its broad-phase proxy.
type FixtureProxy struct {
	AABB       geom.AABB
	Fixture    *Fixture
	ChildIndex int
	ProxyID    int
}

// Fixture attaches a shape to a body for collision detection.
type Fixture struct {
	id   FixtureID
	body *Body

	shape       shape.Shape
	density     float64
	friction    float64
	restitution float64
	filter      Filter
	sensor      bool

	proxies []FixtureProxy

	// position in body.fixtures
	bodyIndex int

	UserData any
}

func newFixture(body *Body, def *FixtureDef) *Fixture {
	return &Fixture{
		body:        body,
		shape:       def.Shape,
		density:     def.Density,
		friction:    def.Friction,
		restitution: def.Restitution,
		filter:      def.Filter,
		sensor:      def.IsSensor,
		UserData:    def.UserData,
	}
}

func (f *Fixture) ID() FixtureID           { return f.id }
func (f *Fixture) Body() *Body             { return f.body }
func (f *Fixture) Shape() shape.Shape      { return f.shape }
func (f *Fixture) Type() shape.Type        { return f.shape.Type() }
func (f *Fixture) Density() float64        { return f.density }
func (f *Fixture) Friction() float64       { return f.friction }
func (f *Fixture) Restitution() float64    { return f.restitution }
func (f *Fixture) Filter() Filter          { return f.filter }
func (f *Fixture) IsSensor() bool          { return f.sensor }
func (f *Fixture) Proxies() []FixtureProxy { return f.proxies }

// SetDensity changes the density. Call Body.ResetMassData to apply it.
func (f *Fixture) SetDensity(density float64) { f.density = density }

// SetFriction does not change the friction of existing contacts.
func (f *Fixture) SetFriction(friction float64) { f.friction = friction }

// SetRestitution does not change the restitution of existing contacts.
func (f *Fixture) SetRestitution(restitution float64) { f.restitution = restitution }

// SetSensor toggles the sensor flag and wakes the body.
func (f *Fixture) SetSensor(sensor bool) {
	if sensor != f.sensor {
		f.body.SetAwake(true)
		f.sensor = sensor
	}
}

// SetFilter changes the filtering data. Contacts are updated on the next step.
func (f *Fixture) SetFilter(filter Filter) {
	f.filter = filter
	f.Refilter()
}

// Refilter flags the contacts of the fixture for filtering and makes the
// broad phase look for new pairs. Call it when the filtering rules change.
func (f *Fixture) Refilter() {
	for c := range f.body.contactEdges() {
		if c.fixtureA == f || c.fixtureB == f {
			c.flagForFiltering()
		}
	}

	w := f.body.world
	if w == nil {
		return
	}

	bp := w.contactManager.broadPhase
	for i := range f.proxies {
		bp.TouchProxy(f.proxies[i].ProxyID)
	}
}

// TestPoint tests a world point for containment in the fixture.
func (f *Fixture) TestPoint(p mgl64.Vec2) bool {
	return f.shape.TestPoint(f.body.xf, p)
}

// RayCast casts a ray against a child of the fixture shape.
func (f *Fixture) RayCast(input geom.RayCastInput, childIndex int) (geom.RayCastOutput, bool) {
	return f.shape.RayCast(input, f.body.xf, childIndex)
}

// MassData returns the mass properties of the fixture for its density.
func (f *Fixture) MassData() shape.MassData {
	return f.shape.ComputeMass(f.density)
}

// AABB returns the fat AABB of a child proxy. Inactive bodies have none.
func (f *Fixture) AABB(childIndex int) (geom.AABB, bool) {
	if childIndex < 0 || childIndex >= len(f.proxies) {
		return geom.AABB{}, false
	}
	return f.proxies[childIndex].AABB, true
}

// createProxies inserts one proxy per shape child.
func (f *Fixture) createProxies(bp *broadphase.BroadPhase[*FixtureProxy], xf geom.Transform) {
	count := f.shape.ChildCount()
	f.proxies = make([]FixtureProxy, count)

	for i := range f.proxies {
		proxy := &f.proxies[i]
		proxy.AABB = f.shape.ComputeAABB(xf, i)
		proxy.Fixture = f
		proxy.ChildIndex = i
		proxy.ProxyID = bp.CreateProxy(proxy.AABB, proxy)
	}
}

func (f *Fixture) destroyProxies(bp *broadphase.BroadPhase[*FixtureProxy]) {
	for i := range f.proxies {
		bp.DestroyProxy(f.proxies[i].ProxyID)
	}
	f.proxies = nil
}

// synchronize moves the proxies to cover the shape at both transforms.
func (f *Fixture) synchronize(bp *broadphase.BroadPhase[*FixtureProxy], xf1, xf2 geom.Transform) {
	for i := range f.proxies {
		proxy := &f.proxies[i]

		// Compute an AABB that covers the swept shape (may miss some rotation effect).
		aabb1 := f.shape.ComputeAABB(xf1, proxy.ChildIndex)
		aabb2 := f.shape.ComputeAABB(xf2, proxy.ChildIndex)
		proxy.AABB = aabb1.Combine(aabb2)

		displacement := aabb2.Center().Sub(aabb1.Center())
		bp.MoveProxy(proxy.ProxyID, proxy.AABB, displacement)
	}
}
