package feather2d

import (
	"fmt"
	"iter"
	"log/slog"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/internal/pool"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// StaticBody has zero mass and zero velocity, and may be moved manually.
	StaticBody BodyType = iota

	// KinematicBody has zero mass and a velocity set by the user; it is
	// moved by the solver but ignores forces and collisions.
	KinematicBody

	// DynamicBody has a positive mass and is moved by forces and collisions.
	DynamicBody
)

func (t BodyType) String() string {
	switch t {
	case StaticBody:
		return "static"
	case KinematicBody:
		return "kinematic"
	case DynamicBody:
		return "dynamic"
	}
	return "unknown"
}

// BodyID is a generation-checked handle to a body of a World.
type BodyID pool.Handle

func (id BodyID) IsNil() bool    { return pool.Handle(id).IsNil() }
func (id BodyID) String() string { return pool.Handle(id).String() }

// BodyDef holds the data to construct a body. Start from DefaultBodyDef.
type BodyDef struct {
	Type BodyType

	// Position is the world position of the body origin.
	Position mgl64.Vec2
	// Angle is the world angle in radians.
	Angle float64

	// LinearVelocity of the body origin in world coordinates.
	LinearVelocity  mgl64.Vec2
	AngularVelocity float64

	// Damping reduces velocity: v *= 1 / (1 + dt * damping).
	LinearDamping  float64
	AngularDamping float64

	AllowSleep    bool
	Awake         bool
	FixedRotation bool

	// Bullet bodies get continuous collision against dynamic bodies too.
	// Use it sparingly for fast moving bodies.
	Bullet bool

	// Active bodies take part in collision and dynamics.
	Active bool

	GravityScale float64

	UserData any
}

// DefaultBodyDef returns an awake, active static body definition at the origin.
func DefaultBodyDef() BodyDef {
	return BodyDef{
		AllowSleep:   true,
		Awake:        true,
		Active:       true,
		GravityScale: 1,
	}
}

func (d *BodyDef) validate() error {
	if !geom.IsValid(d.Position) || !geom.IsValid(d.LinearVelocity) ||
		!isFinite(d.Angle) || !isFinite(d.AngularVelocity) || !isFinite(d.GravityScale) ||
		!isFinite(d.LinearDamping) || !isFinite(d.AngularDamping) ||
		d.LinearDamping < 0 || d.AngularDamping < 0 {
		return fmt.Errorf("body definition: %w", ErrInvalidBody)
	}
	switch d.Type {
	case StaticBody, KinematicBody, DynamicBody:
		return nil
	}
	return fmt.Errorf("body type %d: %w", d.Type, ErrInvalidBody)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type bodyFlags uint16

const (
	bodyIsland bodyFlags = 1 << iota
	bodyAwake
	bodyAutoSleep
	bodyBullet
	bodyFixedRotation
	bodyActive
)

// Body is a rigid body. Bodies are created and destroyed by a World.
type Body struct {
	id    BodyID
	world *World
	kind  BodyType
	flags bodyFlags

	islandIndex int

	xf    geom.Transform // the body origin transform
	sweep geom.Sweep     // the swept motion for CCD

	linearVelocity  mgl64.Vec2
	angularVelocity float64

	force  mgl64.Vec2
	torque float64

	fixtures []*Fixture
	// Adjacency by handle. Each contact and joint stores its index in
	// both bodies' lists, for swap-remove.
	contacts []pool.Handle
	joints   []JointID

	mass, invMass float64
	// Rotational inertia about the center of mass.
	inertia, invI float64

	linearDamping  float64
	angularDamping float64
	gravityScale   float64

	sleepTime float64

	UserData any
}

func newBody(def *BodyDef, world *World) *Body {
	b := &Body{
		world:           world,
		kind:            def.Type,
		xf:              geom.NewTransform(def.Position, def.Angle),
		linearVelocity:  def.LinearVelocity,
		angularVelocity: def.AngularVelocity,
		linearDamping:   def.LinearDamping,
		angularDamping:  def.AngularDamping,
		gravityScale:    def.GravityScale,
		UserData:        def.UserData,
	}

	if def.Bullet {
		b.flags |= bodyBullet
	}
	if def.FixedRotation {
		b.flags |= bodyFixedRotation
	}
	if def.AllowSleep {
		b.flags |= bodyAutoSleep
	}
	if def.Awake && def.Type != StaticBody {
		b.flags |= bodyAwake
	}
	if def.Active {
		b.flags |= bodyActive
	}

	b.sweep = geom.Sweep{
		C0: b.xf.P,
		C:  b.xf.P,
		A0: def.Angle,
		A:  def.Angle,
	}

	if b.kind == DynamicBody {
		b.mass = 1
		b.invMass = 1
	}

	return b
}

func (b *Body) ID() BodyID     { return b.id }
func (b *Body) Type() BodyType { return b.kind }

// Transform returns the body origin transform.
func (b *Body) Transform() geom.Transform { return b.xf }

// Position returns the world position of the body origin.
func (b *Body) Position() mgl64.Vec2 { return b.xf.P }

// Angle returns the world angle in radians.
func (b *Body) Angle() float64 { return b.sweep.A }

// WorldCenter returns the world position of the center of mass.
func (b *Body) WorldCenter() mgl64.Vec2 { return b.sweep.C }

// LocalCenter returns the local position of the center of mass.
func (b *Body) LocalCenter() mgl64.Vec2 { return b.sweep.LocalCenter }

func (b *Body) LinearVelocity() mgl64.Vec2 { return b.linearVelocity }
func (b *Body) AngularVelocity() float64   { return b.angularVelocity }

// SetLinearVelocity sets the velocity of the center of mass. Static bodies ignore it.
func (b *Body) SetLinearVelocity(v mgl64.Vec2) {
	if b.kind == StaticBody {
		return
	}
	if v.Dot(v) > 0 {
		b.SetAwake(true)
	}
	b.linearVelocity = v
}

// SetAngularVelocity sets the angular velocity in radians per second.
func (b *Body) SetAngularVelocity(w float64) {
	if b.kind == StaticBody {
		return
	}
	if w*w > 0 {
		b.SetAwake(true)
	}
	b.angularVelocity = w
}

// ApplyForce applies a world force at a world point. A force off the
// center of mass also produces a torque.
func (b *Body) ApplyForce(force, point mgl64.Vec2, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.IsAwake() {
		b.SetAwake(true)
	}
	// Don't accumulate a force if the body is sleeping.
	if b.IsAwake() {
		b.force = b.force.Add(force)
		b.torque += geom.Cross(point.Sub(b.sweep.C), force)
	}
}

// ApplyForceToCenter applies a world force at the center of mass.
func (b *Body) ApplyForceToCenter(force mgl64.Vec2, wake bool) {
	b.ApplyForce(force, b.sweep.C, wake)
}

// ApplyTorque applies a torque about the center of mass.
func (b *Body) ApplyTorque(torque float64, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.IsAwake() {
		b.SetAwake(true)
	}
	if b.IsAwake() {
		b.torque += torque
	}
}

// ApplyLinearImpulse applies an impulse at a world point, changing the velocity immediately.
func (b *Body) ApplyLinearImpulse(impulse, point mgl64.Vec2, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.IsAwake() {
		b.SetAwake(true)
	}
	if b.IsAwake() {
		b.linearVelocity = b.linearVelocity.Add(impulse.Mul(b.invMass))
		b.angularVelocity += b.invI * geom.Cross(point.Sub(b.sweep.C), impulse)
	}
}

// ApplyLinearImpulseToCenter applies an impulse at the center of mass.
func (b *Body) ApplyLinearImpulseToCenter(impulse mgl64.Vec2, wake bool) {
	b.ApplyLinearImpulse(impulse, b.sweep.C, wake)
}

// ApplyAngularImpulse applies an angular impulse in kg*m*m/s.
func (b *Body) ApplyAngularImpulse(impulse float64, wake bool) {
	if b.kind != DynamicBody {
		return
	}
	if wake && !b.IsAwake() {
		b.SetAwake(true)
	}
	if b.IsAwake() {
		b.angularVelocity += b.invI * impulse
	}
}

// Mass returns the total mass in kilograms.
func (b *Body) Mass() float64 { return b.mass }

// Inertia returns the rotational inertia about the body origin.
func (b *Body) Inertia() float64 {
	return b.inertia + b.mass*b.sweep.LocalCenter.Dot(b.sweep.LocalCenter)
}

// MassData returns the mass, local center and inertia about the body origin.
func (b *Body) MassData() shape.MassData {
	return shape.MassData{Mass: b.mass, Center: b.sweep.LocalCenter, I: b.Inertia()}
}

// SetMassData overrides the mass properties computed from the fixtures.
// The inertia is about the body origin. Only dynamic bodies are affected.
func (b *Body) SetMassData(md shape.MassData) error {
	if err := b.world.checkUnlocked("SetMassData"); err != nil {
		return err
	}
	if b.kind != DynamicBody {
		return nil
	}
	if !isFinite(md.Mass) || !isFinite(md.I) || !geom.IsValid(md.Center) {
		return fmt.Errorf("mass data: %w", ErrInvalidBody)
	}

	mass := md.Mass
	if mass <= 0 {
		mass = 1
	}

	inertia, invI := 0.0, 0.0
	if md.I > 0 && b.flags&bodyFixedRotation == 0 {
		inertia = md.I - mass*md.Center.Dot(md.Center)
		if inertia <= 0 {
			return fmt.Errorf("mass data inertia below the center of mass: %w", ErrInvalidBody)
		}
		invI = 1 / inertia
	}

	b.mass, b.invMass = mass, 1/mass
	b.inertia, b.invI = inertia, invI
	b.moveCenter(md.Center)
	return nil
}

// ResetMassData recomputes the mass properties from the fixture densities.
// It is called automatically when fixtures are added or removed.
func (b *Body) ResetMassData() {
	b.mass, b.invMass = 0, 0
	b.inertia, b.invI = 0, 0
	b.sweep.LocalCenter = mgl64.Vec2{}

	// Static and kinematic bodies have zero mass.
	if b.kind != DynamicBody {
		b.sweep.C0 = b.xf.P
		b.sweep.C = b.xf.P
		b.sweep.A0 = b.sweep.A
		return
	}

	// Accumulate mass over all fixtures.
	localCenter := mgl64.Vec2{}
	inertia := 0.0
	for _, f := range b.fixtures {
		if f.density == 0 {
			continue
		}
		md := f.MassData()
		b.mass += md.Mass
		localCenter = localCenter.Add(md.Center.Mul(md.Mass))
		inertia += md.I
	}

	// Compute center of mass.
	if b.mass > 0 {
		b.invMass = 1 / b.mass
		localCenter = localCenter.Mul(b.invMass)
	} else {
		// Force all dynamic bodies to have a positive mass.
		b.mass = 1
		b.invMass = 1
	}

	if inertia > 0 && b.flags&bodyFixedRotation == 0 {
		// Center the inertia about the center of mass.
		b.inertia = inertia - b.mass*localCenter.Dot(localCenter)
		b.invI = invOrZero(b.inertia)
	}

	b.moveCenter(localCenter)
}

// moveCenter moves the center of mass, keeping the velocity of the body origin.
func (b *Body) moveCenter(localCenter mgl64.Vec2) {
	oldCenter := b.sweep.C
	b.sweep.LocalCenter = localCenter
	b.sweep.C = b.xf.Apply(localCenter)
	b.sweep.C0 = b.sweep.C

	b.linearVelocity = b.linearVelocity.Add(geom.CrossSV(b.angularVelocity, b.sweep.C.Sub(oldCenter)))
}

func invOrZero(x float64) float64 {
	if x > 0 {
		return 1 / x
	}
	return 0
}

// WorldPoint converts a body point to world coordinates.
func (b *Body) WorldPoint(localPoint mgl64.Vec2) mgl64.Vec2 { return b.xf.Apply(localPoint) }

// WorldVector rotates a body vector to world coordinates.
func (b *Body) WorldVector(localVector mgl64.Vec2) mgl64.Vec2 { return b.xf.Q.Apply(localVector) }

// LocalPoint converts a world point to body coordinates.
func (b *Body) LocalPoint(worldPoint mgl64.Vec2) mgl64.Vec2 { return b.xf.ApplyInv(worldPoint) }

// LocalVector rotates a world vector to body coordinates.
func (b *Body) LocalVector(worldVector mgl64.Vec2) mgl64.Vec2 { return b.xf.Q.ApplyInv(worldVector) }

// LinearVelocityFromWorldPoint returns the world velocity of a world point attached to the body.
func (b *Body) LinearVelocityFromWorldPoint(worldPoint mgl64.Vec2) mgl64.Vec2 {
	return b.linearVelocity.Add(geom.CrossSV(b.angularVelocity, worldPoint.Sub(b.sweep.C)))
}

// LinearVelocityFromLocalPoint returns the world velocity of a body point.
func (b *Body) LinearVelocityFromLocalPoint(localPoint mgl64.Vec2) mgl64.Vec2 {
	return b.LinearVelocityFromWorldPoint(b.WorldPoint(localPoint))
}

func (b *Body) LinearDamping() float64        { return b.linearDamping }
func (b *Body) SetLinearDamping(d float64)    { b.linearDamping = d }
func (b *Body) AngularDamping() float64       { return b.angularDamping }
func (b *Body) SetAngularDamping(d float64)   { b.angularDamping = d }
func (b *Body) GravityScale() float64         { return b.gravityScale }
func (b *Body) SetGravityScale(scale float64) { b.gravityScale = scale }
func (b *Body) IsBullet() bool                { return b.flags&bodyBullet != 0 }
func (b *Body) IsAwake() bool                 { return b.flags&bodyAwake != 0 }
func (b *Body) IsActive() bool                { return b.flags&bodyActive != 0 }
func (b *Body) IsFixedRotation() bool         { return b.flags&bodyFixedRotation != 0 }
func (b *Body) IsSleepingAllowed() bool       { return b.flags&bodyAutoSleep != 0 }
func (b *Body) SleepTime() float64            { return b.sleepTime }
func (b *Body) Fixtures() []*Fixture          { return b.fixtures }

// Contacts returns the contacts attached to the body, touching or not.
func (b *Body) Contacts() []*Contact {
	contacts := make([]*Contact, 0, len(b.contacts))
	for c := range b.contactEdges() {
		contacts = append(contacts, c)
	}
	return contacts
}

// Joints returns the ids of the joints attached to the body.
func (b *Body) Joints() []JointID {
	return append([]JointID(nil), b.joints...)
}

// contactEdges yields the attached contacts. The list must not change
// during the iteration.
func (b *Body) contactEdges() iter.Seq[*Contact] {
	return func(yield func(*Contact) bool) {
		for i := range b.contacts {
			if !yield(b.contactAt(i)) {
				return
			}
		}
	}
}

// jointEdges yields the attached joints. The list must not change during
// the iteration.
func (b *Body) jointEdges() iter.Seq[*jointRecord] {
	return func(yield func(*jointRecord) bool) {
		for i := range b.joints {
			if !yield(b.jointAt(i)) {
				return
			}
		}
	}
}

func (b *Body) contactAt(i int) *Contact {
	return b.world.contactManager.contacts.Get(b.contacts[i])
}

func (b *Body) jointAt(i int) *jointRecord {
	return b.world.joints.Get(pool.Handle(b.joints[i]))
}

// SetBullet treats the body like a bullet for continuous collision detection.
func (b *Body) SetBullet(flag bool) {
	if flag {
		b.flags |= bodyBullet
	} else {
		b.flags &^= bodyBullet
	}
}

// SetSleepingAllowed enables or disables sleeping. Disabling wakes the body.
func (b *Body) SetSleepingAllowed(flag bool) {
	if flag {
		b.flags |= bodyAutoSleep
	} else {
		b.flags &^= bodyAutoSleep
		b.SetAwake(true)
	}
}

// SetAwake wakes the body, or puts it to sleep with zero velocity and forces.
// Waking resets the sleep timer. Static bodies are never awake.
func (b *Body) SetAwake(flag bool) {
	if b.kind == StaticBody {
		return
	}

	b.sleepTime = 0
	if flag {
		b.flags |= bodyAwake
		return
	}

	b.flags &^= bodyAwake
	b.linearVelocity = mgl64.Vec2{}
	b.angularVelocity = 0
	b.force = mgl64.Vec2{}
	b.torque = 0
}

// SetFixedRotation prevents the body from rotating.
func (b *Body) SetFixedRotation(flag bool) {
	if flag == b.IsFixedRotation() {
		return
	}
	if flag {
		b.flags |= bodyFixedRotation
	} else {
		b.flags &^= bodyFixedRotation
	}
	b.angularVelocity = 0
	b.ResetMassData()
}

// SetTransform teleports the body origin. Contacts are updated on the next step.
func (b *Body) SetTransform(position mgl64.Vec2, angle float64) error {
	if err := b.world.checkUnlocked("SetTransform"); err != nil {
		return err
	}
	if !geom.IsValid(position) || !isFinite(angle) {
		return fmt.Errorf("transform: %w", ErrInvalidBody)
	}

	b.xf = geom.NewTransform(position, angle)
	b.sweep.C = b.xf.Apply(b.sweep.LocalCenter)
	b.sweep.A = angle
	b.sweep.C0 = b.sweep.C
	b.sweep.A0 = angle

	bp := b.world.contactManager.broadPhase
	for _, f := range b.fixtures {
		f.synchronize(bp, b.xf, b.xf)
	}

	// Check for new contacts the next step
	b.world.newContacts = true
	return nil
}

// SetType changes the body type. Attached contacts are destroyed and
// recreated on the next step.
func (b *Body) SetType(kind BodyType) error {
	if err := b.world.checkUnlocked("SetType"); err != nil {
		return err
	}
	if kind == b.kind {
		return nil
	}

	b.kind = kind
	b.ResetMassData()

	if b.kind == StaticBody {
		b.linearVelocity = mgl64.Vec2{}
		b.angularVelocity = 0
		b.sweep.A0 = b.sweep.A
		b.sweep.C0 = b.sweep.C
		b.flags &^= bodyAwake
		b.synchronizeFixtures()
	}

	b.SetAwake(true)

	b.force = mgl64.Vec2{}
	b.torque = 0

	b.destroyContacts()

	// Touch the proxies so that new contacts will be created (when appropriate)
	bp := b.world.contactManager.broadPhase
	for _, f := range b.fixtures {
		for i := range f.proxies {
			bp.TouchProxy(f.proxies[i].ProxyID)
		}
	}
	return nil
}

// SetActive adds the body to or removes it from the simulation. An inactive
// body keeps its fixtures and joints but has no broad-phase proxies nor contacts.
func (b *Body) SetActive(flag bool) error {
	if err := b.world.checkUnlocked("SetActive"); err != nil {
		return err
	}
	if flag == b.IsActive() {
		return nil
	}

	bp := b.world.contactManager.broadPhase
	if flag {
		b.flags |= bodyActive

		for _, f := range b.fixtures {
			f.createProxies(bp, b.xf)
		}

		// Contacts are created at the beginning of the next step.
		b.world.newContacts = true
		return nil
	}

	b.flags &^= bodyActive

	for _, f := range b.fixtures {
		f.destroyProxies(bp)
	}
	b.destroyContacts()

	b.world.logger.Debug("body deactivated", slog.String("body", b.id.String()))
	return nil
}

func (b *Body) destroyContacts() {
	for len(b.contacts) > 0 {
		b.world.contactManager.destroy(b.contactAt(len(b.contacts) - 1))
	}
}

// shouldCollide reports whether the bodies may have contacts: at least one
// must be dynamic, and no joint between them may forbid it.
func (b *Body) shouldCollide(other *Body) bool {
	if b.kind != DynamicBody && other.kind != DynamicBody {
		return false
	}

	for je := range b.jointEdges() {
		if je.other(b) == other && !je.joint.CollideConnected() {
			return false
		}
	}
	return true
}

// synchronizeFixtures moves the proxies over the swept AABB of the step.
func (b *Body) synchronizeFixtures() {
	bp := b.world.contactManager.broadPhase

	if !b.IsAwake() {
		for _, f := range b.fixtures {
			f.synchronize(bp, b.xf, b.xf)
		}
		return
	}

	xf1 := b.sweep.Transform(0)
	for _, f := range b.fixtures {
		f.synchronize(bp, xf1, b.xf)
	}
}

func (b *Body) synchronizeTransform() {
	b.xf.Q = geom.NewRot(b.sweep.A)
	b.xf.P = b.sweep.C.Sub(b.xf.Q.Apply(b.sweep.LocalCenter))
}

// advance moves the body to the safe time alpha of the current step.
func (b *Body) advance(alpha float64) {
	b.sweep.Advance(alpha)
	b.sweep.C = b.sweep.C0
	b.sweep.A = b.sweep.A0
	b.synchronizeTransform()
}

// addContact links c, which must already be in the contact pool.
func (b *Body) addContact(c *Contact) {
	c.setEdge(b, len(b.contacts))
	b.contacts = append(b.contacts, c.id)
}

// removeContact unlinks c. It must run before c leaves the pool.
func (b *Body) removeContact(c *Contact) {
	i := c.edge(b)
	last := len(b.contacts) - 1
	if i != last {
		b.contactAt(last).setEdge(b, i)
		b.contacts[i] = b.contacts[last]
	}
	b.contacts = b.contacts[:last]
}

// addJoint links j, which must already be in the joint pool.
func (b *Body) addJoint(j *jointRecord) {
	j.setEdge(b, len(b.joints))
	b.joints = append(b.joints, j.id)
}

// removeJoint unlinks j. It must run before j leaves the pool.
func (b *Body) removeJoint(j *jointRecord) {
	i := j.edge(b)
	last := len(b.joints) - 1
	if i != last {
		b.jointAt(last).setEdge(b, i)
		b.joints[i] = b.joints[last]
	}
	b.joints = b.joints[:last]
}

func (b *Body) removeFixture(f *Fixture) {
	last := len(b.fixtures) - 1
	moved := b.fixtures[last]
	b.fixtures[f.bodyIndex] = moved
	moved.bodyIndex = f.bodyIndex
	b.fixtures[last] = nil
	b.fixtures = b.fixtures[:last]
}
