package feather2d

import (
	"fmt"
	"log/slog"

	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/internal/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// WorldDef holds the settings of a World. Start from DefaultWorldDef.
type WorldDef struct {
	// Gravity acceleration (m/s², or N/kg)
	Gravity mgl64.Vec2

	AllowSleeping     bool
	WarmStarting      bool
	ContinuousPhysics bool
	// SubStepping stops the time of impact solver after one event per step.
	SubStepping bool

	// Workers bounds the goroutines solving islands concurrently.
	Workers int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	ContactListener     ContactListener
	ContactFilter       ContactFilter
	DestructionListener DestructionListener
}

// DefaultWorldDef returns the usual settings with an earth-like gravity.
func DefaultWorldDef() WorldDef {
	return WorldDef{
		Gravity:           mgl64.Vec2{0, -10},
		AllowSleeping:     true,
		WarmStarting:      true,
		ContinuousPhysics: true,
		Workers:           DEFAULT_WORKERS,
	}
}

// World manages the bodies, fixtures, joints and contacts, and steps the simulation.
type World struct {
	bodies   *pool.Pool[Body]
	fixtures *pool.Pool[Fixture]
	joints   *pool.Pool[jointRecord]

	contactManager contactManager

	// Gravity acceleration (m/s², or N/kg)
	gravity mgl64.Vec2

	allowSleep        bool
	warmStarting      bool
	continuousPhysics bool
	subStepping       bool
	autoClearForces   bool

	// Set when a fixture was added or a body moved outside of Step.
	newContacts bool
	locked      bool

	// Cleared when the time of impact solver stopped in sub-stepping mode.
	stepComplete bool

	// The previous inverse time step, for warm starting.
	invDt0 float64

	Workers int

	destructionListener DestructionListener

	logger *slog.Logger

	islands   []*island
	stack     []*Body
	toiIsland island

	profile Profile

	Events Events
}

// NewWorld builds an empty world.
func NewWorld(def WorldDef) *World {
	w := &World{
		bodies:              pool.New[Body](64),
		fixtures:            pool.New[Fixture](64),
		joints:              pool.New[jointRecord](16),
		gravity:             def.Gravity,
		allowSleep:          def.AllowSleeping,
		warmStarting:        def.WarmStarting,
		continuousPhysics:   def.ContinuousPhysics,
		subStepping:         def.SubStepping,
		autoClearForces:     true,
		stepComplete:        true,
		Workers:             def.Workers,
		destructionListener: def.DestructionListener,
		logger:              def.Logger,
		Events:              NewEvents(),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	w.contactManager = newContactManager(w)
	w.contactManager.listener = def.ContactListener
	w.contactManager.filter = def.ContactFilter

	return w
}

// checkUnlocked rejects mutations from inside a step callback.
func (w *World) checkUnlocked(op string) error {
	if w.locked {
		w.logger.Warn("world is locked", slog.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrLocked)
	}
	return nil
}

// body resolves id, logging stale handles.
func (w *World) body(id BodyID, op string) (*Body, error) {
	b := w.bodies.Get(pool.Handle(id))
	if b == nil {
		w.logger.Warn("stale body", slog.String("op", op), slog.String("body", id.String()))
		return nil, fmt.Errorf("%s: body %v: %w", op, id, ErrInvalidBody)
	}
	return b, nil
}

// CreateBody creates a rigid body. Fixtures are added with CreateFixture.
func (w *World) CreateBody(def BodyDef) (BodyID, error) {
	if err := w.checkUnlocked("CreateBody"); err != nil {
		return BodyID{}, err
	}
	if err := def.validate(); err != nil {
		return BodyID{}, err
	}

	b := newBody(&def, w)
	b.id = BodyID(w.bodies.Add(b))
	return b.id, nil
}

// DestroyBody destroys a body with its fixtures, contacts and joints.
// The destruction listener is told about the fixtures and joints.
func (w *World) DestroyBody(id BodyID) error {
	if err := w.checkUnlocked("DestroyBody"); err != nil {
		return err
	}
	b, err := w.body(id, "DestroyBody")
	if err != nil {
		return err
	}

	// Delete the attached joints.
	for len(b.joints) > 0 {
		rec := b.jointAt(len(b.joints) - 1)
		if w.destructionListener != nil {
			w.destructionListener.SayGoodbyeJoint(rec.id)
		}
		w.destroyJoint(rec)
	}

	// Delete the attached contacts.
	b.destroyContacts()

	// Delete the attached fixtures. This destroys broad-phase proxies.
	bp := w.contactManager.broadPhase
	for _, f := range b.fixtures {
		if w.destructionListener != nil {
			w.destructionListener.SayGoodbyeFixture(f.id)
		}
		f.destroyProxies(bp)
		w.fixtures.Remove(pool.Handle(f.id))
	}
	b.fixtures = nil

	w.Events.forget(b.id)
	w.bodies.Remove(pool.Handle(id))
	b.world = nil
	return nil
}

// Body returns the body of id, or nil when id is stale.
func (w *World) Body(id BodyID) *Body {
	return w.bodies.Get(pool.Handle(id))
}

// CreateFixture attaches a shape to a body. The body mass is updated when
// the density is positive. Contacts are created on the next step.
func (w *World) CreateFixture(bodyID BodyID, def FixtureDef) (FixtureID, error) {
	if err := w.checkUnlocked("CreateFixture"); err != nil {
		return FixtureID{}, err
	}
	b, err := w.body(bodyID, "CreateFixture")
	if err != nil {
		return FixtureID{}, err
	}
	if def.Shape == nil {
		return FixtureID{}, fmt.Errorf("fixture without shape: %w", ErrInvalidFixture)
	}
	if !isFinite(def.Density) || def.Density < 0 || !isFinite(def.Friction) || def.Friction < 0 || !isFinite(def.Restitution) || def.Restitution < 0 {
		return FixtureID{}, fmt.Errorf("fixture material: %w", ErrInvalidFixture)
	}

	f := newFixture(b, &def)
	f.id = FixtureID(w.fixtures.Add(f))

	if b.IsActive() {
		f.createProxies(w.contactManager.broadPhase, b.xf)
	}

	f.bodyIndex = len(b.fixtures)
	b.fixtures = append(b.fixtures, f)

	// Adjust mass properties if needed.
	if f.density > 0 {
		b.ResetMassData()
	}

	// Let the world know we have a new fixture. This will cause new contacts
	// to be created at the beginning of the next time step.
	w.newContacts = true

	return f.id, nil
}

// DestroyFixture removes a fixture from its body, destroying its contacts.
// The body mass is recomputed.
func (w *World) DestroyFixture(id FixtureID) error {
	if err := w.checkUnlocked("DestroyFixture"); err != nil {
		return err
	}
	f := w.fixtures.Get(pool.Handle(id))
	if f == nil {
		w.logger.Warn("stale fixture", slog.String("fixture", id.String()))
		return fmt.Errorf("fixture %v: %w", id, ErrInvalidFixture)
	}

	b := f.body

	// Destroy any contacts associated with the fixture.
	for i := len(b.contacts) - 1; i >= 0; i-- {
		if i >= len(b.contacts) {
			continue
		}
		if c := b.contactAt(i); c.fixtureA == f || c.fixtureB == f {
			// This destroys the contact and removes it from this body's contact list.
			w.contactManager.destroy(c)
		}
	}

	f.destroyProxies(w.contactManager.broadPhase)
	b.removeFixture(f)
	w.fixtures.Remove(pool.Handle(id))

	// Reset the mass data.
	b.ResetMassData()
	return nil
}

// Fixture returns the fixture of id, or nil when id is stale.
func (w *World) Fixture(id FixtureID) *Fixture {
	return w.fixtures.Get(pool.Handle(id))
}

// Step advances the world by dt seconds: collision, integration, constraint
// solving and continuous collision. Buffered events are delivered at the end.
func (w *World) Step(dt float64, velocityIterations, positionIterations int) error {
	if err := w.checkUnlocked("Step"); err != nil {
		return err
	}
	defer measure(&w.profile.Step)()

	w.Workers = max(DEFAULT_WORKERS, w.Workers)

	// If new fixtures were added, we need to find the new contacts.
	if w.newContacts {
		w.contactManager.findNewContacts()
		w.newContacts = false
	}

	w.locked = true

	step := constraint.TimeStep{
		Dt:                 dt,
		DtRatio:            w.invDt0 * dt,
		VelocityIterations: velocityIterations,
		PositionIterations: positionIterations,
		WarmStarting:       w.warmStarting,
	}
	if dt > 0 {
		step.InvDt = 1 / dt
	}

	// Update contacts. This is where some contacts are destroyed.
	endCollide := measure(&w.profile.Collide)
	w.contactManager.collide()
	endCollide()

	// Integrate velocities, solve velocity constraints, and integrate positions.
	if w.stepComplete && step.Dt > 0 {
		endSolve := measure(&w.profile.Solve)
		w.solve(step)
		endSolve()
	}

	// Handle TOI events.
	if w.continuousPhysics && step.Dt > 0 {
		endTOI := measure(&w.profile.SolveTOI)
		w.solveTOI(step)
		endTOI()
	}

	if step.Dt > 0 {
		w.invDt0 = step.InvDt
	}

	if w.autoClearForces {
		w.ClearForces()
	}

	w.locked = false

	w.bodies.All(func(_ pool.Handle, b *Body) bool {
		w.Events.processSleepEvent(b)
		return true
	})
	w.Events.flush()
	return nil
}

// ClearForces zeroes the accumulated forces and torques. Step calls it
// unless SetAutoClearForces(false) was used for sub-stepping by the caller.
func (w *World) ClearForces() {
	w.bodies.All(func(_ pool.Handle, b *Body) bool {
		b.force = mgl64.Vec2{}
		b.torque = 0
		return true
	})
}

func (w *World) SetAutoClearForces(flag bool) { w.autoClearForces = flag }
func (w *World) AutoClearForces() bool        { return w.autoClearForces }

// solve finds the islands of awake bodies, solves them and puts resting
// islands to sleep.
func (w *World) solve(step constraint.TimeStep) {
	// Clear all the island flags.
	w.bodies.All(func(_ pool.Handle, b *Body) bool {
		b.flags &^= bodyIsland
		return true
	})
	w.contactManager.contacts.All(func(_ pool.Handle, c *Contact) bool {
		c.flags &^= contactIsland
		return true
	})
	w.joints.All(func(_ pool.Handle, j *jointRecord) bool {
		j.island = false
		return true
	})

	islands := w.buildIslands()

	task(w.Workers, islands, func(is *island) {
		is.solve(step, w.gravity, w.allowSleep)
	})

	for _, is := range islands {
		is.reportImpulses(w.contactManager.listener)

		if w.allowSleep && is.shouldSleep() {
			for _, b := range is.owned() {
				b.SetAwake(false)
			}
			w.logger.Debug("island asleep",
				slog.Int("bodies", len(is.owned())),
				slog.Int("contacts", len(is.contacts)),
				slog.Int("joints", len(is.joints)))
		}
	}

	// Synchronize fixtures, check for out of range bodies.
	endBroadphase := measure(&w.profile.Broadphase)
	w.bodies.All(func(_ pool.Handle, b *Body) bool {
		// If a body was not in an island then it did not move.
		if b.flags&bodyIsland == 0 || b.kind == StaticBody {
			return true
		}
		// Update fixtures (for broad-phase).
		b.synchronizeFixtures()
		return true
	})

	// Look for new contacts.
	w.contactManager.findNewContacts()
	endBroadphase()
}

// buildIslands flood fills the constraint graph from every awake body.
// Static bodies end the propagation and may belong to several islands.
func (w *World) buildIslands() []*island {
	count := 0

	w.bodies.All(func(_ pool.Handle, seed *Body) bool {
		if seed.flags&bodyIsland != 0 {
			return true
		}
		if !seed.IsAwake() || !seed.IsActive() {
			return true
		}
		// The seed can be dynamic or kinematic.
		if seed.kind == StaticBody {
			return true
		}

		if count == len(w.islands) {
			w.islands = append(w.islands, &island{})
		}
		is := w.islands[count]
		count++
		is.clear()

		// Perform a depth first search (DFS) on the constraint graph.
		stack := append(w.stack[:0], seed)
		seed.flags |= bodyIsland

		for len(stack) > 0 {
			// Grab the next body off the stack and add it to the island.
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			is.addBody(b)

			// To keep islands as small as possible, we don't
			// propagate islands across static bodies.
			if b.kind == StaticBody {
				continue
			}

			// Make sure the body is awake (without resetting sleep timer).
			b.flags |= bodyAwake

			// Search all contacts connected to this body.
			for c := range b.contactEdges() {
				// Has this contact already been added to an island?
				if c.flags&contactIsland != 0 {
					continue
				}
				// Is this contact solid and touching?
				if !c.IsEnabled() || !c.IsTouching() {
					continue
				}
				// Skip sensors.
				if c.isSensor() {
					continue
				}

				is.addContact(c)
				c.flags |= contactIsland

				other := c.other(b)

				// Was the other body already added to this island?
				if other.flags&bodyIsland != 0 {
					continue
				}
				stack = append(stack, other)
				other.flags |= bodyIsland
			}

			// Search all joints connect to this body.
			for j := range b.jointEdges() {
				if j.island {
					continue
				}

				other := j.other(b)

				// Don't simulate joints connected to inactive bodies.
				if !other.IsActive() {
					continue
				}

				is.addJoint(j)
				j.island = true

				if other.flags&bodyIsland != 0 {
					continue
				}
				stack = append(stack, other)
				other.flags |= bodyIsland
			}
		}
		w.stack = stack

		is.seal()

		// Post solve cleanup: allow static bodies to participate in other islands.
		for _, b := range is.bodies {
			if b.kind == StaticBody {
				b.flags &^= bodyIsland
			}
		}
		return true
	})

	return w.islands[:count]
}

// Bodies calls fn for every body until fn returns false.
func (w *World) Bodies(fn func(b *Body) bool) {
	w.bodies.All(func(_ pool.Handle, b *Body) bool {
		return fn(b)
	})
}

// Contacts calls fn for every contact until fn returns false. Contacts
// exist as soon as fat AABBs overlap; check IsTouching.
func (w *World) Contacts(fn func(c *Contact) bool) {
	w.contactManager.contacts.All(func(_ pool.Handle, c *Contact) bool {
		return fn(c)
	})
}

// QueryAABB calls callback for every fixture child whose fat AABB overlaps aabb.
func (w *World) QueryAABB(callback QueryCallback, aabb geom.AABB) {
	bp := w.contactManager.broadPhase
	bp.Query(aabb, func(proxyID int) bool {
		proxy := bp.UserData(proxyID)
		return callback(proxy.Fixture, proxy.ChildIndex)
	})
}

// RayCast casts a ray from point1 to point2 against every fixture.
// See RayCastCallback for how the callback clips the ray.
func (w *World) RayCast(callback RayCastCallback, point1, point2 mgl64.Vec2) {
	bp := w.contactManager.broadPhase
	input := geom.RayCastInput{P1: point1, P2: point2, MaxFraction: 1}

	bp.RayCast(input, func(in geom.RayCastInput, proxyID int) float64 {
		proxy := bp.UserData(proxyID)
		f := proxy.Fixture

		output, hit := f.RayCast(in, proxy.ChildIndex)
		if !hit {
			return in.MaxFraction
		}

		fraction := output.Fraction
		point := point1.Mul(1 - fraction).Add(point2.Mul(fraction))
		return callback(f, point, output.Normal, fraction)
	})
}

// ShiftOrigin moves the world origin to newOrigin, for large worlds.
// Bodies, joints and the broad phase are translated by -newOrigin.
func (w *World) ShiftOrigin(newOrigin mgl64.Vec2) error {
	if err := w.checkUnlocked("ShiftOrigin"); err != nil {
		return err
	}

	w.bodies.All(func(_ pool.Handle, b *Body) bool {
		b.xf.P = b.xf.P.Sub(newOrigin)
		b.sweep.C0 = b.sweep.C0.Sub(newOrigin)
		b.sweep.C = b.sweep.C.Sub(newOrigin)
		for _, f := range b.fixtures {
			for i := range f.proxies {
				aabb := &f.proxies[i].AABB
				aabb.LowerBound = aabb.LowerBound.Sub(newOrigin)
				aabb.UpperBound = aabb.UpperBound.Sub(newOrigin)
			}
		}
		return true
	})

	w.joints.All(func(_ pool.Handle, j *jointRecord) bool {
		j.joint.ShiftOrigin(newOrigin)
		return true
	})

	w.contactManager.broadPhase.ShiftOrigin(newOrigin)
	return nil
}

func (w *World) Gravity() mgl64.Vec2           { return w.gravity }
func (w *World) SetGravity(gravity mgl64.Vec2) { w.gravity = gravity }
func (w *World) IsLocked() bool                { return w.locked }

func (w *World) AllowSleeping() bool { return w.allowSleep }

// SetAllowSleeping enables or disables sleeping. Disabling wakes every body.
func (w *World) SetAllowSleeping(flag bool) {
	if flag == w.allowSleep {
		return
	}
	w.allowSleep = flag
	if !w.allowSleep {
		w.bodies.All(func(_ pool.Handle, b *Body) bool {
			b.SetAwake(true)
			return true
		})
	}
}

func (w *World) WarmStarting() bool          { return w.warmStarting }
func (w *World) SetWarmStarting(flag bool)   { w.warmStarting = flag }
func (w *World) ContinuousPhysics() bool     { return w.continuousPhysics }
func (w *World) SetContinuousPhysics(f bool) { w.continuousPhysics = f }
func (w *World) SubStepping() bool           { return w.subStepping }
func (w *World) SetSubStepping(flag bool)    { w.subStepping = flag }

func (w *World) SetContactListener(l ContactListener)         { w.contactManager.listener = l }
func (w *World) SetContactFilter(f ContactFilter)             { w.contactManager.filter = f }
func (w *World) SetDestructionListener(l DestructionListener) { w.destructionListener = l }

func (w *World) BodyCount() int    { return w.bodies.Len() }
func (w *World) FixtureCount() int { return w.fixtures.Len() }
func (w *World) JointCount() int   { return w.joints.Len() }
func (w *World) ContactCount() int { return w.contactManager.contacts.Len() }

func (w *World) ProxyCount() int      { return w.contactManager.broadPhase.ProxyCount() }
func (w *World) TreeHeight() int      { return w.contactManager.broadPhase.TreeHeight() }
func (w *World) TreeBalance() int     { return w.contactManager.broadPhase.TreeBalance() }
func (w *World) TreeQuality() float64 { return w.contactManager.broadPhase.TreeQuality() }
func (w *World) Profile() Profile     { return w.profile }
func (w *World) Logger() *slog.Logger { return w.logger }
