package feather2d

import (
	"github.com/akmonengine/feather2d/collide"
	"github.com/akmonengine/feather2d/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactListener receives contact callbacks during Step. The world is
// locked: do not create or destroy bodies, fixtures or joints from a callback.
type ContactListener interface {
	// BeginContact is called when two fixtures begin to touch.
	BeginContact(c *Contact)
	// EndContact is called when two fixtures cease to touch, including when
	// the contact is destroyed.
	EndContact(c *Contact)
	// PreSolve is called after the manifold of a touching contact is updated
	// and before it is solved. oldManifold is the manifold of the previous update.
	// Disable the contact here to skip its response for the current step.
	PreSolve(c *Contact, oldManifold *collide.Manifold)
	// PostSolve reports the impulses applied to a touching contact.
	PostSolve(c *Contact, impulse constraint.ContactImpulse)
}

// ContactListenerFuncs adapts functions to a ContactListener. Nil fields are skipped.
type ContactListenerFuncs struct {
	OnBegin     func(c *Contact)
	OnEnd       func(c *Contact)
	OnPreSolve  func(c *Contact, oldManifold *collide.Manifold)
	OnPostSolve func(c *Contact, impulse constraint.ContactImpulse)
}

func (l ContactListenerFuncs) BeginContact(c *Contact) {
	if l.OnBegin != nil {
		l.OnBegin(c)
	}
}

func (l ContactListenerFuncs) EndContact(c *Contact) {
	if l.OnEnd != nil {
		l.OnEnd(c)
	}
}

func (l ContactListenerFuncs) PreSolve(c *Contact, oldManifold *collide.Manifold) {
	if l.OnPreSolve != nil {
		l.OnPreSolve(c, oldManifold)
	}
}

func (l ContactListenerFuncs) PostSolve(c *Contact, impulse constraint.ContactImpulse) {
	if l.OnPostSolve != nil {
		l.OnPostSolve(c, impulse)
	}
}

// ContactFilter replaces the category, mask and group rule of Filter.
type ContactFilter interface {
	ShouldCollide(fixtureA, fixtureB *Fixture) bool
}

// DestructionListener is told about fixtures and joints destroyed implicitly,
// along with their body or driving joint.
type DestructionListener interface {
	SayGoodbyeJoint(id JointID)
	SayGoodbyeFixture(id FixtureID)
}

// QueryCallback is called for each fixture child whose fat AABB overlaps the
// query box. Return false to stop the query.
type QueryCallback func(f *Fixture, childIndex int) bool

// RayCastCallback is called for each fixture hit by the ray, in no
// particular order. It controls the rest of the cast by its return value:
//   - -1 ignores this fixture and continues
//   - 0 terminates the ray cast
//   - fraction clips the ray to this hit
//   - 1 does not clip the ray and continues
type RayCastCallback func(f *Fixture, point, normal mgl64.Vec2, fraction float64) float64

func (w *World) beginContact(c *Contact) {
	if l := w.contactManager.listener; l != nil {
		l.BeginContact(c)
	}
	w.Events.emitContact(c, true)
}

func (w *World) endContact(c *Contact) {
	if l := w.contactManager.listener; l != nil {
		l.EndContact(c)
	}
	w.Events.emitContact(c, false)
}

func (w *World) preSolve(c *Contact, oldManifold *collide.Manifold) {
	if l := w.contactManager.listener; l != nil {
		l.PreSolve(c, oldManifold)
	}
}
