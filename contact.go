package feather2d

import (
	"github.com/akmonengine/feather2d/collide"
	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/internal/pool"
)

type contactFlags uint8

const (
	// Used when crawling the contact graph when forming islands.
	contactIsland contactFlags = 1 << iota
	// Set when the shapes are touching.
	contactTouching
	// This contact can be disabled by the user.
	contactEnabled
	// This contact needs filtering because a fixture filter was changed.
	contactFilter
	// This contact has a valid TOI in toi.
	contactTOI
)

// Contact manages the manifold between two fixture children whose fat AABBs
// overlap. A contact may exist without touching.
type Contact struct {
	id    pool.Handle
	flags contactFlags

	fixtureA *Fixture
	fixtureB *Fixture
	childA   int
	childB   int

	// positions in the contact lists of body A and body B
	edgeA int
	edgeB int

	manifold collide.Manifold
	evaluate collideFunc

	toiCount int
	toi      float64

	friction     float64
	restitution  float64
	tangentSpeed float64
}

func newContact(fA *Fixture, childA int, fB *Fixture, childB int, evaluate collideFunc) *Contact {
	return &Contact{
		flags:       contactEnabled,
		fixtureA:    fA,
		fixtureB:    fB,
		childA:      childA,
		childB:      childB,
		evaluate:    evaluate,
		friction:    constraint.MixFriction(fA.friction, fB.friction),
		restitution: constraint.MixRestitution(fA.restitution, fB.restitution),
	}
}

func (c *Contact) FixtureA() *Fixture { return c.fixtureA }
func (c *Contact) FixtureB() *Fixture { return c.fixtureB }
func (c *Contact) ChildIndexA() int   { return c.childA }
func (c *Contact) ChildIndexB() int   { return c.childB }

// Manifold returns the contact manifold. Do not modify it.
func (c *Contact) Manifold() *collide.Manifold { return &c.manifold }

// WorldManifold evaluates the manifold at the current body transforms.
func (c *Contact) WorldManifold() collide.WorldManifold {
	bodyA, bodyB := c.fixtureA.body, c.fixtureB.body
	return c.manifold.WorldManifold(bodyA.xf, c.fixtureA.shape.Radius(), bodyB.xf, c.fixtureB.shape.Radius())
}

func (c *Contact) IsTouching() bool { return c.flags&contactTouching != 0 }
func (c *Contact) IsEnabled() bool  { return c.flags&contactEnabled != 0 }

// SetEnabled enables or disables the contact. It is reset on every update,
// so disable it from PreSolve to skip the current step.
func (c *Contact) SetEnabled(flag bool) {
	if flag {
		if c.flags&contactEnabled == 0 {
			c.fixtureA.body.SetAwake(true)
			c.fixtureB.body.SetAwake(true)
		}
		c.flags |= contactEnabled
	} else {
		c.flags &^= contactEnabled
	}
}

func (c *Contact) Friction() float64 { return c.friction }

// SetFriction overrides the mixed friction until the contact is destroyed.
func (c *Contact) SetFriction(friction float64) { c.friction = friction }

func (c *Contact) ResetFriction() {
	c.friction = constraint.MixFriction(c.fixtureA.friction, c.fixtureB.friction)
}

func (c *Contact) Restitution() float64 { return c.restitution }

// SetRestitution overrides the mixed restitution until the contact is destroyed.
func (c *Contact) SetRestitution(restitution float64) { c.restitution = restitution }

func (c *Contact) ResetRestitution() {
	c.restitution = constraint.MixRestitution(c.fixtureA.restitution, c.fixtureB.restitution)
}

// TangentSpeed is the desired surface speed in meters per second, used for conveyor belts.
func (c *Contact) TangentSpeed() float64         { return c.tangentSpeed }
func (c *Contact) SetTangentSpeed(speed float64) { c.tangentSpeed = speed }

// Evaluate computes the manifold for the given transforms without touching the contact state.
func (c *Contact) Evaluate(m *collide.Manifold, xfA, xfB geom.Transform) {
	c.evaluate(m, c.fixtureA.shape, c.childA, xfA, c.fixtureB.shape, c.childB, xfB)
}

func (c *Contact) flagForFiltering() { c.flags |= contactFilter }

func (c *Contact) setEdge(b *Body, i int) {
	if b == c.fixtureA.body {
		c.edgeA = i
	} else {
		c.edgeB = i
	}
}

func (c *Contact) edge(b *Body) int {
	if b == c.fixtureA.body {
		return c.edgeA
	}
	return c.edgeB
}

// other returns the body of the contact that is not b.
func (c *Contact) other(b *Body) *Body {
	if b == c.fixtureA.body {
		return c.fixtureB.body
	}
	return c.fixtureA.body
}

func (c *Contact) isSensor() bool {
	return c.fixtureA.sensor || c.fixtureB.sensor
}

// update refreshes the manifold and reports touching transitions. Matching
// point ids carry their impulses over from the previous manifold.
func (c *Contact) update(w *World) {
	oldManifold := c.manifold

	// Re-enable this contact.
	c.flags |= contactEnabled

	touching := false
	wasTouching := c.flags&contactTouching != 0

	sensor := c.isSensor()

	bodyA := c.fixtureA.body
	bodyB := c.fixtureB.body
	xfA := bodyA.xf
	xfB := bodyB.xf

	if sensor {
		touching = collide.TestOverlap(c.fixtureA.shape, c.childA, c.fixtureB.shape, c.childB, xfA, xfB)

		// Sensors don't generate manifolds.
		c.manifold.PointCount = 0
	} else {
		c.Evaluate(&c.manifold, xfA, xfB)
		touching = c.manifold.PointCount > 0

		// Match old contact ids to new contact ids and copy the
		// stored impulses to warm start the solver.
		for i := 0; i < c.manifold.PointCount; i++ {
			mp2 := &c.manifold.Points[i]
			mp2.NormalImpulse = 0
			mp2.TangentImpulse = 0

			if j := oldManifold.FindPoint(mp2.ID); j >= 0 {
				mp2.NormalImpulse = oldManifold.Points[j].NormalImpulse
				mp2.TangentImpulse = oldManifold.Points[j].TangentImpulse
			}
		}

		if touching != wasTouching {
			bodyA.SetAwake(true)
			bodyB.SetAwake(true)
		}
	}

	if touching {
		c.flags |= contactTouching
	} else {
		c.flags &^= contactTouching
	}

	if !wasTouching && touching {
		w.beginContact(c)
	}

	if wasTouching && !touching {
		w.endContact(c)
	}

	if !sensor && touching {
		w.preSolve(c, &oldManifold)
	}
}
