package feather2d

import (
	"github.com/akmonengine/feather2d/broadphase"
	"github.com/akmonengine/feather2d/internal/pool"
)

// contactManager owns the broad phase and the contacts it creates.
type contactManager struct {
	world      *World
	broadPhase *broadphase.BroadPhase[*FixtureProxy]
	contacts   *pool.Pool[Contact]

	filter   ContactFilter
	listener ContactListener
}

func newContactManager(w *World) contactManager {
	return contactManager{
		world:      w,
		broadPhase: broadphase.New[*FixtureProxy](),
		contacts:   pool.New[Contact](256),
	}
}

// findNewContacts commits the moved proxies and creates contacts for new pairs.
func (cm *contactManager) findNewContacts() {
	cm.broadPhase.UpdatePairs(cm.addPair)
}

// addPair is the broad-phase callback for a new overlapping pair of proxies.
func (cm *contactManager) addPair(proxyA, proxyB *FixtureProxy) {
	fixtureA := proxyA.Fixture
	fixtureB := proxyB.Fixture

	indexA := proxyA.ChildIndex
	indexB := proxyB.ChildIndex

	bodyA := fixtureA.body
	bodyB := fixtureB.body

	// Are the fixtures on the same body?
	if bodyA == bodyB {
		return
	}

	// Does a contact already exist?
	for c := range bodyB.contactEdges() {
		if c.other(bodyB) != bodyA {
			continue
		}
		fA, fB := c.fixtureA, c.fixtureB
		iA, iB := c.childA, c.childB
		if fA == fixtureA && fB == fixtureB && iA == indexA && iB == indexB {
			return
		}
		if fA == fixtureB && fB == fixtureA && iA == indexB && iB == indexA {
			return
		}
	}

	// Does a joint override collision? Is at least one body dynamic?
	if !bodyB.shouldCollide(bodyA) {
		return
	}

	// Check user filtering.
	if !cm.shouldCollide(fixtureA, fixtureB) {
		return
	}

	c := createContact(fixtureA, indexA, fixtureB, indexB)
	if c == nil {
		return
	}

	c.id = cm.contacts.Add(c)

	// Connect to the bodies of the contact, after a possible swap.
	c.fixtureA.body.addContact(c)
	c.fixtureB.body.addContact(c)
}

func (cm *contactManager) shouldCollide(fixtureA, fixtureB *Fixture) bool {
	if cm.filter != nil {
		return cm.filter.ShouldCollide(fixtureA, fixtureB)
	}
	return fixtureA.filter.shouldCollide(fixtureB.filter)
}

// destroy removes the contact, reporting the end of touching first.
func (cm *contactManager) destroy(c *Contact) {
	if c.IsTouching() {
		cm.world.endContact(c)
	}

	c.fixtureA.body.removeContact(c)
	c.fixtureB.body.removeContact(c)

	cm.contacts.Remove(c.id)
}

// collide is the narrow phase: it filters, culls and updates every contact.
func (cm *contactManager) collide() {
	cm.contacts.All(func(_ pool.Handle, c *Contact) bool {
		fixtureA := c.fixtureA
		fixtureB := c.fixtureB
		bodyA := fixtureA.body
		bodyB := fixtureB.body

		// Is this contact flagged for filtering?
		if c.flags&contactFilter != 0 {
			// Should these bodies collide?
			if !bodyB.shouldCollide(bodyA) || !cm.shouldCollide(fixtureA, fixtureB) {
				cm.destroy(c)
				return true
			}

			// Clear the filtering flag.
			c.flags &^= contactFilter
		}

		activeA := bodyA.IsAwake() && bodyA.kind != StaticBody
		activeB := bodyB.IsAwake() && bodyB.kind != StaticBody

		// At least one body must be awake and it must be dynamic or kinematic.
		if !activeA && !activeB {
			return true
		}

		proxyIDA := fixtureA.proxies[c.childA].ProxyID
		proxyIDB := fixtureB.proxies[c.childB].ProxyID

		// Here we destroy contacts that cease to overlap in the broad-phase.
		if !cm.broadPhase.TestOverlap(proxyIDA, proxyIDB) {
			cm.destroy(c)
			return true
		}

		// The contact persists.
		c.update(cm.world)
		return true
	})
}
