package feather2d

import (
	"log/slog"

	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/gjk"
	"github.com/akmonengine/feather2d/internal/pool"
	"github.com/akmonengine/feather2d/toi"
)

// solveTOI sweeps fast bodies: it repeatedly finds the earliest time of
// impact, moves the two bodies there and resolves the overlap in a sub-step.
func (w *World) solveTOI(step constraint.TimeStep) {
	is := &w.toiIsland

	if w.stepComplete {
		w.bodies.All(func(_ pool.Handle, b *Body) bool {
			b.flags &^= bodyIsland
			b.sweep.Alpha0 = 0
			return true
		})

		w.contactManager.contacts.All(func(_ pool.Handle, c *Contact) bool {
			// Invalidate TOI
			c.flags &^= contactTOI | contactIsland
			c.toiCount = 0
			c.toi = 1
			return true
		})
	}

	// Find TOI events and solve them.
	for {
		minContact, minAlpha := w.findMinTOI()

		if minContact == nil || 1-10*geom.Epsilon < minAlpha {
			// No more TOI events. Done!
			w.stepComplete = true
			break
		}

		// Advance the bodies to the TOI.
		bA := minContact.fixtureA.body
		bB := minContact.fixtureB.body

		backup1 := bA.sweep
		backup2 := bB.sweep

		bA.advance(minAlpha)
		bB.advance(minAlpha)

		// The TOI contact likely has some new contact points.
		minContact.update(w)
		minContact.flags &^= contactTOI
		minContact.toiCount++

		// Is the contact solid?
		if !minContact.IsEnabled() || !minContact.IsTouching() {
			// Restore the sweeps.
			minContact.SetEnabled(false)
			bA.sweep = backup1
			bB.sweep = backup2
			bA.synchronizeTransform()
			bB.synchronizeTransform()
			continue
		}

		bA.SetAwake(true)
		bB.SetAwake(true)

		// Build the island
		is.clear()
		is.addBody(bA)
		is.addBody(bB)
		is.addContact(minContact)

		bA.flags |= bodyIsland
		bB.flags |= bodyIsland
		minContact.flags |= contactIsland

		// Get contacts on bodyA and bodyB.
		for _, body := range []*Body{bA, bB} {
			if body.kind == DynamicBody {
				w.addTOINeighbours(is, body, minAlpha)
			}
		}

		is.seal()

		subStep := constraint.TimeStep{
			Dt:                 (1 - minAlpha) * step.Dt,
			DtRatio:            1,
			PositionIterations: toiPositionIterations,
			VelocityIterations: step.VelocityIterations,
			WarmStarting:       false,
		}
		subStep.InvDt = 1 / subStep.Dt
		is.solveTOI(subStep, bA.islandIndex, bB.islandIndex)
		is.reportImpulses(w.contactManager.listener)

		// Reset island flags and synchronize broad-phase proxies.
		for _, body := range is.bodies {
			body.flags &^= bodyIsland

			if body.kind != DynamicBody {
				continue
			}

			body.synchronizeFixtures()

			// Invalidate all contact TOIs on this displaced body.
			for c := range body.contactEdges() {
				c.flags &^= contactTOI | contactIsland
			}
		}

		// Commit fixture proxy movements to the broad-phase so that new contacts are created.
		// Also, some contacts can be destroyed.
		w.contactManager.findNewContacts()

		if w.subStepping {
			w.stepComplete = false
			break
		}
	}
}

// findMinTOI returns the contact with the earliest time of impact, caching
// the time of impact of every candidate contact.
func (w *World) findMinTOI() (*Contact, float64) {
	var minContact *Contact
	minAlpha := 1.0

	w.contactManager.contacts.All(func(_ pool.Handle, c *Contact) bool {
		// Is this contact disabled?
		if !c.IsEnabled() {
			return true
		}

		// Prevent excessive sub-stepping.
		if c.toiCount > MaxSubSteps {
			return true
		}

		alpha := 1.0
		if c.flags&contactTOI != 0 {
			// This contact has a valid cached TOI.
			alpha = c.toi
		} else {
			var ok bool
			if alpha, ok = w.computeTOI(c); !ok {
				return true
			}
			c.toi = alpha
			c.flags |= contactTOI
		}

		if alpha < minAlpha {
			// This is the minimum TOI found so far.
			minContact = c
			minAlpha = alpha
		}
		return true
	})

	return minContact, minAlpha
}

// computeTOI computes the time of impact of a contact in the remaining part
// of the step. It reports false for contacts that need no continuous collision.
func (w *World) computeTOI(c *Contact) (float64, bool) {
	fA := c.fixtureA
	fB := c.fixtureB

	// Is there a sensor?
	if fA.sensor || fB.sensor {
		return 1, false
	}

	bA := fA.body
	bB := fB.body

	activeA := bA.IsAwake() && bA.kind != StaticBody
	activeB := bB.IsAwake() && bB.kind != StaticBody

	// Is at least one body active (awake and dynamic or kinematic)?
	if !activeA && !activeB {
		return 1, false
	}

	collideA := bA.IsBullet() || bA.kind != DynamicBody
	collideB := bB.IsBullet() || bB.kind != DynamicBody

	// Are these two non-bullet dynamic bodies?
	if !collideA && !collideB {
		return 1, false
	}

	// Compute the TOI for this contact.
	// Put the sweeps onto the same time interval.
	alpha0 := bA.sweep.Alpha0

	if bA.sweep.Alpha0 < bB.sweep.Alpha0 {
		alpha0 = bB.sweep.Alpha0
		bA.sweep.Advance(alpha0)
	} else if bB.sweep.Alpha0 < bA.sweep.Alpha0 {
		alpha0 = bA.sweep.Alpha0
		bB.sweep.Advance(alpha0)
	}

	// Compute the time of impact in interval [0, minTOI]
	input := toi.Input{
		ProxyA: gjk.MakeProxy(fA.shape, c.childA),
		ProxyB: gjk.MakeProxy(fB.shape, c.childB),
		SweepA: bA.sweep,
		SweepB: bB.sweep,
		TMax:   1,
	}
	output := toi.TimeOfImpact(&input)

	// Beta is the fraction of the remaining portion of the step.
	if output.State != toi.StateTouching {
		if output.State == toi.StateFailed {
			w.logger.Debug("time of impact failed",
				slog.String("bodyA", bA.id.String()),
				slog.String("bodyB", bB.id.String()),
				slog.Int("iterations", output.Iterations),
				slog.Float64("t", output.T))
		}
		return 1, true
	}

	return min(alpha0+(1-alpha0)*output.T, 1), true
}

// addTOINeighbours adds the touching static, kinematic and bullet
// neighbours of body to the TOI island, advancing them to the TOI.
func (w *World) addTOINeighbours(is *island, body *Body, minAlpha float64) {
	for c := range body.contactEdges() {
		if len(is.bodies) == 2*MaxTOIContacts || len(is.contacts) == MaxTOIContacts {
			break
		}

		// Has this contact already been added to the island?
		if c.flags&contactIsland != 0 {
			continue
		}

		// Only add static, kinematic, or bullet bodies.
		other := c.other(body)
		if other.kind == DynamicBody && !body.IsBullet() && !other.IsBullet() {
			continue
		}

		// Skip sensors.
		if c.isSensor() {
			continue
		}

		// Tentatively advance the body to the TOI.
		backup := other.sweep
		if other.flags&bodyIsland == 0 {
			other.advance(minAlpha)
		}

		// Update the contact points
		c.update(w)

		// Was the contact disabled by the user? Are there contact points?
		if !c.IsEnabled() || !c.IsTouching() {
			other.sweep = backup
			other.synchronizeTransform()
			continue
		}

		// Add the contact to the island
		c.flags |= contactIsland
		is.addContact(c)

		// Has the other body already been added to the island?
		if other.flags&bodyIsland != 0 {
			continue
		}

		// Add the other body to the island.
		other.flags |= bodyIsland

		if other.kind != StaticBody {
			other.SetAwake(true)
		}

		is.addBody(other)
	}
}
