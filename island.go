package feather2d

import (
	"math"

	"github.com/akmonengine/feather2d/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// island is a set of bodies connected by touching contacts and joints,
// solved independently of the others. Its buffers are reused across steps.
type island struct {
	bodies   []*Body
	contacts []*Contact
	joints   []*jointRecord

	// bodies reached only as gear carriers, solved but never written back
	carriers int

	positions  []constraint.Position
	velocities []constraint.Velocity
	inputs     []constraint.ContactInput
	impulses   []constraint.ContactImpulse
	solver     constraint.ContactSolver

	positionSolved bool
	minSleepTime   float64
}

func (is *island) clear() {
	clear(is.bodies)
	clear(is.contacts)
	clear(is.joints)
	is.bodies = is.bodies[:0]
	is.contacts = is.contacts[:0]
	is.joints = is.joints[:0]
	is.carriers = 0
	is.positionSolved = false
	is.minSleepTime = 0
}

func (is *island) addBody(b *Body) {
	b.islandIndex = len(is.bodies)
	is.bodies = append(is.bodies, b)
}

func (is *island) addContact(c *Contact)   { is.contacts = append(is.contacts, c) }
func (is *island) addJoint(j *jointRecord) { is.joints = append(is.joints, j) }

// inIsland reports whether b holds its slot in this island.
func (is *island) inIsland(b *Body) bool {
	return b.islandIndex < len(is.bodies) && is.bodies[b.islandIndex] == b
}

// seal freezes the island indices into the solver inputs. Static bodies
// can belong to several islands, so it must run before the next island is built.
func (is *island) seal() {
	for _, j := range is.joints {
		for _, b := range []*Body{j.bodyC, j.bodyD} {
			if b != nil && !is.inIsland(b) {
				is.addBody(b)
				is.carriers++
			}
		}
		j.bind()
	}

	is.inputs = is.inputs[:0]
	for _, c := range is.contacts {
		fA, fB := c.fixtureA, c.fixtureB
		is.inputs = append(is.inputs, constraint.ContactInput{
			Manifold:     &c.manifold,
			Friction:     c.friction,
			Restitution:  c.restitution,
			TangentSpeed: c.tangentSpeed,
			RadiusA:      fA.shape.Radius(),
			RadiusB:      fB.shape.Radius(),
			BodyA:        bodyRef(fA.body),
			BodyB:        bodyRef(fB.body),
		})
	}
}

// solve integrates velocities, solves the constraints and integrates positions.
// It writes only to the non-static bodies of the island.
func (is *island) solve(step constraint.TimeStep, gravity mgl64.Vec2, allowSleep bool) {
	h := step.Dt

	is.positions = is.positions[:0]
	is.velocities = is.velocities[:0]

	owned := len(is.owned())

	// Integrate velocities and apply damping. Initialize the body state.
	for i, b := range is.bodies {
		c := b.sweep.C
		a := b.sweep.A
		v := b.linearVelocity
		w := b.angularVelocity

		if b.kind != StaticBody && i < owned {
			// Store positions for continuous collision.
			b.sweep.C0 = b.sweep.C
			b.sweep.A0 = b.sweep.A
		}

		if b.kind == DynamicBody && i < owned {
			// Integrate velocities.
			v = v.Add(gravity.Mul(b.gravityScale * b.mass).Add(b.force).Mul(h * b.invMass))
			w += h * b.invI * b.torque

			// Apply damping.
			// ODE: dv/dt + c * v = 0
			// Pade approximation: v2 = v1 * 1 / (1 + c * dt)
			v = v.Mul(1.0 / (1.0 + h*b.linearDamping))
			w *= 1.0 / (1.0 + h*b.angularDamping)
		}

		is.positions = append(is.positions, constraint.Position{C: c, A: a})
		is.velocities = append(is.velocities, constraint.Velocity{V: v, W: w})
	}

	data := &constraint.SolverData{Step: step, Positions: is.positions, Velocities: is.velocities}

	is.solver.Reset(step, is.inputs, is.positions, is.velocities)
	is.solver.InitializeVelocityConstraints()

	if step.WarmStarting {
		is.solver.WarmStart()
	}

	for _, j := range is.joints {
		j.joint.InitVelocityConstraints(data)
	}

	for range step.VelocityIterations {
		for _, j := range is.joints {
			j.joint.SolveVelocityConstraints(data)
		}
		is.solver.SolveVelocityConstraints()
	}

	// Store impulses for warm starting
	is.solver.StoreImpulses()

	is.integratePositions(h)

	// Solve position constraints
	is.positionSolved = false
	for range step.PositionIterations {
		contactsOkay := is.solver.SolvePositionConstraints()

		jointsOkay := true
		for _, j := range is.joints {
			jointsOkay = j.joint.SolvePositionConstraints(data) && jointsOkay
		}

		if contactsOkay && jointsOkay {
			// Exit early if the position errors are small.
			is.positionSolved = true
			break
		}
	}

	is.writeBack()
	is.recordImpulses()

	is.minSleepTime = math.MaxFloat64
	if !allowSleep {
		return
	}

	const linTolSqr = LinearSleepTolerance * LinearSleepTolerance
	const angTolSqr = AngularSleepTolerance * AngularSleepTolerance

	for _, b := range is.owned() {
		if b.kind == StaticBody {
			continue
		}

		if b.flags&bodyAutoSleep == 0 ||
			b.angularVelocity*b.angularVelocity > angTolSqr ||
			b.linearVelocity.Dot(b.linearVelocity) > linTolSqr {
			b.sleepTime = 0
			is.minSleepTime = 0
		} else {
			b.sleepTime += h
			is.minSleepTime = min(is.minSleepTime, b.sleepTime)
		}
	}
}

// shouldSleep reports whether every body of the island rested long enough.
func (is *island) shouldSleep() bool {
	return is.minSleepTime >= TimeToSleep && is.positionSolved
}

// solveTOI resolves the overlap of a time of impact sub-step. Only the two
// colliding bodies move during the position solve.
func (is *island) solveTOI(subStep constraint.TimeStep, toiIndexA, toiIndexB int) {
	is.positions = is.positions[:0]
	is.velocities = is.velocities[:0]

	// Initialize the body state.
	for _, b := range is.bodies {
		is.positions = append(is.positions, constraint.Position{C: b.sweep.C, A: b.sweep.A})
		is.velocities = append(is.velocities, constraint.Velocity{V: b.linearVelocity, W: b.angularVelocity})
	}

	is.solver.Reset(subStep, is.inputs, is.positions, is.velocities)

	// Solve position constraints.
	for range toiPositionIterations {
		if is.solver.SolveTOIPositionConstraints(toiIndexA, toiIndexB) {
			break
		}
	}

	// Leap of faith to new safe state.
	for _, i := range []int{toiIndexA, toiIndexB} {
		b := is.bodies[i]
		b.sweep.C0 = is.positions[i].C
		b.sweep.A0 = is.positions[i].A
	}

	// No warm starting is needed for TOI events because warm
	// starting impulses were applied in the discrete solver.
	is.solver.InitializeVelocityConstraints()

	// Solve velocity constraints.
	for range subStep.VelocityIterations {
		is.solver.SolveVelocityConstraints()
	}

	// Don't store the TOI contact forces for warm starting
	// because they can be quite large.

	is.integratePositions(subStep.Dt)
	is.writeBack()
	is.recordImpulses()
}

// integratePositions moves the solver positions by the solver velocities,
// clamping large motions.
func (is *island) integratePositions(h float64) {
	for i := range is.positions {
		c := is.positions[i].C
		a := is.positions[i].A
		v := is.velocities[i].V
		w := is.velocities[i].W

		// Check for large velocities
		translation := v.Mul(h)
		if d := translation.Dot(translation); d > constraint.MaxTranslation*constraint.MaxTranslation {
			v = v.Mul(constraint.MaxTranslation / math.Sqrt(d))
		}

		rotation := h * w
		if rotation*rotation > constraint.MaxRotation*constraint.MaxRotation {
			w *= constraint.MaxRotation / math.Abs(rotation)
		}

		// Integrate
		is.positions[i] = constraint.Position{C: c.Add(v.Mul(h)), A: a + h*w}
		is.velocities[i] = constraint.Velocity{V: v, W: w}
	}
}

// writeBack copies the solver state to the bodies. Static bodies and gear
// carriers are shared with other islands and left untouched.
func (is *island) writeBack() {
	for i, b := range is.owned() {
		if b.kind == StaticBody {
			continue
		}
		b.sweep.C = is.positions[i].C
		b.sweep.A = is.positions[i].A
		b.linearVelocity = is.velocities[i].V
		b.angularVelocity = is.velocities[i].W
		b.synchronizeTransform()
	}
}

func (is *island) recordImpulses() {
	is.impulses = is.impulses[:0]
	for i := range is.solver.Count() {
		is.impulses = append(is.impulses, is.solver.Impulse(i))
	}
}

// owned returns the bodies reached by the flood fill.
func (is *island) owned() []*Body {
	return is.bodies[:len(is.bodies)-is.carriers]
}

// reportImpulses hands the solved impulses to the PostSolve listener.
func (is *island) reportImpulses(listener ContactListener) {
	if listener == nil {
		return
	}
	for i, c := range is.contacts {
		listener.PostSolve(c, is.impulses[i])
	}
}
