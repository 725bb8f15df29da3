// Package constraint implements the sequential impulse solver: contact
// constraints and joints operating on per-island position and velocity arrays.
//
// Bodies are referenced by their island index. The solver never sees a body
// directly, which lets islands be solved concurrently.
package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Solver tuning.
const (
	// Baumgarte is the position correction factor of the regular position solve.
	Baumgarte = 0.2
	// TOIBaumgarte is the position correction factor of the TOI sub-step solve.
	TOIBaumgarte = 0.75

	// MaxLinearCorrection bounds the linear position correction of a single iteration.
	MaxLinearCorrection = 0.2
	// MaxAngularCorrection bounds the angular position correction of a single iteration.
	MaxAngularCorrection = 8.0 / 180.0 * math.Pi

	// VelocityThreshold is the relative normal velocity below which collisions are inelastic.
	VelocityThreshold = 1.0

	// MaxTranslation bounds the translation of a body in one step.
	MaxTranslation = 2.0
	// MaxRotation bounds the rotation of a body in one step.
	MaxRotation = 0.5 * math.Pi

	// maxConditionNumber guards the two-point block solver.
	maxConditionNumber = 1000.0
)

// TimeStep describes one solver step.
type TimeStep struct {
	Dt                 float64 // time step
	InvDt              float64 // inverse time step (0 if Dt == 0)
	DtRatio            float64 // Dt * previous InvDt, scales warm starting
	VelocityIterations int
	PositionIterations int
	WarmStarting       bool
}

// Position is the solver copy of a body center and angle.
type Position struct {
	C mgl64.Vec2
	A float64
}

// Velocity is the solver copy of a body velocity.
type Velocity struct {
	V mgl64.Vec2
	W float64
}

// SolverData is shared by every constraint of an island.
type SolverData struct {
	Step       TimeStep
	Positions  []Position
	Velocities []Velocity
}

// BodyRef is what a constraint knows about one of its bodies during a solve.
type BodyRef struct {
	Index       int // island index
	LocalCenter mgl64.Vec2
	InvMass     float64
	InvI        float64
}

// MixFriction combines two friction coefficients with a geometric mean,
// so that a frictionless surface slides on anything.
func MixFriction(friction1, friction2 float64) float64 {
	return math.Sqrt(friction1 * friction2)
}

// MixRestitution combines two restitution coefficients: if either bounces, the pair bounces.
func MixRestitution(restitution1, restitution2 float64) float64 {
	return max(restitution1, restitution2)
}

// invOrZero returns 1/x, or zero for a non-positive x.
func invOrZero(x float64) float64 {
	if x > 0 {
		return 1.0 / x
	}
	return 0
}
