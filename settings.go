package feather2d

import "math"

// Sleep and continuous collision tuning.
const (
	// TimeToSleep is the time a body must be still before it sleeps.
	TimeToSleep = 0.5

	// LinearSleepTolerance is the linear velocity below which a body may sleep.
	LinearSleepTolerance = 0.01

	// AngularSleepTolerance is the angular velocity below which a body may sleep.
	AngularSleepTolerance = 2.0 / 180.0 * math.Pi

	// MaxSubSteps bounds the TOI events handled for one contact in a step.
	MaxSubSteps = 8

	// MaxTOIContacts bounds the contacts of a TOI mini-island.
	MaxTOIContacts = 32

	// toiPositionIterations is the position iteration count of a TOI sub-step.
	toiPositionIterations = 20
)

const DEFAULT_WORKERS = 1
