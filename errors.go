package feather2d

import "errors"

var (
	// ErrLocked is returned by mutations attempted during Step or from a callback.
	ErrLocked = errors.New("feather2d: world is locked")

	ErrInvalidBody     = errors.New("feather2d: invalid body")
	ErrInvalidFixture  = errors.New("feather2d: invalid fixture")
	ErrInvalidJoint    = errors.New("feather2d: invalid joint")
	ErrSameBody        = errors.New("feather2d: joint bodies must differ")
	ErrInvalidJointDef = errors.New("feather2d: invalid joint definition")
)
