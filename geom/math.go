// Package geom holds the 2D value types used by every other package:
// rotations, transforms, sweeps, bounding boxes and small linear solves.
// Vectors are mgl64.Vec2 throughout.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// Cross returns the z component of the 3D cross product of a and b.
func Cross(a, b mgl64.Vec2) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

// CrossVS returns a x s, where s is a scalar out of plane.
func CrossVS(a mgl64.Vec2, s float64) mgl64.Vec2 {
	return mgl64.Vec2{s * a[1], -s * a[0]}
}

// CrossSV returns s x a, where s is a scalar out of plane.
func CrossSV(s float64, a mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{-s * a[1], s * a[0]}
}

// Skew returns the vector rotated by +90 degrees.
func Skew(a mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{-a[1], a[0]}
}

// Normalize returns the unit vector and the original length.
// A vector shorter than Epsilon is returned unchanged with a zero length.
func Normalize(a mgl64.Vec2) (mgl64.Vec2, float64) {
	length := a.Len()
	if length < Epsilon {
		return a, 0
	}
	inv := 1.0 / length
	return mgl64.Vec2{a[0] * inv, a[1] * inv}, length
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b mgl64.Vec2) float64 {
	return a.Sub(b).Len()
}

// DistanceSquared returns the squared euclidean distance between a and b.
func DistanceSquared(a, b mgl64.Vec2) float64 {
	return a.Sub(b).LenSqr()
}

// Abs returns the component-wise absolute value.
func Abs(a mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{math.Abs(a[0]), math.Abs(a[1])}
}

// MinVec returns the component-wise minimum.
func MinVec(a, b mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{min(a[0], b[0]), min(a[1], b[1])}
}

// MaxVec returns the component-wise maximum.
func MaxVec(a, b mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{max(a[0], b[0]), max(a[1], b[1])}
}

// Clamp restricts a to [low, high].
func Clamp[T constraints.Ordered](a, low, high T) T {
	return max(low, min(a, high))
}

// IsValid reports whether every component is a finite number.
func IsValid(a mgl64.Vec2) bool {
	return !math.IsNaN(a[0]) && !math.IsInf(a[0], 0) && !math.IsNaN(a[1]) && !math.IsInf(a[1], 0)
}
