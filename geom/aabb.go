package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	LowerBound mgl64.Vec2
	UpperBound mgl64.Vec2
}

// RayCastInput is a ray from P1 to P1 + MaxFraction * (P2 - P1).
type RayCastInput struct {
	P1, P2      mgl64.Vec2
	MaxFraction float64
}

// RayCastOutput is the hit normal and the fraction along the input ray.
type RayCastOutput struct {
	Normal   mgl64.Vec2
	Fraction float64
}

// IsValid reports whether the bounds are sorted and finite.
func (a AABB) IsValid() bool {
	d := a.UpperBound.Sub(a.LowerBound)
	return d[0] >= 0 && d[1] >= 0 && IsValid(a.LowerBound) && IsValid(a.UpperBound)
}

// Center returns the center of the box.
func (a AABB) Center() mgl64.Vec2 {
	return a.LowerBound.Add(a.UpperBound).Mul(0.5)
}

// Extents returns the half-widths of the box.
func (a AABB) Extents() mgl64.Vec2 {
	return a.UpperBound.Sub(a.LowerBound).Mul(0.5)
}

// Perimeter is the surface-area heuristic cost used by the dynamic tree.
func (a AABB) Perimeter() float64 {
	wx := a.UpperBound[0] - a.LowerBound[0]
	wy := a.UpperBound[1] - a.LowerBound[1]
	return 2.0 * (wx + wy)
}

// Combine returns the smallest box holding a and b.
func (a AABB) Combine(b AABB) AABB {
	return AABB{
		LowerBound: MinVec(a.LowerBound, b.LowerBound),
		UpperBound: MaxVec(a.UpperBound, b.UpperBound),
	}
}

// Fatten grows the box by margin on every side.
func (a AABB) Fatten(margin float64) AABB {
	r := mgl64.Vec2{margin, margin}
	return AABB{LowerBound: a.LowerBound.Sub(r), UpperBound: a.UpperBound.Add(r)}
}

// Contains checks if b lies inside a
func (a AABB) Contains(b AABB) bool {
	return a.LowerBound[0] <= b.LowerBound[0] &&
		a.LowerBound[1] <= b.LowerBound[1] &&
		b.UpperBound[0] <= a.UpperBound[0] &&
		b.UpperBound[1] <= a.UpperBound[1]
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(p mgl64.Vec2) bool {
	return p[0] >= a.LowerBound[0] && p[0] <= a.UpperBound[0] &&
		p[1] >= a.LowerBound[1] && p[1] <= a.UpperBound[1]
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(b AABB) bool {
	if b.LowerBound[0]-a.UpperBound[0] > 0 || b.LowerBound[1]-a.UpperBound[1] > 0 {
		return false
	}
	if a.LowerBound[0]-b.UpperBound[0] > 0 || a.LowerBound[1]-b.UpperBound[1] > 0 {
		return false
	}
	return true
}

// RayCast clips the ray against the slabs of the box.
// From Real-time Collision Detection, p179.
func (a AABB) RayCast(input RayCastInput) (RayCastOutput, bool) {
	tmin := -math.MaxFloat64
	tmax := math.MaxFloat64

	p := input.P1
	d := input.P2.Sub(input.P1)
	absD := Abs(d)

	var normal mgl64.Vec2
	for i := 0; i < 2; i++ {
		if absD[i] < Epsilon {
			// parallel
			if p[i] < a.LowerBound[i] || a.UpperBound[i] < p[i] {
				return RayCastOutput{}, false
			}
			continue
		}

		invD := 1.0 / d[i]
		t1 := (a.LowerBound[i] - p[i]) * invD
		t2 := (a.UpperBound[i] - p[i]) * invD

		// sign of the normal vector
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}

		if t1 > tmin {
			normal = mgl64.Vec2{}
			normal[i] = s
			tmin = t1
		}
		tmax = min(tmax, t2)

		if tmin > tmax {
			return RayCastOutput{}, false
		}
	}

	// Does the ray start inside the box or does the intersection lie beyond the max fraction?
	if tmin < 0 || input.MaxFraction < tmin {
		return RayCastOutput{}, false
	}

	return RayCastOutput{Normal: normal, Fraction: tmin}, true
}
