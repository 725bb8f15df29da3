package shape

import (
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Circle is a solid disc centered on a local point.
type Circle struct {
	Center mgl64.Vec2
	radius float64
}

// NewCircle creates a circle of radius r around center.
func NewCircle(center mgl64.Vec2, r float64) (*Circle, error) {
	if r <= 0 {
		return nil, ErrNonPositiveRadius
	}
	return &Circle{Center: center, radius: r}, nil
}

func (c *Circle) Type() Type      { return TypeCircle }
func (c *Circle) Radius() float64 { return c.radius }
func (c *Circle) ChildCount() int { return 1 }

func (c *Circle) TestPoint(xf geom.Transform, p mgl64.Vec2) bool {
	center := xf.Apply(c.Center)
	return p.Sub(center).LenSqr() <= c.radius*c.radius
}

// RayCast solves |p1 + t*d - center|^2 = r^2 for the smallest t.
// From Section 3.1.2 of Collision Detection in Interactive 3D Environments by Gino van den Bergen.
func (c *Circle) RayCast(input geom.RayCastInput, xf geom.Transform, _ int) (geom.RayCastOutput, bool) {
	position := xf.Apply(c.Center)
	s := input.P1.Sub(position)
	b := s.LenSqr() - c.radius*c.radius

	r := input.P2.Sub(input.P1)
	cc := s.Dot(r)
	rr := r.LenSqr()
	sigma := cc*cc - rr*b

	// Check for negative discriminant and short segment.
	if sigma < 0 || rr < geom.Epsilon {
		return geom.RayCastOutput{}, false
	}

	// Find the point of intersection of the line with the circle.
	a := -(cc + math.Sqrt(sigma))

	// Is the intersection point on the segment?
	if 0 <= a && a <= input.MaxFraction*rr {
		a /= rr
		normal, _ := geom.Normalize(s.Add(r.Mul(a)))
		return geom.RayCastOutput{Normal: normal, Fraction: a}, true
	}

	return geom.RayCastOutput{}, false
}

func (c *Circle) ComputeAABB(xf geom.Transform, _ int) geom.AABB {
	p := xf.Apply(c.Center)
	r := mgl64.Vec2{c.radius, c.radius}
	return geom.AABB{LowerBound: p.Sub(r), UpperBound: p.Add(r)}
}

func (c *Circle) ComputeMass(density float64) MassData {
	mass := density * math.Pi * c.radius * c.radius

	// inertia about the local origin
	return MassData{
		Mass:   mass,
		Center: c.Center,
		I:      mass * (0.5*c.radius*c.radius + c.Center.Dot(c.Center)),
	}
}
