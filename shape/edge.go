package shape

import (
	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Edge is a line segment from V1 to V2. A one-sided edge only collides on the
// right side looking from V1 to V2, and uses the ghost vertices V0 and V3 to
// avoid internal collisions when chained with neighbours.
type Edge struct {
	V1, V2   mgl64.Vec2
	V0, V3   mgl64.Vec2
	OneSided bool
}

// NewEdge creates a two-sided segment.
func NewEdge(v1, v2 mgl64.Vec2) *Edge {
	return &Edge{V1: v1, V2: v2, V0: v1, V3: v2}
}

// NewOneSidedEdge creates a segment from v1 to v2 colliding on its right side,
// with v0 preceding v1 and v3 following v2.
func NewOneSidedEdge(v0, v1, v2, v3 mgl64.Vec2) *Edge {
	return &Edge{V0: v0, V1: v1, V2: v2, V3: v3, OneSided: true}
}

func (e *Edge) Type() Type      { return TypeEdge }
func (e *Edge) Radius() float64 { return geom.PolygonRadius }
func (e *Edge) ChildCount() int { return 1 }

func (e *Edge) TestPoint(geom.Transform, mgl64.Vec2) bool { return false }

// RayCast intersects the ray with the segment. One-sided edges only report
// hits coming from the collision side.
func (e *Edge) RayCast(input geom.RayCastInput, xf geom.Transform, _ int) (geom.RayCastOutput, bool) {
	return raycastSegment(input, xf, e.V1, e.V2, e.OneSided)
}

func (e *Edge) ComputeAABB(xf geom.Transform, _ int) geom.AABB {
	v1 := xf.Apply(e.V1)
	v2 := xf.Apply(e.V2)

	r := mgl64.Vec2{geom.PolygonRadius, geom.PolygonRadius}
	return geom.AABB{
		LowerBound: geom.MinVec(v1, v2).Sub(r),
		UpperBound: geom.MaxVec(v1, v2).Add(r),
	}
}

func (e *Edge) ComputeMass(float64) MassData {
	return MassData{Center: e.V1.Add(e.V2).Mul(0.5)}
}

func raycastSegment(input geom.RayCastInput, xf geom.Transform, v1, v2 mgl64.Vec2, oneSided bool) (geom.RayCastOutput, bool) {
	// Put the ray into the edge's frame of reference.
	p1 := xf.ApplyInv(input.P1)
	p2 := xf.ApplyInv(input.P2)
	d := p2.Sub(p1)

	e := v2.Sub(v1)

	// normal points to the right, looking from v1 at v2
	normal, _ := geom.Normalize(mgl64.Vec2{e[1], -e[0]})

	// q = p1 + t * d
	// dot(normal, q - v1) = 0
	// dot(normal, p1 - v1) + t * dot(normal, d) = 0
	numerator := normal.Dot(v1.Sub(p1))
	if oneSided && numerator > 0 {
		return geom.RayCastOutput{}, false
	}

	denominator := normal.Dot(d)
	if denominator == 0 {
		return geom.RayCastOutput{}, false
	}

	t := numerator / denominator
	if t < 0 || input.MaxFraction < t {
		return geom.RayCastOutput{}, false
	}

	q := p1.Add(d.Mul(t))

	// q = v1 + s * r
	// s = dot(q - v1, r) / dot(r, r)
	rr := e.LenSqr()
	if rr == 0 {
		return geom.RayCastOutput{}, false
	}

	s := q.Sub(v1).Dot(e) / rr
	if s < 0 || 1 < s {
		return geom.RayCastOutput{}, false
	}

	n := xf.Q.Apply(normal)
	if numerator > 0 {
		n = n.Mul(-1)
	}
	return geom.RayCastOutput{Normal: n, Fraction: t}, true
}
