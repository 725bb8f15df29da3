package shape

import (
	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Chain is a free-form sequence of one-sided edges. It has no volume and
// collides on the right side of each segment: a counter-clockwise loop
// collides on its outside, a clockwise loop holds bodies inside.
type Chain struct {
	Vertices   []mgl64.Vec2
	PrevVertex mgl64.Vec2
	NextVertex mgl64.Vec2
	Loop       bool
}

// NewLoop creates a closed chain. The first vertex is repeated at the end.
func NewLoop(vertices []mgl64.Vec2) (*Chain, error) {
	if len(vertices) < 3 {
		return nil, ErrChainTooShort
	}
	if err := validateChain(vertices, true); err != nil {
		return nil, err
	}

	count := len(vertices) + 1
	vs := make([]mgl64.Vec2, count)
	copy(vs, vertices)
	vs[count-1] = vs[0]

	return &Chain{
		Vertices:   vs,
		PrevVertex: vs[count-2],
		NextVertex: vs[1],
		Loop:       true,
	}, nil
}

// NewChain creates an open chain with ghost vertices before the first and
// after the last vertex.
func NewChain(vertices []mgl64.Vec2, prevVertex, nextVertex mgl64.Vec2) (*Chain, error) {
	if len(vertices) < 2 {
		return nil, ErrChainTooShort
	}
	if err := validateChain(vertices, false); err != nil {
		return nil, err
	}

	vs := make([]mgl64.Vec2, len(vertices))
	copy(vs, vertices)

	return &Chain{
		Vertices:   vs,
		PrevVertex: prevVertex,
		NextVertex: nextVertex,
	}, nil
}

func validateChain(vertices []mgl64.Vec2, loop bool) error {
	const minDistSqr = geom.LinearSlop * geom.LinearSlop

	n := len(vertices)
	for i := 1; i < n; i++ {
		if geom.DistanceSquared(vertices[i-1], vertices[i]) <= minDistSqr {
			return ErrVerticesTooClose
		}
	}
	if loop && geom.DistanceSquared(vertices[n-1], vertices[0]) <= minDistSqr {
		return ErrVerticesTooClose
	}
	return nil
}

func (c *Chain) Type() Type      { return TypeChain }
func (c *Chain) Radius() float64 { return geom.PolygonRadius }

// ChildCount is the number of edges.
func (c *Chain) ChildCount() int { return len(c.Vertices) - 1 }

// ChildEdge returns the one-sided edge at index, with its ghost vertices.
func (c *Chain) ChildEdge(index int) Edge {
	e := Edge{
		V1:       c.Vertices[index],
		V2:       c.Vertices[index+1],
		OneSided: true,
	}

	if index > 0 {
		e.V0 = c.Vertices[index-1]
	} else {
		e.V0 = c.PrevVertex
	}

	if index < len(c.Vertices)-2 {
		e.V3 = c.Vertices[index+2]
	} else {
		e.V3 = c.NextVertex
	}
	return e
}

func (c *Chain) TestPoint(geom.Transform, mgl64.Vec2) bool { return false }

func (c *Chain) RayCast(input geom.RayCastInput, xf geom.Transform, childIndex int) (geom.RayCastOutput, bool) {
	i1 := childIndex
	i2 := childIndex + 1
	return raycastSegment(input, xf, c.Vertices[i1], c.Vertices[i2], true)
}

func (c *Chain) ComputeAABB(xf geom.Transform, childIndex int) geom.AABB {
	v1 := xf.Apply(c.Vertices[childIndex])
	v2 := xf.Apply(c.Vertices[childIndex+1])

	r := mgl64.Vec2{geom.PolygonRadius, geom.PolygonRadius}
	return geom.AABB{
		LowerBound: geom.MinVec(v1, v2).Sub(r),
		UpperBound: geom.MaxVec(v1, v2).Add(r),
	}
}

// ComputeMass returns zero mass; chains are meant for static bodies.
func (c *Chain) ComputeMass(float64) MassData {
	return MassData{}
}
