// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) closest point algorithm in 2D.
//
// GJK computes the distance between two convex proxies by walking a simplex
// (point, segment, triangle) over their Minkowski difference, converging
// toward the point closest to the origin. The simplex vertex indices are
// cached between calls so that persistent pairs usually converge in one or
// two iterations.
//
// The cache is the warm start of the narrow phase and of time of impact: the
// TOI separating axis is derived from the cached simplex.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Erin Catto: "Computing Distance using GJK", GDC 2010
package gjk

import (
	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxIterations bounds the simplex refinement loop.
const MaxIterations = 20

// SimplexCache carries the simplex of a previous query.
// Set Count to zero on the first call.
type SimplexCache struct {
	Metric float64 // length or area
	Count  int
	IndexA [3]int // vertices on shape A
	IndexB [3]int // vertices on shape B
}

// Input for Distance. With UseRadii, the skin radii are subtracted from the result.
type Input struct {
	ProxyA     Proxy
	ProxyB     Proxy
	TransformA geom.Transform
	TransformB geom.Transform
	UseRadii   bool
}

// Output for Distance.
type Output struct {
	PointA     mgl64.Vec2 // closest point on shape A
	PointB     mgl64.Vec2 // closest point on shape B
	Distance   float64
	Iterations int
}

type simplexVertex struct {
	wA     mgl64.Vec2 // support point in proxy A
	wB     mgl64.Vec2 // support point in proxy B
	w      mgl64.Vec2 // wB - wA
	a      float64    // barycentric coordinate for the closest point
	indexA int
	indexB int
}

// Simplex represents a set of 1-3 points in the Minkowski difference space.
type Simplex struct {
	v     [3]simplexVertex
	count int
}

func (s *Simplex) readCache(cache *SimplexCache, proxyA *Proxy, xfA geom.Transform, proxyB *Proxy, xfB geom.Transform) {
	s.count = cache.Count
	for i := 0; i < s.count; i++ {
		v := &s.v[i]
		v.indexA = cache.IndexA[i]
		v.indexB = cache.IndexB[i]
		v.wA = xfA.Apply(proxyA.Vertex(v.indexA))
		v.wB = xfB.Apply(proxyB.Vertex(v.indexB))
		v.w = v.wB.Sub(v.wA)
		v.a = 0
	}

	// Flush the simplex if its metric changed substantially since the cache was written.
	if s.count > 1 {
		metric1 := cache.Metric
		metric2 := s.metric()
		if metric2 < 0.5*metric1 || 2.0*metric1 < metric2 || metric2 < geom.Epsilon {
			s.count = 0
		}
	}

	if s.count == 0 {
		v := &s.v[0]
		v.indexA = 0
		v.indexB = 0
		v.wA = xfA.Apply(proxyA.Vertex(0))
		v.wB = xfB.Apply(proxyB.Vertex(0))
		v.w = v.wB.Sub(v.wA)
		v.a = 1
		s.count = 1
	}
}

func (s *Simplex) writeCache(cache *SimplexCache) {
	cache.Metric = s.metric()
	cache.Count = s.count
	for i := 0; i < s.count; i++ {
		cache.IndexA[i] = s.v[i].indexA
		cache.IndexB[i] = s.v[i].indexB
	}
}

func (s *Simplex) searchDirection() mgl64.Vec2 {
	switch s.count {
	case 1:
		return s.v[0].w.Mul(-1)

	case 2:
		e12 := s.v[1].w.Sub(s.v[0].w)
		sgn := geom.Cross(e12, s.v[0].w.Mul(-1))
		if sgn > 0 {
			// Origin is left of e12.
			return geom.CrossSV(1.0, e12)
		}
		// Origin is right of e12.
		return geom.CrossVS(e12, 1.0)
	}

	return mgl64.Vec2{}
}

func (s *Simplex) witnessPoints() (mgl64.Vec2, mgl64.Vec2) {
	switch s.count {
	case 1:
		return s.v[0].wA, s.v[0].wB

	case 2:
		pA := s.v[0].wA.Mul(s.v[0].a).Add(s.v[1].wA.Mul(s.v[1].a))
		pB := s.v[0].wB.Mul(s.v[0].a).Add(s.v[1].wB.Mul(s.v[1].a))
		return pA, pB

	case 3:
		pA := s.v[0].wA.Mul(s.v[0].a).Add(s.v[1].wA.Mul(s.v[1].a)).Add(s.v[2].wA.Mul(s.v[2].a))
		return pA, pA
	}

	return mgl64.Vec2{}, mgl64.Vec2{}
}

func (s *Simplex) metric() float64 {
	switch s.count {
	case 2:
		return geom.Distance(s.v[0].w, s.v[1].w)
	case 3:
		return geom.Cross(s.v[1].w.Sub(s.v[0].w), s.v[2].w.Sub(s.v[0].w))
	}
	return 0
}

// solve2 reduces a segment simplex to the feature closest to the origin,
// using barycentric coordinates:
//
//	p = a1 * w1 + a2 * w2, a1 + a2 = 1
//
// The vector from the origin to the closest point is orthogonal to e12 = w2 - w1.
func (s *Simplex) solve2() {
	w1 := s.v[0].w
	w2 := s.v[1].w
	e12 := w2.Sub(w1)

	// w1 region
	d12n2 := -w1.Dot(e12)
	if d12n2 <= 0 {
		// a2 <= 0, so we clamp it to 0
		s.v[0].a = 1
		s.count = 1
		return
	}

	// w2 region
	d12n1 := w2.Dot(e12)
	if d12n1 <= 0 {
		// a1 <= 0, so we clamp it to 0
		s.v[1].a = 1
		s.count = 1
		s.v[0] = s.v[1]
		return
	}

	// Must be in e12 region.
	inv := 1.0 / (d12n1 + d12n2)
	s.v[0].a = d12n1 * inv
	s.v[1].a = d12n2 * inv
	s.count = 2
}

// solve3 tests the vertex, edge and interior regions of a triangle simplex.
func (s *Simplex) solve3() {
	w1 := s.v[0].w
	w2 := s.v[1].w
	w3 := s.v[2].w

	// Edge12
	e12 := w2.Sub(w1)
	d12n1 := w2.Dot(e12)
	d12n2 := -w1.Dot(e12)

	// Edge13
	e13 := w3.Sub(w1)
	d13n1 := w3.Dot(e13)
	d13n2 := -w1.Dot(e13)

	// Edge23
	e23 := w3.Sub(w2)
	d23n1 := w3.Dot(e23)
	d23n2 := -w2.Dot(e23)

	// Triangle123
	n123 := geom.Cross(e12, e13)
	d123n1 := n123 * geom.Cross(w2, w3)
	d123n2 := n123 * geom.Cross(w3, w1)
	d123n3 := n123 * geom.Cross(w1, w2)

	switch {
	// w1 region
	case d12n2 <= 0 && d13n2 <= 0:
		s.v[0].a = 1
		s.count = 1

	// e12
	case d12n1 > 0 && d12n2 > 0 && d123n3 <= 0:
		inv := 1.0 / (d12n1 + d12n2)
		s.v[0].a = d12n1 * inv
		s.v[1].a = d12n2 * inv
		s.count = 2

	// e13
	case d13n1 > 0 && d13n2 > 0 && d123n2 <= 0:
		inv := 1.0 / (d13n1 + d13n2)
		s.v[0].a = d13n1 * inv
		s.v[2].a = d13n2 * inv
		s.count = 2
		s.v[1] = s.v[2]

	// w2 region
	case d12n1 <= 0 && d23n2 <= 0:
		s.v[1].a = 1
		s.count = 1
		s.v[0] = s.v[1]

	// w3 region
	case d13n1 <= 0 && d23n1 <= 0:
		s.v[2].a = 1
		s.count = 1
		s.v[0] = s.v[2]

	// e23
	case d23n1 > 0 && d23n2 > 0 && d123n1 <= 0:
		inv := 1.0 / (d23n1 + d23n2)
		s.v[1].a = d23n1 * inv
		s.v[2].a = d23n2 * inv
		s.count = 2
		s.v[0] = s.v[2]

	// Must be in triangle123
	default:
		inv := 1.0 / (d123n1 + d123n2 + d123n3)
		s.v[0].a = d123n1 * inv
		s.v[1].a = d123n2 * inv
		s.v[2].a = d123n3 * inv
		s.count = 3
	}
}

// Distance computes the closest points between two proxies.
//
// Algorithm overview:
//  1. Rebuild the simplex from the cache (or start from vertex 0 of each proxy)
//  2. Reduce the simplex to the feature closest to the origin
//  3. Stop when the simplex encloses the origin (overlap)
//  4. Add the support point along the search direction
//  5. Stop when the new support point is already in the simplex (no progress)
//
// The cache is updated on return. The proxies are not modified.
func Distance(input *Input, cache *SimplexCache) Output {
	proxyA := &input.ProxyA
	proxyB := &input.ProxyB
	xfA := input.TransformA
	xfB := input.TransformB

	var simplex Simplex
	simplex.readCache(cache, proxyA, xfA, proxyB, xfB)

	// These store the vertices of the last simplex so that we can check for duplicates and prevent cycling.
	var saveA, saveB [3]int

	iter := 0
	for iter < MaxIterations {
		saveCount := simplex.count
		for i := 0; i < saveCount; i++ {
			saveA[i] = simplex.v[i].indexA
			saveB[i] = simplex.v[i].indexB
		}

		switch simplex.count {
		case 2:
			simplex.solve2()
		case 3:
			simplex.solve3()
		}

		// If we have 3 points, then the origin is in the corresponding triangle.
		if simplex.count == 3 {
			break
		}

		d := simplex.searchDirection()

		// Ensure the search direction is numerically fit.
		if d.LenSqr() < geom.Epsilon*geom.Epsilon {
			// The origin is probably contained by a line segment
			// or triangle. Thus the shapes are overlapped.
			break
		}

		// Compute a tentative new simplex vertex using support points.
		vertex := &simplex.v[simplex.count]
		vertex.indexA = proxyA.Support(xfA.Q.ApplyInv(d.Mul(-1)))
		vertex.wA = xfA.Apply(proxyA.Vertex(vertex.indexA))
		vertex.indexB = proxyB.Support(xfB.Q.ApplyInv(d))
		vertex.wB = xfB.Apply(proxyB.Vertex(vertex.indexB))
		vertex.w = vertex.wB.Sub(vertex.wA)

		// Iteration count is equated to the number of support point calls.
		iter++

		// Check for duplicate support points. This is the main termination criteria.
		duplicate := false
		for i := 0; i < saveCount; i++ {
			if vertex.indexA == saveA[i] && vertex.indexB == saveB[i] {
				duplicate = true
				break
			}
		}
		if duplicate {
			break
		}

		simplex.count++
	}

	var output Output
	output.PointA, output.PointB = simplex.witnessPoints()
	output.Distance = geom.Distance(output.PointA, output.PointB)
	output.Iterations = iter

	simplex.writeCache(cache)

	if input.UseRadii {
		rA := proxyA.Radius
		rB := proxyB.Radius

		if output.Distance > rA+rB && output.Distance > geom.Epsilon {
			// Shapes are still not overlapped.
			// Move the witness points to the outer surface.
			output.Distance -= rA + rB
			normal, _ := geom.Normalize(output.PointB.Sub(output.PointA))
			output.PointA = output.PointA.Add(normal.Mul(rA))
			output.PointB = output.PointB.Sub(normal.Mul(rB))
		} else {
			// Shapes are overlapped when radii are considered.
			// Move the witness points to the middle.
			p := output.PointA.Add(output.PointB).Mul(0.5)
			output.PointA = p
			output.PointB = p
			output.Distance = 0
		}
	}

	return output
}
