// Package toi computes the time of impact between two moving convex shapes
// by conservative advancement.
//
// Each outer iteration takes the GJK simplex at the current advancement time,
// turns it into a separating axis, and root-finds the time at which the
// separation along that axis reaches the target distance. The axis is
// refreshed from GJK as time advances, which is what makes rotating shapes
// converge without tunneling.
//
// References:
//   - Erin Catto: "Continuous Collision", GDC 2013
package toi

import (
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Iteration caps keep every query bounded.
const (
	MaxIterations     = 20
	MaxRootIterations = 50
)

// Tolerance is the half-width of the accepted separation band around the target.
const Tolerance = 0.25 * geom.LinearSlop

// State is the outcome of a time of impact query.
type State int

const (
	StateUnknown State = iota
	StateFailed
	StateOverlapped
	StateTouching
	StateSeparated
)

func (s State) String() string {
	switch s {
	case StateFailed:
		return "failed"
	case StateOverlapped:
		return "overlapped"
	case StateTouching:
		return "touching"
	case StateSeparated:
		return "separated"
	}
	return "unknown"
}

// Input sweeps both proxies over [0, TMax].
type Input struct {
	ProxyA gjk.Proxy
	ProxyB gjk.Proxy
	SweepA geom.Sweep
	SweepB geom.Sweep
	TMax   float64 // defines the sweep interval [0, TMax]
}

// Output is the time of impact in [0, TMax] and how it was reached.
type Output struct {
	State      State
	T          float64
	Iterations int
}

// Target returns the separation at which two proxies are considered touching:
// a bit less than the sum of their skin radii.
func Target(totalRadius float64) float64 {
	return max(geom.LinearSlop, totalRadius-3.0*geom.LinearSlop)
}

type separationType int

const (
	separationPoints separationType = iota
	separationFaceA
	separationFaceB
)

// separationFunction measures the distance between the proxies along an
// axis derived from a GJK simplex, at any time of the sweep.
type separationFunction struct {
	proxyA, proxyB *gjk.Proxy
	sweepA, sweepB geom.Sweep
	kind           separationType
	localPoint     mgl64.Vec2
	axis           mgl64.Vec2
}

func (f *separationFunction) initialize(cache *gjk.SimplexCache, proxyA *gjk.Proxy, sweepA geom.Sweep, proxyB *gjk.Proxy, sweepB geom.Sweep, t1 float64) float64 {
	f.proxyA = proxyA
	f.proxyB = proxyB
	f.sweepA = sweepA
	f.sweepB = sweepB

	xfA := sweepA.Transform(t1)
	xfB := sweepB.Transform(t1)

	if cache.Count == 1 {
		f.kind = separationPoints
		pointA := xfA.Apply(proxyA.Vertex(cache.IndexA[0]))
		pointB := xfB.Apply(proxyB.Vertex(cache.IndexB[0]))
		axis, s := geom.Normalize(pointB.Sub(pointA))
		f.axis = axis
		return s
	}

	if cache.IndexA[0] == cache.IndexA[1] {
		// Two points on B and one on A.
		f.kind = separationFaceB
		localPointB1 := proxyB.Vertex(cache.IndexB[0])
		localPointB2 := proxyB.Vertex(cache.IndexB[1])

		axis, _ := geom.Normalize(geom.CrossVS(localPointB2.Sub(localPointB1), 1.0))
		normal := xfB.Q.Apply(axis)

		localPoint := localPointB1.Add(localPointB2).Mul(0.5)
		pointB := xfB.Apply(localPoint)
		pointA := xfA.Apply(proxyA.Vertex(cache.IndexA[0]))

		s := pointA.Sub(pointB).Dot(normal)
		if s < 0 {
			axis = axis.Mul(-1)
			s = -s
		}
		f.axis = axis
		f.localPoint = localPoint
		return s
	}

	// Two points on A and one or two points on B.
	f.kind = separationFaceA
	localPointA1 := proxyA.Vertex(cache.IndexA[0])
	localPointA2 := proxyA.Vertex(cache.IndexA[1])

	axis, _ := geom.Normalize(geom.CrossVS(localPointA2.Sub(localPointA1), 1.0))
	normal := xfA.Q.Apply(axis)

	localPoint := localPointA1.Add(localPointA2).Mul(0.5)
	pointA := xfA.Apply(localPoint)
	pointB := xfB.Apply(proxyB.Vertex(cache.IndexB[0]))

	s := pointB.Sub(pointA).Dot(normal)
	if s < 0 {
		axis = axis.Mul(-1)
		s = -s
	}
	f.axis = axis
	f.localPoint = localPoint
	return s
}

// findMinSeparation returns the deepest points along the axis at time t.
func (f *separationFunction) findMinSeparation(t float64) (int, int, float64) {
	xfA := f.sweepA.Transform(t)
	xfB := f.sweepB.Transform(t)
	axis := f.axis

	switch f.kind {
	case separationPoints:
		axisA := xfA.Q.ApplyInv(axis)
		axisB := xfB.Q.ApplyInv(axis.Mul(-1))

		indexA := f.proxyA.Support(axisA)
		indexB := f.proxyB.Support(axisB)

		pointA := xfA.Apply(f.proxyA.Vertex(indexA))
		pointB := xfB.Apply(f.proxyB.Vertex(indexB))
		return indexA, indexB, pointB.Sub(pointA).Dot(axis)

	case separationFaceA:
		normal := xfA.Q.Apply(axis)
		pointA := xfA.Apply(f.localPoint)

		axisB := xfB.Q.ApplyInv(normal.Mul(-1))
		indexB := f.proxyB.Support(axisB)
		pointB := xfB.Apply(f.proxyB.Vertex(indexB))
		return -1, indexB, pointB.Sub(pointA).Dot(normal)

	default:
		normal := xfB.Q.Apply(axis)
		pointB := xfB.Apply(f.localPoint)

		axisA := xfA.Q.ApplyInv(normal.Mul(-1))
		indexA := f.proxyA.Support(axisA)
		pointA := xfA.Apply(f.proxyA.Vertex(indexA))
		return indexA, -1, pointA.Sub(pointB).Dot(normal)
	}
}

// evaluate returns the separation of the given vertices along the axis at time t.
func (f *separationFunction) evaluate(indexA, indexB int, t float64) float64 {
	xfA := f.sweepA.Transform(t)
	xfB := f.sweepB.Transform(t)
	axis := f.axis

	switch f.kind {
	case separationPoints:
		pointA := xfA.Apply(f.proxyA.Vertex(indexA))
		pointB := xfB.Apply(f.proxyB.Vertex(indexB))
		return pointB.Sub(pointA).Dot(axis)

	case separationFaceA:
		normal := xfA.Q.Apply(axis)
		pointA := xfA.Apply(f.localPoint)
		pointB := xfB.Apply(f.proxyB.Vertex(indexB))
		return pointB.Sub(pointA).Dot(normal)

	default:
		normal := xfB.Q.Apply(axis)
		pointB := xfB.Apply(f.localPoint)
		pointA := xfA.Apply(f.proxyA.Vertex(indexA))
		return pointA.Sub(pointB).Dot(normal)
	}
}

// TimeOfImpact computes the upper bound on time before two shapes penetrate.
// Time is represented as a fraction in [0, TMax]. The result is meant for
// conservative advancement: the shapes may touch at T but never overlap by
// more than the skin radii.
//
// Returns:
//   - StateSeparated with T = TMax when no impact happens during the sweep
//   - StateTouching with the advancement time of the first contact
//   - StateOverlapped with T = 0 when the cores already overlap at the start
//   - StateFailed when the root finder or the outer loop exhausted its budget
func TimeOfImpact(input *Input) Output {
	output := Output{State: StateUnknown, T: input.TMax}

	proxyA := &input.ProxyA
	proxyB := &input.ProxyB

	sweepA := input.SweepA
	sweepB := input.SweepB

	// Large rotations can make the root finder fail, so we normalize the sweep angles.
	sweepA.Normalize()
	sweepB.Normalize()

	tMax := input.TMax

	totalRadius := proxyA.Radius + proxyB.Radius
	target := Target(totalRadius)

	t1 := 0.0
	var cache gjk.SimplexCache

	distanceInput := gjk.Input{
		ProxyA: input.ProxyA,
		ProxyB: input.ProxyB,
	}

	// The outer loop progressively attempts to compute new separating axes.
	// This loop terminates when an axis is repeated (no progress is made).
	for {
		xfA := sweepA.Transform(t1)
		xfB := sweepB.Transform(t1)

		// Get the distance between shapes. We can also use the results
		// to get a separating axis.
		distanceInput.TransformA = xfA
		distanceInput.TransformB = xfB
		distanceOutput := gjk.Distance(&distanceInput, &cache)

		// If the shapes are overlapped, we give up on continuous collision.
		if distanceOutput.Distance <= 0 {
			output.State = StateOverlapped
			output.T = 0
			break
		}

		if distanceOutput.Distance < target+Tolerance {
			// Victory!
			output.State = StateTouching
			output.T = t1
			break
		}

		var fcn separationFunction
		fcn.initialize(&cache, proxyA, sweepA, proxyB, sweepB, t1)

		// Compute the TOI on the separating axis. We do this by successively
		// resolving the deepest point. This loop is bounded by the number of vertices.
		done := false
		t2 := tMax
		for pushBackIter := 0; pushBackIter < geom.MaxPolygonVertices; pushBackIter++ {
			// Find the deepest point at t2. Store the witness point indices.
			indexA, indexB, s2 := fcn.findMinSeparation(t2)

			// Is the final configuration separated?
			if s2 > target+Tolerance {
				// Victory!
				output.State = StateSeparated
				output.T = tMax
				done = true
				break
			}

			// Has the separation reached tolerance?
			if s2 > target-Tolerance {
				// Advance the sweeps
				t1 = t2
				break
			}

			// Compute the initial separation of the witness points.
			s1 := fcn.evaluate(indexA, indexB, t1)

			// Check for initial overlap. This might happen if the root finder
			// runs out of iterations.
			if s1 < target-Tolerance {
				output.State = StateFailed
				output.T = t1
				done = true
				break
			}

			// Check for touching
			if s1 <= target+Tolerance {
				// Victory! t1 should hold the TOI (could be 0.0).
				output.State = StateTouching
				output.T = t1
				done = true
				break
			}

			// 1D root of f(t) - target = 0, mixing bisection and secant steps
			a1, a2 := t1, t2
			for rootIter := 0; rootIter < MaxRootIterations; rootIter++ {
				var t float64
				if rootIter&1 == 1 {
					// Secant rule to improve convergence.
					t = a1 + (target-s1)*(a2-a1)/(s2-s1)
				} else {
					// Bisection to guarantee progress.
					t = 0.5 * (a1 + a2)
				}

				s := fcn.evaluate(indexA, indexB, t)

				if math.Abs(s-target) < Tolerance {
					// t2 holds a tentative value for t1
					t2 = t
					break
				}

				// Ensure we continue to bracket the root.
				if s > target {
					a1 = t
					s1 = s
				} else {
					a2 = t
					s2 = s
				}
			}
		}

		output.Iterations++

		if done {
			break
		}

		if output.Iterations == MaxIterations {
			// Root finder got stuck. Semi-victory.
			output.State = StateFailed
			output.T = t1
			break
		}
	}

	return output
}
