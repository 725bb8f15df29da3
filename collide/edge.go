package collide

import (
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// Smooth edge collision tolerances.
const (
	// edgeRelativeTolerance and edgeAbsoluteTolerance add hysteresis when
	// choosing between the edge axis and a polygon axis.
	edgeRelativeTolerance = 0.98
	edgeAbsoluteTolerance = 0.001

	// edgeSinTolerance bounds the normal deviation admitted at a convex
	// ghost vertex before the contact is skipped.
	edgeSinTolerance = 0.1
)

// CollideEdgeAndCircle computes the manifold of an edge and a circle.
// One-sided edges ignore circles behind them and defer vertex contacts to the
// neighbouring edge when the circle is in its face region.
func CollideEdgeAndCircle(m *Manifold, edgeA *shape.Edge, xfA geom.Transform, circleB *shape.Circle, xfB geom.Transform) {
	m.PointCount = 0

	// Compute circle in frame of edge
	q := xfA.ApplyInv(xfB.Apply(circleB.Center))

	a, b := edgeA.V1, edgeA.V2
	e := b.Sub(a)

	// Normal points to the right for a CCW winding
	n := mgl64.Vec2{e[1], -e[0]}
	offset := n.Dot(q.Sub(a))

	if edgeA.OneSided && offset < 0 {
		return
	}

	// Barycentric coordinates
	u := e.Dot(b.Sub(q))
	v := e.Dot(q.Sub(a))

	radius := edgeA.Radius() + circleB.Radius()

	id := ContactID{IndexB: 0, TypeB: FeatureVertex}

	// Region A
	if v <= 0 {
		if geom.DistanceSquared(q, a) > radius*radius {
			return
		}

		// Is there an edge connected to A?
		if edgeA.OneSided {
			e1 := a.Sub(edgeA.V0)
			u1 := e1.Dot(a.Sub(q))

			// Is the circle in Region AB of the previous edge?
			if u1 > 0 {
				return
			}
		}

		id.IndexA = 0
		id.TypeA = FeatureVertex
		setCircleContact(m, a, circleB.Center, id)
		return
	}

	// Region B
	if u <= 0 {
		if geom.DistanceSquared(q, b) > radius*radius {
			return
		}

		// Is there an edge connected to B?
		if edgeA.OneSided {
			e2 := edgeA.V3.Sub(b)
			v2 := e2.Dot(q.Sub(b))

			// Is the circle in Region AB of the next edge?
			if v2 > 0 {
				return
			}
		}

		id.IndexA = 1
		id.TypeA = FeatureVertex
		setCircleContact(m, b, circleB.Center, id)
		return
	}

	// Region AB
	den := e.Dot(e)
	if den <= 0 {
		return
	}
	p := a.Mul(u).Add(b.Mul(v)).Mul(1.0 / den)
	if geom.DistanceSquared(q, p) > radius*radius {
		return
	}

	if offset < 0 {
		n = n.Mul(-1)
	}
	n, _ = geom.Normalize(n)

	id.IndexA = 0
	id.TypeA = FeatureFace
	m.PointCount = 1
	m.Type = ManifoldFaceA
	m.LocalNormal = n
	m.LocalPoint = a
	m.Points[0].ID = id
	m.Points[0].LocalPoint = circleB.Center
}

func setCircleContact(m *Manifold, p, circleCenter mgl64.Vec2, id ContactID) {
	m.PointCount = 1
	m.Type = ManifoldCircles
	m.LocalNormal = mgl64.Vec2{}
	m.LocalPoint = p
	m.Points[0].ID = id
	m.Points[0].LocalPoint = circleCenter
}

type axisType uint8

const (
	axisUnknown axisType = iota
	axisEdgeA
	axisEdgeB
)

// separationAxis keeps track of the best separating axis.
type separationAxis struct {
	normal     mgl64.Vec2
	kind       axisType
	index      int
	separation float64
}

// tempPolygon holds polygon B expressed in frame A.
type tempPolygon struct {
	vertices [geom.MaxPolygonVertices]mgl64.Vec2
	normals  [geom.MaxPolygonVertices]mgl64.Vec2
	count    int
}

// referenceFace is the face used for clipping.
type referenceFace struct {
	i1, i2      int
	v1, v2      mgl64.Vec2
	normal      mgl64.Vec2
	sideNormal1 mgl64.Vec2
	sideOffset1 float64
	sideNormal2 mgl64.Vec2
	sideOffset2 float64
}

func computeEdgeSeparation(polygonB *tempPolygon, v1, normal1 mgl64.Vec2) separationAxis {
	axis := separationAxis{kind: axisEdgeA, index: -1, separation: -math.MaxFloat64}

	axes := [2]mgl64.Vec2{normal1, normal1.Mul(-1)}

	// Find axis with least overlap (min-max problem)
	for j := 0; j < 2; j++ {
		sj := math.MaxFloat64

		// Find deepest polygon vertex along axis j
		for i := 0; i < polygonB.count; i++ {
			if si := axes[j].Dot(polygonB.vertices[i].Sub(v1)); si < sj {
				sj = si
			}
		}

		if sj > axis.separation {
			axis.index = j
			axis.separation = sj
			axis.normal = axes[j]
		}
	}

	return axis
}

func computePolygonSeparation(polygonB *tempPolygon, v1, v2 mgl64.Vec2) separationAxis {
	axis := separationAxis{kind: axisUnknown, index: -1, separation: -math.MaxFloat64}

	for i := 0; i < polygonB.count; i++ {
		n := polygonB.normals[i].Mul(-1)

		s1 := n.Dot(polygonB.vertices[i].Sub(v1))
		s2 := n.Dot(polygonB.vertices[i].Sub(v2))
		s := min(s1, s2)

		if s > axis.separation {
			axis.kind = axisEdgeB
			axis.index = i
			axis.separation = s
			axis.normal = n
		}
	}

	return axis
}

// CollideEdgeAndPolygon computes the manifold of an edge and a polygon.
//
// For one-sided edges the chosen normal is tested against the Gauss map of
// the neighbouring edges: normals pointing into a convex neighbour's region
// are skipped (the neighbour owns the contact), and concave corners snap to
// the edge normal. This removes ghost collisions along chains.
func CollideEdgeAndPolygon(m *Manifold, edgeA *shape.Edge, xfA geom.Transform, polygonB *shape.Polygon, xfB geom.Transform) {
	m.PointCount = 0

	xf := xfA.MulT(xfB)

	centroidB := xf.Apply(polygonB.Centroid)

	v1 := edgeA.V1
	v2 := edgeA.V2

	edge1, _ := geom.Normalize(v2.Sub(v1))

	// Normal points to the right for a CCW winding
	normal1 := mgl64.Vec2{edge1[1], -edge1[0]}
	offset1 := normal1.Dot(centroidB.Sub(v1))

	if edgeA.OneSided && offset1 < 0 {
		return
	}

	// Get polygonB in frameA
	var tempPolygonB tempPolygon
	tempPolygonB.count = polygonB.Count
	for i := 0; i < polygonB.Count; i++ {
		tempPolygonB.vertices[i] = xf.Apply(polygonB.Vertices[i])
		tempPolygonB.normals[i] = xf.Q.Apply(polygonB.Normals[i])
	}

	radius := polygonB.Radius() + edgeA.Radius()

	edgeAxis := computeEdgeSeparation(&tempPolygonB, v1, normal1)
	if edgeAxis.separation > radius {
		return
	}

	polygonAxis := computePolygonSeparation(&tempPolygonB, v1, v2)
	if polygonAxis.separation > radius {
		return
	}

	// Use hysteresis for jitter reduction.
	var primaryAxis separationAxis
	if polygonAxis.separation-radius > edgeRelativeTolerance*(edgeAxis.separation-radius)+edgeAbsoluteTolerance {
		primaryAxis = polygonAxis
	} else {
		primaryAxis = edgeAxis
	}

	if edgeA.OneSided {
		edge0, _ := geom.Normalize(v1.Sub(edgeA.V0))
		normal0 := mgl64.Vec2{edge0[1], -edge0[0]}
		convex1 := geom.Cross(edge0, edge1) >= 0

		edge2, _ := geom.Normalize(edgeA.V3.Sub(v2))
		normal2 := mgl64.Vec2{edge2[1], -edge2[0]}
		convex2 := geom.Cross(edge1, edge2) >= 0

		side1 := primaryAxis.normal.Dot(edge1) <= 0

		// Check Gauss Map
		if side1 {
			if convex1 {
				if geom.Cross(primaryAxis.normal, normal0) > edgeSinTolerance {
					// Skip region
					return
				}
				// Admit region
			} else {
				// Snap region
				primaryAxis = edgeAxis
			}
		} else {
			if convex2 {
				if geom.Cross(normal2, primaryAxis.normal) > edgeSinTolerance {
					// Skip region
					return
				}
				// Admit region
			} else {
				// Snap region
				primaryAxis = edgeAxis
			}
		}
	}

	var clipPoints [2]ClipVertex
	var ref referenceFace
	if primaryAxis.kind == axisEdgeA {
		m.Type = ManifoldFaceA

		// Search for the polygon normal that is most anti-parallel to the edge normal.
		bestIndex := 0
		bestValue := primaryAxis.normal.Dot(tempPolygonB.normals[0])
		for i := 1; i < tempPolygonB.count; i++ {
			if value := primaryAxis.normal.Dot(tempPolygonB.normals[i]); value < bestValue {
				bestValue = value
				bestIndex = i
			}
		}

		i1 := bestIndex
		i2 := (i1 + 1) % tempPolygonB.count

		clipPoints[0] = ClipVertex{
			V:  tempPolygonB.vertices[i1],
			ID: ContactID{IndexA: 0, IndexB: uint8(i1), TypeA: FeatureFace, TypeB: FeatureVertex},
		}
		clipPoints[1] = ClipVertex{
			V:  tempPolygonB.vertices[i2],
			ID: ContactID{IndexA: 0, IndexB: uint8(i2), TypeA: FeatureFace, TypeB: FeatureVertex},
		}

		ref.i1 = 0
		ref.i2 = 1
		ref.v1 = v1
		ref.v2 = v2
		ref.normal = primaryAxis.normal
		ref.sideNormal1 = edge1.Mul(-1)
		ref.sideNormal2 = edge1
	} else {
		m.Type = ManifoldFaceB

		clipPoints[0] = ClipVertex{
			V:  v2,
			ID: ContactID{IndexA: 1, IndexB: uint8(primaryAxis.index), TypeA: FeatureVertex, TypeB: FeatureFace},
		}
		clipPoints[1] = ClipVertex{
			V:  v1,
			ID: ContactID{IndexA: 0, IndexB: uint8(primaryAxis.index), TypeA: FeatureVertex, TypeB: FeatureFace},
		}

		ref.i1 = primaryAxis.index
		ref.i2 = (ref.i1 + 1) % tempPolygonB.count
		ref.v1 = tempPolygonB.vertices[ref.i1]
		ref.v2 = tempPolygonB.vertices[ref.i2]
		ref.normal = tempPolygonB.normals[ref.i1]

		// CCW winding
		ref.sideNormal1 = mgl64.Vec2{ref.normal[1], -ref.normal[0]}
		ref.sideNormal2 = ref.sideNormal1.Mul(-1)
	}

	ref.sideOffset1 = ref.sideNormal1.Dot(ref.v1)
	ref.sideOffset2 = ref.sideNormal2.Dot(ref.v2)

	// Clip incident edge against reference face side planes
	var clipPoints1, clipPoints2 [2]ClipVertex

	// Clip to side 1
	if np := ClipSegmentToLine(&clipPoints1, clipPoints, ref.sideNormal1, ref.sideOffset1, ref.i1); np < geom.MaxManifoldPoints {
		return
	}

	// Clip to side 2
	if np := ClipSegmentToLine(&clipPoints2, clipPoints1, ref.sideNormal2, ref.sideOffset2, ref.i2); np < geom.MaxManifoldPoints {
		return
	}

	// Now clipPoints2 contains the clipped points.
	if primaryAxis.kind == axisEdgeA {
		m.LocalNormal = ref.normal
		m.LocalPoint = ref.v1
	} else {
		m.LocalNormal = polygonB.Normals[ref.i1]
		m.LocalPoint = polygonB.Vertices[ref.i1]
	}

	pointCount := 0
	for i := 0; i < geom.MaxManifoldPoints; i++ {
		separation := ref.normal.Dot(clipPoints2[i].V.Sub(ref.v1))
		if separation > radius {
			continue
		}

		cp := &m.Points[pointCount]
		if primaryAxis.kind == axisEdgeA {
			cp.LocalPoint = xf.ApplyInv(clipPoints2[i].V)
			cp.ID = clipPoints2[i].ID
		} else {
			cp.LocalPoint = clipPoints2[i].V
			cp.ID = clipPoints2[i].ID.Swap()
		}
		pointCount++
	}

	m.PointCount = pointCount
}

// CollideChainAndCircle collides one child edge of a chain with a circle.
func CollideChainAndCircle(m *Manifold, chainA *shape.Chain, childIndex int, xfA geom.Transform, circleB *shape.Circle, xfB geom.Transform) {
	edge := chainA.ChildEdge(childIndex)
	CollideEdgeAndCircle(m, &edge, xfA, circleB, xfB)
}

// CollideChainAndPolygon collides one child edge of a chain with a polygon.
func CollideChainAndPolygon(m *Manifold, chainA *shape.Chain, childIndex int, xfA geom.Transform, polygonB *shape.Polygon, xfB geom.Transform) {
	edge := chainA.ChildEdge(childIndex)
	CollideEdgeAndPolygon(m, &edge, xfA, polygonB, xfB)
}
