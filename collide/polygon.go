package collide

import (
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/shape"
)

// findMaxSeparation finds the edge normal of poly1 with the largest
// separation from poly2, measured by the deepest vertex of poly2.
func findMaxSeparation(poly1 *shape.Polygon, xf1 geom.Transform, poly2 *shape.Polygon, xf2 geom.Transform) (int, float64) {
	// Work in the frame of poly2.
	xf := xf2.MulT(xf1)

	bestIndex := 0
	maxSeparation := -math.MaxFloat64
	for i := 0; i < poly1.Count; i++ {
		n := xf.Q.Apply(poly1.Normals[i])
		v1 := xf.Apply(poly1.Vertices[i])

		// Find deepest point for normal i.
		si := math.MaxFloat64
		for j := 0; j < poly2.Count; j++ {
			if sij := n.Dot(poly2.Vertices[j].Sub(v1)); sij < si {
				si = sij
			}
		}

		if si > maxSeparation {
			maxSeparation = si
			bestIndex = i
		}
	}

	return bestIndex, maxSeparation
}

// findIncidentEdge returns the edge of poly2 whose normal is most
// anti-parallel to the reference normal edge1 of poly1, in world space.
func findIncidentEdge(poly1 *shape.Polygon, xf1 geom.Transform, edge1 int, poly2 *shape.Polygon, xf2 geom.Transform) [2]ClipVertex {
	// Get the normal of the reference edge in poly2's frame.
	normal1 := xf2.Q.ApplyInv(xf1.Q.Apply(poly1.Normals[edge1]))

	index := 0
	minDot := math.MaxFloat64
	for i := 0; i < poly2.Count; i++ {
		if dot := normal1.Dot(poly2.Normals[i]); dot < minDot {
			minDot = dot
			index = i
		}
	}

	i1 := index
	i2 := (i1 + 1) % poly2.Count

	return [2]ClipVertex{
		{
			V:  xf2.Apply(poly2.Vertices[i1]),
			ID: ContactID{IndexA: uint8(edge1), IndexB: uint8(i1), TypeA: FeatureFace, TypeB: FeatureVertex},
		},
		{
			V:  xf2.Apply(poly2.Vertices[i2]),
			ID: ContactID{IndexA: uint8(edge1), IndexB: uint8(i2), TypeA: FeatureFace, TypeB: FeatureVertex},
		},
	}
}

// CollidePolygons computes the manifold of two convex polygons.
//
// Algorithm:
//  1. Find the edge normal of max separation on A, then on B; early out if either separates
//  2. Pick the reference face, preferring A unless B is better by ReferenceFaceTolerance
//  3. Find the incident edge on the other polygon
//  4. Clip the incident edge against the reference face side planes
//  5. Keep the clip points within the combined skin radius of the reference face
//
// Fewer than two clip points means the polygons are separating; the manifold is left empty.
func CollidePolygons(m *Manifold, polyA *shape.Polygon, xfA geom.Transform, polyB *shape.Polygon, xfB geom.Transform) {
	m.PointCount = 0
	totalRadius := polyA.Radius() + polyB.Radius()

	edgeA, separationA := findMaxSeparation(polyA, xfA, polyB, xfB)
	if separationA > totalRadius {
		return
	}

	edgeB, separationB := findMaxSeparation(polyB, xfB, polyA, xfA)
	if separationB > totalRadius {
		return
	}

	poly1, poly2 := polyA, polyB // reference, incident
	xf1, xf2 := xfA, xfB
	edge1 := edgeA
	flip := false
	m.Type = ManifoldFaceA

	if separationB > separationA+geom.ReferenceFaceTolerance {
		poly1, poly2 = polyB, polyA
		xf1, xf2 = xfB, xfA
		edge1 = edgeB
		flip = true
		m.Type = ManifoldFaceB
	}

	incidentEdge := findIncidentEdge(poly1, xf1, edge1, poly2, xf2)

	iv1 := edge1
	iv2 := (edge1 + 1) % poly1.Count

	v11 := poly1.Vertices[iv1]
	v12 := poly1.Vertices[iv2]

	localTangent, _ := geom.Normalize(v12.Sub(v11))
	localNormal := geom.CrossVS(localTangent, 1.0)
	planePoint := v11.Add(v12).Mul(0.5)

	tangent := xf1.Q.Apply(localTangent)
	normal := geom.CrossVS(tangent, 1.0)

	v11 = xf1.Apply(v11)
	v12 = xf1.Apply(v12)

	// Face offset.
	frontOffset := normal.Dot(v11)

	// Side offsets, extended by polytope skin thickness.
	sideOffset1 := -tangent.Dot(v11) + totalRadius
	sideOffset2 := tangent.Dot(v12) + totalRadius

	// Clip incident edge against extruded edge1 side edges.
	var clipPoints1, clipPoints2 [2]ClipVertex

	// Clip to box side 1
	if np := ClipSegmentToLine(&clipPoints1, incidentEdge, tangent.Mul(-1), sideOffset1, iv1); np < 2 {
		return
	}

	// Clip to negative box side 1
	if np := ClipSegmentToLine(&clipPoints2, clipPoints1, tangent, sideOffset2, iv2); np < 2 {
		return
	}

	// Now clipPoints2 contains the clipped points.
	m.LocalNormal = localNormal
	m.LocalPoint = planePoint

	pointCount := 0
	for i := 0; i < geom.MaxManifoldPoints; i++ {
		separation := normal.Dot(clipPoints2[i].V) - frontOffset
		if separation > totalRadius {
			continue
		}

		cp := &m.Points[pointCount]
		cp.LocalPoint = xf2.ApplyInv(clipPoints2[i].V)
		cp.ID = clipPoints2[i].ID
		if flip {
			// Swap features
			cp.ID = cp.ID.Swap()
		}
		pointCount++
	}

	m.PointCount = pointCount
}
