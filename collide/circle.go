package collide

import (
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// CollideCircles computes the manifold of two circles: one point when the
// centers are closer than the sum of the radii.
func CollideCircles(m *Manifold, circleA *shape.Circle, xfA geom.Transform, circleB *shape.Circle, xfB geom.Transform) {
	m.PointCount = 0

	pA := xfA.Apply(circleA.Center)
	pB := xfB.Apply(circleB.Center)

	distSqr := geom.DistanceSquared(pA, pB)
	radius := circleA.Radius() + circleB.Radius()
	if distSqr > radius*radius {
		return
	}

	m.Type = ManifoldCircles
	m.LocalPoint = circleA.Center
	m.LocalNormal = mgl64.Vec2{}
	m.PointCount = 1

	m.Points[0].LocalPoint = circleB.Center
	m.Points[0].ID = ContactID{}
}

// CollidePolygonAndCircle computes the manifold of a polygon and a circle.
// The circle center is classified against the face of maximum separation:
// inside the polygon, or in the vertex1, vertex2 or face Voronoi region.
func CollidePolygonAndCircle(m *Manifold, polygonA *shape.Polygon, xfA geom.Transform, circleB *shape.Circle, xfB geom.Transform) {
	m.PointCount = 0

	// Compute circle position in the frame of the polygon.
	c := xfB.Apply(circleB.Center)
	cLocal := xfA.ApplyInv(c)

	// Find the min separating edge.
	normalIndex := 0
	separation := -math.MaxFloat64
	radius := polygonA.Radius() + circleB.Radius()
	vertexCount := polygonA.Count
	vertices := &polygonA.Vertices
	normals := &polygonA.Normals

	for i := 0; i < vertexCount; i++ {
		s := normals[i].Dot(cLocal.Sub(vertices[i]))
		if s > radius {
			// Early out.
			return
		}
		if s > separation {
			separation = s
			normalIndex = i
		}
	}

	// Vertices that subtend the incident face.
	vertIndex1 := normalIndex
	vertIndex2 := (vertIndex1 + 1) % vertexCount
	v1 := vertices[vertIndex1]
	v2 := vertices[vertIndex2]

	m.Type = ManifoldFaceA
	m.Points[0].LocalPoint = circleB.Center
	m.Points[0].ID = ContactID{}

	// If the center is inside the polygon ...
	if separation < geom.Epsilon {
		m.PointCount = 1
		m.LocalNormal = normals[normalIndex]
		m.LocalPoint = v1.Add(v2).Mul(0.5)
		return
	}

	// Compute barycentric coordinates
	u1 := cLocal.Sub(v1).Dot(v2.Sub(v1))
	u2 := cLocal.Sub(v2).Dot(v1.Sub(v2))

	switch {
	case u1 <= 0:
		if geom.DistanceSquared(cLocal, v1) > radius*radius {
			return
		}
		m.PointCount = 1
		m.LocalNormal, _ = geom.Normalize(cLocal.Sub(v1))
		m.LocalPoint = v1

	case u2 <= 0:
		if geom.DistanceSquared(cLocal, v2) > radius*radius {
			return
		}
		m.PointCount = 1
		m.LocalNormal, _ = geom.Normalize(cLocal.Sub(v2))
		m.LocalPoint = v2

	default:
		faceCenter := v1.Add(v2).Mul(0.5)
		s := cLocal.Sub(faceCenter).Dot(normals[vertIndex1])
		if s > radius {
			return
		}
		m.PointCount = 1
		m.LocalNormal = normals[vertIndex1]
		m.LocalPoint = faceCenter
	}
}
