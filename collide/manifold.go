// Package collide generates contact manifolds between pairs of shapes.
//
// A manifold holds up to two contact points expressed in the local frames of
// the shapes, so it stays valid while the bodies move slightly. Every point
// carries a ContactID describing the features (vertex or face) that produced
// it. Matching IDs between consecutive steps is what lets the solver warm
// start with the previous impulses.
//
// Polygon contacts use Sutherland-Hodgman clipping of the incident edge
// against the side planes of the reference face.
package collide

import (
	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// FeatureType tells whether a contact feature is a vertex or a face.
type FeatureType uint8

const (
	FeatureVertex FeatureType = iota
	FeatureFace
)

// ContactID identifies the features that intersect to form a contact point.
// It must fit in 4 bytes.
type ContactID struct {
	IndexA uint8 // feature index on shape A
	IndexB uint8 // feature index on shape B
	TypeA  FeatureType
	TypeB  FeatureType
}

// Key packs the id into a single comparable integer.
func (id ContactID) Key() uint32 {
	return uint32(id.IndexA) | uint32(id.IndexB)<<8 | uint32(id.TypeA)<<16 | uint32(id.TypeB)<<24
}

// ContactIDFromKey is the inverse of Key.
func ContactIDFromKey(key uint32) ContactID {
	return ContactID{
		IndexA: uint8(key),
		IndexB: uint8(key >> 8),
		TypeA:  FeatureType(key >> 16),
		TypeB:  FeatureType(key >> 24),
	}
}

// Swap exchanges the A and B features, used when the reference shape is B.
func (id ContactID) Swap() ContactID {
	return ContactID{IndexA: id.IndexB, IndexB: id.IndexA, TypeA: id.TypeB, TypeB: id.TypeA}
}

// ManifoldPoint is a contact point belonging to a manifold. Its meaning depends on the manifold type:
//   - ManifoldCircles: the local center of circle B
//   - ManifoldFaceA: the local center of circle B or the clip point of polygon B
//   - ManifoldFaceB: the clip point of polygon A
//
// The impulses are used for warm starting.
type ManifoldPoint struct {
	LocalPoint     mgl64.Vec2
	NormalImpulse  float64
	TangentImpulse float64
	ID             ContactID
}

// ManifoldType selects how points and normal are reconstructed in world space.
type ManifoldType uint8

const (
	ManifoldCircles ManifoldType = iota
	ManifoldFaceA
	ManifoldFaceB
)

// Manifold is the contact description for two touching convex shapes.
//
// LocalNormal is unused for circles, the face normal on A for faceA and on B for faceB.
// LocalPoint is the circle A center for circles, the face center on A for faceA
// and on B for faceB.
type Manifold struct {
	Points      [geom.MaxManifoldPoints]ManifoldPoint
	LocalNormal mgl64.Vec2
	LocalPoint  mgl64.Vec2
	Type        ManifoldType
	PointCount  int
}

// FindPoint returns the index of the point with the given id, or -1.
func (m *Manifold) FindPoint(id ContactID) int {
	for i := 0; i < m.PointCount; i++ {
		if m.Points[i].ID == id {
			return i
		}
	}
	return -1
}

// WorldManifold is a manifold evaluated in world coordinates.
type WorldManifold struct {
	Normal      mgl64.Vec2 // from A to B
	Points      [geom.MaxManifoldPoints]mgl64.Vec2
	Separations [geom.MaxManifoldPoints]float64 // negative when overlapping
}

// WorldManifold evaluates the manifold with the given transforms and skin radii.
// Points are placed midway between the two surfaces.
func (m *Manifold) WorldManifold(xfA geom.Transform, radiusA float64, xfB geom.Transform, radiusB float64) WorldManifold {
	var wm WorldManifold
	if m.PointCount == 0 {
		return wm
	}

	switch m.Type {
	case ManifoldCircles:
		wm.Normal = mgl64.Vec2{1, 0}
		pointA := xfA.Apply(m.LocalPoint)
		pointB := xfB.Apply(m.Points[0].LocalPoint)
		if geom.DistanceSquared(pointA, pointB) > geom.Epsilon*geom.Epsilon {
			wm.Normal, _ = geom.Normalize(pointB.Sub(pointA))
		}

		cA := pointA.Add(wm.Normal.Mul(radiusA))
		cB := pointB.Sub(wm.Normal.Mul(radiusB))
		wm.Points[0] = cA.Add(cB).Mul(0.5)
		wm.Separations[0] = cB.Sub(cA).Dot(wm.Normal)

	case ManifoldFaceA:
		wm.Normal = xfA.Q.Apply(m.LocalNormal)
		planePoint := xfA.Apply(m.LocalPoint)

		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfB.Apply(m.Points[i].LocalPoint)
			cA := clipPoint.Add(wm.Normal.Mul(radiusA - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cB := clipPoint.Sub(wm.Normal.Mul(radiusB))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cB.Sub(cA).Dot(wm.Normal)
		}

	case ManifoldFaceB:
		wm.Normal = xfB.Q.Apply(m.LocalNormal)
		planePoint := xfB.Apply(m.LocalPoint)

		for i := 0; i < m.PointCount; i++ {
			clipPoint := xfA.Apply(m.Points[i].LocalPoint)
			cB := clipPoint.Add(wm.Normal.Mul(radiusB - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cA := clipPoint.Sub(wm.Normal.Mul(radiusA))
			wm.Points[i] = cA.Add(cB).Mul(0.5)
			wm.Separations[i] = cA.Sub(cB).Dot(wm.Normal)
		}

		// Ensure normal points from A to B.
		wm.Normal = wm.Normal.Mul(-1)
	}

	return wm
}

// PointState describes a manifold point across two consecutive updates.
type PointState uint8

const (
	PointNull    PointState = iota // point does not exist
	PointAdd                       // point was added in the update
	PointPersist                   // point persisted across the update
	PointRemove                    // point was removed in the update
)

// GetPointStates compares the ids of two manifolds. state1 describes the
// points of manifold1 (persist or remove), state2 those of manifold2 (add or persist).
func GetPointStates(manifold1, manifold2 *Manifold) (state1, state2 [geom.MaxManifoldPoints]PointState) {
	for i := 0; i < manifold1.PointCount; i++ {
		state1[i] = PointRemove
		if manifold2.FindPoint(manifold1.Points[i].ID) >= 0 {
			state1[i] = PointPersist
		}
	}

	for i := 0; i < manifold2.PointCount; i++ {
		state2[i] = PointAdd
		if manifold1.FindPoint(manifold2.Points[i].ID) >= 0 {
			state2[i] = PointPersist
		}
	}

	return state1, state2
}

// ClipVertex is a point of the incident edge during clipping.
type ClipVertex struct {
	V  mgl64.Vec2
	ID ContactID
}

// ClipSegmentToLine is one Sutherland-Hodgman pass: it keeps the part of the
// segment in behind the plane dot(normal, x) = offset. Intersection points are
// tagged as vertexIndexA of the reference shape hitting the incident face.
// It returns the number of output points.
func ClipSegmentToLine(vOut *[2]ClipVertex, vIn [2]ClipVertex, normal mgl64.Vec2, offset float64, vertexIndexA int) int {
	numOut := 0

	// Calculate the distance of end points to the line
	distance0 := normal.Dot(vIn[0].V) - offset
	distance1 := normal.Dot(vIn[1].V) - offset

	// If the points are behind the plane
	if distance0 <= 0 {
		vOut[numOut] = vIn[0]
		numOut++
	}
	if distance1 <= 0 {
		vOut[numOut] = vIn[1]
		numOut++
	}

	// If the points are on different sides of the plane
	if distance0*distance1 < 0 {
		// Find intersection point of edge and plane
		interp := distance0 / (distance0 - distance1)
		vOut[numOut].V = vIn[0].V.Add(vIn[1].V.Sub(vIn[0].V).Mul(interp))

		// VertexA is hitting edgeB.
		vOut[numOut].ID = ContactID{
			IndexA: uint8(vertexIndexA),
			IndexB: vIn[0].ID.IndexB,
			TypeA:  FeatureVertex,
			TypeB:  FeatureFace,
		}
		numOut++
	}

	return numOut
}
