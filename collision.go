package feather2d

import (
	"github.com/akmonengine/feather2d/collide"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/shape"
)

// collideFunc computes the manifold of two shape children, shape A being the reference.
type collideFunc func(m *collide.Manifold, a shape.Shape, childA int, xfA geom.Transform, b shape.Shape, childB int, xfB geom.Transform)

// collideTable dispatches on the shape types. A nil entry in [A][B] with a
// registered [B][A] makes the contact swap its fixtures.
var collideTable = [shape.TypeCount][shape.TypeCount]collideFunc{
	shape.TypeCircle: {
		shape.TypeCircle: func(m *collide.Manifold, a shape.Shape, _ int, xfA geom.Transform, b shape.Shape, _ int, xfB geom.Transform) {
			collide.CollideCircles(m, a.(*shape.Circle), xfA, b.(*shape.Circle), xfB)
		},
	},
	shape.TypeEdge: {
		shape.TypeCircle: func(m *collide.Manifold, a shape.Shape, _ int, xfA geom.Transform, b shape.Shape, _ int, xfB geom.Transform) {
			collide.CollideEdgeAndCircle(m, a.(*shape.Edge), xfA, b.(*shape.Circle), xfB)
		},
		shape.TypePolygon: func(m *collide.Manifold, a shape.Shape, _ int, xfA geom.Transform, b shape.Shape, _ int, xfB geom.Transform) {
			collide.CollideEdgeAndPolygon(m, a.(*shape.Edge), xfA, b.(*shape.Polygon), xfB)
		},
	},
	shape.TypePolygon: {
		shape.TypeCircle: func(m *collide.Manifold, a shape.Shape, _ int, xfA geom.Transform, b shape.Shape, _ int, xfB geom.Transform) {
			collide.CollidePolygonAndCircle(m, a.(*shape.Polygon), xfA, b.(*shape.Circle), xfB)
		},
		shape.TypePolygon: func(m *collide.Manifold, a shape.Shape, _ int, xfA geom.Transform, b shape.Shape, _ int, xfB geom.Transform) {
			collide.CollidePolygons(m, a.(*shape.Polygon), xfA, b.(*shape.Polygon), xfB)
		},
	},
	shape.TypeChain: {
		shape.TypeCircle: func(m *collide.Manifold, a shape.Shape, childA int, xfA geom.Transform, b shape.Shape, _ int, xfB geom.Transform) {
			collide.CollideChainAndCircle(m, a.(*shape.Chain), childA, xfA, b.(*shape.Circle), xfB)
		},
		shape.TypePolygon: func(m *collide.Manifold, a shape.Shape, childA int, xfA geom.Transform, b shape.Shape, _ int, xfB geom.Transform) {
			collide.CollideChainAndPolygon(m, a.(*shape.Chain), childA, xfA, b.(*shape.Polygon), xfB)
		},
	},
}

// createContact builds the contact of two fixture children, ordering them so
// that a collide function exists. It returns nil for pairs that never
// collide, such as edge against edge.
func createContact(fA *Fixture, childA int, fB *Fixture, childB int) *Contact {
	typeA := fA.shape.Type()
	typeB := fB.shape.Type()

	if fn := collideTable[typeA][typeB]; fn != nil {
		return newContact(fA, childA, fB, childB, fn)
	}
	if fn := collideTable[typeB][typeA]; fn != nil {
		return newContact(fB, childB, fA, childA, fn)
	}
	return nil
}
