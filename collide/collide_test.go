package collide

import (
	"testing"

	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func circle(t *testing.T, r float64) *shape.Circle {
	t.Helper()
	c, err := shape.NewCircle(mgl64.Vec2{}, r)
	require.NoError(t, err)
	return c
}

func at(x, y, angle float64) geom.Transform {
	return geom.NewTransform(mgl64.Vec2{x, y}, angle)
}

func TestContactIDKey(t *testing.T) {
	id := ContactID{IndexA: 3, IndexB: 7, TypeA: FeatureFace, TypeB: FeatureVertex}
	if got := ContactIDFromKey(id.Key()); got != id {
		t.Errorf("ContactIDFromKey got %v, want %v", got, id)
	}

	swapped := id.Swap()
	if swapped.IndexA != 7 || swapped.TypeA != FeatureVertex || swapped.IndexB != 3 || swapped.TypeB != FeatureFace {
		t.Errorf("Swap got %v", swapped)
	}
}

func TestCollideCircles(t *testing.T) {
	a := circle(t, 0.5)
	b := circle(t, 0.5)

	var m Manifold
	CollideCircles(&m, a, at(0, 0, 0), b, at(0.9, 0, 0))
	require.Equal(t, 1, m.PointCount)
	require.Equal(t, ManifoldCircles, m.Type)
	require.Equal(t, mgl64.Vec2{}, m.LocalPoint)

	wm := m.WorldManifold(at(0, 0, 0), a.Radius(), at(0.9, 0, 0), b.Radius())
	require.InDelta(t, -0.1, wm.Separations[0], 1e-9)
	require.InDelta(t, 1.0, wm.Normal.X(), 1e-9)
	require.InDelta(t, 0.45, wm.Points[0].X(), 1e-9)

	CollideCircles(&m, a, at(0, 0, 0), b, at(1.1, 0, 0))
	require.Equal(t, 0, m.PointCount)
}

func TestCollidePolygonAndCircle(t *testing.T) {
	box := shape.NewBox(1, 1)
	ball := circle(t, 0.5)

	tests := []struct {
		name      string
		xfB       geom.Transform
		wantCount int
		wantSep   float64
	}{
		{"face region", at(0, 1.4, 0), 1, -0.1 - geom.PolygonRadius},
		{"vertex region", at(1.3, 1.3, 0), 1, 0.3*1.4142135623730951 - 0.5 - geom.PolygonRadius},
		{"separated", at(0, 3, 0), 0, 0},
		{"center inside", at(0, 0.9, 0), 1, -0.6 - geom.PolygonRadius},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Manifold
			CollidePolygonAndCircle(&m, box, at(0, 0, 0), ball, tt.xfB)
			if m.PointCount != tt.wantCount {
				t.Fatalf("PointCount got %v, want %v", m.PointCount, tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			wm := m.WorldManifold(at(0, 0, 0), box.Radius(), tt.xfB, ball.Radius())
			require.InDelta(t, tt.wantSep, wm.Separations[0], 1e-6)
		})
	}
}

func TestCollidePolygons(t *testing.T) {
	a := shape.NewBox(0.5, 0.5)
	b := shape.NewBox(0.5, 0.5)

	tests := []struct {
		name     string
		xfB      geom.Transform
		minCount int
		maxCount int
	}{
		{"disjoint", at(2, 0, 0), 0, 0},
		{"stacked", at(0, 0.95, 0), 2, 2},
		{"rotated corner", at(0, 1.1, 0.7853981633974483), 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Manifold
			CollidePolygons(&m, a, at(0, 0, 0), b, tt.xfB)
			if m.PointCount < tt.minCount || m.PointCount > tt.maxCount {
				t.Fatalf("PointCount got %v, want in [%v, %v]", m.PointCount, tt.minCount, tt.maxCount)
			}

			wm := m.WorldManifold(at(0, 0, 0), a.Radius(), tt.xfB, b.Radius())
			for i := 0; i < m.PointCount; i++ {
				require.Less(t, wm.Separations[i], a.Radius()+b.Radius())
				require.Greater(t, wm.Normal.Y(), 0.9)
			}
		})
	}
}

func TestCollidePolygonsStableIDs(t *testing.T) {
	a := shape.NewBox(2, 0.5)
	b := shape.NewBox(0.5, 0.5)

	var m1, m2 Manifold
	CollidePolygons(&m1, a, at(0, 0, 0), b, at(0, 0.99, 0))
	CollidePolygons(&m2, a, at(0, 0, 0), b, at(0.5*geom.LinearSlop, 0.99-0.5*geom.LinearSlop, 0.001))
	require.Equal(t, 2, m1.PointCount)
	require.Equal(t, 2, m2.PointCount)

	state1, state2 := GetPointStates(&m1, &m2)
	for i := 0; i < 2; i++ {
		if state1[i] != PointPersist {
			t.Errorf("state1[%d] got %v, want %v", i, state1[i], PointPersist)
		}
		if state2[i] != PointPersist {
			t.Errorf("state2[%d] got %v, want %v", i, state2[i], PointPersist)
		}
	}
}

func TestGetPointStates(t *testing.T) {
	var m1, m2 Manifold
	m1.PointCount = 2
	m1.Points[0].ID = ContactID{IndexA: 1}
	m1.Points[1].ID = ContactID{IndexA: 2}
	m2.PointCount = 2
	m2.Points[0].ID = ContactID{IndexA: 2}
	m2.Points[1].ID = ContactID{IndexA: 3}

	state1, state2 := GetPointStates(&m1, &m2)
	require.Equal(t, [2]PointState{PointRemove, PointPersist}, state1)
	require.Equal(t, [2]PointState{PointPersist, PointAdd}, state2)
}

func TestClipSegmentToLine(t *testing.T) {
	vIn := [2]ClipVertex{
		{V: mgl64.Vec2{-1, 0}, ID: ContactID{IndexB: 4}},
		{V: mgl64.Vec2{1, 0}, ID: ContactID{IndexB: 5}},
	}

	var vOut [2]ClipVertex
	n := ClipSegmentToLine(&vOut, vIn, mgl64.Vec2{1, 0}, 0.5, 2)
	require.Equal(t, 2, n)
	require.Equal(t, vIn[0], vOut[0])
	require.InDelta(t, 0.5, vOut[1].V.X(), 1e-12)
	require.Equal(t, ContactID{IndexA: 2, IndexB: 4, TypeA: FeatureVertex, TypeB: FeatureFace}, vOut[1].ID)

	n = ClipSegmentToLine(&vOut, vIn, mgl64.Vec2{1, 0}, -2, 0)
	require.Equal(t, 0, n)
}

func TestCollideEdgeAndCircle(t *testing.T) {
	ball := circle(t, 0.5)
	twoSided := shape.NewEdge(mgl64.Vec2{-2, 0}, mgl64.Vec2{2, 0})
	oneSided := shape.NewOneSidedEdge(mgl64.Vec2{-4, 0}, mgl64.Vec2{-2, 0}, mgl64.Vec2{2, 0}, mgl64.Vec2{4, 0})

	tests := []struct {
		name      string
		edge      *shape.Edge
		xfB       geom.Transform
		wantCount int
	}{
		{"two-sided above", twoSided, at(0, 0.4, 0), 1},
		{"two-sided below", twoSided, at(0, -0.4, 0), 1},
		// The edge normal of a one-sided edge points to the right of v1->v2.
		{"one-sided front", oneSided, at(0, -0.4, 0), 1},
		{"one-sided back", oneSided, at(0, 0.4, 0), 0},
		{"one-sided vertex owned by neighbour", oneSided, at(-2.3, -0.3, 0), 0},
		{"separated", twoSided, at(0, 2, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Manifold
			CollideEdgeAndCircle(&m, tt.edge, at(0, 0, 0), ball, tt.xfB)
			if m.PointCount != tt.wantCount {
				t.Errorf("PointCount got %v, want %v", m.PointCount, tt.wantCount)
			}
		})
	}
}

func TestCollideEdgeAndPolygon(t *testing.T) {
	box := shape.NewBox(0.5, 0.5)
	edge := shape.NewEdge(mgl64.Vec2{-3, 0}, mgl64.Vec2{3, 0})

	var m Manifold
	CollideEdgeAndPolygon(&m, edge, at(0, 0, 0), box, at(0, 0.49, 0))
	require.Equal(t, 2, m.PointCount)

	wm := m.WorldManifold(at(0, 0, 0), edge.Radius(), at(0, 0.49, 0), box.Radius())
	require.InDelta(t, 1.0, wm.Normal.Y(), 1e-9)
	for i := 0; i < m.PointCount; i++ {
		require.InDelta(t, -0.01-2*geom.PolygonRadius, wm.Separations[i], 1e-6)
	}

	CollideEdgeAndPolygon(&m, edge, at(0, 0, 0), box, at(0, 2, 0))
	require.Equal(t, 0, m.PointCount)
}

func TestCollideChainNoGhostCollision(t *testing.T) {
	// Flat ground made of unit segments, traversed right to left so the
	// front side faces up.
	ground, err := shape.NewChain([]mgl64.Vec2{
		{3, 0}, {2, 0}, {1, 0}, {0, 0}, {-1, 0}, {-2, 0},
	}, mgl64.Vec2{4, 0}, mgl64.Vec2{-3, 0})
	require.NoError(t, err)

	box := shape.NewBox(0.5, 0.5)
	xfB := at(1.0, 0.49, 0)

	for i := 0; i < ground.ChildCount(); i++ {
		var m Manifold
		CollideChainAndPolygon(&m, ground, i, at(0, 0, 0), box, xfB)
		if m.PointCount == 0 {
			continue
		}
		wm := m.WorldManifold(at(0, 0, 0), ground.Radius(), xfB, box.Radius())
		require.InDelta(t, 1.0, wm.Normal.Y(), 1e-6, "child %d produced a ghost normal", i)
	}
}

func TestTestOverlap(t *testing.T) {
	a := shape.NewBox(0.5, 0.5)
	ball := circle(t, 0.5)

	require.True(t, TestOverlap(a, 0, ball, 0, at(0, 0, 0), at(0.9, 0, 0)))
	require.False(t, TestOverlap(a, 0, ball, 0, at(0, 0, 0), at(1.5, 0, 0)))
}
