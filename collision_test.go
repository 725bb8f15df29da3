package feather2d

import (
	"testing"

	"github.com/akmonengine/feather2d/collide"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func testShapes(t *testing.T) map[shape.Type]shape.Shape {
	t.Helper()
	circle, err := shape.NewCircle(mgl64.Vec2{}, 0.5)
	require.NoError(t, err)
	chain, err := shape.NewLoop([]mgl64.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}})
	require.NoError(t, err)

	return map[shape.Type]shape.Shape{
		shape.TypeCircle:  circle,
		shape.TypeEdge:    shape.NewEdge(mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0}),
		shape.TypePolygon: shape.NewBox(0.5, 0.5),
		shape.TypeChain:   chain,
	}
}

func TestCreateContact_Dispatch(t *testing.T) {
	shapes := testShapes(t)

	tests := []struct {
		name          string
		a, b          shape.Type
		wantContact   bool
		wantReference shape.Type
	}{
		{"circle-circle", shape.TypeCircle, shape.TypeCircle, true, shape.TypeCircle},
		{"polygon-circle", shape.TypePolygon, shape.TypeCircle, true, shape.TypePolygon},
		{"circle-polygon swaps", shape.TypeCircle, shape.TypePolygon, true, shape.TypePolygon},
		{"polygon-polygon", shape.TypePolygon, shape.TypePolygon, true, shape.TypePolygon},
		{"edge-circle", shape.TypeEdge, shape.TypeCircle, true, shape.TypeEdge},
		{"polygon-edge swaps", shape.TypePolygon, shape.TypeEdge, true, shape.TypeEdge},
		{"circle-chain swaps", shape.TypeCircle, shape.TypeChain, true, shape.TypeChain},
		{"chain-polygon", shape.TypeChain, shape.TypePolygon, true, shape.TypeChain},
		{"edge-edge", shape.TypeEdge, shape.TypeEdge, false, 0},
		{"edge-chain", shape.TypeEdge, shape.TypeChain, false, 0},
		{"chain-chain", shape.TypeChain, shape.TypeChain, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fA := &Fixture{shape: shapes[tt.a], friction: 0.4}
			fB := &Fixture{shape: shapes[tt.b], friction: 0.1}

			c := createContact(fA, 0, fB, 0)
			if (c != nil) != tt.wantContact {
				t.Fatalf("contact created got %v, want %v", c != nil, tt.wantContact)
			}
			if c == nil {
				return
			}

			if got := c.fixtureA.shape.Type(); got != tt.wantReference {
				t.Errorf("reference shape got %v, want %v", got, tt.wantReference)
			}
			require.InDelta(t, 0.2, c.Friction(), 1e-12)
			require.True(t, c.IsEnabled())
		})
	}
}

func TestCreateContact_EvaluateOverlappingShapes(t *testing.T) {
	shapes := testShapes(t)
	xfA := geom.NewTransform(mgl64.Vec2{}, 0)
	xfB := geom.NewTransform(mgl64.Vec2{0, 0.4}, 0)

	tests := []struct {
		name string
		a, b shape.Type
	}{
		{"circle-circle", shape.TypeCircle, shape.TypeCircle},
		{"polygon-circle", shape.TypePolygon, shape.TypeCircle},
		{"polygon-polygon", shape.TypePolygon, shape.TypePolygon},
		{"edge-polygon", shape.TypeEdge, shape.TypePolygon},
		{"edge-circle", shape.TypeEdge, shape.TypeCircle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := createContact(&Fixture{shape: shapes[tt.a]}, 0, &Fixture{shape: shapes[tt.b]}, 0)
			require.NotNil(t, c)

			var m collide.Manifold
			c.Evaluate(&m, xfA, xfB)
			if m.PointCount == 0 {
				t.Errorf("point count got 0, want at least 1")
			}
		})
	}
}
